package shimmer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/relabs-tech/shimmer-console/core/logger"
)

// Registry is the cache of all known shims. It is shared by reference and only mutated
// by its refresh operations.
type Registry struct {
	resources *Resources
	endpoints *EndpointTable

	mu    sync.RWMutex
	shims map[string]*Shim
}

// NewRegistry returns an empty registry. endpoints may be nil, in which case schema
// refreshes are not checked against an endpoint table.
func NewRegistry(resources *Resources, endpoints *EndpointTable) *Registry {
	return &Registry{
		resources: resources,
		endpoints: endpoints,
		shims:     map[string]*Shim{},
	}
}

// updateShims prunes all shims not in names, creates missing ones and calls merge for each
// name. Must be called with the write lock held.
func (r *Registry) updateShims(names []string, merge func(shim *Shim, index int)) {
	present := make(map[string]bool, len(names))
	for _, name := range names {
		present[name] = true
	}
	for name := range r.shims {
		if !present[name] {
			delete(r.shims, name)
		}
	}
	for i, name := range names {
		shim, ok := r.shims[name]
		if !ok {
			shim = &Shim{Name: name, Schemas: []Schema{}}
			r.shims[name] = shim
		}
		merge(shim, i)
	}
}

// RefreshConfigurations fetches all configurations. On failure the registry is left untouched.
func (r *Registry) RefreshConfigurations(ctx context.Context) error {
	configurations, err := r.resources.ListConfigurations(ctx)
	if err != nil {
		return err
	}
	names := make([]string, len(configurations))
	normalized := make([]*Configuration, len(configurations))
	for i, c := range configurations {
		names[i] = c.ShimName
		normalized[i] = normalizeConfiguration(ctx, c)
	}

	r.mu.Lock()
	r.updateShims(names, func(shim *Shim, i int) {
		shim.Configuration = normalized[i]
	})
	r.mu.Unlock()
	logger.FromContext(ctx).Debugf("refreshed configuration of %d shims", len(names))
	return nil
}

// RefreshSchemas fetches the schemas of all shims. On failure the registry is left untouched.
func (r *Registry) RefreshSchemas(ctx context.Context) error {
	lists, err := r.resources.ListSchemas(ctx)
	if err != nil {
		return err
	}
	names := make([]string, len(lists))
	for i, l := range lists {
		names[i] = l.ShimName
	}

	r.mu.Lock()
	r.updateShims(names, func(shim *Shim, i int) {
		shim.Schemas = append([]Schema{}, lists[i].Schemas...)
	})
	r.mu.Unlock()

	rlog := logger.FromContext(ctx)
	rlog.Debugf("refreshed schemas of %d shims", len(names))
	if r.endpoints != nil {
		for _, l := range lists {
			for _, s := range l.Schemas {
				if _, ok := r.endpoints.Endpoint(l.ShimName, s.Key()); !ok {
					rlog.Warnf("shim %s: no data endpoint for schema %s", l.ShimName, s.Key())
				}
			}
		}
	}
	return nil
}

// Refresh refreshes configurations and then schemas
func (r *Registry) Refresh(ctx context.Context) error {
	return errors.Join(r.RefreshConfigurations(ctx), r.RefreshSchemas(ctx))
}

// RefreshAuthorizations sets the authenticated flag of every shim userID has authorized
// and clears it for all others. It returns the authorizations of the user.
func (r *Registry) RefreshAuthorizations(ctx context.Context, userID string) ([]string, error) {
	records, err := r.resources.SearchAuthorizations(ctx, userID)
	if err != nil {
		return nil, err
	}
	// the search matches substrings, the record for userID is the exact match
	auths := []string{}
	for _, record := range records {
		if record.Username == userID {
			auths = append(auths, record.Auths...)
			break
		}
	}

	r.mu.Lock()
	for _, shim := range r.shims {
		shim.Authenticated = false
	}
	for _, name := range auths {
		if shim, ok := r.shims[name]; ok {
			shim.Authenticated = true
		}
	}
	r.mu.Unlock()
	logger.FromContext(ctx).Debugf("user %s has authorized %v", userID, auths)
	return auths, nil
}

// SaveConfiguration validates values against the settings of shimName, stores them on
// the server and refreshes the configurations. Settings without a value in values keep
// their current value and are only checked for presence if required.
func (r *Registry) SaveConfiguration(ctx context.Context, shimName string, values map[string]interface{}) error {
	current, ok := r.Configuration(shimName)
	if !ok {
		return fmt.Errorf("%w %s", ErrUnknownShim, shimName)
	}
	changed := make([]string, 0, len(values))
	for id, v := range values {
		current.Values[id] = v
		changed = append(changed, id)
	}
	if err := ValidateChanges(shimName, current.Settings, current.Values, changed); err != nil {
		return fmt.Errorf("invalid configuration for %s: %w", shimName, err)
	}
	if err := r.resources.SaveConfiguration(ctx, *current); err != nil {
		return err
	}
	logger.FromContext(ctx).Infof("configuration of %s saved", shimName)
	return r.RefreshConfigurations(ctx)
}

// Shim returns a copy of the shim with the given name
func (r *Registry) Shim(name string) (Shim, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	shim, ok := r.shims[name]
	if !ok {
		return Shim{}, false
	}
	return shim.clone(), true
}

// Shims returns copies of all shims sorted by name
func (r *Registry) Shims() []Shim {
	r.mu.RLock()
	defer r.mu.RUnlock()
	shims := make([]Shim, 0, len(r.shims))
	for _, shim := range r.shims {
		shims = append(shims, shim.clone())
	}
	sort.Slice(shims, func(i, j int) bool { return shims[i].Name < shims[j].Name })
	return shims
}

// Names returns the sorted names of all shims
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.shims))
	for name := range r.shims {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Configuration returns a copy of the configuration of shimName. A shim which is known
// only from the schemas has an empty configuration.
func (r *Registry) Configuration(name string) (*Configuration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	shim, ok := r.shims[name]
	if !ok {
		return nil, false
	}
	if shim.Configuration == nil {
		return &Configuration{ShimName: name, Settings: []ConfigurationSetting{}, Values: map[string]interface{}{}}, true
	}
	return shim.Configuration.Clone(), true
}
