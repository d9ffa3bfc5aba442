package shimmer

import (
	"context"

	"github.com/relabs-tech/shimmer-console/core/client"
	"github.com/relabs-tech/shimmer-console/core/logger"
)

// Resources binds a client to the resources of a shim server
type Resources struct {
	client client.Client
}

// NewResources returns Resources for the shim server reached by cl
func NewResources(cl client.Client) *Resources {
	return &Resources{client: cl}
}

// APIURL returns the base URL of the shim server. It is empty for in-process clients.
func (r *Resources) APIURL() string {
	return r.client.URL()
}

// ListRegistry lists all shims known to the server. With available set only shims which
// have client credentials configured are listed.
func (r *Resources) ListRegistry(ctx context.Context, available bool) ([]RegistryEntry, error) {
	col := r.client.WithContext(ctx).Collection("registry")
	if available {
		col = col.WithParameter("available", "true")
	}
	var entries []RegistryEntry
	_, err := col.List(&entries)
	return entries, r.failed(ctx, "list registry", err)
}

// SearchAuthorizations returns all users matching term with their authorized shims
func (r *Resources) SearchAuthorizations(ctx context.Context, term string) ([]AuthorizationRecord, error) {
	var records []AuthorizationRecord
	_, err := r.client.WithContext(ctx).Collection("authorizations").
		WithParameter("username", term).
		List(&records)
	return records, r.failed(ctx, "search authorizations", err)
}

// ListConfigurations returns the configuration of every shim
func (r *Resources) ListConfigurations(ctx context.Context) ([]Configuration, error) {
	var configurations []Configuration
	_, err := r.client.WithContext(ctx).Collection("configuration").List(&configurations)
	return configurations, r.failed(ctx, "list configurations", err)
}

// SaveConfiguration stores the configuration of one shim
func (r *Resources) SaveConfiguration(ctx context.Context, configuration Configuration) error {
	_, err := r.client.WithContext(ctx).Collection("").Item(configuration.ShimName, "configuration").
		Create(configuration, nil)
	return r.failed(ctx, "save configuration", err)
}

// ListSchemas returns the schemas of every shim
func (r *Resources) ListSchemas(ctx context.Context) ([]SchemaList, error) {
	var schemas []SchemaList
	_, err := r.client.WithContext(ctx).Collection("schemas").List(&schemas)
	return schemas, r.failed(ctx, "list schemas", err)
}

// RequestAuthorization asks the server to start the authorization of userID for shimName.
// If redirectURL is not empty, the server redirects the authorization window there when the
// handshake is complete.
func (r *Resources) RequestAuthorization(ctx context.Context, shimName, userID, redirectURL string) (*AuthorizationRequest, error) {
	item := r.client.WithContext(ctx).Collection("authorize").Item(shimName).
		WithParameter("username", userID)
	if redirectURL != "" {
		item = item.WithParameter("client_redirect_url", redirectURL)
	}
	request := &AuthorizationRequest{}
	if _, err := item.Read(request); err != nil {
		return nil, r.failed(ctx, "request authorization", err)
	}
	return request, nil
}

// Deauthorize removes the authorization of userID for shimName
func (r *Resources) Deauthorize(ctx context.Context, shimName, userID string) error {
	_, err := r.client.WithContext(ctx).Collection("de-authorize").Item(shimName).
		WithParameter("username", userID).
		Delete()
	return r.failed(ctx, "deauthorize", err)
}

// FetchData reads the raw payload of a data URL as built by BuildURL
func (r *Resources) FetchData(ctx context.Context, dataURL string) ([]byte, error) {
	var raw []byte
	_, err := r.client.WithContext(ctx).RawGet(dataURL, &raw)
	return raw, r.failed(ctx, "fetch data", err)
}

// UpdateClientCredentials sets the OAuth client credentials the server uses for shimName
func (r *Resources) UpdateClientCredentials(ctx context.Context, shimName, clientID, clientSecret string) error {
	_, err := r.client.WithContext(ctx).Collection("shim").Item(shimName, "config").
		WithParameter("clientId", clientID).
		WithParameter("clientSecret", clientSecret).
		Upsert(nil, nil)
	return r.failed(ctx, "update client credentials", err)
}

func (r *Resources) failed(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	logger.FromContext(ctx).WithError(err).Errorln(op, "failed")
	return networkError(op, err)
}
