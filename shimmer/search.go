package shimmer

import (
	"context"
	"strings"
	"sync"

	"github.com/relabs-tech/shimmer-console/core/logger"
)

// Selector maps search terms to candidate users and tracks the selected user
type Selector struct {
	resources *Resources
	registry  *Registry

	mu         sync.Mutex
	candidates []User
	selected   *User
	observers  []func(User)
}

// NewSelector returns a Selector without candidates and selection
func NewSelector(resources *Resources, registry *Registry) *Selector {
	return &Selector{
		resources:  resources,
		registry:   registry,
		candidates: []User{},
	}
}

// Search replaces the candidates with all users matching term. If no user matches, the
// only candidate is a new user with the term as id, so that it can be authorized. On failure
// the candidates are left unchanged.
func (s *Selector) Search(ctx context.Context, term string) ([]User, error) {
	term = strings.TrimSpace(term)
	records, err := s.resources.SearchAuthorizations(ctx, term)
	if err != nil {
		return nil, err
	}
	candidates := make([]User, 0, len(records))
	for _, record := range records {
		candidates = append(candidates, userFromRecord(record))
	}
	if len(candidates) == 0 && term != "" {
		candidates = append(candidates, User{ID: term, Authorizations: []string{}})
	}
	logger.FromContext(ctx).Debugf("search %q found %d users", term, len(records))

	s.mu.Lock()
	s.candidates = candidates
	s.mu.Unlock()
	return copyUsers(candidates), nil
}

// Candidates returns the result of the last successful search
func (s *Selector) Candidates() []User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyUsers(s.candidates)
}

// OnSelect registers a function which is called after the selection changed
func (s *Selector) OnSelect(observer func(User)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, observer)
}

// Select makes user the selected user and refreshes the authenticated flags of the registry.
// The authorizations of the selection are updated from the refresh.
func (s *Selector) Select(ctx context.Context, user User) error {
	s.mu.Lock()
	selected := copyUser(user)
	s.selected = &selected
	observers := append([]func(User){}, s.observers...)
	s.mu.Unlock()

	for _, observer := range observers {
		observer(copyUser(selected))
	}

	auths, err := s.registry.RefreshAuthorizations(ctx, user.ID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if s.selected != nil && s.selected.ID == user.ID {
		s.selected.Authorizations = auths
	}
	s.mu.Unlock()
	return nil
}

// Selected returns the selected user
func (s *Selector) Selected() (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return User{}, false
	}
	return copyUser(*s.selected), true
}

func copyUser(u User) User {
	c := u
	c.Authorizations = append([]string{}, u.Authorizations...)
	if u.Statistics != nil {
		c.Statistics = make(map[string]interface{}, len(u.Statistics))
		for k, v := range u.Statistics {
			c.Statistics[k] = v
		}
	}
	return c
}

func copyUsers(users []User) []User {
	c := make([]User, len(users))
	for i, u := range users {
		c[i] = copyUser(u)
	}
	return c
}
