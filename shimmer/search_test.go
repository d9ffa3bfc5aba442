package shimmer

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func searchAPI(records map[string][]AuthorizationRecord) *fakeAPI {
	api := newFakeAPI()
	api.respond("/authorizations", func(r *http.Request) (int, string) {
		found, ok := records[r.URL.Query().Get("username")]
		if !ok {
			return http.StatusInternalServerError, `{"error":"unexpected term"}`
		}
		return http.StatusOK, mustJSON(found)
	})
	return api
}

func TestSelector_Search(t *testing.T) {
	api := searchAPI(map[string][]AuthorizationRecord{
		"ann": {{Username: "Anna", Auths: []string{"fitbit"}}},
		"bob": {},
	})
	resources := api.resources()
	selector := NewSelector(resources, NewRegistry(resources, nil))
	ctx := context.Background()

	users, err := selector.Search(ctx, "  ann")
	require.NoError(t, err)
	assert.Equal(t, []User{{ID: "Anna", Authorizations: []string{"fitbit"}}}, users)
	assert.Equal(t, users, selector.Candidates())

	// a term without results becomes a new user
	users, err = selector.Search(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, []User{{ID: "bob", Authorizations: []string{}}}, users)

	// failures leave the candidates unchanged
	_, err = selector.Search(ctx, "carla")
	assert.Error(t, err)
	assert.Equal(t, []User{{ID: "bob", Authorizations: []string{}}}, selector.Candidates())
}

func TestSelector_Select(t *testing.T) {
	api := searchAPI(map[string][]AuthorizationRecord{
		"Anna": {{Username: "Anna", Auths: []string{"fitbit", "withings"}}},
	})
	api.static("/schemas", http.StatusOK, `[{"shimName":"fitbit","schemas":[]},{"shimName":"withings","schemas":[]}]`)
	resources := api.resources()
	registry := NewRegistry(resources, nil)
	selector := NewSelector(resources, registry)
	ctx := context.Background()
	require.NoError(t, registry.RefreshSchemas(ctx))

	_, ok := selector.Selected()
	assert.False(t, ok)

	var observed []string
	selector.OnSelect(func(u User) { observed = append(observed, u.ID) })

	require.NoError(t, selector.Select(ctx, User{ID: "Anna"}))
	selected, ok := selector.Selected()
	require.True(t, ok)
	assert.Equal(t, "Anna", selected.ID)
	assert.Equal(t, []string{"fitbit", "withings"}, selected.Authorizations)
	assert.True(t, selected.Authorized("withings"))
	assert.False(t, selected.Authorized("jawbone"))
	assert.Equal(t, []string{"Anna"}, observed)

	for _, shim := range registry.Shims() {
		assert.True(t, shim.Authenticated, shim.Name)
	}

	// the selection changes even when the refresh fails
	assert.Error(t, selector.Select(ctx, User{ID: "Zoe"}))
	selected, _ = selector.Selected()
	assert.Equal(t, "Zoe", selected.ID)
	assert.Equal(t, []string{"Anna", "Zoe"}, observed)
}
