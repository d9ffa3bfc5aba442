package shimmer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultEndpointTable(t *testing.T) {
	table := DefaultEndpointTable()
	assert.Equal(t, []string{"fitbit", "googlefit", "jawbone", "misfit", "runkeeper", "withings"}, table.Shims())

	testCases := []struct {
		shim     string
		schema   string
		endpoint string
	}{
		{"fitbit", "omh:step-count", "steps"},
		{"FitBit", "omh:body-mass-index", "body_mass_index"},
		{"googlefit", "omh:calories-burned", "calories_burned"},
		{"jawbone", "omh:heart-rate", "heart_rate2"},
		{"misfit", "omh:physical-activity", "activities"},
		{"runkeeper", "omh:calories-burned", "calories"},
		{"withings", "omh:sleep-duration", "sleep4"},
	}
	for _, tc := range testCases {
		key, err := ParseSchemaKey(tc.schema)
		require.NoError(t, err)
		endpoint, ok := table.Endpoint(tc.shim, key)
		assert.True(t, ok, tc.shim+" "+tc.schema)
		assert.Equal(t, tc.endpoint, endpoint)
	}

	_, ok := table.Endpoint("runkeeper", SchemaKey{Namespace: "omh", Name: "heart-rate"})
	assert.False(t, ok)
	_, ok = table.Endpoint("fitbit", SchemaKey{Namespace: "granola", Name: "step-count"})
	assert.False(t, ok)

	entries := table.Entries("misfit")
	require.Len(t, entries, 3)
	assert.Equal(t, "activities", entries[0].Endpoint)
}

func TestLoadEndpointTable_Invalid(t *testing.T) {
	testCases := map[string]string{
		"duplicate schema": "fitbit:\n  steps: omh:step-count\n  steps2: omh:step-count\n",
		"invalid schema":   "fitbit:\n  steps: step-count\n",
		"not yaml":         "fitbit: [",
	}
	for name, doc := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadEndpointTable([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadEndpointFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "endpoints.yaml")
	require.NoError(t, os.WriteFile(path, []byte("omron:\n  bp: omh:blood-pressure:1.0\n"), 0o600))

	table, err := LoadEndpointFile(path)
	require.NoError(t, err)
	endpoint, ok := table.Endpoint("omron", SchemaKey{Namespace: "omh", Name: "blood-pressure"})
	assert.True(t, ok)
	assert.Equal(t, "bp", endpoint)

	_, err = LoadEndpointFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestEndpointTable_Validate(t *testing.T) {
	table := DefaultEndpointTable()
	assert.NoError(t, table.Validate([]string{"fitbit", "Withings"}))
	err := table.Validate([]string{"fitbit", "omron", "ihealth"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ihealth, omron")
}

func TestParseSchemaKey(t *testing.T) {
	key, err := ParseSchemaKey("omh:heart-rate:1.0")
	require.NoError(t, err)
	assert.Equal(t, SchemaKey{Namespace: "omh", Name: "heart-rate"}, key)
	assert.Equal(t, "omh:heart-rate", key.String())

	for _, s := range []string{"", "omh", ":x", "a:b:c:d"} {
		_, err := ParseSchemaKey(s)
		assert.Error(t, err, s)
	}
}
