package shimmer

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"
)

//go:embed endpoints.yaml
var defaultEndpoints []byte

// EndpointEntry is one row of the endpoint table
type EndpointEntry struct {
	Shim     string
	Schema   SchemaKey
	Endpoint string
}

// EndpointTable resolves the data endpoint of a shim for a schema
type EndpointTable struct {
	endpoints map[string]map[SchemaKey]string
}

// LoadEndpointTable parses a YAML document of the form
//
//	shim:
//	  endpoint: namespace:name
//
// Each (shim, schema) pair must be unique.
func LoadEndpointTable(data []byte) (*EndpointTable, error) {
	var document map[string]map[string]string
	if err := yaml.Unmarshal(data, &document); err != nil {
		return nil, fmt.Errorf("cannot parse endpoint table: %w", err)
	}
	table := &EndpointTable{endpoints: map[string]map[SchemaKey]string{}}

	shims := make([]string, 0, len(document))
	for shim := range document {
		shims = append(shims, shim)
	}
	sort.Strings(shims)
	for _, shim := range shims {
		key := strings.ToLower(strings.TrimSpace(shim))
		if key == "" {
			return nil, fmt.Errorf("endpoint table: empty shim name")
		}
		if _, ok := table.endpoints[key]; ok {
			return nil, fmt.Errorf("endpoint table: shim %s listed twice", key)
		}
		bySchema := map[SchemaKey]string{}
		endpoints := make([]string, 0, len(document[shim]))
		for endpoint := range document[shim] {
			endpoints = append(endpoints, endpoint)
		}
		sort.Strings(endpoints)
		for _, endpoint := range endpoints {
			if strings.TrimSpace(endpoint) == "" {
				return nil, fmt.Errorf("endpoint table: empty endpoint for shim %s", key)
			}
			schemaKey, err := ParseSchemaKey(document[shim][endpoint])
			if err != nil {
				return nil, fmt.Errorf("endpoint table: shim %s endpoint %s: %w", key, endpoint, err)
			}
			if other, ok := bySchema[schemaKey]; ok {
				return nil, fmt.Errorf("endpoint table: shim %s maps %s to both %s and %s", key, schemaKey, other, endpoint)
			}
			bySchema[schemaKey] = endpoint
		}
		table.endpoints[key] = bySchema
	}
	return table, nil
}

// LoadEndpointFile reads the endpoint table from path
func LoadEndpointFile(path string) (*EndpointTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return LoadEndpointTable(data)
}

// DefaultEndpointTable returns the built in endpoint table
func DefaultEndpointTable() *EndpointTable {
	table, err := LoadEndpointTable(defaultEndpoints)
	if err != nil {
		panic(err)
	}
	return table
}

// Endpoint returns the data endpoint of shimName for the schema
func (t *EndpointTable) Endpoint(shimName string, key SchemaKey) (string, bool) {
	endpoint, ok := t.endpoints[strings.ToLower(shimName)][key]
	return endpoint, ok
}

// Shims returns all shims of the table, sorted
func (t *EndpointTable) Shims() []string {
	shims := make([]string, 0, len(t.endpoints))
	for shim := range t.endpoints {
		shims = append(shims, shim)
	}
	sort.Strings(shims)
	return shims
}

// Entries returns all rows for shimName sorted by endpoint
func (t *EndpointTable) Entries(shimName string) []EndpointEntry {
	shim := strings.ToLower(shimName)
	entries := []EndpointEntry{}
	for key, endpoint := range t.endpoints[shim] {
		entries = append(entries, EndpointEntry{Shim: shim, Schema: key, Endpoint: endpoint})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Endpoint < entries[j].Endpoint
	})
	return entries
}

// Validate returns an error listing all shimNames which are missing in the table
func (t *EndpointTable) Validate(shimNames []string) error {
	var missing []string
	for _, name := range shimNames {
		if _, ok := t.endpoints[strings.ToLower(name)]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("no endpoints for shims %s", strings.Join(missing, ", "))
	}
	return nil
}
