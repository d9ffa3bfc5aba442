package shimmer

import (
	"fmt"
	"strings"
)

// Schema identifies a data type a shim can produce
type Schema struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
	Version   string `json:"version"`
}

// Key returns the version independent key of the schema
func (s Schema) Key() SchemaKey {
	return SchemaKey{Namespace: s.Namespace, Name: s.Name}
}

func (s Schema) String() string {
	if s.Version == "" {
		return s.Key().String()
	}
	return s.Key().String() + ":" + s.Version
}

// SchemaKey is a schema without version, written as "namespace:name"
type SchemaKey struct {
	Namespace string
	Name      string
}

func (k SchemaKey) String() string {
	return k.Namespace + ":" + k.Name
}

// ParseSchemaKey parses "namespace:name" or "namespace:name:version". The version is ignored.
func ParseSchemaKey(s string) (SchemaKey, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
		return SchemaKey{}, fmt.Errorf("invalid schema %q, expected namespace:name", s)
	}
	return SchemaKey{Namespace: parts[0], Name: parts[1]}, nil
}

// SchemaList is the list of schemas of one shim as reported by the schemas resource
type SchemaList struct {
	ShimName string   `json:"shimName"`
	Schemas  []Schema `json:"schemas"`
}

// Shim is the cached state of one shim
type Shim struct {
	Name          string
	Schemas       []Schema
	Configuration *Configuration
	Authenticated bool
}

// Schema returns the newest schema of the shim with the given key
func (s Shim) Schema(key SchemaKey) (Schema, bool) {
	var match Schema
	found := false
	for _, schema := range s.Schemas {
		if schema.Key() == key && (!found || schema.Version > match.Version) {
			match = schema
			found = true
		}
	}
	return match, found
}

func (s Shim) clone() Shim {
	c := s
	c.Schemas = append([]Schema{}, s.Schemas...)
	if s.Configuration != nil {
		c.Configuration = s.Configuration.Clone()
	}
	return c
}

// AuthorizationRecord is one user with the set of shims it has authorized
type AuthorizationRecord struct {
	Username string   `json:"username"`
	Auths    []string `json:"auths"`
}

// User is a candidate or selected end user
type User struct {
	ID             string
	Authorizations []string
	Statistics     map[string]interface{}
}

// Authorized returns true if the user has authorized shimName
func (u User) Authorized(shimName string) bool {
	for _, a := range u.Authorizations {
		if a == shimName {
			return true
		}
	}
	return false
}

func userFromRecord(record AuthorizationRecord) User {
	return User{ID: record.Username, Authorizations: append([]string{}, record.Auths...)}
}

// RegistryEntry is a shim as listed by the registry resource
type RegistryEntry struct {
	ShimKey      string   `json:"shimKey"`
	Label        string   `json:"label"`
	Endpoints    []string `json:"endpoints"`
	ClientID     string   `json:"clientId,omitempty"`
	ClientSecret string   `json:"clientSecret,omitempty"`
}

// AuthorizationRequest is the answer of the server to an authorization request
type AuthorizationRequest struct {
	StateKey         string `json:"stateKey"`
	Username         string `json:"username"`
	RedirectURI      string `json:"redirectUri"`
	AuthorizationURL string `json:"authorizationUrl"`
	IsAuthorized     bool   `json:"isAuthorized"`
}
