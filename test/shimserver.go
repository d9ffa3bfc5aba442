package test

import (
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/shimmer-console/core/logger"
	"github.com/relabs-tech/shimmer-console/shimmer"
)

// ShimServer is an in-memory shim server with the REST API the console talks to
type ShimServer struct {
	router *mux.Router

	mu             sync.Mutex
	registry       map[string]*shimmer.RegistryEntry
	configurations map[string]shimmer.Configuration
	schemas        map[string][]shimmer.Schema
	users          map[string][]string
	pending        map[string]pendingAuthorization
	data           map[string]interface{}
	requests       []string
	failing        map[string]int
}

type pendingAuthorization struct {
	username    string
	shim        string
	redirectURL string
}

// NewShimServer returns a server with the shims fitbit and withings and without users
func NewShimServer() *ShimServer {
	s := &ShimServer{
		router:         mux.NewRouter(),
		registry:       map[string]*shimmer.RegistryEntry{},
		configurations: map[string]shimmer.Configuration{},
		schemas:        map[string][]shimmer.Schema{},
		users:          map[string][]string{},
		pending:        map[string]pendingAuthorization{},
		data:           map[string]interface{}{},
		failing:        map[string]int{},
	}
	s.AddShim("fitbit", []shimmer.Schema{
		{Namespace: "omh", Name: "step-count", Version: "1.0"},
		{Namespace: "omh", Name: "body-weight", Version: "1.0"},
	}, []shimmer.ConfigurationSetting{
		{SettingID: "client.id", Type: shimmer.SettingTypeString, Required: true, Label: "Client ID"},
		{SettingID: "partner.sample-size", Type: shimmer.SettingTypeInteger, Label: "Sample size"},
	}, map[string]interface{}{"client.id": "fitbit-client", "partner.sample-size": "3.7"})
	s.AddShim("withings", []shimmer.Schema{
		{Namespace: "omh", Name: "heart-rate", Version: "1.0"},
	}, []shimmer.ConfigurationSetting{
		{SettingID: "threshold", Type: shimmer.SettingTypeFloat, Label: "Threshold"},
		{SettingID: "enabled", Type: shimmer.SettingTypeBoolean, Label: "Enabled"},
	}, map[string]interface{}{"threshold": "2.5", "enabled": true})

	logger.AddRequestID(s.router)
	s.router.HandleFunc("/registry", s.listRegistry).Methods(http.MethodGet)
	s.router.HandleFunc("/authorizations", s.searchAuthorizations).Methods(http.MethodGet)
	s.router.HandleFunc("/configuration", s.listConfigurations).Methods(http.MethodGet)
	s.router.HandleFunc("/schemas", s.listSchemas).Methods(http.MethodGet)
	s.router.HandleFunc("/authorize/{shim}", s.authorize).Methods(http.MethodGet)
	s.router.HandleFunc("/oauth/{shim}", s.oauth).Methods(http.MethodGet)
	s.router.HandleFunc("/de-authorize/{shim}", s.deauthorize).Methods(http.MethodDelete)
	s.router.HandleFunc("/data/{shim}/{endpoint}", s.readData).Methods(http.MethodGet)
	s.router.HandleFunc("/shim/{shim}/config", s.updateCredentials).Methods(http.MethodPut)
	s.router.HandleFunc("/{shim}/configuration", s.saveConfiguration).Methods(http.MethodPost)
	return s
}

// ServeHTTP implements http.Handler
func (s *ShimServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, r.Method+" "+r.URL.Path)
	status, failing := s.failing[r.URL.Path]
	s.mu.Unlock()
	if failing {
		http.Error(w, "failure requested by test", status)
		return
	}
	s.router.ServeHTTP(w, r)
}

// AddShim adds or replaces a shim
func (s *ShimServer) AddShim(name string, schemas []shimmer.Schema, settings []shimmer.ConfigurationSetting, values map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registry[name] = &shimmer.RegistryEntry{ShimKey: name, Label: strings.ToUpper(name[:1]) + name[1:], Endpoints: []string{}}
	s.schemas[name] = schemas
	s.configurations[name] = shimmer.Configuration{ShimName: name, Settings: settings, Values: values}
}

// RemoveShim removes a shim
func (s *ShimServer) RemoveShim(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.registry, name)
	delete(s.schemas, name)
	delete(s.configurations, name)
}

// AddUser adds a user which has authorized shims
func (s *ShimServer) AddUser(username string, shims ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[username] = append([]string{}, shims...)
}

// Authorizations returns the authorized shims of username
func (s *ShimServer) Authorizations(username string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.users[username]...)
}

// SetData sets the payload body returned for a shim endpoint
func (s *ShimServer) SetData(shim, endpoint string, body interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[shim+"/"+endpoint] = body
}

// Fail makes all requests to path fail with status. Status 0 removes the failure.
func (s *ShimServer) Fail(path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.failing, path)
		return
	}
	s.failing[path] = status
}

// Requests returns all requests as "METHOD path" in the order they were received
func (s *ShimServer) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.requests...)
}

// Configuration returns the stored configuration of shim
func (s *ShimServer) Configuration(shim string) shimmer.Configuration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.configurations[shim]
}

// RegistryEntry returns the registry entry of shim
func (s *ShimServer) RegistryEntry(shim string) shimmer.RegistryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.registry[shim]; ok {
		return *e
	}
	return shimmer.RegistryEntry{}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *ShimServer) listRegistry(w http.ResponseWriter, r *http.Request) {
	available := r.URL.Query().Get("available") == "true"
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := []shimmer.RegistryEntry{}
	for _, name := range sortedKeys(s.registry) {
		e := s.registry[name]
		if available && e.ClientID == "" {
			continue
		}
		entries = append(entries, *e)
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *ShimServer) searchAuthorizations(w http.ResponseWriter, r *http.Request) {
	term := strings.ToLower(r.URL.Query().Get("username"))
	s.mu.Lock()
	defer s.mu.Unlock()
	records := []shimmer.AuthorizationRecord{}
	for _, username := range sortedKeys(s.users) {
		if strings.Contains(strings.ToLower(username), term) {
			records = append(records, shimmer.AuthorizationRecord{Username: username, Auths: s.users[username]})
		}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *ShimServer) listConfigurations(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	configurations := []shimmer.Configuration{}
	for _, name := range sortedKeys(s.configurations) {
		configurations = append(configurations, s.configurations[name])
	}
	writeJSON(w, http.StatusOK, configurations)
}

func (s *ShimServer) saveConfiguration(w http.ResponseWriter, r *http.Request) {
	shim := mux.Vars(r)["shim"]
	var configuration shimmer.Configuration
	if err := json.NewDecoder(r.Body).Decode(&configuration); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.configurations[shim]; !ok {
		http.Error(w, "unknown shim", http.StatusNotFound)
		return
	}
	configuration.ShimName = shim
	s.configurations[shim] = configuration
	writeJSON(w, http.StatusOK, configuration)
}

func (s *ShimServer) listSchemas(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lists := []shimmer.SchemaList{}
	for _, name := range sortedKeys(s.schemas) {
		lists = append(lists, shimmer.SchemaList{ShimName: name, Schemas: s.schemas[name]})
	}
	writeJSON(w, http.StatusOK, lists)
}

func (s *ShimServer) authorized(username, shim string) bool {
	for _, a := range s.users[username] {
		if a == shim {
			return true
		}
	}
	return false
}

func (s *ShimServer) authorize(w http.ResponseWriter, r *http.Request) {
	shim := mux.Vars(r)["shim"]
	username := r.URL.Query().Get("username")
	if username == "" {
		http.Error(w, "username missing", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.registry[shim]; !ok {
		http.Error(w, "unknown shim", http.StatusNotFound)
		return
	}
	request := shimmer.AuthorizationRequest{Username: username}
	if s.authorized(username, shim) {
		request.IsAuthorized = true
		writeJSON(w, http.StatusOK, request)
		return
	}
	request.StateKey = uuid.NewString()
	request.RedirectURI = "http://" + r.Host + "/authorize/" + shim + "/callback"
	request.AuthorizationURL = "http://" + r.Host + "/oauth/" + shim + "?state=" + request.StateKey
	s.pending[request.StateKey] = pendingAuthorization{
		username:    username,
		shim:        shim,
		redirectURL: r.URL.Query().Get("client_redirect_url"),
	}
	writeJSON(w, http.StatusOK, request)
}

// oauth plays the provider page. Visiting it grants the authorization.
func (s *ShimServer) oauth(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	s.mu.Lock()
	pending, ok := s.pending[state]
	if ok {
		delete(s.pending, state)
		if !s.authorized(pending.username, pending.shim) {
			s.users[pending.username] = append(s.users[pending.username], pending.shim)
		}
	}
	s.mu.Unlock()
	if !ok {
		http.Error(w, "unknown state", http.StatusBadRequest)
		return
	}
	if pending.redirectURL != "" {
		http.Redirect(w, r, pending.redirectURL, http.StatusFound)
		return
	}
	w.Write([]byte("authorization complete"))
}

func (s *ShimServer) deauthorize(w http.ResponseWriter, r *http.Request) {
	shim := mux.Vars(r)["shim"]
	username := r.URL.Query().Get("username")
	if username == "" {
		http.Error(w, "username missing", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	auths := []string{}
	for _, a := range s.users[username] {
		if a != shim {
			auths = append(auths, a)
		}
	}
	if _, ok := s.users[username]; ok {
		s.users[username] = auths
	}
	writeJSON(w, http.StatusOK, []string{"Success: Authorization Removed."})
}

func (s *ShimServer) readData(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	query := r.URL.Query()
	username := query.Get("username")
	for _, p := range []string{"username", "dateStart", "dateEnd", "normalize"} {
		if query.Get(p) == "" {
			http.Error(w, p+" missing", http.StatusBadRequest)
			return
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.authorized(username, vars["shim"]) {
		http.Error(w, "user has not authorized "+vars["shim"], http.StatusNotFound)
		return
	}
	body, ok := s.data[vars["shim"]+"/"+vars["endpoint"]]
	if !ok {
		body = []interface{}{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"shim":      vars["shim"],
		"groupName": "console",
		"body":      body,
	})
}

func (s *ShimServer) updateCredentials(w http.ResponseWriter, r *http.Request) {
	shim := mux.Vars(r)["shim"]
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.registry[shim]
	if !ok {
		http.Error(w, "unknown shim", http.StatusNotFound)
		return
	}
	e.ClientID = r.URL.Query().Get("clientId")
	e.ClientSecret = r.URL.Query().Get("clientSecret")
	w.WriteHeader(http.StatusNoContent)
}
