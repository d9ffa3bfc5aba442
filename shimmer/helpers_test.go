package shimmer

import (
	"net/http"
	"sync"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/shimmer-console/core/client"
)

// fakeAPI serves canned responses in-process and counts requests
type fakeAPI struct {
	router *mux.Router

	mu       sync.Mutex
	requests []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{router: mux.NewRouter()}
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.Method+" "+r.URL.RequestURI())
	f.mu.Unlock()
	f.router.ServeHTTP(w, r)
}

func (f *fakeAPI) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeAPI) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return ""
	}
	return f.requests[len(f.requests)-1]
}

// respond registers a GET route which answers with the JSON document returned by body
func (f *fakeAPI) respond(path string, body func(r *http.Request) (int, string)) {
	f.router.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		status, text := body(r)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(text))
	})
}

func (f *fakeAPI) static(path string, status int, text string) {
	f.respond(path, func(*http.Request) (int, string) { return status, text })
}

func (f *fakeAPI) resources() *Resources {
	return NewResources(client.NewWithHandler(f))
}

func mustJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}

func decodeBody(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}
