// Package workspacetest provides an in-process fake of the workspace
// control-plane API for tests.
package workspacetest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

// Token is the bearer token the fake expects.
const Token = "test-token"

// Call is one recorded request.
type Call struct {
	Method string
	Path   string
	Query  url.Values
	Body   json.RawMessage
}

// Decode unmarshals the request body into v.
func (c Call) Decode(t testing.TB, v any) {
	t.Helper()
	if err := json.Unmarshal(c.Body, v); err != nil {
		t.Fatalf("decode %s %s body: %v", c.Method, c.Path, err)
	}
}

// Reply is a canned response. Status 0 means 200.
type Reply struct {
	Status int
	Body   any
	// Raw is written verbatim instead of Body when non-nil.
	Raw []byte
}

// Server is a fake tenant. Unmatched GETs answer 404; unmatched POST and
// PUT requests answer 200 {}.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	fixtures map[string]Reply
	calls    []Call
}

func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{fixtures: map[string]Reply{}}

	r := chi.NewRouter()
	r.Use(s.record)
	r.Use(authorize)
	r.HandleFunc("/api/*", s.serve)

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// On registers a 200 response for method+path regardless of query.
// path is the versioned endpoint, e.g. "2.0/clusters/list".
func (s *Server) On(method, path string, body any) {
	s.Reply(method, path, nil, Reply{Body: body})
}

// OnQuery registers a 200 response for method+path+exact query.
func (s *Server) OnQuery(method, path string, query url.Values, body any) {
	s.Reply(method, path, query, Reply{Body: body})
}

// Fail makes method+path(+query) answer with status and a raw body.
func (s *Server) Fail(method, path string, query url.Values, status int, body string) {
	s.Reply(method, path, query, Reply{Status: status, Raw: []byte(body)})
}

func (s *Server) Reply(method, path string, query url.Values, reply Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fixtures[key(method, "/api/"+path, query)] = reply
}

// Calls returns the recorded requests for method and versioned path, in
// order. An empty method matches any.
func (s *Server) Calls(method, path string) []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Call
	for _, c := range s.calls {
		if (method == "" || c.Method == method) && c.Path == "/api/"+path {
			out = append(out, c)
		}
	}
	return out
}

// All returns every recorded request in order.
func (s *Server) All() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		s.mu.Lock()
		s.calls = append(s.calls, Call{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Body:   body,
		})
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+Token {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error_code": "UNAUTHENTICATED",
				"message":    "invalid token",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	reply, ok := s.fixtures[key(r.Method, r.URL.Path, r.URL.Query())]
	if !ok {
		reply, ok = s.fixtures[key(r.Method, r.URL.Path, nil)]
	}
	s.mu.Unlock()

	if !ok {
		if r.Method == http.MethodGet {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error_code": "RESOURCE_DOES_NOT_EXIST",
				"message":    "no fixture for " + r.URL.Path,
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{})
		return
	}

	status := reply.Status
	if status == 0 {
		status = http.StatusOK
	}
	if reply.Raw != nil {
		w.WriteHeader(status)
		w.Write(reply.Raw)
		return
	}
	if reply.Body == nil {
		w.WriteHeader(status)
		return
	}
	writeJSON(w, status, reply.Body)
}

func key(method, path string, query url.Values) string {
	k := strings.ToUpper(method) + " " + path
	if len(query) > 0 {
		k += "?" + query.Encode()
	}
	return k
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
