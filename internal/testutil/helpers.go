// Package testutil holds shared helpers for HTTP handler tests.
package testutil

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/TimurManjosov/flagdeck/internal/api"
	"github.com/TimurManjosov/flagdeck/internal/flags"
	"github.com/TimurManjosov/flagdeck/internal/state"
)

// NewTestServer creates an API server over a fresh container for testing.
func NewTestServer(t *testing.T, adminKey string) (*api.Server, *state.Container) {
	t.Helper()
	container := state.New(state.WithSalt("test-salt"))
	server := api.NewServer(container, adminKey, 0, zerolog.Nop())
	return server, container
}

// HTTPRequest is a helper for making test HTTP requests.
type HTTPRequest struct {
	Method  string
	Path    string
	Body    string
	Headers map[string]string
}

// Do executes the HTTP request and returns the response recorder.
func (r *HTTPRequest) Do(t *testing.T, handler http.Handler) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if r.Body != "" {
		body = bytes.NewBufferString(r.Body)
	}
	req := httptest.NewRequest(r.Method, r.Path, body)
	if r.Body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// SeedFlags populates the container with test flags.
func SeedFlags(c *state.Container, defs ...flags.Definition) {
	for _, def := range defs {
		c.AddFlag(def)
	}
}
