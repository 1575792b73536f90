package cors_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync/atomic"
	"testing"
)

const (
	// common request headers
	headerOrigin = "Origin"

	// preflight-only request headers
	headerACRM = "Access-Control-Request-Method"
	headerACRH = "Access-Control-Request-Headers"

	// common response headers
	headerACAO = "Access-Control-Allow-Origin"
	headerACAC = "Access-Control-Allow-Credentials"

	// preflight-only response headers
	headerACAM = "Access-Control-Allow-Methods"
	headerACAH = "Access-Control-Allow-Headers"
	headerACMA = "Access-Control-Max-Age"

	// actual-only response headers
	headerACEH = "Access-Control-Expose-Headers"

	headerVary = "Vary"
)

const wildcard = "*"

// Headers represents a set of HTTP-header name-value pairs
// in which there are no duplicate names.
type Headers = map[string]string

func newRequest(method string, headers Headers) *http.Request {
	const dummyEndpoint = "https://example.com/whatever"
	req := httptest.NewRequest(method, dummyEndpoint, nil)
	for name, value := range headers {
		req.Header.Add(name, value)
	}
	return req
}

type spyHandler struct {
	called      atomic.Bool
	statusCode  int
	respHeaders Headers
	body        string
}

func newSpyHandler(statusCode int, respHeaders Headers, body string) *spyHandler {
	return &spyHandler{
		statusCode:  statusCode,
		respHeaders: respHeaders,
		body:        body,
	}
}

func (s *spyHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	s.called.Store(true)
	for k, v := range s.respHeaders {
		w.Header().Add(k, v)
	}
	w.WriteHeader(s.statusCode)
	if len(s.body) > 0 {
		io.WriteString(w, s.body)
	}
}

// varyMiddleware stands in for outer middleware that contributes its own
// Vary header before the CORS middleware runs.
type varyMiddleware struct {
	value string
}

func (m varyMiddleware) Wrap(next http.Handler) http.Handler {
	f := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add(headerVary, m.value)
		next.ServeHTTP(w, r)
	}
	return http.HandlerFunc(f)
}

// assertHeaders checks that, for each name in want, the response headers
// carry exactly the wanted values, and that none of the CORS response
// headers outside want are present.
func assertHeaders(t *testing.T, got http.Header, want map[string][]string) {
	t.Helper()
	corsHeaders := []string{
		headerACAO, headerACAC, headerACAM, headerACAH, headerACMA, headerACEH,
	}
	for _, name := range corsHeaders {
		wantValues, ok := want[name]
		if !ok {
			if values := got[name]; len(values) > 0 {
				t.Errorf("response carries unwanted header %s: %q", name, values)
			}
			continue
		}
		if values := got[name]; !slices.Equal(values, wantValues) {
			t.Errorf("got %s: %q; want %q", name, got[name], wantValues)
		}
	}
	if wantValues, ok := want[headerVary]; ok {
		if values := got[headerVary]; !slices.Equal(values, wantValues) {
			t.Errorf("got %s: %q; want %q", headerVary, values, wantValues)
		}
	} else if values := got[headerVary]; len(values) > 0 {
		t.Errorf("response carries unwanted header %s: %q", headerVary, values)
	}
}

func assertStatus(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("got status %d; want %d", got, want)
	}
}

func assertHandlerCalled(t *testing.T, spy *spyHandler, want bool) {
	t.Helper()
	if got := spy.called.Load(); got != want {
		if want {
			t.Error("wrapped handler was not called, but it should have been")
		} else {
			t.Error("wrapped handler was called, but it should not have been")
		}
	}
}
