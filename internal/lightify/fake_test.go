package lightify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// fakeService is an in-process stand-in for the cloud API.
type fakeService struct {
	t *testing.T

	mu          sync.Mutex
	tokens      []string // tokens handed out by successive logins
	logins      int
	validToken  string
	loginStatus int
	devices     string
	calls       []fakeCall

	// rejectNext makes the next authenticated call answer with this status.
	rejectNext int
}

type fakeCall struct {
	Path  string
	Query map[string]string
	Token string
}

func newFakeService(t *testing.T) (*fakeService, *httptest.Server) {
	t.Helper()
	f := &fakeService{
		t:           t,
		tokens:      []string{"T1", "T2", "T3"},
		loginStatus: http.StatusOK,
		devices:     `[]`,
	}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeService) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/")
	query := make(map[string]string)
	for k := range r.URL.Query() {
		query[k] = r.URL.Query().Get(k)
	}
	f.calls = append(f.calls, fakeCall{Path: path, Query: query, Token: r.Header.Get(AuthorizationHeader)})

	switch path {
	case "version":
		_, _ = w.Write([]byte(`{"apiversion":"1.0.0"}`))
		return
	case "session":
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			f.t.Errorf("session body: %v", err)
		}
		if f.loginStatus != http.StatusOK {
			w.WriteHeader(f.loginStatus)
			_, _ = w.Write([]byte(`{"errorCode":5001}`))
			return
		}
		token := f.tokens[f.logins%len(f.tokens)]
		f.logins++
		f.validToken = token
		_, _ = w.Write([]byte(`{"securityToken":"` + token + `","userId":42}`))
		return
	}

	if f.rejectNext != 0 {
		status := f.rejectNext
		f.rejectNext = 0
		w.WriteHeader(status)
		return
	}
	if r.Header.Get(AuthorizationHeader) != f.validToken {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	switch path {
	case "devices":
		_, _ = w.Write([]byte(f.devices))
	case "device/set", "device/all/set":
		_, _ = w.Write([]byte(`{"returnCode":0}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// callsTo returns the recorded calls for path.
func (f *fakeService) callsTo(path string) []fakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []fakeCall
	for _, c := range f.calls {
		if c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeService) set(fn func(f *fakeService)) {
	f.mu.Lock()
	fn(f)
	f.mu.Unlock()
}

func testCredentials() Credentials {
	return Credentials{Username: "user@example.com", Password: "secret", Serial: "OSR0123"}
}
