package lightify

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestSession(t *testing.T, relogin bool) (*fakeService, *Session) {
	t.Helper()
	f, srv := newFakeService(t)
	s := NewSession(NewClient(srv.URL, time.Second), testCredentials(), SessionOptions{
		ReloginOnAuthFailure: relogin,
	})
	return f, s
}

func TestSession_Login(t *testing.T) {
	f, s := newTestSession(t, true)

	if s.IsAuthenticated() {
		t.Fatal("IsAuthenticated() = true before Login")
	}
	if err := s.Login(context.Background()); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	if s.Token() != "T1" {
		t.Errorf("Token() = %q, want T1", s.Token())
	}
	if s.UserID() != "42" {
		t.Errorf("UserID() = %q, want 42", s.UserID())
	}
	if s.APIVersion() != "1.0.0" {
		t.Errorf("APIVersion() = %q, want 1.0.0", s.APIVersion())
	}
	if len(f.callsTo("version")) != 1 {
		t.Errorf("version calls = %d, want 1", len(f.callsTo("version")))
	}
}

func TestSession_LoginErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{"bad credentials", http.StatusUnauthorized, ErrAuthRejected},
		{"bad request", http.StatusBadRequest, ErrAuthRejected},
		{"server error", http.StatusInternalServerError, ErrLoginFailed},
		{"unavailable", http.StatusServiceUnavailable, ErrLoginFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, s := newTestSession(t, true)
			f.set(func(f *fakeService) { f.loginStatus = tt.status })

			err := s.Login(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Login() error = %v, want %v", err, tt.wantErr)
			}
			if s.IsAuthenticated() {
				t.Error("IsAuthenticated() = true after failed login")
			}
		})
	}
}

func TestSession_LoginUnreachable(t *testing.T) {
	s := NewSession(NewClient("http://127.0.0.1:1/", 200*time.Millisecond), testCredentials(), SessionOptions{})
	if err := s.Login(context.Background()); !errors.Is(err, ErrLoginFailed) {
		t.Errorf("Login() error = %v, want ErrLoginFailed", err)
	}
}

func TestSession_LoginCallsOnLogin(t *testing.T) {
	_, srv := newFakeService(t)
	var calls int32
	s := NewSession(NewClient(srv.URL, time.Second), testCredentials(), SessionOptions{
		OnLogin: func() { atomic.AddInt32(&calls, 1) },
	})

	if err := s.Login(context.Background()); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("OnLogin calls = %d, want 1", calls)
	}
}

func TestSession_CallNotAuthenticated(t *testing.T) {
	_, s := newTestSession(t, false)
	if _, err := s.Call(context.Background(), http.MethodGet, "devices", nil); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("Call() error = %v, want ErrNotAuthenticated", err)
	}
}

func TestSession_CallLogsInLazily(t *testing.T) {
	f, s := newTestSession(t, true)

	if _, err := s.Call(context.Background(), http.MethodGet, "devices", nil); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if len(f.callsTo("session")) != 1 {
		t.Errorf("session calls = %d, want 1", len(f.callsTo("session")))
	}
	if !s.IsAuthenticated() {
		t.Error("IsAuthenticated() = false after lazy login")
	}
}

func TestSession_CallLazyLoginFails(t *testing.T) {
	f, s := newTestSession(t, true)
	f.set(func(f *fakeService) { f.loginStatus = http.StatusUnauthorized })

	_, err := s.Call(context.Background(), http.MethodGet, "devices", nil)
	if !errors.Is(err, ErrNotAuthenticated) || !errors.Is(err, ErrAuthRejected) {
		t.Errorf("Call() error = %v, want ErrNotAuthenticated wrapping ErrAuthRejected", err)
	}
	if len(f.callsTo("devices")) != 0 {
		t.Error("devices must not be called without a token")
	}
}

func TestSession_OnInvalidate(t *testing.T) {
	f, srv := newFakeService(t)
	var invalidated int32
	s := NewSession(NewClient(srv.URL, time.Second), testCredentials(), SessionOptions{
		OnInvalidate: func() { atomic.AddInt32(&invalidated, 1) },
	})
	if err := s.Login(context.Background()); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	f.set(func(f *fakeService) { f.rejectNext = http.StatusUnauthorized })

	_, _ = s.Call(context.Background(), http.MethodGet, "devices", nil)
	if atomic.LoadInt32(&invalidated) != 1 {
		t.Errorf("OnInvalidate calls = %d, want 1", invalidated)
	}
}

func TestSession_CallAttachesToken(t *testing.T) {
	f, s := newTestSession(t, true)
	if err := s.Login(context.Background()); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	if _, err := s.Call(context.Background(), http.MethodGet, "devices", nil); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	calls := f.callsTo("devices")
	if len(calls) != 1 || calls[0].Token != "T1" {
		t.Errorf("devices calls = %+v, want one with token T1", calls)
	}
}

func TestSession_CallRenewsOnAuthFailure(t *testing.T) {
	f, s := newTestSession(t, true)
	if err := s.Login(context.Background()); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	// Expire T1 on the server side.
	f.set(func(f *fakeService) { f.validToken = "expired" })

	if _, err := s.Call(context.Background(), http.MethodGet, "devices", nil); err != nil {
		t.Fatalf("Call() error = %v", err)
	}

	if s.Token() != "T2" {
		t.Errorf("Token() = %q, want T2 after renewal", s.Token())
	}
	calls := f.callsTo("devices")
	if len(calls) != 2 {
		t.Fatalf("devices calls = %d, want 2 (original + retry)", len(calls))
	}
	if calls[1].Token != "T2" {
		t.Errorf("retry token = %q, want T2", calls[1].Token)
	}
}

func TestSession_CallNoRelogin(t *testing.T) {
	f, s := newTestSession(t, false)
	if err := s.Login(context.Background()); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	f.set(func(f *fakeService) { f.rejectNext = http.StatusForbidden })

	_, err := s.Call(context.Background(), http.MethodGet, "devices", nil)
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Call() error = %v, want ErrUnauthorized", err)
	}
	if s.IsAuthenticated() {
		t.Error("IsAuthenticated() = true after a rejected call")
	}
	if len(f.callsTo("session")) != 1 {
		t.Errorf("session calls = %d, want 1 (no renewal)", len(f.callsTo("session")))
	}
}

func TestSession_CallRenewalFails(t *testing.T) {
	f, s := newTestSession(t, true)
	if err := s.Login(context.Background()); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	f.set(func(f *fakeService) {
		f.rejectNext = http.StatusUnauthorized
		f.loginStatus = http.StatusUnauthorized
	})

	_, err := s.Call(context.Background(), http.MethodGet, "devices", nil)
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Call() error = %v, want ErrUnauthorized", err)
	}
	if !errors.Is(err, ErrAuthRejected) {
		t.Errorf("Call() error = %v, want it to wrap ErrAuthRejected", err)
	}
}

func TestSession_CallOtherStatus(t *testing.T) {
	f, s := newTestSession(t, true)
	if err := s.Login(context.Background()); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	f.set(func(f *fakeService) { f.rejectNext = http.StatusBadRequest })

	resp, err := s.Call(context.Background(), http.MethodGet, "devices", nil)
	if !errors.Is(err, ErrRequestFailed) {
		t.Errorf("Call() error = %v, want ErrRequestFailed", err)
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Call() response = %+v, want status 400", resp)
	}
	if !s.IsAuthenticated() {
		t.Error("a 400 must not invalidate the session")
	}
}

func TestSession_ConcurrentRenewalLogsInOnce(t *testing.T) {
	f, s := newTestSession(t, true)
	if err := s.Login(context.Background()); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	f.set(func(f *fakeService) { f.validToken = "expired" })

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Call(context.Background(), http.MethodGet, "devices", nil); err != nil {
				t.Errorf("Call() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if got := len(f.callsTo("session")); got != 2 {
		t.Errorf("session calls = %d, want 2 (initial + one renewal)", got)
	}
}
