package lightify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
)

// Endpoints used by the session.
const (
	endpointVersion = "version"
	endpointSession = "session"
)

// Credentials identify the account and gateway at login.
type Credentials struct {
	Username string
	Password string

	// Serial is the gateway serial number.
	Serial string
}

// SessionOptions configures a Session.
type SessionOptions struct {
	// ReloginOnAuthFailure renews the session and retries once when an
	// authenticated call is answered with 401 or 403.
	ReloginOnAuthFailure bool

	// Logger is optional.
	Logger Logger

	// OnLogin is called after every successful login, including renewals.
	OnLogin func()

	// OnInvalidate is called when the service rejects the current token.
	OnInvalidate func()
}

// Session holds the security token for one gateway.
//
// Thread Safety: All methods are safe for concurrent use. Token reads take
// a read lock; renewals are serialized so concurrent 401s trigger one login.
type Session struct {
	client       *Client
	creds        Credentials
	relogin      bool
	onLogin      func()
	onInvalidate func()
	logger       Logger

	mu         sync.RWMutex
	token      string
	userID     string
	apiVersion string

	renewMu sync.Mutex
}

// loginRequest is the body of POST session.
type loginRequest struct {
	Username     string `json:"username"`
	Password     string `json:"password"`
	SerialNumber string `json:"serialNumber"`
}

// loginResponse is the body returned by POST session.
type loginResponse struct {
	SecurityToken string `json:"securityToken"`
	UserID        any    `json:"userId"`
}

// NewSession creates an unauthenticated session. Call Login before Call.
func NewSession(client *Client, creds Credentials, opts SessionOptions) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Session{
		client:       client,
		creds:        creds,
		relogin:      opts.ReloginOnAuthFailure,
		onLogin:      opts.OnLogin,
		onInvalidate: opts.OnInvalidate,
		logger:       logger,
	}
}

// Login queries the API version and exchanges the credentials for a token.
//
// Returns:
//   - ErrAuthRejected: the service answered 4xx to the credentials
//   - ErrLoginFailed: any other failure; the caller may retry
func (s *Session) Login(ctx context.Context) error {
	s.renewMu.Lock()
	defer s.renewMu.Unlock()
	return s.login(ctx)
}

// login runs with renewMu held.
func (s *Session) login(ctx context.Context) error {
	s.lookupVersion(ctx)

	resp, err := s.client.Do(ctx, http.MethodPost, endpointSession, nil, "", loginRequest{
		Username:     s.creds.Username,
		Password:     s.creds.Password,
		SerialNumber: s.creds.Serial,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return fmt.Errorf("%w: status %d: %s", ErrAuthRejected, resp.StatusCode, truncate(resp.Body))
	}
	if !resp.OK() {
		return fmt.Errorf("%w: status %d", ErrLoginFailed, resp.StatusCode)
	}

	var body loginResponse
	if err := resp.Decode(&body); err != nil {
		return fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}
	if body.SecurityToken == "" {
		return fmt.Errorf("%w: response has no securityToken", ErrLoginFailed)
	}

	userID := ""
	if body.UserID != nil {
		userID = fmt.Sprint(body.UserID)
	}

	s.mu.Lock()
	s.token = body.SecurityToken
	s.userID = userID
	s.mu.Unlock()

	s.logger.Info("logged in to lightify", "user_id", userID)

	if s.onLogin != nil {
		s.onLogin()
	}
	return nil
}

// lookupVersion logs the service API version. Failure is only a warning.
func (s *Session) lookupVersion(ctx context.Context) {
	resp, err := s.client.Do(ctx, http.MethodGet, endpointVersion, nil, "", nil)
	if err != nil {
		s.logger.Warn("api version lookup failed", "error", err)
		return
	}
	if !resp.OK() {
		s.logger.Warn("api version lookup failed", "status", resp.StatusCode)
		return
	}

	var body struct {
		APIVersion string `json:"apiversion"`
	}
	if err := resp.Decode(&body); err != nil {
		s.logger.Warn("api version lookup failed", "error", err)
		return
	}

	s.mu.Lock()
	s.apiVersion = body.APIVersion
	s.mu.Unlock()

	s.logger.Info("lightify api version", "version", body.APIVersion)
}

// Call executes an authenticated request.
//
// A 401 or 403 invalidates the token. With ReloginOnAuthFailure the session
// logs in again and the request is retried once; otherwise ErrUnauthorized
// is returned. With ReloginOnAuthFailure a call made while no token is held
// logs in first, so a failed renewal is retried by the next call. Any other non-2xx status is returned as ErrRequestFailed
// together with the response.
func (s *Session) Call(ctx context.Context, method, endpoint string, params url.Values) (*Response, error) {
	token := s.Token()
	if token == "" {
		if !s.relogin {
			return nil, ErrNotAuthenticated
		}
		var err error
		if token, err = s.renew(ctx, ""); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNotAuthenticated, err)
		}
	}

	resp, err := s.client.Do(ctx, method, endpoint, params, token, nil)
	if err != nil {
		return nil, err
	}

	if resp.AuthFailure() {
		s.invalidate(token)
		if !s.relogin {
			return resp, fmt.Errorf("%w: %s status %d", ErrUnauthorized, endpoint, resp.StatusCode)
		}

		s.logger.Warn("session rejected, logging in again", "endpoint", endpoint, "status", resp.StatusCode)
		token, err = s.renew(ctx, token)
		if err != nil {
			return resp, fmt.Errorf("%w: renewing session: %w", ErrUnauthorized, err)
		}

		resp, err = s.client.Do(ctx, method, endpoint, params, token, nil)
		if err != nil {
			return nil, err
		}
		if resp.AuthFailure() {
			s.invalidate(token)
			return resp, fmt.Errorf("%w: %s status %d after renewal", ErrUnauthorized, endpoint, resp.StatusCode)
		}
	}

	if !resp.OK() {
		return resp, fmt.Errorf("%w: %s status %d: %s", ErrRequestFailed, endpoint, resp.StatusCode, truncate(resp.Body))
	}
	return resp, nil
}

// renew logs in unless another caller already replaced the stale token.
func (s *Session) renew(ctx context.Context, stale string) (string, error) {
	s.renewMu.Lock()
	defer s.renewMu.Unlock()

	if current := s.Token(); current != "" && current != stale {
		return current, nil
	}
	if err := s.login(ctx); err != nil {
		return "", err
	}
	return s.Token(), nil
}

// invalidate clears the token if it still equals stale.
func (s *Session) invalidate(stale string) {
	s.mu.Lock()
	cleared := s.token == stale && stale != ""
	if cleared {
		s.token = ""
	}
	s.mu.Unlock()

	if cleared && s.onInvalidate != nil {
		s.onInvalidate()
	}
}

// Token returns the current security token, or "" when unauthenticated.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// UserID returns the user id from the last login.
func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// APIVersion returns the version reported by the service, if known.
func (s *Session) APIVersion() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.apiVersion
}

// IsAuthenticated reports whether a token is held.
func (s *Session) IsAuthenticated() bool {
	return s.Token() != ""
}

// truncate shortens a response body for error messages.
func truncate(body []byte) string {
	const limit = 200
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
