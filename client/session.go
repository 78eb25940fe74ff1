package client

import (
	"context"
	"log"
	"net/http"
	"os"
	"sync"

	"github.com/pkg/errors"

	"github.com/kumoedu/kumo/core"
)

// Session is a snapshot of the authentication state.
type Session struct {
	Token   string
	User    *Identity
	Loading bool
}

// IsAuthenticated reports whether the session holds a usable identity.
func (s Session) IsAuthenticated() bool {
	return s.Token != "" && s.User != nil
}

// Options configures a SessionStore.
type Options struct {
	BaseURL    string
	Store      CredentialStore
	HTTPClient *http.Client
	Logger     core.Logger

	// OnChange, when set, is invoked with a fresh snapshot after every
	// state transition. It runs outside the store's lock.
	OnChange func(Session)
}

// SessionStore owns the session lifecycle: rehydration on startup, login,
// logout and the forced sign-out triggered by rejected requests. All state
// transitions are atomic; observers never see a token without its user.
type SessionStore struct {
	api      *apiClient
	store    CredentialStore
	logger   core.Logger
	onChange func(Session)

	mu      sync.Mutex
	session Session
}

func NewSessionStore(opts Options) (*SessionStore, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("client: BaseURL is required")
	}
	if opts.Store == nil {
		path, err := DefaultStorePath()
		if err != nil {
			return nil, err
		}
		opts.Store = NewFileStore(path)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Logger == nil {
		opts.Logger = core.NewConsoleLogger(log.New(os.Stderr, "CLIENT : ", log.LstdFlags|log.Lshortfile))
	}

	s := &SessionStore{
		store:    opts.Store,
		logger:   opts.Logger,
		onChange: opts.OnChange,
		session:  Session{Loading: true},
	}

	base := opts.HTTPClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	opts.HTTPClient.Transport = &authTransport{
		base:           base,
		store:          opts.Store,
		logger:         opts.Logger,
		onUnauthorized: s.forceSignOut,
	}
	s.api = &apiClient{baseURL: opts.BaseURL, http: opts.HTTPClient}
	return s, nil
}

// Current returns a snapshot of the session.
func (s *SessionStore) Current() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// Initialize rehydrates the session from durable storage. A stored token is
// verified against the server; an invalid one, or any failure to verify, is
// discarded along with the cached user. The loading flag is up for the whole
// round trip and cleared whatever the outcome.
func (s *SessionStore) Initialize(ctx context.Context) error {
	s.setLoading(true)

	token, _, err := s.store.Load()
	if err != nil {
		s.logger.Warn("discarding unreadable credentials", err)
		_ = s.store.Clear()
		token = ""
	}
	if token == "" {
		s.commit(Session{})
		return nil
	}

	res, err := s.api.Check(ctx, token)
	if err != nil {
		// a failed validation call counts as an invalid token: the session
		// resolves clean rather than half-trusted
		s.logger.Warn("discarding stored token, verification failed", err)
		_ = s.store.Clear()
		s.commit(Session{})
		return nil
	}
	if !res.Valid {
		_ = s.store.Clear()
		s.commit(Session{})
		return nil
	}

	if err = s.store.Save(token, *res.Payload); err != nil {
		s.logger.Warn("refreshing stored credentials", err)
	}
	s.commit(Session{Token: token, User: res.Payload})
	return nil
}

// Login authenticates against the server. It reports false without error
// when the server rejects the credentials; errors are reserved for transport
// and protocol failures. On success the token and decoded identity are
// persisted together before the in-memory state flips.
func (s *SessionStore) Login(ctx context.Context, username, password string) (bool, error) {
	s.setLoading(true)

	res, err := s.api.Login(ctx, username, password)
	if err != nil {
		s.setLoading(false)
		return false, err
	}
	if !res.Success {
		s.setLoading(false)
		return false, nil
	}
	if res.Token == "" {
		s.setLoading(false)
		return false, errors.New("login succeeded without a token")
	}

	check, err := s.api.Check(ctx, res.Token)
	if err != nil {
		s.setLoading(false)
		return false, err
	}
	if !check.Valid {
		s.setLoading(false)
		return false, errors.New("freshly issued token did not verify")
	}

	if err = s.store.Save(res.Token, *check.Payload); err != nil {
		s.setLoading(false)
		return false, err
	}
	s.commit(Session{Token: res.Token, User: check.Payload})
	return true, nil
}

// Logout revokes the session server-side on a best-effort basis and always
// clears local state. A failed revocation call never leaves the client
// signed in.
func (s *SessionStore) Logout(ctx context.Context) {
	if s.Current().IsAuthenticated() {
		if err := s.api.Logout(ctx); err != nil {
			s.logger.Warn("server-side logout failed", err)
		}
	}
	_ = s.store.Clear()
	s.commit(Session{})
}

// forceSignOut is wired into the transport's unauthorized hook. Storage is
// already cleared by the transport at that point.
func (s *SessionStore) forceSignOut() {
	s.commit(Session{})
}

func (s *SessionStore) setLoading(v bool) {
	s.mu.Lock()
	s.session.Loading = v
	snap := s.session
	s.mu.Unlock()
	s.notify(snap)
}

func (s *SessionStore) commit(next Session) {
	s.mu.Lock()
	s.session = next
	s.mu.Unlock()
	s.notify(next)
}

func (s *SessionStore) notify(snap Session) {
	if s.onChange != nil {
		s.onChange(snap)
	}
}
