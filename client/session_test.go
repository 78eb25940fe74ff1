package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kumoedu/kumo/core/user"
)

var studentIdentity = Identity{
	ID:       1,
	Email:    "estudiante1@kumo.web",
	Name:     "Estudiante",
	Lastname: "Uno",
	Username: "estudiante1",
	Role:     user.RoleStudent,
}

// fakeAuthServer serves the auth endpoints with canned behavior. It accepts
// exactly one username/password pair and one token, and records whether the
// logout endpoint was hit and with which Authorization header.
type fakeAuthServer struct {
	username string
	password string
	token    string
	payload  Identity

	// rejectCheck makes /auth/check answer valid=false even for the
	// issued token, simulating a token that dies between issue and verify.
	rejectCheck bool

	loginCalls  int
	checkCalls  int
	logoutCalls int
	logoutAuth  string
}

func (f *fakeAuthServer) start(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		f.loginCalls++
		var req loginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		body := loginBody{}
		if req.Username == f.username && req.Password == f.password {
			body = loginBody{Success: true, Token: f.token}
		}
		writeEnvelope(t, w, body)
	})
	mux.HandleFunc("/auth/check", func(w http.ResponseWriter, r *http.Request) {
		f.checkCalls++
		var req checkRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		body := checkBody{}
		if !f.rejectCheck && req.Token == f.token {
			payload := f.payload
			body = checkBody{Valid: true, Payload: &payload}
		}
		writeEnvelope(t, w, body)
	})
	mux.HandleFunc("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		f.logoutCalls++
		f.logoutAuth = r.Header.Get("Authorization")
		writeEnvelope(t, w, map[string]bool{"success": true})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeEnvelope(t *testing.T, w http.ResponseWriter, body interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(envelope{Code: 200, Message: "OK", Body: mustMarshal(t, body)})
	require.NoError(t, err)
}

func mustMarshal(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func newTestStore(t *testing.T, baseURL string, store CredentialStore) (*SessionStore, *[]Session) {
	t.Helper()

	var transitions []Session
	s, err := NewSessionStore(Options{
		BaseURL: baseURL,
		Store:   store,
		OnChange: func(snap Session) {
			transitions = append(transitions, snap)
		},
	})
	require.NoError(t, err)
	return s, &transitions
}

func tempFileStore(t *testing.T) CredentialStore {
	t.Helper()
	return NewFileStore(filepath.Join(t.TempDir(), "credentials.json"))
}

func TestLogin(t *testing.T) {
	fake := &fakeAuthServer{
		username: "estudiante1",
		password: "password123",
		token:    "abc",
		payload:  studentIdentity,
	}
	srv := fake.start(t)
	store := tempFileStore(t)
	s, _ := newTestStore(t, srv.URL, store)
	ctx := context.Background()

	t.Run("wrong password", func(t *testing.T) {
		ok, err := s.Login(ctx, "estudiante1", "nope")
		assert.NoError(t, err)
		assert.False(t, ok)

		snap := s.Current()
		assert.False(t, snap.IsAuthenticated())
		assert.False(t, snap.Loading)

		token, usr, err := store.Load()
		assert.NoError(t, err)
		assert.Empty(t, token)
		assert.Nil(t, usr)
	})

	t.Run("success", func(t *testing.T) {
		ok, err := s.Login(ctx, "estudiante1", "password123")
		assert.NoError(t, err)
		assert.True(t, ok)

		snap := s.Current()
		assert.True(t, snap.IsAuthenticated())
		assert.False(t, snap.Loading)
		assert.Equal(t, "abc", snap.Token)
		require.NotNil(t, snap.User)
		assert.Equal(t, user.RoleStudent, snap.User.Role)
		assert.Equal(t, "estudiante1", snap.User.Username)

		token, usr, err := store.Load()
		assert.NoError(t, err)
		assert.Equal(t, "abc", token)
		require.NotNil(t, usr)
		assert.Equal(t, studentIdentity, *usr)
	})
}

// Login commits nothing when the follow-up token verification fails: the
// session and the durable storage stay exactly as they were before the call.
func TestLoginCheckFailureCommitsNothing(t *testing.T) {
	fake := &fakeAuthServer{
		username:    "estudiante1",
		password:    "password123",
		token:       "abc",
		payload:     studentIdentity,
		rejectCheck: true,
	}
	srv := fake.start(t)
	store := tempFileStore(t)
	s, _ := newTestStore(t, srv.URL, store)
	ctx := context.Background()

	// an earlier session is live
	prior := studentIdentity
	require.NoError(t, store.Save("old-token", prior))
	s.commit(Session{Token: "old-token", User: &prior})

	ok, err := s.Login(ctx, "estudiante1", "password123")
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, fake.loginCalls)

	// in-memory state untouched
	snap := s.Current()
	assert.False(t, snap.Loading)
	assert.Equal(t, "old-token", snap.Token)
	require.NotNil(t, snap.User)
	assert.Equal(t, prior, *snap.User)

	// durable storage untouched
	token, usr, loadErr := store.Load()
	require.NoError(t, loadErr)
	assert.Equal(t, "old-token", token)
	require.NotNil(t, usr)
	assert.Equal(t, prior, *usr)
}

func TestLoginServerDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // connection refused from here on

	store := tempFileStore(t)
	s, _ := newTestStore(t, srv.URL, store)

	ok, err := s.Login(context.Background(), "estudiante1", "password123")
	assert.Error(t, err)
	assert.False(t, ok)
	assert.False(t, s.Current().IsAuthenticated())
	assert.False(t, s.Current().Loading)
}

func TestInitialize(t *testing.T) {
	fake := &fakeAuthServer{token: "abc", payload: studentIdentity}
	srv := fake.start(t)
	ctx := context.Background()

	t.Run("no stored credentials", func(t *testing.T) {
		store := tempFileStore(t)
		s, transitions := newTestStore(t, srv.URL, store)

		assert.True(t, s.Current().Loading)
		require.NoError(t, s.Initialize(ctx))

		snap := s.Current()
		assert.False(t, snap.Loading)
		assert.False(t, snap.IsAuthenticated())
		assert.False(t, (*transitions)[len(*transitions)-1].Loading)
	})

	t.Run("valid stored token", func(t *testing.T) {
		store := tempFileStore(t)
		require.NoError(t, store.Save("abc", studentIdentity))
		s, _ := newTestStore(t, srv.URL, store)

		require.NoError(t, s.Initialize(ctx))

		snap := s.Current()
		assert.True(t, snap.IsAuthenticated())
		assert.False(t, snap.Loading)
		assert.Equal(t, "abc", snap.Token)
		assert.Equal(t, user.RoleStudent, snap.User.Role)
	})

	t.Run("stale stored token", func(t *testing.T) {
		store := tempFileStore(t)
		require.NoError(t, store.Save("expired", studentIdentity))
		s, _ := newTestStore(t, srv.URL, store)

		require.NoError(t, s.Initialize(ctx))

		snap := s.Current()
		assert.False(t, snap.IsAuthenticated())
		assert.False(t, snap.Loading)

		token, usr, err := store.Load()
		assert.NoError(t, err)
		assert.Empty(t, token)
		assert.Nil(t, usr)
	})

	t.Run("server unreachable clears credentials", func(t *testing.T) {
		store := tempFileStore(t)
		require.NoError(t, store.Save("abc", studentIdentity))
		down := httptest.NewServer(http.NotFoundHandler())
		down.Close() // connection refused from here on
		s, _ := newTestStore(t, down.URL, store)

		// a failed verification call resolves exactly like an invalid token
		require.NoError(t, s.Initialize(ctx))
		assert.False(t, s.Current().IsAuthenticated())
		assert.False(t, s.Current().Loading)

		token, usr, err := store.Load()
		assert.NoError(t, err)
		assert.Empty(t, token)
		assert.Nil(t, usr)
	})

	t.Run("malformed check response clears credentials", func(t *testing.T) {
		store := tempFileStore(t)
		require.NoError(t, store.Save("abc", studentIdentity))
		garbage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("not json"))
		}))
		defer garbage.Close()
		s, _ := newTestStore(t, garbage.URL, store)

		require.NoError(t, s.Initialize(ctx))
		assert.False(t, s.Current().IsAuthenticated())

		token, usr, err := store.Load()
		assert.NoError(t, err)
		assert.Empty(t, token)
		assert.Nil(t, usr)
	})
}

func TestLogout(t *testing.T) {
	fake := &fakeAuthServer{
		username: "estudiante1",
		password: "password123",
		token:    "abc",
		payload:  studentIdentity,
	}
	srv := fake.start(t)
	store := tempFileStore(t)
	s, _ := newTestStore(t, srv.URL, store)
	ctx := context.Background()

	ok, err := s.Login(ctx, "estudiante1", "password123")
	require.NoError(t, err)
	require.True(t, ok)

	s.Logout(ctx)

	snap := s.Current()
	assert.False(t, snap.IsAuthenticated())
	assert.Empty(t, snap.Token)
	assert.Nil(t, snap.User)

	token, usr, err := store.Load()
	assert.NoError(t, err)
	assert.Empty(t, token)
	assert.Nil(t, usr)

	// revocation was attempted with the bearer token attached
	assert.Equal(t, 1, fake.logoutCalls)
	assert.Equal(t, "Bearer abc", fake.logoutAuth)
}

func TestLogoutSignedOut(t *testing.T) {
	fake := &fakeAuthServer{}
	srv := fake.start(t)
	s, _ := newTestStore(t, srv.URL, tempFileStore(t))

	s.Logout(context.Background())
	assert.Zero(t, fake.logoutCalls)
	assert.False(t, s.Current().IsAuthenticated())
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credentials.json")
	store := NewFileStore(path)

	// empty store loads clean
	token, usr, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, token)
	assert.Nil(t, usr)

	require.NoError(t, store.Save("abc", studentIdentity))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// both entries are present on disk under their durable keys
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	assert.Contains(t, onDisk, "auth_token")
	assert.Contains(t, onDisk, "user_data")

	token, usr, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, "abc", token)
	require.NotNil(t, usr)
	assert.Equal(t, studentIdentity, *usr)

	require.NoError(t, store.Clear())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, store.Clear()) // idempotent
}
