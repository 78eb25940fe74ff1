package echoapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/kumoedu/kumo/client"
	"github.com/kumoedu/kumo/core/user"
)

// Full session lifecycle against the real server: login, rehydration from
// durable storage, role gating and logout with server-side revocation.
func TestSessionLifecycle(t *testing.T) {
	resetDB(t)

	createUser(t, "Estudiante", "estudiante1", "estudiante1@kumo.web", "password123", user.RoleStudent, true)

	srv := httptest.NewServer(app)
	defer srv.Close()

	ctx := context.Background()
	storePath := filepath.Join(t.TempDir(), "credentials.json")
	store := client.NewFileStore(storePath)

	newSession := func(t *testing.T) *client.SessionStore {
		t.Helper()
		s, err := client.NewSessionStore(client.Options{
			BaseURL:    srv.URL,
			Store:      store,
			HTTPClient: &http.Client{},
		})
		if err != nil {
			t.Fatalf("NewSessionStore(): %v", err)
		}
		return s
	}

	session := newSession(t)
	if err := session.Initialize(ctx); err != nil {
		t.Fatalf("Initialize(): %v", err)
	}
	if session.Current().IsAuthenticated() {
		t.Fatal("failed! fresh session is authenticated")
	}

	ok, err := session.Login(ctx, "estudiante1", "wrong")
	if err != nil {
		t.Fatalf("Login(): %v", err)
	}
	if ok {
		t.Fatal("failed! login succeeded with a wrong password")
	}

	ok, err = session.Login(ctx, "estudiante1", "password123")
	if err != nil {
		t.Fatalf("Login(): %v", err)
	}
	if !ok {
		t.Fatal("failed! login rejected with valid credentials")
	}
	snap := session.Current()
	if !snap.IsAuthenticated() {
		t.Fatal("failed! session is not authenticated after login")
	}
	if snap.User.Role != user.RoleStudent {
		t.Errorf("failed! role = %v; want %v", snap.User.Role, user.RoleStudent)
	}
	if client.Guard(snap, user.RoleStudent) != client.DecisionGranted {
		t.Error("failed! student route not granted to student")
	}
	if client.Guard(snap, user.RoleAdmin) != client.DecisionDenied {
		t.Error("failed! admin route granted to student")
	}

	// a second client sharing the store rehydrates the same session
	restarted := newSession(t)
	if err = restarted.Initialize(ctx); err != nil {
		t.Fatalf("Initialize(): %v", err)
	}
	if !restarted.Current().IsAuthenticated() {
		t.Fatal("failed! session did not survive a restart")
	}
	if restarted.Current().Token != snap.Token {
		t.Error("failed! rehydrated token differs from the issued one")
	}

	// logout revokes server-side: the old token must not rehydrate again
	session.Logout(ctx)
	if session.Current().IsAuthenticated() {
		t.Fatal("failed! session is authenticated after logout")
	}
	if err = store.Save(snap.Token, *snap.User); err != nil {
		t.Fatalf("Save(): %v", err)
	}
	replayed := newSession(t)
	if err = replayed.Initialize(ctx); err != nil {
		t.Fatalf("Initialize(): %v", err)
	}
	if replayed.Current().IsAuthenticated() {
		t.Fatal("failed! revoked token rehydrated a session")
	}
	if token, _, err := store.Load(); err != nil || token != "" {
		t.Errorf("failed! stale token not cleared from storage: token=%q err=%v", token, err)
	}
}
