package client

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenStore struct {
	CredentialStore
}

func (brokenStore) Load() (string, *Identity, error) {
	return "", nil, errors.New("credentials unreadable")
}

// recordingLogger captures Warn calls for inspection.
type recordingLogger struct {
	warns []string
}

func (l *recordingLogger) log(msg string, args []interface{}) string {
	s := msg
	for _, arg := range args {
		s += fmt.Sprintf(" %v", arg)
	}
	return s
}

func (l *recordingLogger) Debug(msg string, args ...interface{}) {}
func (l *recordingLogger) Info(msg string, args ...interface{})  {}
func (l *recordingLogger) Warn(msg string, args ...interface{}) {
	l.warns = append(l.warns, l.log(msg, args))
}
func (l *recordingLogger) Error(msg string, args ...interface{}) {}
func (l *recordingLogger) Fatal(msg string, args ...interface{}) {}

func TestTransportDecoratesRequests(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	store := tempFileStore(t)
	require.NoError(t, store.Save("abc", studentIdentity))

	httpClient := &http.Client{}
	_, err := NewSessionStore(Options{BaseURL: srv.URL, Store: store, HTTPClient: httpClient})
	require.NoError(t, err)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL+"/v1/users", nil)
	require.NoError(t, err)
	resp, err := httpClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "Bearer abc", gotAuth)
}

func TestTransportNoTokenNoHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	httpClient := &http.Client{}
	_, err := NewSessionStore(Options{BaseURL: srv.URL, Store: tempFileStore(t), HTTPClient: httpClient})
	require.NoError(t, err)

	resp, err := httpClient.Get(srv.URL + "/v1/users")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Empty(t, gotAuth)
}

func TestTransportUnreadableStoreLogsAndProceeds(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	logger := &recordingLogger{}
	httpClient := &http.Client{}
	_, err := NewSessionStore(Options{
		BaseURL:    srv.URL,
		Store:      brokenStore{tempFileStore(t)},
		HTTPClient: httpClient,
		Logger:     logger,
	})
	require.NoError(t, err)

	resp, err := httpClient.Get(srv.URL + "/v1/users")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Empty(t, gotAuth)
	require.Len(t, logger.warns, 1)
	assert.Contains(t, logger.warns[0], "credentials unreadable")
}

func TestTransportRejectionSignsOut(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
			}))
			defer srv.Close()

			store := tempFileStore(t)
			require.NoError(t, store.Save("revoked", studentIdentity))

			httpClient := &http.Client{}
			s, err := NewSessionStore(Options{BaseURL: srv.URL, Store: store, HTTPClient: httpClient})
			require.NoError(t, err)
			s.commit(Session{Token: "revoked", User: &studentIdentity})
			require.True(t, s.Current().IsAuthenticated())

			resp, err := httpClient.Get(srv.URL + "/v1/users")
			require.NoError(t, err)
			resp.Body.Close()

			// the rejected request wiped storage and the live session
			assert.False(t, s.Current().IsAuthenticated())
			token, usr, err := store.Load()
			assert.NoError(t, err)
			assert.Empty(t, token)
			assert.Nil(t, usr)
		})
	}
}
