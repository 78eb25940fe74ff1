package client

import (
	"net/http"

	"github.com/kumoedu/kumo/core"
)

// authTransport decorates outgoing requests with the stored bearer token.
// When the server answers 401 or 403 the stored credentials are wiped and
// the onUnauthorized hook fires, so a stale or revoked token is discarded
// on the spot instead of lingering until the next explicit logout.
type authTransport struct {
	base           http.RoundTripper
	store          CredentialStore
	logger         core.Logger
	onUnauthorized func()
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, _, err := t.store.Load()
	if err != nil {
		// the request still goes out, just un-decorated
		t.logger.Warn("loading credentials for request decoration", err)
	} else if token != "" && req.Header.Get("Authorization") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		_ = t.store.Clear()
		if t.onUnauthorized != nil {
			t.onUnauthorized()
		}
	}
	return resp, nil
}
