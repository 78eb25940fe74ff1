package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// apiClient speaks the envelope wire format of the auth endpoints.
// Transport failures and malformed envelopes surface as errors; negative
// outcomes the server expresses as data (success=false, valid=false) do not.
type apiClient struct {
	baseURL string
	http    *http.Client
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Body    json.RawMessage `json:"body"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginBody struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
}

type checkRequest struct {
	Token string `json:"token"`
}

type checkBody struct {
	Valid   bool      `json:"valid"`
	Payload *Identity `json:"payload"`
}

func (c *apiClient) Login(ctx context.Context, username, password string) (loginBody, error) {
	var body loginBody
	err := c.post(ctx, "/auth/login", loginRequest{Username: username, Password: password}, &body)
	return body, err
}

func (c *apiClient) Check(ctx context.Context, token string) (checkBody, error) {
	var body checkBody
	err := c.post(ctx, "/auth/check", checkRequest{Token: token}, &body)
	if err != nil {
		return body, err
	}
	if body.Valid && body.Payload == nil {
		return checkBody{}, errors.New("check response valid without payload")
	}
	return body, nil
}

func (c *apiClient) Logout(ctx context.Context) error {
	return c.post(ctx, "/auth/logout", nil, nil)
}

func (c *apiClient) post(ctx context.Context, path string, payload, out interface{}) error {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return errors.Wrapf(err, "encoding %s request", path)
		}
		reqBody = bytes.NewReader(data)
	}

	url := strings.TrimSuffix(c.baseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reqBody)
	if err != nil {
		return errors.Wrapf(err, "building %s request", path)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "calling %s", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("%s: unexpected status %d", path, resp.StatusCode)
	}

	var env envelope
	if err = json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return errors.Wrapf(err, "decoding %s response", path)
	}
	if out == nil {
		return nil
	}
	if env.Body == nil {
		return errors.Errorf("%s: response has no body", path)
	}
	if err = json.Unmarshal(env.Body, out); err != nil {
		return errors.Wrapf(err, "decoding %s body", path)
	}
	return nil
}
