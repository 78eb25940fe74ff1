package client

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/kumoedu/kumo/core/user"
)

// Identity is the decoded token payload cached alongside the bearer token.
type Identity struct {
	ID       int       `json:"id"`
	Email    string    `json:"email"`
	Name     string    `json:"name"`
	Lastname string    `json:"lastname"`
	Username string    `json:"username"`
	Role     user.Role `json:"role"`
}

// CredentialStore is the durable storage surviving restarts.
// Token and user snapshot are always written and removed together.
type CredentialStore interface {
	Load() (token string, usr *Identity, err error)
	Save(token string, usr Identity) error
	Clear() error
}

// credentials is the on-disk shape. The keys mirror the platform's durable
// storage entries: auth_token holds the raw bearer string, user_data the
// serialized decoded payload.
type credentials struct {
	Token string    `json:"auth_token"`
	User  *Identity `json:"user_data"`
}

type fileStore struct {
	mu   sync.Mutex
	path string
}

var _ CredentialStore = (*fileStore)(nil)

// NewFileStore returns a CredentialStore persisting to the given file.
// The file is created on first Save with 0600 permissions.
func NewFileStore(path string) CredentialStore {
	return &fileStore{path: path}
}

// DefaultStorePath places the credentials file under the user config dir.
func DefaultStorePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "resolving user config dir")
	}
	return filepath.Join(dir, "kumo", "credentials.json"), nil
}

func (fs *fileStore) Load() (string, *Identity, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := os.ReadFile(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil, nil
		}
		return "", nil, errors.Wrap(err, "reading credentials")
	}

	var creds credentials
	if err = json.Unmarshal(data, &creds); err != nil {
		return "", nil, errors.Wrap(err, "decoding credentials")
	}
	return creds.Token, creds.User, nil
}

func (fs *fileStore) Save(token string, usr Identity) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := json.Marshal(credentials{Token: token, User: &usr})
	if err != nil {
		return errors.Wrap(err, "encoding credentials")
	}

	if err = os.MkdirAll(filepath.Dir(fs.path), 0o700); err != nil {
		return errors.Wrap(err, "creating credentials dir")
	}

	// write atomically: both entries land together or not at all
	tmp := fs.path + ".tmp"
	if err = os.WriteFile(tmp, data, 0o600); err != nil {
		return errors.Wrap(err, "writing credentials")
	}
	if err = os.Rename(tmp, fs.path); err != nil {
		return errors.Wrap(err, "committing credentials")
	}
	return nil
}

func (fs *fileStore) Clear() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.Remove(fs.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing credentials")
	}
	return nil
}
