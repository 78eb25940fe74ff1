// Package tokenstore tracks revoked bearer tokens until their natural expiry.
package tokenstore

import (
	"context"
	"time"
)

// Store is a denylist of revoked token IDs (JWT `jti` claims).
// A revoked entry only needs to live until the token itself expires.
type Store interface {
	Revoke(ctx context.Context, jti string, until time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}
