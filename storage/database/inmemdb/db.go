// Package inmemdb provides an in-memory user repository for tests and the
// admin CLI's dry-run mode.
package inmemdb

import (
	"sync"

	"github.com/kumoedu/kumo/core/user"
)

type (
	DB struct {
		user *userTable
	}

	userTable struct {
		sync.RWMutex
		pkCount int
		table   map[int]*user.User
	}
)

func Open() (*DB, error) {
	db := &DB{
		user: &userTable{table: make(map[int]*user.User)},
	}
	return db, nil
}
