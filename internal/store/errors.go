package store

import (
	"context"

	"gitlab.com/tozd/go/errors"
)

// Error kinds the engine branches on. Clients wrap their backend errors so
// callers can use errors.Is regardless of which store produced them.
var (
	ErrNotFound    = errors.New("no such file or directory")
	ErrConflict    = errors.New("destination file exists")
	ErrIsDirectory = errors.New("is a directory")
	ErrAuth        = errors.New("authentication failed")
	ErrTransient   = errors.New("temporary remote error")
)

// TokenRefresher renews expired credentials. Implementations persist the
// refreshed tokens themselves.
type TokenRefresher interface {
	Refresh(ctx context.Context) error
}
