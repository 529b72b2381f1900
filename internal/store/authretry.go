package store

import (
	"context"
	"io"

	"gitlab.com/tozd/go/errors"
)

// authRetry decorates a Client so that an authentication failure triggers
// exactly one token refresh followed by one retry of the failed call. The
// engine never sees the first failure unless the refresh or retry also fails.
type authRetry struct {
	inner     Client
	refresher TokenRefresher
}

// WithAuthRetry wraps c with transparent refresh-and-retry on ErrAuth.
func WithAuthRetry(c Client, r TokenRefresher) Client {
	return &authRetry{inner: c, refresher: r}
}

func (a *authRetry) retry(ctx context.Context, err error) bool {
	if !errors.Is(err, ErrAuth) {
		return false
	}
	return a.refresher.Refresh(ctx) == nil
}

func (a *authRetry) List(ctx context.Context, dir string) ([]Entry, error) {
	entries, err := a.inner.List(ctx, dir)
	if a.retry(ctx, err) {
		return a.inner.List(ctx, dir)
	}
	return entries, err
}

func (a *authRetry) Stat(ctx context.Context, path string) (Entry, error) {
	e, err := a.inner.Stat(ctx, path)
	if a.retry(ctx, err) {
		return a.inner.Stat(ctx, path)
	}
	return e, err
}

func (a *authRetry) Read(ctx context.Context, path string) (io.ReadCloser, error) {
	rc, err := a.inner.Read(ctx, path)
	if a.retry(ctx, err) {
		return a.inner.Read(ctx, path)
	}
	return rc, err
}

func (a *authRetry) Write(ctx context.Context, path string, r io.Reader) (int64, error) {
	// A consumed reader cannot be replayed, so writes are not retried
	// transparently; the refresh still happens so the item's retry by the
	// user succeeds.
	n, err := a.inner.Write(ctx, path, r)
	if errors.Is(err, ErrAuth) {
		_ = a.refresher.Refresh(ctx)
	}
	return n, err
}

func (a *authRetry) Copy(ctx context.Context, src, dst string) error {
	err := a.inner.Copy(ctx, src, dst)
	if a.retry(ctx, err) {
		return a.inner.Copy(ctx, src, dst)
	}
	return err
}

func (a *authRetry) Move(ctx context.Context, src, dst string) error {
	err := a.inner.Move(ctx, src, dst)
	if a.retry(ctx, err) {
		return a.inner.Move(ctx, src, dst)
	}
	return err
}

func (a *authRetry) Delete(ctx context.Context, path string) error {
	err := a.inner.Delete(ctx, path)
	if a.retry(ctx, err) {
		return a.inner.Delete(ctx, path)
	}
	return err
}

func (a *authRetry) Mkdir(ctx context.Context, path string) error {
	err := a.inner.Mkdir(ctx, path)
	if a.retry(ctx, err) {
		return a.inner.Mkdir(ctx, path)
	}
	return err
}
