package store

import (
	"context"
	"testing"
	"time"

	"gitlab.com/tozd/go/errors"
)

type countingRefresher struct {
	calls int
	fail  bool
}

func (r *countingRefresher) Refresh(ctx context.Context) error {
	r.calls++
	if r.fail {
		return errors.New("refresh failed")
	}
	return nil
}

func TestAuthRetryRefreshesOnce(t *testing.T) {
	ctx := context.Background()
	fs := NewMem()
	fs.AddFile("/a.txt", []byte("hello"), time.Now())

	failures := 1
	fs.Hook = func(op, path string) error {
		if op == "stat" && failures > 0 {
			failures--
			return errors.Errorf("%s: %w", path, ErrAuth)
		}
		return nil
	}

	refresher := &countingRefresher{}
	client := WithAuthRetry(fs, refresher)

	entry, err := client.Stat(ctx, "/a.txt")
	if err != nil {
		t.Fatalf("Stat after refresh: %v", err)
	}
	if entry.Name != "a.txt" {
		t.Errorf("Stat returned %q, want a.txt", entry.Name)
	}
	if refresher.calls != 1 {
		t.Errorf("refresher called %d times, want 1", refresher.calls)
	}
}

func TestAuthRetryGivesUpAfterSecondFailure(t *testing.T) {
	ctx := context.Background()
	fs := NewMem()
	fs.Hook = func(op, path string) error {
		return errors.Errorf("%s: %w", path, ErrAuth)
	}

	refresher := &countingRefresher{}
	client := WithAuthRetry(fs, refresher)

	_, err := client.Stat(ctx, "/a.txt")
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("Stat = %v, want ErrAuth", err)
	}
	if refresher.calls != 1 {
		t.Errorf("refresher called %d times, want exactly 1", refresher.calls)
	}
}

func TestAuthRetryIgnoresOtherErrors(t *testing.T) {
	ctx := context.Background()
	fs := NewMem()

	refresher := &countingRefresher{}
	client := WithAuthRetry(fs, refresher)

	_, err := client.Stat(ctx, "/missing.txt")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Stat = %v, want ErrNotFound", err)
	}
	if refresher.calls != 0 {
		t.Errorf("refresher called %d times for a non-auth error", refresher.calls)
	}
}

func TestAuthRetryFailedRefreshReturnsOriginal(t *testing.T) {
	ctx := context.Background()
	fs := NewMem()
	fs.Hook = func(op, path string) error {
		return errors.Errorf("%s: %w", path, ErrAuth)
	}

	refresher := &countingRefresher{fail: true}
	client := WithAuthRetry(fs, refresher)

	if _, err := client.Stat(ctx, "/a.txt"); !errors.Is(err, ErrAuth) {
		t.Fatalf("Stat = %v, want the original auth error", err)
	}
}
