package s3store

import (
	"testing"

	"github.com/aws/smithy-go"
	"gitlab.com/tozd/go/errors"

	"github.com/drobo-cli/drobo/internal/store"
)

func TestKeyMapping(t *testing.T) {
	tests := []struct {
		prefix string
		path   string
		want   string
	}{
		{"", "/a/b.txt", "a/b.txt"},
		{"", "/", ""},
		{"", "/a//b/", "a/b"},
		{"backups", "/a/b.txt", "backups/a/b.txt"},
		{"backups", "/", "backups"},
	}
	for _, tt := range tests {
		c := &Client{prefix: tt.prefix}
		if got := c.key(tt.path); got != tt.want {
			t.Errorf("key(%q) with prefix %q = %q, want %q", tt.path, tt.prefix, got, tt.want)
		}
	}
}

func apiErr(code string) error {
	return &smithy.GenericAPIError{Code: code, Message: code}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no such key", apiErr("NoSuchKey"), store.ErrNotFound},
		{"missing bucket", apiErr("NoSuchBucket"), store.ErrNotFound},
		{"expired token", apiErr("ExpiredToken"), store.ErrAuth},
		{"access denied", apiErr("AccessDenied"), store.ErrAuth},
		{"bad signature", apiErr("SignatureDoesNotMatch"), store.ErrAuth},
		{"slow down", apiErr("SlowDown"), store.ErrTransient},
		{"internal error", apiErr("InternalError"), store.ErrTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err, "/p")
			if !errors.Is(got, tt.want) {
				t.Errorf("classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestClassifyPassesThroughUnknown(t *testing.T) {
	orig := errors.New("dial tcp: connection refused")
	got := classify(orig, "/p")
	if !errors.Is(got, orig) {
		t.Errorf("classify lost the original error: %v", got)
	}
	for _, sentinel := range []error{store.ErrNotFound, store.ErrAuth, store.ErrTransient} {
		if errors.Is(got, sentinel) {
			t.Errorf("classify mapped an unknown error to %v", sentinel)
		}
	}
}
