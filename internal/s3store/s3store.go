// Package s3store implements the store.Client contract on top of an S3
// bucket. The remote namespace is rooted at an optional key prefix;
// directories are zero-byte keys with a trailing slash, or exist implicitly
// as common prefixes of stored objects.
package s3store

import (
	"context"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"gitlab.com/tozd/go/errors"

	"github.com/drobo-cli/drobo/internal/store"
)

const deleteBatchSize = 1000

// Client talks to one bucket/prefix namespace.
type Client struct {
	api      *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

// New returns a store.Client over the given bucket. Prefix, when non-empty,
// roots the namespace under that key prefix. Extra options are applied to
// the underlying SDK client, e.g. a custom endpoint.
func New(cfg aws.Config, bucket, prefix string, optFns ...func(*s3.Options)) *Client {
	api := s3.NewFromConfig(cfg, optFns...)
	return &Client{
		api:      api,
		uploader: manager.NewUploader(api),
		bucket:   bucket,
		prefix:   strings.Trim(prefix, "/"),
	}
}

// key maps an absolute store path ("/a/b") onto an object key.
func (c *Client) key(p string) string {
	p = strings.Trim(path.Clean(p), "/")
	if c.prefix == "" {
		return p
	}
	if p == "" {
		return c.prefix
	}
	return c.prefix + "/" + p
}

func (c *Client) List(ctx context.Context, dir string) ([]store.Entry, error) {
	keyPrefix := c.key(dir)
	if keyPrefix != "" {
		keyPrefix += "/"
	}

	var entries []store.Entry
	paginator := s3.NewListObjectsV2Paginator(c.api, &s3.ListObjectsV2Input{
		Bucket:    aws.String(c.bucket),
		Prefix:    aws.String(keyPrefix),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classify(err, dir)
		}
		for _, cp := range page.CommonPrefixes {
			name := path.Base(strings.TrimSuffix(aws.ToString(cp.Prefix), "/"))
			entries = append(entries, store.Entry{
				Path: path.Join(dir, name),
				Name: name,
				Kind: store.Dir,
			})
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == keyPrefix {
				// The directory's own marker object.
				continue
			}
			name := path.Base(key)
			entries = append(entries, store.Entry{
				Path:    path.Join(dir, name),
				Name:    name,
				Kind:    store.File,
				Size:    aws.ToInt64(obj.Size),
				ModTime: aws.ToTime(obj.LastModified),
			})
		}
	}

	if len(entries) == 0 && path.Clean(dir) != "/" {
		// Distinguish an empty directory from a missing one.
		if _, err := c.Stat(ctx, dir); err != nil {
			return nil, err
		}
	}
	sortByName(entries)
	return entries, nil
}

func (c *Client) Stat(ctx context.Context, p string) (store.Entry, error) {
	if path.Clean(p) == "/" {
		return store.Entry{Path: "/", Name: "/", Kind: store.Dir}, nil
	}
	key := c.key(p)

	head, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return store.Entry{
			Path:    path.Clean(p),
			Name:    path.Base(p),
			Kind:    store.File,
			Size:    aws.ToInt64(head.ContentLength),
			ModTime: aws.ToTime(head.LastModified),
		}, nil
	}
	err = classify(err, p)
	if !errors.Is(err, store.ErrNotFound) {
		return store.Entry{}, err
	}

	// No object at the key; it may still be a directory, either via its
	// marker object or implicitly through deeper keys.
	list, lerr := c.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(c.bucket),
		Prefix:  aws.String(key + "/"),
		MaxKeys: aws.Int32(1),
	})
	if lerr != nil {
		return store.Entry{}, classify(lerr, p)
	}
	if aws.ToInt32(list.KeyCount) > 0 {
		return store.Entry{Path: path.Clean(p), Name: path.Base(p), Kind: store.Dir}, nil
	}
	return store.Entry{}, err
}

func (c *Client) Read(ctx context.Context, p string) (io.ReadCloser, error) {
	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(c.key(p)),
	})
	if err != nil {
		return nil, classify(err, p)
	}
	return out.Body, nil
}

func (c *Client) Write(ctx context.Context, p string, r io.Reader) (int64, error) {
	cr := &countingReader{r: r}
	input := &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(c.key(p)),
		Body:   cr,
	}
	if ct := contentType(p); ct != "" {
		input.ContentType = aws.String(ct)
	}
	_, err := c.uploader.Upload(ctx, input)
	if err != nil {
		return cr.n, classify(err, p)
	}
	return cr.n, nil
}

func (c *Client) Copy(ctx context.Context, src, dst string) error {
	_, err := c.api.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(c.bucket),
		Key:        aws.String(c.key(dst)),
		CopySource: aws.String(c.bucket + "/" + c.key(src)),
	})
	if err != nil {
		return classify(err, src)
	}
	return nil
}

// Move renames a single object via server-side copy plus delete. The source
// is only removed after the copy succeeded.
func (c *Client) Move(ctx context.Context, src, dst string) error {
	if err := c.Copy(ctx, src, dst); err != nil {
		return err
	}
	_, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(c.key(src)),
	})
	if err != nil {
		return classify(err, src)
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, p string) error {
	entry, err := c.Stat(ctx, p)
	if err != nil {
		return err
	}
	if entry.Kind == store.File {
		_, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(c.bucket),
			Key:    aws.String(c.key(p)),
		})
		if err != nil {
			return classify(err, p)
		}
		return nil
	}
	return c.deleteTree(ctx, p)
}

// deleteTree removes every key under the directory, marker included.
func (c *Client) deleteTree(ctx context.Context, p string) error {
	prefix := c.key(p) + "/"
	var batch []types.ObjectIdentifier
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		_, err := c.api.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(c.bucket),
			Delete: &types.Delete{Objects: batch, Quiet: aws.Bool(true)},
		})
		batch = batch[:0]
		if err != nil {
			return classify(err, p)
		}
		return nil
	}

	paginator := s3.NewListObjectsV2Paginator(c.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return classify(err, p)
		}
		for _, obj := range page.Contents {
			batch = append(batch, types.ObjectIdentifier{Key: obj.Key})
			if len(batch) == deleteBatchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
	}
	batch = append(batch, types.ObjectIdentifier{Key: aws.String(strings.TrimSuffix(prefix, "/") + "/")})
	return flush()
}

func (c *Client) Mkdir(ctx context.Context, p string) error {
	if path.Clean(p) == "/" {
		return nil
	}
	_, err := c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(c.key(p) + "/"),
		Body:   strings.NewReader(""),
	})
	if err != nil {
		return classify(err, p)
	}
	return nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func sortByName(entries []store.Entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
}

// classify maps SDK errors onto the store error kinds the engine branches on.
func classify(err error, p string) error {
	var nf *types.NotFound
	var nsk *types.NoSuchKey
	if errors.As(err, &nf) || errors.As(err, &nsk) {
		return errors.Errorf("%s: %w", p, store.ErrNotFound)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return errors.Errorf("%s: %w", p, store.ErrNotFound)
		case "AccessDenied", "InvalidAccessKeyId", "ExpiredToken", "TokenRefreshRequired", "SignatureDoesNotMatch":
			return errors.Errorf("%s: %w: %s", p, store.ErrAuth, apiErr.ErrorCode())
		case "SlowDown", "ServiceUnavailable", "RequestTimeout", "InternalError":
			return errors.Errorf("%s: %w: %s", p, store.ErrTransient, apiErr.ErrorCode())
		}
		if httpErr, ok := apiErr.(interface{ HTTPStatusCode() int }); ok {
			if code := httpErr.HTTPStatusCode(); code >= 500 && code < 600 {
				return errors.Errorf("%s: %w: http %d", p, store.ErrTransient, code)
			}
		}
	}
	return errors.Errorf("%s: %w", p, err)
}
