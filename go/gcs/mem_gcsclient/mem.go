// Package mem_gcsclient provides an in-memory gcs.GCSClient implementation
// for use in unit tests. It additionally counts reads per path so that
// tests can assert on caching behavior.
package mem_gcsclient

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"

	"cloud.google.com/go/storage"

	"github.com/atalyaalon/patents-topic-modeling/go/gcs"
)

// Client implements gcs.GCSClient backed by a map.
type Client struct {
	mutex  sync.Mutex
	bucket string
	files  map[string][]byte
	reads  map[string]int
}

// New returns an empty in-memory client for the given bucket name.
func New(bucket string) *Client {
	return &Client{
		bucket: bucket,
		files:  map[string][]byte{},
		reads:  map[string]int{},
	}
}

// NumReads returns how many times the object at path has been read.
func (c *Client) NumReads(path string) int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.reads[path]
}

// FileReader implements gcs.GCSClient.
func (c *Client) FileReader(ctx context.Context, path string) (io.ReadCloser, error) {
	contents, err := c.GetFileContents(ctx, path)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(contents)), nil
}

// GetFileContents implements gcs.GCSClient.
func (c *Client) GetFileContents(ctx context.Context, path string) ([]byte, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.reads[path]++
	contents, ok := c.files[path]
	if !ok {
		return nil, storage.ErrObjectNotExist
	}
	return contents, nil
}

// SetFileContents implements gcs.GCSClient.
func (c *Client) SetFileContents(ctx context.Context, path string, opts gcs.FileWriteOptions, contents []byte) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	cp := make([]byte, len(contents))
	copy(cp, contents)
	c.files[path] = cp
	return nil
}

// DoesFileExist implements gcs.GCSClient.
func (c *Client) DoesFileExist(ctx context.Context, path string) (bool, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	_, ok := c.files[path]
	return ok, nil
}

// AllFilesInDirectory implements gcs.GCSClient. Objects are visited in
// lexicographic order.
func (c *Client) AllFilesInDirectory(ctx context.Context, prefix string, callback func(item *storage.ObjectAttrs)) error {
	c.mutex.Lock()
	paths := make([]string, 0, len(c.files))
	for path := range c.files {
		if strings.HasPrefix(path, prefix) {
			paths = append(paths, path)
		}
	}
	c.mutex.Unlock()
	sort.Strings(paths)
	for _, path := range paths {
		callback(&storage.ObjectAttrs{
			Bucket: c.bucket,
			Name:   path,
			Size:   int64(len(c.files[path])),
		})
	}
	return nil
}

// Bucket implements gcs.GCSClient.
func (c *Client) Bucket() string {
	return c.bucket
}

// Assert that Client implements gcs.GCSClient.
var _ gcs.GCSClient = (*Client)(nil)
