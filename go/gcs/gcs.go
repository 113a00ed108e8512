// Package gcs provides an interface for interacting with Google Cloud
// Storage (GCS). Introducing the interface allows for easier mocking and
// testing for unit (small) tests. The bucket name is given at creation
// time, so as to simplify the method signatures.
package gcs

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/atalyaalon/patents-topic-modeling/go/util"
)

// GCSClient is the interface all our code uses to talk to cloud storage.
// In all methods, context.Background() is a safe value for ctx if you don't
// want to use the context of the web request, for example.
type GCSClient interface {
	// FileReader returns an io.ReadCloser pointing to path on GCS.
	// storage.ErrObjectNotExist will be returned if the file is not found.
	// The caller must call Close on the returned Reader when done reading.
	FileReader(ctx context.Context, path string) (io.ReadCloser, error)

	// GetFileContents returns the []byte represented by the GCS file at
	// path. This is a convenience wrapper around FileReader.
	// storage.ErrObjectNotExist will be returned if the file is not found.
	GetFileContents(ctx context.Context, path string) ([]byte, error)

	// SetFileContents writes the []byte to the GCS file at path. The GCS
	// file will be created if it doesn't exist.
	SetFileContents(ctx context.Context, path string, opts FileWriteOptions, contents []byte) error

	// DoesFileExist returns true if the specified path exists and false if
	// it does not. Any error other than storage.ErrObjectNotExist is
	// returned.
	DoesFileExist(ctx context.Context, path string) (bool, error)

	// AllFilesInDirectory executes the callback on all GCS files with the
	// given prefix, i.e. in the directory prefix.
	AllFilesInDirectory(ctx context.Context, prefix string, callback func(item *storage.ObjectAttrs)) error

	// Bucket returns the bucket name of this client.
	Bucket() string
}

// FileWriteOptions represents the metadata for a GCS file. See
// storage.ObjectAttrs for a more detailed description of what these are.
type FileWriteOptions struct {
	ContentEncoding string
	ContentType     string
	Metadata        map[string]string
}

// FileWriteOptsJSON are the write options for JSON artifacts.
var FileWriteOptsJSON = FileWriteOptions{ContentType: "application/json"}

// gcsclient holds the information needed to talk to cloud storage.
type gcsclient struct {
	client *storage.Client
	bucket string
}

// New returns a GCSClient backed by the given storage client and bucket.
func New(s *storage.Client, bucket string) GCSClient {
	return &gcsclient{
		client: s,
		bucket: bucket,
	}
}

// FileReader implements GCSClient.
func (g *gcsclient) FileReader(ctx context.Context, path string) (io.ReadCloser, error) {
	return g.client.Bucket(g.bucket).Object(path).NewReader(ctx)
}

// GetFileContents implements GCSClient.
func (g *gcsclient) GetFileContents(ctx context.Context, path string) ([]byte, error) {
	response, err := g.client.Bucket(g.bucket).Object(path).NewReader(ctx)
	if err != nil {
		return nil, err
	}
	defer util.Close(response)
	return io.ReadAll(response)
}

// SetFileContents implements GCSClient.
func (g *gcsclient) SetFileContents(ctx context.Context, path string, opts FileWriteOptions, contents []byte) error {
	w := g.client.Bucket(g.bucket).Object(path).NewWriter(ctx)
	w.ObjectAttrs.ContentEncoding = opts.ContentEncoding
	w.ObjectAttrs.ContentType = opts.ContentType
	w.ObjectAttrs.Metadata = opts.Metadata
	if n, err := w.Write(contents); err != nil {
		_ = w.Close()
		return fmt.Errorf("there was a problem uploading %s, only uploaded %d bytes: %s", path, n, err)
	}
	return w.Close()
}

// DoesFileExist implements GCSClient.
func (g *gcsclient) DoesFileExist(ctx context.Context, path string) (bool, error) {
	if _, err := g.client.Bucket(g.bucket).Object(path).Attrs(ctx); err != nil {
		if err == storage.ErrObjectNotExist {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// AllFilesInDirectory implements GCSClient.
func (g *gcsclient) AllFilesInDirectory(ctx context.Context, prefix string, callback func(item *storage.ObjectAttrs)) error {
	q := &storage.Query{Prefix: prefix, Versions: false}
	it := g.client.Bucket(g.bucket).Objects(ctx, q)
	for obj, err := it.Next(); err != iterator.Done; obj, err = it.Next() {
		if err != nil {
			return fmt.Errorf("problem reading from Google Storage: %v", err)
		}
		callback(obj)
	}
	return nil
}

// Bucket implements GCSClient.
func (g *gcsclient) Bucket() string {
	return g.bucket
}
