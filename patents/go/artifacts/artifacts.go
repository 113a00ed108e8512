// Package artifacts loads the precomputed outputs of the patent
// topic-modeling pipeline from Google Cloud Storage.
//
// All artifacts of one dataset variant live under a single object prefix
// (e.g. "outputs_sample"). Every loaded artifact is an immutable snapshot,
// memoized for the lifetime of the process: refreshing data means
// restarting the server.
package artifacts

import (
	"context"
	"encoding/json"
	"strings"

	"cloud.google.com/go/storage"
	gocache "github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/atalyaalon/patents-topic-modeling/go/gcs"
	"github.com/atalyaalon/patents-topic-modeling/go/skerr"
	"github.com/atalyaalon/patents-topic-modeling/go/sklog"
	"github.com/atalyaalon/patents-topic-modeling/patents/go/topics"
)

// Object keys of the artifacts published for each dataset variant. The
// topic model is an archive and is fetched with a ".zip" suffix appended.
const (
	PatentsKey      = "patents.json"
	PatentToIdxKey  = "patent_to_idx.json"
	EmbeddingsKey   = "embeddings_normalized.npy"
	FlatIndexKey    = "patent_flat_normalized_embeddings.index"
	TopicModelKey   = "topic_model"
	TopicsCountKey  = "topics_count.json"
	TopicsByYearKey = "topics_by_year.json"
)

var (
	fetchCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "patents_artifact_fetch",
		Help: "Number of remote artifact fetches, per object key.",
	}, []string{"key"})
	cacheHitCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "patents_artifact_cache_hit",
		Help: "Number of artifact loads served from the in-process cache.",
	}, []string{"key"})
)

// Prefix returns the object prefix for the given dataset variant, e.g.
// "outputs_sample" for "sample".
func Prefix(datasetType string) string {
	return "outputs_" + strings.ToLower(datasetType)
}

// PatentRecord is one row of the patent table. Row position within the
// table is the canonical index shared with the embedding matrix.
type PatentRecord struct {
	PatentNumber string `json:"patent_number"`
	Title        string `json:"title"`
	// Topic is the assigned topic id, or topics.NoTopic if no dominant
	// topic was found.
	Topic int `json:"topic"`
	Year  int `json:"year"`
}

// PatentTable is the full ordered patent table of one dataset variant.
type PatentTable []PatentRecord

// TopicCount is one row of the per-topic totals table.
type TopicCount struct {
	TopicID    int    `json:"topic_id"`
	TopicWords string `json:"topic_words"`
	Count      int    `json:"count"`
}

// TopicYearCount is one row of the per-(topic, year) counts table.
type TopicYearCount struct {
	TopicID    int    `json:"topic_id"`
	TopicWords string `json:"topic_words"`
	Year       int    `json:"year"`
	Count      int    `json:"count"`
}

// RetrievalError is returned when a remote artifact is missing, unreadable,
// or fails to deserialize. It is never retried; it propagates to the top of
// the current page render.
type RetrievalError struct {
	Bucket string
	Path   string
	Err    error
}

// Error implements the error interface.
func (e *RetrievalError) Error() string {
	return "failed to retrieve gs://" + e.Bucket + "/" + e.Path + ": " + e.Err.Error()
}

// Unwrap supports errors.Is and errors.As.
func (e *RetrievalError) Unwrap() error {
	return e.Err
}

// Store loads artifacts from GCS and memoizes every successful load for the
// lifetime of the process, keyed by (bucket, prefix, key). There is no
// eviction and no TTL. Concurrent callers may race on the very first fetch
// of a key, which is harmless because artifacts are immutable and
// idempotent to reload.
type Store struct {
	client gcs.GCSClient
	cache  *gocache.Cache
}

// NewStore returns a Store backed by the given client.
func NewStore(client gcs.GCSClient) *Store {
	return &Store{
		client: client,
		cache:  gocache.New(gocache.NoExpiration, 0),
	}
}

// objectPath returns the object name for key under prefix.
func objectPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}

// fetch downloads a single object, converting any failure into a
// *RetrievalError naming the object.
func (s *Store) fetch(ctx context.Context, prefix, key string) ([]byte, error) {
	path := objectPath(prefix, key)
	sklog.Infof("Loading gs://%s/%s", s.client.Bucket(), path)
	fetchCounter.WithLabelValues(key).Inc()
	b, err := s.client.GetFileContents(ctx, path)
	if err != nil {
		return nil, &RetrievalError{Bucket: s.client.Bucket(), Path: path, Err: err}
	}
	return b, nil
}

// cached memoizes load under (bucket, prefix, key). Only successful loads
// are admitted to the cache.
func cached[T any](s *Store, prefix, key string, load func() (T, error)) (T, error) {
	cacheKey := s.client.Bucket() + "/" + objectPath(prefix, key)
	if v, ok := s.cache.Get(cacheKey); ok {
		cacheHitCounter.WithLabelValues(key).Inc()
		return v.(T), nil
	}
	v, err := load()
	if err != nil {
		var zero T
		return zero, err
	}
	s.cache.Set(cacheKey, v, gocache.NoExpiration)
	return v, nil
}

// retrievalErr wraps a deserialization failure of the object at
// prefix/key.
func (s *Store) retrievalErr(prefix, key string, err error) error {
	return &RetrievalError{Bucket: s.client.Bucket(), Path: objectPath(prefix, key), Err: err}
}

// Patents returns the patent table of the given dataset prefix.
func (s *Store) Patents(ctx context.Context, prefix string) (PatentTable, error) {
	return cached(s, prefix, PatentsKey, func() (PatentTable, error) {
		b, err := s.fetch(ctx, prefix, PatentsKey)
		if err != nil {
			return nil, err
		}
		var table PatentTable
		if err := json.Unmarshal(b, &table); err != nil {
			return nil, s.retrievalErr(prefix, PatentsKey, err)
		}
		return table, nil
	})
}

// PatentToIdx returns the patent number to row index map of the given
// dataset prefix. It is always derived from the same pipeline run as the
// patent table, so the two stay in lockstep.
func (s *Store) PatentToIdx(ctx context.Context, prefix string) (map[string]int, error) {
	return cached(s, prefix, PatentToIdxKey, func() (map[string]int, error) {
		b, err := s.fetch(ctx, prefix, PatentToIdxKey)
		if err != nil {
			return nil, err
		}
		var m map[string]int
		if err := json.Unmarshal(b, &m); err != nil {
			return nil, s.retrievalErr(prefix, PatentToIdxKey, err)
		}
		return m, nil
	})
}

// Embeddings returns the L2-normalized embedding matrix of the given
// dataset prefix. Row i corresponds to row i of the patent table.
func (s *Store) Embeddings(ctx context.Context, prefix string) ([][]float32, error) {
	return cached(s, prefix, EmbeddingsKey, func() ([][]float32, error) {
		r, err := s.client.FileReader(ctx, objectPath(prefix, EmbeddingsKey))
		if err != nil {
			return nil, s.retrievalErr(prefix, EmbeddingsKey, err)
		}
		defer func() {
			_ = r.Close()
		}()
		sklog.Infof("Loading gs://%s/%s", s.client.Bucket(), objectPath(prefix, EmbeddingsKey))
		fetchCounter.WithLabelValues(EmbeddingsKey).Inc()
		matrix, err := readMatrix(r)
		if err != nil {
			return nil, s.retrievalErr(prefix, EmbeddingsKey, err)
		}
		return matrix, nil
	})
}

// TopicModel returns the trained topic model of the given dataset prefix.
func (s *Store) TopicModel(ctx context.Context, prefix string) (*topics.Model, error) {
	return cached(s, prefix, TopicModelKey, func() (*topics.Model, error) {
		b, err := s.fetch(ctx, prefix, TopicModelKey+".zip")
		if err != nil {
			return nil, err
		}
		model, err := topics.FromArchive(b)
		if err != nil {
			return nil, s.retrievalErr(prefix, TopicModelKey+".zip", err)
		}
		return model, nil
	})
}

// FlatIndex returns the precomputed similarity index of the given dataset
// prefix. The index is published by the pipeline for sub-linear search at
// full scale; the lookup path does not query it yet.
func (s *Store) FlatIndex(ctx context.Context, prefix string) (*FlatIndex, error) {
	return cached(s, prefix, FlatIndexKey, func() (*FlatIndex, error) {
		b, err := s.fetch(ctx, prefix, FlatIndexKey)
		if err != nil {
			return nil, err
		}
		index, err := DecodeFlatIndex(b)
		if err != nil {
			return nil, s.retrievalErr(prefix, FlatIndexKey, err)
		}
		return index, nil
	})
}

// TopicsCount returns the per-topic totals table of the given dataset
// prefix.
func (s *Store) TopicsCount(ctx context.Context, prefix string) ([]TopicCount, error) {
	return cached(s, prefix, TopicsCountKey, func() ([]TopicCount, error) {
		b, err := s.fetch(ctx, prefix, TopicsCountKey)
		if err != nil {
			return nil, err
		}
		var rows []TopicCount
		if err := json.Unmarshal(b, &rows); err != nil {
			return nil, s.retrievalErr(prefix, TopicsCountKey, err)
		}
		return rows, nil
	})
}

// TopicsByYear returns the per-(topic, year) counts table of the given
// dataset prefix.
func (s *Store) TopicsByYear(ctx context.Context, prefix string) ([]TopicYearCount, error) {
	return cached(s, prefix, TopicsByYearKey, func() ([]TopicYearCount, error) {
		b, err := s.fetch(ctx, prefix, TopicsByYearKey)
		if err != nil {
			return nil, err
		}
		var rows []TopicYearCount
		if err := json.Unmarshal(b, &rows); err != nil {
			return nil, s.retrievalErr(prefix, TopicsByYearKey, err)
		}
		return rows, nil
	})
}

// ListArtifacts returns the names and sizes of all objects currently
// published under the given dataset prefix. Not cached: this is a
// diagnostic surface, not part of a page render.
func (s *Store) ListArtifacts(ctx context.Context, prefix string) ([]ArtifactInfo, error) {
	var infos []ArtifactInfo
	err := s.client.AllFilesInDirectory(ctx, prefix+"/", func(item *storage.ObjectAttrs) {
		infos = append(infos, ArtifactInfo{Name: item.Name, Size: item.Size})
	})
	if err != nil {
		return nil, skerr.Wrapf(err, "listing gs://%s/%s", s.client.Bucket(), prefix)
	}
	return infos, nil
}

// ArtifactInfo describes one published object.
type ArtifactInfo struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Bucket returns the bucket this store reads from.
func (s *Store) Bucket() string {
	return s.client.Bucket()
}
