package artifacts_test

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atalyaalon/patents-topic-modeling/go/gcs"
	"github.com/atalyaalon/patents-topic-modeling/go/gcs/mem_gcsclient"
	"github.com/atalyaalon/patents-topic-modeling/patents/go/artifacts"
	"github.com/atalyaalon/patents-topic-modeling/patents/go/artifacts/fixtures"
)

const samplePrefix = "outputs_sample"

func newPopulatedStore(t *testing.T) (*artifacts.Store, *mem_gcsclient.Client) {
	client := mem_gcsclient.New("test-bucket")
	fixtures.Populate(t, client, samplePrefix)
	return artifacts.NewStore(client), client
}

func TestPrefix_LowercasesVariant(t *testing.T) {
	assert.Equal(t, "outputs_sample", artifacts.Prefix("SAMPLE"))
	assert.Equal(t, "outputs_full", artifacts.Prefix("full"))
}

func TestStore_Patents_Success(t *testing.T) {
	store, _ := newPopulatedStore(t)
	table, err := store.Patents(context.Background(), samplePrefix)
	require.NoError(t, err)
	require.Len(t, table, 6)
	assert.Equal(t, "9713127", table[0].PatentNumber)
	assert.Equal(t, "Unmanned aerial vehicle control", table[0].Title)
	assert.Equal(t, 25, table[0].Topic)
}

func TestStore_PatentToIdx_MatchesTableOrder(t *testing.T) {
	store, _ := newPopulatedStore(t)
	ctx := context.Background()
	table, err := store.Patents(ctx, samplePrefix)
	require.NoError(t, err)
	idx, err := store.PatentToIdx(ctx, samplePrefix)
	require.NoError(t, err)
	require.Len(t, idx, len(table))
	for i, rec := range table {
		assert.Equal(t, i, idx[rec.PatentNumber])
	}
}

func TestStore_Embeddings_RowsMatchPatentTable(t *testing.T) {
	store, _ := newPopulatedStore(t)
	matrix, err := store.Embeddings(context.Background(), samplePrefix)
	require.NoError(t, err)
	require.Len(t, matrix, len(fixtures.Patents))
	assert.Equal(t, []float32{1, 0}, matrix[0])
	assert.InDelta(t, 0.8, matrix[1][0], 1e-6)
	assert.InDelta(t, 0.6, matrix[1][1], 1e-6)
}

func TestStore_TopicModel_Success(t *testing.T) {
	store, _ := newPopulatedStore(t)
	model, err := store.TopicModel(context.Background(), samplePrefix)
	require.NoError(t, err)
	assert.Equal(t, []string{"drone", "aerial", "uav", "flight", "rotor"}, model.TopWords(25, 5))
}

func TestStore_FlatIndex_Success(t *testing.T) {
	store, _ := newPopulatedStore(t)
	index, err := store.FlatIndex(context.Background(), samplePrefix)
	require.NoError(t, err)
	assert.Equal(t, 6, index.Len())
	assert.Equal(t, 2, index.Dim)
}

func TestStore_SecondLoadIsACacheHit(t *testing.T) {
	store, client := newPopulatedStore(t)
	ctx := context.Background()

	first, err := store.Patents(ctx, samplePrefix)
	require.NoError(t, err)
	second, err := store.Patents(ctx, samplePrefix)
	require.NoError(t, err)

	assert.Equal(t, 1, client.NumReads(samplePrefix+"/"+artifacts.PatentsKey))
	// Same backing data, not a re-decoded copy.
	assert.Same(t, &first[0], &second[0])
}

func TestStore_DistinctPrefixesDoNotCollide(t *testing.T) {
	client := mem_gcsclient.New("test-bucket")
	fixtures.Populate(t, client, "outputs_sample")
	fixtures.Populate(t, client, "outputs_full")
	store := artifacts.NewStore(client)
	ctx := context.Background()

	_, err := store.Patents(ctx, "outputs_sample")
	require.NoError(t, err)
	_, err = store.Patents(ctx, "outputs_full")
	require.NoError(t, err)

	assert.Equal(t, 1, client.NumReads("outputs_sample/"+artifacts.PatentsKey))
	assert.Equal(t, 1, client.NumReads("outputs_full/"+artifacts.PatentsKey))
}

func TestStore_MissingObject_RetrievalErrorNamesObject(t *testing.T) {
	store := artifacts.NewStore(mem_gcsclient.New("test-bucket"))
	_, err := store.Patents(context.Background(), samplePrefix)
	require.Error(t, err)
	var retrievalErr *artifacts.RetrievalError
	require.ErrorAs(t, err, &retrievalErr)
	assert.Contains(t, err.Error(), "gs://test-bucket/outputs_sample/patents.json")
	assert.True(t, errors.Is(err, storage.ErrObjectNotExist))
}

func TestStore_FailedLoadIsNotCached(t *testing.T) {
	client := mem_gcsclient.New("test-bucket")
	store := artifacts.NewStore(client)
	ctx := context.Background()

	_, err := store.Patents(ctx, samplePrefix)
	require.Error(t, err)

	// Publish the artifact and try again; the earlier failure must not
	// stick.
	fixtures.Populate(t, client, samplePrefix)
	table, err := store.Patents(ctx, samplePrefix)
	require.NoError(t, err)
	assert.Len(t, table, 6)
}

func TestStore_MalformedJSON_RetrievalError(t *testing.T) {
	client := mem_gcsclient.New("test-bucket")
	ctx := context.Background()
	require.NoError(t, client.SetFileContents(ctx, samplePrefix+"/"+artifacts.PatentsKey, gcs.FileWriteOptsJSON, []byte("not json")))
	store := artifacts.NewStore(client)

	_, err := store.Patents(ctx, samplePrefix)
	require.Error(t, err)
	var retrievalErr *artifacts.RetrievalError
	require.ErrorAs(t, err, &retrievalErr)
	assert.Equal(t, samplePrefix+"/"+artifacts.PatentsKey, retrievalErr.Path)
}

func TestStore_TopicsCountAndByYear_Success(t *testing.T) {
	store, _ := newPopulatedStore(t)
	ctx := context.Background()

	counts, err := store.TopicsCount(ctx, samplePrefix)
	require.NoError(t, err)
	assert.Len(t, counts, len(fixtures.TopicsCount))

	byYear, err := store.TopicsByYear(ctx, samplePrefix)
	require.NoError(t, err)
	assert.Len(t, byYear, len(fixtures.TopicsByYear))
	for _, row := range byYear {
		assert.GreaterOrEqual(t, row.Count, 0)
	}
}

func TestStore_ListArtifacts_ReturnsAllSevenObjects(t *testing.T) {
	store, _ := newPopulatedStore(t)
	infos, err := store.ListArtifacts(context.Background(), samplePrefix)
	require.NoError(t, err)
	require.Len(t, infos, 7)
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name)
		assert.Greater(t, info.Size, int64(0))
	}
	assert.Contains(t, names, samplePrefix+"/"+artifacts.EmbeddingsKey)
	assert.Contains(t, names, samplePrefix+"/"+artifacts.TopicModelKey+".zip")
}
