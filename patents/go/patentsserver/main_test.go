package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atalyaalon/patents-topic-modeling/go/baseapp"
	"github.com/atalyaalon/patents-topic-modeling/go/gcs/mem_gcsclient"
	"github.com/atalyaalon/patents-topic-modeling/patents/go/artifacts"
	"github.com/atalyaalon/patents-topic-modeling/patents/go/artifacts/fixtures"
	"github.com/atalyaalon/patents-topic-modeling/patents/go/patentsserver/rpc"
)

func newServerForTesting(t *testing.T) *server {
	*baseapp.ResourcesDir = filepath.Join("..", "..", "pages")

	client := mem_gcsclient.New("test-bucket")
	fixtures.Populate(t, client, artifacts.Prefix("sample"))

	srv := &server{
		store:  artifacts.NewStore(client),
		prefix: artifacts.Prefix("sample"),
	}
	require.NoError(t, srv.loadConfig())
	srv.loadTemplates()
	return srv
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dst))
}

func TestLoadConfig_Success_ReadsPageSettings(t *testing.T) {
	srv := newServerForTesting(t)

	assert.Equal(t, "9713127", srv.cfg.DefaultPatent)
	assert.Equal(t, "https://patents.google.com/patent/US%s", srv.cfg.PatentURLTemplate)
	require.NotEmpty(t, srv.cfg.TrendGroups)
	assert.Equal(t, []int{25}, srv.cfg.TrendGroups[0].TopicIDs)
}

func TestLookupHandler_Success_ReturnsNeighborsInDescendingOrder(t *testing.T) {
	srv := newServerForTesting(t)

	w := httptest.NewRecorder()
	srv.lookupHandler(w, httptest.NewRequest("GET", "/rpc/lookup/v1?patent=9713127", nil))

	var res rpc.LookupRPCResponse
	decodeJSON(t, w, &res)
	assert.Equal(t, "9713127", res.PatentNumber)
	assert.Equal(t, "https://patents.google.com/patent/US9713127", res.Link)
	assert.Equal(t, "Unmanned aerial vehicle control", res.Title)
	// Topic 25's highest-weight words.
	assert.Equal(t, []string{"drone", "aerial", "uav", "flight", "rotor"}, res.TopicWords)

	require.Len(t, res.Neighbors, 5)
	assert.Equal(t, "9713128", res.Neighbors[0].PatentNumber)
	assert.InDelta(t, 0.8, res.Neighbors[0].Similarity, 1e-9)
	assert.Equal(t, "https://patents.google.com/patent/US9713128", res.Neighbors[0].Link)
	for i := 1; i < len(res.Neighbors); i++ {
		assert.GreaterOrEqual(t, res.Neighbors[i-1].Similarity, res.Neighbors[i].Similarity)
		assert.NotEqual(t, "9713127", res.Neighbors[i].PatentNumber)
	}
}

func TestLookupHandler_UnknownPatent_ReturnsNotFound(t *testing.T) {
	srv := newServerForTesting(t)

	w := httptest.NewRecorder()
	srv.lookupHandler(w, httptest.NewRequest("GET", "/rpc/lookup/v1?patent=0000000", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "not found")
}

func TestLookupHandler_MissingParameter_ReturnsBadRequest(t *testing.T) {
	srv := newServerForTesting(t)

	w := httptest.NewRecorder()
	srv.lookupHandler(w, httptest.NewRequest("GET", "/rpc/lookup/v1", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLookupHandler_MissingArtifacts_ReturnsInternalError(t *testing.T) {
	*baseapp.ResourcesDir = filepath.Join("..", "..", "pages")
	srv := &server{
		store:  artifacts.NewStore(mem_gcsclient.New("test-bucket")),
		prefix: artifacts.Prefix("sample"),
	}
	require.NoError(t, srv.loadConfig())
	srv.loadTemplates()

	w := httptest.NewRecorder()
	srv.lookupHandler(w, httptest.NewRequest("GET", "/rpc/lookup/v1?patent=9713127", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestExplorerPageHandler_NoParameter_UsesDefaultPatent(t *testing.T) {
	srv := newServerForTesting(t)

	w := httptest.NewRecorder()
	srv.explorerPageHandler(w, httptest.NewRequest("GET", "/", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "US9713127")
	assert.Contains(t, body, "Unmanned aerial vehicle control")
	assert.Contains(t, body, "Drone navigation system")
	// Similarities render with three decimals.
	assert.Contains(t, body, "0.800")
}

func TestExplorerPageHandler_UnknownPatent_RendersNotFoundMessage(t *testing.T) {
	srv := newServerForTesting(t)

	w := httptest.NewRecorder()
	srv.explorerPageHandler(w, httptest.NewRequest("GET", "/?patent=0000000", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Patent number 0000000 not found in system.")
}

func TestTopTopicsHandler_Success_ExcludesSentinelAndCapsAtTen(t *testing.T) {
	srv := newServerForTesting(t)

	w := httptest.NewRecorder()
	srv.topTopicsHandler(w, httptest.NewRequest("GET", "/rpc/topics/v1", nil))

	var res rpc.TopTopicsRPCResponse
	decodeJSON(t, w, &res)
	require.Len(t, res.Topics, 10)
	assert.Equal(t, 25, res.Topics[0].TopicID)
	for _, topic := range res.Topics {
		assert.NotEqual(t, -1, topic.TopicID)
	}
	for i := 1; i < len(res.Topics); i++ {
		assert.GreaterOrEqual(t, res.Topics[i-1].Count, res.Topics[i].Count)
	}
}

func TestByYearHandler_Success_SumsCountsPerYear(t *testing.T) {
	srv := newServerForTesting(t)

	w := httptest.NewRecorder()
	srv.byYearHandler(w, httptest.NewRequest("GET", "/rpc/byyear/v1", nil))

	var res rpc.ByYearRPCResponse
	decodeJSON(t, w, &res)
	require.Equal(t, []rpc.YearCount{
		{Year: 2013, Count: 10},
		{Year: 2014, Count: 20},
		{Year: 2015, Count: 95},
		{Year: 2016, Count: 210},
		{Year: 2017, Count: 15},
	}, res.Years)
	require.Equal(t, []rpc.TopicStatusSlice{
		{Status: "Topic assigned", Count: 880},
		{Status: "No topic", Count: 400},
	}, res.Status)
}

func TestTrendsHandler_Success_KeepsConfiguredGroupOrder(t *testing.T) {
	srv := newServerForTesting(t)

	w := httptest.NewRecorder()
	srv.trendsHandler(w, httptest.NewRequest("GET", "/rpc/trends/v1", nil))

	var res rpc.TrendsRPCResponse
	decodeJSON(t, w, &res)
	require.Len(t, res.Groups, 2)

	first := res.Groups[0]
	require.Len(t, first.Series, 1)
	assert.Equal(t, 25, first.Series[0].TopicID)
	assert.Equal(t, "drone, aerial, uav", first.Series[0].TopicWords)
	require.Len(t, first.Series[0].Points, 5)
	assert.Equal(t, rpc.TrendPoint{Year: 2013, Count: 10}, first.Series[0].Points[0])

	second := res.Groups[1]
	require.Len(t, second.Series, 4)
	assert.Equal(t, 252, second.Series[0].TopicID)
	assert.Equal(t, 101, second.Series[1].TopicID)
	// Topics without table rows still get an empty series.
	assert.Equal(t, 124, second.Series[2].TopicID)
	assert.Empty(t, second.Series[2].Points)
}

func TestStatusHandler_Success_ListsAllArtifacts(t *testing.T) {
	srv := newServerForTesting(t)

	w := httptest.NewRecorder()
	srv.statusHandler(w, httptest.NewRequest("GET", "/rpc/status/v1", nil))

	var res rpc.StatusRPCResponse
	decodeJSON(t, w, &res)
	assert.Equal(t, "test-bucket", res.Bucket)
	assert.Equal(t, "outputs_sample", res.Prefix)
	require.Len(t, res.Artifacts, 7)
}

func TestDashboardPageHandler_Success_RendersAggregates(t *testing.T) {
	srv := newServerForTesting(t)

	w := httptest.NewRecorder()
	srv.dashboardPageHandler(w, httptest.NewRequest("GET", "/dashboard", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "drone, aerial, uav")
	assert.Contains(t, body, "2016")
	assert.Contains(t, body, "No topic")
}

func TestTrendsPageHandler_Success_RendersCaptions(t *testing.T) {
	srv := newServerForTesting(t)

	w := httptest.NewRecorder()
	srv.trendsPageHandler(w, httptest.NewRequest("GET", "/trends", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Machine learning patents")
}
