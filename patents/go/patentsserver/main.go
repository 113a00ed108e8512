package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"path/filepath"
	"text/template"

	"cloud.google.com/go/storage"
	"github.com/go-chi/chi/v5"
	"github.com/spf13/viper"
	"github.com/unrolled/secure"

	"github.com/atalyaalon/patents-topic-modeling/go/baseapp"
	"github.com/atalyaalon/patents-topic-modeling/go/gcs"
	"github.com/atalyaalon/patents-topic-modeling/go/httputils"
	"github.com/atalyaalon/patents-topic-modeling/go/skerr"
	"github.com/atalyaalon/patents-topic-modeling/go/sklog"
	"github.com/atalyaalon/patents-topic-modeling/patents/go/artifacts"
	"github.com/atalyaalon/patents-topic-modeling/patents/go/patentsserver/rpc"
	"github.com/atalyaalon/patents-topic-modeling/patents/go/search"
)

var (
	bucket      = flag.String("bucket", "", "GCS bucket holding the published pipeline artifacts.")
	datasetType = flag.String("dataset_type", "full", "Dataset variant to serve on the dashboard pages, \"sample\" or \"full\".")
)

// topTopicsLimit is how many topics the dashboard's top-topics bar chart
// shows.
const topTopicsLimit = 10

// trendGroupConfig is one curated group of topic ids charted together on the
// trends page.
type trendGroupConfig struct {
	Caption  string `mapstructure:"caption"`
	TopicIDs []int  `mapstructure:"topic_ids"`
}

// pageConfig is the page-level configuration read from config.yaml in the
// resources directory.
type pageConfig struct {
	// DefaultPatent is the patent number prefilled on the explorer page.
	DefaultPatent string `mapstructure:"default_patent"`
	// PatentURLTemplate turns a patent number into an external link, e.g.
	// "https://patents.google.com/patent/US%s".
	PatentURLTemplate string             `mapstructure:"patent_url_template"`
	TrendGroups       []trendGroupConfig `mapstructure:"trend_groups"`
}

type server struct {
	templates *template.Template
	store     *artifacts.Store
	cfg       pageConfig

	// prefix is the object prefix of the dataset variant served on the
	// dashboard and trends pages, derived from --dataset_type.
	prefix string
}

// See baseapp.Constructor.
func new() (baseapp.App, error) {
	if *bucket == "" {
		return nil, skerr.Fmt("--bucket is required")
	}

	ctx := context.Background()
	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, skerr.Wrapf(err, "failed to create storage client")
	}

	srv := &server{
		store:  artifacts.NewStore(gcs.New(storageClient, *bucket)),
		prefix: artifacts.Prefix(*datasetType),
	}
	if err := srv.loadConfig(); err != nil {
		return nil, skerr.Wrapf(err, "failed to load page config")
	}
	srv.loadTemplates()

	sklog.Infof("Serving artifacts from gs://%s/%s.", *bucket, srv.prefix)
	return srv, nil
}

// loadConfig reads config.yaml from the resources directory.
func (s *server) loadConfig() error {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(*baseapp.ResourcesDir)
	if err := v.ReadInConfig(); err != nil {
		return skerr.Wrapf(err, "failed to read config.yaml from %s", *baseapp.ResourcesDir)
	}
	if err := v.Unmarshal(&s.cfg); err != nil {
		return skerr.Wrapf(err, "failed to decode config.yaml")
	}
	return nil
}

// loadTemplates loads the HTML templates to serve to the UI.
func (s *server) loadTemplates() {
	s.templates = template.Must(template.New("").Delims("{%", "%}").ParseGlob(
		filepath.Join(*baseapp.ResourcesDir, "*.html"),
	))
}

// patentLink expands the configured URL template for the given patent number.
func (s *server) patentLink(patentNumber string) string {
	if s.cfg.PatentURLTemplate == "" {
		return ""
	}
	return fmt.Sprintf(s.cfg.PatentURLTemplate, patentNumber)
}

// explorer assembles a similarity explorer over the sample dataset's
// artifacts. All four loads hit the process cache after the first request.
//
// The explorer always uses the sample variant regardless of --dataset_type:
// the full dataset's embedding matrix is too large to hold per replica.
// TODO(atalyaalon): Serve the full variant once lookups go through the
// published flat index instead of the in-memory matrix.
func (s *server) explorer(ctx context.Context) (*search.Explorer, error) {
	prefix := artifacts.Prefix("sample")
	patents, err := s.store.Patents(ctx, prefix)
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	patentToIdx, err := s.store.PatentToIdx(ctx, prefix)
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	embeddings, err := s.store.Embeddings(ctx, prefix)
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	model, err := s.store.TopicModel(ctx, prefix)
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	return search.NewExplorer(patents, patentToIdx, embeddings, model)
}

// lookupResponse converts a search result into its RPC shape, attaching
// external links.
func (s *server) lookupResponse(res *search.Result) *rpc.LookupRPCResponse {
	out := &rpc.LookupRPCResponse{
		PatentNumber: res.PatentNumber,
		Link:         s.patentLink(res.PatentNumber),
		Title:        res.Title,
		TopicWords:   res.TopicWords,
		Neighbors:    make([]rpc.Neighbor, 0, len(res.Neighbors)),
	}
	for _, n := range res.Neighbors {
		out.Neighbors = append(out.Neighbors, rpc.Neighbor{
			PatentNumber: n.PatentNumber,
			Title:        n.Title,
			Similarity:   n.Similarity,
			Link:         s.patentLink(n.PatentNumber),
		})
	}
	return out
}

// lookup runs a similarity lookup for the given patent number. The boolean
// return distinguishes an unknown patent number from a hard failure.
func (s *server) lookup(ctx context.Context, patentNumber string) (*rpc.LookupRPCResponse, bool, error) {
	e, err := s.explorer(ctx)
	if err != nil {
		return nil, false, skerr.Wrap(err)
	}
	res, err := e.Lookup(patentNumber)
	var notFound *search.PatentNotFoundError
	if errors.As(err, &notFound) {
		return nil, true, nil
	}
	if err != nil {
		return nil, false, skerr.Wrap(err)
	}
	return s.lookupResponse(res), false, nil
}

// sendJSONResponse sends a JSON representation of any data structure as an
// HTTP response. If the conversion to JSON has an error, the error is logged.
func sendJSONResponse(data interface{}, w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		sklog.Errorf("Failed to write response: %s", err)
	}
}

// sendHTMLResponse renders the given template with the given data, which must
// carry the current request's CSP nonce. If template rendering fails, it logs
// an error.
func (s *server) sendHTMLResponse(templateName string, data interface{}, w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html")
	if err := s.templates.ExecuteTemplate(w, templateName, data); err != nil {
		sklog.Errorf("Failed to expand template %s: %s", templateName, err)
	}
}

// explorerPageContext is the template context of the explorer page.
type explorerPageContext struct {
	Nonce        string
	PatentNumber string
	NotFound     bool
	Result       *rpc.LookupRPCResponse
}

func (s *server) explorerPageHandler(w http.ResponseWriter, r *http.Request) {
	patentNumber := r.FormValue("patent")
	if patentNumber == "" {
		patentNumber = s.cfg.DefaultPatent
	}

	pctx := explorerPageContext{
		Nonce:        secure.CSPNonce(r.Context()),
		PatentNumber: patentNumber,
	}
	res, notFound, err := s.lookup(r.Context(), patentNumber)
	if err != nil {
		httputils.ReportError(w, err, "Failed to load patent artifacts.", http.StatusInternalServerError)
		return
	}
	pctx.NotFound = notFound
	pctx.Result = res

	s.sendHTMLResponse("explorer.html", pctx, w)
}

// dashboardPageContext is the template context of the dashboard page.
type dashboardPageContext struct {
	Nonce       string
	DatasetType string
	TopTopics   []artifacts.TopicCount
	Years       []rpc.YearCount
	Status      []rpc.TopicStatusSlice
}

func (s *server) dashboardPageHandler(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.TopicsCount(r.Context(), s.prefix)
	if err != nil {
		httputils.ReportError(w, err, "Failed to load topic counts.", http.StatusInternalServerError)
		return
	}
	byYear, err := s.store.TopicsByYear(r.Context(), s.prefix)
	if err != nil {
		httputils.ReportError(w, err, "Failed to load per-year topic counts.", http.StatusInternalServerError)
		return
	}

	s.sendHTMLResponse("dashboard.html", dashboardPageContext{
		Nonce:       secure.CSPNonce(r.Context()),
		DatasetType: *datasetType,
		TopTopics:   topTopics(counts, topTopicsLimit),
		Years:       countsPerYear(byYear),
		Status:      topicStatusSlices(counts),
	}, w)
}

// trendsPageContext is the template context of the trends page.
type trendsPageContext struct {
	Nonce  string
	Groups []rpc.TrendGroup
}

func (s *server) trendsPageHandler(w http.ResponseWriter, r *http.Request) {
	groups, err := s.trendGroups(r.Context())
	if err != nil {
		httputils.ReportError(w, err, "Failed to load per-year topic counts.", http.StatusInternalServerError)
		return
	}
	s.sendHTMLResponse("trends.html", trendsPageContext{
		Nonce:  secure.CSPNonce(r.Context()),
		Groups: groups,
	}, w)
}

// trendGroups assembles the configured trend groups from the per-year counts
// table.
func (s *server) trendGroups(ctx context.Context) ([]rpc.TrendGroup, error) {
	byYear, err := s.store.TopicsByYear(ctx, s.prefix)
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	groups := make([]rpc.TrendGroup, 0, len(s.cfg.TrendGroups))
	for _, g := range s.cfg.TrendGroups {
		groups = append(groups, rpc.TrendGroup{
			Caption: g.Caption,
			Series:  trendSeries(byYear, g.TopicIDs),
		})
	}
	return groups, nil
}

func (s *server) lookupHandler(w http.ResponseWriter, r *http.Request) {
	patentNumber := r.FormValue("patent")
	if patentNumber == "" {
		httputils.ReportError(w, skerr.Fmt("missing patent parameter"), "The patent parameter is required.", http.StatusBadRequest)
		return
	}
	res, notFound, err := s.lookup(r.Context(), patentNumber)
	if err != nil {
		httputils.ReportError(w, err, "Failed to load patent artifacts.", http.StatusInternalServerError)
		return
	}
	if notFound {
		httputils.ReportError(w, skerr.Fmt("patent %q not found", patentNumber), "Patent number not found in system.", http.StatusNotFound)
		return
	}
	sendJSONResponse(res, w)
}

func (s *server) topTopicsHandler(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.TopicsCount(r.Context(), s.prefix)
	if err != nil {
		httputils.ReportError(w, err, "Failed to load topic counts.", http.StatusInternalServerError)
		return
	}
	sendJSONResponse(rpc.TopTopicsRPCResponse{
		Topics: topTopics(counts, topTopicsLimit),
	}, w)
}

func (s *server) byYearHandler(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.TopicsCount(r.Context(), s.prefix)
	if err != nil {
		httputils.ReportError(w, err, "Failed to load topic counts.", http.StatusInternalServerError)
		return
	}
	byYear, err := s.store.TopicsByYear(r.Context(), s.prefix)
	if err != nil {
		httputils.ReportError(w, err, "Failed to load per-year topic counts.", http.StatusInternalServerError)
		return
	}
	sendJSONResponse(rpc.ByYearRPCResponse{
		Years:  countsPerYear(byYear),
		Status: topicStatusSlices(counts),
	}, w)
}

func (s *server) trendsHandler(w http.ResponseWriter, r *http.Request) {
	groups, err := s.trendGroups(r.Context())
	if err != nil {
		httputils.ReportError(w, err, "Failed to load per-year topic counts.", http.StatusInternalServerError)
		return
	}
	sendJSONResponse(rpc.TrendsRPCResponse{Groups: groups}, w)
}

func (s *server) statusHandler(w http.ResponseWriter, r *http.Request) {
	infos, err := s.store.ListArtifacts(r.Context(), s.prefix)
	if err != nil {
		httputils.ReportError(w, err, "Failed to list artifacts.", http.StatusInternalServerError)
		return
	}
	sendJSONResponse(rpc.StatusRPCResponse{
		Bucket:      s.store.Bucket(),
		DatasetType: *datasetType,
		Prefix:      s.prefix,
		Artifacts:   infos,
	}, w)
}

// See baseapp.App.
func (s *server) AddHandlers(r chi.Router) {
	r.Get("/", s.explorerPageHandler)
	r.Get("/dashboard", s.dashboardPageHandler)
	r.Get("/trends", s.trendsPageHandler)
	r.Get("/rpc/lookup/v1", s.lookupHandler)
	r.Get("/rpc/topics/v1", s.topTopicsHandler)
	r.Get("/rpc/byyear/v1", s.byYearHandler)
	r.Get("/rpc/trends/v1", s.trendsHandler)
	r.Get("/rpc/status/v1", s.statusHandler)
}

// See baseapp.App.
func (s *server) AddMiddleware() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{}
}

func main() {
	baseapp.Serve(new, []string{"patents.atalyaalon.dev"})
}
