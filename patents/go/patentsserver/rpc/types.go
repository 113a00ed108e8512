// Package rpc defines the JSON request/response types served under /rpc.
package rpc

import (
	"github.com/atalyaalon/patents-topic-modeling/patents/go/artifacts"
)

// Neighbor is one similar patent in a lookup response.
type Neighbor struct {
	PatentNumber string  `json:"patent_number"`
	Title        string  `json:"title"`
	Similarity   float64 `json:"similarity"`
	Link         string  `json:"link"`
}

// LookupRPCResponse is the response of /rpc/lookup/v1.
type LookupRPCResponse struct {
	PatentNumber string `json:"patent_number"`
	Link         string `json:"link"`
	Title        string `json:"title"`
	// TopicWords is empty when the patent has no dominant topic.
	TopicWords []string   `json:"topic_words,omitempty"`
	Neighbors  []Neighbor `json:"neighbors"`
}

// TrendPoint is one year of a topic's time series.
type TrendPoint struct {
	Year  int `json:"year"`
	Count int `json:"count"`
}

// TrendSeries is the full time series of one topic.
type TrendSeries struct {
	TopicID    int          `json:"topic_id"`
	TopicWords string       `json:"topic_words"`
	Points     []TrendPoint `json:"points"`
}

// TrendGroup is one curated group of trending topics plus its caption.
type TrendGroup struct {
	Caption string        `json:"caption"`
	Series  []TrendSeries `json:"series"`
}

// TrendsRPCResponse is the response of /rpc/trends/v1.
type TrendsRPCResponse struct {
	Groups []TrendGroup `json:"groups"`
}

// TopTopicsRPCResponse is the response of /rpc/topics/v1: the
// highest-count topics, sentinel excluded, in descending count order.
type TopTopicsRPCResponse struct {
	Topics []artifacts.TopicCount `json:"topics"`
}

// YearCount is the total patent count of one filing year.
type YearCount struct {
	Year  int `json:"year"`
	Count int `json:"count"`
}

// TopicStatusSlice is one slice of the has-topic vs no-topic pie.
type TopicStatusSlice struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// ByYearRPCResponse is the response of /rpc/byyear/v1.
type ByYearRPCResponse struct {
	Years  []YearCount        `json:"years"`
	Status []TopicStatusSlice `json:"status"`
}

// StatusRPCResponse is the response of /rpc/status/v1: which artifacts are
// currently published for the served dataset variant.
type StatusRPCResponse struct {
	Bucket      string                   `json:"bucket"`
	DatasetType string                   `json:"dataset_type"`
	Prefix      string                   `json:"prefix"`
	Artifacts   []artifacts.ArtifactInfo `json:"artifacts"`
}
