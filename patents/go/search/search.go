// Package search resolves a patent number to its topic and its nearest
// neighbors by embedding similarity.
package search

import (
	"fmt"
	"sort"

	"github.com/atalyaalon/patents-topic-modeling/go/skerr"
	"github.com/atalyaalon/patents-topic-modeling/patents/go/artifacts"
	"github.com/atalyaalon/patents-topic-modeling/patents/go/topics"
)

const (
	// numNeighbors is how many similar patents a lookup returns.
	numNeighbors = 5
	// numTopicWords is how many topic terms a lookup returns.
	numTopicWords = 5
	// selfSimilarity sits below the valid [-1, 1] dot-product range so the
	// query row never appears in its own neighbor list.
	selfSimilarity = -2
)

// PatentNotFoundError is returned by Lookup for patent numbers that are
// not in the corpus. Callers are expected to show it to the user rather
// than treat it as fatal.
type PatentNotFoundError struct {
	PatentNumber string
}

// Error implements the error interface.
func (e *PatentNotFoundError) Error() string {
	return fmt.Sprintf("patent number %q not found in system", e.PatentNumber)
}

// Neighbor is one similar patent of a lookup result.
type Neighbor struct {
	PatentNumber string  `json:"patent_number"`
	Title        string  `json:"title"`
	Similarity   float64 `json:"similarity"`
}

// Result is the outcome of a successful lookup.
type Result struct {
	PatentNumber string `json:"patent_number"`
	Title        string `json:"title"`
	// TopicWords is nil when no dominant topic was assigned, or when the
	// model has no terms for the assigned topic.
	TopicWords []string `json:"topic_words,omitempty"`
	// Neighbors are the most similar other patents, in descending
	// similarity order.
	Neighbors []Neighbor `json:"neighbors"`
}

// Explorer answers similarity lookups over one loaded dataset variant. All
// inputs must come from the same variant so that row indices line up.
type Explorer struct {
	patents     artifacts.PatentTable
	patentToIdx map[string]int
	embeddings  [][]float32
	model       *topics.Model
}

// NewExplorer returns an Explorer over the given artifacts.
func NewExplorer(patents artifacts.PatentTable, patentToIdx map[string]int, embeddings [][]float32, model *topics.Model) (*Explorer, error) {
	if len(patents) != len(embeddings) {
		return nil, skerr.Fmt("patent table has %d rows but embedding matrix has %d", len(patents), len(embeddings))
	}
	return &Explorer{
		patents:     patents,
		patentToIdx: patentToIdx,
		embeddings:  embeddings,
		model:       model,
	}, nil
}

// Lookup resolves the given patent number to its title, top topic words,
// and the five most similar other patents by dot product of normalized
// embeddings. Returns *PatentNotFoundError for unknown numbers.
func (e *Explorer) Lookup(patentNumber string) (*Result, error) {
	idx, ok := e.patentToIdx[patentNumber]
	if !ok {
		return nil, &PatentNotFoundError{PatentNumber: patentNumber}
	}
	rec := e.patents[idx]
	ret := &Result{
		PatentNumber: patentNumber,
		Title:        rec.Title,
	}
	if rec.Topic != topics.NoTopic {
		ret.TopicWords = e.model.TopWords(rec.Topic, numTopicWords)
	}

	// Dense similarity against every row. The embeddings are already
	// normalized, so the dot product equals cosine similarity.
	scores := make([]float64, len(e.embeddings))
	query := e.embeddings[idx]
	for i, row := range e.embeddings {
		scores[i] = dot(query, row)
	}
	scores[idx] = selfSimilarity

	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	// Stable so that equal scores keep table row order.
	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})

	k := numNeighbors
	if len(order)-1 < k {
		k = len(order) - 1
	}
	if k < 0 {
		k = 0
	}
	ret.Neighbors = make([]Neighbor, 0, k)
	for _, i := range order[:k] {
		ret.Neighbors = append(ret.Neighbors, Neighbor{
			PatentNumber: e.patents[i].PatentNumber,
			Title:        e.patents[i].Title,
			Similarity:   scores[i],
		})
	}
	return ret, nil
}

func dot(a, b []float32) float64 {
	var acc float64
	for i := range a {
		acc += float64(a[i]) * float64(b[i])
	}
	return acc
}
