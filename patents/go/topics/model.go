// Package topics holds the trained topic model consumed by the dashboard.
//
// The model itself is trained offline by the topic-modeling pipeline; this
// package only deserializes its published form, a zip archive containing a
// topics.json file that maps topic ids to weighted terms.
package topics

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/atalyaalon/patents-topic-modeling/go/skerr"
	"github.com/atalyaalon/patents-topic-modeling/go/util"
	"github.com/atalyaalon/patents-topic-modeling/go/util/zip"
)

// NoTopic is the sentinel topic id meaning no dominant topic was assigned
// to a patent.
const NoTopic = -1

// topicsFileName is the name of the term-weights file inside the model
// archive.
const topicsFileName = "topics.json"

// TermWeight is one term of a topic and its weight within that topic.
type TermWeight struct {
	Term   string  `json:"term"`
	Weight float64 `json:"weight"`
}

// Model maps topic ids to their terms. Read-only after load.
type Model struct {
	topics map[int][]TermWeight
}

// FromArchive deserializes a Model from the bytes of its zip archive. The
// archive is written to a temp file and extracted into a temp directory,
// both of which are removed before returning.
func FromArchive(contents []byte) (*Model, error) {
	tmpDir, err := os.MkdirTemp("", "topic_model")
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	defer util.RemoveAll(tmpDir)

	zipPath := filepath.Join(tmpDir, "topic_model.zip")
	if err := os.WriteFile(zipPath, contents, 0644); err != nil {
		return nil, skerr.Wrap(err)
	}
	extractDir := filepath.Join(tmpDir, "topic_model")
	if err := os.MkdirAll(extractDir, 0755); err != nil {
		return nil, skerr.Wrap(err)
	}
	if err := zip.UnZip(extractDir, zipPath); err != nil {
		return nil, skerr.Wrapf(err, "extracting model archive")
	}

	b, err := os.ReadFile(filepath.Join(extractDir, topicsFileName))
	if err != nil {
		return nil, skerr.Wrapf(err, "model archive has no %s", topicsFileName)
	}
	// JSON object keys are strings, so topic ids arrive as e.g. "25".
	var raw map[string][]TermWeight
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, skerr.Wrapf(err, "decoding %s", topicsFileName)
	}
	topics := make(map[int][]TermWeight, len(raw))
	for id, terms := range raw {
		topicID, err := strconv.Atoi(id)
		if err != nil {
			return nil, skerr.Wrapf(err, "invalid topic id %q in %s", id, topicsFileName)
		}
		topics[topicID] = terms
	}
	return &Model{topics: topics}, nil
}

// NewForTesting returns a Model built directly from the given mapping.
func NewForTesting(topics map[int][]TermWeight) *Model {
	return &Model{topics: topics}
}

// Topic returns the (term, weight) pairs of the given topic id, in the
// order they were serialized, or nil if the id is unknown.
func (m *Model) Topic(topicID int) []TermWeight {
	return m.topics[topicID]
}

// TopWords returns the n highest-weighted terms of the given topic id in
// descending weight order, ties broken by serialized order. Returns nil if
// the id is unknown.
func (m *Model) TopWords(topicID, n int) []string {
	terms := m.topics[topicID]
	if len(terms) == 0 {
		return nil
	}
	sorted := make([]TermWeight, len(terms))
	copy(sorted, terms)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Weight > sorted[j].Weight
	})
	if n > len(sorted) {
		n = len(sorted)
	}
	words := make([]string, 0, n)
	for _, tw := range sorted[:n] {
		words = append(words, tw.Term)
	}
	return words
}

// NumTopics returns how many topics the model contains.
func (m *Model) NumTopics() int {
	return len(m.topics)
}
