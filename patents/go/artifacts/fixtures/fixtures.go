// Package fixtures populates an in-memory GCS client with a small,
// coherent set of pipeline artifacts for use in unit tests.
package fixtures

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/sbinet/npyio"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/atalyaalon/patents-topic-modeling/go/gcs"
	"github.com/atalyaalon/patents-topic-modeling/patents/go/artifacts"
	"github.com/atalyaalon/patents-topic-modeling/patents/go/topics"
)

// Patents is a six-row corpus. Row order is the canonical index.
var Patents = artifacts.PatentTable{
	{PatentNumber: "9713127", Title: "Unmanned aerial vehicle control", Topic: 25, Year: 2016},
	{PatentNumber: "9713128", Title: "Drone navigation system", Topic: 25, Year: 2016},
	{PatentNumber: "9713129", Title: "Augmented reality headset", Topic: 101, Year: 2016},
	{PatentNumber: "9713130", Title: "Head mounted display optics", Topic: 101, Year: 2016},
	{PatentNumber: "9713131", Title: "Storage rack assembly", Topic: topics.NoTopic, Year: 2016},
	{PatentNumber: "9713132", Title: "Solar panel mount", Topic: 3, Year: 2016},
}

// Embeddings are already L2-normalized, one row per patent. The first
// three rows are the worked example from the dense-similarity design:
// similarity(row0, row1) = 0.8 and similarity(row0, row2) = 0.
var Embeddings = [][]float64{
	{1, 0},
	{0.8, 0.6},
	{0, 1},
	{0.6, 0.8},
	{-1, 0},
	{0.7071067811865476, 0.7071067811865476},
}

// TopicsJSON is the term-weights file inside the model archive. Topic 3 is
// deliberately absent even though a patent carries it.
const TopicsJSON = `{
	"25": [
		{"term": "uav", "weight": 0.021},
		{"term": "drone", "weight": 0.04},
		{"term": "flight", "weight": 0.018},
		{"term": "aerial", "weight": 0.03},
		{"term": "rotor", "weight": 0.012},
		{"term": "payload", "weight": 0.01}
	],
	"101": [
		{"term": "display", "weight": 0.05},
		{"term": "headset", "weight": 0.04},
		{"term": "lens", "weight": 0.02}
	]
}`

// TopicsCount holds per-topic totals, including the no-topic sentinel and
// more than ten real topics.
var TopicsCount = []artifacts.TopicCount{
	{TopicID: topics.NoTopic, TopicWords: "no topic", Count: 400},
	{TopicID: 25, TopicWords: "drone, aerial, uav", Count: 130},
	{TopicID: 101, TopicWords: "display, headset, lens", Count: 120},
	{TopicID: 252, TopicWords: "printing, 3d, layer", Count: 110},
	{TopicID: 124, TopicWords: "eye, tracking, gaze", Count: 100},
	{TopicID: 187, TopicWords: "iot, sensor, network", Count: 90},
	{TopicID: 3, TopicWords: "solar, panel, mount", Count: 80},
	{TopicID: 4, TopicWords: "battery, cell, charge", Count: 70},
	{TopicID: 5, TopicWords: "antenna, signal, radio", Count: 60},
	{TopicID: 6, TopicWords: "valve, fluid, pump", Count: 50},
	{TopicID: 7, TopicWords: "gear, shaft, motor", Count: 40},
	{TopicID: 8, TopicWords: "fabric, yarn, weave", Count: 30},
}

// TopicsByYear holds per-(topic, year) counts for the curated trending
// topics.
var TopicsByYear = []artifacts.TopicYearCount{
	{TopicID: 25, TopicWords: "drone, aerial, uav", Year: 2013, Count: 10},
	{TopicID: 25, TopicWords: "drone, aerial, uav", Year: 2014, Count: 20},
	{TopicID: 25, TopicWords: "drone, aerial, uav", Year: 2015, Count: 40},
	{TopicID: 25, TopicWords: "drone, aerial, uav", Year: 2016, Count: 45},
	{TopicID: 25, TopicWords: "drone, aerial, uav", Year: 2017, Count: 15},
	{TopicID: 252, TopicWords: "printing, 3d, layer", Year: 2015, Count: 30},
	{TopicID: 252, TopicWords: "printing, 3d, layer", Year: 2016, Count: 50},
	{TopicID: 101, TopicWords: "display, headset, lens", Year: 2015, Count: 25},
	{TopicID: 101, TopicWords: "display, headset, lens", Year: 2016, Count: 35},
	{TopicID: 3, TopicWords: "solar, panel, mount", Year: 2016, Count: 80},
}

// EmbeddingsNpy returns Embeddings encoded as a 2-D .npy array.
func EmbeddingsNpy(t *testing.T) []byte {
	rows := len(Embeddings)
	cols := len(Embeddings[0])
	flat := make([]float64, 0, rows*cols)
	for _, row := range Embeddings {
		flat = append(flat, row...)
	}
	var buf bytes.Buffer
	require.NoError(t, npyio.Write(&buf, mat.NewDense(rows, cols, flat)))
	return buf.Bytes()
}

// ModelArchive returns the topic model zip archive bytes.
func ModelArchive(t *testing.T) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	entry, err := w.Create("topics.json")
	require.NoError(t, err)
	_, err = entry.Write([]byte(TopicsJSON))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// FlatIndexBytes returns the gob-encoded flat index over Embeddings.
func FlatIndexBytes(t *testing.T) []byte {
	vectors := make([][]float32, len(Embeddings))
	for i, row := range Embeddings {
		v := make([]float32, len(row))
		for j, x := range row {
			v[j] = float32(x)
		}
		vectors[i] = v
	}
	index := &artifacts.FlatIndex{Dim: len(Embeddings[0]), Vectors: vectors}
	b, err := index.Encode()
	require.NoError(t, err)
	return b
}

// PatentToIdx returns the identifier-to-row map matching Patents.
func PatentToIdx() map[string]int {
	m := make(map[string]int, len(Patents))
	for i, rec := range Patents {
		m[rec.PatentNumber] = i
	}
	return m
}

func mustJSON(t *testing.T, v interface{}) []byte {
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

// Populate writes a complete artifact set for one dataset variant into the
// given client under the given prefix.
func Populate(t *testing.T, client gcs.GCSClient, prefix string) {
	ctx := context.Background()
	set := func(key string, contents []byte) {
		require.NoError(t, client.SetFileContents(ctx, prefix+"/"+key, gcs.FileWriteOptsJSON, contents))
	}
	set(artifacts.PatentsKey, mustJSON(t, Patents))
	set(artifacts.PatentToIdxKey, mustJSON(t, PatentToIdx()))
	set(artifacts.EmbeddingsKey, EmbeddingsNpy(t))
	set(artifacts.TopicModelKey+".zip", ModelArchive(t))
	set(artifacts.FlatIndexKey, FlatIndexBytes(t))
	set(artifacts.TopicsCountKey, mustJSON(t, TopicsCount))
	set(artifacts.TopicsByYearKey, mustJSON(t, TopicsByYear))
}
