package artifacts

import (
	"bytes"
	"encoding/gob"
	"sort"

	"github.com/atalyaalon/patents-topic-modeling/go/skerr"
)

// FlatIndex is the precomputed similarity index artifact: the normalized
// embedding vectors in row order, packaged for standalone search.
//
// Search is a linear scan today. The artifact exists so that a sub-linear
// structure can replace the dense scan at full-corpus scale without
// changing the published interface.
type FlatIndex struct {
	// Dim is the embedding dimensionality.
	Dim int
	// Vectors holds one L2-normalized vector per patent, in table row
	// order.
	Vectors [][]float32
}

// DecodeFlatIndex deserializes a FlatIndex from its gob encoding.
func DecodeFlatIndex(contents []byte) (*FlatIndex, error) {
	var index FlatIndex
	if err := gob.NewDecoder(bytes.NewReader(contents)).Decode(&index); err != nil {
		return nil, skerr.Wrapf(err, "decoding flat index")
	}
	for i, v := range index.Vectors {
		if len(v) != index.Dim {
			return nil, skerr.Fmt("flat index row %d has %d values, want %d", i, len(v), index.Dim)
		}
	}
	return &index, nil
}

// Encode serializes the index with gob.
func (ix *FlatIndex) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(ix); err != nil {
		return nil, skerr.Wrap(err)
	}
	return buf.Bytes(), nil
}

// Len returns the number of indexed vectors.
func (ix *FlatIndex) Len() int {
	return len(ix.Vectors)
}

// Search returns the row indices and dot-product scores of the k vectors
// most similar to query, in descending score order, ties broken by row
// order. The query itself is not excluded; callers that search for an
// indexed row should drop it from the results.
func (ix *FlatIndex) Search(query []float32, k int) ([]int, []float64, error) {
	if len(query) != ix.Dim {
		return nil, nil, skerr.Fmt("query has %d values, want %d", len(query), ix.Dim)
	}
	scores := make([]float64, len(ix.Vectors))
	for i, v := range ix.Vectors {
		var acc float64
		for j := range v {
			acc += float64(query[j]) * float64(v[j])
		}
		scores[i] = acc
	}
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})
	if k > len(order) {
		k = len(order)
	}
	retIdx := make([]int, 0, k)
	retScores := make([]float64, 0, k)
	for _, i := range order[:k] {
		retIdx = append(retIdx, i)
		retScores = append(retScores, scores[i])
	}
	return retIdx, retScores, nil
}
