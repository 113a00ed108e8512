package artifacts

import (
	"io"
	"strings"

	"github.com/sbinet/npyio"

	"github.com/atalyaalon/patents-topic-modeling/go/skerr"
)

// readMatrix reads a two dimensional numpy array of embeddings from r.
//
// The pipeline publishes float32 arrays, but float64 is also accepted and
// narrowed, since that is what most tools write by default.
func readMatrix(r io.Reader) ([][]float32, error) {
	reader, err := npyio.NewReader(r)
	if err != nil {
		return nil, skerr.Wrapf(err, "reading npy header")
	}

	// The Shape field contains the array dimensions (e.g., [100, 768]).
	shape := reader.Header.Descr.Shape
	if len(shape) != 2 {
		return nil, skerr.Fmt("expected 2D array, but got %dD array with shape %v", len(shape), shape)
	}
	rows := shape[0]
	cols := shape[1]

	// Read the full data flattened, then reshape.
	var data []float32
	dtype := reader.Header.Descr.Type
	switch {
	case strings.HasSuffix(dtype, "f4"):
		if err := reader.Read(&data); err != nil {
			return nil, skerr.Wrapf(err, "reading float32 data")
		}
	case strings.HasSuffix(dtype, "f8"):
		var wide []float64
		if err := reader.Read(&wide); err != nil {
			return nil, skerr.Wrapf(err, "reading float64 data")
		}
		data = make([]float32, len(wide))
		for i, v := range wide {
			data[i] = float32(v)
		}
	default:
		return nil, skerr.Fmt("unsupported npy dtype %q", dtype)
	}
	if len(data) != rows*cols {
		return nil, skerr.Fmt("npy data has %d values, want %d", len(data), rows*cols)
	}

	// Go slices share the underlying array, so slicing row views out of the
	// flat data is cheap.
	matrix := make([][]float32, rows)
	for i := 0; i < rows; i++ {
		start := i * cols
		matrix[i] = data[start : start+cols]
	}
	return matrix, nil
}
