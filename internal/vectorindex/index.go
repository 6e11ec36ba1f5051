package vectorindex

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/xxxsen/ragchat/internal/model"
	appErr "github.com/xxxsen/ragchat/internal/pkg/errors"
)

var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Index is an immutable brute-force cosine index. Scores are cosine
// similarities in [-1, 1]; 1 means same direction, 0 means orthogonal or a
// zero vector on either side. An Index is safe for concurrent Query calls.
type Index struct {
	dimension int
	chunks    []*model.Chunk
	vectors   [][]float32
}

// Build copies and L2-normalises every vector. Entries keep their insertion
// order, which breaks score ties in Query.
func Build(entries []model.IndexEntry) (*Index, error) {
	if len(entries) == 0 {
		return nil, appErr.ErrEmptyIndex
	}
	dim := len(entries[0].Embedding)
	if dim == 0 {
		return nil, fmt.Errorf("%w: entry 0 has an empty vector", appErr.ErrEmbedding)
	}
	idx := &Index{
		dimension: dim,
		chunks:    make([]*model.Chunk, 0, len(entries)),
		vectors:   make([][]float32, 0, len(entries)),
	}
	for i, entry := range entries {
		if entry.Chunk == nil {
			return nil, fmt.Errorf("%w: entry %d has no chunk", appErr.ErrInvalid, i)
		}
		if len(entry.Embedding) != dim {
			return nil, fmt.Errorf("%w: %w: entry %d has %d, want %d", appErr.ErrEmbedding, ErrDimensionMismatch, i, len(entry.Embedding), dim)
		}
		if n, ok := firstNonFinite(entry.Embedding); ok {
			return nil, fmt.Errorf("%w: entry %d has a non-finite value at %d", appErr.ErrEmbedding, i, n)
		}
		idx.chunks = append(idx.chunks, entry.Chunk)
		idx.vectors = append(idx.vectors, normalize(entry.Embedding))
	}
	return idx, nil
}

func (i *Index) Len() int {
	return len(i.chunks)
}

func (i *Index) Dimension() int {
	return i.dimension
}

// Query returns the k most similar chunks, best first. Fewer than k are
// returned only when the index holds fewer entries.
func (i *Index) Query(vector []float32, k int) ([]model.ScoredChunk, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", appErr.ErrConfiguration, k)
	}
	if len(vector) != i.dimension {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(vector), i.dimension)
	}
	if n, ok := firstNonFinite(vector); ok {
		return nil, fmt.Errorf("%w: query has a non-finite value at %d", appErr.ErrEmbedding, n)
	}
	query := normalize(vector)
	scored := make([]model.ScoredChunk, len(i.chunks))
	for n := range i.chunks {
		scored[n] = model.ScoredChunk{Chunk: i.chunks[n], Score: dot(query, i.vectors[n])}
	}
	sort.SliceStable(scored, func(a, b int) bool {
		return scored[a].Score > scored[b].Score
	})
	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k], nil
}

// firstNonFinite returns the position of the first NaN or Inf in v.
func firstNonFinite(v []float32) (int, bool) {
	for n, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return n, true
		}
	}
	return 0, false
}

func normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return out
	}
	inv := 1 / math.Sqrt(sum)
	for n, x := range v {
		out[n] = float32(float64(x) * inv)
	}
	return out
}

func dot(a, b []float32) float32 {
	var sum float64
	for n := range a {
		sum += float64(a[n]) * float64(b[n])
	}
	if sum > 1 {
		sum = 1
	} else if sum < -1 {
		sum = -1
	}
	return float32(sum)
}
