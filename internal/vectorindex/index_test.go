package vectorindex

import (
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/ragchat/internal/model"
	appErr "github.com/xxxsen/ragchat/internal/pkg/errors"
)

func entries(vectors ...[]float32) []model.IndexEntry {
	out := make([]model.IndexEntry, 0, len(vectors))
	for i, v := range vectors {
		out = append(out, model.IndexEntry{
			Chunk:     &model.Chunk{ID: fmt.Sprintf("doc#%d", i), Index: i, Text: fmt.Sprintf("chunk %d", i)},
			Embedding: v,
		})
	}
	return out
}

func TestBuild_Empty(t *testing.T) {
	_, err := Build(nil)
	require.ErrorIs(t, err, appErr.ErrEmptyIndex)
}

func TestBuild_DimensionMismatch(t *testing.T) {
	_, err := Build(entries([]float32{1, 0}, []float32{1, 0, 0}))
	require.ErrorIs(t, err, ErrDimensionMismatch)
	require.ErrorIs(t, err, appErr.ErrEmbedding)
}

func TestBuild_RejectsNonFinite(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))
	cases := []struct {
		name    string
		vectors [][]float32
		want    string
	}{
		{"nan", [][]float32{{0, 1}, {nan, 1}, {1, 0}, {0.9, 0.1}}, "entry 1"},
		{"positive inf", [][]float32{{0, 1}, {1, 0}, {inf, 0}}, "entry 2"},
		{"negative inf", [][]float32{{0, float32(math.Inf(-1))}}, "entry 0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			idx, err := Build(entries(tc.vectors...))
			require.ErrorIs(t, err, appErr.ErrEmbedding)
			assert.Contains(t, err.Error(), tc.want)
			assert.Nil(t, idx)
		})
	}
}

func TestQuery_RejectsNonFinite(t *testing.T) {
	idx, err := Build(entries([]float32{0, 1}, []float32{1, 0}, []float32{0.9, 0.1}))
	require.NoError(t, err)
	for _, v := range [][]float32{
		{float32(math.NaN()), 0},
		{1, float32(math.Inf(1))},
	} {
		_, err := idx.Query(v, 3)
		require.ErrorIs(t, err, appErr.ErrEmbedding)
	}

	res, err := idx.Query([]float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Equal(t, "doc#1", res[0].Chunk.ID)
	assert.InDelta(t, 1.0, res[0].Score, 1e-6)
}

func TestQuery_ReturnsAllWhenKExceedsSize(t *testing.T) {
	idx, err := Build(entries([]float32{1, 0}, []float32{0, 1}, []float32{1, 1}))
	require.NoError(t, err)
	require.Equal(t, 3, idx.Len())
	require.Equal(t, 2, idx.Dimension())

	for _, k := range []int{3, 4, 100} {
		res, err := idx.Query([]float32{1, 0}, k)
		require.NoError(t, err)
		assert.Len(t, res, 3)
	}
}

func TestQuery_RejectsNonPositiveK(t *testing.T) {
	idx, err := Build(entries([]float32{1, 0}))
	require.NoError(t, err)
	for _, k := range []int{0, -3} {
		_, err := idx.Query([]float32{1, 0}, k)
		require.ErrorIs(t, err, appErr.ErrConfiguration)
	}
}

func TestQuery_RejectsWrongDimension(t *testing.T) {
	idx, err := Build(entries([]float32{1, 0}))
	require.NoError(t, err)
	_, err = idx.Query([]float32{1, 0, 0}, 1)
	require.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestQuery_SortedDescendingWithIdenticalVectorOnTop(t *testing.T) {
	vectors := [][]float32{
		{0.1, 0.9, 0.3},
		{0.7, 0.2, 0.1},
		{-0.5, 0.4, 0.8},
		{0.3, 0.3, 0.3},
		{0.9, -0.1, 0.05},
	}
	idx, err := Build(entries(vectors...))
	require.NoError(t, err)

	for target, v := range vectors {
		res, err := idx.Query(v, len(vectors))
		require.NoError(t, err)
		require.Len(t, res, len(vectors))
		assert.Equal(t, target, res[0].Chunk.Index)
		assert.InDelta(t, 1.0, res[0].Score, 1e-5)
		for i := 1; i < len(res); i++ {
			assert.GreaterOrEqual(t, res[i-1].Score, res[i].Score)
			assert.LessOrEqual(t, res[i].Score, float32(1))
			assert.GreaterOrEqual(t, res[i].Score, float32(-1))
		}
	}
}

func TestQuery_TiesKeepInsertionOrder(t *testing.T) {
	idx, err := Build(entries([]float32{1, 0}, []float32{2, 0}, []float32{0, 1}, []float32{3, 0}))
	require.NoError(t, err)
	res, err := idx.Query([]float32{5, 0}, 3)
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, []int{0, 1, 3}, []int{res[0].Chunk.Index, res[1].Chunk.Index, res[2].Chunk.Index})
}

func TestQuery_ZeroVectorScoresZero(t *testing.T) {
	idx, err := Build(entries([]float32{1, 0}, []float32{0, 1}))
	require.NoError(t, err)
	res, err := idx.Query([]float32{0, 0}, 2)
	require.NoError(t, err)
	for _, r := range res {
		assert.Equal(t, float32(0), r.Score)
	}
}

func TestBuild_DoesNotAliasInput(t *testing.T) {
	v := []float32{3, 4}
	idx, err := Build(entries(v))
	require.NoError(t, err)
	v[0], v[1] = -3, -4
	res, err := idx.Query([]float32{3, 4}, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res[0].Score, 1e-6)
}

func TestQuery_Concurrent(t *testing.T) {
	idx, err := Build(entries([]float32{1, 0}, []float32{0, 1}, []float32{1, 1}))
	require.NoError(t, err)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := idx.Query([]float32{0, 1}, 2)
			assert.NoError(t, err)
			assert.Equal(t, 1, res[0].Chunk.Index)
		}()
	}
	wg.Wait()
}
