package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ragchat/internal/ai"
	"github.com/xxxsen/ragchat/internal/model"
	appErr "github.com/xxxsen/ragchat/internal/pkg/errors"
)

// VectorSearcher is the read side of the vector index.
type VectorSearcher interface {
	Query(vector []float32, k int) ([]model.ScoredChunk, error)
}

type Retriever struct {
	embedder ai.IEmbedder
	index    VectorSearcher
	minScore *float32
}

// NewRetriever builds a retriever. A nil minScore keeps every top-k hit;
// otherwise hits scoring below it are dropped.
func NewRetriever(embedder ai.IEmbedder, index VectorSearcher, minScore *float32) *Retriever {
	return &Retriever{embedder: embedder, index: index, minScore: minScore}
}

func (r *Retriever) Retrieve(ctx context.Context, question string, k int) (*model.RetrievalResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: %w: k must be positive, got %d", appErr.ErrRetrieval, appErr.ErrConfiguration, k)
	}
	logger := logutil.GetLogger(ctx)
	vectors, err := r.embedder.Embed(ctx, []string{question}, ai.TaskRetrievalQuery)
	if err != nil {
		logger.Error("embed question failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w: %w", appErr.ErrRetrieval, appErr.ErrEmbedding, err)
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("%w: %w: expected one question vector, got %d", appErr.ErrRetrieval, appErr.ErrEmbedding, len(vectors))
	}
	items, err := r.index.Query(vectors[0], k)
	if err != nil {
		logger.Error("query vector index failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", appErr.ErrRetrieval, err)
	}
	if r.minScore != nil {
		kept := items[:0]
		for _, item := range items {
			if item.Score >= *r.minScore {
				kept = append(kept, item)
			}
		}
		items = kept
	}
	if ce := logger.Check(zap.DebugLevel, "retrieved chunks"); ce != nil {
		ids := make([]string, 0, len(items))
		for _, item := range items {
			ids = append(ids, fmt.Sprintf("%s(%.3f)", item.Chunk.ID, item.Score))
		}
		ce.Write(zap.Int("k", k), zap.String("hits", strings.Join(ids, ",")))
	}
	return &model.RetrievalResult{Question: question, Items: items}, nil
}
