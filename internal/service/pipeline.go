package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ragchat/internal/ai"
	"github.com/xxxsen/ragchat/internal/chunker"
	"github.com/xxxsen/ragchat/internal/model"
	appErr "github.com/xxxsen/ragchat/internal/pkg/errors"
	"github.com/xxxsen/ragchat/internal/vectorindex"
)

type State int32

const (
	StateUninitialized State = iota
	StateIndexing
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateIndexing:
		return "indexing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type PipelineConfig struct {
	ChunkSize int
	Overlap   int
	TopK      int
	MinScore  *float32
	Subject   string
	Fallback  string
}

// Pipeline owns the vector index. It is built once by Initialize and is
// read-only afterwards, so Answer may be called concurrently.
type Pipeline struct {
	cfg       PipelineConfig
	embedder  ai.IEmbedder
	generator *AnswerGenerator

	mu        sync.Mutex
	state     atomic.Int32
	initErr   error
	index     *vectorindex.Index
	retriever *Retriever
}

func NewPipeline(cfg PipelineConfig, embedder ai.IEmbedder, generator ai.IGenerator) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		embedder:  embedder,
		generator: NewAnswerGenerator(generator, cfg.Subject, cfg.Fallback),
	}
}

func (p *Pipeline) State() State {
	return State(p.state.Load())
}

// Err returns the error that moved the pipeline to Failed.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initErr
}

// Len returns the number of indexed chunks, zero until Ready.
func (p *Pipeline) Len() int {
	if p.State() != StateReady {
		return 0
	}
	return p.index.Len()
}

// Initialize chunks, embeds and indexes doc. It runs at most once: a Ready
// pipeline returns nil and a Failed one returns the original error.
func (p *Pipeline) Initialize(ctx context.Context, doc *model.Document) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.State() {
	case StateReady:
		return nil
	case StateFailed:
		return p.initErr
	}
	p.state.Store(int32(StateIndexing))
	index, err := p.buildIndex(ctx, doc)
	if err != nil {
		p.initErr = err
		p.state.Store(int32(StateFailed))
		logutil.GetLogger(ctx).Error("pipeline initialize failed", zap.Error(err))
		return err
	}
	p.index = index
	p.retriever = NewRetriever(p.embedder, index, p.cfg.MinScore)
	p.state.Store(int32(StateReady))
	return nil
}

func (p *Pipeline) buildIndex(ctx context.Context, doc *model.Document) (*vectorindex.Index, error) {
	if p.cfg.TopK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", appErr.ErrConfiguration, p.cfg.TopK)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: document is required", appErr.ErrConfiguration)
	}
	ck, err := chunker.New(p.cfg.ChunkSize, p.cfg.Overlap)
	if err != nil {
		return nil, err
	}
	logger := logutil.GetLogger(ctx).With(zap.String("source", doc.Source))

	start := time.Now()
	chunks := ck.Split(ctx, doc)
	logger.Info("document chunked", zap.Int("chunks", len(chunks)), zap.Duration("cost", time.Since(start)))
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: document %q produced no chunks", appErr.ErrEmptyIndex, doc.Source)
	}

	start = time.Now()
	texts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		texts = append(texts, c.Text)
	}
	vectors, err := p.embedder.Embed(ctx, texts, ai.TaskRetrievalDocument)
	if err != nil {
		return nil, fmt.Errorf("%w: embed chunks: %w", appErr.ErrEmbedding, err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("%w: got %d vectors for %d chunks", appErr.ErrEmbedding, len(vectors), len(chunks))
	}
	entries := make([]model.IndexEntry, 0, len(chunks))
	for i, c := range chunks {
		entries = append(entries, model.IndexEntry{Chunk: c, Embedding: vectors[i]})
	}
	logger.Info("chunks embedded", zap.String("model", p.embedder.ModelName()), zap.Duration("cost", time.Since(start)))

	index, err := vectorindex.Build(entries)
	if err != nil {
		return nil, err
	}
	logger.Info("vector index built", zap.Int("entries", index.Len()), zap.Int("dimension", index.Dimension()))
	return index, nil
}

// Answer retrieves context for the question and asks the model. It fails
// with ErrNotReady until Initialize has succeeded.
func (p *Pipeline) Answer(ctx context.Context, question string) (*model.Answer, error) {
	if p.State() != StateReady {
		return nil, fmt.Errorf("%w: state is %s", appErr.ErrNotReady, p.State())
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is empty", appErr.ErrInvalid)
	}
	result, err := p.retriever.Retrieve(ctx, question, p.cfg.TopK)
	if err != nil {
		return nil, err
	}
	answer, err := p.generator.Generate(ctx, question, result.Chunks())
	if err != nil {
		return nil, err
	}
	answer.Retrieval = result
	return answer, nil
}

// IsFallback reports whether text is the model declining to answer.
func (p *Pipeline) IsFallback(text string) bool {
	fb := strings.TrimSpace(p.generator.Fallback())
	return fb != "" && strings.Contains(strings.TrimSpace(text), fb)
}
