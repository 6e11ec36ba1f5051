package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	appErr "github.com/xxxsen/ragchat/internal/pkg/errors"
)

var ErrUnavailable = errors.New("ai provider unavailable")

// IAIProvider produces completions for a prompt.
type IAIProvider interface {
	Name() string
	Generate(ctx context.Context, model string, prompt string) (string, error)
}

// IEmbedProvider maps texts to vectors. The result has one vector per input,
// in input order.
type IEmbedProvider interface {
	Name() string
	Embed(ctx context.Context, model string, texts []string, taskType string) ([][]float32, error)
}

type IGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	ModelName() string
}

type IEmbedder interface {
	Embed(ctx context.Context, texts []string, taskType string) ([][]float32, error)
	ModelName() string
}

const (
	TaskRetrievalDocument = "RETRIEVAL_DOCUMENT"
	TaskRetrievalQuery    = "RETRIEVAL_QUERY"
)

type generator struct {
	provider IAIProvider
	model    string
	timeout  time.Duration
}

func NewGenerator(p IAIProvider, model string, timeout time.Duration) IGenerator {
	return &generator{provider: p, model: model, timeout: timeout}
}

func (g *generator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	return g.provider.Generate(ctx, g.model, prompt)
}

func (g *generator) ModelName() string {
	return g.provider.Name() + "/" + g.model
}

type embedder struct {
	provider  IEmbedProvider
	model     string
	batchSize int
	timeout   time.Duration
}

// NewEmbedder splits calls into batches of at most batchSize texts. Each
// batch gets its own timeout.
func NewEmbedder(p IEmbedProvider, model string, batchSize int, timeout time.Duration) IEmbedder {
	return &embedder{provider: p, model: model, batchSize: batchSize, timeout: timeout}
}

func (e *embedder) Embed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	size := e.batchSize
	if size <= 0 {
		size = len(texts)
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += size {
		end := start + size
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := e.embedBatch(ctx, texts[start:end], taskType)
		if err != nil {
			return nil, err
		}
		if len(vectors) != end-start {
			return nil, fmt.Errorf("%s returned %d vectors for %d texts", e.provider.Name(), len(vectors), end-start)
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (e *embedder) embedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	return e.provider.Embed(ctx, e.model, texts, taskType)
}

func (e *embedder) ModelName() string {
	return e.provider.Name() + "/" + e.model
}

type ProviderFactory func(args interface{}) (IAIProvider, error)

type EmbedProviderFactory func(args interface{}) (IEmbedProvider, error)

var (
	registry      = map[string]ProviderFactory{}
	embedRegistry = map[string]EmbedProviderFactory{}
)

func Register(name string, factory ProviderFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registry[key] = factory
}

func RegisterEmbed(name string, factory EmbedProviderFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	embedRegistry[key] = factory
}

func NewProvider(name string, args interface{}) (IAIProvider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("%w: generator.provider is required", appErr.ErrConfiguration)
	}
	factory := registry[key]
	if factory == nil {
		return nil, fmt.Errorf("%w: unsupported generator provider: %s", appErr.ErrConfiguration, name)
	}
	return factory(args)
}

func NewEmbedProvider(name string, args interface{}) (IEmbedProvider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("%w: embedder.provider is required", appErr.ErrConfiguration)
	}
	factory := embedRegistry[key]
	if factory == nil {
		return nil, fmt.Errorf("%w: unsupported embedder provider: %s", appErr.ErrConfiguration, name)
	}
	return factory(args)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("%w: encode ai provider config: %w", appErr.ErrConfiguration, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: decode ai provider config: %w", appErr.ErrConfiguration, err)
	}
	return nil
}

// resolveKey prefers the inline key and falls back to the named env variable.
func resolveKey(key, env string) string {
	key = strings.TrimSpace(key)
	if key != "" {
		return key
	}
	env = strings.TrimSpace(env)
	if env == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(env))
}
