package ai

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOllamaBaseURL = "http://localhost:11434/v1"
)

type openAIConfig struct {
	APIKey    string `json:"api_key"`
	APIKeyEnv string `json:"api_key_env"`
	BaseURL   string `json:"base_url"`
	OrgID     string `json:"org_id"`
}

// openAIProvider talks to any OpenAI compatible endpoint. Ollama is served
// through the same client on its /v1 API.
type openAIProvider struct {
	name   string
	client *openai.Client
	hasKey bool
}

func newOpenAIProvider(name string, args interface{}, defaultBaseURL string, requireKey bool) (*openAIProvider, error) {
	cfg := &openAIConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	if requireKey && cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "OPENAI_API_KEY"
	}
	apiKey := resolveKey(cfg.APIKey, cfg.APIKeyEnv)
	hasKey := apiKey != "" || !requireKey
	if apiKey == "" {
		apiKey = name
	}
	clientCfg := openai.DefaultConfig(apiKey)
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	clientCfg.BaseURL = strings.TrimRight(baseURL, "/")
	clientCfg.OrgID = strings.TrimSpace(cfg.OrgID)
	return &openAIProvider{
		name:   name,
		client: openai.NewClientWithConfig(clientCfg),
		hasKey: hasKey,
	}, nil
}

func (p *openAIProvider) Name() string {
	return p.name
}

func (p *openAIProvider) Generate(ctx context.Context, model string, prompt string) (string, error) {
	if !p.hasKey {
		return "", ErrUnavailable
	}
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%s chat completion: %w", p.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s response has no choices", p.name)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Embed ignores the task type; OpenAI compatible endpoints have no equivalent.
func (p *openAIProvider) Embed(ctx context.Context, model string, texts []string, _ string) ([][]float32, error) {
	if !p.hasKey {
		return nil, ErrUnavailable
	}
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(model),
	})
	if err != nil {
		return nil, fmt.Errorf("%s embeddings: %w", p.name, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%s returned %d embeddings for %d inputs", p.name, len(resp.Data), len(texts))
	}
	out := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(out) || out[item.Index] != nil {
			return nil, fmt.Errorf("%s returned unexpected embedding index %d", p.name, item.Index)
		}
		if len(item.Embedding) == 0 {
			return nil, fmt.Errorf("%s returned an empty embedding at %d", p.name, item.Index)
		}
		vec := make([]float32, len(item.Embedding))
		for i, x := range item.Embedding {
			vec[i] = float32(x)
		}
		out[item.Index] = vec
	}
	return out, nil
}

func createOpenAIFactory(args interface{}) (IAIProvider, error) {
	return newOpenAIProvider("openai", args, defaultOpenAIBaseURL, true)
}

func createOpenAIEmbedFactory(args interface{}) (IEmbedProvider, error) {
	return newOpenAIProvider("openai", args, defaultOpenAIBaseURL, true)
}

func createOllamaFactory(args interface{}) (IAIProvider, error) {
	return newOpenAIProvider("ollama", args, defaultOllamaBaseURL, false)
}

func createOllamaEmbedFactory(args interface{}) (IEmbedProvider, error) {
	return newOpenAIProvider("ollama", args, defaultOllamaBaseURL, false)
}

func init() {
	Register("openai", createOpenAIFactory)
	RegisterEmbed("openai", createOpenAIEmbedFactory)
	Register("ollama", createOllamaFactory)
	RegisterEmbed("ollama", createOllamaEmbedFactory)
}
