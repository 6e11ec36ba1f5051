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

const (
	NoContextMarker = "No context available."

	defaultSubject = "this knowledge base"

	promptTemplate = `You are an AI assistant answering questions about %s.

Answer ONLY using the context below.
If the answer is not in the context, say:
"%s"

Keep answers concise and professional.

Context:
%s

Question:
%s
`
)

type AnswerGenerator struct {
	generator ai.IGenerator
	subject   string
	fallback  string
}

func NewAnswerGenerator(generator ai.IGenerator, subject, fallback string) *AnswerGenerator {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = defaultSubject
	}
	return &AnswerGenerator{generator: generator, subject: subject, fallback: fallback}
}

func (g *AnswerGenerator) Fallback() string {
	return g.fallback
}

// BuildPrompt joins chunk texts in the given order. Empty context is replaced
// by an explicit marker so the model is still asked and can emit the fallback.
func (g *AnswerGenerator) BuildPrompt(question string, chunks []*model.Chunk) string {
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if c == nil {
			continue
		}
		if text := strings.TrimSpace(c.Text); text != "" {
			parts = append(parts, text)
		}
	}
	ctxText := NoContextMarker
	if len(parts) > 0 {
		ctxText = strings.Join(parts, "\n\n")
	}
	return fmt.Sprintf(promptTemplate, g.subject, g.fallback, ctxText, strings.TrimSpace(question))
}

func (g *AnswerGenerator) Generate(ctx context.Context, question string, chunks []*model.Chunk) (*model.Answer, error) {
	prompt := g.BuildPrompt(question, chunks)
	logger := logutil.GetLogger(ctx).With(zap.String("model", g.generator.ModelName()))
	text, err := g.generator.Generate(ctx, prompt)
	if err != nil {
		logger.Error("generate answer failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", appErr.ErrGeneration, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		logger.Error("model returned empty answer")
		return nil, fmt.Errorf("%w: model returned an empty answer", appErr.ErrGeneration)
	}
	logger.Debug("answer generated", zap.Int("prompt_len", len(prompt)), zap.Int("answer_len", len(text)))
	return &model.Answer{Text: text, Context: chunks}, nil
}
