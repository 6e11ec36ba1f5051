package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ragchat/internal/model"
	appErr "github.com/xxxsen/ragchat/internal/pkg/errors"
	"github.com/xxxsen/ragchat/internal/pkg/response"
	"github.com/xxxsen/ragchat/internal/service"
)

const maxQuestionBytes = 4096

// Pipeline is the part of service.Pipeline used by the HTTP surface.
type Pipeline interface {
	Answer(ctx context.Context, question string) (*model.Answer, error)
	IsFallback(text string) bool
	State() service.State
	Len() int
}

type ChatHandler struct {
	pipeline       Pipeline
	includeSources bool
}

func NewChatHandler(pipeline Pipeline, includeSources bool) *ChatHandler {
	return &ChatHandler{pipeline: pipeline, includeSources: includeSources}
}

type chatRequest struct {
	Question string `json:"question"`
}

type chatSource struct {
	Index int     `json:"index"`
	Start int     `json:"start"`
	End   int     `json:"end"`
	Score float32 `json:"score"`
	Text  string  `json:"text"`
}

type chatResponse struct {
	Answer   string       `json:"answer"`
	Fallback bool         `json:"fallback,omitempty"`
	Sources  []chatSource `json:"sources,omitempty"`
}

func (h *ChatHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, fmt.Errorf("%w: %w", appErr.ErrInvalid, err))
		return
	}
	if len(req.Question) > maxQuestionBytes {
		handleError(c, fmt.Errorf("%w: question exceeds %d bytes", appErr.ErrInvalid, maxQuestionBytes))
		return
	}
	ans, err := h.pipeline.Answer(c.Request.Context(), req.Question)
	if err != nil {
		handleError(c, err)
		return
	}
	fallback := h.pipeline.IsFallback(ans.Text)
	logutil.GetLogger(c.Request.Context()).Debug("question answered",
		zap.Int("question_len", len(req.Question)),
		zap.Int("context_chunks", len(ans.Context)),
		zap.Bool("fallback", fallback),
	)
	resp := chatResponse{Answer: ans.Text}
	// sources mode also tells the caller whether the model declined
	if h.includeSources {
		resp.Fallback = fallback
	}
	if h.includeSources && ans.Retrieval != nil {
		resp.Sources = make([]chatSource, 0, len(ans.Retrieval.Items))
		for _, item := range ans.Retrieval.Items {
			resp.Sources = append(resp.Sources, chatSource{
				Index: item.Chunk.Index,
				Start: item.Chunk.Start,
				End:   item.Chunk.End,
				Score: item.Score,
				Text:  item.Chunk.Text,
			})
		}
	}
	response.Success(c, http.StatusOK, resp)
}
