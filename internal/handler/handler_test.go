package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/ragchat/internal/model"
	"github.com/xxxsen/ragchat/internal/pkg/errcode"
	appErr "github.com/xxxsen/ragchat/internal/pkg/errors"
	"github.com/xxxsen/ragchat/internal/service"
)

type stubPipeline struct {
	state    service.State
	answer   *model.Answer
	err      error
	question string
}

func (s *stubPipeline) Answer(ctx context.Context, question string) (*model.Answer, error) {
	s.question = question
	if s.err != nil {
		return nil, s.err
	}
	return s.answer, nil
}

func (s *stubPipeline) State() service.State { return s.state }

func (s *stubPipeline) IsFallback(text string) bool { return text == "NOT FOUND" }

func (s *stubPipeline) Len() int {
	if s.state == service.StateReady {
		return 4
	}
	return 0
}

func newTestRouter(p *stubPipeline, includeSources bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, RouterDeps{
		Chat:   NewChatHandler(p, includeSources),
		Health: NewHealthHandler(p, "ragchat"),
	})
	return r
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func sampleAnswer() *model.Answer {
	chunk := &model.Chunk{ID: "kb#1", Index: 1, Start: 25, End: 50, Text: "He uses Go and Python."}
	return &model.Answer{
		Text:    "He uses Go and Python.",
		Context: []*model.Chunk{chunk},
		Retrieval: &model.RetrievalResult{
			Question: "what does he use",
			Items:    []model.ScoredChunk{{Chunk: chunk, Score: 0.8}},
		},
	}
}

func TestChat_Success(t *testing.T) {
	p := &stubPipeline{state: service.StateReady, answer: sampleAnswer()}
	w := doJSON(newTestRouter(p, false), http.MethodPost, "/chat", `{"question":"what does he use"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"answer":"He uses Go and Python."}`, w.Body.String())
	assert.Equal(t, "what does he use", p.question)
}

func TestChat_IncludeSources(t *testing.T) {
	p := &stubPipeline{state: service.StateReady, answer: sampleAnswer()}
	w := doJSON(newTestRouter(p, true), http.MethodPost, "/chat", `{"question":"q"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var body chatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Sources, 1)
	assert.Equal(t, chatSource{Index: 1, Start: 25, End: 50, Score: 0.8, Text: "He uses Go and Python."}, body.Sources[0])
}

func TestChat_FallbackFlag(t *testing.T) {
	p := &stubPipeline{state: service.StateReady, answer: &model.Answer{Text: "NOT FOUND"}}
	w := doJSON(newTestRouter(p, true), http.MethodPost, "/chat", `{"question":"q"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"answer":"NOT FOUND","fallback":true}`, w.Body.String())

	// without sources mode the body stays {"answer": ...}
	w = doJSON(newTestRouter(p, false), http.MethodPost, "/chat", `{"question":"q"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"answer":"NOT FOUND"}`, w.Body.String())
}

func TestChat_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   int
	}{
		{"invalid", fmt.Errorf("%w: question is empty", appErr.ErrInvalid), http.StatusBadRequest, errcode.ErrInvalid},
		{"not ready", appErr.ErrNotReady, http.StatusServiceUnavailable, errcode.ErrNotReady},
		{"retrieval", fmt.Errorf("%w: %w: boom", appErr.ErrRetrieval, appErr.ErrEmbedding), http.StatusBadGateway, errcode.ErrRetrieval},
		{"generation", fmt.Errorf("%w: timeout", appErr.ErrGeneration), http.StatusBadGateway, errcode.ErrGeneration},
		{"other", fmt.Errorf("surprise"), http.StatusInternalServerError, errcode.ErrInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := &stubPipeline{state: service.StateReady, err: tc.err}
			w := doJSON(newTestRouter(p, false), http.MethodPost, "/chat", `{"question":"q"}`)
			require.Equal(t, tc.status, w.Code)
			var body struct {
				Code  int    `json:"code"`
				Error string `json:"error"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tc.code, body.Code)
			assert.NotEmpty(t, body.Error)
			assert.NotContains(t, w.Body.String(), `"answer"`)
		})
	}
}

func TestChat_BadBody(t *testing.T) {
	p := &stubPipeline{state: service.StateReady, answer: sampleAnswer()}
	r := newTestRouter(p, false)

	w := doJSON(r, http.MethodPost, "/chat", `{"question":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	long := strings.Repeat("a", maxQuestionBytes+1)
	w = doJSON(r, http.MethodPost, "/chat", `{"question":"`+long+`"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, p.question)
}

func TestHealth(t *testing.T) {
	p := &stubPipeline{state: service.StateIndexing}
	r := newTestRouter(p, false)

	w := doJSON(r, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"ragchat is indexing","state":"indexing","chunks":0}`, w.Body.String())

	p.state = service.StateReady
	w = doJSON(r, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ragchat is running","state":"ready","chunks":4}`, w.Body.String())
}
