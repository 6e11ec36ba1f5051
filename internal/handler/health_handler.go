package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/ragchat/internal/pkg/response"
	"github.com/xxxsen/ragchat/internal/service"
)

type HealthHandler struct {
	pipeline Pipeline
	name     string
}

func NewHealthHandler(pipeline Pipeline, name string) *HealthHandler {
	return &HealthHandler{pipeline: pipeline, name: name}
}

type healthResponse struct {
	Status string `json:"status"`
	State  string `json:"state"`
	Chunks int    `json:"chunks"`
}

// Status answers 200 once the index is ready and 503 before that, so load
// balancers keep traffic away while indexing runs.
func (h *HealthHandler) Status(c *gin.Context) {
	state := h.pipeline.State()
	resp := healthResponse{
		Status: h.name + " is running",
		State:  state.String(),
		Chunks: h.pipeline.Len(),
	}
	code := http.StatusOK
	if state != service.StateReady {
		resp.Status = h.name + " is " + state.String()
		code = http.StatusServiceUnavailable
	}
	response.Success(c, code, resp)
}
