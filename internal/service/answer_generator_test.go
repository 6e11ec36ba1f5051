package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/ragchat/internal/model"
)

func TestAnswerGenerator_BuildPrompt(t *testing.T) {
	g := NewAnswerGenerator(&recordingGenerator{}, "Amit", "NOT FOUND")
	chunks := []*model.Chunk{{Text: "second place"}, {Text: "  first place  "}, nil}
	prompt := g.BuildPrompt(" where? ", chunks)

	assert.Contains(t, prompt, "about Amit")
	assert.Contains(t, prompt, `"NOT FOUND"`)
	assert.Contains(t, prompt, "Answer ONLY using the context below.")
	assert.Contains(t, prompt, "second place\n\nfirst place")
	assert.Contains(t, prompt, "Question:\nwhere?\n")
	assert.NotContains(t, prompt, NoContextMarker)
	assert.Less(t, strings.Index(prompt, "second place"), strings.Index(prompt, "first place"))
}

func TestAnswerGenerator_EmptyContextStillCallsModel(t *testing.T) {
	gen := &recordingGenerator{reply: "NOT FOUND"}
	g := NewAnswerGenerator(gen, "", "NOT FOUND")
	ans, err := g.Generate(context.Background(), "anything", nil)
	require.NoError(t, err)
	assert.Equal(t, "NOT FOUND", ans.Text)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "Context:\n"+NoContextMarker)
	assert.Contains(t, gen.prompts[0], "about "+defaultSubject)
}
