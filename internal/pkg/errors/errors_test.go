package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPredicates(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		config   bool
		empty    bool
		upstream bool
	}{
		{"configuration", fmt.Errorf("%w: chunk_size must be positive", ErrConfiguration), true, false, false},
		{"empty index", fmt.Errorf("build: %w", ErrEmptyIndex), false, true, false},
		{"embedding", fmt.Errorf("%w: timeout", ErrEmbedding), false, false, true},
		{"generation", fmt.Errorf("%w: 500", ErrGeneration), false, false, true},
		{"retrieval wraps embedding", fmt.Errorf("%w: %w", ErrRetrieval, ErrEmbedding), false, false, true},
		{"not ready", ErrNotReady, false, false, false},
		{"invalid", fmt.Errorf("%w: empty question", ErrInvalid), false, false, false},
		{"nil", nil, false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.config, IsConfiguration(tt.err))
			assert.Equal(t, tt.empty, IsEmptyIndex(tt.err))
			assert.Equal(t, tt.upstream, IsUpstream(tt.err))
		})
	}
}
