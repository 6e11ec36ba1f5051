package chunker

import (
	"context"
	"fmt"
	"unicode"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ragchat/internal/model"
	appErr "github.com/xxxsen/ragchat/internal/pkg/errors"
)

// Chunker cuts a document into windows of at most Size runes. Consecutive
// chunks share exactly Overlap runes and together cover the whole document.
type Chunker struct {
	size    int
	overlap int
}

func New(size, overlap int) (*Chunker, error) {
	if err := Validate(size, overlap); err != nil {
		return nil, err
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

func Validate(size, overlap int) error {
	if size <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", appErr.ErrConfiguration, size)
	}
	if overlap < 0 || overlap >= size {
		return fmt.Errorf("%w: chunk_overlap must be in [0, %d), got %d", appErr.ErrConfiguration, size, overlap)
	}
	return nil
}

func (c *Chunker) Split(ctx context.Context, doc *model.Document) []*model.Chunk {
	if doc == nil || doc.Content == "" {
		return nil
	}
	runes := []rune(doc.Content)
	total := len(runes)
	var chunks []*model.Chunk
	start := 0
	for {
		end := start + c.size
		if end >= total {
			end = total
		} else {
			end = c.cutPoint(runes, start, end)
		}
		chunks = append(chunks, &model.Chunk{
			ID:     fmt.Sprintf("%s#%d", doc.Source, len(chunks)),
			Source: doc.Source,
			Index:  len(chunks),
			Start:  start,
			End:    end,
			Text:   string(runes[start:end]),
		})
		if end == total {
			break
		}
		start = end - c.overlap
	}
	logutil.GetLogger(ctx).Debug("document split",
		zap.String("source", doc.Source),
		zap.Int("runes", total),
		zap.Int("chunks", len(chunks)),
		zap.Int("chunk_size", c.size),
		zap.Int("chunk_overlap", c.overlap),
	)
	return chunks
}

// cutPoint moves a hard cut at end back to the nearest paragraph, sentence or
// word boundary inside the look-back window. The result stays above
// start+overlap so the next window always advances.
func (c *Chunker) cutPoint(runes []rune, start, end int) int {
	floor := end - c.size/4
	if lower := start + c.overlap + 1; floor < lower {
		floor = lower
	}
	if floor >= end {
		return end
	}
	for _, match := range []func([]rune, int) bool{isParagraphBreak, isSentenceBreak, isWordBreak} {
		for p := end; p >= floor; p-- {
			if match(runes, p) {
				return p
			}
		}
	}
	return end
}

func isParagraphBreak(runes []rune, p int) bool {
	return p >= 2 && runes[p-1] == '\n' && runes[p-2] == '\n'
}

func isSentenceBreak(runes []rune, p int) bool {
	if p < 2 || !unicode.IsSpace(runes[p-1]) {
		return false
	}
	switch runes[p-2] {
	case '.', '!', '?', '。', '！', '？':
		return true
	}
	return false
}

func isWordBreak(runes []rune, p int) bool {
	return p >= 1 && unicode.IsSpace(runes[p-1])
}
