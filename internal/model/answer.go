package model

type ScoredChunk struct {
	Chunk *Chunk  `json:"chunk"`
	Score float32 `json:"score"`
}

// RetrievalResult holds at most k chunks ordered by descending score.
type RetrievalResult struct {
	Question string        `json:"question"`
	Items    []ScoredChunk `json:"items"`
}

func (r *RetrievalResult) Chunks() []*Chunk {
	if r == nil {
		return nil
	}
	out := make([]*Chunk, 0, len(r.Items))
	for _, item := range r.Items {
		out = append(out, item.Chunk)
	}
	return out
}

// Answer is the generated text plus the chunks that were sent as context.
// Retrieval is set by the pipeline and carries the scores for the same chunks.
type Answer struct {
	Text      string           `json:"answer"`
	Context   []*Chunk         `json:"context"`
	Retrieval *RetrievalResult `json:"-"`
}
