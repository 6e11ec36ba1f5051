package model

// Document is the raw text loaded from a source. It is never modified after load.
type Document struct {
	Source  string `json:"source"`
	Content string `json:"content"`
}

// Chunk is a contiguous slice of a Document. Start and End are rune offsets,
// End exclusive.
type Chunk struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Index  int    `json:"index"`
	Start  int    `json:"start"`
	End    int    `json:"end"`
	Text   string `json:"text"`
}

type IndexEntry struct {
	Chunk     *Chunk
	Embedding []float32
}
