package errcode

const (
	ErrUnknown = 10000000 + iota
	ErrInvalid
	ErrNotReady
	ErrTooMany
	ErrInternal
	ErrEmbedding
	ErrRetrieval
	ErrGeneration
)
