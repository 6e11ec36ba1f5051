package errors

import "errors"

var (
	ErrConfiguration = errors.New("configuration error")
	ErrEmptyIndex    = errors.New("empty index")
	ErrEmbedding     = errors.New("embedding error")
	ErrGeneration    = errors.New("generation error")
	ErrRetrieval     = errors.New("retrieval error")
	ErrNotReady      = errors.New("pipeline not ready")
	ErrInvalid       = errors.New("invalid")
)

// IsConfiguration reports a bad parameter or a missing source document.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

func IsEmptyIndex(err error) bool {
	return errors.Is(err, ErrEmptyIndex)
}

// IsUpstream reports whether err was caused by an embedding or language model backend.
func IsUpstream(err error) bool {
	return errors.Is(err, ErrEmbedding) || errors.Is(err, ErrGeneration) || errors.Is(err, ErrRetrieval)
}
