package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConflict is returned when a document already exists at a file path
	// and the caller did not ask to replace it.
	ErrConflict = errors.New("document already exists")

	// ErrNotFound is returned when a source file or job cannot be found.
	ErrNotFound = errors.New("not found")

	// ErrNoChunks is returned when chunking produced nothing to embed.
	ErrNoChunks = errors.New("no text chunks could be created")
)

// UnsupportedTypeError reports a file extension the extractor does not handle.
type UnsupportedTypeError struct {
	Ext string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported file type: %s", e.Ext)
}

// ExtractionError reports that no usable text could be pulled out of a
// document. Diagnostics holds one message per strategy that was tried.
type ExtractionError struct {
	Reason      string
	Diagnostics []string
}

func (e *ExtractionError) Error() string {
	if len(e.Diagnostics) == 0 {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Reason, strings.Join(e.Diagnostics, "; "))
}

// EmbeddingError wraps a failure from the embedding provider. Transient
// errors (rate limits, provider hiccups) may be retried; permanent ones
// must fail fast.
type EmbeddingError struct {
	Err       error
	Transient bool
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding provider: %v", e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// IsTransientEmbedding reports whether err is a retryable provider failure.
func IsTransientEmbedding(err error) bool {
	var ee *EmbeddingError
	return errors.As(err, &ee) && ee.Transient
}
