package archdistill

import "errors"

// Exported errors for library consumers.
var (
	// ErrNoDatabase indicates no database was configured.
	ErrNoDatabase = errors.New("archdistill: no database configured")

	// ErrNoTextProvider indicates an operation needs a text generation
	// provider and none was configured.
	ErrNoTextProvider = errors.New("archdistill: no text generation provider configured")

	// ErrNoEmbeddingProvider indicates an operation needs embeddings and
	// neither an external provider nor the built-in model is available.
	ErrNoEmbeddingProvider = errors.New("archdistill: no embedding provider available")

	// ErrClientClosed indicates the client has been closed.
	ErrClientClosed = errors.New("archdistill: client is closed")
)
