package service

import "errors"

// ErrEmbeddingCount indicates the embedder returned a different number of
// vectors than texts it was given.
var ErrEmbeddingCount = errors.New("embedding count mismatch")
