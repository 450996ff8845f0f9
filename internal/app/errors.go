package app

import "errors"

// Service-level error kinds. Handlers map each one to a distinct response
// code; none of them is ever collapsed into a generic failure.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("not found")
	ErrSessionNotFound   = errors.New("chat session not found")
	ErrQuotaExceeded     = errors.New("daily query limit reached")
	ErrEmptyCandidateSet = errors.New("no document content found to search")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrExtractionFailed  = errors.New("text extraction failed")
	ErrEmbeddingFailed   = errors.New("embedding failed")
	ErrGenerationFailed  = errors.New("answer generation failed")
	ErrDocumentBusy      = errors.New("document is already being processed")

	ErrUsernameExists    = errors.New("username already exists")
	ErrEmailExists       = errors.New("email already exists")
	ErrInvalidCredential = errors.New("invalid username or password")
)
