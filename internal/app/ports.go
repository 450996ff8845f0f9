package app

import (
	"context"
	"io"

	"docuchat/internal/model"
)

// Collaborator and store contracts consumed by the services in this package.
// Concrete implementations live in internal/ai, internal/repository,
// internal/pkg/textextract and internal/platform; tests substitute fakes.

// Embedder maps text to fixed-dimension vectors. Implementations must return
// one vector per input, order-preserving, and are expected to produce
// unit-norm vectors (the retriever scores by inner product).
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator produces text from a prompt; it is also used for deriving short
// session titles.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// TextExtractor turns a stored document blob into plain text.
type TextExtractor interface {
	Extract(r io.Reader, filename string) (string, error)
}

// IngestEnqueuer hands a document off to the asynchronous ingestion pipeline.
type IngestEnqueuer interface {
	Enqueue(ctx context.Context, documentID uint) error
}

// ChunkStore is the persistent vector store scoped by owning user.
type ChunkStore interface {
	Put(userID, documentID uint, fragments []string, vectors [][]float32) error
	ListByUser(userID uint, documentIDs []uint) ([]model.Chunk, error)
	Dimension() (int, error)
	DeleteByDocumentID(documentID uint) error
}

type DocumentStore interface {
	Create(doc *model.Document) error
	GetByID(id uint) (*model.Document, error)
	GetByIDAndUserID(id, userID uint) (*model.Document, error)
	ListByUserID(userID uint) ([]model.Document, error)
	ListByIDsAndUserID(ids []uint, userID uint) ([]model.Document, error)
	MarkProcessing(id uint) (bool, error)
	UpdateStatus(id uint, status string) error
	DeleteByIDAndUserID(id, userID uint) error
}

type SessionStore interface {
	Create(session *model.ChatSession) error
	GetByIDAndUserID(sessionID, userID uint) (*model.ChatSession, error)
	ListByUserID(userID uint) ([]model.ChatSession, error)
	DeleteByIDAndUserID(sessionID, userID uint) error
}

type MessageStore interface {
	AppendTurn(userMsg, assistantMsg *model.Message) error
	ListBySessionID(sessionID uint) ([]model.Message, error)
	DeleteBySessionID(sessionID uint) error
}

// QuotaStore persists per-user per-day query counters. IncrementIfBelow must
// be atomic with respect to concurrent calls for the same (user, day).
type QuotaStore interface {
	IncrementIfBelow(userID uint, day string, ceiling int) (count int, allowed bool, err error)
	CountFor(userID uint, day string) (count int, exists bool, err error)
	TotalFor(userID uint) (int, error)
	DeleteByUserID(userID uint) error
}

// UserStore is the slice of the user repository the account lifecycle needs.
type UserStore interface {
	GetByID(id uint) (*model.User, error)
	DeleteByID(id uint) error
}

// HistoryCache caches a session's message log between appends.
type HistoryCache interface {
	GetMessages(ctx context.Context, sessionID uint) ([]model.Message, bool, error)
	SetMessages(ctx context.Context, sessionID uint, messages []model.Message) error
	Invalidate(ctx context.Context, sessionID uint) error
	MarkDirty(ctx context.Context, sessionID uint) error
	IsDirty(ctx context.Context, sessionID uint) (bool, error)
}
