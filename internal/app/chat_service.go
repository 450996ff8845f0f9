package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"docuchat/internal/model"
	"docuchat/internal/retriever"
)

const defaultTopK = 5

// ChatService runs the query pipeline: quota gate, query embedding,
// owner-scoped retrieval, prompt assembly, generation, and the append-only
// session log.
type ChatService struct {
	sessions  SessionStore
	messages  MessageStore
	docs      DocumentStore
	chunks    ChunkStore
	quota     *QuotaService
	embedder  Embedder
	generator Generator
	cache     HistoryCache // optional
	topK      int
	now       func() time.Time
}

func NewChatService(
	sessions SessionStore,
	messages MessageStore,
	docs DocumentStore,
	chunks ChunkStore,
	quota *QuotaService,
	embedder Embedder,
	generator Generator,
	cache HistoryCache,
	topK int,
) *ChatService {
	if topK <= 0 {
		topK = defaultTopK
	}
	return &ChatService{
		sessions:  sessions,
		messages:  messages,
		docs:      docs,
		chunks:    chunks,
		quota:     quota,
		embedder:  embedder,
		generator: generator,
		cache:     cache,
		topK:      topK,
		now:       time.Now,
	}
}

// AskInput is one query turn against the user's documents.
type AskInput struct {
	UserID      uint
	SessionID   uint   // 0 = start a new session
	Query       string
	DocumentIDs []uint // empty = search all of the user's documents
	TopK        int
}

// AskResult carries the assistant's answer, its document references, the
// session the turn was appended to, and the quota state after the charge.
type AskResult struct {
	SessionID  uint              `json:"session_id"`
	Answer     string            `json:"answer"`
	References []model.Reference `json:"references"`
	Quota      QuotaStatus       `json:"quota"`
}

// Ask runs one quota-gated query turn.
//
// The quota charge and the session ownership check come first, before any
// collaborator call. A failure after the charge (embedding, retrieval,
// generation) aborts the turn with no session writes, but the charge stands:
// the ceiling bounds generation spend, not result quality.
func (s *ChatService) Ask(ctx context.Context, input AskInput) (*AskResult, error) {
	if input.UserID == 0 {
		return nil, ErrInvalidInput
	}
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", ErrInvalidInput)
	}

	quotaStatus, err := s.quota.Charge(input.UserID, s.now())
	if err != nil {
		return nil, err
	}

	var session *model.ChatSession
	if input.SessionID != 0 {
		session, err = s.sessions.GetByIDAndUserID(input.SessionID, input.UserID)
		if err != nil {
			return nil, err
		}
		if session == nil {
			return nil, ErrSessionNotFound
		}
	}

	queryVec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	docs, err := s.candidateDocuments(input.UserID, input.DocumentIDs)
	if err != nil {
		return nil, err
	}
	docIDs := make([]uint, len(docs))
	docsByID := make(map[uint]model.Document, len(docs))
	for i, d := range docs {
		docIDs[i] = d.ID
		docsByID[d.ID] = d
	}

	candidates, err := s.chunks.ListByUser(input.UserID, docIDs)
	if err != nil {
		return nil, err
	}

	topK := input.TopK
	if topK <= 0 {
		topK = s.topK
	}
	ranked, err := retriever.Rank(queryVec, candidates, topK)
	if err != nil {
		if errors.Is(err, retriever.ErrDimensionMismatch) {
			return nil, fmt.Errorf("%w: %v", ErrDimensionMismatch, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrEmptyCandidateSet, err)
	}

	fragments := make([]string, len(ranked))
	for i := range ranked {
		fragments[i] = ranked[i].Chunk.Content
	}
	answer, err := s.generator.Generate(ctx, buildAnswerPrompt(fragments, query))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		answer = "The model returned an empty response."
	}

	var references []model.Reference
	for _, docID := range retriever.DocumentOrder(ranked) {
		doc := docsByID[docID]
		references = append(references, model.Reference{
			DocumentID:   doc.ID,
			DocumentName: doc.Filename,
			StorageKey:   doc.StorageKey,
		})
	}

	if session == nil {
		session = &model.ChatSession{
			UserID: input.UserID,
			Title:  s.deriveTitle(ctx, query),
		}
		if err := s.sessions.Create(session); err != nil {
			return nil, err
		}
	}

	userMsg := &model.Message{
		SessionID: session.ID,
		UserID:    input.UserID,
		Role:      model.RoleUser,
		Content:   query,
	}
	assistantMsg := &model.Message{
		SessionID: session.ID,
		UserID:    input.UserID,
		Role:      model.RoleAssistant,
		Content:   answer,
	}
	assistantMsg.SetReferences(references)

	if s.cache != nil {
		_ = s.cache.MarkDirty(ctx, session.ID)
		_ = s.cache.Invalidate(ctx, session.ID)
	}
	if err := s.messages.AppendTurn(userMsg, assistantMsg); err != nil {
		return nil, err
	}

	return &AskResult{
		SessionID:  session.ID,
		Answer:     answer,
		References: references,
		Quota:      quotaStatus,
	}, nil
}

// candidateDocuments resolves the searchable document set. A non-empty
// filter that matches nothing the user owns is NotFound; a document that
// merely has no chunks yet is handled later as an empty candidate set.
func (s *ChatService) candidateDocuments(userID uint, documentIDs []uint) ([]model.Document, error) {
	if len(documentIDs) > 0 {
		docs, err := s.docs.ListByIDsAndUserID(documentIDs, userID)
		if err != nil {
			return nil, err
		}
		if len(docs) == 0 {
			return nil, fmt.Errorf("%w: requested documents", ErrNotFound)
		}
		return docs, nil
	}

	docs, err := s.docs.ListByUserID(userID)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: user has no documents", ErrNotFound)
	}
	return docs, nil
}

// SessionDetail is a session with its full message log.
type SessionDetail struct {
	Session  model.ChatSession `json:"session"`
	Messages []model.Message   `json:"messages"`
}

func (s *ChatService) ListSessions(userID uint) ([]model.ChatSession, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.sessions.ListByUserID(userID)
}

// GetSession returns the session and its messages, reading through the
// cache when the log is not mid-append.
func (s *ChatService) GetSession(ctx context.Context, userID, sessionID uint) (*SessionDetail, error) {
	if userID == 0 || sessionID == 0 {
		return nil, ErrInvalidInput
	}
	session, err := s.sessions.GetByIDAndUserID(sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	if s.cache != nil {
		if dirty, err := s.cache.IsDirty(ctx, sessionID); err == nil && !dirty {
			if cached, hit, err := s.cache.GetMessages(ctx, sessionID); err == nil && hit {
				return &SessionDetail{Session: *session, Messages: cached}, nil
			}
		}
	}

	messages, err := s.messages.ListBySessionID(sessionID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if dirty, err := s.cache.IsDirty(ctx, sessionID); err == nil && !dirty {
			_ = s.cache.SetMessages(ctx, sessionID, messages)
		}
	}
	return &SessionDetail{Session: *session, Messages: messages}, nil
}

func (s *ChatService) DeleteSession(ctx context.Context, userID, sessionID uint) error {
	if userID == 0 || sessionID == 0 {
		return ErrInvalidInput
	}
	session, err := s.sessions.GetByIDAndUserID(sessionID, userID)
	if err != nil {
		return err
	}
	if session == nil {
		return ErrSessionNotFound
	}
	if err := s.messages.DeleteBySessionID(sessionID); err != nil {
		return err
	}
	if err := s.sessions.DeleteByIDAndUserID(sessionID, userID); err != nil {
		return err
	}
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, sessionID)
	}
	return nil
}

func buildAnswerPrompt(fragments []string, question string) string {
	var b strings.Builder
	b.WriteString("Use only this context to answer the question.\nContext:\n")
	for _, f := range fragments {
		b.WriteString(f)
		b.WriteString("\n")
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\nAnswer:")
	return b.String()
}

// deriveTitle asks the generator for a short session title. Title generation
// is best-effort: any failure degrades to the default title instead of
// failing the turn.
func (s *ChatService) deriveTitle(ctx context.Context, query string) string {
	prompt := "Write a title of at most six words for a conversation that starts with the question below. Reply with the title only.\n\nQuestion: " + query
	title, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return "New Chat"
	}
	title = strings.TrimSpace(strings.Trim(strings.TrimSpace(title), `"`))
	if title == "" {
		return "New Chat"
	}
	if utf8.RuneCountInString(title) > 80 {
		title = string([]rune(title)[:80])
	}
	return title
}
