package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docuchat/internal/model"
)

type chatFixture struct {
	svc       *ChatService
	sessions  *fakeSessionStore
	messages  *fakeMessageStore
	docs      *fakeDocumentStore
	chunks    *fakeChunkStore
	quota     *fakeQuotaStore
	embedder  *fakeEmbedder
	generator *fakeGenerator
}

func newChatFixture(t *testing.T, ceiling int) *chatFixture {
	t.Helper()
	f := &chatFixture{
		sessions:  newFakeSessionStore(),
		messages:  newFakeMessageStore(),
		docs:      newFakeDocumentStore(),
		chunks:    newFakeChunkStore(),
		quota:     newFakeQuotaStore(),
		embedder:  &fakeEmbedder{queryVec: []float32{1, 0, 0}},
		generator: &fakeGenerator{answer: "the answer"},
	}
	f.svc = NewChatService(
		f.sessions,
		f.messages,
		f.docs,
		f.chunks,
		NewQuotaService(f.quota, ceiling),
		f.embedder,
		f.generator,
		nil,
		5,
	)
	f.svc.now = func() time.Time {
		return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	}
	return f
}

func (f *chatFixture) seedDocument(t *testing.T, userID uint, name string, vectors ...[]float32) *model.Document {
	t.Helper()
	doc := f.docs.add(model.Document{
		UserID:     userID,
		Filename:   name,
		StorageKey: "documents/" + name,
		Status:     model.DocumentStatusReady,
	})
	fragments := make([]string, len(vectors))
	for i := range vectors {
		fragments[i] = name + " fragment"
	}
	require.NoError(t, f.chunks.Put(userID, doc.ID, fragments, vectors))
	return doc
}

func TestAskStartsSessionAndAppendsOneTurn(t *testing.T) {
	f := newChatFixture(t, 10)
	f.seedDocument(t, 1, "notes.pdf", []float32{1, 0, 0}, []float32{0, 1, 0})

	result, err := f.svc.Ask(context.Background(), AskInput{UserID: 1, Query: "what is this?"})
	require.NoError(t, err)

	assert.NotZero(t, result.SessionID)
	assert.Equal(t, "the answer", result.Answer)
	assert.Equal(t, 1, result.Quota.UsedToday)

	msgs, err := f.messages.ListBySessionID(result.SessionID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, model.RoleUser, msgs[0].Role)
	assert.Equal(t, "what is this?", msgs[0].Content)
	assert.Equal(t, model.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "the answer", msgs[1].Content)
}

func TestAskAppendsToExistingSession(t *testing.T) {
	f := newChatFixture(t, 10)
	f.seedDocument(t, 1, "notes.pdf", []float32{1, 0, 0})

	first, err := f.svc.Ask(context.Background(), AskInput{UserID: 1, Query: "first question"})
	require.NoError(t, err)

	second, err := f.svc.Ask(context.Background(), AskInput{
		UserID:    1,
		SessionID: first.SessionID,
		Query:     "second question",
	})
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, second.SessionID)

	msgs, err := f.messages.ListBySessionID(first.SessionID)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	for i, m := range msgs {
		if i%2 == 0 {
			assert.Equal(t, model.RoleUser, m.Role)
		} else {
			assert.Equal(t, model.RoleAssistant, m.Role)
		}
	}
}

func TestAskQuotaExceededShortCircuits(t *testing.T) {
	f := newChatFixture(t, 1)
	f.seedDocument(t, 1, "notes.pdf", []float32{1, 0, 0})

	_, err := f.svc.Ask(context.Background(), AskInput{UserID: 1, Query: "first"})
	require.NoError(t, err)

	embedCalls := f.embedder.calls
	_, err = f.svc.Ask(context.Background(), AskInput{UserID: 1, Query: "second"})
	assert.ErrorIs(t, err, ErrQuotaExceeded)
	assert.Equal(t, embedCalls, f.embedder.calls, "rejected query must not reach the embedder")

	msgs, listErr := f.messages.ListBySessionID(1)
	require.NoError(t, listErr)
	assert.Len(t, msgs, 2, "rejected query must not append messages")
}

func TestAskForeignSessionIsNotFound(t *testing.T) {
	f := newChatFixture(t, 10)
	f.seedDocument(t, 1, "notes.pdf", []float32{1, 0, 0})
	other := &model.ChatSession{UserID: 2, Title: "someone else"}
	require.NoError(t, f.sessions.Create(other))

	_, err := f.svc.Ask(context.Background(), AskInput{
		UserID:    1,
		SessionID: other.ID,
		Query:     "peek",
	})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestAskNoDocumentsIsNotFound(t *testing.T) {
	f := newChatFixture(t, 10)

	_, err := f.svc.Ask(context.Background(), AskInput{UserID: 1, Query: "anything"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAskEmptyCandidateSetChargesButWritesNothing(t *testing.T) {
	f := newChatFixture(t, 10)
	// Document exists but has no chunks yet.
	f.docs.add(model.Document{UserID: 1, Filename: "empty.pdf", Status: model.DocumentStatusPending})

	_, err := f.svc.Ask(context.Background(), AskInput{UserID: 1, Query: "anything"})
	assert.ErrorIs(t, err, ErrEmptyCandidateSet)

	assert.Empty(t, f.messages.messages, "failed retrieval must not append messages")
	assert.Empty(t, f.sessions.sessions, "failed retrieval must not create a session")

	status, statusErr := NewQuotaService(f.quota, 10).Status(1, time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	require.NoError(t, statusErr)
	assert.Equal(t, 1, status.UsedToday, "the charge stands even when retrieval fails")
}

func TestAskTruncatesTitleOnRuneBoundary(t *testing.T) {
	f := newChatFixture(t, 10)
	f.seedDocument(t, 1, "notes.pdf", []float32{1, 0, 0})
	f.generator.answer = strings.Repeat("日", 100)

	result, err := f.svc.Ask(context.Background(), AskInput{UserID: 1, Query: "長い質問"})
	require.NoError(t, err)

	session, err := f.sessions.GetByIDAndUserID(result.SessionID, 1)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, 80, utf8.RuneCountInString(session.Title))
	assert.True(t, utf8.ValidString(session.Title))
}

func TestAskGenerationFailureChargesButWritesNothing(t *testing.T) {
	f := newChatFixture(t, 10)
	f.seedDocument(t, 1, "notes.pdf", []float32{1, 0, 0})
	f.generator.err = errors.New("model overloaded")

	_, err := f.svc.Ask(context.Background(), AskInput{UserID: 1, Query: "anything"})
	assert.ErrorIs(t, err, ErrGenerationFailed)

	assert.Empty(t, f.sessions.sessions, "failed generation must not create a session")
	assert.Empty(t, f.messages.messages, "failed generation must not append messages")

	status, statusErr := NewQuotaService(f.quota, 10).Status(1, time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	require.NoError(t, statusErr)
	assert.Equal(t, 1, status.UsedToday, "the charge stands even when generation fails")
}

func TestAskReferencesDedupedInRankOrder(t *testing.T) {
	f := newChatFixture(t, 10)
	docA := f.seedDocument(t, 1, "a.pdf", []float32{1, 0, 0}, []float32{0.9, 0, 0})
	docB := f.seedDocument(t, 1, "b.pdf", []float32{0.5, 0, 0})

	result, err := f.svc.Ask(context.Background(), AskInput{UserID: 1, Query: "rank me"})
	require.NoError(t, err)

	require.Len(t, result.References, 2)
	assert.Equal(t, docA.ID, result.References[0].DocumentID)
	assert.Equal(t, "a.pdf", result.References[0].DocumentName)
	assert.Equal(t, docB.ID, result.References[1].DocumentID)

	msgs, err := f.messages.ListBySessionID(result.SessionID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, result.References, msgs[1].ReferenceList())
}

func TestAskDocumentFilterScopesSearch(t *testing.T) {
	f := newChatFixture(t, 10)
	f.seedDocument(t, 1, "a.pdf", []float32{1, 0, 0})
	docB := f.seedDocument(t, 1, "b.pdf", []float32{0.5, 0, 0})

	result, err := f.svc.Ask(context.Background(), AskInput{
		UserID:      1,
		Query:       "scoped",
		DocumentIDs: []uint{docB.ID},
	})
	require.NoError(t, err)
	require.Len(t, result.References, 1)
	assert.Equal(t, docB.ID, result.References[0].DocumentID)
}

func TestAskFilterMatchingNothingOwnedIsNotFound(t *testing.T) {
	f := newChatFixture(t, 10)
	f.seedDocument(t, 1, "mine.pdf", []float32{1, 0, 0})
	foreign := f.seedDocument(t, 2, "theirs.pdf", []float32{1, 0, 0})

	_, err := f.svc.Ask(context.Background(), AskInput{
		UserID:      1,
		Query:       "peek",
		DocumentIDs: []uint{foreign.ID},
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetSessionReturnsFullLog(t *testing.T) {
	f := newChatFixture(t, 10)
	f.seedDocument(t, 1, "notes.pdf", []float32{1, 0, 0})

	result, err := f.svc.Ask(context.Background(), AskInput{UserID: 1, Query: "hello"})
	require.NoError(t, err)

	detail, err := f.svc.GetSession(context.Background(), 1, result.SessionID)
	require.NoError(t, err)
	assert.Equal(t, result.SessionID, detail.Session.ID)
	assert.Len(t, detail.Messages, 2)

	_, err = f.svc.GetSession(context.Background(), 2, result.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestDeleteSessionRemovesMessages(t *testing.T) {
	f := newChatFixture(t, 10)
	f.seedDocument(t, 1, "notes.pdf", []float32{1, 0, 0})

	result, err := f.svc.Ask(context.Background(), AskInput{UserID: 1, Query: "hello"})
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteSession(context.Background(), 1, result.SessionID))
	assert.Empty(t, f.messages.messages)

	err = f.svc.DeleteSession(context.Background(), 1, result.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
