package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"docuchat/internal/model"
	"docuchat/internal/storage"
)

// In-memory fakes for the store and collaborator contracts in ports.go.

type fakeQuotaStore struct {
	counts map[string]int // "userID/day" -> count
	err    error
}

func newFakeQuotaStore() *fakeQuotaStore {
	return &fakeQuotaStore{counts: map[string]int{}}
}

func quotaKey(userID uint, day string) string {
	return fmt.Sprintf("%d/%s", userID, day)
}

func (f *fakeQuotaStore) IncrementIfBelow(userID uint, day string, ceiling int) (int, bool, error) {
	if f.err != nil {
		return 0, false, f.err
	}
	key := quotaKey(userID, day)
	if f.counts[key] >= ceiling {
		return f.counts[key], false, nil
	}
	f.counts[key]++
	return f.counts[key], true, nil
}

func (f *fakeQuotaStore) CountFor(userID uint, day string) (int, bool, error) {
	if f.err != nil {
		return 0, false, f.err
	}
	count, ok := f.counts[quotaKey(userID, day)]
	return count, ok, nil
}

func (f *fakeQuotaStore) TotalFor(userID uint) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	prefix := fmt.Sprintf("%d/", userID)
	total := 0
	for key, count := range f.counts {
		if strings.HasPrefix(key, prefix) {
			total += count
		}
	}
	return total, nil
}

func (f *fakeQuotaStore) DeleteByUserID(userID uint) error {
	if f.err != nil {
		return f.err
	}
	prefix := fmt.Sprintf("%d/", userID)
	for key := range f.counts {
		if strings.HasPrefix(key, prefix) {
			delete(f.counts, key)
		}
	}
	return nil
}

type fakeUserStore struct {
	users map[uint]*model.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[uint]*model.User{}}
}

func (f *fakeUserStore) GetByID(id uint) (*model.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	copied := *user
	return &copied, nil
}

func (f *fakeUserStore) DeleteByID(id uint) error {
	delete(f.users, id)
	return nil
}

type fakeDocumentStore struct {
	docs   map[uint]*model.Document
	nextID uint
}

func newFakeDocumentStore() *fakeDocumentStore {
	return &fakeDocumentStore{docs: map[uint]*model.Document{}, nextID: 1}
}

func (f *fakeDocumentStore) add(doc model.Document) *model.Document {
	doc.ID = f.nextID
	f.nextID++
	f.docs[doc.ID] = &doc
	return &doc
}

func (f *fakeDocumentStore) Create(doc *model.Document) error {
	doc.ID = f.nextID
	f.nextID++
	copied := *doc
	f.docs[doc.ID] = &copied
	return nil
}

func (f *fakeDocumentStore) GetByID(id uint) (*model.Document, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, nil
	}
	copied := *doc
	return &copied, nil
}

func (f *fakeDocumentStore) GetByIDAndUserID(id, userID uint) (*model.Document, error) {
	doc, ok := f.docs[id]
	if !ok || doc.UserID != userID {
		return nil, nil
	}
	copied := *doc
	return &copied, nil
}

func (f *fakeDocumentStore) ListByUserID(userID uint) ([]model.Document, error) {
	var out []model.Document
	for id := uint(1); id < f.nextID; id++ {
		if doc, ok := f.docs[id]; ok && doc.UserID == userID {
			out = append(out, *doc)
		}
	}
	return out, nil
}

func (f *fakeDocumentStore) ListByIDsAndUserID(ids []uint, userID uint) ([]model.Document, error) {
	var out []model.Document
	for _, id := range ids {
		if doc, ok := f.docs[id]; ok && doc.UserID == userID {
			out = append(out, *doc)
		}
	}
	return out, nil
}

func (f *fakeDocumentStore) MarkProcessing(id uint) (bool, error) {
	doc, ok := f.docs[id]
	if !ok {
		return false, nil
	}
	if doc.Status != model.DocumentStatusPending && doc.Status != model.DocumentStatusFailed {
		return false, nil
	}
	doc.Status = model.DocumentStatusProcessing
	return true, nil
}

func (f *fakeDocumentStore) UpdateStatus(id uint, status string) error {
	doc, ok := f.docs[id]
	if !ok {
		return errors.New("document not found")
	}
	doc.Status = status
	return nil
}

func (f *fakeDocumentStore) DeleteByIDAndUserID(id, userID uint) error {
	doc, ok := f.docs[id]
	if ok && doc.UserID == userID {
		delete(f.docs, id)
	}
	return nil
}

type fakeChunkStore struct {
	chunks []model.Chunk
	putErr error
	nextID uint
}

func newFakeChunkStore() *fakeChunkStore {
	return &fakeChunkStore{nextID: 1}
}

func (f *fakeChunkStore) Put(userID, documentID uint, fragments []string, vectors [][]float32) error {
	if f.putErr != nil {
		return f.putErr
	}
	if len(fragments) != len(vectors) {
		return errors.New("fragment/vector count mismatch")
	}
	for i, fragment := range fragments {
		chunk := model.Chunk{
			ID:         f.nextID,
			DocumentID: documentID,
			UserID:     userID,
			Ordinal:    i,
			Content:    fragment,
		}
		chunk.SetEmbedding(vectors[i])
		f.chunks = append(f.chunks, chunk)
		f.nextID++
	}
	return nil
}

func (f *fakeChunkStore) ListByUser(userID uint, documentIDs []uint) ([]model.Chunk, error) {
	allowed := map[uint]bool{}
	for _, id := range documentIDs {
		allowed[id] = true
	}
	var out []model.Chunk
	for _, c := range f.chunks {
		if c.UserID != userID {
			continue
		}
		if len(documentIDs) > 0 && !allowed[c.DocumentID] {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeChunkStore) Dimension() (int, error) {
	if len(f.chunks) == 0 {
		return 0, nil
	}
	return len(f.chunks[0].EmbeddingVector()), nil
}

func (f *fakeChunkStore) DeleteByDocumentID(documentID uint) error {
	kept := f.chunks[:0]
	for _, c := range f.chunks {
		if c.DocumentID != documentID {
			kept = append(kept, c)
		}
	}
	f.chunks = kept
	return nil
}

type fakeSessionStore struct {
	sessions map[uint]*model.ChatSession
	nextID   uint
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: map[uint]*model.ChatSession{}, nextID: 1}
}

func (f *fakeSessionStore) Create(session *model.ChatSession) error {
	session.ID = f.nextID
	f.nextID++
	copied := *session
	f.sessions[session.ID] = &copied
	return nil
}

func (f *fakeSessionStore) GetByIDAndUserID(sessionID, userID uint) (*model.ChatSession, error) {
	session, ok := f.sessions[sessionID]
	if !ok || session.UserID != userID {
		return nil, nil
	}
	copied := *session
	return &copied, nil
}

func (f *fakeSessionStore) ListByUserID(userID uint) ([]model.ChatSession, error) {
	var out []model.ChatSession
	for id := uint(1); id < f.nextID; id++ {
		if session, ok := f.sessions[id]; ok && session.UserID == userID {
			out = append(out, *session)
		}
	}
	return out, nil
}

func (f *fakeSessionStore) DeleteByIDAndUserID(sessionID, userID uint) error {
	session, ok := f.sessions[sessionID]
	if ok && session.UserID == userID {
		delete(f.sessions, sessionID)
	}
	return nil
}

type fakeMessageStore struct {
	messages  []model.Message
	appendErr error
	nextID    uint
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{nextID: 1}
}

func (f *fakeMessageStore) AppendTurn(userMsg, assistantMsg *model.Message) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	userMsg.ID = f.nextID
	f.nextID++
	assistantMsg.ID = f.nextID
	f.nextID++
	f.messages = append(f.messages, *userMsg, *assistantMsg)
	return nil
}

func (f *fakeMessageStore) ListBySessionID(sessionID uint) ([]model.Message, error) {
	var out []model.Message
	for _, m := range f.messages {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMessageStore) DeleteBySessionID(sessionID uint) error {
	kept := f.messages[:0]
	for _, m := range f.messages {
		if m.SessionID != sessionID {
			kept = append(kept, m)
		}
	}
	f.messages = kept
	return nil
}

type fakeEmbedder struct {
	queryVec  []float32
	batchVecs [][]float32
	queryErr  error
	batchErr  error
	calls     int
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.queryVec, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	if f.batchVecs != nil {
		out := f.batchVecs[:len(texts)]
		f.batchVecs = f.batchVecs[len(texts):]
		return out, nil
	}
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = []float32{1, 0, 0}
	}
	return vecs, nil
}

type fakeGenerator struct {
	answer string
	err    error
	calls  int
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if f.answer != "" {
		return f.answer, nil
	}
	return "generated answer", nil
}

type fakeExtractor struct {
	text string
	err  error
}

func (f fakeExtractor) Extract(r io.Reader, filename string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type fakeBlobStorage struct {
	objects map[string]string
	putErr  error
	getErr  error
}

func newFakeBlobStorage() *fakeBlobStorage {
	return &fakeBlobStorage{objects: map[string]string{}}
}

func (f *fakeBlobStorage) Put(ctx context.Context, key string, r io.Reader, opt storage.PutObjectOptions) error {
	if f.putErr != nil {
		return f.putErr
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.objects[key] = string(content)
	return nil
}

func (f *fakeBlobStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	content, ok := f.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(strings.NewReader(content)), nil
}

func (f *fakeBlobStorage) Delete(ctx context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

func (f *fakeBlobStorage) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if _, ok := f.objects[key]; !ok {
		return "", errors.New("object not found")
	}
	return "https://storage.example/" + key, nil
}

type fakeEnqueuer struct {
	enqueued []uint
	err      error
}

func (f *fakeEnqueuer) Enqueue(ctx context.Context, documentID uint) error {
	if f.err != nil {
		return f.err
	}
	f.enqueued = append(f.enqueued, documentID)
	return nil
}
