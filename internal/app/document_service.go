package app

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"docuchat/internal/model"
	"docuchat/internal/storage"
)

// DocumentService owns document metadata and blobs. Uploads land in object
// storage and create a pending document row; ingestion is handed off to the
// async pipeline via the enqueuer.
type DocumentService struct {
	docs          DocumentStore
	chunks        ChunkStore
	blobs         storage.Storage
	ingestQueue   IngestEnqueuer
	presignExpiry time.Duration
}

func NewDocumentService(
	docs DocumentStore,
	chunks ChunkStore,
	blobs storage.Storage,
	ingestQueue IngestEnqueuer,
	presignExpiry time.Duration,
) *DocumentService {
	if presignExpiry <= 0 {
		presignExpiry = time.Hour
	}
	return &DocumentService{
		docs:          docs,
		chunks:        chunks,
		blobs:         blobs,
		ingestQueue:   ingestQueue,
		presignExpiry: presignExpiry,
	}
}

// UploadInput describes one multipart file upload.
type UploadInput struct {
	UserID      uint
	Filename    string
	ContentType string
	Size        int64
}

// Upload streams the file into object storage under a fresh key, records a
// pending document, and enqueues ingestion. A failed metadata write rolls
// the stored object back so no orphan blobs accumulate.
func (s *DocumentService) Upload(ctx context.Context, r io.Reader, input UploadInput) (*model.Document, error) {
	if input.UserID == 0 || r == nil {
		return nil, ErrInvalidInput
	}
	filename := strings.TrimSpace(input.Filename)
	if filename == "" {
		return nil, fmt.Errorf("%w: missing filename", ErrInvalidInput)
	}

	key := fmt.Sprintf("documents/%d/%s%s", input.UserID, uuid.New().String(), filepath.Ext(filename))
	if err := s.blobs.Put(ctx, key, r, storage.PutObjectOptions{
		Size:        input.Size,
		ContentType: input.ContentType,
	}); err != nil {
		return nil, fmt.Errorf("upload to storage failed: %w", err)
	}

	doc := &model.Document{
		UserID:      input.UserID,
		Filename:    filename,
		ContentType: input.ContentType,
		Size:        input.Size,
		StorageKey:  key,
		Status:      model.DocumentStatusPending,
	}
	if err := s.docs.Create(doc); err != nil {
		if delErr := s.blobs.Delete(ctx, key); delErr != nil {
			return nil, fmt.Errorf("save document failed: %v; rollback delete failed: %w", err, delErr)
		}
		return nil, err
	}

	if err := s.ingestQueue.Enqueue(ctx, doc.ID); err != nil {
		// The document stays pending; ingestion can be retriggered explicitly.
		return doc, fmt.Errorf("enqueue ingest failed: %w", err)
	}
	return doc, nil
}

func (s *DocumentService) List(userID uint) ([]model.Document, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.docs.ListByUserID(userID)
}

func (s *DocumentService) Get(userID, documentID uint) (*model.Document, error) {
	if userID == 0 || documentID == 0 {
		return nil, ErrInvalidInput
	}
	doc, err := s.docs.GetByIDAndUserID(documentID, userID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: document %d", ErrNotFound, documentID)
	}
	return doc, nil
}

// RequestIngest re-enqueues ingestion for a document the user owns, used to
// retry a failed ingest explicitly.
func (s *DocumentService) RequestIngest(ctx context.Context, userID, documentID uint) error {
	doc, err := s.Get(userID, documentID)
	if err != nil {
		return err
	}
	if doc.Status == model.DocumentStatusProcessing {
		return fmt.Errorf("%w: document %d", ErrDocumentBusy, documentID)
	}
	return s.ingestQueue.Enqueue(ctx, doc.ID)
}

// PresignURL returns a time-limited URL for previewing the original file.
func (s *DocumentService) PresignURL(ctx context.Context, userID, documentID uint) (string, error) {
	doc, err := s.Get(userID, documentID)
	if err != nil {
		return "", err
	}
	return s.blobs.PresignGet(ctx, doc.StorageKey, s.presignExpiry)
}

// Delete removes the blob, the chunks, and the document row, in that order.
func (s *DocumentService) Delete(ctx context.Context, userID, documentID uint) error {
	doc, err := s.Get(userID, documentID)
	if err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, doc.StorageKey); err != nil {
		return fmt.Errorf("delete blob failed: %w", err)
	}
	if err := s.chunks.DeleteByDocumentID(doc.ID); err != nil {
		return err
	}
	return s.docs.DeleteByIDAndUserID(doc.ID, userID)
}
