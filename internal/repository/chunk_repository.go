package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"docuchat/internal/model"
)

// ChunkRepository is the persistent vector store: (fragment, vector, document)
// tuples scoped by owning user.
type ChunkRepository struct {
	db *gorm.DB
}

func NewChunkRepository(db *gorm.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// Put stores one document's fragments and vectors as a single batch.
// Fragments and vectors must be equal-length and index-aligned. The batch is
// written in one transaction, so a failure stores nothing.
func (r *ChunkRepository) Put(userID, documentID uint, fragments []string, vectors [][]float32) error {
	if len(fragments) != len(vectors) {
		return fmt.Errorf("fragments/vectors length mismatch: %d vs %d", len(fragments), len(vectors))
	}
	if len(fragments) == 0 {
		return nil
	}

	chunks := make([]model.Chunk, len(fragments))
	for i := range fragments {
		chunks[i] = model.Chunk{
			DocumentID: documentID,
			UserID:     userID,
			Ordinal:    i,
			Content:    fragments[i],
		}
		chunks[i].SetEmbedding(vectors[i])
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&chunks).Error; err != nil {
			return fmt.Errorf("create chunk batch failed: %w", err)
		}
		return nil
	})
}

// ListByUser returns every chunk owned by the user, optionally restricted to
// the given document ids. An empty result is not an error; a document with no
// chunks simply contributes nothing.
func (r *ChunkRepository) ListByUser(userID uint, documentIDs []uint) ([]model.Chunk, error) {
	q := r.db.Where("user_id = ?", userID)
	if len(documentIDs) > 0 {
		q = q.Where("document_id IN ?", documentIDs)
	}
	var chunks []model.Chunk
	if err := q.Order("document_id ASC, ordinal ASC").Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("list chunks failed: %w", err)
	}
	return chunks, nil
}

// Dimension reports the vector dimensionality already established in the
// store, or zero when no chunk has been stored yet.
func (r *ChunkRepository) Dimension() (int, error) {
	var chunk model.Chunk
	err := r.db.Select("embedding").First(&chunk).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("probe chunk dimensionality failed: %w", err)
	}
	return len(chunk.EmbeddingVector()), nil
}

func (r *ChunkRepository) DeleteByDocumentID(documentID uint) error {
	if err := r.db.Where("document_id = ?", documentID).Delete(&model.Chunk{}).Error; err != nil {
		return fmt.Errorf("delete chunks by document failed: %w", err)
	}
	return nil
}
