package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"docuchat/internal/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(doc *model.Document) error {
	if err := r.db.Create(doc).Error; err != nil {
		return fmt.Errorf("create document failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(id uint) (*model.Document, error) {
	var doc model.Document
	if err := r.db.First(&doc, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) GetByIDAndUserID(id, userID uint) (*model.Document, error) {
	var doc model.Document
	if err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) ListByUserID(userID uint) ([]model.Document, error) {
	var list []model.Document
	if err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list documents failed: %w", err)
	}
	return list, nil
}

func (r *DocumentRepository) ListByIDsAndUserID(ids []uint, userID uint) ([]model.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var list []model.Document
	if err := r.db.Where("id IN ? AND user_id = ?", ids, userID).Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list documents by ids failed: %w", err)
	}
	return list, nil
}

// MarkProcessing flips the document into processing, but only from a state
// that permits ingestion. The conditional update doubles as an exclusion
// flag: a document already processing cannot be picked up twice.
func (r *DocumentRepository) MarkProcessing(id uint) (bool, error) {
	res := r.db.Model(&model.Document{}).
		Where("id = ? AND status IN ?", id, []string{model.DocumentStatusPending, model.DocumentStatusFailed}).
		Update("status", model.DocumentStatusProcessing)
	if res.Error != nil {
		return false, fmt.Errorf("mark document processing failed: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *DocumentRepository) UpdateStatus(id uint, status string) error {
	if err := r.db.Model(&model.Document{}).Where("id = ?", id).Update("status", status).Error; err != nil {
		return fmt.Errorf("update document status failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) DeleteByIDAndUserID(id, userID uint) error {
	if err := r.db.Where("id = ? AND user_id = ?", id, userID).Delete(&model.Document{}).Error; err != nil {
		return fmt.Errorf("delete document failed: %w", err)
	}
	return nil
}
