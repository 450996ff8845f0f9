package repository

import (
	"fmt"

	"gorm.io/gorm"

	"docuchat/internal/model"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// AppendTurn writes one query turn: the user message, then the paired
// assistant message, inside a single transaction. Interleaving with a
// concurrent turn on the same session is serialized by the store, and a
// partial turn can never be observed.
func (r *MessageRepository) AppendTurn(userMsg, assistantMsg *model.Message) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(userMsg).Error; err != nil {
			return fmt.Errorf("append user message failed: %w", err)
		}
		if err := tx.Create(assistantMsg).Error; err != nil {
			return fmt.Errorf("append assistant message failed: %w", err)
		}
		if err := tx.Model(&model.ChatSession{}).
			Where("id = ?", userMsg.SessionID).
			Update("updated_at", gorm.Expr("CURRENT_TIMESTAMP")).Error; err != nil {
			return fmt.Errorf("touch session failed: %w", err)
		}
		return nil
	})
}

func (r *MessageRepository) ListBySessionID(sessionID uint) ([]model.Message, error) {
	var messages []model.Message
	if err := r.db.Where("session_id = ?", sessionID).Order("id ASC").Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("list messages failed: %w", err)
	}
	return messages, nil
}

func (r *MessageRepository) DeleteBySessionID(sessionID uint) error {
	if err := r.db.Where("session_id = ?", sessionID).Delete(&model.Message{}).Error; err != nil {
		return fmt.Errorf("delete messages by session failed: %w", err)
	}
	return nil
}
