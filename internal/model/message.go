package model

import (
	"encoding/json"
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Reference points an assistant message back at a source document.
type Reference struct {
	DocumentID   uint   `json:"document_id"`
	DocumentName string `json:"document_name"`
	StorageKey   string `json:"storage_key"`
}

// Message is one entry in a chat session log. Assistant messages carry the
// references of the documents their answer was grounded on, stored as JSON.
type Message struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	SessionID  uint      `gorm:"not null;index" json:"session_id"`
	UserID     uint      `gorm:"not null;index" json:"user_id"`
	Role       string    `gorm:"size:16;not null" json:"role"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	References string    `gorm:"type:text" json:"-"` // JSON array of Reference
	CreatedAt  time.Time `json:"created_at"`
}

// ReferenceList returns the parsed references; empty on parse error.
func (m *Message) ReferenceList() []Reference {
	if m.References == "" {
		return nil
	}
	var refs []Reference
	_ = json.Unmarshal([]byte(m.References), &refs)
	return refs
}

// SetReferences stores the references as JSON.
func (m *Message) SetReferences(refs []Reference) {
	if len(refs) == 0 {
		m.References = ""
		return
	}
	b, _ := json.Marshal(refs)
	m.References = string(b)
}
