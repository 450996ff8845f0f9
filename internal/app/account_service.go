package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"docuchat/internal/storage"
)

// AccountService covers the user lifecycle beyond authentication: usage
// statistics and full account deletion.
type AccountService struct {
	users    UserStore
	docs     DocumentStore
	chunks   ChunkStore
	sessions SessionStore
	messages MessageStore
	quotaDB  QuotaStore
	quota    *QuotaService
	blobs    storage.Storage
}

func NewAccountService(
	users UserStore,
	docs DocumentStore,
	chunks ChunkStore,
	sessions SessionStore,
	messages MessageStore,
	quotaDB QuotaStore,
	quota *QuotaService,
	blobs storage.Storage,
) *AccountService {
	return &AccountService{
		users:    users,
		docs:     docs,
		chunks:   chunks,
		sessions: sessions,
		messages: messages,
		quotaDB:  quotaDB,
		quota:    quota,
		blobs:    blobs,
	}
}

// AccountStats reports a user's query usage: today's budget plus the
// lifetime total across all stored days.
type AccountStats struct {
	QueriesTotal  int         `json:"queries_total"`
	Quota         QuotaStatus `json:"quota"`
	DocumentCount int         `json:"document_count"`
	SessionCount  int         `json:"session_count"`
}

func (s *AccountService) Stats(userID uint, now time.Time) (*AccountStats, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	user, err := s.users.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}

	status, err := s.quota.Status(userID, now)
	if err != nil {
		return nil, err
	}
	total, err := s.quotaDB.TotalFor(userID)
	if err != nil {
		return nil, err
	}
	docs, err := s.docs.ListByUserID(userID)
	if err != nil {
		return nil, err
	}
	sessions, err := s.sessions.ListByUserID(userID)
	if err != nil {
		return nil, err
	}

	return &AccountStats{
		QueriesTotal:  total,
		Quota:         status,
		DocumentCount: len(docs),
		SessionCount:  len(sessions),
	}, nil
}

// Delete removes the user and everything they own: blobs, chunks, document
// rows, sessions with their messages, and quota records, the user row last.
// A blob that cannot be removed is logged and skipped so a storage hiccup
// does not leave the account half-alive.
func (s *AccountService) Delete(ctx context.Context, userID uint) error {
	if userID == 0 {
		return ErrInvalidInput
	}
	user, err := s.users.GetByID(userID)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}

	docs, err := s.docs.ListByUserID(userID)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		if err := s.blobs.Delete(ctx, doc.StorageKey); err != nil {
			log.Printf("delete blob %s for user %d failed: %v", doc.StorageKey, userID, err)
		}
		if err := s.chunks.DeleteByDocumentID(doc.ID); err != nil {
			return err
		}
		if err := s.docs.DeleteByIDAndUserID(doc.ID, userID); err != nil {
			return err
		}
	}

	sessions, err := s.sessions.ListByUserID(userID)
	if err != nil {
		return err
	}
	for _, session := range sessions {
		if err := s.messages.DeleteBySessionID(session.ID); err != nil {
			return err
		}
		if err := s.sessions.DeleteByIDAndUserID(session.ID, userID); err != nil {
			return err
		}
	}

	if err := s.quotaDB.DeleteByUserID(userID); err != nil {
		return err
	}
	return s.users.DeleteByID(userID)
}
