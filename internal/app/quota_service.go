package app

import (
	"time"
)

const defaultDailyQueryLimit = 10

// QuotaStatus reports a user's query budget for one UTC day.
type QuotaStatus struct {
	UsedToday int  `json:"queries_used_today"`
	LeftToday int  `json:"queries_left_today"`
	QueryLeft bool `json:"is_query_left"`
}

// QuotaService gates query volume per user per UTC day. The reference time
// is always passed in by the caller so the rollover boundary stays
// deterministic and testable.
type QuotaService struct {
	store   QuotaStore
	ceiling int
}

func NewQuotaService(store QuotaStore, ceiling int) *QuotaService {
	if ceiling <= 0 {
		ceiling = defaultDailyQueryLimit
	}
	return &QuotaService{store: store, ceiling: ceiling}
}

// Charge counts one query attempt against the user's daily budget. When the
// ceiling is already reached it returns ErrQuotaExceeded and the stored
// count stays untouched; otherwise the increment and the limit check happen
// as one atomic store operation. A new UTC day starts a fresh counter; the
// previous day's record is left in place.
func (s *QuotaService) Charge(userID uint, now time.Time) (QuotaStatus, error) {
	count, allowed, err := s.store.IncrementIfBelow(userID, dayKey(now), s.ceiling)
	if err != nil {
		return QuotaStatus{}, err
	}
	status := s.statusFor(count)
	if !allowed {
		return status, ErrQuotaExceeded
	}
	return status, nil
}

// Status reports the user's budget for the day of the reference time without
// charging anything. A missing record means no queries yet today.
func (s *QuotaService) Status(userID uint, now time.Time) (QuotaStatus, error) {
	count, exists, err := s.store.CountFor(userID, dayKey(now))
	if err != nil {
		return QuotaStatus{}, err
	}
	if !exists {
		count = 0
	}
	return s.statusFor(count), nil
}

func (s *QuotaService) Ceiling() int { return s.ceiling }

func (s *QuotaService) statusFor(count int) QuotaStatus {
	left := s.ceiling - count
	if left < 0 {
		left = 0
	}
	return QuotaStatus{
		UsedToday: count,
		LeftToday: left,
		QueryLeft: count < s.ceiling,
	}
}

func dayKey(now time.Time) string {
	return now.UTC().Format("2006-01-02")
}
