package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuotaServiceChargeCountsUpToCeiling(t *testing.T) {
	store := newFakeQuotaStore()
	svc := NewQuotaService(store, 3)
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	for i := 1; i <= 3; i++ {
		status, err := svc.Charge(7, now)
		require.NoError(t, err)
		assert.Equal(t, i, status.UsedToday)
		assert.Equal(t, 3-i, status.LeftToday)
	}

	status, err := svc.Charge(7, now)
	assert.ErrorIs(t, err, ErrQuotaExceeded)
	assert.Equal(t, 3, status.UsedToday)
	assert.False(t, status.QueryLeft)
}

func TestQuotaServiceRejectionDoesNotIncrement(t *testing.T) {
	store := newFakeQuotaStore()
	svc := NewQuotaService(store, 1)
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	_, err := svc.Charge(7, now)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err = svc.Charge(7, now)
		assert.ErrorIs(t, err, ErrQuotaExceeded)
	}

	status, err := svc.Status(7, now)
	require.NoError(t, err)
	assert.Equal(t, 1, status.UsedToday)
}

func TestQuotaServiceRolloverStartsFreshCounter(t *testing.T) {
	store := newFakeQuotaStore()
	svc := NewQuotaService(store, 2)
	day1 := time.Date(2025, 3, 10, 23, 59, 0, 0, time.UTC)
	day2 := time.Date(2025, 3, 11, 0, 1, 0, 0, time.UTC)

	_, err := svc.Charge(7, day1)
	require.NoError(t, err)
	_, err = svc.Charge(7, day1)
	require.NoError(t, err)
	_, err = svc.Charge(7, day1)
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	status, err := svc.Charge(7, day2)
	require.NoError(t, err)
	assert.Equal(t, 1, status.UsedToday)

	// The previous day's count is untouched by the rollover.
	old, err := svc.Status(7, day1)
	require.NoError(t, err)
	assert.Equal(t, 2, old.UsedToday)
}

func TestQuotaServiceRolloverIsUTC(t *testing.T) {
	store := newFakeQuotaStore()
	svc := NewQuotaService(store, 5)

	// 23:30 UTC-5 and 01:30 UTC+1 are the same UTC day as 04:30 UTC.
	est := time.FixedZone("UTC-5", -5*3600)
	cet := time.FixedZone("UTC+1", 3600)
	_, err := svc.Charge(7, time.Date(2025, 3, 9, 23, 30, 0, 0, est))
	require.NoError(t, err)
	_, err = svc.Charge(7, time.Date(2025, 3, 10, 1, 30, 0, 0, cet))
	require.NoError(t, err)

	status, err := svc.Status(7, time.Date(2025, 3, 10, 4, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 2, status.UsedToday)
}

func TestQuotaServiceStatusDoesNotCharge(t *testing.T) {
	store := newFakeQuotaStore()
	svc := NewQuotaService(store, 2)
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	status, err := svc.Status(7, now)
	require.NoError(t, err)
	assert.Equal(t, 0, status.UsedToday)
	assert.Equal(t, 2, status.LeftToday)
	assert.True(t, status.QueryLeft)

	status, err = svc.Status(7, now)
	require.NoError(t, err)
	assert.Equal(t, 0, status.UsedToday)
}
