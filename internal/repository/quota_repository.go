package repository

import (
	"errors"
	"fmt"

	mysqldrv "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"docuchat/internal/model"
)

type QuotaRepository struct {
	db *gorm.DB
}

func NewQuotaRepository(db *gorm.DB) *QuotaRepository {
	return &QuotaRepository{db: db}
}

// IncrementIfBelow bumps the (user, day) counter by one, but only while the
// stored count is under the ceiling. The conditional UPDATE makes check and
// increment a single step, so two concurrent requests cannot both pass the
// check and overshoot. It returns the count after the call and whether the
// increment was applied; a rejected attempt leaves the count untouched.
//
// When two first-queries-of-the-day race, the loser of the unique (user, day)
// index insert retries the conditional UPDATE once against the winner's row
// instead of surfacing the duplicate-key error.
func (r *QuotaRepository) IncrementIfBelow(userID uint, day string, ceiling int) (int, bool, error) {
	count, allowed, err := r.tryIncrement(userID, day, ceiling)
	if err != nil && isDuplicateKey(err) {
		return r.tryIncrement(userID, day, ceiling)
	}
	return count, allowed, err
}

func (r *QuotaRepository) tryIncrement(userID uint, day string, ceiling int) (int, bool, error) {
	var count int
	var allowed bool

	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.QuotaRecord{}).
			Where("user_id = ? AND day = ? AND count < ?", userID, day, ceiling).
			UpdateColumn("count", gorm.Expr("count + 1"))
		if res.Error != nil {
			return fmt.Errorf("increment quota failed: %w", res.Error)
		}
		if res.RowsAffected == 1 {
			var rec model.QuotaRecord
			if err := tx.Where("user_id = ? AND day = ?", userID, day).First(&rec).Error; err != nil {
				return fmt.Errorf("read quota after increment failed: %w", err)
			}
			count = rec.Count
			allowed = true
			return nil
		}

		// No row updated: either the day's record does not exist yet, or the
		// counter already sits at the ceiling.
		var rec model.QuotaRecord
		err := tx.Where("user_id = ? AND day = ?", userID, day).First(&rec).Error
		if err == nil {
			count = rec.Count
			allowed = false
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("read quota failed: %w", err)
		}

		rec = model.QuotaRecord{UserID: userID, Day: day, Count: 1}
		if err := tx.Create(&rec).Error; err != nil {
			return fmt.Errorf("create quota record failed: %w", err)
		}
		count = 1
		allowed = ceiling >= 1
		return nil
	})
	return count, allowed, err
}

// isDuplicateKey reports whether the (user, day) unique index rejected a
// concurrent first-insert.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysqldrv.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}

// CountFor returns today's count for the user; zero when no record exists,
// with the second result distinguishing absence from a stored zero.
func (r *QuotaRepository) CountFor(userID uint, day string) (int, bool, error) {
	var rec model.QuotaRecord
	err := r.db.Where("user_id = ? AND day = ?", userID, day).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read quota failed: %w", err)
	}
	return rec.Count, true, nil
}

// TotalFor sums the user's query counts across every stored day.
func (r *QuotaRepository) TotalFor(userID uint) (int, error) {
	var total int
	err := r.db.Model(&model.QuotaRecord{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(count), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("sum quota records failed: %w", err)
	}
	return total, nil
}

func (r *QuotaRepository) DeleteByUserID(userID uint) error {
	if err := r.db.Where("user_id = ?", userID).Delete(&model.QuotaRecord{}).Error; err != nil {
		return fmt.Errorf("delete quota records failed: %w", err)
	}
	return nil
}
