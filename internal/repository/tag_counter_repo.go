package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/campusops/devtrack/internal/models"
)

// TagCounterRepository persists per-prefix tag sequence counters.
type TagCounterRepository interface {
	// ReserveNext durably advances the counter for prefix and returns the
	// reserved value. The increment commits before the value is returned,
	// so a crash after commit burns the value instead of reissuing it.
	ReserveNext(ctx context.Context, prefix string) (int64, error)
}

type tagCounterRepository struct {
	db *gorm.DB
}

// NewTagCounterRepository constructs a tag counter repository.
func NewTagCounterRepository(db *gorm.DB) TagCounterRepository {
	return &tagCounterRepository{db: db}
}

// ReserveNext increments in place rather than read-modify-write, so two
// processes advancing the same prefix serialize on the counter row and can
// never reserve the same value.
func (r *tagCounterRepository) ReserveNext(ctx context.Context, prefix string) (int64, error) {
	var reserved int64

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seed := models.TagCounter{Prefix: prefix, NextValue: 1}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
			return err
		}

		result := tx.Model(&models.TagCounter{}).
			Where("prefix = ?", prefix).
			Update("next_value", gorm.Expr("next_value + 1"))
		if result.Error != nil {
			return result.Error
		}

		var counter models.TagCounter
		if err := tx.First(&counter, "prefix = ?", prefix).Error; err != nil {
			return err
		}
		reserved = counter.NextValue - 1
		return nil
	})
	if err != nil {
		return 0, err
	}
	return reserved, nil
}
