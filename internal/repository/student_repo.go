package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/campusops/devtrack/internal/models"
)

// ErrVersionConflict means a guarded update lost a race: the row's version
// moved between read and write.
var ErrVersionConflict = errors.New("student row version conflict")

// CheckInUpdate is the device-side mutation applied to a student row when
// their device comes back.
type CheckInUpdate struct {
	Timestamp time.Time
	AssetID   string
	Tag       string
	Serial    string
	Type      string
}

// StudentRepository provides access to student ledger rows.
type StudentRepository interface {
	GetByID(ctx context.Context, studentID string) (models.StudentRecord, error)
	GetByTrackerUserRef(ctx context.Context, ref string) (models.StudentRecord, error)
	ListActive(ctx context.Context) ([]models.StudentRecord, error)
	// ApplyCheckIn writes the check-in fields guarded by the version read
	// earlier. ErrVersionConflict when another writer got there first.
	ApplyCheckIn(ctx context.Context, studentID string, expectedVersion int64, update CheckInUpdate) error
}

type studentRepository struct {
	db *gorm.DB
}

// NewStudentRepository constructs a student repository.
func NewStudentRepository(db *gorm.DB) StudentRepository {
	return &studentRepository{db: db}
}

func (r *studentRepository) GetByID(ctx context.Context, studentID string) (models.StudentRecord, error) {
	var student models.StudentRecord
	if err := r.db.WithContext(ctx).First(&student, "student_id = ?", studentID).Error; err != nil {
		return models.StudentRecord{}, err
	}
	return student, nil
}

func (r *studentRepository) GetByTrackerUserRef(ctx context.Context, ref string) (models.StudentRecord, error) {
	var student models.StudentRecord
	if err := r.db.WithContext(ctx).First(&student, "tracker_user_ref = ?", ref).Error; err != nil {
		return models.StudentRecord{}, err
	}
	return student, nil
}

func (r *studentRepository) ListActive(ctx context.Context) ([]models.StudentRecord, error) {
	var students []models.StudentRecord
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("name asc").
		Find(&students).Error; err != nil {
		return nil, err
	}
	return students, nil
}

func (r *studentRepository) ApplyCheckIn(ctx context.Context, studentID string, expectedVersion int64, update CheckInUpdate) error {
	result := r.db.WithContext(ctx).
		Model(&models.StudentRecord{}).
		Where("student_id = ? AND version = ?", studentID, expectedVersion).
		Updates(map[string]interface{}{
			"device_checked_in":  true,
			"check_in_timestamp": update.Timestamp,
			"device_asset_id":    update.AssetID,
			"device_tag":         update.Tag,
			"device_serial":      update.Serial,
			"device_type":        update.Type,
			"version":            expectedVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrVersionConflict
	}
	return nil
}
