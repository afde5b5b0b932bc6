package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/campusops/devtrack/internal/models"
)

// ErrMarkNotFound means the student is not part of the session's snapshot.
var ErrMarkNotFound = errors.New("audit mark not found in session")

// ErrSessionNotActive means a write targeted a session that is no longer
// (or never was) active.
var ErrSessionNotActive = errors.New("audit session is not active")

// ErrActiveSessionExists means the single-active-session index rejected a
// second concurrent session.
var ErrActiveSessionExists = errors.New("another audit session is active")

// MarkFilter narrows summary queries. Empty fields match everything.
type MarkFilter struct {
	Grade   string
	Advisor string
}

// AuditRepository persists audit sessions and their mark rows.
type AuditRepository interface {
	// CreateSession writes the session and its roster snapshot in one
	// transaction.
	CreateSession(ctx context.Context, session *models.AuditSession, marks []models.AuditMark) error
	GetSession(ctx context.Context, sessionID string) (models.AuditSession, error)
	// ActiveSession returns the currently active session, or nil.
	ActiveSession(ctx context.Context) (*models.AuditSession, error)
	// CloseSession transitions active → closed. ErrSessionNotActive when
	// the session was already closed (or does not exist).
	CloseSession(ctx context.Context, sessionID, closedBy string, at time.Time) error
	GetMark(ctx context.Context, sessionID, studentID string) (models.AuditMark, error)
	// SetMark overwrites the mark row for (session, student). The write is
	// guarded on the session still being active, so a close landing between
	// a caller's check and its write cannot be raced past. ErrMarkNotFound
	// when the student is not in the snapshot, ErrSessionNotActive when the
	// session is closed.
	SetMark(ctx context.Context, sessionID, studentID string, audited bool, at time.Time, auditor string) error
	ListMarks(ctx context.Context, sessionID string, filter MarkFilter) ([]models.AuditMark, error)
}

type auditRepository struct {
	db *gorm.DB
}

// NewAuditRepository constructs an audit repository.
func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) CreateSession(ctx context.Context, session *models.AuditSession, marks []models.AuditMark) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(session).Error; err != nil {
			return err
		}
		if len(marks) == 0 {
			return nil
		}
		return tx.CreateInBatches(marks, 200).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrActiveSessionExists
	}
	return err
}

func (r *auditRepository) GetSession(ctx context.Context, sessionID string) (models.AuditSession, error) {
	var session models.AuditSession
	if err := r.db.WithContext(ctx).First(&session, "session_id = ?", sessionID).Error; err != nil {
		return models.AuditSession{}, err
	}
	return session, nil
}

func (r *auditRepository) ActiveSession(ctx context.Context) (*models.AuditSession, error) {
	var session models.AuditSession
	err := r.db.WithContext(ctx).First(&session, "status = ?", models.AuditSessionActive).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *auditRepository) CloseSession(ctx context.Context, sessionID, closedBy string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.AuditSession{}).
		Where("session_id = ? AND status = ?", sessionID, models.AuditSessionActive).
		Updates(map[string]interface{}{
			"status":    models.AuditSessionClosed,
			"closed_at": at,
			"closed_by": closedBy,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSessionNotActive
	}
	return nil
}

func (r *auditRepository) GetMark(ctx context.Context, sessionID, studentID string) (models.AuditMark, error) {
	var mark models.AuditMark
	err := r.db.WithContext(ctx).
		First(&mark, "session_id = ? AND student_id = ?", sessionID, studentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.AuditMark{}, ErrMarkNotFound
	}
	if err != nil {
		return models.AuditMark{}, err
	}
	return mark, nil
}

func (r *auditRepository) SetMark(ctx context.Context, sessionID, studentID string, audited bool, at time.Time, auditor string) error {
	// The active-status condition rides on the UPDATE itself, so a session
	// closed after the caller's check still freezes this mark.
	result := r.db.WithContext(ctx).
		Model(&models.AuditMark{}).
		Where("session_id = ? AND student_id = ?", sessionID, studentID).
		Where("EXISTS (SELECT 1 FROM audit_sessions WHERE audit_sessions.session_id = ? AND audit_sessions.status = ?)",
			sessionID, models.AuditSessionActive).
		Updates(map[string]interface{}{
			"audited":         audited,
			"audit_timestamp": at,
			"auditor_name":    auditor,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var session models.AuditSession
		err := r.db.WithContext(ctx).
			Select("status").
			First(&session, "session_id = ?", sessionID).Error
		if err == nil && !session.IsActive() {
			return ErrSessionNotActive
		}
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return ErrMarkNotFound
	}
	return nil
}

func (r *auditRepository) ListMarks(ctx context.Context, sessionID string, filter MarkFilter) ([]models.AuditMark, error) {
	query := r.db.WithContext(ctx).Where("session_id = ?", sessionID)
	if filter.Grade != "" {
		query = query.Where("grade = ?", filter.Grade)
	}
	if filter.Advisor != "" {
		query = query.Where("advisor = ?", filter.Advisor)
	}

	var marks []models.AuditMark
	if err := query.Order("student_name asc").Find(&marks).Error; err != nil {
		return nil, err
	}
	return marks, nil
}
