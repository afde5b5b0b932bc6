package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/campusops/devtrack/internal/apperr"
	"github.com/campusops/devtrack/internal/dto"
	"github.com/campusops/devtrack/internal/events"
	"github.com/campusops/devtrack/internal/models"
	"github.com/campusops/devtrack/internal/repository"
)

// ErrNotPrivileged means the operator lacks the role required for a
// session lifecycle transition.
var ErrNotPrivileged = errors.New("operation requires an admin operator")

// AuditService manages shared audit sessions: a multi-operator marking
// workflow over a roster snapshot. Marks are idempotent and commutative;
// closing a session freezes them permanently.
type AuditService interface {
	OpenSession(ctx context.Context, operator Operator) (dto.SessionResponse, error)
	Mark(ctx context.Context, sessionID, studentID string, audited bool, operator Operator) error
	CloseSession(ctx context.Context, sessionID string, operator Operator) (dto.SessionResponse, error)
	Summary(ctx context.Context, sessionID string, filter dto.SummaryFilter) (dto.SessionSummary, error)
}

type auditService struct {
	sessions  repository.AuditRepository
	roster    repository.RosterProvider
	publisher *events.Publisher
	logger    zerolog.Logger
	now       func() time.Time
}

// NewAuditService constructs the audit coordinator.
func NewAuditService(
	sessions repository.AuditRepository,
	roster repository.RosterProvider,
	publisher *events.Publisher,
	logger zerolog.Logger,
) AuditService {
	if publisher == nil {
		publisher = events.NewPublisher(nil, logger)
	}
	return &auditService{
		sessions:  sessions,
		roster:    roster,
		publisher: publisher,
		logger:    logger.With().Str("component", "audit_service").Logger(),
		now:       time.Now,
	}
}

func (s *auditService) OpenSession(ctx context.Context, operator Operator) (dto.SessionResponse, error) {
	if !operator.IsAdmin() {
		return dto.SessionResponse{}, ErrNotPrivileged
	}

	// At most one session accepts marks at a time. Historical closed
	// sessions coexist freely.
	active, err := s.sessions.ActiveSession(ctx)
	if err != nil {
		return dto.SessionResponse{}, err
	}
	if active != nil {
		return dto.SessionResponse{}, apperr.Newf(apperr.KindConflict,
			"audit session %s is still active", active.SessionID)
	}

	students, err := s.roster.GetActiveStudents(ctx)
	if err != nil {
		return dto.SessionResponse{}, fmt.Errorf("load roster snapshot: %w", err)
	}

	session := models.AuditSession{
		SessionID: uuid.NewString(),
		CreatedBy: operator.Ref,
		Status:    models.AuditSessionActive,
		CreatedAt: s.now().UTC(),
	}

	marks := make([]models.AuditMark, 0, len(students))
	for _, student := range students {
		marks = append(marks, models.AuditMark{
			SessionID:   session.SessionID,
			StudentID:   student.StudentID,
			StudentName: student.Name,
			Grade:       student.Grade,
			Advisor:     student.Advisor,
		})
	}

	err = s.sessions.CreateSession(ctx, &session, marks)
	if errors.Is(err, repository.ErrActiveSessionExists) {
		// A concurrent open won the race past the check above; the partial
		// unique index on status is the authority.
		return dto.SessionResponse{}, apperr.New(apperr.KindConflict,
			"another audit session was opened concurrently")
	}
	if err != nil {
		return dto.SessionResponse{}, err
	}

	s.logger.Info().
		Str("session_id", session.SessionID).
		Str("operator", operator.Ref).
		Int("students", len(marks)).
		Msg("audit session opened")
	return sessionResponse(session), nil
}

func (s *auditService) Mark(ctx context.Context, sessionID, studentID string, audited bool, operator Operator) error {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if !session.IsActive() {
		return apperr.Newf(apperr.KindSessionClosed,
			"audit session %s is closed", sessionID)
	}

	at := s.now().UTC()
	err = s.sessions.SetMark(ctx, sessionID, studentID, audited, at, operator.Name)
	if errors.Is(err, repository.ErrMarkNotFound) {
		return apperr.Newf(apperr.KindNotFound,
			"student %s is not in session %s", studentID, sessionID)
	}
	if errors.Is(err, repository.ErrSessionNotActive) {
		// The session closed between the check above and the write.
		return apperr.Newf(apperr.KindSessionClosed,
			"audit session %s is closed", sessionID)
	}
	if err != nil {
		return err
	}

	s.publisher.AuditMark(events.AuditMarkEvent{
		SessionID: sessionID,
		StudentID: studentID,
		Audited:   audited,
		Auditor:   operator.Name,
		At:        at,
	})
	return nil
}

func (s *auditService) CloseSession(ctx context.Context, sessionID string, operator Operator) (dto.SessionResponse, error) {
	if !operator.IsAdmin() {
		return dto.SessionResponse{}, ErrNotPrivileged
	}

	at := s.now().UTC()
	err := s.sessions.CloseSession(ctx, sessionID, operator.Ref, at)
	if errors.Is(err, repository.ErrSessionNotActive) {
		// Distinguish "never existed" from "already closed".
		if _, getErr := s.getSession(ctx, sessionID); getErr != nil {
			return dto.SessionResponse{}, getErr
		}
		return dto.SessionResponse{}, apperr.Newf(apperr.KindSessionClosed,
			"audit session %s is already closed", sessionID)
	}
	if err != nil {
		return dto.SessionResponse{}, err
	}

	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return dto.SessionResponse{}, err
	}

	s.logger.Info().
		Str("session_id", sessionID).
		Str("operator", operator.Ref).
		Msg("audit session closed")
	return sessionResponse(session), nil
}

func (s *auditService) Summary(ctx context.Context, sessionID string, filter dto.SummaryFilter) (dto.SessionSummary, error) {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return dto.SessionSummary{}, err
	}

	marks, err := s.sessions.ListMarks(ctx, sessionID, repository.MarkFilter{
		Grade:   filter.Grade,
		Advisor: filter.Advisor,
	})
	if err != nil {
		return dto.SessionSummary{}, err
	}

	summary := dto.SessionSummary{
		SessionID: sessionID,
		Status:    session.Status,
		Total:     len(marks),
		Marks:     make([]dto.MarkRow, 0, len(marks)),
	}
	for _, mark := range marks {
		if mark.Audited {
			summary.Audited++
		}
		summary.Marks = append(summary.Marks, dto.MarkRow{
			StudentID:      mark.StudentID,
			StudentName:    mark.StudentName,
			Grade:          mark.Grade,
			Advisor:        mark.Advisor,
			Audited:        mark.Audited,
			AuditTimestamp: mark.AuditTimestamp,
			AuditorName:    mark.AuditorName,
		})
	}
	summary.Pending = summary.Total - summary.Audited
	if summary.Total > 0 {
		summary.Percent = float64(summary.Audited) / float64(summary.Total) * 100
	}
	return summary, nil
}

func (s *auditService) getSession(ctx context.Context, sessionID string) (models.AuditSession, error) {
	session, err := s.sessions.GetSession(ctx, sessionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.AuditSession{}, apperr.Newf(apperr.KindNotFound,
			"audit session %s not found", sessionID)
	}
	if err != nil {
		return models.AuditSession{}, err
	}
	return session, nil
}

func sessionResponse(session models.AuditSession) dto.SessionResponse {
	return dto.SessionResponse{
		SessionID: session.SessionID,
		CreatedBy: session.CreatedBy,
		Status:    session.Status,
		CreatedAt: session.CreatedAt,
		ClosedAt:  session.ClosedAt,
		ClosedBy:  session.ClosedBy,
	}
}
