package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/campusops/devtrack/internal/apperr"
	"github.com/campusops/devtrack/internal/dto"
	"github.com/campusops/devtrack/internal/models"
	"github.com/campusops/devtrack/internal/repository"
)

var (
	adminOp = Operator{Ref: "ADMIN1", Name: "A. Admin", Role: RoleAdmin}
	staffOp = Operator{Ref: "STAFF1", Name: "T. Jones", Role: RoleStaff}
)

func seedRoster(t *testing.T, db *gorm.DB) {
	t.Helper()
	students := []models.StudentRecord{
		{StudentID: "S1", Name: "Ada Lovelace", Grade: "10", Advisor: "T. Jones", IsActive: true},
		{StudentID: "S2", Name: "Grace Hopper", Grade: "11", Advisor: "T. Jones", IsActive: true},
		{StudentID: "S3", Name: "Alan Turing", Grade: "10", Advisor: "M. Smith", IsActive: true},
		{StudentID: "S4", Name: "Left Lastyear", Grade: "12", Advisor: "M. Smith", IsActive: false},
	}
	for i := range students {
		require.NoError(t, db.Create(&students[i]).Error)
	}
}

func newAuditFixture(t *testing.T) (AuditService, *gorm.DB) {
	t.Helper()
	db := newLedger(t)
	seedRoster(t, db)
	students := repository.NewStudentRepository(db)
	svc := NewAuditService(
		repository.NewAuditRepository(db),
		repository.NewLedgerRoster(students),
		nil,
		testLogger(),
	)
	return svc, db
}

func TestOpenSessionSnapshotsActiveRoster(t *testing.T) {
	svc, db := newAuditFixture(t)
	ctx := context.Background()

	session, err := svc.OpenSession(ctx, adminOp)
	require.NoError(t, err)
	require.Equal(t, models.AuditSessionActive, session.Status)
	require.Equal(t, "ADMIN1", session.CreatedBy)

	var marks []models.AuditMark
	require.NoError(t, db.Find(&marks, "session_id = ?", session.SessionID).Error)
	require.Len(t, marks, 3, "inactive students stay out of the snapshot")
	for _, mark := range marks {
		require.False(t, mark.Audited)
	}
}

func TestOpenSessionRequiresAdmin(t *testing.T) {
	svc, _ := newAuditFixture(t)
	_, err := svc.OpenSession(context.Background(), staffOp)
	require.ErrorIs(t, err, ErrNotPrivileged)
}

func TestOpenSessionRejectsSecondActiveSession(t *testing.T) {
	svc, _ := newAuditFixture(t)
	ctx := context.Background()

	first, err := svc.OpenSession(ctx, adminOp)
	require.NoError(t, err)

	_, err = svc.OpenSession(ctx, adminOp)
	require.True(t, apperr.IsKind(err, apperr.KindConflict))

	_, err = svc.CloseSession(ctx, first.SessionID, adminOp)
	require.NoError(t, err)

	_, err = svc.OpenSession(ctx, adminOp)
	require.NoError(t, err, "a closed session no longer blocks a new one")
}

func TestMarkIsIdempotent(t *testing.T) {
	svc, db := newAuditFixture(t)
	ctx := context.Background()

	session, err := svc.OpenSession(ctx, adminOp)
	require.NoError(t, err)

	require.NoError(t, svc.Mark(ctx, session.SessionID, "S2", true, staffOp))
	require.NoError(t, svc.Mark(ctx, session.SessionID, "S2", true, staffOp))

	var mark models.AuditMark
	require.NoError(t, db.First(&mark, "session_id = ? AND student_id = ?", session.SessionID, "S2").Error)
	require.True(t, mark.Audited)
	require.NotNil(t, mark.AuditTimestamp)
	require.Equal(t, "T. Jones", *mark.AuditorName)

	summary, err := svc.Summary(ctx, session.SessionID, dto.SummaryFilter{})
	require.NoError(t, err)
	require.Equal(t, 1, summary.Audited, "re-marking does not double count")
}

func TestMarkOverwritesAcrossMarkers(t *testing.T) {
	svc, db := newAuditFixture(t)
	ctx := context.Background()

	session, err := svc.OpenSession(ctx, adminOp)
	require.NoError(t, err)

	require.NoError(t, svc.Mark(ctx, session.SessionID, "S2", true, staffOp))
	require.NoError(t, svc.Mark(ctx, session.SessionID, "S2", true, adminOp))

	var mark models.AuditMark
	require.NoError(t, db.First(&mark, "session_id = ? AND student_id = ?", session.SessionID, "S2").Error)
	require.Equal(t, "A. Admin", *mark.AuditorName, "last writer wins")
}

func TestMarkUnknownStudentIsNotFound(t *testing.T) {
	svc, _ := newAuditFixture(t)
	ctx := context.Background()

	session, err := svc.OpenSession(ctx, adminOp)
	require.NoError(t, err)

	err = svc.Mark(ctx, session.SessionID, "S999", true, staffOp)
	require.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestClosedSessionFreezesMarks(t *testing.T) {
	svc, db := newAuditFixture(t)
	ctx := context.Background()

	session, err := svc.OpenSession(ctx, adminOp)
	require.NoError(t, err)
	require.NoError(t, svc.Mark(ctx, session.SessionID, "S2", true, staffOp))

	closed, err := svc.CloseSession(ctx, session.SessionID, adminOp)
	require.NoError(t, err)
	require.Equal(t, models.AuditSessionClosed, closed.Status)
	require.NotNil(t, closed.ClosedAt)

	err = svc.Mark(ctx, session.SessionID, "S2", false, staffOp)
	require.True(t, apperr.IsKind(err, apperr.KindSessionClosed))

	var mark models.AuditMark
	require.NoError(t, db.First(&mark, "session_id = ? AND student_id = ?", session.SessionID, "S2").Error)
	require.True(t, mark.Audited, "marks are immutable once the session closes")
}

func TestCloseSessionRequiresAdmin(t *testing.T) {
	svc, _ := newAuditFixture(t)
	ctx := context.Background()

	session, err := svc.OpenSession(ctx, adminOp)
	require.NoError(t, err)

	_, err = svc.CloseSession(ctx, session.SessionID, staffOp)
	require.ErrorIs(t, err, ErrNotPrivileged)
}

func TestCloseSessionTwiceReportsClosed(t *testing.T) {
	svc, _ := newAuditFixture(t)
	ctx := context.Background()

	session, err := svc.OpenSession(ctx, adminOp)
	require.NoError(t, err)

	_, err = svc.CloseSession(ctx, session.SessionID, adminOp)
	require.NoError(t, err)

	_, err = svc.CloseSession(ctx, session.SessionID, adminOp)
	require.True(t, apperr.IsKind(err, apperr.KindSessionClosed))
}

func TestCloseUnknownSessionIsNotFound(t *testing.T) {
	svc, _ := newAuditFixture(t)
	_, err := svc.CloseSession(context.Background(), "does-not-exist", adminOp)
	require.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestSummaryCountsAndFilters(t *testing.T) {
	svc, _ := newAuditFixture(t)
	ctx := context.Background()

	session, err := svc.OpenSession(ctx, adminOp)
	require.NoError(t, err)
	require.NoError(t, svc.Mark(ctx, session.SessionID, "S1", true, staffOp))
	require.NoError(t, svc.Mark(ctx, session.SessionID, "S3", true, staffOp))

	summary, err := svc.Summary(ctx, session.SessionID, dto.SummaryFilter{})
	require.NoError(t, err)
	require.Equal(t, 3, summary.Total)
	require.Equal(t, 2, summary.Audited)
	require.Equal(t, 1, summary.Pending)
	require.InDelta(t, 66.7, summary.Percent, 0.1)

	byGrade, err := svc.Summary(ctx, session.SessionID, dto.SummaryFilter{Grade: "10"})
	require.NoError(t, err)
	require.Equal(t, 2, byGrade.Total)
	require.Equal(t, 2, byGrade.Audited)
	require.InDelta(t, 100.0, byGrade.Percent, 0.01)

	byAdvisor, err := svc.Summary(ctx, session.SessionID, dto.SummaryFilter{Advisor: "T. Jones"})
	require.NoError(t, err)
	require.Equal(t, 2, byAdvisor.Total)
	require.Equal(t, 1, byAdvisor.Audited)

	_, err = svc.Summary(ctx, "missing", dto.SummaryFilter{})
	require.True(t, apperr.IsKind(err, apperr.KindNotFound))
}
