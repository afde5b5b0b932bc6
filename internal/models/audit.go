package models

import "time"

// Audit session lifecycle states.
const (
	AuditSessionActive = "active"
	AuditSessionClosed = "closed"
)

// AuditSession is one bounded device-possession audit. Sessions are never
// deleted; closing one is terminal and freezes its marks.
//
// The partial unique index on Status lets the database itself reject a
// second concurrent active session, not just the pre-check in the service.
type AuditSession struct {
	SessionID string     `gorm:"primaryKey;size:36" json:"session_id"`
	CreatedBy string     `gorm:"size:128;not null" json:"created_by"`
	Status    string     `gorm:"size:16;not null;index;uniqueIndex:idx_audit_sessions_single_active,where:status = 'active'" json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	ClosedAt  *time.Time `json:"closed_at"`
	ClosedBy  *string    `gorm:"size:128" json:"closed_by"`
}

// IsActive reports whether the session still accepts marks.
func (s AuditSession) IsActive() bool {
	return s.Status == AuditSessionActive
}

// AuditMark is one student's row inside a session's roster snapshot.
// Rows are created when the session opens and toggled while it is active.
type AuditMark struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	SessionID      string     `gorm:"size:36;not null;uniqueIndex:idx_session_student" json:"session_id"`
	StudentID      string     `gorm:"size:64;not null;uniqueIndex:idx_session_student" json:"student_id"`
	StudentName    string     `gorm:"size:255" json:"student_name"`
	Grade          string     `gorm:"size:16;index" json:"grade"`
	Advisor        string     `gorm:"size:255;index" json:"advisor"`
	Audited        bool       `gorm:"not null;default:false" json:"audited"`
	AuditTimestamp *time.Time `json:"audit_timestamp"`
	AuditorName    *string    `gorm:"size:128" json:"auditor_name"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
