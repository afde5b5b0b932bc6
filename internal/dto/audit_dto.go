package dto

import "time"

// MarkRequest toggles one student's audited flag within a session.
type MarkRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	Audited   bool   `json:"audited"`
}

// SessionResponse describes an audit session's lifecycle state.
type SessionResponse struct {
	SessionID string     `json:"session_id"`
	CreatedBy string     `json:"created_by"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	ClosedBy  *string    `json:"closed_by,omitempty"`
}

// SummaryFilter narrows a session summary to a grade and/or advisor.
type SummaryFilter struct {
	Grade   string `json:"grade"`
	Advisor string `json:"advisor"`
}

// MarkRow is one student line in a session summary.
type MarkRow struct {
	StudentID      string     `json:"student_id"`
	StudentName    string     `json:"student_name"`
	Grade          string     `json:"grade"`
	Advisor        string     `json:"advisor"`
	Audited        bool       `json:"audited"`
	AuditTimestamp *time.Time `json:"audit_timestamp,omitempty"`
	AuditorName    *string    `json:"auditor_name,omitempty"`
}

// SessionSummary aggregates audit progress over a filtered view.
type SessionSummary struct {
	SessionID string    `json:"session_id"`
	Status    string    `json:"status"`
	Total     int       `json:"total"`
	Audited   int       `json:"audited"`
	Pending   int       `json:"pending"`
	Percent   float64   `json:"percent"`
	Marks     []MarkRow `json:"marks"`
}
