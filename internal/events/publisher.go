package events

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Subjects for the advisory event stream consumed by live dashboards.
const (
	SubjectCheckIn   = "devtrack.checkin"
	SubjectAuditMark = "devtrack.audit.mark"
)

// CheckInEvent is published after a successful device check-in.
type CheckInEvent struct {
	AssetID        string    `json:"asset_id"`
	Tag            string    `json:"tag"`
	StudentID      string    `json:"student_id,omitempty"`
	StudentUpdated bool      `json:"student_updated"`
	Operator       string    `json:"operator"`
	At             time.Time `json:"at"`
}

// AuditMarkEvent is published after a mark commits.
type AuditMarkEvent struct {
	SessionID string    `json:"session_id"`
	StudentID string    `json:"student_id"`
	Audited   bool      `json:"audited"`
	Auditor   string    `json:"auditor"`
	At        time.Time `json:"at"`
}

// Publisher fans events out over NATS. Events are advisory: publish
// failures are logged and swallowed, the ledger and tracker remain the
// source of truth. A nil connection turns every publish into a no-op.
type Publisher struct {
	conn   *nats.Conn
	logger zerolog.Logger
}

// NewPublisher constructs an event publisher; conn may be nil.
func NewPublisher(conn *nats.Conn, logger zerolog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger.With().Str("component", "event_publisher").Logger(),
	}
}

// CheckIn publishes a check-in event.
func (p *Publisher) CheckIn(event CheckInEvent) {
	p.publish(SubjectCheckIn, event)
}

// AuditMark publishes an audit mark event.
func (p *Publisher) AuditMark(event AuditMarkEvent) {
	p.publish(SubjectAuditMark, event)
}

func (p *Publisher) publish(subject string, event interface{}) {
	if p.conn == nil {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error().Err(err).Str("subject", subject).Msg("event encode failed")
		return
	}
	if err := p.conn.Publish(subject, payload); err != nil {
		p.logger.Warn().Err(err).Str("subject", subject).Msg("event publish failed")
	}
}
