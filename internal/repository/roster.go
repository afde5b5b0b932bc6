package repository

import (
	"context"

	"github.com/campusops/devtrack/internal/models"
)

// RosterProvider supplies the active-student roster used to seed audit
// session snapshots. The ledger-backed default is below; a batch importer
// may substitute its own.
type RosterProvider interface {
	GetActiveStudents(ctx context.Context) ([]models.StudentRecord, error)
}

type ledgerRoster struct {
	students StudentRepository
}

// NewLedgerRoster serves the roster straight from the student ledger.
func NewLedgerRoster(students StudentRepository) RosterProvider {
	return &ledgerRoster{students: students}
}

func (r *ledgerRoster) GetActiveStudents(ctx context.Context) ([]models.StudentRecord, error) {
	return r.students.ListActive(ctx)
}
