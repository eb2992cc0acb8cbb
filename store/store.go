/*
Package store persists allocation runs.

PURPOSE:
  A Run is the frozen output of one Engine.Run call plus the inputs needed to
  tell runs apart (period, networks, mode, medical budget). Runs are written
  once and never edited: a corrected payroll means a new run. They can be
  listed, loaded back for export, and deleted.

IMPLEMENTATIONS:
  - store/memory.go:          In-memory, for tests and the "memory" driver
  - store/sqlite/sqlite.go:   SQLite (default)
  - store/postgres/postgres.go: PostgreSQL via pgxpool

ORDERING:
  ListRuns returns newest first. Rows and summary cells of a loaded run come
  back in the order the engine emitted them.

SEE ALSO:
  - allocation/engine.go: produces the Result a Run is built from
  - export/workbook.go: renders a Run as a workbook
*/
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/hours-engine/allocation"
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

var (
	// ErrRunNotFound is returned when no run has the requested id.
	ErrRunNotFound = errors.New("run not found")

	// ErrDuplicateRun is returned when saving a run whose id already exists.
	ErrDuplicateRun = errors.New("run already exists")
)

// =============================================================================
// RECORDS
// =============================================================================

// Run is a persisted allocation run.
type Run struct {
	ID               string                       `json:"id"`
	Label            string                       `json:"label,omitempty"`
	CreatedAt        time.Time                    `json:"created_at"`
	Year             int                          `json:"year"`
	Month            int                          `json:"month"`
	ConsumeAll       bool                         `json:"consume_all"`
	Networks         []string                     `json:"networks"`
	MedicalBudget    decimal.Decimal              `json:"medical_budget"`
	Allocations      []allocation.AllocationRow   `json:"allocations"`
	Summary          []allocation.DemandSummary   `json:"summary"`
	Leftovers        []allocation.Leftover        `json:"leftovers"`
	SupervisorSplits []allocation.SupervisorSplit `json:"supervisor_splits"`
}

// NewRun freezes an engine result into a Run with a fresh id.
func NewRun(res *allocation.Result, medicalBudget decimal.Decimal, label string) *Run {
	return &Run{
		ID:               uuid.NewString(),
		Label:            label,
		CreatedAt:        time.Now().UTC().Truncate(time.Second),
		Year:             res.Period.Year,
		Month:            int(res.Period.Month),
		ConsumeAll:       res.ConsumeAll,
		Networks:         append([]string(nil), res.Networks...),
		MedicalBudget:    medicalBudget,
		Allocations:      res.Allocations,
		Summary:          res.Summary,
		Leftovers:        res.Leftovers,
		SupervisorSplits: res.SupervisorSplits,
	}
}

// Result rebuilds the engine result, e.g. for export.
func (r *Run) Result() *allocation.Result {
	return &allocation.Result{
		Period:           allocation.Period{Year: r.Year, Month: time.Month(r.Month)},
		Networks:         r.Networks,
		ConsumeAll:       r.ConsumeAll,
		Allocations:      r.Allocations,
		Summary:          r.Summary,
		Leftovers:        r.Leftovers,
		SupervisorSplits: r.SupervisorSplits,
	}
}

// RunSummary is the list view of a run.
type RunSummary struct {
	ID          string          `json:"id"`
	Label       string          `json:"label,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	Year        int             `json:"year"`
	Month       int             `json:"month"`
	ConsumeAll  bool            `json:"consume_all"`
	Rows        int             `json:"rows"`
	TotalHours  float64         `json:"total_hours"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Balanced    bool            `json:"balanced"`
}

// Summarize computes the list view.
func (r *Run) Summarize() RunSummary {
	res := r.Result()
	var hours float64
	for _, row := range r.Allocations {
		hours += row.Hours
	}
	return RunSummary{
		ID:          r.ID,
		Label:       r.Label,
		CreatedAt:   r.CreatedAt,
		Year:        r.Year,
		Month:       r.Month,
		ConsumeAll:  r.ConsumeAll,
		Rows:        len(r.Allocations),
		TotalHours:  hours,
		TotalAmount: res.TotalAmount(),
		Balanced:    res.Balanced(),
	}
}

// =============================================================================
// RUN STORE - Interface for run persistence
// =============================================================================

// RunStore persists runs. Implementations are safe for concurrent use.
type RunStore interface {
	// SaveRun persists a run atomically. Returns ErrDuplicateRun if the id exists.
	SaveRun(ctx context.Context, run *Run) error

	// GetRun loads a run with its rows. Returns ErrRunNotFound if missing.
	GetRun(ctx context.Context, id string) (*Run, error)

	// ListRuns returns run summaries, newest first.
	ListRuns(ctx context.Context) ([]RunSummary, error)

	// DeleteRun removes a run and its rows. Returns ErrRunNotFound if missing.
	DeleteRun(ctx context.Context, id string) error

	Close() error
}
