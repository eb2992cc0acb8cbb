/*
Package sqlite provides a SQLite-backed implementation of store.RunStore.

PURPOSE:
  Default persistence for allocation runs. A run is one row in runs plus its
  ledger rows and reconciliation cells in child tables.

WRITE-ONCE RUNS:
  - SaveRun inserts a run and all of its rows in one transaction
  - No UPDATE statements exist; a corrected payroll is a new run
  - DeleteRun removes a run and its children in one transaction

KEY TABLES:
  runs:              One row per run (period, mode, networks, budget)
  allocation_rows:   Ledger rows, seq preserves emission order
  demand_summaries:  Reconciliation cells, seq preserves engine order

MONEY:
  cost_hour, amount and medical_budget are stored as decimal strings, never
  as REAL, so amounts round-trip exactly.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In-memory databases are pinned to a
  single connection, since every new connection would open an empty database.

USAGE:
  store, err := sqlite.New("./data/hours.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  err = store.SaveRun(ctx, store.NewRun(result, budget, "march payroll"))

SEE ALSO:
  - store/store.go: RunStore interface
  - store/postgres/postgres.go: PostgreSQL implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/hours-engine/allocation"
	"github.com/warp/hours-engine/store"
)

// Store implements store.RunStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ store.RunStore = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Runs (write-once)
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		label TEXT NOT NULL DEFAULT '',
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		consume_all BOOLEAN NOT NULL,
		networks_json TEXT NOT NULL,
		medical_budget TEXT NOT NULL,
		leftovers_json TEXT NOT NULL,
		supervisor_splits_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created_at
		ON runs(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_runs_period
		ON runs(year, month);

	-- Ledger rows, in emission order
	CREATE TABLE IF NOT EXISTS allocation_rows (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		name TEXT NOT NULL,
		network TEXT NOT NULL,
		role TEXT NOT NULL,
		hours REAL NOT NULL,
		cost_hour TEXT NOT NULL,
		amount TEXT NOT NULL,
		PRIMARY KEY (run_id, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_allocation_rows_name
		ON allocation_rows(run_id, name);

	-- Reconciliation cells
	CREATE TABLE IF NOT EXISTS demand_summaries (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		role TEXT NOT NULL,
		network TEXT NOT NULL,
		demand REAL NOT NULL,
		allocated REAL NOT NULL,
		diff REAL NOT NULL,
		ok BOOLEAN NOT NULL,
		PRIMARY KEY (run_id, seq)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RUN STORE (store.RunStore interface)
// =============================================================================

// SaveRun inserts a run with its rows atomically.
func (s *Store) SaveRun(ctx context.Context, run *store.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	networksJSON, err := json.Marshal(run.Networks)
	if err != nil {
		return fmt.Errorf("failed to encode networks: %w", err)
	}
	leftoversJSON, err := json.Marshal(nonNil(run.Leftovers))
	if err != nil {
		return fmt.Errorf("failed to encode leftovers: %w", err)
	}
	splitsJSON, err := json.Marshal(nonNil(run.SupervisorSplits))
	if err != nil {
		return fmt.Errorf("failed to encode supervisor splits: %w", err)
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	_, err = sqlTx.ExecContext(ctx, `
		INSERT INTO runs
		(id, label, year, month, consume_all, networks_json, medical_budget,
		 leftovers_json, supervisor_splits_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID, run.Label, run.Year, run.Month, run.ConsumeAll,
		string(networksJSON), run.MedicalBudget.String(),
		string(leftoversJSON), string(splitsJSON),
		run.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return store.ErrDuplicateRun
		}
		return fmt.Errorf("failed to insert run: %w", err)
	}

	rowStmt, err := sqlTx.PrepareContext(ctx, `
		INSERT INTO allocation_rows (run_id, seq, name, network, role, hours, cost_hour, amount)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare allocation insert: %w", err)
	}
	defer rowStmt.Close()

	for i, row := range run.Allocations {
		if _, err := rowStmt.ExecContext(ctx, run.ID, i, row.Name, row.Network, string(row.Role),
			row.Hours, row.CostHour.String(), row.Amount.String()); err != nil {
			return fmt.Errorf("failed to insert allocation row %d: %w", i, err)
		}
	}

	summaryStmt, err := sqlTx.PrepareContext(ctx, `
		INSERT INTO demand_summaries (run_id, seq, role, network, demand, allocated, diff, ok)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare summary insert: %w", err)
	}
	defer summaryStmt.Close()

	for i, cell := range run.Summary {
		if _, err := summaryStmt.ExecContext(ctx, run.ID, i, string(cell.Role), cell.Network,
			cell.Demand, cell.Allocated, cell.Diff, cell.OK); err != nil {
			return fmt.Errorf("failed to insert summary cell %d: %w", i, err)
		}
	}

	return sqlTx.Commit()
}

// GetRun loads a run with its rows and summary.
func (s *Store) GetRun(ctx context.Context, id string) (*store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, err := s.scanRun(s.db.QueryRowContext(ctx, `
		SELECT id, label, year, month, consume_all, networks_json, medical_budget,
		       leftovers_json, supervisor_splits_json, created_at
		FROM runs WHERE id = ?
	`, id))
	if err != nil {
		return nil, err
	}

	if run.Allocations, err = s.loadRows(ctx, id); err != nil {
		return nil, err
	}
	if run.Summary, err = s.loadSummary(ctx, id); err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns summaries of every run, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]store.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.label, r.year, r.month, r.consume_all, r.created_at,
		       COUNT(a.seq), COALESCE(SUM(a.hours), 0),
		       NOT EXISTS (SELECT 1 FROM demand_summaries d WHERE d.run_id = r.id AND NOT d.ok)
		FROM runs r
		LEFT JOIN allocation_rows a ON a.run_id = r.id
		GROUP BY r.id
		ORDER BY r.created_at DESC, r.id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []store.RunSummary
	for rows.Next() {
		var sum store.RunSummary
		var createdAt string
		if err := rows.Scan(&sum.ID, &sum.Label, &sum.Year, &sum.Month, &sum.ConsumeAll, &createdAt,
			&sum.Rows, &sum.TotalHours, &sum.Balanced); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		sum.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Amounts are decimal strings; summing them in SQL would go through REAL.
	for i := range out {
		total, err := s.totalAmount(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].TotalAmount = total
	}
	return out, nil
}

// DeleteRun removes a run and its rows.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for _, q := range []string{
		"DELETE FROM allocation_rows WHERE run_id = ?",
		"DELETE FROM demand_summaries WHERE run_id = ?",
	} {
		if _, err := sqlTx.ExecContext(ctx, q, id); err != nil {
			return fmt.Errorf("failed to delete run rows: %w", err)
		}
	}

	res, err := sqlTx.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrRunNotFound
	}

	return sqlTx.Commit()
}

// =============================================================================
// QUERY HELPERS
// =============================================================================

func (s *Store) scanRun(row *sql.Row) (*store.Run, error) {
	var run store.Run
	var networksJSON, budget, leftoversJSON, splitsJSON, createdAt string
	err := row.Scan(&run.ID, &run.Label, &run.Year, &run.Month, &run.ConsumeAll,
		&networksJSON, &budget, &leftoversJSON, &splitsJSON, &createdAt)
	if err == sql.ErrNoRows {
		return nil, store.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}

	if err := json.Unmarshal([]byte(networksJSON), &run.Networks); err != nil {
		return nil, fmt.Errorf("failed to decode networks: %w", err)
	}
	if err := json.Unmarshal([]byte(leftoversJSON), &run.Leftovers); err != nil {
		return nil, fmt.Errorf("failed to decode leftovers: %w", err)
	}
	if err := json.Unmarshal([]byte(splitsJSON), &run.SupervisorSplits); err != nil {
		return nil, fmt.Errorf("failed to decode supervisor splits: %w", err)
	}
	run.MedicalBudget = parseDecimal(budget)
	run.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &run, nil
}

func (s *Store) loadRows(ctx context.Context, runID string) ([]allocation.AllocationRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, network, role, hours, cost_hour, amount
		FROM allocation_rows WHERE run_id = ? ORDER BY seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocation rows: %w", err)
	}
	defer rows.Close()

	var out []allocation.AllocationRow
	for rows.Next() {
		var r allocation.AllocationRow
		var role, cost, amount string
		if err := rows.Scan(&r.Name, &r.Network, &role, &r.Hours, &cost, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan allocation row: %w", err)
		}
		r.Role = allocation.Role(role)
		r.CostHour = parseDecimal(cost)
		r.Amount = parseDecimal(amount)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) loadSummary(ctx context.Context, runID string) ([]allocation.DemandSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, network, demand, allocated, diff, ok
		FROM demand_summaries WHERE run_id = ? ORDER BY seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query summary: %w", err)
	}
	defer rows.Close()

	var out []allocation.DemandSummary
	for rows.Next() {
		var d allocation.DemandSummary
		var role string
		if err := rows.Scan(&role, &d.Network, &d.Demand, &d.Allocated, &d.Diff, &d.OK); err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		d.Role = allocation.Role(role)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) totalAmount(ctx context.Context, runID string) (decimal.Decimal, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT amount FROM allocation_rows WHERE run_id = ?", runID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query amounts: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var amount string
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, err
		}
		total = total.Add(parseDecimal(amount))
	}
	return total, rows.Err()
}

// Helper functions

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "PRIMARY KEY"))
}
