// Package postgres implements store.RunStore on PostgreSQL.
//
// The schema lives in migrations/*.sql, embedded in the binary and applied in
// filename order by RunMigrations. Applied files are tracked in
// schema_migrations, so the call is safe on every startup.
package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/warp/hours-engine/allocation"
	"github.com/warp/hours-engine/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const uniqueViolation = "23505"

// DB provides run persistence using PostgreSQL
type DB struct {
	pool *pgxpool.Pool
}

var _ store.RunStore = (*DB)(nil)

// NewDB creates a new PostgreSQL database connection
func NewDB(ctx context.Context, connString string) (*DB, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.pool.Close()
	return nil
}

// RunMigrations executes all pending SQL migration files in order.
// It tracks which migrations have been applied in a schema_migrations table.
func (db *DB) RunMigrations(ctx context.Context) error {
	// Create migrations tracking table if it doesn't exist
	_, err := db.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	// Get list of already applied migrations
	rows, err := db.pool.Query(ctx, `SELECT filename FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("failed to query applied migrations: %w", err)
	}
	applied := make(map[string]bool)
	for rows.Next() {
		var filename string
		if err := rows.Scan(&filename); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration filename: %w", err)
		}
		applied[filename] = true
	}
	rows.Close()

	// Read and sort migration files
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var sqlFiles []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			sqlFiles = append(sqlFiles, entry.Name())
		}
	}
	sort.Strings(sqlFiles)

	// Execute pending migrations
	for _, filename := range sqlFiles {
		if applied[filename] {
			continue
		}

		content, err := fs.ReadFile(migrationsFS, "migrations/"+filename)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", filename, err)
		}

		// Run migration in a transaction
		tx, err := db.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction for %s: %w", filename, err)
		}

		_, err = tx.Exec(ctx, string(content))
		if err != nil {
			tx.Rollback(ctx)
			return fmt.Errorf("failed to execute migration %s: %w", filename, err)
		}

		_, err = tx.Exec(ctx, `INSERT INTO schema_migrations (filename) VALUES ($1)`, filename)
		if err != nil {
			tx.Rollback(ctx)
			return fmt.Errorf("failed to record migration %s: %w", filename, err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit migration %s: %w", filename, err)
		}
	}

	return nil
}

// Reset deletes every run. Intended for tests and development databases.
func (db *DB) Reset(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, `TRUNCATE runs CASCADE`)
	return err
}

// SaveRun inserts a run with its rows in one transaction
func (db *DB) SaveRun(ctx context.Context, run *store.Run) error {
	id, err := uuid.Parse(run.ID)
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", run.ID, err)
	}
	leftovers, err := json.Marshal(nonNil(run.Leftovers))
	if err != nil {
		return fmt.Errorf("failed to encode leftovers: %w", err)
	}
	splits, err := json.Marshal(nonNil(run.SupervisorSplits))
	if err != nil {
		return fmt.Errorf("failed to encode supervisor splits: %w", err)
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO runs (id, label, year, month, consume_all, networks, medical_budget,
		                  leftovers, supervisor_splits, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::text::numeric, $8::text::jsonb, $9::text::jsonb, $10)
	`, id.String(), run.Label, run.Year, run.Month, run.ConsumeAll, nonNil(run.Networks),
		run.MedicalBudget.String(), string(leftovers), string(splits), run.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return store.ErrDuplicateRun
		}
		return fmt.Errorf("failed to insert run: %w", err)
	}

	batch := &pgx.Batch{}
	for i, row := range run.Allocations {
		batch.Queue(`
			INSERT INTO allocation_rows (run_id, seq, name, network, role, hours, cost_hour, amount)
			VALUES ($1, $2, $3, $4, $5, $6, $7::text::numeric, $8::text::numeric)
		`, id.String(), i, row.Name, row.Network, string(row.Role), row.Hours,
			row.CostHour.String(), row.Amount.String())
	}
	for i, cell := range run.Summary {
		batch.Queue(`
			INSERT INTO demand_summaries (run_id, seq, role, network, demand, allocated, diff, ok)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, id.String(), i, string(cell.Role), cell.Network, cell.Demand, cell.Allocated, cell.Diff, cell.OK)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert run rows: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetRun loads a run with its rows and summary
func (db *DB) GetRun(ctx context.Context, id string) (*store.Run, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, store.ErrRunNotFound
	}

	var run store.Run
	var budget, leftovers, splits string
	err := db.pool.QueryRow(ctx, `
		SELECT id::text, label, year, month, consume_all, networks, medical_budget::text,
		       leftovers::text, supervisor_splits::text, created_at
		FROM runs WHERE id = $1
	`, id).Scan(&run.ID, &run.Label, &run.Year, &run.Month, &run.ConsumeAll, &run.Networks,
		&budget, &leftovers, &splits, &run.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	run.CreatedAt = run.CreatedAt.UTC()
	run.MedicalBudget = parseDecimal(budget)
	if err := json.Unmarshal([]byte(leftovers), &run.Leftovers); err != nil {
		return nil, fmt.Errorf("failed to decode leftovers: %w", err)
	}
	if err := json.Unmarshal([]byte(splits), &run.SupervisorSplits); err != nil {
		return nil, fmt.Errorf("failed to decode supervisor splits: %w", err)
	}

	if run.Allocations, err = db.loadRows(ctx, id); err != nil {
		return nil, err
	}
	if run.Summary, err = db.loadSummary(ctx, id); err != nil {
		return nil, err
	}
	return &run, nil
}

func (db *DB) loadRows(ctx context.Context, id string) ([]allocation.AllocationRow, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT name, network, role, hours, cost_hour::text, amount::text
		FROM allocation_rows WHERE run_id = $1 ORDER BY seq
	`, id)
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
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating allocation rows: %w", err)
	}
	return out, nil
}

func (db *DB) loadSummary(ctx context.Context, id string) ([]allocation.DemandSummary, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT role, network, demand, allocated, diff, ok
		FROM demand_summaries WHERE run_id = $1 ORDER BY seq
	`, id)
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
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating summary: %w", err)
	}
	return out, nil
}

// ListRuns returns run summaries, newest first
func (db *DB) ListRuns(ctx context.Context) ([]store.RunSummary, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT r.id::text, r.label, r.year, r.month, r.consume_all, r.created_at,
		       COUNT(a.seq), COALESCE(SUM(a.hours), 0), COALESCE(SUM(a.amount), 0)::text,
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
		var s store.RunSummary
		var amount string
		if err := rows.Scan(&s.ID, &s.Label, &s.Year, &s.Month, &s.ConsumeAll, &s.CreatedAt,
			&s.Rows, &s.TotalHours, &amount, &s.Balanced); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		s.CreatedAt = s.CreatedAt.UTC()
		s.TotalAmount = parseDecimal(amount)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return out, nil
}

// DeleteRun removes a run; rows go with it through ON DELETE CASCADE
func (db *DB) DeleteRun(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return store.ErrRunNotFound
	}
	tag, err := db.pool.Exec(ctx, `DELETE FROM runs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrRunNotFound
	}
	return nil
}

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
