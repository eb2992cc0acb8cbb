// Package storetest holds the behavior every store.RunStore must show.
// Each implementation's tests call Run with a constructor for an empty store.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/hours-engine/allocation"
	"github.com/warp/hours-engine/store"
)

// SampleRun builds a run from a real engine result: rows, summary cells,
// a supervisor split, leftovers and medical rows are all present.
func SampleRun(t *testing.T, label string) *store.Run {
	t.Helper()

	cfg := allocation.DefaultEngineConfig()
	cfg.MedicalWorker = "Medico Convenzionato"
	budget := decimal.NewFromInt(1680)

	res, err := allocation.NewEngine(cfg, nil).Run(allocation.RunInput{
		Networks: []string{"N1", "N2"},
		Year:     2025,
		Month:    2,
		Workers: []allocation.WorkerInput{
			{Name: "Anna Neri", OrdinaryHours: 30, CostHour: decimal.RequireFromString("19.35"), Roles: []allocation.Role{allocation.RoleGeneric}},
			{Name: "Dir", OrdinaryHours: 9, CostHour: decimal.NewFromInt(25), Roles: []allocation.Role{allocation.RoleSupervisor}},
			{Name: "Extra", OrdinaryHours: 4, Roles: []allocation.Role{"PULIZIE"}},
		},
		MedicalBudget: budget,
	})
	require.NoError(t, err)
	return store.NewRun(res, budget, label)
}

// Run exercises a RunStore implementation.
func Run(t *testing.T, newStore func(t *testing.T) store.RunStore) {
	ctx := context.Background()

	t.Run("save and get", func(t *testing.T) {
		// GIVEN: a saved run
		s := newStore(t)
		run := SampleRun(t, "february")
		require.NoError(t, s.SaveRun(ctx, run))

		// WHEN: it is loaded back
		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)

		// THEN: every field survives, rows in emission order
		assert.Equal(t, run.ID, got.ID)
		assert.Equal(t, "february", got.Label)
		assert.True(t, run.CreatedAt.Equal(got.CreatedAt))
		assert.Equal(t, 2025, got.Year)
		assert.Equal(t, 2, got.Month)
		assert.Equal(t, run.ConsumeAll, got.ConsumeAll)
		assert.Equal(t, run.Networks, got.Networks)
		assert.True(t, run.MedicalBudget.Equal(got.MedicalBudget))
		AssertSameRows(t, run.Allocations, got.Allocations)
		assert.Equal(t, run.Summary, got.Summary)
		assert.Equal(t, run.Leftovers, got.Leftovers)
		assert.Equal(t, run.SupervisorSplits, got.SupervisorSplits)
	})

	t.Run("duplicate id", func(t *testing.T) {
		s := newStore(t)
		run := SampleRun(t, "")
		require.NoError(t, s.SaveRun(ctx, run))

		err := s.SaveRun(ctx, run)
		assert.ErrorIs(t, err, store.ErrDuplicateRun)
	})

	t.Run("missing run", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetRun(ctx, "00000000-0000-0000-0000-000000000000")
		assert.ErrorIs(t, err, store.ErrRunNotFound)
	})

	t.Run("list newest first", func(t *testing.T) {
		// GIVEN: two runs an hour apart
		s := newStore(t)
		older := SampleRun(t, "older")
		newer := SampleRun(t, "newer")
		newer.CreatedAt = older.CreatedAt.Add(time.Hour)
		require.NoError(t, s.SaveRun(ctx, older))
		require.NoError(t, s.SaveRun(ctx, newer))

		// WHEN
		list, err := s.ListRuns(ctx)
		require.NoError(t, err)

		// THEN
		require.Len(t, list, 2)
		assert.Equal(t, newer.ID, list[0].ID)
		assert.Equal(t, older.ID, list[1].ID)

		want := older.Summarize()
		assert.Equal(t, want.Rows, list[1].Rows)
		assert.InDelta(t, want.TotalHours, list[1].TotalHours, 1e-9)
		assert.True(t, want.TotalAmount.Equal(list[1].TotalAmount), "want %s got %s", want.TotalAmount, list[1].TotalAmount)
		assert.Equal(t, want.Balanced, list[1].Balanced)
		assert.Equal(t, "older", list[1].Label)
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		run := SampleRun(t, "")
		require.NoError(t, s.SaveRun(ctx, run))

		require.NoError(t, s.DeleteRun(ctx, run.ID))

		_, err := s.GetRun(ctx, run.ID)
		assert.ErrorIs(t, err, store.ErrRunNotFound)
		assert.ErrorIs(t, s.DeleteRun(ctx, run.ID), store.ErrRunNotFound)

		list, err := s.ListRuns(ctx)
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}

// AssertSameRows compares ledger rows, money by value rather than representation.
func AssertSameRows(t *testing.T, want, got []allocation.AllocationRow) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Name, got[i].Name, "row %d", i)
		assert.Equal(t, want[i].Network, got[i].Network, "row %d", i)
		assert.Equal(t, want[i].Role, got[i].Role, "row %d", i)
		assert.Equal(t, want[i].Hours, got[i].Hours, "row %d", i)
		assert.True(t, want[i].CostHour.Equal(got[i].CostHour), "row %d cost", i)
		assert.True(t, want[i].Amount.Equal(got[i].Amount), "row %d amount", i)
	}
}
