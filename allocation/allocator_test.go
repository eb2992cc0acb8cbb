package allocation_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/hours-engine/allocation"
)

type placed struct {
	Network string
	Hours   float64
}

func placements(rows []allocation.AllocationRow) []placed {
	out := make([]placed, 0, len(rows))
	for _, r := range rows {
		out = append(out, placed{r.Network, r.Hours})
	}
	return out
}

func newAllocator(t *testing.T, roles allocation.RoleTable, networks []string, year, month int) (*allocation.ChunkAllocator, *allocation.DemandMap, *allocation.Ledger) {
	t.Helper()
	demand := allocation.ComputeDemand(roles, networks, mustPeriod(t, year, month))
	ledger := allocation.NewLedger()
	return allocation.NewChunkAllocator(roles, networks, demand, ledger), demand, ledger
}

func TestChunkAllocator_RoundRobinAlternatesNetworks(t *testing.T) {
	// GIVEN: 15h of OG in consume-all mode over two networks
	a, _, ledger := newAllocator(t, allocation.DefaultRoleTable(), []string{"N1", "N2"}, 2025, 12)

	// WHEN
	rest := a.Allocate(allocation.ChunkRequest{
		Name: "W", Role: allocation.RoleGeneric, Hours: 15,
		CostHour: decimal.NewFromInt(20), Placement: allocation.PlaceRoundRobin,
	})

	// THEN: one 7.5h chunk per network
	assert.Equal(t, 0.0, rest)
	assert.Equal(t, []placed{{"N1", 7.5}, {"N2", 7.5}}, placements(ledger.Rows()))
	assert.True(t, ledger.Rows()[0].Amount.Equal(decimal.NewFromInt(150)))
}

func TestChunkAllocator_RoundRobinRoundsFinalFragmentUp(t *testing.T) {
	a, _, ledger := newAllocator(t, allocation.DefaultRoleTable(), []string{"N1", "N2"}, 2025, 12)

	rest := a.Allocate(allocation.ChunkRequest{
		Name: "W", Role: allocation.RoleGeneric, Hours: 9.2, Placement: allocation.PlaceRoundRobin,
	})

	assert.Equal(t, 0.0, rest)
	assert.Equal(t, []placed{{"N1", 7.5}, {"N2", 2.0}}, placements(ledger.Rows()))
}

func TestChunkAllocator_RoundRobinIgnoresDemand(t *testing.T) {
	// GIVEN: a fixed demand of 10h per network, and 40h to place
	roles, err := allocation.NewRoleTable(allocation.RoleConfig{ID: "X", Kind: allocation.DemandFixed, Rate: 10, Chunk: 4})
	require.NoError(t, err)
	a, demand, ledger := newAllocator(t, roles, []string{"A", "B"}, 2025, 1)

	rest := a.Allocate(allocation.ChunkRequest{Name: "W", Role: "X", Hours: 40, Placement: allocation.PlaceRoundRobin})

	// THEN: every hour is placed even past demand; demand clamps at zero
	assert.Equal(t, 0.0, rest)
	assert.Equal(t, 20.0, ledger.Allocated("X", "A"))
	assert.Equal(t, 20.0, ledger.Allocated("X", "B"))
	assert.Equal(t, 0.0, demand.Remaining("X", "A"))
}

func TestChunkAllocator_DeficitFirstStopsAtDemand(t *testing.T) {
	// GIVEN: fixed 10h per network, chunk 4, and a worker bringing 30h
	roles, err := allocation.NewRoleTable(allocation.RoleConfig{ID: "X", Kind: allocation.DemandFixed, Rate: 10, Chunk: 4})
	require.NoError(t, err)
	a, demand, ledger := newAllocator(t, roles, []string{"A", "B"}, 2025, 1)

	// WHEN
	rest := a.Allocate(allocation.ChunkRequest{Name: "W", Role: "X", Hours: 30, Placement: allocation.PlaceDeficitFirst})

	// THEN: largest deficit first, ties to the first network, capped at the cell
	assert.Equal(t, []placed{{"A", 4}, {"B", 4}, {"A", 4}, {"B", 4}, {"A", 2}, {"B", 2}}, placements(ledger.Rows()))
	assert.Equal(t, 10.0, rest)
	assert.Equal(t, 0.0, demand.Total("X"))
}

func TestChunkAllocator_SubToleranceRemainderTerminates(t *testing.T) {
	// GIVEN: one chunk plus a remainder far below the rounding step
	for _, p := range []allocation.Placement{allocation.PlaceRoundRobin, allocation.PlaceDeficitFirst} {
		a, _, ledger := newAllocator(t, allocation.DefaultRoleTable(), []string{"N1", "N2"}, 2025, 12)

		// WHEN
		rest := a.Allocate(allocation.ChunkRequest{
			Name: "W", Role: allocation.RoleGeneric, Hours: 7.5 + 1e-10, Placement: p,
		})

		// THEN: the chunk is placed and the remainder counts as placed
		assert.Equal(t, 0.0, rest)
		assert.Equal(t, []placed{{"N1", 7.5}}, placements(ledger.Rows()))
	}
}

func TestChunkAllocator_DeficitFirstNothingToCover(t *testing.T) {
	roles, err := allocation.NewRoleTable(allocation.RoleConfig{ID: "X", Kind: allocation.DemandFixed, Rate: 0})
	require.NoError(t, err)
	a, _, ledger := newAllocator(t, roles, []string{"A"}, 2025, 1)

	rest := a.Allocate(allocation.ChunkRequest{Name: "W", Role: "X", Hours: 12, Placement: allocation.PlaceDeficitFirst})

	assert.Equal(t, 12.0, rest)
	assert.Zero(t, ledger.Len())
}

func TestChunkAllocator_UnknownRoleIsSkipped(t *testing.T) {
	a, _, ledger := newAllocator(t, allocation.DefaultRoleTable(), []string{"N1"}, 2025, 1)

	rest := a.Allocate(allocation.ChunkRequest{Name: "W", Role: "PULIZIE", Hours: 12, Placement: allocation.PlaceRoundRobin})

	assert.Equal(t, 12.0, rest)
	assert.Zero(t, ledger.Len())
}

func TestChunkAllocator_NoNetworks(t *testing.T) {
	for _, p := range []allocation.Placement{allocation.PlaceRoundRobin, allocation.PlaceDeficitFirst} {
		a, _, ledger := newAllocator(t, allocation.DefaultRoleTable(), nil, 2025, 1)

		rest := a.Allocate(allocation.ChunkRequest{Name: "W", Role: allocation.RoleGeneric, Hours: 12, Placement: p})

		assert.Equal(t, 12.0, rest)
		assert.Zero(t, ledger.Len())
	}
}

func TestChunkAllocator_NonPositiveHours(t *testing.T) {
	a, _, ledger := newAllocator(t, allocation.DefaultRoleTable(), []string{"N1"}, 2025, 1)

	assert.Equal(t, 0.0, a.Allocate(allocation.ChunkRequest{Role: allocation.RoleGeneric, Hours: 0}))
	assert.Equal(t, 0.0, a.Allocate(allocation.ChunkRequest{Role: allocation.RoleGeneric, Hours: -3}))
	assert.Zero(t, ledger.Len())
}

func TestPlacementFor(t *testing.T) {
	assert.Equal(t, allocation.PlaceRoundRobin, allocation.PlacementFor(true))
	assert.Equal(t, allocation.PlaceDeficitFirst, allocation.PlacementFor(false))
}
