package allocation

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// CHUNKED ALLOCATOR - Greedy placement of one worker's hours for one role
// =============================================================================

// Placement selects how the allocator picks the next network.
type Placement int

const (
	// PlaceRoundRobin visits networks in list order from the rotation index,
	// ignoring remaining demand. Every hour is placed.
	PlaceRoundRobin Placement = iota

	// PlaceDeficitFirst always picks the network with the largest remaining
	// demand, stops once demand is exhausted and never overfills a cell.
	PlaceDeficitFirst
)

// PlacementFor maps the run's consume-all flag to a placement.
func PlacementFor(consumeAll bool) Placement {
	if consumeAll {
		return PlaceRoundRobin
	}
	return PlaceDeficitFirst
}

// ChunkRequest asks the allocator to place Hours of Role for a worker.
type ChunkRequest struct {
	Name      string
	Role      Role
	Hours     float64
	CostHour  decimal.Decimal
	Placement Placement
}

// ChunkAllocator places hours against a run's DemandMap, writing to its Ledger.
type ChunkAllocator struct {
	roles    RoleTable
	networks []string
	demand   *DemandMap
	ledger   *Ledger
}

func NewChunkAllocator(roles RoleTable, networks []string, demand *DemandMap, ledger *Ledger) *ChunkAllocator {
	return &ChunkAllocator{roles: roles, networks: networks, demand: demand, ledger: ledger}
}

// Allocate places the request and returns the hours it could not place.
//
// Each step assigns min(chunk, hours); a final fragment smaller than the
// chunk is rounded up to RoundingStep. Under PlaceDeficitFirst the step is
// also capped at the cell's remaining demand. Roles without a demand bucket
// are skipped and their hours returned untouched. A remainder below the
// rounding tolerance counts as placed.
func (a *ChunkAllocator) Allocate(req ChunkRequest) float64 {
	if req.Hours <= 0 || !a.demand.Has(req.Role) {
		return max(req.Hours, 0)
	}

	chunk := DefaultChunk
	if cfg, ok := a.roles.Get(req.Role); ok {
		chunk = cfg.ChunkSize()
	}
	strict := req.Placement == PlaceDeficitFirst

	hours := req.Hours
	for rotation := 0; hours > roundingEpsilon; rotation++ {
		network, ok := a.pick(req.Role, rotation, req.Placement)
		if !ok {
			break
		}
		remaining := a.demand.Remaining(req.Role, network)
		if strict && remaining <= 0 {
			break
		}

		assign := min(chunk, hours)
		if assign < chunk {
			assign = RoundUpStep(assign, RoundingStep)
		}
		if strict && assign > remaining {
			assign = remaining
		}
		if assign <= 0 {
			break
		}

		a.ledger.Append(newRow(req.Name, network, req.Role, assign, req.CostHour))
		a.demand.Decrement(req.Role, network, assign)
		hours -= assign
	}
	if hours <= roundingEpsilon {
		return 0
	}
	return hours
}

func (a *ChunkAllocator) pick(role Role, rotation int, placement Placement) (string, bool) {
	if len(a.networks) == 0 {
		return "", false
	}
	if placement == PlaceRoundRobin {
		return a.networks[rotation%len(a.networks)], true
	}
	return a.demand.Largest(role)
}
