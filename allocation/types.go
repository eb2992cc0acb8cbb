/*
Package allocation provides the hours-allocation engine.

PURPOSE:
  Distributes the ordinary, overtime and on-call hours of a pool of workers
  across a fixed set of networks and roles so that each network's monthly
  demand per role is covered as closely as possible. Produces an append-only
  ledger of assignments and a reconciliation of demand against allocation.

KEY CONCEPTS IN THIS FILE (types.go):
  - Role / RoleConfig / RoleTable: the static per-role demand policy
  - WorkerInput: one normalized worker record supplied by the caller
  - AllocationRow: one emitted unit of work (ledger entry)
  - DemandSummary: one reconciled (role, network) cell
  - Leftover / SupervisorSplit: hours the run could not place exactly

DESIGN PRINCIPLES:
  1. Determinism: same input, same output. Every iteration follows the role
     table order and the network list order, never map order.
  2. Run isolation: a DemandMap and a Ledger belong to exactly one run.
  3. Read-only policy: RoleTable values are never mutated after construction.
  4. Precision: hours are multiples of RoundingStep; money uses decimal.Decimal.

SEE ALSO:
  - demand.go: demand sizing from the role table and the period
  - allocator.go: the chunked allocator and network selection
  - engine.go: the orchestrating run
  - reconcile.go: the reconciliation summary
*/
package allocation

import (
	"fmt"
	"slices"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ROLES
// =============================================================================

// Role identifies a role category (e.g. "OG", "DIRETTORE").
type Role string

// Roles with special handling in the engine.
const (
	RoleGeneric    Role = "OG"           // base operator
	RoleMediator   Role = "MEDIATORE"    // mediator, implies the base operator
	RoleSocial     Role = "OS"           // social operator
	RoleSupervisor Role = "DIRETTORE"    // split evenly, never chunked
	RoleMedical    Role = "MEDICO"       // covered by the medical post-pass
	RoleOnCall     Role = "REPERIBILITA" // on-call pool
)

// DemandKind tells how a role's rate is expanded over a period.
type DemandKind string

const (
	DemandPerDay  DemandKind = "per_day"
	DemandPerWeek DemandKind = "per_week"
	DemandFixed   DemandKind = "fixed"
)

// DefaultChunk is used when a role has no chunk size configured.
const DefaultChunk = 7.5

// RoleConfig is the demand policy of a single role.
type RoleConfig struct {
	ID       Role
	Kind     DemandKind
	Rate     float64
	Chunk    float64
	Fallback Role // optional, empty when none
}

// ChunkSize returns the allocation chunk, falling back to DefaultChunk.
func (c RoleConfig) ChunkSize() float64 {
	if c.Chunk <= 0 {
		return DefaultChunk
	}
	return c.Chunk
}

// RoleTable is an immutable, ordered set of role policies.
// The zero value is an empty table.
type RoleTable struct {
	order []Role
	byID  map[Role]RoleConfig
}

// NewRoleTable builds a table preserving the given order.
func NewRoleTable(configs ...RoleConfig) (RoleTable, error) {
	t := RoleTable{byID: make(map[Role]RoleConfig, len(configs))}
	for _, c := range configs {
		if c.ID == "" {
			return RoleTable{}, fmt.Errorf("%w: empty role id", ErrInvalidRole)
		}
		if _, dup := t.byID[c.ID]; dup {
			return RoleTable{}, fmt.Errorf("%w: duplicate role %s", ErrInvalidRole, c.ID)
		}
		switch c.Kind {
		case DemandPerDay, DemandPerWeek, DemandFixed:
		default:
			return RoleTable{}, fmt.Errorf("%w: role %s has unknown demand kind %q", ErrInvalidRole, c.ID, c.Kind)
		}
		if c.Rate < 0 || c.Chunk < 0 {
			return RoleTable{}, fmt.Errorf("%w: role %s has a negative rate or chunk", ErrInvalidRole, c.ID)
		}
		t.order = append(t.order, c.ID)
		t.byID[c.ID] = c
	}
	for _, c := range configs {
		if c.Fallback == "" {
			continue
		}
		if _, ok := t.byID[c.Fallback]; !ok {
			return RoleTable{}, fmt.Errorf("%w: role %s falls back to unknown role %s", ErrInvalidRole, c.ID, c.Fallback)
		}
	}
	return t, nil
}

// DefaultRoleTable returns the standard cooperative policy.
func DefaultRoleTable() RoleTable {
	t, err := NewRoleTable(
		RoleConfig{ID: RoleGeneric, Kind: DemandPerDay, Rate: 12, Chunk: 7.5},
		RoleConfig{ID: RoleMediator, Kind: DemandPerWeek, Rate: 20, Chunk: 7.5, Fallback: RoleGeneric},
		RoleConfig{ID: RoleSocial, Kind: DemandPerWeek, Rate: 28, Chunk: 7.5, Fallback: RoleGeneric},
		RoleConfig{ID: RoleSupervisor, Kind: DemandPerWeek, Rate: 8, Chunk: 8},
		RoleConfig{ID: RoleMedical, Kind: DemandPerDay, Rate: 3, Chunk: 8},
		RoleConfig{ID: RoleOnCall, Kind: DemandPerDay, Rate: 8, Chunk: 8},
	)
	if err != nil {
		panic(err)
	}
	return t
}

// Get returns the policy of a role.
func (t RoleTable) Get(id Role) (RoleConfig, bool) {
	c, ok := t.byID[id]
	return c, ok
}

// Has reports whether the role is part of the table.
func (t RoleTable) Has(id Role) bool {
	_, ok := t.byID[id]
	return ok
}

// Roles returns role ids in table order.
func (t RoleTable) Roles() []Role {
	return append([]Role(nil), t.order...)
}

// Configs returns the policies in table order.
func (t RoleTable) Configs() []RoleConfig {
	out := make([]RoleConfig, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.byID[id])
	}
	return out
}

func (t RoleTable) Len() int { return len(t.order) }

// =============================================================================
// INPUT
// =============================================================================

// WorkerInput is one normalized worker record.
type WorkerInput struct {
	Name          string          `json:"name"`
	OrdinaryHours float64         `json:"ordinary_hours"`
	OvertimeHours float64         `json:"overtime_hours"`
	OnCallHours   float64         `json:"on_call_hours"`
	CostHour      decimal.Decimal `json:"cost_hour"`
	Roles         []Role          `json:"roles"`
	FlatRateTotal decimal.Decimal `json:"flat_rate_total"`
}

// DayHours is the ordinary plus overtime pool.
func (w WorkerInput) DayHours() float64 {
	return w.OrdinaryHours + w.OvertimeHours
}

// HasRole reports whether the worker declared the role.
func (w WorkerInput) HasRole(r Role) bool {
	return slices.Contains(w.Roles, r)
}

// RunInput is everything a single allocation run needs.
type RunInput struct {
	Networks      []string
	Year          int
	Month         int
	Workers       []WorkerInput
	ConsumeAll    bool
	MedicalBudget decimal.Decimal
}

// =============================================================================
// OUTPUT
// =============================================================================

// AllocationRow is one unit of assigned work. Never mutated after creation.
type AllocationRow struct {
	Name     string          `json:"name"`
	Network  string          `json:"network"`
	Role     Role            `json:"role"`
	Hours    float64         `json:"hours"`
	CostHour decimal.Decimal `json:"cost_hour"`
	Amount   decimal.Decimal `json:"amount"`
}

func newRow(name, network string, role Role, hours float64, costHour decimal.Decimal) AllocationRow {
	return AllocationRow{
		Name:     name,
		Network:  network,
		Role:     role,
		Hours:    hours,
		CostHour: costHour,
		Amount:   decimal.NewFromFloat(hours).Mul(costHour),
	}
}

// DemandSummary reconciles one (role, network) cell.
type DemandSummary struct {
	Role      Role    `json:"role"`
	Network   string  `json:"network"`
	Demand    float64 `json:"demand"`
	Allocated float64 `json:"allocated"`
	Diff      float64 `json:"diff"`
	OK        bool    `json:"ok"`
}

// Pool names the hour pool a leftover came from.
type Pool string

const (
	PoolDay    Pool = "day"
	PoolOnCall Pool = "on_call"
)

// Leftover records hours a worker brought that no network received.
type Leftover struct {
	Name  string  `json:"name"`
	Pool  Pool    `json:"pool"`
	Hours float64 `json:"hours"`
}

// SupervisorSplit records the even split of a supervisor's hours.
// Delta is AllocatedHours - DeclaredHours; rounding up makes it positive,
// an empty network list makes it negative.
type SupervisorSplit struct {
	Name           string  `json:"name"`
	DeclaredHours  float64 `json:"declared_hours"`
	PerNetwork     float64 `json:"per_network"`
	AllocatedHours float64 `json:"allocated_hours"`
	Delta          float64 `json:"delta"`
}

// PivotCell is the ledger total for one (network, role).
type PivotCell struct {
	Network string  `json:"network"`
	Role    Role    `json:"role"`
	Hours   float64 `json:"hours"`
}

// Result is the output of Engine.Run.
type Result struct {
	Period           Period
	Networks         []string
	ConsumeAll       bool
	Allocations      []AllocationRow
	Summary          []DemandSummary
	Leftovers        []Leftover
	SupervisorSplits []SupervisorSplit
}

// Balanced reports whether every summary cell is within tolerance.
func (r *Result) Balanced() bool {
	for _, s := range r.Summary {
		if !s.OK {
			return false
		}
	}
	return true
}

// TotalAmount sums the amount of every allocation row.
func (r *Result) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, row := range r.Allocations {
		total = total.Add(row.Amount)
	}
	return total
}

// Pivot groups ledger hours by (network, role).
func (r *Result) Pivot() []PivotCell {
	return Pivot(r.Allocations)
}
