/*
engine.go - One allocation run, from demand sizing to reconciliation

PURPOSE:
  Orchestrates a run over one DemandMap and one Ledger:

  1. Size demand for the period (ComputeDemand)
  2. For each worker, in input order:
       a. apply the override table to the declared roles
       b. supervisor: split day hours evenly across networks
       c. other roles in priority order: chunked allocation of day hours
       d. on-call hours: chunked allocation at the flat on-call rate
  3. Fallback: residual on-call demand goes to the fallback identity
  4. Medical post-pass: residual medical demand goes to the medical identity
  5. Reconcile fresh demand against the ledger

CONCURRENCY:
  Engine only holds read-only configuration. Every Run builds its own
  DemandMap and Ledger, so concurrent runs share nothing mutable.

SEE ALSO:
  - allocator.go: chunked allocation and network selection
  - reconcile.go: summary computation
*/
package allocation

import (
	"slices"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultOnCallRate is the flat hourly rate of on-call hours.
var DefaultOnCallRate = decimal.RequireFromString("1.5")

// EngineConfig is the read-only policy of an Engine.
type EngineConfig struct {
	Roles          RoleTable
	Priority       PriorityTable
	Overrides      Overrides
	FallbackWorker string
	MedicalWorker  string
	OnCallRate     decimal.Decimal
}

// DefaultEngineConfig uses the default role and priority tables, no
// overrides and no designated identities.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Roles:      DefaultRoleTable(),
		Priority:   DefaultPriorityTable(),
		Overrides:  Overrides{},
		OnCallRate: DefaultOnCallRate,
	}
}

// Engine runs allocations. Safe for concurrent use.
type Engine struct {
	cfg    EngineConfig
	logger *zap.Logger
}

// NewEngine creates an engine. A nil logger disables logging.
func NewEngine(cfg EngineConfig, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Priority == nil {
		cfg.Priority = DefaultPriorityTable()
	}
	if cfg.Overrides == nil {
		cfg.Overrides = Overrides{}
	}
	return &Engine{cfg: cfg, logger: logger}
}

// Config returns the engine policy.
func (e *Engine) Config() EngineConfig {
	return e.cfg
}

// Run performs one allocation. The only error is an invalid period.
func (e *Engine) Run(in RunInput) (*Result, error) {
	period, err := NewPeriod(in.Year, in.Month)
	if err != nil {
		return nil, err
	}

	networks := uniqueNetworks(in.Networks)
	r := &run{
		cfg:       e.cfg,
		logger:    e.logger.With(zap.String("period", period.String())),
		networks:  networks,
		placement: PlacementFor(in.ConsumeAll),
		demand:    ComputeDemand(e.cfg.Roles, networks, period),
		ledger:    NewLedger(),
	}
	r.allocator = NewChunkAllocator(e.cfg.Roles, networks, r.demand, r.ledger)

	r.logger.Debug("Starting allocation run",
		zap.Int("workers", len(in.Workers)),
		zap.Int("networks", len(networks)),
		zap.Bool("consume_all", in.ConsumeAll))

	for _, w := range in.Workers {
		r.processWorker(w)
	}
	r.resolveFallback()
	r.coverMedical(in.MedicalBudget)

	result := &Result{
		Period:           period,
		Networks:         networks,
		ConsumeAll:       in.ConsumeAll,
		Allocations:      r.ledger.Rows(),
		Summary:          Reconcile(e.cfg.Roles, networks, period, r.demand, r.ledger),
		Leftovers:        r.leftovers,
		SupervisorSplits: r.splits,
	}

	r.logger.Debug("Allocation run finished",
		zap.Int("rows", len(result.Allocations)),
		zap.Int("leftovers", len(result.Leftovers)),
		zap.Bool("balanced", result.Balanced()))
	return result, nil
}

// run is the single owner of a DemandMap and Ledger for one Run call.
type run struct {
	cfg       EngineConfig
	logger    *zap.Logger
	networks  []string
	placement Placement
	demand    *DemandMap
	ledger    *Ledger
	allocator *ChunkAllocator
	leftovers []Leftover
	splits    []SupervisorSplit
}

func (r *run) processWorker(w WorkerInput) {
	name := NormalizeName(w.Name)
	dayHours := w.DayHours()

	roles := w.Roles
	if forced, ok := r.cfg.Overrides.Lookup(name); ok {
		r.logger.Debug("Applying role override",
			zap.String("worker", name),
			zap.Any("declared", w.Roles),
			zap.Any("forced", forced))
		roles = forced
	}

	if slices.Contains(roles, RoleSupervisor) && dayHours > 0 {
		r.splitSupervisor(name, dayHours, w.CostHour)
		dayHours = 0
	}

	for _, role := range r.cfg.Priority.Resolve(roles) {
		if role == RoleSupervisor {
			continue
		}
		dayHours = r.allocator.Allocate(ChunkRequest{
			Name:      name,
			Role:      role,
			Hours:     dayHours,
			CostHour:  w.CostHour,
			Placement: r.placement,
		})
	}
	if dayHours > 0 {
		r.leave(name, PoolDay, dayHours)
	}

	if w.OnCallHours > 0 {
		rest := r.allocator.Allocate(ChunkRequest{
			Name:      name,
			Role:      RoleOnCall,
			Hours:     w.OnCallHours,
			CostHour:  r.cfg.OnCallRate,
			Placement: r.placement,
		})
		if rest > 0 {
			r.leave(name, PoolOnCall, rest)
		}
	}
}

// splitSupervisor spreads hours evenly over every network, never chunked.
func (r *run) splitSupervisor(name string, hours float64, costHour decimal.Decimal) {
	split := SupervisorSplit{Name: name, DeclaredHours: hours}
	if len(r.networks) > 0 {
		split.PerNetwork = RoundUpStep(hours/float64(len(r.networks)), RoundingStep)
		for _, n := range r.networks {
			r.ledger.Append(newRow(name, n, RoleSupervisor, split.PerNetwork, costHour))
			r.demand.Decrement(RoleSupervisor, n, split.PerNetwork)
		}
		split.AllocatedHours = split.PerNetwork * float64(len(r.networks))
	}
	split.Delta = split.AllocatedHours - split.DeclaredHours
	r.splits = append(r.splits, split)

	if split.Delta != 0 {
		r.logger.Debug("Supervisor split differs from declared hours",
			zap.String("worker", name),
			zap.Float64("declared", split.DeclaredHours),
			zap.Float64("allocated", split.AllocatedHours))
	}
}

// resolveFallback assigns the residual on-call demand to the fallback identity.
//
// The request is sized to the exact residual and placed deficit-first, so
// every on-call cell is driven to zero rather than round-robin overshooting
// some networks while others stay short.
func (r *run) resolveFallback() {
	missing := r.demand.Total(RoleOnCall)
	if missing <= 0 {
		return
	}
	if r.cfg.FallbackWorker == "" {
		r.logger.Warn("Residual on-call demand with no fallback worker configured",
			zap.Float64("hours", missing))
		return
	}

	name := NormalizeName(r.cfg.FallbackWorker)
	r.logger.Debug("Assigning residual on-call demand to fallback worker",
		zap.String("worker", name),
		zap.Float64("hours", missing))

	rest := r.allocator.Allocate(ChunkRequest{
		Name:      name,
		Role:      RoleOnCall,
		Hours:     missing,
		CostHour:  r.cfg.OnCallRate,
		Placement: PlaceDeficitFirst,
	})
	if rest > 0 {
		r.leave(name, PoolOnCall, rest)
	}
}

// coverMedical converts the residual medical demand into one blanket row per
// network at budget / residual hours.
func (r *run) coverMedical(budget decimal.Decimal) {
	if !r.demand.Has(RoleMedical) {
		return
	}
	total := r.demand.Total(RoleMedical)
	if r.cfg.MedicalWorker == "" {
		if total > 0 {
			r.logger.Warn("Residual medical demand with no medical worker configured",
				zap.Float64("hours", total))
		}
		return
	}
	costHour := decimal.Zero
	if total > 0 {
		costHour = budget.Div(decimal.NewFromFloat(total))
	}

	name := NormalizeName(r.cfg.MedicalWorker)
	for _, n := range r.networks {
		hours := r.demand.Remaining(RoleMedical, n)
		if hours > 0 {
			r.ledger.Append(newRow(name, n, RoleMedical, hours, costHour))
		}
		r.demand.Zero(RoleMedical, n)
	}
}

func (r *run) leave(name string, pool Pool, hours float64) {
	r.logger.Debug("Hours left unplaced",
		zap.String("worker", name),
		zap.String("pool", string(pool)),
		zap.Float64("hours", hours))
	r.leftovers = append(r.leftovers, Leftover{Name: name, Pool: pool, Hours: hours})
}

func uniqueNetworks(networks []string) []string {
	out := make([]string, 0, len(networks))
	seen := make(map[string]bool, len(networks))
	for _, n := range networks {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
