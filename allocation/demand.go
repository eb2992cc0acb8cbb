package allocation

import "slices"

// =============================================================================
// DEMAND MAP - Remaining hours per (role, network) for one run
// =============================================================================

// DemandMap holds the remaining demand of every (role, network) cell.
//
// INVARIANTS:
//   - Values never go below zero; Decrement clamps.
//   - Iteration order is role-table order, then network-list order.
//   - Owned by a single run. Never shared across runs.
type DemandMap struct {
	roles    []Role
	networks []string
	cells    map[Role]map[string]float64
}

// DemandCell is one entry of a DemandMap.
type DemandCell struct {
	Role    Role
	Network string
	Hours   float64
}

// ComputeDemand sizes every (role, network) cell for the period.
//
// Pure: the same (roles, networks, period) always yields the same map. The
// engine relies on this to recompute true demand during reconciliation.
func ComputeDemand(roles RoleTable, networks []string, period Period) *DemandMap {
	d := &DemandMap{
		roles:    roles.Roles(),
		networks: slices.Clone(networks),
		cells:    make(map[Role]map[string]float64, roles.Len()),
	}
	days := float64(period.Days())
	weeks := period.Weeks()

	for _, cfg := range roles.Configs() {
		var total float64
		switch cfg.Kind {
		case DemandPerDay:
			total = cfg.Rate * days
		case DemandPerWeek:
			total = cfg.Rate * weeks
		default:
			total = cfg.Rate
		}
		target := RoundUpStep(total, RoundingStep)

		byNetwork := make(map[string]float64, len(networks))
		for _, n := range networks {
			byNetwork[n] = target
		}
		d.cells[cfg.ID] = byNetwork
	}
	return d
}

// Has reports whether the role has a demand bucket.
func (d *DemandMap) Has(role Role) bool {
	_, ok := d.cells[role]
	return ok
}

// Remaining returns the demand left in a cell (0 for unknown cells).
func (d *DemandMap) Remaining(role Role, network string) float64 {
	return d.cells[role][network]
}

// Decrement lowers a cell by hours, clamping at zero.
func (d *DemandMap) Decrement(role Role, network string, hours float64) {
	byNetwork, ok := d.cells[role]
	if !ok {
		return
	}
	if _, ok := byNetwork[network]; !ok {
		return
	}
	byNetwork[network] = max(0, byNetwork[network]-hours)
}

// Zero empties a cell.
func (d *DemandMap) Zero(role Role, network string) {
	d.Decrement(role, network, d.Remaining(role, network))
}

// Total sums a role's remaining demand across networks.
func (d *DemandMap) Total(role Role) float64 {
	var total float64
	for _, n := range d.networks {
		total += d.cells[role][n]
	}
	return total
}

// Largest returns the network with the most remaining demand for the role.
// Ties go to the network listed first.
func (d *DemandMap) Largest(role Role) (string, bool) {
	byNetwork, ok := d.cells[role]
	if !ok || len(d.networks) == 0 {
		return "", false
	}
	best := d.networks[0]
	for _, n := range d.networks[1:] {
		if byNetwork[n] > byNetwork[best] {
			best = n
		}
	}
	return best, true
}

func (d *DemandMap) Roles() []Role       { return slices.Clone(d.roles) }
func (d *DemandMap) Networks() []string { return slices.Clone(d.networks) }

// Cells lists every cell in deterministic order.
func (d *DemandMap) Cells() []DemandCell {
	out := make([]DemandCell, 0, len(d.roles)*len(d.networks))
	for _, r := range d.roles {
		for _, n := range d.networks {
			out = append(out, DemandCell{Role: r, Network: n, Hours: d.cells[r][n]})
		}
	}
	return out
}
