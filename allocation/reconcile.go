package allocation

import "math"

// BalanceTolerance is the largest |allocated - demand| still considered balanced.
const BalanceTolerance = 0.01

// Reconcile compares freshly computed demand against the ledger for every
// cell of the final DemandMap. The mutated working map only provides the
// cell list; demand figures are recomputed from the role table and period.
func Reconcile(roles RoleTable, networks []string, period Period, final *DemandMap, ledger *Ledger) []DemandSummary {
	fresh := ComputeDemand(roles, networks, period)

	cells := final.Cells()
	summary := make([]DemandSummary, 0, len(cells))
	for _, c := range cells {
		demand := fresh.Remaining(c.Role, c.Network)
		allocated := ledger.Allocated(c.Role, c.Network)
		diff := allocated - demand
		summary = append(summary, DemandSummary{
			Role:      c.Role,
			Network:   c.Network,
			Demand:    demand,
			Allocated: allocated,
			Diff:      diff,
			OK:        math.Abs(diff) < BalanceTolerance,
		})
	}
	return summary
}

// Pivot groups row hours by (network, role) in first-seen order.
func Pivot(rows []AllocationRow) []PivotCell {
	type key struct {
		network string
		role    Role
	}
	index := make(map[key]int)
	var cells []PivotCell
	for _, row := range rows {
		k := key{row.Network, row.Role}
		i, ok := index[k]
		if !ok {
			i = len(cells)
			index[k] = i
			cells = append(cells, PivotCell{Network: row.Network, Role: row.Role})
		}
		cells[i].Hours += row.Hours
	}
	return cells
}
