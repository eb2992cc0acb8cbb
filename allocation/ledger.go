package allocation

// =============================================================================
// LEDGER - Append-only record of every assignment in a run
// =============================================================================

// Ledger is the source of truth for what a run allocated.
//
// INVARIANTS:
//   - Append-only: rows are never edited or removed.
//   - Ordered: Rows returns emission order.
//
// Totals are always derived by scanning rows, never cached, so the
// reconciliation cannot drift from what was actually emitted.
type Ledger struct {
	rows []AllocationRow
}

func NewLedger() *Ledger {
	return &Ledger{}
}

// Append adds a row. This is the only write operation.
func (l *Ledger) Append(row AllocationRow) {
	l.rows = append(l.rows, row)
}

// Rows returns a copy of the rows in emission order.
func (l *Ledger) Rows() []AllocationRow {
	return append([]AllocationRow(nil), l.rows...)
}

func (l *Ledger) Len() int { return len(l.rows) }

// Allocated sums the hours of every row for a (role, network) cell.
func (l *Ledger) Allocated(role Role, network string) float64 {
	var total float64
	for _, row := range l.rows {
		if row.Role == role && row.Network == network {
			total += row.Hours
		}
	}
	return total
}

// HoursFor sums the hours of a worker for a role across networks.
func (l *Ledger) HoursFor(name string, role Role) float64 {
	var total float64
	for _, row := range l.rows {
		if row.Name == name && row.Role == role {
			total += row.Hours
		}
	}
	return total
}
