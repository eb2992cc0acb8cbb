package roster

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/hours-engine/allocation"
)

// =============================================================================
// PAYSLIP TEXT - One worker per "BUSTA PAGA <n>" block
// =============================================================================

var (
	blockSep      = regexp.MustCompile(`(?i)BUSTA\s+PAGA\s*\d+`)
	nameField     = regexp.MustCompile(`(?i)Nome\s*[:\-]\s*(.+)`)
	bareName      = regexp.MustCompile("^[A-Z][A-Z\\s'`.-]{3,}$")
	ordinaryField = regexp.MustCompile(`(?i)ore\s+ordinarie\s*[:\-]?\s*([\d.,]+)`)
	overtimeField = regexp.MustCompile(`(?i)ore\s+straordinarie\s*[:\-]?\s*([\d.,]+)`)
	onCallField   = regexp.MustCompile(`(?i)reperibilita\s*[:\-]?\s*([\d.,]+)`)
	costField     = regexp.MustCompile(`(?i)costo\s+orario\s*[:\-]?\s*([\d.,]+)`)
	flatRateField = regexp.MustCompile(`(?i)forfait\s*[:\-]?\s*([\d.,]+)`)
)

// ParsePayslips extracts worker records from pasted payslip text.
//
// Each block yields one record. The name comes from a "Nome:" line or, failing
// that, the first all-caps line. Blocks without a name are dropped. Records
// are not merged; pass them through Prepare for that.
func (n *Normalizer) ParsePayslips(text string) []allocation.WorkerInput {
	var workers []allocation.WorkerInput
	for _, block := range blockSep.Split(text, -1) {
		if w, ok := n.parseBlock(block); ok {
			workers = append(workers, w)
		}
	}
	return workers
}

func (n *Normalizer) parseBlock(block string) (allocation.WorkerInput, bool) {
	var (
		w     allocation.WorkerInput
		roles []allocation.Role
	)
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := nameField.FindStringSubmatch(line); m != nil {
			w.Name = n.Name(m[1])
			continue
		}
		if w.Name == "" && bareName.MatchString(line) {
			w.Name = n.Name(line)
		}

		if m := ordinaryField.FindStringSubmatch(line); m != nil {
			w.OrdinaryHours = ParseNumber(m[1])
		}
		if m := overtimeField.FindStringSubmatch(line); m != nil {
			w.OvertimeHours = ParseNumber(m[1])
		}
		if m := onCallField.FindStringSubmatch(line); m != nil {
			w.OnCallHours = ParseNumber(m[1])
		}
		if m := costField.FindStringSubmatch(line); m != nil {
			w.CostHour = ParseAmount(m[1])
		}
		if m := flatRateField.FindStringSubmatch(line); m != nil {
			w.FlatRateTotal = ParseAmount(m[1])
		}
		for _, r := range rolesInLine(line) {
			if !slices.Contains(roles, r) {
				roles = append(roles, r)
			}
		}
	}
	if w.Name == "" {
		return allocation.WorkerInput{}, false
	}
	w.Roles = roles
	return w, true
}

// normalizeNumber converts Italian notation ("1.234,5") to "1234.5".
func normalizeNumber(s string) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), ".", "")
	return strings.ReplaceAll(s, ",", ".")
}

// ParseNumber parses an Italian-formatted number. Unparseable input is 0.
func ParseNumber(s string) float64 {
	v, err := strconv.ParseFloat(normalizeNumber(s), 64)
	if err != nil {
		return 0
	}
	return v
}

// ParseAmount is ParseNumber for money.
func ParseAmount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(normalizeNumber(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}
