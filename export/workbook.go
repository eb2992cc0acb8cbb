/*
Package export renders an allocation result as an xlsx workbook.

SHEETS (in order):
  - Consuntivo: the full ledger, one line per allocation row
  - one sheet per configured group (e.g. CIG1 = RETE1..RETE4)
  - one sheet per network of the run
  - Controllo: the demand reconciliation, one line per (role, network)
  - Pivot: ledger hours per (network, role)
  - Residui: leftovers and supervisor rounding, only when there are any

Group and network sheets end with a FABBISOGNO line (demand hours of the
sheet's networks) and a CONTROLLO COMMESSA line (allocated minus demand).

SEE ALSO:
  - allocation/types.go: Result, AllocationRow, DemandSummary
  - store/store.go: Run.Result rebuilds a Result for a persisted run
*/
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/warp/hours-engine/allocation"
	"github.com/xuri/excelize/v2"
)

const (
	LedgerSheet   = "Consuntivo"
	CheckSheet    = "Controllo"
	PivotSheet    = "Pivot"
	ResidualSheet = "Residui"

	maxSheetName = 31
)

// Group is a named sheet covering several networks.
type Group struct {
	Name     string
	Networks []string
}

// Options controls which extra sheets are written.
type Options struct {
	Groups []Group
}

// FileName is the conventional download name for a period.
func FileName(p allocation.Period) string {
	return fmt.Sprintf("PROSPETTO_CONSUNTIVO_%04d_%02d.xlsx", p.Year, int(p.Month))
}

// Write renders the workbook to w.
func Write(w io.Writer, res *allocation.Result, opts Options) error {
	f, err := Workbook(res, opts)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// Workbook builds the workbook in memory. The caller closes it.
func Workbook(res *allocation.Result, opts Options) (*excelize.File, error) {
	f := excelize.NewFile()
	b := &builder{f: f, used: map[string]bool{}}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#E2E8F0"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	b.header = headerStyle

	if err := f.SetSheetName("Sheet1", LedgerSheet); err != nil {
		f.Close()
		return nil, err
	}
	b.used[strings.ToUpper(LedgerSheet)] = true

	steps := []func() error{
		func() error { return b.ledger(res) },
		func() error {
			for _, g := range opts.Groups {
				if err := b.networkSheet(g.Name, res, g.Networks); err != nil {
					return err
				}
			}
			return nil
		},
		func() error {
			for _, n := range res.Networks {
				if err := b.networkSheet(n, res, []string{n}); err != nil {
					return err
				}
			}
			return nil
		},
		func() error { return b.check(res) },
		func() error { return b.pivot(res) },
		func() error { return b.residuals(res) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			f.Close()
			return nil, err
		}
	}

	f.SetActiveSheet(0)
	return f, nil
}

// =============================================================================
// SHEETS
// =============================================================================

type builder struct {
	f      *excelize.File
	header int
	used   map[string]bool
}

func (b *builder) ledger(res *allocation.Result) error {
	rows := [][]any{{"Nominativo", "Rete", "Ruolo", "Ore", "Costo_orario", "Importo"}}
	for _, r := range res.Allocations {
		rows = append(rows, []any{r.Name, r.Network, string(r.Role), r.Hours,
			r.CostHour.InexactFloat64(), r.Amount.InexactFloat64()})
	}
	rows = append(rows, nil, []any{"TOTALE", nil, nil, totalHours(res.Allocations), nil,
		res.TotalAmount().InexactFloat64()})

	if err := b.write(LedgerSheet, rows); err != nil {
		return err
	}
	return b.widths(LedgerSheet, map[string]float64{"A": 30, "B": 12, "C": 20, "D:F": 14})
}

func (b *builder) networkSheet(name string, res *allocation.Result, networks []string) error {
	sheet, err := b.newSheet(name)
	if err != nil {
		return err
	}

	in := make(map[string]bool, len(networks))
	for _, n := range networks {
		in[n] = true
	}

	rows := [][]any{{"Nominativo", "Ruolo", "Ore", "Costo_orario", "Importo"}}
	var allocated float64
	for _, r := range res.Allocations {
		if !in[r.Network] {
			continue
		}
		allocated += r.Hours
		rows = append(rows, []any{r.Name, string(r.Role), r.Hours,
			r.CostHour.InexactFloat64(), r.Amount.InexactFloat64()})
	}

	var demand float64
	for _, s := range res.Summary {
		if in[s.Network] {
			demand += s.Demand
		}
	}
	rows = append(rows,
		nil,
		[]any{"FABBISOGNO (Ore)", nil, demand},
		[]any{"CONTROLLO COMMESSA", nil, allocated - demand},
	)

	if err := b.write(sheet, rows); err != nil {
		return err
	}
	return b.widths(sheet, map[string]float64{"A": 30, "B": 20, "C:E": 14})
}

func (b *builder) check(res *allocation.Result) error {
	sheet, err := b.newSheet(CheckSheet)
	if err != nil {
		return err
	}
	rows := [][]any{{"Ruolo", "Rete", "Fabbisogno", "Assegnate", "Differenza", "OK"}}
	for _, s := range res.Summary {
		rows = append(rows, []any{string(s.Role), s.Network, s.Demand, s.Allocated, s.Diff, okLabel(s.OK)})
	}
	if err := b.write(sheet, rows); err != nil {
		return err
	}
	return b.widths(sheet, map[string]float64{"A": 20, "B": 12, "C:F": 14})
}

func (b *builder) pivot(res *allocation.Result) error {
	sheet, err := b.newSheet(PivotSheet)
	if err != nil {
		return err
	}
	rows := [][]any{{"Rete", "Ruolo", "Ore"}}
	for _, c := range res.Pivot() {
		rows = append(rows, []any{c.Network, string(c.Role), c.Hours})
	}
	return b.write(sheet, rows)
}

func (b *builder) residuals(res *allocation.Result) error {
	if len(res.Leftovers) == 0 && len(res.SupervisorSplits) == 0 {
		return nil
	}
	sheet, err := b.newSheet(ResidualSheet)
	if err != nil {
		return err
	}

	rows := [][]any{{"Nominativo", "Monte ore", "Ore non assegnate"}}
	for _, l := range res.Leftovers {
		rows = append(rows, []any{l.Name, string(l.Pool), l.Hours})
	}
	headers := []int{1}
	if len(res.SupervisorSplits) > 0 {
		rows = append(rows, nil)
		headers = append(headers, len(rows)+1)
		rows = append(rows, []any{"Nominativo", "Ore dichiarate", "Ore per rete", "Ore assegnate", "Delta"})
		for _, s := range res.SupervisorSplits {
			rows = append(rows, []any{s.Name, s.DeclaredHours, s.PerNetwork, s.AllocatedHours, s.Delta})
		}
	}

	if err := b.write(sheet, rows); err != nil {
		return err
	}
	for _, r := range headers[1:] {
		if err := b.f.SetRowStyle(sheet, r, r, b.header); err != nil {
			return err
		}
	}
	return b.widths(sheet, map[string]float64{"A": 30, "B:E": 16})
}

// =============================================================================
// HELPERS
// =============================================================================

// write puts rows from A1 down and styles the first one as a header.
func (b *builder) write(sheet string, rows [][]any) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := b.f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("sheet %s row %d: %w", sheet, i+1, err)
		}
	}
	return b.f.SetRowStyle(sheet, 1, 1, b.header)
}

func (b *builder) widths(sheet string, cols map[string]float64) error {
	for span, w := range cols {
		from, to, _ := strings.Cut(span, ":")
		if to == "" {
			to = from
		}
		if err := b.f.SetColWidth(sheet, from, to, w); err != nil {
			return err
		}
	}
	return nil
}

// newSheet adds a sheet under a valid, unused name derived from name.
func (b *builder) newSheet(name string) (string, error) {
	base := SheetName(name)
	sheet := base
	for i := 2; b.used[strings.ToUpper(sheet)]; i++ {
		suffix := fmt.Sprintf(" (%d)", i)
		sheet = truncate(base, maxSheetName-len(suffix)) + suffix
	}
	if _, err := b.f.NewSheet(sheet); err != nil {
		return "", fmt.Errorf("failed to create sheet %s: %w", sheet, err)
	}
	b.used[strings.ToUpper(sheet)] = true
	return sheet, nil
}

// SheetName replaces characters Excel rejects and truncates to 31 characters.
func SheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	name = strings.Trim(name, "'")
	if name == "" {
		name = "Foglio"
	}
	return truncate(name, maxSheetName)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func totalHours(rows []allocation.AllocationRow) float64 {
	var total float64
	for _, r := range rows {
		total += r.Hours
	}
	return total
}

func okLabel(ok bool) string {
	if ok {
		return "OK"
	}
	return "KO"
}
