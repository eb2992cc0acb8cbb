package export_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/hours-engine/allocation"
	"github.com/warp/hours-engine/export"
	"github.com/xuri/excelize/v2"
)

func row(name, network string, role allocation.Role, hours float64, cost int64) allocation.AllocationRow {
	c := decimal.NewFromInt(cost)
	return allocation.AllocationRow{
		Name: name, Network: network, Role: role, Hours: hours,
		CostHour: c, Amount: decimal.NewFromFloat(hours).Mul(c),
	}
}

func sampleResult() *allocation.Result {
	return &allocation.Result{
		Period:     allocation.Period{Year: 2025, Month: 2},
		Networks:   []string{"RETE1", "RETE2"},
		ConsumeAll: true,
		Allocations: []allocation.AllocationRow{
			row("ANNA NERI", "RETE1", allocation.RoleSocial, 7.5, 20),
			row("ANNA NERI", "RETE2", allocation.RoleSocial, 7.5, 20),
			row("MARIO ROSSI", "RETE1", allocation.RoleGeneric, 4, 10),
		},
		Summary: []allocation.DemandSummary{
			{Role: allocation.RoleSocial, Network: "RETE1", Demand: 10, Allocated: 7.5, Diff: -2.5},
			{Role: allocation.RoleSocial, Network: "RETE2", Demand: 7.5, Allocated: 7.5, OK: true},
			{Role: allocation.RoleGeneric, Network: "RETE1", Demand: 4, Allocated: 4, OK: true},
		},
		Leftovers: []allocation.Leftover{{Name: "EXTRA", Pool: allocation.PoolDay, Hours: 3}},
	}
}

func render(t *testing.T, res *allocation.Result, opts export.Options) *excelize.File {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, export.Write(&buf, res, opts))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestWrite_SheetOrder(t *testing.T) {
	f := render(t, sampleResult(), export.Options{
		Groups: []export.Group{{Name: "CIG1", Networks: []string{"RETE1", "RETE2"}}},
	})

	assert.Equal(t,
		[]string{"Consuntivo", "CIG1", "RETE1", "RETE2", "Controllo", "Pivot", "Residui"},
		f.GetSheetList())
}

func TestWrite_Ledger(t *testing.T) {
	f := render(t, sampleResult(), export.Options{})

	rows, err := f.GetRows(export.LedgerSheet)
	require.NoError(t, err)

	assert.Equal(t, []string{"Nominativo", "Rete", "Ruolo", "Ore", "Costo_orario", "Importo"}, rows[0])
	assert.Equal(t, []string{"ANNA NERI", "RETE1", "OS", "7.5", "20", "150"}, rows[1])
	assert.Equal(t, []string{"MARIO ROSSI", "RETE1", "OG", "4", "10", "40"}, rows[3])

	total := rows[len(rows)-1]
	assert.Equal(t, "TOTALE", total[0])
	assert.Equal(t, "19", total[3])
	assert.Equal(t, "340", total[5])
}

func TestWrite_NetworkSheetFiltersAndChecks(t *testing.T) {
	// GIVEN: RETE1 has 11.5 allocated hours against 14 demanded
	f := render(t, sampleResult(), export.Options{})

	// WHEN
	rows, err := f.GetRows("RETE1")
	require.NoError(t, err)

	// THEN: only RETE1 rows, then the demand and the difference
	assert.Equal(t, []string{"ANNA NERI", "OS", "7.5", "20", "150"}, rows[1])
	assert.Equal(t, []string{"MARIO ROSSI", "OG", "4", "10", "40"}, rows[2])
	assert.Empty(t, rows[3])
	assert.Equal(t, []string{"FABBISOGNO (Ore)", "", "14"}, rows[4])
	assert.Equal(t, []string{"CONTROLLO COMMESSA", "", "-2.5"}, rows[5])
}

func TestWrite_GroupSheetCoversItsNetworks(t *testing.T) {
	f := render(t, sampleResult(), export.Options{
		Groups: []export.Group{{Name: "CIG1", Networks: []string{"RETE1", "RETE2", "RETE3"}}},
	})

	rows, err := f.GetRows("CIG1")
	require.NoError(t, err)

	// header + 3 rows + blank + 2 check lines
	require.Len(t, rows, 7)
	assert.Equal(t, []string{"FABBISOGNO (Ore)", "", "21.5"}, rows[5])
	assert.Equal(t, []string{"CONTROLLO COMMESSA", "", "-2.5"}, rows[6])
}

func TestWrite_CheckSheet(t *testing.T) {
	f := render(t, sampleResult(), export.Options{})

	rows, err := f.GetRows(export.CheckSheet)
	require.NoError(t, err)

	require.Len(t, rows, 4)
	assert.Equal(t, []string{"OS", "RETE1", "10", "7.5", "-2.5", "KO"}, rows[1])
	assert.Equal(t, "OK", rows[2][5])
}

func TestWrite_NoResidualSheetWhenNothingIsLeft(t *testing.T) {
	res := sampleResult()
	res.Leftovers = nil

	f := render(t, res, export.Options{})

	assert.NotContains(t, f.GetSheetList(), export.ResidualSheet)
}

func TestWrite_ResidualSheetListsSupervisorRounding(t *testing.T) {
	res := sampleResult()
	res.SupervisorSplits = []allocation.SupervisorSplit{
		{Name: "DIR", DeclaredHours: 7.2, PerNetwork: 4, AllocatedHours: 8, Delta: 0.8},
	}

	f := render(t, res, export.Options{})
	rows, err := f.GetRows(export.ResidualSheet)
	require.NoError(t, err)

	assert.Equal(t, []string{"EXTRA", "day", "3"}, rows[1])
	last := rows[len(rows)-1]
	assert.Equal(t, []string{"DIR", "7.2", "4", "8", "0.8"}, last)
}

func TestWrite_NetworkNameCollidingWithGroup(t *testing.T) {
	res := sampleResult()
	f := render(t, res, export.Options{
		Groups: []export.Group{{Name: "rete1", Networks: []string{"RETE1"}}},
	})

	assert.Contains(t, f.GetSheetList(), "rete1")
	assert.Contains(t, f.GetSheetList(), "RETE1 (2)")
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "A_B_C", export.SheetName("A/B:C"))
	assert.Equal(t, "Foglio", export.SheetName("  "))
	assert.Len(t, export.SheetName(strings.Repeat("X", 40)), 31)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "PROSPETTO_CONSUNTIVO_2025_02.xlsx", export.FileName(allocation.Period{Year: 2025, Month: 2}))
}
