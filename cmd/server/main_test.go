package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/hours-engine/allocation"
	"github.com/warp/hours-engine/config"
	"github.com/warp/hours-engine/store"
	"go.uber.org/zap"
)

func TestBuildRunInput_AppliesDefaults(t *testing.T) {
	// GIVEN: an input without networks or mode, and an aliased payslip name
	cfg := config.Default()
	cfg.Engine.Aliases = map[string]string{"Rossi M": "Mario Rossi"}
	in := computeInput{
		Year: 2025, Month: 3,
		Workers: []allocation.WorkerInput{
			{Name: "mario rossi", OrdinaryHours: 10, CostHour: decimal.NewFromInt(20), Roles: []allocation.Role{"OG"}},
		},
	}
	payslips := "BUSTA PAGA 1\nNome: Rossi M\nQualifica: OG\nOre ordinarie: 5\n"

	// WHEN
	got := buildRunInput(cfg, in, payslips)

	// THEN: configured networks and mode, one merged worker
	assert.Equal(t, cfg.Engine.Networks, got.Networks)
	assert.True(t, got.ConsumeAll)
	require.Len(t, got.Workers, 1)
	assert.Equal(t, "MARIO ROSSI", got.Workers[0].Name)
	assert.Equal(t, 15.0, got.Workers[0].OrdinaryHours)
}

func TestBuildRunInput_ExplicitValuesWin(t *testing.T) {
	strict := false
	in := computeInput{Year: 2025, Month: 3, Networks: []string{"N1"}, ConsumeAll: &strict}

	got := buildRunInput(config.Default(), in, "")

	assert.Equal(t, []string{"N1"}, got.Networks)
	assert.False(t, got.ConsumeAll)
	assert.Empty(t, got.Workers)
}

func TestReadComputeInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"year": 2025, "month": 2, "networks": ["A", "B"], "medical_budget": "1680",
		"workers": [{"name": "Anna", "ordinary_hours": 12, "cost_hour": "19.35", "roles": ["OS"]}]
	}`), 0o600))

	in, err := readComputeInput(path)
	require.NoError(t, err)

	assert.Equal(t, 2, in.Month)
	assert.Equal(t, []string{"A", "B"}, in.Networks)
	assert.True(t, in.MedicalBudget.Equal(decimal.NewFromInt(1680)))
	require.Len(t, in.Workers, 1)
	assert.Equal(t, []allocation.Role{allocation.RoleSocial}, in.Workers[0].Roles)
}

func TestReadComputeInput_Errors(t *testing.T) {
	_, err := readComputeInput(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"year":`), 0o600))
	_, err = readComputeInput(path)
	assert.Error(t, err)
}

func TestPrintCheck(t *testing.T) {
	engine := allocation.NewEngine(allocation.DefaultEngineConfig(), nil)
	res, err := engine.Run(allocation.RunInput{
		Networks: []string{"N1", "N2"}, Year: 2025, Month: 2,
		Workers: []allocation.WorkerInput{
			{Name: "DIR", OrdinaryHours: 7.2, CostHour: decimal.NewFromInt(25), Roles: []allocation.Role{allocation.RoleSupervisor}},
			{Name: "EXTRA", OrdinaryHours: 4, Roles: []allocation.Role{"PULIZIE"}},
		},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, printCheck(&buf, res))
	out := buf.String()

	assert.Contains(t, out, "Period 2025-02")
	assert.Contains(t, out, "DIRETTORE")
	assert.Contains(t, out, "- EXTRA (day): 4.00")
	assert.Contains(t, out, "Supervisor DIR: declared 7.20, allocated 8.00 (+0.80)")
	assert.NotContains(t, out, "All cells balanced")
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	s, err := openStore(ctx, config.DatabaseConfig{Driver: "memory"}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &store.Memory{}, s)

	s, err = openStore(ctx, config.DatabaseConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "runs.db")}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = openStore(ctx, config.DatabaseConfig{Driver: "mongo"}, zap.NewNop())
	assert.Error(t, err)
}

func TestComputeCommand_WritesWorkbook(t *testing.T) {
	// GIVEN: a config file using the memory store and an input file
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, config.FileName)
	require.NoError(t, os.WriteFile(cfgPath, []byte("database:\n  driver: memory\nlog:\n  env: production\n"), 0o600))
	input := filepath.Join(dir, "input.json")
	require.NoError(t, os.WriteFile(input, []byte(`{"year": 2025, "month": 2,
		"workers": [{"name": "Anna", "ordinary_hours": 15, "cost_hour": "20", "roles": ["OG"]}]}`), 0o600))
	output := filepath.Join(dir, "out.xlsx")

	// WHEN
	root := newRootCmd()
	var stdout bytes.Buffer
	root.SetOut(&stdout)
	root.SetArgs([]string{"--config", cfgPath, "compute", "--input", input, "--output", output, "--save"})
	require.NoError(t, root.Execute())
	t.Cleanup(func() { configPath, env = "", "" })

	// THEN: Anna's two OG chunks, 140 fallback on-call rows of 8h at 1.5
	// and one zero-cost medical row per default network
	assert.Contains(t, stdout.String(), "Period 2025-02, 147 rows, 1980.00 total")
	assert.Contains(t, stdout.String(), "Saved run")
	_, err := os.Stat(output)
	assert.NoError(t, err)
}
