package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/hours-engine/allocation"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestValidate_DefaultConfig(t *testing.T) {
	assert.NoError(t, Validate(Default()))
}

func TestValidate_MissingNetworks(t *testing.T) {
	cfg := Default()
	cfg.Engine.Networks = nil

	err := Validate(cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestValidate_DuplicateNetworks(t *testing.T) {
	cfg := Default()
	cfg.Engine.Networks = []string{"RETE1", "RETE1"}
	assert.Error(t, Validate(cfg))
}

func TestValidate_MissingIdentities(t *testing.T) {
	cfg := Default()
	cfg.Engine.FallbackWorker = ""
	assert.Error(t, Validate(cfg))

	cfg = Default()
	cfg.Engine.MedicalWorker = ""
	assert.Error(t, Validate(cfg))
}

func TestDefault_EngineBalancesOnCallAndMedical(t *testing.T) {
	// GIVEN: the shipped defaults and one worker bringing 16h of on-call
	ec, err := Default().EngineConfig()
	require.NoError(t, err)
	engine := allocation.NewEngine(ec, nil)

	// WHEN
	res, err := engine.Run(allocation.RunInput{
		Networks:   []string{"N1", "N2"},
		Year:       2025, Month: 12,
		ConsumeAll: true,
		Workers:    []allocation.WorkerInput{{Name: "w", OnCallHours: 16}},
	})
	require.NoError(t, err)

	// THEN: the fallback and medical passes close every on-call and medical cell
	for _, s := range res.Summary {
		if s.Role != allocation.RoleOnCall && s.Role != allocation.RoleMedical {
			continue
		}
		assert.True(t, s.OK, "%s/%s demand=%v allocated=%v", s.Role, s.Network, s.Demand, s.Allocated)
		assert.Greater(t, s.Allocated, 0.0)
	}
	assert.Empty(t, res.Leftovers)
}

func TestValidate_UnknownDriver(t *testing.T) {
	cfg := Default()
	cfg.Database.Driver = "mysql"
	assert.Error(t, Validate(cfg))
}

func TestValidate_MemoryDriverNeedsNoDSN(t *testing.T) {
	cfg := Default()
	cfg.Database = DatabaseConfig{Driver: "memory"}
	assert.NoError(t, Validate(cfg))

	cfg.Database = DatabaseConfig{Driver: "postgres"}
	assert.Error(t, Validate(cfg))
}

func TestValidate_NegativeOnCallRate(t *testing.T) {
	cfg := Default()
	cfg.Engine.OnCallRate = -1
	assert.Error(t, Validate(cfg))
}

func TestValidate_InvalidRolesFile(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Engine.RolesFile = writeFile(t, dir, "roles.json", `{"roles": []}`)

	err := Validate(cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "rolesFile")
}

func TestLoadFromPath_MergesWithDefaults(t *testing.T) {
	// GIVEN: a file that only sets the engine identities and networks
	dir := t.TempDir()
	path := writeFile(t, dir, FileName, `
engine:
  networks: [NORD, SUD]
  consumeAll: false
  fallbackWorker: Riserva Reperibilita
  medicalWorker: Medico Convenzionato
  onCallRate: 2
  overrides:
    "Mario Rossi": [OG]
  aliases:
    "Rossi M": "Mario Rossi"
`)

	// WHEN
	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	// THEN: file values win, everything else stays at its default
	assert.Equal(t, []string{"NORD", "SUD"}, cfg.Engine.Networks)
	assert.False(t, cfg.Engine.ConsumeAll)
	assert.Equal(t, 2.0, cfg.Engine.OnCallRate)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)

	ec, err := cfg.EngineConfig()
	require.NoError(t, err)
	roles, ok := ec.Overrides.Lookup("mario rossi")
	require.True(t, ok)
	assert.Equal(t, []allocation.Role{allocation.RoleGeneric}, roles)
	assert.Equal(t, "2", ec.OnCallRate.String())
	assert.Equal(t, allocation.DefaultRoleTable().Roles(), ec.Roles.Roles())

	assert.Equal(t, "MARIO ROSSI", cfg.Normalizer().Name("rossi m"))
}

func TestLoadFromPath_InvalidYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), FileName, "engine: [")
	_, err := LoadFromPath(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse")
}

func TestEngineConfig_CustomRolesFile(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Engine.RolesFile = writeFile(t, dir, "roles.json",
		`{"roles": [{"id": "OG", "demand_type": "fixed", "value": 100}]}`)

	ec, err := cfg.EngineConfig()
	require.NoError(t, err)
	assert.Equal(t, []allocation.Role{allocation.RoleGeneric}, ec.Roles.Roles())
}

func TestLoad_FindsFileInCurrentDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, FileName, "server:\n  port: 9090\n")
	t.Chdir(dir)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoad_FallsBackToHomeDirectory(t *testing.T) {
	home := t.TempDir()
	writeFile(t, home, FileName, "server:\n  port: 7070\n")
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestLoad_NotFound(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	_, err := Load()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadFromPath_RetentionAndExportGroups(t *testing.T) {
	path := writeFile(t, t.TempDir(), FileName, `
database:
  driver: memory
  retention: 720h
export:
  groups:
    - name: NORD
      networks: [RETE1, RETE2]
`)

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, 30*24*time.Hour, cfg.Database.Retention)
	groups := cfg.ExportGroups()
	require.Len(t, groups, 1)
	assert.Equal(t, "NORD", groups[0].Name)
	assert.Equal(t, []string{"RETE1", "RETE2"}, groups[0].Networks)
}

func TestValidate_NegativeRetention(t *testing.T) {
	cfg := Default()
	cfg.Database.Retention = -time.Hour
	assert.Error(t, Validate(cfg))
}
