package factory_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/hours-engine/allocation"
	"github.com/warp/hours-engine/factory"
)

func TestRoleFactory_ParseRoles(t *testing.T) {
	// GIVEN: a table with mixed-case ids and Italian demand type labels
	jsonStr := `{
		"roles": [
			{"id": "og", "demand_type": "per_day", "value": 12, "chunk": 7.5},
			{"id": "Mediatore", "demand_type": "settimanale", "value": 20, "fallback": "og"},
			{"id": "EXTRA", "demand_type": "fixed", "value": 40, "chunk": 4}
		]
	}`

	// WHEN
	roles, err := factory.NewRoleFactory().ParseRoles(jsonStr)

	// THEN
	require.NoError(t, err)
	assert.Equal(t, []allocation.Role{"OG", "MEDIATORE", "EXTRA"}, roles.Roles())

	med, ok := roles.Get("MEDIATORE")
	require.True(t, ok)
	assert.Equal(t, allocation.DemandPerWeek, med.Kind)
	assert.Equal(t, allocation.RoleGeneric, med.Fallback)
	assert.Equal(t, allocation.DefaultChunk, med.ChunkSize(), "missing chunk uses the default")

	extra, _ := roles.Get("EXTRA")
	assert.Equal(t, 4.0, extra.ChunkSize())
}

func TestRoleFactory_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		jsonStr string
	}{
		{"malformed", `{"roles": [`},
		{"empty table", `{"roles": []}`},
		{"unknown demand type", `{"roles": [{"id": "OG", "demand_type": "hourly", "value": 1}]}`},
		{"unknown fallback", `{"roles": [{"id": "OS", "demand_type": "per_week", "value": 1, "fallback": "OG"}]}`},
		{"duplicate id", `{"roles": [{"id": "OG", "demand_type": "fixed"}, {"id": "og", "demand_type": "fixed"}]}`},
		{"negative value", `{"roles": [{"id": "OG", "demand_type": "fixed", "value": -1}]}`},
	}

	f := factory.NewRoleFactory()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ParseRoles(tt.jsonStr)
			assert.Error(t, err)
		})
	}
}

func TestRoleFactory_DefaultRolesRoundTrip(t *testing.T) {
	// GIVEN: the default table serialized to JSON
	// WHEN: parsed back
	// THEN: the same policies in the same order

	roles, err := factory.NewRoleFactory().ParseRoles(factory.DefaultRolesJSON())
	require.NoError(t, err)
	assert.Equal(t, allocation.DefaultRoleTable().Configs(), roles.Configs())
}

func TestRoleFactory_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"roles": [{"id": "OG", "demand_type": "per_day", "value": 10}]}`), 0o600))

	roles, err := factory.NewRoleFactory().LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, roles.Len())

	_, err = factory.NewRoleFactory().LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
