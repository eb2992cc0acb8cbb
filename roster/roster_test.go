package roster_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/hours-engine/allocation"
	"github.com/warp/hours-engine/roster"
)

func TestNormalizer_NameAppliesAliases(t *testing.T) {
	n := roster.NewNormalizer(map[string]string{"salazar josveline": "Salazar Josvelyn"})

	assert.Equal(t, "SALAZAR JOSVELYN", n.Name("  Salazar   Josveline "))
	assert.Equal(t, "DAMICO LUCA", n.Name("D'Amico Luca"))
	assert.Equal(t, "", n.Name("   "))
}

func TestCanonicalRole(t *testing.T) {
	tests := []struct {
		label string
		want  allocation.Role
		ok    bool
	}{
		{"operatore sociale", allocation.RoleSocial, true},
		{"OS", allocation.RoleSocial, true},
		{"Operatore  Generico", allocation.RoleGeneric, true},
		{"direttore", allocation.RoleSupervisor, true},
		{"Mediatore", allocation.RoleMediator, true},
		{"medico", allocation.RoleMedical, true},
		{"cuoco", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			role, ok := roster.CanonicalRole(tt.label)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, role)
		})
	}
}

func TestNormalizer_RolesKeepsCustomLabels(t *testing.T) {
	n := roster.NewNormalizer(nil)
	assert.Equal(t,
		[]allocation.Role{allocation.RoleSocial, "AUTISTA"},
		n.Roles([]string{"operatore sociale", "OS", "autista", " "}))
}

func TestMerge_FoldsSamePerson(t *testing.T) {
	// GIVEN: the same person on two payslips with different spelling and roles
	workers := []allocation.WorkerInput{
		{
			Name: "Mario Rossi", OrdinaryHours: 100, OnCallHours: 10,
			CostHour: decimal.NewFromInt(18), Roles: []allocation.Role{allocation.RoleSocial},
			FlatRateTotal: decimal.NewFromInt(50),
		},
		{Name: "Luca Verdi", OrdinaryHours: 20, Roles: []allocation.Role{allocation.RoleGeneric}},
		{
			Name: "mario  rossi", OrdinaryHours: 20, OvertimeHours: 5,
			CostHour: decimal.NewFromInt(21), Roles: []allocation.Role{allocation.RoleGeneric, allocation.RoleSocial},
			FlatRateTotal: decimal.NewFromInt(30),
		},
	}

	// WHEN
	merged := roster.Merge(workers)

	// THEN: hours summed, cost and flat rate maxed, roles unioned and sorted
	require.Len(t, merged, 2)
	m := merged[0]
	assert.Equal(t, "Mario Rossi", m.Name)
	assert.Equal(t, 120.0, m.OrdinaryHours)
	assert.Equal(t, 5.0, m.OvertimeHours)
	assert.Equal(t, 10.0, m.OnCallHours)
	assert.True(t, m.CostHour.Equal(decimal.NewFromInt(21)))
	assert.True(t, m.FlatRateTotal.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, []allocation.Role{allocation.RoleGeneric, allocation.RoleSocial}, m.Roles)

	// input untouched
	assert.Equal(t, []allocation.Role{allocation.RoleSocial}, workers[0].Roles)
}

func TestNormalizer_Prepare(t *testing.T) {
	n := roster.NewNormalizer(map[string]string{"ROSSI M": "MARIO ROSSI"})

	prepared := n.Prepare([]allocation.WorkerInput{
		{Name: "Mario Rossi", OrdinaryHours: 10, Roles: []allocation.Role{"operatore sociale"}},
		{Name: " ", OrdinaryHours: 99},
		{Name: "Rossi M", OrdinaryHours: 5, Roles: []allocation.Role{"og"}},
	})

	require.Len(t, prepared, 1)
	assert.Equal(t, "MARIO ROSSI", prepared[0].Name)
	assert.Equal(t, 15.0, prepared[0].OrdinaryHours)
	assert.Equal(t, []allocation.Role{allocation.RoleGeneric, allocation.RoleSocial}, prepared[0].Roles)
}

func TestParsePayslips(t *testing.T) {
	text := `
BUSTA PAGA 1
Nome: Mario Rossi
Qualifica: Operatore Sociale
Ore ordinarie: 120,5
Ore straordinarie: 10
Reperibilita: 24
Costo orario: 18,50
BUSTA PAGA 2
LUCIA BIANCHI
Qualifica: OG, Mediatore
ore ordinarie 1.200,00
Forfait: 300
BUSTA PAGA 3
nessun nominativo qui
ore ordinarie 10
`
	workers := roster.NewNormalizer(nil).ParsePayslips(text)

	require.Len(t, workers, 2, "blocks without a name are dropped")

	mario := workers[0]
	assert.Equal(t, "MARIO ROSSI", mario.Name)
	assert.Equal(t, 120.5, mario.OrdinaryHours)
	assert.Equal(t, 10.0, mario.OvertimeHours)
	assert.Equal(t, 24.0, mario.OnCallHours)
	assert.True(t, mario.CostHour.Equal(decimal.RequireFromString("18.5")))
	assert.Equal(t, []allocation.Role{allocation.RoleSocial}, mario.Roles)

	lucia := workers[1]
	assert.Equal(t, "LUCIA BIANCHI", lucia.Name)
	assert.Equal(t, 1200.0, lucia.OrdinaryHours)
	assert.Equal(t, []allocation.Role{allocation.RoleMediator, allocation.RoleGeneric}, lucia.Roles)
	assert.True(t, lucia.FlatRateTotal.Equal(decimal.NewFromInt(300)))
}

func TestParseNumber(t *testing.T) {
	assert.Equal(t, 1234.5, roster.ParseNumber("1.234,5"))
	assert.Equal(t, 7.0, roster.ParseNumber("7"))
	assert.Equal(t, 0.0, roster.ParseNumber(""))
	assert.Equal(t, 0.0, roster.ParseNumber("abc"))
	assert.True(t, roster.ParseAmount("12,75").Equal(decimal.RequireFromString("12.75")))
}
