/*
Package factory provides JSON to Go role table conversion.

PURPOSE:
  Converts JSON role definitions into an allocation.RoleTable. Cooperatives
  change demand rates and chunk sizes between contracts; the factory lets
  them ship a JSON file instead of a new binary.

JSON SCHEMA:
  {
    "roles": [
      {"id": "OG",        "demand_type": "per_day",  "value": 12, "chunk": 7.5},
      {"id": "MEDIATORE", "demand_type": "per_week", "value": 20, "chunk": 7.5, "fallback": "OG"},
      {"id": "DIRETTORE", "demand_type": "per_week", "value": 8,  "chunk": 8}
    ]
  }

  demand_type is one of per_day, per_week, fixed. A missing chunk means the
  default 7.5h chunk. Array order is the table order, which drives the order
  of reconciliation rows.

USAGE:
  factory := NewRoleFactory()

  roles, err := factory.ParseRoles(jsonString)
  roles, err := factory.LoadFile("roles.json")

  engine := allocation.NewEngine(allocation.EngineConfig{Roles: roles, ...}, logger)

SEE ALSO:
  - allocation/types.go: RoleConfig and RoleTable
  - config/config.go: engine.rolesFile points at a JSON file of this shape
*/
package factory

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/warp/hours-engine/allocation"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// RoleTableJSON is the JSON representation of a role table.
type RoleTableJSON struct {
	Roles []RoleJSON `json:"roles"`
}

// RoleJSON is the JSON representation of one role policy.
type RoleJSON struct {
	ID         string  `json:"id"`
	DemandType string  `json:"demand_type"` // per_day, per_week, fixed
	Value      float64 `json:"value"`
	Chunk      float64 `json:"chunk,omitempty"`
	Fallback   string  `json:"fallback,omitempty"`
}

// =============================================================================
// ROLE FACTORY
// =============================================================================

// RoleFactory converts JSON role tables to allocation.RoleTable.
type RoleFactory struct{}

// NewRoleFactory creates a new role factory.
func NewRoleFactory() *RoleFactory {
	return &RoleFactory{}
}

// ParseRoles parses a JSON string into a RoleTable.
func (f *RoleFactory) ParseRoles(jsonStr string) (allocation.RoleTable, error) {
	var tj RoleTableJSON
	if err := json.Unmarshal([]byte(jsonStr), &tj); err != nil {
		return allocation.RoleTable{}, fmt.Errorf("failed to parse role table JSON: %w", err)
	}
	return f.FromJSON(tj)
}

// LoadFile reads and parses a role table file.
func (f *RoleFactory) LoadFile(path string) (allocation.RoleTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return allocation.RoleTable{}, fmt.Errorf("failed to read role table %s: %w", path, err)
	}
	roles, err := f.ParseRoles(string(data))
	if err != nil {
		return allocation.RoleTable{}, fmt.Errorf("%s: %w", path, err)
	}
	return roles, nil
}

// FromJSON converts RoleTableJSON to a RoleTable.
// Role ids are upper-cased; an empty table is rejected.
func (f *RoleFactory) FromJSON(tj RoleTableJSON) (allocation.RoleTable, error) {
	if len(tj.Roles) == 0 {
		return allocation.RoleTable{}, fmt.Errorf("%w: role table is empty", allocation.ErrInvalidRole)
	}

	configs := make([]allocation.RoleConfig, 0, len(tj.Roles))
	for _, rj := range tj.Roles {
		kind, err := parseDemandKind(rj.DemandType)
		if err != nil {
			return allocation.RoleTable{}, fmt.Errorf("role %q: %w", rj.ID, err)
		}
		configs = append(configs, allocation.RoleConfig{
			ID:       parseRole(rj.ID),
			Kind:     kind,
			Rate:     rj.Value,
			Chunk:    rj.Chunk,
			Fallback: parseRole(rj.Fallback),
		})
	}
	return allocation.NewRoleTable(configs...)
}

// ToJSON converts a RoleTable to RoleTableJSON, preserving table order.
func (f *RoleFactory) ToJSON(roles allocation.RoleTable) RoleTableJSON {
	tj := RoleTableJSON{Roles: make([]RoleJSON, 0, roles.Len())}
	for _, c := range roles.Configs() {
		tj.Roles = append(tj.Roles, RoleJSON{
			ID:         string(c.ID),
			DemandType: string(c.Kind),
			Value:      c.Rate,
			Chunk:      c.Chunk,
			Fallback:   string(c.Fallback),
		})
	}
	return tj
}

// DefaultRolesJSON returns the default role table as indented JSON.
func DefaultRolesJSON() string {
	data, err := json.MarshalIndent(NewRoleFactory().ToJSON(allocation.DefaultRoleTable()), "", "  ")
	if err != nil {
		panic(err)
	}
	return string(data)
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseRole(s string) allocation.Role {
	return allocation.Role(strings.ToUpper(strings.TrimSpace(s)))
}

func parseDemandKind(s string) (allocation.DemandKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "per_day", "giornaliero":
		return allocation.DemandPerDay, nil
	case "per_week", "settimanale":
		return allocation.DemandPerWeek, nil
	case "fixed", "fisso":
		return allocation.DemandFixed, nil
	default:
		return "", fmt.Errorf("%w: unknown demand_type %q", allocation.ErrInvalidRole, s)
	}
}
