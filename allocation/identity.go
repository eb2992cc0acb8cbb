package allocation

import (
	"strings"
)

var nameReplacer = strings.NewReplacer("'", "", "`", "")

// NormalizeName trims, collapses whitespace, drops apostrophes and backticks
// and upper-cases a worker name. Identity comparisons always use this form.
func NormalizeName(name string) string {
	collapsed := strings.Join(strings.Fields(name), " ")
	return strings.ToUpper(nameReplacer.Replace(collapsed))
}

// Overrides forces the role set of specific workers, keyed by normalized name.
type Overrides map[string][]Role

// NewOverrides normalizes the keys of a name -> roles table.
func NewOverrides(table map[string][]string) Overrides {
	o := make(Overrides, len(table))
	for name, roles := range table {
		key := NormalizeName(name)
		if key == "" {
			continue
		}
		rs := make([]Role, 0, len(roles))
		for _, r := range roles {
			rs = append(rs, Role(strings.ToUpper(strings.TrimSpace(r))))
		}
		o[key] = rs
	}
	return o
}

// Lookup returns the forced roles for a worker, if any.
func (o Overrides) Lookup(name string) ([]Role, bool) {
	roles, ok := o[NormalizeName(name)]
	if !ok {
		return nil, false
	}
	return append([]Role(nil), roles...), true
}
