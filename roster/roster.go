/*
Package roster turns raw worker records into engine input.

PURPOSE:
  The engine expects one record per person, with canonical names and role
  ids. Payroll exports rarely look like that: the same person shows up under
  two spellings, on two payslips, with role labels written out in full.
  The Normalizer fixes all three before a run:

  1. Name:  trim, collapse whitespace, strip apostrophes, upper-case, alias
  2. Roles: labels mapped to role ids (OPERATORE SOCIALE -> OS)
  3. Merge: records of the same person are folded into one

MERGE RULES:
  ordinary/overtime/on-call hours  summed
  cost per hour                    max
  roles                            union, sorted
  flat-rate total                  max

SEE ALSO:
  - payslip.go: free-text payslip parsing
  - allocation/identity.go: NormalizeName
*/
package roster

import (
	"regexp"
	"slices"
	"strings"

	"github.com/warp/hours-engine/allocation"
)

// roleKeyword maps a role label, matched as whole words, to a role id.
type roleKeyword struct {
	label string
	role  allocation.Role
	re    *regexp.Regexp
}

func keyword(label string, role allocation.Role) roleKeyword {
	return roleKeyword{
		label: label,
		role:  role,
		re:    regexp.MustCompile(`\b` + regexp.QuoteMeta(label) + `\b`),
	}
}

// roleKeywords is ordered: payslip lines report roles in this order.
var roleKeywords = []roleKeyword{
	keyword("DIRETTORE", allocation.RoleSupervisor),
	keyword("OS", allocation.RoleSocial),
	keyword("OPERATORE SOCIALE", allocation.RoleSocial),
	keyword("MEDIATORE", allocation.RoleMediator),
	keyword("OG", allocation.RoleGeneric),
	keyword("OPERATORE GENERICO", allocation.RoleGeneric),
	keyword("MEDICO", allocation.RoleMedical),
}

// CanonicalRole maps a role label to its id. Unknown labels return false.
func CanonicalRole(label string) (allocation.Role, bool) {
	norm := allocation.NormalizeName(label)
	for _, k := range roleKeywords {
		if norm == k.label {
			return k.role, true
		}
	}
	return "", false
}

// rolesInLine returns every role whose label appears in the line as whole words.
func rolesInLine(line string) []allocation.Role {
	upper := strings.ToUpper(line)
	var roles []allocation.Role
	for _, k := range roleKeywords {
		if k.re.MatchString(upper) && !slices.Contains(roles, k.role) {
			roles = append(roles, k.role)
		}
	}
	return roles
}

// Normalizer cleans worker records. Safe for concurrent use after creation.
type Normalizer struct {
	aliases map[string]string
}

// NewNormalizer creates a normalizer. Alias keys and values are normalized.
func NewNormalizer(aliases map[string]string) *Normalizer {
	n := &Normalizer{aliases: make(map[string]string, len(aliases))}
	for from, to := range aliases {
		key := allocation.NormalizeName(from)
		if key == "" {
			continue
		}
		n.aliases[key] = allocation.NormalizeName(to)
	}
	return n
}

// Name normalizes a name and applies the alias table.
func (n *Normalizer) Name(raw string) string {
	name := allocation.NormalizeName(raw)
	if alias, ok := n.aliases[name]; ok {
		return alias
	}
	return name
}

// Roles canonicalizes role labels. Labels that are not known keywords are
// kept upper-cased, so custom roles from a JSON role table still work.
// Duplicates and blanks are dropped.
func (n *Normalizer) Roles(labels []string) []allocation.Role {
	out := make([]allocation.Role, 0, len(labels))
	for _, l := range labels {
		role, ok := CanonicalRole(l)
		if !ok {
			role = allocation.Role(allocation.NormalizeName(l))
		}
		if role == "" || slices.Contains(out, role) {
			continue
		}
		out = append(out, role)
	}
	return out
}

// Prepare normalizes names and roles, drops records without a name and
// merges records that resolve to the same person.
func (n *Normalizer) Prepare(workers []allocation.WorkerInput) []allocation.WorkerInput {
	cleaned := make([]allocation.WorkerInput, 0, len(workers))
	for _, w := range workers {
		w.Name = n.Name(w.Name)
		if w.Name == "" {
			continue
		}
		labels := make([]string, len(w.Roles))
		for i, r := range w.Roles {
			labels[i] = string(r)
		}
		w.Roles = n.Roles(labels)
		cleaned = append(cleaned, w)
	}
	return Merge(cleaned)
}

// Merge folds records with the same normalized name, keeping first-seen order.
func Merge(workers []allocation.WorkerInput) []allocation.WorkerInput {
	index := make(map[string]int, len(workers))
	merged := make([]allocation.WorkerInput, 0, len(workers))
	for _, w := range workers {
		key := allocation.NormalizeName(w.Name)
		i, ok := index[key]
		if !ok {
			index[key] = len(merged)
			w.Roles = slices.Clone(w.Roles)
			merged = append(merged, w)
			continue
		}

		existing := &merged[i]
		existing.OrdinaryHours += w.OrdinaryHours
		existing.OvertimeHours += w.OvertimeHours
		existing.OnCallHours += w.OnCallHours
		if w.CostHour.GreaterThan(existing.CostHour) {
			existing.CostHour = w.CostHour
		}
		if w.FlatRateTotal.GreaterThan(existing.FlatRateTotal) {
			existing.FlatRateTotal = w.FlatRateTotal
		}
		roles := append(existing.Roles, w.Roles...)
		slices.Sort(roles)
		existing.Roles = slices.Compact(roles)
	}
	return merged
}
