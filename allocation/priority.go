package allocation

// =============================================================================
// ROLE PRIORITY - Processing order of a worker's declared roles
// =============================================================================

// PriorityChoice schedules Role, then each declared Follower not yet placed.
type PriorityChoice struct {
	Role      Role
	Followers []Role
}

// PriorityTier is a list of mutually exclusive choices. The first choice
// whose Role the worker declared wins; the others are skipped.
type PriorityTier []PriorityChoice

// PriorityTable orders tiers from highest to lowest precedence.
// Declared roles not placed by any tier follow in their original order.
type PriorityTable []PriorityTier

// DefaultPriorityTable places the supervisor first, then the mediator or
// social operator together with the base operator they imply.
func DefaultPriorityTable() PriorityTable {
	return PriorityTable{
		{
			{Role: RoleSupervisor},
		},
		{
			{Role: RoleMediator, Followers: []Role{RoleGeneric}},
			{Role: RoleSocial, Followers: []Role{RoleGeneric}},
			{Role: RoleGeneric},
		},
	}
}

// Resolve returns the processing order for the declared roles.
// Duplicates are dropped; the result only contains declared roles.
func (t PriorityTable) Resolve(declared []Role) []Role {
	isDeclared := make(map[Role]bool, len(declared))
	for _, r := range declared {
		isDeclared[r] = true
	}

	ordered := make([]Role, 0, len(declared))
	placed := make(map[Role]bool, len(declared))
	place := func(r Role) {
		if isDeclared[r] && !placed[r] {
			placed[r] = true
			ordered = append(ordered, r)
		}
	}

	for _, tier := range t {
		for _, choice := range tier {
			if !isDeclared[choice.Role] || placed[choice.Role] {
				continue
			}
			place(choice.Role)
			for _, f := range choice.Followers {
				place(f)
			}
			break
		}
	}
	for _, r := range declared {
		place(r)
	}
	return ordered
}
