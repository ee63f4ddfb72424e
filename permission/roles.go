package permission

import (
	"fmt"

	"github.com/nmezhenskyi/gastronomy-api/principal"
)

// grants lists, for each effective principal role, the role requirements it
// satisfies. A requirement is met only by an exact role match: a Supervisor does
// not implicitly satisfy a Creator requirement, so routes open to both roles
// must list both.
var grants = map[principal.Role][]principal.Role{
	principal.RoleUser:       {principal.RoleUser},
	principal.RoleCreator:    {principal.RoleCreator},
	principal.RoleSupervisor: {principal.RoleSupervisor},
}

// Satisfies reports whether p meets a single role requirement.
//
//   - RoleUser is met by user principals.
//   - RoleCreator is met by members whose role is Creator.
//   - RoleSupervisor is met by members whose role is Supervisor.
func Satisfies(p principal.Principal, required principal.Role) bool {
	if p.Validate() != nil {
		return false
	}
	for _, granted := range grants[p.Role()] {
		if granted == required {
			return true
		}
	}
	return false
}

// RoleSet is the set of acceptable roles for a route. The zero value accepts
// any authenticated principal.
type RoleSet struct {
	roles []principal.Role
}

// NewRoleSet builds a RoleSet. Duplicates are dropped; unknown roles panic
// because route tables are static configuration.
func NewRoleSet(roles ...principal.Role) RoleSet {
	out := make([]principal.Role, 0, len(roles))
	seen := make(map[principal.Role]struct{}, len(roles))
	for _, r := range roles {
		if !r.Valid() {
			panic(fmt.Sprintf("permission: unknown role %q", r))
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return RoleSet{roles: out}
}

// Empty reports whether no role is required.
func (s RoleSet) Empty() bool { return len(s.roles) == 0 }

// Roles returns a copy of the required roles.
func (s RoleSet) Roles() []principal.Role {
	return append([]principal.Role(nil), s.roles...)
}

// Allows reports whether p satisfies at least one role of the set.
// An empty set allows every valid principal.
func (s RoleSet) Allows(p principal.Principal) bool {
	if p.Validate() != nil {
		return false
	}
	if len(s.roles) == 0 {
		return true
	}
	for _, r := range s.roles {
		if Satisfies(p, r) {
			return true
		}
	}
	return false
}

// ParseRoles converts API role strings into a RoleSet.
func ParseRoles(values []string) (RoleSet, error) {
	roles := make([]principal.Role, 0, len(values))
	for _, v := range values {
		r := principal.Role(v)
		if !r.Valid() {
			return RoleSet{}, fmt.Errorf("unknown role %q", v)
		}
		roles = append(roles, r)
	}
	return NewRoleSet(roles...), nil
}
