package principal

import (
	"errors"
	"fmt"
)

// Kind tags the Principal variant.
type Kind uint8

const (
	// KindUnknown is the zero value and never identifies a valid principal.
	KindUnknown Kind = iota
	// KindUser is a registered catalog user.
	KindUser
	// KindMember is a staff member with a Role.
	KindMember
)

// String returns the lowercase kind name used in storage keys and logs.
func (k Kind) String() string {
	switch k {
	case KindUser:
		return "user"
	case KindMember:
		return "member"
	default:
		return "unknown"
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "user":
		return KindUser, nil
	case "member":
		return KindMember, nil
	default:
		return KindUnknown, fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
}

// Role is the authorization level transported in token claims and API payloads.
type Role string

const (
	// RoleSupervisor is the member role with the highest access level.
	RoleSupervisor Role = "Supervisor"
	// RoleCreator is the member role with write access to the catalog.
	RoleCreator Role = "Creator"
	// RoleUser is the implicit role of every user principal.
	RoleUser Role = "User"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSupervisor, RoleCreator, RoleUser:
		return true
	}
	return false
}

// MemberRole reports whether r may be assigned to a member account.
func (r Role) MemberRole() bool {
	return r == RoleSupervisor || r == RoleCreator
}

var (
	// ErrInvalidKind is returned when a kind string is not recognised.
	ErrInvalidKind = errors.New("invalid principal kind")
	// ErrInvalidPrincipal is returned by Validate for malformed principals.
	ErrInvalidPrincipal = errors.New("invalid principal")
)

// Principal is the identity derived from a validated token.
//
// For KindUser, MemberRole is always empty. For KindMember, MemberRole is
// RoleSupervisor or RoleCreator.
type Principal struct {
	Kind       Kind
	ID         string
	MemberRole Role
}

// User builds a user principal.
func User(id string) Principal {
	return Principal{Kind: KindUser, ID: id}
}

// Member builds a member principal with the given role.
func Member(id string, role Role) Principal {
	return Principal{Kind: KindMember, ID: id, MemberRole: role}
}

// IsUser reports whether p is a user principal.
func (p Principal) IsUser() bool { return p.Kind == KindUser }

// IsMember reports whether p is a member principal.
func (p Principal) IsMember() bool { return p.Kind == KindMember }

// Role returns the effective role: RoleUser for users, the member role otherwise.
func (p Principal) Role() Role {
	switch p.Kind {
	case KindUser:
		return RoleUser
	case KindMember:
		return p.MemberRole
	default:
		return ""
	}
}

// Validate checks the variant invariants.
func (p Principal) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidPrincipal)
	}
	switch p.Kind {
	case KindUser:
		if p.MemberRole != "" {
			return fmt.Errorf("%w: user principal with member role", ErrInvalidPrincipal)
		}
	case KindMember:
		if !p.MemberRole.MemberRole() {
			return fmt.Errorf("%w: member role %q", ErrInvalidPrincipal, p.MemberRole)
		}
	default:
		return fmt.Errorf("%w: kind %d", ErrInvalidPrincipal, p.Kind)
	}
	return nil
}

// Key returns a stable "kind:id" string used to partition per-principal state.
func (p Principal) Key() string {
	return p.Kind.String() + ":" + p.ID
}

// String implements fmt.Stringer for logging.
func (p Principal) String() string {
	if p.Kind == KindMember {
		return p.Key() + "(" + string(p.MemberRole) + ")"
	}
	return p.Key()
}
