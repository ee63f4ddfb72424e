package gastronomy

import (
	"context"
	"time"

	"github.com/nmezhenskyi/gastronomy-api/jwt"
	"github.com/nmezhenskyi/gastronomy-api/principal"
)

// UserRecord is a catalog user as seen by the Engine.
type UserRecord struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Location     string
	Photo        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal returns the user principal for r.
func (r *UserRecord) Principal() principal.Principal { return principal.User(r.ID) }

// MemberRecord is a staff member as seen by the Engine.
type MemberRecord struct {
	ID           string
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	Role         principal.Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal returns the member principal for r.
func (r *MemberRecord) Principal() principal.Principal { return principal.Member(r.ID, r.Role) }

// CreateUserInput is passed to AccountProvider.CreateUser with the password
// already hashed.
type CreateUserInput struct {
	Name         string
	Email        string
	PasswordHash string
}

// CreateMemberInput is passed to AccountProvider.CreateMember with the password
// already hashed.
type CreateMemberInput struct {
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	Role         principal.Role
}

// RegisterUserInput is the public registration request.
type RegisterUserInput struct {
	Name     string
	Email    string
	Password string
}

// NewMemberInput is the public member creation request.
type NewMemberInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	Role      principal.Role
}

// UserSession is returned by RegisterUser.
type UserSession struct {
	User   *UserRecord
	Tokens jwt.TokenPair
}

// AccountProvider is the persistence collaborator for users and members.
//
// Lookups return ErrAccountNotFound for missing rows; Create* return
// ErrAccountExists for a duplicate email.
type AccountProvider interface {
	CreateUser(ctx context.Context, in CreateUserInput) (*UserRecord, error)
	FindUserByEmail(ctx context.Context, email string) (*UserRecord, error)
	FindUserByID(ctx context.Context, id string) (*UserRecord, error)
	UpdateUserPasswordHash(ctx context.Context, id, hash string) error

	CreateMember(ctx context.Context, in CreateMemberInput) (*MemberRecord, error)
	FindMemberByEmail(ctx context.Context, email string) (*MemberRecord, error)
	FindMemberByID(ctx context.Context, id string) (*MemberRecord, error)
	UpdateMemberPasswordHash(ctx context.Context, id, hash string) error

	// PrincipalExists backs refresh-token ownership checks.
	PrincipalExists(ctx context.Context, p principal.Principal) (bool, error)
}
