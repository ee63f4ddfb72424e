package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	gastronomy "github.com/nmezhenskyi/gastronomy-api"
	"github.com/nmezhenskyi/gastronomy-api/internal/storage"
	"github.com/nmezhenskyi/gastronomy-api/principal"
)

const newestFirst = "created_at DESC, id DESC"

// UserUpdate holds the profile fields a user may change. Nil fields are kept.
type UserUpdate struct {
	Name     *string
	Email    *string
	Location *string
	Photo    *string
}

// MemberUpdate holds the profile fields a member may change. Nil fields are kept.
type MemberUpdate struct {
	FirstName *string
	LastName  *string
	Email     *string
}

// Store persists users and members and implements gastronomy.AccountProvider.
type Store struct {
	users   *storage.Repository[User]
	members *storage.Repository[Member]
}

var _ gastronomy.AccountProvider = (*Store)(nil)

// NewStore binds a Store to db.
func NewStore(db *gorm.DB) *Store {
	return &Store{
		users:   storage.NewRepository[User](db),
		members: storage.NewRepository[Member](db),
	}
}

// Migrate creates the users and members tables.
func Migrate(db *gorm.DB) error {
	return storage.Migrate(db, Models()...)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// translate maps storage errors onto the account sentinels.
func translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return gastronomy.ErrAccountNotFound
	case errors.Is(err, storage.ErrDuplicate):
		return gastronomy.ErrAccountExists
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (u *User) record() *gastronomy.UserRecord {
	return &gastronomy.UserRecord{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.Password,
		Location:     u.Location,
		Photo:        u.Photo,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (m *Member) record() *gastronomy.MemberRecord {
	return &gastronomy.MemberRecord{
		ID:           m.ID,
		FirstName:    m.FirstName,
		LastName:     m.LastName,
		Email:        m.Email,
		PasswordHash: m.Password,
		Role:         principal.Role(m.Role),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// emailCond matches rows using email, other than skipID.
func emailCond(email, skipID string) storage.Cond {
	if skipID == "" {
		return storage.Where("email = ?", email)
	}
	return storage.Where("email = ? AND id <> ?", email, skipID)
}

func (s *Store) CreateUser(ctx context.Context, in gastronomy.CreateUserInput) (*gastronomy.UserRecord, error) {
	email := normalizeEmail(in.Email)
	taken, err := s.users.Exists(ctx, emailCond(email, ""))
	if err != nil {
		return nil, translate("create user", err)
	}
	if taken {
		return nil, gastronomy.ErrAccountExists
	}
	u := &User{
		ID:       uuid.NewString(),
		Name:     in.Name,
		Email:    email,
		Password: in.PasswordHash,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, translate("create user", err)
	}
	return u.record(), nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*gastronomy.UserRecord, error) {
	u, err := s.users.FindOne(ctx, storage.Where("email = ?", normalizeEmail(email)))
	if err != nil {
		return nil, translate("find user", err)
	}
	return u.record(), nil
}

func (s *Store) FindUserByID(ctx context.Context, id string) (*gastronomy.UserRecord, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, translate("find user", err)
	}
	return u.record(), nil
}

func (s *Store) UpdateUserPasswordHash(ctx context.Context, id, hash string) error {
	n, err := s.users.Updates(ctx, id, map[string]any{"password": hash})
	if err != nil {
		return translate("update user password", err)
	}
	if n == 0 {
		return gastronomy.ErrAccountNotFound
	}
	return nil
}

// ListUsers returns users newest first.
func (s *Store) ListUsers(ctx context.Context, offset, limit int) ([]*gastronomy.UserRecord, error) {
	rows, err := s.users.FindMany(ctx, storage.Cond{}, storage.Page{Offset: offset, Limit: limit, Order: newestFirst})
	if err != nil {
		return nil, translate("list users", err)
	}
	out := make([]*gastronomy.UserRecord, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].record())
	}
	return out, nil
}

// UpdateUser applies upd and returns the stored row.
func (s *Store) UpdateUser(ctx context.Context, id string, upd UserUpdate) (*gastronomy.UserRecord, error) {
	values := map[string]any{}
	if upd.Name != nil {
		values["name"] = strings.TrimSpace(*upd.Name)
	}
	if upd.Email != nil {
		email := normalizeEmail(*upd.Email)
		taken, err := s.users.Exists(ctx, emailCond(email, id))
		if err != nil {
			return nil, translate("update user", err)
		}
		if taken {
			return nil, gastronomy.ErrAccountExists
		}
		values["email"] = email
	}
	if upd.Location != nil {
		values["location"] = *upd.Location
	}
	if upd.Photo != nil {
		values["photo"] = *upd.Photo
	}
	if len(values) > 0 {
		n, err := s.users.Updates(ctx, id, values)
		if err != nil {
			return nil, translate("update user", err)
		}
		if n == 0 {
			return nil, gastronomy.ErrAccountNotFound
		}
	}
	return s.FindUserByID(ctx, id)
}

// DeleteUser removes the user row.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	n, err := s.users.DeleteByID(ctx, id)
	if err != nil {
		return translate("delete user", err)
	}
	if n == 0 {
		return gastronomy.ErrAccountNotFound
	}
	return nil
}

func (s *Store) CreateMember(ctx context.Context, in gastronomy.CreateMemberInput) (*gastronomy.MemberRecord, error) {
	if !in.Role.MemberRole() {
		return nil, fmt.Errorf("%w: member role %q", gastronomy.ErrInvalidInput, in.Role)
	}
	email := normalizeEmail(in.Email)
	taken, err := s.members.Exists(ctx, emailCond(email, ""))
	if err != nil {
		return nil, translate("create member", err)
	}
	if taken {
		return nil, gastronomy.ErrAccountExists
	}
	m := &Member{
		ID:        uuid.NewString(),
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     email,
		Password:  in.PasswordHash,
		Role:      string(in.Role),
	}
	if err := s.members.Create(ctx, m); err != nil {
		return nil, translate("create member", err)
	}
	return m.record(), nil
}

func (s *Store) FindMemberByEmail(ctx context.Context, email string) (*gastronomy.MemberRecord, error) {
	m, err := s.members.FindOne(ctx, storage.Where("email = ?", normalizeEmail(email)))
	if err != nil {
		return nil, translate("find member", err)
	}
	return m.record(), nil
}

func (s *Store) FindMemberByID(ctx context.Context, id string) (*gastronomy.MemberRecord, error) {
	m, err := s.members.FindByID(ctx, id)
	if err != nil {
		return nil, translate("find member", err)
	}
	return m.record(), nil
}

func (s *Store) UpdateMemberPasswordHash(ctx context.Context, id, hash string) error {
	n, err := s.members.Updates(ctx, id, map[string]any{"password": hash})
	if err != nil {
		return translate("update member password", err)
	}
	if n == 0 {
		return gastronomy.ErrAccountNotFound
	}
	return nil
}

// ListMembers returns members newest first.
func (s *Store) ListMembers(ctx context.Context, offset, limit int) ([]*gastronomy.MemberRecord, error) {
	rows, err := s.members.FindMany(ctx, storage.Cond{}, storage.Page{Offset: offset, Limit: limit, Order: newestFirst})
	if err != nil {
		return nil, translate("list members", err)
	}
	out := make([]*gastronomy.MemberRecord, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].record())
	}
	return out, nil
}

// UpdateMember applies upd and returns the stored row.
func (s *Store) UpdateMember(ctx context.Context, id string, upd MemberUpdate) (*gastronomy.MemberRecord, error) {
	values := map[string]any{}
	if upd.FirstName != nil {
		values["first_name"] = strings.TrimSpace(*upd.FirstName)
	}
	if upd.LastName != nil {
		values["last_name"] = strings.TrimSpace(*upd.LastName)
	}
	if upd.Email != nil {
		email := normalizeEmail(*upd.Email)
		taken, err := s.members.Exists(ctx, emailCond(email, id))
		if err != nil {
			return nil, translate("update member", err)
		}
		if taken {
			return nil, gastronomy.ErrAccountExists
		}
		values["email"] = email
	}
	if len(values) > 0 {
		n, err := s.members.Updates(ctx, id, values)
		if err != nil {
			return nil, translate("update member", err)
		}
		if n == 0 {
			return nil, gastronomy.ErrAccountNotFound
		}
	}
	return s.FindMemberByID(ctx, id)
}

// SetMemberRole changes a member's role. The change reaches tokens on the
// member's next refresh.
func (s *Store) SetMemberRole(ctx context.Context, id string, role principal.Role) error {
	if !role.MemberRole() {
		return fmt.Errorf("%w: member role %q", gastronomy.ErrInvalidInput, role)
	}
	n, err := s.members.Updates(ctx, id, map[string]any{"role": string(role)})
	if err != nil {
		return translate("set member role", err)
	}
	if n == 0 {
		return gastronomy.ErrAccountNotFound
	}
	return nil
}

// DeleteMember removes the member row.
func (s *Store) DeleteMember(ctx context.Context, id string) error {
	n, err := s.members.DeleteByID(ctx, id)
	if err != nil {
		return translate("delete member", err)
	}
	if n == 0 {
		return gastronomy.ErrAccountNotFound
	}
	return nil
}

// PrincipalExists reports whether the account behind p exists. A member whose
// stored role differs from p's still exists.
func (s *Store) PrincipalExists(ctx context.Context, p principal.Principal) (bool, error) {
	switch p.Kind {
	case principal.KindUser:
		return s.users.Exists(ctx, storage.Where("id = ?", p.ID))
	case principal.KindMember:
		return s.members.Exists(ctx, storage.Where("id = ?", p.ID))
	}
	return false, nil
}
