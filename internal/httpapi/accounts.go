package httpapi

import (
	"errors"
	"net/http"
	"time"

	gastronomy "github.com/nmezhenskyi/gastronomy-api"
	"github.com/nmezhenskyi/gastronomy-api/internal/accounts"
	"github.com/nmezhenskyi/gastronomy-api/middleware"
	"github.com/nmezhenskyi/gastronomy-api/principal"
)

type userView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Location  string    `json:"location,omitempty"`
	Photo     string    `json:"photo,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func newUserView(u *gastronomy.UserRecord) *userView {
	return &userView{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Location:  u.Location,
		Photo:     u.Photo,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type memberView struct {
	ID        string         `json:"id"`
	FirstName string         `json:"firstName"`
	LastName  string         `json:"lastName"`
	Email     string         `json:"email"`
	Role      principal.Role `json:"role"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

func newMemberView(m *gastronomy.MemberRecord) *memberView {
	return &memberView{
		ID:        m.ID,
		FirstName: m.FirstName,
		LastName:  m.LastName,
		Email:     m.Email,
		Role:      m.Role,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

type updateUserRequest struct {
	Name     *string `json:"name" validate:"omitempty,max=255"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Password *string `json:"password" validate:"omitempty,min=6,max=50"`
	Location *string `json:"location" validate:"omitempty,max=255"`
	Photo    *string `json:"photo" validate:"omitempty,max=512"`
}

type createMemberRequest struct {
	FirstName string `json:"firstName" validate:"required,max=50"`
	LastName  string `json:"lastName" validate:"required,max=50"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6,max=50"`
}

type updateMemberRequest struct {
	FirstName *string `json:"firstName" validate:"omitempty,max=50"`
	LastName  *string `json:"lastName" validate:"omitempty,max=50"`
	Email     *string `json:"email" validate:"omitempty,email"`
	Password  *string `json:"password" validate:"omitempty,min=6,max=50"`
}

// caller returns the principal attached by the route's authorization
// middleware.
func caller(r *http.Request) principal.Principal {
	p, _ := middleware.PrincipalFromContext(r.Context())
	return p
}

func accountError(err error, missing, taken string) error {
	switch {
	case errors.Is(err, gastronomy.ErrAccountNotFound):
		return notFound(missing)
	case errors.Is(err, gastronomy.ErrAccountExists):
		return badRequest(taken)
	}
	return err
}

func (s *Server) getUserProfile(w http.ResponseWriter, r *http.Request) error {
	u, err := s.accounts.FindUserByID(r.Context(), caller(r).ID)
	if err != nil {
		return accountError(err, "User not found", "")
	}
	return ok(w, newUserView(u))
}

func (s *Server) updateUserProfile(w http.ResponseWriter, r *http.Request) error {
	var req updateUserRequest
	if err := s.decode(w, r, &req); err != nil {
		return err
	}
	ctx := r.Context()
	id := caller(r).ID

	if req.Password != nil {
		hash, err := s.engine.HashPassword(*req.Password)
		if err != nil {
			return err
		}
		if err := s.accounts.UpdateUserPasswordHash(ctx, id, hash); err != nil {
			return accountError(err, "User not found", "")
		}
	}
	u, err := s.accounts.UpdateUser(ctx, id, accounts.UserUpdate{
		Name:     req.Name,
		Email:    req.Email,
		Location: req.Location,
		Photo:    req.Photo,
	})
	if err != nil {
		return accountError(err, "User not found", "User account with this email already exists")
	}
	return ok(w, newUserView(u))
}

// deleteUserProfile revokes every session of the caller, removes their
// reviews and then the account.
func (s *Server) deleteUserProfile(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	p := caller(r)
	if _, err := s.engine.RevokePrincipalSessions(ctx, p); err != nil {
		return err
	}
	if _, err := s.catalog.DeleteUserReviews(ctx, p.ID); err != nil {
		return err
	}
	if err := s.accounts.DeleteUser(ctx, p.ID); err != nil {
		return accountError(err, "User not found", "")
	}
	s.clearRefreshCookie(w, userRefreshCookie)
	return ok(w, message{Message: "User " + p.ID + " has been deleted"})
}

func (s *Server) createMember(w http.ResponseWriter, r *http.Request) error {
	var req createMemberRequest
	if err := s.decode(w, r, &req); err != nil {
		return err
	}
	m, err := s.engine.CreateMember(r.Context(), gastronomy.NewMemberInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
		Role:      principal.RoleCreator,
	})
	if err != nil {
		return accountError(err, "Member not found", "Member account with this email already exists")
	}
	return created(w, newMemberView(m))
}

func (s *Server) getMemberProfile(w http.ResponseWriter, r *http.Request) error {
	m, err := s.accounts.FindMemberByID(r.Context(), caller(r).ID)
	if err != nil {
		return accountError(err, "Member not found", "")
	}
	return ok(w, newMemberView(m))
}

func (s *Server) updateMemberProfile(w http.ResponseWriter, r *http.Request) error {
	var req updateMemberRequest
	if err := s.decode(w, r, &req); err != nil {
		return err
	}
	ctx := r.Context()
	id := caller(r).ID

	if req.Password != nil {
		hash, err := s.engine.HashPassword(*req.Password)
		if err != nil {
			return err
		}
		if err := s.accounts.UpdateMemberPasswordHash(ctx, id, hash); err != nil {
			return accountError(err, "Member not found", "")
		}
	}
	m, err := s.accounts.UpdateMember(ctx, id, accounts.MemberUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
	})
	if err != nil {
		return accountError(err, "Member not found", "Member account with this email already exists")
	}
	return ok(w, newMemberView(m))
}

func (s *Server) deleteMemberProfile(w http.ResponseWriter, r *http.Request) error {
	if err := s.removeMember(r, caller(r)); err != nil {
		return err
	}
	s.clearRefreshCookie(w, memberRefreshCookie)
	return ok(w, message{Message: "Member " + caller(r).ID + " has been deleted"})
}

// deleteMember lets a supervisor delete a creator or itself. Other
// supervisors are off limits.
func (s *Server) deleteMember(w http.ResponseWriter, r *http.Request) error {
	self := caller(r)
	id := r.PathValue("id")
	if id == self.ID {
		return s.deleteMemberProfile(w, r)
	}

	target, err := s.accounts.FindMemberByID(r.Context(), id)
	if err != nil {
		return accountError(err, "Member not found", "")
	}
	if target.Role == principal.RoleSupervisor {
		s.engine.ReportAccessDenied(r.Context(), self, "delete supervisor")
		return forbidden()
	}
	if err := s.removeMember(r, target.Principal()); err != nil {
		return err
	}
	return ok(w, message{Message: "Member " + target.ID + " has been deleted"})
}

func (s *Server) removeMember(r *http.Request, p principal.Principal) error {
	if _, err := s.engine.RevokePrincipalSessions(r.Context(), p); err != nil {
		return err
	}
	if err := s.accounts.DeleteMember(r.Context(), p.ID); err != nil {
		return accountError(err, "Member not found", "")
	}
	return nil
}

func (s *Server) listMembers(w http.ResponseWriter, r *http.Request) error {
	pg, err := page(r, defaultMemberLimit)
	if err != nil {
		return err
	}
	members, err := s.accounts.ListMembers(r.Context(), pg.Offset, pg.Limit)
	if err != nil {
		return err
	}
	views := make([]*memberView, 0, len(members))
	for _, m := range members {
		views = append(views, newMemberView(m))
	}
	return nonEmpty(w, views, "No members were found")
}

func (s *Server) getMember(w http.ResponseWriter, r *http.Request) error {
	m, err := s.accounts.FindMemberByID(r.Context(), r.PathValue("id"))
	if err != nil {
		return accountError(err, "Member not found", "")
	}
	return ok(w, newMemberView(m))
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) error {
	pg, err := page(r, defaultPageLimit)
	if err != nil {
		return err
	}
	users, err := s.accounts.ListUsers(r.Context(), pg.Offset, pg.Limit)
	if err != nil {
		return err
	}
	views := make([]*userView, 0, len(users))
	for _, u := range users {
		views = append(views, newUserView(u))
	}
	return nonEmpty(w, views, "No users were found")
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) error {
	u, err := s.accounts.FindUserByID(r.Context(), r.PathValue("id"))
	if err != nil {
		return accountError(err, "User not found", "")
	}
	return ok(w, newUserView(u))
}
