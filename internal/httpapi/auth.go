package httpapi

import (
	"errors"
	"net/http"

	gastronomy "github.com/nmezhenskyi/gastronomy-api"
	"github.com/nmezhenskyi/gastronomy-api/jwt"
	"github.com/nmezhenskyi/gastronomy-api/principal"
)

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=50"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=50"`
}

type registerResponse struct {
	User *userView `json:"user"`
	jwt.TokenPair
}

func (s *Server) registerUser(w http.ResponseWriter, r *http.Request) error {
	var req registerRequest
	if err := s.decode(w, r, &req); err != nil {
		return err
	}
	sess, err := s.engine.RegisterUser(r.Context(), gastronomy.RegisterUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if errors.Is(err, gastronomy.ErrAccountExists) {
		return badRequest("User account with this email already exists")
	}
	if err != nil {
		return err
	}
	s.setRefreshCookie(w, userRefreshCookie, sess.Tokens.RefreshToken)
	return ok(w, registerResponse{User: newUserView(sess.User), TokenPair: sess.Tokens})
}

func (s *Server) loginUser(w http.ResponseWriter, r *http.Request) error {
	var req loginRequest
	if err := s.decode(w, r, &req); err != nil {
		return err
	}
	pair, err := s.engine.LoginUser(r.Context(), req.Email, req.Password)
	if errors.Is(err, gastronomy.ErrInvalidCredentials) {
		return notFound("User not found")
	}
	if err != nil {
		return err
	}
	s.setRefreshCookie(w, userRefreshCookie, pair.RefreshToken)
	return ok(w, pair)
}

func (s *Server) loginMember(w http.ResponseWriter, r *http.Request) error {
	var req loginRequest
	if err := s.decode(w, r, &req); err != nil {
		return err
	}
	pair, err := s.engine.LoginMember(r.Context(), req.Email, req.Password)
	if errors.Is(err, gastronomy.ErrInvalidCredentials) {
		return notFound("Member not found")
	}
	if err != nil {
		return err
	}
	s.setRefreshCookie(w, memberRefreshCookie, pair.RefreshToken)
	return ok(w, pair)
}

func (s *Server) refreshUser(w http.ResponseWriter, r *http.Request) error {
	return s.refresh(w, r, principal.KindUser, userRefreshCookie)
}

func (s *Server) refreshMember(w http.ResponseWriter, r *http.Request) error {
	return s.refresh(w, r, principal.KindMember, memberRefreshCookie)
}

// refresh rotates the refresh token named by cookie. A rejected token clears
// the cookie.
func (s *Server) refresh(w http.ResponseWriter, r *http.Request, kind principal.Kind, cookie string) error {
	token := refreshCookie(r, cookie)
	if token == "" {
		return badRequest("Refresh token is missing")
	}
	pair, err := s.engine.Refresh(r.Context(), kind, token)
	if errors.Is(err, gastronomy.ErrRefreshInvalid) {
		s.clearRefreshCookie(w, cookie)
		return err
	}
	if err != nil {
		return err
	}
	s.setRefreshCookie(w, cookie, pair.RefreshToken)
	return ok(w, pair)
}

// logout removes the refresh record named by cookie and clears it. Missing
// cookies and unknown tokens still succeed.
func (s *Server) logout(cookie string) handlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		if token := refreshCookie(r, cookie); token != "" {
			if err := s.engine.Logout(r.Context(), token); err != nil {
				return err
			}
			s.clearRefreshCookie(w, cookie)
		}
		w.WriteHeader(http.StatusOK)
		return nil
	}
}
