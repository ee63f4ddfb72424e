package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	gastronomy "github.com/nmezhenskyi/gastronomy-api"
	"github.com/nmezhenskyi/gastronomy-api/internal/accounts"
	"github.com/nmezhenskyi/gastronomy-api/internal/catalog"
	"github.com/nmezhenskyi/gastronomy-api/middleware"
)

const (
	userRefreshCookie   = "userRefreshToken"
	memberRefreshCookie = "memberRefreshToken"

	defaultPageLimit   = 50
	defaultMemberLimit = 10
)

// Options wires a Server.
type Options struct {
	Engine   *gastronomy.Engine
	Accounts *accounts.Store
	Catalog  *catalog.Service
	// Limiter guards every route. Nil disables rate limiting.
	Limiter middleware.Limiter
	// Metrics is mounted at the configured metrics path when non-nil.
	Metrics http.Handler
	Logger  *zap.Logger
}

// Server is the REST API.
type Server struct {
	engine   *gastronomy.Engine
	accounts *accounts.Store
	catalog  *catalog.Service
	cfg      gastronomy.Config
	validate *validator.Validate
	logger   *zap.Logger

	mux     *http.ServeMux
	handler http.Handler
}

// handlerFunc is an HTTP handler whose error is written by Server.fail.
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// New builds the routes and middleware chain.
func New(opts Options) (*Server, error) {
	if opts.Engine == nil || opts.Accounts == nil || opts.Catalog == nil {
		return nil, errors.New("httpapi: engine, accounts and catalog are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		engine:   opts.Engine,
		accounts: opts.Accounts,
		catalog:  opts.Catalog,
		cfg:      opts.Engine.Config(),
		validate: newValidator(),
		logger:   logger,
		mux:      http.NewServeMux(),
	}
	s.routes(opts.Metrics)

	mws := []func(http.Handler) http.Handler{
		middleware.Recover(logger),
		middleware.ClientAddress(s.cfg.HTTP.TrustProxyHeaders),
		middleware.AccessLog(logger),
		middleware.CORS(s.cfg.HTTP.ClientURL),
	}
	if opts.Limiter != nil {
		mws = append(mws, middleware.RateLimit(opts.Limiter, middleware.RateLimitOptions{
			Engine:            opts.Engine,
			RetryAfterSeconds: int(s.cfg.RateLimit.Window.Round(time.Second).Seconds()),
		}))
	}
	s.handler = middleware.Chain(s.mux, mws...)
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// handle registers h under pattern behind mws.
func (s *Server) handle(pattern string, h handlerFunc, mws ...func(http.Handler) http.Handler) {
	fn := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			s.fail(w, r, err)
		}
	})
	s.mux.Handle(pattern, middleware.Chain(fn, mws...))
}

// decode reads a JSON body into v and validates it.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	body := r.Body
	if limit := s.cfg.HTTP.MaxRequestBodySize; limit > 0 {
		body = http.MaxBytesReader(w, r.Body, limit)
	}
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return badRequest(msgInvalidBody, "malformed JSON body")
	}
	return s.validate.Struct(v)
}

// page reads offset and limit query parameters.
func page(r *http.Request, defaultLimit int) (catalog.Page, error) {
	p := catalog.Page{Limit: defaultLimit}
	q := r.URL.Query()
	for _, f := range []struct {
		name string
		dst  *int
	}{{"offset", &p.Offset}, {"limit", &p.Limit}} {
		raw := q.Get(f.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return catalog.Page{}, badRequest("Invalid query parameters", f.name+" must be a non-negative integer")
		}
		*f.dst = n
	}
	return p, nil
}

func (s *Server) setRefreshCookie(w http.ResponseWriter, name, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.cfg.JWT.RefreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.cfg.HTTP.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearRefreshCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.HTTP.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func refreshCookie(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

type message struct {
	Message string `json:"message"`
}

func ok(w http.ResponseWriter, v any) error {
	middleware.WriteJSON(w, http.StatusOK, v)
	return nil
}

func created(w http.ResponseWriter, v any) error {
	middleware.WriteJSON(w, http.StatusCreated, v)
	return nil
}

// nonEmpty answers 404 with msg for an empty list.
func nonEmpty[T any](w http.ResponseWriter, items []T, msg string) error {
	if len(items) == 0 {
		return notFound(msg)
	}
	return ok(w, items)
}
