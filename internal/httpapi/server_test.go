package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gastronomy "github.com/nmezhenskyi/gastronomy-api"
	"github.com/nmezhenskyi/gastronomy-api/internal/catalog"
	"github.com/nmezhenskyi/gastronomy-api/internal/enginetest"
	"github.com/nmezhenskyi/gastronomy-api/internal/httpapi"
	"github.com/nmezhenskyi/gastronomy-api/internal/rate"
	"github.com/nmezhenskyi/gastronomy-api/metrics/export/prometheus"
	"github.com/nmezhenskyi/gastronomy-api/principal"
)

type apiTest struct {
	t   *testing.T
	h   *enginetest.Harness
	srv *httpapi.Server
}

type errorBody struct {
	Error   string   `json:"error"`
	Details []string `json:"details"`
}

type tokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func newAPI(t *testing.T, limit int) *apiTest {
	t.Helper()
	h := enginetest.New(t, enginetest.Options{Models: catalog.Models()})

	opts := httpapi.Options{
		Engine:   h.Engine,
		Accounts: h.Accounts,
		Catalog:  catalog.New(h.DB),
		Metrics:  prometheus.NewExporter(h.Engine).Handler(),
	}
	if limit > 0 {
		store, err := rate.NewMemoryStore(rate.MemoryStoreConfig{Now: h.Clock.Now})
		require.NoError(t, err)
		t.Cleanup(store.Close)
		limiter, err := rate.New(store, rate.Config{Limit: limit, Window: rate.DefaultWindow, Now: h.Clock.Now})
		require.NoError(t, err)
		opts.Limiter = limiter
	}
	srv, err := httpapi.New(opts)
	require.NoError(t, err)
	return &apiTest{t: t, h: h, srv: srv}
}

func (a *apiTest) do(method, path string, body any, token string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	a.srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

func cookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (a *apiTest) register(email string) (tokenPair, *http.Cookie) {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/user/register", map[string]string{
		"name": "Ann", "email": email, "password": enginetest.Password,
	}, "")
	require.Equal(a.t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[tokenPair](a.t, rec), cookie(rec, "userRefreshToken")
}

func TestRegisterLoginAndProfile(t *testing.T) {
	a := newAPI(t, 0)

	pair, refresh := a.register("ann@example.com")
	require.NotNil(t, refresh)
	assert.True(t, refresh.HttpOnly)
	assert.Equal(t, int((14 * 24 * time.Hour).Seconds()), refresh.MaxAge)
	assert.Equal(t, pair.RefreshToken, refresh.Value)

	rec := a.do(http.MethodGet, "/user/profile", nil, pair.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	profile := decode[map[string]any](t, rec)
	assert.Equal(t, "ann@example.com", profile["email"])
	assert.NotContains(t, rec.Body.String(), "password")

	rec = a.do(http.MethodGet, "/user/profile", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "not authorized", decode[errorBody](t, rec).Error)

	rec = a.do(http.MethodPost, "/user/register", map[string]string{
		"name": "Ann", "email": "ann@example.com", "password": enginetest.Password,
	}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "User account with this email already exists", decode[errorBody](t, rec).Error)

	rec = a.do(http.MethodPost, "/user/login", map[string]string{"email": "ann@example.com", "password": enginetest.Password}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotNil(t, cookie(rec, "userRefreshToken"))

	wrong := a.do(http.MethodPost, "/user/login", map[string]string{"email": "ann@example.com", "password": "wrong-password"}, "")
	unknown := a.do(http.MethodPost, "/user/login", map[string]string{"email": "bob@example.com", "password": "wrong-password"}, "")
	assert.Equal(t, http.StatusNotFound, wrong.Code)
	assert.Equal(t, wrong.Code, unknown.Code)
	assert.Equal(t, wrong.Body.String(), unknown.Body.String())
}

func TestRegisterValidation(t *testing.T) {
	a := newAPI(t, 0)

	rec := a.do(http.MethodPost, "/user/register", map[string]string{"name": "Ann", "email": "not-an-email", "password": "123"}, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Equal(t, "Invalid data in the request body", body.Error)
	assert.Contains(t, body.Details, "email failed email")
	assert.Contains(t, body.Details, "password failed min=6")

	req := httptest.NewRequest(http.MethodPost, "/user/register", strings.NewReader("{"))
	rr := httptest.NewRecorder()
	a.srv.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRefreshRotationAndLogout(t *testing.T) {
	a := newAPI(t, 0)
	_, first := a.register("ann@example.com")

	rec := a.do(http.MethodGet, "/user/refresh", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Refresh token is missing", decode[errorBody](t, rec).Error)

	rec = a.do(http.MethodGet, "/user/refresh", nil, "", first)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	second := cookie(rec, "userRefreshToken")
	require.NotNil(t, second)
	assert.NotEqual(t, first.Value, second.Value)
	assert.NotEmpty(t, decode[tokenPair](t, rec).AccessToken)

	rec = a.do(http.MethodGet, "/user/refresh", nil, "", first)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(http.MethodGet, "/user/logout", nil, "", second)
	require.Equal(t, http.StatusOK, rec.Code)
	cleared := cookie(rec, "userRefreshToken")
	require.NotNil(t, cleared)
	assert.Less(t, cleared.MaxAge, 0)

	rec = a.do(http.MethodGet, "/user/refresh", nil, "", second)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/user/logout", nil, "").Code)
	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/user/logout", nil, "", second).Code)
}

func TestExpiredAccessToken(t *testing.T) {
	a := newAPI(t, 0)
	pair, _ := a.register("ann@example.com")

	a.h.Clock.Advance(29 * time.Minute)
	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/user/profile", nil, pair.AccessToken).Code)

	a.h.Clock.Advance(2 * time.Minute)
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/user/profile", nil, pair.AccessToken).Code)
}

func TestRoleEnforcement(t *testing.T) {
	a := newAPI(t, 0)
	user, _ := a.register("ann@example.com")
	_, creator := a.h.Member(t, "creator@example.com", principal.RoleCreator)
	_, supervisor := a.h.Member(t, "boss@example.com", principal.RoleSupervisor)

	cocktail := map[string]string{"name": "Daiquiri", "method": "Shake."}
	rec := a.do(http.MethodPost, "/cocktails", cocktail, user.AccessToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "You do not have permission to access this resource", decode[errorBody](t, rec).Error)

	assert.Equal(t, http.StatusCreated, a.do(http.MethodPost, "/cocktails", cocktail, creator.AccessToken).Code)
	assert.Equal(t, http.StatusCreated, a.do(http.MethodPost, "/cocktails", cocktail, supervisor.AccessToken).Code)

	member := map[string]string{"firstName": "New", "lastName": "Creator", "email": "new@example.com", "password": enginetest.Password}
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPost, "/member", member, creator.AccessToken).Code)
	rec = a.do(http.MethodPost, "/member", member, supervisor.AccessToken)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Creator", decode[map[string]any](t, rec)["role"])

	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPost, "/cocktails/x/reviews", map[string]any{"rating": 5, "review": "ok"}, creator.AccessToken).Code)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, "/member/members", nil, creator.AccessToken).Code)
	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/member/members", nil, supervisor.AccessToken).Code)
}

func TestMemberSessionsAndDeletion(t *testing.T) {
	a := newAPI(t, 0)
	ctx := context.Background()
	creator, _ := a.h.Member(t, "creator@example.com", principal.RoleCreator)
	other, _ := a.h.Member(t, "other@example.com", principal.RoleSupervisor)
	_, supervisor := a.h.Member(t, "boss@example.com", principal.RoleSupervisor)

	rec := a.do(http.MethodPost, "/member/login", map[string]string{"email": "creator@example.com", "password": enginetest.Password}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	memberCookie := cookie(rec, "memberRefreshToken")
	require.NotNil(t, memberCookie)

	rec = a.do(http.MethodPost, "/member/login", map[string]string{"email": "creator@example.com", "password": "wrong-password"}, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Member not found", decode[errorBody](t, rec).Error)

	require.NoError(t, a.h.Accounts.SetMemberRole(ctx, creator.ID, principal.RoleSupervisor))
	rec = a.do(http.MethodGet, "/member/refresh", nil, "", memberCookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	promoted := decode[tokenPair](t, rec)
	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/member/members", nil, promoted.AccessToken).Code)
	require.NoError(t, a.h.Accounts.SetMemberRole(ctx, creator.ID, principal.RoleCreator))

	assert.Equal(t, http.StatusForbidden, a.do(http.MethodDelete, "/member/"+other.ID, nil, supervisor.AccessToken).Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodDelete, "/member/missing", nil, supervisor.AccessToken).Code)

	rec = a.do(http.MethodDelete, "/member/"+creator.ID, nil, supervisor.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Member "+creator.ID+" has been deleted", decode[map[string]string](t, rec)["message"])

	n, err := a.h.Engine.SessionCount(ctx, creator.Principal())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUserProfileUpdateAndDelete(t *testing.T) {
	a := newAPI(t, 0)
	a.register("taken@example.com")
	pair, _ := a.register("ann@example.com")

	rec := a.do(http.MethodPut, "/user/profile", map[string]string{"location": "Toronto", "password": "new-password"}, pair.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Toronto", decode[map[string]any](t, rec)["location"])

	rec = a.do(http.MethodPost, "/user/login", map[string]string{"email": "ann@example.com", "password": "new-password"}, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(http.MethodPut, "/user/profile", map[string]string{"email": "taken@example.com"}, pair.AccessToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodDelete, "/user/profile", nil, pair.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/user/profile", nil, pair.AccessToken).Code)
}

func TestCatalogFlow(t *testing.T) {
	a := newAPI(t, 0)
	user, _ := a.register("ann@example.com")
	_, creator := a.h.Member(t, "creator@example.com", principal.RoleCreator)

	rec := a.do(http.MethodGet, "/meals", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "No meals were found", decode[errorBody](t, rec).Error)

	rec = a.do(http.MethodPost, "/cocktails", map[string]string{"name": "Daiquiri"}, creator.AccessToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodPost, "/cocktails", map[string]string{"name": "Daiquiri", "method": "Shake."}, creator.AccessToken)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[catalog.Cocktail](t, rec).ID

	rec = a.do(http.MethodPut, "/cocktails/"+id+"/ingredients", map[string]string{"category": "Spirit", "name": "Rum", "amount": "60 ml"}, creator.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = a.do(http.MethodPut, "/cocktails/"+id+"/ingredients", map[string]string{"amount": "60 ml"}, creator.AccessToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodGet, "/cocktails/"+id, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[catalog.Cocktail](t, rec)
	require.Len(t, got.Ingredients, 1)
	assert.Equal(t, "60 ml", got.Ingredients[0].Amount)

	review := map[string]any{"rating": 0, "review": "Too sour"}
	assert.Equal(t, http.StatusCreated, a.do(http.MethodPost, "/cocktails/"+id+"/reviews", review, user.AccessToken).Code)
	rec = a.do(http.MethodPost, "/cocktails/"+id+"/reviews", review, user.AccessToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Review already exists", decode[errorBody](t, rec).Error)
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPut, "/cocktails/"+id+"/reviews", map[string]any{"rating": 9}, user.AccessToken).Code)

	rec = a.do(http.MethodGet, "/user/cocktail-reviews", nil, user.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]catalog.Review](t, rec), 1)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/user/meal-reviews", nil, user.AccessToken).Code)

	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/cocktails/"+id+"/reviews", nil, "").Code)
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, "/cocktails?limit=-1", nil, "").Code)

	rec = a.do(http.MethodDelete, "/cocktails/"+id, nil, creator.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = a.do(http.MethodGet, "/cocktails/"+id, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Cocktail not found", decode[errorBody](t, rec).Error)
}

func TestRateLimit(t *testing.T) {
	a := newAPI(t, 15)

	for i := 0; i < 15; i++ {
		require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/ping", nil, "").Code, "request %d", i+1)
	}
	rec := a.do(http.MethodGet, "/ping", nil, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Too many requests, please try again later", decode[errorBody](t, rec).Error)
	assert.Equal(t, "59", rec.Header().Get("Retry-After"))
	assert.Equal(t, uint64(1), a.h.Engine.Metrics().Value(gastronomy.MetricRateLimitHit))

	a.h.Clock.Advance(time.Minute)
	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/ping", nil, "").Code)
}

func TestMiscRoutes(t *testing.T) {
	a := newAPI(t, 0)

	rec := a.do(http.MethodGet, "/ping", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode[map[string]bool](t, rec)["success"])

	rec = a.do(http.MethodGet, "/no/such/route", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not found", decode[errorBody](t, rec).Error)

	a.register("ann@example.com")
	rec = a.do(http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gastronomy_register_total 1")
}
