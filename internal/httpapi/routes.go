package httpapi

import (
	"net/http"

	"github.com/nmezhenskyi/gastronomy-api/internal/catalog"
	"github.com/nmezhenskyi/gastronomy-api/middleware"
)

func (s *Server) routes(metrics http.Handler) {
	user := middleware.RequireUser(s.engine)
	staff := middleware.RequireStaff(s.engine)
	supervisor := middleware.RequireSupervisor(s.engine)

	s.handle("GET /{$}", s.root)
	s.handle("GET /ping", s.ping)
	if metrics != nil && s.cfg.Metrics.Path != "" {
		s.mux.Handle("GET "+s.cfg.Metrics.Path, metrics)
	}

	s.handle("POST /user/register", s.registerUser)
	s.handle("POST /user/login", s.loginUser)
	s.handle("GET /user/logout", s.logout(userRefreshCookie))
	s.handle("GET /user/refresh", s.refreshUser)
	s.handle("GET /user/profile", s.getUserProfile, user)
	s.handle("PUT /user/profile", s.updateUserProfile, user)
	s.handle("DELETE /user/profile", s.deleteUserProfile, user)
	s.handle("GET /user/cocktail-reviews", s.ownReviews(catalog.KindCocktail, "No cocktail reviews were found"), user)
	s.handle("GET /user/meal-reviews", s.ownReviews(catalog.KindMeal, "No meal reviews were found"), user)

	s.handle("POST /member/login", s.loginMember)
	s.handle("GET /member/refresh", s.refreshMember)
	s.handle("GET /member/logout", s.logout(memberRefreshCookie))
	s.handle("POST /member", s.createMember, supervisor)
	s.handle("GET /member/profile", s.getMemberProfile, staff)
	s.handle("PUT /member/profile", s.updateMemberProfile, staff)
	s.handle("DELETE /member/profile", s.deleteMemberProfile, staff)
	s.handle("DELETE /member/{id}", s.deleteMember, supervisor)
	s.handle("GET /member/members", s.listMembers, supervisor)
	s.handle("GET /member/members/{id}", s.getMember, supervisor)
	s.handle("GET /member/members/users", s.listUsers, supervisor)
	s.handle("GET /member/members/users/{id}", s.getUser, supervisor)

	s.handle("GET /ingredients", s.listIngredients)
	s.handle("GET /ingredients/{id}", s.getIngredient)
	s.handle("POST /ingredients", s.createIngredient, staff)
	s.handle("PUT /ingredients/{id}", s.updateIngredient, staff)
	s.handle("DELETE /ingredients/{id}", s.deleteIngredient, staff)

	mountRecipes(s, recipeAPI[catalog.CocktailInput, catalog.CocktailUpdate, catalog.Cocktail]{
		kind:   catalog.KindCocktail,
		prefix: "/cocktails",
		title:  "Cocktail",
		plural: "cocktails",
		list:   s.catalog.ListCocktails,
		get:    s.catalog.GetCocktail,
		create: s.catalog.CreateCocktail,
		update: s.catalog.UpdateCocktail,
		remove: s.catalog.DeleteCocktail,
	}, staff, user)
	mountRecipes(s, recipeAPI[catalog.MealInput, catalog.MealUpdate, catalog.Meal]{
		kind:   catalog.KindMeal,
		prefix: "/meals",
		title:  "Meal",
		plural: "meals",
		list:   s.catalog.ListMeals,
		get:    s.catalog.GetMeal,
		create: s.catalog.CreateMeal,
		update: s.catalog.UpdateMeal,
		remove: s.catalog.DeleteMeal,
	}, staff, user)

	s.handle("/", func(http.ResponseWriter, *http.Request) error {
		return notFound("Not found")
	})
}

func (s *Server) root(w http.ResponseWriter, _ *http.Request) error {
	return ok(w, map[string]string{"documentation": s.cfg.HTTP.Documentation})
}

func (s *Server) ping(w http.ResponseWriter, _ *http.Request) error {
	return ok(w, map[string]bool{"success": true})
}
