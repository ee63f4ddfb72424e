package httpapi

import (
	"context"
	"net/http"

	"github.com/nmezhenskyi/gastronomy-api/internal/catalog"
)

func (s *Server) listIngredients(w http.ResponseWriter, r *http.Request) error {
	pg, err := page(r, defaultPageLimit)
	if err != nil {
		return err
	}
	items, err := s.catalog.ListIngredients(r.Context(), r.URL.Query().Get("category"), pg)
	if err != nil {
		return err
	}
	return nonEmpty(w, items, "No ingredients were found")
}

func (s *Server) getIngredient(w http.ResponseWriter, r *http.Request) error {
	ing, err := s.catalog.GetIngredient(r.Context(), r.PathValue("id"))
	if err != nil {
		return err
	}
	return ok(w, ing)
}

func (s *Server) createIngredient(w http.ResponseWriter, r *http.Request) error {
	var in catalog.IngredientInput
	if err := s.decode(w, r, &in); err != nil {
		return err
	}
	ing, err := s.catalog.CreateIngredient(r.Context(), in)
	if err != nil {
		return err
	}
	return created(w, ing)
}

func (s *Server) updateIngredient(w http.ResponseWriter, r *http.Request) error {
	var upd catalog.IngredientUpdate
	if err := s.decode(w, r, &upd); err != nil {
		return err
	}
	ing, err := s.catalog.UpdateIngredient(r.Context(), r.PathValue("id"), upd)
	if err != nil {
		return err
	}
	return ok(w, ing)
}

func (s *Server) deleteIngredient(w http.ResponseWriter, r *http.Request) error {
	id := r.PathValue("id")
	if err := s.catalog.DeleteIngredient(r.Context(), id); err != nil {
		return err
	}
	return ok(w, message{Message: "Ingredient " + id + " has been deleted"})
}

// recipeAPI binds the catalog operations of one recipe kind to its routes.
type recipeAPI[In, Upd, Out any] struct {
	kind   catalog.Kind
	prefix string
	title  string
	plural string

	list   func(ctx context.Context, name string, p catalog.Page) ([]Out, error)
	get    func(ctx context.Context, id string) (*Out, error)
	create func(ctx context.Context, in In) (*Out, error)
	update func(ctx context.Context, id string, upd Upd) (*Out, error)
	remove func(ctx context.Context, id string) error
}

func mountRecipes[In, Upd, Out any](s *Server, api recipeAPI[In, Upd, Out], staff, user func(http.Handler) http.Handler) {
	p := api.prefix

	s.handle("GET "+p, func(w http.ResponseWriter, r *http.Request) error {
		pg, err := page(r, defaultPageLimit)
		if err != nil {
			return err
		}
		items, err := api.list(r.Context(), r.URL.Query().Get("name"), pg)
		if err != nil {
			return err
		}
		return nonEmpty(w, items, "No "+api.plural+" were found")
	})
	s.handle("GET "+p+"/{id}", func(w http.ResponseWriter, r *http.Request) error {
		out, err := api.get(r.Context(), r.PathValue("id"))
		if err != nil {
			return err
		}
		return ok(w, out)
	})
	s.handle("POST "+p, func(w http.ResponseWriter, r *http.Request) error {
		var in In
		if err := s.decode(w, r, &in); err != nil {
			return err
		}
		out, err := api.create(r.Context(), in)
		if err != nil {
			return err
		}
		return created(w, out)
	}, staff)
	s.handle("PUT "+p+"/{id}", func(w http.ResponseWriter, r *http.Request) error {
		var upd Upd
		if err := s.decode(w, r, &upd); err != nil {
			return err
		}
		out, err := api.update(r.Context(), r.PathValue("id"), upd)
		if err != nil {
			return err
		}
		return ok(w, out)
	}, staff)
	s.handle("DELETE "+p+"/{id}", func(w http.ResponseWriter, r *http.Request) error {
		id := r.PathValue("id")
		if err := api.remove(r.Context(), id); err != nil {
			return err
		}
		return ok(w, message{Message: api.title + " " + id + " has been deleted"})
	}, staff)

	s.handle("PUT "+p+"/{id}/ingredients", func(w http.ResponseWriter, r *http.Request) error {
		var in catalog.IngredientLink
		if err := s.decode(w, r, &in); err != nil {
			return err
		}
		if in.IngredientID == "" && (in.Category == "" || in.Name == "") {
			return badRequest(msgInvalidBody, "ingredientId or category and name are required")
		}
		link, err := s.catalog.AddIngredient(r.Context(), api.kind, r.PathValue("id"), in)
		if err != nil {
			return err
		}
		return ok(w, link)
	}, staff)
	s.handle("DELETE "+p+"/{id}/ingredients/{ingredientId}", func(w http.ResponseWriter, r *http.Request) error {
		id, ingredientID := r.PathValue("id"), r.PathValue("ingredientId")
		if err := s.catalog.RemoveIngredient(r.Context(), api.kind, id, ingredientID); err != nil {
			return err
		}
		return ok(w, message{Message: "Ingredient " + ingredientID + " has been removed from " + api.title + " " + id})
	}, staff)

	reviewsNotFound := "No " + string(api.kind) + " reviews were found"
	s.handle("GET "+p+"/{id}/reviews", func(w http.ResponseWriter, r *http.Request) error {
		pg, err := page(r, defaultPageLimit)
		if err != nil {
			return err
		}
		items, err := s.catalog.ListReviews(r.Context(), catalog.ReviewFilter{Kind: api.kind, RecipeID: r.PathValue("id")}, pg)
		if err != nil {
			return err
		}
		return nonEmpty(w, items, reviewsNotFound)
	})
	s.handle("POST "+p+"/{id}/reviews", func(w http.ResponseWriter, r *http.Request) error {
		var in catalog.ReviewInput
		if err := s.decode(w, r, &in); err != nil {
			return err
		}
		rev, err := s.catalog.CreateReview(r.Context(), api.kind, r.PathValue("id"), caller(r).ID, in)
		if err != nil {
			return err
		}
		return created(w, rev)
	}, user)
	s.handle("PUT "+p+"/{id}/reviews", func(w http.ResponseWriter, r *http.Request) error {
		var upd catalog.ReviewUpdate
		if err := s.decode(w, r, &upd); err != nil {
			return err
		}
		rev, err := s.catalog.UpdateReview(r.Context(), api.kind, r.PathValue("id"), caller(r).ID, upd)
		if err != nil {
			return err
		}
		return ok(w, rev)
	}, user)
	s.handle("DELETE "+p+"/{id}/reviews", func(w http.ResponseWriter, r *http.Request) error {
		id := r.PathValue("id")
		if err := s.catalog.DeleteReview(r.Context(), api.kind, id, caller(r).ID); err != nil {
			return err
		}
		return ok(w, message{Message: api.title + " review has been deleted"})
	}, user)
}

// ownReviews lists the caller's reviews of one recipe kind.
func (s *Server) ownReviews(kind catalog.Kind, empty string) handlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		pg, err := page(r, defaultPageLimit)
		if err != nil {
			return err
		}
		items, err := s.catalog.ListReviews(r.Context(), catalog.ReviewFilter{Kind: kind, UserID: caller(r).ID}, pg)
		if err != nil {
			return err
		}
		return nonEmpty(w, items, empty)
	}
}
