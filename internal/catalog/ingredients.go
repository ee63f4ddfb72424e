package catalog

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/nmezhenskyi/gastronomy-api/internal/storage"
)

// IngredientInput creates an ingredient.
type IngredientInput struct {
	Category    string `json:"category" validate:"required,max=150"`
	Name        string `json:"name" validate:"required,max=150"`
	Description string `json:"description" validate:"max=5000"`
}

// IngredientUpdate changes the non-nil fields of an ingredient.
type IngredientUpdate struct {
	Category    *string `json:"category" validate:"omitempty,max=150"`
	Name        *string `json:"name" validate:"omitempty,max=150"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
}

// ListIngredients returns ingredients newest first, optionally restricted to
// one category.
func (s *Service) ListIngredients(ctx context.Context, category string, page Page) ([]Ingredient, error) {
	var cond storage.Cond
	if category = strings.TrimSpace(category); category != "" {
		cond = storage.Where("category = ?", category)
	}
	out, err := s.ingredients.FindMany(ctx, cond, page.storage())
	if err != nil {
		return nil, notFound("list ingredients", err, ErrIngredientNotFound)
	}
	return out, nil
}

func (s *Service) GetIngredient(ctx context.Context, id string) (*Ingredient, error) {
	ing, err := s.ingredients.FindByID(ctx, id)
	if err != nil {
		return nil, notFound("get ingredient", err, ErrIngredientNotFound)
	}
	return ing, nil
}

func (s *Service) CreateIngredient(ctx context.Context, in IngredientInput) (*Ingredient, error) {
	return createIngredient(ctx, s.ingredients, in)
}

func createIngredient(ctx context.Context, repo *storage.Repository[Ingredient], in IngredientInput) (*Ingredient, error) {
	ing := &Ingredient{
		ID:          uuid.NewString(),
		Category:    strings.TrimSpace(in.Category),
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
	}
	if ing.Category == "" || ing.Name == "" {
		return nil, invalid("ingredient category and name are required")
	}
	if err := repo.Create(ctx, ing); err != nil {
		return nil, notFound("create ingredient", err, ErrIngredientNotFound)
	}
	return ing, nil
}

func (s *Service) UpdateIngredient(ctx context.Context, id string, upd IngredientUpdate) (*Ingredient, error) {
	values := map[string]any{}
	if err := setTrimmed(values, "category", upd.Category, true); err != nil {
		return nil, err
	}
	if err := setTrimmed(values, "name", upd.Name, true); err != nil {
		return nil, err
	}
	if err := setTrimmed(values, "description", upd.Description, false); err != nil {
		return nil, err
	}
	if len(values) > 0 {
		n, err := s.ingredients.Updates(ctx, id, values)
		if err != nil {
			return nil, notFound("update ingredient", err, ErrIngredientNotFound)
		}
		if n == 0 {
			return nil, ErrIngredientNotFound
		}
	}
	return s.GetIngredient(ctx, id)
}

// DeleteIngredient removes the ingredient and detaches it from every recipe.
func (s *Service) DeleteIngredient(ctx context.Context, id string) error {
	return s.ingredients.Transaction(ctx, func(tx *storage.Repository[Ingredient]) error {
		links := storage.NewRepository[RecipeIngredient](tx.DB(ctx))
		if _, err := links.DeleteWhere(ctx, storage.Where("ingredient_id = ?", id)); err != nil {
			return notFound("delete ingredient", err, ErrIngredientNotFound)
		}
		n, err := tx.DeleteByID(ctx, id)
		if err != nil {
			return notFound("delete ingredient", err, ErrIngredientNotFound)
		}
		if n == 0 {
			return ErrIngredientNotFound
		}
		return nil
	})
}
