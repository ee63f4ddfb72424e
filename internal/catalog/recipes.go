package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nmezhenskyi/gastronomy-api/internal/storage"
)

// NotesInput carries the optional notes of a new recipe.
type NotesInput struct {
	NotesOnIngredients string `json:"notesOnIngredients" validate:"max=2000"`
	NotesOnExecution   string `json:"notesOnExecution" validate:"max=2000"`
	NotesOnTaste       string `json:"notesOnTaste" validate:"max=1000"`
}

func (n NotesInput) notes() Notes {
	return Notes{
		NotesOnIngredients: strings.TrimSpace(n.NotesOnIngredients),
		NotesOnExecution:   strings.TrimSpace(n.NotesOnExecution),
		NotesOnTaste:       strings.TrimSpace(n.NotesOnTaste),
	}
}

// NotesUpdate changes the non-nil notes of a recipe.
type NotesUpdate struct {
	NotesOnIngredients *string `json:"notesOnIngredients" validate:"omitempty,max=2000"`
	NotesOnExecution   *string `json:"notesOnExecution" validate:"omitempty,max=2000"`
	NotesOnTaste       *string `json:"notesOnTaste" validate:"omitempty,max=1000"`
}

func (n NotesUpdate) apply(values map[string]any) {
	_ = setTrimmed(values, "notes_on_ingredients", n.NotesOnIngredients, false)
	_ = setTrimmed(values, "notes_on_execution", n.NotesOnExecution, false)
	_ = setTrimmed(values, "notes_on_taste", n.NotesOnTaste, false)
}

type CocktailInput struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=5000"`
	Method      string `json:"method" validate:"required,max=3000"`
	NotesInput
}

type CocktailUpdate struct {
	Name        *string `json:"name" validate:"omitempty,max=100"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
	Method      *string `json:"method" validate:"omitempty,max=3000"`
	NotesUpdate
}

type MealInput struct {
	Name         string `json:"name" validate:"required,max=100"`
	Description  string `json:"description" validate:"max=5000"`
	Cuisine      string `json:"cuisine" validate:"max=100"`
	Instructions string `json:"instructions" validate:"required,max=3000"`
	NotesInput
}

type MealUpdate struct {
	Name         *string `json:"name" validate:"omitempty,max=100"`
	Description  *string `json:"description" validate:"omitempty,max=5000"`
	Cuisine      *string `json:"cuisine" validate:"omitempty,max=100"`
	Instructions *string `json:"instructions" validate:"omitempty,max=3000"`
	NotesUpdate
}

// IngredientLink adds an ingredient to a recipe. IngredientID names an
// existing ingredient; without it Category and Name create a new one.
type IngredientLink struct {
	IngredientID string `json:"ingredientId" validate:"omitempty,max=36"`
	Category     string `json:"category" validate:"max=150"`
	Name         string `json:"name" validate:"max=150"`
	Description  string `json:"description" validate:"max=5000"`
	Amount       string `json:"amount" validate:"required,max=20"`
}

func nameCond(name string) storage.Cond {
	if name = strings.TrimSpace(name); name != "" {
		return storage.Where("name = ?", name)
	}
	return storage.Cond{}
}

// ListCocktails returns cocktails newest first without their ingredients.
func (s *Service) ListCocktails(ctx context.Context, name string, page Page) ([]Cocktail, error) {
	out, err := s.cocktails.FindMany(ctx, nameCond(name), page.storage())
	if err != nil {
		return nil, notFound("list cocktails", err, ErrCocktailNotFound)
	}
	return out, nil
}

// GetCocktail loads a cocktail with its ingredients.
func (s *Service) GetCocktail(ctx context.Context, id string) (*Cocktail, error) {
	c, err := s.cocktails.FindByID(ctx, id)
	if err != nil {
		return nil, notFound("get cocktail", err, ErrCocktailNotFound)
	}
	if c.Ingredients, err = s.recipeIngredients(ctx, KindCocktail, id); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) CreateCocktail(ctx context.Context, in CocktailInput) (*Cocktail, error) {
	c := &Cocktail{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Method:      strings.TrimSpace(in.Method),
		Notes:       in.notes(),
	}
	if c.Name == "" || c.Method == "" {
		return nil, invalid("cocktail name and method are required")
	}
	if err := s.cocktails.Create(ctx, c); err != nil {
		return nil, notFound("create cocktail", err, ErrCocktailNotFound)
	}
	return c, nil
}

func (s *Service) UpdateCocktail(ctx context.Context, id string, upd CocktailUpdate) (*Cocktail, error) {
	values := map[string]any{}
	if err := setTrimmed(values, "name", upd.Name, true); err != nil {
		return nil, err
	}
	if err := setTrimmed(values, "method", upd.Method, true); err != nil {
		return nil, err
	}
	_ = setTrimmed(values, "description", upd.Description, false)
	upd.apply(values)
	if err := updateRecipe(ctx, s.cocktails, id, values, ErrCocktailNotFound); err != nil {
		return nil, err
	}
	return s.GetCocktail(ctx, id)
}

// DeleteCocktail removes the cocktail with its ingredient links and reviews.
func (s *Service) DeleteCocktail(ctx context.Context, id string) error {
	return deleteRecipe[Cocktail](ctx, s.db, KindCocktail, id, ErrCocktailNotFound)
}

// ListMeals returns meals newest first without their ingredients.
func (s *Service) ListMeals(ctx context.Context, name string, page Page) ([]Meal, error) {
	out, err := s.meals.FindMany(ctx, nameCond(name), page.storage())
	if err != nil {
		return nil, notFound("list meals", err, ErrMealNotFound)
	}
	return out, nil
}

// GetMeal loads a meal with its ingredients.
func (s *Service) GetMeal(ctx context.Context, id string) (*Meal, error) {
	m, err := s.meals.FindByID(ctx, id)
	if err != nil {
		return nil, notFound("get meal", err, ErrMealNotFound)
	}
	if m.Ingredients, err = s.recipeIngredients(ctx, KindMeal, id); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) CreateMeal(ctx context.Context, in MealInput) (*Meal, error) {
	m := &Meal{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(in.Name),
		Description:  strings.TrimSpace(in.Description),
		Cuisine:      strings.TrimSpace(in.Cuisine),
		Instructions: strings.TrimSpace(in.Instructions),
		Notes:        in.notes(),
	}
	if m.Name == "" || m.Instructions == "" {
		return nil, invalid("meal name and instructions are required")
	}
	if err := s.meals.Create(ctx, m); err != nil {
		return nil, notFound("create meal", err, ErrMealNotFound)
	}
	return m, nil
}

func (s *Service) UpdateMeal(ctx context.Context, id string, upd MealUpdate) (*Meal, error) {
	values := map[string]any{}
	if err := setTrimmed(values, "name", upd.Name, true); err != nil {
		return nil, err
	}
	if err := setTrimmed(values, "instructions", upd.Instructions, true); err != nil {
		return nil, err
	}
	_ = setTrimmed(values, "description", upd.Description, false)
	_ = setTrimmed(values, "cuisine", upd.Cuisine, false)
	upd.apply(values)
	if err := updateRecipe(ctx, s.meals, id, values, ErrMealNotFound); err != nil {
		return nil, err
	}
	return s.GetMeal(ctx, id)
}

// DeleteMeal removes the meal with its ingredient links and reviews.
func (s *Service) DeleteMeal(ctx context.Context, id string) error {
	return deleteRecipe[Meal](ctx, s.db, KindMeal, id, ErrMealNotFound)
}

// AddIngredient links an existing or new ingredient to the recipe.
func (s *Service) AddIngredient(ctx context.Context, kind Kind, recipeID string, in IngredientLink) (*RecipeIngredient, error) {
	amount := strings.TrimSpace(in.Amount)
	if amount == "" {
		return nil, invalid("amount is required")
	}
	if err := s.recipeExists(ctx, kind, recipeID); err != nil {
		return nil, err
	}

	var link *RecipeIngredient
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ingredients := storage.NewRepository[Ingredient](tx)
		links := storage.NewRepository[RecipeIngredient](tx)

		var ing *Ingredient
		var err error
		if id := strings.TrimSpace(in.IngredientID); id != "" {
			if ing, err = ingredients.FindByID(ctx, id); err != nil {
				return notFound("add ingredient", err, ErrIngredientNotFound)
			}
		} else {
			ing, err = createIngredient(ctx, ingredients, IngredientInput{
				Category:    in.Category,
				Name:        in.Name,
				Description: in.Description,
			})
			if err != nil {
				return err
			}
		}

		linked, err := links.Exists(ctx, linkCond(kind, recipeID, ing.ID))
		if err != nil {
			return err
		}
		if linked {
			return ErrIngredientLinked
		}
		link = &RecipeIngredient{RecipeKind: kind, RecipeID: recipeID, IngredientID: ing.ID, Amount: amount}
		if err := links.Create(ctx, link); err != nil {
			if errors.Is(err, storage.ErrDuplicate) {
				return ErrIngredientLinked
			}
			return err
		}
		link.Ingredient = ing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return link, nil
}

// RemoveIngredient detaches the ingredient from the recipe. The ingredient
// itself is kept.
func (s *Service) RemoveIngredient(ctx context.Context, kind Kind, recipeID, ingredientID string) error {
	n, err := s.links.DeleteWhere(ctx, linkCond(kind, recipeID, ingredientID))
	if err != nil {
		return notFound("remove ingredient", err, ErrIngredientNotFound)
	}
	if n == 0 {
		return ErrIngredientNotFound
	}
	return nil
}

func linkCond(kind Kind, recipeID, ingredientID string) storage.Cond {
	return storage.Where("recipe_kind = ? AND recipe_id = ? AND ingredient_id = ?", kind, recipeID, ingredientID)
}

func (s *Service) recipeIngredients(ctx context.Context, kind Kind, id string) ([]RecipeIngredient, error) {
	out, err := s.links.FindMany(ctx,
		storage.Where("recipe_kind = ? AND recipe_id = ?", kind, id),
		storage.Page{Order: newestFirst},
		"Ingredient")
	if err != nil {
		return nil, notFound("load recipe ingredients", err, ErrIngredientNotFound)
	}
	return out, nil
}

// recipeExists returns the kind's not-found sentinel for a missing recipe.
func (s *Service) recipeExists(ctx context.Context, kind Kind, id string) error {
	var ok bool
	var err error
	switch kind {
	case KindCocktail:
		if ok, err = s.cocktails.Exists(ctx, storage.Where("id = ?", id)); err == nil && !ok {
			return ErrCocktailNotFound
		}
	case KindMeal:
		if ok, err = s.meals.Exists(ctx, storage.Where("id = ?", id)); err == nil && !ok {
			return ErrMealNotFound
		}
	default:
		return invalid("unknown recipe kind %q", kind)
	}
	return err
}

func updateRecipe[T any](ctx context.Context, repo *storage.Repository[T], id string, values map[string]any, missing error) error {
	if len(values) == 0 {
		return nil
	}
	n, err := repo.Updates(ctx, id, values)
	if err != nil {
		return notFound("update recipe", err, missing)
	}
	if n == 0 {
		return missing
	}
	return nil
}

func deleteRecipe[T any](ctx context.Context, db *gorm.DB, kind Kind, id string, missing error) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		owned := storage.Where("recipe_kind = ? AND recipe_id = ?", kind, id)
		if _, err := storage.NewRepository[RecipeIngredient](tx).DeleteWhere(ctx, owned); err != nil {
			return err
		}
		if _, err := storage.NewRepository[Review](tx).DeleteWhere(ctx, owned); err != nil {
			return err
		}
		n, err := storage.NewRepository[T](tx).DeleteByID(ctx, id)
		if err != nil {
			return err
		}
		if n == 0 {
			return missing
		}
		return nil
	})
}
