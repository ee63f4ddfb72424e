package catalog

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	gastronomy "github.com/nmezhenskyi/gastronomy-api"
	"github.com/nmezhenskyi/gastronomy-api/internal/storage"
)

var (
	ErrIngredientNotFound = fmt.Errorf("ingredient %w", gastronomy.ErrNotFound)
	ErrCocktailNotFound   = fmt.Errorf("cocktail %w", gastronomy.ErrNotFound)
	ErrMealNotFound       = fmt.Errorf("meal %w", gastronomy.ErrNotFound)
	ErrReviewNotFound     = fmt.Errorf("review %w", gastronomy.ErrNotFound)
	// ErrReviewExists is returned when the user already reviewed the recipe.
	ErrReviewExists = fmt.Errorf("%w: review already exists", gastronomy.ErrInvalidInput)
	// ErrIngredientLinked is returned when the recipe already lists the ingredient.
	ErrIngredientLinked = fmt.Errorf("%w: ingredient already added", gastronomy.ErrInvalidInput)
)

const newestFirst = "created_at DESC"

// Page bounds a list query.
type Page struct {
	Offset int
	Limit  int
}

func (p Page) storage() storage.Page {
	return storage.Page{Offset: p.Offset, Limit: p.Limit, Order: newestFirst}
}

// Service is the catalog of ingredients, cocktails, meals and reviews.
type Service struct {
	db          *gorm.DB
	ingredients *storage.Repository[Ingredient]
	cocktails   *storage.Repository[Cocktail]
	meals       *storage.Repository[Meal]
	links       *storage.Repository[RecipeIngredient]
	reviews     *storage.Repository[Review]
}

// New binds a Service to db.
func New(db *gorm.DB) *Service {
	return &Service{
		db:          db,
		ingredients: storage.NewRepository[Ingredient](db),
		cocktails:   storage.NewRepository[Cocktail](db),
		meals:       storage.NewRepository[Meal](db),
		links:       storage.NewRepository[RecipeIngredient](db),
		reviews:     storage.NewRepository[Review](db),
	}
}

// Migrate creates the catalog tables.
func Migrate(db *gorm.DB) error {
	return storage.Migrate(db, Models()...)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", gastronomy.ErrInvalidInput, fmt.Sprintf(format, args...))
}

// notFound maps storage.ErrNotFound onto sentinel and wraps anything else.
func notFound(op string, err, sentinel error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return sentinel
	}
	return fmt.Errorf("%s: %w", op, err)
}

// setTrimmed stores the trimmed *v under column when v is non-nil. Required
// columns reject an empty value.
func setTrimmed(values map[string]any, column string, v *string, required bool) error {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	if required && s == "" {
		return invalid("%s must not be empty", column)
	}
	values[column] = s
	return nil
}
