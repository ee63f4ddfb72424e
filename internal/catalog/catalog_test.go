package catalog_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gastronomy "github.com/nmezhenskyi/gastronomy-api"
	"github.com/nmezhenskyi/gastronomy-api/internal/catalog"
	"github.com/nmezhenskyi/gastronomy-api/internal/storage/storagetest"
)

func newService(t *testing.T) *catalog.Service {
	t.Helper()
	return catalog.New(storagetest.Open(t, catalog.Models()...))
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestIngredientCRUD(t *testing.T) {
	ctx := context.Background()
	s := newService(t)

	_, err := s.CreateIngredient(ctx, catalog.IngredientInput{Category: " ", Name: "Lime"})
	assert.ErrorIs(t, err, gastronomy.ErrInvalidInput)

	lime, err := s.CreateIngredient(ctx, catalog.IngredientInput{Category: " Fruit ", Name: "Lime"})
	require.NoError(t, err)
	assert.Equal(t, "Fruit", lime.Category)
	_, err = s.CreateIngredient(ctx, catalog.IngredientInput{Category: "Spirit", Name: "Rum"})
	require.NoError(t, err)

	all, err := s.ListIngredients(ctx, "", catalog.Page{Limit: 50})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	fruit, err := s.ListIngredients(ctx, "Fruit", catalog.Page{Limit: 50})
	require.NoError(t, err)
	require.Len(t, fruit, 1)
	assert.Equal(t, lime.ID, fruit[0].ID)

	updated, err := s.UpdateIngredient(ctx, lime.ID, catalog.IngredientUpdate{Description: strPtr("Sour citrus")})
	require.NoError(t, err)
	assert.Equal(t, "Sour citrus", updated.Description)
	assert.Equal(t, "Lime", updated.Name)

	_, err = s.UpdateIngredient(ctx, lime.ID, catalog.IngredientUpdate{Name: strPtr("  ")})
	assert.ErrorIs(t, err, gastronomy.ErrInvalidInput)

	_, err = s.UpdateIngredient(ctx, "missing", catalog.IngredientUpdate{Name: strPtr("x")})
	assert.ErrorIs(t, err, catalog.ErrIngredientNotFound)

	require.NoError(t, s.DeleteIngredient(ctx, lime.ID))
	assert.ErrorIs(t, s.DeleteIngredient(ctx, lime.ID), catalog.ErrIngredientNotFound)
	_, err = s.GetIngredient(ctx, lime.ID)
	assert.ErrorIs(t, err, gastronomy.ErrNotFound)
}

func TestCocktailIngredients(t *testing.T) {
	ctx := context.Background()
	s := newService(t)

	_, err := s.CreateCocktail(ctx, catalog.CocktailInput{Name: "Daiquiri"})
	assert.ErrorIs(t, err, gastronomy.ErrInvalidInput)

	c, err := s.CreateCocktail(ctx, catalog.CocktailInput{
		Name:       "Daiquiri",
		Method:     "Shake with ice, strain.",
		NotesInput: catalog.NotesInput{NotesOnTaste: "Tart"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Tart", c.NotesOnTaste)

	rum, err := s.CreateIngredient(ctx, catalog.IngredientInput{Category: "Spirit", Name: "Rum"})
	require.NoError(t, err)

	link, err := s.AddIngredient(ctx, catalog.KindCocktail, c.ID, catalog.IngredientLink{IngredientID: rum.ID, Amount: "60 ml"})
	require.NoError(t, err)
	assert.Equal(t, "Rum", link.Ingredient.Name)

	_, err = s.AddIngredient(ctx, catalog.KindCocktail, c.ID, catalog.IngredientLink{IngredientID: rum.ID, Amount: "30 ml"})
	assert.ErrorIs(t, err, catalog.ErrIngredientLinked)

	lime, err := s.AddIngredient(ctx, catalog.KindCocktail, c.ID, catalog.IngredientLink{Category: "Fruit", Name: "Lime juice", Amount: "25 ml"})
	require.NoError(t, err)
	assert.NotEmpty(t, lime.IngredientID)

	_, err = s.AddIngredient(ctx, catalog.KindCocktail, c.ID, catalog.IngredientLink{IngredientID: "missing", Amount: "1"})
	assert.ErrorIs(t, err, catalog.ErrIngredientNotFound)
	_, err = s.AddIngredient(ctx, catalog.KindCocktail, "missing", catalog.IngredientLink{IngredientID: rum.ID, Amount: "1"})
	assert.ErrorIs(t, err, catalog.ErrCocktailNotFound)

	got, err := s.GetCocktail(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, got.Ingredients, 2)
	for _, ri := range got.Ingredients {
		require.NotNil(t, ri.Ingredient)
	}

	require.NoError(t, s.RemoveIngredient(ctx, catalog.KindCocktail, c.ID, rum.ID))
	assert.ErrorIs(t, s.RemoveIngredient(ctx, catalog.KindCocktail, c.ID, rum.ID), catalog.ErrIngredientNotFound)
	_, err = s.GetIngredient(ctx, rum.ID)
	require.NoError(t, err, "removing a link keeps the ingredient")

	require.NoError(t, s.DeleteIngredient(ctx, lime.IngredientID))
	got, err = s.GetCocktail(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Ingredients)

	updated, err := s.UpdateCocktail(ctx, c.ID, catalog.CocktailUpdate{Name: strPtr("Hemingway Daiquiri")})
	require.NoError(t, err)
	assert.Equal(t, "Hemingway Daiquiri", updated.Name)
	assert.Equal(t, "Shake with ice, strain.", updated.Method)

	listed, err := s.ListCocktails(ctx, "Hemingway Daiquiri", catalog.Page{Limit: 50})
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	require.NoError(t, s.DeleteCocktail(ctx, c.ID))
	assert.ErrorIs(t, s.DeleteCocktail(ctx, c.ID), catalog.ErrCocktailNotFound)
}

func TestMealLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newService(t)

	m, err := s.CreateMeal(ctx, catalog.MealInput{Name: "Ramen", Cuisine: "Japanese", Instructions: "Simmer."})
	require.NoError(t, err)

	_, err = s.AddIngredient(ctx, catalog.KindMeal, m.ID, catalog.IngredientLink{Category: "Noodle", Name: "Wheat noodles", Amount: "200 g"})
	require.NoError(t, err)

	updated, err := s.UpdateMeal(ctx, m.ID, catalog.MealUpdate{Cuisine: strPtr("Fusion")})
	require.NoError(t, err)
	assert.Equal(t, "Fusion", updated.Cuisine)
	assert.Len(t, updated.Ingredients, 1)

	_, err = s.UpdateMeal(ctx, m.ID, catalog.MealUpdate{Instructions: strPtr("")})
	assert.ErrorIs(t, err, gastronomy.ErrInvalidInput)

	require.NoError(t, s.DeleteMeal(ctx, m.ID))
	_, err = s.GetMeal(ctx, m.ID)
	assert.ErrorIs(t, err, catalog.ErrMealNotFound)
}

func TestReviews(t *testing.T) {
	ctx := context.Background()
	s := newService(t)

	c, err := s.CreateCocktail(ctx, catalog.CocktailInput{Name: "Negroni", Method: "Stir."})
	require.NoError(t, err)
	m, err := s.CreateMeal(ctx, catalog.MealInput{Name: "Risotto", Instructions: "Stir."})
	require.NoError(t, err)

	_, err = s.CreateReview(ctx, catalog.KindCocktail, c.ID, "u1", catalog.ReviewInput{Rating: intPtr(6), Review: "x"})
	assert.ErrorIs(t, err, gastronomy.ErrInvalidInput)
	_, err = s.CreateReview(ctx, catalog.KindCocktail, "missing", "u1", catalog.ReviewInput{Rating: intPtr(3), Review: "x"})
	assert.ErrorIs(t, err, catalog.ErrCocktailNotFound)

	r, err := s.CreateReview(ctx, catalog.KindCocktail, c.ID, "u1", catalog.ReviewInput{Rating: intPtr(0), Review: " Too bitter "})
	require.NoError(t, err)
	assert.Equal(t, 0, r.Rating)
	assert.Equal(t, "Too bitter", r.Review)

	_, err = s.CreateReview(ctx, catalog.KindCocktail, c.ID, "u1", catalog.ReviewInput{Rating: intPtr(4), Review: "again"})
	assert.ErrorIs(t, err, catalog.ErrReviewExists)

	_, err = s.CreateReview(ctx, catalog.KindCocktail, c.ID, "u2", catalog.ReviewInput{Rating: intPtr(5), Review: "Great"})
	require.NoError(t, err)
	_, err = s.CreateReview(ctx, catalog.KindMeal, m.ID, "u1", catalog.ReviewInput{Rating: intPtr(4), Review: "Creamy"})
	require.NoError(t, err)

	updated, err := s.UpdateReview(ctx, catalog.KindCocktail, c.ID, "u1", catalog.ReviewUpdate{Rating: intPtr(2)})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Rating)
	assert.Equal(t, "Too bitter", updated.Review)

	_, err = s.UpdateReview(ctx, catalog.KindCocktail, c.ID, "u3", catalog.ReviewUpdate{Rating: intPtr(2)})
	assert.ErrorIs(t, err, catalog.ErrReviewNotFound)

	byCocktail, err := s.ListReviews(ctx, catalog.ReviewFilter{Kind: catalog.KindCocktail, RecipeID: c.ID}, catalog.Page{Limit: 50})
	require.NoError(t, err)
	assert.Len(t, byCocktail, 2)

	byUser, err := s.ListReviews(ctx, catalog.ReviewFilter{Kind: catalog.KindMeal, UserID: "u1"}, catalog.Page{Limit: 50})
	require.NoError(t, err)
	require.Len(t, byUser, 1)
	assert.Equal(t, m.ID, byUser[0].RecipeID)

	_, err = s.ListReviews(ctx, catalog.ReviewFilter{Kind: catalog.KindMeal, RecipeID: "missing"}, catalog.Page{})
	assert.ErrorIs(t, err, catalog.ErrMealNotFound)

	require.NoError(t, s.DeleteCocktail(ctx, c.ID))
	left, err := s.ListReviews(ctx, catalog.ReviewFilter{Kind: catalog.KindCocktail}, catalog.Page{})
	require.NoError(t, err)
	assert.Empty(t, left)

	require.NoError(t, s.DeleteReview(ctx, catalog.KindMeal, m.ID, "u1"))
	assert.ErrorIs(t, s.DeleteReview(ctx, catalog.KindMeal, m.ID, "u1"), catalog.ErrReviewNotFound)
}
