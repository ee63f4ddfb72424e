// Package catalog stores the recipe catalog: ingredients, cocktails, meals,
// the ingredient lists of recipes and user reviews.
//
// Cocktails and meals share one join table and one review table, keyed by
// [Kind]. Deleting a recipe removes its links and reviews in the same
// transaction; deleting an ingredient detaches it from every recipe.
//
// # What this package must NOT do
//
//   - Check who is calling. Authorization happens in middleware.
//   - Return gorm errors for missing rows. Callers match the Err*NotFound
//     sentinels, all of which wrap gastronomy.ErrNotFound.
package catalog
