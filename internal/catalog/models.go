package catalog

import "time"

// Kind names the recipe table a join or review row belongs to.
type Kind string

const (
	KindCocktail Kind = "cocktail"
	KindMeal     Kind = "meal"
)

// Ingredient is shared by cocktails and meals.
type Ingredient struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Category    string    `gorm:"size:150;not null;index" json:"category"`
	Name        string    `gorm:"size:150;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (Ingredient) TableName() string { return "ingredients" }

// Notes are the free-form annotations every recipe carries.
type Notes struct {
	NotesOnIngredients string `gorm:"type:text" json:"notesOnIngredients,omitempty"`
	NotesOnExecution   string `gorm:"type:text" json:"notesOnExecution,omitempty"`
	NotesOnTaste       string `gorm:"type:text" json:"notesOnTaste,omitempty"`
}

type Cocktail struct {
	ID          string `gorm:"primaryKey;size:36" json:"id"`
	Name        string `gorm:"size:100;not null;index" json:"name"`
	Description string `gorm:"type:text" json:"description,omitempty"`
	Method      string `gorm:"type:text;not null" json:"method"`
	Notes
	Ingredients []RecipeIngredient `gorm:"-" json:"ingredients,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

func (Cocktail) TableName() string { return "cocktails" }

type Meal struct {
	ID           string `gorm:"primaryKey;size:36" json:"id"`
	Name         string `gorm:"size:100;not null;index" json:"name"`
	Description  string `gorm:"type:text" json:"description,omitempty"`
	Cuisine      string `gorm:"size:100" json:"cuisine,omitempty"`
	Instructions string `gorm:"type:text;not null" json:"instructions"`
	Notes
	Ingredients []RecipeIngredient `gorm:"-" json:"ingredients,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

func (Meal) TableName() string { return "meals" }

// RecipeIngredient links an ingredient to a cocktail or meal with an amount.
type RecipeIngredient struct {
	RecipeKind   Kind        `gorm:"primaryKey;size:16" json:"-"`
	RecipeID     string      `gorm:"primaryKey;size:36" json:"-"`
	IngredientID string      `gorm:"primaryKey;size:36" json:"ingredientId"`
	Amount       string      `gorm:"size:20;not null" json:"amount"`
	Ingredient   *Ingredient `gorm:"foreignKey:IngredientID;constraint:OnDelete:CASCADE" json:"ingredient,omitempty"`
	CreatedAt    time.Time   `json:"-"`
	UpdatedAt    time.Time   `json:"-"`
}

func (RecipeIngredient) TableName() string { return "recipe_ingredients" }

// Review is one user's rating of one recipe.
type Review struct {
	RecipeKind Kind      `gorm:"primaryKey;size:16" json:"kind"`
	RecipeID   string    `gorm:"primaryKey;size:36" json:"recipeId"`
	UserID     string    `gorm:"primaryKey;size:36;index" json:"userId"`
	Rating     int       `gorm:"not null" json:"rating"`
	Review     string    `gorm:"type:text" json:"review"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (Review) TableName() string { return "reviews" }

// Models lists the tables owned by this package, for migrations.
func Models() []any {
	return []any{&Ingredient{}, &Cocktail{}, &Meal{}, &RecipeIngredient{}, &Review{}}
}
