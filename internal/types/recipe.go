package types

import (
	"time"

	"github.com/google/uuid"
)

// CreateRecipeRequest is the accepted payload for creating a recipe.
type CreateRecipeRequest struct {
	Title       string  `json:"title" validate:"required,min=1,max=1000"`
	Description *string `json:"description"`
	// Instructions and Ingredients are stored in order at positions 0..n-1.
	Instructions []string `json:"instructions" validate:"omitempty,max=500,dive,required,max=10000"`
	Ingredients  []string `json:"ingredients" validate:"omitempty,max=500,dive,required,max=1000"`
}

// Validate checks the payload shape and reports every failing field.
func (r *CreateRecipeRequest) Validate() error {
	return validateStruct(r)
}

// CreateInstructionRequest appends one step to an existing recipe. A nil
// Position means "after the last step". Positions are stored in a 32-bit
// integer column.
type CreateInstructionRequest struct {
	Text     string `json:"text" validate:"required,max=10000"`
	Position *int   `json:"position" validate:"omitempty,min=0,max=2147483647"`
}

func (r *CreateInstructionRequest) Validate() error {
	return validateStruct(r)
}

// CreateIngredientRequest appends one line to a recipe's ingredient list.
type CreateIngredientRequest struct {
	Text     string `json:"text" validate:"required,max=1000"`
	Position *int   `json:"position" validate:"omitempty,min=0,max=2147483647"`
}

func (r *CreateIngredientRequest) Validate() error {
	return validateStruct(r)
}

// RecipeInstruction is one step as exposed to API consumers.
type RecipeInstruction struct {
	Text string `json:"text" validate:"required"`
}

type RecipeIngredient struct {
	Text string `json:"text" validate:"required"`
}

// FullRecipe is a recipe together with its materialized instruction and
// ingredient lists.
type FullRecipe struct {
	ID           uuid.UUID           `json:"id" validate:"required"`
	Title        string              `json:"title" validate:"required,max=1000"`
	Slug         string              `json:"slug" validate:"required"`
	Description  *string             `json:"description"`
	CreatedAt    time.Time           `json:"created_at" validate:"required"`
	UpdatedAt    time.Time           `json:"updated_at" validate:"required"`
	Instructions []RecipeInstruction `json:"instructions" validate:"required,dive"`
	Ingredients  []RecipeIngredient  `json:"ingredients" validate:"required,dive"`
}

// Validate is the output contract check applied before a FullRecipe
// leaves the store.
func (r *FullRecipe) Validate() error {
	return validateStruct(r)
}

// RecipeSummary is the list view of a recipe, without its steps.
type RecipeSummary struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
