package service

import (
	"context"

	"github.com/twosmallonions/recipes/backend/internal/types"
)

// IRecipeService defines the interface for recipe operations
type IRecipeService interface {
	CreateRecipe(ctx context.Context, req *types.CreateRecipeRequest, owner string) (*types.FullRecipe, error)
	GetFullRecipeBySlug(ctx context.Context, slug, owner string) (*types.FullRecipe, error)
	ListRecipes(ctx context.Context, owner string) ([]types.RecipeSummary, error)
	AddInstruction(ctx context.Context, slug, owner string, req *types.CreateInstructionRequest) (*types.FullRecipe, error)
	AddIngredient(ctx context.Context, slug, owner string, req *types.CreateIngredientRequest) (*types.FullRecipe, error)
}

// ITokenValidator verifies bearer tokens.
type ITokenValidator interface {
	ValidateToken(token string) (*types.TokenClaims, error)
}

var (
	_ IRecipeService  = (*RecipeService)(nil)
	_ ITokenValidator = (*TokenVerifier)(nil)
)
