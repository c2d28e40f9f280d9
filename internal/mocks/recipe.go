package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/twosmallonions/recipes/backend/internal/types"
)

// MockRecipeService is a mock implementation of the recipe service
type MockRecipeService struct {
	mock.Mock
}

// CreateRecipe mocks the CreateRecipe method
func (m *MockRecipeService) CreateRecipe(ctx context.Context, req *types.CreateRecipeRequest, owner string) (*types.FullRecipe, error) {
	args := m.Called(ctx, req, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.FullRecipe), args.Error(1)
}

// GetFullRecipeBySlug mocks the GetFullRecipeBySlug method
func (m *MockRecipeService) GetFullRecipeBySlug(ctx context.Context, slug, owner string) (*types.FullRecipe, error) {
	args := m.Called(ctx, slug, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.FullRecipe), args.Error(1)
}

// AddInstruction mocks the AddInstruction method
func (m *MockRecipeService) AddInstruction(ctx context.Context, slug, owner string, req *types.CreateInstructionRequest) (*types.FullRecipe, error) {
	args := m.Called(ctx, slug, owner, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.FullRecipe), args.Error(1)
}

// ListRecipes mocks the ListRecipes method
func (m *MockRecipeService) ListRecipes(ctx context.Context, owner string) ([]types.RecipeSummary, error) {
	args := m.Called(ctx, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.RecipeSummary), args.Error(1)
}

// AddIngredient mocks the AddIngredient method
func (m *MockRecipeService) AddIngredient(ctx context.Context, slug, owner string, req *types.CreateIngredientRequest) (*types.FullRecipe, error) {
	args := m.Called(ctx, slug, owner, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.FullRecipe), args.Error(1)
}
