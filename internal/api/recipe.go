package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/twosmallonions/recipes/backend/internal/middleware"
	"github.com/twosmallonions/recipes/backend/internal/service"
	"github.com/twosmallonions/recipes/backend/internal/types"
)

type RecipeHandler struct {
	recipes service.IRecipeService
}

func NewRecipeHandler(recipes service.IRecipeService) *RecipeHandler {
	return &RecipeHandler{recipes: recipes}
}

// RegisterRoutes mounts the recipe endpoints. The group is expected to be
// behind AuthMiddleware. Static top level paths must be reserved in
// service.Slugify so they never shadow a stored recipe.
func (h *RecipeHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/", h.Hello)
	router.POST("/", h.CreateRecipe)
	router.GET("/recipes", h.ListRecipes)
	router.GET("/:slug", h.GetRecipe)
	router.POST("/:slug/instructions", h.AddInstruction)
	router.POST("/:slug/ingredients", h.AddIngredient)
}

func (h *RecipeHandler) Hello(c *gin.Context) {
	c.String(http.StatusOK, "Hello World!")
}

func (h *RecipeHandler) CreateRecipe(c *gin.Context) {
	var req types.CreateRecipeRequest
	if err := bindJSON(c, &req); err != nil {
		_ = c.Error(err)
		return
	}
	if err := req.Validate(); err != nil {
		_ = c.Error(invalid(err))
		return
	}

	recipe, err := h.recipes.CreateRecipe(c.Request.Context(), &req, middleware.UserID(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, recipe)
}

// ListRecipes returns the caller's recipes without their steps.
func (h *RecipeHandler) ListRecipes(c *gin.Context) {
	recipes, err := h.recipes.ListRecipes(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, recipes)
}

func (h *RecipeHandler) GetRecipe(c *gin.Context) {
	recipe, err := h.recipes.GetFullRecipeBySlug(c.Request.Context(), c.Param("slug"), middleware.UserID(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, recipe)
}

func (h *RecipeHandler) AddInstruction(c *gin.Context) {
	var req types.CreateInstructionRequest
	if err := bindJSON(c, &req); err != nil {
		_ = c.Error(err)
		return
	}
	if err := req.Validate(); err != nil {
		_ = c.Error(invalid(err))
		return
	}

	recipe, err := h.recipes.AddInstruction(c.Request.Context(), c.Param("slug"), middleware.UserID(c), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, recipe)
}

func (h *RecipeHandler) AddIngredient(c *gin.Context) {
	var req types.CreateIngredientRequest
	if err := bindJSON(c, &req); err != nil {
		_ = c.Error(err)
		return
	}
	if err := req.Validate(); err != nil {
		_ = c.Error(invalid(err))
		return
	}

	recipe, err := h.recipes.AddIngredient(c.Request.Context(), c.Param("slug"), middleware.UserID(c), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, recipe)
}
