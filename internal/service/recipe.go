package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/twosmallonions/recipes/backend/internal/apperrors"
	"github.com/twosmallonions/recipes/backend/internal/model"
	"github.com/twosmallonions/recipes/backend/internal/types"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	// fallbackSlug prefixes the slug of a title with no URL safe characters.
	fallbackSlug = "recipe"
	// maxSlugLength matches the width of recipes.slug.
	maxSlugLength = 255
	// reservedSuffix is appended to slugs that collide with a fixed route.
	reservedSuffix = "-recipe"
)

// reservedSlugs are top level paths served by something other than the
// recipe lookup. A recipe must never be stored under one of them.
var reservedSlugs = map[string]struct{}{
	"healthz": {},
	"readyz":  {},
	"metrics": {},
	"recipes": {},
}

// step kinds as reported by the full recipe query
const (
	kindInstruction = "instruction"
	kindIngredient  = "ingredient"
)

// RecipeService handles recipe operations. It is the only component that
// queries the recipes, instructions and ingredients tables.
type RecipeService struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewRecipeService creates a new RecipeService instance
func NewRecipeService(db *gorm.DB, logger *zap.Logger) *RecipeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecipeService{
		db:     db,
		logger: logger,
	}
}

// Slugify derives the URL identifier of a recipe from its title. Titles
// without any URL safe characters get a slug built from the tail of id.
func Slugify(title string, id uuid.UUID) string {
	s := slug.Make(title)
	if len(s) > maxSlugLength {
		s = strings.TrimRight(s[:maxSlugLength], "-_")
	}
	if s == "" {
		hex := id.String()
		return fallbackSlug + "-" + hex[len(hex)-8:]
	}
	if _, ok := reservedSlugs[s]; ok {
		return s + reservedSuffix
	}
	return s
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func newID() (uuid.UUID, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.Nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to generate id")
	}
	return id, nil
}

// CreateRecipe stores a recipe with its initial instructions and
// ingredients for owner and returns the full view of the stored recipe.
func (s *RecipeService) CreateRecipe(ctx context.Context, req *types.CreateRecipeRequest, owner string) (*types.FullRecipe, error) {
	id, err := newID()
	if err != nil {
		return nil, err
	}
	ts := now()
	recipe := model.Recipe{
		ID:          id,
		User:        owner,
		Title:       req.Title,
		Slug:        Slugify(req.Title, id),
		Description: req.Description,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}

	steps := make([]model.Instruction, 0, len(req.Instructions))
	for i, text := range req.Instructions {
		stepID, err := newID()
		if err != nil {
			return nil, err
		}
		steps = append(steps, model.Instruction{ID: stepID, Text: text, RecipeID: recipe.ID, Position: i})
	}
	ingredients := make([]model.Ingredient, 0, len(req.Ingredients))
	for i, text := range req.Ingredients {
		lineID, err := newID()
		if err != nil {
			return nil, err
		}
		ingredients = append(ingredients, model.Ingredient{ID: lineID, Text: text, RecipeID: recipe.ID, Position: i})
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Instructions", "Ingredients").Create(&recipe).Error; err != nil {
			return err
		}
		if len(steps) > 0 {
			if err := tx.Create(&steps).Error; err != nil {
				return err
			}
		}
		if len(ingredients) > 0 {
			if err := tx.Create(&ingredients).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.Wrap(err, apperrors.CodeConflict, "a recipe with this slug already exists").
				WithMeta("slug", recipe.Slug)
		}
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to create recipe")
	}

	recipesCreated.Inc()
	s.logger.Info("recipe created",
		zap.String("recipe_id", recipe.ID.String()),
		zap.String("slug", recipe.Slug),
		zap.Int("instructions", len(steps)),
		zap.Int("ingredients", len(ingredients)))

	return s.GetFullRecipeBySlug(ctx, recipe.Slug, owner)
}

// ListRecipes returns every recipe owned by owner, newest first. An owner
// without recipes gets an empty list.
func (s *RecipeService) ListRecipes(ctx context.Context, owner string) ([]types.RecipeSummary, error) {
	var recipes []model.Recipe
	err := s.db.WithContext(ctx).
		Select("id", "title", "slug", "description", "created_at", "updated_at").
		Where(`"user" = ?`, owner).
		Order("created_at DESC").
		Order("id DESC").
		Find(&recipes).Error
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to list recipes")
	}

	out := make([]types.RecipeSummary, 0, len(recipes))
	for _, r := range recipes {
		out = append(out, types.RecipeSummary{
			ID:          r.ID,
			Title:       r.Title,
			Slug:        r.Slug,
			Description: r.Description,
			CreatedAt:   r.CreatedAt.UTC(),
			UpdatedAt:   r.UpdatedAt.UTC(),
		})
	}
	return out, nil
}

// fullRecipeRow is one row of the recipe/step outer join. The step columns
// are NULL for a recipe without instructions or ingredients.
type fullRecipeRow struct {
	ID           uuid.UUID
	Title        string
	Slug         string
	Description  *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	StepKind     *string
	StepText     *string
	StepPosition *int
}

// stepsSubquery merges instructions and ingredients into one relation so
// a recipe and both of its lists come back from a single query.
const stepsSubquery = `LEFT JOIN (
	SELECT recipe, text, position, 'instruction' AS kind FROM instructions
	UNION ALL
	SELECT recipe, text, position, 'ingredient' AS kind FROM ingredients
) AS steps ON steps.recipe = recipes.id`

// GetFullRecipeBySlug loads the recipe owned by owner with the given slug
// together with its instructions and ingredients in position order.
func (s *RecipeService) GetFullRecipeBySlug(ctx context.Context, recipeSlug, owner string) (*types.FullRecipe, error) {
	var rows []fullRecipeRow
	err := s.db.WithContext(ctx).
		Table("recipes").
		Select(`recipes.id, recipes.title, recipes.slug, recipes.description,
			recipes.created_at, recipes.updated_at,
			steps.kind AS step_kind,
			steps.text AS step_text,
			steps.position AS step_position`).
		Joins(stepsSubquery).
		Where(`recipes."user" = ? AND recipes.slug = ?`, owner, recipeSlug).
		Order("steps.kind").
		Order("steps.position").
		Scan(&rows).Error
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to load recipe")
	}
	if len(rows) == 0 {
		return nil, apperrors.New(apperrors.CodeNotFound, "recipe not found").
			WithMeta("slug", recipeSlug)
	}

	full := collapseRows(rows)
	if err := full.Validate(); err != nil {
		s.logger.Error("stored recipe failed output validation",
			zap.String("recipe_id", full.ID.String()),
			zap.Error(err))
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "stored recipe is malformed")
	}
	return full, nil
}

// collapseRows folds the joined rows of a single recipe into one
// FullRecipe, skipping the NULL step side of the outer join. Rows arrive
// ordered by position within each kind.
func collapseRows(rows []fullRecipeRow) *types.FullRecipe {
	head := rows[0]
	full := &types.FullRecipe{
		ID:           head.ID,
		Title:        head.Title,
		Slug:         head.Slug,
		Description:  head.Description,
		CreatedAt:    head.CreatedAt.UTC(),
		UpdatedAt:    head.UpdatedAt.UTC(),
		Instructions: make([]types.RecipeInstruction, 0, len(rows)),
		Ingredients:  make([]types.RecipeIngredient, 0),
	}
	for _, r := range rows {
		if r.StepKind == nil || r.StepText == nil {
			continue
		}
		switch *r.StepKind {
		case kindInstruction:
			full.Instructions = append(full.Instructions, types.RecipeInstruction{Text: *r.StepText})
		case kindIngredient:
			full.Ingredients = append(full.Ingredients, types.RecipeIngredient{Text: *r.StepText})
		}
	}
	return full
}

// AddInstruction appends one step to an existing recipe. Without an
// explicit position the step goes after the current last one.
func (s *RecipeService) AddInstruction(ctx context.Context, recipeSlug, owner string, req *types.CreateInstructionRequest) (*types.FullRecipe, error) {
	return s.appendLine(ctx, recipeSlug, owner, kindInstruction, req.Position, &model.Instruction{},
		func(id, recipeID uuid.UUID, position int) any {
			return &model.Instruction{ID: id, Text: req.Text, RecipeID: recipeID, Position: position}
		})
}

// AddIngredient appends one line to the ingredient list of an existing
// recipe, following the same position rules as AddInstruction.
func (s *RecipeService) AddIngredient(ctx context.Context, recipeSlug, owner string, req *types.CreateIngredientRequest) (*types.FullRecipe, error) {
	return s.appendLine(ctx, recipeSlug, owner, kindIngredient, req.Position, &model.Ingredient{},
		func(id, recipeID uuid.UUID, position int) any {
			return &model.Ingredient{ID: id, Text: req.Text, RecipeID: recipeID, Position: position}
		})
}

// appendLine inserts the positioned row returned by build into the table
// modelled by table, then touches the recipe's updated_at.
func (s *RecipeService) appendLine(
	ctx context.Context,
	recipeSlug, owner, kind string,
	requested *int,
	table any,
	build func(id, recipeID uuid.UUID, position int) any,
) (*types.FullRecipe, error) {
	lineID, err := newID()
	if err != nil {
		return nil, err
	}

	var position int
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var recipe model.Recipe
		if err := tx.Select("id").
			Where(`"user" = ? AND slug = ?`, owner, recipeSlug).
			First(&recipe).Error; err != nil {
			return err
		}

		if requested != nil {
			position = *requested
		} else if err := tx.Model(table).
			Where("recipe = ?", recipe.ID).
			Select("COALESCE(MAX(position) + 1, 0)").
			Scan(&position).Error; err != nil {
			return err
		}

		if err := tx.Create(build(lineID, recipe.ID, position)).Error; err != nil {
			return err
		}
		return tx.Model(&model.Recipe{}).
			Where("id = ?", recipe.ID).
			Update("updated_at", now()).Error
	})
	switch {
	case err == nil:
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, apperrors.New(apperrors.CodeNotFound, "recipe not found").
			WithMeta("slug", recipeSlug)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return nil, apperrors.Wrap(err, apperrors.CodeConflict,
			fmt.Sprintf("an %s already exists at position %d", kind, position))
	default:
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to add "+kind)
	}

	recipeLinesAdded.WithLabelValues(kind).Inc()
	s.logger.Info(kind+" added",
		zap.String("slug", recipeSlug),
		zap.Int("position", position))

	return s.GetFullRecipeBySlug(ctx, recipeSlug, owner)
}
