package main

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/twosmallonions/recipes/backend/internal/apperrors"
	"github.com/twosmallonions/recipes/backend/internal/database"
	"github.com/twosmallonions/recipes/backend/internal/logger"
	"github.com/twosmallonions/recipes/backend/internal/service"
	"github.com/twosmallonions/recipes/backend/internal/types"
	"github.com/twosmallonions/recipes/backend/migrations"
)

//go:embed samples.json
var samples []byte

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:  "seed_recipes",
		Usage: "Migrate the schema and load sample recipes for one owner",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection string",
				Sources:  cli.EnvVars("DATABASE_URL"),
				Required: true,
			},
			&cli.StringFlag{
				Name:     "owner",
				Usage:    "Subject (sub claim) that will own the recipes",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "file",
				Usage: "JSON array of recipes to load instead of the built-in samples",
			},
		},
		Action: run,
	}
	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "seed_recipes: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	log, err := logger.New("info", "console")
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	data := samples
	if path := cmd.String("file"); path != "" {
		if data, err = os.ReadFile(path); err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
	}
	recipes, err := parseRecipes(data)
	if err != nil {
		return err
	}

	db, err := database.New(ctx, cmd.String("database-url"), database.Options{Logger: log, MaxRetries: 3})
	if err != nil {
		return err
	}
	defer db.Close()

	created, skipped, err := load(ctx, db, cmd.String("owner"), recipes, log)
	if err != nil {
		return err
	}
	log.Info("seeding finished", zap.Int("created", created), zap.Int("skipped", skipped))
	return nil
}

func parseRecipes(data []byte) ([]types.CreateRecipeRequest, error) {
	var recipes []types.CreateRecipeRequest
	if err := json.Unmarshal(data, &recipes); err != nil {
		return nil, fmt.Errorf("failed to parse recipes: %w", err)
	}
	for i := range recipes {
		if err := recipes[i].Validate(); err != nil {
			return nil, fmt.Errorf("recipe %d (%q): %w", i, recipes[i].Title, err)
		}
	}
	return recipes, nil
}

// load brings the schema up to date and seeds recipes into db.
func load(ctx context.Context, db *database.DB, owner string, reqs []types.CreateRecipeRequest, log *zap.Logger) (created, skipped int, err error) {
	if err := database.RunMigrations(ctx, db, migrations.FS, log); err != nil {
		return 0, 0, fmt.Errorf("failed to run migrations: %w", err)
	}
	return seed(ctx, service.NewRecipeService(db.DB, log), owner, reqs, log)
}

// seed creates each recipe for owner. Recipes whose slug the owner already
// uses are skipped so the command can be rerun.
func seed(ctx context.Context, recipes service.IRecipeService, owner string, reqs []types.CreateRecipeRequest, log *zap.Logger) (created, skipped int, err error) {
	for i := range reqs {
		full, err := recipes.CreateRecipe(ctx, &reqs[i], owner)
		switch {
		case err == nil:
			created++
			log.Info("created recipe", zap.String("slug", full.Slug))
		case apperrors.IsCode(err, apperrors.CodeConflict):
			skipped++
			log.Info("recipe already exists", zap.String("title", reqs[i].Title))
		default:
			return created, skipped, fmt.Errorf("failed to create %q: %w", reqs[i].Title, err)
		}
	}
	return created, skipped, nil
}
