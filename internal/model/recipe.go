package model

import (
	"time"

	"github.com/google/uuid"
)

// Recipe is a user owned recipe. (User, Slug) is its external identity.
type Recipe struct {
	ID           uuid.UUID     `gorm:"type:uuid;primaryKey"`
	User         string        `gorm:"column:user;type:varchar(255);not null;uniqueIndex:recipes_slug_user_unique,priority:2"`
	Title        string        `gorm:"type:text;not null"`
	Slug         string        `gorm:"type:varchar(255);not null;index:slug_idx;uniqueIndex:recipes_slug_user_unique,priority:1"`
	Description  *string       `gorm:"type:text"`
	CreatedAt    time.Time     `gorm:"not null"`
	UpdatedAt    time.Time     `gorm:"not null"`
	Instructions []Instruction `gorm:"foreignKey:RecipeID;constraint:OnDelete:CASCADE,OnUpdate:CASCADE"`
	Ingredients  []Ingredient  `gorm:"foreignKey:RecipeID;constraint:OnDelete:CASCADE,OnUpdate:CASCADE"`
}

func (Recipe) TableName() string {
	return "recipes"
}

// Instruction is one step of a recipe. Position is unique per recipe.
type Instruction struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	Text     string    `gorm:"type:text;not null"`
	RecipeID uuid.UUID `gorm:"column:recipe;type:uuid;not null;uniqueIndex:recipe_position_unique,priority:1"`
	Position int       `gorm:"not null;uniqueIndex:recipe_position_unique,priority:2"`
}

func (Instruction) TableName() string {
	return "instructions"
}

// Ingredient is one line of a recipe's ingredient list, kept as free text.
type Ingredient struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	Text     string    `gorm:"type:text;not null"`
	RecipeID uuid.UUID `gorm:"column:recipe;type:uuid;not null;uniqueIndex:ingredient_position_unique,priority:1"`
	Position int       `gorm:"not null;uniqueIndex:ingredient_position_unique,priority:2"`
}

func (Ingredient) TableName() string {
	return "ingredients"
}
