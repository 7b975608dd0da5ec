package repository

import (
	"context"

	"recipebox/internal/models"
	"recipebox/internal/observability"

	"gorm.io/gorm"
)

// RecipeFilter narrows List. Limit 0 returns every row.
type RecipeFilter struct {
	UserID string
	Limit  int
	Offset int
}

// RecipeRepository defines persistence operations for recipes.
type RecipeRepository interface {
	Create(ctx context.Context, recipe *models.Recipe) error
	GetByID(ctx context.Context, id string) (*models.Recipe, error)
	// List returns recipes newest first.
	List(ctx context.Context, filter RecipeFilter) ([]models.Recipe, error)
	Update(ctx context.Context, id string, fields map[string]any) error
	// Delete removes the recipe and its comments in one transaction and
	// returns the ids of the removed comments.
	Delete(ctx context.Context, id string) ([]string, error)
}

type recipeRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewRecipeRepository creates a new RecipeRepository
func NewRecipeRepository(db *gorm.DB) RecipeRepository {
	return &recipeRepository{db: db, log: observability.NewRepoLogger("recipes")}
}

func (r *recipeRepository) Create(ctx context.Context, recipe *models.Recipe) error {
	defer observability.TrackQuery("create", "recipes")()

	if err := r.db.WithContext(ctx).Create(recipe).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return err
	}
	r.log.LogCreate(ctx, map[string]any{"recipe_id": recipe.ID, "user_id": recipe.UserID})
	return nil
}

func (r *recipeRepository) GetByID(ctx context.Context, id string) (*models.Recipe, error) {
	defer observability.TrackQuery("get", "recipes")()

	var recipe models.Recipe
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&recipe).Error; err != nil {
		return nil, err
	}
	return &recipe, nil
}

func (r *recipeRepository) List(ctx context.Context, filter RecipeFilter) ([]models.Recipe, error) {
	defer observability.TrackQuery("list", "recipes")()

	q := r.db.WithContext(ctx).Model(&models.Recipe{})
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	q = q.Order("created_at DESC")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	recipes := []models.Recipe{}
	if err := q.Find(&recipes).Error; err != nil {
		return nil, err
	}
	return recipes, nil
}

func (r *recipeRepository) Update(ctx context.Context, id string, fields map[string]any) error {
	defer observability.TrackQuery("update", "recipes")()

	res := r.db.WithContext(ctx).Model(&models.Recipe{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, "update")
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	r.log.LogUpdate(ctx, map[string]any{"recipe_id": id, "fields": len(fields)})
	return nil
}

func (r *recipeRepository) Delete(ctx context.Context, id string) ([]string, error) {
	defer observability.TrackQuery("delete", "recipes")()

	var commentIDs []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Comment{}).Where("recipe_id = ?", id).Pluck("id", &commentIDs).Error; err != nil {
			return err
		}
		if err := tx.Where("recipe_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Recipe{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		r.log.LogError(ctx, err, "delete")
		return nil, err
	}
	r.log.LogDelete(ctx, map[string]any{"recipe_id": id, "comments": len(commentIDs)})
	return commentIDs, nil
}
