package repository

import (
	"context"

	"recipebox/internal/models"
	"recipebox/internal/observability"

	"gorm.io/gorm"
)

// CommentRepository defines persistence operations for comments. Reads go
// through the comments_with_users view.
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetWithUser(ctx context.Context, id string) (*models.CommentWithUser, error)
	// ListWithUsers returns a recipe's comments oldest first.
	ListWithUsers(ctx context.Context, recipeID string) ([]models.CommentWithUser, error)
	// DeleteOwned deletes the comment only if userID wrote it and returns the
	// deleted row, or gorm.ErrRecordNotFound.
	DeleteOwned(ctx context.Context, id, userID string) (*models.Comment, error)
}

type commentRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db, log: observability.NewRepoLogger("comments")}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	defer observability.TrackQuery("create", "comments")()

	if err := r.db.WithContext(ctx).Create(comment).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return err
	}
	r.log.LogCreate(ctx, map[string]any{"comment_id": comment.ID, "recipe_id": comment.RecipeID})
	return nil
}

func (r *commentRepository) GetWithUser(ctx context.Context, id string) (*models.CommentWithUser, error) {
	defer observability.TrackQuery("get", "comments_with_users")()

	var row models.CommentWithUser
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *commentRepository) ListWithUsers(ctx context.Context, recipeID string) ([]models.CommentWithUser, error) {
	defer observability.TrackQuery("list", "comments_with_users")()

	rows := []models.CommentWithUser{}
	err := r.db.WithContext(ctx).
		Where("recipe_id = ?", recipeID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *commentRepository) DeleteOwned(ctx context.Context, id, userID string) (*models.Comment, error) {
	defer observability.TrackQuery("delete", "comments")()

	var deleted models.Comment
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND user_id = ?", id, userID).Take(&deleted).Error; err != nil {
			return err
		}
		return tx.Where("id = ? AND user_id = ?", id, userID).Delete(&models.Comment{}).Error
	})
	if err != nil {
		r.log.LogError(ctx, err, "delete")
		return nil, err
	}
	r.log.LogDelete(ctx, map[string]any{"comment_id": id})
	return &deleted, nil
}
