package service

import (
	"context"
	"errors"
	"time"

	"recipebox/internal/models"
	"recipebox/internal/repository"
	"recipebox/internal/validation"

	"gorm.io/gorm"
)

type CommentService struct {
	commentRepo repository.CommentRepository
	recipeRepo  repository.RecipeRepository
	feed        ChangePublisher
}

type CreateCommentInput struct {
	UserID   string
	RecipeID string
	Text     string
}

type DeleteCommentInput struct {
	UserID    string
	CommentID string
}

// NewCommentService wires the comment rules. feed may be nil.
func NewCommentService(
	commentRepo repository.CommentRepository,
	recipeRepo repository.RecipeRepository,
	feed ChangePublisher,
) *CommentService {
	if feed == nil {
		feed = noopPublisher{}
	}
	return &CommentService{
		commentRepo: commentRepo,
		recipeRepo:  recipeRepo,
		feed:        feed,
	}
}

// ListComments returns the recipe's comments with their authors, oldest first.
func (s *CommentService) ListComments(ctx context.Context, recipeID string) ([]models.CommentWithUser, error) {
	if _, err := s.recipeRepo.GetByID(ctx, recipeID); err != nil {
		return nil, translateError(err, "Recipe", recipeID)
	}
	comments, err := s.commentRepo.ListWithUsers(ctx, recipeID)
	if err != nil {
		return nil, translateError(err, "Comment", "")
	}
	return comments, nil
}

// GetComment returns one comment with its author's email and name.
func (s *CommentService) GetComment(ctx context.Context, id string) (*models.CommentWithUser, error) {
	comment, err := s.commentRepo.GetWithUser(ctx, id)
	if err != nil {
		return nil, translateError(err, "Comment", id)
	}
	return comment, nil
}

// CreateComment stores the comment and publishes an INSERT change event.
func (s *CommentService) CreateComment(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	if in.UserID == "" {
		return nil, models.NewUnauthorizedError("Sign in to comment")
	}
	text, err := validation.RequiredText("text", in.Text, validation.MaxCommentLength)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if _, err := s.recipeRepo.GetByID(ctx, in.RecipeID); err != nil {
		return nil, translateError(err, "Recipe", in.RecipeID)
	}

	comment := &models.Comment{
		RecipeID: in.RecipeID,
		UserID:   in.UserID,
		Text:     text,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		// The recipe can vanish between the check and the insert.
		return nil, translateError(err, "Recipe", in.RecipeID)
	}

	s.feed.Publish(ctx, models.ChangeEvent{
		Table:           models.TableComments,
		Type:            models.EventInsert,
		RecipeID:        comment.RecipeID,
		New:             &models.RecordRef{ID: comment.ID},
		CommitTimestamp: comment.CreatedAt.UTC(),
	})
	return comment, nil
}

// DeleteComment deletes a comment the caller wrote and publishes a DELETE
// change event. Someone else's comment is FORBIDDEN, a missing one NOT_FOUND.
func (s *CommentService) DeleteComment(ctx context.Context, in DeleteCommentInput) (*models.Comment, error) {
	if in.UserID == "" {
		return nil, models.NewUnauthorizedError("Sign in to delete comments")
	}

	deleted, err := s.commentRepo.DeleteOwned(ctx, in.CommentID, in.UserID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if _, getErr := s.commentRepo.GetWithUser(ctx, in.CommentID); getErr == nil {
			return nil, models.NewForbiddenError("You can only delete your own comments")
		}
		return nil, models.NewNotFoundError("Comment", in.CommentID)
	}
	if err != nil {
		return nil, translateError(err, "Comment", in.CommentID)
	}

	s.feed.Publish(ctx, models.ChangeEvent{
		Table:           models.TableComments,
		Type:            models.EventDelete,
		RecipeID:        deleted.RecipeID,
		Old:             &models.RecordRef{ID: deleted.ID},
		CommitTimestamp: time.Now().UTC(),
	})
	return deleted, nil
}
