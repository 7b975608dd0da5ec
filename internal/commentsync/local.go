package commentsync

import (
	"context"

	"recipebox/internal/models"
	"recipebox/internal/notifications"
	"recipebox/internal/service"
	"recipebox/internal/session"
)

// LocalBackend serves a View from inside the server process: reads and
// writes go through the comment service, events come from the change hub.
type LocalBackend struct {
	comments *service.CommentService
	hub      *notifications.Hub
	session  session.Observable
}

// NewLocalBackend returns a Backend acting as the session's user.
func NewLocalBackend(comments *service.CommentService, hub *notifications.Hub, sess session.Observable) *LocalBackend {
	return &LocalBackend{comments: comments, hub: hub, session: sess}
}

func (b *LocalBackend) ListComments(ctx context.Context, recipeID string) ([]models.CommentWithUser, error) {
	return b.comments.ListComments(ctx, recipeID)
}

func (b *LocalBackend) GetComment(ctx context.Context, id string) (*models.CommentWithUser, error) {
	return b.comments.GetComment(ctx, id)
}

func (b *LocalBackend) InsertComment(ctx context.Context, recipeID, text string) (*models.Comment, error) {
	return b.comments.CreateComment(ctx, service.CreateCommentInput{
		UserID:   b.userID(),
		RecipeID: recipeID,
		Text:     text,
	})
}

func (b *LocalBackend) DeleteComment(ctx context.Context, id string) error {
	_, err := b.comments.DeleteComment(ctx, service.DeleteCommentInput{
		UserID:    b.userID(),
		CommentID: id,
	})
	return err
}

// Subscribe attaches a hub listener that is detached on Close or when ctx
// ends, whichever comes first.
func (b *LocalBackend) Subscribe(ctx context.Context, filter models.ChangeFilter) (Subscription, error) {
	l := b.hub.Listen(filter)
	stop := context.AfterFunc(ctx, func() { _ = l.Close() })
	return &listenerSubscription{Listener: l, stop: stop}, nil
}

type listenerSubscription struct {
	*notifications.Listener
	stop func() bool
}

func (s *listenerSubscription) Close() error {
	s.stop()
	return s.Listener.Close()
}

func (b *LocalBackend) userID() string {
	if b.session == nil {
		return ""
	}
	if u := b.session.User(); u != nil {
		return u.ID
	}
	return ""
}
