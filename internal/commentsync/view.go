// Package commentsync keeps a live, ordered list of a recipe's comments: an
// initial snapshot from the backend, kept current by the change feed and by
// the caller's own submits and deletes.
package commentsync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"recipebox/internal/models"
	"recipebox/internal/observability"
	"recipebox/internal/session"
)

var (
	// ErrNotSignedIn is returned by Submit and Delete without a session.
	ErrNotSignedIn = errors.New("sign in to comment")
	// ErrEmptyText is returned by Submit for blank text.
	ErrEmptyText = errors.New("comment text is required")
	// ErrClosed is returned once the view has been closed.
	ErrClosed = errors.New("comment view is closed")
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("comment view already subscribed")
)

// Subscription is a live stream of change events.
type Subscription interface {
	Events() <-chan models.ChangeEvent
	Close() error
}

// Backend is what the view needs from the recipe service.
type Backend interface {
	// ListComments returns the recipe's comments oldest first.
	ListComments(ctx context.Context, recipeID string) ([]models.CommentWithUser, error)
	GetComment(ctx context.Context, id string) (*models.CommentWithUser, error)
	// InsertComment writes a comment authored by the signed-in user.
	InsertComment(ctx context.Context, recipeID, text string) (*models.Comment, error)
	// DeleteComment deletes the comment only if the signed-in user wrote it.
	DeleteComment(ctx context.Context, id string) error
	Subscribe(ctx context.Context, filter models.ChangeFilter) (Subscription, error)
}

// View is the comment list of one recipe. It is safe for concurrent use;
// feed events are applied on the view's own goroutine.
type View struct {
	recipeID string
	backend  Backend
	session  session.Observable

	mu       sync.Mutex
	comments []models.CommentWithUser
	lastErr  error
	onChange func([]models.CommentWithUser)
	sub      Subscription
	cancel   context.CancelFunc
	closed   bool
	wg       sync.WaitGroup
}

// New returns an empty view for recipeID. sess may be nil for a read-only view.
func New(recipeID string, backend Backend, sess session.Observable) *View {
	return &View{recipeID: recipeID, backend: backend, session: sess}
}

// RecipeID returns the recipe the view follows.
func (v *View) RecipeID() string { return v.recipeID }

// Filter is the change-feed filter the view subscribes with.
func (v *View) Filter() models.ChangeFilter {
	return models.ChangeFilter{Table: models.TableComments, Event: models.EventAll, RecipeID: v.recipeID}
}

// OnChange sets a callback fired with a snapshot after every change to the
// list. The callback runs outside the view's lock and must not call Close.
func (v *View) OnChange(fn func([]models.CommentWithUser)) {
	v.mu.Lock()
	v.onChange = fn
	v.mu.Unlock()
}

// Snapshot returns a copy of the list in display order.
func (v *View) Snapshot() []models.CommentWithUser {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]models.CommentWithUser, len(v.comments))
	copy(out, v.comments)
	return out
}

// Err returns the last failure seen by Load, Submit or Delete.
func (v *View) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastErr
}

// Load replaces the list with the backend's current comments.
func (v *View) Load(ctx context.Context) error {
	if v.isClosed() {
		return ErrClosed
	}
	comments, err := v.backend.ListComments(ctx, v.recipeID)
	if err != nil {
		v.setErr(err)
		return err
	}

	v.mu.Lock()
	v.comments = append([]models.CommentWithUser(nil), comments...)
	v.lastErr = nil
	v.mu.Unlock()
	v.notify()
	return nil
}

// Start opens the one change-feed subscription of the view and applies its
// events until Close. ctx bounds the subscription as well.
func (v *View) Start(ctx context.Context) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	if v.sub != nil {
		v.mu.Unlock()
		return ErrAlreadyStarted
	}
	runCtx, cancel := context.WithCancel(ctx)
	v.cancel = cancel
	v.mu.Unlock()

	sub, err := v.backend.Subscribe(runCtx, v.Filter())
	if err != nil {
		cancel()
		v.mu.Lock()
		v.cancel = nil
		v.mu.Unlock()
		return fmt.Errorf("subscribe to comment changes: %w", err)
	}

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		cancel()
		_ = sub.Close()
		return ErrClosed
	}
	v.sub = sub
	v.wg.Add(1)
	v.mu.Unlock()

	go v.run(runCtx, sub)
	return nil
}

func (v *View) run(ctx context.Context, sub Subscription) {
	defer v.wg.Done()
	events := sub.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			v.handleEvent(ctx, ev)
		}
	}
}

func (v *View) handleEvent(ctx context.Context, ev models.ChangeEvent) {
	if ev.Table != models.TableComments || ev.RecipeID != v.recipeID {
		return
	}
	switch ev.Type {
	case models.EventInsert:
		id := ev.RecordID()
		if id == "" || v.contains(id) {
			return
		}
		comment, err := v.backend.GetComment(ctx, id)
		if err != nil || comment == nil {
			observability.GlobalLogger.DebugContext(ctx, "dropping comment insert event",
				"comment_id", id, "error", err)
			return
		}
		v.applyInsert(*comment)
	case models.EventDelete:
		v.applyDelete(ev.RecordID())
	}
}

// Submit writes a comment as the signed-in user and appends it once the
// denormalized row is read back. The feed echo of the same insert is a no-op.
// If the stored comment cannot be read back the list is left unchanged and
// Submit returns (nil, nil): the write itself succeeded.
func (v *View) Submit(ctx context.Context, text string) (*models.CommentWithUser, error) {
	if v.isClosed() {
		return nil, ErrClosed
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	if v.session == nil || v.session.User() == nil {
		return nil, ErrNotSignedIn
	}

	inserted, err := v.backend.InsertComment(ctx, v.recipeID, text)
	if err != nil {
		v.setErr(err)
		return nil, err
	}
	comment, err := v.backend.GetComment(ctx, inserted.ID)
	if err != nil || comment == nil {
		observability.GlobalLogger.DebugContext(ctx, "comment stored but not read back",
			"comment_id", inserted.ID, "error", err)
		return nil, nil
	}
	v.applyInsert(*comment)
	return comment, nil
}

// Delete deletes one of the signed-in user's comments and removes it locally.
// On failure the list is left as it was.
func (v *View) Delete(ctx context.Context, id string) error {
	if v.isClosed() {
		return ErrClosed
	}
	if v.session == nil || v.session.User() == nil {
		return ErrNotSignedIn
	}
	if err := v.backend.DeleteComment(ctx, id); err != nil {
		v.setErr(err)
		return err
	}
	v.applyDelete(id)
	return nil
}

// Close releases the subscription and waits for the apply goroutine. Calling
// it again is a no-op.
func (v *View) Close() error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil
	}
	v.closed = true
	sub, cancel := v.sub, v.cancel
	v.sub, v.cancel = nil, nil
	v.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	var err error
	if sub != nil {
		err = sub.Close()
	}
	v.wg.Wait()
	return err
}

// applyInsert appends c unless a comment with its id is already listed.
func (v *View) applyInsert(c models.CommentWithUser) bool {
	v.mu.Lock()
	for _, existing := range v.comments {
		if existing.ID == c.ID {
			v.mu.Unlock()
			return false
		}
	}
	v.comments = append(v.comments, c)
	v.mu.Unlock()
	v.notify()
	return true
}

// applyDelete removes the comment with id if it is listed.
func (v *View) applyDelete(id string) bool {
	v.mu.Lock()
	idx := -1
	for i, existing := range v.comments {
		if existing.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		v.mu.Unlock()
		return false
	}
	v.comments = append(v.comments[:idx:idx], v.comments[idx+1:]...)
	v.mu.Unlock()
	v.notify()
	return true
}

func (v *View) contains(id string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, existing := range v.comments {
		if existing.ID == id {
			return true
		}
	}
	return false
}

func (v *View) notify() {
	v.mu.Lock()
	fn := v.onChange
	var snapshot []models.CommentWithUser
	if fn != nil {
		snapshot = make([]models.CommentWithUser, len(v.comments))
		copy(snapshot, v.comments)
	}
	v.mu.Unlock()
	if fn != nil {
		fn(snapshot)
	}
}

func (v *View) setErr(err error) {
	v.mu.Lock()
	v.lastErr = err
	v.mu.Unlock()
}

func (v *View) isClosed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}
