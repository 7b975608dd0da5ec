package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"recipebox/internal/commentsync"
	"recipebox/internal/models"

	"github.com/gorilla/websocket"
)

const (
	eventBufferSize   = 64
	closeWriteTimeout = time.Second
)

var _ commentsync.Backend = (*Client)(nil)

// ListComments returns a recipe's comments oldest first.
func (c *Client) ListComments(ctx context.Context, recipeID string) ([]models.CommentWithUser, error) {
	var out []models.CommentWithUser
	if err := c.doJSON(ctx, http.MethodGet, idPath("/recipes", recipeID)+"/comments", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetComment returns one comment with its author details.
func (c *Client) GetComment(ctx context.Context, id string) (*models.CommentWithUser, error) {
	var out models.CommentWithUser
	if err := c.doJSON(ctx, http.MethodGet, idPath("/comments", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// InsertComment posts a comment as the signed-in user.
func (c *Client) InsertComment(ctx context.Context, recipeID, text string) (*models.Comment, error) {
	var out models.Comment
	body := map[string]string{"text": text}
	if err := c.doJSON(ctx, http.MethodPost, idPath("/recipes", recipeID)+"/comments", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteComment deletes a comment written by the signed-in user.
func (c *Client) DeleteComment(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, idPath("/comments", id), nil, nil)
}

// Subscribe opens the change-feed websocket with the given filter. The
// session token, when present, is sent as a query parameter.
func (c *Client) Subscribe(ctx context.Context, filter models.ChangeFilter) (commentsync.Subscription, error) {
	q := url.Values{}
	if filter.Table != "" {
		q.Set("table", filter.Table)
	}
	if filter.Event != "" {
		q.Set("event", filter.Event)
	}
	if filter.RecipeID != "" {
		q.Set("recipe_id", filter.RecipeID)
	}
	if token := c.session.Token(); token != "" {
		q.Set("token", token)
	}

	scheme := "ws"
	if c.baseURL.Scheme == "https" {
		scheme = "wss"
	}
	conn, resp, err := c.dialer.DialContext(ctx, c.endpoint(scheme, "/ws/changes", q), nil)
	if err != nil {
		if resp != nil && resp.StatusCode >= http.StatusBadRequest {
			defer func() { _ = resp.Body.Close() }()
			return nil, decodeError(resp)
		}
		return nil, fmt.Errorf("dial change feed: %w", err)
	}

	stream := &changeStream{
		conn:   conn,
		events: make(chan models.ChangeEvent, eventBufferSize),
		done:   make(chan struct{}),
	}
	go stream.readLoop()
	return stream, nil
}

// changeStream is a change-feed subscription over one websocket connection.
type changeStream struct {
	conn   *websocket.Conn
	events chan models.ChangeEvent
	done   chan struct{}

	closeOnce sync.Once
	closeErr  error
}

func (s *changeStream) Events() <-chan models.ChangeEvent { return s.events }

// readLoop forwards events until the connection fails or Close is called.
// The events channel is closed on exit.
func (s *changeStream) readLoop() {
	defer close(s.events)
	for {
		var ev models.ChangeEvent
		if err := s.conn.ReadJSON(&ev); err != nil {
			return
		}
		select {
		case s.events <- ev:
		case <-s.done:
			return
		}
	}
}

// Close ends the subscription. It is safe to call more than once.
func (s *changeStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteTimeout))
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}
