// Package client is a Go client for the Recipebox API. A Client owns the
// signed-in session and implements the comment view backend over HTTP and the
// change-feed websocket.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"recipebox/internal/models"
	"recipebox/internal/session"

	"github.com/gorilla/websocket"
)

const (
	defaultTimeout   = 15 * time.Second
	maxErrorBodySize = 64 << 10
)

// Client talks to one Recipebox server.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	dialer     *websocket.Dialer
	session    *session.Holder
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithDialer replaces the websocket dialer used by Subscribe.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// WithSession makes the client share an existing session holder.
func WithSession(h *session.Holder) Option {
	return func(c *Client) { c.session = h }
}

// New returns a client for the server at baseURL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https, got %q", baseURL)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: defaultTimeout},
		dialer:     &websocket.Dialer{HandshakeTimeout: defaultTimeout},
		session:    session.NewHolder(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Session exposes the client's session for observers.
func (c *Client) Session() session.Observable {
	return c.session
}

type request struct {
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
	// token overrides the session token when set.
	token string
}

func (c *Client) endpoint(scheme, path string, query url.Values) string {
	u := *c.baseURL
	if scheme != "" {
		u.Scheme = scheme
	}
	u.Path = u.Path + "/api" + path
	u.RawQuery = query.Encode()
	return u.String()
}

// doJSON sends body as JSON and decodes the reply into out when out is non-nil.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	req := request{method: method, path: path}
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		req.body = bytes.NewReader(payload)
		req.contentType = "application/json"
	}
	return c.send(ctx, req, out)
}

func (c *Client) send(ctx context.Context, r request, out any) error {
	req, err := http.NewRequestWithContext(ctx, r.method, c.endpoint("", r.path, r.query), r.body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", r.method, r.path, err)
	}
	req.Header.Set("Accept", "application/json")
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	token := r.token
	if token == "" {
		token = c.session.Token()
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", r.method, r.path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", r.method, r.path, err)
	}
	return nil
}

// decodeError turns an error reply into a *models.AppError carrying the
// server's code and message.
func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))

	var body models.ErrorResponse
	if err := json.Unmarshal(data, &body); err != nil || body.Error == "" {
		return &models.AppError{Code: codeForStatus(resp.StatusCode), Message: http.StatusText(resp.StatusCode)}
	}
	code := body.Code
	if code == "" {
		code = codeForStatus(resp.StatusCode)
	}
	return &models.AppError{Code: code, Message: body.Error}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return models.CodeValidation
	case http.StatusUnauthorized:
		return models.CodeUnauthorized
	case http.StatusForbidden:
		return models.CodeForbidden
	case http.StatusNotFound:
		return models.CodeNotFound
	case http.StatusConflict:
		return models.CodeConflict
	default:
		return models.CodeInternal
	}
}

// IsCode reports whether err is an API error with the given code.
func IsCode(err error, code string) bool {
	var appErr *models.AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

func pageQuery(limit, offset int) url.Values {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	return q
}

func idPath(prefix, id string) string {
	return prefix + "/" + url.PathEscape(id)
}
