// Package session holds the signed-in session of a client process and tells
// subscribers when it changes.
package session

import (
	"sync"

	"recipebox/internal/models"
)

// Event names why the session changed.
type Event string

// Session change events.
const (
	InitialSession   Event = "INITIAL_SESSION"
	SignedIn         Event = "SIGNED_IN"
	SignedOut        Event = "SIGNED_OUT"
	UserUpdated      Event = "USER_UPDATED"
	PasswordRecovery Event = "PASSWORD_RECOVERY"
)

// Listener is called with the event and the new session (nil when signed out).
type Listener func(event Event, s *models.Session)

// Observable is the read side of a Holder.
type Observable interface {
	Current() *models.Session
	User() *models.SessionUser
	Subscribe(fn Listener) (unsubscribe func())
}

type subscription struct {
	id int
	fn Listener
}

// Holder owns the current session. Set is the only write path.
type Holder struct {
	mu      sync.RWMutex
	current *models.Session
	subs    []subscription
	nextID  int
}

// NewHolder returns a Holder with no session.
func NewHolder() *Holder {
	return &Holder{}
}

// Current returns a copy of the session, or nil when signed out.
func (h *Holder) Current() *models.Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.current == nil {
		return nil
	}
	s := *h.current
	return &s
}

// User returns the signed-in user, or nil.
func (h *Holder) User() *models.SessionUser {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.current == nil {
		return nil
	}
	u := h.current.User
	return &u
}

// Token returns the current access token, or "".
func (h *Holder) Token() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.current == nil {
		return ""
	}
	return h.current.AccessToken
}

// Set replaces the session and notifies subscribers in subscription order.
// SignedOut always clears the session.
func (h *Holder) Set(event Event, s *models.Session) {
	if event == SignedOut {
		s = nil
	}
	var stored *models.Session
	if s != nil {
		c := *s
		stored = &c
	}

	h.mu.Lock()
	h.current = stored
	subs := make([]subscription, len(h.subs))
	copy(subs, h.subs)
	h.mu.Unlock()

	for _, sub := range subs {
		var view *models.Session
		if stored != nil {
			c := *stored
			view = &c
		}
		sub.fn(event, view)
	}
}

// Subscribe registers fn for future changes. The returned function removes it
// and may be called any number of times.
func (h *Holder) Subscribe(fn Listener) func() {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs = append(h.subs, subscription{id: id, fn: fn})
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			for i, sub := range h.subs {
				if sub.id == id {
					h.subs = append(h.subs[:i:i], h.subs[i+1:]...)
					return
				}
			}
		})
	}
}
