// Package session keeps the per-user conversation history of the chat
// surfaces. Nothing here is persisted.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"lawrag/internal/domain"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message of a conversation.
type Turn struct {
	Role    Role              `json:"role"`
	Content string            `json:"content"`
	Sources []domain.Citation `json:"sources,omitempty"`
	At      time.Time         `json:"at"`
}

// Session is owned by a single caller and is not safe for concurrent use.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	turns     []Turn
}

func New() *Session {
	return &Session{ID: uuid.NewString(), CreatedAt: time.Now().UTC()}
}

func (s *Session) AppendTurn(t Turn) {
	if t.At.IsZero() {
		t.At = time.Now().UTC()
	}
	s.turns = append(s.turns, t)
}

// Turns returns a copy of the history, oldest first.
func (s *Session) Turns() []Turn {
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

func (s *Session) Clear() { s.turns = nil }

var ErrNotFound = errors.New("session not found")

// Registry holds the sessions of the HTTP surface. Each session is guarded
// by its own lock so one user's request never waits on another's.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*entry
}

type entry struct {
	mu      sync.Mutex
	session *Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*entry)}
}

func (r *Registry) Create() *Session {
	s := New()
	r.mu.Lock()
	r.sessions[s.ID] = &entry{session: s}
	r.mu.Unlock()
	return s
}

// With runs fn with exclusive access to the session id.
func (r *Registry) With(id string, fn func(*Session) error) error {
	r.mu.Lock()
	e, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.session)
}

func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(r.sessions, id)
	return nil
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
