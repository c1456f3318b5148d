// Package chat keeps session metadata and per-session message logs in sync
// with either the local key/value store or the remote document store.
package chat

import (
	"context"
	"errors"

	"github.com/abimbolaoige/kfm-counsel-chat/internal/model/chat"
)

var (
	ErrSessionNotFound        = errors.New("session not found")
	ErrPersistenceUnavailable = errors.New("persistence not configured")
	ErrClearUnsupported       = errors.New("history clear is only available in guest mode")
	ErrInvalidTitle           = errors.New("session title is required")
)

// Backend is the persistence capability behind a Directory and a Log. The
// local and remote implementations are interchangeable; which one a scope
// uses depends on whether an identity is present.
type Backend interface {
	ListSessions(ctx context.Context) ([]chat.Session, error)
	// WatchSessions delivers the session list once and then after every
	// external change, until ctx is done. Backends without push deliver once
	// and close the channel.
	WatchSessions(ctx context.Context) (<-chan []chat.Session, error)
	GetSession(ctx context.Context, id string) (chat.Session, bool, error)
	PutSession(ctx context.Context, session chat.Session) error
	MergeSession(ctx context.Context, id string, patch chat.SessionPatch) error
	// RemoveSession deletes the metadata and every message of the session.
	RemoveSession(ctx context.Context, id string) error

	PutMessage(ctx context.Context, sessionID string, msg chat.Message) error
	ListMessages(ctx context.Context, sessionID string) ([]chat.Message, error)
	WatchMessages(ctx context.Context, sessionID string) (<-chan []chat.Message, error)
	ClearMessages(ctx context.Context, sessionID string) error
}

// Welcome texts for the synthetic greeting.
const (
	GuestWelcome   = "Hello. I am KFM Counsel, your Christian marriage relationship companion. How can I be a support to you today?"
	ClearedWelcome = "Chat history cleared. How can I be a support to you today?"
)

// MemberWelcome greets a signed-in user by name.
func MemberWelcome(name string) string {
	if name == "" {
		name = "friend"
	}
	return "Hello " + name + ". I am KFM Counsel. How can I be a support to you today?"
}

// listeners is a small registry of change callbacks.
type listeners[F any] struct {
	next  int
	items map[int]F
}

func (l *listeners[F]) add(fn F) int {
	if l.items == nil {
		l.items = make(map[int]F)
	}
	l.next++
	l.items[l.next] = fn
	return l.next
}

func (l *listeners[F]) remove(id int) {
	delete(l.items, id)
}

func (l *listeners[F]) snapshot() []F {
	out := make([]F, 0, len(l.items))
	for _, fn := range l.items {
		out = append(out, fn)
	}
	return out
}
