package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/abimbolaoige/kfm-counsel-chat/internal/model/chat"
	"github.com/abimbolaoige/kfm-counsel-chat/internal/storage/kv"
)

// LocalBackend keeps a scope's sessions and logs as JSON values in a kv.Store.
// It never pushes external changes: watches deliver one snapshot and close.
type LocalBackend struct {
	store kv.Store
	scope string
	mu    sync.Mutex
}

// NewLocalBackend returns a backend writing keys for scope, e.g. "guest".
func NewLocalBackend(store kv.Store, scope string) *LocalBackend {
	return &LocalBackend{store: store, scope: scope}
}

func (b *LocalBackend) sessionsKey() string {
	return kv.Prefix + "sessions_" + b.scope
}

func (b *LocalBackend) messagesKey(sessionID string) string {
	return kv.Prefix + "chat_" + b.scope + "_" + sessionID
}

func (b *LocalBackend) load(ctx context.Context, key string, dst any) error {
	raw, ok, err := b.store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	if !ok || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (b *LocalBackend) save(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return b.store.Set(ctx, key, raw)
}

func (b *LocalBackend) loadSessions(ctx context.Context) ([]chat.Session, error) {
	var sessions []chat.Session
	if err := b.load(ctx, b.sessionsKey(), &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (b *LocalBackend) loadMessages(ctx context.Context, sessionID string) ([]chat.Message, error) {
	var messages []chat.Message
	if err := b.load(ctx, b.messagesKey(sessionID), &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (b *LocalBackend) ListSessions(ctx context.Context) ([]chat.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sessions, err := b.loadSessions(ctx)
	if err != nil {
		return nil, err
	}
	chat.SortSessions(sessions)
	return sessions, nil
}

func (b *LocalBackend) WatchSessions(ctx context.Context) (<-chan []chat.Session, error) {
	sessions, err := b.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	ch := make(chan []chat.Session, 1)
	ch <- sessions
	close(ch)
	return ch, nil
}

func (b *LocalBackend) GetSession(ctx context.Context, id string) (chat.Session, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sessions, err := b.loadSessions(ctx)
	if err != nil {
		return chat.Session{}, false, err
	}
	for _, s := range sessions {
		if s.ID == id {
			return s, true, nil
		}
	}
	return chat.Session{}, false, nil
}

func (b *LocalBackend) PutSession(ctx context.Context, session chat.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	sessions, err := b.loadSessions(ctx)
	if err != nil {
		return err
	}
	replaced := false
	for i := range sessions {
		if sessions[i].ID == session.ID {
			sessions[i] = session
			replaced = true
			break
		}
	}
	if !replaced {
		sessions = append([]chat.Session{session}, sessions...)
	}
	return b.save(ctx, b.sessionsKey(), sessions)
}

func (b *LocalBackend) MergeSession(ctx context.Context, id string, patch chat.SessionPatch) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	sessions, err := b.loadSessions(ctx)
	if err != nil {
		return err
	}
	for i := range sessions {
		if sessions[i].ID == id {
			sessions[i] = patch.Apply(sessions[i])
			return b.save(ctx, b.sessionsKey(), sessions)
		}
	}
	return ErrSessionNotFound
}

func (b *LocalBackend) RemoveSession(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	sessions, err := b.loadSessions(ctx)
	if err != nil {
		return err
	}
	kept := sessions[:0]
	for _, s := range sessions {
		if s.ID != id {
			kept = append(kept, s)
		}
	}
	if err := b.save(ctx, b.sessionsKey(), kept); err != nil {
		return err
	}
	return b.store.Delete(ctx, b.messagesKey(id))
}

func (b *LocalBackend) PutMessage(ctx context.Context, sessionID string, msg chat.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	messages, err := b.loadMessages(ctx, sessionID)
	if err != nil {
		return err
	}
	messages = chat.MergeMessages(messages, []chat.Message{msg})
	return b.save(ctx, b.messagesKey(sessionID), messages)
}

func (b *LocalBackend) ListMessages(ctx context.Context, sessionID string) ([]chat.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	messages, err := b.loadMessages(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	chat.SortMessages(messages)
	return messages, nil
}

func (b *LocalBackend) WatchMessages(ctx context.Context, sessionID string) (<-chan []chat.Message, error) {
	messages, err := b.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	ch := make(chan []chat.Message, 1)
	ch <- messages
	close(ch)
	return ch, nil
}

func (b *LocalBackend) ClearMessages(ctx context.Context, sessionID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.Delete(ctx, b.messagesKey(sessionID))
}
