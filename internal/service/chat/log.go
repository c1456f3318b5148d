package chat

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/abimbolaoige/kfm-counsel-chat/internal/model/chat"
)

// MessagesListener is called after the visible log of sessionID changed.
type MessagesListener func(sessionID string, messages []chat.Message)

// Log is the message log of the active session. Appends show up immediately
// and are persisted afterwards; remote pushes are merged in by id.
type Log struct {
	backend Backend
	dir     *Directory
	welcome string

	mu         sync.RWMutex
	sessionID  string
	generation uint64
	cancel     context.CancelFunc
	messages   []chat.Message
	unsynced   map[string]struct{}
	cleared    bool
	listeners  listeners[MessagesListener]
}

// NewLog creates a Log that greets an empty session with welcome.
func NewLog(backend Backend, dir *Directory, welcome string) *Log {
	return &Log{
		backend:  backend,
		dir:      dir,
		welcome:  welcome,
		unsynced: make(map[string]struct{}),
	}
}

// Open activates sessionID, dropping the previous subscription. It returns
// once the first snapshot is loaded; later pushes keep arriving until the
// next Open or Close.
func (l *Log) Open(ctx context.Context, sessionID string) error {
	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
	}
	l.generation++
	gen := l.generation
	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	l.cancel = cancel
	l.sessionID = sessionID
	l.messages = nil
	l.unsynced = make(map[string]struct{})
	l.cleared = false
	l.mu.Unlock()

	ch, err := l.backend.WatchMessages(watchCtx, sessionID)
	if err != nil {
		log.Printf("[chat] watch messages of %s failed: %v", sessionID, err)
		l.notify()
		return nil
	}

	select {
	case snapshot, ok := <-ch:
		if ok {
			l.apply(gen, snapshot)
		} else {
			l.notify()
		}
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	}

	go func() {
		for snapshot := range ch {
			l.apply(gen, snapshot)
		}
	}()
	return nil
}

// Close stops following the active session.
func (l *Log) Close() {
	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.generation++
	l.sessionID = ""
	l.messages = nil
	l.unsynced = make(map[string]struct{})
	l.mu.Unlock()
}

func (l *Log) apply(gen uint64, snapshot []chat.Message) {
	l.mu.Lock()
	if gen != l.generation {
		l.mu.Unlock()
		return
	}
	l.messages = chat.MergeMessages(l.messages, snapshot)
	for _, msg := range snapshot {
		delete(l.unsynced, msg.ID)
	}
	l.mu.Unlock()

	l.notify()
}

// SessionID returns the active session id, or "".
func (l *Log) SessionID() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sessionID
}

// Messages returns the visible log, oldest first. An empty log shows the
// synthetic greeting.
func (l *Log) Messages() []chat.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.visibleLocked()
}

func (l *Log) visibleLocked() []chat.Message {
	if len(l.messages) == 0 {
		text := l.welcome
		if l.cleared {
			text = ClearedWelcome
		}
		return []chat.Message{{ID: chat.WelcomeID, Role: chat.RoleModel, Text: text}}
	}
	return append([]chat.Message(nil), l.messages...)
}

// History returns up to limit of the most recent persisted-or-pending
// messages, oldest first. The greeting is never included.
func (l *Log) History(limit int) []chat.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if limit <= 0 {
		return nil
	}
	start := len(l.messages) - limit
	if start < 0 {
		start = 0
	}
	return append([]chat.Message(nil), l.messages[start:]...)
}

// Append adds msg to the active session. See AppendTo.
func (l *Log) Append(ctx context.Context, msg chat.Message) error {
	return l.AppendTo(ctx, l.SessionID(), msg)
}

// AppendTo writes msg into sessionID. When sessionID is the active session the
// message shows at once and is persisted afterwards; a failed write leaves it
// visible and marked unsynced, a failed rollup is only logged. When the log
// has moved to another session the message is persisted without being shown.
// Nothing is written when sessionID is no longer in the directory.
func (l *Log) AppendTo(ctx context.Context, sessionID string, msg chat.Message) error {
	if sessionID == "" {
		return ErrSessionNotFound
	}
	if l.dir != nil {
		if _, ok := l.dir.Session(sessionID); !ok {
			return ErrSessionNotFound
		}
	}

	l.mu.Lock()
	visible := l.sessionID == sessionID
	gen := l.generation
	if visible {
		l.messages = chat.MergeMessages(l.messages, []chat.Message{msg})
	}
	l.mu.Unlock()

	if visible {
		l.notify()
	}

	if err := l.backend.PutMessage(ctx, sessionID, msg); err != nil {
		l.mu.Lock()
		if visible && gen == l.generation {
			l.unsynced[msg.ID] = struct{}{}
		}
		l.mu.Unlock()
		log.Printf("[chat] persist message %s in %s failed: %v", msg.ID, sessionID, err)
		return nil
	}

	if l.dir != nil {
		if err := l.dir.Rollup(ctx, sessionID, msg); err != nil {
			log.Printf("[chat] rollup of %s failed: %v", sessionID, err)
		}
	}
	return nil
}

// Unsynced reports whether the message with id failed to persist.
func (l *Log) Unsynced(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.unsynced[id]
	return ok
}

// Clear wipes the history of the active session. Only the local backend
// supports it.
func (l *Log) Clear(ctx context.Context) error {
	sessionID := l.SessionID()
	if sessionID == "" {
		return ErrSessionNotFound
	}

	if err := l.backend.ClearMessages(ctx, sessionID); err != nil {
		if errors.Is(err, ErrClearUnsupported) {
			return err
		}
		log.Printf("[chat] clear %s failed: %v", sessionID, err)
	}

	l.mu.Lock()
	if l.sessionID == sessionID {
		l.messages = nil
		l.unsynced = make(map[string]struct{})
		l.cleared = true
	}
	l.mu.Unlock()

	l.notify()
	return nil
}

// OnChange registers fn and returns a function that unregisters it.
func (l *Log) OnChange(fn MessagesListener) func() {
	l.mu.Lock()
	id := l.listeners.add(fn)
	l.mu.Unlock()
	return func() {
		l.mu.Lock()
		l.listeners.remove(id)
		l.mu.Unlock()
	}
}

func (l *Log) notify() {
	l.mu.RLock()
	sessionID := l.sessionID
	messages := l.visibleLocked()
	fns := l.listeners.snapshot()
	l.mu.RUnlock()

	for _, fn := range fns {
		fn(sessionID, messages)
	}
}
