package chat

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"github.com/abimbolaoige/kfm-counsel-chat/internal/model/chat"
)

// SessionsListener is called after the session list or the active selection changed.
type SessionsListener func(sessions []chat.Session, active string)

// Directory is the in-memory view of a scope's sessions plus the active
// selection. Writes are applied locally first and then persisted; persistence
// failures are logged and the local view is kept.
type Directory struct {
	backend Backend
	clock   *chat.Clock

	mu        sync.RWMutex
	sessions  []chat.Session
	echoed    map[string]struct{}
	removed   map[string]struct{}
	active    string
	loaded    bool
	listeners listeners[SessionsListener]
}

// NewDirectory creates an empty Directory over backend.
func NewDirectory(backend Backend, clock *chat.Clock) *Directory {
	if clock == nil {
		clock = chat.NewClock(nil)
	}
	return &Directory{
		backend: backend,
		clock:   clock,
		echoed:  make(map[string]struct{}),
		removed: make(map[string]struct{}),
	}
}

// List loads the sessions from the backend, bootstrapping one session when
// the scope has none yet.
func (d *Directory) List(ctx context.Context) ([]chat.Session, error) {
	sessions, err := d.backend.ListSessions(ctx)
	switch {
	case err == nil:
		d.apply(sessions)
	case errors.Is(err, ErrPersistenceUnavailable):
		log.Printf("[chat] session list not persisted: %v", err)
	default:
		log.Printf("[chat] list sessions failed: %v", err)
		return d.Sessions(), nil
	}

	if err := d.bootstrap(ctx); err != nil {
		return nil, err
	}
	return d.Sessions(), nil
}

// Watch follows backend pushes until ctx is done. The first snapshot
// bootstraps the scope like List does.
func (d *Directory) Watch(ctx context.Context) error {
	ch, err := d.backend.WatchSessions(ctx)
	if err != nil {
		if errors.Is(err, ErrPersistenceUnavailable) {
			log.Printf("[chat] session watch not available: %v", err)
			return d.bootstrap(ctx)
		}
		return err
	}

	go func() {
		first := true
		for sessions := range ch {
			d.apply(sessions)
			if first {
				first = false
				if err := d.bootstrap(ctx); err != nil {
					log.Printf("[chat] bootstrap failed: %v", err)
				}
			}
		}
	}()
	return nil
}

func (d *Directory) bootstrap(ctx context.Context) error {
	d.mu.Lock()
	need := !d.loaded && len(d.sessions) == 0
	d.loaded = true
	d.mu.Unlock()

	if !need {
		return nil
	}
	_, err := d.Create(ctx)
	return err
}

// apply reconciles a backend snapshot with the local view.
func (d *Directory) apply(incoming []chat.Session) {
	d.mu.Lock()

	seen := make(map[string]struct{}, len(incoming))
	merged := make([]chat.Session, 0, len(incoming)+len(d.sessions))
	for _, s := range incoming {
		if _, gone := d.removed[s.ID]; gone {
			continue
		}
		seen[s.ID] = struct{}{}
		d.echoed[s.ID] = struct{}{}
		merged = append(merged, s)
	}
	for _, s := range d.sessions {
		if _, ok := seen[s.ID]; ok {
			continue
		}
		// Echoed once and now missing means deleted elsewhere.
		if _, ok := d.echoed[s.ID]; ok {
			delete(d.echoed, s.ID)
			continue
		}
		merged = append(merged, s)
	}
	chat.SortSessions(merged)
	d.sessions = merged

	if d.active != "" && d.indexLocked(d.active) < 0 {
		d.active = d.firstLocked()
	}
	d.mu.Unlock()

	d.notify()
}

// Create adds a session with the sentinel title and places it first. It
// becomes active when nothing is selected.
func (d *Directory) Create(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	d.mu.Lock()
	id, stamp := d.clock.NewSessionID()
	for d.indexLocked(id) >= 0 {
		id, stamp = d.clock.NewSessionID()
	}
	session := chat.NewSession(id, stamp)
	d.sessions = append([]chat.Session{session}, d.sessions...)
	if d.active == "" {
		d.active = id
	}
	d.mu.Unlock()

	d.notify()

	if err := d.backend.PutSession(ctx, session); err != nil {
		log.Printf("[chat] persist session %s failed: %v", id, err)
	}
	return id, nil
}

// Remove deletes a session and all of its messages. Removing the active
// session selects the new first entry, or nothing.
func (d *Directory) Remove(ctx context.Context, id string) error {
	d.mu.Lock()
	idx := d.indexLocked(id)
	if idx < 0 {
		d.mu.Unlock()
		return ErrSessionNotFound
	}
	d.sessions = append(d.sessions[:idx:idx], d.sessions[idx+1:]...)
	delete(d.echoed, id)
	d.removed[id] = struct{}{}
	if d.active == id {
		d.active = d.firstLocked()
	}
	d.mu.Unlock()

	d.notify()

	if err := d.backend.RemoveSession(ctx, id); err != nil {
		log.Printf("[chat] remove session %s failed: %v", id, err)
	}
	return nil
}

// Rename replaces the title of a session.
func (d *Directory) Rename(ctx context.Context, id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrInvalidTitle
	}

	patch := chat.SessionPatch{Title: &title}
	if !d.patchLocal(id, patch) {
		return ErrSessionNotFound
	}
	d.notify()

	if err := d.backend.MergeSession(ctx, id, patch); err != nil {
		log.Printf("[chat] rename session %s failed: %v", id, err)
	}
	return nil
}

// Rollup applies the metadata follow-up for a persisted message. It reads the
// stored session, derives the patch and merges it back; a concurrent rollup
// from another writer may be lost, so messageCount is eventually consistent.
func (d *Directory) Rollup(ctx context.Context, sessionID string, msg chat.Message) error {
	current, stored, err := d.backend.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if !stored {
		var ok bool
		if current, ok = d.Session(sessionID); !ok {
			return ErrSessionNotFound
		}
	}

	patch := chat.Rollup(current, msg, d.clock.Now())
	if stored {
		err = d.backend.MergeSession(ctx, sessionID, patch)
	} else {
		// The create never landed; write the whole record.
		err = d.backend.PutSession(ctx, patch.Apply(current))
	}
	if err != nil {
		return err
	}
	if d.patchLocal(sessionID, patch) {
		d.notify()
	}
	return nil
}

func (d *Directory) patchLocal(id string, patch chat.SessionPatch) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	idx := d.indexLocked(id)
	if idx < 0 {
		return false
	}
	d.sessions[idx] = patch.Apply(d.sessions[idx])
	chat.SortSessions(d.sessions)
	return true
}

// Select makes id the active session.
func (d *Directory) Select(id string) error {
	d.mu.Lock()
	if d.indexLocked(id) < 0 {
		d.mu.Unlock()
		return ErrSessionNotFound
	}
	changed := d.active != id
	d.active = id
	d.mu.Unlock()

	if changed {
		d.notify()
	}
	return nil
}

// Active returns the selected session id, or "" when none is selected.
func (d *Directory) Active() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.active
}

// Sessions returns a copy of the current list, most recently updated first.
func (d *Directory) Sessions() []chat.Session {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]chat.Session(nil), d.sessions...)
}

// Session looks up one session in the local view.
func (d *Directory) Session(id string) (chat.Session, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if idx := d.indexLocked(id); idx >= 0 {
		return d.sessions[idx], true
	}
	return chat.Session{}, false
}

// OnChange registers fn and returns a function that unregisters it.
func (d *Directory) OnChange(fn SessionsListener) func() {
	d.mu.Lock()
	id := d.listeners.add(fn)
	d.mu.Unlock()
	return func() {
		d.mu.Lock()
		d.listeners.remove(id)
		d.mu.Unlock()
	}
}

func (d *Directory) notify() {
	d.mu.RLock()
	sessions := append([]chat.Session(nil), d.sessions...)
	active := d.active
	fns := d.listeners.snapshot()
	d.mu.RUnlock()

	for _, fn := range fns {
		fn(sessions, active)
	}
}

func (d *Directory) indexLocked(id string) int {
	for i := range d.sessions {
		if d.sessions[i].ID == id {
			return i
		}
	}
	return -1
}

func (d *Directory) firstLocked() string {
	if len(d.sessions) == 0 {
		return ""
	}
	return d.sessions[0].ID
}
