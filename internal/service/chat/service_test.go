package chat

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/abimbolaoige/kfm-counsel-chat/internal/model/chat"
	"github.com/abimbolaoige/kfm-counsel-chat/internal/storage/kv"
)

func newGuest(t *testing.T, store kv.Store) (*Directory, *Log, *chat.Clock) {
	t.Helper()
	clock := chat.NewClock(nil)
	backend := NewLocalBackend(store, "guest")
	dir := NewDirectory(backend, clock)
	return dir, NewLog(backend, dir, GuestWelcome), clock
}

func TestDirectoryBootstrapCreatesExactlyOne(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	dir, _, _ := newGuest(t, store)

	sessions, err := dir.List(ctx)
	if err != nil {
		t.Fatalf("List err: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected one bootstrapped session, got %d", len(sessions))
	}
	if sessions[0].Title != chat.DefaultTitle || sessions[0].MessageCount != 0 {
		t.Fatalf("unexpected bootstrap session: %+v", sessions[0])
	}
	if dir.Active() != sessions[0].ID {
		t.Fatalf("bootstrap session must be active, got %q", dir.Active())
	}

	if sessions, _ = dir.List(ctx); len(sessions) != 1 {
		t.Fatalf("second List must not create, got %d", len(sessions))
	}

	// A fresh directory over the same store finds the persisted session.
	again, _, _ := newGuest(t, store)
	sessions, err = again.List(ctx)
	if err != nil {
		t.Fatalf("List err: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected bootstrap to be persisted once, got %d", len(sessions))
	}
}

func TestLogRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 50} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			ctx := context.Background()
			store, err := kv.NewSQLiteStore(":memory:")
			if err != nil {
				t.Fatalf("NewSQLiteStore err: %v", err)
			}
			t.Cleanup(func() { store.Close() })

			dir, log, clock := newGuest(t, store)
			id, err := dir.Create(ctx)
			if err != nil {
				t.Fatalf("Create err: %v", err)
			}
			if err := log.Open(ctx, id); err != nil {
				t.Fatalf("Open err: %v", err)
			}

			want := make([]chat.Message, 0, n)
			for i := 0; i < n; i++ {
				role := chat.RoleUser
				if i%2 == 1 {
					role = chat.RoleModel
				}
				msg := clock.NewMessage(role, fmt.Sprintf("message %d", i))
				if err := log.Append(ctx, msg); err != nil {
					t.Fatalf("Append err: %v", err)
				}
				want = append(want, msg)
			}

			_, reopened, _ := newGuest(t, store)
			if err := reopened.Open(ctx, id); err != nil {
				t.Fatalf("Open err: %v", err)
			}
			got := reopened.Messages()

			if n == 0 {
				if len(got) != 1 || got[0].ID != chat.WelcomeID || got[0].Text != GuestWelcome {
					t.Fatalf("expected only the greeting, got %+v", got)
				}
				return
			}
			if len(got) != n {
				t.Fatalf("expected %d messages, got %d", n, len(got))
			}
			for i := range want {
				if got[i] != want[i] {
					t.Fatalf("message %d mismatch: got %+v want %+v", i, got[i], want[i])
				}
			}

			stored, _, _ := newGuest(t, store)
			sessions, err := stored.List(ctx)
			if err != nil {
				t.Fatalf("List err: %v", err)
			}
			if sessions[0].MessageCount != n {
				t.Fatalf("expected messageCount %d, got %d", n, sessions[0].MessageCount)
			}
			if sessions[0].Title != "message 0" || sessions[0].Preview != "message 0" {
				t.Fatalf("unexpected title/preview: %+v", sessions[0])
			}
		})
	}
}

func TestDirectoryRemoveActiveReselectsFirst(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	dir, log, clock := newGuest(t, store)

	a, _ := dir.Create(ctx)
	b, _ := dir.Create(ctx)
	c, _ := dir.Create(ctx)
	if dir.Active() != a {
		t.Fatalf("first created session must stay active, got %q", dir.Active())
	}

	if err := dir.Select(b); err != nil {
		t.Fatalf("Select err: %v", err)
	}
	if err := log.Open(ctx, b); err != nil {
		t.Fatalf("Open err: %v", err)
	}
	if err := log.Append(ctx, clock.NewMessage(chat.RoleUser, "hello")); err != nil {
		t.Fatalf("Append err: %v", err)
	}

	if err := dir.Remove(ctx, b); err != nil {
		t.Fatalf("Remove err: %v", err)
	}
	first := dir.Sessions()[0].ID
	if dir.Active() != first {
		t.Fatalf("expected active %q after removal, got %q", first, dir.Active())
	}
	if first != c {
		t.Fatalf("expected newest session %q first, got %q", c, first)
	}

	raw, ok, _ := store.Get(ctx, "kfm_chat_guest_"+b)
	if ok || raw != nil {
		t.Fatal("messages of a removed session must be deleted")
	}

	for _, s := range dir.Sessions() {
		if err := dir.Remove(ctx, s.ID); err != nil {
			t.Fatalf("Remove err: %v", err)
		}
	}
	if dir.Active() != "" {
		t.Fatalf("expected no active session, got %q", dir.Active())
	}
	if err := dir.Remove(ctx, "session_missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestDirectoryRename(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	dir, _, _ := newGuest(t, store)

	id, _ := dir.Create(ctx)
	if err := dir.Rename(ctx, id, "  "); !errors.Is(err, ErrInvalidTitle) {
		t.Fatalf("expected ErrInvalidTitle, got %v", err)
	}
	if err := dir.Rename(ctx, id, "Date night ideas"); err != nil {
		t.Fatalf("Rename err: %v", err)
	}

	again, _, _ := newGuest(t, store)
	sessions, _ := again.List(ctx)
	if sessions[0].Title != "Date night ideas" {
		t.Fatalf("rename not persisted: %+v", sessions[0])
	}
}

func TestDirectoryNotifiesListeners(t *testing.T) {
	ctx := context.Background()
	dir, _, _ := newGuest(t, kv.NewMemoryStore())

	var calls int
	var lastActive string
	stop := dir.OnChange(func(sessions []chat.Session, active string) {
		calls++
		lastActive = active
	})

	id, _ := dir.Create(ctx)
	if calls == 0 || lastActive != id {
		t.Fatalf("expected a notification for %q, got calls=%d active=%q", id, calls, lastActive)
	}

	stop()
	before := calls
	dir.Create(ctx)
	if calls != before {
		t.Fatal("listener called after unregistering")
	}
}

func TestLogClearGuest(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	dir, log, clock := newGuest(t, store)

	id, _ := dir.Create(ctx)
	log.Open(ctx, id)
	log.Append(ctx, clock.NewMessage(chat.RoleUser, "hello"))

	if err := log.Clear(ctx); err != nil {
		t.Fatalf("Clear err: %v", err)
	}
	got := log.Messages()
	if len(got) != 1 || got[0].Text != ClearedWelcome {
		t.Fatalf("expected cleared greeting, got %+v", got)
	}

	_, reopened, _ := newGuest(t, store)
	reopened.Open(ctx, id)
	if got := reopened.Messages(); got[0].ID != chat.WelcomeID {
		t.Fatalf("history must be gone after clear, got %+v", got)
	}
}

func TestLogDiscardsStaleGeneration(t *testing.T) {
	ctx := context.Background()
	dir, log, clock := newGuest(t, kv.NewMemoryStore())

	first, _ := dir.Create(ctx)
	second, _ := dir.Create(ctx)

	log.Open(ctx, first)
	stale := log.generation
	log.Open(ctx, second)

	log.apply(stale, []chat.Message{clock.NewMessage(chat.RoleUser, "late")})
	if got := log.Messages(); len(got) != 1 || got[0].ID != chat.WelcomeID {
		t.Fatalf("stale snapshot leaked into the new session: %+v", got)
	}
}

func TestLogAppendWithoutSession(t *testing.T) {
	log := NewLog(NewLocalBackend(kv.NewMemoryStore(), "guest"), nil, GuestWelcome)
	err := log.Append(context.Background(), chat.Message{ID: "1", Role: chat.RoleUser, Text: "hi"})
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestLogAppendToTargetsCapturedSession(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	dir, log, clock := newGuest(t, store)
	backend := NewLocalBackend(store, "guest")

	first, _ := dir.Create(ctx)
	second, _ := dir.Create(ctx)
	log.Open(ctx, second)

	late := clock.NewMessage(chat.RoleModel, "late reply")
	if err := log.AppendTo(ctx, first, late); err != nil {
		t.Fatalf("AppendTo err: %v", err)
	}
	if got := log.Messages(); len(got) != 1 || got[0].ID != chat.WelcomeID {
		t.Fatalf("reply for %s must not show in %s: %+v", first, second, got)
	}
	stored, err := backend.ListMessages(ctx, first)
	if err != nil || len(stored) != 1 || stored[0].ID != late.ID {
		t.Fatalf("reply must be persisted into %s, got %+v err=%v", first, stored, err)
	}

	if err := dir.Remove(ctx, first); err != nil {
		t.Fatalf("Remove err: %v", err)
	}
	err = log.AppendTo(ctx, first, clock.NewMessage(chat.RoleModel, "orphan"))
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if stored, _ := backend.ListMessages(ctx, first); len(stored) != 0 {
		t.Fatalf("removed session must stay empty, got %+v", stored)
	}
}

func TestMemberWelcome(t *testing.T) {
	if got := MemberWelcome("Ada"); got != "Hello Ada. I am KFM Counsel. How can I be a support to you today?" {
		t.Fatalf("unexpected welcome %q", got)
	}
	if got := MemberWelcome(""); got != "Hello friend. I am KFM Counsel. How can I be a support to you today?" {
		t.Fatalf("unexpected fallback welcome %q", got)
	}
}
