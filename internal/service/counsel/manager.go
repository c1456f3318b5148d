package counsel

import (
	"context"
	"sync"

	"github.com/abimbolaoige/kfm-counsel-chat/internal/identity"
	"github.com/abimbolaoige/kfm-counsel-chat/internal/model/chat"
	"github.com/abimbolaoige/kfm-counsel-chat/internal/service/ai"
	chatsvc "github.com/abimbolaoige/kfm-counsel-chat/internal/service/chat"
	profilesvc "github.com/abimbolaoige/kfm-counsel-chat/internal/service/profile"
	"github.com/abimbolaoige/kfm-counsel-chat/internal/storage/docstore"
	"github.com/abimbolaoige/kfm-counsel-chat/internal/storage/kv"
)

// Factory builds the conversation of one scope.
type Factory func(id *identity.Identity) *Conversation

// Deps are the collaborators shared by every conversation.
type Deps struct {
	Local        kv.Store
	Remote       docstore.Store
	Model        ai.Sender
	Detector     Detector
	HistoryLimit int
}

// NewFactory selects the local backend for guests and the remote backend for
// identities. A nil Remote leaves identities with an unconfigured remote path.
func NewFactory(deps Deps) Factory {
	return func(id *identity.Identity) *Conversation {
		clock := chat.NewClock(nil)

		var (
			backend  chatsvc.Backend
			profiles profilesvc.Store
			welcome  string
		)
		if id == nil {
			backend = chatsvc.NewLocalBackend(deps.Local, identity.Scope(nil))
			profiles = profilesvc.NewLocalStore(deps.Local, identity.Scope(nil))
			welcome = chatsvc.GuestWelcome
		} else {
			backend = chatsvc.NewRemoteBackend(deps.Remote, id.ID)
			profiles = profilesvc.NewRemoteStore(deps.Remote, id.ID)
			welcome = chatsvc.MemberWelcome(id.Name)
		}

		dir := chatsvc.NewDirectory(backend, clock)
		return New(Options{
			Identity:     id,
			Directory:    dir,
			Log:          chatsvc.NewLog(backend, dir, welcome),
			Clock:        clock,
			Model:        deps.Model,
			Profiles:     profilesvc.NewService(profiles),
			Detector:     deps.Detector,
			HistoryLimit: deps.HistoryLimit,
		})
	}
}

// Manager owns one started Conversation per scope.
type Manager struct {
	factory Factory

	mu    sync.Mutex
	items map[string]*Conversation
	// starting serializes the first Start per scope.
	starting map[string]*sync.Mutex
}

// NewManager creates a Manager using factory.
func NewManager(factory Factory) *Manager {
	return &Manager{
		factory:  factory,
		items:    make(map[string]*Conversation),
		starting: make(map[string]*sync.Mutex),
	}
}

// Get returns the conversation of id's scope, starting it on first use.
func (m *Manager) Get(ctx context.Context, id *identity.Identity) (*Conversation, error) {
	scope := identity.Scope(id)

	m.mu.Lock()
	if conv, ok := m.items[scope]; ok {
		m.mu.Unlock()
		conv.SetIdentity(id)
		return conv, nil
	}
	gate, ok := m.starting[scope]
	if !ok {
		gate = &sync.Mutex{}
		m.starting[scope] = gate
	}
	m.mu.Unlock()

	gate.Lock()
	defer gate.Unlock()

	m.mu.Lock()
	if conv, ok := m.items[scope]; ok {
		m.mu.Unlock()
		conv.SetIdentity(id)
		return conv, nil
	}
	m.mu.Unlock()

	conv := m.factory(id)
	if err := conv.Start(ctx); err != nil {
		conv.Close()
		return nil, err
	}

	m.mu.Lock()
	m.items[scope] = conv
	delete(m.starting, scope)
	m.mu.Unlock()
	return conv, nil
}

// Close closes every conversation.
func (m *Manager) Close() {
	m.mu.Lock()
	items := m.items
	m.items = make(map[string]*Conversation)
	m.mu.Unlock()

	for _, conv := range items {
		conv.Close()
	}
}
