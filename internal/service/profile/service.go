// Package profile persists the user profile and records assessment results
// into its triage history.
package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/abimbolaoige/kfm-counsel-chat/internal/analysis/assessment"
	model "github.com/abimbolaoige/kfm-counsel-chat/internal/model/profile"
	chatsvc "github.com/abimbolaoige/kfm-counsel-chat/internal/service/chat"
	"github.com/abimbolaoige/kfm-counsel-chat/internal/storage/docstore"
	"github.com/abimbolaoige/kfm-counsel-chat/internal/storage/kv"
)

// Store loads and saves one scope's profile. Load returns nil when nothing
// was saved yet.
type Store interface {
	Load(ctx context.Context) (*model.UserProfile, error)
	Save(ctx context.Context, p model.UserProfile) error
}

// Service exposes profile reads and writes.
type Service struct {
	store Store
	now   func() time.Time
	mu    sync.Mutex
}

// NewService creates a Service over store.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Get returns the stored profile, or nil.
func (s *Service) Get(ctx context.Context) (*model.UserProfile, error) {
	return s.store.Load(ctx)
}

// Save writes the editable fields. The triage history is managed through
// RecordAssessment and is kept as stored when p carries none.
func (s *Service) Save(ctx context.Context, p model.UserProfile) (model.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.Name = strings.TrimSpace(p.Name)
	p.SpouseName = strings.TrimSpace(p.SpouseName)

	if p.TriageHistory == nil {
		current, err := s.store.Load(ctx)
		if err != nil {
			return model.UserProfile{}, err
		}
		if current != nil {
			p.TriageHistory = current.TriageHistory
		}
	}
	if err := s.store.Save(ctx, p); err != nil {
		return model.UserProfile{}, err
	}
	return p, nil
}

// RecordAssessment appends result to the triage history. Earlier records are
// never changed.
func (s *Service) RecordAssessment(ctx context.Context, result assessment.Result) (model.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.store.Load(ctx)
	if err != nil {
		return model.UserProfile{}, err
	}
	var p model.UserProfile
	if current != nil {
		p = *current
	}
	p.TriageHistory = append(append([]model.TriageRecord(nil), p.TriageHistory...), model.TriageRecord{
		Date:    s.now().UnixMilli(),
		Score:   result.Score,
		Summary: result.Summary,
	})
	if err := s.store.Save(ctx, p); err != nil {
		return model.UserProfile{}, err
	}
	return p, nil
}

// LocalStore keeps the profile as one JSON value.
type LocalStore struct {
	store kv.Store
	key   string
}

// NewLocalStore returns a LocalStore for scope, e.g. "guest".
func NewLocalStore(store kv.Store, scope string) *LocalStore {
	return &LocalStore{store: store, key: kv.Prefix + "profile_" + scope}
}

func (s *LocalStore) Load(ctx context.Context) (*model.UserProfile, error) {
	raw, ok, err := s.store.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var p model.UserProfile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &p, nil
}

func (s *LocalStore) Save(ctx context.Context, p model.UserProfile) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	return s.store.Set(ctx, s.key, raw)
}

// RemoteStore keeps the profile in the users/{uid} document. List fields are
// stored JSON-encoded.
type RemoteStore struct {
	store docstore.Store
	uid   string
}

// NewRemoteStore returns a RemoteStore for uid. A nil store is reported as
// not configured.
func NewRemoteStore(store docstore.Store, uid string) *RemoteStore {
	return &RemoteStore{store: store, uid: uid}
}

func (s *RemoteStore) Load(ctx context.Context) (*model.UserProfile, error) {
	if s.store == nil {
		return nil, chatsvc.ErrPersistenceUnavailable
	}
	doc, ok, err := s.store.Get(ctx, docstore.UserPath(s.uid))
	if err != nil || !ok {
		return nil, err
	}

	p := model.UserProfile{
		Name:        doc.Fields["name"],
		SpouseName:  doc.Fields["spouseName"],
		Anniversary: doc.Fields["anniversary"],
	}
	if raw := doc.Fields["struggles"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &p.Struggles); err != nil {
			return nil, fmt.Errorf("decode struggles: %w", err)
		}
	}
	if raw := doc.Fields["triageHistory"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &p.TriageHistory); err != nil {
			return nil, fmt.Errorf("decode triage history: %w", err)
		}
	}
	return &p, nil
}

func (s *RemoteStore) Save(ctx context.Context, p model.UserProfile) error {
	if s.store == nil {
		return chatsvc.ErrPersistenceUnavailable
	}
	struggles, err := json.Marshal(p.Struggles)
	if err != nil {
		return fmt.Errorf("encode struggles: %w", err)
	}
	history, err := json.Marshal(p.TriageHistory)
	if err != nil {
		return fmt.Errorf("encode triage history: %w", err)
	}
	return s.store.Merge(ctx, docstore.UserPath(s.uid), map[string]string{
		"name":          p.Name,
		"spouseName":    p.SpouseName,
		"anniversary":   p.Anniversary,
		"struggles":     string(struggles),
		"triageHistory": string(history),
	})
}
