package chat

import (
	"context"
	"fmt"
	"strconv"

	"github.com/abimbolaoige/kfm-counsel-chat/internal/model/chat"
	"github.com/abimbolaoige/kfm-counsel-chat/internal/storage/docstore"
)

// RemoteBackend stores an identity's sessions under users/{uid}/sessions in
// the document store and follows them through collection subscriptions.
// A nil store means the remote path is not configured: every call fails
// with ErrPersistenceUnavailable.
type RemoteBackend struct {
	store docstore.Store
	uid   string
}

// NewRemoteBackend returns a backend for uid.
func NewRemoteBackend(store docstore.Store, uid string) *RemoteBackend {
	return &RemoteBackend{store: store, uid: uid}
}

func (b *RemoteBackend) ready() error {
	if b.store == nil {
		return ErrPersistenceUnavailable
	}
	return nil
}

func (b *RemoteBackend) ListSessions(ctx context.Context) ([]chat.Session, error) {
	if err := b.ready(); err != nil {
		return nil, err
	}
	docs, err := b.store.List(ctx, docstore.SessionsPath(b.uid))
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return decodeSessions(docs), nil
}

func (b *RemoteBackend) WatchSessions(ctx context.Context) (<-chan []chat.Session, error) {
	if err := b.ready(); err != nil {
		return nil, err
	}
	sub, err := b.store.Subscribe(ctx, docstore.SessionsPath(b.uid))
	if err != nil {
		return nil, fmt.Errorf("watch sessions: %w", err)
	}
	return relay(ctx, sub, decodeSessions), nil
}

func (b *RemoteBackend) GetSession(ctx context.Context, id string) (chat.Session, bool, error) {
	if err := b.ready(); err != nil {
		return chat.Session{}, false, err
	}
	doc, ok, err := b.store.Get(ctx, docstore.SessionPath(b.uid, id))
	if err != nil || !ok {
		return chat.Session{}, false, err
	}
	return decodeSession(doc), true, nil
}

func (b *RemoteBackend) PutSession(ctx context.Context, session chat.Session) error {
	if err := b.ready(); err != nil {
		return err
	}
	return b.store.Set(ctx, docstore.SessionPath(b.uid, session.ID), encodeSession(session))
}

func (b *RemoteBackend) MergeSession(ctx context.Context, id string, patch chat.SessionPatch) error {
	if err := b.ready(); err != nil {
		return err
	}
	fields := make(map[string]string, 4)
	if patch.UpdatedAt != 0 {
		fields["updatedAt"] = strconv.FormatInt(patch.UpdatedAt, 10)
	}
	if patch.MessageCount != nil {
		fields["messageCount"] = strconv.Itoa(*patch.MessageCount)
	}
	if patch.Title != nil {
		fields["title"] = *patch.Title
	}
	if patch.Preview != nil {
		fields["preview"] = *patch.Preview
	}
	if len(fields) == 0 {
		return nil
	}
	return b.store.Merge(ctx, docstore.SessionPath(b.uid, id), fields)
}

func (b *RemoteBackend) RemoveSession(ctx context.Context, id string) error {
	if err := b.ready(); err != nil {
		return err
	}
	docs, err := b.store.List(ctx, docstore.MessagesPath(b.uid, id))
	if err != nil {
		return fmt.Errorf("list messages: %w", err)
	}
	for _, doc := range docs {
		if err := b.store.Delete(ctx, docstore.MessagePath(b.uid, id, doc.ID)); err != nil {
			return fmt.Errorf("delete message %s: %w", doc.ID, err)
		}
	}
	return b.store.Delete(ctx, docstore.SessionPath(b.uid, id))
}

func (b *RemoteBackend) PutMessage(ctx context.Context, sessionID string, msg chat.Message) error {
	if err := b.ready(); err != nil {
		return err
	}
	return b.store.Set(ctx, docstore.MessagePath(b.uid, sessionID, msg.ID), encodeMessage(msg))
}

func (b *RemoteBackend) ListMessages(ctx context.Context, sessionID string) ([]chat.Message, error) {
	if err := b.ready(); err != nil {
		return nil, err
	}
	docs, err := b.store.List(ctx, docstore.MessagesPath(b.uid, sessionID))
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return decodeMessages(docs), nil
}

func (b *RemoteBackend) WatchMessages(ctx context.Context, sessionID string) (<-chan []chat.Message, error) {
	if err := b.ready(); err != nil {
		return nil, err
	}
	sub, err := b.store.Subscribe(ctx, docstore.MessagesPath(b.uid, sessionID))
	if err != nil {
		return nil, fmt.Errorf("watch messages: %w", err)
	}
	return relay(ctx, sub, decodeMessages), nil
}

// ClearMessages is not offered for identities.
func (b *RemoteBackend) ClearMessages(context.Context, string) error {
	return ErrClearUnsupported
}

func relay[T any](ctx context.Context, in <-chan []docstore.Document, decode func([]docstore.Document) []T) <-chan []T {
	out := make(chan []T, 1)
	go func() {
		defer close(out)
		for docs := range in {
			select {
			case out <- decode(docs):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func encodeSession(s chat.Session) map[string]string {
	return map[string]string{
		"title":        s.Title,
		"preview":      s.Preview,
		"createdAt":    strconv.FormatInt(s.CreatedAt, 10),
		"updatedAt":    strconv.FormatInt(s.UpdatedAt, 10),
		"messageCount": strconv.Itoa(s.MessageCount),
	}
}

func decodeSession(doc docstore.Document) chat.Session {
	count, _ := strconv.Atoi(doc.Fields["messageCount"])
	return chat.Session{
		ID:           doc.ID,
		Title:        doc.Fields["title"],
		Preview:      doc.Fields["preview"],
		CreatedAt:    parseInt(doc.Fields["createdAt"]),
		UpdatedAt:    parseInt(doc.Fields["updatedAt"]),
		MessageCount: count,
	}
}

func decodeSessions(docs []docstore.Document) []chat.Session {
	sessions := make([]chat.Session, 0, len(docs))
	for _, doc := range docs {
		sessions = append(sessions, decodeSession(doc))
	}
	chat.SortSessions(sessions)
	return sessions
}

func encodeMessage(m chat.Message) map[string]string {
	fields := map[string]string{
		"role":      string(m.Role),
		"text":      m.Text,
		"timestamp": strconv.FormatInt(m.Timestamp, 10),
	}
	if m.IsSafetyWarning {
		fields["isSafetyWarning"] = "true"
	}
	return fields
}

func decodeMessage(doc docstore.Document) chat.Message {
	return chat.Message{
		ID:              doc.ID,
		Role:            chat.Role(doc.Fields["role"]),
		Text:            doc.Fields["text"],
		Timestamp:       parseInt(doc.Fields["timestamp"]),
		IsSafetyWarning: doc.Fields["isSafetyWarning"] == "true",
	}
}

func decodeMessages(docs []docstore.Document) []chat.Message {
	messages := make([]chat.Message, 0, len(docs))
	for _, doc := range docs {
		messages = append(messages, decodeMessage(doc))
	}
	chat.SortMessages(messages)
	return messages
}

func parseInt(value string) int64 {
	n, _ := strconv.ParseInt(value, 10, 64)
	return n
}
