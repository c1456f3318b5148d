// Package docstore implements the remote synchronized store: documents are
// flat field maps addressed by slash-separated paths such as
// users/{uid}/sessions/{sid}, grouped into collections that can be watched.
package docstore

import (
	"context"
	"strings"
)

// Document is one stored record. Fields are flat strings; callers encode
// structured values themselves.
type Document struct {
	ID     string
	Fields map[string]string
}

// Store is the remote collection primitive.
type Store interface {
	// Get reads the document at path.
	Get(ctx context.Context, path string) (Document, bool, error)
	// Set replaces the document at path.
	Set(ctx context.Context, path string, fields map[string]string) error
	// Merge writes only the given fields; concurrent merges resolve per field,
	// last write wins.
	Merge(ctx context.Context, path string, fields map[string]string) error
	// Delete removes the document at path.
	Delete(ctx context.Context, path string) error
	// List returns every document in collection ordered by id.
	List(ctx context.Context, collection string) ([]Document, error)
	// Subscribe pushes a full snapshot of collection once on start and again
	// after every change, until ctx is done. Slow readers only ever see the
	// latest snapshot.
	Subscribe(ctx context.Context, collection string) (<-chan []Document, error)
}

// Join builds a path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// Split separates a document path into its collection and id.
func Split(path string) (collection, id string) {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return "", path
	}
	return path[:idx], path[idx+1:]
}

// UserPath addresses the profile document of an identity.
func UserPath(uid string) string {
	return Join("users", uid)
}

// SessionsPath addresses the session collection of an identity.
func SessionsPath(uid string) string {
	return Join("users", uid, "sessions")
}

// SessionPath addresses one session document.
func SessionPath(uid, sid string) string {
	return Join("users", uid, "sessions", sid)
}

// MessagesPath addresses the message collection of one session.
func MessagesPath(uid, sid string) string {
	return Join("users", uid, "sessions", sid, "messages")
}

// MessagePath addresses one message document.
func MessagePath(uid, sid, mid string) string {
	return Join("users", uid, "sessions", sid, "messages", mid)
}
