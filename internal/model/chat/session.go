package chat

import (
	"sort"
	"unicode/utf8"
)

// DefaultTitle marks a session whose title has not been derived yet.
const DefaultTitle = "New Conversation"

const (
	titleLimit   = 40
	previewLimit = 50
)

// Session is the metadata record of one conversation.
type Session struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Preview      string `json:"preview"`
	CreatedAt    int64  `json:"createdAt"`
	UpdatedAt    int64  `json:"updatedAt"`
	MessageCount int    `json:"messageCount"`
}

// NewSession returns a session with the sentinel title and an empty preview.
func NewSession(id string, now int64) Session {
	return Session{
		ID:        id,
		Title:     DefaultTitle,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SessionPatch lists the fields an update changes. Nil fields and a zero
// UpdatedAt are left alone.
type SessionPatch struct {
	UpdatedAt    int64
	MessageCount *int
	Title        *string
	Preview      *string
}

// Rollup derives the metadata update applied after msg was persisted.
func Rollup(s Session, msg Message, now int64) SessionPatch {
	updated := now
	if updated < s.UpdatedAt {
		updated = s.UpdatedAt
	}

	count := s.MessageCount + 1
	patch := SessionPatch{
		UpdatedAt:    updated,
		MessageCount: &count,
	}
	if msg.Role != RoleUser {
		return patch
	}

	if s.Preview == "" {
		preview := Truncate(msg.Text, previewLimit)
		patch.Preview = &preview
	}
	if s.Title == DefaultTitle {
		title := Truncate(msg.Text, titleLimit)
		patch.Title = &title
	}
	return patch
}

// Apply returns s with the patch applied.
func (p SessionPatch) Apply(s Session) Session {
	if p.UpdatedAt != 0 {
		s.UpdatedAt = p.UpdatedAt
	}
	if p.MessageCount != nil {
		s.MessageCount = *p.MessageCount
	}
	if p.Title != nil {
		s.Title = *p.Title
	}
	if p.Preview != nil {
		s.Preview = *p.Preview
	}
	return s
}

// Truncate cuts text to limit runes and appends "..." when anything was cut.
func Truncate(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit]) + "..."
}

// SortSessions orders sessions most recently updated first.
func SortSessions(sessions []Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		if sessions[i].UpdatedAt != sessions[j].UpdatedAt {
			return sessions[i].UpdatedAt > sessions[j].UpdatedAt
		}
		return sessions[i].CreatedAt > sessions[j].CreatedAt
	})
}
