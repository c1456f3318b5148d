package chat

import (
	"sort"
	"strconv"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// WelcomeID is reserved for the synthetic greeting shown in an empty log.
const WelcomeID = "welcome"

// Message is a single immutable entry in a session log.
type Message struct {
	ID              string `json:"id"`
	Role            Role   `json:"role"`
	Text            string `json:"text"`
	Timestamp       int64  `json:"timestamp"`
	IsSafetyWarning bool   `json:"isSafetyWarning,omitempty"`
}

// Synthetic reports whether the message is a local greeting that is never persisted.
func (m Message) Synthetic() bool {
	return m.ID == WelcomeID
}

// Less orders messages by timestamp, then by numeric id.
func Less(a, b Message) bool {
	if a.Timestamp != b.Timestamp {
		return a.Timestamp < b.Timestamp
	}
	ai, aerr := strconv.ParseInt(a.ID, 10, 64)
	bi, berr := strconv.ParseInt(b.ID, 10, 64)
	if aerr == nil && berr == nil {
		return ai < bi
	}
	return a.ID < b.ID
}

// SortMessages sorts in place, oldest first.
func SortMessages(messages []Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		return Less(messages[i], messages[j])
	})
}

// MergeMessages reconciles a local log with an incoming snapshot. Entries with
// the same id take the incoming copy; everything else is kept from both sides.
func MergeMessages(local, incoming []Message) []Message {
	byID := make(map[string]int, len(local)+len(incoming))
	merged := make([]Message, 0, len(local)+len(incoming))

	for _, msg := range local {
		if msg.Synthetic() {
			continue
		}
		byID[msg.ID] = len(merged)
		merged = append(merged, msg)
	}
	for _, msg := range incoming {
		if idx, ok := byID[msg.ID]; ok {
			merged[idx] = msg
			continue
		}
		byID[msg.ID] = len(merged)
		merged = append(merged, msg)
	}

	SortMessages(merged)
	return merged
}
