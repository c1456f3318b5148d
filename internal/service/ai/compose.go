package ai

import (
	"fmt"
	"strings"

	"github.com/abimbolaoige/kfm-counsel-chat/internal/model/profile"
)

const (
	nameLimit       = 80
	summaryLimit    = 240
	annotationLimit = 512
)

// Compose appends the profile annotation to prompt. Only the latest triage
// record is used, and every field as well as the whole annotation is capped.
func Compose(prompt string, p *profile.UserProfile) string {
	if p == nil {
		return prompt
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n[Context: User Name: %s, Spouse: %s]", clip(p.Name, nameLimit), clip(p.SpouseName, nameLimit))
	if record, ok := p.LatestTriage(); ok {
		fmt.Fprintf(&b, "\n[Case History: Latest Assessment Score: %d%%, Summary: %s]", record.Score, clip(record.Summary, summaryLimit))
	}

	return prompt + clip(b.String(), annotationLimit)
}

func clip(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
