package chat

import (
	"regexp"
	"strings"
)

var (
	boldPattern      = regexp.MustCompile(`\*\*(.*?)\*\*`)
	underlinePattern = regexp.MustCompile(`__(.*?)__`)
	referencePattern = regexp.MustCompile(`\[\[(.*?)\]\]`)
	headerPattern    = regexp.MustCompile(`(?m)^#+\s`)
	bulletPattern    = regexp.MustCompile(`(?m)^\s*-\s`)
	blankRunPattern  = regexp.MustCompile(`\n{3,}`)
)

// PlainText strips emphasis, headers, bullets and scripture brackets. It is
// meant for speech and clipboard output; stored text keeps its markers.
func PlainText(text string) string {
	text = boldPattern.ReplaceAllString(text, "$1")
	text = underlinePattern.ReplaceAllString(text, "$1")
	text = referencePattern.ReplaceAllString(text, "$1")
	text = headerPattern.ReplaceAllString(text, "")
	text = bulletPattern.ReplaceAllString(text, "")
	text = blankRunPattern.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// References lists the scripture references marked as [[Reference]] in text.
func References(text string) []string {
	matches := referencePattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	refs := make([]string, 0, len(matches))
	for _, m := range matches {
		if ref := strings.TrimSpace(m[1]); ref != "" {
			refs = append(refs, ref)
		}
	}
	return refs
}
