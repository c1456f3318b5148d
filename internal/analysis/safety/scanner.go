package safety

import "regexp"

// Category groups trigger patterns by the kind of risk they indicate.
type Category string

const (
	SelfHarm        Category = "self_harm"
	PartnerViolence Category = "partner_violence"
	Threat          Category = "threat"
	Weapon          Category = "weapon"
	SexualAssault   Category = "sexual_assault"
	Emergency       Category = "emergency"
)

// Finding describes the first pattern that tripped a scan.
type Finding struct {
	Category Category `json:"category"`
	Pattern  string   `json:"pattern"`
}

type trigger struct {
	category Category
	pattern  *regexp.Regexp
}

// Patterns are case-insensitive. Short words are anchored on word boundaries
// so that "begun", "grape" or "scrape" stay benign.
var triggers = compile(map[Category][]string{
	SelfHarm: {
		`suicid`,
		`kill\s*myself`,
		`end\s*it\s*all`,
		`hurt\s*myself`,
		`want\s*to\s*die`,
	},
	PartnerViolence: {
		`he\s*hits\s*me`,
		`she\s*hits\s*me`,
		`beat\s*me`,
		`(physic|sexual|emotional)(al)?\s*abuse`,
		`violen(ce|t)`,
	},
	Threat: {
		`scared\s*for\s*my\s*life`,
		`threaten`,
	},
	Weapon: {
		`weapon`,
		`\bgun(s|ned|point|fire|shot|man|men)?\b`,
		`(hand|shot|machine)\s*guns?`,
		`\bknif(e|es|ed|ing|epoint)\b|\bknives\b`,
	},
	SexualAssault: {
		`\brap(e|ed|es|ing|ist)\b`,
		`assault`,
	},
	Emergency: {
		`danger`,
		`emergency`,
		`call\s*911`,
	},
})

// order fixes the evaluation sequence so results are deterministic.
var order = []Category{SelfHarm, PartnerViolence, Threat, Weapon, SexualAssault, Emergency}

func compile(buckets map[Category][]string) []trigger {
	compiled := make([]trigger, 0, 32)
	for _, category := range order {
		for _, expr := range buckets[category] {
			compiled = append(compiled, trigger{
				category: category,
				pattern:  regexp.MustCompile(`(?i)` + expr),
			})
		}
	}
	return compiled
}

// Scan reports whether text contains any trigger pattern.
func Scan(text string) bool {
	_, tripped := Detect(text)
	return tripped
}

// Detect returns the first matching trigger. The text is scanned as-is,
// including any [[Reference]] markers.
func Detect(text string) (Finding, bool) {
	if text == "" {
		return Finding{}, false
	}
	for _, t := range triggers {
		if t.pattern.MatchString(text) {
			return Finding{Category: t.category, Pattern: t.pattern.String()}, true
		}
	}
	return Finding{}, false
}

// Scanner adapts the package functions to an injectable dependency.
type Scanner struct{}

// Detect implements the interceptor contract used by the orchestrator.
func (Scanner) Detect(text string) (Finding, bool) {
	return Detect(text)
}
