package profile

// TriageRecord is one scored assessment kept in the profile history.
type TriageRecord struct {
	Date    int64  `json:"date"`
	Score   int    `json:"score"`
	Summary string `json:"summary"`
}

// UserProfile holds what the counsellor knows about the user.
type UserProfile struct {
	Name          string         `json:"name"`
	SpouseName    string         `json:"spouseName"`
	Anniversary   string         `json:"anniversary,omitempty"`
	Struggles     []string       `json:"struggles,omitempty"`
	TriageHistory []TriageRecord `json:"triageHistory,omitempty"`
}

// LatestTriage returns the most recent assessment record, if any.
func (p *UserProfile) LatestTriage() (TriageRecord, bool) {
	if p == nil || len(p.TriageHistory) == 0 {
		return TriageRecord{}, false
	}
	return p.TriageHistory[len(p.TriageHistory)-1], true
}
