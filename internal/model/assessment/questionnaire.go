package assessment

// Option is one selectable answer with its integer weight (1-5).
type Option struct {
	Value int    `json:"value"`
	Label string `json:"label"`
}

// Question is a single questionnaire item.
type Question struct {
	ID      int      `json:"id"`
	Text    string   `json:"text"`
	Options []Option `json:"options"`
}

// Band binds a score range to canned guidance. A score falls into the first
// band whose Min it reaches.
type Band struct {
	Min            int    `json:"min"`
	Summary        string `json:"summary"`
	Recommendation string `json:"recommendation"`
}

// Questionnaire is a question bank with its scoring bands, highest band first.
type Questionnaire struct {
	Kind      string     `json:"kind"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
	Bands     []Band     `json:"-"`
}

// Question looks up a question by id.
func (q Questionnaire) Question(id int) (Question, bool) {
	for _, item := range q.Questions {
		if item.ID == id {
			return item, true
		}
	}
	return Question{}, false
}

// Accepts reports whether value is one of the question's options.
func (q Question) Accepts(value int) bool {
	for _, opt := range q.Options {
		if opt.Value == value {
			return true
		}
	}
	return false
}

// Store exposes the built-in question banks.
type Store interface {
	List() []Questionnaire
	FindByKind(kind string) (Questionnaire, bool)
}

// MemoryStore implements Store over a fixed slice.
type MemoryStore struct {
	items []Questionnaire
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied banks.
func NewMemoryStore(items []Questionnaire) *MemoryStore {
	return &MemoryStore{items: append([]Questionnaire(nil), items...)}
}

// List returns every question bank.
func (s *MemoryStore) List() []Questionnaire {
	return append([]Questionnaire(nil), s.items...)
}

// FindByKind looks up a question bank by kind.
func (s *MemoryStore) FindByKind(kind string) (Questionnaire, bool) {
	for _, item := range s.items {
		if item.Kind == kind {
			return item, true
		}
	}
	return Questionnaire{}, false
}
