package question

import "encoding/json"

// Answer is one recorded reply. Skipped questions still produce an Answer with
// empty Raw/Pretty so exports keep their positional alignment.
type Answer struct {
	Label  string `json:"label"`
	Name   string `json:"name"`
	Raw    string `json:"answer"`
	Pretty string `json:"pretty_answer"`
}

// AnswerSet is the ordered collection of answers for one questionnaire run.
// Entries are keyed by question label and never mutated once recorded.
type AnswerSet struct {
	order   []string
	byLabel map[string]Answer
}

// NewAnswerSet returns an empty AnswerSet.
func NewAnswerSet() *AnswerSet {
	return &AnswerSet{byLabel: make(map[string]Answer)}
}

// Record appends an answer. Recording the same label twice replaces the value
// but keeps the original position.
func (s *AnswerSet) Record(a Answer) {
	if s.byLabel == nil {
		s.byLabel = make(map[string]Answer)
	}
	if _, exists := s.byLabel[a.Label]; !exists {
		s.order = append(s.order, a.Label)
	}
	s.byLabel[a.Label] = a
}

// Get returns the answer recorded for a label.
func (s *AnswerSet) Get(label string) (Answer, bool) {
	if s == nil || s.byLabel == nil {
		return Answer{}, false
	}
	a, ok := s.byLabel[label]
	return a, ok
}

// Has reports whether a label has been recorded.
func (s *AnswerSet) Has(label string) bool {
	_, ok := s.Get(label)
	return ok
}

// Pretty returns the display-formatted answer for a label, or "" when absent.
func (s *AnswerSet) Pretty(label string) string {
	a, _ := s.Get(label)
	return a.Pretty
}

// Raw returns the raw answer for a label, or "" when absent.
func (s *AnswerSet) Raw(label string) string {
	a, _ := s.Get(label)
	return a.Raw
}

// Len reports the number of recorded answers.
func (s *AnswerSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Answers returns the recorded answers in insertion order.
func (s *AnswerSet) Answers() []Answer {
	if s == nil {
		return nil
	}
	out := make([]Answer, 0, len(s.order))
	for _, label := range s.order {
		out = append(out, s.byLabel[label])
	}
	return out
}

// MarshalJSON serializes the answers as an ordered array.
func (s *AnswerSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Answers())
}

// UnmarshalJSON restores an AnswerSet from its ordered array form.
func (s *AnswerSet) UnmarshalJSON(data []byte) error {
	var answers []Answer
	if err := json.Unmarshal(data, &answers); err != nil {
		return err
	}

	s.order = nil
	s.byLabel = make(map[string]Answer, len(answers))
	for _, a := range answers {
		s.Record(a)
	}
	return nil
}
