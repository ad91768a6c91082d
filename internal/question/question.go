package question

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies a question variant. The set is closed: each kind resolves to
// a complete pure-function table at Build time.
type Kind int

const (
	Text Kind = iota
	Boolean
	SingleChoice
)

// ErrConfig marks question-set construction failures. These are fatal at
// startup, never recovered per request.
var ErrConfig = errors.New("question: invalid configuration")

// Choice is one selectable option of a SingleChoice question.
type Choice struct {
	Key         string
	Description string
}

// Definition declares one question. Closures may read earlier answers to
// branch; they must stay pure because they run once during validation and
// again during persistence formatting.
type Definition struct {
	Label   string
	Name    string
	Kind    Kind
	Content string

	// Text options.
	AllowEmpty bool

	// Boolean options. Codes/Polarity default to "1"/"0" and "yes"/"no";
	// Inverted flips which description each code maps to, in both
	// validation-side rendering and the persisted pretty answer.
	TrueCode  string
	FalseCode string
	TrueDesc  string
	FalseDesc string
	Inverted  bool

	// SingleChoice options. Either Keys, Descriptions or both; equal lengths
	// required when both are present. Wrap forces one-per-line (true) or
	// space-joined (false) rendering; nil applies a total-width heuristic.
	Keys         []string
	Descriptions []string
	Wrap         *bool

	// Dependency closures over the answers collected so far.
	ContentFunc func(prior *AnswerSet) string
	RangeFunc   func(prior *AnswerSet) []Choice
	AcceptFunc  func(raw string, prior *AnswerSet) bool
	PrettyFunc  func(raw string, prior *AnswerSet) string
	SkipFunc    func(prior *AnswerSet) bool
}

// Question is the resolved pure-function bundle driven by the conversation.
type Question struct {
	Label string
	Name  string
	Kind  Kind

	Content func(prior *AnswerSet) string
	Accept  func(raw string, prior *AnswerSet) bool
	Pretty  func(raw string, prior *AnswerSet) string
	Skip    func(prior *AnswerSet) bool
}

// Build resolves a definition into a Question, applying per-kind defaults.
func Build(def Definition) (*Question, error) {
	if def.Label == "" {
		return nil, fmt.Errorf("question: missing label: %w", ErrConfig)
	}

	q := &Question{
		Label: def.Label,
		Name:  def.Name,
		Kind:  def.Kind,
	}

	switch def.Kind {
	case Text:
		buildText(def, q)
	case Boolean:
		buildBoolean(def, q)
	case SingleChoice:
		if err := buildSingleChoice(def, q); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("question %q: unknown kind %d: %w", def.Label, def.Kind, ErrConfig)
	}

	// Caller-supplied closures override the kind defaults.
	if def.ContentFunc != nil {
		q.Content = def.ContentFunc
	}
	if def.AcceptFunc != nil {
		q.Accept = def.AcceptFunc
	}
	if def.PrettyFunc != nil {
		q.Pretty = def.PrettyFunc
	}
	if def.SkipFunc != nil {
		q.Skip = def.SkipFunc
	} else {
		q.Skip = func(*AnswerSet) bool { return false }
	}

	return q, nil
}

// MustBuild is Build for statically known definitions.
func MustBuild(def Definition) *Question {
	q, err := Build(def)
	if err != nil {
		panic(err)
	}
	return q
}

func buildText(def Definition, q *Question) {
	q.Content = func(*AnswerSet) string { return def.Content }
	q.Accept = func(raw string, _ *AnswerSet) bool {
		if strings.TrimSpace(raw) == "" {
			return def.AllowEmpty
		}
		return true
	}
	q.Pretty = func(raw string, _ *AnswerSet) string { return raw }
}

func buildBoolean(def Definition, q *Question) {
	trueCode, falseCode := def.TrueCode, def.FalseCode
	if trueCode == "" {
		trueCode = "1"
	}
	if falseCode == "" {
		falseCode = "0"
	}
	trueDesc, falseDesc := def.TrueDesc, def.FalseDesc
	if trueDesc == "" {
		trueDesc = "yes"
	}
	if falseDesc == "" {
		falseDesc = "no"
	}
	if def.Inverted {
		trueDesc, falseDesc = falseDesc, trueDesc
	}

	q.Content = func(*AnswerSet) string {
		return fmt.Sprintf("%s\n(%s-%s/%s-%s)", def.Content, trueCode, trueDesc, falseCode, falseDesc)
	}
	q.Accept = func(raw string, _ *AnswerSet) bool {
		raw = strings.TrimSpace(raw)
		return raw == trueCode || raw == falseCode
	}
	q.Pretty = func(raw string, _ *AnswerSet) string {
		if strings.TrimSpace(raw) == trueCode {
			return trueDesc
		}
		return falseDesc
	}
}

func buildSingleChoice(def Definition, q *Question) error {
	var static []Choice
	if def.RangeFunc == nil {
		choices, err := resolveChoices(def)
		if err != nil {
			return err
		}
		static = choices
	}

	choicesFor := func(prior *AnswerSet) []Choice {
		if def.RangeFunc != nil {
			return def.RangeFunc(prior)
		}
		return static
	}

	q.Content = func(prior *AnswerSet) string {
		return def.Content + "\n" + renderChoices(choicesFor(prior), def.Wrap)
	}
	q.Accept = func(raw string, prior *AnswerSet) bool {
		raw = strings.TrimSpace(raw)
		for _, c := range choicesFor(prior) {
			if c.Key == raw {
				return true
			}
		}
		return false
	}
	q.Pretty = func(raw string, prior *AnswerSet) string {
		raw = strings.TrimSpace(raw)
		for _, c := range choicesFor(prior) {
			if c.Key == raw {
				return c.Description
			}
		}
		return raw
	}
	return nil
}

func resolveChoices(def Definition) ([]Choice, error) {
	switch {
	case len(def.Keys) > 0 && len(def.Descriptions) > 0:
		if len(def.Keys) != len(def.Descriptions) {
			return nil, fmt.Errorf("question %q: %d keys vs %d descriptions: %w",
				def.Label, len(def.Keys), len(def.Descriptions), ErrConfig)
		}
		choices := make([]Choice, len(def.Keys))
		for i := range def.Keys {
			choices[i] = Choice{Key: def.Keys[i], Description: def.Descriptions[i]}
		}
		return choices, nil
	case len(def.Descriptions) > 0:
		return NumberedChoices(def.Descriptions), nil
	case len(def.Keys) > 0:
		choices := make([]Choice, len(def.Keys))
		for i, key := range def.Keys {
			choices[i] = Choice{Key: key, Description: key}
		}
		return choices, nil
	default:
		return nil, fmt.Errorf("question %q: single choice without range: %w", def.Label, ErrConfig)
	}
}

// NumberedChoices assigns 1-based string keys to a list of descriptions.
func NumberedChoices(descriptions []string) []Choice {
	choices := make([]Choice, len(descriptions))
	for i, desc := range descriptions {
		choices[i] = Choice{Key: strconv.Itoa(i + 1), Description: desc}
	}
	return choices
}

// singleLineWidth is the rendered width under which choices stay on one line
// when no explicit wrap preference is configured.
const singleLineWidth = 48

func renderChoices(choices []Choice, wrap *bool) string {
	parts := make([]string, len(choices))
	for i, c := range choices {
		if c.Key == c.Description {
			parts[i] = c.Description
		} else {
			parts[i] = c.Key + " - " + c.Description
		}
	}

	perLine := true
	switch {
	case wrap != nil:
		perLine = *wrap
	default:
		total := 0
		for _, p := range parts {
			total += len(p) + 1
		}
		perLine = total > singleLineWidth
	}

	if perLine {
		return strings.Join(parts, "\n")
	}
	return strings.Join(parts, " ")
}
