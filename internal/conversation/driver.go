package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/seiyelan/raidhelper/internal/chat"
	"github.com/seiyelan/raidhelper/internal/question"
	"github.com/seiyelan/raidhelper/pkg/metrics"
)

var (
	// ErrTimeout aborts a conversation whose user stopped replying.
	ErrTimeout = errors.New("conversation: reply timed out")
	// ErrMaxRetry aborts a conversation after too many rejected answers.
	ErrMaxRetry = errors.New("conversation: retry budget exhausted")
	// ErrExited aborts a conversation on the explicit exit keyword.
	ErrExited = errors.New("conversation: user exited")
)

const (
	defaultRetryBudget   = 3
	defaultPromptTimeout = 2 * time.Minute
	defaultExitKeyword   = "exit"
	retryNotice          = "That answer is not valid here, please try again."
)

// Option customises Driver behaviour.
type Option func(*Driver)

// WithRetryBudget overrides the per-question retry budget.
func WithRetryBudget(n int) Option {
	return func(d *Driver) {
		if n > 0 {
			d.retryBudget = n
		}
	}
}

// WithPromptTimeout overrides the per-question reply timeout.
func WithPromptTimeout(t time.Duration) Option {
	return func(d *Driver) {
		if t > 0 {
			d.promptTimeout = t
		}
	}
}

// WithMessageDelay sets the inter-message delay applied before each prompt.
func WithMessageDelay(t time.Duration) Option {
	return func(d *Driver) {
		if t >= 0 {
			d.messageDelay = t
		}
	}
}

// WithExitKeyword overrides the keyword that terminates a conversation.
func WithExitKeyword(word string) Option {
	return func(d *Driver) {
		if word != "" {
			d.exitKeyword = word
		}
	}
}

// Driver sequences a question sheet over a chat session: prompt, await reply
// with timeout, bounded retry on rejection. Aborting at any question discards
// the whole answer set; no partial result is ever returned.
type Driver struct {
	retryBudget   int
	promptTimeout time.Duration
	messageDelay  time.Duration
	exitKeyword   string
}

// New constructs a Driver with the default budgets.
func New(opts ...Option) *Driver {
	d := &Driver{
		retryBudget:   defaultRetryBudget,
		promptTimeout: defaultPromptTimeout,
		exitKeyword:   defaultExitKeyword,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run drives the sheet front to back. Labels already present in seed count as
// auto-filled and are not asked; seeded labels the sheet does not carry are
// dropped. Skipped questions record an empty answer so the result always has
// one entry per sheet question.
func (d *Driver) Run(ctx context.Context, sess chat.Session, sheet []*question.Question, seed *question.AnswerSet) (*question.AnswerSet, error) {
	answers := question.NewAnswerSet()
	if seed != nil {
		labels := make(map[string]bool, len(sheet))
		for _, q := range sheet {
			labels[q.Label] = true
		}
		for _, a := range seed.Answers() {
			if labels[a.Label] {
				answers.Record(a)
			}
		}
	}

	metrics.ActiveConversations.Inc()
	defer metrics.ActiveConversations.Dec()

	for _, q := range sheet {
		if answers.Has(q.Label) {
			continue
		}

		if q.Skip(answers) {
			answers.Record(question.Answer{Label: q.Label, Name: q.Name})
			continue
		}

		if err := d.askInto(ctx, sess, q, answers); err != nil {
			metrics.ConversationsStarted.WithLabelValues(outcomeFor(err)).Inc()
			return nil, err
		}
	}

	metrics.ConversationsStarted.WithLabelValues("completed").Inc()
	return answers, nil
}

// AskOne drives a single standalone question and returns its answer. Used for
// confirmation prompts outside a full sheet run.
func (d *Driver) AskOne(ctx context.Context, sess chat.Session, q *question.Question) (question.Answer, error) {
	answers := question.NewAnswerSet()
	if err := d.askInto(ctx, sess, q, answers); err != nil {
		return question.Answer{}, err
	}
	a, _ := answers.Get(q.Label)
	return a, nil
}

// askInto runs the bounded prompt/retry loop for one question. An explicit
// counter keeps stack depth flat regardless of the retry budget.
func (d *Driver) askInto(ctx context.Context, sess chat.Session, q *question.Question, answers *question.AnswerSet) error {
	for attempt := 0; attempt < d.retryBudget; attempt++ {
		if err := sess.SendWithDelay(ctx, q.Content(answers), d.messageDelay); err != nil {
			return fmt.Errorf("conversation: send prompt: %w", err)
		}

		reply, err := sess.Prompt(ctx, d.promptTimeout)
		if errors.Is(err, chat.ErrPromptTimeout) {
			return ErrTimeout
		}
		if err != nil {
			return fmt.Errorf("conversation: await reply: %w", err)
		}

		reply = strings.TrimSpace(reply)
		if strings.EqualFold(reply, d.exitKeyword) {
			return ErrExited
		}

		if q.Accept(reply, answers) {
			answers.Record(question.Answer{
				Label:  q.Label,
				Name:   q.Name,
				Raw:    reply,
				Pretty: q.Pretty(reply, answers),
			})
			return nil
		}

		if err := sess.SendWithDelay(ctx, retryNotice, d.messageDelay); err != nil {
			return fmt.Errorf("conversation: send retry notice: %w", err)
		}
	}

	return ErrMaxRetry
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrMaxRetry):
		return "max_retry"
	case errors.Is(err, ErrExited):
		return "exited"
	default:
		return "error"
	}
}
