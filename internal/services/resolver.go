package services

import (
	"strconv"
	"strings"

	"github.com/adrg/strutil"
	strutilmetrics "github.com/adrg/strutil/metrics"

	"github.com/seiyelan/raidhelper/internal/models"
)

// resolveThreshold is the minimum Sørensen-Dice similarity for a fuzzy
// nickname match.
const resolveThreshold = 0.5

// Resolution pairs one input token with the roster member it resolved to.
// Signup is nil when the token matched nobody.
type Resolution struct {
	Token  string
	Signup *models.Signup
}

// Resolved reports whether the token matched a roster member.
func (r Resolution) Resolved() bool { return r.Signup != nil }

// MemberResolver maps leader-typed member references onto a roster snapshot.
// A numeric token is a 1-based roster position; anything else is fuzzy
// matched against nicknames. The roster is loaded once per command, so a
// batch of tokens resolves without further queries.
type MemberResolver struct {
	roster []models.Signup
	metric *strutilmetrics.SorensenDice
}

// NewMemberResolver builds a resolver over a roster snapshot in signup order.
func NewMemberResolver(roster []models.Signup) *MemberResolver {
	return &MemberResolver{
		roster: roster,
		metric: strutilmetrics.NewSorensenDice(),
	}
}

// Resolve maps each token to a roster member, preserving the input order.
// Unmatched tokens stay in the result with a nil Signup so callers can report
// exactly which references missed.
func (r *MemberResolver) Resolve(tokens []string) []Resolution {
	resolutions := make([]Resolution, 0, len(tokens))
	for _, token := range tokens {
		resolutions = append(resolutions, Resolution{
			Token:  token,
			Signup: r.resolveOne(strings.TrimSpace(token)),
		})
	}
	return resolutions
}

func (r *MemberResolver) resolveOne(token string) *models.Signup {
	if token == "" {
		return nil
	}
	if idx, err := strconv.Atoi(token); err == nil {
		if idx < 1 || idx > len(r.roster) {
			return nil
		}
		return &r.roster[idx-1]
	}

	best := -1
	bestScore := 0.0
	for i := range r.roster {
		score := strutil.Similarity(token, r.roster[i].Nickname, r.metric)
		if score > bestScore {
			best = i
			bestScore = score
		}
	}
	if best < 0 || bestScore < resolveThreshold {
		return nil
	}
	return &r.roster[best]
}
