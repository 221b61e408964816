// Package category assigns markets to a fixed sector taxonomy. A market's
// explicit category tag always wins; otherwise the question text is matched
// against an ordered keyword rule table so classification stays in one
// testable place instead of being scattered across engines.
package category

import (
	"strings"

	"github.com/polysignal/engine/internal/domain"
)

// Other is the fallback sector for unclassifiable markets.
const Other = "Other"

// rule maps a sector name to the keywords that imply it. Rules are evaluated
// in order; the first match wins.
type rule struct {
	name     string
	keywords []string
}

var rules = []rule{
	{"Politics", []string{"trump", "biden", "election", "president", "congress", "senate", "governor"}},
	{"Crypto", []string{"bitcoin", "ethereum", "crypto", "btc", "eth", "solana"}},
	{"Economics", []string{"fed", "interest rate", "inflation", "gdp", "recession", "unemployment"}},
	{"Sports", []string{"super bowl", "nfl", "nba", "world series", "world cup", "champions league"}},
}

// Classify returns the sector for a market snapshot: the explicit category
// field if set, else the first upstream tag, else the first keyword rule
// matching the question, else Other.
func Classify(m domain.MarketSnapshot) string {
	if m.Category != "" {
		return m.Category
	}
	if len(m.Tags) > 0 && m.Tags[0] != "" {
		return m.Tags[0]
	}
	return ClassifyQuestion(m.Question)
}

// ClassifyQuestion matches question text against the keyword rule table.
func ClassifyQuestion(question string) string {
	q := strings.ToLower(question)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(q, kw) {
				return r.name
			}
		}
	}
	return Other
}
