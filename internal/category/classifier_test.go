package category

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/polysignal/engine/internal/domain"
)

func TestClassifyExplicitCategoryWins(t *testing.T) {
	m := domain.MarketSnapshot{
		Category: "Science",
		Question: "Will Bitcoin reach $100k?",
	}
	assert.Equal(t, "Science", Classify(m))
}

func TestClassifyTagFallback(t *testing.T) {
	m := domain.MarketSnapshot{
		Tags:     []string{"Entertainment"},
		Question: "Will the Fed cut rates in June?",
	}
	assert.Equal(t, "Entertainment", Classify(m))
}

func TestClassifyQuestionKeywords(t *testing.T) {
	cases := []struct {
		question string
		want     string
	}{
		{"Will Trump win the election?", "Politics"},
		{"Will Bitcoin close above $80k this month?", "Crypto"},
		{"Will the Fed raise interest rates?", "Economics"},
		{"Who wins the Super Bowl?", "Sports"},
		{"Will it rain in London tomorrow?", Other},
		{"", Other},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ClassifyQuestion(tc.question), tc.question)
	}
}

func TestClassifyRuleOrder(t *testing.T) {
	// A question matching both Politics and Crypto keywords resolves to the
	// earlier rule.
	got := ClassifyQuestion("Will Trump launch a Bitcoin reserve?")
	assert.Equal(t, "Politics", got)
}
