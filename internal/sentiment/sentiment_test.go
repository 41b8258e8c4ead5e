package sentiment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNeutralWithoutKeywords(t *testing.T) {
	a := NewAnalyzer(DefaultConfig())
	r := a.Analyze("The weather in Orlando was pleasant")
	assert.Equal(t, Neutral, r.Score)
	assert.Zero(t, r.Positive)
	assert.Zero(t, r.Negative)
}

func TestPositiveOnly(t *testing.T) {
	a := NewAnalyzer(DefaultConfig())
	r := a.Analyze("Roman Reigns wins championship in main event")
	assert.Equal(t, 1.0, r.Score)
	assert.Positive(t, r.Positive)
	assert.Zero(t, r.Negative)
}

func TestNegativeOnly(t *testing.T) {
	a := NewAnalyzer(DefaultConfig())
	r := a.Analyze("Star FIRED and released after backstage heat")
	assert.Equal(t, 0.0, r.Score)
	assert.Positive(t, r.Negative)
}

func TestMixedRatio(t *testing.T) {
	a := NewAnalyzer(Config{Positive: []string{"crowned"}, Negative: []string{"injured", "botch"}})
	r := a.Analyze("Crowned last week, injured after a botch tonight")
	require.Equal(t, 1, r.Positive)
	require.Equal(t, 2, r.Negative)
	assert.InDelta(t, 1.0/3.0, r.Score, 1e-9)
}

func TestKeywordCountsOncePerText(t *testing.T) {
	a := NewAnalyzer(Config{Positive: []string{"crowned"}, Negative: []string{"botch"}})
	r := a.Analyze("crowned crowned crowned botch")
	assert.Equal(t, 1, r.Positive)
	assert.Equal(t, 1, r.Negative)
	assert.Equal(t, 0.5, r.Score)
}

func TestDuplicateKeywordFavoursPositive(t *testing.T) {
	a := NewAnalyzer(Config{Positive: []string{"push"}, Negative: []string{"Push"}})
	r := a.Analyze("a big push")
	assert.Equal(t, 1, r.Positive)
	assert.Zero(t, r.Negative)
}

func TestIdempotent(t *testing.T) {
	a := NewAnalyzer(DefaultConfig())
	text := "Jobber loses again but fans cheer his return"
	first := a.Analyze(text)
	for i := 0; i < 3; i++ {
		assert.Equal(t, first, a.Analyze(text))
	}
}

func TestScoreInUnitInterval(t *testing.T) {
	a := NewAnalyzer(DefaultConfig())
	for _, text := range []string{"", "win", "lose", "win lose buried champion", "zzz"} {
		s := a.Analyze(text).Score
		assert.GreaterOrEqual(t, s, 0.0, text)
		assert.LessOrEqual(t, s, 1.0, text)
	}
}

func TestEmptyConfig(t *testing.T) {
	a := NewAnalyzer(Config{})
	assert.Equal(t, Neutral, a.Analyze("wins everything").Score)
}

func TestKeywordsMatchWholeWords(t *testing.T) {
	a := NewAnalyzer(DefaultConfig())

	r := a.Analyze("Roman Reigns closes Raw")
	assert.Equal(t, Neutral, r.Score)
	assert.Zero(t, r.Negative, "closes is not lose")

	r = a.Analyze("Winter window for the tour")
	assert.Zero(t, r.Positive, "winter is not win")

	r = a.Analyze("Seth returns")
	assert.Equal(t, 1, r.Positive, "returns must not also count as return")
}

func TestMultiWordKeywordNeedsWordBoundaries(t *testing.T) {
	a := NewAnalyzer(Config{Positive: []string{"main event"}})
	assert.Equal(t, 1, a.Analyze("He will main event Raw").Positive)
	assert.Zero(t, a.Analyze("the domain eventually").Positive)
}
