package score

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func mention(text string, s float64) Mention {
	return Mention{Text: text, Source: "Test", Sentiment: s, Timestamp: now.Add(-time.Hour)}
}

func TestNoMentions(t *testing.T) {
	_, ok := Calculate(1, nil, Standard(), nil, now)
	assert.False(t, ok)
}

func TestSinglePushMention(t *testing.T) {
	m, ok := Calculate(7, []Mention{mention("Roman Reigns wins championship in main event", 1.0)}, Standard(), nil, now)
	require.True(t, ok)

	assert.Equal(t, int64(7), m.WrestlerID)
	assert.Equal(t, 1, m.TotalMentions)
	assert.Equal(t, 100.0, m.PushScore, "1.0 * 1.5 * 1.3 is clamped to 100")
	assert.Zero(t, m.BurialScore)
	assert.Equal(t, TrendPush, m.Trend)
	assert.Equal(t, 1.0, m.SentimentScore)
	assert.InDelta(t, 1*(1.0*2)+100, m.MomentumScore, 1e-9)
	assert.Equal(t, 60, m.PopularityScore)
	assert.False(t, m.IsOnFire, "one mention is not enough")
}

func TestPushAccumulatorWithoutMultipliers(t *testing.T) {
	// (0.7-0.5)*2 = 0.4 per mention; average over 2 mentions, one of them neutral.
	m, ok := Calculate(1, []Mention{mention("good week", 0.7), mention("neutral", 0.5)}, Standard(), nil, now)
	require.True(t, ok)
	assert.InDelta(t, 20.0, m.PushScore, 1e-9)
	assert.InDelta(t, 0.6, m.SentimentScore, 1e-9)
	assert.Equal(t, 50, m.PopularityScore)
}

func TestBurialMultipliers(t *testing.T) {
	// (0.5-0.2)*2 = 0.6, fired (2.0) and jobber (1.8) stack: 2.16 -> 100.
	m, ok := Calculate(1, []Mention{mention("Jobber fired today", 0.2)}, Standard(), nil, now)
	require.True(t, ok)
	assert.Equal(t, 100.0, m.BurialScore)
	assert.Zero(t, m.PushScore)
	assert.Equal(t, TrendBurial, m.Trend)

	// Without keywords: 0.6 * 100 = 60.
	m, _ = Calculate(1, []Mention{mention("quiet week", 0.2)}, Standard(), nil, now)
	assert.InDelta(t, 60.0, m.BurialScore, 1e-9)
}

func TestMultiplierRuleAppliesOnce(t *testing.T) {
	rules := []MultiplierRule{{Terms: []string{"champion", "title"}, Factor: 1.5}}
	assert.Equal(t, 1.5, multiplier("champion retains title", rules))
	assert.Equal(t, 1.0, multiplier("nothing here", rules))
}

func TestScoresClampedForAnyInput(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	texts := []string{"champion title main event winner", "fired released buried jobber lose defeat", "plain"}
	for i := 0; i < 200; i++ {
		n := 1 + r.Intn(20)
		ms := make([]Mention, n)
		for j := range ms {
			ms[j] = mention(texts[r.Intn(len(texts))], r.Float64())
		}
		m, ok := Calculate(1, ms, Standard(), nil, now)
		require.True(t, ok)
		assert.GreaterOrEqual(t, m.PushScore, 0.0)
		assert.LessOrEqual(t, m.PushScore, 100.0)
		assert.GreaterOrEqual(t, m.BurialScore, 0.0)
		assert.LessOrEqual(t, m.BurialScore, 100.0)
		assert.Contains(t, []Trend{TrendPush, TrendBurial, TrendStable}, m.Trend)
	}
}

func TestClassifyTrendTotal(t *testing.T) {
	c := Standard()
	cases := []struct {
		push, burial, avg float64
		want              Trend
	}{
		{10, 0, 0.5, TrendPush},
		{1, 0, 0.56, TrendPush},
		{1, 0, 0.5, TrendStable},
		{0, 10, 0.5, TrendBurial},
		{0, 1, 0.44, TrendBurial},
		{0, 1, 0.5, TrendStable},
		{50, 50, 0.9, TrendStable},
		{0, 0, 0.5, TrendStable},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ClassifyTrend(tc.push, tc.burial, tc.avg, c), "%+v", tc)
	}
}

func TestOnFire(t *testing.T) {
	ms := []Mention{mention("title win", 0.9), mention("main event", 0.8)}
	m, ok := Calculate(1, ms, Standard(), nil, now)
	require.True(t, ok)
	assert.True(t, m.IsOnFire)

	m, _ = Calculate(1, ms, Conservative(), nil, now)
	assert.False(t, m.IsOnFire, "conservative preset needs three mentions")
}

func TestChange24hFromBaseline(t *testing.T) {
	ms := []Mention{mention("plain", 0.5)}
	m, _ := Calculate(1, ms, Standard(), &Baseline{Momentum: 0.25, RecordedAt: now.Add(-25 * time.Hour)}, now)
	assert.Equal(t, ChangeFromSnapshot, m.ChangeSource)
	assert.InDelta(t, 0.75, m.Change24h, 1e-9)
}

func TestChange24hWithoutBaselineIsDeterministic(t *testing.T) {
	push, _ := Calculate(1, []Mention{mention("good", 0.7)}, Standard(), nil, now)
	assert.Equal(t, ChangeFromTrend, push.ChangeSource)
	assert.InDelta(t, 4.0, push.Change24h, 1e-9)

	burial, _ := Calculate(1, []Mention{mention("bad", 0.3)}, Standard(), nil, now)
	assert.Equal(t, ChangeFromTrend, burial.ChangeSource)
	assert.InDelta(t, -4.0, burial.Change24h, 1e-9)

	stable, _ := Calculate(1, []Mention{mention("meh", 0.5)}, Standard(), nil, now)
	assert.Equal(t, ChangeNone, stable.ChangeSource)
	assert.Zero(t, stable.Change24h)

	again, _ := Calculate(1, []Mention{mention("good", 0.7)}, Standard(), nil, now)
	assert.Equal(t, push, again)
}

func TestConfidence(t *testing.T) {
	c := Standard()
	c.Tier1Sources = []string{"Fightful"}

	low := []Mention{{Source: "r/SquaredCircle", Timestamp: now.Add(-72 * time.Hour)}}
	assert.Equal(t, ConfidenceLow, AssessConfidence(low, c, now))

	medium := []Mention{
		{Source: "r/SquaredCircle", Timestamp: now.Add(-time.Hour)},
		{Source: "Blog", Timestamp: now.Add(-48 * time.Hour)},
	}
	assert.Equal(t, ConfidenceMedium, AssessConfidence(medium, c, now))

	high := []Mention{
		{Source: "fightful", Timestamp: now.Add(-time.Hour)},
		{Source: "Blog", Timestamp: now.Add(-48 * time.Hour)},
	}
	assert.Equal(t, ConfidenceHigh, AssessConfidence(high, c, now))
}

func TestPresets(t *testing.T) {
	c, err := Preset("")
	require.NoError(t, err)
	assert.Equal(t, Standard().OnFireMinPush, c.OnFireMinPush)

	c, err = Preset(PresetConservative)
	require.NoError(t, err)
	assert.Equal(t, 3, c.OnFireMinMentions)

	_, err = Preset("aggressive")
	assert.Error(t, err)
	assert.Equal(t, []string{PresetConservative, PresetStandard}, PresetNames())
}

func TestSortByMomentum(t *testing.T) {
	ms := []Metrics{{WrestlerID: 1, MomentumScore: 1}, {WrestlerID: 2, MomentumScore: 5}, {WrestlerID: 3, MomentumScore: -2}}
	SortByMomentum(ms)
	assert.Equal(t, []int64{2, 1, 3}, []int64{ms[0].WrestlerID, ms[1].WrestlerID, ms[2].WrestlerID})
}
