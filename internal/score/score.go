// Package score turns a wrestler's mentions into push, burial, momentum and
// popularity numbers plus a trend label.
package score

import (
	"math"
	"sort"
	"strings"
	"time"
)

// Trend is the categorical momentum label.
type Trend string

const (
	TrendPush   Trend = "push"
	TrendBurial Trend = "burial"
	TrendStable Trend = "stable"
)

// Confidence buckets how much a wrestler's numbers can be trusted.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ChangeSource records how Change24h was derived.
type ChangeSource string

const (
	ChangeFromSnapshot ChangeSource = "snapshot"
	ChangeFromTrend    ChangeSource = "trend"
	ChangeNone         ChangeSource = "none"
)

// Mention is one matched content item with its sentiment.
type Mention struct {
	Text      string
	Source    string
	Sentiment float64
	Timestamp time.Time
}

// Baseline is a previously persisted snapshot used for Change24h.
type Baseline struct {
	Momentum   float64
	RecordedAt time.Time
}

// Metrics are the derived numbers for one wrestler.
type Metrics struct {
	WrestlerID      int64        `json:"wrestler_id"`
	TotalMentions   int          `json:"total_mentions"`
	PushScore       float64      `json:"push_score"`
	BurialScore     float64      `json:"burial_score"`
	MomentumScore   float64      `json:"momentum_score"`
	PopularityScore int          `json:"popularity_score"`
	SentimentScore  float64      `json:"sentiment_score"`
	Trend           Trend        `json:"trend"`
	IsOnFire        bool         `json:"is_on_fire"`
	Change24h       float64      `json:"change_24h"`
	ChangeSource    ChangeSource `json:"change_source"`
	Confidence      Confidence   `json:"confidence"`
}

// Calculate computes Metrics for a wrestler. It returns false when there are
// no mentions; such wrestlers are left out of results rather than reported
// with zeros.
func Calculate(wrestlerID int64, mentions []Mention, c Constants, baseline *Baseline, now time.Time) (Metrics, bool) {
	n := len(mentions)
	if n == 0 {
		return Metrics{}, false
	}

	var sum, pushAcc, burialAcc float64
	for _, m := range mentions {
		sum += m.Sentiment
		text := strings.ToLower(m.Text)
		switch {
		case m.Sentiment > c.PushSentiment:
			pushAcc += (m.Sentiment - 0.5) * 2 * multiplier(text, c.PushMultipliers)
		case m.Sentiment < c.BurialSentiment:
			burialAcc += (0.5 - m.Sentiment) * 2 * multiplier(text, c.BurialMultipliers)
		}
	}

	avg := sum / float64(n)
	push := clampPercent(pushAcc / float64(n) * 100)
	burial := clampPercent(burialAcc / float64(n) * 100)

	mt := Metrics{
		WrestlerID:      wrestlerID,
		TotalMentions:   n,
		PushScore:       push,
		BurialScore:     burial,
		MomentumScore:   float64(n)*(avg*2) + (push - burial),
		PopularityScore: int(math.Round(float64(n)*10 + avg*50)),
		SentimentScore:  avg,
		Trend:           ClassifyTrend(push, burial, avg, c),
		Confidence:      AssessConfidence(mentions, c, now),
	}
	mt.IsOnFire = n >= c.OnFireMinMentions && avg > c.OnFireMinSentiment && push > c.OnFireMinPush
	mt.Change24h, mt.ChangeSource = change(mt, baseline)
	return mt, true
}

// ClassifyTrend labels momentum. Every input yields one of the three trends.
func ClassifyTrend(push, burial, avgSentiment float64, c Constants) Trend {
	switch {
	case push > burial && (push > c.TrendScoreMin || avgSentiment > c.TrendPushSentiment):
		return TrendPush
	case burial > push && (burial > c.TrendScoreMin || avgSentiment < c.TrendBurialSentiment):
		return TrendBurial
	default:
		return TrendStable
	}
}

// AssessConfidence scores mention volume, outlet tier and recency.
func AssessConfidence(mentions []Mention, c Constants, now time.Time) Confidence {
	points := 0
	switch {
	case len(mentions) >= c.ConfidenceHighMentions:
		points += 2
	case len(mentions) >= 2:
		points++
	}

	tier1 := make(map[string]struct{}, len(c.Tier1Sources))
	for _, s := range c.Tier1Sources {
		tier1[strings.ToLower(s)] = struct{}{}
	}

	var hasTier1, recent bool
	for _, m := range mentions {
		if _, ok := tier1[strings.ToLower(m.Source)]; ok {
			hasTier1 = true
		}
		if !m.Timestamp.IsZero() && now.Sub(m.Timestamp) <= 24*time.Hour {
			recent = true
		}
	}
	if hasTier1 {
		points++
	}
	if recent {
		points++
	}

	switch {
	case points >= 3:
		return ConfidenceHigh
	case points >= 2:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// change derives Change24h from a baseline snapshot when one exists and
// otherwise from the trend direction.
func change(m Metrics, baseline *Baseline) (float64, ChangeSource) {
	if baseline != nil {
		return round2(m.MomentumScore - baseline.Momentum), ChangeFromSnapshot
	}
	switch m.Trend {
	case TrendPush:
		return round2(m.PushScore / 10), ChangeFromTrend
	case TrendBurial:
		return round2(-m.BurialScore / 10), ChangeFromTrend
	default:
		return 0, ChangeNone
	}
}

// multiplier multiplies the factor of every rule whose terms appear in text.
func multiplier(text string, rules []MultiplierRule) float64 {
	m := 1.0
	for _, r := range rules {
		for _, term := range r.Terms {
			if strings.Contains(text, term) {
				m *= r.Factor
				break
			}
		}
	}
	return m
}

func clampPercent(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// SortByMomentum orders metrics by momentum, highest first.
func SortByMomentum(ms []Metrics) {
	sort.SliceStable(ms, func(i, j int) bool { return ms[i].MomentumScore > ms[j].MomentumScore })
}
