// Package analyze aggregates wrestler mentions across content items and
// scores them.
package analyze

import (
	"sort"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/TobiSchelling/wrestlepulse/internal/matcher"
	"github.com/TobiSchelling/wrestlepulse/internal/score"
	"github.com/TobiSchelling/wrestlepulse/internal/sentiment"
)

// DefaultRelatedLimit caps RelatedNews per wrestler.
const DefaultRelatedLimit = 5

// Wrestler is a roster entry as seen by the analysis.
type Wrestler struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	Promotion         string `json:"promotion"`
	IsChampion        bool   `json:"is_champion"`
	ChampionshipTitle string `json:"championship_title,omitempty"`
}

// ContentItem is a news article or Reddit post.
type ContentItem struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Snippet     string    `json:"snippet"`
	Link        string    `json:"link"`
	PublishedAt time.Time `json:"published_at"`
	Source      string    `json:"source"`
	Kind        string    `json:"kind"`
	Engagement  int       `json:"engagement,omitempty"`
}

// Text is what the matcher and sentiment scorer look at.
func (c ContentItem) Text() string {
	return c.Title + " " + c.Snippet
}

// Mention is one item judged to reference a wrestler.
type Mention struct {
	WrestlerID int64       `json:"wrestler_id"`
	Item       ContentItem `json:"item"`
	Sentiment  float64     `json:"sentiment"`
	Timestamp  time.Time   `json:"timestamp"`
}

// WrestlerAnalysis is the per-wrestler result of an analysis pass.
type WrestlerAnalysis struct {
	score.Metrics
	Name              string        `json:"name"`
	Promotion         string        `json:"promotion"`
	IsChampion        bool          `json:"is_champion"`
	ChampionshipTitle string        `json:"championship_title,omitempty"`
	RelatedNews       []ContentItem `json:"related_news"`
	Mentions          []Mention     `json:"-"`
}

// Analyzer runs the matcher, the sentiment scorer and the score calculator
// over a roster and a set of items. It holds no per-run state.
type Analyzer struct {
	matcher      *matcher.Matcher
	sentiment    *sentiment.Analyzer
	constants    score.Constants
	clock        clockwork.Clock
	relatedLimit int
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithConstants selects the scoring constants.
func WithConstants(c score.Constants) Option {
	return func(a *Analyzer) { a.constants = c }
}

// WithClock sets the clock used for undated items and confidence recency.
func WithClock(c clockwork.Clock) Option {
	return func(a *Analyzer) { a.clock = c }
}

// WithRelatedLimit caps RelatedNews. Non-positive values are ignored.
func WithRelatedLimit(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.relatedLimit = n
		}
	}
}

// New creates an Analyzer with standard constants and the real clock unless
// overridden.
func New(m *matcher.Matcher, s *sentiment.Analyzer, opts ...Option) *Analyzer {
	a := &Analyzer{
		matcher:      m,
		sentiment:    s,
		constants:    score.Standard(),
		clock:        clockwork.NewRealClock(),
		relatedLimit: DefaultRelatedLimit,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Clock returns the analyzer's clock.
func (a *Analyzer) Clock() clockwork.Clock {
	return a.clock
}

// AnalyzeWrestlerMentions analyzes with the default lexicon, keywords and
// constants and without any history.
func AnalyzeWrestlerMentions(wrestlers []Wrestler, items []ContentItem) []WrestlerAnalysis {
	a := New(matcher.New(matcher.DefaultConfig()), sentiment.NewAnalyzer(sentiment.DefaultConfig()))
	return a.Analyze(wrestlers, items, nil)
}

// Analyze returns one entry per wrestler with at least one matching item,
// ordered by total mentions (highest first) and then name. baselines holds
// the snapshot each wrestler's Change24h is measured against; it may be nil.
func (a *Analyzer) Analyze(wrestlers []Wrestler, items []ContentItem, baselines map[int64]score.Baseline) []WrestlerAnalysis {
	now := a.clock.Now()

	texts := make([]string, len(items))
	for i, it := range items {
		texts[i] = it.Text()
	}
	sentiments := make([]float64, len(items))
	scored := make([]bool, len(items))

	var out []WrestlerAnalysis
	for _, w := range wrestlers {
		var mentions []Mention
		for i, it := range items {
			if !a.matcher.IsMentioned(w.Name, texts[i]) {
				continue
			}
			if !scored[i] {
				sentiments[i] = a.sentiment.Analyze(texts[i]).Score
				scored[i] = true
			}
			ts := it.PublishedAt
			if ts.IsZero() {
				ts = now
			}
			mentions = append(mentions, Mention{WrestlerID: w.ID, Item: it, Sentiment: sentiments[i], Timestamp: ts})
		}

		var baseline *score.Baseline
		if b, ok := baselines[w.ID]; ok {
			baseline = &b
		}
		metrics, ok := score.Calculate(w.ID, toScoreMentions(mentions), a.constants, baseline, now)
		if !ok {
			continue
		}

		out = append(out, WrestlerAnalysis{
			Metrics:           metrics,
			Name:              w.Name,
			Promotion:         w.Promotion,
			IsChampion:        w.IsChampion,
			ChampionshipTitle: w.ChampionshipTitle,
			RelatedNews:       related(mentions, a.relatedLimit),
			Mentions:          mentions,
		})
	}

	SortByMentions(out)
	return out
}

// SortByMentions orders analyses by mention count, then case-insensitively
// by name.
func SortByMentions(out []WrestlerAnalysis) {
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TotalMentions != out[j].TotalMentions {
			return out[i].TotalMentions > out[j].TotalMentions
		}
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
}

func toScoreMentions(mentions []Mention) []score.Mention {
	out := make([]score.Mention, len(mentions))
	for i, m := range mentions {
		out[i] = score.Mention{
			Text:      m.Item.Text(),
			Source:    m.Item.Source,
			Sentiment: m.Sentiment,
			Timestamp: m.Timestamp,
		}
	}
	return out
}

// related returns up to limit matched items, newest first.
func related(mentions []Mention, limit int) []ContentItem {
	items := make([]ContentItem, len(mentions))
	for i, m := range mentions {
		items[i] = m.Item
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].PublishedAt.After(items[j].PublishedAt) })
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}
