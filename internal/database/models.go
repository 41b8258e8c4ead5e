package database

import "time"

// Content kinds.
const (
	KindNews   = "news"
	KindReddit = "reddit"
)

// Wrestler is a roster entry.
type Wrestler struct {
	ID                int64
	Name              string
	Promotion         string
	IsChampion        bool
	ChampionshipTitle string
	CreatedAt         *string
}

// ContentItem is a collected news article or Reddit post.
type ContentItem struct {
	ID             int64
	Link           string
	Title          string
	Snippet        string
	Source         string
	Kind           string
	Engagement     int
	PublishedAt    time.Time // zero when the source gave no date
	CollectedAt    time.Time
	ContentFetched bool
}

// AnalysisRun is one persisted analysis pass.
type AnalysisRun struct {
	ID             string
	StartedAt      time.Time
	FinishedAt     time.Time
	ScoringPreset  string
	ItemCount      int
	WrestlerCount  int
	DigestMarkdown string
}

// WrestlerMetric is a wrestler's snapshot within a run.
type WrestlerMetric struct {
	RunID           string
	WrestlerID      int64
	WrestlerName    string // filled by joined queries
	Promotion       string // filled by joined queries
	IsChampion      bool   // filled by joined queries
	Championship    string // filled by joined queries
	TotalMentions   int
	PushScore       float64
	BurialScore     float64
	MomentumScore   float64
	PopularityScore int
	SentimentScore  float64
	Trend           string
	IsOnFire        bool
	Change24h       float64
	ChangeSource    string
	Confidence      string
	ComputedAt      time.Time
}

// MentionLog links a wrestler to a content item within a run.
type MentionLog struct {
	RunID       string
	WrestlerID  int64
	ItemID      int64
	Sentiment   float64
	MentionedAt time.Time
}

// MentionedItem is a logged mention joined with its content item.
type MentionedItem struct {
	Item      ContentItem
	Sentiment float64
}

// Stats contains aggregate database statistics.
type Stats struct {
	Wrestlers   int
	Champions   int
	NewsItems   int
	RedditItems int
	Runs        int
	Mentions    int
	LastRunAt   time.Time
}
