package analyze

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/TobiSchelling/wrestlepulse/internal/database"
	"github.com/TobiSchelling/wrestlepulse/internal/metrics"
	"github.com/TobiSchelling/wrestlepulse/internal/score"
)

// BaselineAge is how old a snapshot must be to serve as the Change24h baseline.
const BaselineAge = 24 * time.Hour

// RunResult is a persisted analysis pass.
type RunResult struct {
	Run      database.AnalysisRun
	Analyses []WrestlerAnalysis
	Mentions int
}

// Runner loads the roster and recent items from the database, analyzes them
// and stores the run.
type Runner struct {
	db       *database.DB
	analyzer *Analyzer
	window   time.Duration
	preset   string
	recorder *metrics.Recorder
	logger   *zap.Logger
}

// NewRunner creates a Runner. window bounds which items are analyzed; preset
// is only recorded with the run.
func NewRunner(db *database.DB, analyzer *Analyzer, window time.Duration, preset string, recorder *metrics.Recorder, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if preset == "" {
		preset = score.PresetStandard
	}
	return &Runner{db: db, analyzer: analyzer, window: window, preset: preset, recorder: recorder, logger: logger}
}

// Run performs one analysis pass and persists it.
func (r *Runner) Run(ctx context.Context) (*RunResult, error) {
	res, err := r.run(ctx)
	if err != nil {
		r.recorder.ObserveRun(0, 0, 0, err)
		return nil, err
	}
	r.recorder.ObserveRun(res.Run.FinishedAt.Sub(res.Run.StartedAt), len(res.Analyses), res.Mentions, nil)
	r.logger.Info("analysis run stored",
		zap.String("run_id", res.Run.ID),
		zap.Int("items", res.Run.ItemCount),
		zap.Int("wrestlers", len(res.Analyses)),
		zap.Int("mentions", res.Mentions),
	)
	return res, nil
}

// Preview analyzes without writing anything.
func (r *Runner) Preview(ctx context.Context) (*RunResult, error) {
	return r.analyze(ctx)
}

func (r *Runner) run(ctx context.Context) (*RunResult, error) {
	res, err := r.analyze(ctx)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res.Run.ID = uuid.NewString()
	metricRows := make([]database.WrestlerMetric, 0, len(res.Analyses))
	var mentionRows []database.MentionLog
	for _, a := range res.Analyses {
		metricRows = append(metricRows, toMetricRow(a, res.Run.FinishedAt))
		for _, m := range a.Mentions {
			mentionRows = append(mentionRows, database.MentionLog{
				WrestlerID:  m.WrestlerID,
				ItemID:      m.Item.ID,
				Sentiment:   m.Sentiment,
				MentionedAt: m.Timestamp,
			})
		}
	}

	if err := r.db.SaveRun(res.Run, metricRows, mentionRows); err != nil {
		return nil, fmt.Errorf("saving run: %w", err)
	}
	return res, nil
}

func (r *Runner) analyze(ctx context.Context) (*RunResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clock := r.analyzer.Clock()
	started := clock.Now().UTC()

	roster, err := r.db.GetAllWrestlers()
	if err != nil {
		return nil, fmt.Errorf("loading roster: %w", err)
	}
	rows, err := r.db.GetItemsSince(started.Add(-r.window))
	if err != nil {
		return nil, fmt.Errorf("loading items: %w", err)
	}
	snapshots, err := r.db.GetBaselines(started.Add(-BaselineAge))
	if err != nil {
		return nil, fmt.Errorf("loading baselines: %w", err)
	}

	baselines := make(map[int64]score.Baseline, len(snapshots))
	for id, s := range snapshots {
		baselines[id] = score.Baseline{Momentum: s.MomentumScore, RecordedAt: s.ComputedAt}
	}

	analyses := r.analyzer.Analyze(FromDBWrestlers(roster), FromDBItems(rows), baselines)

	mentions := 0
	for _, a := range analyses {
		mentions += len(a.Mentions)
	}

	r.logger.Debug("analysis complete",
		zap.Int("roster", len(roster)),
		zap.Int("items", len(rows)),
		zap.Int("baselines", len(baselines)),
	)

	return &RunResult{
		Run: database.AnalysisRun{
			StartedAt:     started,
			FinishedAt:    clock.Now().UTC(),
			ScoringPreset: r.preset,
			ItemCount:     len(rows),
			WrestlerCount: len(analyses),
		},
		Analyses: analyses,
		Mentions: mentions,
	}, nil
}

func toMetricRow(a WrestlerAnalysis, at time.Time) database.WrestlerMetric {
	return database.WrestlerMetric{
		WrestlerID:      a.WrestlerID,
		TotalMentions:   a.TotalMentions,
		PushScore:       a.PushScore,
		BurialScore:     a.BurialScore,
		MomentumScore:   a.MomentumScore,
		PopularityScore: a.PopularityScore,
		SentimentScore:  a.SentimentScore,
		Trend:           string(a.Trend),
		IsOnFire:        a.IsOnFire,
		Change24h:       a.Change24h,
		ChangeSource:    string(a.ChangeSource),
		Confidence:      string(a.Confidence),
		ComputedAt:      at,
	}
}

// FromDBWrestlers converts stored roster rows.
func FromDBWrestlers(rows []database.Wrestler) []Wrestler {
	out := make([]Wrestler, len(rows))
	for i, w := range rows {
		out[i] = Wrestler{
			ID:                w.ID,
			Name:              w.Name,
			Promotion:         w.Promotion,
			IsChampion:        w.IsChampion,
			ChampionshipTitle: w.ChampionshipTitle,
		}
	}
	return out
}

// FromDBItems converts stored content rows.
func FromDBItems(rows []database.ContentItem) []ContentItem {
	out := make([]ContentItem, len(rows))
	for i, it := range rows {
		out[i] = FromDBItem(it)
	}
	return out
}

// FromDBItem converts one stored content row.
func FromDBItem(it database.ContentItem) ContentItem {
	return ContentItem{
		ID:          it.ID,
		Title:       it.Title,
		Snippet:     it.Snippet,
		Link:        it.Link,
		PublishedAt: it.PublishedAt,
		Source:      it.Source,
		Kind:        it.Kind,
		Engagement:  it.Engagement,
	}
}

// FromDBMetric rebuilds an analysis from a stored snapshot. related should be
// newest first; it is capped at DefaultRelatedLimit.
func FromDBMetric(m database.WrestlerMetric, related []database.MentionedItem) WrestlerAnalysis {
	a := WrestlerAnalysis{
		Metrics: score.Metrics{
			WrestlerID:      m.WrestlerID,
			TotalMentions:   m.TotalMentions,
			PushScore:       m.PushScore,
			BurialScore:     m.BurialScore,
			MomentumScore:   m.MomentumScore,
			PopularityScore: m.PopularityScore,
			SentimentScore:  m.SentimentScore,
			Trend:           score.Trend(m.Trend),
			IsOnFire:        m.IsOnFire,
			Change24h:       m.Change24h,
			ChangeSource:    score.ChangeSource(m.ChangeSource),
			Confidence:      score.Confidence(m.Confidence),
		},
		Name:              m.WrestlerName,
		Promotion:         m.Promotion,
		IsChampion:        m.IsChampion,
		ChampionshipTitle: m.Championship,
		RelatedNews:       []ContentItem{},
	}
	for i, mi := range related {
		if i == DefaultRelatedLimit {
			break
		}
		a.RelatedNews = append(a.RelatedNews, FromDBItem(mi.Item))
	}
	return a
}
