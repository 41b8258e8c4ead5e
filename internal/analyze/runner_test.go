package analyze

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/wrestlepulse/internal/database"
	"github.com/TobiSchelling/wrestlepulse/internal/matcher"
	"github.com/TobiSchelling/wrestlepulse/internal/metrics"
	"github.com/TobiSchelling/wrestlepulse/internal/score"
	"github.com/TobiSchelling/wrestlepulse/internal/sentiment"
)

func setupRunner(t *testing.T) (*Runner, *database.DB, *clockwork.FakeClock, *metrics.Recorder) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	clock := clockwork.NewFakeClockAt(fixedNow)
	a := New(matcher.New(matcher.DefaultConfig()), sentiment.NewAnalyzer(sentiment.DefaultConfig()), WithClock(clock))
	rec := metrics.NewRecorder(prometheus.NewRegistry())
	return NewRunner(db, a, 72*time.Hour, "", rec, nil), db, clock, rec
}

func seed(t *testing.T, db *database.DB) (roman, jane int64) {
	t.Helper()
	roman, err := db.InsertWrestler(database.Wrestler{Name: "Roman Reigns", Promotion: "WWE"})
	require.NoError(t, err)
	jane, err = db.InsertWrestler(database.Wrestler{Name: "Jane Doe", Promotion: "Indie"})
	require.NoError(t, err)

	_, err = db.InsertItem(database.ContentItem{
		Link: "https://news.example/roman", Title: "Roman Reigns wins championship in main event",
		Source: "X", Kind: database.KindNews, PublishedAt: fixedNow.Add(-time.Hour), CollectedAt: fixedNow,
	})
	require.NoError(t, err)
	_, err = db.InsertItem(database.ContentItem{
		Link: "https://news.example/old", Title: "Roman Reigns loses",
		Source: "X", Kind: database.KindNews, PublishedAt: fixedNow.Add(-10 * 24 * time.Hour), CollectedAt: fixedNow,
	})
	require.NoError(t, err)
	return roman, jane
}

func TestRunnerPersistsRun(t *testing.T) {
	r, db, _, rec := setupRunner(t)
	roman, _ := seed(t, db)

	res, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, res.Run.ID)
	assert.Equal(t, score.PresetStandard, res.Run.ScoringPreset)
	assert.Equal(t, 1, res.Run.ItemCount, "items outside the window are ignored")
	require.Len(t, res.Analyses, 1)
	assert.Equal(t, roman, res.Analyses[0].WrestlerID)
	assert.Equal(t, score.ChangeFromTrend, res.Analyses[0].ChangeSource)

	latest, err := db.GetLatestRun()
	require.NoError(t, err)
	assert.Equal(t, res.Run.ID, latest.ID)

	stored, err := db.GetRunMetrics(res.Run.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "push", stored[0].Trend)
	assert.Equal(t, "Roman Reigns", stored[0].WrestlerName)

	mentions, err := db.GetRunMentions(res.Run.ID, roman)
	require.NoError(t, err)
	require.Len(t, mentions, 1)
	assert.Equal(t, "https://news.example/roman", mentions[0].Item.Link)

	assert.Equal(t, 1.0, testutil.ToFloat64(rec.AnalysisRuns.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.WrestlersAnalyzed))
}

func TestRunnerUsesSnapshotBaseline(t *testing.T) {
	r, db, clock, _ := setupRunner(t)
	seed(t, db)

	first, err := r.Run(context.Background())
	require.NoError(t, err)

	clock.Advance(25 * time.Hour)
	second, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, second.Analyses, 1)

	a := second.Analyses[0]
	assert.Equal(t, score.ChangeFromSnapshot, a.ChangeSource)
	assert.InDelta(t, a.MomentumScore-first.Analyses[0].MomentumScore, a.Change24h, 0.01)
}

func TestRunnerRecentSnapshotIsNotBaseline(t *testing.T) {
	r, db, clock, _ := setupRunner(t)
	seed(t, db)

	_, err := r.Run(context.Background())
	require.NoError(t, err)

	clock.Advance(time.Hour)
	second, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, score.ChangeFromTrend, second.Analyses[0].ChangeSource)
}

func TestPreviewWritesNothing(t *testing.T) {
	r, db, _, _ := setupRunner(t)
	seed(t, db)

	res, err := r.Preview(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Analyses, 1)

	_, err = db.GetLatestRun()
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestRunnerCanceledContext(t *testing.T) {
	r, db, _, rec := setupRunner(t)
	seed(t, db)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.AnalysisRuns.WithLabelValues("error")))
}

func TestFromDBMetricCapsRelated(t *testing.T) {
	var related []database.MentionedItem
	for i := 0; i < DefaultRelatedLimit+2; i++ {
		related = append(related, database.MentionedItem{Item: database.ContentItem{ID: int64(i + 1), Title: "t"}})
	}
	a := FromDBMetric(database.WrestlerMetric{
		WrestlerID: 3, WrestlerName: "Gunther", Trend: "burial", ChangeSource: "snapshot", Confidence: "high",
		IsChampion: true, Championship: "World Heavyweight Championship",
	}, related)

	assert.Equal(t, int64(3), a.WrestlerID)
	assert.Equal(t, "Gunther", a.Name)
	assert.Equal(t, "World Heavyweight Championship", a.ChampionshipTitle)
	assert.Equal(t, score.TrendBurial, a.Trend)
	assert.Equal(t, score.ChangeFromSnapshot, a.ChangeSource)
	assert.Equal(t, score.ConfidenceHigh, a.Confidence)
	require.Len(t, a.RelatedNews, DefaultRelatedLimit)
	assert.Equal(t, int64(1), a.RelatedNews[0].ID)

	empty := FromDBMetric(database.WrestlerMetric{}, nil)
	assert.NotNil(t, empty.RelatedNews)
}
