package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/TobiSchelling/wrestlepulse/internal/config"
	"github.com/TobiSchelling/wrestlepulse/internal/database"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func feedServer(t *testing.T, now time.Time) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Test</title>
<item><title>Roman Reigns wins championship in main event</title><link>https://news.example/1</link>
<description>A huge night for the Tribal Chief.</description><pubDate>%s</pubDate></item>
<item><title>Local bakery opens</title><link>https://news.example/2</link>
<description>Fresh bread daily.</description><pubDate>%s</pubDate></item>
</channel></rss>`, now.Add(-time.Hour).Format(time.RFC1123Z), now.Add(-2*time.Hour).Format(time.RFC1123Z))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(feedURL string) *config.Config {
	cfg := &config.Config{}
	cfg.Sources.Feeds = []config.Feed{{Name: "Test", URL: feedURL}}
	cfg.Sources.MaxItemsPerFeed = 10
	cfg.Scoring.Preset = "standard"
	cfg.Scoring.WindowHours = 72
	cfg.Output.RetentionDays = 30
	cfg.Roster = []config.RosterEntry{
		{Name: "Roman Reigns", Promotion: "WWE", Championship: "Undisputed WWE Championship"},
		{Name: "Jane Doe", Promotion: "Indie"},
	}
	return cfg
}

func TestSeedRoster(t *testing.T) {
	db := openTestDB(t)
	cfg := testConfig("")

	added, err := SeedRoster(db, cfg.Roster)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if added != 2 {
		t.Errorf("expected 2 added, got %d", added)
	}

	added, _ = SeedRoster(db, cfg.Roster)
	if added != 0 {
		t.Errorf("expected reseeding to add nothing, got %d", added)
	}

	roster, _ := db.GetAllWrestlers()
	if !roster[1].IsChampion || roster[1].ChampionshipTitle != "Undisputed WWE Championship" {
		t.Errorf("expected champion seeded, got %+v", roster[1])
	}
}

func TestRunFullPipeline(t *testing.T) {
	now := time.Now().UTC()
	db := openTestDB(t)
	cfg := testConfig(feedServer(t, now).URL)
	if _, err := SeedRoster(db, cfg.Roster); err != nil {
		t.Fatalf("seed: %v", err)
	}

	p, err := New(cfg, db, WithClock(clockwork.NewFakeClockAt(now)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	result := p.Run(context.Background())
	if err := result.Err(); err != nil {
		t.Fatalf("unexpected pipeline error: %v", err)
	}

	var names []string
	for _, s := range result.Steps {
		names = append(names, s.Name)
	}
	if got := strings.Join(names, ","); got != "Collect,Fetch,Analyze,Compose,Prune" {
		t.Errorf("unexpected steps: %s", got)
	}
	if result.RunID == "" {
		t.Fatal("expected a run id")
	}
	if len(result.Analyses) != 1 || result.Analyses[0].Name != "Roman Reigns" {
		t.Fatalf("expected only Roman Reigns analyzed, got %+v", result.Analyses)
	}

	run, err := db.GetRun(result.RunID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.ItemCount != 2 {
		t.Errorf("expected 2 items analyzed, got %d", run.ItemCount)
	}
	if !strings.Contains(run.DigestMarkdown, "Roman Reigns (champion)") {
		t.Errorf("expected digest to mention the champion, got:\n%s", run.DigestMarkdown)
	}
}

func TestRunKeepsGoingWhenASourceFails(t *testing.T) {
	now := time.Now().UTC()
	db := openTestDB(t)
	cfg := testConfig(feedServer(t, now).URL)
	cfg.Sources.Feeds = append(cfg.Sources.Feeds, config.Feed{Name: "Broken", URL: "http://127.0.0.1:1/feed"})
	SeedRoster(db, cfg.Roster)

	p, err := New(cfg, db, WithClock(clockwork.NewFakeClockAt(now)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	result := p.Run(context.Background())

	if result.Steps[0].Err == nil {
		t.Error("expected collect step to report the broken feed")
	}
	if result.RunID == "" {
		t.Error("expected analysis to run despite the broken feed")
	}
	if result.Err() == nil {
		t.Error("expected combined error")
	}
}

func TestAnalyzePrunesOldRuns(t *testing.T) {
	now := time.Now().UTC()
	db := openTestDB(t)
	cfg := testConfig("")
	cfg.Sources.Feeds = nil

	old := database.AnalysisRun{ID: "old", StartedAt: now.Add(-40 * 24 * time.Hour), FinishedAt: now.Add(-40 * 24 * time.Hour), ScoringPreset: "standard"}
	if err := db.SaveRun(old, nil, nil); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	p, _ := New(cfg, db, WithClock(clockwork.NewFakeClockAt(now)))

	dry := p.DryRun()
	last := dry.Steps[len(dry.Steps)-1]
	if last.Name != "Prune" || !strings.Contains(last.Summary, "Would prune 1 runs") {
		t.Errorf("unexpected dry-run prune step: %+v", last)
	}

	result := p.Analyze(context.Background())
	if err := result.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := db.GetRun("old"); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("expected old run pruned, got %v", err)
	}
	if _, err := db.GetRun(result.RunID); err != nil {
		t.Errorf("expected new run kept: %v", err)
	}
}

func TestDryRunWritesNothing(t *testing.T) {
	db := openTestDB(t)
	cfg := testConfig("http://127.0.0.1:1/feed")
	SeedRoster(db, cfg.Roster)

	p, _ := New(cfg, db)
	result := p.DryRun()

	if len(result.Steps) != 5 {
		t.Fatalf("expected 5 dry-run steps, got %d", len(result.Steps))
	}
	for _, s := range result.Steps {
		if !strings.HasPrefix(s.Summary, "[dry-run]") {
			t.Errorf("step %s summary %q lacks dry-run marker", s.Name, s.Summary)
		}
	}
	if !strings.Contains(result.Steps[0].Summary, "1 feeds and 0 subreddits for 2 roster wrestlers") {
		t.Errorf("unexpected collect summary: %s", result.Steps[0].Summary)
	}

	stats, _ := db.GetStats()
	if stats.Runs != 0 || stats.NewsItems != 0 {
		t.Errorf("expected no writes, got %+v", stats)
	}
}

func TestNewRejectsUnknownPreset(t *testing.T) {
	cfg := testConfig("")
	cfg.Scoring.Preset = "aggressive"
	if _, err := New(cfg, openTestDB(t)); err == nil {
		t.Error("expected error for unknown preset")
	}
}
