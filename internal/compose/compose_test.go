package compose

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/TobiSchelling/wrestlepulse/internal/analyze"
	"github.com/TobiSchelling/wrestlepulse/internal/database"
	"github.com/TobiSchelling/wrestlepulse/internal/score"
)

var finished = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleAnalyses() []analyze.WrestlerAnalysis {
	return []analyze.WrestlerAnalysis{
		{
			Metrics: score.Metrics{WrestlerID: 1, TotalMentions: 4, PushScore: 80, MomentumScore: 86,
				SentimentScore: 0.9, Trend: score.TrendPush, IsOnFire: true, Change24h: 3.5,
				ChangeSource: score.ChangeFromSnapshot, Confidence: score.ConfidenceHigh},
			Name: "Roman Reigns", Promotion: "WWE", IsChampion: true,
			RelatedNews: []analyze.ContentItem{{Title: "Reigns [exclusive]", Link: "https://news.example/1"}},
		},
		{
			Metrics: score.Metrics{WrestlerID: 2, TotalMentions: 2, BurialScore: 60, MomentumScore: -59,
				SentimentScore: 0.2, Trend: score.TrendBurial, Change24h: -6,
				ChangeSource: score.ChangeFromTrend, Confidence: score.ConfidenceMedium},
			Name: "Jinder Mahal", Promotion: "WWE",
		},
	}
}

func TestDigestSections(t *testing.T) {
	run := database.AnalysisRun{ID: "r1", FinishedAt: finished, ItemCount: 12, ScoringPreset: "standard"}
	md := Digest(run, sampleAnalyses())

	for _, want := range []string{
		"# Wrestling pulse, Sun 1 Mar 2026 12:00 UTC",
		"12 items analyzed, 2 wrestlers mentioned (standard scoring).",
		"## Momentum leaders",
		"- **Roman Reigns (champion)** [WWE]: momentum 86.0, +3.50 vs. yesterday",
		"## Getting a push",
		"## Being buried",
		"- **Jinder Mahal** [WWE]: burial 60, sentiment 0.20",
		"## On fire",
		"## Most discussed",
		`latest: [Reigns \[exclusive\]](https://news.example/1)`,
	} {
		if !strings.Contains(md, want) {
			t.Errorf("digest missing %q\n%s", want, md)
		}
	}

	if strings.Index(md, "Roman Reigns (champion)** [WWE]: momentum") > strings.Index(md, "Jinder Mahal** [WWE]: momentum") {
		t.Error("expected momentum leaders ordered by momentum")
	}
}

func TestDigestIsDeterministic(t *testing.T) {
	run := database.AnalysisRun{FinishedAt: finished}
	if Digest(run, sampleAnalyses()) != Digest(run, sampleAnalyses()) {
		t.Error("expected identical output for identical input")
	}
}

func TestDigestEmpty(t *testing.T) {
	md := Digest(database.AnalysisRun{FinishedAt: finished, ItemCount: 3, ScoringPreset: "standard"}, nil)
	if !strings.Contains(md, "No roster wrestler was mentioned") {
		t.Errorf("expected empty notice, got:\n%s", md)
	}
	if strings.Contains(md, "##") {
		t.Error("expected no sections for an empty run")
	}
}

func TestComposeDigestStoresMarkdown(t *testing.T) {
	db := openTestDB(t)
	run := database.AnalysisRun{ID: "r1", StartedAt: finished, FinishedAt: finished, ScoringPreset: "standard"}
	if err := db.SaveRun(run, nil, nil); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	md, err := NewComposer(db).ComposeDigest(&analyze.RunResult{Run: run})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, _ := db.GetRun("r1")
	if stored.DigestMarkdown != md {
		t.Errorf("stored digest differs from returned digest")
	}
}

func TestComposeDigestUnknownRun(t *testing.T) {
	db := openTestDB(t)
	_, err := NewComposer(db).ComposeDigest(&analyze.RunResult{Run: database.AnalysisRun{ID: "missing"}})
	if err == nil {
		t.Error("expected error for unknown run")
	}
}
