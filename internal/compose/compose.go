// Package compose renders an analysis run as a markdown digest.
package compose

import (
	"fmt"
	"sort"
	"strings"

	"github.com/TobiSchelling/wrestlepulse/internal/analyze"
	"github.com/TobiSchelling/wrestlepulse/internal/database"
	"github.com/TobiSchelling/wrestlepulse/internal/score"
)

const sectionSize = 5

// Composer writes digests and stores them with their run.
type Composer struct {
	db *database.DB
}

// NewComposer creates a new digest composer.
func NewComposer(db *database.DB) *Composer {
	return &Composer{db: db}
}

// ComposeDigest renders the digest for a stored run and saves it.
func (c *Composer) ComposeDigest(res *analyze.RunResult) (string, error) {
	md := Digest(res.Run, res.Analyses)
	if err := c.db.UpdateRunDigest(res.Run.ID, md); err != nil {
		return "", fmt.Errorf("storing digest: %w", err)
	}
	return md, nil
}

// Digest renders the markdown for a run. The output depends only on its
// arguments.
func Digest(run database.AnalysisRun, analyses []analyze.WrestlerAnalysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Wrestling pulse, %s\n\n", run.FinishedAt.UTC().Format("Mon 2 Jan 2006 15:04 UTC"))
	fmt.Fprintf(&b, "%d items analyzed, %d wrestlers mentioned (%s scoring).\n", run.ItemCount, len(analyses), run.ScoringPreset)

	if len(analyses) == 0 {
		b.WriteString("\nNo roster wrestler was mentioned in this window.\n")
		return b.String()
	}

	byID := make(map[int64]analyze.WrestlerAnalysis, len(analyses))
	metrics := make([]score.Metrics, 0, len(analyses))
	for _, a := range analyses {
		byID[a.WrestlerID] = a
		metrics = append(metrics, a.Metrics)
	}

	score.SortByMomentum(metrics)
	var leaders []analyze.WrestlerAnalysis
	for _, m := range metrics {
		leaders = append(leaders, byID[m.WrestlerID])
	}
	writeSection(&b, "Momentum leaders", take(leaders, sectionSize), func(a analyze.WrestlerAnalysis) string {
		return fmt.Sprintf("momentum %.1f, %s", a.MomentumScore, changeLabel(a))
	})

	pushes := filter(analyses, func(a analyze.WrestlerAnalysis) bool { return a.Trend == score.TrendPush })
	sort.SliceStable(pushes, func(i, j int) bool { return pushes[i].PushScore > pushes[j].PushScore })
	writeSection(&b, "Getting a push", take(pushes, sectionSize), func(a analyze.WrestlerAnalysis) string {
		return fmt.Sprintf("push %.0f, sentiment %.2f", a.PushScore, a.SentimentScore)
	})

	burials := filter(analyses, func(a analyze.WrestlerAnalysis) bool { return a.Trend == score.TrendBurial })
	sort.SliceStable(burials, func(i, j int) bool { return burials[i].BurialScore > burials[j].BurialScore })
	writeSection(&b, "Being buried", take(burials, sectionSize), func(a analyze.WrestlerAnalysis) string {
		return fmt.Sprintf("burial %.0f, sentiment %.2f", a.BurialScore, a.SentimentScore)
	})

	onFire := filter(analyses, func(a analyze.WrestlerAnalysis) bool { return a.IsOnFire })
	writeSection(&b, "On fire", onFire, func(a analyze.WrestlerAnalysis) string {
		return fmt.Sprintf("%d mentions, push %.0f", a.TotalMentions, a.PushScore)
	})

	// analyses arrive ordered by mentions.
	writeSection(&b, "Most discussed", take(analyses, sectionSize), func(a analyze.WrestlerAnalysis) string {
		line := fmt.Sprintf("%d mentions, %s confidence", a.TotalMentions, a.Confidence)
		if len(a.RelatedNews) > 0 {
			top := a.RelatedNews[0]
			line += fmt.Sprintf(", latest: [%s](%s)", escapeLinkText(top.Title), top.Link)
		}
		return line
	})

	return b.String()
}

func writeSection(b *strings.Builder, title string, rows []analyze.WrestlerAnalysis, detail func(analyze.WrestlerAnalysis) string) {
	if len(rows) == 0 {
		return
	}
	fmt.Fprintf(b, "\n## %s\n\n", title)
	for _, a := range rows {
		name := a.Name
		if a.IsChampion {
			name += " (champion)"
		}
		fmt.Fprintf(b, "- **%s**", name)
		if a.Promotion != "" {
			fmt.Fprintf(b, " [%s]", a.Promotion)
		}
		fmt.Fprintf(b, ": %s\n", detail(a))
	}
}

func changeLabel(a analyze.WrestlerAnalysis) string {
	switch a.ChangeSource {
	case score.ChangeFromSnapshot:
		return fmt.Sprintf("%+.2f vs. yesterday", a.Change24h)
	case score.ChangeFromTrend:
		return fmt.Sprintf("%+.2f (trend estimate)", a.Change24h)
	default:
		return "no change data"
	}
}

func filter(in []analyze.WrestlerAnalysis, keep func(analyze.WrestlerAnalysis) bool) []analyze.WrestlerAnalysis {
	var out []analyze.WrestlerAnalysis
	for _, a := range in {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out
}

func take(in []analyze.WrestlerAnalysis, n int) []analyze.WrestlerAnalysis {
	if len(in) > n {
		return in[:n]
	}
	return in
}

func escapeLinkText(s string) string {
	return strings.NewReplacer("[", "\\[", "]", "\\]").Replace(s)
}
