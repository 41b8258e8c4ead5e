package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/TobiSchelling/wrestlepulse/internal/analyze"
	"github.com/TobiSchelling/wrestlepulse/internal/collect"
	"github.com/TobiSchelling/wrestlepulse/internal/compose"
	"github.com/TobiSchelling/wrestlepulse/internal/config"
	"github.com/TobiSchelling/wrestlepulse/internal/database"
	"github.com/TobiSchelling/wrestlepulse/internal/fetch"
	"github.com/TobiSchelling/wrestlepulse/internal/matcher"
	"github.com/TobiSchelling/wrestlepulse/internal/metrics"
	"github.com/TobiSchelling/wrestlepulse/internal/sentiment"
)

const fetchTimeout = 15 * time.Second

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a full pipeline run.
type Result struct {
	RunID    string
	Analyses []analyze.WrestlerAnalysis
	Steps    []StepResult
}

// Err combines the errors of every failed step.
func (r *Result) Err() error {
	var err error
	for _, s := range r.Steps {
		if s.Err != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", s.Name, s.Err))
		}
	}
	return err
}

// Pipeline refreshes the dashboard: collect, fetch, analyze, compose, prune.
type Pipeline struct {
	cfg       *config.Config
	db        *database.DB
	collector *collect.Collector
	fetcher   *fetch.ContentFetcher
	runner    *analyze.Runner
	composer  *compose.Composer
	clock     clockwork.Clock
	logger    *zap.Logger
}

type options struct {
	recorder *metrics.Recorder
	clock    clockwork.Clock
	logger   *zap.Logger
}

// Option configures a Pipeline.
type Option func(*options)

// WithRecorder reports collection and analysis metrics to r.
func WithRecorder(r *metrics.Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// WithClock replaces the real clock for analysis and pruning.
func WithClock(c clockwork.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New creates a new pipeline.
func New(cfg *config.Config, db *database.DB, opts ...Option) (*Pipeline, error) {
	o := options{clock: clockwork.NewRealClock(), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	constants, err := cfg.Constants()
	if err != nil {
		return nil, err
	}
	analyzer := analyze.New(
		matcher.New(cfg.MatcherConfig()),
		sentiment.NewAnalyzer(cfg.SentimentConfig()),
		analyze.WithConstants(constants),
		analyze.WithClock(o.clock),
		analyze.WithRelatedLimit(cfg.Scoring.RelatedLimit),
	)

	return &Pipeline{
		cfg:       cfg,
		db:        db,
		collector: collect.NewCollector(cfg, db, o.recorder, o.logger),
		fetcher:   fetch.NewContentFetcher(db, fetchTimeout, cfg.Sources.Reddit.UserAgent, o.logger),
		runner:    analyze.NewRunner(db, analyzer, cfg.Window(), cfg.Scoring.Preset, o.recorder, o.logger),
		composer:  compose.NewComposer(db),
		clock:     o.clock,
		logger:    o.logger,
	}, nil
}

// Run executes the full refresh. A source that fails to collect does not
// stop the run; a failed analysis does.
func (p *Pipeline) Run(ctx context.Context) *Result {
	r := &Result{}

	step := p.runCollect(ctx)
	r.Steps = append(r.Steps, step)
	if ctx.Err() != nil {
		return r
	}

	step = p.runFetch(ctx)
	r.Steps = append(r.Steps, step)

	analyzed := p.Analyze(ctx)
	r.RunID = analyzed.RunID
	r.Analyses = analyzed.Analyses
	r.Steps = append(r.Steps, analyzed.Steps...)
	return r
}

// Analyze runs the analysis, composes its digest and prunes old runs,
// without collecting anything new.
func (p *Pipeline) Analyze(ctx context.Context) *Result {
	r := &Result{}

	p.logger.Info("step", zap.String("name", "analyze"))
	res, err := p.runner.Run(ctx)
	if err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Analyze", Err: err})
		return r
	}
	r.RunID = res.Run.ID
	r.Analyses = res.Analyses
	r.Steps = append(r.Steps, StepResult{
		Name:    "Analyze",
		Summary: fmt.Sprintf("%d items, %d wrestlers mentioned, %d mentions", res.Run.ItemCount, len(res.Analyses), res.Mentions),
	})

	r.Steps = append(r.Steps, p.runCompose(res))
	r.Steps = append(r.Steps, p.runPrune())
	return r
}

// Preview analyzes the stored items without writing a run.
func (p *Pipeline) Preview(ctx context.Context) (*analyze.RunResult, error) {
	return p.runner.Preview(ctx)
}

// DryRun shows what would be done without executing.
func (p *Pipeline) DryRun() *Result {
	r := &Result{}
	now := p.clock.Now()

	roster, _ := p.db.GetAllWrestlers()
	r.Steps = append(r.Steps, StepResult{
		Name: "Collect",
		Summary: fmt.Sprintf("[dry-run] %d feeds and %d subreddits for %d roster wrestlers",
			len(p.cfg.Sources.Feeds), p.subredditCount(), len(roster)),
	})

	needing, _ := p.db.GetItemsNeedingFetch()
	r.Steps = append(r.Steps, StepResult{
		Name:    "Fetch",
		Summary: fmt.Sprintf("[dry-run] %d items need content fetching", len(needing)),
	})

	inWindow, _ := p.db.CountItemsSince(now.Add(-p.cfg.Window()))
	r.Steps = append(r.Steps, StepResult{
		Name:    "Analyze",
		Summary: fmt.Sprintf("[dry-run] %d items in the last %d hours", inWindow, p.cfg.Scoring.WindowHours),
	})

	latest, err := p.db.GetLatestRun()
	switch {
	case errors.Is(err, database.ErrNotFound):
		r.Steps = append(r.Steps, StepResult{Name: "Compose", Summary: "[dry-run] No previous digest"})
	case err == nil:
		r.Steps = append(r.Steps, StepResult{
			Name:    "Compose",
			Summary: fmt.Sprintf("[dry-run] Previous digest from %s", latest.FinishedAt.Format(time.RFC3339)),
		})
	}

	if retention := p.cfg.Retention(); retention > 0 {
		n, _ := p.db.CountRunsBefore(now.Add(-retention))
		r.Steps = append(r.Steps, StepResult{
			Name:    "Prune",
			Summary: fmt.Sprintf("[dry-run] Would prune %d runs older than %d days", n, p.cfg.Output.RetentionDays),
		})
	}

	return r
}

func (p *Pipeline) subredditCount() int {
	if !p.cfg.Sources.Reddit.Enabled {
		return 0
	}
	return len(p.cfg.Sources.Reddit.Subreddits)
}

func (p *Pipeline) runCollect(ctx context.Context) StepResult {
	p.logger.Info("step", zap.String("name", "collect"))
	result, err := p.collector.Collect(ctx)
	if result == nil {
		return StepResult{Name: "Collect", Err: err}
	}
	return StepResult{
		Name:    "Collect",
		Summary: fmt.Sprintf("Found %d new items (%d total, %d duplicates, %d sources failed)", result.NewItems, result.TotalFound, result.Duplicates, result.Failed),
		Err:     err,
	}
}

func (p *Pipeline) runFetch(ctx context.Context) StepResult {
	p.logger.Info("step", zap.String("name", "fetch"))
	result, err := p.fetcher.FetchMissingSnippets(ctx)
	if err != nil {
		return StepResult{Name: "Fetch", Err: err}
	}
	return StepResult{
		Name:    "Fetch",
		Summary: fmt.Sprintf("Fetched %d items, %d failed, %d skipped", result.Fetched, result.Failed, result.Skipped),
	}
}

func (p *Pipeline) runCompose(res *analyze.RunResult) StepResult {
	p.logger.Info("step", zap.String("name", "compose"))
	md, err := p.composer.ComposeDigest(res)
	if err != nil {
		return StepResult{Name: "Compose", Err: err}
	}
	return StepResult{
		Name:    "Compose",
		Summary: fmt.Sprintf("Digest composed (%d bytes)", len(md)),
	}
}

func (p *Pipeline) runPrune() StepResult {
	retention := p.cfg.Retention()
	if retention <= 0 {
		return StepResult{Name: "Prune", Summary: "Retention disabled"}
	}
	n, err := p.db.PruneRunsBefore(p.clock.Now().Add(-retention))
	if err != nil {
		return StepResult{Name: "Prune", Err: err}
	}
	return StepResult{
		Name:    "Prune",
		Summary: fmt.Sprintf("Pruned %d runs older than %d days", n, p.cfg.Output.RetentionDays),
	}
}

// SeedRoster inserts roster entries that are not stored yet and returns how
// many were added.
func SeedRoster(db *database.DB, roster []config.RosterEntry) (int, error) {
	added := 0
	for _, e := range roster {
		id, err := db.InsertWrestler(database.Wrestler{
			Name:              e.Name,
			Promotion:         e.Promotion,
			IsChampion:        e.Championship != "",
			ChampionshipTitle: e.Championship,
		})
		if err != nil {
			return added, fmt.Errorf("seeding %q: %w", e.Name, err)
		}
		if id != 0 {
			added++
		}
	}
	return added, nil
}
