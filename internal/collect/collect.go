package collect

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/TobiSchelling/wrestlepulse/internal/config"
	"github.com/TobiSchelling/wrestlepulse/internal/database"
	"github.com/TobiSchelling/wrestlepulse/internal/metrics"
)

const maxConcurrentSources = 4

// Result holds the results of a collection run.
type Result struct {
	TotalFound int
	NewItems   int
	Duplicates int
	Failed     int
	Sources    map[string]int
}

// Collector gathers items from RSS feeds and subreddits.
type Collector struct {
	db         *database.DB
	feedParser *FeedParser
	feeds      []FeedConfig
	reddit     *RedditClient
	subreddits []string
	window     time.Duration
	recorder   *metrics.Recorder
	logger     *zap.Logger
}

// NewCollector creates a new collector from the sources section of cfg.
func NewCollector(cfg *config.Config, db *database.DB, recorder *metrics.Recorder, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		db:       db,
		window:   cfg.Window(),
		recorder: recorder,
		logger:   logger,
	}

	if len(cfg.Sources.Feeds) > 0 {
		c.feedParser = NewFeedParser(cfg.Sources.MaxItemsPerFeed, cfg.Sources.Reddit.UserAgent)
		for _, f := range cfg.Sources.Feeds {
			c.feeds = append(c.feeds, FeedConfig{URL: f.URL, Name: f.Name})
		}
	}

	rc := cfg.Sources.Reddit
	if rc.Enabled && len(rc.Subreddits) > 0 {
		c.reddit = NewRedditClient(RedditConfig{
			BaseURL:           rc.BaseURL,
			Sort:              rc.Sort,
			Limit:             rc.Limit,
			UserAgent:         rc.UserAgent,
			RequestsPerMinute: rc.RequestsPerMinute,
			Retries:           rc.Retries,
		}, logger)
		c.subreddits = rc.Subreddits
	}

	return c
}

type fetched struct {
	label string
	kind  string
	items []database.ContentItem
	err   error
}

// Collect fetches every source concurrently and stores new items. A failing
// source does not stop the others; their errors are returned combined
// alongside the result.
func (c *Collector) Collect(ctx context.Context) (*Result, error) {
	cutoff := time.Now().Add(-c.window)

	var jobs []func(context.Context) fetched
	for _, fc := range c.feeds {
		jobs = append(jobs, func(ctx context.Context) fetched {
			items, err := c.feedParser.Parse(ctx, fc, cutoff)
			return fetched{label: fc.URL, kind: database.KindNews, items: items, err: err}
		})
	}
	for _, sub := range c.subreddits {
		jobs = append(jobs, func(ctx context.Context) fetched {
			items, err := c.reddit.Listing(ctx, sub, cutoff)
			return fetched{label: "r/" + sub, kind: database.KindReddit, items: items, err: err}
		})
	}

	results := make([]fetched, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentSources)
	for i, job := range jobs {
		g.Go(func() error {
			results[i] = job(gctx)
			return nil
		})
	}
	_ = g.Wait()

	r := &Result{Sources: make(map[string]int)}
	var errs error
	for _, f := range results {
		if f.err != nil {
			r.Failed++
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", f.label, f.err))
			c.recorder.ObserveCollect(f.kind, 0, f.err)
			c.logger.Warn("source failed", zap.String("source", f.label), zap.Error(f.err))
			continue
		}

		r.TotalFound += len(f.items)
		added := 0
		for _, it := range f.items {
			id, err := c.db.InsertItem(it)
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			if id > 0 {
				added++
				r.Sources[it.Source]++
			} else {
				r.Duplicates++
			}
		}
		r.NewItems += added
		c.recorder.ObserveCollect(f.kind, added, nil)
		c.logger.Debug("source collected", zap.String("source", f.label), zap.Int("found", len(f.items)), zap.Int("new", added))
	}

	c.logger.Info("collection complete",
		zap.Int("found", r.TotalFound),
		zap.Int("new", r.NewItems),
		zap.Int("duplicates", r.Duplicates),
		zap.Int("failed_sources", r.Failed),
	)
	return r, errs
}
