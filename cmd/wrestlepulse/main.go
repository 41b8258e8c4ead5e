package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TobiSchelling/wrestlepulse/internal/analyze"
	"github.com/TobiSchelling/wrestlepulse/internal/collect"
	"github.com/TobiSchelling/wrestlepulse/internal/config"
	"github.com/TobiSchelling/wrestlepulse/internal/database"
	"github.com/TobiSchelling/wrestlepulse/internal/logging"
	"github.com/TobiSchelling/wrestlepulse/internal/metrics"
	"github.com/TobiSchelling/wrestlepulse/internal/pipeline"
	"github.com/TobiSchelling/wrestlepulse/internal/scheduler"
	"github.com/TobiSchelling/wrestlepulse/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
	logger     = zap.NewNop()
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "wrestlepulse",
	Short:   "Wrestler push and burial tracker",
	Long:    "WrestlePulse collects wrestling news and Reddit chatter, spots roster mentions and scores who is being pushed or buried.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		if err := config.LoadDotEnv(); err != nil {
			return err
		}
		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		logger, err = logging.New(cfg.Logging.Level, verbose)
		if err != nil {
			return err
		}
		logger.Debug("config loaded", zap.String("path", path))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(rosterCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("wrestlepulse", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration to ~/.config/wrestlepulse/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to pick feeds and subreddits, then run 'wrestlepulse roster seed'.")
		return nil
	},
}

const recentRunsShown = 5

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		lastRun := "never"
		if !stats.LastRunAt.IsZero() {
			lastRun = humanize.Time(stats.LastRunAt)
		}

		t := newTable()
		t.AppendRows([]table.Row{
			{"Database", db.Path()},
			{"Wrestlers", fmt.Sprintf("%d (%d champions)", stats.Wrestlers, stats.Champions)},
			{"News items", humanize.Comma(int64(stats.NewsItems))},
			{"Reddit posts", humanize.Comma(int64(stats.RedditItems))},
			{"Analysis runs", stats.Runs},
			{"Logged mentions", humanize.Comma(int64(stats.Mentions))},
			{"Last analysis", lastRun},
		})
		t.Render()

		runs, err := db.GetRecentRuns(recentRunsShown)
		if err != nil {
			return fmt.Errorf("getting recent runs: %w", err)
		}
		if len(runs) == 0 {
			return nil
		}
		fmt.Println("\nRecent runs:")
		rt := newTable()
		rt.AppendHeader(table.Row{"Run", "Finished", "Preset", "Items", "Wrestlers"})
		for _, r := range runs {
			rt.AppendRow(table.Row{r.ID, humanize.Time(r.FinishedAt), r.ScoringPreset, humanize.Comma(int64(r.ItemCount)), r.WrestlerCount})
		}
		rt.Render()
		return nil
	},
}

// --- collect command ---

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect items from the configured feeds and subreddits",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, stop := signalContext()
		defer stop()

		fmt.Println("Collecting from sources...")
		result, err := collect.NewCollector(cfg, db, nil, logger).Collect(ctx)
		if result == nil {
			return err
		}

		fmt.Println("\nCollection complete:")
		fmt.Printf("  Total found: %d\n", result.TotalFound)
		fmt.Printf("  New items: %d\n", result.NewItems)
		fmt.Printf("  Duplicates skipped: %d\n", result.Duplicates)
		fmt.Printf("  Failed sources: %d\n", result.Failed)

		if len(result.Sources) > 0 {
			fmt.Println("\nNew items by source:")
			type kv struct {
				key string
				val int
			}
			var sorted []kv
			for k, v := range result.Sources {
				sorted = append(sorted, kv{k, v})
			}
			sort.Slice(sorted, func(i, j int) bool {
				if sorted[i].val != sorted[j].val {
					return sorted[i].val > sorted[j].val
				}
				return sorted[i].key < sorted[j].key
			})
			for _, s := range sorted {
				fmt.Printf("  %s: %d\n", s.key, s.val)
			}
		}
		if err != nil {
			fmt.Printf("\nSome sources failed:\n  %v\n", err)
		}
		return nil
	},
}

// --- analyze command ---

var (
	analyzePreview bool
	analyzeJSON    bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze stored items and record a run",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		pipe, err := pipeline.New(cfg, db, pipeline.WithLogger(logger))
		if err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()

		var analyses []analyze.WrestlerAnalysis
		if analyzePreview {
			res, err := pipe.Preview(ctx)
			if err != nil {
				return err
			}
			analyses = res.Analyses
		} else {
			result := pipe.Analyze(ctx)
			if err := result.Err(); err != nil {
				return err
			}
			analyses = result.Analyses
		}

		if analyzeJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(analyses)
		}
		printAnalyses(analyses)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzePreview, "preview", false, "Analyze without storing a run")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Print the analysis as JSON")
}

func printAnalyses(analyses []analyze.WrestlerAnalysis) {
	if len(analyses) == 0 {
		fmt.Println("No roster wrestler was mentioned in the analysis window.")
		return
	}

	t := newTable()
	t.AppendHeader(table.Row{"Wrestler", "Promotion", "Mentions", "Push", "Burial", "Momentum", "Change", "Trend", "Confidence", ""})
	for _, a := range analyses {
		name := a.Name
		if a.IsChampion {
			name += " (c)"
		}
		flag := ""
		if a.IsOnFire {
			flag = "on fire"
		}
		t.AppendRow(table.Row{
			name, a.Promotion, a.TotalMentions,
			fmt.Sprintf("%.0f", a.PushScore), fmt.Sprintf("%.0f", a.BurialScore),
			fmt.Sprintf("%.1f", a.MomentumScore), fmt.Sprintf("%+.2f", a.Change24h),
			a.Trend, a.Confidence, flag,
		})
	}
	t.Render()
}

// --- run command ---

var dryRun bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full refresh: collect -> fetch -> analyze -> compose -> prune",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		pipe, err := pipeline.New(cfg, db, pipeline.WithLogger(logger))
		if err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()

		var result *pipeline.Result
		if dryRun {
			result = pipe.DryRun()
		} else {
			result = pipe.Run(ctx)
		}
		printSteps(result)

		if !dryRun {
			fmt.Println("\nRefresh complete. Run 'wrestlepulse serve' to open the dashboard.")
		}
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be done without executing")
}

func printSteps(result *pipeline.Result) {
	for i, step := range result.Steps {
		fmt.Printf("\nStep %d/%d: %s\n", i+1, len(result.Steps), step.Name)
		if step.Summary != "" {
			fmt.Printf("  %s\n", step.Summary)
		}
		if step.Err != nil {
			fmt.Printf("  Error: %v\n", step.Err)
		}
	}
}

// --- serve and watch commands ---

var (
	servePort     int
	serveWatch    bool
	watchInterval time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, stop := signalContext()
		defer stop()

		reg := metrics.NewRegistry()
		opts := []server.Option{server.WithGatherer(reg), server.WithLogger(logger)}

		if serveWatch {
			sched, err := newScheduler(db, metrics.NewRecorder(reg))
			if err != nil {
				return err
			}
			if err := sched.Start(ctx); err != nil {
				return err
			}
			defer sched.Stop()
			opts = append(opts, server.WithRefresher(sched))
		}

		srv, err := server.New(db, opts...)
		if err != nil {
			return err
		}

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = servePort
		}
		fmt.Printf("Dashboard at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(ctx, srv, port, logger)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Refresh on the configured interval without serving the dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, stop := signalContext()
		defer stop()

		sched, err := newScheduler(db, nil)
		if err != nil {
			return err
		}
		if err := sched.Start(ctx); err != nil {
			return err
		}
		fmt.Printf("Refreshing every %s. Press Ctrl+C to stop.\n", sched.Status().Interval)

		<-ctx.Done()
		sched.Stop()
		st := sched.Status()
		fmt.Printf("Stopped after %d runs.\n", st.Runs)
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run the dashboard on (overrides server.port)")
	serveCmd.Flags().BoolVarP(&serveWatch, "watch", "w", false, "Refresh in the background on the configured interval")
	for _, c := range []*cobra.Command{serveCmd, watchCmd} {
		c.Flags().DurationVar(&watchInterval, "interval", 0, "Refresh interval (overrides schedule.interval)")
	}
}

// newScheduler wires the full pipeline into a scheduler job.
func newScheduler(db *database.DB, recorder *metrics.Recorder) (*scheduler.Scheduler, error) {
	pipe, err := pipeline.New(cfg, db, pipeline.WithRecorder(recorder), pipeline.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	interval := cfg.Schedule.Interval
	if watchInterval > 0 {
		interval = watchInterval
	}

	job := func(ctx context.Context) error {
		result := pipe.Run(ctx)
		for _, s := range result.Steps {
			if s.Err == nil {
				logger.Info("refresh step", zap.String("step", s.Name), zap.String("summary", s.Summary))
			}
		}
		return result.Err()
	}
	return scheduler.New(interval, job, nil, logger), nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	return t
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return database.Open(cfg.DBPath(), logger)
}

// notFound turns a database miss into a user-facing error.
func notFound(err error, what string, id int64) error {
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("%s %d not found", what, id)
	}
	return err
}
