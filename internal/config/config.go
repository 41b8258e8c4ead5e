package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/TobiSchelling/wrestlepulse/internal/matcher"
	"github.com/TobiSchelling/wrestlepulse/internal/score"
	"github.com/TobiSchelling/wrestlepulse/internal/sentiment"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

// EnvPrefix prefixes every environment override.
const EnvPrefix = "WRESTLEPULSE"

type Config struct {
	Sources   Sources          `yaml:"sources"`
	Roster    []RosterEntry    `yaml:"roster"`
	Matching  matcher.Config   `yaml:"matching"`
	Sentiment sentiment.Config `yaml:"sentiment"`
	Scoring   Scoring          `yaml:"scoring"`
	Schedule  Schedule         `yaml:"schedule"`
	Output    Output           `yaml:"output"`
	Server    Server           `yaml:"server"`
	Logging   Logging          `yaml:"logging"`
}

type Sources struct {
	Feeds           []Feed `yaml:"feeds"`
	MaxItemsPerFeed int    `yaml:"max_items_per_feed"`
	Reddit          Reddit `yaml:"reddit"`
}

type Feed struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

type Reddit struct {
	Enabled           bool     `yaml:"enabled"`
	BaseURL           string   `yaml:"base_url"`
	Subreddits        []string `yaml:"subreddits"`
	Sort              string   `yaml:"sort"`
	Limit             int      `yaml:"limit"`
	UserAgent         string   `yaml:"user_agent"`
	RequestsPerMinute int      `yaml:"requests_per_minute"`
	Retries           int      `yaml:"retries"`
}

// RosterEntry seeds the wrestlers table.
type RosterEntry struct {
	Name         string `yaml:"name"`
	Promotion    string `yaml:"promotion"`
	Championship string `yaml:"championship"`
}

type Scoring struct {
	Preset       string   `yaml:"preset"`
	WindowHours  int      `yaml:"window_hours"`
	RelatedLimit int      `yaml:"related_limit"`
	Tier1Sources []string `yaml:"tier1_sources"`
}

type Schedule struct {
	Interval time.Duration `yaml:"interval"`
}

type Output struct {
	DataDir       string `yaml:"data_dir"`
	RetentionDays int    `yaml:"retention_days"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// envOverrides lists the settings that can be set from WRESTLEPULSE_*
// variables. Unset variables leave the file value alone.
type envOverrides struct {
	DataDir         string        `envconfig:"DATA_DIR"`
	Port            int           `envconfig:"PORT"`
	LogLevel        string        `envconfig:"LOG_LEVEL"`
	Interval        time.Duration `envconfig:"SCHEDULE_INTERVAL"`
	ScoringPreset   string        `envconfig:"SCORING_PRESET"`
	RedditUserAgent string        `envconfig:"REDDIT_USER_AGENT"`
}

var redditSorts = map[string]bool{"hot": true, "new": true, "top": true, "rising": true}

// ConfigDir returns the XDG config directory for wrestlepulse.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "wrestlepulse")
}

// DataDir returns the XDG data directory for wrestlepulse.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "wrestlepulse")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/wrestlepulse/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'wrestlepulse init' to create a default config",
		xdgConfig,
	)
}

// LoadDotEnv loads ./.env into the process environment if it exists.
// Variables already set win.
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("loading .env: %w", err)
	}
	return nil
}

// Load reads and parses a config YAML file, then applies environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := parse(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Sources: Sources{
			MaxItemsPerFeed: 50,
			Reddit: Reddit{
				BaseURL:           "https://www.reddit.com",
				Sort:              "hot",
				Limit:             25,
				UserAgent:         "wrestlepulse/0.1",
				RequestsPerMinute: 30,
				Retries:           3,
			},
		},
		Scoring: Scoring{
			Preset:       score.PresetStandard,
			WindowHours:  72,
			RelatedLimit: 5,
		},
		Schedule: Schedule{Interval: 10 * time.Minute},
		Output:   Output{RetentionDays: 30},
		Server:   Server{Port: 8000},
		Logging:  Logging{Level: "info"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	o := envOverrides{
		DataDir:         c.Output.DataDir,
		Port:            c.Server.Port,
		LogLevel:        c.Logging.Level,
		Interval:        c.Schedule.Interval,
		ScoringPreset:   c.Scoring.Preset,
		RedditUserAgent: c.Sources.Reddit.UserAgent,
	}
	if err := envconfig.Process(EnvPrefix, &o); err != nil {
		return fmt.Errorf("reading %s_* environment: %w", EnvPrefix, err)
	}
	c.Output.DataDir = o.DataDir
	c.Server.Port = o.Port
	c.Logging.Level = o.LogLevel
	c.Schedule.Interval = o.Interval
	c.Scoring.Preset = o.ScoringPreset
	c.Sources.Reddit.UserAgent = o.RedditUserAgent
	return nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var err error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		err = multierr.Append(err, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if _, perr := score.Preset(c.Scoring.Preset); perr != nil {
		err = multierr.Append(err, fmt.Errorf("scoring.preset: %w", perr))
	}
	if c.Scoring.WindowHours <= 0 {
		err = multierr.Append(err, fmt.Errorf("scoring.window_hours must be positive"))
	}
	if c.Schedule.Interval < time.Minute {
		err = multierr.Append(err, fmt.Errorf("schedule.interval %s is shorter than a minute", c.Schedule.Interval))
	}
	if c.Sources.Reddit.Enabled && !redditSorts[c.Sources.Reddit.Sort] {
		err = multierr.Append(err, fmt.Errorf("sources.reddit.sort %q is not one of hot, new, top, rising", c.Sources.Reddit.Sort))
	}
	for i, f := range c.Sources.Feeds {
		if f.URL == "" {
			err = multierr.Append(err, fmt.Errorf("sources.feeds[%d] has no url", i))
		}
	}
	return err
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// DBPath is the sqlite file inside the data directory.
func (c *Config) DBPath() string {
	return filepath.Join(c.GetDataDir(), "wrestlepulse.db")
}

// Window is how far back items are considered by an analysis run.
func (c *Config) Window() time.Duration {
	return time.Duration(c.Scoring.WindowHours) * time.Hour
}

// Retention is how long analysis runs are kept. Zero keeps them forever.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Output.RetentionDays) * 24 * time.Hour
}

// Constants returns the scoring constants for the configured preset with the
// configured tier-1 outlets.
func (c *Config) Constants() (score.Constants, error) {
	k, err := score.Preset(c.Scoring.Preset)
	if err != nil {
		return k, err
	}
	k.Tier1Sources = c.Scoring.Tier1Sources
	return k, nil
}

// MatcherConfig returns the built-in lexicon extended with the matching
// section. Aliases given here replace the built-in list for that name,
// whatever its case or spacing.
func (c *Config) MatcherConfig() matcher.Config {
	m := matcher.DefaultConfig()
	for name, aliases := range c.Matching.Aliases {
		m.Aliases[strings.Join(strings.Fields(strings.ToLower(name)), " ")] = aliases
	}
	m.DistinctiveSurnames = append(m.DistinctiveSurnames, c.Matching.DistinctiveSurnames...)
	m.ContextTerms = append(m.ContextTerms, c.Matching.ContextTerms...)
	m.CommonFirstNames = append(m.CommonFirstNames, c.Matching.CommonFirstNames...)
	if c.Matching.ProximityWindow > 0 {
		m.ProximityWindow = c.Matching.ProximityWindow
	}
	if c.Matching.ContextTokenMinLen > 0 {
		m.ContextTokenMinLen = c.Matching.ContextTokenMinLen
	}
	return m
}

// SentimentConfig returns the built-in keywords extended with the sentiment
// section.
func (c *Config) SentimentConfig() sentiment.Config {
	s := sentiment.DefaultConfig()
	s.Positive = append(s.Positive, c.Sentiment.Positive...)
	s.Negative = append(s.Negative, c.Sentiment.Negative...)
	return s
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
