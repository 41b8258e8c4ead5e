package collect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/TobiSchelling/wrestlepulse/internal/database"
)

const (
	defaultRedditBaseURL = "https://www.reddit.com"
	defaultRetryDelay    = time.Second
	maxRetryDelay        = 30 * time.Second
)

// RedditConfig configures the listing client.
type RedditConfig struct {
	BaseURL           string
	Sort              string
	Limit             int
	UserAgent         string
	RequestsPerMinute int
	Retries           int
	RetryDelay        time.Duration
}

// RedditClient reads subreddit listings from the public JSON endpoints.
type RedditClient struct {
	cfg     RedditConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// StatusError is a non-2xx listing response.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

// Retryable reports whether the request may succeed when repeated.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

type listing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Permalink   string  `json:"permalink"`
	CreatedUTC  float64 `json:"created_utc"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	Stickied    bool    `json:"stickied"`
	Subreddit   string  `json:"subreddit"`
}

// NewRedditClient creates a client. Zero settings fall back to defaults.
func NewRedditClient(cfg RedditConfig, logger *zap.Logger) *RedditClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultRedditBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Sort == "" {
		cfg.Sort = "hot"
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 25
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 30
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedditClient{
		cfg:     cfg,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60), 1),
		logger:  logger,
	}
}

// Listing returns the posts of a subreddit published at or after cutoff.
// Stickied posts are skipped.
func (c *RedditClient) Listing(ctx context.Context, subreddit string, cutoff time.Time) ([]database.ContentItem, error) {
	sub := strings.TrimPrefix(strings.TrimSpace(subreddit), "r/")
	endpoint := fmt.Sprintf("%s/r/%s/%s.json?limit=%d&raw_json=1", c.cfg.BaseURL, url.PathEscape(sub), c.cfg.Sort, c.cfg.Limit)

	var body listing
	if err := c.getWithRetry(ctx, endpoint, &body); err != nil {
		return nil, err
	}

	var items []database.ContentItem
	for _, child := range body.Data.Children {
		p := child.Data
		if p.Stickied || strings.TrimSpace(p.Title) == "" || p.Permalink == "" {
			continue
		}
		published := time.Unix(int64(p.CreatedUTC), 0).UTC()
		if p.CreatedUTC > 0 && published.Before(cutoff) {
			continue
		}
		it := database.ContentItem{
			Link:       c.cfg.BaseURL + p.Permalink,
			Title:      strings.TrimSpace(p.Title),
			Snippet:    truncate(strings.Join(strings.Fields(p.Selftext), " "), maxSnippetRunes),
			Source:     "r/" + sub,
			Kind:       database.KindReddit,
			Engagement: p.Score + p.NumComments,
		}
		if p.CreatedUTC > 0 {
			it.PublishedAt = published
		}
		items = append(items, it)
	}
	return items, nil
}

func (c *RedditClient) getWithRetry(ctx context.Context, endpoint string, out any) error {
	delay := c.cfg.RetryDelay
	var err error
	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		if attempt > 0 {
			c.logger.Debug("retrying reddit request", zap.String("url", endpoint), zap.Int("attempt", attempt), zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = min(delay*2, maxRetryDelay)
		}

		err = c.get(ctx, endpoint, out)
		var se *StatusError
		if err == nil || !errors.As(err, &se) || !se.Retryable() {
			return err
		}
	}
	return fmt.Errorf("giving up after %d attempts: %w", c.cfg.Retries+1, err)
}

func (c *RedditClient) get(ctx context.Context, endpoint string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Code: resp.StatusCode, URL: endpoint}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", endpoint, err)
	}
	return nil
}
