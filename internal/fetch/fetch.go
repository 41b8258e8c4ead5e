// Package fetch backfills empty news snippets with the article's readable text.
package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	readability "github.com/go-shiori/go-readability"
	"go.uber.org/zap"

	"github.com/TobiSchelling/wrestlepulse/internal/database"
)

const (
	maxSnippetRunes = 1000
	minTextLength   = 100
)

// Result holds the results of a content fetch run.
type Result struct {
	Fetched int
	Failed  int
	Skipped int
}

// ContentFetcher fetches article pages and extracts text with readability.
type ContentFetcher struct {
	db        *database.DB
	client    *http.Client
	userAgent string
	logger    *zap.Logger
}

// NewContentFetcher creates a new content fetcher.
func NewContentFetcher(db *database.DB, timeout time.Duration, userAgent string, logger *zap.Logger) *ContentFetcher {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if userAgent == "" {
		userAgent = "wrestlepulse/0.1 (news aggregator)"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContentFetcher{
		db:        db,
		userAgent: userAgent,
		logger:    logger,
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// FetchMissingSnippets fetches text for news items with an empty snippet.
// After an HTTP error the rest of that domain is skipped for this run.
func (f *ContentFetcher) FetchMissingSnippets(ctx context.Context) (*Result, error) {
	items, err := f.db.GetItemsNeedingFetch()
	if err != nil {
		return nil, err
	}

	result := &Result{}
	if len(items) == 0 {
		f.logger.Debug("no items need content fetching")
		return result, nil
	}

	failedDomains := make(map[string]struct{})
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		domain := ""
		if u, err := url.Parse(it.Link); err == nil {
			domain = strings.ToLower(u.Host)
		}

		if _, failed := failedDomains[domain]; failed {
			f.db.MarkItemFetchAttempted(it.ID)
			result.Skipped++
			continue
		}

		text, err := f.fetchText(ctx, it.Link)
		var he *httpError
		if errors.As(err, &he) {
			f.db.MarkItemFetchAttempted(it.ID)
			result.Failed++
			if domain != "" {
				failedDomains[domain] = struct{}{}
			}
			f.logger.Info("http error, skipping domain", zap.String("url", it.Link), zap.Int("status", he.code), zap.String("domain", domain))
			continue
		}

		if text == "" {
			f.db.MarkItemFetchAttempted(it.ID)
			result.Failed++
			f.logger.Debug("no extractable content", zap.String("url", it.Link), zap.Error(err))
			continue
		}

		if err := f.db.UpdateItemSnippet(it.ID, truncate(text, maxSnippetRunes)); err != nil {
			return result, err
		}
		result.Fetched++
		f.logger.Debug("fetched snippet", zap.String("title", it.Title))
	}

	f.logger.Info("content fetch complete", zap.Int("fetched", result.Fetched), zap.Int("failed", result.Failed), zap.Int("skipped", result.Skipped))
	return result, nil
}

// fetchText returns the readable text of a page. Only HTTP status failures
// are reported as *httpError; other failures yield empty text.
func (f *ContentFetcher) fetchText(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", &httpError{code: resp.StatusCode}
	}

	parsedURL, _ := url.Parse(pageURL)
	article, err := readability.FromReader(resp.Body, parsedURL)
	if err != nil {
		return "", err
	}

	text := strings.Join(strings.Fields(article.TextContent), " ")
	if len(text) > minTextLength {
		return text, nil
	}
	return "", nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:n]))
}

type httpError struct {
	code int
}

func (e *httpError) Error() string {
	return http.StatusText(e.code)
}
