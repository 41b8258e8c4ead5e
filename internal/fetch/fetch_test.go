package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/TobiSchelling/wrestlepulse/internal/database"
)

const articlePage = `<html><head><title>Gunther retains</title></head><body>
<nav>Home | News</nav>
<article><h1>Gunther retains</h1>
<p>%s</p>
<p>%s</p>
</article></body></html>`

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestFetchMissingSnippets(t *testing.T) {
	para := strings.Repeat("Gunther defended the World Heavyweight Championship in a brutal main event. ", 30)
	mux := http.NewServeMux()
	mux.HandleFunc("/story", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, articlePage, para, para)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	db := openTestDB(t)
	id, _ := db.InsertItem(database.ContentItem{Link: srv.URL + "/story", Title: "Gunther retains", Kind: database.KindNews})

	f := NewContentFetcher(db, 0, "", nil)
	res, err := f.FetchMissingSnippets(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Fetched != 1 {
		t.Fatalf("expected 1 fetched, got %+v", res)
	}

	it, _ := db.GetItem(id)
	if !strings.Contains(it.Snippet, "World Heavyweight Championship") {
		t.Errorf("expected article text in snippet, got %q", it.Snippet)
	}
	if n := len([]rune(it.Snippet)); n > maxSnippetRunes {
		t.Errorf("snippet not truncated: %d runes", n)
	}
}

func TestFetchSkipsFailedDomain(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	db := openTestDB(t)
	db.InsertItem(database.ContentItem{Link: srv.URL + "/a", Title: "A", Kind: database.KindNews})
	db.InsertItem(database.ContentItem{Link: srv.URL + "/b", Title: "B", Kind: database.KindNews})

	res, err := NewContentFetcher(db, 0, "", nil).FetchMissingSnippets(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Failed != 1 || res.Skipped != 1 {
		t.Errorf("expected 1 failed and 1 skipped, got %+v", res)
	}
	if calls.Load() != 1 {
		t.Errorf("expected one request to the failing domain, got %d", calls.Load())
	}

	left, _ := db.GetItemsNeedingFetch()
	if len(left) != 0 {
		t.Errorf("expected all items marked attempted, got %d", len(left))
	}
}

func TestFetchShortPageMarksAttempted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body><p>Too short.</p></body></html>")
	}))
	defer srv.Close()

	db := openTestDB(t)
	db.InsertItem(database.ContentItem{Link: srv.URL + "/short", Title: "Short", Kind: database.KindNews})

	res, _ := NewContentFetcher(db, 0, "", nil).FetchMissingSnippets(context.Background())
	if res.Failed != 1 || res.Fetched != 0 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("héllo world", 5); got != "héllo" {
		t.Errorf("expected rune-aware truncation, got %q", got)
	}
	if got := truncate("short", 10); got != "short" {
		t.Errorf("expected unchanged, got %q", got)
	}
}
