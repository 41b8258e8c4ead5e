package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const itemColumns = `id, link, title, snippet, source, kind, engagement, published_at, collected_at, content_fetched`

// InsertItem stores a content item. Returns the ID on success, 0 if the link
// was already collected.
func (db *DB) InsertItem(it ContentItem) (int64, error) {
	collected := it.CollectedAt
	if collected.IsZero() {
		collected = time.Now()
	}
	result, err := db.conn.Exec(
		`INSERT INTO content_items (link, title, snippet, source, kind, engagement, published_at, collected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT(link) DO NOTHING`,
		it.Link, it.Title, it.Snippet, it.Source, it.Kind, it.Engagement,
		nullTime(it.PublishedAt), formatTime(collected),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting item %s: %w", it.Link, err)
	}
	n, err := result.RowsAffected()
	if err != nil || n == 0 {
		return 0, err
	}
	return result.LastInsertId()
}

// GetItemsSince returns items published (or, lacking a date, collected) at
// or after since, newest first.
func (db *DB) GetItemsSince(since time.Time) ([]ContentItem, error) {
	rows, err := db.conn.Query(
		`SELECT `+itemColumns+` FROM content_items
		WHERE COALESCE(published_at, collected_at) >= ?
		ORDER BY COALESCE(published_at, collected_at) DESC`, formatTime(since),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanItems(rows)
}

// GetItemsNeedingFetch returns news items with an empty snippet that haven't
// been fetched yet.
func (db *DB) GetItemsNeedingFetch() ([]ContentItem, error) {
	rows, err := db.conn.Query(
		`SELECT `+itemColumns+` FROM content_items
		WHERE kind = 'news' AND snippet = '' AND content_fetched = 0
		ORDER BY collected_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanItems(rows)
}

// UpdateItemSnippet stores fetched text and marks the item as fetched.
func (db *DB) UpdateItemSnippet(itemID int64, snippet string) error {
	_, err := db.conn.Exec(
		"UPDATE content_items SET snippet = ?, content_fetched = 1 WHERE id = ?",
		snippet, itemID,
	)
	return err
}

// MarkItemFetchAttempted marks that we tried to fetch content.
func (db *DB) MarkItemFetchAttempted(itemID int64) error {
	_, err := db.conn.Exec("UPDATE content_items SET content_fetched = 1 WHERE id = ?", itemID)
	return err
}

// GetItem returns a single item or ErrNotFound.
func (db *DB) GetItem(itemID int64) (*ContentItem, error) {
	rows, err := db.conn.Query(`SELECT `+itemColumns+` FROM content_items WHERE id = ?`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items, err := scanItems(rows)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNotFound
	}
	return &items[0], nil
}

// CountItemsSince counts items in the same window as GetItemsSince.
func (db *DB) CountItemsSince(since time.Time) (int, error) {
	var n int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM content_items WHERE COALESCE(published_at, collected_at) >= ?`,
		formatTime(since),
	).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return n, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(s scanner, prefix ...any) (ContentItem, error) {
	var it ContentItem
	var published *string
	var collected string
	var fetched int
	dest := append(prefix, &it.ID, &it.Link, &it.Title, &it.Snippet, &it.Source, &it.Kind,
		&it.Engagement, &published, &collected, &fetched)
	if err := s.Scan(dest...); err != nil {
		return it, err
	}
	if published != nil {
		it.PublishedAt = parseTime(*published)
	}
	it.CollectedAt = parseTime(collected)
	it.ContentFetched = fetched != 0
	return it, nil
}

func scanItems(rows *sql.Rows) ([]ContentItem, error) {
	var items []ContentItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
