package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// SaveRun persists a run with its metric snapshots and mention log in a
// single transaction.
func (db *DB) SaveRun(run AnalysisRun, metrics []WrestlerMetric, mentions []MentionLog) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin run %s: %w", run.ID, err)
	}
	defer tx.Rollback() //nolint: errcheck

	if _, err := tx.Exec(
		`INSERT INTO analysis_runs (id, started_at, finished_at, scoring_preset, item_count, wrestler_count, digest_markdown)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, formatTime(run.StartedAt), formatTime(run.FinishedAt), run.ScoringPreset,
		run.ItemCount, run.WrestlerCount, run.DigestMarkdown,
	); err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	metricStmt, err := tx.Prepare(
		`INSERT INTO wrestler_metrics (run_id, wrestler_id, total_mentions, push_score, burial_score,
		momentum_score, popularity_score, sentiment_score, trend, is_on_fire, change_24h, change_source,
		confidence, computed_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer metricStmt.Close()

	for _, m := range metrics {
		if _, err := metricStmt.Exec(run.ID, m.WrestlerID, m.TotalMentions, m.PushScore, m.BurialScore,
			m.MomentumScore, m.PopularityScore, m.SentimentScore, m.Trend, boolInt(m.IsOnFire),
			m.Change24h, m.ChangeSource, m.Confidence, formatTime(m.ComputedAt)); err != nil {
			return fmt.Errorf("inserting metrics for wrestler %d: %w", m.WrestlerID, err)
		}
	}

	mentionStmt, err := tx.Prepare(
		`INSERT INTO mentions (run_id, wrestler_id, item_id, sentiment, mentioned_at) VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer mentionStmt.Close()

	for _, m := range mentions {
		if _, err := mentionStmt.Exec(run.ID, m.WrestlerID, m.ItemID, m.Sentiment, formatTime(m.MentionedAt)); err != nil {
			return fmt.Errorf("inserting mention of wrestler %d: %w", m.WrestlerID, err)
		}
	}

	return tx.Commit()
}

// UpdateRunDigest stores the markdown digest for a run.
func (db *DB) UpdateRunDigest(runID, markdown string) error {
	result, err := db.conn.Exec("UPDATE analysis_runs SET digest_markdown = ? WHERE id = ?", markdown, runID)
	if err != nil {
		return err
	}
	return expectOne(result)
}

const runColumns = `id, started_at, finished_at, scoring_preset, item_count, wrestler_count, digest_markdown`

// GetLatestRun returns the most recent run, or ErrNotFound before the first run.
func (db *DB) GetLatestRun() (*AnalysisRun, error) {
	return db.queryRun(`SELECT ` + runColumns + ` FROM analysis_runs ORDER BY finished_at DESC LIMIT 1`)
}

// GetRun returns a run by ID or ErrNotFound.
func (db *DB) GetRun(id string) (*AnalysisRun, error) {
	return db.queryRun(`SELECT `+runColumns+` FROM analysis_runs WHERE id = ?`, id)
}

// GetRecentRuns returns up to limit runs, newest first.
func (db *DB) GetRecentRuns(limit int) ([]AnalysisRun, error) {
	rows, err := db.conn.Query(`SELECT `+runColumns+` FROM analysis_runs ORDER BY finished_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []AnalysisRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (db *DB) queryRun(query string, args ...any) (*AnalysisRun, error) {
	r, err := scanRun(db.conn.QueryRow(query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func scanRun(s scanner) (AnalysisRun, error) {
	var r AnalysisRun
	var started, finished string
	if err := s.Scan(&r.ID, &started, &finished, &r.ScoringPreset, &r.ItemCount, &r.WrestlerCount, &r.DigestMarkdown); err != nil {
		return r, err
	}
	r.StartedAt = parseTime(started)
	r.FinishedAt = parseTime(finished)
	return r, nil
}

const metricColumns = `m.run_id, m.wrestler_id, w.name, w.promotion, w.is_champion, w.championship_title, m.total_mentions,
	m.push_score, m.burial_score, m.momentum_score, m.popularity_score, m.sentiment_score, m.trend,
	m.is_on_fire, m.change_24h, m.change_source, m.confidence, m.computed_at`

// GetRunMetrics returns a run's snapshots ordered by momentum.
func (db *DB) GetRunMetrics(runID string) ([]WrestlerMetric, error) {
	return db.queryMetrics(
		`SELECT `+metricColumns+` FROM wrestler_metrics m JOIN wrestlers w ON w.id = m.wrestler_id
		WHERE m.run_id = ? ORDER BY m.momentum_score DESC, w.name`, runID,
	)
}

// GetWrestlerHistory returns up to limit snapshots of a wrestler, newest first.
func (db *DB) GetWrestlerHistory(wrestlerID int64, limit int) ([]WrestlerMetric, error) {
	return db.queryMetrics(
		`SELECT `+metricColumns+` FROM wrestler_metrics m JOIN wrestlers w ON w.id = m.wrestler_id
		WHERE m.wrestler_id = ? ORDER BY m.computed_at DESC LIMIT ?`, wrestlerID, limit,
	)
}

// GetBaselines returns, per wrestler, the newest snapshot computed at or
// before the cutoff.
func (db *DB) GetBaselines(cutoff time.Time) (map[int64]WrestlerMetric, error) {
	metrics, err := db.queryMetrics(
		`SELECT `+metricColumns+` FROM wrestler_metrics m
		JOIN wrestlers w ON w.id = m.wrestler_id
		JOIN (SELECT wrestler_id, MAX(computed_at) AS at FROM wrestler_metrics
			WHERE computed_at <= ? GROUP BY wrestler_id) latest
		ON latest.wrestler_id = m.wrestler_id AND latest.at = m.computed_at`, formatTime(cutoff),
	)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]WrestlerMetric, len(metrics))
	for _, m := range metrics {
		out[m.WrestlerID] = m
	}
	return out, nil
}

func (db *DB) queryMetrics(query string, args ...any) ([]WrestlerMetric, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var metrics []WrestlerMetric
	for rows.Next() {
		var m WrestlerMetric
		var champ, fire int
		var computed string
		if err := rows.Scan(&m.RunID, &m.WrestlerID, &m.WrestlerName, &m.Promotion, &champ, &m.Championship,
			&m.TotalMentions, &m.PushScore, &m.BurialScore, &m.MomentumScore, &m.PopularityScore,
			&m.SentimentScore, &m.Trend, &fire, &m.Change24h, &m.ChangeSource, &m.Confidence, &computed); err != nil {
			return nil, err
		}
		m.IsChampion = champ != 0
		m.IsOnFire = fire != 0
		m.ComputedAt = parseTime(computed)
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

// GetRunMentions returns the items a wrestler was matched in during a run,
// newest first.
func (db *DB) GetRunMentions(runID string, wrestlerID int64) ([]MentionedItem, error) {
	rows, err := db.conn.Query(
		`SELECT mn.sentiment, c.id, c.link, c.title, c.snippet, c.source, c.kind, c.engagement,
		c.published_at, c.collected_at, c.content_fetched
		FROM mentions mn JOIN content_items c ON c.id = mn.item_id
		WHERE mn.run_id = ? AND mn.wrestler_id = ?
		ORDER BY mn.mentioned_at DESC`, runID, wrestlerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MentionedItem
	for rows.Next() {
		var mi MentionedItem
		it, err := scanItem(rows, &mi.Sentiment)
		if err != nil {
			return nil, err
		}
		mi.Item = it
		out = append(out, mi)
	}
	return out, rows.Err()
}

// PruneRunsBefore deletes runs that finished before cutoff. Metrics and
// mention rows go with them.
func (db *DB) PruneRunsBefore(cutoff time.Time) (int64, error) {
	result, err := db.conn.Exec("DELETE FROM analysis_runs WHERE finished_at < ?", formatTime(cutoff))
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	if err == nil && n > 0 {
		db.logger.Info("pruned analysis runs", zap.Int64("count", n), zap.Time("before", cutoff))
	}
	return n, err
}

// CountRunsBefore counts runs that PruneRunsBefore would delete.
func (db *DB) CountRunsBefore(cutoff time.Time) (int, error) {
	var n int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM analysis_runs WHERE finished_at < ?", formatTime(cutoff)).Scan(&n)
	return n, err
}

// GetStats returns aggregate counts for the status command.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}

	queries := []struct {
		sql  string
		dest *int
	}{
		{"SELECT COUNT(*) FROM wrestlers", &s.Wrestlers},
		{"SELECT COUNT(*) FROM wrestlers WHERE is_champion = 1", &s.Champions},
		{"SELECT COUNT(*) FROM content_items WHERE kind = 'news'", &s.NewsItems},
		{"SELECT COUNT(*) FROM content_items WHERE kind = 'reddit'", &s.RedditItems},
		{"SELECT COUNT(*) FROM analysis_runs", &s.Runs},
		{"SELECT COUNT(*) FROM mentions", &s.Mentions},
	}

	for _, q := range queries {
		if err := db.conn.QueryRow(q.sql).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	latest, err := db.GetLatestRun()
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if latest != nil {
		s.LastRunAt = latest.FinishedAt
	}
	return s, nil
}
