package database

import (
	"database/sql"
	"errors"
	"fmt"
)

// InsertWrestler adds a roster entry. Returns the ID on success, 0 if a
// wrestler with the same name (case-insensitive) already exists.
func (db *DB) InsertWrestler(w Wrestler) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT INTO wrestlers (name, promotion, is_champion, championship_title)
		VALUES (?, ?, ?, ?) ON CONFLICT(name) DO NOTHING`,
		w.Name, w.Promotion, boolInt(w.IsChampion), w.ChampionshipTitle,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting wrestler %q: %w", w.Name, err)
	}
	n, err := result.RowsAffected()
	if err != nil || n == 0 {
		return 0, err
	}
	return result.LastInsertId()
}

// GetAllWrestlers returns the roster ordered by name.
func (db *DB) GetAllWrestlers() ([]Wrestler, error) {
	rows, err := db.conn.Query(
		`SELECT id, name, promotion, is_champion, championship_title, created_at
		FROM wrestlers ORDER BY name COLLATE NOCASE`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var wrestlers []Wrestler
	for rows.Next() {
		var w Wrestler
		var champ int
		if err := rows.Scan(&w.ID, &w.Name, &w.Promotion, &champ, &w.ChampionshipTitle, &w.CreatedAt); err != nil {
			return nil, err
		}
		w.IsChampion = champ != 0
		wrestlers = append(wrestlers, w)
	}
	return wrestlers, rows.Err()
}

// GetWrestler returns a single wrestler or ErrNotFound.
func (db *DB) GetWrestler(id int64) (*Wrestler, error) {
	var w Wrestler
	var champ int
	err := db.conn.QueryRow(
		`SELECT id, name, promotion, is_champion, championship_title, created_at
		FROM wrestlers WHERE id = ?`, id,
	).Scan(&w.ID, &w.Name, &w.Promotion, &champ, &w.ChampionshipTitle, &w.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	w.IsChampion = champ != 0
	return &w, nil
}

// SetChampion updates a wrestler's championship status. An empty title
// clears it.
func (db *DB) SetChampion(id int64, title string) error {
	result, err := db.conn.Exec(
		`UPDATE wrestlers SET is_champion = ?, championship_title = ? WHERE id = ?`,
		boolInt(title != ""), title, id,
	)
	if err != nil {
		return err
	}
	return expectOne(result)
}

// DeleteWrestler removes a wrestler along with its metrics and mention log.
func (db *DB) DeleteWrestler(id int64) error {
	result, err := db.conn.Exec("DELETE FROM wrestlers WHERE id = ?", id)
	if err != nil {
		return err
	}
	return expectOne(result)
}

func expectOne(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
