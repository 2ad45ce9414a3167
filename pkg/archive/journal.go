// Package archive keeps a local journal of saved content in SQLite.
package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"notionx/pkg/delivery"
	"notionx/pkg/models"
)

// ErrNotFound is returned by Lookup when a URL was never saved
var ErrNotFound = errors.New("not in journal")

// Entry is one delivery of one URL
type Entry struct {
	ID          int64     `json:"id"`
	URL         string    `json:"url"`
	Kind        string    `json:"kind"`
	Author      string    `json:"author,omitempty"`
	Title       string    `json:"title,omitempty"`
	Items       int       `json:"items"`
	Destination string    `json:"destination"`
	RemoteID    string    `json:"remote_id,omitempty"`
	Location    string    `json:"location,omitempty"`
	SavedAt     time.Time `json:"saved_at"`
}

// Journal records deliveries
type Journal struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS saved_items (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	url         TEXT NOT NULL,
	kind        TEXT NOT NULL,
	author      TEXT,
	title       TEXT,
	items       INTEGER DEFAULT 0,
	destination TEXT NOT NULL,
	remote_id   TEXT,
	location    TEXT,
	saved_at    DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_saved_items_url ON saved_items(url, destination);
CREATE INDEX IF NOT EXISTS idx_saved_items_time ON saved_items(saved_at);
`

// Open opens or creates the journal at path
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("cannot create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("cannot open journal: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal migration failed: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the database
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record stores a delivery receipt for content
func (j *Journal) Record(ctx context.Context, content *models.Content, receipt *delivery.Receipt) error {
	savedAt := receipt.DeliveredAt
	if savedAt.IsZero() {
		savedAt = time.Now()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO saved_items (url, kind, author, title, items, destination, remote_id, location, saved_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		content.URL, content.Type, content.AuthorHandle(), content.Title, len(content.Paragraphs()),
		receipt.Sink, receipt.RemoteID, receipt.Location, savedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record %s: %w", content.URL, err)
	}
	return nil
}

// Lookup returns the latest delivery of url to destination
func (j *Journal) Lookup(ctx context.Context, url, destination string) (*Entry, error) {
	row := j.db.QueryRowContext(ctx,
		`SELECT id, url, kind, author, title, items, destination, remote_id, location, saved_at
		 FROM saved_items WHERE url = ? AND destination = ?
		 ORDER BY saved_at DESC, id DESC LIMIT 1`, url, destination)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", url, err)
	}
	return e, nil
}

// List returns the most recent entries, newest first. limit <= 0 means all.
func (j *Journal) List(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT id, url, kind, author, title, items, destination, remote_id, location, saved_at
		FROM saved_items ORDER BY saved_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*Entry, error) {
	var (
		e                                 Entry
		author, title, remoteID, location sql.NullString
	)
	if err := s.Scan(&e.ID, &e.URL, &e.Kind, &author, &title, &e.Items, &e.Destination, &remoteID, &location, &e.SavedAt); err != nil {
		return nil, err
	}
	e.Author = author.String
	e.Title = title.String
	e.RemoteID = remoteID.String
	e.Location = location.String
	return &e, nil
}
