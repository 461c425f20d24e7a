package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Cache keeps the last successful GET response per request URL in a
// local sqlite database, so read paths can fall back to stale data
// when the network is down.
type Cache struct {
	db *sql.DB
}

func New(path string) (*Cache, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}

	c := &Cache{db: db}
	if err := c.initTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init cache tables: %w", err)
	}
	return c, nil
}

func (c *Cache) initTables() error {
	_, err := c.db.Exec(`
		CREATE TABLE IF NOT EXISTS responses (
			url        TEXT PRIMARY KEY,
			status     INTEGER NOT NULL,
			body       BLOB NOT NULL,
			updated_at DATETIME NOT NULL
		);
	`)
	return err
}

// Put stores or replaces the cached response for url.
func (c *Cache) Put(url string, status int, body []byte) error {
	_, err := c.db.Exec(`
		INSERT INTO responses (url, status, body, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			status = excluded.status,
			body = excluded.body,
			updated_at = excluded.updated_at
	`, url, status, body, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store cached response: %w", err)
	}
	return nil
}

// Get returns the cached response for url, ok=false when absent.
func (c *Cache) Get(url string) (status int, body []byte, ok bool, err error) {
	row := c.db.QueryRow(`SELECT status, body FROM responses WHERE url = ?`, url)
	if err := row.Scan(&status, &body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil, false, nil
		}
		return 0, nil, false, fmt.Errorf("read cached response: %w", err)
	}
	return status, body, true, nil
}

// Clear drops every cached response.
func (c *Cache) Clear() error {
	if _, err := c.db.Exec(`DELETE FROM responses`); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}
