package db

import (
	"database/sql"
	"fmt"
	"strings"

	// SQLite driver.
	_ "github.com/mattn/go-sqlite3"
)

// DB wraps sql.DB for the availability service.
type DB struct {
	*sql.DB
}

// NewDB opens database at path and runs migrations.
func NewDB(path string) (*DB, error) {
	// Pragmas go in the DSN so every pooled connection gets them.
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := createTables(db); err != nil {
		return nil, err
	}
	return &DB{db}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		// Categories carry the persisted schedule record as JSON plus the
		// flags the reconciler caches for list rendering.
		`CREATE TABLE IF NOT EXISTS categories (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT UNIQUE NOT NULL,
			schedule_json TEXT NOT NULL DEFAULT '{"enabled":false,"type":"daily"}',
			manual_pause BOOLEAN NOT NULL DEFAULT 0,
			sold_out_enabled BOOLEAN NOT NULL DEFAULT 0,
			sold_out_end_time TEXT NOT NULL DEFAULT '',
			sold_out_set_on TEXT NOT NULL DEFAULT '',
			is_paused BOOLEAN NOT NULL DEFAULT 0,
			is_sold_out BOOLEAN NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS menu_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT UNIQUE NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Item membership references categories by name.
		`CREATE TABLE IF NOT EXISTS menu_item_categories (
			item_id INTEGER NOT NULL,
			category_name TEXT NOT NULL,
			position INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (item_id, category_name),
			FOREIGN KEY (item_id) REFERENCES menu_items(id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS special_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT UNIQUE NOT NULL,
			manual_pause BOOLEAN NOT NULL DEFAULT 0,
			is_paused BOOLEAN NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS special_item_days (
			special_id INTEGER NOT NULL,
			day INTEGER NOT NULL CHECK (day BETWEEN 0 AND 6),
			PRIMARY KEY (special_id, day),
			FOREIGN KEY (special_id) REFERENCES special_items(id) ON DELETE CASCADE
		)`,

		// One shared special-item window per weekday (0=Sunday).
		`CREATE TABLE IF NOT EXISTS special_hours (
			day INTEGER PRIMARY KEY CHECK (day BETWEEN 0 AND 6),
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Indexes
		`CREATE INDEX IF NOT EXISTS idx_categories_active ON categories(is_active)`,
		`CREATE INDEX IF NOT EXISTS idx_menu_items_active ON menu_items(is_active)`,
		`CREATE INDEX IF NOT EXISTS idx_item_categories_name ON menu_item_categories(category_name)`,
		`CREATE INDEX IF NOT EXISTS idx_special_items_active ON special_items(is_active)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// requireRow turns an UPDATE that matched nothing into sql.ErrNoRows.
func requireRow(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
