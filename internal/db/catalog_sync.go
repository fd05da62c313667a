package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"backoffice/internal/config"
)

// SyncCatalogFromConfig applies catalog.yaml to the database.
// Entries are matched by name. Schedules, special days and special hours from the
// file only seed rows that do not exist yet, so edits made through the API survive
// a reload. Item membership always follows the file. Entries missing from the file
// are marked inactive.
func (db *DB) SyncCatalogFromConfig(ctx context.Context, cfg *config.CatalogConfig) error {
	if cfg == nil {
		return fmt.Errorf("catalog config is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()

	categories := make([]string, 0, len(cfg.Categories))
	for _, cat := range cfg.Categories {
		data, err := json.Marshal(cat.Schedule.Record().Normalized())
		if err != nil {
			return fmt.Errorf("marshal schedule for %s: %w", cat.Name, err)
		}
		if _, err := upsertByName(ctx, tx, now, "categories", cat.Name,
			`INSERT INTO categories (name, schedule_json, created_at, updated_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(name) DO NOTHING`,
			cat.Name, string(data), now, now,
		); err != nil {
			return fmt.Errorf("sync category %s: %w", cat.Name, err)
		}
		categories = append(categories, cat.Name)
	}
	if err := deactivateMissing(ctx, tx, now, "categories", categories); err != nil {
		return err
	}

	items := make([]string, 0, len(cfg.Items))
	for _, item := range cfg.Items {
		id, err := upsertByName(ctx, tx, now, "menu_items", item.Name,
			`INSERT INTO menu_items (name, created_at, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(name) DO NOTHING`,
			item.Name, now, now,
		)
		if err != nil {
			return fmt.Errorf("sync item %s: %w", item.Name, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM menu_item_categories WHERE item_id = ?`, id); err != nil {
			return fmt.Errorf("clear categories for %s: %w", item.Name, err)
		}
		for pos, name := range item.Categories {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO menu_item_categories (item_id, category_name, position) VALUES (?, ?, ?)`,
				id, name, pos,
			); err != nil {
				return fmt.Errorf("link %s to %s: %w", item.Name, name, err)
			}
		}
		items = append(items, item.Name)
	}
	if err := deactivateMissing(ctx, tx, now, "menu_items", items); err != nil {
		return err
	}

	specials := make([]string, 0, len(cfg.Specials))
	for _, sp := range cfg.Specials {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO special_items (name, created_at, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(name) DO NOTHING`,
			sp.Name, now, now,
		)
		if err != nil {
			return fmt.Errorf("sync special %s: %w", sp.Name, err)
		}
		created, err := res.RowsAffected()
		if err != nil {
			return err
		}
		id, err := activateByName(ctx, tx, now, "special_items", sp.Name)
		if err != nil {
			return fmt.Errorf("sync special %s: %w", sp.Name, err)
		}
		if created > 0 {
			if err := replaceSpecialDays(ctx, tx, id, sp.Days); err != nil {
				return fmt.Errorf("seed days for %s: %w", sp.Name, err)
			}
		}
		specials = append(specials, sp.Name)
	}
	if err := deactivateMissing(ctx, tx, now, "special_items", specials); err != nil {
		return err
	}

	for _, h := range cfg.SpecialHours {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO special_hours (day, start_time, end_time, updated_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(day) DO NOTHING`,
			h.Day, h.StartTime, h.EndTime, now,
		); err != nil {
			return fmt.Errorf("seed special hours for day %d: %w", h.Day, err)
		}
	}

	return tx.Commit()
}

// upsertByName runs insert and then reactivates the named row, returning its id.
func upsertByName(ctx context.Context, tx *sql.Tx, now time.Time, table, name, insert string, args ...any) (int64, error) {
	if _, err := tx.ExecContext(ctx, insert, args...); err != nil {
		return 0, err
	}
	return activateByName(ctx, tx, now, table, name)
}

func activateByName(ctx context.Context, tx *sql.Tx, now time.Time, table, name string) (int64, error) {
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET is_active = 1, updated_at = ? WHERE name = ? AND is_active = 0`, table),
		now, name,
	); err != nil {
		return 0, err
	}
	var id int64
	err := tx.QueryRowContext(ctx, fmt.Sprintf(`SELECT id FROM %s WHERE name = ?`, table), name).Scan(&id)
	return id, err
}

// deactivateMissing marks rows whose name is not in keep as inactive.
func deactivateMissing(ctx context.Context, tx *sql.Tx, now time.Time, table string, keep []string) error {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf(`SELECT id, name FROM %s WHERE is_active = 1`, table))
	if err != nil {
		return err
	}

	wanted := make(map[string]struct{}, len(keep))
	for _, name := range keep {
		wanted[name] = struct{}{}
	}

	var stale []int64
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			rows.Close()
			return err
		}
		if _, ok := wanted[name]; !ok {
			stale = append(stale, id)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, id := range stale {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`UPDATE %s SET is_active = 0, updated_at = ? WHERE id = ?`, table), now, id,
		); err != nil {
			return fmt.Errorf("deactivate %s %d: %w", table, id, err)
		}
	}
	return nil
}
