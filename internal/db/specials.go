package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"backoffice/internal/model"
)

// ListSpecials returns all active special items with their bound days.
func (db *DB) ListSpecials(ctx context.Context) ([]model.SpecialItem, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, manual_pause, is_paused, created_at, updated_at
		FROM special_items WHERE is_active = 1 ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SpecialItem
	index := make(map[int64]int)
	for rows.Next() {
		var s model.SpecialItem
		if err := rows.Scan(&s.ID, &s.Name, &s.ManualPause, &s.IsPaused, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		s.Days = []int{}
		index[s.ID] = len(out)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	days, err := db.QueryContext(ctx, `SELECT special_id, day FROM special_item_days ORDER BY special_id, day`)
	if err != nil {
		return nil, err
	}
	defer days.Close()

	for days.Next() {
		var id int64
		var day int
		if err := days.Scan(&id, &day); err != nil {
			return nil, err
		}
		if i, ok := index[id]; ok {
			out[i].Days = append(out[i].Days, day)
		}
	}
	return out, days.Err()
}

// GetSpecial returns an active special item or sql.ErrNoRows.
func (db *DB) GetSpecial(ctx context.Context, id int64) (*model.SpecialItem, error) {
	var s model.SpecialItem
	err := db.QueryRowContext(ctx, `
		SELECT id, name, manual_pause, is_paused, created_at, updated_at
		FROM special_items WHERE id = ? AND is_active = 1`, id,
	).Scan(&s.ID, &s.Name, &s.ManualPause, &s.IsPaused, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT day FROM special_item_days WHERE special_id = ? ORDER BY day`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	s.Days = []int{}
	for rows.Next() {
		var day int
		if err := rows.Scan(&day); err != nil {
			return nil, err
		}
		s.Days = append(s.Days, day)
	}
	return &s, rows.Err()
}

// SetSpecialDays replaces the weekdays a special is bound to.
func (db *DB) SetSpecialDays(ctx context.Context, id int64, days []int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := requireRow(tx.ExecContext(ctx,
		`UPDATE special_items SET updated_at = ? WHERE id = ? AND is_active = 1`, time.Now(), id,
	)); err != nil {
		return err
	}
	if err := replaceSpecialDays(ctx, tx, id, days); err != nil {
		return err
	}
	return tx.Commit()
}

func replaceSpecialDays(ctx context.Context, tx *sql.Tx, id int64, days []int) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM special_item_days WHERE special_id = ?`, id); err != nil {
		return fmt.Errorf("clear special days: %w", err)
	}
	for _, d := range days {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO special_item_days (special_id, day) VALUES (?, ?)`, id, d,
		); err != nil {
			return fmt.Errorf("insert special day %d: %w", d, err)
		}
	}
	return nil
}

// SetSpecialManualPause sets the operator pause flag on a special.
func (db *DB) SetSpecialManualPause(ctx context.Context, id int64, paused bool) error {
	return requireRow(db.ExecContext(ctx,
		`UPDATE special_items SET manual_pause = ?, updated_at = ? WHERE id = ? AND is_active = 1`,
		boolToInt(paused), time.Now(), id,
	))
}

// UpdateSpecialFlags writes the cached paused flag.
func (db *DB) UpdateSpecialFlags(ctx context.Context, id int64, isPaused bool) error {
	return requireRow(db.ExecContext(ctx,
		`UPDATE special_items SET is_paused = ?, updated_at = ? WHERE id = ?`,
		boolToInt(isPaused), time.Now(), id,
	))
}

// ListSpecialHours returns the configured per-weekday special windows.
func (db *DB) ListSpecialHours(ctx context.Context) ([]model.SpecialHour, error) {
	rows, err := db.QueryContext(ctx, `SELECT day, start_time, end_time, updated_at FROM special_hours ORDER BY day`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SpecialHour
	for rows.Next() {
		var h model.SpecialHour
		if err := rows.Scan(&h.Day, &h.StartTime, &h.EndTime, &h.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// UpsertSpecialHour sets the special window for one weekday.
func (db *DB) UpsertSpecialHour(ctx context.Context, h model.SpecialHour) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO special_hours (day, start_time, end_time, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(day) DO UPDATE SET
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			updated_at = excluded.updated_at`,
		h.Day, h.StartTime, h.EndTime, time.Now(),
	)
	return err
}
