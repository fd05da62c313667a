package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"backoffice/internal/model"
)

const categoryColumns = `id, name, schedule_json, manual_pause, sold_out_enabled, sold_out_end_time,
	sold_out_set_on, is_paused, is_sold_out, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCategory(row rowScanner) (*model.Category, error) {
	var c model.Category
	var scheduleJSON string
	if err := row.Scan(
		&c.ID, &c.Name, &scheduleJSON, &c.ManualPause, &c.SoldOut.Enabled, &c.SoldOut.EndTime,
		&c.SoldOut.SetOn, &c.IsPaused, &c.IsSoldOut, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	// Corrupt JSON is read as a disabled schedule so the category stays open.
	if err := json.Unmarshal([]byte(scheduleJSON), &c.Schedule); err != nil {
		c.Schedule = model.ScheduleRecord{Type: "daily"}
	}
	return &c, nil
}

// ListCategories returns all active categories ordered by name.
func (db *DB) ListCategories(ctx context.Context) ([]model.Category, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+categoryColumns+`
		FROM categories WHERE is_active = 1 ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// GetCategory returns an active category or sql.ErrNoRows.
func (db *DB) GetCategory(ctx context.Context, id int64) (*model.Category, error) {
	row := db.QueryRowContext(ctx, `SELECT `+categoryColumns+`
		FROM categories WHERE id = ? AND is_active = 1`, id)
	return scanCategory(row)
}

// SetCategorySchedule replaces the persisted schedule record.
func (db *DB) SetCategorySchedule(ctx context.Context, id int64, rec model.ScheduleRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal schedule: %w", err)
	}
	return requireRow(db.ExecContext(ctx,
		`UPDATE categories SET schedule_json = ?, updated_at = ? WHERE id = ? AND is_active = 1`,
		string(data), time.Now(), id,
	))
}

// SetCategoryManualPause sets the operator pause flag.
func (db *DB) SetCategoryManualPause(ctx context.Context, id int64, paused bool) error {
	return requireRow(db.ExecContext(ctx,
		`UPDATE categories SET manual_pause = ?, updated_at = ? WHERE id = ? AND is_active = 1`,
		boolToInt(paused), time.Now(), id,
	))
}

// SetCategorySoldOut stores the sold-out override as given.
func (db *DB) SetCategorySoldOut(ctx context.Context, id int64, rec model.SoldOutRecord) error {
	return requireRow(db.ExecContext(ctx, `
		UPDATE categories
		SET sold_out_enabled = ?, sold_out_end_time = ?, sold_out_set_on = ?, updated_at = ?
		WHERE id = ? AND is_active = 1`,
		boolToInt(rec.Enabled), rec.EndTime, rec.SetOn, time.Now(), id,
	))
}

// ClearCategorySoldOut deactivates the override only if it still matches seen,
// so an override placed after the caller read the row survives.
func (db *DB) ClearCategorySoldOut(ctx context.Context, id int64, seen model.SoldOutRecord) (bool, error) {
	res, err := db.ExecContext(ctx, `
		UPDATE categories
		SET sold_out_enabled = 0, sold_out_end_time = '', sold_out_set_on = '', updated_at = ?
		WHERE id = ? AND sold_out_enabled = 1 AND sold_out_end_time = ? AND sold_out_set_on = ?`,
		time.Now(), id, seen.EndTime, seen.SetOn,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// UpdateCategoryFlags writes the cached availability flags.
func (db *DB) UpdateCategoryFlags(ctx context.Context, id int64, isPaused, isSoldOut bool) error {
	return requireRow(db.ExecContext(ctx,
		`UPDATE categories SET is_paused = ?, is_sold_out = ?, updated_at = ? WHERE id = ?`,
		boolToInt(isPaused), boolToInt(isSoldOut), time.Now(), id,
	))
}
