package db

import (
	"context"

	"backoffice/internal/model"
)

// ListItems returns all active menu items with their category names.
func (db *DB) ListItems(ctx context.Context) ([]model.MenuItem, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, created_at, updated_at
		FROM menu_items WHERE is_active = 1 ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.MenuItem
	index := make(map[int64]int)
	for rows.Next() {
		var it model.MenuItem
		if err := rows.Scan(&it.ID, &it.Name, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, err
		}
		it.Categories = []string{}
		index[it.ID] = len(items)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	memberships, err := db.QueryContext(ctx, `
		SELECT item_id, category_name FROM menu_item_categories ORDER BY item_id, position`)
	if err != nil {
		return nil, err
	}
	defer memberships.Close()

	for memberships.Next() {
		var itemID int64
		var name string
		if err := memberships.Scan(&itemID, &name); err != nil {
			return nil, err
		}
		if i, ok := index[itemID]; ok {
			items[i].Categories = append(items[i].Categories, name)
		}
	}
	return items, memberships.Err()
}

// GetItem returns an active menu item or sql.ErrNoRows.
func (db *DB) GetItem(ctx context.Context, id int64) (*model.MenuItem, error) {
	var it model.MenuItem
	err := db.QueryRowContext(ctx, `
		SELECT id, name, created_at, updated_at
		FROM menu_items WHERE id = ? AND is_active = 1`, id,
	).Scan(&it.ID, &it.Name, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT category_name FROM menu_item_categories WHERE item_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	it.Categories = []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		it.Categories = append(it.Categories, name)
	}
	return &it, rows.Err()
}
