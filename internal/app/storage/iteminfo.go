package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ErikKalkoken/go-set"

	"github.com/krashnark/gw2tracker/internal/app"
)

type UpdateOrCreateItemInfoParams struct {
	ID          app.ItemID
	Name        string
	VendorValue int
}

// UpdateOrCreateItemInfo stores the metadata of one item.
func (st *Storage) UpdateOrCreateItemInfo(ctx context.Context, arg UpdateOrCreateItemInfoParams) error {
	if arg.ID == 0 {
		return fmt.Errorf("UpdateOrCreateItemInfo %+v: %w", arg, app.ErrInvalid)
	}
	_, err := st.db.ExecContext(
		ctx,
		`INSERT INTO item_infos (id, name, vendor_value) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = ?, vendor_value = ?`,
		arg.ID, arg.Name, arg.VendorValue, arg.Name, arg.VendorValue,
	)
	if err != nil {
		return fmt.Errorf("UpdateOrCreateItemInfo %+v: %w", arg, err)
	}
	return nil
}

// GetItemInfo returns the stored metadata of one item.
func (st *Storage) GetItemInfo(ctx context.Context, id app.ItemID) (*app.ItemInfo, error) {
	var info app.ItemInfo
	err := st.db.
		QueryRowContext(ctx, "SELECT id, name, vendor_value FROM item_infos WHERE id = ?", id).
		Scan(&info.ID, &info.Name, &info.VendorValue)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = app.ErrNotFound
		}
		return nil, fmt.Errorf("get item info %d: %w", id, err)
	}
	return &info, nil
}

// ListItemInfos returns the stored metadata for the given items.
// Unknown ids are absent from the result.
func (st *Storage) ListItemInfos(ctx context.Context, ids set.Set[app.ItemID]) (map[app.ItemID]app.ItemInfo, error) {
	infos := make(map[app.ItemID]app.ItemInfo, ids.Size())
	for id := range ids.All() {
		info, err := st.GetItemInfo(ctx, id)
		if errors.Is(err, app.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		infos[id] = *info
	}
	return infos, nil
}

// MissingItemInfos returns which of the given items have no stored metadata.
func (st *Storage) MissingItemInfos(ctx context.Context, ids set.Set[app.ItemID]) (set.Set[app.ItemID], error) {
	rows, err := st.db.QueryContext(ctx, "SELECT id FROM item_infos")
	if err != nil {
		return set.Set[app.ItemID]{}, fmt.Errorf("missing item infos: %w", err)
	}
	defer rows.Close()
	var current []app.ItemID
	for rows.Next() {
		var id app.ItemID
		if err := rows.Scan(&id); err != nil {
			return set.Set[app.ItemID]{}, fmt.Errorf("missing item infos: %w", err)
		}
		current = append(current, id)
	}
	if err := rows.Err(); err != nil {
		return set.Set[app.ItemID]{}, fmt.Errorf("missing item infos: %w", err)
	}
	return set.Difference(ids, set.Of(current...)), nil
}
