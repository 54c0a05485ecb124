package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"emitenwatch/internal/domain"
)

const groupsCacheKey = "groups"

func itemsCacheKey(groupID int64) string {
	return fmt.Sprintf("items:%d", groupID)
}

// groupCacheRepository implements domain.GroupCacheRepository
type groupCacheRepository struct {
	db *DB
}

// NewGroupCacheRepository creates a new group cache repository
func NewGroupCacheRepository(db *DB) domain.GroupCacheRepository {
	return &groupCacheRepository{db: db}
}

// Get retrieves the cached group list and its sync timestamp
func (r *groupCacheRepository) Get(ctx context.Context) (*domain.CachedGroups, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT group_id, name, emoji, is_default
		FROM cached_groups
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cached groups: %w", err)
	}
	defer rows.Close()

	var groups []domain.WatchlistGroup
	for rows.Next() {
		var g domain.WatchlistGroup
		var isDefault int
		if err := rows.Scan(&g.ID, &g.Name, &g.Emoji, &isDefault); err != nil {
			return nil, fmt.Errorf("failed to scan cached group: %w", err)
		}
		g.IsDefault = isDefault != 0
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cached groups: %w", err)
	}

	syncedAt, err := r.db.syncedAt(ctx, groupsCacheKey)
	if err != nil {
		return nil, err
	}
	return &domain.CachedGroups{Groups: groups, SyncedAt: syncedAt}, nil
}

// Replace overwrites the whole group list inside one transaction
func (r *groupCacheRepository) Replace(ctx context.Context, groups []domain.WatchlistGroup, syncedAt time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin group replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cached_groups`); err != nil {
		return fmt.Errorf("failed to clear cached groups: %w", err)
	}
	for i, g := range groups {
		isDefault := 0
		if g.IsDefault {
			isDefault = 1
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO cached_groups (group_id, name, emoji, is_default, position)
			VALUES (?, ?, ?, ?, ?)
		`, g.ID, g.Name, g.Emoji, isDefault, i)
		if err != nil {
			return fmt.Errorf("failed to insert cached group %d: %w", g.ID, err)
		}
	}
	if err := stampSyncedAt(ctx, tx, groupsCacheKey, syncedAt); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit group replace: %w", err)
	}
	return nil
}

// itemCacheRepository implements domain.ItemCacheRepository
type itemCacheRepository struct {
	db *DB
}

// NewItemCacheRepository creates a new item cache repository
func NewItemCacheRepository(db *DB) domain.ItemCacheRepository {
	return &itemCacheRepository{db: db}
}

// Get retrieves one group's cached item list and its sync timestamp
func (r *itemCacheRepository) Get(ctx context.Context, groupID int64) (*domain.CachedItems, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT item_id, company_id, symbol, company_name, sector, last_price, percent_change
		FROM cached_items
		WHERE group_id = ?
		ORDER BY position
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cached items: %w", err)
	}
	defer rows.Close()

	var items []domain.WatchlistItem
	for rows.Next() {
		var it domain.WatchlistItem
		var priceStr, percentStr string
		if err := rows.Scan(&it.ID, &it.CompanyID, &it.Symbol, &it.CompanyName, &it.Sector, &priceStr, &percentStr); err != nil {
			return nil, fmt.Errorf("failed to scan cached item: %w", err)
		}
		price, err := decimal.NewFromString(priceStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse last_price: %w", err)
		}
		percent, err := decimal.NewFromString(percentStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse percent_change: %w", err)
		}
		it.LastPrice = price
		it.PercentChange = percent
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cached items: %w", err)
	}

	syncedAt, err := r.db.syncedAt(ctx, itemsCacheKey(groupID))
	if err != nil {
		return nil, err
	}
	return &domain.CachedItems{GroupID: groupID, Items: items, SyncedAt: syncedAt}, nil
}

// Replace overwrites the group's whole item list inside one transaction.
// Flags are not persisted here; they are owned by symbol_flags and joined
// at read time.
func (r *itemCacheRepository) Replace(ctx context.Context, groupID int64, items []domain.WatchlistItem, syncedAt time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin item replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cached_items WHERE group_id = ?`, groupID); err != nil {
		return fmt.Errorf("failed to clear cached items: %w", err)
	}
	for i, it := range items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO cached_items
				(group_id, symbol, item_id, company_id, company_name, sector, last_price, percent_change, position)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, groupID, it.CanonicalSymbol(), it.ID, it.CompanyID, it.CompanyName, it.Sector,
			it.LastPrice.String(), it.PercentChange.String(), i)
		if err != nil {
			return fmt.Errorf("failed to insert cached item %s: %w", it.CanonicalSymbol(), err)
		}
	}
	if err := stampSyncedAt(ctx, tx, itemsCacheKey(groupID), syncedAt); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit item replace: %w", err)
	}
	return nil
}

// DeleteBySymbol removes one item row. The record's synced_at stays as it
// was: the remaining list is still the result of the last successful sync.
func (r *itemCacheRepository) DeleteBySymbol(ctx context.Context, groupID int64, symbol string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM cached_items WHERE group_id = ? AND symbol = ?
	`, groupID, symbol)
	if err != nil {
		return fmt.Errorf("failed to delete cached item %s: %w", symbol, err)
	}
	return nil
}

func (db *DB) syncedAt(ctx context.Context, cacheKey string) (time.Time, error) {
	var unixNano int64
	err := db.QueryRowContext(ctx, `
		SELECT synced_at FROM sync_state WHERE cache_key = ?
	`, cacheKey).Scan(&unixNano)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("failed to read sync state for %s: %w", cacheKey, err)
	}
	return time.Unix(0, unixNano), nil
}

func stampSyncedAt(ctx context.Context, tx *sql.Tx, cacheKey string, syncedAt time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO sync_state (cache_key, synced_at) VALUES (?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET synced_at = excluded.synced_at
	`, cacheKey, syncedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to stamp sync state for %s: %w", cacheKey, err)
	}
	return nil
}
