package sqlite

import (
	"context"
	"fmt"
	"strings"

	"emitenwatch/internal/domain"
)

// flagRepository implements domain.FlagRepository
type flagRepository struct {
	db *DB
}

// NewFlagRepository creates a new flag repository
func NewFlagRepository(db *DB) domain.FlagRepository {
	return &flagRepository{db: db}
}

// GetBySymbols retrieves flags for the given symbols in one query
func (r *flagRepository) GetBySymbols(ctx context.Context, symbols []string) (map[string]domain.Flag, error) {
	flags := make(map[string]domain.Flag, len(symbols))
	if len(symbols) == 0 {
		return flags, nil
	}

	placeholders := strings.TrimRight(strings.Repeat("?,", len(symbols)), ",")
	args := make([]interface{}, len(symbols))
	for i, s := range symbols {
		args[i] = strings.ToUpper(s)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT symbol, flag FROM symbol_flags WHERE symbol IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query flags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var symbol string
		var flag domain.Flag
		if err := rows.Scan(&symbol, &flag); err != nil {
			return nil, fmt.Errorf("failed to scan flag: %w", err)
		}
		flags[symbol] = flag
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate flags: %w", err)
	}
	return flags, nil
}

// Set writes the flag for a symbol; FlagNone removes the row
func (r *flagRepository) Set(ctx context.Context, symbol string, flag domain.Flag) error {
	if !flag.Valid() {
		return domain.NewValidationError("unknown flag value %q", flag)
	}
	symbol = strings.ToUpper(symbol)

	if flag == domain.FlagNone {
		if _, err := r.db.ExecContext(ctx, `DELETE FROM symbol_flags WHERE symbol = ?`, symbol); err != nil {
			return fmt.Errorf("failed to clear flag for %s: %w", symbol, err)
		}
		return nil
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO symbol_flags (symbol, flag) VALUES (?, ?)
		ON CONFLICT(symbol) DO UPDATE SET flag = excluded.flag
	`, symbol, string(flag))
	if err != nil {
		return fmt.Errorf("failed to set flag for %s: %w", symbol, err)
	}
	return nil
}
