package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GroupCacheRepository is the durable store for the cached group list.
type GroupCacheRepository interface {
	// Get returns the cached group list. A record that was never written
	// yields an empty list and a zero SyncedAt, not an error.
	Get(ctx context.Context) (*CachedGroups, error)

	// Replace overwrites the whole group list and stamps syncedAt.
	Replace(ctx context.Context, groups []WatchlistGroup, syncedAt time.Time) error
}

// ItemCacheRepository stores one item-list record per group.
type ItemCacheRepository interface {
	// Get returns the cached item list for a group, empty when never synced.
	Get(ctx context.Context, groupID int64) (*CachedItems, error)

	// Replace overwrites the group's whole item list and stamps syncedAt.
	Replace(ctx context.Context, groupID int64, items []WatchlistItem, syncedAt time.Time) error

	// DeleteBySymbol removes a single item from the group's record.
	// The record's SyncedAt is left untouched.
	DeleteBySymbol(ctx context.Context, groupID int64, symbol string) error
}

// FlagRepository stores locally-owned annotation flags keyed by
// uppercased symbol.
type FlagRepository interface {
	// GetBySymbols returns the flags for the given symbols. Symbols with
	// no flag row are simply absent from the result map.
	GetBySymbols(ctx context.Context, symbols []string) (map[string]Flag, error)

	// Set writes the flag for a symbol. FlagNone removes the row.
	Set(ctx context.Context, symbol string, flag Flag) error
}

// SettingRepository is the flat profile-settings map.
type SettingRepository interface {
	// Get returns the value for key, or "" when unset.
	Get(ctx context.Context, key string) (string, error)

	// Set writes the value for key.
	Set(ctx context.Context, key, value string) error
}

// AnalysisJobRepository stores append-only analysis job records.
type AnalysisJobRepository interface {
	// Create inserts a new job record.
	Create(ctx context.Context, job *AnalysisJob) error

	// UpdateStatus advances the status of an existing record.
	UpdateStatus(ctx context.Context, id uuid.UUID, status JobStatus, result, errorMessage string) error

	// GetLatest returns the most recently created record for a symbol,
	// or nil when the symbol has no records.
	GetLatest(ctx context.Context, symbol string) (*AnalysisJob, error)

	// ListBySymbol returns all records for a symbol, newest first.
	ListBySymbol(ctx context.Context, symbol string) ([]*AnalysisJob, error)
}

// SymbolDetail is per-symbol enrichment info from the provider.
type SymbolDetail struct {
	Symbol string
	Sector string
	Price  decimal.Decimal
}

// UpstreamClient is the external live financial-data provider.
// Every call may fail with an *UpstreamError.
type UpstreamClient interface {
	FetchGroups(ctx context.Context) ([]WatchlistGroup, error)
	FetchItems(ctx context.Context, groupID int64) ([]WatchlistItem, error)
	FetchDetail(ctx context.Context, symbol string) (*SymbolDetail, error)
	DeleteItem(ctx context.Context, groupID, itemID int64) error
}

// Analyzer performs the opaque analysis computation for a symbol.
// The stock-target formulas live upstream; callers only consume the result.
type Analyzer interface {
	Analyze(ctx context.Context, symbol, analysisContext string) (string, error)
}
