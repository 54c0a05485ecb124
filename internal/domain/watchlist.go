package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Flag is a locally-owned status annotation on a watchlist symbol.
// It is never part of upstream truth; it is joined into items at read time.
type Flag string

const (
	FlagOK      Flag = "OK"
	FlagNG      Flag = "NG"
	FlagNeutral Flag = "Neutral"
	FlagNone    Flag = ""
)

// Valid reports whether f is one of the known flag values.
func (f Flag) Valid() bool {
	switch f {
	case FlagOK, FlagNG, FlagNeutral, FlagNone:
		return true
	}
	return false
}

// WatchlistGroup represents a named watchlist owned by the upstream provider.
// Groups are replaced wholesale on each sync; there are no partial updates.
type WatchlistGroup struct {
	ID        int64  `json:"watchlist_id"`
	Name      string `json:"name"`
	Emoji     string `json:"emoji,omitempty"`
	IsDefault bool   `json:"is_default"`
}

// WatchlistItem is the single normalized item shape produced at the
// upstream client boundary. All downstream code depends only on this shape.
// An item is owned per group and identified by (group id, symbol).
type WatchlistItem struct {
	ID            int64           `json:"id"`
	CompanyID     int64           `json:"company_id"`
	Symbol        string          `json:"symbol"`
	CompanyName   string          `json:"company_name"`
	Sector        string          `json:"sector,omitempty"`
	LastPrice     decimal.Decimal `json:"last_price"`
	PercentChange decimal.Decimal `json:"percent"`
	Flag          Flag            `json:"flag,omitempty"`
}

// CanonicalSymbol returns the uppercased symbol used as the cache and flag key.
func (i *WatchlistItem) CanonicalSymbol() string {
	return strings.ToUpper(i.Symbol)
}

// CachedGroups is the cache record for the group list.
// SyncedAt reflects the wall-clock time of the last successful write.
type CachedGroups struct {
	Groups   []WatchlistGroup
	SyncedAt time.Time
}

// CachedItems is the cache record for one group's item list.
type CachedItems struct {
	GroupID  int64
	Items    []WatchlistItem
	SyncedAt time.Time
}

// Source identifies where a read was served from.
type Source string

const (
	SourceUpstream Source = "upstream"
	SourceCache    Source = "cache"
)
