package watchlist

import (
	"context"
	"fmt"
	"log"
	"time"

	"emitenwatch/internal/domain"
	"emitenwatch/internal/usecase/enrich"
)

// StaleDataWarning marks a response that degraded to cached data because
// the upstream provider was unavailable.
const StaleDataWarning = "upstream unavailable, showing cached data"

// GroupsResult is the outcome of a group-list read.
type GroupsResult struct {
	Groups   []domain.WatchlistGroup
	Source   domain.Source
	SyncedAt time.Time
	Warning  string
}

// ItemsResult is the outcome of an item-list read.
type ItemsResult struct {
	GroupID  int64
	Items    []domain.WatchlistItem
	Source   domain.Source
	SyncedAt time.Time
	Warning  string
}

// Service is the cache-aside read/write policy over the upstream provider
// and the local cache store.
type Service struct {
	Upstream   domain.UpstreamClient
	GroupCache domain.GroupCacheRepository
	ItemCache  domain.ItemCacheRepository
	Enricher   *enrich.Enricher

	// Clock is a seam for tests; defaults to time.Now.
	Clock func() time.Time
}

// NewService creates a new Service instance.
func NewService(
	upstream domain.UpstreamClient,
	groupCache domain.GroupCacheRepository,
	itemCache domain.ItemCacheRepository,
	enricher *enrich.Enricher,
) *Service {
	return &Service{
		Upstream:   upstream,
		GroupCache: groupCache,
		ItemCache:  itemCache,
		Enricher:   enricher,
		Clock:      time.Now,
	}
}

// GetGroups returns the watchlist group list.
// Forced sync goes upstream first and degrades to non-empty cached data on
// failure. Otherwise the cache is served when non-empty; an empty cache is
// treated as first run and triggers an upstream sync.
func (s *Service) GetGroups(ctx context.Context, forceSync bool) (*GroupsResult, error) {
	if forceSync {
		res, err := s.syncGroups(ctx)
		if err == nil {
			return res, nil
		}
		cached, cacheErr := s.GroupCache.Get(ctx)
		if cacheErr == nil && len(cached.Groups) > 0 {
			log.Printf("[WARN] group sync failed, serving cache: %v", err)
			return &GroupsResult{
				Groups:   cached.Groups,
				Source:   domain.SourceCache,
				SyncedAt: cached.SyncedAt,
				Warning:  StaleDataWarning,
			}, nil
		}
		return nil, &domain.FetchFailedError{Key: "groups", Err: err}
	}

	cached, err := s.GroupCache.Get(ctx)
	if err != nil {
		log.Printf("[WARN] read group cache: %v", err)
	} else if len(cached.Groups) > 0 {
		return &GroupsResult{
			Groups:   cached.Groups,
			Source:   domain.SourceCache,
			SyncedAt: cached.SyncedAt,
		}, nil
	}

	// First run: nothing cached yet.
	res, err := s.syncGroups(ctx)
	if err != nil {
		return nil, &domain.FetchFailedError{Key: "groups", Err: err}
	}
	return res, nil
}

func (s *Service) syncGroups(ctx context.Context) (*GroupsResult, error) {
	groups, err := s.Upstream.FetchGroups(ctx)
	if err != nil {
		return nil, err
	}
	now := s.Clock()
	if err := s.GroupCache.Replace(ctx, groups, now); err != nil {
		// Cache write failures never block the primary response.
		log.Printf("[WARN] save group cache: %v", err)
	}
	return &GroupsResult{
		Groups:   groups,
		Source:   domain.SourceUpstream,
		SyncedAt: now,
	}, nil
}

// GetItems returns a group's item list, flags merged on every path.
// The policy mirrors GetGroups, scoped by group; upstream-sourced items are
// additionally detail-enriched and written back to the cache.
func (s *Service) GetItems(ctx context.Context, groupID int64, forceSync bool) (*ItemsResult, error) {
	if groupID <= 0 {
		return nil, domain.NewValidationError("groupId is required")
	}

	if forceSync {
		res, err := s.syncItems(ctx, groupID)
		if err == nil {
			return res, nil
		}
		cached, cacheErr := s.ItemCache.Get(ctx, groupID)
		if cacheErr == nil && len(cached.Items) > 0 {
			log.Printf("[WARN] item sync for group %d failed, serving cache: %v", groupID, err)
			return &ItemsResult{
				GroupID:  groupID,
				Items:    s.Enricher.MergeFlags(ctx, cached.Items),
				Source:   domain.SourceCache,
				SyncedAt: cached.SyncedAt,
				Warning:  StaleDataWarning,
			}, nil
		}
		return nil, &domain.FetchFailedError{Key: itemsKey(groupID), Err: err}
	}

	cached, err := s.ItemCache.Get(ctx, groupID)
	if err != nil {
		log.Printf("[WARN] read item cache for group %d: %v", groupID, err)
	} else if len(cached.Items) > 0 {
		return &ItemsResult{
			GroupID:  groupID,
			Items:    s.Enricher.MergeFlags(ctx, cached.Items),
			Source:   domain.SourceCache,
			SyncedAt: cached.SyncedAt,
		}, nil
	}

	res, err := s.syncItems(ctx, groupID)
	if err != nil {
		return nil, &domain.FetchFailedError{Key: itemsKey(groupID), Err: err}
	}
	return res, nil
}

func (s *Service) syncItems(ctx context.Context, groupID int64) (*ItemsResult, error) {
	items, err := s.Upstream.FetchItems(ctx, groupID)
	if err != nil {
		return nil, err
	}
	now := s.Clock()

	// An empty upstream list is a success: nothing to enrich or cache.
	if len(items) == 0 {
		return &ItemsResult{
			GroupID:  groupID,
			Items:    items,
			Source:   domain.SourceUpstream,
			SyncedAt: now,
		}, nil
	}

	items = s.Enricher.Enrich(ctx, items)
	if err := s.ItemCache.Replace(ctx, groupID, items, now); err != nil {
		log.Printf("[WARN] save item cache for group %d: %v", groupID, err)
	}
	return &ItemsResult{
		GroupID:  groupID,
		Items:    items,
		Source:   domain.SourceUpstream,
		SyncedAt: now,
	}, nil
}

// DeleteItem removes an item from a group. The upstream delete is
// authoritative; the cache removal afterwards is best effort and never
// turns a successful upstream delete into a reported failure.
func (s *Service) DeleteItem(ctx context.Context, groupID, itemID int64) error {
	if groupID <= 0 || itemID <= 0 {
		return domain.NewValidationError("groupId and itemId are required")
	}

	if err := s.Upstream.DeleteItem(ctx, groupID, itemID); err != nil {
		return err
	}

	s.removeCachedItem(ctx, groupID, itemID)
	return nil
}

// removeCachedItem resolves the deleted item's symbol by matching itemID
// against either the cached item id or its provider-assigned company id,
// first match wins, then removes that single entry.
func (s *Service) removeCachedItem(ctx context.Context, groupID, itemID int64) {
	cached, err := s.ItemCache.Get(ctx, groupID)
	if err != nil {
		log.Printf("[WARN] read item cache for delete of %d: %v", itemID, err)
		return
	}
	for i := range cached.Items {
		item := &cached.Items[i]
		if item.ID == itemID || item.CompanyID == itemID {
			if err := s.ItemCache.DeleteBySymbol(ctx, groupID, item.CanonicalSymbol()); err != nil {
				log.Printf("[WARN] remove %s from item cache: %v", item.CanonicalSymbol(), err)
			}
			return
		}
	}
	log.Printf("[WARN] deleted item %d not found in cache for group %d", itemID, groupID)
}

func itemsKey(groupID int64) string {
	return fmt.Sprintf("items:%d", groupID)
}
