package watchlist

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"emitenwatch/internal/domain"
	"emitenwatch/internal/usecase/enrich"
)

// MockUpstreamClient is a mock implementation of UpstreamClient for testing
type MockUpstreamClient struct {
	mock.Mock
}

func (m *MockUpstreamClient) FetchGroups(ctx context.Context) ([]domain.WatchlistGroup, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.WatchlistGroup), args.Error(1)
}

func (m *MockUpstreamClient) FetchItems(ctx context.Context, groupID int64) ([]domain.WatchlistItem, error) {
	args := m.Called(ctx, groupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.WatchlistItem), args.Error(1)
}

func (m *MockUpstreamClient) FetchDetail(ctx context.Context, symbol string) (*domain.SymbolDetail, error) {
	args := m.Called(ctx, symbol)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SymbolDetail), args.Error(1)
}

func (m *MockUpstreamClient) DeleteItem(ctx context.Context, groupID, itemID int64) error {
	args := m.Called(ctx, groupID, itemID)
	return args.Error(0)
}

// MockGroupCacheRepository is a mock implementation of GroupCacheRepository for testing
type MockGroupCacheRepository struct {
	mock.Mock
}

func (m *MockGroupCacheRepository) Get(ctx context.Context) (*domain.CachedGroups, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CachedGroups), args.Error(1)
}

func (m *MockGroupCacheRepository) Replace(ctx context.Context, groups []domain.WatchlistGroup, syncedAt time.Time) error {
	args := m.Called(ctx, groups, syncedAt)
	return args.Error(0)
}

// MockItemCacheRepository is a mock implementation of ItemCacheRepository for testing
type MockItemCacheRepository struct {
	mock.Mock
}

func (m *MockItemCacheRepository) Get(ctx context.Context, groupID int64) (*domain.CachedItems, error) {
	args := m.Called(ctx, groupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CachedItems), args.Error(1)
}

func (m *MockItemCacheRepository) Replace(ctx context.Context, groupID int64, items []domain.WatchlistItem, syncedAt time.Time) error {
	args := m.Called(ctx, groupID, items, syncedAt)
	return args.Error(0)
}

func (m *MockItemCacheRepository) DeleteBySymbol(ctx context.Context, groupID int64, symbol string) error {
	args := m.Called(ctx, groupID, symbol)
	return args.Error(0)
}

// MockFlagRepository is a mock implementation of FlagRepository for testing
type MockFlagRepository struct {
	mock.Mock
}

func (m *MockFlagRepository) GetBySymbols(ctx context.Context, symbols []string) (map[string]domain.Flag, error) {
	args := m.Called(ctx, symbols)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]domain.Flag), args.Error(1)
}

func (m *MockFlagRepository) Set(ctx context.Context, symbol string, flag domain.Flag) error {
	args := m.Called(ctx, symbol, flag)
	return args.Error(0)
}

func newTestService() (*Service, *MockUpstreamClient, *MockGroupCacheRepository, *MockItemCacheRepository, *MockFlagRepository) {
	upstream := new(MockUpstreamClient)
	groupCache := new(MockGroupCacheRepository)
	itemCache := new(MockItemCacheRepository)
	flags := new(MockFlagRepository)
	service := NewService(upstream, groupCache, itemCache, enrich.NewEnricher(flags, upstream))
	return service, upstream, groupCache, itemCache, flags
}

func testGroups() []domain.WatchlistGroup {
	return []domain.WatchlistGroup{
		{ID: 1, Name: "Main", IsDefault: true},
		{ID: 2, Name: "Banks", Emoji: "🏦"},
	}
}

func testItems() []domain.WatchlistItem {
	return []domain.WatchlistItem{
		{ID: 10, CompanyID: 100, Symbol: "BBCA", CompanyName: "Bank Central Asia", LastPrice: decimal.NewFromInt(9500)},
		{ID: 11, CompanyID: 101, Symbol: "TLKM", CompanyName: "Telkom Indonesia", LastPrice: decimal.NewFromInt(3200)},
	}
}

func TestGetGroups_CacheHitNeverCallsUpstream(t *testing.T) {
	ctx := context.Background()
	service, upstream, groupCache, _, _ := newTestService()

	syncedAt := time.Now().Add(-time.Hour)
	groupCache.On("Get", ctx).Return(&domain.CachedGroups{Groups: testGroups(), SyncedAt: syncedAt}, nil)

	res, err := service.GetGroups(ctx, false)

	assert.NoError(t, err)
	assert.Equal(t, domain.SourceCache, res.Source)
	assert.Equal(t, syncedAt, res.SyncedAt)
	assert.Empty(t, res.Warning)
	assert.Len(t, res.Groups, 2)

	upstream.AssertNotCalled(t, "FetchGroups")
}

func TestGetGroups_EmptyCacheTriggersFirstSync(t *testing.T) {
	ctx := context.Background()
	service, upstream, groupCache, _, _ := newTestService()

	groupCache.On("Get", ctx).Return(&domain.CachedGroups{}, nil)
	upstream.On("FetchGroups", ctx).Return(testGroups(), nil)
	groupCache.On("Replace", ctx, testGroups(), mock.AnythingOfType("time.Time")).Return(nil)

	res, err := service.GetGroups(ctx, false)

	assert.NoError(t, err)
	assert.Equal(t, domain.SourceUpstream, res.Source)
	assert.False(t, res.SyncedAt.IsZero())

	groupCache.AssertExpectations(t)
	upstream.AssertExpectations(t)
}

func TestGetGroups_ForcedSyncCallsUpstreamFirst(t *testing.T) {
	ctx := context.Background()
	service, upstream, groupCache, _, _ := newTestService()

	upstream.On("FetchGroups", ctx).Return(testGroups(), nil)
	groupCache.On("Replace", ctx, testGroups(), mock.AnythingOfType("time.Time")).Return(nil)

	res, err := service.GetGroups(ctx, true)

	assert.NoError(t, err)
	assert.Equal(t, domain.SourceUpstream, res.Source)

	// Cache is only consulted for fallback, which a successful sync skips.
	groupCache.AssertNotCalled(t, "Get")
}

func TestGetGroups_ForcedSyncFallsBackToNonEmptyCache(t *testing.T) {
	ctx := context.Background()
	service, upstream, groupCache, _, _ := newTestService()

	syncedAt := time.Now().Add(-2 * time.Hour)
	upstream.On("FetchGroups", ctx).Return(nil, errors.New("connection refused"))
	groupCache.On("Get", ctx).Return(&domain.CachedGroups{Groups: testGroups(), SyncedAt: syncedAt}, nil)

	res, err := service.GetGroups(ctx, true)

	assert.NoError(t, err)
	assert.Equal(t, domain.SourceCache, res.Source)
	assert.Equal(t, StaleDataWarning, res.Warning)
	assert.Equal(t, syncedAt, res.SyncedAt)
}

func TestGetGroups_ForcedSyncWithEmptyCacheFails(t *testing.T) {
	ctx := context.Background()
	service, upstream, groupCache, _, _ := newTestService()

	upstream.On("FetchGroups", ctx).Return(nil, errors.New("connection refused"))
	groupCache.On("Get", ctx).Return(&domain.CachedGroups{}, nil)

	res, err := service.GetGroups(ctx, true)

	assert.Error(t, err)
	assert.Nil(t, res)

	var fetchErr *domain.FetchFailedError
	assert.ErrorAs(t, err, &fetchErr)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestGetGroups_CacheWriteFailureDoesNotBlockResponse(t *testing.T) {
	ctx := context.Background()
	service, upstream, groupCache, _, _ := newTestService()

	upstream.On("FetchGroups", ctx).Return(testGroups(), nil)
	groupCache.On("Replace", ctx, testGroups(), mock.AnythingOfType("time.Time")).Return(errors.New("disk full"))

	res, err := service.GetGroups(ctx, true)

	assert.NoError(t, err)
	assert.Equal(t, domain.SourceUpstream, res.Source)
}

func TestGetItems_CacheHitNeverCallsUpstream(t *testing.T) {
	ctx := context.Background()
	service, upstream, _, itemCache, flags := newTestService()

	syncedAt := time.Now().Add(-time.Minute)
	itemCache.On("Get", ctx, int64(1)).Return(&domain.CachedItems{GroupID: 1, Items: testItems(), SyncedAt: syncedAt}, nil)
	flags.On("GetBySymbols", ctx, []string{"BBCA", "TLKM"}).
		Return(map[string]domain.Flag{"BBCA": domain.FlagOK}, nil)

	res, err := service.GetItems(ctx, 1, false)

	assert.NoError(t, err)
	assert.Equal(t, domain.SourceCache, res.Source)
	assert.Equal(t, domain.FlagOK, res.Items[0].Flag)
	assert.Equal(t, domain.FlagNone, res.Items[1].Flag)

	upstream.AssertNotCalled(t, "FetchItems")
	upstream.AssertNotCalled(t, "FetchDetail")
}

func TestGetItems_ForcedSyncEnrichesAndPersists(t *testing.T) {
	ctx := context.Background()
	service, upstream, _, itemCache, flags := newTestService()

	upstream.On("FetchItems", ctx, int64(1)).Return(testItems(), nil)
	upstream.On("FetchDetail", ctx, "BBCA").
		Return(&domain.SymbolDetail{Symbol: "BBCA", Sector: "Finance", Price: decimal.NewFromInt(9500)}, nil)
	// One symbol's detail lookup fails; that item keeps its baseline fields.
	upstream.On("FetchDetail", ctx, "TLKM").Return(nil, errors.New("timeout"))
	flags.On("GetBySymbols", ctx, []string{"BBCA", "TLKM"}).
		Return(map[string]domain.Flag{"TLKM": domain.FlagNG}, nil)
	itemCache.On("Replace", ctx, int64(1), mock.Anything, mock.AnythingOfType("time.Time")).Return(nil)

	res, err := service.GetItems(ctx, 1, true)

	assert.NoError(t, err)
	assert.Equal(t, domain.SourceUpstream, res.Source)
	assert.Len(t, res.Items, 2)
	assert.Equal(t, "Finance", res.Items[0].Sector)
	assert.Empty(t, res.Items[1].Sector)
	assert.Equal(t, domain.FlagNG, res.Items[1].Flag)

	itemCache.AssertExpectations(t)
}

func TestGetItems_CacheReadNeverWritesThrough(t *testing.T) {
	ctx := context.Background()
	service, _, _, itemCache, flags := newTestService()

	itemCache.On("Get", ctx, int64(1)).Return(&domain.CachedItems{GroupID: 1, Items: testItems(), SyncedAt: time.Now()}, nil)
	flags.On("GetBySymbols", ctx, mock.Anything).Return(map[string]domain.Flag{}, nil)

	_, err := service.GetItems(ctx, 1, false)

	assert.NoError(t, err)
	itemCache.AssertNotCalled(t, "Replace")
}

func TestGetItems_EmptyUpstreamListIsSuccess(t *testing.T) {
	ctx := context.Background()
	service, upstream, _, itemCache, _ := newTestService()

	upstream.On("FetchItems", ctx, int64(7)).Return([]domain.WatchlistItem{}, nil)

	res, err := service.GetItems(ctx, 7, true)

	assert.NoError(t, err)
	assert.Equal(t, domain.SourceUpstream, res.Source)
	assert.Empty(t, res.Items)

	itemCache.AssertNotCalled(t, "Replace")
	upstream.AssertNotCalled(t, "FetchDetail")
}

func TestGetItems_ForcedSyncFallsBackToNonEmptyCache(t *testing.T) {
	ctx := context.Background()
	service, upstream, _, itemCache, flags := newTestService()

	syncedAt := time.Now().Add(-3 * time.Hour)
	upstream.On("FetchItems", ctx, int64(1)).Return(nil, errors.New("status 503"))
	itemCache.On("Get", ctx, int64(1)).Return(&domain.CachedItems{GroupID: 1, Items: testItems(), SyncedAt: syncedAt}, nil)
	flags.On("GetBySymbols", ctx, mock.Anything).Return(map[string]domain.Flag{}, nil)

	res, err := service.GetItems(ctx, 1, true)

	assert.NoError(t, err)
	assert.Equal(t, domain.SourceCache, res.Source)
	assert.Equal(t, StaleDataWarning, res.Warning)
}

func TestGetItems_MissingGroupIDIsValidationError(t *testing.T) {
	ctx := context.Background()
	service, _, _, _, _ := newTestService()

	_, err := service.GetItems(ctx, 0, false)

	var validationErr *domain.ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestDeleteItem_UpstreamFailureLeavesCacheUntouched(t *testing.T) {
	ctx := context.Background()
	service, upstream, _, itemCache, _ := newTestService()

	upstream.On("DeleteItem", ctx, int64(1), int64(10)).Return(errors.New("status 500"))

	err := service.DeleteItem(ctx, 1, 10)

	assert.Error(t, err)
	itemCache.AssertNotCalled(t, "Get")
	itemCache.AssertNotCalled(t, "DeleteBySymbol")
}

func TestDeleteItem_RemovesCachedEntryByItemID(t *testing.T) {
	ctx := context.Background()
	service, upstream, _, itemCache, _ := newTestService()

	upstream.On("DeleteItem", ctx, int64(1), int64(10)).Return(nil)
	itemCache.On("Get", ctx, int64(1)).Return(&domain.CachedItems{GroupID: 1, Items: testItems(), SyncedAt: time.Now()}, nil)
	itemCache.On("DeleteBySymbol", ctx, int64(1), "BBCA").Return(nil)

	err := service.DeleteItem(ctx, 1, 10)

	assert.NoError(t, err)
	itemCache.AssertExpectations(t)
}

func TestDeleteItem_FallsBackToCompanyIDMatch(t *testing.T) {
	ctx := context.Background()
	service, upstream, _, itemCache, _ := newTestService()

	upstream.On("DeleteItem", ctx, int64(1), int64(101)).Return(nil)
	itemCache.On("Get", ctx, int64(1)).Return(&domain.CachedItems{GroupID: 1, Items: testItems(), SyncedAt: time.Now()}, nil)
	itemCache.On("DeleteBySymbol", ctx, int64(1), "TLKM").Return(nil)

	err := service.DeleteItem(ctx, 1, 101)

	assert.NoError(t, err)
	itemCache.AssertExpectations(t)
}

func TestDeleteItem_CacheFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	service, upstream, _, itemCache, _ := newTestService()

	upstream.On("DeleteItem", ctx, int64(1), int64(10)).Return(nil)
	itemCache.On("Get", ctx, int64(1)).Return(nil, errors.New("db locked"))

	err := service.DeleteItem(ctx, 1, 10)

	assert.NoError(t, err)
}

func TestDeleteItem_MissingIDsAreValidationErrors(t *testing.T) {
	ctx := context.Background()
	service, upstream, _, _, _ := newTestService()

	var validationErr *domain.ValidationError
	assert.ErrorAs(t, service.DeleteItem(ctx, 0, 10), &validationErr)
	assert.ErrorAs(t, service.DeleteItem(ctx, 1, 0), &validationErr)

	upstream.AssertNotCalled(t, "DeleteItem")
}
