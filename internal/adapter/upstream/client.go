// Package upstream implements the client for the external live
// financial-data provider. Provider payloads are loosely typed (field
// names and number formats vary); everything is normalized into the
// domain shapes here, at the boundary.
package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"emitenwatch/internal/domain"
)

const defaultHTTPTimeout = 30 * time.Second

// Client talks to the provider REST API with a bearer token.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// NewClient creates a new Client instance.
func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: defaultHTTPTimeout},
	}
}

var _ domain.UpstreamClient = (*Client)(nil)

// FetchGroups retrieves the live watchlist group list.
func (c *Client) FetchGroups(ctx context.Context) ([]domain.WatchlistGroup, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/v1/watchlist/groups")
	if err != nil {
		return nil, err
	}

	raw := gjson.GetBytes(body, "data")
	if !raw.IsArray() {
		return nil, badResponse("fetch groups", fmt.Errorf("missing data array"))
	}

	var groups []domain.WatchlistGroup
	raw.ForEach(func(_, g gjson.Result) bool {
		groups = append(groups, normalizeGroup(g))
		return true
	})
	return groups, nil
}

// FetchItems retrieves the live item list for one group.
func (c *Client) FetchItems(ctx context.Context, groupID int64) ([]domain.WatchlistItem, error) {
	body, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/watchlist/%d", groupID))
	if err != nil {
		return nil, err
	}

	raw := gjson.GetBytes(body, "data.result")
	if !raw.Exists() {
		return nil, badResponse("fetch items", fmt.Errorf("missing data.result"))
	}

	var items []domain.WatchlistItem
	raw.ForEach(func(_, it gjson.Result) bool {
		items = append(items, normalizeItem(it))
		return true
	})
	return items, nil
}

// FetchDetail retrieves per-symbol enrichment info.
func (c *Client) FetchDetail(ctx context.Context, symbol string) (*domain.SymbolDetail, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/v1/emiten/"+url.PathEscape(symbol)+"/info")
	if err != nil {
		return nil, err
	}

	data := gjson.GetBytes(body, "data")
	if !data.Exists() {
		return nil, badResponse("fetch detail", fmt.Errorf("missing data"))
	}
	return &domain.SymbolDetail{
		Symbol: strings.ToUpper(symbol),
		Sector: data.Get("sector").String(),
		Price:  normalizePrice(data.Get("price")),
	}, nil
}

// DeleteItem removes an item from a group on the provider side.
func (c *Client) DeleteItem(ctx context.Context, groupID, itemID int64) error {
	_, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/v1/watchlist/%d/company/%d", groupID, itemID))
	return err
}

// Analyze asks the provider for the stock-target analysis of a symbol.
// The numeric formulas are the provider's; the result is consumed opaquely.
func (c *Client) Analyze(ctx context.Context, symbol, analysisContext string) (string, error) {
	path := "/api/v1/emiten/" + url.PathEscape(strings.ToUpper(symbol)) + "/analysis"
	if analysisContext != "" {
		path += "?context=" + url.QueryEscape(analysisContext)
	}
	body, err := c.do(ctx, http.MethodGet, path)
	if err != nil {
		return "", err
	}
	data := gjson.GetBytes(body, "data")
	if !data.Exists() {
		return "", badResponse("analyze", fmt.Errorf("missing data"))
	}
	return data.Raw, nil
}

var _ domain.Analyzer = (*Client)(nil)

// do performs one request and maps every failure to a typed
// *domain.UpstreamError. Auth failures are derived from the status code,
// never from message text.
func (c *Client) do(ctx context.Context, method, path string) ([]byte, error) {
	op := method + " " + path

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, nil)
	if err != nil {
		return nil, &domain.UpstreamError{Reason: domain.ReasonBadResponse, Op: op, Err: err}
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, &domain.UpstreamError{Reason: domain.ReasonNetwork, Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.UpstreamError{Reason: domain.ReasonNetwork, Op: op, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &domain.UpstreamError{
			Reason: domain.ReasonAuth,
			Op:     op,
			Err:    fmt.Errorf("status %d", resp.StatusCode),
		}
	case resp.StatusCode != http.StatusOK:
		return nil, &domain.UpstreamError{
			Reason: domain.ReasonBadResponse,
			Op:     op,
			Err:    fmt.Errorf("status %d", resp.StatusCode),
		}
	}
	return body, nil
}

func badResponse(op string, err error) *domain.UpstreamError {
	return &domain.UpstreamError{Reason: domain.ReasonBadResponse, Op: op, Err: err}
}

func normalizeGroup(g gjson.Result) domain.WatchlistGroup {
	id := g.Get("watchlist_id")
	if !id.Exists() {
		id = g.Get("id")
	}
	return domain.WatchlistGroup{
		ID:        id.Int(),
		Name:      g.Get("name").String(),
		Emoji:     g.Get("emoji").String(),
		IsDefault: g.Get("is_default").Bool(),
	}
}

// normalizeItem produces the single normalized item shape. The provider
// interchangeably uses symbol/company_code and last_price/price, with
// prices as numbers or comma-grouped strings.
func normalizeItem(it gjson.Result) domain.WatchlistItem {
	symbol := it.Get("symbol").String()
	if symbol == "" {
		symbol = it.Get("company_code").String()
	}

	name := it.Get("company_name").String()
	if name == "" {
		name = it.Get("name").String()
	}

	price := it.Get("last_price")
	if !price.Exists() {
		price = it.Get("price")
	}

	percent := it.Get("percent")
	if !percent.Exists() {
		percent = it.Get("change_percentage")
	}

	return domain.WatchlistItem{
		ID:            it.Get("id").Int(),
		CompanyID:     it.Get("company_id").Int(),
		Symbol:        strings.ToUpper(symbol),
		CompanyName:   name,
		Sector:        it.Get("sector").String(),
		LastPrice:     normalizePrice(price),
		PercentChange: normalizePrice(percent),
	}
}

// normalizePrice cleans a provider price value: numbers pass through,
// strings are parsed after stripping thousand-separator commas, anything
// else is zero.
func normalizePrice(v gjson.Result) decimal.Decimal {
	switch v.Type {
	case gjson.Number:
		return decimal.NewFromFloat(v.Num)
	case gjson.String:
		cleaned := strings.ReplaceAll(strings.TrimSpace(v.Str), ",", "")
		if d, err := decimal.NewFromString(cleaned); err == nil {
			return d
		}
	}
	return decimal.Zero
}
