package marketdata

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/wonny/vertex/internal/contracts"
	"github.com/wonny/vertex/pkg/config"
	"github.com/wonny/vertex/pkg/gateway"
	"github.com/wonny/vertex/pkg/logger"
	"github.com/wonny/vertex/pkg/redis"
)

// Client handles communication with the market data provider
// ⭐ SSOT: 옵션 체인/시세/펀더멘털 호출은 이 클라이언트에서만
type Client struct {
	gw      *gateway.Client
	cache   *redis.Cache
	logger  *logger.Logger
	baseURL string
	apiKey  string
}

// NewClient creates a new market data client
func NewClient(cfg *config.Config, gw *gateway.Client, cache *redis.Cache, log *logger.Logger) *Client {
	return &Client{
		gw:      gw,
		cache:   cache,
		logger:  log,
		baseURL: cfg.MarketData.BaseURL,
		apiKey:  cfg.MarketData.APIKey,
	}
}

// chainPayload is the provider's option chain response shape
type chainPayload struct {
	Symbol  string `json:"symbol"`
	Updated string `json:"updated"`
	Data    []struct {
		Strike       float64 `json:"strike"`
		Expiration   string  `json:"expiration"`
		Type         string  `json:"type"` // "put" / "call"
		Bid          float64 `json:"bid"`
		Ask          float64 `json:"ask"`
		Delta        float64 `json:"delta"`
		Gamma        float64 `json:"gamma"`
		Theta        float64 `json:"theta"`
		Vega         float64 `json:"vega"`
		IV           float64 `json:"iv"`
		OpenInterest int64   `json:"open_interest"`
		Volume       int64   `json:"volume"`
	} `json:"data"`
}

// FetchChain fetches the option chain snapshot for a symbol
func (c *Client) FetchChain(ctx context.Context, symbol string) (*contracts.OptionChain, error) {
	var chain contracts.OptionChain
	if found, _ := c.cache.Get(ctx, redis.ChainKey(symbol), &chain); found {
		return &chain, nil
	}

	u := fmt.Sprintf("%s/v1/options/chain/%s?%s", c.baseURL, url.PathEscape(symbol), c.auth())

	var payload chainPayload
	if err := c.gw.GetJSON(ctx, "marketdata.chain", u, &payload); err != nil {
		return nil, fmt.Errorf("fetch chain %s: %w", symbol, err)
	}

	asOf := time.Now()
	if t, err := time.Parse(time.RFC3339, payload.Updated); err == nil {
		asOf = t
	}

	chain = contracts.OptionChain{
		Symbol:    symbol,
		AsOf:      asOf,
		Contracts: make([]contracts.ContractLeg, 0, len(payload.Data)),
	}
	for _, row := range payload.Data {
		expiry, err := time.Parse("2006-01-02", row.Expiration)
		if err != nil {
			continue // 파싱 불가 행은 버린다
		}
		right := contracts.RightCall
		if row.Type == "put" {
			right = contracts.RightPut
		}
		chain.Contracts = append(chain.Contracts, contracts.ContractLeg{
			Symbol:       symbol,
			Strike:       row.Strike,
			Expiry:       expiry,
			Right:        right,
			Bid:          row.Bid,
			Ask:          row.Ask,
			Delta:        row.Delta,
			Gamma:        row.Gamma,
			Theta:        row.Theta,
			Vega:         row.Vega,
			IV:           row.IV,
			OpenInterest: row.OpenInterest,
			Volume:       row.Volume,
		})
	}

	if err := c.cache.Set(ctx, redis.ChainKey(symbol), &chain, redis.TTLChain); err != nil {
		c.logger.WithError(err).Warn("Failed to cache option chain")
	}

	c.logger.WithFields(map[string]interface{}{
		"symbol":    symbol,
		"contracts": len(chain.Contracts),
	}).Debug("Fetched option chain")

	return &chain, nil
}

// quotePayload is the provider's quote response shape
type quotePayload struct {
	Symbol      string   `json:"symbol"`
	Price       float64  `json:"price"`
	ChangePct   float64  `json:"change_pct"`
	Change5DPct *float64 `json:"change_5d_pct"`
	Volume      int64    `json:"volume"`
	Updated     string   `json:"updated"`
}

// FetchQuote fetches an underlying price snapshot
func (c *Client) FetchQuote(ctx context.Context, symbol string) (*contracts.Quote, error) {
	var quote contracts.Quote
	if found, _ := c.cache.Get(ctx, redis.QuoteKey(symbol), &quote); found {
		return &quote, nil
	}

	u := fmt.Sprintf("%s/v1/quote/%s?%s", c.baseURL, url.PathEscape(symbol), c.auth())

	var payload quotePayload
	if err := c.gw.GetJSON(ctx, "marketdata.quote", u, &payload); err != nil {
		return nil, fmt.Errorf("fetch quote %s: %w", symbol, err)
	}

	asOf := time.Now()
	if t, err := time.Parse(time.RFC3339, payload.Updated); err == nil {
		asOf = t
	}

	quote = contracts.Quote{
		Symbol:      symbol,
		Price:       payload.Price,
		ChangePct:   payload.ChangePct,
		Change5DPct: payload.Change5DPct,
		Volume:      payload.Volume,
		AsOf:        asOf,
	}

	if err := c.cache.Set(ctx, redis.QuoteKey(symbol), &quote, redis.TTLQuote); err != nil {
		c.logger.WithError(err).Warn("Failed to cache quote")
	}

	return &quote, nil
}

// overviewPayload is the provider's company overview response shape
type overviewPayload struct {
	Symbol       string  `json:"symbol"`
	PERatio      float64 `json:"pe_ratio"`
	ProfitMargin float64 `json:"profit_margin"`
	ROE          float64 `json:"roe"`
	Beta         float64 `json:"beta"`
	MA50         float64 `json:"ma_50"`
	MA200        float64 `json:"ma_200"`
	Week52High   float64 `json:"week_52_high"`
	Week52Low    float64 `json:"week_52_low"`
	EarningsDate string  `json:"earnings_date"`
}

// FetchOverview fetches company fundamentals
func (c *Client) FetchOverview(ctx context.Context, symbol string) (*contracts.Fundamentals, error) {
	var fund contracts.Fundamentals
	if found, _ := c.cache.Get(ctx, redis.OverviewKey(symbol), &fund); found {
		return &fund, nil
	}

	u := fmt.Sprintf("%s/v1/overview/%s?%s", c.baseURL, url.PathEscape(symbol), c.auth())

	var payload overviewPayload
	if err := c.gw.GetJSON(ctx, "marketdata.overview", u, &payload); err != nil {
		return nil, fmt.Errorf("fetch overview %s: %w", symbol, err)
	}

	fund = contracts.Fundamentals{
		Symbol:       symbol,
		PERatio:      payload.PERatio,
		ProfitMargin: payload.ProfitMargin,
		ROE:          payload.ROE,
		Beta:         payload.Beta,
		MA50:         payload.MA50,
		MA200:        payload.MA200,
		Week52High:   payload.Week52High,
		Week52Low:    payload.Week52Low,
	}
	if t, err := time.Parse("2006-01-02", payload.EarningsDate); err == nil {
		fund.EarningsDate = &t
	}

	if err := c.cache.Set(ctx, redis.OverviewKey(symbol), &fund, redis.TTLDaily); err != nil {
		c.logger.WithError(err).Warn("Failed to cache overview")
	}

	return &fund, nil
}

func (c *Client) auth() string {
	return url.Values{"apikey": {c.apiKey}}.Encode()
}
