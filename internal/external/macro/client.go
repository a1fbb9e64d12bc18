package macro

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/wonny/vertex/internal/contracts"
	"github.com/wonny/vertex/pkg/config"
	"github.com/wonny/vertex/pkg/gateway"
	"github.com/wonny/vertex/pkg/logger"
	"github.com/wonny/vertex/pkg/redis"
)

// Client fetches macro time series
// ⭐ SSOT: 매크로 시리즈 호출은 이 클라이언트에서만
type Client struct {
	gw      *gateway.Client
	cache   *redis.Cache
	logger  *logger.Logger
	baseURL string
	apiKey  string
}

// NewClient creates a new macro series client
func NewClient(cfg *config.Config, gw *gateway.Client, cache *redis.Cache, log *logger.Logger) *Client {
	return &Client{
		gw:      gw,
		cache:   cache,
		logger:  log,
		baseURL: cfg.Macro.BaseURL,
		apiKey:  cfg.Macro.APIKey,
	}
}

// seriesPayload is the provider's observations response shape
type seriesPayload struct {
	Observations []struct {
		Date  string  `json:"date"`
		Value float64 `json:"value"`
	} `json:"observations"`
}

// FetchSeries fetches each requested series. 개별 시리즈 실패는 건너뛰고
// 수집된 것만 반환한다. 전부 실패하면 마지막 에러를 반환.
func (c *Client) FetchSeries(ctx context.Context, seriesIDs []string) (map[string]contracts.MacroSeries, error) {
	out := make(map[string]contracts.MacroSeries, len(seriesIDs))
	var lastErr error

	for _, id := range seriesIDs {
		series, err := c.fetchOne(ctx, id)
		if err != nil {
			c.logger.WithFields(map[string]interface{}{
				"series": id,
				"error":  err.Error(),
			}).Warn("Failed to fetch macro series")
			lastErr = err
			continue
		}
		out[id] = *series
	}

	if len(out) == 0 && lastErr != nil {
		return nil, fmt.Errorf("fetch macro series: %w", lastErr)
	}
	return out, nil
}

func (c *Client) fetchOne(ctx context.Context, seriesID string) (*contracts.MacroSeries, error) {
	var series contracts.MacroSeries
	if found, _ := c.cache.Get(ctx, redis.MacroKey(seriesID), &series); found {
		return &series, nil
	}

	params := url.Values{
		"series_id": {seriesID},
		"api_key":   {c.apiKey},
		"limit":     {"24"},
	}
	u := fmt.Sprintf("%s/v1/series/observations?%s", c.baseURL, params.Encode())

	var payload seriesPayload
	if err := c.gw.GetJSON(ctx, "macro.series", u, &payload); err != nil {
		return nil, err
	}

	series = contracts.MacroSeries{ID: seriesID}
	for _, obs := range payload.Observations {
		date, err := time.Parse("2006-01-02", obs.Date)
		if err != nil {
			continue
		}
		series.Points = append(series.Points, contracts.MacroPoint{
			Date:  date,
			Value: obs.Value,
		})
	}

	// 최신순 정렬 (newest first)
	sort.Slice(series.Points, func(i, j int) bool {
		return series.Points[i].Date.After(series.Points[j].Date)
	})

	if err := c.cache.Set(ctx, redis.MacroKey(seriesID), &series, redis.TTLDaily); err != nil {
		c.logger.WithError(err).Warn("Failed to cache macro series")
	}

	return &series, nil
}
