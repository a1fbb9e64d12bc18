package research

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/vertex/internal/contracts"
	"github.com/wonny/vertex/pkg/config"
	"github.com/wonny/vertex/pkg/gateway"
	"github.com/wonny/vertex/pkg/logger"
)

// Client runs bounded text searches against the research provider
// ⭐ SSOT: 뉴스/텍스트 검색 호출은 이 클라이언트에서만
type Client struct {
	gw      *gateway.Client
	logger  *logger.Logger
	baseURL string
	apiKey  string
}

// NewClient creates a new research client
func NewClient(cfg *config.Config, gw *gateway.Client, log *logger.Logger) *Client {
	return &Client{
		gw:      gw,
		logger:  log,
		baseURL: cfg.Research.BaseURL,
		apiKey:  cfg.Research.APIKey,
	}
}

// searchPayload is the provider's ranked-snippet response shape.
// Content는 HTML 조각으로 올 수 있다.
type searchPayload struct {
	Results []struct {
		Title     string `json:"title"`
		Content   string `json:"content"`
		URL       string `json:"url"`
		Published string `json:"published"`
	} `json:"results"`
}

// Search runs one bounded query and returns ranked snippets
func (c *Client) Search(ctx context.Context, query string, recencyDays, depth int) ([]contracts.Headline, error) {
	params := url.Values{
		"q":       {query},
		"days":    {fmt.Sprintf("%d", recencyDays)},
		"depth":   {fmt.Sprintf("%d", depth)},
		"api_key": {c.apiKey},
	}
	u := fmt.Sprintf("%s/v1/search?%s", c.baseURL, params.Encode())

	var payload searchPayload
	if err := c.gw.GetJSON(ctx, "research.search", u, &payload); err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	headlines := make([]contracts.Headline, 0, len(payload.Results))
	for _, r := range payload.Results {
		h := contracts.Headline{
			Title:   stripHTML(r.Title),
			Snippet: stripHTML(r.Content),
			URL:     r.URL,
		}
		if t, err := time.Parse(time.RFC3339, r.Published); err == nil {
			h.PublishedAt = t
		} else if t, err := time.Parse("2006-01-02", r.Published); err == nil {
			h.PublishedAt = t
		}
		headlines = append(headlines, h)
	}

	c.logger.WithFields(map[string]interface{}{
		"query":   query,
		"days":    recencyDays,
		"results": len(headlines),
	}).Debug("Search completed")

	return headlines, nil
}

// stripHTML extracts plain text from an HTML fragment. 일반 텍스트는
// 그대로 돌려준다.
func stripHTML(s string) string {
	if !strings.Contains(s, "<") {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(doc.Text())
}
