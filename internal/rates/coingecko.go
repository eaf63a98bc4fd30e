package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"custody-wallet/internal/assets"
)

// CoinGecko fetches USD prices from the /simple/price endpoint.
type CoinGecko struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewCoinGecko(baseURL, apiKey string, timeout time.Duration) *CoinGecko {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &CoinGecko{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *CoinGecko) FetchPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	ids := make([]string, 0, len(symbols))
	byID := make(map[string]string, len(symbols))
	for _, sym := range symbols {
		a, ok := assets.Get(sym)
		if !ok || a.CoinGeckoID == "" {
			continue
		}
		ids = append(ids, a.CoinGeckoID)
		byID[a.CoinGeckoID] = a.Symbol
	}

	out := make(map[string]decimal.Decimal, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	u, err := url.Parse(c.baseURL + "/simple/price")
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("ids", strings.Join(ids, ","))
	q.Set("vs_currencies", "usd")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	// json.Number keeps the price text intact so it never passes through float64
	var body map[string]map[string]json.Number
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode prices: %w", err)
	}

	for id, quotes := range body {
		sym, ok := byID[id]
		if !ok {
			continue
		}
		n, ok := quotes["usd"]
		if !ok {
			continue
		}
		p, err := decimal.NewFromString(n.String())
		if err != nil {
			return nil, fmt.Errorf("price for %s: %w", sym, err)
		}
		out[sym] = p
	}

	return out, nil
}
