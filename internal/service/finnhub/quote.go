package finnhub

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"RiskPulse/internal/service/ratelimit"
	pkghttp "RiskPulse/pkg/http"
	applogger "RiskPulse/pkg/logger"
)

// QuoteClient reads current prices from the Finnhub REST quote endpoint.
type QuoteClient struct {
	client  *pkghttp.Client
	baseURL string
	apiKey  string
	symbols map[string]string
	limiter *ratelimit.Limiter
}

// NewQuoteClient creates a REST client limited to perMinute calls.
func NewQuoteClient(baseURL, apiKey string, symbols map[string]string, timeout time.Duration, perMinute int) *QuoteClient {
	if baseURL == "" {
		baseURL = "https://finnhub.io/api/v1"
	}
	if perMinute <= 0 {
		perMinute = 60
	}
	return &QuoteClient{
		client:  pkghttp.NewClient(pkghttp.WithTimeout(timeout), pkghttp.WithUserAgent("riskpulse-finnhub")),
		baseURL: baseURL,
		apiKey:  apiKey,
		symbols: symbols,
		limiter: ratelimit.Every(time.Minute/time.Duration(perMinute), 1),
	}
}

type quoteResponse struct {
	C  float64 `json:"c"`
	T  int64   `json:"t"`
	PC float64 `json:"pc"`
}

// Quote returns the current price of symbol.
func (q *QuoteClient) Quote(ctx context.Context, symbol string) (float64, error) {
	feed, ok := q.symbols[symbol]
	if !ok {
		return 0, fmt.Errorf("finnhub: symbol %s not mapped", symbol)
	}
	if !q.limiter.Allow("quote") {
		return 0, fmt.Errorf("finnhub: quote rate limited")
	}
	var resp quoteResponse
	err := q.client.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method:      pkghttp.MethodGet,
		URL:         q.baseURL + "/quote",
		QueryParams: map[string][]string{"symbol": {feed}, "token": {q.apiKey}},
	}, &resp)
	var se *pkghttp.StatusError
	if errors.As(err, &se) && (se.Code == http.StatusUnauthorized || se.Code == http.StatusForbidden) {
		return 0, fmt.Errorf("finnhub quote %s: api key rejected: %w", symbol, err)
	}
	if err != nil {
		return 0, fmt.Errorf("finnhub quote %s: %w", symbol, err)
	}
	if resp.C <= 0 {
		return 0, fmt.Errorf("finnhub quote %s: no price", symbol)
	}
	return resp.C, nil
}

// PriceFeed prefers the websocket's last trade and falls back to a REST quote.
type PriceFeed struct {
	stream  *Stream
	quotes  *QuoteClient
	timeout time.Duration
	l       *applogger.Logger
}

// NewPriceFeed combines the live sources; either may be nil.
func NewPriceFeed(stream *Stream, quotes *QuoteClient, timeout time.Duration, l *applogger.Logger) *PriceFeed {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &PriceFeed{stream: stream, quotes: quotes, timeout: timeout, l: l}
}

func (p *PriceFeed) CurrentPrice(ctx context.Context, symbol string) (float64, bool) {
	if p.stream != nil {
		if v, ok := p.stream.CurrentPrice(ctx, symbol); ok {
			return v, true
		}
	}
	if p.quotes == nil {
		return 0, false
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	v, err := p.quotes.Quote(ctx, symbol)
	if err != nil {
		p.l.Debug("quote fallback failed", applogger.String("symbol", symbol), applogger.Error(err))
		return 0, false
	}
	return v, true
}
