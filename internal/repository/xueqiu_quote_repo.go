package repository

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"stock-monitor/config"
	"stock-monitor/internal/dto"
	"stock-monitor/pkg/httpclient"
	"stock-monitor/pkg/logger"
	"stock-monitor/pkg/utils"

	"golang.org/x/time/rate"
)

const xueqiuUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"

// xueqiuQuoteRepository is the alternate provider. The quote endpoint is
// JSON but rejects requests without a session cookie, so the first fetch
// bootstraps one from the homepage.
type xueqiuQuoteRepository struct {
	httpClient     httpclient.HTTPClient
	cookieClient   httpclient.HTTPClient
	cfg            *config.Config
	logger         *logger.Logger
	requestLimiter *rate.Limiter

	mu     sync.Mutex
	cookie string
}

func NewXueqiuQuoteRepository(cfg *config.Config, log *logger.Logger) QuoteRepository {
	maxRequests := cfg.Quote.MaxRequestPerMinute
	if maxRequests <= 0 {
		maxRequests = 1
	}
	secondsPerRequest := time.Minute / time.Duration(maxRequests)
	return &xueqiuQuoteRepository{
		httpClient:     httpclient.New(cfg.Quote.XueqiuBaseURL, cfg.Quote.Timeout),
		cookieClient:   httpclient.New(cfg.Quote.XueqiuCookieURL, cfg.Quote.Timeout),
		cfg:            cfg,
		logger:         log,
		requestLimiter: rate.NewLimiter(rate.Every(secondsPerRequest), 1),
	}
}

func (r *xueqiuQuoteRepository) Source() string {
	return dto.QuoteSourceXueqiu
}

func (r *xueqiuQuoteRepository) Fetch(ctx context.Context, code string) (*dto.PriceSample, error) {
	if err := r.requestLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	cookie, err := r.getCookie(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to init xueqiu cookie: %w", err)
	}

	fullCode := normalizeCode(code, "SH", "SZ")

	queryParams := map[string]string{
		"symbol": fullCode,
		"extend": "detail",
	}
	headers := map[string]string{
		"User-Agent": xueqiuUserAgent,
		"Cookie":     cookie,
		"Referer":    "https://xueqiu.com",
	}

	var quoteResp dto.XueqiuQuoteResponse
	resp, err := r.httpClient.Get(ctx, "/v5/stock/quote.json", queryParams, headers, &quoteResp)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch quote from xueqiu: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		// The session cookie may have expired; drop it so the next fetch
		// bootstraps a fresh one.
		r.resetCookie()
		return nil, fmt.Errorf("xueqiu returned status: %d", resp.StatusCode)
	}
	if quoteResp.ErrorCode != 0 {
		return nil, fmt.Errorf("xueqiu error %d: %s", quoteResp.ErrorCode, quoteResp.ErrorDescription)
	}

	quote := quoteResp.Data.Quote
	if quote.Symbol == "" {
		return nil, fmt.Errorf("no quote data for code %s", code)
	}

	return &dto.PriceSample{
		Code:          code,
		Name:          quote.Name,
		CurrentPrice:  quote.Current,
		OpenPrice:     quote.Open,
		PrevClose:     quote.LastClose,
		HighPrice:     quote.High,
		LowPrice:      quote.Low,
		ChangePercent: quote.Percent,
		Volume:        quote.Volume,
		Timestamp:     utils.TimeNowMarket(),
	}, nil
}

func (r *xueqiuQuoteRepository) getCookie(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cookie != "" {
		return r.cookie, nil
	}

	headers := map[string]string{
		"User-Agent": xueqiuUserAgent,
	}
	resp, err := r.cookieClient.Get(ctx, "/", nil, headers, nil)
	if err != nil {
		return "", err
	}

	cookies := resp.Headers.Values("Set-Cookie")
	if len(cookies) == 0 {
		return "", fmt.Errorf("xueqiu returned no session cookie")
	}

	pairs := make([]string, 0, len(cookies))
	for _, c := range cookies {
		pairs = append(pairs, strings.SplitN(c, ";", 2)[0])
	}
	r.cookie = strings.Join(pairs, "; ")
	return r.cookie, nil
}

func (r *xueqiuQuoteRepository) resetCookie() {
	r.mu.Lock()
	r.cookie = ""
	r.mu.Unlock()
}
