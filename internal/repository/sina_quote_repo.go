package repository

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"stock-monitor/config"
	"stock-monitor/internal/dto"
	"stock-monitor/pkg/httpclient"
	"stock-monitor/pkg/logger"
	"stock-monitor/pkg/utils"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/time/rate"
)

// sinaQuoteRepository pulls quotes from the sina hq endpoint. The payload is
// a GBK-encoded javascript assignment with comma-separated fields.
type sinaQuoteRepository struct {
	httpClient     httpclient.HTTPClient
	cfg            *config.Config
	logger         *logger.Logger
	requestLimiter *rate.Limiter
}

func NewSinaQuoteRepository(cfg *config.Config, log *logger.Logger) QuoteRepository {
	maxRequests := cfg.Quote.MaxRequestPerMinute
	if maxRequests <= 0 {
		maxRequests = 1
	}
	secondsPerRequest := time.Minute / time.Duration(maxRequests)
	return &sinaQuoteRepository{
		httpClient:     httpclient.New(cfg.Quote.SinaBaseURL, cfg.Quote.Timeout),
		cfg:            cfg,
		logger:         log,
		requestLimiter: rate.NewLimiter(rate.Every(secondsPerRequest), 1),
	}
}

func (r *sinaQuoteRepository) Source() string {
	return dto.QuoteSourceSina
}

func (r *sinaQuoteRepository) Fetch(ctx context.Context, code string) (*dto.PriceSample, error) {
	if err := r.requestLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	fullCode := normalizeCode(code, "sh", "sz")

	headers := map[string]string{
		"Referer": "https://finance.sina.com.cn",
	}

	resp, err := r.httpClient.Get(ctx, "/list="+fullCode, nil, headers, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch quote from sina: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sina returned status: %d", resp.StatusCode)
	}

	// The body is GBK because the instrument name is Chinese.
	decoded, err := simplifiedchinese.GBK.NewDecoder().Bytes(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode sina payload: %w", err)
	}

	sample, err := parseSinaPayload(code, string(decoded))
	if err != nil {
		return nil, err
	}
	return sample, nil
}

// parseSinaPayload parses a line like
//
//	var hq_str_sh600000="浦发银行,9.50,9.48,9.52,9.54,9.47,...";
//
// Field layout: 0 name, 1 open, 2 previous close, 3 current, 4 high, 5 low,
// 8 volume. The change percent is derived from the previous close here
// because sina does not report it directly.
func parseSinaPayload(code, payload string) (*dto.PriceSample, error) {
	start := strings.Index(payload, `="`)
	end := strings.LastIndex(payload, `"`)
	if start < 0 || end <= start+2 {
		return nil, fmt.Errorf("no quote data for code %s", code)
	}

	parts := strings.Split(payload[start+2:end], ",")
	if len(parts) < 32 {
		return nil, fmt.Errorf("malformed quote data for code %s", code)
	}

	name := parts[0]
	openPrice, err1 := strconv.ParseFloat(parts[1], 64)
	prevClose, err2 := strconv.ParseFloat(parts[2], 64)
	currentPrice, err3 := strconv.ParseFloat(parts[3], 64)
	highPrice, err4 := strconv.ParseFloat(parts[4], 64)
	lowPrice, err5 := strconv.ParseFloat(parts[5], 64)
	volume, err6 := strconv.ParseFloat(parts[8], 64)
	for _, err := range []error{err1, err2, err3, err4, err5, err6} {
		if err != nil {
			return nil, fmt.Errorf("malformed quote field for code %s: %w", code, err)
		}
	}

	changePercent := 0.0
	if prevClose > 0 {
		changePercent = (currentPrice - prevClose) / prevClose * 100
	}

	return &dto.PriceSample{
		Code:          code,
		Name:          name,
		CurrentPrice:  currentPrice,
		OpenPrice:     openPrice,
		PrevClose:     prevClose,
		HighPrice:     highPrice,
		LowPrice:      lowPrice,
		ChangePercent: changePercent,
		Volume:        volume,
		Timestamp:     utils.TimeNowMarket(),
	}, nil
}
