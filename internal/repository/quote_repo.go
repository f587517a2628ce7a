package repository

import (
	"context"
	"fmt"
	"strings"

	"stock-monitor/config"
	"stock-monitor/internal/dto"
	"stock-monitor/pkg/logger"
)

// QuoteRepository fetches the current price sample for one instrument code.
// Implementations apply their own timeout and return an error instead of
// hanging; an unknown code surfaces as a plain fetch error.
type QuoteRepository interface {
	Fetch(ctx context.Context, code string) (*dto.PriceSample, error)
	Source() string
}

// NewQuoteRepository selects the provider configured under monitor.quote_source.
func NewQuoteRepository(cfg *config.Config, log *logger.Logger) (QuoteRepository, error) {
	switch cfg.Monitor.QuoteSource {
	case dto.QuoteSourceSina, "":
		return NewSinaQuoteRepository(cfg, log), nil
	case dto.QuoteSourceXueqiu:
		return NewXueqiuQuoteRepository(cfg, log), nil
	default:
		return nil, fmt.Errorf("unknown quote source: %s", cfg.Monitor.QuoteSource)
	}
}

// normalizeCode strips non-digits and maps the code to its exchange prefix:
// 6xxxxx trades in Shanghai, 0xxxxx and 3xxxxx in Shenzhen.
func normalizeCode(code, shPrefix, szPrefix string) string {
	clean := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, code)

	switch {
	case strings.HasPrefix(clean, "6"):
		return shPrefix + clean
	case strings.HasPrefix(clean, "0"), strings.HasPrefix(clean, "3"):
		return szPrefix + clean
	default:
		return clean
	}
}
