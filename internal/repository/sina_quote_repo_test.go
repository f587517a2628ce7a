package repository

import (
	"strings"
	"testing"
	"time"

	"stock-monitor/config"
	"stock-monitor/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sinaPayload = `var hq_str_sh600000="浦发银行,10.00,9.80,10.29,10.50,9.90,10.28,10.29,12345678,126900000.00,` +
	`1000,10.28,2000,10.27,3000,10.26,4000,10.25,5000,10.24,` +
	`1100,10.29,2100,10.30,3100,10.31,4100,10.32,5100,10.33,` +
	`2026-08-24,10:30:00,00";`

func TestParseSinaPayload(t *testing.T) {
	t.Run("valid payload", func(t *testing.T) {
		sample, err := parseSinaPayload("600000", sinaPayload)
		require.NoError(t, err)

		assert.Equal(t, "600000", sample.Code)
		assert.Equal(t, "浦发银行", sample.Name)
		assert.Equal(t, 10.0, sample.OpenPrice)
		assert.Equal(t, 9.8, sample.PrevClose)
		assert.Equal(t, 10.29, sample.CurrentPrice)
		assert.Equal(t, 10.5, sample.HighPrice)
		assert.Equal(t, 9.9, sample.LowPrice)
		assert.Equal(t, 12345678.0, sample.Volume)
		assert.InDelta(t, 5.0, sample.ChangePercent, 1e-9, "change is derived from the previous close")
	})

	t.Run("empty quote", func(t *testing.T) {
		_, err := parseSinaPayload("600000", `var hq_str_sh600000="";`)
		assert.Error(t, err)
	})

	t.Run("too few fields", func(t *testing.T) {
		_, err := parseSinaPayload("600000", `var hq_str_sh600000="浦发银行,10.00,9.80";`)
		assert.Error(t, err)
	})

	t.Run("non numeric field", func(t *testing.T) {
		payload := strings.Replace(sinaPayload, "10.29", "abc", 1)
		_, err := parseSinaPayload("600000", payload)
		assert.Error(t, err)
	})

	t.Run("zero previous close yields zero change", func(t *testing.T) {
		payload := strings.Replace(sinaPayload, "10.00,9.80", "10.00,0.00", 1)
		sample, err := parseSinaPayload("600000", payload)
		require.NoError(t, err)
		assert.Equal(t, 0.0, sample.ChangePercent)
	})
}

func TestNewQuoteRepositoryFloorsRateLimit(t *testing.T) {
	cfg := &config.Config{}
	cfg.Quote.Timeout = time.Second

	log, err := logger.New("error", "console")
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		NewSinaQuoteRepository(cfg, log)
		NewXueqiuQuoteRepository(cfg, log)
	}, "an unset request budget falls back to one request per minute")
}

func TestNormalizeCode(t *testing.T) {
	tests := []struct {
		name string
		code string
		want string
	}{
		{name: "shanghai", code: "600000", want: "sh600000"},
		{name: "shenzhen main board", code: "000001", want: "sz000001"},
		{name: "shenzhen chinext", code: "300750", want: "sz300750"},
		{name: "already prefixed", code: "sh600000", want: "sh600000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeCode(tt.code, "sh", "sz"))
		})
	}
}
