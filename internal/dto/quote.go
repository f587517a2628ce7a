package dto

import "time"

const (
	QuoteSourceSina   = "sina"
	QuoteSourceXueqiu = "xueqiu"
)

// PriceSample is one snapshot of an instrument's quote as reported by a
// provider. ChangePercent is measured against the previous close and is
// passed through untouched; the session rise metrics are derived elsewhere
// from the open price.
type PriceSample struct {
	Code          string    `json:"code"`
	Name          string    `json:"name"`
	CurrentPrice  float64   `json:"current_price"`
	OpenPrice     float64   `json:"open_price"`
	PrevClose     float64   `json:"prev_close"`
	HighPrice     float64   `json:"high_price"`
	LowPrice      float64   `json:"low_price"`
	ChangePercent float64   `json:"change_percent"`
	Volume        float64   `json:"volume"`
	Timestamp     time.Time `json:"timestamp"`
}

// XueqiuQuoteResponse is the envelope of the xueqiu quote endpoint.
type XueqiuQuoteResponse struct {
	Data struct {
		Quote struct {
			Symbol    string  `json:"symbol"`
			Name      string  `json:"name"`
			Current   float64 `json:"current"`
			Open      float64 `json:"open"`
			LastClose float64 `json:"last_close"`
			High      float64 `json:"high"`
			Low       float64 `json:"low"`
			Percent   float64 `json:"percent"`
			Volume    float64 `json:"volume"`
		} `json:"quote"`
	} `json:"data"`
	ErrorCode        int    `json:"error_code"`
	ErrorDescription string `json:"error_description"`
}
