package dto

import "net/http"

type BaseResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func NewBaseResponse(code int, message string, data interface{}) *BaseResponse {
	return &BaseResponse{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

func NewBadRequestResponse(message string) *BaseResponse {
	return NewBaseResponse(http.StatusBadRequest, message, nil)
}

func NewSuccessResponse(message string, data interface{}) *BaseResponse {
	return NewBaseResponse(http.StatusOK, message, data)
}

// AddInstrumentRequest is the payload for tracking a new instrument.
type AddInstrumentRequest struct {
	Code              string   `json:"code" validate:"required,numeric,len=6"`
	FallbackThreshold *float64 `json:"fallback_threshold,omitempty" validate:"omitempty,gt=0"`
}

// UpdateThresholdRequest changes the fallback threshold of an instrument.
type UpdateThresholdRequest struct {
	FallbackThreshold float64 `json:"fallback_threshold" validate:"required,gt=0"`
}

// SetEnabledRequest enables or disables polling for an instrument.
type SetEnabledRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// MonitorStatus describes the engine for the status endpoint.
type MonitorStatus struct {
	Running         bool   `json:"running"`
	MarketOpen      bool   `json:"market_open"`
	QuoteSource     string `json:"quote_source"`
	PollInterval    string `json:"poll_interval"`
	InstrumentCount int    `json:"instrument_count"`
}
