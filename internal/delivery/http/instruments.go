package http

import (
	"errors"
	"net/http"

	"stock-monitor/internal/dto"
	"stock-monitor/internal/service"

	"github.com/labstack/echo/v4"
)

func (h *HttpAPIHandler) SetupInstruments(base *echo.Group) {
	g := base.Group("/instruments")
	{
		g.GET("", h.listInstruments)
		g.POST("", h.addInstrument)
		g.GET("/:code", h.getInstrument)
		g.DELETE("/:code", h.removeInstrument)
		g.POST("/:code/pin", h.pinInstrument)
		g.POST("/:code/mute", h.muteInstrument)
		g.POST("/:code/toggle-alert", h.toggleAlert)
		g.PUT("/:code/threshold", h.updateThreshold)
		g.PUT("/:code/enabled", h.setEnabled)
	}
}

func (h *HttpAPIHandler) listInstruments(c echo.Context) error {
	snaps := h.service.MonitorEngine.Snapshot()
	response := dto.NewSuccessResponse("ok", snaps)
	return c.JSON(response.Code, response)
}

func (h *HttpAPIHandler) addInstrument(c echo.Context) error {
	ctx := c.Request().Context()

	req := new(dto.AddInstrumentRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse("invalid request body"))
	}

	if err := h.validator.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse(err.Error()))
	}

	cfg, err := h.service.MonitorEngine.AddInstrument(ctx, req.Code, "", req.FallbackThreshold)
	if err != nil {
		response := dto.NewBaseResponse(http.StatusInternalServerError, err.Error(), cfg)
		return c.JSON(response.Code, response)
	}

	response := dto.NewBaseResponse(http.StatusCreated, "instrument added", cfg)
	return c.JSON(response.Code, response)
}

func (h *HttpAPIHandler) getInstrument(c echo.Context) error {
	snap, err := h.service.MonitorEngine.Get(c.Param("code"))
	if err != nil {
		return h.instrumentError(c, err)
	}

	response := dto.NewSuccessResponse("ok", snap)
	return c.JSON(response.Code, response)
}

func (h *HttpAPIHandler) removeInstrument(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.service.MonitorEngine.RemoveInstrument(ctx, c.Param("code")); err != nil {
		return h.instrumentError(c, err)
	}

	response := dto.NewSuccessResponse("instrument removed", nil)
	return c.JSON(response.Code, response)
}

func (h *HttpAPIHandler) pinInstrument(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.service.MonitorEngine.PinInstrument(ctx, c.Param("code")); err != nil {
		return h.instrumentError(c, err)
	}

	response := dto.NewSuccessResponse("instrument pinned", nil)
	return c.JSON(response.Code, response)
}

func (h *HttpAPIHandler) muteInstrument(c echo.Context) error {
	if err := h.service.MonitorEngine.MuteToday(c.Param("code")); err != nil {
		return h.instrumentError(c, err)
	}

	response := dto.NewSuccessResponse("alerts muted until market close", nil)
	return c.JSON(response.Code, response)
}

func (h *HttpAPIHandler) toggleAlert(c echo.Context) error {
	enabled, err := h.service.MonitorEngine.ToggleAlert(c.Param("code"))
	if err != nil {
		return h.instrumentError(c, err)
	}

	response := dto.NewSuccessResponse("alert toggled", map[string]bool{"alert_enabled": enabled})
	return c.JSON(response.Code, response)
}

func (h *HttpAPIHandler) updateThreshold(c echo.Context) error {
	ctx := c.Request().Context()

	req := new(dto.UpdateThresholdRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse("invalid request body"))
	}

	if err := h.validator.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse(err.Error()))
	}

	if err := h.service.MonitorEngine.SetThreshold(ctx, c.Param("code"), req.FallbackThreshold); err != nil {
		return h.instrumentError(c, err)
	}

	response := dto.NewSuccessResponse("threshold updated", nil)
	return c.JSON(response.Code, response)
}

func (h *HttpAPIHandler) setEnabled(c echo.Context) error {
	ctx := c.Request().Context()

	req := new(dto.SetEnabledRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse("invalid request body"))
	}

	if err := h.validator.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse(err.Error()))
	}

	if err := h.service.MonitorEngine.SetEnabled(ctx, c.Param("code"), *req.Enabled); err != nil {
		return h.instrumentError(c, err)
	}

	response := dto.NewSuccessResponse("instrument updated", nil)
	return c.JSON(response.Code, response)
}

func (h *HttpAPIHandler) instrumentError(c echo.Context, err error) error {
	if errors.Is(err, service.ErrInstrumentNotFound) {
		return c.JSON(http.StatusNotFound, dto.NewBaseResponse(http.StatusNotFound, err.Error(), nil))
	}
	return c.JSON(http.StatusInternalServerError, dto.NewBaseResponse(http.StatusInternalServerError, err.Error(), nil))
}
