package http

import (
	"net/http"

	"stock-monitor/internal/dto"

	"github.com/labstack/echo/v4"
)

func (h *HttpAPIHandler) SetupMonitor(base *echo.Group) {
	g := base.Group("/monitor")
	{
		g.GET("/status", h.monitorStatus)
		g.POST("/start", h.startMonitor)
		g.POST("/stop", h.stopMonitor)
		g.POST("/restart", h.restartMonitor)
	}
}

func (h *HttpAPIHandler) monitorStatus(c echo.Context) error {
	response := dto.NewSuccessResponse("ok", h.service.MonitorEngine.Status())
	return c.JSON(response.Code, response)
}

func (h *HttpAPIHandler) startMonitor(c echo.Context) error {
	if err := h.service.MonitorEngine.Start(h.ctx); err != nil {
		response := dto.NewBaseResponse(http.StatusInternalServerError, err.Error(), nil)
		return c.JSON(response.Code, response)
	}

	response := dto.NewSuccessResponse("monitor started", nil)
	return c.JSON(response.Code, response)
}

func (h *HttpAPIHandler) stopMonitor(c echo.Context) error {
	h.service.MonitorEngine.Stop()
	response := dto.NewSuccessResponse("monitor stopped", nil)
	return c.JSON(response.Code, response)
}

func (h *HttpAPIHandler) restartMonitor(c echo.Context) error {
	if err := h.service.MonitorEngine.Restart(h.ctx); err != nil {
		response := dto.NewBaseResponse(http.StatusInternalServerError, err.Error(), nil)
		return c.JSON(response.Code, response)
	}

	response := dto.NewSuccessResponse("monitor restarted", nil)
	return c.JSON(response.Code, response)
}
