package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// handleHealth is the liveness probe.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// NetworkResponse reports the current classified condition.
type NetworkResponse struct {
	Quality         string  `json:"quality"`
	Online          bool    `json:"online"`
	DownlinkMbps    float64 `json:"downlinkMbps"`
	RTTMillis       float64 `json:"rttMillis"`
	BatteryOverride bool    `json:"batteryOverride"`
	Trend           string  `json:"trend"`
}

// handleNetworkCondition reports the monitor's current view.
func (s *Server) handleNetworkCondition(c echo.Context) error {
	condition := s.monitor.Current()
	return RespondOK(c, NetworkResponse{
		Quality:         string(condition.Quality),
		Online:          condition.Sample.Online,
		DownlinkMbps:    condition.Sample.DownlinkMbps,
		RTTMillis:       condition.Sample.RTTMillis,
		BatteryOverride: s.monitor.BatteryOverride(),
		Trend:           s.monitor.Trend(),
	})
}

// handleStrategy reports the active adaptation strategy.
func (s *Server) handleStrategy(c echo.Context) error {
	return RespondOK(c, s.controller.Strategy())
}
