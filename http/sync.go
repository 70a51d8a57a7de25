package http

import (
	"github.com/labstack/echo/v4"
)

// SyncStatusResponse reports delivery state for one inspection.
type SyncStatusResponse struct {
	LastSyncTime      any  `json:"lastSyncTime"`
	PendingChanges    bool `json:"pendingChanges"`
	ConflictsDetected bool `json:"conflictsDetected"`
	RetryCount        int  `json:"retryCount"`
	PendingEntries    int  `json:"pendingEntries"`
}

// handleSyncStatus reports the record's sync status plus live queue depth.
func (s *Server) handleSyncStatus(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return HandleError(c, s.logger, err)
	}
	status, pending, err := s.coordinator.SyncStatus(c.Request().Context(), id)
	if err != nil {
		return HandleError(c, s.logger, err)
	}
	return RespondOK(c, SyncStatusResponse{
		LastSyncTime:      status.LastSyncTime,
		PendingChanges:    status.PendingChanges,
		ConflictsDetected: status.ConflictsDetected,
		RetryCount:        status.RetryCount,
		PendingEntries:    pending,
	})
}

// handleListEntries returns the inspection's outbox history in enqueue order.
func (s *Server) handleListEntries(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return HandleError(c, s.logger, err)
	}
	entries, err := s.queue.ListByInspection(c.Request().Context(), id)
	if err != nil {
		return HandleError(c, s.logger, err)
	}
	return RespondOK(c, entries)
}

// handleRetryDeadLettered requeues parked entries for an inspection.
func (s *Server) handleRetryDeadLettered(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return HandleError(c, s.logger, err)
	}
	n, err := s.coordinator.RetryDeadLettered(c.Request().Context(), id)
	if err != nil {
		return HandleError(c, s.logger, err)
	}
	return RespondOK(c, map[string]int{"requeued": n})
}

// handleQueueStats reports outbox depth by state.
func (s *Server) handleQueueStats(c echo.Context) error {
	stats, err := s.queue.Stats(c.Request().Context())
	if err != nil {
		return HandleError(c, s.logger, err)
	}
	return RespondOK(c, stats)
}
