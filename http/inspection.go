package http

import (
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dukerupert/fieldsync"
)

// CreateInspectionRequest is the payload for creating an inspection.
type CreateInspectionRequest struct {
	PropertyID string `json:"propertyId" validate:"required"`
}

// handleCreateInspection creates a new draft inspection from the property's
// template.
func (s *Server) handleCreateInspection(c echo.Context) error {
	var req CreateInspectionRequest
	if err := c.Bind(&req); err != nil {
		return HandleError(c, s.logger, fieldsync.Invalid("invalid request body"))
	}
	if err := c.Validate(&req); err != nil {
		return HandleError(c, s.logger, err)
	}

	record, err := s.coordinator.CreateInspection(c.Request().Context(), req.PropertyID)
	if err != nil {
		return HandleError(c, s.logger, err)
	}
	return RespondCreated(c, record)
}

// handleListInspections lists records, filtered by property or status.
func (s *Server) handleListInspections(c echo.Context) error {
	ctx := c.Request().Context()

	var (
		records []*fieldsync.InspectionRecord
		err     error
	)
	switch {
	case c.QueryParam("propertyId") != "":
		records, err = s.store.FindByProperty(ctx, c.QueryParam("propertyId"))
	case c.QueryParam("status") != "":
		records, err = s.store.FindByStatus(ctx, fieldsync.InspectionStatus(c.QueryParam("status")))
	default:
		records, err = s.store.FindByStatus(ctx, fieldsync.InspectionStatusInProgress)
	}
	if err != nil {
		return HandleError(c, s.logger, err)
	}
	return RespondOK(c, records)
}

// handleGetInspection reads a record from the device store.
func (s *Server) handleGetInspection(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return HandleError(c, s.logger, err)
	}
	record, err := s.store.FindByID(c.Request().Context(), id)
	if err != nil {
		return HandleError(c, s.logger, err)
	}
	return RespondOK(c, record)
}

// handleLoadInspection makes a record the coordinator's active one.
func (s *Server) handleLoadInspection(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return HandleError(c, s.logger, err)
	}
	record, err := s.coordinator.LoadInspection(c.Request().Context(), id)
	if err != nil {
		return HandleError(c, s.logger, err)
	}
	return RespondOK(c, record)
}

// handleUpdateItem merges an update into a checklist item.
func (s *Server) handleUpdateItem(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return HandleError(c, s.logger, err)
	}

	var update fieldsync.ItemUpdate
	if err := c.Bind(&update); err != nil {
		return HandleError(c, s.logger, fieldsync.Invalid("invalid request body"))
	}

	record, err := s.coordinator.UpdateItem(c.Request().Context(), id, c.Param("itemId"), update)
	if err != nil {
		return HandleError(c, s.logger, err)
	}
	return RespondOK(c, record)
}

// handleAttachEvidence captures raw media bytes for an item. The body is the
// raw capture; the evidence kind comes from the query string.
func (s *Server) handleAttachEvidence(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return HandleError(c, s.logger, err)
	}

	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return HandleError(c, s.logger, fieldsync.Invalid("reading capture body"))
	}

	evidenceType := fieldsync.EvidenceTypePhoto
	if c.QueryParam("type") == string(fieldsync.EvidenceTypeVideo) {
		evidenceType = fieldsync.EvidenceTypeVideo
	}

	record, err := s.coordinator.AttachEvidence(c.Request().Context(), id, c.Param("itemId"), raw, evidenceType)
	if err != nil {
		return HandleError(c, s.logger, err)
	}
	return RespondCreated(c, record)
}

// handleCompleteInspection transitions a record to completed.
func (s *Server) handleCompleteInspection(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return HandleError(c, s.logger, err)
	}
	record, err := s.coordinator.CompleteInspection(c.Request().Context(), id)
	if err != nil {
		return HandleError(c, s.logger, err)
	}
	return RespondOK(c, record)
}

// handleDeleteInspection removes a record and its media.
func (s *Server) handleDeleteInspection(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return HandleError(c, s.logger, err)
	}
	if err := s.coordinator.DeleteInspection(c.Request().Context(), id); err != nil {
		return HandleError(c, s.logger, err)
	}
	return RespondNoContent(c)
}

// handleGetMedia streams a compressed payload back to the presentation layer.
func (s *Server) handleGetMedia(c echo.Context) error {
	record, err := s.media.Get(c.Request().Context(), c.Param("mediaId"))
	if err != nil {
		return HandleError(c, s.logger, err)
	}
	return c.Blob(http.StatusOK, record.MimeType, record.Payload)
}

// parseID reads the :id path parameter.
func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, fieldsync.Invalid("invalid inspection id")
	}
	return id, nil
}
