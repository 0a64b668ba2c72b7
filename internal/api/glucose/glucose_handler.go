package glucose

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	appMiddleware "github.com/thebigby10/sugarvoice-backend/app/middleware"
	"github.com/thebigby10/sugarvoice-backend/internal/api"
	"github.com/thebigby10/sugarvoice-backend/internal/types"
)

type HandlerImpl struct {
	service GlucoseService
	logger  *slog.Logger
}

func NewHandler(service GlucoseService, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		service: service,
		logger:  logger,
	}
}

// DeleteResponse is returned by DELETE /glucose/{readingID}.
type DeleteResponse struct {
	OK bool `json:"ok" example:"true"`
}

// CreateReading godoc
// @Summary      Record a reading
// @Description  Stores a glucose reading for the authenticated user. time is required.
// @Tags         Glucose
// @Accept       json
// @Produce      json
// @Param        reading body types.CreateGlucoseReading true "Reading"
// @Success      200 {object} types.GlucoseReading
// @Failure      400 {object} types.Response "Invalid Input"
// @Failure      401 {object} types.Response "Unauthorized"
// @Failure      500 {object} types.Response "Internal Server Error"
// @Security     BearerAuth
// @Router       /glucose/ [post]
func (h *HandlerImpl) CreateReading(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, "CreateReading", h.service.Create)
}

// QuickCreateReading godoc
// @Summary      Record a reading now
// @Description  Same as POST /glucose/ but time defaults to the current time.
// @Tags         Glucose
// @Accept       json
// @Produce      json
// @Param        reading body types.CreateGlucoseReading true "Reading (time optional)"
// @Success      200 {object} types.GlucoseReading
// @Failure      400 {object} types.Response "Invalid Input"
// @Failure      401 {object} types.Response "Unauthorized"
// @Failure      500 {object} types.Response "Internal Server Error"
// @Security     BearerAuth
// @Router       /glucose/glucose [post]
func (h *HandlerImpl) QuickCreateReading(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, "QuickCreateReading", h.service.QuickCreate)
}

type createFunc func(ctx context.Context, actor *types.Identity, params types.CreateGlucoseReading) (*types.GlucoseReading, error)

func (h *HandlerImpl) create(w http.ResponseWriter, r *http.Request, name string, create createFunc) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", name))

	actor, ok := appMiddleware.IdentityFromContext(ctx)
	if !ok {
		api.Unauthorized(w, r, "Authentication required")
		return
	}

	var params types.CreateGlucoseReading
	if err := api.DecodeJSONBody(w, r, &params); err != nil {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	reading, err := create(ctx, actor, params)
	if err != nil {
		h.writeError(w, r, l, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, reading)
}

// ListReadings godoc
// @Summary      List readings
// @Description  Returns the authenticated user's readings, newest first.
// @Tags         Glucose
// @Produce      json
// @Param        skip  query int false "Readings to skip" default(0)
// @Param        limit query int false "Page size (1-100)" default(100)
// @Success      200 {array} types.GlucoseReading
// @Failure      400 {object} types.Response "Invalid Input"
// @Failure      401 {object} types.Response "Unauthorized"
// @Failure      500 {object} types.Response "Internal Server Error"
// @Security     BearerAuth
// @Router       /glucose/ [get]
func (h *HandlerImpl) ListReadings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "ListReadings"))

	actor, ok := appMiddleware.IdentityFromContext(ctx)
	if !ok {
		api.Unauthorized(w, r, "Authentication required")
		return
	}

	skip, err := intQuery(r, "skip", 0)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "skip must be an integer")
		return
	}
	limit, err := intQuery(r, "limit", DefaultListLimit)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "limit must be an integer")
		return
	}

	readings, err := h.service.List(ctx, actor, skip, limit)
	if err != nil {
		h.writeError(w, r, l, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, readings)
}

// GetReading godoc
// @Summary      Get a reading
// @Tags         Glucose
// @Produce      json
// @Param        readingID path string true "Reading ID" format(uuid)
// @Success      200 {object} types.GlucoseReading
// @Failure      401 {object} types.Response "Unauthorized"
// @Failure      403 {object} types.Response "Not authorized to access this reading"
// @Failure      404 {object} types.Response "Reading not found"
// @Security     BearerAuth
// @Router       /glucose/{readingID} [get]
func (h *HandlerImpl) GetReading(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "GetReading"))

	actor, readingID, ok := h.target(w, r)
	if !ok {
		return
	}

	reading, err := h.service.Get(ctx, actor, readingID)
	if err != nil {
		h.writeError(w, r, l, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, reading)
}

// UpdateReading godoc
// @Summary      Update a reading
// @Description  Applies the supplied fields. Absent fields are unchanged; null is rejected.
// @Tags         Glucose
// @Accept       json
// @Produce      json
// @Param        readingID path string true "Reading ID" format(uuid)
// @Param        reading body types.GlucoseReadingPatch true "Fields to change"
// @Success      200 {object} types.GlucoseReading
// @Failure      400 {object} types.Response "Invalid Input"
// @Failure      401 {object} types.Response "Unauthorized"
// @Failure      403 {object} types.Response "Not authorized to update this reading"
// @Failure      404 {object} types.Response "Reading not found"
// @Security     BearerAuth
// @Router       /glucose/{readingID} [put]
func (h *HandlerImpl) UpdateReading(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "UpdateReading"))

	actor, readingID, ok := h.target(w, r)
	if !ok {
		return
	}

	var patch types.GlucoseReadingPatch
	if err := api.DecodeJSONBody(w, r, &patch); err != nil {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	reading, err := h.service.Update(ctx, actor, readingID, patch)
	if err != nil {
		h.writeError(w, r, l, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, reading)
}

// DeleteReading godoc
// @Summary      Delete a reading
// @Tags         Glucose
// @Produce      json
// @Param        readingID path string true "Reading ID" format(uuid)
// @Success      200 {object} DeleteResponse
// @Failure      401 {object} types.Response "Unauthorized"
// @Failure      403 {object} types.Response "Not authorized to delete this reading"
// @Failure      404 {object} types.Response "Reading not found"
// @Security     BearerAuth
// @Router       /glucose/{readingID} [delete]
func (h *HandlerImpl) DeleteReading(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "DeleteReading"))

	actor, readingID, ok := h.target(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(ctx, actor, readingID); err != nil {
		h.writeError(w, r, l, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, DeleteResponse{OK: true})
}

// target resolves the caller and the {readingID} path parameter. An ID that
// is not a UUID cannot name any reading, so it is reported as not found.
func (h *HandlerImpl) target(w http.ResponseWriter, r *http.Request) (*types.Identity, uuid.UUID, bool) {
	actor, ok := appMiddleware.IdentityFromContext(r.Context())
	if !ok {
		api.Unauthorized(w, r, "Authentication required")
		return nil, uuid.Nil, false
	}

	readingID, err := uuid.Parse(chi.URLParam(r, "readingID"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusNotFound, "Reading not found")
		return nil, uuid.Nil, false
	}
	return actor, readingID, true
}

func (h *HandlerImpl) writeError(w http.ResponseWriter, r *http.Request, l *slog.Logger, err error) {
	status := api.StatusForError(err)
	switch status {
	case http.StatusBadRequest:
		api.ErrorResponse(w, r, status, err.Error())
	case http.StatusUnauthorized:
		api.Unauthorized(w, r, "Authentication required")
	case http.StatusForbidden:
		api.ErrorResponse(w, r, status, "Not authorized to access this reading")
	case http.StatusNotFound:
		api.ErrorResponse(w, r, status, "Reading not found")
	default:
		l.ErrorContext(r.Context(), "Glucose request failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
	}
}

func intQuery(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
