package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/aurashift/internal/apperror"
	"github.com/sakif/aurashift/internal/model"
	"github.com/sakif/aurashift/internal/service"
)

// ActivityHandler exposes activity CRUD under /api/activities.
type ActivityHandler struct {
	activities *service.ActivityService
	logger     *slog.Logger
}

func NewActivityHandler(activities *service.ActivityService, logger *slog.Logger) *ActivityHandler {
	return &ActivityHandler{activities: activities, logger: logger}
}

// Routes mounts the handlers on a fresh router; the caller applies auth.
func (h *ActivityHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.HandleCreate)
	r.Get("/", h.HandleList)
	r.Put("/{id}", h.HandleUpdate)
	r.Delete("/{id}", h.HandleDelete)
	return r
}

type createActivityRequest struct {
	Type     string         `json:"type"`
	Metadata model.Metadata `json:"metadata"`
	// Accepted so older clients keep working; points always come from type.
	Points *int `json:"points,omitempty"`
}

type updateActivityRequest struct {
	Type     *string        `json:"type"`
	Metadata model.Metadata `json:"metadata"`
	Points   *int           `json:"points,omitempty"`
}

// HandleCreate logs a new activity.
//
// HTTP: POST /api/activities  →  201 {activity, newAuraScore}
func (h *ActivityHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req createActivityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.activities.Create(r.Context(), userID, service.CreateActivityInput{
		Type:     req.Type,
		Metadata: req.Metadata,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusCreated, "Activity logged successfully", res)
}

// HandleList returns a page of the caller's activities.
//
// HTTP: GET /api/activities?page=&limit=&type=&startDate=&endDate=
func (h *ActivityHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	page, err := positiveInt(q.Get("page"), "page")
	if err != nil {
		writeError(w, err)
		return
	}
	limit, err := positiveInt(q.Get("limit"), "limit")
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := h.activities.List(r.Context(), userID, service.ListActivitiesInput{
		Page:      page,
		Limit:     limit,
		Type:      q.Get("type"),
		StartDate: q.Get("startDate"),
		EndDate:   q.Get("endDate"),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, "", res)
}

// HandleUpdate edits type and/or metadata.
//
// HTTP: PUT /api/activities/{id}  →  {activity, newAuraScore}
func (h *ActivityHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req updateActivityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.activities.Update(r.Context(), userID, chi.URLParam(r, "id"), service.UpdateActivityInput{
		Type:     req.Type,
		Metadata: req.Metadata,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, "Activity updated successfully", res)
}

// HandleDelete removes an activity.
//
// HTTP: DELETE /api/activities/{id}  →  {deletedActivityId, newAuraScore}
func (h *ActivityHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	res, err := h.activities.Delete(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, "Activity deleted successfully", res)
}

// positiveInt parses an optional query parameter. "" yields 0, meaning
// "use the default".
func positiveInt(raw, field string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apperror.ValidationFailed(field, field+" must be a positive integer")
	}
	return n, nil
}
