package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"bus_pass_service/internal/app"
	idb "bus_pass_service/internal/infra/database"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

const manualSweepTimeout = 30 * time.Minute

type Handler struct {
	alerts       AlertAdmin
	passes       PassAdmin
	catalog      CatalogAdmin
	sweeper      app.AlertSweeper
	sweepTimeout time.Duration
	logger       *logrus.Entry
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// fail maps service errors to HTTP statuses.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, app.ErrInvalidAlertConfig),
		errors.Is(err, app.ErrInvalidCatalogInput),
		errors.Is(err, app.ErrProfileIncomplete),
		errors.Is(err, app.ErrPassAlreadyExpired):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, idb.ErrAlertConfigNotFound),
		errors.Is(err, idb.ErrPassNotFound),
		errors.Is(err, idb.ErrUserNotFound),
		errors.Is(err, idb.ErrRouteNotFound),
		errors.Is(err, idb.ErrPricingNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrPassNotPending),
		errors.Is(err, idb.ErrDuplicatePassNumber),
		errors.Is(err, idb.ErrDuplicateEmail),
		errors.Is(err, idb.ErrDuplicatePRN),
		errors.Is(err, app.ErrSweepCancelled):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.WithError(err).WithField("path", r.URL.Path).Error("Admin API request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func idParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	configs, err := h.alerts.ListAlertConfigurations(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, configs)
}

func (h *Handler) AddAlert(w http.ResponseWriter, r *http.Request) {
	var in app.AlertConfigInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	cfg, err := h.alerts.AddAlertConfiguration(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, cfg)
}

func (h *Handler) EditAlert(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var in app.AlertConfigInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	cfg, err := h.alerts.EditAlertConfiguration(r.Context(), id, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *Handler) ToggleAlert(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	cfg, err := h.alerts.ToggleAlertConfiguration(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// RunAlerts runs a sweep synchronously and returns its report. The sweep is
// detached from the request so a disconnecting client cannot cut it short.
func (h *Handler) RunAlerts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.sweepTimeout)
	defer cancel()

	report, err := h.sweeper.RunSweepNow(ctx)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) RecentNotifications(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	entries, err := h.alerts.RecentNotifications(r.Context(), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) PassNotifications(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	entries, err := h.alerts.PassNotifications(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) PendingPasses(w http.ResponseWriter, r *http.Request) {
	passes, err := h.passes.PendingPasses(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, passes)
}

func (h *Handler) ApprovePass(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	p, err := h.passes.ApprovePass(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) RejectPass(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	p, err := h.passes.RejectPass(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) IssuePass(w http.ResponseWriter, r *http.Request) {
	var req app.IssuePassRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID <= 0 || req.RouteID <= 0 || req.Location == "" {
		writeError(w, http.StatusBadRequest, "user_id, route_id and location are required")
		return
	}
	issued, err := h.passes.IssuePass(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, issued)
}
