package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"bus_pass_service/internal/app"
	"bus_pass_service/internal/domain/buspass"

	"github.com/go-chi/chi/v5"
)

// profileView flattens the nullable profile columns for JSON.
type profileView struct {
	ID              int64  `json:"id"`
	UserID          int64  `json:"user_id"`
	PRN             string `json:"prn"`
	PassNo          string `json:"pass_no"`
	Location        string `json:"location"`
	Semester        string `json:"semester"`
	SemesterEndDate string `json:"semester_end_date,omitempty"`
	RouteID         int64  `json:"route_id,omitempty"`
	BusNumber       string `json:"bus_number"`
	IsComplete      bool   `json:"is_complete"`
}

func newProfileView(p *buspass.Profile) profileView {
	v := profileView{
		ID:         p.ID,
		UserID:     p.UserID,
		PRN:        p.PRN.String,
		PassNo:     p.PassNo.String,
		Location:   p.Location.String,
		Semester:   p.Semester.String,
		RouteID:    p.RouteID.Int64,
		BusNumber:  p.BusNumber.String,
		IsComplete: p.IsComplete,
	}
	if p.SemesterEndDate.Valid {
		v.SemesterEndDate = p.SemesterEndDate.Time.Format(time.DateOnly)
	}
	return v
}

func (h *Handler) ListRoutes(w http.ResponseWriter, r *http.Request) {
	routes, err := h.catalog.ListRoutes(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, routes)
}

func (h *Handler) AddRoute(w http.ResponseWriter, r *http.Request) {
	var in app.RouteInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	route, err := h.catalog.AddRoute(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, route)
}

func (h *Handler) RoutesByLocation(w http.ResponseWriter, r *http.Request) {
	routes, err := h.catalog.RoutesByLocation(r.Context(), chi.URLParam(r, "location"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, routes)
}

func (h *Handler) ListPricing(w http.ResponseWriter, r *http.Request) {
	pricing, err := h.catalog.ListPricing(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pricing)
}

func (h *Handler) SetPricing(w http.ResponseWriter, r *http.Request) {
	var in app.PricingInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	pricing, err := h.catalog.SetPricing(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pricing)
}

func (h *Handler) ListStudents(w http.ResponseWriter, r *http.Request) {
	users, err := h.catalog.ListStudents(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) RegisterStudent(w http.ResponseWriter, r *http.Request) {
	var in app.StudentInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	user, err := h.catalog.RegisterStudent(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *Handler) CompleteProfile(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var in app.ProfileInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	profile, err := h.catalog.CompleteProfile(r.Context(), id, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newProfileView(profile))
}

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.catalog.ListPayments(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payments)
}
