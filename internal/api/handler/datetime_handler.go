package handler

import (
	"net/http"
	"time"

	"taskmaster/internal/app/toolkit"
	"taskmaster/internal/common"

	"github.com/go-chi/chi/v5"
)

type DateTimeHandler struct {
	dueSoonDays int
	now         func() time.Time
}

// NewDateTimeHandler uses dueSoonDays as the due-soon window; non-positive
// values fall back to toolkit.DefaultDueSoonDays.
func NewDateTimeHandler(dueSoonDays int) *DateTimeHandler {
	if dueSoonDays <= 0 {
		dueSoonDays = toolkit.DefaultDueSoonDays
	}
	return &DateTimeHandler{dueSoonDays: dueSoonDays, now: time.Now}
}

func (h *DateTimeHandler) RegisterRoutes(r chi.Router) {
	r.Get("/current", h.current)
	r.Post("/current", h.current)
	r.Post("/add-days", h.addDays)
	r.Post("/diff-days", h.diffDays)
	r.Post("/format", h.format)
	r.Post("/is-weekend", h.isWeekend)
	r.Post("/due-soon", h.dueSoon)
}

type dateRequest struct {
	Date  string `json:"date"`
	Days  int    `json:"days"`
	Start string `json:"start"`
	End   string `json:"end"`
}

func (h *DateTimeHandler) current(w http.ResponseWriter, r *http.Request) {
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"current": toolkit.Now()})
}

func (h *DateTimeHandler) addDays(w http.ResponseWriter, r *http.Request) {
	var req dateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := toolkit.AddDays(req.Date, req.Days)
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, resultResponse{Result: result})
}

func (h *DateTimeHandler) diffDays(w http.ResponseWriter, r *http.Request) {
	var req dateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := toolkit.DiffDays(req.Start, req.End)
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, resultResponse{Result: result})
}

func (h *DateTimeHandler) format(w http.ResponseWriter, r *http.Request) {
	var req dateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := toolkit.FormatLong(req.Date)
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, resultResponse{Result: result})
}

func (h *DateTimeHandler) isWeekend(w http.ResponseWriter, r *http.Request) {
	var req dateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := toolkit.IsWeekend(req.Date)
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, resultResponse{Result: result})
}

func (h *DateTimeHandler) dueSoon(w http.ResponseWriter, r *http.Request) {
	var req dateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	soon, days, err := toolkit.DueSoon(req.Date, h.now(), h.dueSoonDays)
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, struct {
		Result    bool `json:"result"`
		DaysUntil int  `json:"daysUntil"`
	}{soon, days})
}
