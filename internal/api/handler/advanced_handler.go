package handler

import (
	"net/http"
	"strconv"

	"taskmaster/internal/app/service"
	"taskmaster/internal/app/toolkit"
	"taskmaster/internal/common"

	"github.com/go-chi/chi/v5"
)

// AdvancedHandler serves the sequence helpers and the insight reports.
type AdvancedHandler struct {
	insightService *service.InsightService
}

func NewAdvancedHandler(is *service.InsightService) *AdvancedHandler {
	return &AdvancedHandler{insightService: is}
}

// RegisterRoutes expects an authenticated router.
func (h *AdvancedHandler) RegisterRoutes(r chi.Router) {
	r.Post("/fibonacci", h.fibonacci)
	r.Post("/factorial", h.factorial)
	r.Post("/palindrome", h.palindrome)
	r.Get("/primes", h.primes)

	r.Get("/stats", h.stats)
	r.Get("/search", h.search)
	r.Get("/performance", h.performance)
}

func (h *AdvancedHandler) fibonacci(w http.ResponseWriter, r *http.Request) {
	var req struct {
		N *int `json:"n"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.N == nil {
		common.RespondWithServiceError(w, r, common.Validation("n is required"))
		return
	}
	seq, err := toolkit.Fibonacci(*req.N)
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, resultResponse{Result: seq})
}

func (h *AdvancedHandler) factorial(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Number *int `json:"number"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Number == nil {
		common.RespondWithServiceError(w, r, common.Validation("number is required"))
		return
	}
	result, err := toolkit.Factorial(*req.Number)
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, resultResponse{Result: result})
}

func (h *AdvancedHandler) palindrome(w http.ResponseWriter, r *http.Request) {
	text, ok := decodeText(w, r)
	if !ok {
		return
	}
	common.RespondWithJSON(w, http.StatusOK, resultResponse{Result: toolkit.IsPalindrome(text)})
}

func (h *AdvancedHandler) primes(w http.ResponseWriter, r *http.Request) {
	limit := toolkit.DefaultPrimeLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			common.RespondWithServiceError(w, r, common.Validation("Validation failed", "limit must be an integer"))
			return
		}
		limit = n
	}
	primes, err := toolkit.Primes(limit)
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, struct {
		Primes []int `json:"primes"`
		Limit  int   `json:"limit"`
		Count  int   `json:"count"`
	}{primes, limit, len(primes)})
}

func (h *AdvancedHandler) stats(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	stats, err := h.insightService.Stats(r.Context(), p, firstQuery(r, "projectId"), firstQuery(r, "timeRange"))
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, stats)
}

func (h *AdvancedHandler) search(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	resp, err := h.insightService.Search(r.Context(), p, firstQuery(r, "q"), firstQuery(r, "type"))
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *AdvancedHandler) performance(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	perf, err := h.insightService.Performance(r.Context(), p, firstQuery(r, "timeRange"))
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, perf)
}
