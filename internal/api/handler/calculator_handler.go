package handler

import (
	"net/http"

	"taskmaster/internal/app/toolkit"
	"taskmaster/internal/common"

	"github.com/go-chi/chi/v5"
)

type CalculatorHandler struct{}

func NewCalculatorHandler() *CalculatorHandler {
	return &CalculatorHandler{}
}

func (h *CalculatorHandler) RegisterRoutes(r chi.Router) {
	r.Post("/add", h.add)
	r.Post("/multiply", h.multiply)
	r.Post("/discount", h.discount)
}

type resultResponse struct {
	Result interface{} `json:"result"`
}

func (h *CalculatorHandler) add(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Numbers []float64 `json:"numbers"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	common.RespondWithJSON(w, http.StatusOK, resultResponse{Result: toolkit.Sum(req.Numbers)})
}

func (h *CalculatorHandler) multiply(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Cost     *float64 `json:"cost"`
		Quantity *float64 `json:"quantity"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Cost == nil || req.Quantity == nil {
		common.RespondWithServiceError(w, r, common.Validation("Cost and quantity are required"))
		return
	}
	common.RespondWithJSON(w, http.StatusOK, resultResponse{Result: toolkit.Multiply(*req.Cost, *req.Quantity)})
}

func (h *CalculatorHandler) discount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount     *float64 `json:"amount"`
		Percentage *float64 `json:"percentage"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Amount == nil || req.Percentage == nil {
		common.RespondWithServiceError(w, r, common.Validation("Amount and percentage are required"))
		return
	}
	result, err := toolkit.ApplyDiscount(*req.Amount, *req.Percentage)
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, resultResponse{Result: result})
}
