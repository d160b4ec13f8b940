package handler

import (
	"net/http"

	"taskmaster/internal/app/toolkit"
	"taskmaster/internal/common"

	"github.com/go-chi/chi/v5"
)

// StringsHandler serves the public text helpers.
type StringsHandler struct{}

func NewStringsHandler() *StringsHandler {
	return &StringsHandler{}
}

func (h *StringsHandler) RegisterRoutes(r chi.Router) {
	r.Post("/capitalize", h.capitalize)
	r.Post("/slugify", h.slugify)
	r.Post("/count", h.count)
}

type textRequest struct {
	Text *string `json:"text"`
}

// decodeText rejects bodies without a text field. An empty string is allowed.
func decodeText(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req textRequest
	if !decodeJSON(w, r, &req) {
		return "", false
	}
	if req.Text == nil {
		common.RespondWithServiceError(w, r, common.Validation("Text is required"))
		return "", false
	}
	return *req.Text, true
}

func (h *StringsHandler) capitalize(w http.ResponseWriter, r *http.Request) {
	text, ok := decodeText(w, r)
	if !ok {
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"capitalized": toolkit.Capitalize(text)})
}

func (h *StringsHandler) slugify(w http.ResponseWriter, r *http.Request) {
	text, ok := decodeText(w, r)
	if !ok {
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"slug": toolkit.Slugify(text)})
}

func (h *StringsHandler) count(w http.ResponseWriter, r *http.Request) {
	text, ok := decodeText(w, r)
	if !ok {
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]int{"count": toolkit.WordCount(text)})
}
