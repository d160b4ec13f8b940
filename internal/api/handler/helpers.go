package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"taskmaster/internal/api/middleware"
	"taskmaster/internal/common"
	"taskmaster/internal/domain/model"

	"github.com/go-chi/jwtauth/v5"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// decodeJSON reads the request body into dst. An empty body leaves dst at
// its zero value.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return false
	}
	return true
}

// principal fetches the caller stored by middleware.Authenticator.
func principal(w http.ResponseWriter, r *http.Request) (model.Principal, bool) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
	}
	return p, ok
}

// requestToken prefers a token in the body and falls back to the bearer header.
func requestToken(r *http.Request, bodyToken string) string {
	if t := strings.TrimSpace(bodyToken); t != "" {
		return t
	}
	return jwtauth.TokenFromHeader(r)
}

func parsePositiveInt(s string, defaultVal int) int {
	if val, err := strconv.Atoi(s); err == nil && val > 0 {
		return val
	}
	return defaultVal
}

func pageParams(r *http.Request) (page, limit int) {
	page = parsePositiveInt(r.URL.Query().Get("page"), 1)
	limit = parsePositiveInt(r.URL.Query().Get("limit"), defaultPageSize)
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}

// firstQuery returns the first non-empty query parameter among names.
func firstQuery(r *http.Request, names ...string) string {
	q := r.URL.Query()
	for _, name := range names {
		if v := strings.TrimSpace(q.Get(name)); v != "" {
			return v
		}
	}
	return ""
}

func respondMessage(w http.ResponseWriter, message string) {
	common.RespondWithJSON(w, http.StatusOK, common.MessageResponse{Message: message})
}
