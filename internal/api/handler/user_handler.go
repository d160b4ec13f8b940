package handler

import (
	"net/http"

	"taskmaster/internal/app/service"
	"taskmaster/internal/common"
	"taskmaster/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

type UserHandler struct {
	userService *service.UserService
}

func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// RegisterRoutes expects an authenticated router.
func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.listUsers)
	r.Get("/stats", h.stats)
	r.Get("/{id}", h.getUser)
	r.Put("/{id}", h.updateUser)
	r.Delete("/{id}", h.deleteUser)
}

type userResponse struct {
	Message string      `json:"message,omitempty"`
	User    *model.User `json:"user"`
}

type userListResponse struct {
	Users      []model.User     `json:"users"`
	Pagination model.Pagination `json:"pagination"`
}

func (h *UserHandler) listUsers(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)
	users, pagination, err := h.userService.List(r.Context(), model.UserQuery{
		Search: firstQuery(r, "search", "q"),
		Role:   firstQuery(r, "role"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, userListResponse{Users: users, Pagination: pagination})
}

func (h *UserHandler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.userService.Stats(r.Context())
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, stats)
}

func (h *UserHandler) getUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, userResponse{User: user})
}

func (h *UserHandler) updateUser(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req service.UserUpdate
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := h.userService.Update(r.Context(), p, chi.URLParam(r, "id"), req)
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, userResponse{Message: "User updated successfully", User: user})
}

func (h *UserHandler) deleteUser(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	if err := h.userService.Delete(r.Context(), p, chi.URLParam(r, "id")); err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	respondMessage(w, "User deleted successfully")
}
