package handler

import (
	"net/http"

	"taskmaster/internal/api/middleware"
	"taskmaster/internal/app/service"
	"taskmaster/internal/common"
	"taskmaster/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

type AuthHandler struct {
	authService *service.AuthService
	users       *UserHandler
	requireAuth func(http.Handler) http.Handler
}

func NewAuthHandler(authService *service.AuthService, users *UserHandler, requireAuth func(http.Handler) http.Handler) *AuthHandler {
	return &AuthHandler{authService: authService, users: users, requireAuth: requireAuth}
}

func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/register", h.register)
	r.Post("/login", h.login)
	r.Post("/refresh", h.refresh)
	r.Post("/logout", h.logout)
	r.Post("/validate", h.validate)
	r.Post("/forgot-password", h.forgotPassword)
	r.Post("/reset-password", h.resetPassword)

	r.Group(func(authed chi.Router) {
		authed.Use(h.requireAuth)
		authed.Get("/profile", h.getProfile)
		authed.Put("/profile", h.updateProfile)
		authed.Post("/change-password", h.changePassword)
		authed.Put("/users/{id}", h.users.updateUser)
		authed.Delete("/users/{id}", h.users.deleteUser)

		authed.Group(func(admin chi.Router) {
			admin.Use(middleware.AdminOnly)
			admin.Get("/users", h.listUsers)
			admin.Post("/users", h.listUsers)
		})
	})
}

type tokenRequest struct {
	Token string `json:"token"`
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.authService.Register(r.Context(), req)
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, resp)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.authService.Login(r.Context(), req)
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) refresh(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.authService.Refresh(r.Context(), requestToken(r, req.Token))
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.authService.Logout(r.Context(), requestToken(r, req.Token)); err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	respondMessage(w, "Logged out successfully")
}

func (h *AuthHandler) validate(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.authService.Validate(r.Context(), requestToken(r, req.Token))
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) getProfile(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	user, err := h.authService.Profile(r.Context(), p.UserID)
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]*model.User{"user": user})
}

func (h *AuthHandler) updateProfile(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req service.UserUpdate
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := h.authService.UpdateProfile(r.Context(), p.UserID, req)
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, userResponse{Message: "Profile updated successfully", User: user})
}

func (h *AuthHandler) changePassword(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req service.ChangePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.authService.ChangePassword(r.Context(), p.UserID, req); err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	respondMessage(w, "Password changed successfully")
}

func (h *AuthHandler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.authService.ForgotPassword(r.Context(), req.Email)
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req service.ResetPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.authService.ResetPassword(r.Context(), req); err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	respondMessage(w, "Password reset successfully")
}

// listUsers is the admin view: every account, unpaginated.
func (h *AuthHandler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, _, err := h.users.userService.List(r.Context(), model.UserQuery{
		Search: firstQuery(r, "search", "q"),
		Role:   firstQuery(r, "role"),
	})
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string][]model.User{"users": users})
}
