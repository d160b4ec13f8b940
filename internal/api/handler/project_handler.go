package handler

import (
	"net/http"

	"taskmaster/internal/app/service"
	"taskmaster/internal/common"
	"taskmaster/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

type ProjectHandler struct {
	projectService *service.ProjectService
}

func NewProjectHandler(ps *service.ProjectService) *ProjectHandler {
	return &ProjectHandler{projectService: ps}
}

// RegisterRoutes expects an authenticated router.
func (h *ProjectHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.createProject)
	r.Get("/", h.listProjects)
	r.Get("/filter", h.filterProjects)
	r.Get("/sort", h.sortProjects)
	r.Get("/search", h.searchProjects)

	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.getProject)
		r.Put("/", h.updateProject)
		r.Delete("/", h.deleteProject)
		r.Put("/status", h.setStatus)
		r.Post("/status", h.setStatus)
		r.Post("/members", h.addMember)
		r.Delete("/members/{userId}", h.removeMember)
		r.Get("/tasks", h.listTasks)
	})
}

type projectResponse struct {
	Message string         `json:"message,omitempty"`
	Project *model.Project `json:"project"`
}

type projectListResponse struct {
	Projects   []model.Project   `json:"projects"`
	Count      int               `json:"count"`
	Pagination *model.Pagination `json:"pagination,omitempty"`
}

func (h *ProjectHandler) createProject(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req service.CreateProjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	project, err := h.projectService.Create(r.Context(), p, req)
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, projectResponse{Message: "Project created successfully", Project: project})
}

func projectQuery(r *http.Request) model.ProjectQuery {
	return model.ProjectQuery{
		Status:    model.ProjectStatus(firstQuery(r, "status")),
		Priority:  model.ProjectPriority(firstQuery(r, "priority")),
		Search:    firstQuery(r, "q", "search"),
		SortField: firstQuery(r, "sort", "sortBy", "field"),
		SortOrder: firstQuery(r, "order", "sortOrder"),
	}
}

func (h *ProjectHandler) listProjects(w http.ResponseWriter, r *http.Request) {
	q := projectQuery(r)
	q.Page, q.Limit = pageParams(r)
	h.respondList(w, r, q, true)
}

func (h *ProjectHandler) filterProjects(w http.ResponseWriter, r *http.Request) {
	q := projectQuery(r)
	q.Search, q.SortField, q.SortOrder = "", "", ""
	h.respondList(w, r, q, false)
}

func (h *ProjectHandler) sortProjects(w http.ResponseWriter, r *http.Request) {
	q := projectQuery(r)
	q.Status, q.Priority, q.Search = "", "", ""
	h.respondList(w, r, q, false)
}

func (h *ProjectHandler) searchProjects(w http.ResponseWriter, r *http.Request) {
	q := projectQuery(r)
	q.Status, q.Priority = "", ""
	h.respondList(w, r, q, false)
}

func (h *ProjectHandler) respondList(w http.ResponseWriter, r *http.Request, q model.ProjectQuery, paginated bool) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	projects, pagination, err := h.projectService.List(r.Context(), p, q)
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	resp := projectListResponse{Projects: projects, Count: len(projects)}
	if paginated {
		resp.Pagination = &pagination
	}
	common.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *ProjectHandler) getProject(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	project, err := h.projectService.Get(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, projectResponse{Project: project})
}

func (h *ProjectHandler) updateProject(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req service.UpdateProjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	project, err := h.projectService.Update(r.Context(), p, chi.URLParam(r, "id"), req)
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, projectResponse{Message: "Project updated successfully", Project: project})
}

func (h *ProjectHandler) deleteProject(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	if err := h.projectService.Delete(r.Context(), p, chi.URLParam(r, "id")); err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	respondMessage(w, "Project deleted successfully")
}

func (h *ProjectHandler) setStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req struct {
		Status model.ProjectStatus `json:"status"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	project, err := h.projectService.SetStatus(r.Context(), p, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, projectResponse{Message: "Project status updated successfully", Project: project})
}

func (h *ProjectHandler) addMember(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req service.MemberRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	project, err := h.projectService.AddMember(r.Context(), p, chi.URLParam(r, "id"), req)
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, projectResponse{Message: "Member added successfully", Project: project})
}

func (h *ProjectHandler) removeMember(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	project, err := h.projectService.RemoveMember(r.Context(), p, chi.URLParam(r, "id"), chi.URLParam(r, "userId"))
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, projectResponse{Message: "Member removed successfully", Project: project})
}

func (h *ProjectHandler) listTasks(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	q := taskQuery(r)
	q.Page, q.Limit = pageParams(r)
	tasks, pagination, err := h.projectService.Tasks(r.Context(), p, chi.URLParam(r, "id"), q)
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, taskListResponse{Tasks: tasks, Pagination: pagination})
}
