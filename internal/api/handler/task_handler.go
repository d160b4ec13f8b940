package handler

import (
	"context"
	"net/http"

	"taskmaster/internal/app/service"
	"taskmaster/internal/common"
	"taskmaster/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

type TaskHandler struct {
	taskService *service.TaskService
}

func NewTaskHandler(ts *service.TaskService) *TaskHandler {
	return &TaskHandler{taskService: ts}
}

// RegisterRoutes expects an authenticated router.
func (h *TaskHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.createTask)
	r.Get("/", h.listTasks)
	r.Get("/my-tasks", h.myTasks)

	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.getTask)
		r.Put("/", h.updateTask)
		r.Delete("/", h.deleteTask)
		r.Put("/status", h.setStatus)
		r.Post("/status", h.setStatus)
		r.Put("/assign", h.assign)
		r.Post("/assign", h.assign)
		r.Delete("/assign", h.unassign)
		r.Get("/comments", h.listComments)
		r.Post("/comments", h.addComment)
		r.Post("/subtasks", h.addSubtask)
		r.Put("/subtasks/{subtaskId}", h.toggleSubtask)
	})
}

type taskResponse struct {
	Message string      `json:"message,omitempty"`
	Task    *model.Task `json:"task"`
}

type taskListResponse struct {
	Tasks      []model.Task     `json:"tasks"`
	Pagination model.Pagination `json:"pagination"`
}

func taskQuery(r *http.Request) model.TaskQuery {
	return model.TaskQuery{
		ProjectID: firstQuery(r, "projectId", "project"),
		Status:    model.TaskStatus(firstQuery(r, "status")),
		Priority:  model.TaskPriority(firstQuery(r, "priority")),
		Search:    firstQuery(r, "q", "search"),
		SortField: firstQuery(r, "sort", "sortBy"),
		SortOrder: firstQuery(r, "order", "sortOrder"),
	}
}

func (h *TaskHandler) createTask(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req service.CreateTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	task, err := h.taskService.Create(r.Context(), p, req)
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, taskResponse{Message: "Task created successfully", Task: task})
}

func (h *TaskHandler) listTasks(w http.ResponseWriter, r *http.Request) {
	h.respondList(w, r, h.taskService.List)
}

func (h *TaskHandler) myTasks(w http.ResponseWriter, r *http.Request) {
	h.respondList(w, r, h.taskService.MyTasks)
}

type taskLister func(ctx context.Context, actor model.Principal, q model.TaskQuery) ([]model.Task, model.Pagination, error)

func (h *TaskHandler) respondList(w http.ResponseWriter, r *http.Request, list taskLister) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	q := taskQuery(r)
	q.Page, q.Limit = pageParams(r)
	tasks, pagination, err := list(r.Context(), p, q)
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, taskListResponse{Tasks: tasks, Pagination: pagination})
}

func (h *TaskHandler) getTask(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	task, err := h.taskService.Get(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, taskResponse{Task: task})
}

func (h *TaskHandler) updateTask(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req service.UpdateTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	task, err := h.taskService.Update(r.Context(), p, chi.URLParam(r, "id"), req)
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, taskResponse{Message: "Task updated successfully", Task: task})
}

func (h *TaskHandler) deleteTask(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	if err := h.taskService.Delete(r.Context(), p, chi.URLParam(r, "id")); err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	respondMessage(w, "Task deleted successfully")
}

func (h *TaskHandler) setStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req struct {
		Status model.TaskStatus `json:"status"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	task, err := h.taskService.SetStatus(r.Context(), p, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, taskResponse{Message: "Task status updated successfully", Task: task})
}

func (h *TaskHandler) assign(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req struct {
		AssignedTo string `json:"assignedTo"`
		AssigneeID string `json:"assigneeId"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	userID := req.AssignedTo
	if userID == "" {
		userID = req.AssigneeID
	}
	task, err := h.taskService.Assign(r.Context(), p, chi.URLParam(r, "id"), userID)
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, taskResponse{Message: "Task assigned successfully", Task: task})
}

func (h *TaskHandler) unassign(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	task, err := h.taskService.Unassign(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, taskResponse{Message: "Task unassigned successfully", Task: task})
}

func (h *TaskHandler) listComments(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	comments, err := h.taskService.Comments(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string][]model.Comment{"comments": comments})
}

func (h *TaskHandler) addComment(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	task, err := h.taskService.AddComment(r.Context(), p, chi.URLParam(r, "id"), req.Text)
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, struct {
		Message  string          `json:"message"`
		Task     *model.Task     `json:"task"`
		Comments []model.Comment `json:"comments"`
	}{"Comment added successfully", task, task.Comments})
}

func (h *TaskHandler) addSubtask(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req struct {
		Title string `json:"title"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	task, err := h.taskService.AddSubtask(r.Context(), p, chi.URLParam(r, "id"), req.Title)
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, taskResponse{Message: "Subtask added successfully", Task: task})
}

func (h *TaskHandler) toggleSubtask(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	task, err := h.taskService.ToggleSubtask(r.Context(), p, chi.URLParam(r, "id"), chi.URLParam(r, "subtaskId"))
	if err != nil {
		common.RespondWithServiceError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, taskResponse{Message: "Subtask updated successfully", Task: task})
}
