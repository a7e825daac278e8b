package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/tasktrack/internal/tasks/domain"
	"github.com/aussiebroadwan/tasktrack/internal/tasks/service"
	"github.com/aussiebroadwan/tasktrack/pkg/httpx"
	"github.com/aussiebroadwan/tasktrack/pkg/slogx"
	"github.com/aussiebroadwan/tasktrack/pkg/tasksdk"
)

// TasksHandler serves the owner-scoped /tasks resource. Every route sits
// behind RequirePrincipal.
type TasksHandler struct {
	TaskService *service.TaskService
}

// HandleList godoc
//
//	@Summary	List tasks
//	@Tags		Tasks
//	@Security	BearerAuth
//	@Produce	json
//	@Success	200	{array}		tasksdk.TaskResponse
//	@Failure	401	{object}	tasksdk.ErrorResponse
//	@Router		/tasks [get].
func (h *TasksHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	owner, _ := httpx.PrincipalFromContext(r.Context())

	tasks, err := h.TaskService.List(r.Context(), owner)
	if err != nil {
		writeTaskError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, taskResponses(tasks))
}

// HandleListByStatus godoc
//
//	@Summary	List tasks in one status
//	@Tags		Tasks
//	@Security	BearerAuth
//	@Produce	json
//	@Param		status	path		string	true	"Task status"	Enums(TODO, IN_PROGRESS, DONE)
//	@Success	200		{array}		tasksdk.TaskResponse
//	@Failure	400		{object}	tasksdk.ErrorResponse
//	@Failure	401		{object}	tasksdk.ErrorResponse
//	@Router		/tasks/status/{status} [get].
func (h *TasksHandler) HandleListByStatus(w http.ResponseWriter, r *http.Request) {
	owner, _ := httpx.PrincipalFromContext(r.Context())

	tasks, err := h.TaskService.ListByStatus(r.Context(), owner, r.PathValue("status"))
	if err != nil {
		writeTaskError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, taskResponses(tasks))
}

// HandleCreate godoc
//
//	@Summary	Create a task
//	@Tags		Tasks
//	@Security	BearerAuth
//	@Accept		json
//	@Produce	json
//	@Param		body	body		tasksdk.TaskRequest	true	"Task"
//	@Success	201		{object}	tasksdk.TaskResponse
//	@Failure	400		{object}	tasksdk.ErrorResponse
//	@Failure	401		{object}	tasksdk.ErrorResponse
//	@Router		/tasks [post].
func (h *TasksHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	owner, _ := httpx.PrincipalFromContext(r.Context())

	var req tasksdk.TaskRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.ErrInvalidRequest.WithDescription(err.Error()))
		return
	}

	t, err := h.TaskService.Create(r.Context(), owner, taskInput(req))
	if err != nil {
		writeTaskError(w, r, err)
		return
	}

	w.Header().Set("Location", "/tasks/"+t.ID)
	httpx.WriteJSON(w, http.StatusCreated, taskResponse(t))
}

// HandleGet godoc
//
//	@Summary	Get a task
//	@Tags		Tasks
//	@Security	BearerAuth
//	@Produce	json
//	@Param		id	path		string	true	"Task ID"
//	@Success	200	{object}	tasksdk.TaskResponse
//	@Failure	401	{object}	tasksdk.ErrorResponse
//	@Failure	404	{object}	tasksdk.ErrorResponse
//	@Router		/tasks/{id} [get].
func (h *TasksHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	owner, _ := httpx.PrincipalFromContext(r.Context())

	t, err := h.TaskService.Get(r.Context(), owner, r.PathValue("id"))
	if err != nil {
		writeTaskError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, taskResponse(t))
}

// HandleUpdate godoc
//
//	@Summary	Replace a task
//	@Tags		Tasks
//	@Security	BearerAuth
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string				true	"Task ID"
//	@Param		body	body		tasksdk.TaskRequest	true	"Task"
//	@Success	200		{object}	tasksdk.TaskResponse
//	@Failure	400		{object}	tasksdk.ErrorResponse
//	@Failure	401		{object}	tasksdk.ErrorResponse
//	@Failure	404		{object}	tasksdk.ErrorResponse
//	@Router		/tasks/{id} [put].
func (h *TasksHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	owner, _ := httpx.PrincipalFromContext(r.Context())

	var req tasksdk.TaskRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.ErrInvalidRequest.WithDescription(err.Error()))
		return
	}

	t, err := h.TaskService.Update(r.Context(), owner, r.PathValue("id"), taskInput(req))
	if err != nil {
		writeTaskError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, taskResponse(t))
}

// HandleDelete godoc
//
//	@Summary	Delete a task
//	@Tags		Tasks
//	@Security	BearerAuth
//	@Param		id	path	string	true	"Task ID"
//	@Success	204
//	@Failure	401	{object}	tasksdk.ErrorResponse
//	@Failure	404	{object}	tasksdk.ErrorResponse
//	@Router		/tasks/{id} [delete].
func (h *TasksHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	owner, _ := httpx.PrincipalFromContext(r.Context())

	if err := h.TaskService.Delete(r.Context(), owner, r.PathValue("id")); err != nil {
		writeTaskError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeTaskError maps service errors. Tasks of other principals are reported
// as not found.
func writeTaskError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrTaskNotFound):
		httpx.WriteError(w, http.StatusNotFound, httpx.ErrNotFound)
	case errors.Is(err, service.ErrInvalidTask):
		httpx.WriteError(w, http.StatusBadRequest, httpx.ErrInvalidRequest.WithDescription(describe(err)))
	default:
		slogx.FromContext(r.Context()).Error("task operation failed", slog.Any("err", err))
		httpx.WriteError(w, http.StatusInternalServerError, httpx.ErrServerError)
	}
}

func taskInput(req tasksdk.TaskRequest) service.TaskInput {
	return service.TaskInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		DueDate:     req.DueDate,
	}
}

func taskResponse(t domain.Task) tasksdk.TaskResponse {
	return tasksdk.TaskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		DueDate:     t.DueDate,
		Owner:       t.OwnerID,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func taskResponses(tasks []domain.Task) []tasksdk.TaskResponse {
	out := make([]tasksdk.TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, taskResponse(t))
	}
	return out
}
