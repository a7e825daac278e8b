package tasksdk

import (
	"context"
	"net/http"
	"net/url"
)

// Me returns the profile of the session's principal.
func (c *Client) Me(ctx context.Context) (*PrincipalInfo, error) {
	resp, err := c.doAuthRequest(ctx, http.MethodGet, "/me", nil)
	if err != nil {
		return nil, err
	}

	var p PrincipalInfo
	if err := decodeJSON(resp, &p, http.StatusOK); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateTask creates a task owned by the session's principal.
func (c *Client) CreateTask(ctx context.Context, task TaskRequest) (*TaskResponse, error) {
	resp, err := c.doAuthRequest(ctx, http.MethodPost, "/tasks", task)
	if err != nil {
		return nil, err
	}

	var t TaskResponse
	if err := decodeJSON(resp, &t, http.StatusCreated); err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTasks returns every task of the session's principal.
func (c *Client) ListTasks(ctx context.Context) ([]TaskResponse, error) {
	return c.listTasks(ctx, "/tasks")
}

// ListTasksByStatus returns the tasks in one status.
func (c *Client) ListTasksByStatus(ctx context.Context, status string) ([]TaskResponse, error) {
	return c.listTasks(ctx, "/tasks/status/"+url.PathEscape(status))
}

func (c *Client) listTasks(ctx context.Context, path string) ([]TaskResponse, error) {
	resp, err := c.doAuthRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var tasks []TaskResponse
	if err := decodeJSON(resp, &tasks, http.StatusOK); err != nil {
		return nil, err
	}
	return tasks, nil
}

// GetTask returns one task.
func (c *Client) GetTask(ctx context.Context, id string) (*TaskResponse, error) {
	resp, err := c.doAuthRequest(ctx, http.MethodGet, "/tasks/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}

	var t TaskResponse
	if err := decodeJSON(resp, &t, http.StatusOK); err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateTask replaces the editable fields of a task.
func (c *Client) UpdateTask(ctx context.Context, id string, task TaskRequest) (*TaskResponse, error) {
	resp, err := c.doAuthRequest(ctx, http.MethodPut, "/tasks/"+url.PathEscape(id), task)
	if err != nil {
		return nil, err
	}

	var t TaskResponse
	if err := decodeJSON(resp, &t, http.StatusOK); err != nil {
		return nil, err
	}
	return &t, nil
}

// DeleteTask deletes a task.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	resp, err := c.doAuthRequest(ctx, http.MethodDelete, "/tasks/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}
