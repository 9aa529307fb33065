package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trendscout/trendscout/internal/api/shared"
	"github.com/trendscout/trendscout/internal/domain"
)

func taskUser() *domain.User {
	return &domain.User{
		ID:       uuid.New(),
		Email:    "user@example.com",
		IsActive: true,
	}
}

// authedRequest builds a request carrying the user the way the auth
// middleware would.
func authedRequest(method, target string, body []byte, user *domain.User) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	ctx := context.WithValue(req.Context(), shared.UserContextKey, user)
	return req.WithContext(ctx)
}

// withPathID attaches a chi route parameter to the request.
func withPathID(req *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestCreateTask(t *testing.T) {
	svc, taskStore, _ := newTestTaskService(t)
	h := NewTaskHandler(svc)
	user := taskUser()

	body, _ := json.Marshal(CreateTaskRequest{
		AgentType: "trend_analyzer",
		InputData: map[string]any{"query": "e-bikes"},
	})
	rr := httptest.NewRecorder()
	h.CreateTask(rr, authedRequest(http.MethodPost, "/tasks", body, user))

	require.Equal(t, http.StatusCreated, rr.Code)

	var task domain.Task
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &task))
	assert.Equal(t, "trend_analyzer", task.AgentType)
	assert.Equal(t, domain.TaskStatusPending, task.Status)
	assert.Equal(t, user.ID, task.Owner)

	_, err := taskStore.GetByID(context.Background(), task.ID)
	assert.NoError(t, err)
}

func TestCreateTaskMissingAgentType(t *testing.T) {
	svc, _, _ := newTestTaskService(t)
	h := NewTaskHandler(svc)

	body := []byte(`{"input_data": {"query": "x"}}`)
	rr := httptest.NewRecorder()
	h.CreateTask(rr, authedRequest(http.MethodPost, "/tasks", body, taskUser()))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateTaskMalformedBody(t *testing.T) {
	svc, _, _ := newTestTaskService(t)
	h := NewTaskHandler(svc)

	rr := httptest.NewRecorder()
	h.CreateTask(rr, authedRequest(http.MethodPost, "/tasks", []byte("{not json"), taskUser()))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateTaskWithoutUser(t *testing.T) {
	svc, _, _ := newTestTaskService(t)
	h := NewTaskHandler(svc)

	body, _ := json.Marshal(CreateTaskRequest{AgentType: "trend_analyzer"})
	rr := httptest.NewRecorder()
	h.CreateTask(rr, httptest.NewRequest(http.MethodPost, "/tasks", bytes.NewReader(body)))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestGetTask(t *testing.T) {
	svc, _, _ := newTestTaskService(t)
	h := NewTaskHandler(svc)
	user := taskUser()

	task, err := svc.Submit(context.Background(), user, "trend_analyzer", nil)
	require.NoError(t, err)

	req := authedRequest(http.MethodGet, "/tasks/"+task.ID.String(), nil, user)
	rr := httptest.NewRecorder()
	h.GetTask(rr, withPathID(req, task.ID.String()))

	require.Equal(t, http.StatusOK, rr.Code)

	var got domain.Task
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, task.ID, got.ID)
}

func TestGetTaskNotFound(t *testing.T) {
	svc, _, _ := newTestTaskService(t)
	h := NewTaskHandler(svc)

	id := uuid.New().String()
	req := authedRequest(http.MethodGet, "/tasks/"+id, nil, taskUser())
	rr := httptest.NewRecorder()
	h.GetTask(rr, withPathID(req, id))

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGetTaskForbiddenForOtherUser(t *testing.T) {
	svc, _, _ := newTestTaskService(t)
	h := NewTaskHandler(svc)

	task, err := svc.Submit(context.Background(), taskUser(), "trend_analyzer", nil)
	require.NoError(t, err)

	req := authedRequest(http.MethodGet, "/tasks/"+task.ID.String(), nil, taskUser())
	rr := httptest.NewRecorder()
	h.GetTask(rr, withPathID(req, task.ID.String()))

	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestGetTaskInvalidID(t *testing.T) {
	svc, _, _ := newTestTaskService(t)
	h := NewTaskHandler(svc)

	req := authedRequest(http.MethodGet, "/tasks/not-a-uuid", nil, taskUser())
	rr := httptest.NewRecorder()
	h.GetTask(rr, withPathID(req, "not-a-uuid"))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestListTasks(t *testing.T) {
	svc, _, _ := newTestTaskService(t)
	h := NewTaskHandler(svc)
	user := taskUser()

	_, err := svc.Submit(context.Background(), user, "trend_analyzer", nil)
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), user, "scheduler", nil)
	require.NoError(t, err)
	// Another user's task must not show up.
	_, err = svc.Submit(context.Background(), taskUser(), "scheduler", nil)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	h.ListTasks(rr, authedRequest(http.MethodGet, "/tasks", nil, user))

	require.Equal(t, http.StatusOK, rr.Code)

	var resp TaskListResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)
	assert.Len(t, resp.Tasks, 2)
}

func TestListTasksEmpty(t *testing.T) {
	svc, _, _ := newTestTaskService(t)
	h := NewTaskHandler(svc)

	rr := httptest.NewRecorder()
	h.ListTasks(rr, authedRequest(http.MethodGet, "/tasks", nil, taskUser()))

	require.Equal(t, http.StatusOK, rr.Code)
	// An empty list serializes as [], not null.
	assert.Contains(t, rr.Body.String(), `"tasks":[]`)
}

func TestListTasksFilters(t *testing.T) {
	svc, _, _ := newTestTaskService(t)
	h := NewTaskHandler(svc)
	user := taskUser()

	_, err := svc.Submit(context.Background(), user, "trend_analyzer", nil)
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), user, "scheduler", nil)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	h.ListTasks(rr, authedRequest(http.MethodGet, "/tasks?agent_type=scheduler", nil, user))

	require.Equal(t, http.StatusOK, rr.Code)

	var resp TaskListResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
	require.Len(t, resp.Tasks, 1)
	assert.Equal(t, "scheduler", resp.Tasks[0].AgentType)
}

func TestListTasksInvalidQuery(t *testing.T) {
	svc, _, _ := newTestTaskService(t)
	h := NewTaskHandler(svc)

	for _, target := range []string{
		"/tasks?skip=-1",
		"/tasks?limit=0",
		"/tasks?limit=abc",
		"/tasks?status=sleeping",
	} {
		rr := httptest.NewRecorder()
		h.ListTasks(rr, authedRequest(http.MethodGet, target, nil, taskUser()))
		assert.Equal(t, http.StatusBadRequest, rr.Code, target)
	}
}

func TestDeleteTask(t *testing.T) {
	svc, taskStore, _ := newTestTaskService(t)
	h := NewTaskHandler(svc)
	user := taskUser()

	task, err := svc.Submit(context.Background(), user, "trend_analyzer", nil)
	require.NoError(t, err)

	req := authedRequest(http.MethodDelete, "/tasks/"+task.ID.String(), nil, user)
	rr := httptest.NewRecorder()
	h.DeleteTask(rr, withPathID(req, task.ID.String()))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "deleted")
	assert.Empty(t, taskStore.tasks)
}

func TestDeleteTaskForbidden(t *testing.T) {
	svc, _, _ := newTestTaskService(t)
	h := NewTaskHandler(svc)

	task, err := svc.Submit(context.Background(), taskUser(), "trend_analyzer", nil)
	require.NoError(t, err)

	req := authedRequest(http.MethodDelete, "/tasks/"+task.ID.String(), nil, taskUser())
	rr := httptest.NewRecorder()
	h.DeleteTask(rr, withPathID(req, task.ID.String()))

	assert.Equal(t, http.StatusForbidden, rr.Code)
}
