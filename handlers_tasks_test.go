package main

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeekBounds(t *testing.T) {
	date := func(s string) time.Time {
		v, err := time.Parse("2006-01-02", s)
		require.NoError(t, err)
		return v
	}

	// A Monday maps to itself.
	monday, sunday := weekBounds(date("2026-08-24"))
	assert.Equal(t, "2026-08-24", monday)
	assert.Equal(t, "2026-08-30", sunday)

	// Midweek and the Sunday edge stay inside the same week.
	monday, sunday = weekBounds(date("2026-08-26"))
	assert.Equal(t, "2026-08-24", monday)
	assert.Equal(t, "2026-08-30", sunday)

	monday, sunday = weekBounds(date("2026-08-30"))
	assert.Equal(t, "2026-08-24", monday)
	assert.Equal(t, "2026-08-30", sunday)
}

type weeklyDigest struct {
	Tasks      []Task           `json:"tasks"`
	Activities []weeklyActivity `json:"activities"`
}

func TestThisWeekDigest(t *testing.T) {
	app := newTestApp(t)
	monday, _ := weekBounds(time.Now())
	start, err := time.Parse("2006-01-02", monday)
	require.NoError(t, err)
	wednesday := start.AddDate(0, 0, 2).Format("2006-01-02")
	nextMonth := start.AddDate(0, 1, 0).Format("2006-01-02")

	w := doRequest(t, app, http.MethodPost, "/api/tasks", map[string]any{
		"name": "Call the mill", "due_date": wednesday,
	})
	taskID := createdID(t, w)
	w = doRequest(t, app, http.MethodPost, "/api/tasks", map[string]any{
		"name": "Far away", "due_date": nextMonth,
	})
	createdID(t, w)

	w = doRequest(t, app, http.MethodPost, "/api/deals", map[string]any{"name": "Panels"})
	dealID := createdID(t, w)
	w = doRequest(t, app, http.MethodPost, "/api/activities", map[string]any{
		"deal_id": dealID, "type": "call", "due_date": wednesday,
	})
	createdID(t, w)

	w = doRequest(t, app, http.MethodGet, "/api/tasks/this-week", nil)
	require.Equal(t, http.StatusOK, w.Code)
	digest := decodeBody[weeklyDigest](t, w)

	require.Len(t, digest.Tasks, 1)
	assert.Equal(t, "Call the mill", digest.Tasks[0].Name)
	require.Len(t, digest.Activities, 1)
	require.NotNil(t, digest.Activities[0].DealName)
	assert.Equal(t, "Panels", *digest.Activities[0].DealName)

	// Completing the task removes it from the digest.
	w = doRequest(t, app, http.MethodPatch, fmt.Sprintf("/api/tasks/%d/complete", taskID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, app, http.MethodGet, "/api/tasks/this-week", nil)
	digest = decodeBody[weeklyDigest](t, w)
	assert.Empty(t, digest.Tasks)
	assert.Len(t, digest.Activities, 1)
}

func TestToggleTaskComplete(t *testing.T) {
	app := newTestApp(t)

	w := doRequest(t, app, http.MethodPost, "/api/tasks", map[string]any{"name": "Invoice"})
	taskID := createdID(t, w)

	w = doRequest(t, app, http.MethodPatch, fmt.Sprintf("/api/tasks/%d/complete", taskID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, app, http.MethodGet, "/api/tasks", nil)
	tasks := decodeBody[[]Task](t, w)
	require.Len(t, tasks, 1)
	assert.True(t, tasks[0].Completed)

	// A second toggle flips it back.
	w = doRequest(t, app, http.MethodPatch, fmt.Sprintf("/api/tasks/%d/complete", taskID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	tasks = decodeBody[[]Task](t, doRequest(t, app, http.MethodGet, "/api/tasks", nil))
	assert.False(t, tasks[0].Completed)
}

func TestToggleUnknownTask(t *testing.T) {
	app := newTestApp(t)
	w := doRequest(t, app, http.MethodPatch, "/api/tasks/999/complete", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateTaskRequiresName(t *testing.T) {
	app := newTestApp(t)
	w := doRequest(t, app, http.MethodPost, "/api/tasks", map[string]any{"priority": "High"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
