package main

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// Task is a standalone to-do, not linked to a deal.
type Task struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Detail    *string    `json:"detail"`
	DueDate   *string    `json:"due_date"`
	Completed bool       `json:"completed"`
	Priority  *string    `json:"priority"`
	Category  *string    `json:"category"`
	Assignee  *string    `json:"assignee"`
	Recurring bool       `json:"recurring"`
	CreatedAt *time.Time `json:"created_at"`
}

type TaskInput struct {
	Name      string  `json:"name"`
	Detail    *string `json:"detail"`
	DueDate   *string `json:"due_date"`
	Completed bool    `json:"completed"`
	Priority  *string `json:"priority"`
	Category  *string `json:"category"`
	Assignee  *string `json:"assignee"`
	Recurring bool    `json:"recurring"`
}

func (a *App) mountTasks(r chi.Router) {
	r.Get("/tasks", a.listTasks)
	r.Post("/tasks", a.createTask)
	r.Put("/tasks/{id}", a.updateTask)
	r.Patch("/tasks/{id}/complete", a.toggleTaskComplete)
	r.Delete("/tasks/{id}", a.deleteTask)
}

func (a *App) listTasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	out := []Task{}
	err := a.Store.withRetry(ctx, func() error {
		out = out[:0]
		rows, err := a.Store.Query(ctx,
			`SELECT id, name, detail, due_date, completed, priority, category, assignee, recurring, created_at
			 FROM tasks ORDER BY created_at DESC`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var t Task
			if err := rows.Scan(&t.ID, &t.Name, &t.Detail, &t.DueDate, &t.Completed,
				&t.Priority, &t.Category, &t.Assignee, &t.Recurring, &t.CreatedAt); err != nil {
				return err
			}
			out = append(out, t)
		}
		return rows.Err()
	})
	if err != nil {
		serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *App) createTask(w http.ResponseWriter, r *http.Request) {
	var in TaskInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		badRequest(w, "invalid json: "+err.Error())
		return
	}
	if strings.TrimSpace(in.Name) == "" {
		badRequest(w, "name is required")
		return
	}
	ctx := r.Context()
	var id int64
	err := a.Store.withRetry(ctx, func() error {
		var err error
		id, err = a.Store.InsertID(ctx,
			`INSERT INTO tasks (name, detail, due_date, completed, priority, category, assignee, recurring)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			in.Name, in.Detail, in.DueDate, in.Completed, in.Priority, in.Category, in.Assignee, in.Recurring)
		return err
	})
	if err != nil {
		serverError(w, err)
		return
	}
	created(w, id)
}

func (a *App) updateTask(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}
	var in TaskInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		badRequest(w, "invalid json: "+err.Error())
		return
	}
	if strings.TrimSpace(in.Name) == "" {
		badRequest(w, "name is required")
		return
	}
	ctx := r.Context()
	err = a.Store.withRetry(ctx, func() error {
		_, err := a.Store.Exec(ctx,
			`UPDATE tasks
			 SET name=?, detail=?, due_date=?, completed=?, priority=?, category=?, assignee=?, recurring=?
			 WHERE id=?`,
			in.Name, in.Detail, in.DueDate, in.Completed, in.Priority, in.Category, in.Assignee, in.Recurring, id)
		return err
	})
	if err != nil {
		serverError(w, err)
		return
	}
	ok(w)
}

// toggleTaskComplete flips the completion flag. The only PATCH in the
// API surface.
func (a *App) toggleTaskComplete(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}
	ctx := r.Context()
	var affected int64
	err = a.Store.withRetry(ctx, func() error {
		res, err := a.Store.Exec(ctx, `UPDATE tasks SET completed = NOT completed WHERE id=?`, id)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		serverError(w, err)
		return
	}
	if affected == 0 {
		notFound(w, "Task not found")
		return
	}
	ok(w)
}

func (a *App) deleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}
	ctx := r.Context()
	err = a.Store.withRetry(ctx, func() error {
		_, err := a.Store.Exec(ctx, `DELETE FROM tasks WHERE id=?`, id)
		return err
	})
	if err != nil {
		serverError(w, err)
		return
	}
	ok(w)
}
