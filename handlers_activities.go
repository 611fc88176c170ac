package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

type Activity struct {
	ID          int64      `json:"id"`
	DealID      *int64     `json:"deal_id"`
	ContactID   *int64     `json:"contact_id"`
	Type        *string    `json:"type"`
	Description *string    `json:"description"`
	NextSteps   *string    `json:"next_steps"`
	DueDate     *string    `json:"due_date"`
	CreatedAt   *time.Time `json:"created_at"`
}

type ActivityInput struct {
	DealID      *int64  `json:"deal_id"`
	ContactID   *int64  `json:"contact_id"`
	Type        *string `json:"type"`
	Description *string `json:"description"`
	NextSteps   *string `json:"next_steps"`
	DueDate     *string `json:"due_date"`
}

func (a *App) mountActivities(r chi.Router) {
	r.Get("/activities", a.listActivities)
	r.Post("/activities", a.createActivity)
	r.Put("/activities/{id}", a.updateActivity)
	r.Delete("/activities/{id}", a.deleteActivity)
}

func (a *App) listActivities(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dealID := r.URL.Query().Get("deal_id")

	query := `SELECT id, deal_id, contact_id, type, description, next_steps, due_date, created_at
	          FROM activities ORDER BY created_at DESC`
	var args []any
	if dealID != "" {
		query = `SELECT id, deal_id, contact_id, type, description, next_steps, due_date, created_at
		         FROM activities WHERE deal_id=? ORDER BY created_at DESC`
		args = append(args, dealID)
	}

	out := []Activity{}
	err := a.Store.withRetry(ctx, func() error {
		out = out[:0]
		rows, err := a.Store.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var v Activity
			if err := rows.Scan(&v.ID, &v.DealID, &v.ContactID, &v.Type, &v.Description,
				&v.NextSteps, &v.DueDate, &v.CreatedAt); err != nil {
				return err
			}
			out = append(out, v)
		}
		return rows.Err()
	})
	if err != nil {
		serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *App) createActivity(w http.ResponseWriter, r *http.Request) {
	var in ActivityInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		badRequest(w, "invalid json: "+err.Error())
		return
	}
	ctx := r.Context()
	var id int64
	err := a.Store.withRetry(ctx, func() error {
		var err error
		id, err = a.Store.InsertID(ctx,
			`INSERT INTO activities (deal_id, contact_id, type, description, next_steps, due_date)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			in.DealID, in.ContactID, in.Type, in.Description, in.NextSteps, in.DueDate)
		return err
	})
	if err != nil {
		serverError(w, err)
		return
	}
	created(w, id)
}

func (a *App) updateActivity(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}
	var in ActivityInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		badRequest(w, "invalid json: "+err.Error())
		return
	}
	ctx := r.Context()
	err = a.Store.withRetry(ctx, func() error {
		_, err := a.Store.Exec(ctx,
			`UPDATE activities
			 SET deal_id=?, contact_id=?, type=?, description=?, next_steps=?, due_date=?
			 WHERE id=?`,
			in.DealID, in.ContactID, in.Type, in.Description, in.NextSteps, in.DueDate, id)
		return err
	})
	if err != nil {
		serverError(w, err)
		return
	}
	ok(w)
}

func (a *App) deleteActivity(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}
	ctx := r.Context()
	err = a.Store.withRetry(ctx, func() error {
		_, err := a.Store.Exec(ctx, `DELETE FROM activities WHERE id=?`, id)
		return err
	})
	if err != nil {
		serverError(w, err)
		return
	}
	ok(w)
}
