package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func (a *App) mountSettings(r chi.Router) {
	r.Get("/settings/{key}", a.getSetting)
	r.Put("/settings/{key}", a.putSetting)
	r.Get("/goal/progress", a.goalProgress)
}

func (a *App) getSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	ctx := r.Context()
	var value string
	err := a.Store.withRetry(ctx, func() error {
		return a.Store.QueryRow(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	})
	if errors.Is(err, sql.ErrNoRows) {
		notFound(w, "Setting not found")
		return
	}
	if err != nil {
		serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": value})
}

func (a *App) putSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var in struct {
		Value *string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		badRequest(w, "invalid json: "+err.Error())
		return
	}
	if in.Value == nil {
		badRequest(w, "value is required")
		return
	}

	ctx := r.Context()
	err := a.Store.withRetry(ctx, func() error {
		res, err := a.Store.Exec(ctx,
			`UPDATE settings SET value = ?, updated_at = CURRENT_TIMESTAMP WHERE key = ?`, *in.Value, key)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil || affected > 0 {
			return err
		}
		_, err = a.Store.Exec(ctx, `INSERT INTO settings (key, value) VALUES (?, ?)`, key, *in.Value)
		return err
	})
	if err != nil {
		serverError(w, err)
		return
	}
	ok(w)
}

// goalProgress reports closed revenue against the configured annual
// goal. An unset goal falls back to the seeded default.
func (a *App) goalProgress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	annualGoal := 1000000.0
	var closedRevenue float64
	err := a.Store.withRetry(ctx, func() error {
		var goal string
		err := a.Store.QueryRow(ctx, `SELECT value FROM settings WHERE key = ?`, "annual_goal").Scan(&goal)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return err
		default:
			if v, perr := strconv.ParseFloat(goal, 64); perr == nil {
				annualGoal = v
			}
		}
		return a.Store.QueryRow(ctx, `SELECT COALESCE(SUM(closed_revenue), 0) FROM deals`).Scan(&closedRevenue)
	})
	if err != nil {
		serverError(w, err)
		return
	}

	percentage := 0.0
	if annualGoal > 0 {
		percentage = closedRevenue / annualGoal * 100
	}
	writeJSON(w, http.StatusOK, map[string]float64{
		"annual_goal":    annualGoal,
		"closed_revenue": closedRevenue,
		"percentage":     percentage,
	})
}
