package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type SKU struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
}

func (a *App) mountSKUs(r chi.Router) {
	// Read-only: the catalog shape only changes with a code change.
	r.Get("/skus", a.listSKUs)
}

// listSKUs returns the catalog organized category -> subcategory ->
// entries, the shape the frontend pickers consume.
func (a *App) listSKUs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	organized := map[string]map[string][]SKU{}
	err := a.Store.withRetry(ctx, func() error {
		clear(organized)
		rows, err := a.Store.Query(ctx,
			`SELECT id, name, category, subcategory FROM skus ORDER BY category, subcategory, name`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var s SKU
			if err := rows.Scan(&s.ID, &s.Name, &s.Category, &s.Subcategory); err != nil {
				return err
			}
			if organized[s.Category] == nil {
				organized[s.Category] = map[string][]SKU{}
			}
			organized[s.Category][s.Subcategory] = append(organized[s.Category][s.Subcategory], s)
		}
		return rows.Err()
	})
	if err != nil {
		serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, organized)
}
