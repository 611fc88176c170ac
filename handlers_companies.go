package main

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

type Company struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	Website      *string    `json:"website"`
	Industry     *string    `json:"industry"`
	Notes        *string    `json:"notes"`
	CreatedAt    *time.Time `json:"created_at"`
	ContactCount int64      `json:"contact_count"`
}

type CompanyInput struct {
	Name     string  `json:"name"`
	Website  *string `json:"website"`
	Industry *string `json:"industry"`
	Notes    *string `json:"notes"`
}

func (a *App) mountCompanies(r chi.Router) {
	r.Get("/companies", a.listCompanies)
	r.Post("/companies", a.createCompany)
	r.Get("/companies/{id}/contacts", a.listCompanyContacts)
	r.Put("/companies/{id}", a.updateCompany)
	r.Delete("/companies/{id}", a.deleteCompany)
}

func (a *App) listCompanies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	out := []Company{}
	err := a.Store.withRetry(ctx, func() error {
		out = out[:0]
		rows, err := a.Store.Query(ctx,
			`SELECT c.id, c.name, c.website, c.industry, c.notes, c.created_at,
			        COUNT(ct.id) AS contact_count
			 FROM companies c
			 LEFT JOIN contacts ct ON c.id = ct.company_id
			 GROUP BY c.id, c.name, c.website, c.industry, c.notes, c.created_at
			 ORDER BY c.name`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var c Company
			if err := rows.Scan(&c.ID, &c.Name, &c.Website, &c.Industry, &c.Notes,
				&c.CreatedAt, &c.ContactCount); err != nil {
				return err
			}
			out = append(out, c)
		}
		return rows.Err()
	})
	if err != nil {
		serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *App) listCompanyContacts(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}
	ctx := r.Context()
	out := []Contact{}
	err = a.Store.withRetry(ctx, func() error {
		out = out[:0]
		rows, err := a.Store.Query(ctx,
			`SELECT id, name, email, phone, company, company_id, title, website, additional_info, created_at
			 FROM contacts WHERE company_id = ? ORDER BY name`, id)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var c Contact
			if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Company, &c.CompanyID,
				&c.Title, &c.Website, &c.AdditionalInfo, &c.CreatedAt); err != nil {
				return err
			}
			out = append(out, c)
		}
		return rows.Err()
	})
	if err != nil {
		serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *App) createCompany(w http.ResponseWriter, r *http.Request) {
	var in CompanyInput
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
			`INSERT INTO companies (name, website, industry, notes) VALUES (?, ?, ?, ?)`,
			in.Name, in.Website, in.Industry, in.Notes)
		return err
	})
	if err != nil {
		serverError(w, err)
		return
	}
	created(w, id)
}

func (a *App) updateCompany(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}
	var in CompanyInput
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
			`UPDATE companies SET name=?, website=?, industry=?, notes=? WHERE id=?`,
			in.Name, in.Website, in.Industry, in.Notes, id)
		return err
	})
	if err != nil {
		serverError(w, err)
		return
	}
	ok(w)
}

// deleteCompany unlinks dependent contacts instead of cascading: the
// contacts stay, with company_id cleared and their free-text company
// field untouched.
func (a *App) deleteCompany(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}
	ctx := r.Context()
	err = a.Store.withRetry(ctx, func() error {
		if _, err := a.Store.Exec(ctx, `UPDATE contacts SET company_id = NULL WHERE company_id = ?`, id); err != nil {
			return err
		}
		_, err := a.Store.Exec(ctx, `DELETE FROM companies WHERE id=?`, id)
		return err
	})
	if err != nil {
		serverError(w, err)
		return
	}
	ok(w)
}
