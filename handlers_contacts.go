package main

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// Contact is a person record. The free-text Company field survives from
// the earliest revision; CompanyID is the normalized link the backfill
// maintains. CompanyName is joined in on reads.
type Contact struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	Email          *string    `json:"email"`
	Phone          *string    `json:"phone"`
	Company        *string    `json:"company"`
	CompanyID      *int64     `json:"company_id"`
	Title          *string    `json:"title"`
	Website        *string    `json:"website"`
	AdditionalInfo *string    `json:"additional_info"`
	CreatedAt      *time.Time `json:"created_at"`
	CompanyName    *string    `json:"company_name,omitempty"`
}

type ContactInput struct {
	Name           string  `json:"name"`
	Email          *string `json:"email"`
	Phone          *string `json:"phone"`
	Company        *string `json:"company"`
	CompanyID      *int64  `json:"company_id"`
	Title          *string `json:"title"`
	Website        *string `json:"website"`
	AdditionalInfo *string `json:"additional_info"`
}

func (a *App) mountContacts(r chi.Router) {
	r.Get("/contacts", a.listContacts)
	r.Post("/contacts", a.createContact)
	r.Put("/contacts/{id}", a.updateContact)
	r.Delete("/contacts/{id}", a.deleteContact)
}

func (a *App) listContacts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	out := []Contact{}
	err := a.Store.withRetry(ctx, func() error {
		out = out[:0]
		rows, err := a.Store.Query(ctx,
			`SELECT c.id, c.name, c.email, c.phone, c.company, c.company_id,
			        c.title, c.website, c.additional_info, c.created_at,
			        co.name AS company_name
			 FROM contacts c
			 LEFT JOIN companies co ON c.company_id = co.id
			 ORDER BY c.name`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var c Contact
			if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Company, &c.CompanyID,
				&c.Title, &c.Website, &c.AdditionalInfo, &c.CreatedAt, &c.CompanyName); err != nil {
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

func (a *App) createContact(w http.ResponseWriter, r *http.Request) {
	var in ContactInput
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
			`INSERT INTO contacts (name, email, phone, company, company_id, title, website, additional_info)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			in.Name, in.Email, in.Phone, in.Company, in.CompanyID, in.Title, in.Website, in.AdditionalInfo)
		return err
	})
	if err != nil {
		serverError(w, err)
		return
	}
	created(w, id)
}

func (a *App) updateContact(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}
	var in ContactInput
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
			`UPDATE contacts
			 SET name=?, email=?, phone=?, company=?, company_id=?, title=?, website=?, additional_info=?
			 WHERE id=?`,
			in.Name, in.Email, in.Phone, in.Company, in.CompanyID, in.Title, in.Website, in.AdditionalInfo, id)
		return err
	})
	if err != nil {
		serverError(w, err)
		return
	}
	ok(w)
}

func (a *App) deleteContact(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}
	ctx := r.Context()
	err = a.Store.withRetry(ctx, func() error {
		_, err := a.Store.Exec(ctx, `DELETE FROM contacts WHERE id=?`, id)
		return err
	})
	if err != nil {
		serverError(w, err)
		return
	}
	ok(w)
}
