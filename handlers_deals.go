package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// Deal is a sales opportunity. Most fields are nullable because deals
// accumulate qualification data over their lifetime.
type Deal struct {
	ID                int64      `json:"id"`
	Name              string     `json:"name"`
	ContactID         *int64     `json:"contact_id"`
	Value             *float64   `json:"value"`
	Probability       *int64     `json:"probability"`
	Stage             *string    `json:"stage"`
	Status            *string    `json:"status"`
	LeadSource        *string    `json:"lead_source"`
	Budget            *string    `json:"budget"`
	Authority         *string    `json:"authority"`
	Need              *string    `json:"need"`
	Timeline          *string    `json:"timeline"`
	ExpectedCloseDate *string    `json:"expected_close_date"`
	ClosedRevenue     *float64   `json:"closed_revenue"`
	CreatedAt         *time.Time `json:"created_at"`
	ContactName       *string    `json:"contact_name"`
	SKUs              []SKU      `json:"skus"`
}

type DealInput struct {
	Name              string   `json:"name"`
	ContactID         *int64   `json:"contact_id"`
	Value             *float64 `json:"value"`
	Probability       *int64   `json:"probability"`
	Stage             *string  `json:"stage"`
	Status            *string  `json:"status"`
	LeadSource        *string  `json:"lead_source"`
	Budget            *string  `json:"budget"`
	Authority         *string  `json:"authority"`
	Need              *string  `json:"need"`
	Timeline          *string  `json:"timeline"`
	ExpectedCloseDate *string  `json:"expected_close_date"`
	ClosedRevenue     *float64 `json:"closed_revenue"`
	SKUIDs            []int64  `json:"sku_ids"`
}

func (a *App) mountDeals(r chi.Router) {
	r.Get("/deals", a.listDeals)
	r.Post("/deals", a.createDeal)
	r.Put("/deals/{id}", a.updateDeal)
	r.Delete("/deals/{id}", a.deleteDeal)
}

const dealColumns = `d.id, d.name, d.contact_id, d.value, d.probability, d.stage, d.status,
	d.lead_source, d.budget, d.authority, d.need, d.timeline,
	d.expected_close_date, d.closed_revenue, d.created_at, c.name AS contact_name`

func scanDeal(rows interface{ Scan(...any) error }) (Deal, error) {
	var d Deal
	err := rows.Scan(&d.ID, &d.Name, &d.ContactID, &d.Value, &d.Probability, &d.Stage, &d.Status,
		&d.LeadSource, &d.Budget, &d.Authority, &d.Need, &d.Timeline,
		&d.ExpectedCloseDate, &d.ClosedRevenue, &d.CreatedAt, &d.ContactName)
	return d, err
}

// dealSKUs loads the SKU associations for a set of deals in one query.
func (a *App) dealSKUs(ctx context.Context, status string) (map[int64][]SKU, error) {
	query := `SELECT ds.deal_id, s.id, s.name, s.category, s.subcategory
	          FROM deal_skus ds
	          INNER JOIN skus s ON s.id = ds.sku_id`
	var args []any
	if status != "" {
		query += ` INNER JOIN deals d ON d.id = ds.deal_id WHERE d.status = ?`
		args = append(args, status)
	}
	rows, err := a.Store.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bySKU := map[int64][]SKU{}
	for rows.Next() {
		var dealID int64
		var s SKU
		if err := rows.Scan(&dealID, &s.ID, &s.Name, &s.Category, &s.Subcategory); err != nil {
			return nil, err
		}
		bySKU[dealID] = append(bySKU[dealID], s)
	}
	return bySKU, rows.Err()
}

func (a *App) listDeals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	out := []Deal{}
	err := a.Store.withRetry(ctx, func() error {
		out = out[:0]
		rows, err := a.Store.Query(ctx,
			`SELECT `+dealColumns+`
			 FROM deals d
			 LEFT JOIN contacts c ON d.contact_id = c.id
			 ORDER BY d.created_at DESC`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			d, err := scanDeal(rows)
			if err != nil {
				return err
			}
			out = append(out, d)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		skus, err := a.dealSKUs(ctx, "")
		if err != nil {
			return err
		}
		for i := range out {
			out[i].SKUs = skus[out[i].ID]
			if out[i].SKUs == nil {
				out[i].SKUs = []SKU{}
			}
		}
		return nil
	})
	if err != nil {
		serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// replaceDealSKUs stores the association as a set: the previous links
// are removed and the new list inserted, duplicates discarded.
func (a *App) replaceDealSKUs(ctx context.Context, dealID int64, skuIDs []int64) error {
	if _, err := a.Store.Exec(ctx, `DELETE FROM deal_skus WHERE deal_id=?`, dealID); err != nil {
		return err
	}
	for _, skuID := range skuIDs {
		_, err := a.Store.Exec(ctx, `INSERT INTO deal_skus (deal_id, sku_id) VALUES (?, ?)`, dealID, skuID)
		if err != nil {
			if a.Store.dialect.uniqueViolation(err) {
				continue
			}
			return err
		}
	}
	return nil
}

func (a *App) createDeal(w http.ResponseWriter, r *http.Request) {
	var in DealInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		badRequest(w, "invalid json: "+err.Error())
		return
	}
	if strings.TrimSpace(in.Name) == "" {
		badRequest(w, "name is required")
		return
	}
	closedRevenue := 0.0
	if in.ClosedRevenue != nil {
		closedRevenue = *in.ClosedRevenue
	}

	ctx := r.Context()
	var id int64
	err := a.Store.withRetry(ctx, func() error {
		var err error
		id, err = a.Store.InsertID(ctx,
			`INSERT INTO deals (name, contact_id, value, probability, stage, status,
			                    lead_source, budget, authority, need, timeline, expected_close_date, closed_revenue)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			in.Name, in.ContactID, in.Value, in.Probability, in.Stage, in.Status,
			in.LeadSource, in.Budget, in.Authority, in.Need, in.Timeline, in.ExpectedCloseDate, closedRevenue)
		if err != nil {
			return err
		}
		return a.replaceDealSKUs(ctx, id, in.SKUIDs)
	})
	if err != nil {
		serverError(w, err)
		return
	}
	created(w, id)
}

func (a *App) updateDeal(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}
	var in DealInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		badRequest(w, "invalid json: "+err.Error())
		return
	}
	if strings.TrimSpace(in.Name) == "" {
		badRequest(w, "name is required")
		return
	}
	closedRevenue := 0.0
	if in.ClosedRevenue != nil {
		closedRevenue = *in.ClosedRevenue
	}

	ctx := r.Context()
	err = a.Store.withRetry(ctx, func() error {
		_, err := a.Store.Exec(ctx,
			`UPDATE deals
			 SET name=?, contact_id=?, value=?, probability=?, stage=?, status=?,
			     lead_source=?, budget=?, authority=?, need=?, timeline=?, expected_close_date=?, closed_revenue=?
			 WHERE id=?`,
			in.Name, in.ContactID, in.Value, in.Probability, in.Stage, in.Status,
			in.LeadSource, in.Budget, in.Authority, in.Need, in.Timeline, in.ExpectedCloseDate, closedRevenue, id)
		if err != nil {
			return err
		}
		return a.replaceDealSKUs(ctx, id, in.SKUIDs)
	})
	if err != nil {
		serverError(w, err)
		return
	}
	ok(w)
}

// deleteDeal removes the junction rows explicitly so both backends
// behave the same regardless of foreign key enforcement.
func (a *App) deleteDeal(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}
	ctx := r.Context()
	err = a.Store.withRetry(ctx, func() error {
		if _, err := a.Store.Exec(ctx, `DELETE FROM deal_skus WHERE deal_id=?`, id); err != nil {
			return err
		}
		_, err := a.Store.Exec(ctx, `DELETE FROM deals WHERE id=?`, id)
		return err
	})
	if err != nil {
		serverError(w, err)
		return
	}
	ok(w)
}
