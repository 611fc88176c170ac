package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

func (a *App) mountAnalytics(r chi.Router) {
	r.Get("/revenue", a.revenue)
	r.Get("/pipeline/analytics", a.pipelineAnalytics)
	r.Get("/tasks/this-week", a.thisWeek)
}

// revenue sums the deal book: pipeline is every open deal's value,
// forecasted weights open deals by probability, realized is the value
// of closed deals. NULL values contribute nothing.
func (a *App) revenue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var pipeline, forecasted, realized float64
	err := a.Store.withRetry(ctx, func() error {
		pipeline, forecasted, realized = 0, 0, 0
		if err := a.Store.QueryRow(ctx,
			`SELECT COALESCE(SUM(value), 0) FROM deals WHERE status = ?`, "closed").Scan(&realized); err != nil {
			return err
		}
		if err := a.Store.QueryRow(ctx,
			`SELECT COALESCE(SUM(value), 0) FROM deals WHERE status = ?`, "open").Scan(&pipeline); err != nil {
			return err
		}

		rows, err := a.Store.Query(ctx, `SELECT value, probability FROM deals WHERE status = ?`, "open")
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var value *float64
			var probability *int64
			if err := rows.Scan(&value, &probability); err != nil {
				return err
			}
			if value != nil && probability != nil {
				forecasted += *value * float64(*probability) / 100
			}
		}
		return rows.Err()
	})
	if err != nil {
		serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{
		"pipeline":   pipeline,
		"forecasted": forecasted,
		"realized":   realized,
	})
}

var stageOrder = []string{"qualification", "needs_analysis", "proposal", "negotiation"}

type stageBucket struct {
	Deals         []Deal  `json:"deals"`
	TotalValue    float64 `json:"total_value"`
	WeightedValue float64 `json:"weighted_value"`
	Count         int     `json:"count"`
}

type forecastBucket struct {
	Total    float64 `json:"total"`
	Weighted float64 `json:"weighted"`
	Count    int     `json:"count"`
}

// pipelineAnalytics groups the open deal book by stage and by expected
// close month, and splits each deal's value evenly across the SKU
// subcategories associated with it. The aggregation runs in-process
// over one deal query plus one junction query.
func (a *App) pipelineAnalytics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var deals []Deal
	var skusByDeal map[int64][]SKU
	err := a.Store.withRetry(ctx, func() error {
		deals = deals[:0]
		rows, err := a.Store.Query(ctx,
			`SELECT `+dealColumns+`
			 FROM deals d
			 LEFT JOIN contacts c ON d.contact_id = c.id
			 WHERE d.status = ?
			 ORDER BY d.expected_close_date ASC, d.value DESC`, "open")
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			d, err := scanDeal(rows)
			if err != nil {
				return err
			}
			deals = append(deals, d)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		skusByDeal, err = a.dealSKUs(ctx, "open")
		return err
	})
	if err != nil {
		serverError(w, err)
		return
	}

	stages := make(map[string]*stageBucket, len(stageOrder))
	for _, stage := range stageOrder {
		stages[stage] = &stageBucket{Deals: []Deal{}}
	}
	monthlyForecast := map[string]*forecastBucket{}
	subcategoryForecast := map[string]map[string]float64{}

	for i := range deals {
		deal := &deals[i]
		deal.SKUs = skusByDeal[deal.ID]
		if deal.SKUs == nil {
			deal.SKUs = []SKU{}
		}
		value := 0.0
		if deal.Value != nil {
			value = *deal.Value
		}
		weighted := 0.0
		if deal.Value != nil && deal.Probability != nil {
			weighted = *deal.Value * float64(*deal.Probability) / 100
		}

		if deal.Stage != nil {
			if bucket, tracked := stages[*deal.Stage]; tracked {
				bucket.Deals = append(bucket.Deals, *deal)
				bucket.TotalValue += value
				bucket.WeightedValue += weighted
				bucket.Count++
			}
		}

		month := "No Date Set"
		if deal.ExpectedCloseDate != nil && len(*deal.ExpectedCloseDate) >= 7 {
			month = (*deal.ExpectedCloseDate)[:7]
		}
		mb := monthlyForecast[month]
		if mb == nil {
			mb = &forecastBucket{}
			monthlyForecast[month] = mb
		}
		mb.Total += value
		mb.Weighted += weighted
		mb.Count++

		// Spread the deal's value evenly across its distinct
		// subcategories for the per-line monthly view.
		subcats := distinctSubcategories(deal.SKUs)
		if len(subcats) == 0 {
			subcats = []string{"Uncategorized"}
		}
		share := value / float64(len(subcats))
		if subcategoryForecast[month] == nil {
			subcategoryForecast[month] = map[string]float64{}
		}
		for _, sc := range subcats {
			subcategoryForecast[month][sc] += share
		}
	}

	totalPipeline, totalWeighted, totalDeals := 0.0, 0.0, 0
	for _, bucket := range stages {
		totalPipeline += bucket.TotalValue
		totalWeighted += bucket.WeightedValue
		totalDeals += bucket.Count
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"stages":               stages,
		"monthly_forecast":     monthlyForecast,
		"subcategory_forecast": subcategoryForecast,
		"totals": map[string]any{
			"pipeline":   totalPipeline,
			"weighted":   totalWeighted,
			"deal_count": totalDeals,
		},
	})
}

func distinctSubcategories(skus []SKU) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range skus {
		if !seen[s.Subcategory] {
			seen[s.Subcategory] = true
			out = append(out, s.Subcategory)
		}
	}
	return out
}

// weekBounds reports the Monday and Sunday of the week containing now,
// as YYYY-MM-DD strings (dates are stored as ISO text).
func weekBounds(now time.Time) (string, string) {
	offset := (int(now.Weekday()) + 6) % 7
	monday := now.AddDate(0, 0, -offset)
	sunday := monday.AddDate(0, 0, 6)
	return monday.Format("2006-01-02"), sunday.Format("2006-01-02")
}

type weeklyActivity struct {
	Activity
	DealName    *string `json:"deal_name"`
	ContactName *string `json:"contact_name"`
}

// thisWeek returns the tasks and activities due Monday through Sunday
// of the current week. Completed tasks are excluded; activities have no
// completion state and are always listed.
func (a *App) thisWeek(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	monday, sunday := weekBounds(time.Now())

	tasks := []Task{}
	activities := []weeklyActivity{}
	err := a.Store.withRetry(ctx, func() error {
		tasks = tasks[:0]
		activities = activities[:0]

		rows, err := a.Store.Query(ctx,
			`SELECT id, name, detail, due_date, completed, priority, category, assignee, recurring, created_at
			 FROM tasks
			 WHERE due_date >= ? AND due_date <= ? AND NOT completed
			 ORDER BY due_date ASC, created_at DESC`, monday, sunday)
		if err != nil {
			return err
		}
		for rows.Next() {
			var t Task
			if err := rows.Scan(&t.ID, &t.Name, &t.Detail, &t.DueDate, &t.Completed,
				&t.Priority, &t.Category, &t.Assignee, &t.Recurring, &t.CreatedAt); err != nil {
				rows.Close()
				return err
			}
			tasks = append(tasks, t)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		rows, err = a.Store.Query(ctx,
			`SELECT a.id, a.deal_id, a.contact_id, a.type, a.description, a.next_steps, a.due_date, a.created_at,
			        d.name AS deal_name, c.name AS contact_name
			 FROM activities a
			 LEFT JOIN deals d ON a.deal_id = d.id
			 LEFT JOIN contacts c ON a.contact_id = c.id
			 WHERE a.due_date >= ? AND a.due_date <= ?
			 ORDER BY a.due_date ASC, a.created_at DESC`, monday, sunday)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var v weeklyActivity
			if err := rows.Scan(&v.ID, &v.DealID, &v.ContactID, &v.Type, &v.Description,
				&v.NextSteps, &v.DueDate, &v.CreatedAt, &v.DealName, &v.ContactName); err != nil {
				return err
			}
			activities = append(activities, v)
		}
		return rows.Err()
	})
	if err != nil {
		serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tasks":      tasks,
		"activities": activities,
	})
}
