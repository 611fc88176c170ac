package main

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRevenueTotals(t *testing.T) {
	app := newTestApp(t)

	// Two open deals: one with probability, one without.
	w := doRequest(t, app, http.MethodPost, "/api/deals", map[string]any{
		"name": "A", "status": "open", "value": 100000, "probability": 50,
	})
	createdID(t, w)
	w = doRequest(t, app, http.MethodPost, "/api/deals", map[string]any{
		"name": "B", "status": "open", "value": 50000,
	})
	createdID(t, w)
	w = doRequest(t, app, http.MethodPost, "/api/deals", map[string]any{
		"name": "C", "status": "closed", "value": 70000, "probability": 100,
	})
	createdID(t, w)

	w = doRequest(t, app, http.MethodGet, "/api/revenue", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decodeBody[map[string]float64](t, w)

	assert.InDelta(t, 150000, got["pipeline"], 0.001)
	assert.InDelta(t, 50000, got["forecasted"], 0.001)
	assert.InDelta(t, 70000, got["realized"], 0.001)
}

func TestRevenueEmptyBook(t *testing.T) {
	app := newTestApp(t)
	w := doRequest(t, app, http.MethodGet, "/api/revenue", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decodeBody[map[string]float64](t, w)
	assert.Zero(t, got["pipeline"])
	assert.Zero(t, got["forecasted"])
	assert.Zero(t, got["realized"])
}

type pipelineResponse struct {
	Stages              map[string]stageBucket            `json:"stages"`
	MonthlyForecast     map[string]forecastBucket         `json:"monthly_forecast"`
	SubcategoryForecast map[string]map[string]float64     `json:"subcategory_forecast"`
	Totals              struct {
		Pipeline  float64 `json:"pipeline"`
		Weighted  float64 `json:"weighted"`
		DealCount int     `json:"deal_count"`
	} `json:"totals"`
}

func TestPipelineAnalytics(t *testing.T) {
	app := newTestApp(t)
	skus := firstSKUIDs(t, app.Store, 6)
	// Catalog order puts ids 1-3 in Fiber and 4-6 in Hurd.
	fiber, hurd := skus[0], skus[3]

	w := doRequest(t, app, http.MethodPost, "/api/deals", map[string]any{
		"name": "A", "status": "open", "stage": "qualification",
		"value": 100000, "probability": 50,
		"expected_close_date": "2026-09-15",
		"sku_ids":             []int64{fiber, hurd},
	})
	createdID(t, w)
	w = doRequest(t, app, http.MethodPost, "/api/deals", map[string]any{
		"name": "B", "status": "open", "stage": "proposal", "value": 30000,
	})
	createdID(t, w)
	// Closed deals stay out of the pipeline view.
	w = doRequest(t, app, http.MethodPost, "/api/deals", map[string]any{
		"name": "C", "status": "closed", "stage": "negotiation", "value": 99999,
	})
	createdID(t, w)

	w = doRequest(t, app, http.MethodGet, "/api/pipeline/analytics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decodeBody[pipelineResponse](t, w)

	require.Len(t, got.Stages, 4)
	assert.Equal(t, 1, got.Stages["qualification"].Count)
	assert.InDelta(t, 100000, got.Stages["qualification"].TotalValue, 0.001)
	assert.InDelta(t, 50000, got.Stages["qualification"].WeightedValue, 0.001)
	assert.Equal(t, 1, got.Stages["proposal"].Count)
	assert.Zero(t, got.Stages["negotiation"].Count)

	require.Contains(t, got.MonthlyForecast, "2026-09")
	assert.InDelta(t, 100000, got.MonthlyForecast["2026-09"].Total, 0.001)
	require.Contains(t, got.MonthlyForecast, "No Date Set")
	assert.InDelta(t, 30000, got.MonthlyForecast["No Date Set"].Total, 0.001)

	// Deal A's value splits evenly across its two subcategories.
	assert.InDelta(t, 50000, got.SubcategoryForecast["2026-09"]["Fiber"], 0.001)
	assert.InDelta(t, 50000, got.SubcategoryForecast["2026-09"]["Hurd"], 0.001)
	assert.InDelta(t, 30000, got.SubcategoryForecast["No Date Set"]["Uncategorized"], 0.001)

	assert.InDelta(t, 130000, got.Totals.Pipeline, 0.001)
	assert.InDelta(t, 50000, got.Totals.Weighted, 0.001)
	assert.Equal(t, 2, got.Totals.DealCount)
}

func TestGoalProgress(t *testing.T) {
	app := newTestApp(t)

	w := doRequest(t, app, http.MethodPost, "/api/deals", map[string]any{
		"name": "Won", "status": "closed", "closed_revenue": 250000,
	})
	createdID(t, w)

	w = doRequest(t, app, http.MethodGet, "/api/goal/progress", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decodeBody[map[string]float64](t, w)

	assert.InDelta(t, 1000000, got["annual_goal"], 0.001)
	assert.InDelta(t, 250000, got["closed_revenue"], 0.001)
	assert.InDelta(t, 25, got["percentage"], 0.001)
}
