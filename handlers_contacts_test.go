package main

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContactCRUD(t *testing.T) {
	app := newTestApp(t)

	w := doRequest(t, app, http.MethodPost, "/api/companies", map[string]any{"name": "Acme Corp"})
	companyID := createdID(t, w)

	w = doRequest(t, app, http.MethodPost, "/api/contacts", map[string]any{
		"name":       "Ada",
		"email":      "ada@acme.test",
		"company_id": companyID,
	})
	contactID := createdID(t, w)

	w = doRequest(t, app, http.MethodGet, "/api/contacts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	contacts := decodeBody[[]Contact](t, w)
	require.Len(t, contacts, 1)
	require.NotNil(t, contacts[0].CompanyName)
	assert.Equal(t, "Acme Corp", *contacts[0].CompanyName)

	w = doRequest(t, app, http.MethodPut, fmt.Sprintf("/api/contacts/%d", contactID), map[string]any{
		"name":  "Ada L",
		"title": "CTO",
	})
	require.Equal(t, http.StatusOK, w.Code)

	contacts = decodeBody[[]Contact](t, doRequest(t, app, http.MethodGet, "/api/contacts", nil))
	require.Len(t, contacts, 1)
	assert.Equal(t, "Ada L", contacts[0].Name)
	require.NotNil(t, contacts[0].Title)
	assert.Equal(t, "CTO", *contacts[0].Title)
	// Full replace: the omitted email is cleared.
	assert.Nil(t, contacts[0].Email)

	w = doRequest(t, app, http.MethodDelete, fmt.Sprintf("/api/contacts/%d", contactID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	contacts = decodeBody[[]Contact](t, doRequest(t, app, http.MethodGet, "/api/contacts", nil))
	assert.Empty(t, contacts)
}

func TestCreateContactRequiresName(t *testing.T) {
	app := newTestApp(t)
	w := doRequest(t, app, http.MethodPost, "/api/contacts", map[string]any{"email": "x@y.test"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListSKUsOrganized(t *testing.T) {
	app := newTestApp(t)

	w := doRequest(t, app, http.MethodGet, "/api/skus", nil)
	require.Equal(t, http.StatusOK, w.Code)
	organized := decodeBody[map[string]map[string][]SKU](t, w)

	require.Contains(t, organized, "Raw Materials")
	require.Contains(t, organized, "Products")
	assert.Len(t, organized["Raw Materials"]["Fiber"], 3)
	assert.Len(t, organized["Raw Materials"]["Hurd"], 3)
	assert.Len(t, organized["Products"]["Insulation"], 3)
	assert.Len(t, organized["Products"]["Acoustic Panels"], 3)
}
