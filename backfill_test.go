package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func insertContact(t *testing.T, s *Store, name, company string) int64 {
	t.Helper()
	id, err := s.InsertID(context.Background(),
		`INSERT INTO contacts (name, company) VALUES (?, ?)`, name, company)
	require.NoError(t, err)
	return id
}

func contactCompanyID(t *testing.T, s *Store, id int64) *int64 {
	t.Helper()
	var companyID *int64
	require.NoError(t, s.QueryRow(context.Background(),
		`SELECT company_id FROM contacts WHERE id = ?`, id).Scan(&companyID))
	return companyID
}

func TestBackfillLinksAndDedupes(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, reconcileSchema(ctx, store))

	a := insertContact(t, store, "Ada", "  Acme Corp ")
	b := insertContact(t, store, "Bo", "Acme Corp")
	c := insertContact(t, store, "Cy", "Globex")
	d := insertContact(t, store, "Dee", "   ")
	e := insertContact(t, store, "Ed", "")

	require.NoError(t, backfillContactCompanies(ctx, store))

	aID, bID, cID := contactCompanyID(t, store, a), contactCompanyID(t, store, b), contactCompanyID(t, store, c)
	require.NotNil(t, aID)
	require.NotNil(t, bID)
	require.NotNil(t, cID)

	// Same trimmed name resolves to the same company.
	assert.Equal(t, *aID, *bID)
	assert.NotEqual(t, *aID, *cID)

	// Stored name is the trimmed form.
	var name string
	require.NoError(t, store.QueryRow(ctx, `SELECT name FROM companies WHERE id = ?`, *aID).Scan(&name))
	assert.Equal(t, "Acme Corp", name)

	// Whitespace-only and empty names stay unlinked.
	assert.Nil(t, contactCompanyID(t, store, d))
	assert.Nil(t, contactCompanyID(t, store, e))

	// Free text is untouched.
	var raw string
	require.NoError(t, store.QueryRow(ctx, `SELECT company FROM contacts WHERE id = ?`, a).Scan(&raw))
	assert.Equal(t, "  Acme Corp ", raw)
}

func TestBackfillReusesExistingCompany(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, reconcileSchema(ctx, store))

	existing, err := store.InsertID(ctx, `INSERT INTO companies (name) VALUES (?)`, "Initech")
	require.NoError(t, err)
	id := insertContact(t, store, "Peter", "Initech")

	require.NoError(t, backfillContactCompanies(ctx, store))

	got := contactCompanyID(t, store, id)
	require.NotNil(t, got)
	assert.Equal(t, existing, *got)

	var count int
	require.NoError(t, store.QueryRow(ctx, `SELECT COUNT(*) FROM companies`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestBackfillConverges(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, reconcileSchema(ctx, store))

	id := insertContact(t, store, "Ada", "Acme Corp")
	require.NoError(t, backfillContactCompanies(ctx, store))
	first := contactCompanyID(t, store, id)
	require.NotNil(t, first)

	// A relinked contact keeps its link even if the company is renamed
	// between boots: the pass never reprocesses linked contacts.
	_, err := store.Exec(ctx, `UPDATE companies SET name = ? WHERE id = ?`, "Acme Holdings", *first)
	require.NoError(t, err)
	require.NoError(t, backfillContactCompanies(ctx, store))

	second := contactCompanyID(t, store, id)
	require.NotNil(t, second)
	assert.Equal(t, *first, *second)

	var count int
	require.NoError(t, store.QueryRow(ctx, `SELECT COUNT(*) FROM companies`).Scan(&count))
	assert.Equal(t, 1, count)
}
