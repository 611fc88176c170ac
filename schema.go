package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// initDatabase brings the database to the current schema and makes sure
// the reference data exists. Runs once before the listener starts and
// is safe to run again on every boot.
func initDatabase(ctx context.Context, s *Store) error {
	if err := reconcileSchema(ctx, s); err != nil {
		return err
	}
	if err := backfillContactCompanies(ctx, s); err != nil {
		return err
	}
	if err := seedSKUs(ctx, s); err != nil {
		return err
	}
	return nil
}

type column struct {
	name string
	typ  string
}

// reconcileSchema creates missing tables and adds missing columns.
// It never drops or renames anything: databases from older revisions
// only ever gain columns. A failed CREATE TABLE is fatal, a failed
// ALTER is logged and skipped.
func reconcileSchema(ctx context.Context, s *Store) error {
	pk := s.dialect.pkColumn()
	ts := s.dialect.timestampDefault()

	tables := []struct {
		name string
		ddl  string
	}{
		{"companies", fmt.Sprintf(`CREATE TABLE IF NOT EXISTS companies (
			id %s,
			name TEXT NOT NULL,
			website TEXT,
			industry TEXT,
			notes TEXT,
			created_at TIMESTAMP %s
		)`, pk, ts)},

		{"contacts", fmt.Sprintf(`CREATE TABLE IF NOT EXISTS contacts (
			id %s,
			name TEXT NOT NULL,
			email TEXT,
			phone TEXT,
			company TEXT,
			company_id INTEGER,
			title TEXT,
			website TEXT,
			additional_info TEXT,
			created_at TIMESTAMP %s,
			FOREIGN KEY(company_id) REFERENCES companies(id)
		)`, pk, ts)},

		{"skus", fmt.Sprintf(`CREATE TABLE IF NOT EXISTS skus (
			id %s,
			name TEXT NOT NULL,
			category TEXT NOT NULL,
			subcategory TEXT NOT NULL,
			UNIQUE(name, category, subcategory)
		)`, pk)},

		{"deals", fmt.Sprintf(`CREATE TABLE IF NOT EXISTS deals (
			id %s,
			name TEXT NOT NULL,
			contact_id INTEGER,
			value REAL,
			probability INTEGER,
			stage TEXT,
			status TEXT,
			lead_source TEXT,
			budget TEXT,
			authority TEXT,
			need TEXT,
			timeline TEXT,
			expected_close_date TEXT,
			closed_revenue REAL DEFAULT 0,
			created_at TIMESTAMP %s,
			FOREIGN KEY(contact_id) REFERENCES contacts(id)
		)`, pk, ts)},

		{"deal_skus", fmt.Sprintf(`CREATE TABLE IF NOT EXISTS deal_skus (
			id %s,
			deal_id INTEGER NOT NULL,
			sku_id INTEGER NOT NULL,
			FOREIGN KEY(deal_id) REFERENCES deals(id) ON DELETE CASCADE,
			FOREIGN KEY(sku_id) REFERENCES skus(id) ON DELETE CASCADE,
			UNIQUE(deal_id, sku_id)
		)`, pk)},

		{"activities", fmt.Sprintf(`CREATE TABLE IF NOT EXISTS activities (
			id %s,
			deal_id INTEGER,
			contact_id INTEGER,
			type TEXT,
			description TEXT,
			next_steps TEXT,
			due_date TEXT,
			created_at TIMESTAMP %s,
			FOREIGN KEY(deal_id) REFERENCES deals(id),
			FOREIGN KEY(contact_id) REFERENCES contacts(id)
		)`, pk, ts)},

		{"tasks", fmt.Sprintf(`CREATE TABLE IF NOT EXISTS tasks (
			id %s,
			name TEXT NOT NULL,
			detail TEXT,
			due_date TEXT,
			completed BOOLEAN NOT NULL DEFAULT FALSE,
			priority TEXT,
			category TEXT,
			assignee TEXT,
			recurring BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP %s
		)`, pk, ts)},

		{"documents", fmt.Sprintf(`CREATE TABLE IF NOT EXISTS documents (
			id %s,
			name TEXT NOT NULL,
			description TEXT,
			file_path TEXT,
			external_link TEXT,
			file_size INTEGER,
			file_type TEXT,
			document_category TEXT,
			version TEXT,
			expiration_date TEXT,
			tags TEXT,
			company_id INTEGER,
			deal_id INTEGER,
			uploaded_by TEXT,
			created_at TIMESTAMP %s
		)`, pk, ts)},

		{"settings", fmt.Sprintf(`CREATE TABLE IF NOT EXISTS settings (
			id %s,
			key TEXT NOT NULL UNIQUE,
			value TEXT NOT NULL,
			updated_at TIMESTAMP %s
		)`, pk, ts)},
	}

	for _, t := range tables {
		if err := s.ensureTable(ctx, t.name, t.ddl); err != nil {
			return fmt.Errorf("create table %s: %w", t.name, err)
		}
	}

	// Additive migrations for databases created by older revisions.
	migrations := map[string][]column{
		"contacts": {
			{"title", "TEXT"},
			{"website", "TEXT"},
			{"additional_info", "TEXT"},
			{"company_id", "INTEGER"},
		},
		"deals": {
			{"name", "TEXT"},
			{"contact_id", "INTEGER"},
			{"value", "REAL"},
			{"probability", "INTEGER"},
			{"closed_revenue", "REAL DEFAULT 0"},
			{"stage", "TEXT"},
			{"status", "TEXT"},
			{"lead_source", "TEXT"},
			{"budget", "TEXT"},
			{"authority", "TEXT"},
			{"need", "TEXT"},
			{"timeline", "TEXT"},
			{"expected_close_date", "TEXT"},
		},
		"activities": {
			{"next_steps", "TEXT"},
			{"due_date", "TEXT"},
		},
		"tasks": {
			{"detail", "TEXT"},
			{"priority", "TEXT"},
			{"category", "TEXT"},
			{"assignee", "TEXT"},
			{"recurring", "BOOLEAN NOT NULL DEFAULT FALSE"},
		},
		"documents": {
			{"document_category", "TEXT"},
			{"version", "TEXT"},
			{"expiration_date", "TEXT"},
			{"tags", "TEXT"},
			{"company_id", "INTEGER"},
			{"deal_id", "INTEGER"},
			{"uploaded_by", "TEXT"},
		},
	}
	for table, cols := range migrations {
		if err := s.ensureColumns(ctx, table, cols); err != nil {
			// A stale schema must never block startup.
			log.Warn().Err(err).Str("table", table).Msg("column reconciliation skipped")
		}
	}

	// Default annual goal, written once.
	if _, err := s.Exec(ctx, `INSERT INTO settings (key, value) VALUES (?, ?)`,
		"annual_goal", "1000000"); err != nil && !s.dialect.uniqueViolation(err) {
		return fmt.Errorf("seed settings: %w", err)
	}

	log.Info().Msg("schema reconciled")
	return nil
}

func (s *Store) ensureTable(ctx context.Context, name, ddl string) error {
	_, err := s.Exec(ctx, ddl)
	return err
}

// ensureColumns introspects the table and issues one additive ALTER per
// missing column. Individual ALTER failures (e.g. a duplicate-column
// race between two booting processes) are logged and swallowed.
func (s *Store) ensureColumns(ctx context.Context, table string, cols []column) error {
	existing, err := s.TableColumns(ctx, table)
	if err != nil {
		return err
	}
	have := make(map[string]bool, len(existing))
	for _, name := range existing {
		have[name] = true
	}

	for _, c := range cols {
		if have[c.name] {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, c.name, c.typ)
		if _, err := s.Exec(ctx, stmt); err != nil {
			log.Warn().Err(err).Str("table", table).Str("column", c.name).Msg("add column failed")
			continue
		}
		log.Info().Str("table", table).Str("column", c.name).Msg("added column")
	}
	return nil
}

// skuCatalog is the fixed line-item reference data. The set only ever
// changes with a code change; the API reads it but never mutates it.
var skuCatalog = []struct {
	name        string
	category    string
	subcategory string
}{
	{"Premium Clean Long Fiber", "Raw Materials", "Fiber"},
	{"Non-woven Grade, Clean Fiber", "Raw Materials", "Fiber"},
	{"Short Fiber/Hurd Mix", "Raw Materials", "Fiber"},
	{`H1 Hurd - 3/4"`, "Raw Materials", "Hurd"},
	{`H2 Hurd - 1/2"`, "Raw Materials", "Hurd"},
	{`H3 Hurd - 1/16"`, "Raw Materials", "Hurd"},
	{`2"x24"x48"`, "Products", "Insulation"},
	{`3.5"x24"x48"`, "Products", "Insulation"},
	{`5.5"x24"x48"`, "Products", "Insulation"},
	{`1"x24"x48"`, "Products", "Acoustic Panels"},
	{`2"x24"x48"`, "Products", "Acoustic Panels"},
	{`4"x24"x48"`, "Products", "Acoustic Panels"},
}

// seedSKUs inserts every catalog entry unconditionally; the uniqueness
// constraint on (name, category, subcategory) rejects the ones that
// already exist and those rejections are discarded.
func seedSKUs(ctx context.Context, s *Store) error {
	for _, sku := range skuCatalog {
		_, err := s.Exec(ctx, `INSERT INTO skus (name, category, subcategory) VALUES (?, ?, ?)`,
			sku.name, sku.category, sku.subcategory)
		if err != nil {
			if s.dialect.uniqueViolation(err) {
				continue
			}
			return fmt.Errorf("seed sku %q: %w", sku.name, err)
		}
	}
	log.Info().Int("catalog", len(skuCatalog)).Msg("sku catalog seeded")
	return nil
}
