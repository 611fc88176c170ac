package main

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
)

// backfillContactCompanies migrates legacy free-text company names into
// the companies table. Every contact with a non-empty company string
// and no company_id gets linked to a company row, creating the row if
// no company with that exact (trimmed) name exists yet. Contacts that
// already carry a company_id are never touched again, so the pass
// converges after one successful run.
func backfillContactCompanies(ctx context.Context, s *Store) error {
	rows, err := s.Query(ctx,
		`SELECT id, company FROM contacts
		 WHERE company IS NOT NULL AND company != '' AND company_id IS NULL`)
	if err != nil {
		return err
	}

	type pendingContact struct {
		id      int64
		company string
	}
	var pending []pendingContact
	for rows.Next() {
		var p pendingContact
		if err := rows.Scan(&p.id, &p.company); err != nil {
			rows.Close()
			return err
		}
		pending = append(pending, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	// Names already resolved in this pass, so repeated names do not
	// create duplicate companies.
	companyIDs := make(map[string]int64)
	linked := 0

	for _, p := range pending {
		name := strings.TrimSpace(p.company)
		if name == "" {
			continue
		}

		id, seen := companyIDs[name]
		if !seen {
			err := s.QueryRow(ctx, `SELECT id FROM companies WHERE name = ?`, name).Scan(&id)
			switch {
			case errors.Is(err, sql.ErrNoRows):
				id, err = s.InsertID(ctx, `INSERT INTO companies (name) VALUES (?)`, name)
				if err != nil {
					return err
				}
				log.Info().Str("company", name).Int64("id", id).Msg("company created from contact text")
			case err != nil:
				return err
			}
			companyIDs[name] = id
		}

		if _, err := s.Exec(ctx, `UPDATE contacts SET company_id = ? WHERE id = ?`, id, p.id); err != nil {
			return err
		}
		linked++
	}

	log.Info().Int("contacts", linked).Int("companies", len(companyIDs)).Msg("contact company backfill done")
	return nil
}
