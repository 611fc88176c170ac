package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Document carries exactly one of FilePath (a stored upload) or
// ExternalLink.
type Document struct {
	ID               int64      `json:"id"`
	Name             string     `json:"name"`
	Description      *string    `json:"description"`
	FilePath         *string    `json:"file_path"`
	ExternalLink     *string    `json:"external_link"`
	FileSize         *int64     `json:"file_size"`
	FileType         *string    `json:"file_type"`
	DocumentCategory *string    `json:"document_category"`
	Version          *string    `json:"version"`
	ExpirationDate   *string    `json:"expiration_date"`
	Tags             *string    `json:"tags"`
	CompanyID        *int64     `json:"company_id"`
	DealID           *int64     `json:"deal_id"`
	UploadedBy       *string    `json:"uploaded_by"`
	CreatedAt        *time.Time `json:"created_at"`
}

func (a *App) mountDocuments(r chi.Router) {
	r.Get("/documents", a.listDocuments)
	r.Post("/documents", a.createDocument)
	r.Get("/documents/{id}", a.getDocument)
	r.Put("/documents/{id}", a.updateDocument)
	r.Delete("/documents/{id}", a.deleteDocument)
}

const documentColumns = `id, name, description, file_path, external_link, file_size, file_type,
	document_category, version, expiration_date, tags, company_id, deal_id, uploaded_by, created_at`

func scanDocument(rows interface{ Scan(...any) error }) (Document, error) {
	var d Document
	err := rows.Scan(&d.ID, &d.Name, &d.Description, &d.FilePath, &d.ExternalLink, &d.FileSize,
		&d.FileType, &d.DocumentCategory, &d.Version, &d.ExpirationDate, &d.Tags,
		&d.CompanyID, &d.DealID, &d.UploadedBy, &d.CreatedAt)
	return d, err
}

func (a *App) listDocuments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := `SELECT ` + documentColumns + ` FROM documents`
	var (
		conds []string
		args  []any
	)
	if v := r.URL.Query().Get("company_id"); v != "" {
		conds = append(conds, "company_id = ?")
		args = append(args, v)
	}
	if v := r.URL.Query().Get("deal_id"); v != "" {
		conds = append(conds, "deal_id = ?")
		args = append(args, v)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"

	out := []Document{}
	err := a.Store.withRetry(ctx, func() error {
		out = out[:0]
		rows, err := a.Store.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			d, err := scanDocument(rows)
			if err != nil {
				return err
			}
			out = append(out, d)
		}
		return rows.Err()
	})
	if err != nil {
		serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *App) getDocument(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}
	ctx := r.Context()
	var doc Document
	err = a.Store.withRetry(ctx, func() error {
		var err error
		doc, err = scanDocument(a.Store.QueryRow(ctx,
			`SELECT `+documentColumns+` FROM documents WHERE id=?`, id))
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		notFound(w, "Document not found")
		return
	}
	if err != nil {
		serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

type documentInput struct {
	Name             string  `json:"name"`
	Description      *string `json:"description"`
	ExternalLink     *string `json:"external_link"`
	DocumentCategory *string `json:"document_category"`
	Version          *string `json:"version"`
	ExpirationDate   *string `json:"expiration_date"`
	Tags             *string `json:"tags"`
	CompanyID        *int64  `json:"company_id"`
	DealID           *int64  `json:"deal_id"`
	UploadedBy       *string `json:"uploaded_by"`
}

// createDocument accepts either a multipart upload (file stored under
// the uploads directory) or a JSON/form body carrying an external
// link. Exactly one of the two is persisted.
func (a *App) createDocument(w http.ResponseWriter, r *http.Request) {
	var (
		in       documentInput
		filePath *string
		fileSize *int64
		fileType *string
	)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(25 << 20); err != nil {
			badRequest(w, "multipart parse error: "+err.Error())
			return
		}
		in = documentInputFromForm(r)

		file, header, err := r.FormFile("file")
		switch {
		case err == nil:
			defer file.Close()
			if in.ExternalLink != nil && *in.ExternalLink != "" {
				badRequest(w, "provide either a file or an external_link, not both")
				return
			}
			name, size, err := a.saveUpload(file, header.Filename)
			if err != nil {
				serverError(w, err)
				return
			}
			ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(header.Filename)), ".")
			filePath, fileSize, fileType = &name, &size, &ext
			in.ExternalLink = nil
		case in.ExternalLink == nil || *in.ExternalLink == "":
			badRequest(w, "a file or an external_link is required")
			return
		}
	} else {
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			badRequest(w, "invalid json: "+err.Error())
			return
		}
		if in.ExternalLink == nil || *in.ExternalLink == "" {
			badRequest(w, "a file or an external_link is required")
			return
		}
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
			`INSERT INTO documents (name, description, file_path, external_link, file_size, file_type,
			                        document_category, version, expiration_date, tags, company_id, deal_id, uploaded_by)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			in.Name, in.Description, filePath, in.ExternalLink, fileSize, fileType,
			in.DocumentCategory, in.Version, in.ExpirationDate, in.Tags, in.CompanyID, in.DealID, in.UploadedBy)
		return err
	})
	if err != nil {
		serverError(w, err)
		return
	}
	created(w, id)
}

// saveUpload writes the file under the uploads directory with a UUID
// name and reports the stored filename and size.
func (a *App) saveUpload(file io.Reader, originalName string) (string, int64, error) {
	if err := os.MkdirAll(a.UploadDir, 0o755); err != nil {
		return "", 0, err
	}
	ext := strings.ToLower(filepath.Ext(originalName))
	name := uuid.NewString() + ext
	dst, err := os.Create(filepath.Join(a.UploadDir, name))
	if err != nil {
		return "", 0, err
	}
	defer dst.Close()
	size, err := io.Copy(dst, file)
	if err != nil {
		return "", 0, err
	}
	return name, size, nil
}

func documentInputFromForm(r *http.Request) documentInput {
	str := func(key string) *string {
		if v := r.FormValue(key); v != "" {
			return &v
		}
		return nil
	}
	num := func(key string) *int64 {
		if v := r.FormValue(key); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				return &n
			}
		}
		return nil
	}
	return documentInput{
		Name:             r.FormValue("name"),
		Description:      str("description"),
		ExternalLink:     str("external_link"),
		DocumentCategory: str("document_category"),
		Version:          str("version"),
		ExpirationDate:   str("expiration_date"),
		Tags:             str("tags"),
		CompanyID:        num("company_id"),
		DealID:           num("deal_id"),
		UploadedBy:       str("uploaded_by"),
	}
}

// updateDocument replaces the metadata fields; the stored file or link
// itself is immutable after creation.
func (a *App) updateDocument(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}
	var in documentInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		badRequest(w, "invalid json: "+err.Error())
		return
	}
	if strings.TrimSpace(in.Name) == "" {
		badRequest(w, "name is required")
		return
	}
	ctx := r.Context()
	var affected int64
	err = a.Store.withRetry(ctx, func() error {
		res, err := a.Store.Exec(ctx,
			`UPDATE documents
			 SET name=?, description=?, document_category=?, version=?, expiration_date=?, tags=?,
			     company_id=?, deal_id=?, uploaded_by=?
			 WHERE id=?`,
			in.Name, in.Description, in.DocumentCategory, in.Version, in.ExpirationDate, in.Tags,
			in.CompanyID, in.DealID, in.UploadedBy, id)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		serverError(w, err)
		return
	}
	if affected == 0 {
		notFound(w, "Document not found")
		return
	}
	ok(w)
}

func (a *App) deleteDocument(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}
	ctx := r.Context()
	var filePath *string
	err = a.Store.withRetry(ctx, func() error {
		if err := a.Store.QueryRow(ctx, `SELECT file_path FROM documents WHERE id=?`, id).Scan(&filePath); err != nil {
			return err
		}
		_, err := a.Store.Exec(ctx, `DELETE FROM documents WHERE id=?`, id)
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		notFound(w, "Document not found")
		return
	}
	if err != nil {
		serverError(w, err)
		return
	}
	if filePath != nil && *filePath != "" {
		// Best effort; the row is already gone.
		_ = os.Remove(filepath.Join(a.UploadDir, filepath.Base(*filePath)))
	}
	ok(w)
}
