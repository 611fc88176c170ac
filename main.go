package main

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type App struct {
	Store     *Store
	UploadDir string
}

func main() {
	_ = godotenv.Load()
	addr := getenv("APP_ADDR", ":8080")

	ctx := context.Background()

	// DATABASE_URL present -> Postgres, absent -> local SQLite file.
	store, err := openStore(ctx, os.Getenv("DATABASE_URL"), getenv("CRM_DB_PATH", "crm.db"))
	if err != nil {
		log.Fatal().Err(err).Msg("database")
	}
	defer store.DB.Close()
	log.Info().Str("backend", store.dialect.name()).Msg("database selected")

	// Reconcile schema, backfill legacy data and seed reference data
	// before accepting any request.
	if err := initDatabase(ctx, store); err != nil {
		log.Fatal().Err(err).Msg("database init")
	}

	app := &App{Store: store, UploadDir: getenv("UPLOAD_DIR", "uploads")}

	log.Info().Str("addr", addr).Msg("listening")
	if err := http.ListenAndServe(addr, app.router()); err != nil {
		log.Fatal().Err(err).Msg("server")
	}
}

func (a *App) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Options("/*", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		a.mountContacts(r)
		a.mountCompanies(r)
		a.mountSKUs(r)
		a.mountDeals(r)
		a.mountActivities(r)
		a.mountTasks(r)
		a.mountDocuments(r)
		a.mountSettings(r)
		a.mountAnalytics(r)
	})

	// Uploaded document files are served statically.
	r.Mount("/uploads", http.StripPrefix("/uploads", http.FileServer(http.Dir(a.UploadDir))))

	return r
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func allowedOrigins() []string {
	v := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS"))
	if v == "" || v == "*" {
		return []string{"*"}
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
