package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/air-waffle/finance/internal/analytics"
	"github.com/air-waffle/finance/internal/cashier"
	"github.com/air-waffle/finance/internal/catalog"
	"github.com/air-waffle/finance/internal/ledger"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	CatalogService   *catalog.Service
	CatalogHandler   *catalog.Handler
	LedgerHandler    *ledger.Handler
	CashierHandler   *cashier.Handler
	AnalyticsHandler *analytics.Handler
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Catalog: params.CatalogService,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(IdentityMiddleware(params.Logger, params.CatalogService))
		params.CatalogHandler.MountRoutes(r)
		params.LedgerHandler.MountRoutes(r)
		params.CashierHandler.MountRoutes(r)
		params.AnalyticsHandler.MountRoutes(r)
	})

	return r
}
