package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/voyager-erp/voyager-erp/internal/accounts"
	"github.com/voyager-erp/voyager-erp/internal/catalog"
	"github.com/voyager-erp/voyager-erp/internal/contacts"
	"github.com/voyager-erp/voyager-erp/internal/ledger"
	"github.com/voyager-erp/voyager-erp/internal/observability"
	"github.com/voyager-erp/voyager-erp/internal/purchasing"
	"github.com/voyager-erp/voyager-erp/internal/sales"
	"github.com/voyager-erp/voyager-erp/internal/treasury"
	"github.com/voyager-erp/voyager-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	LedgerHandler     *ledger.Handler
	CatalogHandler    *catalog.Handler
	ContactsHandler   *contacts.Handler
	AccountsHandler   *accounts.Handler
	SalesHandler      *sales.Handler
	PurchasingHandler *purchasing.Handler
	TreasuryHandler   *treasury.Handler
	JobHandler        *jobs.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router with Voyager defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	if params.LedgerHandler != nil {
		r.Route("/ledger", func(r chi.Router) {
			params.LedgerHandler.MountRoutes(r)
		})
	}
	if params.CatalogHandler != nil {
		r.Route("/catalog", func(r chi.Router) {
			params.CatalogHandler.MountRoutes(r)
		})
	}
	if params.ContactsHandler != nil {
		r.Route("/contacts", func(r chi.Router) {
			params.ContactsHandler.MountRoutes(r)
		})
	}
	if params.AccountsHandler != nil {
		r.Route("/accounts", func(r chi.Router) {
			params.AccountsHandler.MountRoutes(r)
		})
	}
	if params.SalesHandler != nil {
		r.Route("/sales", func(r chi.Router) {
			params.SalesHandler.MountRoutes(r)
		})
	}
	if params.PurchasingHandler != nil {
		r.Route("/purchasing", func(r chi.Router) {
			params.PurchasingHandler.MountRoutes(r)
		})
	}
	if params.TreasuryHandler != nil {
		r.Route("/treasury", func(r chi.Router) {
			params.TreasuryHandler.MountRoutes(r)
		})
	}
	if params.JobHandler != nil {
		r.Route("/jobs", func(r chi.Router) {
			params.JobHandler.MountRoutes(r)
		})
	}

	return r
}
