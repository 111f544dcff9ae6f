package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/merenda/internal/http/contract"
	"github.com/MrJamesThe3rd/merenda/internal/http/export"
	"github.com/MrJamesThe3rd/merenda/internal/http/importcsv"
	"github.com/MrJamesThe3rd/merenda/internal/http/matching"
	appmw "github.com/MrJamesThe3rd/merenda/internal/http/middleware"
	"github.com/MrJamesThe3rd/merenda/internal/http/order"
	"github.com/MrJamesThe3rd/merenda/internal/http/procurement"
)

type Options struct {
	JWTSecret      string
	AllowedOrigins []string
	Logger         *zap.Logger
}

type Handlers struct {
	Contracts   *contract.Handler
	Procurement *procurement.Handler
	Orders      *order.Handler
	Import      *importcsv.Handler
	Matching    *matching.Handler
	Export      *export.Handler
}

func New(h Handlers, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(appmw.AccessLog(logger))
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(appmw.Auth(opts.JWTSecret, logger))

		r.Route("/contracts", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			h.Contracts.Routes(r)
		})

		r.Route("/demand", h.Procurement.DemandRoutes)

		r.Route("/reports", h.Procurement.ReportRoutes)

		r.Route("/orders", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			h.Orders.Routes(r)
		})

		r.Route("/import", h.Import.Routes)

		r.Route("/matching", h.Matching.Routes)

		r.Route("/export", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			h.Export.Routes(r)
		})
	})

	return router
}
