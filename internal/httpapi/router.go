// Package httpapi wires the HTTP surface of the treasury service.
// It keeps handlers thin, delegating business rules to the service layer.
package httpapi

import (
	"log/slog"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/coopware/treasury/internal/service/pledge"
	"github.com/coopware/treasury/internal/service/reconcile"
	"github.com/coopware/treasury/internal/service/settlement"
)

// Server wires handlers and middleware using Chi.
// It composes read (reader) and write dependencies through services.
type Server struct {
	stl      settlement.Service
	pledges  pledge.Service
	rec      reconcile.Service
	reader   Reader
	registry RegistryWriter
	currency string
	log      *slog.Logger
	rt       *chi.Mux
}

// New constructs the HTTP server with routes and middleware. currency is the
// deployment's single ISO code, applied to every created account, pledge and
// debt. The logger is used by request logging and panic recovery.
func New(reader Reader, registry RegistryWriter, srepo settlement.Repo, swriter settlement.Writer, prepo pledge.Repo, pwriter pledge.Writer, currency string, currencyScale int, logger *slog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(requestLogger(logger))
	r.Use(recoverer(logger))
	r.Use(metricsMiddleware)

	stl := settlement.New(srepo, swriter)
	s := &Server{
		stl:      stl,
		pledges:  pledge.New(prepo, pwriter, stl),
		rec:      reconcile.New(reader, stl, currencyScale),
		reader:   reader,
		registry: registry,
		currency: currency,
		log:      logger,
		rt:       r,
	}
	s.routes()
	return s
}

// Handler exposes the configured http.Handler.
func (s *Server) Handler() http.Handler { return s.rt }

// routes declares the public HTTP API endpoints and attaches any per-route middleware.
func (s *Server) routes() {
	// Registries
	s.rt.With(s.validatePostMember()).Post("/v1/members", s.postMember)
	s.rt.Get("/v1/members", s.listMembers)
	s.rt.With(s.validatePostProject()).Post("/v1/projects", s.postProject)
	s.rt.Get("/v1/projects", s.listProjects)
	// Accounts
	s.rt.With(s.validatePostAccount()).Post("/v1/accounts", s.postAccount)
	s.rt.Get("/v1/accounts", s.listAccounts)
	s.rt.Get("/v1/accounts/{id}", s.getAccount)
	s.rt.Get("/v1/accounts/{id}/transactions", s.getAccountTransactions)
	s.rt.Delete("/v1/accounts/{id}", s.deactivateAccount)
	// Journal
	s.rt.With(s.validatePostEntry()).Post("/v1/income", s.postIncome)
	s.rt.With(s.validatePostEntry()).Post("/v1/expenditures", s.postExpenditure)
	s.rt.With(s.validatePostTransfer()).Post("/v1/transfers", s.postTransfer)
	// Pledges
	s.rt.With(s.validatePostPledge()).Post("/v1/pledges", s.postPledge)
	s.rt.Get("/v1/pledges", s.listPledges)
	s.rt.Get("/v1/pledges/{id}", s.getPledge)
	s.rt.With(s.validateEditPledge()).Patch("/v1/pledges/{id}", s.editPledge)
	s.rt.Delete("/v1/pledges/{id}", s.deletePledge)
	s.rt.With(s.validatePayment()).Post("/v1/pledges/{id}/payments", s.postPledgePayment)
	s.rt.Post("/v1/pledges/{id}/reverse", s.reversePledge)
	// Collections
	s.rt.With(s.validatePostCollection()).Post("/v1/collections", s.postCollection)
	s.rt.Get("/v1/collections", s.listCollections)
	s.rt.With(s.validateCollectionBatch()).Post("/v1/collections/batch", s.postCollectionBatch)
	s.rt.Post("/v1/collections/import", s.importCollections)
	s.rt.Get("/v1/collections/template", s.collectionTemplate)
	// Debts
	s.rt.With(s.validatePostDebt()).Post("/v1/debts", s.postDebt)
	s.rt.Get("/v1/debts", s.listDebts)
	s.rt.Get("/v1/debts/{id}", s.getDebt)
	s.rt.With(s.validatePayment()).Post("/v1/debts/{id}/payments", s.postDebtPayment)
	// Health and metrics (unversioned)
	s.rt.Get("/healthz", s.healthz)
	s.rt.Get("/readyz", s.readyz)
	s.rt.Method(http.MethodGet, "/metrics", metricsHandler())
}
