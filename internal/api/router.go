// Package api assembles the HTTP surface: routes, handlers and middleware.
package api

import (
	"net/http"
	"time"

	"github.com/dvloznov/finsight/internal/advisor"
	"github.com/dvloznov/finsight/internal/api/handlers"
	"github.com/dvloznov/finsight/internal/api/middleware"
	"github.com/dvloznov/finsight/internal/jobs"
	"github.com/dvloznov/finsight/internal/session"
	"github.com/rs/zerolog"
)

// Deps are the collaborators the routes are served from.
type Deps struct {
	Session  *session.Session
	Advisor  advisor.Advisor
	JobStore jobs.JobStore
	Features handlers.Features
	Log      zerolog.Logger
}

// NewRouter returns the full handler, middleware applied.
func NewRouter(d Deps) http.Handler {
	store := d.Session.Store()

	sessionHandler := handlers.NewSessionHandler(d.Session, d.Features, d.Log)
	accountsHandler := handlers.NewAccountsHandler(store, d.Log)
	transactionsHandler := handlers.NewTransactionsHandler(store, d.Log)
	insightsHandler := handlers.NewInsightsHandler(store, d.Log)
	catalogHandler := handlers.NewCatalogHandler()
	advisorHandler := handlers.NewAdvisorHandler(store, d.Advisor, d.Log)
	jobsHandler := handlers.NewJobsHandler(d.JobStore, d.Log)

	auth := middleware.Auth(func() bool {
		_, ok := d.Session.User()
		return ok
	})
	protected := func(h http.HandlerFunc) http.Handler { return auth(h) }

	mux := http.NewServeMux()

	// Session endpoints
	mux.HandleFunc("GET /api/session", sessionHandler.GetSession)
	mux.HandleFunc("POST /api/session/login", sessionHandler.Login)
	mux.HandleFunc("POST /api/session/demo", sessionHandler.DemoLogin)
	mux.HandleFunc("POST /api/session/logout", sessionHandler.Logout)

	// Mode endpoints
	mux.Handle("GET /api/mode", protected(sessionHandler.GetMode))
	mux.Handle("PUT /api/mode", protected(sessionHandler.SetMode))
	mux.Handle("POST /api/mode/toggle", protected(sessionHandler.ToggleMode))

	// Accounts endpoints
	mux.Handle("GET /api/accounts", protected(accountsHandler.ListAccounts))
	mux.Handle("POST /api/accounts", protected(accountsHandler.CreateAccount))
	mux.Handle("DELETE /api/accounts/{id}", protected(func(w http.ResponseWriter, r *http.Request) {
		accountsHandler.DeleteAccount(w, r, r.PathValue("id"))
	}))

	// Transactions endpoints
	mux.Handle("GET /api/transactions", protected(transactionsHandler.ListTransactions))
	mux.Handle("POST /api/transactions", protected(transactionsHandler.CreateTransaction))

	// Dashboard and reports
	mux.Handle("GET /api/dashboard", protected(insightsHandler.Dashboard))
	mux.Handle("GET /api/reports", protected(insightsHandler.Reports))

	// Catalogs
	mux.HandleFunc("GET /api/categories", catalogHandler.ListCategories)
	mux.HandleFunc("GET /api/zodiac", catalogHandler.ListZodiacSigns)

	// AI endpoints
	mux.Handle("POST /api/advice", protected(advisorHandler.Advice))
	mux.Handle("GET /api/horoscope/{sign}", protected(func(w http.ResponseWriter, r *http.Request) {
		advisorHandler.Horoscope(w, r, r.PathValue("sign"))
	}))

	// Jobs endpoints
	mux.Handle("GET /api/jobs", protected(jobsHandler.ListJobs))
	mux.Handle("GET /api/jobs/{id}", protected(func(w http.ResponseWriter, r *http.Request) {
		jobsHandler.GetJob(w, r, r.PathValue("id"))
	}))

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"mode":   string(d.Session.Mode()),
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return middleware.Chain(mux,
		middleware.Recovery(d.Log),
		middleware.RequestID,
		middleware.Logger(d.Log),
		middleware.CORS,
	)
}
