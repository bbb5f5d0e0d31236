package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/finsight/internal/advisor"
	"github.com/dvloznov/finsight/internal/aggregate"
	"github.com/dvloznov/finsight/internal/api/middleware"
	"github.com/dvloznov/finsight/internal/domain"
	"github.com/dvloznov/finsight/internal/jobs"
	"github.com/dvloznov/finsight/internal/ledger"
	"github.com/dvloznov/finsight/internal/session"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Features reports which optional integrations are configured.
type Features struct {
	Advisor      bool `json:"advisor"`
	AuthProvider bool `json:"authProvider"`
}

// SessionHandler handles login, logout and persistence mode endpoints.
type SessionHandler struct {
	sess     *session.Session
	features Features
	log      zerolog.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(sess *session.Session, features Features, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		sess:     sess,
		features: features,
		log:      log,
	}
}

type sessionResponse struct {
	User     *domain.User `json:"user"`
	LoggedIn bool         `json:"loggedIn"`
	Mode     session.Mode `json:"mode"`
	Features Features     `json:"features"`
}

func (h *SessionHandler) state() sessionResponse {
	resp := sessionResponse{Mode: h.sess.Mode(), Features: h.features}
	if u, ok := h.sess.User(); ok {
		resp.User = &u
		resp.LoggedIn = true
	}
	return resp
}

// GetSession handles GET /api/session
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, h.state())
}

// Login handles POST /api/session/login
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if _, err := h.sess.Login(r.Context(), req.Email, req.Password); err != nil {
		if errors.Is(err, session.ErrInvalidCredentials) {
			middleware.WriteError(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		h.log.Error().Err(err).Msg("Failed to log in")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to log in")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, h.state())
}

// DemoLogin handles POST /api/session/demo
func (h *SessionHandler) DemoLogin(w http.ResponseWriter, r *http.Request) {
	h.sess.DemoLogin(r.Context())
	middleware.WriteJSON(w, http.StatusOK, h.state())
}

// Logout handles POST /api/session/logout
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sess.Logout(r.Context())
	middleware.WriteJSON(w, http.StatusOK, h.state())
}

// GetMode handles GET /api/mode
func (h *SessionHandler) GetMode(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]session.Mode{"mode": h.sess.Mode()})
}

// SetMode handles PUT /api/mode
func (h *SessionHandler) SetMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	mode, err := session.ParseMode(req.Mode)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "mode must be DEMO or DURABLE")
		return
	}

	if err := h.sess.SetMode(r.Context(), mode); err != nil {
		h.log.Error().Err(err).Str("mode", string(mode)).Msg("Failed to change mode")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to change mode")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]session.Mode{"mode": h.sess.Mode()})
}

// ToggleMode handles POST /api/mode/toggle
func (h *SessionHandler) ToggleMode(w http.ResponseWriter, r *http.Request) {
	mode := h.sess.ToggleMode(r.Context())
	middleware.WriteJSON(w, http.StatusOK, map[string]session.Mode{"mode": mode})
}

// AccountsHandler handles account endpoints.
type AccountsHandler struct {
	store *ledger.Store
	log   zerolog.Logger
}

// NewAccountsHandler creates a new accounts handler.
func NewAccountsHandler(store *ledger.Store, log zerolog.Logger) *AccountsHandler {
	return &AccountsHandler{
		store: store,
		log:   log,
	}
}

// ListAccounts handles GET /api/accounts
func (h *AccountsHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	snap := h.store.Snapshot()

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"accounts":     snap.Accounts,
		"count":        len(snap.Accounts),
		"totalBalance": aggregate.TotalBalance(snap.Accounts),
	})
}

// CreateAccount handles POST /api/accounts
func (h *AccountsHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req domain.AccountInput

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	acc, err := h.store.AddAccount(r.Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidAccount) {
			middleware.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error().Err(err).Msg("Failed to add account")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to add account")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, acc)
}

// DeleteAccount handles DELETE /api/accounts/{id}
func (h *AccountsHandler) DeleteAccount(w http.ResponseWriter, r *http.Request, accountID string) {
	removed, err := h.store.DeleteAccount(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Account not found")
			return
		}
		h.log.Error().Err(err).Str("account_id", accountID).Msg("Failed to delete account")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to delete account")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"id":                  accountID,
		"removedTransactions": removed,
	})
}

// TransactionsHandler handles transaction endpoints.
type TransactionsHandler struct {
	store *ledger.Store
	log   zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(store *ledger.Store, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{
		store: store,
		log:   log,
	}
}

// TransactionView is a transaction with its account name resolved.
type TransactionView struct {
	domain.Transaction
	AccountName string `json:"accountName"`
}

// ListTransactions handles GET /api/transactions
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter, ok := aggregate.ParseTypeFilter(query.Get("type"))
	if !ok {
		middleware.WriteError(w, http.StatusBadRequest, "type must be ALL, INCOME or EXPENSE")
		return
	}

	snap := h.store.Snapshot()
	matched := aggregate.FilterTransactions(snap.Transactions, filter, query.Get("q"))

	views := make([]TransactionView, 0, len(matched))
	for _, tx := range matched {
		views = append(views, TransactionView{
			Transaction: tx,
			AccountName: aggregate.AccountName(snap.Accounts, tx.AccountID),
		})
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": views,
		"count":        len(views),
		"empty":        len(views) == 0,
	})
}

// CreateTransaction handles POST /api/transactions
func (h *TransactionsHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID string          `json:"accountId"`
		Amount    decimal.Decimal `json:"amount"`
		Type      string          `json:"type"`
		Category  string          `json:"category"`
		Date      *civil.Date     `json:"date"`
		Note      string          `json:"note"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	typ, err := domain.ParseTransactionType(req.Type)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "type must be INCOME or EXPENSE")
		return
	}

	tx, err := h.store.AddTransaction(r.Context(), domain.TransactionInput{
		AccountID: req.AccountID,
		Amount:    req.Amount,
		Type:      typ,
		Category:  req.Category,
		Date:      req.Date,
		Note:      req.Note,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransaction) {
			middleware.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error().Err(err).Msg("Failed to add transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to add transaction")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, tx)
}

// InsightsHandler serves the dashboard and reports.
type InsightsHandler struct {
	store *ledger.Store
	now   func() time.Time
	log   zerolog.Logger
}

// NewInsightsHandler creates a new insights handler.
func NewInsightsHandler(store *ledger.Store, log zerolog.Logger) *InsightsHandler {
	return &InsightsHandler{
		store: store,
		now:   time.Now,
		log:   log,
	}
}

// Dashboard handles GET /api/dashboard
func (h *InsightsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, aggregate.BuildDashboard(h.store.Snapshot(), h.now()))
}

// Reports handles GET /api/reports
func (h *InsightsHandler) Reports(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, aggregate.BuildReport(h.store.Snapshot(), domain.DefaultCategories, h.now()))
}

// CatalogHandler serves the static catalogs.
type CatalogHandler struct{}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler() *CatalogHandler {
	return &CatalogHandler{}
}

// ListCategories handles GET /api/categories
func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories": domain.DefaultCategories,
		"count":      len(domain.DefaultCategories),
	})
}

// ListZodiacSigns handles GET /api/zodiac
func (h *CatalogHandler) ListZodiacSigns(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"signs": domain.ZodiacSigns,
		"count": len(domain.ZodiacSigns),
	})
}

// AdvisorHandler serves AI advice and fortunes. Failures never surface as
// errors: the advisor returns a degraded payload instead.
type AdvisorHandler struct {
	store   *ledger.Store
	advisor advisor.Advisor
	log     zerolog.Logger
}

// NewAdvisorHandler creates a new advisor handler.
func NewAdvisorHandler(store *ledger.Store, adv advisor.Advisor, log zerolog.Logger) *AdvisorHandler {
	return &AdvisorHandler{
		store:   store,
		advisor: adv,
		log:     log,
	}
}

// Advice handles POST /api/advice
func (h *AdvisorHandler) Advice(w http.ResponseWriter, r *http.Request) {
	result := h.advisor.RequestAdvice(r.Context(), h.store.Snapshot())
	if r.Context().Err() != nil {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, result)
}

// Horoscope handles GET /api/horoscope/{sign}
func (h *AdvisorHandler) Horoscope(w http.ResponseWriter, r *http.Request, signName string) {
	sign, err := advisor.LookupSign(signName)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Unknown zodiac sign")
		return
	}

	result := h.advisor.RequestFortune(r.Context(), sign)
	if r.Context().Err() != nil {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, result)
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Job not found")
			return
		}
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		Status: jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	if jobsList == nil {
		jobsList = []*jobs.SaveSnapshotJob{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
