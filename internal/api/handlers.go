// Package api exposes the service over HTTP: token issuance, CRUD for the
// directory records, and the transaction-posting endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/oinkbank/ledger/internal/auth"
	"github.com/oinkbank/ledger/internal/db"
	"github.com/oinkbank/ledger/internal/ledger"
	"github.com/oinkbank/ledger/internal/models"
	"github.com/oinkbank/ledger/internal/service"
)

// The handler depends on the service layer through these interfaces so the
// routes can be exercised with fakes.

type AccountService interface {
	CreateAccount(ctx context.Context, req *models.CreateAccountRequest) (*models.Account, error)
	GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error)
	ListAccounts(ctx context.Context) ([]*models.Account, error)
	UpdateAccount(ctx context.Context, id uuid.UUID, params models.UpdateAccountParams) (*models.Account, error)
	DeleteAccount(ctx context.Context, id uuid.UUID) error
}

type TransactionService interface {
	Post(ctx context.Context, accountID uuid.UUID, req *models.TransactionRequest) (*models.Transaction, error)
	Reverse(ctx context.Context, transactionID uuid.UUID) (*models.Transaction, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	Statement(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*models.StatementEntry, error)
}

type UserService interface {
	CreateUser(ctx context.Context, req *models.CreateUserRequest) (*models.User, error)
	Authenticate(ctx context.Context, username, password string) (*models.TokenResponse, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	UpdateUser(ctx context.Context, id uuid.UUID, params models.UpdateUserParams) (*models.User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

type DirectoryService interface {
	CreateBranch(ctx context.Context, req *models.CreateBranchRequest) (*models.Branch, error)
	GetBranch(ctx context.Context, id uuid.UUID) (*models.Branch, error)
	ListBranches(ctx context.Context) ([]*models.Branch, error)
	UpdateBranch(ctx context.Context, id uuid.UUID, params models.UpdateBranchParams) (*models.Branch, error)
	DeleteBranch(ctx context.Context, id uuid.UUID) error
	CreateAddress(ctx context.Context, req *models.CreateAddressRequest) (*models.Address, error)
	GetAddress(ctx context.Context, id uuid.UUID) (*models.Address, error)
	ListAddressesByUser(ctx context.Context, userID uuid.UUID) ([]*models.Address, error)
	DeleteAddress(ctx context.Context, id uuid.UUID) error
}

// Handler handles API requests.
type Handler struct {
	accounts     AccountService
	transactions TransactionService
	users        UserService
	directory    DirectoryService
}

func NewHandler(accounts AccountService, transactions TransactionService, users UserService, directory DirectoryService) *Handler {
	return &Handler{
		accounts:     accounts,
		transactions: transactions,
		users:        users,
		directory:    directory,
	}
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends a JSON error body.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondDomainError maps domain errors to status codes. Storage and
// unexpected failures get a fixed message so driver detail (hosts,
// credentials) never reaches the response body.
func respondDomainError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	switch status {
	case http.StatusServiceUnavailable:
		respondError(w, status, ledger.ErrStorageUnavailable.Error())
	case http.StatusInternalServerError:
		respondError(w, status, "internal server error")
	default:
		respondError(w, status, err.Error())
	}
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, ledger.ErrAccountNotFound),
		errors.Is(err, ledger.ErrTransactionNotFound),
		errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrUnsupportedType),
		errors.Is(err, ledger.ErrSameAccount),
		errors.Is(err, service.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrBalanceTooLow),
		errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrDestinationNotFound):
		return http.StatusUnprocessableEntity
	case errors.Is(err, db.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, ledger.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func pathID(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	return id, err == nil
}

// CreateAccount handles account opening.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req models.CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	account, err := h.accounts.CreateAccount(r.Context(), &req)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, models.NewAccountResponse(account))
}

// GetAccount handles account retrieval.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	account, err := h.accounts.GetAccount(r.Context(), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, models.NewAccountResponse(account))
}

// ListAccounts handles account listing.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accounts.ListAccounts(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}

	response := make([]models.AccountResponse, 0, len(accounts))
	for _, a := range accounts {
		response = append(response, models.NewAccountResponse(a))
	}
	respondJSON(w, http.StatusOK, response)
}

// UpdateAccount handles account patching.
func (h *Handler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	var params models.UpdateAccountParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	account, err := h.accounts.UpdateAccount(r.Context(), id, params)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, models.NewAccountResponse(account))
}

// DeleteAccount handles account soft-deletion.
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	if err := h.accounts.DeleteAccount(r.Context(), id); err != nil {
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PostTransaction handles transaction posting against an account.
func (h *Handler) PostTransaction(w http.ResponseWriter, r *http.Request) {
	accountID, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	var req models.TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	tx, err := h.transactions.Post(r.Context(), accountID, &req)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, models.NewTransactionResponse(tx))
}

// GetTransaction handles transaction retrieval.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}

	tx, err := h.transactions.GetTransaction(r.Context(), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, models.NewTransactionResponse(tx))
}

// DeleteTransaction reverses a posted transaction and soft-deletes it. The
// reversal entry is returned.
func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}

	reversal, err := h.transactions.Reverse(r.Context(), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, models.NewTransactionResponse(reversal))
}

// GetStatement handles statement retrieval from the archive.
func (h *Handler) GetStatement(w http.ResponseWriter, r *http.Request) {
	accountID, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	limit := queryInt(r, "limit", defaultStatementLimit)
	if limit < 1 {
		// A zero limit would read as "no limit" downstream.
		limit = defaultStatementLimit
	}
	if limit > maxStatementLimit {
		limit = maxStatementLimit
	}
	offset := queryInt(r, "offset", 0)

	entries, err := h.transactions.Statement(r.Context(), accountID, limit, offset)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

const (
	defaultStatementLimit = 10
	maxStatementLimit     = 100
)

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed < 0 {
		return def
	}
	return parsed
}

// HealthCheck handles health checks.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// SetupRoutes wires the API routes. Everything except the health check and
// token issuance sits behind bearer auth; mutations on money and on other
// people's records require the admin flag.
func SetupRoutes(r *mux.Router, verifier TokenVerifier, accounts AccountService, transactions TransactionService, users UserService, directory DirectoryService) {
	h := NewHandler(accounts, transactions, users, directory)

	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/token", h.IssueToken).Methods("POST")

	protected := r.NewRoute().Subrouter()
	protected.Use(Authenticate(verifier))

	admin := protected.NewRoute().Subrouter()
	admin.Use(RequireAdmin)

	// Users
	admin.HandleFunc("/users", h.CreateUser).Methods("POST")
	protected.HandleFunc("/users", h.ListUsers).Methods("GET")
	protected.HandleFunc("/users/{id}", h.GetUser).Methods("GET")
	admin.HandleFunc("/users/{id}", h.UpdateUser).Methods("PATCH")
	admin.HandleFunc("/users/{id}", h.DeleteUser).Methods("DELETE")

	// Branches
	admin.HandleFunc("/branches", h.CreateBranch).Methods("POST")
	protected.HandleFunc("/branches", h.ListBranches).Methods("GET")
	protected.HandleFunc("/branches/{id}", h.GetBranch).Methods("GET")
	admin.HandleFunc("/branches/{id}", h.UpdateBranch).Methods("PATCH")
	admin.HandleFunc("/branches/{id}", h.DeleteBranch).Methods("DELETE")

	// Addresses
	protected.HandleFunc("/addresses", h.CreateAddress).Methods("POST")
	protected.HandleFunc("/addresses/{id}", h.GetAddress).Methods("GET")
	protected.HandleFunc("/users/{id}/addresses", h.ListAddresses).Methods("GET")
	admin.HandleFunc("/addresses/{id}", h.DeleteAddress).Methods("DELETE")

	// Accounts
	admin.HandleFunc("/accounts", h.CreateAccount).Methods("POST")
	protected.HandleFunc("/accounts", h.ListAccounts).Methods("GET")
	protected.HandleFunc("/accounts/{id}", h.GetAccount).Methods("GET")
	admin.HandleFunc("/accounts/{id}", h.UpdateAccount).Methods("PATCH")
	admin.HandleFunc("/accounts/{id}", h.DeleteAccount).Methods("DELETE")

	// Transactions
	admin.HandleFunc("/accounts/{id}/transactions", h.PostTransaction).Methods("POST")
	protected.HandleFunc("/accounts/{id}/statement", h.GetStatement).Methods("GET")
	protected.HandleFunc("/transactions/{id}", h.GetTransaction).Methods("GET")
	admin.HandleFunc("/transactions/{id}", h.DeleteTransaction).Methods("DELETE")
}
