package api_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oinkbank/ledger/internal/api"
	"github.com/oinkbank/ledger/internal/auth"
	"github.com/oinkbank/ledger/internal/db"
	"github.com/oinkbank/ledger/internal/ledger"
	"github.com/oinkbank/ledger/internal/models"
	"github.com/oinkbank/ledger/internal/service"
)

type fakeVerifier struct{}

func (fakeVerifier) VerifyToken(raw string) (*auth.Claims, error) {
	switch raw {
	case "Bearer admin-token":
		return &auth.Claims{UserID: uuid.New(), Admin: true}, nil
	case "Bearer teller-token":
		return &auth.Claims{UserID: uuid.New()}, nil
	default:
		return nil, auth.ErrInvalidToken
	}
}

type fakeTransactions struct {
	postFn      func(ctx context.Context, accountID uuid.UUID, req *models.TransactionRequest) (*models.Transaction, error)
	statementFn func(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*models.StatementEntry, error)
}

func (f *fakeTransactions) Post(ctx context.Context, accountID uuid.UUID, req *models.TransactionRequest) (*models.Transaction, error) {
	return f.postFn(ctx, accountID, req)
}

func (f *fakeTransactions) Reverse(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	return nil, ledger.ErrTransactionNotFound
}

func (f *fakeTransactions) GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	return nil, ledger.ErrTransactionNotFound
}

func (f *fakeTransactions) Statement(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*models.StatementEntry, error) {
	return f.statementFn(ctx, accountID, limit, offset)
}

func newRouter(t *testing.T, transactions api.TransactionService) *mux.Router {
	t.Helper()
	r := mux.NewRouter()
	api.SetupRoutes(r, fakeVerifier{}, nil, transactions, nil, nil)
	return r
}

func doRequest(router *mux.Router, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck_Open(t *testing.T) {
	router := newRouter(t, &fakeTransactions{})
	rec := doRequest(router, "GET", "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPostTransaction_Success(t *testing.T) {
	accountID := uuid.New()
	fake := &fakeTransactions{
		postFn: func(ctx context.Context, gotID uuid.UUID, req *models.TransactionRequest) (*models.Transaction, error) {
			assert.Equal(t, accountID, gotID)
			assert.Equal(t, models.Deposit, req.Type)
			assert.True(t, req.Amount.Equal(decimal.NewFromInt(10000)))
			return &models.Transaction{
				ID:        uuid.New(),
				AccountID: gotID,
				Type:      req.Type,
				Amount:    req.Amount,
				Posted:    true,
				CreatedAt: time.Now(),
			}, nil
		},
	}
	router := newRouter(t, fake)

	rec := doRequest(router, "POST", "/accounts/"+accountID.String()+"/transactions",
		"admin-token", `{"type":"DEPOSIT","amount":10000}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"DEPOSIT"`)
}

func TestPostTransaction_ErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{ledger.ErrAccountNotFound, http.StatusNotFound},
		{ledger.ErrInvalidAmount, http.StatusBadRequest},
		{ledger.ErrUnsupportedType, http.StatusBadRequest},
		{ledger.ErrBalanceTooLow, http.StatusUnprocessableEntity},
		{ledger.ErrInsufficientFunds, http.StatusUnprocessableEntity},
		{ledger.ErrDestinationNotFound, http.StatusUnprocessableEntity},
		{ledger.ErrStorageUnavailable, http.StatusServiceUnavailable},
		{fmt.Errorf("%w: amount must have at most 2 decimal places", ledger.ErrInvalidAmount), http.StatusBadRequest},
		{fmt.Errorf("%w: account number is required", service.ErrInvalidArgument), http.StatusBadRequest},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.err.Error(), func(t *testing.T) {
			fake := &fakeTransactions{
				postFn: func(ctx context.Context, id uuid.UUID, req *models.TransactionRequest) (*models.Transaction, error) {
					return nil, tc.err
				},
			}
			router := newRouter(t, fake)

			rec := doRequest(router, "POST", "/accounts/"+uuid.New().String()+"/transactions",
				"admin-token", `{"type":"WITHDRAWAL","amount":1}`)
			assert.Equal(t, tc.status, rec.Code)
			assert.Contains(t, rec.Body.String(), "error")
		})
	}
}

func TestPostTransaction_Authorization(t *testing.T) {
	router := newRouter(t, &fakeTransactions{})
	path := "/accounts/" + uuid.New().String() + "/transactions"

	rec := doRequest(router, "POST", path, "", `{"type":"DEPOSIT","amount":1}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(router, "POST", path, "teller-token", `{"type":"DEPOSIT","amount":1}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetStatement_Pagination(t *testing.T) {
	var gotLimit, gotOffset int
	fake := &fakeTransactions{
		statementFn: func(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*models.StatementEntry, error) {
			gotLimit, gotOffset = limit, offset
			return []*models.StatementEntry{}, nil
		},
	}
	router := newRouter(t, fake)
	base := "/accounts/" + uuid.New().String() + "/statement"

	rec := doRequest(router, "GET", base, "teller-token", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, gotLimit)
	assert.Equal(t, 0, gotOffset)

	rec = doRequest(router, "GET", base+"?limit=25&offset=50", "teller-token", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 25, gotLimit)
	assert.Equal(t, 50, gotOffset)

	// Bad values fall back to defaults.
	rec = doRequest(router, "GET", base+"?limit=-1&offset=abc", "teller-token", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, gotLimit)
	assert.Equal(t, 0, gotOffset)

	// A zero limit means "no limit" to the archive, so it falls back too.
	rec = doRequest(router, "GET", base+"?limit=0", "teller-token", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, gotLimit)

	// Oversized limits are clamped.
	rec = doRequest(router, "GET", base+"?limit=1000", "teller-token", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 100, gotLimit)
}

func TestPostTransaction_StorageErrorBody(t *testing.T) {
	fake := &fakeTransactions{
		postFn: func(ctx context.Context, id uuid.UUID, req *models.TransactionRequest) (*models.Transaction, error) {
			return nil, fmt.Errorf("%w: %v", ledger.ErrStorageUnavailable,
				errors.New("pq: password authentication failed for host db-internal:5432"))
		},
	}
	router := newRouter(t, fake)

	rec := doRequest(router, "POST", "/accounts/"+uuid.New().String()+"/transactions",
		"admin-token", `{"type":"DEPOSIT","amount":1}`)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), ledger.ErrStorageUnavailable.Error())
	// Driver detail stays out of the response body.
	assert.NotContains(t, rec.Body.String(), "db-internal")
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestPostTransaction_InvalidPayload(t *testing.T) {
	router := newRouter(t, &fakeTransactions{})

	rec := doRequest(router, "POST", "/accounts/"+uuid.New().String()+"/transactions",
		"admin-token", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(router, "POST", "/accounts/not-a-uuid/transactions",
		"admin-token", `{"type":"DEPOSIT","amount":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type fakeUsers struct {
	updateFn func(ctx context.Context, id uuid.UUID, params models.UpdateUserParams) (*models.User, error)
}

func (f *fakeUsers) CreateUser(ctx context.Context, req *models.CreateUserRequest) (*models.User, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeUsers) Authenticate(ctx context.Context, username, password string) (*models.TokenResponse, error) {
	return nil, auth.ErrInvalidCredentials
}

func (f *fakeUsers) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeUsers) ListUsers(ctx context.Context) ([]*models.User, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeUsers) UpdateUser(ctx context.Context, id uuid.UUID, params models.UpdateUserParams) (*models.User, error) {
	return f.updateFn(ctx, id, params)
}

func (f *fakeUsers) DeleteUser(ctx context.Context, id uuid.UUID) error {
	return errors.New("not implemented")
}

type fakeDirectory struct {
	updateBranchFn func(ctx context.Context, id uuid.UUID, params models.UpdateBranchParams) (*models.Branch, error)
}

func (f *fakeDirectory) CreateBranch(ctx context.Context, req *models.CreateBranchRequest) (*models.Branch, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeDirectory) GetBranch(ctx context.Context, id uuid.UUID) (*models.Branch, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeDirectory) ListBranches(ctx context.Context) ([]*models.Branch, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeDirectory) UpdateBranch(ctx context.Context, id uuid.UUID, params models.UpdateBranchParams) (*models.Branch, error) {
	return f.updateBranchFn(ctx, id, params)
}

func (f *fakeDirectory) DeleteBranch(ctx context.Context, id uuid.UUID) error {
	return errors.New("not implemented")
}

func (f *fakeDirectory) CreateAddress(ctx context.Context, req *models.CreateAddressRequest) (*models.Address, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeDirectory) GetAddress(ctx context.Context, id uuid.UUID) (*models.Address, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeDirectory) ListAddressesByUser(ctx context.Context, userID uuid.UUID) ([]*models.Address, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeDirectory) DeleteAddress(ctx context.Context, id uuid.UUID) error {
	return errors.New("not implemented")
}

func newDirectoryRouter(t *testing.T, users api.UserService, directory api.DirectoryService) *mux.Router {
	t.Helper()
	r := mux.NewRouter()
	api.SetupRoutes(r, fakeVerifier{}, nil, nil, users, directory)
	return r
}

func TestUpdateUser_Patch(t *testing.T) {
	userID := uuid.New()
	users := &fakeUsers{
		updateFn: func(ctx context.Context, gotID uuid.UUID, params models.UpdateUserParams) (*models.User, error) {
			assert.Equal(t, userID, gotID)
			require.NotNil(t, params.Email)
			assert.Equal(t, "new@oinkbank.local", *params.Email)
			assert.Nil(t, params.Username)
			assert.Nil(t, params.Phone)
			return &models.User{
				ID:        gotID,
				Username:  "teller1",
				Email:     *params.Email,
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			}, nil
		},
	}
	router := newDirectoryRouter(t, users, &fakeDirectory{})

	rec := doRequest(router, "PATCH", "/users/"+userID.String(),
		"admin-token", `{"email":"new@oinkbank.local"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "new@oinkbank.local")
}

func TestUpdateUser_Errors(t *testing.T) {
	users := &fakeUsers{
		updateFn: func(ctx context.Context, id uuid.UUID, params models.UpdateUserParams) (*models.User, error) {
			return nil, db.ErrNotFound
		},
	}
	router := newDirectoryRouter(t, users, &fakeDirectory{})
	path := "/users/" + uuid.New().String()

	// Patching users is an admin operation.
	rec := doRequest(router, "PATCH", path, "teller-token", `{"email":"x@y.z"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(router, "PATCH", path, "admin-token", `{"email":"x@y.z"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	users.updateFn = func(ctx context.Context, id uuid.UUID, params models.UpdateUserParams) (*models.User, error) {
		return nil, fmt.Errorf("username already taken: %w", db.ErrConflict)
	}
	rec = doRequest(router, "PATCH", path, "admin-token", `{"username":"taken"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestUpdateBranch_Patch(t *testing.T) {
	branchID := uuid.New()
	directory := &fakeDirectory{
		updateBranchFn: func(ctx context.Context, gotID uuid.UUID, params models.UpdateBranchParams) (*models.Branch, error) {
			assert.Equal(t, branchID, gotID)
			require.NotNil(t, params.Name)
			assert.Equal(t, "Bandung", *params.Name)
			assert.Nil(t, params.Phone)
			return &models.Branch{ID: gotID, Name: *params.Name, Phone: "021-555"}, nil
		},
	}
	router := newDirectoryRouter(t, &fakeUsers{}, directory)

	rec := doRequest(router, "PATCH", "/branches/"+branchID.String(),
		"admin-token", `{"name":"Bandung"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "Bandung")

	rec = doRequest(router, "PATCH", "/branches/"+branchID.String(),
		"teller-token", `{"name":"Bandung"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
