package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aristath/brickvault/internal/domain"
	"github.com/aristath/brickvault/internal/modules/ledger"
	testingpkg "github.com/aristath/brickvault/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCatalog struct{}

func (stubCatalog) GetByID(_ context.Context, id string) (*domain.Property, error) {
	if id != "prop-1" {
		return nil, domain.ErrPropertyNotFound
	}
	return &domain.Property{ID: id, Title: "Canal House"}, nil
}

type envelope struct {
	Data     json.RawMessage        `json:"data"`
	Metadata map[string]interface{} `json:"metadata"`
	Error    string                 `json:"error"`
	Code     string                 `json:"code"`
}

func setupRouter(t *testing.T) (*chi.Mux, *ledger.Service) {
	t.Helper()
	db, cleanup := testingpkg.NewTestDB(t, "ledger")
	t.Cleanup(cleanup)

	service := ledger.NewService(ledger.NewRepository(db.Conn(), zerolog.Nop()), stubCatalog{}, nil, zerolog.Nop())
	router := chi.NewRouter()
	NewHandler(service, zerolog.Nop()).RegisterRoutes(router)
	return router, service
}

func do(t *testing.T, router http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func createAccount(t *testing.T, router http.Handler) string {
	t.Helper()
	rec, env := do(t, router, http.MethodPost, "/accounts", `{"displayName":"Dana"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var account domain.Account
	require.NoError(t, json.Unmarshal(env.Data, &account))
	return account.ID
}

func TestDepositConfirmAndBalance(t *testing.T) {
	router, _ := setupRouter(t)
	accountID := createAccount(t, router)

	rec, env := do(t, router, http.MethodPost, "/ledger/deposit",
		`{"accountId":"`+accountID+`","amount":"150.25","methodId":"card"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, env.Metadata, "timestamp")

	var dep domain.Transaction
	require.NoError(t, json.Unmarshal(env.Data, &dep))
	assert.Equal(t, domain.StatusPending, dep.Status)
	assert.Equal(t, "card", dep.Method)

	rec, _ = do(t, router, http.MethodPost, "/ledger/deposit/"+dep.ID+"/confirm", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = do(t, router, http.MethodGet, "/ledger/balance?accountId="+accountID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var balance domain.WalletBalance
	require.NoError(t, json.Unmarshal(env.Data, &balance))
	assert.True(t, decimal.RequireFromString("150.25").Equal(balance.Spendable))

	rec, env = do(t, router, http.MethodPost, "/ledger/deposit/"+dep.ID+"/confirm", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_transition", env.Code)
}

func TestWithdraw_StatusMapping(t *testing.T) {
	router, service := setupRouter(t)
	accountID := createAccount(t, router)

	dep, err := service.Deposit(context.Background(), accountID, decimal.NewFromInt(10), "")
	require.NoError(t, err)
	_, err = service.ConfirmDeposit(context.Background(), dep.ID)
	require.NoError(t, err)

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"overdraft", `{"accountId":"` + accountID + `","amount":"10.01"}`, http.StatusUnprocessableEntity, "insufficient_funds"},
		{"zero amount", `{"accountId":"` + accountID + `","amount":0}`, http.StatusBadRequest, "invalid_amount"},
		{"missing amount", `{"accountId":"` + accountID + `"}`, http.StatusBadRequest, "invalid_amount"},
		{"unknown account", `{"accountId":"nobody","amount":"1"}`, http.StatusNotFound, "account_not_found"},
		{"malformed body", `{"accountId":`, http.StatusBadRequest, "bad_request"},
		{"unknown field", `{"accountId":"` + accountID + `","amount":"1","extra":true}`, http.StatusBadRequest, "bad_request"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec, env := do(t, router, http.MethodPost, "/ledger/withdraw", tc.body)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, env.Code)
		})
	}

	rec, _ := do(t, router, http.MethodPost, "/ledger/withdraw", `{"accountId":"`+accountID+`","amount":"10"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestInvestAndValuation(t *testing.T) {
	router, service := setupRouter(t)
	accountID := createAccount(t, router)

	dep, err := service.Deposit(context.Background(), accountID, decimal.NewFromInt(1000), "")
	require.NoError(t, err)
	_, err = service.ConfirmDeposit(context.Background(), dep.ID)
	require.NoError(t, err)

	rec, env := do(t, router, http.MethodPost, "/ledger/invest",
		`{"accountId":"`+accountID+`","propertyId":"prop-1","amount":"400","tokens":"8"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		Transaction domain.Transaction `json:"transaction"`
		Investment  domain.Investment  `json:"investment"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "Canal House", created.Transaction.PropertyTitle)

	rec, _ = do(t, router, http.MethodPut, "/investments/"+created.Investment.ID+"/valuation", `{"currentValue":"420"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = do(t, router, http.MethodGet, "/investments?accountId="+accountID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var investments []domain.Investment
	require.NoError(t, json.Unmarshal(env.Data, &investments))
	require.Len(t, investments, 1)
	assert.True(t, decimal.NewFromInt(420).Equal(investments[0].CurrentValue))

	rec, env = do(t, router, http.MethodPost, "/ledger/invest",
		`{"accountId":"`+accountID+`","propertyId":"nope","amount":"1","tokens":"1"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "property_not_found", env.Code)
}

func TestTransferAndCompensate(t *testing.T) {
	router, service := setupRouter(t)
	from := createAccount(t, router)
	to := createAccount(t, router)

	_, err := service.RecordRentalIncome(context.Background(), from, "prop-1", decimal.NewFromInt(50))
	require.NoError(t, err)

	rec, env := do(t, router, http.MethodPost, "/ledger/transfer",
		`{"fromAccountId":"`+from+`","toAccountId":"`+from+`","amount":"5"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "self_transfer", env.Code)

	rec, env = do(t, router, http.MethodPost, "/ledger/transfer",
		`{"fromAccountId":"`+from+`","toAccountId":"`+to+`","amount":"20"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, env = do(t, router, http.MethodGet, "/ledger/transactions?accountId="+from+"&limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Transactions []domain.Transaction `json:"transactions"`
		Count        int                  `json:"count"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &listed))
	require.Equal(t, 1, listed.Count)
	assert.Equal(t, domain.KindTransfer, listed.Transactions[0].Kind)

	income, err := service.ListTransactions(context.Background(), from, 10)
	require.NoError(t, err)
	incomeID := income[len(income)-1].ID

	rec, _ = do(t, router, http.MethodPost, "/ledger/transactions/"+incomeID+"/compensate", `{"reason":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// 30 remains after the transfer, so reversing 50 of income would overdraw
	rec, env = do(t, router, http.MethodPost, "/ledger/transactions/"+incomeID+"/compensate", `{"reason":"duplicate payout"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "insufficient_funds", env.Code)
}

func TestAccounts(t *testing.T) {
	router, _ := setupRouter(t)
	accountID := createAccount(t, router)

	rec, env := do(t, router, http.MethodPut, "/accounts/"+accountID+"/wallet", `{"walletAddress":"0xDEADbeef"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var account domain.Account
	require.NoError(t, json.Unmarshal(env.Data, &account))
	assert.Equal(t, "0xdeadbeef", account.WalletAddress)

	rec, env = do(t, router, http.MethodPost, "/accounts", `{"displayName":"Eve","walletAddress":"0xdeadbeef"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "wallet_already_linked", env.Code)

	rec, _ = do(t, router, http.MethodPost, "/accounts/"+accountID+"/deactivate", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = do(t, router, http.MethodPost, "/ledger/deposit", `{"accountId":"`+accountID+`","amount":"1"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "account_inactive", env.Code)

	rec, _ = do(t, router, http.MethodGet, "/accounts/"+accountID, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = do(t, router, http.MethodGet, "/accounts/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQueryValidation(t *testing.T) {
	router, _ := setupRouter(t)

	rec, env := do(t, router, http.MethodGet, "/ledger/balance", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bad_request", env.Code)

	rec, _ = do(t, router, http.MethodGet, "/ledger/transactions?accountId=x&limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeposit_RejectsOutOfRangeAmounts(t *testing.T) {
	router, service := setupRouter(t)
	accountID := createAccount(t, router)

	for _, amount := range []string{`"1e-30"`, `"0.0000001"`, `"1e900000000"`, `1e900000000`} {
		rec, env := do(t, router, http.MethodPost, "/ledger/deposit",
			`{"accountId":"`+accountID+`","amount":`+amount+`}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code, amount)
		assert.Equal(t, "invalid_amount", env.Code, amount)
	}

	rec, env := do(t, router, http.MethodPost, "/ledger/invest",
		`{"accountId":"`+accountID+`","propertyId":"prop-1","amount":"1","tokens":"1e-19"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_amount", env.Code)

	txs, err := service.ListTransactions(context.Background(), accountID, 0)
	require.NoError(t, err)
	assert.Empty(t, txs)
}
