package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aristath/brickvault/internal/domain"
	"github.com/aristath/brickvault/internal/modules/plans"
	testingpkg "github.com/aristath/brickvault/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(t *testing.T) *chi.Mux {
	t.Helper()
	db, cleanup := testingpkg.NewTestDB(t, "app")
	t.Cleanup(cleanup)

	router := chi.NewRouter()
	NewHandler(plans.NewStore(db.Conn(), nil, zerolog.Nop()), zerolog.Nop()).RegisterRoutes(router)
	return router
}

func serve(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestPlanRoutes(t *testing.T) {
	router := setupRouter(t)

	rec := serve(router, http.MethodPost, "/plans",
		`{"accountId":"acc-1","plan":{"investment_amount":"2500","monthly_income_goal":"120"}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		Data domain.SavedPlan `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.Data.ID)
	require.NotNil(t, created.Data.Plan.MonthlyIncomeGoal)
	assert.Equal(t, "120", created.Data.Plan.MonthlyIncomeGoal.String())

	rec = serve(router, http.MethodGet, "/plans?accountId=acc-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Data []domain.SavedPlan `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed.Data, 1)
	assert.Equal(t, "2500", listed.Data[0].Plan.InvestmentAmount.String())

	rec = serve(router, http.MethodGet, "/plans/"+created.Data.ID, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	for i := 0; i < 2; i++ {
		rec = serve(router, http.MethodDelete, "/plans/"+created.Data.ID, "")
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	rec = serve(router, http.MethodGet, "/plans/"+created.Data.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPlanRoutes_Clear(t *testing.T) {
	router := setupRouter(t)

	for i := 0; i < 2; i++ {
		rec := serve(router, http.MethodPost, "/plans", `{"accountId":"acc-1","plan":{"investment_amount":"1000"}}`)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := serve(router, http.MethodDelete, "/plans?accountId=acc-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"removed":2`)

	rec = serve(router, http.MethodDelete, "/plans", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = serve(router, http.MethodPost, "/plans", `{"plan":{}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
