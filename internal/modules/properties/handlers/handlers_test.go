package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aristath/brickvault/internal/domain"
	"github.com/aristath/brickvault/internal/modules/properties"
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

	service := properties.NewService(properties.NewRepository(db.Conn(), zerolog.Nop()), zerolog.Nop())
	router := chi.NewRouter()
	NewHandler(service, zerolog.Nop()).RegisterRoutes(router)
	return router
}

func TestPropertyRoutes(t *testing.T) {
	router := setupRouter(t)

	body := `{"title":"Dock Studios","location":"Rotterdam","tokenPrice":"25","expectedROI":8.5,"rentalYield":"6"}`
	req := httptest.NewRequest(http.MethodPost, "/properties", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		Data domain.Property `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "8.5", created.Data.ExpectedROI.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/properties/"+created.Data.ID, nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/properties", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Data []domain.Property `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Len(t, listed.Data, 1)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/properties/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/properties",
		strings.NewReader(`{"title":"Bad","tokenPrice":"0","expectedROI":"1","rentalYield":"1"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
