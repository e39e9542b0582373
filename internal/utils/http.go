package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/brickvault/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// maxRequestBody caps JSON request bodies
const maxRequestBody = 1 << 20

// WriteJSON writes data as the response body with the given status
func WriteJSON(w http.ResponseWriter, status int, data interface{}, log zerolog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// WriteData wraps data in the standard {"data", "metadata"} envelope
func WriteData(w http.ResponseWriter, status int, data interface{}, log zerolog.Logger) {
	WriteJSON(w, status, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	}, log)
}

// WriteError maps err onto an HTTP status and writes {"error", "code"}.
// Persistence failures are logged and their detail is not exposed.
func WriteError(w http.ResponseWriter, err error, log zerolog.Logger) {
	status, code := StatusForError(err)

	message := err.Error()
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("code", code).Msg("Request failed")
		if status == http.StatusInternalServerError {
			message = "internal error"
		}
	}

	body := map[string]interface{}{"error": message, "code": code}
	var extErr *domain.ExternalError
	if errors.As(err, &extErr) {
		body["provider"] = extErr.Provider
		if extErr.ProviderMessage != "" {
			body["provider_message"] = extErr.ProviderMessage
		}
		body["retryable"] = extErr.Retryable()
	}
	WriteJSON(w, status, body, log)
}

// WriteBadRequest reports malformed client input
func WriteBadRequest(w http.ResponseWriter, message string, log zerolog.Logger) {
	WriteJSON(w, http.StatusBadRequest, map[string]interface{}{"error": message, "code": "bad_request"}, log)
}

// StatusForError returns the HTTP status and machine-readable code for err
func StatusForError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount):
		return http.StatusBadRequest, "invalid_amount"
	case errors.Is(err, domain.ErrInvalidGoal):
		return http.StatusBadRequest, "invalid_goal"
	case errors.Is(err, domain.ErrInvalidYield):
		return http.StatusBadRequest, "invalid_yield"
	case errors.Is(err, domain.ErrInvalidFrequency):
		return http.StatusBadRequest, "invalid_frequency"
	case errors.Is(err, domain.ErrInvalidAddress):
		return http.StatusBadRequest, "invalid_address"
	case errors.Is(err, domain.ErrInvalidProperty):
		return http.StatusBadRequest, "invalid_property"
	case errors.Is(err, domain.ErrSelfTransfer):
		return http.StatusBadRequest, "self_transfer"
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity, "insufficient_funds"
	case errors.Is(err, domain.ErrAccountNotFound):
		return http.StatusNotFound, "account_not_found"
	case errors.Is(err, domain.ErrTransactionNotFound):
		return http.StatusNotFound, "transaction_not_found"
	case errors.Is(err, domain.ErrPropertyNotFound):
		return http.StatusNotFound, "property_not_found"
	case errors.Is(err, domain.ErrInvestmentNotFound):
		return http.StatusNotFound, "investment_not_found"
	case errors.Is(err, domain.ErrPlanNotFound):
		return http.StatusNotFound, "plan_not_found"
	case errors.Is(err, domain.ErrAccountInactive):
		return http.StatusConflict, "account_inactive"
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, domain.ErrWalletAlreadyLinked):
		return http.StatusConflict, "wallet_already_linked"
	case errors.Is(err, domain.ErrReconciliationUnavailable):
		return http.StatusServiceUnavailable, "reconciliation_unavailable"
	case errors.Is(err, domain.ErrInvalidExternalResponse):
		return http.StatusBadGateway, "invalid_external_response"
	}
	return http.StatusInternalServerError, "persistence_failure"
}

// DecodeJSON decodes a JSON request body into dst, rejecting unknown fields
func DecodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("request body is empty")
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// ParseAmount parses a monetary value supplied as a JSON string or number,
// held to the ledger's fixed-point precision
func ParseAmount(raw json.Number) (decimal.Decimal, error) {
	return ParseDecimal(raw, domain.MoneyScale)
}

// ParseDecimal parses a decimal with at most scale decimal places. Precision
// is checked before the value is used in any arithmetic.
func ParseDecimal(raw json.Number, scale int32) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw.String())
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount is required: %w", domain.ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%q is not a decimal: %w", s, domain.ErrInvalidAmount)
	}
	if err := domain.CheckPrecision(d, scale); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// QueryInt reads an integer query parameter, returning def when it is absent
func QueryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return n, nil
}
