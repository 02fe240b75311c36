package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/ecommerce-core/internal/catalog"
	"github.com/vasiliy-maslov/ecommerce-core/internal/order"
	"github.com/vasiliy-maslov/ecommerce-core/internal/payment"
	"github.com/vasiliy-maslov/ecommerce-core/internal/review"
	"github.com/vasiliy-maslov/ecommerce-core/internal/user"
)

// respondWithError отправляет JSON ошибку
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithJSON отправляет JSON ответ
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Interface("payload", payload).Msg("handler: failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		log.Error().Err(err).Msg("handler: failed to write JSON response")
	}
}

// respondWithServiceError переводит ошибку сервиса в HTTP-статус.
// Нарушение инварианта наружу уходит непрозрачным 500.
func respondWithServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, order.ErrInvariantViolation) {
		log.Error().Err(err).Msg("handler: invariant violation surfaced")
		respondWithError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondWithError(w, mapErrorToStatusCode(err), err.Error())
}

func mapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, order.ErrValidation),
		errors.Is(err, review.ErrInvalidRating):
		return http.StatusBadRequest
	case errors.Is(err, user.ErrNotFound),
		errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, order.ErrUserNotFound),
		errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, catalog.ErrCategoryNotFound),
		errors.Is(err, payment.ErrPaymentNotFound),
		errors.Is(err, review.ErrNotFound),
		errors.Is(err, review.ErrUserNotFound),
		errors.Is(err, review.ErrProductNotFound):
		return http.StatusNotFound
	case errors.Is(err, user.ErrUsernameExists),
		errors.Is(err, user.ErrEmailExists),
		errors.Is(err, payment.ErrDuplicatePayment),
		errors.Is(err, payment.ErrOrderNotPayable),
		errors.Is(err, payment.ErrNotRefundable),
		errors.Is(err, order.ErrInvalidTransition),
		errors.Is(err, catalog.ErrInsufficientStock):
		return http.StatusConflict
	case errors.Is(err, payment.ErrPaymentDeclined):
		return http.StatusPaymentRequired
	case errors.Is(err, payment.ErrGatewayTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, payment.ErrRefundFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func parseIDParam(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

// parseListParams читает skip и limit из query. По умолчанию skip=0,
// limit=100; limit ограничен сверху 1000.
func parseListParams(r *http.Request) (limit, offset int, err error) {
	limit, offset = 100, 0

	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit <= 0 {
			return 0, 0, fmt.Errorf("invalid limit: %q", v)
		}
		if limit > 1000 {
			limit = 1000
		}
	}
	if v := r.URL.Query().Get("skip"); v != "" {
		offset, err = strconv.Atoi(v)
		if err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("invalid skip: %q", v)
		}
	}
	return limit, offset, nil
}
