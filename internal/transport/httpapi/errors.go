package httpapi

import (
	"errors"
	"net/http"

	"github.com/vladislavdragonenkov/specialorders/internal/domain"
)

const retryAfterSeconds = "1"

func mapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidPayment), errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrPaymentFrozen),
		domain.IsIdempotencyConflict(err):
		return http.StatusConflict
	case domain.IsRetryable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondWithDomainError пишет ответ по ошибке сервиса.
// Внутренние ошибки не раскрываются клиенту.
func respondWithDomainError(w http.ResponseWriter, err error, fallback string) int {
	code := mapErrorToStatusCode(err)
	switch code {
	case http.StatusServiceUnavailable:
		w.Header().Set("Retry-After", retryAfterSeconds)
		respondWithError(w, code, "storage is temporarily unavailable, retry the request")
	case http.StatusInternalServerError:
		respondWithError(w, code, fallback)
	default:
		respondWithError(w, code, err.Error())
	}
	return code
}
