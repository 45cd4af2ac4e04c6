package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/specialorders/internal/domain"
)

// NewRouter собирает chi-роутер API спецзаказов.
// idempotency может быть nil: тогда Idempotency-Key игнорируется.
func NewRouter(handler *Handler, idempotency domain.IdempotencyRepository, logger *log.Entry) *chi.Mux {
	if logger == nil {
		logger = log.WithField("component", "http-api")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respondWithError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		respondWithError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	var idempotent func(http.Handler) http.Handler
	if idempotency != nil {
		idempotent = NewIdempotency(idempotency, logger.WithField("component", "idempotency")).Middleware
	}
	handler.RegisterRoutes(r, idempotent)

	return r
}
