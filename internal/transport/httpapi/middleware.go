package httpapi

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/specialorders/internal/domain"
)

const (
	// IdempotencyKeyHeader: заголовок с ключом идемпотентности.
	IdempotencyKeyHeader = "Idempotency-Key"
	// IdempotencyReplayedHeader выставляется на повторно отданный ответ.
	IdempotencyReplayedHeader = "Idempotency-Replayed"
)

// RequestLogger пишет access-лог запроса через logrus.
func RequestLogger(logger *log.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			entry := logger.WithFields(log.Fields{
				"request_id":  middleware.GetReqID(r.Context()),
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      status,
				"bytes":       ww.BytesWritten(),
				"duration_ms": time.Since(start).Milliseconds(),
			})
			switch {
			case status >= http.StatusInternalServerError:
				entry.Error("http request failed")
			case status >= http.StatusBadRequest:
				entry.Warn("http request rejected")
			default:
				entry.Info("http request served")
			}
		})
	}
}

// Idempotency кэширует ответ на запрос с заголовком Idempotency-Key.
// Повтор с тем же телом получает сохранённый ответ, с другим телом или
// во время обработки первого запроса получает 409.
// После ответа 5xx или паники обработчика тот же запрос занимает ключ заново,
// конкурирующий повтор получает 409.
type Idempotency struct {
	repo   domain.IdempotencyRepository
	logger *log.Entry
	now    func() time.Time
}

// NewIdempotency создаёт middleware поверх хранилища ключей.
func NewIdempotency(repo domain.IdempotencyRepository, logger *log.Entry) *Idempotency {
	if logger == nil {
		logger = log.WithField("component", "idempotency")
	}
	return &Idempotency{
		repo:   repo,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Middleware возвращает chi-совместимый middleware.
func (m *Idempotency) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
		if key == "" || m.repo == nil {
			next.ServeHTTP(w, r)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "failed to read request body")
			return
		}
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))

		logger := m.logger.WithFields(log.Fields{
			"idempotency_key": key,
			"request_id":      middleware.GetReqID(r.Context()),
		})
		hash := requestHash(r.Method, r.URL.Path, body)

		record, err := m.repo.CreateProcessing(r.Context(), key, hash, m.now().Add(domain.DefaultIdempotencyTTL))
		if err != nil {
			m.replay(w, logger, err, record)
			return
		}

		recorder := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			if p := recover(); p != nil {
				// Ключ не должен остаться в processing до конца TTL.
				logger.WithField("panic", p).Error("handler panicked, releasing idempotency key")
				recorder.status = http.StatusInternalServerError
				m.store(r, logger, key, recorder)
				panic(p)
			}
		}()
		next.ServeHTTP(recorder, r)
		m.store(r, logger, key, recorder)
	})
}

// replay отвечает на запрос, для которого ключ занять не удалось.
func (m *Idempotency) replay(w http.ResponseWriter, logger *log.Entry, createErr error, record domain.IdempotencyRecord) {
	switch {
	case errors.Is(createErr, domain.ErrIdempotencyHashMismatch):
		logger.Warn("idempotency key reused with different payload")
		respondWithError(w, http.StatusConflict, "idempotency key is already used with different request payload")
	case errors.Is(createErr, domain.ErrIdempotencyKeyAlreadyExists):
		switch {
		case record.Status == domain.IdempotencyStatusProcessing:
			respondWithError(w, http.StatusConflict, "request with the same idempotency key is already processing")
		case record.Completed():
			writeCached(w, record)
		default:
			respondWithError(w, http.StatusInternalServerError, "unknown idempotency record status")
		}
	default:
		logger.WithError(createErr).Warn("failed to create idempotency record")
		respondWithDomainError(w, createErr, "failed to initialize idempotency request")
	}
}

func (m *Idempotency) store(r *http.Request, logger *log.Entry, key string, recorder *responseRecorder) {
	// Ответ уже отправлен клиенту, сохраняем его даже при отменённом запросе.
	ctx := context.WithoutCancel(r.Context())

	var err error
	if recorder.status < http.StatusBadRequest {
		err = m.repo.MarkDone(ctx, key, recorder.body.Bytes(), recorder.status)
	} else {
		err = m.repo.MarkFailed(ctx, key, recorder.body.Bytes(), recorder.status)
	}
	if err != nil {
		logger.WithError(err).Warn("failed to store idempotent response")
	}
}

func writeCached(w http.ResponseWriter, record domain.IdempotencyRecord) {
	status := record.HTTPStatus
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(IdempotencyReplayedHeader, "true")
	w.WriteHeader(status)
	_, _ = w.Write(record.ResponseBody)
}

func requestHash(method, path string, body []byte) string {
	sum := sha256.New()
	sum.Write([]byte(method))
	sum.Write([]byte{0})
	sum.Write([]byte(path))
	sum.Write([]byte{0})
	sum.Write(body)
	return hex.EncodeToString(sum.Sum(nil))
}

type responseRecorder struct {
	http.ResponseWriter
	status      int
	body        bytes.Buffer
	wroteHeader bool
}

func (r *responseRecorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(p []byte) (int, error) {
	if !r.wroteHeader {
		r.wroteHeader = true
	}
	r.body.Write(p)
	return r.ResponseWriter.Write(p)
}
