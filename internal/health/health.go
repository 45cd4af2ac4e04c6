package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Status: состояние компонента или сервиса целиком.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

func (s Status) rank() int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

// Check: результат проверки одного компонента.
type Check struct {
	Name       string `json:"name"`
	Status     Status `json:"status"`
	Message    string `json:"message,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Response: тело ответа /healthz.
type Response struct {
	Status        Status           `json:"status"`
	Timestamp     time.Time        `json:"timestamp"`
	Checks        map[string]Check `json:"checks,omitempty"`
	Version       string           `json:"version,omitempty"`
	UptimeSeconds int64            `json:"uptime_seconds"`
}

// Checker проверяет один компонент. Check не должен блокироваться дольше ctx.
type Checker interface {
	Check(ctx context.Context) Check
}

// Handler собирает проверки компонентов и отдаёт /healthz и /readyz.
type Handler struct {
	mu       sync.RWMutex
	checkers map[string]Checker

	version   string
	timeout   time.Duration
	now       func() time.Time
	startedAt time.Time
}

// Option настраивает Handler.
type Option func(*Handler)

// WithCheckTimeout ограничивает общий прогон проверок.
func WithCheckTimeout(timeout time.Duration) Option {
	return func(h *Handler) {
		if timeout > 0 {
			h.timeout = timeout
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

func NewHandler(version string, options ...Option) *Handler {
	h := &Handler{
		checkers: make(map[string]Checker),
		version:  version,
		timeout:  2 * time.Second,
		now:      time.Now,
	}
	for _, option := range options {
		option(h)
	}
	h.startedAt = h.now()
	return h
}

// RegisterChecker добавляет или заменяет проверку с именем name.
func (h *Handler) RegisterChecker(name string, checker Checker) {
	h.mu.Lock()
	h.checkers[name] = checker
	h.mu.Unlock()
}

// Report прогоняет все проверки параллельно. Итоговый статус равен худшему из них.
func (h *Handler) Report(ctx context.Context) Response {
	h.mu.RLock()
	checkers := make(map[string]Checker, len(h.checkers))
	for name, checker := range h.checkers {
		checkers[name] = checker
	}
	h.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		checks = make(map[string]Check, len(checkers))
	)
	for name, checker := range checkers {
		wg.Add(1)
		go func(name string, checker Checker) {
			defer wg.Done()
			check := checker.Check(ctx)
			mu.Lock()
			checks[name] = check
			mu.Unlock()
		}(name, checker)
	}
	wg.Wait()

	overall := StatusHealthy
	for _, check := range checks {
		if check.Status.rank() > overall.rank() {
			overall = check.Status
		}
	}

	now := h.now()
	return Response{
		Status:        overall,
		Timestamp:     now.UTC(),
		Checks:        checks,
		Version:       h.version,
		UptimeSeconds: int64(now.Sub(h.startedAt).Seconds()),
	}
}

// ServeHTTP отдаёт подробный отчёт. Unhealthy отвечает 503.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	report := h.Report(r.Context())

	code := http.StatusOK
	if report.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(report)
}

// ReadinessHandler снимает сервис с балансировки только при unhealthy.
// Degraded остаётся ready.
func (h *Handler) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	if h.Report(r.Context()).Status == StatusUnhealthy {
		writeText(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	writeText(w, http.StatusOK, "ready")
}

// LivenessHandler отвечает 200, пока процесс обслуживает HTTP.
func LivenessHandler(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, "ok")
}

func writeText(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(body))
}

// SimpleChecker превращает функцию вида Ping в Checker.
type SimpleChecker struct {
	name  string
	probe func(ctx context.Context) error
}

func NewSimpleChecker(name string, probe func(ctx context.Context) error) *SimpleChecker {
	return &SimpleChecker{name: name, probe: probe}
}

// Check: ошибка probe означает unhealthy.
func (c *SimpleChecker) Check(ctx context.Context) Check {
	start := time.Now()
	err := c.probe(ctx)

	check := Check{Name: c.name, Status: StatusHealthy, DurationMs: time.Since(start).Milliseconds()}
	if err != nil {
		check.Status, check.Message = StatusUnhealthy, err.Error()
	}
	return check
}
