package handlers

import (
	"context"
	stderrors "errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/errors"

	"github.com/routelens/routelens/internal/metrics"
)

// Check states.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
	StatusTimeout   = "timeout"
)

// ErrDegraded marks a checker failure that still lets the service answer
// lookups. Wrap it to report "degraded" instead of "unhealthy".
var ErrDegraded = stderrors.New("degraded")

type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

type StatusResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthChecker is a component that can report its own health.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

type HealthCheckerFunc func(ctx context.Context) error

func (f HealthCheckerFunc) CheckHealth(ctx context.Context) error { return f(ctx) }

// HealthManager runs registered checkers for the aggregate, readiness and
// startup endpoints. Liveness never runs checkers.
type HealthManager struct {
	mu       sync.RWMutex
	checkers map[string]HealthChecker
	version  string
}

func NewHealthManager(version string) *HealthManager {
	return &HealthManager{
		checkers: make(map[string]HealthChecker),
		version:  version,
	}
}

func (hm *HealthManager) RegisterChecker(name string, checker HealthChecker) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checkers[name] = checker
}

// runChecks executes checkers in name order and returns the per-check
// states plus the overall state.
func (hm *HealthManager) runChecks(ctx context.Context) (map[string]string, string) {
	hm.mu.RLock()
	names := make([]string, 0, len(hm.checkers))
	checkers := make(map[string]HealthChecker, len(hm.checkers))
	for name, checker := range hm.checkers {
		names = append(names, name)
		checkers[name] = checker
	}
	hm.mu.RUnlock()
	sort.Strings(names)

	checks := make(map[string]string, len(names))
	overall := StatusHealthy
	for _, name := range names {
		state := StatusTimeout
		if ctx.Err() == nil {
			started := time.Now()
			err := checkers[name].CheckHealth(ctx)
			state = checkState(err)
			metrics.RecordHealthCheck(name, err == nil, time.Since(started))
		}
		checks[name] = state

		switch {
		case state == StatusUnhealthy:
			overall = StatusUnhealthy
		case state != StatusHealthy && overall == StatusHealthy:
			overall = StatusDegraded
		}
	}
	return checks, overall
}

func checkState(err error) string {
	switch {
	case err == nil:
		return StatusHealthy
	case stderrors.Is(err, ErrDegraded):
		return StatusDegraded
	default:
		return StatusUnhealthy
	}
}

// HealthHandler serves the aggregate report with every check's state.
func (hm *HealthManager) HealthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks, status := hm.runChecks(ctx)
	if status == StatusUnhealthy {
		respondWithError(w, r, unavailable("aggregate health check failed", "aggregate", status, checks))
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    status,
		Version:   hm.version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	})
}

// LivenessHandler answers as long as the process can serve HTTP.
func (hm *HealthManager) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: StatusHealthy, Timestamp: time.Now().UTC()})
}

// ReadinessHandler fails when any checker is unhealthy; degraded is ready.
func (hm *HealthManager) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	hm.serveChecks(w, r, "ready", 5*time.Second)
}

func (hm *HealthManager) StartupHandler(w http.ResponseWriter, r *http.Request) {
	hm.serveChecks(w, r, "startup", 3*time.Second)
}

func (hm *HealthManager) serveChecks(w http.ResponseWriter, r *http.Request, name string, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	checks, status := hm.runChecks(ctx)
	if status == StatusUnhealthy {
		respondWithError(w, r, unavailable(name+" check failed", name, status, checks))
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: status, Timestamp: time.Now().UTC()})
}

func unavailable(message, endpoint, status string, checks map[string]string) *errors.ErrorEnvelope {
	details := map[string]interface{}{"endpoint": endpoint, "status": status}
	if len(checks) > 0 {
		details["checks"] = checks
	}
	return errors.NewErrorEnvelope("SERVICE_UNAVAILABLE", message).WithDetails(details)
}

var globalHealthManager *HealthManager

// InitHealthManager replaces the process-wide manager used by the route
// handlers below.
func InitHealthManager(version string) {
	globalHealthManager = NewHealthManager(version)
}

func GetHealthManager() *HealthManager {
	return globalHealthManager
}

func withGlobalManager(endpoint string, serve func(*HealthManager, http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if hm := globalHealthManager; hm != nil {
			serve(hm, w, r)
			return
		}
		respondWithError(w, r, unavailable("health manager not initialized", endpoint, "unknown", nil))
	}
}

var (
	HealthHandler    = withGlobalManager("aggregate", (*HealthManager).HealthHandler)
	LivenessHandler  = withGlobalManager("live", (*HealthManager).LivenessHandler)
	ReadinessHandler = withGlobalManager("ready", (*HealthManager).ReadinessHandler)
	StartupHandler   = withGlobalManager("startup", (*HealthManager).StartupHandler)
)
