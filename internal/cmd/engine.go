package cmd

import (
	"errors"
	"io/fs"
	"net/http"
	"strings"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/routelens/routelens/internal/config"
	"github.com/routelens/routelens/internal/core"
	"github.com/routelens/routelens/internal/core/engine"
	"github.com/routelens/routelens/internal/core/localasn"
	"github.com/routelens/routelens/internal/core/store"
	"github.com/routelens/routelens/internal/core/upstream"
)

// lookupEngine bundles the orchestrator with the process-wide state it
// shares so callers can report on and release it.
type lookupEngine struct {
	Orchestrator *engine.Orchestrator
	Cache        *store.MemoryCache
	Limiter      *engine.CallerLimiter
	localASN     *localasn.Reader
}

// Providers lists the upstream providers the engine will call.
func (e *lookupEngine) Providers() []string {
	providers := []string{core.ProviderRIPEstat, core.ProviderRouteViews}
	if e.Orchestrator.RDAP != nil {
		providers = append(providers, core.ProviderRDAP)
	}
	return providers
}

// Close releases the local ASN database, if one was opened.
func (e *lookupEngine) Close() error {
	if e == nil || e.localASN == nil {
		return nil
	}
	return e.localASN.Close()
}

// newLookupEngine builds a single orchestrator from cfg. A missing local ASN
// database is skipped; an unreadable one is an error.
func newLookupEngine(cfg config.LookupConfig, logger *logging.Logger) (*lookupEngine, error) {
	cache := store.NewMemoryCache()
	limiter := engine.NewCallerLimiter()

	fetcher := &upstream.Client{
		HTTP:      &http.Client{},
		Cache:     cache,
		UserAgent: cfg.UserAgent,
	}

	orch := &engine.Orchestrator{
		Fetcher: fetcher,
		Endpoints: upstream.Endpoints{
			RIPEstatBaseURL:   cfg.RIPEstatBaseURL,
			RouteViewsBaseURL: cfg.RouteViewsBaseURL,
		},
		Limiter: limiter,
		RateLimit: engine.Policy{
			Window:      cfg.RateLimitWindow(),
			MaxRequests: cfg.RateLimitMaxRequests,
			MaxKeys:     cfg.RateLimitMaxKeys,
		},
		CacheTTL:        cfg.CacheTTL(),
		CacheMaxEntries: cfg.CacheMaxEntries,
		Timeout:         upstream.DefaultTimeout,
		Logger:          logger,
	}

	if cfg.RDAP.Enabled {
		orch.RDAP = &upstream.RDAP{Fetcher: fetcher, Server: cfg.RDAP.Server}
	}

	built := &lookupEngine{Orchestrator: orch, Cache: cache, Limiter: limiter}

	if path := strings.TrimSpace(cfg.ASNDBPath); path != "" {
		reader, err := localasn.Open(path)
		switch {
		case err == nil:
			built.localASN = reader
			orch.LocalASN = reader
			if logger != nil {
				logger.Info("Local ASN database loaded",
					zap.String("path", path),
					zap.String("type", reader.DatabaseType()))
			}
		case errors.Is(err, fs.ErrNotExist):
			if logger != nil {
				logger.Debug("Local ASN database not found; skipping", zap.String("path", path))
			}
		default:
			return nil, err
		}
	}

	return built, nil
}
