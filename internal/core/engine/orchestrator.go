package engine

import (
	"context"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/routelens/routelens/internal/core"
	"github.com/routelens/routelens/internal/core/query"
	"github.com/routelens/routelens/internal/core/upstream"
	"github.com/routelens/routelens/internal/metrics"
)

// Envelope text returned to callers.
const (
	ErrRateLimitExceeded = "rate limit exceeded"
	ErrMissingQuery      = "missing query parameter q"
	ErrUnrecognizedQuery = "unrecognized query"

	HintRateLimited  = "Please retry shortly; lookup requests are rate-limited to protect upstream data providers."
	HintUnrecognized = "Try an IP (8.8.8.8), prefix (8.8.8.0/24), ASN (15169), or an org name (google)."

	NoteBestEffort = "External enrichment is best-effort and should be treated as approximate."
	NoteEvidence   = "Evidence includes upstream URLs and timestamps when available."
	NoteSearch     = "Search results are suggestions; click an item to run an exact lookup."
)

// Default cache policy for upstream responses.
const (
	DefaultCacheTTL        = 30 * time.Second
	DefaultCacheMaxEntries = 256
)

const prefixSampleSize = 25

// ASNResolver answers origin ASN questions from local data.
type ASNResolver interface {
	Lookup(ip string) (*core.LocalASN, bool)
}

// Orchestrator resolves one free-form query into an evidence-annotated
// result. Cache and limiter state live in the injected Fetcher and Limiter
// so that one instance of each serves the whole process.
type Orchestrator struct {
	Fetcher   *upstream.Client
	Endpoints upstream.Endpoints
	Limiter   *CallerLimiter
	RateLimit Policy

	// CacheTTL <= 0 disables caching.
	CacheTTL        time.Duration
	CacheMaxEntries int
	Timeout         time.Duration

	// Optional enrichment; nil disables it.
	RDAP     *upstream.RDAP
	LocalASN ASNResolver

	Logger *logging.Logger
	Clock  func() time.Time
}

type requestIDKey struct{}

// WithRequestID attaches the id a lookup should report in its meta block.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.New().String()
}

// lookup carries the state of one request.
type lookup struct {
	o         *Orchestrator
	ctx       context.Context
	query     string
	started   time.Time
	requestID string
	rateLimit *core.RateLimitDecision
	sources   []core.SourceEvidence
}

// Lookup consumes one request from caller's budget, classifies raw and runs
// the matching upstream chain. It always returns a result; failures are
// reported on the envelope with an HTTP-equivalent Status.
func (o *Orchestrator) Lookup(ctx context.Context, raw, caller string) *core.LookupResult {
	if ctx == nil {
		ctx = context.Background()
	}

	l := &lookup{
		o:         o,
		ctx:       ctx,
		query:     strings.TrimSpace(raw),
		started:   o.now(),
		requestID: requestID(ctx),
		sources:   make([]core.SourceEvidence, 0, 3),
	}

	if o.Limiter != nil {
		decision := o.Limiter.Consume(caller, o.RateLimit, l.started)
		l.rateLimit = &decision
		if !decision.Allowed {
			metrics.RecordRateLimitDenied()
			o.debug("lookup rate limited", zap.String("caller", caller))
			result := l.failure(core.ResultKindError, 429, core.ErrorKindRateLimitExceeded, ErrRateLimitExceeded)
			result.Trust = core.TrustTrusted
			result.Hint = HintRateLimited
			return l.finish(result)
		}
	}

	if l.query == "" {
		return l.finish(l.failure(core.ResultKindError, 400, core.ErrorKindClientInput, ErrMissingQuery))
	}

	classified := query.Classify(l.query)
	switch classified.Kind {
	case core.QueryKindIP:
		return l.finish(l.ip(classified.Value))
	case core.QueryKindPrefix:
		return l.finish(l.prefix(classified.Value))
	case core.QueryKindASN:
		return l.finish(l.asn(classified.Value))
	default:
		return l.finish(l.search())
	}
}

func (l *lookup) ip(ip string) *core.LookupResult {
	res := l.fetch(l.o.Endpoints.NetworkInfoURL(ip), core.ProviderRIPEstat)
	info := upstream.ParseNetworkInfo(res.Payload)
	l.record(res, info.Time)
	if !res.OK {
		return l.failure(core.ResultKindIP, 502, core.ErrorKindUpstream, res.Error)
	}

	data := &core.IPData{
		IP:          ip,
		ASNs:        info.ASNs,
		NetworkInfo: res.Payload,
	}
	if data.ASNs == nil {
		data.ASNs = []string{}
	}

	partial := true
	if info.Prefix != "" {
		covering := info.Prefix
		data.CoveringPrefix = &covering

		prefixRes := l.fetch(l.o.Endpoints.PrefixURL(covering), core.ProviderRouteViews)
		summary := upstream.ParsePrefixInfo(prefixRes.Payload)
		l.record(prefixRes, summary.LatestPeerTimestamp)
		if prefixRes.OK {
			partial = false
			data.CoveringPrefixInfo = prefixRes.Payload
			data.Routing = &summary
		}
	}

	if l.o.LocalASN != nil {
		if local, ok := l.o.LocalASN.Lookup(ip); ok {
			data.LocalASN = local
		}
	}
	if l.o.RDAP != nil {
		data.Registration = l.registration(l.o.RDAP.IPNetwork(l.ctx, ip, l.options(core.ProviderRDAP)))
	}

	result := l.success(core.ResultKindIP, data, NoteBestEffort, NoteEvidence)
	result.Partial = partial
	return result
}

func (l *lookup) prefix(prefix string) *core.LookupResult {
	res := l.fetch(l.o.Endpoints.PrefixURL(prefix), core.ProviderRouteViews)
	summary := upstream.ParsePrefixInfo(res.Payload)
	l.record(res, summary.LatestPeerTimestamp)
	if !res.OK {
		return l.failure(core.ResultKindPrefix, 502, core.ErrorKindUpstream, res.Error)
	}

	data := &core.PrefixData{
		Prefix:        prefix,
		PrefixInfo:    res.Payload,
		PrefixSummary: summary,
	}
	return l.success(core.ResultKindPrefix, data, NoteBestEffort, NoteEvidence)
}

func (l *lookup) asn(asn string) *core.LookupResult {
	res := l.fetch(l.o.Endpoints.ASNURL(asn), core.ProviderRouteViews)
	l.record(res, "")
	if !res.OK {
		return l.failure(core.ResultKindASN, 502, core.ErrorKindUpstream, res.Error)
	}

	prefixes := upstream.ParseASNPrefixes(res.Payload)
	data := &core.ASNData{
		ASN:          asn,
		Prefixes:     prefixes,
		PrefixCount:  len(prefixes),
		PrefixSample: prefixes[:min(len(prefixes), prefixSampleSize)],
	}
	if l.o.RDAP != nil {
		data.Registration = l.registration(l.o.RDAP.Autnum(l.ctx, asn, l.options(core.ProviderRDAP)))
	}
	return l.success(core.ResultKindASN, data, NoteBestEffort, NoteEvidence)
}

func (l *lookup) search() *core.LookupResult {
	res := l.fetch(l.o.Endpoints.SearchCompleteURL(l.query), core.ProviderRIPEstat)
	summary := upstream.ParseSearch(res.Payload)
	l.record(res, summary.Time)
	if !res.OK {
		result := l.failure(core.ResultKindError, 400, core.ErrorKindUnrecognizedQuery, ErrUnrecognizedQuery)
		result.Hint = HintUnrecognized
		return result
	}

	data := &core.SearchData{
		Search:      res.Payload,
		Suggestions: summary.Suggestions(),
	}
	return l.success(core.ResultKindSearch, data, NoteSearch, NoteBestEffort)
}

// registration records RDAP evidence. A failed lookup leaves the result
// untouched apart from the evidence record.
func (l *lookup) registration(res upstream.FetchResult) *core.RegistrationEntry {
	l.record(res, "")
	if !res.OK {
		return nil
	}
	return upstream.ParseRegistration(res.Payload)
}

func (l *lookup) fetch(url, provider string) upstream.FetchResult {
	fetcher := l.o.Fetcher
	if fetcher == nil {
		fetcher = &upstream.Client{Clock: l.o.Clock}
	}
	return fetcher.Fetch(l.ctx, url, l.options(provider))
}

func (l *lookup) options(provider string) upstream.Options {
	timeout := l.o.Timeout
	if timeout <= 0 {
		timeout = upstream.DefaultTimeout
	}
	return upstream.Options{
		Provider:        provider,
		Timeout:         timeout,
		CacheTTL:        l.o.CacheTTL,
		CacheMaxEntries: l.o.cacheMaxEntries(),
	}
}

func (l *lookup) record(res upstream.FetchResult, upstreamTime string) {
	evidence := core.SourceEvidence{
		ID:        uuid.New().String(),
		Name:      res.Provider,
		URL:       res.URL,
		FetchedAt: res.FetchedAt,
		Status:    res.Status,
		OK:        res.OK,
		Cached:    res.Cached,
	}
	if res.OK {
		evidence.UpstreamTimestamp = upstreamTime
		evidence.PayloadDigest = res.Digest
	} else {
		evidence.Error = res.Error
		l.o.warn("upstream call failed",
			zap.String("provider", res.Provider),
			zap.String("url", res.URL),
			zap.Int("status", res.Status),
			zap.String("error", res.Error),
			zap.String("request_id", l.requestID))
	}
	if res.Cached {
		age := res.CacheAge.Milliseconds()
		evidence.CacheAgeMs = &age
	}
	l.sources = append(l.sources, evidence)
}

func (l *lookup) envelope(kind core.ResultKind, status int) *core.LookupResult {
	return &core.LookupResult{
		Kind:      kind,
		Query:     l.query,
		FetchedAt: l.started,
		Trust:     core.TrustUntrusted,
		RateLimit: l.rateLimit,
		Sources:   l.sources,
		Status:    status,
	}
}

func (l *lookup) failure(kind core.ResultKind, status int, errKind core.ErrorKind, message string) *core.LookupResult {
	result := l.envelope(kind, status)
	result.Error = message
	result.ErrorKind = errKind
	return result
}

func (l *lookup) success(kind core.ResultKind, data any, notes ...string) *core.LookupResult {
	result := l.envelope(kind, 200)
	result.Data = data
	result.Notes = notes
	return result
}

func (l *lookup) finish(result *core.LookupResult) *core.LookupResult {
	result.Meta = core.LookupMeta{
		RequestID:  l.requestID,
		DurationMs: max(0, l.o.now().Sub(l.started).Milliseconds()),
	}
	for _, source := range result.Sources {
		if !source.OK {
			result.Meta.UpstreamErrors++
		}
		if source.Cached {
			result.Meta.CacheHits++
		}
	}

	metrics.RecordLookup(string(result.Kind), result.Status)
	l.o.debug("lookup finished",
		zap.String("kind", string(result.Kind)),
		zap.Int("status", result.Status),
		zap.Bool("partial", result.Partial),
		zap.Int("sources", len(result.Sources)),
		zap.String("request_id", l.requestID))
	return result
}

func (o *Orchestrator) cacheMaxEntries() int {
	if o.CacheMaxEntries <= 0 {
		return DefaultCacheMaxEntries
	}
	return o.CacheMaxEntries
}

func (o *Orchestrator) now() time.Time {
	if o != nil && o.Clock != nil {
		return o.Clock()
	}
	return time.Now().UTC()
}

func (o *Orchestrator) warn(msg string, fields ...zap.Field) {
	if o.Logger != nil {
		o.Logger.Warn(msg, fields...)
	}
}

func (o *Orchestrator) debug(msg string, fields ...zap.Field) {
	if o.Logger != nil {
		o.Logger.Debug(msg, fields...)
	}
}
