package core

import (
	"encoding/json"
	"time"
)

// QueryKind identifies what a free-form query was classified as.
type QueryKind string

const (
	QueryKindIP      QueryKind = "ip"
	QueryKindPrefix  QueryKind = "prefix"
	QueryKindASN     QueryKind = "asn"
	QueryKindUnknown QueryKind = "unknown"
)

// ClassifiedQuery is the result of classifying a raw query. Value holds the
// canonical address, prefix or ASN and is empty for QueryKindUnknown.
type ClassifiedQuery struct {
	Kind  QueryKind `json:"kind"`
	Value string    `json:"value,omitempty"`
}

// IP returns the canonical address when the query is an IP.
func (q ClassifiedQuery) IP() (string, bool) {
	return q.Value, q.Kind == QueryKindIP && q.Value != ""
}

// Prefix returns the canonical CIDR when the query is a prefix.
func (q ClassifiedQuery) Prefix() (string, bool) {
	return q.Value, q.Kind == QueryKindPrefix && q.Value != ""
}

// ASN returns the decimal ASN when the query is an ASN.
func (q ClassifiedQuery) ASN() (string, bool) {
	return q.Value, q.Kind == QueryKindASN && q.Value != ""
}

// ResultKind identifies the variant of a LookupResult.
type ResultKind string

const (
	ResultKindIP     ResultKind = "ip"
	ResultKindPrefix ResultKind = "prefix"
	ResultKindASN    ResultKind = "asn"
	ResultKindSearch ResultKind = "search"
	ResultKindError  ResultKind = "error"
)

// ErrorKind classifies why a lookup did not produce a full result.
type ErrorKind string

const (
	ErrorKindClientInput       ErrorKind = "client_input"
	ErrorKindRateLimitExceeded ErrorKind = "rate_limit_exceeded"
	ErrorKindUpstream          ErrorKind = "upstream"
	ErrorKindUnrecognizedQuery ErrorKind = "unrecognized_query"
)

// TrustLevel describes how far the payload can be relied upon.
type TrustLevel string

const (
	TrustUntrusted TrustLevel = "untrusted"
	TrustTrusted   TrustLevel = "trusted"
)

// Provider names used on evidence records.
const (
	ProviderRIPEstat   = "ripestat"
	ProviderRouteViews = "routeviews"
	ProviderRDAP       = "rdap"
)

// SourceEvidence records one upstream call. It is never modified after creation.
type SourceEvidence struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	URL               string    `json:"url"`
	FetchedAt         time.Time `json:"fetchedAt"`
	Status            int       `json:"status,omitempty"`
	OK                bool      `json:"ok"`
	UpstreamTimestamp string    `json:"upstreamTime,omitempty"`
	Cached            bool      `json:"cached"`
	CacheAgeMs        *int64    `json:"cacheAgeMs,omitempty"`
	PayloadDigest     string    `json:"payloadDigest,omitempty"`
	Error             string    `json:"error,omitempty"`
}

// RateLimitDecision is the outcome of consuming one request from a caller's window.
type RateLimitDecision struct {
	Allowed       bool      `json:"allowed"`
	Limit         int       `json:"limit"`
	Remaining     int       `json:"remaining"`
	WindowMs      int64     `json:"windowMs"`
	RetryAfterSec *int      `json:"retryAfterSec,omitempty"`
	ResetAt       time.Time `json:"resetAt"`
}

// LookupMeta carries per-request observability fields.
type LookupMeta struct {
	RequestID      string `json:"requestId"`
	DurationMs     int64  `json:"durationMs"`
	UpstreamErrors int    `json:"upstreamErrors"`
	CacheHits      int    `json:"cacheHits"`
}

// LookupResult is the envelope returned for every lookup, successful or not.
// Data holds one of IPData, PrefixData, ASNData or SearchData.
type LookupResult struct {
	Kind      ResultKind         `json:"kind"`
	Query     string             `json:"query"`
	FetchedAt time.Time          `json:"fetchedAt"`
	Trust     TrustLevel         `json:"trust"`
	RateLimit *RateLimitDecision `json:"rateLimit,omitempty"`
	Sources   []SourceEvidence   `json:"sources"`
	Partial   bool               `json:"partial"`
	Data      any                `json:"data,omitempty"`
	Error     string             `json:"error,omitempty"`
	ErrorKind ErrorKind          `json:"errorKind,omitempty"`
	Hint      string             `json:"hint,omitempty"`
	Notes     []string           `json:"notes,omitempty"`
	Meta      LookupMeta         `json:"meta"`

	// Status is the HTTP-equivalent status of the outcome.
	Status int `json:"-"`
}

// Failed reports whether the result carries an error.
func (r *LookupResult) Failed() bool {
	return r != nil && r.Error != ""
}

// IPData is the payload of an IP lookup.
type IPData struct {
	IP                 string             `json:"ip"`
	CoveringPrefix     *string            `json:"coveringPrefix"`
	ASNs               []string           `json:"asns"`
	NetworkInfo        json.RawMessage    `json:"networkInfo,omitempty"`
	CoveringPrefixInfo json.RawMessage    `json:"coveringPrefixInfo"`
	Routing            *PrefixSummary     `json:"routing,omitempty"`
	LocalASN           *LocalASN          `json:"localAsn,omitempty"`
	Registration       *RegistrationEntry `json:"registration,omitempty"`
}

// PrefixData is the payload of a prefix lookup.
type PrefixData struct {
	Prefix     string          `json:"prefix"`
	PrefixInfo json.RawMessage `json:"prefixInfo,omitempty"`
	PrefixSummary
}

// ASNData is the payload of an ASN lookup.
type ASNData struct {
	ASN          string             `json:"asn"`
	Prefixes     []string           `json:"prefixes"`
	PrefixCount  int                `json:"prefixCount"`
	PrefixSample []string           `json:"prefixSample"`
	Registration *RegistrationEntry `json:"registration,omitempty"`
}

// SearchData is the payload of a search-completion fallback.
type SearchData struct {
	Search      json.RawMessage    `json:"search,omitempty"`
	Suggestions []SearchSuggestion `json:"suggestions,omitempty"`
}

// PrefixSummary is the routing view extracted from a RouteViews prefix payload.
type PrefixSummary struct {
	OriginASN           string `json:"originAsn,omitempty"`
	RPKIState           string `json:"rpkiState,omitempty"`
	ReportingPeers      *int   `json:"reportingPeers,omitempty"`
	LatestPeerTimestamp string `json:"latestPeerTimestamp,omitempty"`
}

// SearchSuggestion is one pivot offered by search completion.
type SearchSuggestion struct {
	Category string `json:"category"`
	Value    string `json:"value"`
	Label    string `json:"label,omitempty"`
}

// LocalASN is the origin reported by an on-disk ASN database.
type LocalASN struct {
	Number       uint   `json:"number"`
	Organization string `json:"organization,omitempty"`
}

// RegistrationEntry summarizes an RDAP autnum or IP network object.
type RegistrationEntry struct {
	Handle  string `json:"handle,omitempty"`
	Name    string `json:"name,omitempty"`
	Type    string `json:"type,omitempty"`
	Country string `json:"country,omitempty"`
	Start   string `json:"start,omitempty"`
	End     string `json:"end,omitempty"`
	Parent  string `json:"parentHandle,omitempty"`
}
