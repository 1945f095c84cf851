// Package model defines the core data structures for tokendash.
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Category identifies a logical group of dashboard metrics that is
// fetched and cached together.
type Category string

// Dashboard metric categories
const (
	CategoryNetwork     Category = "network"
	CategoryToken       Category = "token"
	CategoryStaking     Category = "staking"
	CategoryAssets      Category = "assets"
	CategoryBIMAnalysis Category = "bim_analysis"
)

// AllCategories returns every known category in a stable order.
func AllCategories() []Category {
	return []Category{
		CategoryNetwork,
		CategoryToken,
		CategoryStaking,
		CategoryAssets,
		CategoryBIMAnalysis,
	}
}

// ParseCategory converts a raw string into a known Category.
func ParseCategory(s string) (Category, error) {
	for _, c := range AllCategories() {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category: %q", s)
}

// FailureKind classifies an upstream call failure.
type FailureKind string

// Upstream failure kinds
const (
	FailureTimeout     FailureKind = "timeout"
	FailureUnreachable FailureKind = "unreachable"
	FailureMalformed   FailureKind = "malformed_response"
	FailureRateLimited FailureKind = "rate_limited"
)

// Retryable reports whether a failure of this kind is transient.
// A malformed response is a data-contract problem that retrying will
// not fix.
func (k FailureKind) Retryable() bool {
	switch k {
	case FailureTimeout, FailureUnreachable, FailureRateLimited:
		return true
	default:
		return false
	}
}

// Failure describes a single failed upstream call.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

// Error implements the error interface.
func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Result is the outcome of one upstream call: either a payload of
// coerced fields or a typed failure. Upstream clients never panic and
// never return Go errors past this type.
type Result struct {
	Payload map[string]any
	Err     *Failure
}

// Success wraps a payload in a successful Result.
func Success(payload map[string]any) Result {
	return Result{Payload: payload}
}

// Fail builds a failed Result with the given kind.
func Fail(kind FailureKind, format string, args ...any) Result {
	return Result{Err: &Failure{Kind: kind, Message: fmt.Sprintf(format, args...)}}
}

// OK reports whether the call succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Record sources
const (
	SourceLive     = "live"
	SourceFallback = "fallback"
	SourceCache    = "cache"
	SourceDefault  = "default"
)

// Record is one immutable snapshot of a category's metrics. A refresh
// produces a new Record; existing records are never mutated, so a
// Record may be shared freely across goroutines.
type Record struct {
	Fields    map[string]any
	FetchedAt time.Time
	Source    string
	Stale     bool
}

// NewRecord builds a record stamped with the current time.
func NewRecord(fields map[string]any, source string, stale bool) *Record {
	return &Record{
		Fields:    fields,
		FetchedAt: time.Now().UTC(),
		Source:    source,
		Stale:     stale,
	}
}

// Clone returns a shallow copy of the record with fresh field map
// ownership, overriding source and staleness.
func (r *Record) Clone(source string, stale bool) *Record {
	fields := make(map[string]any, len(r.Fields))
	for k, v := range r.Fields {
		fields[k] = v
	}
	return &Record{
		Fields:    fields,
		FetchedAt: r.FetchedAt,
		Source:    source,
		Stale:     stale,
	}
}

// Age reports how long ago the record was fetched.
func (r *Record) Age() time.Duration {
	return time.Since(r.FetchedAt)
}

// MarshalJSON flattens the field map and the freshness metadata into a
// single object, the shape the frontend indexes into.
func (r *Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Fields)+3)
	for k, v := range r.Fields {
		out[k] = v
	}
	out["fetched_at"] = r.FetchedAt.Format(time.RFC3339)
	out["source"] = r.Source
	out["stale"] = r.Stale
	return json.Marshal(out)
}

// Payload is the externally visible aggregate: one record per
// requested category. Every requested category is always present, even
// if only as a fallback-flagged record.
type Payload map[Category]*Record
