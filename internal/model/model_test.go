package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseCategory(t *testing.T) {
	for _, cat := range AllCategories() {
		got, err := ParseCategory(string(cat))
		if err != nil || got != cat {
			t.Errorf("ParseCategory(%q) = (%v, %v)", cat, got, err)
		}
	}

	if _, err := ParseCategory("weather"); err == nil {
		t.Error("expected error for unknown category")
	}
}

func TestFailureKindRetryable(t *testing.T) {
	tests := []struct {
		kind FailureKind
		want bool
	}{
		{FailureTimeout, true},
		{FailureUnreachable, true},
		{FailureRateLimited, true},
		{FailureMalformed, false},
	}

	for _, tt := range tests {
		if got := tt.kind.Retryable(); got != tt.want {
			t.Errorf("%s.Retryable() = %v, want %v", tt.kind, got, tt.want)
		}
	}
}

func TestRecordMarshalFlattensFields(t *testing.T) {
	rec := NewRecord(map[string]any{"block_height": int64(100)}, SourceLive, false)

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if out["block_height"] != float64(100) {
		t.Errorf("block_height = %v, want 100 at the top level", out["block_height"])
	}
	if out["source"] != "live" {
		t.Errorf("source = %v, want live", out["source"])
	}
	if out["stale"] != false {
		t.Errorf("stale = %v, want false", out["stale"])
	}
	if _, ok := out["fetched_at"]; !ok {
		t.Error("fetched_at missing from marshaled record")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	orig := NewRecord(map[string]any{"price_usd": 0.5}, SourceLive, false)
	clone := orig.Clone(SourceCache, true)

	clone.Fields["price_usd"] = 1.0

	if orig.Fields["price_usd"] != 0.5 {
		t.Error("mutating a clone must not affect the original")
	}
	if clone.Source != SourceCache || !clone.Stale {
		t.Errorf("clone = (%s, %v), want (cache, true)", clone.Source, clone.Stale)
	}
	if !clone.FetchedAt.Equal(orig.FetchedAt) {
		t.Error("clone must keep the original fetch time")
	}
}

func TestRecordAge(t *testing.T) {
	rec := &Record{FetchedAt: time.Now().Add(-time.Minute)}
	if age := rec.Age(); age < 59*time.Second || age > 2*time.Minute {
		t.Errorf("Age() = %v, want about a minute", age)
	}
}
