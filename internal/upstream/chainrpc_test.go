package upstream

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/yourorg/tokendash/internal/config"
	"github.com/yourorg/tokendash/internal/model"
)

func chainClient(srv *httptest.Server) *ChainRPC {
	return NewChainRPC(config.Config{
		RPCURL:         srv.URL,
		ChainID:        "ithaca-1",
		RequestTimeout: time.Second,
	})
}

func TestStatusParsesTendermintShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Tendermint encodes numbers as strings.
		w.Write([]byte(`{
			"result": {
				"sync_info": {
					"latest_block_height": "123456",
					"latest_block_time": "2026-08-29T10:00:00Z",
					"catching_up": false
				},
				"node_info": {
					"network": "ithaca-1",
					"moniker": "node-1",
					"version": "0.38.0"
				}
			}
		}`))
	}))
	defer srv.Close()

	res := chainClient(srv).Status(context.Background())
	if !res.OK() {
		t.Fatalf("expected success, got %v", res.Err)
	}

	if got := res.Payload["block_height"]; got != int64(123456) {
		t.Errorf("block_height = %v, want 123456", got)
	}
	if got := res.Payload["catching_up"]; got != false {
		t.Errorf("catching_up = %v, want false", got)
	}
	if got := res.Payload["chain"]; got != "ithaca-1" {
		t.Errorf("chain = %v, want ithaca-1", got)
	}
}

func TestStatusMissingSyncInfoIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result": {}}`))
	}))
	defer srv.Close()

	res := chainClient(srv).Status(context.Background())
	if res.OK() {
		t.Fatal("expected failure")
	}
	if res.Err.Kind != model.FailureMalformed {
		t.Errorf("kind = %s, want malformed_response", res.Err.Kind)
	}
}

func TestNetInfoParsesPeerCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result": {"n_peers": "7"}}`))
	}))
	defer srv.Close()

	res := chainClient(srv).NetInfo(context.Background())
	if !res.OK() {
		t.Fatalf("expected success, got %v", res.Err)
	}
	if got := res.Payload["peer_count"]; got != int64(7) {
		t.Errorf("peer_count = %v, want 7", got)
	}
}

func TestValidatorsSummarizesActiveSet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"result": {
				"validators": [
					{"voting_power": "1000", "commission": {"commission_rates": {"rate": "0.10"}}},
					{"voting_power": "2000", "commission": {"commission_rates": {"rate": "0.20"}}},
					{"voting_power": "500"}
				]
			}
		}`))
	}))
	defer srv.Close()

	res := chainClient(srv).Validators(context.Background())
	if !res.OK() {
		t.Fatalf("expected success, got %v", res.Err)
	}

	if got := res.Payload["validator_count"]; got != int64(3) {
		t.Errorf("validator_count = %v, want 3", got)
	}
	if got := res.Payload["total_voting_power"]; got != int64(3500) {
		t.Errorf("total_voting_power = %v, want 3500", got)
	}
	// The third validator has no commission field and falls back to 5%.
	// Summation order differs from the constant-folded expression, so
	// compare with a tolerance.
	want := (0.10 + 0.20 + 0.05) / 3
	got, ok := res.Payload["avg_commission"].(float64)
	if !ok || math.Abs(got-want) > 1e-9 {
		t.Errorf("avg_commission = %v, want %v", res.Payload["avg_commission"], want)
	}
}

func TestValidatorsEmptySet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result": {"validators": []}}`))
	}))
	defer srv.Close()

	res := chainClient(srv).Validators(context.Background())
	if !res.OK() {
		t.Fatalf("expected success, got %v", res.Err)
	}
	if got := res.Payload["avg_commission"]; got != 0.0 {
		t.Errorf("avg_commission = %v, want 0 for empty set", got)
	}
}
