package upstream

import (
	"context"
	"fmt"
	"net/url"

	"github.com/yourorg/tokendash/internal/config"
	"github.com/yourorg/tokendash/internal/model"
	"github.com/yourorg/tokendash/internal/validation"
)

// ChainRPC wraps the Tendermint RPC endpoints of the chain the
// platform settles on. Responses are coerced into flat typed maps at
// this boundary; raw RPC shapes never leave the package.
type ChainRPC struct {
	baseURL string
	chainID string
	http    *HTTPClient
}

// NewChainRPC creates a chain RPC client from configuration.
func NewChainRPC(cfg config.Config) *ChainRPC {
	return &ChainRPC{
		baseURL: cfg.RPCURL,
		chainID: cfg.ChainID,
		http:    NewHTTPClient(cfg.RequestTimeout),
	}
}

// statusSchema is the contract for coerced /status payloads.
var statusSchema = validation.Schema{
	{Name: "block_height", Kind: validation.KindInt, Required: true},
	{Name: "catching_up", Kind: validation.KindBool, Default: false},
	{Name: "latest_block_time", Kind: validation.KindString, Default: ""},
	{Name: "chain", Kind: validation.KindString, Default: ""},
	{Name: "moniker", Kind: validation.KindString, Default: "unknown"},
	{Name: "version", Kind: validation.KindString, Default: "unknown"},
}

// Status fetches GET /status and extracts sync and node info.
func (c *ChainRPC) Status(ctx context.Context) model.Result {
	res := c.http.GetJSON(ctx, c.baseURL, "/status", nil)
	if !res.OK() {
		return res
	}

	syncInfo, ok := validation.Dig(res.Payload, "result", "sync_info")
	if !ok {
		return malformed("chain status", fmt.Errorf("result.sync_info missing"))
	}
	sync, _ := syncInfo.(map[string]any)

	raw := map[string]any{
		"block_height":      sync["latest_block_height"],
		"catching_up":       sync["catching_up"],
		"latest_block_time": sync["latest_block_time"],
	}
	if nodeInfo, ok := validation.Dig(res.Payload, "result", "node_info"); ok {
		if node, ok := nodeInfo.(map[string]any); ok {
			raw["chain"] = node["network"]
			raw["moniker"] = node["moniker"]
			raw["version"] = node["version"]
		}
	}

	fields, err := validation.Coerce(raw, statusSchema)
	if err != nil {
		return malformed("chain status", err)
	}
	if fields["chain"] == "" {
		fields["chain"] = c.chainID
	}
	return model.Success(fields)
}

// NetInfo fetches GET /net_info and extracts the peer count.
func (c *ChainRPC) NetInfo(ctx context.Context) model.Result {
	res := c.http.GetJSON(ctx, c.baseURL, "/net_info", nil)
	if !res.OK() {
		return res
	}

	nPeers, ok := validation.Dig(res.Payload, "result", "n_peers")
	if !ok {
		return malformed("net info", fmt.Errorf("result.n_peers missing"))
	}
	count, ok := validation.AsInt64(nPeers)
	if !ok {
		return malformed("net info", fmt.Errorf("result.n_peers not numeric: %v", nPeers))
	}

	return model.Success(map[string]any{"peer_count": count})
}

// Validators fetches GET /validators and summarizes the active set.
// Commission is not part of the Tendermint validator shape on every
// network; absent rates fall back to 5% per validator, the figure the
// platform has always assumed for estimation.
func (c *ChainRPC) Validators(ctx context.Context) model.Result {
	query := url.Values{}
	query.Set("page", "1")
	query.Set("per_page", "100")

	res := c.http.GetJSON(ctx, c.baseURL, "/validators", query)
	if !res.OK() {
		return res
	}

	rawList, ok := validation.Dig(res.Payload, "result", "validators")
	if !ok {
		return malformed("validators", fmt.Errorf("result.validators missing"))
	}
	list, ok := rawList.([]any)
	if !ok {
		return malformed("validators", fmt.Errorf("result.validators not a list"))
	}

	var totalPower int64
	var commissionSum float64
	for _, entry := range list {
		v, ok := entry.(map[string]any)
		if !ok {
			return malformed("validators", fmt.Errorf("validator entry not an object"))
		}
		if power, ok := validation.AsInt64(v["voting_power"]); ok {
			totalPower += power
		}
		commissionSum += validatorCommission(v)
	}

	avgCommission := 0.0
	if len(list) > 0 {
		avgCommission = commissionSum / float64(len(list))
	}

	return model.Success(map[string]any{
		"validator_count":    int64(len(list)),
		"total_voting_power": totalPower,
		"avg_commission":     avgCommission,
	})
}

// validatorCommission digs the commission rate out of one validator
// entry, defaulting when the network does not expose it.
func validatorCommission(v map[string]any) float64 {
	if raw, ok := validation.Dig(v, "commission", "commission_rates", "rate"); ok {
		if rate, ok := validation.AsFloat(raw); ok {
			return rate
		}
	}
	return 0.05
}
