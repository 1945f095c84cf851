package upstream

import (
	"context"
	"fmt"

	"github.com/yourorg/tokendash/internal/config"
	"github.com/yourorg/tokendash/internal/model"
	"github.com/yourorg/tokendash/internal/validation"
)

// AssetRegistry wraps the property registry API that tracks tokenized
// real-estate holdings and the funding pipeline.
type AssetRegistry struct {
	baseURL string
	http    *HTTPClient
}

// NewAssetRegistry creates an asset registry client from configuration.
func NewAssetRegistry(cfg config.Config) *AssetRegistry {
	return &AssetRegistry{
		baseURL: cfg.AssetAPIURL,
		http:    NewHTTPClient(cfg.RequestTimeout),
	}
}

var assetSchema = validation.Schema{
	{Name: "total_value_locked", Kind: validation.KindFloat, Required: true},
	{Name: "verified_assets", Kind: validation.KindFloat, Default: 0.0},
	{Name: "unverified_assets", Kind: validation.KindFloat, Default: 0.0},
	{Name: "assets_in_pipeline", Kind: validation.KindInt, Default: int64(0)},
	{Name: "active_properties", Kind: validation.KindInt, Default: int64(0)},
	{Name: "completed_tokenizations", Kind: validation.KindInt, Default: int64(0)},
}

var hotAssetSchema = validation.Schema{
	{Name: "name", Kind: validation.KindString, Required: true},
	{Name: "location", Kind: validation.KindString, Default: ""},
	{Name: "funded_percentage", Kind: validation.KindFloat, Default: 0.0},
	{Name: "funded_amount", Kind: validation.KindFloat, Default: 0.0},
	{Name: "target_amount", Kind: validation.KindFloat, Default: 0.0},
}

// Stats fetches the registry statistics and the featured hot asset.
func (c *AssetRegistry) Stats(ctx context.Context) model.Result {
	res := c.http.GetJSON(ctx, c.baseURL, "/v1/assets/stats", nil)
	if !res.OK() {
		return res
	}

	raw, ok := validation.Dig(res.Payload, "data")
	if !ok {
		raw = any(res.Payload)
	}
	stats, ok := raw.(map[string]any)
	if !ok {
		return malformed("asset stats", fmt.Errorf("stats is not an object"))
	}

	fields, err := validation.Coerce(stats, assetSchema)
	if err != nil {
		return malformed("asset stats", err)
	}

	// The hot asset block is optional; a registry without a featured
	// property is still a valid response.
	if rawHot, ok := stats["hot_asset"].(map[string]any); ok {
		if hot, err := validation.Coerce(rawHot, hotAssetSchema); err == nil {
			fields["hot_asset"] = hot
		}
	}

	return model.Success(fields)
}
