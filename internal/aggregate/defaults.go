package aggregate

import "github.com/yourorg/tokendash/internal/model"

// Defaults returns a fresh copy of the static fallback values for a
// category. They fill individual fields when a source fails with no
// usable previous record, and whole records when nothing was ever
// fetched. Values track the published testnet figures so an unreachable
// backend still renders a plausible dashboard.
func Defaults(cat model.Category) map[string]any {
	var src map[string]any
	switch cat {
	case model.CategoryNetwork:
		src = networkDefaults
	case model.CategoryToken:
		src = tokenDefaults
	case model.CategoryStaking:
		src = stakingDefaults
	case model.CategoryAssets:
		src = assetDefaults
	case model.CategoryBIMAnalysis:
		src = bimDefaults
	default:
		return map[string]any{}
	}

	out := make(map[string]any, len(src))
	for k, v := range src {
		if m, ok := v.(map[string]any); ok {
			inner := make(map[string]any, len(m))
			for ik, iv := range m {
				inner[ik] = iv
			}
			out[k] = inner
			continue
		}
		out[k] = v
	}
	return out
}

var networkDefaults = map[string]any{
	"block_height":       int64(0),
	"catching_up":        true,
	"latest_block_time":  "",
	"chain":              "ithaca-1",
	"moniker":            "unknown",
	"version":            "unknown",
	"peer_count":         int64(0),
	"validator_count":    int64(0),
	"total_voting_power": int64(0),
	"avg_commission":     0.05,
}

var tokenDefaults = map[string]any{
	"price_usd":          0.000125,
	"price_change_24h":   2.5,
	"market_cap":         1250000.0,
	"volume_24h":         45000.0,
	"circulating_supply": 0.0,
	"total_supply":       0.0,
}

// stakingDefaults carry a 10% commission so the derived apy lands on
// the published fallback figure of 11.25.
var stakingDefaults = map[string]any{
	"validator_count":    int64(15),
	"total_voting_power": int64(5000000),
	"avg_commission":     0.10,
}

var assetDefaults = map[string]any{
	"total_value_locked":      38126.50,
	"verified_assets":         24250000.0,
	"unverified_assets":       13876500.0,
	"assets_in_pipeline":      int64(47),
	"active_properties":       int64(23),
	"completed_tokenizations": int64(15),
	"hot_asset": map[string]any{
		"name":              "Idaka Project",
		"location":          "Miami, FL",
		"funded_percentage": 65.0,
		"funded_amount":     1625000.0,
		"target_amount":     2500000.0,
	},
}

var bimDefaults = map[string]any{
	"element_count":  int64(0),
	"floor_count":    int64(0),
	"total_area_sqm": 0.0,
	"model_name":     "unnamed",
	"schema_version": "IFC4",
}
