package aggregate

import (
	"fmt"
	"math"

	"github.com/yourorg/tokendash/internal/model"
	"github.com/yourorg/tokendash/internal/validation"
)

// finalize computes the derived fields of a category in place, after
// live, fallback and default values have been merged. Derivations run
// on whatever values ended up in the record, so a fallback input yields
// a consistent derived output.
func finalize(cat model.Category, fields map[string]any) {
	switch cat {
	case model.CategoryNetwork:
		finalizeNetwork(fields)
	case model.CategoryToken:
		finalizeToken(fields)
	case model.CategoryStaking:
		finalizeStaking(fields)
	case model.CategoryBIMAnalysis:
		finalizeBIM(fields)
	}
}

func finalizeNetwork(fields map[string]any) {
	validators := asInt(fields["validator_count"])
	peers := asInt(fields["peer_count"])
	fields["health_score"] = HealthScore(validators, peers)

	if catchingUp, ok := fields["catching_up"].(bool); ok && catchingUp {
		fields["status"] = "syncing"
	} else {
		fields["status"] = "healthy"
	}
}

func finalizeToken(fields map[string]any) {
	price := asFloat(fields["price_usd"])
	change := asFloat(fields["price_change_24h"])
	marketCap := asFloat(fields["market_cap"])
	volume := asFloat(fields["volume_24h"])

	pct := PriceChangePercentage(price, change)
	fields["price_change_percentage"] = pct
	fields["trend"] = Trend(change)
	fields["volatility"] = Volatility(change, price)
	fields["liquidity_score"] = LiquidityScore(volume, marketCap)
	fields["is_bullish"] = change > 0 && pct > 2
}

func finalizeStaking(fields map[string]any) {
	commission := asFloat(fields["avg_commission"])
	fields["apy"] = StakingAPY(commission)
	fields["avg_commission_percent"] = round2(commission * 100)
	fields["total_validators"] = asInt(fields["validator_count"])
}

func finalizeBIM(fields map[string]any) {
	elements := asInt(fields["element_count"])
	fields["complexity_score"] = ComplexityScore(elements)
	if _, ok := fields["quality_score"]; !ok {
		fields["quality_score"] = 75.0
	}
	if _, ok := fields["sustainability_score"]; !ok {
		fields["sustainability_score"] = 70.0
	}
	if _, ok := fields["cost_efficiency_score"]; !ok {
		fields["cost_efficiency_score"] = 80.0
	}
	if _, ok := fields["analysis_text"]; !ok {
		fields["analysis_text"] = heuristicNarrative(fields)
	}
}

// HealthScore rates chain health from validator and peer counts,
// clamped to the 50..95 band.
func HealthScore(validators, peers int64) float64 {
	score := float64(validators*10 + peers*2)
	return math.Min(95, math.Max(50, score))
}

// StakingAPY estimates the yield left after the average validator
// commission, against a 12.5% base rate.
func StakingAPY(avgCommission float64) float64 {
	return round2((1 - avgCommission) * 12.5)
}

// ComplexityScore rates a building model by element count, clamped to
// the 20..100 band.
func ComplexityScore(elementCount int64) float64 {
	score := float64(elementCount)/100*10 + 50
	return math.Min(100, math.Max(20, score))
}

// Trend classifies the 24h price movement.
func Trend(change float64) string {
	switch {
	case change > 0:
		return "up"
	case change < 0:
		return "down"
	default:
		return "stable"
	}
}

// Volatility buckets the 24h move relative to the current price.
func Volatility(change, price float64) string {
	if price == 0 {
		return "unknown"
	}
	pct := math.Abs(change/price) * 100
	switch {
	case pct < 2:
		return "low"
	case pct < 5:
		return "medium"
	default:
		return "high"
	}
}

// LiquidityScore rates tradability from the volume to market cap ratio.
func LiquidityScore(volume, marketCap float64) float64 {
	if marketCap <= 0 {
		return 2
	}
	ratio := volume / marketCap
	switch {
	case ratio > 0.1:
		return 10
	case ratio > 0.05:
		return 8
	case ratio > 0.02:
		return 6
	case ratio > 0.01:
		return 4
	default:
		return 2
	}
}

// PriceChangePercentage expresses the absolute 24h move as a percent of
// the previous price.
func PriceChangePercentage(price, change float64) float64 {
	prev := price - change
	if prev <= 0 {
		return 0
	}
	return round2(change / prev * 100)
}

// heuristicNarrative builds the static analysis text used when no AI
// endpoint is available.
func heuristicNarrative(fields map[string]any) string {
	name, _ := fields["model_name"].(string)
	if name == "" {
		name = "unnamed"
	}
	elements := asInt(fields["element_count"])
	floors := asInt(fields["floor_count"])
	area := asFloat(fields["total_area_sqm"])
	return fmt.Sprintf(
		"Model %s contains %d elements across %d floors (%.1f sqm). "+
			"Automated scoring only; AI narrative analysis is unavailable.",
		name, elements, floors, area)
}

func asInt(v any) int64 {
	n, _ := validation.AsInt64(v)
	return n
}

func asFloat(v any) float64 {
	f, _ := validation.AsFloat(v)
	return f
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
