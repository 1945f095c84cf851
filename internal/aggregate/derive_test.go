package aggregate

import "testing"

func TestHealthScore(t *testing.T) {
	tests := []struct {
		name       string
		validators int64
		peers      int64
		want       float64
	}{
		{"floor at 50", 0, 0, 50},
		{"floor for tiny network", 2, 5, 50},
		{"mid band", 5, 10, 70},
		{"ceiling at 95", 10, 5, 95},
		{"large network clamped", 100, 200, 95},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HealthScore(tt.validators, tt.peers); got != tt.want {
				t.Errorf("HealthScore(%d, %d) = %v, want %v", tt.validators, tt.peers, got, tt.want)
			}
		})
	}
}

func TestStakingAPY(t *testing.T) {
	tests := []struct {
		commission float64
		want       float64
	}{
		{0.0, 12.5},
		{0.05, 11.88},
		{0.10, 11.25},
		{1.0, 0.0},
	}

	for _, tt := range tests {
		if got := StakingAPY(tt.commission); got != tt.want {
			t.Errorf("StakingAPY(%v) = %v, want %v", tt.commission, got, tt.want)
		}
	}
}

func TestComplexityScore(t *testing.T) {
	tests := []struct {
		elements int64
		want     float64
	}{
		{0, 50},
		{100, 60},
		{300, 80},
		{500, 100},
		{50000, 100},
	}

	for _, tt := range tests {
		if got := ComplexityScore(tt.elements); got != tt.want {
			t.Errorf("ComplexityScore(%d) = %v, want %v", tt.elements, got, tt.want)
		}
	}
}

func TestTrend(t *testing.T) {
	tests := []struct {
		change float64
		want   string
	}{
		{2.5, "up"},
		{-0.1, "down"},
		{0, "stable"},
	}

	for _, tt := range tests {
		if got := Trend(tt.change); got != tt.want {
			t.Errorf("Trend(%v) = %s, want %s", tt.change, got, tt.want)
		}
	}
}

func TestVolatility(t *testing.T) {
	tests := []struct {
		name   string
		change float64
		price  float64
		want   string
	}{
		{"zero price", 1, 0, "unknown"},
		{"small move", 0.01, 1, "low"},
		{"negative small move", -0.015, 1, "low"},
		{"medium move", 0.03, 1, "medium"},
		{"large move", 0.08, 1, "high"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Volatility(tt.change, tt.price); got != tt.want {
				t.Errorf("Volatility(%v, %v) = %s, want %s", tt.change, tt.price, got, tt.want)
			}
		})
	}
}

func TestLiquidityScore(t *testing.T) {
	tests := []struct {
		volume    float64
		marketCap float64
		want      float64
	}{
		{200, 1000, 10},
		{80, 1000, 8},
		{30, 1000, 6},
		{15, 1000, 4},
		{5, 1000, 2},
		{100, 0, 2},
	}

	for _, tt := range tests {
		if got := LiquidityScore(tt.volume, tt.marketCap); got != tt.want {
			t.Errorf("LiquidityScore(%v, %v) = %v, want %v", tt.volume, tt.marketCap, got, tt.want)
		}
	}
}

func TestPriceChangePercentage(t *testing.T) {
	tests := []struct {
		name   string
		price  float64
		change float64
		want   float64
	}{
		{"five percent gain", 1.0, 0.05, 5.26},
		{"no change", 1.0, 0, 0},
		{"zero price", 0, 0.05, 0},
		{"change equals price", 0.05, 0.05, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PriceChangePercentage(tt.price, tt.change); got != tt.want {
				t.Errorf("PriceChangePercentage(%v, %v) = %v, want %v", tt.price, tt.change, got, tt.want)
			}
		})
	}
}

func TestDefaultsReturnsCopies(t *testing.T) {
	a := Defaults("assets")
	a["total_value_locked"] = 0.0
	if hot, ok := a["hot_asset"].(map[string]any); ok {
		hot["name"] = "mutated"
	}

	b := Defaults("assets")
	if b["total_value_locked"] != 38126.50 {
		t.Error("mutating a Defaults copy must not affect later calls")
	}
	if hot := b["hot_asset"].(map[string]any); hot["name"] != "Idaka Project" {
		t.Error("nested default maps must be copied too")
	}
}
