package main

import (
	"testing"

	"github.com/yourorg/tokendash/internal/model"
)

func TestParseCategories(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []model.Category
		wantErr bool
	}{
		{"empty selects all", "", nil, false},
		{"single", "network", []model.Category{model.CategoryNetwork}, false},
		{"multiple with spaces", "network, token", []model.Category{model.CategoryNetwork, model.CategoryToken}, false},
		{"trailing comma", "assets,", []model.Category{model.CategoryAssets}, false},
		{"unknown category", "network,weather", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCategories(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d categories, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("category %d = %s, want %s", i, got[i], tt.want[i])
				}
			}
		})
	}
}
