package assemble

import (
	"context"
	"testing"
	"time"

	"github.com/yourorg/tokendash/internal/cache"
	"github.com/yourorg/tokendash/internal/config"
	"github.com/yourorg/tokendash/internal/model"
)

// staticRefresher serves canned records, failing categories as stale
// defaults the way the aggregator would.
type staticRefresher struct {
	failing map[model.Category]bool
}

func (r *staticRefresher) Refresh(ctx context.Context, cat model.Category, prev *model.Record) *model.Record {
	if r.failing[cat] {
		return model.NewRecord(map[string]any{"category": string(cat)}, model.SourceDefault, true)
	}
	return model.NewRecord(map[string]any{"category": string(cat)}, model.SourceLive, false)
}

func newAssembler(failing map[model.Category]bool) *Assembler {
	cfg := config.Config{
		NetworkTTL: time.Minute,
		TokenTTL:   time.Minute,
		StakingTTL: time.Minute,
		AssetsTTL:  time.Minute,
	}
	return New(cache.New(&staticRefresher{failing: failing}, cfg))
}

func TestAssembleIncludesEveryRequestedCategory(t *testing.T) {
	a := newAssembler(nil)

	cats := []model.Category{model.CategoryNetwork, model.CategoryToken, model.CategoryAssets}
	payload := a.Assemble(context.Background(), cats)

	if len(payload) != 3 {
		t.Fatalf("expected 3 categories, got %d", len(payload))
	}
	for _, cat := range cats {
		if payload[cat] == nil {
			t.Errorf("category %s missing from payload", cat)
		}
	}
}

func TestAssembleEmptyRequestYieldsAllCategories(t *testing.T) {
	a := newAssembler(nil)

	payload := a.Assemble(context.Background(), nil)

	if len(payload) != len(model.AllCategories()) {
		t.Fatalf("expected %d categories, got %d", len(model.AllCategories()), len(payload))
	}
	for _, cat := range model.AllCategories() {
		if payload[cat] == nil {
			t.Errorf("category %s missing from payload", cat)
		}
	}
}

func TestAssembleCollapsesDuplicates(t *testing.T) {
	a := newAssembler(nil)

	payload := a.Assemble(context.Background(), []model.Category{
		model.CategoryToken, model.CategoryToken, model.CategoryToken,
	})

	if len(payload) != 1 {
		t.Fatalf("expected 1 category, got %d", len(payload))
	}
	if payload[model.CategoryToken] == nil {
		t.Fatal("token category missing")
	}
}

func TestAssembleFillsMissingCanonicalKeys(t *testing.T) {
	a := newAssembler(nil)

	payload := a.Assemble(context.Background(), []model.Category{model.CategoryToken})

	token := payload[model.CategoryToken]
	if token.Fields["category"] != "token" {
		t.Error("record fields from the refresher must be kept")
	}
	if token.Fields["price_usd"] != 0.000125 {
		t.Errorf("price_usd = %v, want canonical key filled from defaults", token.Fields["price_usd"])
	}
	if token.Fields["market_cap"] != 1250000.0 {
		t.Errorf("market_cap = %v, want canonical key filled from defaults", token.Fields["market_cap"])
	}
}

func TestAssembleKeepsDegradedCategoriesPresent(t *testing.T) {
	a := newAssembler(map[model.Category]bool{model.CategoryToken: true})

	payload := a.Assemble(context.Background(), []model.Category{
		model.CategoryNetwork, model.CategoryToken,
	})

	token := payload[model.CategoryToken]
	if token == nil {
		t.Fatal("degraded category must still be present")
	}
	if !token.Stale {
		t.Error("degraded category must be stale")
	}
	if network := payload[model.CategoryNetwork]; network.Stale {
		t.Error("healthy category must not be stale")
	}
}
