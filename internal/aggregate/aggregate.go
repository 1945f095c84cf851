// Package aggregate orchestrates the upstream calls that compose each
// dashboard category, merges their results into canonical metric
// records, and applies the fallback policy when sources fail.
package aggregate

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/tokendash/internal/circuitbreaker"
	"github.com/yourorg/tokendash/internal/config"
	"github.com/yourorg/tokendash/internal/model"
	"github.com/yourorg/tokendash/internal/retry"
)

// ChainSource provides the chain RPC endpoints a refresh draws from.
type ChainSource interface {
	Status(ctx context.Context) model.Result
	NetInfo(ctx context.Context) model.Result
	Validators(ctx context.Context) model.Result
}

// TokenSource quotes the platform token.
type TokenSource interface {
	Price(ctx context.Context) model.Result
}

// AssetSource reports registry statistics for tokenized properties.
type AssetSource interface {
	Stats(ctx context.Context) model.Result
}

// BIMSource summarizes the active building model.
type BIMSource interface {
	ModelSummary(ctx context.Context) model.Result
}

// NarrativeSource produces analyst text for a building summary.
type NarrativeSource interface {
	Analyze(ctx context.Context, summary map[string]any) model.Result
}

// Sources bundles the upstream clients an Aggregator composes.
// Narrative may be nil when no AI endpoint is configured.
type Sources struct {
	Chain     ChainSource
	Token     TokenSource
	Assets    AssetSource
	BIM       BIMSource
	Narrative NarrativeSource
}

// Aggregator builds one metric record per category out of the
// upstream sources. It holds no record state of its own: previous
// records are supplied by the cache layer on each refresh.
type Aggregator struct {
	src      Sources
	policy   retry.Policy
	window   time.Duration
	timeout  time.Duration
	breakers *circuitbreaker.Set

	// onFailure is invoked for every settled upstream failure, after
	// retries; used for metrics export
	onFailure func(source string, kind model.FailureKind)
}

// NewWithSources creates an aggregator over the given sources.
func NewWithSources(src Sources, cfg config.Config) *Aggregator {
	policy := retry.Policy{
		MaxAttempts: cfg.RetryMaxAttempts,
		BackoffBase: cfg.RetryBackoffBase,
		MaxDelay:    cfg.RetryMaxDelay,
	}
	if policy.MaxAttempts == 0 {
		policy = retry.Default()
	}
	return &Aggregator{
		src:      src,
		policy:   policy,
		window:   cfg.FallbackWindow,
		timeout:  cfg.RequestTimeout,
		breakers: circuitbreaker.NewSet(cfg.BreakerFailureThreshold, cfg.BreakerCooldown),
	}
}

// WithFailureHook registers a callback fired once per settled upstream
// failure and returns the aggregator.
func (a *Aggregator) WithFailureHook(hook func(source string, kind model.FailureKind)) *Aggregator {
	a.onFailure = hook
	return a
}

// BreakerStates snapshots the per-source breaker states for /status.
func (a *Aggregator) BreakerStates() map[string]string {
	return a.breakers.States()
}

// task is one upstream call inside a category plan, together with the
// field keys it owns in the merged record.
type task struct {
	source string
	keys   []string
	call   func(context.Context) model.Result
}

// plan returns the upstream calls composing a category. All tasks in
// one plan are independent and issued concurrently.
func (a *Aggregator) plan(cat model.Category) []task {
	switch cat {
	case model.CategoryNetwork:
		return []task{
			{
				source: "chain_status",
				keys:   []string{"block_height", "catching_up", "latest_block_time", "chain", "moniker", "version"},
				call:   a.src.Chain.Status,
			},
			{
				source: "chain_net_info",
				keys:   []string{"peer_count"},
				call:   a.src.Chain.NetInfo,
			},
			{
				source: "chain_validators",
				keys:   []string{"validator_count", "total_voting_power", "avg_commission"},
				call:   a.src.Chain.Validators,
			},
		}
	case model.CategoryToken:
		return []task{
			{
				source: "token_price",
				keys:   []string{"price_usd", "price_change_24h", "market_cap", "volume_24h", "circulating_supply", "total_supply"},
				call:   a.src.Token.Price,
			},
		}
	case model.CategoryStaking:
		return []task{
			{
				source: "chain_validators",
				keys:   []string{"validator_count", "total_voting_power", "avg_commission"},
				call:   a.src.Chain.Validators,
			},
		}
	case model.CategoryAssets:
		return []task{
			{
				source: "asset_stats",
				keys:   []string{"total_value_locked", "verified_assets", "unverified_assets", "assets_in_pipeline", "active_properties", "completed_tokenizations", "hot_asset"},
				call:   a.src.Assets.Stats,
			},
		}
	default:
		return nil
	}
}

// Refresh fetches a category from its upstream sources and merges the
// results into a new record. prev is the last cached record for the
// category, or nil; it is only read, never mutated.
func (a *Aggregator) Refresh(ctx context.Context, cat model.Category, prev *model.Record) *model.Record {
	if cat == model.CategoryBIMAnalysis {
		return a.refreshBIM(ctx, prev)
	}

	tasks := a.plan(cat)
	results := a.runAll(ctx, tasks)
	return a.merge(cat, tasks, results, prev)
}

// runAll fans the plan out, one goroutine per task, and joins all
// results before returning. No merge happens while calls are still in
// flight.
func (a *Aggregator) runAll(ctx context.Context, tasks []task) []model.Result {
	results := make([]model.Result, len(tasks))

	var wg sync.WaitGroup
	for i, t := range tasks {
		wg.Add(1)
		go func(i int, t task) {
			defer wg.Done()
			results[i] = a.runTask(ctx, t)
		}(i, t)
	}
	wg.Wait()

	return results
}

// runTask executes one upstream call through its breaker and the
// retry policy.
func (a *Aggregator) runTask(ctx context.Context, t task) model.Result {
	breaker := a.breakers.For(t.source)
	if !breaker.Allow() {
		res := model.Fail(model.FailureUnreachable, "breaker open for %s", t.source)
		a.reportFailure(t.source, res)
		return res
	}

	res := a.policy.Execute(ctx, t.call)
	if res.OK() {
		breaker.RecordSuccess()
	} else {
		breaker.RecordFailure(res.Err.Message)
		a.reportFailure(t.source, res)
	}
	return res
}

func (a *Aggregator) reportFailure(source string, res model.Result) {
	logrus.WithFields(logrus.Fields{
		"source": source,
		"kind":   res.Err.Kind,
	}).Warn("Upstream source failed")
	if a.onFailure != nil {
		a.onFailure(source, res.Err.Kind)
	}
}

// merge combines settled task results into a record. Live values win;
// fields of failed tasks come from the previous record when it is
// inside the fallback window, then from static defaults. The whole
// record is marked stale as soon as one field is fallback-sourced.
func (a *Aggregator) merge(cat model.Category, tasks []task, results []model.Result, prev *model.Record) *model.Record {
	fields := make(map[string]any)
	var failed []task
	for i, t := range tasks {
		if results[i].OK() {
			for k, v := range results[i].Payload {
				fields[k] = v
			}
		} else {
			failed = append(failed, t)
		}
	}

	if len(failed) == len(tasks) {
		if prev != nil {
			return prev.Clone(model.SourceCache, true)
		}
		defaults := Defaults(cat)
		finalize(cat, defaults)
		return model.NewRecord(defaults, model.SourceDefault, true)
	}

	prevUsable := prev != nil && prev.Age() <= a.window
	defaults := Defaults(cat)
	for _, t := range failed {
		for _, k := range t.keys {
			if prevUsable {
				if v, ok := prev.Fields[k]; ok {
					fields[k] = v
					continue
				}
			}
			fields[k] = defaults[k]
		}
	}

	finalize(cat, fields)

	if len(failed) == 0 {
		return model.NewRecord(fields, model.SourceLive, false)
	}
	return model.NewRecord(fields, model.SourceFallback, true)
}

// refreshBIM handles the bim_analysis category. It differs from the
// fan-out categories: the narrative call depends on the model summary,
// so the two phases run in order.
func (a *Aggregator) refreshBIM(ctx context.Context, prev *model.Record) *model.Record {
	summary := a.runTask(ctx, task{
		source: "bim_summary",
		call:   a.src.BIM.ModelSummary,
	})

	if !summary.OK() {
		if prev != nil {
			return prev.Clone(model.SourceCache, true)
		}
		defaults := Defaults(model.CategoryBIMAnalysis)
		finalize(model.CategoryBIMAnalysis, defaults)
		return model.NewRecord(defaults, model.SourceDefault, true)
	}

	fields := make(map[string]any, len(summary.Payload)+6)
	for k, v := range summary.Payload {
		fields[k] = v
	}
	finalize(model.CategoryBIMAnalysis, fields)

	if a.src.Narrative != nil {
		narrative := a.runTask(ctx, task{
			source: "ai_narrative",
			call: func(ctx context.Context) model.Result {
				cctx, cancel := context.WithTimeout(ctx, a.timeout)
				defer cancel()
				return a.src.Narrative.Analyze(cctx, summary.Payload)
			},
		})
		if narrative.OK() {
			fields["analysis_text"] = narrative.Payload["analysis_text"]
			return model.NewRecord(fields, model.SourceLive, false)
		}
	}

	// Heuristic text stands in whenever the AI endpoint is missing or
	// down; the record is flagged so the frontend can show it as such.
	return model.NewRecord(fields, model.SourceFallback, true)
}
