package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/narratex/narratex/pkg/kb"
	"github.com/narratex/narratex/pkg/similarity"
	"github.com/narratex/narratex/pkg/types"
)

// DefaultTopK bounds the result list when the caller does not configure it.
const DefaultTopK = 5

// Orchestrator runs the strategy table against one knowledge base.
type Orchestrator struct {
	store      *kb.Store
	logger     *slog.Logger
	strategies map[string]strategyFunc
	cache      *expirable.LRU[string, []types.ScoredItem]
}

// Option configures an Orchestrator.
type Option func(*options)

type options struct {
	searcher  similarity.Searcher
	cacheSize int
	cacheTTL  time.Duration
}

// WithSearcher enables the vector search strategy.
func WithSearcher(s similarity.Searcher) Option {
	return func(o *options) { o.searcher = s }
}

// WithCache enables an expiring LRU over retrieval results. size <= 0
// disables caching.
func WithCache(size int, ttl time.Duration) Option {
	return func(o *options) {
		o.cacheSize = size
		o.cacheTTL = ttl
	}
}

// New creates an orchestrator over the given knowledge base.
func New(store *kb.Store, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	orch := &Orchestrator{
		store:  store,
		logger: logger,
		strategies: map[string]strategyFunc{
			StrategyVectorSearch:      vectorSearch(o.searcher),
			StrategyKeywordMatch:      keywordMatch(store),
			StrategyEntityIndex:       entityIndex(store),
			StrategyGraphQuery:        graphQuery(store),
			StrategyCoOccurrence:      coOccurrence(store),
			StrategyNarrativeSegments: narrativeSegments(store),
			StrategyHighImportance:    highImportance(store),
			StrategyCreativeAngles:    creativeAngles(store),
			StrategyTopicNetwork:      topicNetwork(store),
			StrategyQualityScan:       qualityScan(store),
		},
	}
	if o.cacheSize > 0 {
		orch.cache = expirable.NewLRU[string, []types.ScoredItem](o.cacheSize, nil, o.cacheTTL)
	}
	return orch
}

// Retrieve returns at most topK scored items for the structured query,
// ranked by descending score. topK <= 0 returns an empty list. Empty results
// mean insufficient content, never an error.
func (o *Orchestrator) Retrieve(ctx context.Context, q *types.StructuredQuery, topK int) ([]types.ScoredItem, error) {
	if topK <= 0 {
		return []types.ScoredItem{}, nil
	}

	key := cacheKey(q, topK)
	if o.cache != nil {
		if cached, ok := o.cache.Get(key); ok {
			return cloneItems(cached), nil
		}
	}

	started := time.Now()
	names := strategiesFor(q.Intent)

	// Fan out, one goroutine per strategy. Slots keep the table order so the
	// merge outcome does not depend on scheduling.
	slots := make([][]types.ScoredItem, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		fn, ok := o.strategies[name]
		if !ok {
			o.logger.Warn("unknown retrieval strategy", "strategy", name)
			continue
		}
		wg.Add(1)
		go func(i int, name string, fn strategyFunc) {
			defer wg.Done()
			items, err := fn(ctx, q)
			if err != nil {
				// Partial-result tolerance: a failing strategy is skipped.
				o.logger.Warn("retrieval strategy failed", "strategy", name, "error", err)
				return
			}
			slots[i] = items
		}(i, name, fn)
	}
	wg.Wait()

	var all []types.ScoredItem
	for _, items := range slots {
		all = append(all, items...)
	}

	merged := merge(all)
	filtered := o.applyFilters(merged, q.Filters)
	rank(filtered)

	if topK > len(filtered) {
		topK = len(filtered)
	}
	final := filtered[:topK]

	o.logger.Info("retrieval complete",
		"intent", string(q.Intent),
		"strategies", len(names),
		"candidates", len(all),
		"returned", len(final),
		"elapsed_ms", time.Since(started).Milliseconds(),
	)

	if o.cache != nil {
		o.cache.Add(key, cloneItems(final))
	}
	return final, nil
}

// merge deduplicates candidates by item id. The survivor keeps the highest
// score and records every contributing strategy.
func merge(all []types.ScoredItem) []types.ScoredItem {
	index := make(map[string]int, len(all))
	merged := make([]types.ScoredItem, 0, len(all))

	for _, item := range all {
		at, seen := index[item.ID]
		if !seen {
			index[item.ID] = len(merged)
			merged = append(merged, item)
			continue
		}

		existing := &merged[at]
		if item.Score > existing.Score {
			existing.Score = item.Score
			existing.Payload = item.Payload
		}
		for _, s := range item.Strategies {
			if !existing.MatchedBy(s) {
				existing.Strategies = append(existing.Strategies, s)
			}
		}
	}

	return merged
}

// applyFilters removes non-matching items: importance threshold, time-range
// overlap, then entity-type restriction. Filters compose by logical AND.
func (o *Orchestrator) applyFilters(items []types.ScoredItem, f types.QueryFilters) []types.ScoredItem {
	if f.Empty() {
		return items
	}

	out := items[:0]
	for _, item := range items {
		if f.ImportanceMin != nil && item.Importance < *f.ImportanceMin {
			continue
		}
		if f.TimeRange != nil {
			if span, ok := itemSpan(item.Payload); ok && !span.Overlaps(*f.TimeRange) {
				continue
			}
		}
		if len(f.EntityTypes) > 0 && item.Type == types.ItemRelation {
			if !o.relationSourceMatches(item.Payload, f.EntityTypes) {
				continue
			}
		}
		out = append(out, item)
	}
	return out
}

// itemSpan extracts the time span from a candidate payload. Items without an
// intrinsic span (relations, topics) report false and pass time filters.
func itemSpan(payload any) (types.TimeRange, bool) {
	switch p := payload.(type) {
	case *types.Atom:
		return p.Span(), true
	case *types.Segment:
		return p.Span(), true
	case *types.Clip:
		if p.EndMs > p.StartMs {
			return types.TimeRange{StartMs: p.StartMs, EndMs: p.EndMs}, true
		}
	}
	return types.TimeRange{}, false
}

// relationSourceMatches reports whether a relation's source entity has one
// of the allowed types.
func (o *Orchestrator) relationSourceMatches(payload any, allowed []string) bool {
	rp, ok := payload.(relationPayload)
	if !ok {
		return false
	}
	entity, err := o.store.EntityByName(rp.Source)
	if err != nil || entity == nil {
		return false
	}
	for _, t := range allowed {
		if entity.Type == t {
			return true
		}
	}
	return false
}

// rank orders by descending score, then descending importance, then id.
func rank(items []types.ScoredItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		if items[i].Importance != items[j].Importance {
			return items[i].Importance > items[j].Importance
		}
		return items[i].ID < items[j].ID
	})
}

func cacheKey(q *types.StructuredQuery, topK int) string {
	raw, err := json.Marshal(q)
	if err != nil {
		return fmt.Sprintf("%v|%d", q, topK)
	}
	return fmt.Sprintf("%s|%d", raw, topK)
}

func cloneItems(items []types.ScoredItem) []types.ScoredItem {
	out := make([]types.ScoredItem, len(items))
	copy(out, items)
	for i := range out {
		out[i].Strategies = append([]string(nil), items[i].Strategies...)
	}
	return out
}
