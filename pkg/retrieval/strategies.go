package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/narratex/narratex/pkg/kb"
	"github.com/narratex/narratex/pkg/similarity"
	"github.com/narratex/narratex/pkg/types"
)

// Strategy names. The table below maps intents onto ordered strategy lists.
const (
	StrategyVectorSearch      = "vector_search"
	StrategyKeywordMatch      = "keyword_match"
	StrategyEntityIndex       = "entity_index"
	StrategyGraphQuery        = "graph_query"
	StrategyCoOccurrence      = "co_occurrence"
	StrategyNarrativeSegments = "narrative_segments"
	StrategyHighImportance    = "high_importance"
	StrategyCreativeAngles    = "creative_angles"
	StrategyTopicNetwork      = "topic_network"
	StrategyQualityScan       = "quality_scan"
)

// strategyTable maps each intent to its ordered strategy list. Unmapped
// intents fall back to similarity search alone.
var strategyTable = map[types.Intent][]string{
	types.IntentSemanticSearch: {StrategyVectorSearch, StrategyKeywordMatch},
	types.IntentEntitySearch:   {StrategyEntityIndex, StrategyGraphQuery},
	types.IntentRelationSearch: {StrategyGraphQuery, StrategyCoOccurrence},
	types.IntentSummary:        {StrategyNarrativeSegments, StrategyHighImportance},
	types.IntentRecommendClip:  {StrategyCreativeAngles},
	types.IntentAnalyzeTopic:   {StrategyTopicNetwork, StrategyKeywordMatch},
	types.IntentAnalyzeQuality: {StrategyQualityScan},
}

var fallbackStrategies = []string{StrategyVectorSearch}

// strategiesFor returns the strategy list for an intent.
func strategiesFor(intent types.Intent) []string {
	if s, ok := strategyTable[intent]; ok {
		return s
	}
	return fallbackStrategies
}

// Strategy scores and per-source candidate limits.
const (
	entityMatchScore  = 0.75
	keywordMatchScore = 0.6
	entityIndexScore  = 0.85
	coOccurrenceScore = 0.7
	topicMatchScore   = 0.8
	topicListScore    = 0.5

	perEntityLimit   = 10
	perKeywordLimit  = 5
	keywordCap       = 3
	relationLimit    = 5
	importanceCutoff = 0.7
	importanceLimit  = 10
	clipLimit        = 10
	qualityLimit     = 10
	vectorLimit      = 10
)

// strategyFunc executes one retrieval strategy.
type strategyFunc func(ctx context.Context, q *types.StructuredQuery) ([]types.ScoredItem, error)

// keywordMatch scans atom text for the query's entities and keywords.
// Entity matches score higher than plain keyword matches.
func keywordMatch(store *kb.Store) strategyFunc {
	return func(_ context.Context, q *types.StructuredQuery) ([]types.ScoredItem, error) {
		var out []types.ScoredItem

		for _, entity := range q.Entities {
			atoms, err := store.SearchAtomText(entity)
			if err != nil {
				return nil, err
			}
			if len(atoms) > perEntityLimit {
				atoms = atoms[:perEntityLimit]
			}
			for _, atom := range atoms {
				out = append(out, atomItem(atom, entityMatchScore, StrategyKeywordMatch))
			}
		}

		keywords := q.Keywords
		if len(keywords) > keywordCap {
			keywords = keywords[:keywordCap]
		}
		for _, keyword := range keywords {
			atoms, err := store.SearchAtomText(keyword)
			if err != nil {
				return nil, err
			}
			if len(atoms) > perKeywordLimit {
				atoms = atoms[:perKeywordLimit]
			}
			for _, atom := range atoms {
				out = append(out, atomItem(atom, keywordMatchScore, StrategyKeywordMatch))
			}
		}

		return out, nil
	}
}

// entityIndex resolves each query entity against the entity family and
// returns the atoms it is mentioned in.
func entityIndex(store *kb.Store) strategyFunc {
	return func(_ context.Context, q *types.StructuredQuery) ([]types.ScoredItem, error) {
		var out []types.ScoredItem

		for _, name := range q.Entities {
			entity, err := store.EntityByName(name)
			if err != nil {
				return nil, err
			}
			if entity == nil {
				continue
			}
			for _, atomID := range entity.AtomIDs {
				atom, err := store.AtomByID(atomID)
				if err != nil {
					return nil, err
				}
				if atom == nil {
					continue
				}
				out = append(out, atomItem(atom, entityIndexScore, StrategyEntityIndex))
			}
		}

		return out, nil
	}
}

// graphQuery walks the knowledge graph around each query entity and emits
// relation items scored by edge weight.
func graphQuery(store *kb.Store) strategyFunc {
	return func(_ context.Context, q *types.StructuredQuery) ([]types.ScoredItem, error) {
		var out []types.ScoredItem

		for _, entity := range q.Entities {
			relations, err := store.EntityRelations(entity)
			if err != nil {
				return nil, err
			}
			if len(relations) > relationLimit {
				relations = relations[:relationLimit]
			}
			for i := range relations {
				rel := relations[i]
				out = append(out, types.ScoredItem{
					ID:         fmt.Sprintf("relation_%s_%s", entity, rel.Target),
					Type:       types.ItemRelation,
					Score:      rel.Weight,
					Payload:    relationPayload{Source: entity, Relation: rel},
					Strategies: []string{StrategyGraphQuery},
				})
			}
		}

		return out, nil
	}
}

// relationPayload carries a graph edge together with the entity it was
// queried from.
type relationPayload struct {
	Source   string         `json:"source"`
	Relation types.Relation `json:"relation"`
}

// coOccurrence finds atoms whose text mentions at least two of the query's
// entities, which is weak but useful evidence of a relationship.
func coOccurrence(store *kb.Store) strategyFunc {
	return func(_ context.Context, q *types.StructuredQuery) ([]types.ScoredItem, error) {
		if len(q.Entities) < 2 {
			return nil, nil
		}

		atoms, err := store.Atoms()
		if err != nil {
			return nil, err
		}

		var out []types.ScoredItem
		for _, atom := range atoms {
			text := strings.ToLower(atom.Text)
			mentions := 0
			for _, entity := range q.Entities {
				if strings.Contains(text, strings.ToLower(entity)) {
					mentions++
				}
			}
			if mentions >= 2 {
				out = append(out, atomItem(atom, coOccurrenceScore, StrategyCoOccurrence))
			}
		}

		return out, nil
	}
}

// narrativeSegments lists every segment scored by its importance.
func narrativeSegments(store *kb.Store) strategyFunc {
	return func(_ context.Context, _ *types.StructuredQuery) ([]types.ScoredItem, error) {
		segments, err := store.Segments()
		if err != nil {
			return nil, err
		}

		out := make([]types.ScoredItem, 0, len(segments))
		for _, seg := range segments {
			score := seg.ImportanceScore
			if score == 0 {
				score = 0.5
			}
			out = append(out, types.ScoredItem{
				ID:         seg.ID,
				Type:       types.ItemSegment,
				Score:      score,
				Importance: seg.ImportanceScore,
				Payload:    seg,
				Strategies: []string{StrategyNarrativeSegments},
			})
		}
		return out, nil
	}
}

// highImportance lists the most important atoms.
func highImportance(store *kb.Store) strategyFunc {
	return func(_ context.Context, _ *types.StructuredQuery) ([]types.ScoredItem, error) {
		atoms, err := store.AtomsByImportance(importanceCutoff)
		if err != nil {
			return nil, err
		}
		if len(atoms) > importanceLimit {
			atoms = atoms[:importanceLimit]
		}

		out := make([]types.ScoredItem, 0, len(atoms))
		for _, atom := range atoms {
			out = append(out, atomItem(atom, atom.ImportanceScore, StrategyHighImportance))
		}
		return out, nil
	}
}

// creativeAngles lists pre-computed clip recommendations scored by
// suitability.
func creativeAngles(store *kb.Store) strategyFunc {
	return func(_ context.Context, _ *types.StructuredQuery) ([]types.ScoredItem, error) {
		clips, err := store.Clips()
		if err != nil {
			return nil, err
		}
		if len(clips) > clipLimit {
			clips = clips[:clipLimit]
		}

		out := make([]types.ScoredItem, 0, len(clips))
		for _, clip := range clips {
			out = append(out, types.ScoredItem{
				ID:         clip.SegmentID,
				Type:       types.ItemClip,
				Score:      clip.SuitabilityScore,
				Payload:    clip,
				Strategies: []string{StrategyCreativeAngles},
			})
		}
		return out, nil
	}
}

// topicNetwork matches topics against the query's keywords and entities.
// With nothing to match on, the whole topic list is returned at a neutral
// score so "what topics does this cover" still works.
func topicNetwork(store *kb.Store) strategyFunc {
	return func(_ context.Context, q *types.StructuredQuery) ([]types.ScoredItem, error) {
		topics, err := store.Topics()
		if err != nil {
			return nil, err
		}

		terms := append(append([]string(nil), q.Keywords...), q.Entities...)
		for i := range terms {
			terms[i] = strings.ToLower(terms[i])
		}

		var out []types.ScoredItem
		for _, topic := range topics {
			score := topicListScore
			if len(terms) > 0 {
				if !topicMatches(topic, terms) {
					continue
				}
				score = topicMatchScore
			}
			out = append(out, types.ScoredItem{
				ID:         "topic_" + topic.Name,
				Type:       types.ItemTopic,
				Score:      score,
				Payload:    topic,
				Strategies: []string{StrategyTopicNetwork},
			})
		}
		return out, nil
	}
}

func topicMatches(topic *types.Topic, terms []string) bool {
	haystack := strings.ToLower(topic.Name + " " + topic.Definition + " " + strings.Join(topic.SubTopics, " "))
	for _, term := range terms {
		if strings.Contains(haystack, term) {
			return true
		}
	}
	return false
}

// qualityScan lists atoms ordered by quality score, surfacing the cleanest
// material first.
func qualityScan(store *kb.Store) strategyFunc {
	return func(_ context.Context, _ *types.StructuredQuery) ([]types.ScoredItem, error) {
		atoms, err := store.Atoms()
		if err != nil {
			return nil, err
		}

		scored := make([]*types.Atom, len(atoms))
		copy(scored, atoms)
		sort.SliceStable(scored, func(i, j int) bool {
			if scored[i].QualityScore != scored[j].QualityScore {
				return scored[i].QualityScore > scored[j].QualityScore
			}
			return scored[i].ID < scored[j].ID
		})
		if len(scored) > qualityLimit {
			scored = scored[:qualityLimit]
		}

		out := make([]types.ScoredItem, 0, len(scored))
		for _, atom := range scored {
			out = append(out, atomItem(atom, atom.QualityScore, StrategyQualityScan))
		}
		return out, nil
	}
}

// vectorSearch defers to the similarity oracle over the resolved query.
func vectorSearch(searcher similarity.Searcher) strategyFunc {
	return func(ctx context.Context, q *types.StructuredQuery) ([]types.ScoredItem, error) {
		if searcher == nil {
			return nil, nil
		}

		candidates, err := searcher.Search(ctx, q.ResolvedQuery, vectorLimit)
		if err != nil {
			return nil, err
		}

		out := make([]types.ScoredItem, 0, len(candidates))
		for _, c := range candidates {
			out = append(out, types.ScoredItem{
				ID:         c.ID,
				Type:       c.Type,
				Score:      c.Score,
				Importance: c.Importance,
				Payload:    c.Payload,
				Strategies: []string{StrategyVectorSearch},
			})
		}
		return out, nil
	}
}

func atomItem(atom *types.Atom, score float64, strategy string) types.ScoredItem {
	return types.ScoredItem{
		ID:         atom.ID,
		Type:       types.ItemAtom,
		Score:      score,
		Importance: atom.ImportanceScore,
		Payload:    atom,
		Strategies: []string{strategy},
	}
}
