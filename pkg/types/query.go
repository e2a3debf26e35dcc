package types

import "time"

// Intent is the closed classification of what a user query asks for.
type Intent string

const (
	IntentSemanticSearch Intent = "search_semantic"
	IntentEntitySearch   Intent = "search_entity"
	IntentRelationSearch Intent = "search_relation"
	IntentSummary        Intent = "summary"
	IntentRecommendClip  Intent = "recommend_clip"
	IntentAnalyzeTopic   Intent = "analyze_topic"
	IntentAnalyzeQuality Intent = "analyze_quality"
	IntentUnknown        Intent = "unknown"
)

// ParseIntent maps a raw intent string onto the closed enumeration.
// Unrecognized values map to IntentUnknown.
func ParseIntent(s string) Intent {
	switch Intent(s) {
	case IntentSemanticSearch, IntentEntitySearch, IntentRelationSearch,
		IntentSummary, IntentRecommendClip, IntentAnalyzeTopic,
		IntentAnalyzeQuality:
		return Intent(s)
	default:
		return IntentUnknown
	}
}

// QueryFilters constrains retrieval results. Filters compose by logical AND.
type QueryFilters struct {
	// ImportanceMin keeps only items whose importance score is at least
	// this value.
	ImportanceMin *float64 `json:"importance_min,omitempty"`
	// TimeRange keeps only items whose span overlaps it.
	TimeRange *TimeRange `json:"time_range,omitempty"`
	// EntityTypes keeps only relation items whose source entity has one of
	// these types.
	EntityTypes []string `json:"entity_types,omitempty"`
}

// Empty reports whether no filter is set.
func (f QueryFilters) Empty() bool {
	return f.ImportanceMin == nil && f.TimeRange == nil && len(f.EntityTypes) == 0
}

// StructuredQuery is the interpreter's output: one utterance resolved
// against session context into retrievable form.
type StructuredQuery struct {
	Intent        Intent         `json:"intent"`
	Entities      []string       `json:"entities"`
	Keywords      []string       `json:"keywords"`
	TimeWindow    *TimeRange     `json:"time_constraint,omitempty"`
	Filters       QueryFilters   `json:"filters"`
	ResolvedQuery string         `json:"resolved_query"`
	Confidence    float64        `json:"confidence"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// ItemType tags what kind of record a scored item carries.
type ItemType string

const (
	ItemAtom     ItemType = "atom"
	ItemSegment  ItemType = "segment"
	ItemRelation ItemType = "relation"
	ItemClip     ItemType = "clip"
	ItemTopic    ItemType = "topic"
)

// ScoredItem is one retrieval candidate: a knowledge-base record tagged
// with a score and the strategies that produced it.
type ScoredItem struct {
	ID         string   `json:"item_id"`
	Type       ItemType `json:"item_type"`
	Score      float64  `json:"score"`
	Importance float64  `json:"importance"`
	Payload    any      `json:"payload"`
	Strategies []string `json:"matched_by"`
}

// MatchedBy reports whether the named strategy contributed this item.
func (it *ScoredItem) MatchedBy(strategy string) bool {
	for _, s := range it.Strategies {
		if s == strategy {
			return true
		}
	}
	return false
}

// Source is one provenance reference attached to an answer.
type Source struct {
	ItemID         string   `json:"item_id"`
	ItemType       ItemType `json:"item_type"`
	StartMs        int64    `json:"start_ms"`
	EndMs          int64    `json:"end_ms"`
	Excerpt        string   `json:"excerpt"`
	RelevanceScore float64  `json:"relevance_score"`
}

// Answer is one full conversation turn result.
type Answer struct {
	SessionID      string         `json:"session_id"`
	Text           string         `json:"answer"`
	Sources        []Source       `json:"sources"`
	Confidence     float64        `json:"confidence"`
	RetrievedCount int            `json:"retrieved_count"`
	Elapsed        time.Duration  `json:"elapsed_ms"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// Role identifies the author of a chat message.
type Role string

// Message is one chat message, used both for oracle calls and for session
// history.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// Response is a raw completion returned by a language-model oracle.
type Response struct {
	Content      string      `json:"content"`
	Model        string      `json:"model,omitempty"`
	FinishReason string      `json:"finish_reason,omitempty"`
	TokensUsed   *TokenUsage `json:"tokens_used,omitempty"`
}

// TokenUsage reports oracle token consumption for one call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
