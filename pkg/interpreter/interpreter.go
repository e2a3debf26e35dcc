package interpreter

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/narratex/narratex/pkg/nlp"
	"github.com/narratex/narratex/pkg/session"
	"github.com/narratex/narratex/pkg/types"
)

// DegradedConfidence is assigned when the oracle response cannot be used and
// the interpreter falls back to a semantic search over the raw utterance.
const DegradedConfidence = 0.3

// defaultConfidence is assumed when the oracle omits the confidence field.
const defaultConfidence = 0.5

const recentEntityLimit = 5

var pronounRe = regexp.MustCompile(`(?i)\b(he|she|it|him|her|they|them)\b`)

// Interpreter classifies utterances against session context.
type Interpreter struct {
	client   nlp.Client
	sessions *session.Store
	logger   *slog.Logger
}

// New creates an interpreter backed by the given oracle client.
func New(client nlp.Client, sessions *session.Store, logger *slog.Logger) *Interpreter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Interpreter{
		client:   client,
		sessions: sessions,
		logger:   logger,
	}
}

// oracleReply is the wire shape requested from the oracle. Time constraints
// arrive in seconds and are converted to milliseconds.
type oracleReply struct {
	Intent         string         `json:"intent"`
	Entities       []string       `json:"entities"`
	Keywords       []string       `json:"keywords"`
	TimeConstraint *timeSpan      `json:"time_constraint"`
	Filters        map[string]any `json:"filters"`
	ResolvedQuery  string         `json:"resolved_query"`
	Confidence     *float64       `json:"confidence"`
	Metadata       map[string]any `json:"metadata"`
}

type timeSpan struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Parse turns one utterance into a structured query. sessionID may be empty
// for one-shot queries without context. Parse never fails on oracle trouble;
// it degrades instead.
func (in *Interpreter) Parse(ctx context.Context, sessionID, query string) (*types.StructuredQuery, error) {
	d := in.contextDigest(sessionID)

	sq, degraded := in.classify(ctx, query, d)
	if !degraded {
		in.resolveCoreferences(sq, d)
	}
	return sq, nil
}

// classify calls the oracle and parses its response. The second return value
// reports whether the result is the degraded fallback.
func (in *Interpreter) classify(ctx context.Context, query string, d digest) (*types.StructuredQuery, bool) {
	messages := []types.Message{nlp.NewUserMessage(buildPrompt(query, d))}

	resp, err := in.client.Chat(ctx, messages)
	if err != nil {
		in.logger.Error("query classification failed", "error", err)
		return defaultResult(query), true
	}

	var reply oracleReply
	if err := nlp.UnmarshalResponse(resp.Content, &reply); err != nil {
		in.logger.Error("unusable classification response", "error", err)
		return defaultResult(query), true
	}

	return fromReply(&reply, query), false
}

// fromReply converts the wire reply into a structured query, normalizing
// every field the oracle may have mangled.
func fromReply(reply *oracleReply, query string) *types.StructuredQuery {
	intent := types.IntentSemanticSearch
	if reply.Intent != "" {
		intent = types.ParseIntent(reply.Intent)
	}

	confidence := defaultConfidence
	if reply.Confidence != nil {
		confidence = clamp01(*reply.Confidence)
	}

	resolved := strings.TrimSpace(reply.ResolvedQuery)
	if resolved == "" {
		resolved = query
	}

	sq := &types.StructuredQuery{
		Intent:        intent,
		Entities:      compact(reply.Entities),
		Keywords:      compact(reply.Keywords),
		Filters:       parseFilters(reply.Filters),
		ResolvedQuery: resolved,
		Confidence:    confidence,
		Metadata:      reply.Metadata,
	}

	if reply.TimeConstraint != nil && reply.TimeConstraint.End > reply.TimeConstraint.Start {
		sq.TimeWindow = &types.TimeRange{
			StartMs: int64(reply.TimeConstraint.Start * 1000),
			EndMs:   int64(reply.TimeConstraint.End * 1000),
		}
		if sq.Filters.TimeRange == nil {
			sq.Filters.TimeRange = sq.TimeWindow
		}
	}

	return sq
}

// parseFilters extracts the known filter keys from the oracle's loose map.
func parseFilters(raw map[string]any) types.QueryFilters {
	var f types.QueryFilters
	if raw == nil {
		return f
	}

	if v, ok := raw["importance_min"]; ok {
		if min, ok := toFloat(v); ok {
			min = clamp01(min)
			f.ImportanceMin = &min
		}
	}
	if v, ok := raw["entity_types"]; ok {
		if list, ok := v.([]any); ok {
			for _, item := range list {
				if s, ok := item.(string); ok && s != "" {
					f.EntityTypes = append(f.EntityTypes, s)
				}
			}
		}
	}
	return f
}

// resolveCoreferences applies the conservative local fallback: when the
// oracle extracted no entities but the utterance contains a pronoun, the
// most-recently-focused session entity is substituted.
func (in *Interpreter) resolveCoreferences(sq *types.StructuredQuery, d digest) {
	if len(sq.Entities) > 0 || len(d.RecentEntities) == 0 {
		return
	}
	if !pronounRe.MatchString(sq.ResolvedQuery) {
		return
	}

	entity := d.RecentEntities[0]
	sq.Entities = []string{entity}
	sq.ResolvedQuery = pronounRe.ReplaceAllString(sq.ResolvedQuery, entity)
}

// contextDigest summarizes the session for the oracle prompt.
func (in *Interpreter) contextDigest(sessionID string) digest {
	if sessionID == "" || in.sessions == nil {
		return digest{}
	}

	sess, err := in.sessions.Get(sessionID)
	if err != nil {
		return digest{}
	}

	recent, err := in.sessions.RecentEntities(sessionID, recentEntityLimit)
	if err != nil {
		recent = nil
	}

	d := digest{
		RecentEntities: recent,
		Mode:           string(sess.Mode),
	}
	if m := sess.LastMessage("user"); m != nil {
		d.LastUser = m.Content
	}
	if m := sess.LastMessage("assistant"); m != nil {
		d.LastAssistant = m.Content
	}
	return d
}

func defaultResult(query string) *types.StructuredQuery {
	return &types.StructuredQuery{
		Intent:        types.IntentSemanticSearch,
		ResolvedQuery: query,
		Confidence:    DegradedConfidence,
		Metadata:      map[string]any{"error": "failed to parse intent"},
	}
}

func compact(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
