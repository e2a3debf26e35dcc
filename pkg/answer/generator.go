package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/narratex/narratex/pkg/nlp"
	"github.com/narratex/narratex/pkg/types"
)

// Confidence assigned depending on whether the language model produced the
// answer or the generator fell back to excerpt concatenation.
const (
	GeneratedConfidence = 0.8
	FallbackConfidence  = 0.4
)

const (
	promptItemLimit   = 5
	sourceLimit       = 5
	fallbackItemLimit = 3
	excerptLimit      = 200
	noContentAnswer   = "I couldn't find relevant information to answer your question."
)

// Generator produces the final answer for one turn.
type Generator struct {
	client nlp.Client
	logger *slog.Logger
}

// New creates a generator backed by the given language model client.
func New(client nlp.Client, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		client: client,
		logger: logger,
	}
}

// Generate renders the retrieved items into an answer. It never fails on
// model trouble; the fallback path concatenates excerpts instead.
func (g *Generator) Generate(ctx context.Context, query string, sq *types.StructuredQuery, items []types.ScoredItem) *types.Answer {
	text, confidence := g.answerText(ctx, query, sq, items)

	return &types.Answer{
		Text:           text,
		Sources:        extractSources(items),
		Confidence:     confidence,
		RetrievedCount: len(items),
		Metadata:       map[string]any{"intent": string(sq.Intent)},
	}
}

func (g *Generator) answerText(ctx context.Context, query string, sq *types.StructuredQuery, items []types.ScoredItem) (string, float64) {
	messages := []types.Message{nlp.NewUserMessage(buildPrompt(query, sq, items))}

	resp, err := g.client.Chat(ctx, messages)
	if err != nil || resp == nil || strings.TrimSpace(resp.Content) == "" {
		if err != nil {
			g.logger.Error("answer generation failed, using fallback", "error", err)
		}
		return fallbackAnswer(items), FallbackConfidence
	}
	return strings.TrimSpace(resp.Content), GeneratedConfidence
}

func buildPrompt(query string, sq *types.StructuredQuery, items []types.ScoredItem) string {
	limit := len(items)
	if limit > promptItemLimit {
		limit = promptItemLimit
	}

	var content strings.Builder
	for i, item := range items[:limit] {
		if i > 0 {
			content.WriteString("\n\n")
		}
		span, hasSpan := itemSpan(item.Payload)
		fmt.Fprintf(&content, "[%d] %s\n%s", i+1, formatSpan(span, hasSpan), excerpt(item.Payload))
	}

	return fmt.Sprintf(`You are answering questions about a video based on retrieved content.

User Query: %s
Query Intent: %s

Retrieved Content:
%s

Instructions:
- Answer the question directly based on the retrieved content
- Cite sources using [Source N: MM:SS-MM:SS] format
- If content is insufficient, say so honestly
- Keep answer concise (2-3 paragraphs max)

Answer:`, query, string(sq.Intent), content.String())
}

// fallbackAnswer concatenates the top excerpts when the model is down.
func fallbackAnswer(items []types.ScoredItem) string {
	if len(items) == 0 {
		return noContentAnswer
	}

	limit := len(items)
	if limit > fallbackItemLimit {
		limit = fallbackItemLimit
	}
	excerpts := make([]string, 0, limit)
	for _, item := range items[:limit] {
		excerpts = append(excerpts, excerpt(item.Payload))
	}
	return strings.Join(excerpts, " ")
}

// extractSources builds provenance references for the top items.
func extractSources(items []types.ScoredItem) []types.Source {
	limit := len(items)
	if limit > sourceLimit {
		limit = sourceLimit
	}

	sources := make([]types.Source, 0, limit)
	for _, item := range items[:limit] {
		span, _ := itemSpan(item.Payload)
		sources = append(sources, types.Source{
			ItemID:         item.ID,
			ItemType:       item.Type,
			StartMs:        span.StartMs,
			EndMs:          span.EndMs,
			Excerpt:        excerpt(item.Payload),
			RelevanceScore: item.Score,
		})
	}
	return sources
}

// excerpt pulls a short text representation from a candidate payload.
func excerpt(payload any) string {
	var text string
	switch p := payload.(type) {
	case *types.Atom:
		text = p.Text
	case *types.Segment:
		text = p.Summary
		if text == "" {
			text = p.Title
		}
	case *types.Clip:
		text = p.Hook
		if text == "" {
			text = p.Angle
		}
	case *types.Topic:
		text = p.Name
		if p.Definition != "" {
			text = p.Name + ": " + p.Definition
		}
	default:
		text = fmt.Sprintf("%v", payload)
	}

	// Truncate by rune count, not bytes; transcripts are mostly CJK and a
	// byte slice would cut a rune in half.
	if utf8.RuneCountInString(text) > excerptLimit {
		return string([]rune(text)[:excerptLimit])
	}
	return text
}

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

// formatSpan renders a span as [MM:SS-MM:SS], or a placeholder for items
// without one.
func formatSpan(span types.TimeRange, ok bool) string {
	if !ok || (span.StartMs == 0 && span.EndMs == 0) {
		return "[Time N/A]"
	}
	return fmt.Sprintf("[%s-%s]", mmss(span.StartMs), mmss(span.EndMs))
}

func mmss(ms int64) string {
	totalSecs := ms / 1000
	return fmt.Sprintf("%02d:%02d", totalSecs/60, totalSecs%60)
}
