package types

import (
	"errors"
	"fmt"
)

// Validation errors
var (
	ErrEmptyID      = errors.New("id cannot be empty")
	ErrEmptyText    = errors.New("text cannot be empty")
	ErrInvalidSpan  = errors.New("end time must not precede start time")
	ErrEmptyName    = errors.New("name cannot be empty")
	ErrInvalidScore = errors.New("score must be in [0, 1]")
)

// TimeRange is an inclusive span in milliseconds from the start of the
// video. Spans that share only a boundary instant count as overlapping, so
// an atom ending exactly where a filter starts is still inside it.
type TimeRange struct {
	StartMs int64 `json:"start_ms" mapstructure:"start_ms"`
	EndMs   int64 `json:"end_ms" mapstructure:"end_ms"`
}

// Overlaps reports whether the two spans share any time.
func (r TimeRange) Overlaps(other TimeRange) bool {
	return r.StartMs <= other.EndMs && r.EndMs >= other.StartMs
}

// Duration returns the span length in milliseconds.
func (r TimeRange) Duration() int64 {
	return r.EndMs - r.StartMs
}

// Clock renders the start offset as HH:MM:SS.
func (r TimeRange) Clock() string {
	return msToClock(r.StartMs)
}

func msToClock(ms int64) string {
	h := ms / 3600000
	m := (ms % 3600000) / 60000
	s := (ms % 60000) / 1000
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// Atom is the smallest addressable unit of transcript content. Atoms are
// produced by the ingestion pipeline by merging raw subtitle utterances and
// never change afterwards.
type Atom struct {
	ID                 string  `json:"atom_id"`
	StartMs            int64   `json:"start_ms"`
	EndMs              int64   `json:"end_ms"`
	DurationMs         int64   `json:"duration_ms"`
	Text               string  `json:"merged_text"`
	Type               string  `json:"type"`
	Completeness       string  `json:"completeness"`
	SourceUtteranceIDs []int   `json:"source_utterance_ids,omitempty"`
	ImportanceScore    float64 `json:"importance_score,omitempty"`
	QualityScore       float64 `json:"quality_score,omitempty"`
}

// Span returns the atom's time span.
func (a *Atom) Span() TimeRange {
	return TimeRange{StartMs: a.StartMs, EndMs: a.EndMs}
}

// Validate checks the invariants an ingested atom must satisfy.
func (a *Atom) Validate() error {
	if a.ID == "" {
		return ErrEmptyID
	}
	if a.Text == "" {
		return ErrEmptyText
	}
	if a.EndMs < a.StartMs {
		return ErrInvalidSpan
	}
	return nil
}

// NarrativeAct is one act of a segment's structural breakdown.
type NarrativeAct struct {
	Role        string `json:"role"`
	Description string `json:"description"`
}

// NarrativeStructure describes how a segment's story is built.
type NarrativeStructure struct {
	Type      string         `json:"type"`
	Structure string         `json:"structure"`
	Acts      []NarrativeAct `json:"acts,omitempty"`
}

// TopicTags holds a segment's topic annotations.
type TopicTags struct {
	Primary   string   `json:"primary_topic,omitempty"`
	Secondary []string `json:"secondary_topics,omitempty"`
	FreeTags  []string `json:"free_tags,omitempty"`
}

// EntityMentions groups the entities extracted from a segment by kind.
type EntityMentions struct {
	Persons       []string `json:"persons,omitempty"`
	Countries     []string `json:"countries,omitempty"`
	Organizations []string `json:"organizations,omitempty"`
	TimePoints    []string `json:"time_points,omitempty"`
	Events        []string `json:"events,omitempty"`
	Concepts      []string `json:"concepts,omitempty"`
}

// All returns every mentioned entity name in declaration order.
func (m EntityMentions) All() []string {
	out := make([]string, 0,
		len(m.Persons)+len(m.Countries)+len(m.Organizations)+
			len(m.TimePoints)+len(m.Events)+len(m.Concepts))
	out = append(out, m.Persons...)
	out = append(out, m.Countries...)
	out = append(out, m.Organizations...)
	out = append(out, m.TimePoints...)
	out = append(out, m.Events...)
	out = append(out, m.Concepts...)
	return out
}

// Segment is a coherent narrative grouping of atoms, typically a few minutes
// long, with structural and topical annotations.
type Segment struct {
	ID              string             `json:"segment_id"`
	Title           string             `json:"title"`
	AtomIDs         []string           `json:"atoms"`
	StartMs         int64              `json:"start_ms"`
	EndMs           int64              `json:"end_ms"`
	DurationMs      int64              `json:"duration_ms"`
	Summary         string             `json:"summary"`
	FullText        string             `json:"full_text,omitempty"`
	Structure       NarrativeStructure `json:"narrative_structure"`
	Topics          TopicTags          `json:"topics"`
	Entities        EntityMentions     `json:"entities"`
	ImportanceScore float64            `json:"importance_score"`
	QualityScore    float64            `json:"quality_score"`
}

// Span returns the segment's time span.
func (s *Segment) Span() TimeRange {
	return TimeRange{StartMs: s.StartMs, EndMs: s.EndMs}
}

// Validate checks the invariants an ingested segment must satisfy.
func (s *Segment) Validate() error {
	if s.ID == "" {
		return ErrEmptyID
	}
	if s.EndMs < s.StartMs {
		return ErrInvalidSpan
	}
	if s.ImportanceScore < 0 || s.ImportanceScore > 1 {
		return ErrInvalidScore
	}
	return nil
}

// Entity is a named real-world referent tracked across atoms and segments.
type Entity struct {
	Name       string   `json:"entity_name"`
	Type       string   `json:"entity_type"`
	Mentions   int      `json:"mentions"`
	AtomIDs    []string `json:"atom_ids,omitempty"`
	SegmentIDs []string `json:"segment_ids,omitempty"`
	Related    []string `json:"related_entities,omitempty"`
}

// Validate checks the invariants an ingested entity must satisfy.
func (e *Entity) Validate() error {
	if e.Name == "" {
		return ErrEmptyName
	}
	return nil
}

// Relation is one edge of the knowledge graph viewed from a source entity.
type Relation struct {
	Target    string   `json:"target"`
	Type      string   `json:"relation_type"`
	Weight    float64  `json:"weight"`
	Direction string   `json:"direction,omitempty"`
	AtomIDs   []string `json:"atom_ids,omitempty"`
}

// Topic is a named thematic cluster covering a set of atoms and segments.
type Topic struct {
	Name       string   `json:"name"`
	Definition string   `json:"definition,omitempty"`
	SubTopics  []string `json:"sub_topics,omitempty"`
	AtomIDs    []string `json:"atom_ids,omitempty"`
	SegmentIDs []string `json:"segment_ids,omitempty"`
}

// GraphNode is a node of the derived knowledge graph.
type GraphNode struct {
	ID     string  `json:"id"`
	Label  string  `json:"label"`
	Type   string  `json:"type"`
	Weight float64 `json:"weight,omitempty"`
}

// GraphEdge is a weighted, labelled edge of the derived knowledge graph.
type GraphEdge struct {
	Source  string   `json:"source"`
	Target  string   `json:"target"`
	Type    string   `json:"relation_type"`
	Weight  float64  `json:"weight"`
	AtomIDs []string `json:"atom_ids,omitempty"`
}

// Graph is the derived node/edge view over entities, topics, and segments.
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// Clip is a candidate excerpt recommended for short-form reuse.
type Clip struct {
	SegmentID        string  `json:"segment_id"`
	Title            string  `json:"title,omitempty"`
	Angle            string  `json:"angle,omitempty"`
	Hook             string  `json:"hook,omitempty"`
	StartMs          int64   `json:"start_ms,omitempty"`
	EndMs            int64   `json:"end_ms,omitempty"`
	SuitabilityScore float64 `json:"suitability_score"`
}

// VideoMetadata summarizes one knowledge base snapshot.
type VideoMetadata struct {
	VideoID      string `json:"video_id"`
	Title        string `json:"title"`
	DurationMs   int64  `json:"duration_ms"`
	AtomCount    int    `json:"atom_count"`
	SegmentCount int    `json:"segment_count"`
	EntityCount  int    `json:"entity_count"`
}
