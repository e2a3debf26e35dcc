package types

import (
	"encoding/json"
	"testing"
)

func TestAtomValidate(t *testing.T) {
	tests := []struct {
		name    string
		atom    Atom
		wantErr error
	}{
		{
			name:    "valid atom",
			atom:    Atom{ID: "A001", Text: "hello", StartMs: 0, EndMs: 1000},
			wantErr: nil,
		},
		{
			name:    "empty id",
			atom:    Atom{Text: "hello"},
			wantErr: ErrEmptyID,
		},
		{
			name:    "empty text",
			atom:    Atom{ID: "A001"},
			wantErr: ErrEmptyText,
		},
		{
			name:    "inverted span",
			atom:    Atom{ID: "A001", Text: "hello", StartMs: 2000, EndMs: 1000},
			wantErr: ErrInvalidSpan,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.atom.Validate(); err != tt.wantErr {
				t.Errorf("Atom.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSegmentValidate(t *testing.T) {
	tests := []struct {
		name    string
		segment Segment
		wantErr error
	}{
		{
			name:    "valid segment",
			segment: Segment{ID: "SEG_001", StartMs: 0, EndMs: 60000, ImportanceScore: 0.9},
			wantErr: nil,
		},
		{
			name:    "empty id",
			segment: Segment{},
			wantErr: ErrEmptyID,
		},
		{
			name:    "importance out of range",
			segment: Segment{ID: "SEG_001", ImportanceScore: 1.5},
			wantErr: ErrInvalidScore,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.segment.Validate(); err != tt.wantErr {
				t.Errorf("Segment.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTimeRangeOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b TimeRange
		want bool
	}{
		{"disjoint", TimeRange{0, 100}, TimeRange{200, 300}, false},
		{"touching", TimeRange{0, 100}, TimeRange{100, 200}, true},
		{"contained", TimeRange{0, 1000}, TimeRange{200, 300}, true},
		{"partial", TimeRange{50, 150}, TimeRange{100, 200}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Overlaps(tt.b); got != tt.want {
				t.Errorf("Overlaps() = %v, want %v", got, tt.want)
			}
			if got := tt.b.Overlaps(tt.a); got != tt.want {
				t.Errorf("Overlaps() reversed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTimeRangeClock(t *testing.T) {
	r := TimeRange{StartMs: 3725000, EndMs: 3730000}
	if got := r.Clock(); got != "01:02:05" {
		t.Errorf("Clock() = %q, want %q", got, "01:02:05")
	}
}

func TestAtomJSONRoundTrip(t *testing.T) {
	// Field names must match the ingestion pipeline's output files.
	raw := `{"atom_id":"A001","start_ms":500000,"end_ms":510000,"duration_ms":10000,` +
		`"merged_text":"origin of the golden triangle","type":"fragment",` +
		`"completeness":"complete","source_utterance_ids":[85,86,87],"importance_score":0.8}`

	var atom Atom
	if err := json.Unmarshal([]byte(raw), &atom); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if atom.ID != "A001" || atom.Text != "origin of the golden triangle" {
		t.Errorf("unexpected atom: %+v", atom)
	}
	if len(atom.SourceUtteranceIDs) != 3 {
		t.Errorf("source_utterance_ids = %v", atom.SourceUtteranceIDs)
	}
	if atom.ImportanceScore != 0.8 {
		t.Errorf("importance = %v", atom.ImportanceScore)
	}
}

func TestEntityMentionsAll(t *testing.T) {
	m := EntityMentions{
		Persons:    []string{"Nixon"},
		Countries:  []string{"USA", "France"},
		TimePoints: []string{"1971"},
	}
	all := m.All()
	if len(all) != 4 {
		t.Fatalf("All() returned %d names, want 4", len(all))
	}
	if all[0] != "Nixon" || all[3] != "1971" {
		t.Errorf("All() order = %v", all)
	}
}

func TestParseIntent(t *testing.T) {
	tests := []struct {
		in   string
		want Intent
	}{
		{"search_semantic", IntentSemanticSearch},
		{"search_entity", IntentEntitySearch},
		{"search_relation", IntentRelationSearch},
		{"summary", IntentSummary},
		{"recommend_clip", IntentRecommendClip},
		{"analyze_topic", IntentAnalyzeTopic},
		{"analyze_quality", IntentAnalyzeQuality},
		{"unknown", IntentUnknown},
		{"", IntentUnknown},
		{"SEARCH_SEMANTIC", IntentUnknown},
		{"gibberish", IntentUnknown},
	}

	for _, tt := range tests {
		if got := ParseIntent(tt.in); got != tt.want {
			t.Errorf("ParseIntent(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestValidMode(t *testing.T) {
	for _, m := range []Mode{ModeExploration, ModeCreation, ModeLearning} {
		if !ValidMode(m) {
			t.Errorf("ValidMode(%q) = false", m)
		}
	}
	if ValidMode("debugging") {
		t.Error("ValidMode accepted an unsupported mode")
	}
}

func TestSessionClone(t *testing.T) {
	s := &Session{
		ID:        "sess_1",
		History:   []Message{{Role: "user", Content: "hi"}},
		Focus:     []FocusEntity{{Name: "Nixon", Count: 2, Seq: 1}},
		Retrieved: map[string]struct{}{"A001": {}},
	}
	c := s.Clone()

	c.History[0].Content = "changed"
	c.Focus[0].Count = 99
	c.Retrieved["A002"] = struct{}{}

	if s.History[0].Content != "hi" {
		t.Error("Clone shares history backing array")
	}
	if s.Focus[0].Count != 2 {
		t.Error("Clone shares focus backing array")
	}
	if _, ok := s.Retrieved["A002"]; ok {
		t.Error("Clone shares retrieved set")
	}
}

func TestSessionLastMessage(t *testing.T) {
	s := &Session{History: []Message{
		{Role: "user", Content: "q1"},
		{Role: "assistant", Content: "a1"},
		{Role: "user", Content: "q2"},
	}}

	if got := s.LastMessage("user"); got == nil || got.Content != "q2" {
		t.Errorf("LastMessage(user) = %v", got)
	}
	if got := s.LastMessage("assistant"); got == nil || got.Content != "a1" {
		t.Errorf("LastMessage(assistant) = %v", got)
	}
	if got := s.LastMessage("system"); got != nil {
		t.Errorf("LastMessage(system) = %v, want nil", got)
	}
}
