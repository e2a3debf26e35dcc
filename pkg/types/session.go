package types

import "time"

// Mode selects how a session weighs retrieval results.
type Mode string

const (
	// ModeExploration is the default free-form question answering mode.
	ModeExploration Mode = "exploration"
	// ModeCreation favors reusable clips and creative angles.
	ModeCreation Mode = "creation"
	// ModeLearning favors summaries and topic structure.
	ModeLearning Mode = "learning"
)

// ValidMode reports whether s names a supported session mode.
func ValidMode(s Mode) bool {
	switch s {
	case ModeExploration, ModeCreation, ModeLearning:
		return true
	}
	return false
}

// FocusEntity is one entity the session has recently emphasized. Count only
// grows; Seq records the most recent update for recency tie-breaking.
type FocusEntity struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
	Seq   uint64 `json:"seq"`
}

// Session is the per-conversation mutable state: bounded turn history, the
// focus-entity frequency table, and the set of item ids already surfaced.
// All mutation goes through the session store.
type Session struct {
	ID        string              `json:"session_id"`
	VideoID   string              `json:"video_id"`
	Mode      Mode                `json:"mode"`
	History   []Message           `json:"history"`
	Focus     []FocusEntity       `json:"focus_entities"`
	Retrieved map[string]struct{} `json:"retrieved_items"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// Clone returns a deep copy so callers can read a session without holding
// the store's per-session lock.
func (s *Session) Clone() *Session {
	out := *s
	out.History = append([]Message(nil), s.History...)
	out.Focus = append([]FocusEntity(nil), s.Focus...)
	out.Retrieved = make(map[string]struct{}, len(s.Retrieved))
	for id := range s.Retrieved {
		out.Retrieved[id] = struct{}{}
	}
	return &out
}

// LastMessage returns the most recent message with the given role, or nil.
func (s *Session) LastMessage(role Role) *Message {
	for i := len(s.History) - 1; i >= 0; i-- {
		if s.History[i].Role == role {
			return &s.History[i]
		}
	}
	return nil
}
