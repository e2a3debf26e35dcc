package types

// contextKey is a private type for context values set by the server layer
// and read by telemetry.
type contextKey string

const (
	// ContextKeySessionID carries the conversation session id.
	ContextKeySessionID contextKey = "session_id"
	// ContextKeyVideoID carries the knowledge base video id.
	ContextKeyVideoID contextKey = "video_id"
	// ContextKeyRequestSource carries the inbound request origin.
	ContextKeyRequestSource contextKey = "request_source"
)
