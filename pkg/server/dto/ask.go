package dto

// AskRequest is the body of POST /api/v1/ask.
type AskRequest struct {
	Query     string `json:"query" binding:"required"`
	SessionID string `json:"session_id"`
	Mode      string `json:"mode"`
	TopK      int    `json:"top_k"`
}

// CreateSessionRequest is the body of POST /api/v1/sessions.
type CreateSessionRequest struct {
	SessionID string `json:"session_id"`
	Mode      string `json:"mode"`
}

// SessionListResponse is the body of GET /api/v1/sessions.
type SessionListResponse struct {
	Sessions []string `json:"sessions"`
	Count    int      `json:"count"`
}
