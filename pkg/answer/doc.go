// Package answer renders retrieval results into a user-facing natural
// language answer with timestamped source citations. When the language
// model is unavailable it falls back to concatenated excerpts at reduced
// confidence rather than failing the turn.
package answer
