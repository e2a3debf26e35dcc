package narratex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/narratex/narratex/pkg/session"
	"github.com/narratex/narratex/pkg/types"
)

// AskOptions tunes a single conversation turn.
type AskOptions struct {
	// SessionID continues an existing conversation. Empty starts a new
	// session; an unknown id starts a session under that id.
	SessionID string
	// Mode applies when a session is created by this call.
	Mode types.Mode
	// TopK overrides the engine's retrieval bound for this turn.
	TopK int
}

// Ask processes one conversation turn: interpret the query against session
// context, retrieve matching content, generate an answer, then record the
// turn in the session.
func (e *Engine) Ask(ctx context.Context, query string, opts AskOptions) (*types.Answer, error) {
	started := time.Now()

	sessionID, err := e.ensureSession(opts)
	if err != nil {
		return nil, err
	}

	sq, err := e.interp.Parse(ctx, sessionID, query)
	if err != nil {
		return nil, fmt.Errorf("interpret query: %w", err)
	}
	e.logger.Info("query interpreted",
		"session_id", sessionID,
		"intent", string(sq.Intent),
		"entities", len(sq.Entities),
		"confidence", sq.Confidence,
	)

	topK := opts.TopK
	if topK <= 0 {
		topK = e.topK
	}
	items, err := e.retriever.Retrieve(ctx, sq, topK)
	if err != nil {
		return nil, fmt.Errorf("retrieve content: %w", err)
	}

	ans := e.generator.Generate(ctx, query, sq, items)
	ans.SessionID = sessionID
	ans.Elapsed = time.Since(started)
	if ans.Metadata == nil {
		ans.Metadata = map[string]any{}
	}
	ans.Metadata["session_id"] = sessionID

	e.updateSession(sessionID, query, sq, ans, items)

	e.logger.Info("turn complete",
		"session_id", sessionID,
		"retrieved", len(items),
		"confidence", ans.Confidence,
		"elapsed_ms", ans.Elapsed.Milliseconds(),
	)
	return ans, nil
}

// ensureSession resolves the session for this turn, creating one on first
// use.
func (e *Engine) ensureSession(opts AskOptions) (string, error) {
	if opts.SessionID != "" {
		if _, err := e.sessions.Get(opts.SessionID); err == nil {
			return opts.SessionID, nil
		} else if !errors.Is(err, session.ErrSessionNotFound) {
			return "", err
		}
	}

	sess, err := e.NewSession(opts.Mode, opts.SessionID)
	if err != nil {
		return "", err
	}
	return sess.ID, nil
}

// updateSession records the turn. Session bookkeeping failures degrade the
// conversation but never the answer already produced.
func (e *Engine) updateSession(sessionID, query string, sq *types.StructuredQuery, ans *types.Answer, items []types.ScoredItem) {
	if err := e.sessions.AddTurn(sessionID, query, ans.Text); err != nil {
		e.logger.Warn("failed to record turn", "session_id", sessionID, "error", err)
	}
	if err := e.sessions.UpdateFocusEntities(sessionID, sq.Entities); err != nil {
		e.logger.Warn("failed to update focus entities", "session_id", sessionID, "error", err)
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	if err := e.sessions.MarkRetrieved(sessionID, ids...); err != nil {
		e.logger.Warn("failed to mark retrieved items", "session_id", sessionID, "error", err)
	}
}
