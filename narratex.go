package narratex

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/narratex/narratex/pkg/answer"
	"github.com/narratex/narratex/pkg/interpreter"
	"github.com/narratex/narratex/pkg/kb"
	"github.com/narratex/narratex/pkg/nlp"
	"github.com/narratex/narratex/pkg/retrieval"
	"github.com/narratex/narratex/pkg/session"
	"github.com/narratex/narratex/pkg/similarity"
	"github.com/narratex/narratex/pkg/types"
)

// Config holds configuration for the Engine.
type Config struct {
	// KBDir is the root directory of the knowledge base snapshot.
	KBDir string
	// MaxTurns bounds per-session history (in turn pairs).
	MaxTurns int
	// TopK bounds each retrieval's result list.
	TopK int
	// SessionPersistPath, when set, enables durable session storage.
	SessionPersistPath string
	// CacheSize and CacheTTL configure the retrieval result cache.
	// CacheSize <= 0 disables it.
	CacheSize int
	CacheTTL  time.Duration
}

// Engine is the top-level conversational interface.
type Engine struct {
	kb        *kb.Store
	sessions  *session.Store
	interp    *interpreter.Interpreter
	retriever *retrieval.Orchestrator
	generator *answer.Generator
	logger    *slog.Logger
	topK      int
}

// NewEngine wires an engine over the knowledge base at cfg.KBDir. The
// oracle client drives query interpretation and answer generation; the
// embedder, when non-nil, enables the similarity strategy.
func NewEngine(cfg Config, oracle nlp.Client, embedder similarity.Embedder, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TopK <= 0 {
		cfg.TopK = retrieval.DefaultTopK
	}

	store, err := kb.NewStore(cfg.KBDir, logger)
	if err != nil {
		return nil, fmt.Errorf("open knowledge base: %w", err)
	}

	var sessionOpts []session.Option
	if cfg.SessionPersistPath != "" {
		persister, err := session.NewBadgerPersister(cfg.SessionPersistPath)
		if err != nil {
			return nil, fmt.Errorf("open session storage: %w", err)
		}
		sessionOpts = append(sessionOpts, session.WithPersister(persister))
	}
	sessions := session.NewStore(cfg.MaxTurns, logger, sessionOpts...)

	retrievalOpts := []retrieval.Option{
		retrieval.WithCache(cfg.CacheSize, cfg.CacheTTL),
	}
	if embedder != nil {
		retrievalOpts = append(retrievalOpts, retrieval.WithSearcher(similarity.NewIndex(store, embedder, logger)))
	}

	return &Engine{
		kb:        store,
		sessions:  sessions,
		interp:    interpreter.New(oracle, sessions, logger),
		retriever: retrieval.New(store, logger, retrievalOpts...),
		generator: answer.New(oracle, logger),
		logger:    logger,
		topK:      cfg.TopK,
	}, nil
}

// KB exposes the underlying knowledge base store.
func (e *Engine) KB() *kb.Store {
	return e.kb
}

// Sessions exposes the underlying session store.
func (e *Engine) Sessions() *session.Store {
	return e.sessions
}

// NewSession creates a session bound to the engine's knowledge base.
func (e *Engine) NewSession(mode types.Mode, id string) (*types.Session, error) {
	md, err := e.kb.Metadata()
	if err != nil {
		return nil, fmt.Errorf("knowledge base metadata: %w", err)
	}
	return e.sessions.Create(md.VideoID, mode, id)
}

// History returns the turn history of a session.
func (e *Engine) History(sessionID string) ([]types.Message, error) {
	sess, err := e.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.History, nil
}

// Metadata summarizes the knowledge base snapshot.
func (e *Engine) Metadata() (*types.VideoMetadata, error) {
	return e.kb.Metadata()
}

// Close releases engine resources.
func (e *Engine) Close() error {
	return e.sessions.Close()
}
