// Package narratex is a conversational retrieval engine over layered video
// transcript knowledge bases. An ingestion pipeline (external to this
// module) distills a video into atoms, narrative segments, entities, topics
// and a knowledge graph; narratex answers natural language questions over
// that snapshot, maintaining per-session conversation context.
//
// The Engine composes the pieces: a read-only knowledge base store, a
// session store, a query interpreter backed by a language-model oracle, a
// multi-strategy retrieval orchestrator, and an answer generator. Each
// piece is also usable on its own through the pkg/ subpackages.
package narratex
