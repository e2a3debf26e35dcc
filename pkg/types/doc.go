// Package types defines the shared data model for the narratex engine:
// the five knowledge-base record families (atoms, segments, entities,
// topics, graph), conversation sessions, structured queries, and the
// scored items produced by retrieval.
//
// Knowledge-base records are produced by the ingestion pipeline and are
// immutable once loaded; sessions are the only mutable records and are
// owned by the session store.
package types
