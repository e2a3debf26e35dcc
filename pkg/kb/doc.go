// Package kb provides cached, read-only access to one knowledge base
// snapshot: the atoms, segments, entities, topics, and graph records
// produced by the ingestion pipeline for a single video.
//
// Each record family is loaded lazily and memoized; a missing backing file
// yields an empty family rather than an error, since partially built
// knowledge bases are an expected operating condition. After load the store
// is append-free, so concurrent readers need no coordination.
package kb
