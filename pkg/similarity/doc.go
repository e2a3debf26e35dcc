// Package similarity provides text embedding clients and an in-memory
// cosine-similarity index over knowledge base content.
//
// The Embedder interface abstracts the provider; the OpenAI implementation
// batches requests internally. The Index embeds every atom and segment once
// and answers nearest-neighbour queries against those vectors.
package similarity
