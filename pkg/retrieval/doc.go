// Package retrieval executes multi-strategy content retrieval against a
// knowledge base. A fixed table maps each query intent to an ordered list of
// strategies; the orchestrator fans them out concurrently, merges candidates
// by item id keeping the best score, applies the query's filters, ranks, and
// returns the top-k items.
//
// A failing strategy is skipped rather than aborting the request. Empty
// results are a normal outcome, never an error.
package retrieval
