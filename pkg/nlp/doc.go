// Package nlp provides language model clients used for query interpretation
// and answer generation. The Client interface abstracts the provider; the
// OpenAI implementation also serves any OpenAI-compatible endpoint through a
// custom base URL. A circuit breaker wrapper guards against cascading
// failures when the upstream service degrades.
package nlp
