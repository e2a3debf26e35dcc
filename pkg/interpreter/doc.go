// Package interpreter turns one user utterance plus session context into a
// structured query: intent, entities, keywords, time window, filters, a
// coreference-free resolved query string, and a confidence score.
//
// Classification is delegated to a language-model oracle. The oracle's
// response is parsed defensively: on any failure the interpreter degrades to
// a semantic search over the raw utterance rather than surfacing an error.
package interpreter
