// Package session owns the per-conversation mutable state: bounded turn
// history, focus-entity counters, and the set of item ids already surfaced
// to the user.
//
// Mutations against the same session id are serialized by a per-session
// lock; sessions are otherwise independent and never block one another.
// An optional Persister writes sessions through to durable storage so a
// server restart does not lose running conversations.
package session
