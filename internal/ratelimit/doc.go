// Package ratelimit enforces per-resource-key request budgets for agent
// (re)starts. A key typically identifies a provider+model pair, so agents
// sharing a provider quota share one budget.
//
// Admission is delay-only: Acquire blocks until a slot is available in the
// key's sliding window, or until the context is cancelled. It never denies.
// Contending callers are served in arrival order so no agent can starve its
// siblings on a scarce shared quota.
//
// Limiter state is process-wide and persists across coordination rounds.
package ratelimit
