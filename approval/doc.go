// Package approval implements the human approval workflow: request creation
// under capacity and rate limits, a write-once PENDING to terminal state
// machine with expiry timers, one-shot waiter delivery, and pluggable
// persistence (in-memory or Redis).
package approval
