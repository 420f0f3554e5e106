// Package ledger records agent sessions and the decisions made within them:
// session lifecycle transitions, an append-only decision audit log with
// feedback and execution tracking, and trailing-window aggregation feeding
// the trust engine. Stores are versioned for optimistic concurrency.
package ledger
