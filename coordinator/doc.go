// Package coordinator schedules tasks across a pool of registered agents:
// dependency-aware queueing, pluggable assignment strategies, per-agent
// concurrency caps, wall-clock task timeouts, dependency-cycle breaking, and
// stable resource-lock arbitration.
package coordinator
