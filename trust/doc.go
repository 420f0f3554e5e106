// Package trust implements the trust progression engine: behavioral metric
// aggregation over bounded rolling windows, composite score calculation,
// promotion/demotion decisions against per-level thresholds, and anomaly
// detection that can force automatic safety demotions.
//
// Trust levels move only through Engine.PromoteTrustLevel and
// Engine.DemoteTrustLevel; nothing sets a level directly.
package trust
