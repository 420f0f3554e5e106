// Package types defines the shared domain types of the TrustFlow framework:
// trust levels, behavioral metrics, severities, and the unified error taxonomy.
//
// All other packages depend on types; types depends on nothing but the
// standard library.
package types
