// Command trustflow runs the trust progression service: the trust engine,
// approval workflow, task coordinator, and decision ledger wired together
// behind a metrics/health HTTP endpoint.
package main
