// Package core implements the identity and session domain: signed session
// tokens for local accounts, dual-backed session storage (TTL cache plus a
// durable table), token validation across local and social credentials,
// OAuth identity reconciliation, and compensation for profile mutations
// that notify an external enrichment service.
package core
