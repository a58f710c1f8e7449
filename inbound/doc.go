// Package inbound handles provider-originated callbacks: unlink and
// revocation notices the OAuth providers push to the service rather than
// responses the service fetched itself.
//
// Deliveries use claim/complete/fail idempotency semantics so transient
// handler failures remain retryable while redeliveries dedupe cleanly.
package inbound
