// Package webhooks delivers identity events to subscriber endpoints:
// joins, account deletions, session revocations, provider unlinks.
//
// Delivery processing is driven by a claim lifecycle:
// pending/retry_ready -> processing -> processed|dead.
// This makes retries and crash-recovery explicit and prevents transient
// failures from being deduped as permanently processed.
package webhooks
