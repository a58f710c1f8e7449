package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-identity/core"
	"github.com/google/uuid"
)

const (
	DeliveryStatusPending    = "pending"
	DeliveryStatusProcessing = "processing"
	DeliveryStatusProcessed  = "processed"
	DeliveryStatusRetryReady = "retry_ready"
	DeliveryStatusDead       = "dead"
)

// Event types published by the identity service.
const (
	EventUserJoined     = "user.joined"
	EventUserDeleted    = "user.deleted"
	EventSessionRevoked = "session.revoked"
	EventSocialUnlinked = "social.unlinked"
)

// Event is one identity occurrence to fan out to subscribers.
type Event struct {
	ID         string
	Type       string
	Principal  core.PrincipalRef
	OccurredAt time.Time
	Data       map[string]any
}

// Subscription is one registered endpoint. An empty EventTypes list
// subscribes to everything.
type Subscription struct {
	ID         string
	URL        string
	Secret     string
	EventTypes []string
}

func (s Subscription) Wants(eventType string) bool {
	if len(s.EventTypes) == 0 {
		return true
	}
	for _, t := range s.EventTypes {
		if strings.EqualFold(strings.TrimSpace(t), strings.TrimSpace(eventType)) {
			return true
		}
	}
	return false
}

type DeliveryRecord struct {
	ID             string
	ClaimID        string
	SubscriptionID string
	EventID        string
	Status         string
	Attempts       int
	NextAttemptAt  *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type DeliveryLedger interface {
	Claim(
		ctx context.Context,
		subscriptionID string,
		eventID string,
		payload []byte,
		lease time.Duration,
	) (DeliveryRecord, bool, error)
	Get(ctx context.Context, subscriptionID string, eventID string) (DeliveryRecord, error)
	Complete(ctx context.Context, claimID string) error
	Fail(ctx context.Context, claimID string, cause error, nextAttemptAt time.Time, maxAttempts int) error
}

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type RetryPolicy interface {
	NextDelay(attempt int) time.Duration
}

type ExponentialRetryPolicy struct {
	Initial time.Duration
	Max     time.Duration
}

func (p ExponentialRetryPolicy) NextDelay(attempt int) time.Duration {
	initial := p.Initial
	if initial <= 0 {
		initial = time.Second
	}
	maximum := p.Max
	if maximum <= 0 {
		maximum = 30 * time.Second
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maximum {
			return maximum
		}
	}
	if delay > maximum {
		return maximum
	}
	return delay
}

type DeliveryResult struct {
	Delivered  bool
	StatusCode int
	Metadata   map[string]any
}

type Processor struct {
	Client      HTTPDoer
	Ledger      DeliveryLedger
	Signer      *Signer
	Burst       BurstController
	RetryPolicy RetryPolicy
	ClaimLease  time.Duration
	MaxAttempts int
	Now         func() time.Time
}

func NewProcessor(client HTTPDoer, ledger DeliveryLedger) *Processor {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Processor{
		Client:      client,
		Ledger:      ledger,
		Signer:      NewSigner(""),
		RetryPolicy: ExponentialRetryPolicy{},
		ClaimLease:  30 * time.Second,
		MaxAttempts: 8,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Deliver posts the event to one subscription. Redelivery of an already
// processed event settles without another POST; a failed POST reopens the
// ledger entry with a backoff delay.
func (p *Processor) Deliver(ctx context.Context, sub Subscription, event Event) (DeliveryResult, error) {
	if p == nil || p.Ledger == nil || p.Client == nil {
		return DeliveryResult{}, fmt.Errorf("webhooks: processor requires client and ledger")
	}
	sub.ID = strings.TrimSpace(sub.ID)
	sub.URL = strings.TrimSpace(sub.URL)
	event.ID = strings.TrimSpace(event.ID)
	event.Type = strings.TrimSpace(event.Type)
	if sub.ID == "" || sub.URL == "" {
		return DeliveryResult{}, fmt.Errorf("webhooks: subscription id and url are required")
	}
	if event.ID == "" || event.Type == "" {
		return DeliveryResult{}, fmt.Errorf("webhooks: event id and type are required")
	}
	if !sub.Wants(event.Type) {
		return DeliveryResult{
			Delivered: false,
			Metadata:  map[string]any{"skipped": true, "event_type": event.Type},
		}, nil
	}

	payload, err := json.Marshal(map[string]any{
		"id":          event.ID,
		"type":        event.Type,
		"occurred_at": event.OccurredAt.UTC().Format(time.RFC3339Nano),
		"principal": map[string]any{
			"kind": string(event.Principal.Kind),
			"uid":  event.Principal.UID,
		},
		"data": event.Data,
	})
	if err != nil {
		return DeliveryResult{}, fmt.Errorf("webhooks: marshal event payload: %w", err)
	}

	delivery, claimed, err := p.Ledger.Claim(ctx, sub.ID, event.ID, payload, p.claimLease())
	if err != nil {
		return DeliveryResult{}, err
	}
	if !claimed {
		return DeliveryResult{
			Delivered: true,
			Metadata: map[string]any{
				"subscription_id": sub.ID,
				"event_id":        event.ID,
				"status":          delivery.Status,
				"deduped":         true,
			},
		}, nil
	}

	if p.Burst != nil {
		decision, burstErr := p.Burst.Allow(ctx, sub, event)
		if burstErr != nil {
			return DeliveryResult{}, burstErr
		}
		if !decision.Allow {
			if markErr := p.Ledger.Complete(ctx, delivery.ClaimID); markErr != nil {
				return DeliveryResult{}, markErr
			}
			metadata := ensureMetadata(decision.Metadata)
			metadata["subscription_id"] = sub.ID
			metadata["event_id"] = event.ID
			return DeliveryResult{Delivered: true, Metadata: metadata}, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.URL, bytes.NewReader(payload))
	if err != nil {
		return DeliveryResult{}, fmt.Errorf("webhooks: build delivery request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Identity-Event", event.Type)
	req.Header.Set("X-Identity-Delivery", event.ID)
	if signer := p.signer(sub); signer != nil {
		req.Header.Set(signer.Header(), signer.Sign(payload))
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		p.reopen(ctx, delivery, fmt.Errorf("webhooks: post delivery: %w", err))
		return DeliveryResult{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		retryErr := fmt.Errorf("webhooks: subscriber returned status %d", resp.StatusCode)
		p.reopen(ctx, delivery, retryErr)
		return DeliveryResult{Delivered: false, StatusCode: resp.StatusCode}, retryErr
	}

	if err := p.Ledger.Complete(ctx, delivery.ClaimID); err != nil {
		return DeliveryResult{}, err
	}
	return DeliveryResult{
		Delivered:  true,
		StatusCode: resp.StatusCode,
		Metadata: map[string]any{
			"subscription_id": sub.ID,
			"event_id":        event.ID,
		},
	}, nil
}

func (p *Processor) reopen(ctx context.Context, delivery DeliveryRecord, cause error) {
	nextAttemptAt := p.now().Add(p.retryPolicy().NextDelay(delivery.Attempts))
	_ = p.Ledger.Fail(ctx, delivery.ClaimID, cause, nextAttemptAt, p.maxAttempts())
}

func (p *Processor) signer(sub Subscription) *Signer {
	if strings.TrimSpace(sub.Secret) != "" {
		return NewSigner(sub.Secret)
	}
	if p.Signer != nil && p.Signer.Configured() {
		return p.Signer
	}
	return nil
}

func (p *Processor) now() time.Time {
	if p != nil && p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func (p *Processor) retryPolicy() RetryPolicy {
	if p != nil && p.RetryPolicy != nil {
		return p.RetryPolicy
	}
	return ExponentialRetryPolicy{}
}

func (p *Processor) claimLease() time.Duration {
	if p != nil && p.ClaimLease > 0 {
		return p.ClaimLease
	}
	return 30 * time.Second
}

func (p *Processor) maxAttempts() int {
	if p != nil && p.MaxAttempts > 0 {
		return p.MaxAttempts
	}
	return 8
}

// NewEvent stamps an event with an id and timestamp.
func NewEvent(eventType string, principal core.PrincipalRef, data map[string]any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Principal:  principal,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

func ensureMetadata(metadata map[string]any) map[string]any {
	if len(metadata) == 0 {
		return map[string]any{}
	}
	return metadata
}

type ledgerEntry struct {
	Record  DeliveryRecord
	Payload []byte
	Lease   time.Time
}

// MemoryDeliveryLedger is the in-process ledger used by tests and single
// node deployments.
type MemoryDeliveryLedger struct {
	mu      sync.Mutex
	entries map[string]*ledgerEntry
	claims  map[string]string
	nextID  int
	Now     func() time.Time
}

func NewMemoryDeliveryLedger() *MemoryDeliveryLedger {
	return &MemoryDeliveryLedger{
		entries: map[string]*ledgerEntry{},
		claims:  map[string]string{},
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func ledgerKey(subscriptionID string, eventID string) string {
	return strings.TrimSpace(subscriptionID) + "|" + strings.TrimSpace(eventID)
}

func (l *MemoryDeliveryLedger) Claim(
	_ context.Context,
	subscriptionID string,
	eventID string,
	payload []byte,
	lease time.Duration,
) (DeliveryRecord, bool, error) {
	if l == nil {
		return DeliveryRecord{}, false, fmt.Errorf("webhooks: ledger is nil")
	}
	subscriptionID = strings.TrimSpace(subscriptionID)
	eventID = strings.TrimSpace(eventID)
	if subscriptionID == "" || eventID == "" {
		return DeliveryRecord{}, false, fmt.Errorf("webhooks: subscription id and event id are required")
	}
	if lease <= 0 {
		lease = 30 * time.Second
	}
	now := l.now()
	key := ledgerKey(subscriptionID, eventID)

	l.mu.Lock()
	defer l.mu.Unlock()
	entry, exists := l.entries[key]
	if !exists {
		l.nextID++
		claimID := fmt.Sprintf("delivery_claim_%d", l.nextID)
		record := DeliveryRecord{
			ID:             fmt.Sprintf("delivery_%d", l.nextID),
			ClaimID:        claimID,
			SubscriptionID: subscriptionID,
			EventID:        eventID,
			Status:         DeliveryStatusProcessing,
			Attempts:       1,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		l.entries[key] = &ledgerEntry{Record: record, Payload: payload, Lease: now.Add(lease)}
		l.claims[claimID] = key
		return record, true, nil
	}

	record := entry.Record
	switch record.Status {
	case DeliveryStatusProcessed, DeliveryStatusDead:
		return record, false, nil
	case DeliveryStatusProcessing:
		if now.Before(entry.Lease) {
			return record, false, nil
		}
	case DeliveryStatusRetryReady:
		if record.NextAttemptAt != nil && now.Before(*record.NextAttemptAt) {
			return record, false, nil
		}
	}

	if record.ClaimID != "" {
		delete(l.claims, record.ClaimID)
	}
	l.nextID++
	claimID := fmt.Sprintf("delivery_claim_%d", l.nextID)
	record.ClaimID = claimID
	record.Status = DeliveryStatusProcessing
	record.Attempts++
	record.NextAttemptAt = nil
	record.UpdatedAt = now
	entry.Record = record
	entry.Payload = payload
	entry.Lease = now.Add(lease)
	l.claims[claimID] = key
	return record, true, nil
}

func (l *MemoryDeliveryLedger) Get(
	_ context.Context,
	subscriptionID string,
	eventID string,
) (DeliveryRecord, error) {
	if l == nil {
		return DeliveryRecord{}, fmt.Errorf("webhooks: ledger is nil")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[ledgerKey(subscriptionID, eventID)]
	if !ok {
		return DeliveryRecord{}, fmt.Errorf("webhooks: delivery not found")
	}
	return entry.Record, nil
}

func (l *MemoryDeliveryLedger) Complete(_ context.Context, claimID string) error {
	if l == nil {
		return fmt.Errorf("webhooks: ledger is nil")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	key, ok := l.claims[strings.TrimSpace(claimID)]
	if !ok {
		return nil
	}
	entry := l.entries[key]
	if entry == nil || entry.Record.ClaimID != claimID {
		delete(l.claims, claimID)
		return nil
	}
	entry.Record.Status = DeliveryStatusProcessed
	entry.Record.UpdatedAt = l.now()
	delete(l.claims, claimID)
	return nil
}

func (l *MemoryDeliveryLedger) Fail(
	_ context.Context,
	claimID string,
	_ error,
	nextAttemptAt time.Time,
	maxAttempts int,
) error {
	if l == nil {
		return fmt.Errorf("webhooks: ledger is nil")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	key, ok := l.claims[strings.TrimSpace(claimID)]
	if !ok {
		return nil
	}
	entry := l.entries[key]
	if entry == nil || entry.Record.ClaimID != claimID {
		delete(l.claims, claimID)
		return nil
	}
	now := l.now()
	if maxAttempts > 0 && entry.Record.Attempts >= maxAttempts {
		entry.Record.Status = DeliveryStatusDead
		entry.Record.NextAttemptAt = nil
	} else {
		entry.Record.Status = DeliveryStatusRetryReady
		value := nextAttemptAt.UTC()
		entry.Record.NextAttemptAt = &value
	}
	entry.Record.UpdatedAt = now
	delete(l.claims, claimID)
	return nil
}

func (l *MemoryDeliveryLedger) now() time.Time {
	if l != nil && l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}

var _ DeliveryLedger = (*MemoryDeliveryLedger)(nil)
