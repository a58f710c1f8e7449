package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goliatone/go-identity/core"
)

func testPrincipal() core.PrincipalRef {
	return core.PrincipalRef{Kind: core.PrincipalLocal, UID: 42}
}

func TestProcessor_DeliversSignedPayload(t *testing.T) {
	ctx := context.Background()

	var posts int32
	var gotBody []byte
	var gotHeaders http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&posts, 1)
		body, _ := io.ReadAll(r.Body)
		gotBody = body
		gotHeaders = r.Header.Clone()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	processor := NewProcessor(server.Client(), NewMemoryDeliveryLedger())
	sub := Subscription{ID: "sub-1", URL: server.URL, Secret: "delivery-secret"}
	event := Event{
		ID:         "evt-1",
		Type:       EventUserJoined,
		Principal:  testPrincipal(),
		OccurredAt: time.Unix(1_700_000_000, 0).UTC(),
		Data:       map[string]any{"user_id": "jane"},
	}

	result, err := processor.Deliver(ctx, sub, event)
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if !result.Delivered || result.StatusCode != http.StatusNoContent {
		t.Fatalf("unexpected result %+v", result)
	}
	if atomic.LoadInt32(&posts) != 1 {
		t.Fatalf("expected one POST, got %d", posts)
	}

	if got := gotHeaders.Get("X-Identity-Event"); got != EventUserJoined {
		t.Fatalf("unexpected event header %q", got)
	}
	if got := gotHeaders.Get("X-Identity-Delivery"); got != "evt-1" {
		t.Fatalf("unexpected delivery header %q", got)
	}
	signature := gotHeaders.Get("X-Identity-Signature")
	if signature == "" {
		t.Fatalf("expected signature header")
	}
	if err := VerifySignature("delivery-secret", gotBody, signature); err != nil {
		t.Fatalf("verify signature: %v", err)
	}
	if err := VerifySignature("wrong-secret", gotBody, signature); err == nil {
		t.Fatalf("expected signature mismatch with wrong secret")
	}

	var payload struct {
		ID        string `json:"id"`
		Type      string `json:"type"`
		Principal struct {
			Kind string `json:"kind"`
			UID  int64  `json:"uid"`
		} `json:"principal"`
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(gotBody, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.ID != "evt-1" || payload.Type != EventUserJoined {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if payload.Principal.Kind != string(core.PrincipalLocal) || payload.Principal.UID != 42 {
		t.Fatalf("unexpected principal %+v", payload.Principal)
	}
	if payload.Data["user_id"] != "jane" {
		t.Fatalf("unexpected data %v", payload.Data)
	}

	// Redelivery settles from the ledger without another POST.
	again, err := processor.Deliver(ctx, sub, event)
	if err != nil {
		t.Fatalf("redeliver: %v", err)
	}
	if !again.Delivered || again.Metadata["deduped"] != true {
		t.Fatalf("expected deduped redelivery, got %+v", again)
	}
	if atomic.LoadInt32(&posts) != 1 {
		t.Fatalf("expected dedupe to skip POST, got %d posts", posts)
	}
}

func TestProcessor_SubscriptionFiltersEventTypes(t *testing.T) {
	ctx := context.Background()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Fatalf("filtered event must not reach the subscriber")
	}))
	defer server.Close()

	processor := NewProcessor(server.Client(), NewMemoryDeliveryLedger())
	sub := Subscription{ID: "sub-1", URL: server.URL, EventTypes: []string{EventUserDeleted}}

	result, err := processor.Deliver(ctx, sub, NewEvent(EventUserJoined, testPrincipal(), nil))
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if result.Delivered || result.Metadata["skipped"] != true {
		t.Fatalf("expected skipped result, got %+v", result)
	}
}

func TestProcessor_FailedDeliveryRetriesThenDies(t *testing.T) {
	ctx := context.Background()

	var posts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&posts, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	now := time.Unix(1_700_000_000, 0).UTC()
	ledger := NewMemoryDeliveryLedger()
	ledger.Now = func() time.Time { return now }

	processor := NewProcessor(server.Client(), ledger)
	processor.MaxAttempts = 2
	processor.Now = func() time.Time { return now }

	sub := Subscription{ID: "sub-1", URL: server.URL}
	event := Event{ID: "evt-1", Type: EventSessionRevoked, Principal: testPrincipal(), OccurredAt: now}

	if _, err := processor.Deliver(ctx, sub, event); err == nil {
		t.Fatalf("expected delivery failure")
	}
	record, err := ledger.Get(ctx, sub.ID, event.ID)
	if err != nil {
		t.Fatalf("get delivery: %v", err)
	}
	if record.Status != DeliveryStatusRetryReady || record.Attempts != 1 {
		t.Fatalf("expected retry_ready after first failure, got %+v", record)
	}
	if record.NextAttemptAt == nil || !record.NextAttemptAt.After(now.Add(-time.Millisecond)) {
		t.Fatalf("expected next attempt scheduled, got %+v", record.NextAttemptAt)
	}

	// Before the backoff elapses the claim is held and nothing is posted.
	held, err := processor.Deliver(ctx, sub, event)
	if err != nil {
		t.Fatalf("deliver during backoff: %v", err)
	}
	if !held.Delivered || held.Metadata["deduped"] != true {
		t.Fatalf("expected backoff window to settle as dedupe, got %+v", held)
	}
	if atomic.LoadInt32(&posts) != 1 {
		t.Fatalf("expected backoff to suppress POST, got %d", posts)
	}

	// Past the backoff the delivery retries and, at MaxAttempts, goes dead.
	now = now.Add(time.Minute)
	if _, err := processor.Deliver(ctx, sub, event); err == nil {
		t.Fatalf("expected second delivery failure")
	}
	record, err = ledger.Get(ctx, sub.ID, event.ID)
	if err != nil {
		t.Fatalf("get delivery: %v", err)
	}
	if record.Status != DeliveryStatusDead || record.Attempts != 2 {
		t.Fatalf("expected dead delivery at max attempts, got %+v", record)
	}

	now = now.Add(time.Hour)
	dead, err := processor.Deliver(ctx, sub, event)
	if err != nil {
		t.Fatalf("deliver dead event: %v", err)
	}
	if dead.Metadata["status"] != DeliveryStatusDead {
		t.Fatalf("expected dead delivery to stay settled, got %+v", dead)
	}
	if atomic.LoadInt32(&posts) != 2 {
		t.Fatalf("expected dead deliveries to stop posting, got %d", posts)
	}
}

func TestProcessor_BurstCoalescesRapidEvents(t *testing.T) {
	ctx := context.Background()

	var posts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&posts, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	now := time.Unix(1_700_000_000, 0).UTC()
	processor := NewProcessor(server.Client(), NewMemoryDeliveryLedger())
	processor.Burst = NewBurstController(BurstOptions{
		Mode:   BurstModeCoalesce,
		Window: 5 * time.Second,
		Now:    func() time.Time { return now },
	})

	sub := Subscription{ID: "sub-1", URL: server.URL}
	principal := testPrincipal()

	first, err := processor.Deliver(ctx, sub, Event{ID: "evt-1", Type: EventSessionRevoked, Principal: principal, OccurredAt: now})
	if err != nil {
		t.Fatalf("deliver first: %v", err)
	}
	if !first.Delivered || atomic.LoadInt32(&posts) != 1 {
		t.Fatalf("expected first event posted, got %+v posts=%d", first, posts)
	}

	second, err := processor.Deliver(ctx, sub, Event{ID: "evt-2", Type: EventSessionRevoked, Principal: principal, OccurredAt: now})
	if err != nil {
		t.Fatalf("deliver second: %v", err)
	}
	if !second.Delivered || second.Metadata["coalesced"] != true {
		t.Fatalf("expected coalesced second event, got %+v", second)
	}
	if atomic.LoadInt32(&posts) != 1 {
		t.Fatalf("expected coalesced event to skip POST, got %d", posts)
	}

	// Same event type for a different account is not absorbed.
	other := core.PrincipalRef{Kind: core.PrincipalSocial, UID: 77}
	third, err := processor.Deliver(ctx, sub, Event{ID: "evt-3", Type: EventSessionRevoked, Principal: other, OccurredAt: now})
	if err != nil {
		t.Fatalf("deliver third: %v", err)
	}
	if !third.Delivered || atomic.LoadInt32(&posts) != 2 {
		t.Fatalf("expected distinct principal to deliver, got %+v posts=%d", third, posts)
	}

	now = now.Add(10 * time.Second)
	fourth, err := processor.Deliver(ctx, sub, Event{ID: "evt-4", Type: EventSessionRevoked, Principal: principal, OccurredAt: now})
	if err != nil {
		t.Fatalf("deliver fourth: %v", err)
	}
	if !fourth.Delivered || atomic.LoadInt32(&posts) != 3 {
		t.Fatalf("expected window expiry to deliver again, got %+v posts=%d", fourth, posts)
	}
}
