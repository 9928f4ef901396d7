package httpapi

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/tradefloor/tradefloor/internal/billing"
	"github.com/tradefloor/tradefloor/internal/domain"
	"github.com/tradefloor/tradefloor/internal/push"
)

func postWebhook(t *testing.T, h *harness, payload, signature string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/webhooks/billing", bytes.NewReader([]byte(payload)))
	if signature != "" {
		r.Header.Set("Stripe-Signature", signature)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, r)
	return w
}

func TestWebhookApplied(t *testing.T) {
	h := newHarness(t)

	var gotPayload []byte
	var gotSig string
	h.billing.handleFn = func(ctx context.Context, payload []byte, sigHeader string) (billing.Outcome, error) {
		gotPayload = payload
		gotSig = sigHeader
		return billing.OutcomeApplied, nil
	}

	w := postWebhook(t, h, `{"id":"evt_1","type":"customer.subscription.updated"}`, "t=1,v1=abc")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if gotSig != "t=1,v1=abc" {
		t.Errorf("expected signature header to pass through, got %q", gotSig)
	}
	if len(gotPayload) == 0 {
		t.Error("expected raw payload to pass through")
	}

	body := decodeBody(t, w)
	if body["received"] != true {
		t.Errorf("expected received true, got %v", body["received"])
	}
	if body["outcome"] != "applied" {
		t.Errorf("expected outcome applied, got %v", body["outcome"])
	}
}

func TestWebhookBadSignature(t *testing.T) {
	h := newHarness(t)
	h.billing.handleFn = func(ctx context.Context, payload []byte, sigHeader string) (billing.Outcome, error) {
		return "", billing.ErrInvalidSignature
	}

	w := postWebhook(t, h, `{"id":"evt_1"}`, "t=1,v1=bad")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
}

func TestWebhookStaleTimestamp(t *testing.T) {
	h := newHarness(t)
	h.billing.handleFn = func(ctx context.Context, payload []byte, sigHeader string) (billing.Outcome, error) {
		return "", billing.ErrStaleTimestamp
	}

	w := postWebhook(t, h, `{"id":"evt_1"}`, "t=1,v1=old")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
}

func TestWebhookMalformedEvent(t *testing.T) {
	h := newHarness(t)
	h.billing.handleFn = func(ctx context.Context, payload []byte, sigHeader string) (billing.Outcome, error) {
		return "", billing.ErrMalformedEvent
	}

	w := postWebhook(t, h, `not-json`, "t=1,v1=abc")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
}

func TestWebhookReplayAcknowledged(t *testing.T) {
	h := newHarness(t)
	h.billing.handleFn = func(ctx context.Context, payload []byte, sigHeader string) (billing.Outcome, error) {
		return billing.OutcomeReplay, nil
	}

	w := postWebhook(t, h, `{"id":"evt_dup"}`, "t=1,v1=abc")
	if w.Code != http.StatusOK {
		t.Fatalf("replayed deliveries must still acknowledge, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["outcome"] != "replay" {
		t.Errorf("expected outcome replay, got %v", body["outcome"])
	}
}

func TestWebhookSkipsBearerAuth(t *testing.T) {
	h := newHarness(t)
	h.billing.handleFn = func(ctx context.Context, payload []byte, sigHeader string) (billing.Outcome, error) {
		return billing.OutcomeIgnored, nil
	}

	// No Authorization header; the route must not sit behind the auth group.
	w := postWebhook(t, h, `{"id":"evt_1","type":"invoice.paid"}`, "t=1,v1=abc")
	if w.Code == http.StatusUnauthorized {
		t.Fatal("webhook route must not require bearer auth")
	}
}

func TestPushSubscribe(t *testing.T) {
	h := newHarness(t)

	h.push.subscribeFn = func(ctx context.Context, userID uuid.UUID, endpoint, p256dh, authKey string) (*domain.PushSubscription, error) {
		if endpoint != "https://push.example.com/sub/abc" {
			t.Errorf("unexpected endpoint %q", endpoint)
		}
		if p256dh != "key-p256dh" || authKey != "key-auth" {
			t.Errorf("expected keys to pass through, got %q %q", p256dh, authKey)
		}
		return &domain.PushSubscription{ID: uuid.New(), UserID: userID, Endpoint: endpoint}, nil
	}

	w := h.do(t, http.MethodPost, "/api/push/subscriptions", h.token, map[string]interface{}{
		"endpoint": "https://push.example.com/sub/abc",
		"keys": map[string]string{
			"p256dh": "key-p256dh",
			"auth":   "key-auth",
		},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}
}

func TestPushSubscribeInvalid(t *testing.T) {
	h := newHarness(t)
	h.push.subscribeFn = func(ctx context.Context, userID uuid.UUID, endpoint, p256dh, authKey string) (*domain.PushSubscription, error) {
		return nil, push.ErrInvalidSubscription
	}

	w := h.do(t, http.MethodPost, "/api/push/subscriptions", h.token, map[string]interface{}{
		"endpoint": "",
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", w.Code)
	}
}

func TestPushUnsubscribe(t *testing.T) {
	h := newHarness(t)

	var gotEndpoint string
	h.push.unsubscribeFn = func(ctx context.Context, userID uuid.UUID, endpoint string) error {
		gotEndpoint = endpoint
		return nil
	}

	w := h.do(t, http.MethodDelete, "/api/push/subscriptions", h.token, map[string]string{
		"endpoint": "https://push.example.com/sub/abc",
	})
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", w.Code)
	}
	if gotEndpoint != "https://push.example.com/sub/abc" {
		t.Errorf("expected endpoint to pass through, got %q", gotEndpoint)
	}
}
