package resolver

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/chainreact/pushgate/internal/domain"
	"github.com/chainreact/pushgate/internal/testutil"
)

type mockStore struct {
	triggers map[string]domain.TriggerResource
	failWith error
}

func (s *mockStore) GetTriggerBySubscription(ctx context.Context, subscriptionID, providerName string, kind domain.ResourceKind) (domain.TriggerResource, error) {
	if s.failWith != nil {
		return domain.TriggerResource{}, s.failWith
	}
	trig, ok := s.triggers[subscriptionID]
	if !ok {
		return domain.TriggerResource{}, sql.ErrNoRows
	}
	return trig, nil
}

func newTrigger(subscriptionID, clientState string) domain.TriggerResource {
	return domain.TriggerResource{
		ID:             testutil.MustParseUUID("11111111-1111-1111-1111-111111111111"),
		UserID:         testutil.MustParseUUID("22222222-2222-2222-2222-222222222222"),
		WorkflowID:     testutil.MustParseUUID("33333333-3333-3333-3333-333333333333"),
		Type:           domain.TriggerMailReceived,
		Provider:       "microsoft",
		SubscriptionID: subscriptionID,
		ClientState:    clientState,
	}
}

func TestResolve_Known(t *testing.T) {
	store := &mockStore{triggers: map[string]domain.TriggerResource{
		"sub-1": newTrigger("sub-1", "secret"),
	}}
	r := New(store, "microsoft")

	trig, err := r.Resolve(context.Background(), domain.Envelope{
		SubscriptionID: "sub-1",
		ClientState:    "secret",
	})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if trig.SubscriptionID != "sub-1" {
		t.Errorf("resolved wrong trigger: %s", trig.SubscriptionID)
	}
}

func TestResolve_UnknownSubscription(t *testing.T) {
	r := New(&mockStore{triggers: map[string]domain.TriggerResource{}}, "microsoft")

	_, err := r.Resolve(context.Background(), domain.Envelope{SubscriptionID: "orphan"})
	if !errors.Is(err, ErrUnknownSubscription) {
		t.Errorf("expected ErrUnknownSubscription, got %v", err)
	}
}

func TestResolve_SecretMismatch(t *testing.T) {
	store := &mockStore{triggers: map[string]domain.TriggerResource{
		"sub-1": newTrigger("sub-1", "secret"),
	}}
	r := New(store, "microsoft")

	_, err := r.Resolve(context.Background(), domain.Envelope{
		SubscriptionID: "sub-1",
		ClientState:    "wrong",
	})
	if !errors.Is(err, ErrSecretMismatch) {
		t.Errorf("expected ErrSecretMismatch, got %v", err)
	}
}

func TestResolve_SecretMissingOnEitherSide(t *testing.T) {
	tests := []struct {
		name      string
		stored    string
		delivered string
	}{
		{"no stored secret", "", "anything"},
		{"no delivered secret", "secret", ""},
		{"neither", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockStore{triggers: map[string]domain.TriggerResource{
				"sub-1": newTrigger("sub-1", tt.stored),
			}}
			r := New(store, "microsoft")

			_, err := r.Resolve(context.Background(), domain.Envelope{
				SubscriptionID: "sub-1",
				ClientState:    tt.delivered,
			})
			if err != nil {
				t.Errorf("secret check should only apply when both sides carry one, got %v", err)
			}
		})
	}
}

func TestResolve_StoreErrorPropagates(t *testing.T) {
	store := &mockStore{failWith: errors.New("connection refused")}
	r := New(store, "microsoft")

	_, err := r.Resolve(context.Background(), domain.Envelope{SubscriptionID: "sub-1"})
	if err == nil || errors.Is(err, ErrUnknownSubscription) {
		t.Errorf("infrastructure errors must not be mistaken for unknown subscriptions, got %v", err)
	}
}
