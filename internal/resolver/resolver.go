// Package resolver maps a provider subscription id to its owning trigger
// configuration and verifies the shared secret.
package resolver

import (
	"context"
	"crypto/hmac"
	"database/sql"
	"errors"
	"fmt"

	"github.com/chainreact/pushgate/internal/domain"
)

// ErrUnknownSubscription means no trigger configuration exists for the
// delivered subscription id. Expected when a provider subscription outlives
// its config row; the envelope is skipped, never the batch.
var ErrUnknownSubscription = errors.New("unknown subscription")

// ErrSecretMismatch means the envelope's clientState does not match the
// stored shared secret. Possible spoof; the envelope is skipped.
var ErrSecretMismatch = errors.New("client state mismatch")

type Store interface {
	GetTriggerBySubscription(ctx context.Context, subscriptionID, providerName string, kind domain.ResourceKind) (domain.TriggerResource, error)
}

type Resolver struct {
	store    Store
	provider string
}

func New(store Store, providerName string) *Resolver {
	return &Resolver{store: store, provider: providerName}
}

// Resolve looks up the trigger configuration owning the envelope's
// subscription and checks the shared secret. The secret check only applies
// when both sides carry one.
func (r *Resolver) Resolve(ctx context.Context, env domain.Envelope) (domain.TriggerResource, error) {
	trig, err := r.store.GetTriggerBySubscription(ctx, env.SubscriptionID, r.provider, domain.KindSubscription)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.TriggerResource{}, ErrUnknownSubscription
		}
		return domain.TriggerResource{}, fmt.Errorf("lookup subscription %s: %w", env.SubscriptionID, err)
	}

	if env.ClientState != "" && trig.ClientState != "" {
		if !hmac.Equal([]byte(env.ClientState), []byte(trig.ClientState)) {
			return domain.TriggerResource{}, ErrSecretMismatch
		}
	}

	return trig, nil
}
