package service

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/alexandre-rey/utodo-sub000/internal/api"
	"github.com/alexandre-rey/utodo-sub000/internal/model"
)

// SubscriptionService exposes the billing state. Subscription data is derived
// server state: unauthenticated (and remote-failure) reads report the free
// plan, and mutations require authentication.
type SubscriptionService struct {
	vault  *api.Vault
	client *api.Client
	log    *zap.Logger
}

// NewSubscriptionService constructs the subscription service.
func NewSubscriptionService(vault *api.Vault, client *api.Client, log *zap.Logger) *SubscriptionService {
	return &SubscriptionService{vault: vault, client: client, log: log}
}

// localSubscription is what an unauthenticated profile reports.
func localSubscription() model.Subscription {
	return model.Subscription{Plan: model.PlanFree, Status: model.SubActive}
}

// Status returns the current subscription.
func (s *SubscriptionService) Status(ctx context.Context) (model.Subscription, error) {
	if !s.vault.Authenticated() {
		return localSubscription(), nil
	}
	var sub model.Subscription
	if err := s.client.Do(ctx, http.MethodGet, "/subscription/status", nil, &sub); err != nil {
		s.log.Warn("subscription: remote status failed, reporting free plan", zap.Error(err))
		return localSubscription(), nil
	}
	return sub, nil
}

// Create starts a subscription for the given price.
func (s *SubscriptionService) Create(ctx context.Context, priceID string) (model.Subscription, error) {
	var sub model.Subscription
	body := map[string]string{"priceId": priceID}
	if err := s.client.Do(ctx, http.MethodPost, "/subscription", body, &sub); err != nil {
		return model.Subscription{}, err
	}
	return sub, nil
}

// Cancel cancels the current subscription.
func (s *SubscriptionService) Cancel(ctx context.Context) error {
	return s.client.Do(ctx, http.MethodDelete, "/subscription", nil, nil)
}

// Reactivate restores a cancelled subscription.
func (s *SubscriptionService) Reactivate(ctx context.Context) (model.Subscription, error) {
	var sub model.Subscription
	if err := s.client.Do(ctx, http.MethodPost, "/subscription/reactivate", nil, &sub); err != nil {
		return model.Subscription{}, err
	}
	return sub, nil
}
