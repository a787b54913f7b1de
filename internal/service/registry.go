package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/alexandre-rey/utodo-sub000/internal/api"
	"github.com/alexandre-rey/utodo-sub000/internal/config"
	"github.com/alexandre-rey/utodo-sub000/internal/limiter"
	"github.com/alexandre-rey/utodo-sub000/internal/limits"
	"github.com/alexandre-rey/utodo-sub000/internal/store"
	"github.com/alexandre-rey/utodo-sub000/internal/syncer"
)

// Registry is the explicitly constructed application context: all services
// and their shared collaborators, wired once at bootstrap and torn down with
// Close. Nothing in this module relies on package-level state.
type Registry struct {
	Store        *store.Store
	Vault        *api.Vault
	Client       *api.Client
	Gate         *limits.Gate
	Sync         *syncer.Coordinator
	Todos        *TodoService
	Settings     *SettingsService
	Subscription *SubscriptionService
	Statuses     *StatusFlow
	Auth         *AuthManager
}

// NewRegistry wires the full service graph from configuration.
func NewRegistry(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Registry, error) {
	st, err := store.Open(store.Config{Path: cfg.DataDir}, log)
	if err != nil {
		return nil, err
	}
	return build(ctx, st, cfg, log), nil
}

// NewRegistryWithStore wires the graph over an existing store (tests).
func NewRegistryWithStore(ctx context.Context, st *store.Store, cfg *config.Config, log *zap.Logger) *Registry {
	return build(ctx, st, cfg, log)
}

func build(ctx context.Context, st *store.Store, cfg *config.Config, log *zap.Logger) *Registry {
	vault := api.NewVault(st, log)
	client := api.New(cfg.BaseURL, cfg.HTTPTimeout, vault, log)

	gate := limits.NewGate(vault, client, log)
	sync := syncer.New(st, client, log)

	locSettings := newLocalSettings(st)
	settings := NewSettingsService(vault, newRemoteSettings(client), locSettings, log)
	todos := NewTodoService(vault, newRemoteTodos(client), newLocalTodos(st, locSettings), log)
	subs := NewSubscriptionService(vault, client, log)
	statuses := NewStatusFlow(todos, settings, gate, log)

	lim := limiter.NewMemory(15*time.Minute, 5, 15*time.Minute)
	auth := NewAuthManager(client, vault, sync, gate, settings, subs, lim, log)

	if s, err := settings.Get(ctx); err == nil {
		gate.Prime(len(s.Statuses))
	}
	if vault.Authenticated() {
		if sub, err := subs.Status(ctx); err == nil {
			gate.SetPlan(sub.Plan)
		}
	}

	return &Registry{
		Store:        st,
		Vault:        vault,
		Client:       client,
		Gate:         gate,
		Sync:         sync,
		Todos:        todos,
		Settings:     settings,
		Subscription: subs,
		Statuses:     statuses,
		Auth:         auth,
	}
}

// Close releases held resources.
func (r *Registry) Close() error { return r.Store.Close() }
