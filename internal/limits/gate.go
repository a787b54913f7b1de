// Package limits enforces the subscription-gated status-column limit with
// optimistic local accounting reconciled against server truth.
package limits

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/alexandre-rey/utodo-sub000/internal/api"
	"github.com/alexandre-rey/utodo-sub000/internal/errs"
	"github.com/alexandre-rey/utodo-sub000/internal/model"
)

// DefaultFreeLimit is the free-plan status-column cap used in local mode.
const DefaultFreeLimit = 3

// Gate tracks the status-column count against the plan limit. Mutations that
// change the count apply their delta optimistically and roll it back when the
// confirming call fails.
type Gate struct {
	mu     sync.Mutex
	limits model.StatusLimits
	plan   string

	vault  *api.Vault
	client *api.Client
	log    *zap.Logger
}

// NewGate constructs a gate starting in local free-plan mode with zero count;
// callers prime the count from settings at bootstrap.
func NewGate(vault *api.Vault, client *api.Client, log *zap.Logger) *Gate {
	g := &Gate{vault: vault, client: client, log: log, plan: model.PlanFree}
	g.limits = model.StatusLimits{Limit: DefaultFreeLimit}
	g.recompute()
	return g
}

// Limits returns a snapshot of the current count/limit pair.
func (g *Gate) Limits() model.StatusLimits {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.limits
}

// SetPlan records the current plan; premium bypasses the numeric limit.
func (g *Gate) SetPlan(plan string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.plan = plan
	g.recompute()
}

// Prime seeds the local count from the authoritative settings status count.
func (g *Gate) Prime(count int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.limits.Count = count
	g.recompute()
}

// ResetLocal reverts to local-mode defaults (logout).
func (g *Gate) ResetLocal(count int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.plan = model.PlanFree
	g.limits = model.StatusLimits{Count: count, Limit: DefaultFreeLimit}
	g.recompute()
}

// Allow reports whether one more status column may be created. At the limit
// it blocks with an upgrade prompt on the free plan and a plain limit message
// otherwise.
func (g *Gate) Allow() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.plan == model.PlanPremium {
		return nil
	}
	if g.limits.Count < g.limits.Limit {
		return nil
	}
	if g.plan == model.PlanFree {
		return fmt.Errorf("%w: upgrade to premium to add more status columns", errs.ErrLimitReached)
	}
	return fmt.Errorf("%w: status column limit reached", errs.ErrLimitReached)
}

// Apply adjusts the count by delta before confirm resolves, reverses the
// delta if confirm fails, and re-fetches authoritative limits on success.
func (g *Gate) Apply(ctx context.Context, delta int, confirm func(context.Context) error) error {
	g.shift(delta)
	if err := confirm(ctx); err != nil {
		g.shift(-delta)
		return err
	}
	if g.vault.Authenticated() {
		if err := g.Refresh(ctx); err != nil {
			g.log.Warn("limits: refresh after mutation failed", zap.Error(err))
		}
	}
	return nil
}

// Refresh replaces the local pair with the server's authoritative limits.
func (g *Gate) Refresh(ctx context.Context) error {
	var limits model.StatusLimits
	if err := g.client.Do(ctx, http.MethodGet, "/settings/status-limits", nil, &limits); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.limits = limits
	return nil
}

func (g *Gate) shift(delta int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.limits.Count += delta
	if g.limits.Count < 0 {
		g.limits.Count = 0
	}
	g.recompute()
}

// recompute derives CanCreate; callers hold g.mu.
func (g *Gate) recompute() {
	g.limits.CanCreate = g.plan == model.PlanPremium || g.limits.Count < g.limits.Limit
}
