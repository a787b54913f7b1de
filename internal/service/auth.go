package service

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/alexandre-rey/utodo-sub000/internal/api"
	"github.com/alexandre-rey/utodo-sub000/internal/errs"
	"github.com/alexandre-rey/utodo-sub000/internal/limiter"
	"github.com/alexandre-rey/utodo-sub000/internal/limits"
	"github.com/alexandre-rey/utodo-sub000/internal/model"
	"github.com/alexandre-rey/utodo-sub000/internal/syncer"
)

// AuthManager owns the session lifecycle: unauthenticated -> authenticating
// -> authenticated -> unauthenticated. Entering the authenticated state
// gives the sync coordinator a chance to run and refreshes auth-bound caches;
// logout clears tokens, resets sync flags and reverts to local-mode defaults.
type AuthManager struct {
	client   *api.Client
	vault    *api.Vault
	sync     *syncer.Coordinator
	gate     *limits.Gate
	settings *SettingsService
	subs     *SubscriptionService
	lim      limiter.Limiter
	validate *validator.Validate
	log      *zap.Logger
}

// NewAuthManager constructs the session manager.
func NewAuthManager(
	client *api.Client,
	vault *api.Vault,
	sync *syncer.Coordinator,
	gate *limits.Gate,
	settings *SettingsService,
	subs *SubscriptionService,
	lim limiter.Limiter,
	log *zap.Logger,
) *AuthManager {
	return &AuthManager{
		client:   client,
		vault:    vault,
		sync:     sync,
		gate:     gate,
		settings: settings,
		subs:     subs,
		lim:      lim,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log,
	}
}

// authResponse is the session payload of /auth/login and /auth/register.
type authResponse struct {
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken"`
	User         model.User `json:"user"`
}

// Register creates an account, adopts the returned session and drains local
// data to the server.
func (a *AuthManager) Register(ctx context.Context, creds model.Credentials) (model.User, error) {
	if err := a.validate.Struct(creds); err != nil {
		return model.User{}, fmt.Errorf("%w: %s", errs.ErrValidation, err)
	}
	if allowed, retry, _ := a.lim.Allow(ctx, creds.Email); !allowed {
		return model.User{}, fmt.Errorf("%w: retry in %s", errs.ErrRateLimited, retry)
	}
	var resp authResponse
	if err := a.client.Do(ctx, http.MethodPost, "/auth/register", creds, &resp); err != nil {
		return model.User{}, err
	}
	return a.adoptSession(ctx, resp)
}

// Login authenticates with rate limiting on the email, adopts the session
// and gives the coordinator its sync opportunity.
func (a *AuthManager) Login(ctx context.Context, creds model.Credentials) (model.User, error) {
	if err := a.validate.Struct(creds); err != nil {
		return model.User{}, fmt.Errorf("%w: %s", errs.ErrValidation, err)
	}
	if allowed, retry, _ := a.lim.Allow(ctx, creds.Email); !allowed {
		return model.User{}, fmt.Errorf("%w: retry in %s", errs.ErrRateLimited, retry)
	}
	var resp authResponse
	if err := a.client.Do(ctx, http.MethodPost, "/auth/login", creds, &resp); err != nil {
		if blocked, retry, ferr := a.lim.Failure(ctx, creds.Email); ferr == nil && blocked {
			return model.User{}, fmt.Errorf("%w: retry in %s", errs.ErrRateLimited, retry)
		}
		return model.User{}, err
	}
	_ = a.lim.Success(ctx, creds.Email)
	return a.adoptSession(ctx, resp)
}

// adoptSession stores tokens, runs the one-shot sync and refreshes the
// auth-bound caches (plan, limits).
func (a *AuthManager) adoptSession(ctx context.Context, resp authResponse) (model.User, error) {
	tok := model.Tokens{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken}
	if err := a.vault.Set(tok); err != nil {
		return model.User{}, err
	}
	if err := a.sync.SyncAll(ctx); err != nil {
		// flags stay unset; a later sync retries the full batch
		a.log.Warn("auth: post-login sync failed", zap.Error(err))
	}
	if sub, err := a.subs.Status(ctx); err == nil {
		a.gate.SetPlan(sub.Plan)
	}
	if err := a.gate.Refresh(ctx); err != nil {
		a.log.Warn("auth: limits refresh failed", zap.Error(err))
	}
	return resp.User, nil
}

// Logout invalidates the server session best-effort, then clears tokens,
// resets both sync flags and reverts limits to local-mode defaults.
func (a *AuthManager) Logout(ctx context.Context) error {
	if a.vault.Authenticated() {
		if err := a.client.Do(ctx, http.MethodPost, "/auth/logout", nil, nil); err != nil {
			a.log.Warn("auth: server logout failed", zap.Error(err))
		}
	}
	a.vault.Clear()
	a.sync.Reset()
	s, err := a.settings.Get(ctx)
	if err != nil {
		s = model.DefaultSettings()
	}
	a.gate.ResetLocal(len(s.Statuses))
	return nil
}

// Profile fetches the current user.
func (a *AuthManager) Profile(ctx context.Context) (model.User, error) {
	var u model.User
	if err := a.client.Do(ctx, http.MethodGet, "/auth/profile", nil, &u); err != nil {
		return model.User{}, err
	}
	return u, nil
}
