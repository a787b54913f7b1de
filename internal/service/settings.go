package service

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/alexandre-rey/utodo-sub000/internal/api"
	"github.com/alexandre-rey/utodo-sub000/internal/model"
	"github.com/alexandre-rey/utodo-sub000/internal/store"
)

// SettingsBackend is the persistence strategy for the settings object.
type SettingsBackend interface {
	Get(ctx context.Context) (model.AppSettings, error)
	Update(ctx context.Context, in model.UpdateSettings) (model.AppSettings, error)
	Reset(ctx context.Context) (model.AppSettings, error)
}

// localSettings keeps settings in plain local storage; absence resolves to
// the built-in defaults.
type localSettings struct {
	store *store.Store
}

func newLocalSettings(st *store.Store) *localSettings {
	return &localSettings{store: st}
}

func (l *localSettings) Get(_ context.Context) (model.AppSettings, error) {
	var s model.AppSettings
	if err := l.store.GetPlain(store.KeySettings, &s); err != nil {
		return model.DefaultSettings(), nil
	}
	if len(s.Statuses) == 0 {
		return model.DefaultSettings(), nil
	}
	return s, nil
}

func (l *localSettings) Update(ctx context.Context, in model.UpdateSettings) (model.AppSettings, error) {
	s, _ := l.Get(ctx)
	if in.Statuses != nil {
		s.Statuses = *in.Statuses
	}
	if in.DefaultView != nil {
		s.DefaultView = *in.DefaultView
	}
	if in.ShowCompleted != nil {
		s.ShowCompleted = *in.ShowCompleted
	}
	if in.NotificationsOn != nil {
		s.NotificationsOn = *in.NotificationsOn
	}
	// array position is the local source of truth for ordering
	for i := range s.Statuses {
		s.Statuses[i].Order = i
	}
	if err := l.store.SetPlain(store.KeySettings, s); err != nil {
		return model.AppSettings{}, err
	}
	return s, nil
}

func (l *localSettings) Reset(_ context.Context) (model.AppSettings, error) {
	s := model.DefaultSettings()
	if err := l.store.SetPlain(store.KeySettings, s); err != nil {
		return model.AppSettings{}, err
	}
	return s, nil
}

// firstStatusID returns the default status for new todos.
func (l *localSettings) firstStatusID(ctx context.Context) string {
	s, _ := l.Get(ctx)
	return s.Statuses[0].ID
}

// remoteSettings is the API-backed settings strategy.
type remoteSettings struct {
	client *api.Client
}

func newRemoteSettings(client *api.Client) *remoteSettings {
	return &remoteSettings{client: client}
}

func (r *remoteSettings) Get(ctx context.Context) (model.AppSettings, error) {
	var s model.AppSettings
	if err := r.client.Do(ctx, http.MethodGet, "/settings", nil, &s); err != nil {
		return model.AppSettings{}, err
	}
	return s, nil
}

func (r *remoteSettings) Update(ctx context.Context, in model.UpdateSettings) (model.AppSettings, error) {
	var s model.AppSettings
	if err := r.client.Do(ctx, http.MethodPatch, "/settings", in, &s); err != nil {
		return model.AppSettings{}, err
	}
	return s, nil
}

func (r *remoteSettings) Reset(ctx context.Context) (model.AppSettings, error) {
	var s model.AppSettings
	if err := r.client.Do(ctx, http.MethodPost, "/settings/reset", nil, &s); err != nil {
		return model.AppSettings{}, err
	}
	return s, nil
}

// SettingsService routes settings operations remote/local with per-call
// fallback, mirroring successful remote reads into local storage so the
// fallback path serves recent data.
type SettingsService struct {
	vault  *api.Vault
	remote SettingsBackend
	local  *localSettings
	log    *zap.Logger
}

// NewSettingsService constructs the settings service over both backends.
func NewSettingsService(vault *api.Vault, remote SettingsBackend, local *localSettings, log *zap.Logger) *SettingsService {
	return &SettingsService{vault: vault, remote: remote, local: local, log: log}
}

// Get returns the current settings.
func (s *SettingsService) Get(ctx context.Context) (model.AppSettings, error) {
	if s.vault.Authenticated() {
		out, err := s.remote.Get(ctx)
		if err == nil {
			return out, nil
		}
		s.log.Warn("settings: remote get failed, serving local", zap.Error(err))
	}
	return s.local.Get(ctx)
}

// Update applies a partial settings update.
func (s *SettingsService) Update(ctx context.Context, in model.UpdateSettings) (model.AppSettings, error) {
	if s.vault.Authenticated() {
		out, err := s.remote.Update(ctx, in)
		if err == nil {
			return out, nil
		}
		s.log.Warn("settings: remote update failed, writing local", zap.Error(err))
	}
	return s.local.Update(ctx, in)
}

// Reset restores the default settings.
func (s *SettingsService) Reset(ctx context.Context) (model.AppSettings, error) {
	if s.vault.Authenticated() {
		out, err := s.remote.Reset(ctx)
		if err == nil {
			return out, nil
		}
		s.log.Warn("settings: remote reset failed, resetting local", zap.Error(err))
	}
	return s.local.Reset(ctx)
}
