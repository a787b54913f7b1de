package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/alexandre-rey/utodo-sub000/internal/config"
	"github.com/alexandre-rey/utodo-sub000/internal/errs"
	"github.com/alexandre-rey/utodo-sub000/internal/model"
	"github.com/alexandre-rey/utodo-sub000/internal/store"
)

const (
	accessTok  = "hdr.access-payload.sig"
	refreshTok = "hdr.refresh-payload.sig"
)

type authServer struct {
	mux        *http.ServeMux
	logins     int64
	creates    int64
	logouts    int64
	loginFail  atomic.Bool
	logoutFail atomic.Bool
}

func newAuthServer() *authServer {
	a := &authServer{mux: http.NewServeMux()}
	a.mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&a.logins, 1)
		if a.loginFail.Load() {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"accessToken":  accessTok,
			"refreshToken": refreshTok,
			"user":         model.User{ID: "u1", Email: "a@b.c"},
		})
	})
	a.mux.HandleFunc("/auth/register", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"accessToken":  accessTok,
			"refreshToken": refreshTok,
			"user":         model.User{ID: "u2", Email: "new@b.c"},
		})
	})
	a.mux.HandleFunc("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&a.logouts, 1)
		if a.logoutFail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	a.mux.HandleFunc("/todos", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			atomic.AddInt64(&a.creates, 1)
		}
		_ = json.NewEncoder(w).Encode(model.Todo{ID: "srv"})
	})
	a.mux.HandleFunc("/settings", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(model.DefaultSettings())
	})
	a.mux.HandleFunc("/settings/status-limits", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(model.StatusLimits{Count: 3, Limit: 3, CanCreate: false})
	})
	a.mux.HandleFunc("/subscription/status", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(model.Subscription{Plan: model.PlanPremium, Status: model.SubActive})
	})
	return a
}

func newAuthEnv(t *testing.T, srv *authServer) *Registry {
	t.Helper()
	log := zap.NewNop()
	st, err := store.Open(store.Config{InMemory: true}, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	ts := httptest.NewServer(srv.mux)
	t.Cleanup(ts.Close)
	cfg := &config.Config{BaseURL: ts.URL, HTTPTimeout: 5 * time.Second}
	return NewRegistryWithStore(context.Background(), st, cfg, log)
}

func TestLogin_AdoptsSessionAndDrainsLocalTodos(t *testing.T) {
	srv := newAuthServer()
	reg := newAuthEnv(t, srv)
	ctx := context.Background()

	// accumulate offline work before signing in
	_, err := reg.Todos.Create(ctx, model.CreateTodo{Title: "offline one"})
	require.NoError(t, err)
	_, err = reg.Todos.Create(ctx, model.CreateTodo{Title: "offline two"})
	require.NoError(t, err)

	u, err := reg.Auth.Login(ctx, model.Credentials{Email: "a@b.c", Password: "s3cret-pass"})
	require.NoError(t, err)
	require.Equal(t, "u1", u.ID)
	require.True(t, reg.Vault.Authenticated())
	require.EqualValues(t, 2, atomic.LoadInt64(&srv.creates))

	// plan adopted from the subscription status and limits replaced with the
	// server pair; premium bypasses the numeric cap even at count==limit
	require.Equal(t, 3, reg.Gate.Limits().Count)
	require.NoError(t, reg.Gate.Allow())

	// second login in the same session must not repush
	_, err = reg.Auth.Login(ctx, model.Credentials{Email: "a@b.c", Password: "s3cret-pass"})
	require.NoError(t, err)
	require.EqualValues(t, 2, atomic.LoadInt64(&srv.creates))
}

func TestLogin_ValidationBeforeNetwork(t *testing.T) {
	srv := newAuthServer()
	reg := newAuthEnv(t, srv)
	ctx := context.Background()

	_, err := reg.Auth.Login(ctx, model.Credentials{Email: "not-an-email", Password: "s3cret-pass"})
	require.ErrorIs(t, err, errs.ErrValidation)

	_, err = reg.Auth.Login(ctx, model.Credentials{Email: "a@b.c", Password: "short"})
	require.ErrorIs(t, err, errs.ErrValidation)

	require.EqualValues(t, 0, atomic.LoadInt64(&srv.logins))
}

func TestLogin_RateLimitedAfterRepeatedFailures(t *testing.T) {
	srv := newAuthServer()
	srv.loginFail.Store(true)
	reg := newAuthEnv(t, srv)
	ctx := context.Background()
	creds := model.Credentials{Email: "a@b.c", Password: "wrong-pass-1"}

	var lastErr error
	for i := 0; i < 5; i++ {
		_, lastErr = reg.Auth.Login(ctx, creds)
		require.Error(t, lastErr)
	}
	require.ErrorIs(t, lastErr, errs.ErrRateLimited)

	attempted := atomic.LoadInt64(&srv.logins)
	_, err := reg.Auth.Login(ctx, creds)
	require.ErrorIs(t, err, errs.ErrRateLimited)
	require.Equal(t, attempted, atomic.LoadInt64(&srv.logins), "blocked attempt must not reach the server")
}

func TestRegister_AdoptsSession(t *testing.T) {
	srv := newAuthServer()
	reg := newAuthEnv(t, srv)

	u, err := reg.Auth.Register(context.Background(), model.Credentials{Email: "new@b.c", Password: "s3cret-pass"})
	require.NoError(t, err)
	require.Equal(t, "u2", u.ID)
	require.True(t, reg.Vault.Authenticated())
}

func TestLogout_ResetsSessionState(t *testing.T) {
	srv := newAuthServer()
	reg := newAuthEnv(t, srv)
	ctx := context.Background()

	_, err := reg.Auth.Login(ctx, model.Credentials{Email: "a@b.c", Password: "s3cret-pass"})
	require.NoError(t, err)

	require.NoError(t, reg.Auth.Logout(ctx))
	require.EqualValues(t, 1, atomic.LoadInt64(&srv.logouts))
	require.False(t, reg.Vault.Authenticated())

	// limits revert to the free local defaults; the three default statuses
	// fill the free cap again
	require.ErrorIs(t, reg.Gate.Allow(), errs.ErrLimitReached)

	// sync flags cleared so the next login syncs again
	var flag bool
	err = reg.Store.GetPlain(store.KeyTodosSynced, &flag)
	if err == nil && flag {
		t.Fatalf("todos sync flag must be cleared on logout")
	}
}

func TestLogout_ToleratesServerFailure(t *testing.T) {
	srv := newAuthServer()
	reg := newAuthEnv(t, srv)
	ctx := context.Background()

	_, err := reg.Auth.Login(ctx, model.Credentials{Email: "a@b.c", Password: "s3cret-pass"})
	require.NoError(t, err)

	srv.logoutFail.Store(true)
	// even with the remote call failing, local state must be torn down
	require.NoError(t, reg.Auth.Logout(ctx))
	require.False(t, reg.Vault.Authenticated())
}

func TestProfile(t *testing.T) {
	srv := newAuthServer()
	srv.mux.HandleFunc("/auth/profile", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(model.User{ID: "u1", Email: "a@b.c"})
	})
	reg := newAuthEnv(t, srv)
	ctx := context.Background()

	_, err := reg.Auth.Profile(ctx)
	require.True(t, errors.Is(err, errs.ErrUnauthorized), "unauthenticated profile fetch: %v", err)

	_, err = reg.Auth.Login(ctx, model.Credentials{Email: "a@b.c", Password: "s3cret-pass"})
	require.NoError(t, err)

	u, err := reg.Auth.Profile(ctx)
	require.NoError(t, err)
	require.Equal(t, "u1", u.ID)
}
