package api

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/alexandre-rey/utodo-sub000/internal/errs"
	"github.com/alexandre-rey/utodo-sub000/internal/model"
	"github.com/alexandre-rey/utodo-sub000/internal/store"
)

// Vault owns the session tokens: held in memory, mirrored to plain storage.
// Persisted tokens only make it back into memory if they pass the structural
// format gate, so a tampered or truncated stored token behaves like no token.
type Vault struct {
	mu  sync.RWMutex
	tok model.Tokens

	store *store.Store
	log   *zap.Logger
}

// NewVault constructs a Vault and loads any persisted tokens through the
// format gate.
func NewVault(st *store.Store, log *zap.Logger) *Vault {
	v := &Vault{store: st, log: log}
	var persisted model.Tokens
	if err := st.GetPlain(store.KeyTokens, &persisted); err == nil {
		if WellFormed(persisted.AccessToken) && WellFormed(persisted.RefreshToken) {
			v.tok = persisted
		} else {
			log.Warn("vault: dropping malformed persisted tokens")
			_ = st.Delete(store.KeyTokens)
		}
	}
	return v
}

// WellFormed reports whether tok has the three dot-separated non-empty
// segments of a compact JWT.
func WellFormed(tok string) bool {
	parts := strings.Split(tok, ".")
	if len(parts) != 3 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
	}
	return true
}

// Set validates, stores and mirrors a new token pair.
func (v *Vault) Set(t model.Tokens) error {
	if !WellFormed(t.AccessToken) || !WellFormed(t.RefreshToken) {
		return errors.Join(errs.ErrValidation, errors.New("malformed token"))
	}
	if t.ExpiresAt.IsZero() {
		t.ExpiresAt = accessExpiry(t.AccessToken)
	}
	v.mu.Lock()
	v.tok = t
	v.mu.Unlock()
	if err := v.store.SetPlain(store.KeyTokens, t); err != nil {
		v.log.Warn("vault: persisting tokens failed", zap.Error(err))
	}
	return nil
}

// Clear drops tokens from memory and persistent storage.
func (v *Vault) Clear() {
	v.mu.Lock()
	v.tok = model.Tokens{}
	v.mu.Unlock()
	if err := v.store.Delete(store.KeyTokens); err != nil {
		v.log.Warn("vault: clearing persisted tokens failed", zap.Error(err))
	}
}

// Access returns the current access token, or "" when absent.
func (v *Vault) Access() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.tok.AccessToken
}

// Refresh returns the current refresh token, or "" when absent.
func (v *Vault) Refresh() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.tok.RefreshToken
}

// Authenticated reports whether a well-formed access token is held.
func (v *Vault) Authenticated() bool {
	return WellFormed(v.Access())
}

// accessExpiry extracts the exp claim without verifying the signature; the
// value is diagnostic only.
func accessExpiry(tok string) time.Time {
	var claims jwt.RegisteredClaims
	_, _, _ = jwt.NewParser(jwt.WithoutClaimsValidation()).ParseUnverified(tok, &claims)
	if claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time
	}
	return time.Now().Add(15 * time.Minute)
}
