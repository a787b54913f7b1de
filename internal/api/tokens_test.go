package api

import (
	"testing"

	"go.uber.org/zap"

	"github.com/alexandre-rey/utodo-sub000/internal/model"
	"github.com/alexandre-rey/utodo-sub000/internal/store"
)

// wellFormedTok is structurally a JWT; no valid signature required.
const wellFormedTok = "eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiJ1MSJ9.c2ln"

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(store.Config{InMemory: true}, zap.NewNop())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestWellFormed(t *testing.T) {
	t.Parallel()
	cases := []struct {
		tok  string
		want bool
	}{
		{wellFormedTok, true},
		{"", false},
		{"one", false},
		{"a.b", false},
		{"a.b.c.d", false},
		{"a..c", false},
		{".b.c", false},
		{"a.b.c", true},
	}
	for _, c := range cases {
		if got := WellFormed(c.tok); got != c.want {
			t.Fatalf("WellFormed(%q)=%v, want %v", c.tok, got, c.want)
		}
	}
}

func TestVault_SetPersistsAndReloads(t *testing.T) {
	st := newTestStore(t)
	v := NewVault(st, zap.NewNop())

	if v.Authenticated() {
		t.Fatalf("fresh vault must not be authenticated")
	}
	tok := model.Tokens{AccessToken: wellFormedTok, RefreshToken: wellFormedTok}
	if err := v.Set(tok); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !v.Authenticated() || v.Access() != wellFormedTok {
		t.Fatalf("tokens not adopted")
	}

	// a new vault over the same store picks them up
	v2 := NewVault(st, zap.NewNop())
	if v2.Access() != wellFormedTok || v2.Refresh() != wellFormedTok {
		t.Fatalf("persisted tokens not reloaded")
	}
}

func TestVault_RejectsMalformed(t *testing.T) {
	st := newTestStore(t)
	v := NewVault(st, zap.NewNop())

	if err := v.Set(model.Tokens{AccessToken: "nope", RefreshToken: wellFormedTok}); err == nil {
		t.Fatalf("want error for malformed access token")
	}
	if v.Authenticated() {
		t.Fatalf("malformed token must not authenticate")
	}
}

func TestVault_MalformedPersistedTreatedAsAbsent(t *testing.T) {
	st := newTestStore(t)
	bad := model.Tokens{AccessToken: "two.parts", RefreshToken: "two.parts"}
	if err := st.SetPlain(store.KeyTokens, bad); err != nil {
		t.Fatalf("seed: %v", err)
	}
	v := NewVault(st, zap.NewNop())
	if v.Authenticated() || v.Access() != "" || v.Refresh() != "" {
		t.Fatalf("malformed persisted tokens must never be loaded")
	}
}

func TestVault_Clear(t *testing.T) {
	st := newTestStore(t)
	v := NewVault(st, zap.NewNop())
	_ = v.Set(model.Tokens{AccessToken: wellFormedTok, RefreshToken: wellFormedTok})

	v.Clear()
	if v.Authenticated() {
		t.Fatalf("cleared vault must not be authenticated")
	}
	if v2 := NewVault(st, zap.NewNop()); v2.Authenticated() {
		t.Fatalf("cleared tokens must not survive reload")
	}
}
