package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/alexandre-rey/utodo-sub000/internal/api"
	"github.com/alexandre-rey/utodo-sub000/internal/model"
	"github.com/alexandre-rey/utodo-sub000/internal/store"
)

const testTok = "eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiJ1MSJ9.c2ln"

type env struct {
	store    *store.Store
	vault    *api.Vault
	client   *api.Client
	settings *localSettings
	todos    *TodoService
}

// newEnv wires a todo service over an in-memory store and the given backend
// handler (nil for a server that rejects everything).
func newEnv(t *testing.T, handler http.Handler) *env {
	t.Helper()
	log := zap.NewNop()
	st, err := store.Open(store.Config{InMemory: true}, log)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	if handler == nil {
		handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	vault := api.NewVault(st, log)
	client := api.New(srv.URL, 5*time.Second, vault, log)
	settings := newLocalSettings(st)
	todos := NewTodoService(vault, newRemoteTodos(client), newLocalTodos(st, settings), log)
	return &env{store: st, vault: vault, client: client, settings: settings, todos: todos}
}

func (e *env) authenticate(t *testing.T) {
	t.Helper()
	if err := e.vault.Set(model.Tokens{AccessToken: testTok, RefreshToken: testTok}); err != nil {
		t.Fatalf("vault.Set: %v", err)
	}
}

func TestLocalCreate_Defaults(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	todo, err := e.todos.Create(ctx, model.CreateTodo{Title: "Buy milk"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if todo.ID == "" {
		t.Fatalf("local todo must get a generated id")
	}
	if todo.Status != model.DefaultSettings().Statuses[0].ID {
		t.Fatalf("status must default to first configured status, got %q", todo.Status)
	}
	if todo.IsCompleted {
		t.Fatalf("new todo must not be completed")
	}
	if todo.UserID != model.LocalUserID {
		t.Fatalf("local owner want %q, got %q", model.LocalUserID, todo.UserID)
	}
	if todo.CreatedAt.IsZero() || todo.UpdatedAt.IsZero() {
		t.Fatalf("timestamps must be stamped locally")
	}

	// survives a fresh service over the same store (reload without login)
	e2 := NewTodoService(e.vault, newRemoteTodos(e.client), newLocalTodos(e.store, e.settings), zap.NewNop())
	page, err := e2.List(ctx, model.TodoQuery{})
	if err != nil || page.Total != 1 || page.Todos[0].Title != "Buy milk" {
		t.Fatalf("reload: page=%+v err=%v", page, err)
	}
}

func TestCreate_ValidationBeforePersistence(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	if _, err := e.todos.Create(ctx, model.CreateTodo{}); err == nil {
		t.Fatalf("want validation error for empty title")
	}
	long := make([]byte, model.MaxTitleLen+1)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := e.todos.Create(ctx, model.CreateTodo{Title: string(long)}); err == nil {
		t.Fatalf("want validation error for oversized title")
	}
	page, _ := e.todos.List(ctx, model.TodoQuery{})
	if page.Total != 0 {
		t.Fatalf("rejected input must not reach persistence")
	}
}

func TestLocalList_SearchFilterPagination(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	titles := []string{"Buy milk", "buy bread", "Walk dog", "Call MOM", "milk the cow"}
	for _, title := range titles {
		if _, err := e.todos.Create(ctx, model.CreateTodo{Title: title}); err != nil {
			t.Fatalf("Create %q: %v", title, err)
		}
	}
	done := "done"
	all, _ := e.todos.List(ctx, model.TodoQuery{})
	if _, err := e.todos.Update(ctx, all.Todos[2].ID, model.UpdateTodo{Status: &done}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	// case-insensitive substring search on title
	page, err := e.todos.List(ctx, model.TodoQuery{Search: "MILK"})
	if err != nil || page.Total != 2 {
		t.Fatalf("search: total=%d err=%v", page.Total, err)
	}

	// status equality filter
	page, _ = e.todos.List(ctx, model.TodoQuery{Status: "done"})
	if page.Total != 1 || page.Todos[0].Title != "Walk dog" {
		t.Fatalf("status filter mismatch: %+v", page)
	}

	// page/limit slicing with computed total pages
	page, _ = e.todos.List(ctx, model.TodoQuery{Page: 2, Limit: 2})
	if page.Total != 5 || page.TotalPages != 3 || len(page.Todos) != 2 {
		t.Fatalf("pagination mismatch: %+v", page)
	}
	page, _ = e.todos.List(ctx, model.TodoQuery{Page: 9, Limit: 2})
	if len(page.Todos) != 0 || page.TotalPages != 3 {
		t.Fatalf("out-of-range page mismatch: %+v", page)
	}
}

func TestLocalBulk_CountsOnlyPresent(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	var ids []string
	for _, title := range []string{"a", "b", "c"} {
		todo, _ := e.todos.Create(ctx, model.CreateTodo{Title: title})
		ids = append(ids, todo.ID)
	}

	res, err := e.todos.Bulk(ctx, model.BulkRequest{
		TodoIDs: append(ids[:2:2], "missing-id"),
		Action:  model.BulkComplete,
	})
	if err != nil {
		t.Fatalf("Bulk: %v", err)
	}
	if res.Affected != 2 {
		t.Fatalf("affected want 2 (missing ids skipped), got %d", res.Affected)
	}

	res, err = e.todos.Bulk(ctx, model.BulkRequest{TodoIDs: ids, Action: model.BulkDelete})
	if err != nil || res.Affected != 3 {
		t.Fatalf("bulk delete: res=%+v err=%v", res, err)
	}
	page, _ := e.todos.List(ctx, model.TodoQuery{})
	if page.Total != 0 {
		t.Fatalf("bulk delete must remove all ids, %d left", page.Total)
	}
}

func TestLocalBulk_ChangeStatusRequiresTarget(t *testing.T) {
	e := newEnv(t, nil)
	if _, err := e.todos.Bulk(context.Background(), model.BulkRequest{
		TodoIDs: []string{"x"}, Action: model.BulkChangeStatus,
	}); err == nil {
		t.Fatalf("want validation error for changeStatus without newStatus")
	}
}

// Remote failure must yield the same result shape a purely-local run produces.
func TestAuthenticated_FallsBackToLocalOnRemoteFailure(t *testing.T) {
	e := newEnv(t, nil) // backend answers 500 to everything
	e.authenticate(t)
	ctx := context.Background()

	todo, err := e.todos.Create(ctx, model.CreateTodo{Title: "Buy milk"})
	if err != nil {
		t.Fatalf("Create with failing remote: %v", err)
	}
	if todo.UserID != model.LocalUserID || todo.Status != model.DefaultSettings().Statuses[0].ID {
		t.Fatalf("fallback result differs from local-only shape: %+v", todo)
	}

	page, err := e.todos.List(ctx, model.TodoQuery{})
	if err != nil || page.Total != 1 {
		t.Fatalf("fallback list: page=%+v err=%v", page, err)
	}
}

func TestAuthenticated_UsesRemote(t *testing.T) {
	var gotAuth string
	mux := http.NewServeMux()
	mux.HandleFunc("/todos", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(model.TodoPage{
				Todos: []model.Todo{{ID: "srv-1", Title: "remote"}},
				Total: 1, Page: 1, Limit: 10, TotalPages: 1,
			})
		case http.MethodPost:
			var in model.CreateTodo
			_ = json.NewDecoder(r.Body).Decode(&in)
			_ = json.NewEncoder(w).Encode(model.Todo{ID: "srv-2", Title: in.Title, UserID: "u1"})
		}
	})
	e := newEnv(t, mux)
	e.authenticate(t)
	ctx := context.Background()

	todo, err := e.todos.Create(ctx, model.CreateTodo{Title: "remote add"})
	if err != nil || todo.ID != "srv-2" {
		t.Fatalf("remote create: todo=%+v err=%v", todo, err)
	}
	if gotAuth != "Bearer "+testTok {
		t.Fatalf("bearer not attached: %q", gotAuth)
	}

	page, err := e.todos.List(ctx, model.TodoQuery{Limit: 10})
	if err != nil || page.Total != 1 || page.Todos[0].ID != "srv-1" {
		t.Fatalf("remote list: page=%+v err=%v", page, err)
	}

	// nothing leaked into the local store
	local, _ := newLocalTodos(e.store, e.settings).List(ctx, model.TodoQuery{})
	if local.Total != 0 {
		t.Fatalf("remote path must not write local todos, found %d", local.Total)
	}
}
