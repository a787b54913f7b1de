// Package syncer drains locally-accumulated todos and settings into the
// server exactly once per authenticated session.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/alexandre-rey/utodo-sub000/internal/api"
	"github.com/alexandre-rey/utodo-sub000/internal/errs"
	"github.com/alexandre-rey/utodo-sub000/internal/model"
	"github.com/alexandre-rey/utodo-sub000/internal/store"
)

// Coordinator guards each resource push behind two layers: an in-memory
// boolean and a persisted flag that survives reloads within the same login.
// The check-then-set sequence runs under a mutex so two near-simultaneous
// triggers cannot both push.
type Coordinator struct {
	mu           sync.Mutex
	todosDone    bool
	settingsDone bool

	store  *store.Store
	client *api.Client
	log    *zap.Logger
}

// New constructs a Coordinator.
func New(st *store.Store, client *api.Client, log *zap.Logger) *Coordinator {
	return &Coordinator{store: st, client: client, log: log}
}

// pushTodo is the create payload for one drained local todo.
type pushTodo struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status,omitempty"`
	Priority    int        `json:"priority,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	IsCompleted bool       `json:"isCompleted"`
}

// SyncAll pushes todos then settings.
func (c *Coordinator) SyncAll(ctx context.Context) error {
	if err := c.SyncTodos(ctx); err != nil {
		return err
	}
	return c.SyncSettings(ctx)
}

// SyncTodos posts every local todo to the server individually. On full
// success the local todo store is cleared and both guard layers set. A
// mid-iteration failure propagates with the flags left unset so the next
// attempt retries the whole set (at-least-once; partial-failure retries can
// duplicate already-created todos).
func (c *Coordinator) SyncTodos(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.todosDone || c.flagSet(store.KeyTodosSynced) {
		c.todosDone = true
		return nil
	}

	var todos []model.Todo
	if err := c.store.GetSecure(store.KeyTodos, &todos); err != nil && !errors.Is(err, errs.ErrNotFound) {
		return err
	}
	for i, t := range todos {
		body := pushTodo{
			Title:       t.Title,
			Description: t.Description,
			Status:      t.Status,
			Priority:    t.Priority,
			DueDate:     t.DueDate,
			IsCompleted: t.IsCompleted,
		}
		if err := c.client.Do(ctx, http.MethodPost, "/todos", body, nil); err != nil {
			return fmt.Errorf("pushing local todo %d of %d: %w", i+1, len(todos), err)
		}
	}
	if len(todos) > 0 {
		if err := c.store.Delete(store.KeyTodos); err != nil {
			return fmt.Errorf("clearing local todos after sync: %w", err)
		}
	}
	c.setFlag(store.KeyTodosSynced)
	c.todosDone = true
	c.log.Info("synced local todos", zap.Int("count", len(todos)))
	return nil
}

// SyncSettings pushes the full local settings object as one update call,
// with the same flag discipline as SyncTodos.
func (c *Coordinator) SyncSettings(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.settingsDone || c.flagSet(store.KeySettingsSynced) {
		c.settingsDone = true
		return nil
	}

	var settings model.AppSettings
	if err := c.store.GetPlain(store.KeySettings, &settings); err != nil {
		// nothing accumulated locally; the server copy stands
		c.setFlag(store.KeySettingsSynced)
		c.settingsDone = true
		return nil
	}
	up := model.UpdateSettings{
		Statuses:        &settings.Statuses,
		DefaultView:     &settings.DefaultView,
		ShowCompleted:   &settings.ShowCompleted,
		NotificationsOn: &settings.NotificationsOn,
	}
	if err := c.client.Do(ctx, http.MethodPatch, "/settings", up, nil); err != nil {
		return fmt.Errorf("pushing local settings: %w", err)
	}
	c.setFlag(store.KeySettingsSynced)
	c.settingsDone = true
	c.log.Info("synced local settings")
	return nil
}

// Reset clears both guard layers so the next login resyncs (logout).
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.todosDone = false
	c.settingsDone = false
	if err := c.store.Delete(store.KeyTodosSynced); err != nil {
		c.log.Warn("resetting todos sync flag failed", zap.Error(err))
	}
	if err := c.store.Delete(store.KeySettingsSynced); err != nil {
		c.log.Warn("resetting settings sync flag failed", zap.Error(err))
	}
}

func (c *Coordinator) flagSet(key string) bool {
	var v bool
	return c.store.GetPlain(key, &v) == nil && v
}

func (c *Coordinator) setFlag(key string) {
	if err := c.store.SetPlain(key, true); err != nil {
		c.log.Warn("persisting sync flag failed", zap.String("flag", key), zap.Error(err))
	}
}
