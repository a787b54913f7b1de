package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/alexandre-rey/utodo-sub000/internal/errs"
	"github.com/alexandre-rey/utodo-sub000/internal/model"
	"github.com/alexandre-rey/utodo-sub000/internal/store"
)

// allLimit is the page size used when a caller needs the full result set.
const allLimit = 1000

// localTodos persists todos in the encrypted local store and performs
// filtering, pagination and bulk actions client-side.
type localTodos struct {
	store    *store.Store
	settings *localSettings
	now      func() time.Time
}

func newLocalTodos(st *store.Store, settings *localSettings) *localTodos {
	return &localTodos{store: st, settings: settings, now: time.Now}
}

// loadAll returns the stored todo set; a missing key is an empty set.
func (l *localTodos) loadAll() ([]model.Todo, error) {
	var todos []model.Todo
	if err := l.store.GetSecure(store.KeyTodos, &todos); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return todos, nil
}

func (l *localTodos) saveAll(todos []model.Todo) error {
	return l.store.SetSecure(store.KeyTodos, todos)
}

func (l *localTodos) List(_ context.Context, q model.TodoQuery) (model.TodoPage, error) {
	todos, err := l.loadAll()
	if err != nil {
		return model.TodoPage{}, err
	}

	filtered := todos[:0:0]
	search := strings.ToLower(q.Search)
	for _, t := range todos {
		if q.Status != "" && t.Status != q.Status {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(t.Title), search) &&
			!strings.Contains(strings.ToLower(t.Description), search) {
			continue
		}
		filtered = append(filtered, t)
	}

	page, limit := q.Page, q.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = allLimit
	}
	total := len(filtered)
	totalPages := (total + limit - 1) / limit
	if totalPages == 0 {
		totalPages = 1
	}
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return model.TodoPage{
		Todos:      append([]model.Todo(nil), filtered[start:end]...),
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}, nil
}

func (l *localTodos) Create(ctx context.Context, in model.CreateTodo) (model.Todo, error) {
	todos, err := l.loadAll()
	if err != nil {
		return model.Todo{}, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return model.Todo{}, err
	}
	status := in.Status
	if status == "" {
		status = l.settings.firstStatusID(ctx)
	}
	now := l.now().UTC()
	todo := model.Todo{
		ID:          id.String(),
		Title:       in.Title,
		Description: in.Description,
		Status:      status,
		Priority:    in.Priority,
		DueDate:     in.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
		UserID:      model.LocalUserID,
	}
	if err := l.saveAll(append(todos, todo)); err != nil {
		return model.Todo{}, err
	}
	return todo, nil
}

func (l *localTodos) Update(_ context.Context, id string, in model.UpdateTodo) (model.Todo, error) {
	todos, err := l.loadAll()
	if err != nil {
		return model.Todo{}, err
	}
	for i := range todos {
		if todos[i].ID != id {
			continue
		}
		t := &todos[i]
		if in.Title != nil {
			t.Title = *in.Title
		}
		if in.Description != nil {
			t.Description = *in.Description
		}
		if in.Status != nil {
			t.Status = *in.Status
		}
		if in.Priority != nil {
			t.Priority = *in.Priority
		}
		if in.DueDate != nil {
			t.DueDate = in.DueDate
		}
		if in.IsCompleted != nil {
			t.IsCompleted = *in.IsCompleted
		}
		t.UpdatedAt = l.now().UTC()
		if err := l.saveAll(todos); err != nil {
			return model.Todo{}, err
		}
		return *t, nil
	}
	return model.Todo{}, errs.ErrNotFound
}

func (l *localTodos) Delete(_ context.Context, id string) error {
	todos, err := l.loadAll()
	if err != nil {
		return err
	}
	for i := range todos {
		if todos[i].ID == id {
			return l.saveAll(append(todos[:i], todos[i+1:]...))
		}
	}
	return errs.ErrNotFound
}

func (l *localTodos) Bulk(_ context.Context, req model.BulkRequest) (model.BulkResult, error) {
	todos, err := l.loadAll()
	if err != nil {
		return model.BulkResult{}, err
	}
	ids := make(map[string]bool, len(req.TodoIDs))
	for _, id := range req.TodoIDs {
		ids[id] = true
	}

	affected := 0
	now := l.now().UTC()
	kept := todos[:0]
	for _, t := range todos {
		if !ids[t.ID] {
			kept = append(kept, t)
			continue
		}
		affected++
		switch req.Action {
		case model.BulkDelete:
			continue // drop
		case model.BulkComplete:
			t.IsCompleted = true
		case model.BulkIncomplete:
			t.IsCompleted = false
		case model.BulkChangeStatus:
			t.Status = req.NewStatus
		}
		t.UpdatedAt = now
		kept = append(kept, t)
	}
	if affected == 0 {
		return model.BulkResult{}, nil
	}
	if err := l.saveAll(kept); err != nil {
		return model.BulkResult{}, err
	}
	return model.BulkResult{Affected: affected}, nil
}
