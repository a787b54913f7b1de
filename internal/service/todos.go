// Package service contains the resource services routing every operation to
// remote or local persistence based on authentication state, plus the auth
// session manager and the status deletion workflow.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/alexandre-rey/utodo-sub000/internal/api"
	"github.com/alexandre-rey/utodo-sub000/internal/errs"
	"github.com/alexandre-rey/utodo-sub000/internal/model"
)

// TodoBackend is the persistence strategy for todos. Two variants exist:
// remote (API-backed) and local (encrypted store).
type TodoBackend interface {
	List(ctx context.Context, q model.TodoQuery) (model.TodoPage, error)
	Create(ctx context.Context, in model.CreateTodo) (model.Todo, error)
	Update(ctx context.Context, id string, in model.UpdateTodo) (model.Todo, error)
	Delete(ctx context.Context, id string) error
	Bulk(ctx context.Context, req model.BulkRequest) (model.BulkResult, error)
}

// TodoService selects a backend per call: remote when a valid access token is
// held, local otherwise. Remote failures degrade to the local path for that
// single call; this is best-effort degradation reconciled later by the sync
// coordinator, not a consistency guarantee.
type TodoService struct {
	vault    *api.Vault
	remote   TodoBackend
	local    TodoBackend
	validate *validator.Validate
	log      *zap.Logger
}

// NewTodoService constructs the todo service over both backends.
func NewTodoService(vault *api.Vault, remote, local TodoBackend, log *zap.Logger) *TodoService {
	return &TodoService{
		vault:    vault,
		remote:   remote,
		local:    local,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log,
	}
}

// List returns one page of todos matching q.
func (s *TodoService) List(ctx context.Context, q model.TodoQuery) (model.TodoPage, error) {
	if s.vault.Authenticated() {
		page, err := s.remote.List(ctx, q)
		if err == nil {
			return page, nil
		}
		s.log.Warn("todos: remote list failed, serving local", zap.Error(err))
	}
	return s.local.List(ctx, q)
}

// ListByStatus returns every todo currently assigned to the given status.
func (s *TodoService) ListByStatus(ctx context.Context, statusID string) ([]model.Todo, error) {
	page, err := s.List(ctx, model.TodoQuery{Status: statusID, Page: 1, Limit: allLimit})
	if err != nil {
		return nil, err
	}
	return page.Todos, nil
}

// Create validates and persists a new todo.
func (s *TodoService) Create(ctx context.Context, in model.CreateTodo) (model.Todo, error) {
	if err := s.validate.Struct(in); err != nil {
		return model.Todo{}, fmt.Errorf("%w: %s", errs.ErrValidation, err)
	}
	if s.vault.Authenticated() {
		todo, err := s.remote.Create(ctx, in)
		if err == nil {
			return todo, nil
		}
		s.log.Warn("todos: remote create failed, writing local", zap.Error(err))
	}
	return s.local.Create(ctx, in)
}

// Update applies a partial update to one todo.
func (s *TodoService) Update(ctx context.Context, id string, in model.UpdateTodo) (model.Todo, error) {
	if err := s.validate.Struct(in); err != nil {
		return model.Todo{}, fmt.Errorf("%w: %s", errs.ErrValidation, err)
	}
	if s.vault.Authenticated() {
		todo, err := s.remote.Update(ctx, id, in)
		if err == nil {
			return todo, nil
		}
		if errors.Is(err, errs.ErrNotFound) {
			return model.Todo{}, err
		}
		s.log.Warn("todos: remote update failed, writing local", zap.Error(err))
	}
	return s.local.Update(ctx, id, in)
}

// Delete removes one todo.
func (s *TodoService) Delete(ctx context.Context, id string) error {
	if s.vault.Authenticated() {
		err := s.remote.Delete(ctx, id)
		if err == nil || errors.Is(err, errs.ErrNotFound) {
			return err
		}
		s.log.Warn("todos: remote delete failed, deleting local", zap.Error(err))
	}
	return s.local.Delete(ctx, id)
}

// Bulk applies one action to the full requested id set in one pass. Ids not
// present are skipped silently; the result reports how many were affected.
func (s *TodoService) Bulk(ctx context.Context, req model.BulkRequest) (model.BulkResult, error) {
	if len(req.TodoIDs) == 0 {
		return model.BulkResult{}, nil
	}
	if req.Action == model.BulkChangeStatus && req.NewStatus == "" {
		return model.BulkResult{}, fmt.Errorf("%w: changeStatus requires newStatus", errs.ErrValidation)
	}
	if s.vault.Authenticated() {
		res, err := s.remote.Bulk(ctx, req)
		if err == nil {
			return res, nil
		}
		s.log.Warn("todos: remote bulk action failed, applying local", zap.Error(err))
	}
	return s.local.Bulk(ctx, req)
}
