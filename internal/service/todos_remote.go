package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/alexandre-rey/utodo-sub000/internal/api"
	"github.com/alexandre-rey/utodo-sub000/internal/model"
)

// remoteTodos is the API-backed todo strategy.
type remoteTodos struct {
	client *api.Client
}

func newRemoteTodos(client *api.Client) *remoteTodos {
	return &remoteTodos{client: client}
}

func (r *remoteTodos) List(ctx context.Context, q model.TodoQuery) (model.TodoPage, error) {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Status != "" {
		v.Set("status", q.Status)
	}
	path := "/todos"
	if enc := v.Encode(); enc != "" {
		path += "?" + enc
	}
	var page model.TodoPage
	if err := r.client.Do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return model.TodoPage{}, err
	}
	return page, nil
}

func (r *remoteTodos) Create(ctx context.Context, in model.CreateTodo) (model.Todo, error) {
	var todo model.Todo
	if err := r.client.Do(ctx, http.MethodPost, "/todos", in, &todo); err != nil {
		return model.Todo{}, err
	}
	return todo, nil
}

func (r *remoteTodos) Update(ctx context.Context, id string, in model.UpdateTodo) (model.Todo, error) {
	var todo model.Todo
	if err := r.client.Do(ctx, http.MethodPatch, "/todos/"+url.PathEscape(id), in, &todo); err != nil {
		return model.Todo{}, err
	}
	return todo, nil
}

func (r *remoteTodos) Delete(ctx context.Context, id string) error {
	return r.client.Do(ctx, http.MethodDelete, "/todos/"+url.PathEscape(id), nil, nil)
}

func (r *remoteTodos) Bulk(ctx context.Context, req model.BulkRequest) (model.BulkResult, error) {
	var res model.BulkResult
	if err := r.client.Do(ctx, http.MethodPost, "/todos/bulk-action", req, &res); err != nil {
		return model.BulkResult{}, fmt.Errorf("bulk %s: %w", req.Action, err)
	}
	return res, nil
}
