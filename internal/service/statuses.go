package service

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/alexandre-rey/utodo-sub000/internal/errs"
	"github.com/alexandre-rey/utodo-sub000/internal/limits"
	"github.com/alexandre-rey/utodo-sub000/internal/model"
)

// Resolution is the user's choice for todos referencing a status being deleted.
type Resolution string

const (
	// ResolutionNone requests deletion without a choice; it succeeds only
	// when no todo references the status.
	ResolutionNone Resolution = ""
	// ResolutionDelete cascade-deletes every referencing todo.
	ResolutionDelete Resolution = "delete"
	// ResolutionReassign moves referencing todos to the first remaining status.
	ResolutionReassign Resolution = "reassign"
)

// ConfirmationError reports that deleting a status needs an explicit choice
// because todos still reference it.
type ConfirmationError struct {
	StatusID    string
	Referencing int
}

func (e *ConfirmationError) Error() string {
	return fmt.Sprintf("status %s has %d referencing todos; choose delete or reassign", e.StatusID, e.Referencing)
}

// StatusFlow owns mutations of the status set: additions pass the limit gate
// before touching settings, deletions run the confirmation workflow and keep
// the referential invariant that no todo is left pointing at a removed status.
type StatusFlow struct {
	todos    *TodoService
	settings *SettingsService
	gate     *limits.Gate
	log      *zap.Logger
}

// NewStatusFlow constructs the status workflow.
func NewStatusFlow(todos *TodoService, settings *SettingsService, gate *limits.Gate, log *zap.Logger) *StatusFlow {
	return &StatusFlow{todos: todos, settings: settings, gate: gate, log: log}
}

// Add appends a new status column, gated by the plan limit. The count is
// adjusted optimistically and rolled back if the settings update fails.
func (f *StatusFlow) Add(ctx context.Context, label, color string) (model.StatusConfig, error) {
	if label == "" {
		return model.StatusConfig{}, fmt.Errorf("%w: empty status label", errs.ErrValidation)
	}
	if err := f.gate.Allow(); err != nil {
		return model.StatusConfig{}, err
	}
	current, err := f.settings.Get(ctx)
	if err != nil {
		return model.StatusConfig{}, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return model.StatusConfig{}, err
	}
	status := model.StatusConfig{
		ID:    id.String(),
		Label: label,
		Color: color,
		Order: len(current.Statuses),
	}
	next := append(append([]model.StatusConfig(nil), current.Statuses...), status)
	err = f.gate.Apply(ctx, +1, func(ctx context.Context) error {
		_, uerr := f.settings.Update(ctx, model.UpdateSettings{Statuses: &next})
		return uerr
	})
	if err != nil {
		return model.StatusConfig{}, err
	}
	return status, nil
}

// Rename updates a status label/color in place; it does not change the count
// and bypasses the gate.
func (f *StatusFlow) Rename(ctx context.Context, statusID, label, color string) error {
	current, err := f.settings.Get(ctx)
	if err != nil {
		return err
	}
	next := append([]model.StatusConfig(nil), current.Statuses...)
	for i := range next {
		if next[i].ID != statusID {
			continue
		}
		if label != "" {
			next[i].Label = label
		}
		if color != "" {
			next[i].Color = color
		}
		_, err = f.settings.Update(ctx, model.UpdateSettings{Statuses: &next})
		return err
	}
	return errs.ErrNotFound
}

// Delete removes a status column. The last remaining status can never be
// deleted. When todos still reference the status and res is ResolutionNone,
// Delete returns a ConfirmationError and changes nothing; the caller retries
// with an explicit choice. Only after referencing todos are handled is the
// status removed and the gate's -1 delta applied.
func (f *StatusFlow) Delete(ctx context.Context, statusID string, res Resolution) error {
	current, err := f.settings.Get(ctx)
	if err != nil {
		return err
	}
	if len(current.Statuses) <= 1 {
		return errs.ErrLastStatus
	}
	idx := -1
	for i := range current.Statuses {
		if current.Statuses[i].ID == statusID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return errs.ErrNotFound
	}

	referencing, err := f.todos.ListByStatus(ctx, statusID)
	if err != nil {
		return err
	}
	if len(referencing) > 0 {
		switch res {
		case ResolutionNone:
			return &ConfirmationError{StatusID: statusID, Referencing: len(referencing)}
		case ResolutionDelete, ResolutionReassign:
		default:
			return fmt.Errorf("%w: unknown resolution %q", errs.ErrValidation, res)
		}
	}

	next := append([]model.StatusConfig(nil), current.Statuses[:idx]...)
	next = append(next, current.Statuses[idx+1:]...)

	if len(referencing) > 0 {
		ids := make([]string, len(referencing))
		for i, t := range referencing {
			ids[i] = t.ID
		}
		req := model.BulkRequest{TodoIDs: ids, Action: model.BulkDelete}
		if res == ResolutionReassign {
			req = model.BulkRequest{TodoIDs: ids, Action: model.BulkChangeStatus, NewStatus: next[0].ID}
		}
		if _, err := f.todos.Bulk(ctx, req); err != nil {
			return fmt.Errorf("resolving todos of status %s: %w", statusID, err)
		}
	}

	return f.gate.Apply(ctx, -1, func(ctx context.Context) error {
		_, uerr := f.settings.Update(ctx, model.UpdateSettings{Statuses: &next})
		return uerr
	})
}
