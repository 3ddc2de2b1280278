package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"planner/internal/model"
	"planner/internal/recurrence"
	"planner/internal/repository"
)

// Bulk actions over a selection of tasks.
const (
	ActionMarkDone     = "mark-done"
	ActionMarkOpen     = "mark-open"
	ActionMoveProject  = "move-project"
	ActionSetCategory  = "set-category"
	ActionSetStartDate = "set-start-date"
	ActionSetDueDate   = "set-due-date"
	ActionClearDueDate = "clear-due-date"
	ActionDelete       = "delete"
)

// ErrMissingArgument is returned when a bulk action lacks its argument.
var ErrMissingArgument = errors.New("missing bulk action argument")

// BulkArgs carries the per-action argument of a bulk operation.
type BulkArgs struct {
	ProjectID  *uuid.UUID
	CategoryID *uuid.UUID
	StartDate  *time.Time
	DueDate    *time.Time
}

// BulkApply expands the selection by scope and applies the action to every
// target row inside one transaction, so a failure anywhere rolls back the
// whole batch. Under scope "this", lifecycle actions (mark-done, mark-open,
// delete) run per-row so successor generation happens; expanded scopes act
// with plain set-based updates — the affected window is either already fully
// materialized or being removed as a whole.
func (s *TaskService) BulkApply(ctx context.Context, userID uuid.UUID, ids []uuid.UUID, scope, action string, args BulkArgs) error {
	switch scope {
	case ScopeThis, ScopeFuture, ScopeSeries:
	default:
		return ErrInvalidScope
	}
	if err := s.validateBulkArgs(ctx, userID, action, args); err != nil {
		return err
	}

	now := time.Now()
	today := recurrence.CivilDate(now)

	return s.tasks.Transaction(ctx, func(store repository.TaskStore) error {
		selected, err := store.GetByIDs(ctx, userID, ids)
		if err != nil {
			return err
		}
		if err := allSelected(ids, selected); err != nil {
			return err
		}

		if scope == ScopeThis && isLifecycleAction(action) {
			for i := range selected {
				if err := s.applyLifecycle(ctx, store, &selected[i], action, today, now); err != nil {
					return err
				}
			}
			return nil
		}

		targets, err := expandScope(ctx, store, selected, scope)
		if err != nil {
			return err
		}
		targetIDs := make([]uuid.UUID, len(targets))
		for i := range targets {
			targetIDs[i] = targets[i].ID
		}

		switch action {
		case ActionMarkDone:
			return store.UpdateFields(ctx, targetIDs, map[string]interface{}{
				"completed_on": today,
				"completed_at": now,
			})
		case ActionMarkOpen:
			return store.UpdateFields(ctx, targetIDs, map[string]interface{}{
				"completed_on": nil,
				"completed_at": nil,
			})
		case ActionMoveProject:
			return store.UpdateFields(ctx, targetIDs, map[string]interface{}{"project_id": *args.ProjectID})
		case ActionSetCategory:
			return store.UpdateFields(ctx, targetIDs, map[string]interface{}{"category_id": *args.CategoryID})
		case ActionSetStartDate:
			return store.UpdateFields(ctx, targetIDs, map[string]interface{}{"start_date": recurrence.CivilDate(*args.StartDate)})
		case ActionSetDueDate:
			return store.UpdateFields(ctx, targetIDs, map[string]interface{}{"due_at": recurrence.CivilDate(*args.DueDate)})
		case ActionClearDueDate:
			return store.UpdateFields(ctx, targetIDs, map[string]interface{}{"due_at": nil})
		case ActionDelete:
			return store.DeleteByIDs(ctx, targetIDs)
		default:
			return ErrInvalidAction
		}
	})
}

func isLifecycleAction(action string) bool {
	return action == ActionMarkDone || action == ActionMarkOpen || action == ActionDelete
}

// applyLifecycle routes one selected row through the lifecycle state
// machine, with the same guarded transitions and successor generation as
// the single-task operations.
func (s *TaskService) applyLifecycle(ctx context.Context, store repository.TaskStore, task *model.Task, action string, today time.Time, now time.Time) error {
	switch action {
	case ActionMarkDone:
		won, err := store.MarkDone(ctx, task.ID, today, now)
		if err != nil {
			return err
		}
		if !won || !task.RepeatEnabled {
			return nil
		}
		spec, err := storedSpec(task)
		if err != nil {
			return err
		}
		_, err = s.materializeNext(ctx, store, task, spec, today)
		return err

	case ActionMarkOpen:
		_, err := store.MarkOpen(ctx, task.ID)
		return err

	case ActionDelete:
		return s.deleteOne(ctx, store, task)

	default:
		return ErrInvalidAction
	}
}

// validateBulkArgs checks the action enum and the presence and ownership of
// its argument before any row is touched.
func (s *TaskService) validateBulkArgs(ctx context.Context, userID uuid.UUID, action string, args BulkArgs) error {
	switch action {
	case ActionMarkDone, ActionMarkOpen, ActionClearDueDate, ActionDelete:
		return nil

	case ActionMoveProject:
		if args.ProjectID == nil {
			return fmt.Errorf("%w: project_id", ErrMissingArgument)
		}
		project, err := s.projects.GetByID(ctx, *args.ProjectID)
		if err != nil {
			return err
		}
		if project == nil || project.UserID != userID {
			return repository.ErrProjectNotFound
		}
		return nil

	case ActionSetCategory:
		if args.CategoryID == nil {
			return fmt.Errorf("%w: category_id", ErrMissingArgument)
		}
		category, err := s.categories.GetByID(ctx, *args.CategoryID)
		if err != nil {
			return err
		}
		if category.UserID != userID {
			return repository.ErrCategoryNotFound
		}
		return nil

	case ActionSetStartDate:
		if args.StartDate == nil {
			return fmt.Errorf("%w: start_date", ErrMissingArgument)
		}
		return nil

	case ActionSetDueDate:
		if args.DueDate == nil {
			return fmt.Errorf("%w: due_date", ErrMissingArgument)
		}
		return nil

	default:
		return ErrInvalidAction
	}
}

// allSelected verifies every requested id came back from the ownership-
// scoped lookup, aggregating each missing id into one error.
func allSelected(ids []uuid.UUID, selected []model.Task) error {
	found := make(map[uuid.UUID]bool, len(selected))
	for i := range selected {
		found[selected[i].ID] = true
	}

	var merr *multierror.Error
	for _, id := range ids {
		if !found[id] {
			merr = multierror.Append(merr, fmt.Errorf("%s: %w", id, repository.ErrTaskNotFound))
		}
	}
	return merr.ErrorOrNil()
}

// expandScope resolves the selection plus scope into the concrete target
// rows. "this" is the selection unchanged; "future" expands each selected
// series from its earliest selected start date; "series" expands to whole
// series. Non-recurring rows pass through untouched.
func expandScope(ctx context.Context, store repository.TaskStore, selected []model.Task, scope string) ([]model.Task, error) {
	if scope == ScopeThis {
		return selected, nil
	}

	var targets []model.Task
	seen := make(map[uuid.UUID]bool)
	earliest := make(map[uuid.UUID]time.Time)

	for i := range selected {
		t := selected[i]
		if t.SeriesID == nil {
			if !seen[t.ID] {
				seen[t.ID] = true
				targets = append(targets, t)
			}
			continue
		}
		start := recurrence.CivilDate(t.StartDate)
		if cur, ok := earliest[*t.SeriesID]; !ok || start.Before(cur) {
			earliest[*t.SeriesID] = start
		}
	}

	for seriesID, from := range earliest {
		var (
			rows []model.Task
			err  error
		)
		if scope == ScopeSeries {
			rows, err = store.ListSeries(ctx, seriesID)
		} else {
			rows, err = store.ListSeriesFrom(ctx, seriesID, from)
		}
		if err != nil {
			return nil, err
		}
		for i := range rows {
			if !seen[rows[i].ID] {
				seen[rows[i].ID] = true
				targets = append(targets, rows[i])
			}
		}
	}
	return targets, nil
}
