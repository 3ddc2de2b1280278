package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"planner/internal/model"
	"planner/internal/recurrence"
	"planner/internal/repository"
)

// CompleteResult reports the outcome of completing an occurrence. Successor
// is non-nil when completing a recurring task materialized (or reconciled
// with) the next occurrence.
type CompleteResult struct {
	Task      *model.Task
	Successor *model.Task
}

// Complete transitions the task Open → Done and, for recurring tasks,
// ensures the next occurrence exists. The transition is a guarded update:
// of two concurrent completions only one wins, and only the winner
// materializes the successor. Completing an already-done task is a no-op.
func (s *TaskService) Complete(ctx context.Context, userID, id uuid.UUID, completedOn *time.Time) (*CompleteResult, error) {
	now := time.Now()
	on := recurrence.CivilDate(now)
	if completedOn != nil {
		on = recurrence.CivilDate(*completedOn)
	}

	var result CompleteResult
	err := s.tasks.Transaction(ctx, func(store repository.TaskStore) error {
		task, err := store.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if task.UserID != userID {
			return repository.ErrTaskNotFound
		}

		won, err := store.MarkDone(ctx, id, on, now)
		if err != nil {
			return err
		}
		if !won {
			// A concurrent request completed the task first and owns the
			// successor; report the row as it stands.
			fresh, err := store.GetByID(ctx, id)
			if err != nil {
				return err
			}
			result.Task = fresh
			return nil
		}

		task.CompletedOn = &on
		task.CompletedAt = &now
		result.Task = task

		if !task.RepeatEnabled {
			return nil
		}
		spec, err := storedSpec(task)
		if err != nil {
			return err
		}
		successor, err := s.materializeNext(ctx, store, task, spec, on)
		if err != nil {
			return err
		}
		result.Successor = successor
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Reopen transitions the task Done → Open. It never touches the series: an
// already-materialized successor stays, and a later re-completion reconciles
// against it instead of duplicating it.
func (s *TaskService) Reopen(ctx context.Context, userID, id uuid.UUID) (*model.Task, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.UserID != userID {
		return nil, repository.ErrTaskNotFound
	}

	if _, err := s.tasks.MarkOpen(ctx, id); err != nil {
		return nil, err
	}
	task.CompletedOn = nil
	task.CompletedAt = nil
	return task, nil
}

// Delete removes an occurrence with the given scope. Scope "this" keeps an
// active series alive by materializing the successor when no later
// occurrence exists; "future" truncates the series from the selected row on;
// "series" removes the whole chain.
func (s *TaskService) Delete(ctx context.Context, userID, id uuid.UUID, scope string) error {
	return s.tasks.Transaction(ctx, func(store repository.TaskStore) error {
		task, err := store.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if task.UserID != userID {
			return repository.ErrTaskNotFound
		}

		switch scope {
		case ScopeThis:
			return s.deleteOne(ctx, store, task)

		case ScopeFuture:
			if task.SeriesID == nil {
				return store.Delete(ctx, task.ID)
			}
			return store.DeleteSeriesFrom(ctx, *task.SeriesID, recurrence.CivilDate(task.StartDate))

		case ScopeSeries:
			if task.SeriesID == nil {
				return store.Delete(ctx, task.ID)
			}
			return store.DeleteSeries(ctx, *task.SeriesID)

		default:
			return ErrInvalidScope
		}
	})
}

// deleteOne removes a single occurrence and, when it was the most-current
// row of an active series, materializes its successor from the deleted
// row's own start date so the series continues uninterrupted.
func (s *TaskService) deleteOne(ctx context.Context, store repository.TaskStore, task *model.Task) error {
	if err := store.Delete(ctx, task.ID); err != nil {
		return err
	}
	if !task.RepeatEnabled {
		return nil
	}

	start := recurrence.CivilDate(task.StartDate)
	later, err := store.HasLaterOccurrence(ctx, task.SeriesAnchor(), start)
	if err != nil {
		return err
	}
	if later {
		return nil
	}

	spec, err := storedSpec(task)
	if err != nil {
		return err
	}
	_, err = s.materializeNext(ctx, store, task, spec, start)
	return err
}

// materializeNext ensures exactly one successor row exists for the source
// occurrence at the next computed date. Resolution order, each step
// short-circuiting on success:
//
//  1. an existing (series, date) row is reused as-is;
//  2. a legacy row without series identity is adopted into the series;
//  3. a new row is inserted carrying the source's descriptive fields;
//  4. an insert losing the uniqueness race re-reads step 1 once and treats
//     that row as the result.
//
// Two concurrent invocations for the same source therefore collapse into a
// single row. Any failure other than the uniqueness conflict is propagated
// and aborts the enclosing transaction.
func (s *TaskService) materializeNext(ctx context.Context, store repository.TaskStore, src *model.Task, spec recurrence.Spec, base time.Time) (*model.Task, error) {
	next := recurrence.NextDate(base, spec)
	seriesID := src.SeriesAnchor()

	existing, err := store.FindBySeriesAndDate(ctx, seriesID, next)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	legacy, err := store.FindLegacySibling(ctx, src, next)
	if err != nil {
		return nil, err
	}
	if legacy != nil {
		legacy.SeriesID = &seriesID
		legacy.StartDate = next
		if err := store.Save(ctx, legacy); err != nil {
			return nil, err
		}
		return legacy, nil
	}

	successor := &model.Task{
		ID:         uuid.New(),
		UserID:     src.UserID,
		ProjectID:  src.ProjectID,
		CategoryID: src.CategoryID,
		Title:      src.Title,
		Notes:      src.Notes,
		SeriesID:   &seriesID,
		StartDate:  next,
		DueAt:      nil,
	}
	applySpec(successor, spec)

	err = store.Create(ctx, successor)
	if err == nil {
		return successor, nil
	}
	if !errors.Is(err, repository.ErrDuplicateOccurrence) {
		return nil, err
	}

	// Lost the race: a concurrent request inserted the successor between
	// our lookup and insert. Re-read exactly once and take that row.
	winner, ferr := store.FindBySeriesAndDate(ctx, seriesID, next)
	if ferr != nil {
		return nil, ferr
	}
	if winner == nil {
		return nil, err
	}
	return winner, nil
}
