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

// Scopes of a delete or bulk operation over a recurring series.
const (
	ScopeThis   = "this"
	ScopeFuture = "future"
	ScopeSeries = "series"
)

var (
	// ErrInvalidScope is returned for a scope outside this/future/series.
	ErrInvalidScope = errors.New(`scope must be one of "this", "future", "series"`)

	// ErrInvalidAction is returned for an unknown bulk action.
	ErrInvalidAction = errors.New("unknown bulk action")
)

// TaskServiceInterface is the command surface handlers talk to.
type TaskServiceInterface interface {
	Create(ctx context.Context, userID uuid.UUID, in TaskInput) (*model.Task, error)
	Update(ctx context.Context, userID, id uuid.UUID, patch TaskUpdate) (*model.Task, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*model.Task, error)
	List(ctx context.Context, userID uuid.UUID, filter repository.TaskFilter) ([]model.Task, error)
	Complete(ctx context.Context, userID, id uuid.UUID, completedOn *time.Time) (*CompleteResult, error)
	Reopen(ctx context.Context, userID, id uuid.UUID) (*model.Task, error)
	Delete(ctx context.Context, userID, id uuid.UUID, scope string) error
	BulkApply(ctx context.Context, userID uuid.UUID, ids []uuid.UUID, scope, action string, args BulkArgs) error
}

// TaskService wraps task business logic: recurrence normalization, the
// occurrence lifecycle and the bulk/scope operations.
type TaskService struct {
	tasks      repository.TaskStore
	projects   repository.ProjectRepositoryInterface
	categories repository.CategoryRepositoryInterface
}

var _ TaskServiceInterface = (*TaskService)(nil)

func NewTaskService(
	tasks repository.TaskStore,
	projects repository.ProjectRepositoryInterface,
	categories repository.CategoryRepositoryInterface,
) *TaskService {
	return &TaskService{tasks: tasks, projects: projects, categories: categories}
}

// TaskInput carries the fields for creating a task.
type TaskInput struct {
	Title      string
	Notes      string
	ProjectID  *uuid.UUID
	CategoryID *uuid.UUID
	StartDate  time.Time
	DueAt      *time.Time
	Repeat     recurrence.Input
}

// TaskUpdate carries a partial edit; nil fields are left unchanged. Clear
// flags reset the corresponding optional field.
type TaskUpdate struct {
	Title         *string
	Notes         *string
	ProjectID     *uuid.UUID
	ClearProject  bool
	CategoryID    *uuid.UUID
	ClearCategory bool
	StartDate     *time.Time
	DueAt         *time.Time
	ClearDueAt    bool
	Repeat        *recurrence.Input
}

// Create validates and persists a new task. Enabling recurrence makes the
// task its own series anchor.
func (s *TaskService) Create(ctx context.Context, userID uuid.UUID, in TaskInput) (*model.Task, error) {
	start := recurrence.CivilDate(in.StartDate)
	if in.StartDate.IsZero() {
		start = recurrence.CivilDate(time.Now())
	}

	repeat := in.Repeat
	repeat.Reference = start
	spec, err := recurrence.Normalize(repeat)
	if err != nil {
		return nil, err
	}

	task := &model.Task{
		ID:         uuid.New(),
		UserID:     userID,
		ProjectID:  in.ProjectID,
		CategoryID: in.CategoryID,
		Title:      in.Title,
		Notes:      in.Notes,
		StartDate:  start,
	}
	if in.DueAt != nil {
		due := recurrence.CivilDate(*in.DueAt)
		task.DueAt = &due
	}
	if spec.Enabled {
		anchor := task.SeriesAnchor()
		task.SeriesID = &anchor
	}
	applySpec(task, spec)

	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// Update applies a partial edit. The recurrence spec is re-normalized over
// the merged field set, new values over existing ones; enabling recurrence
// on a plain task assigns it a series identity.
func (s *TaskService) Update(ctx context.Context, userID, id uuid.UUID, patch TaskUpdate) (*model.Task, error) {
	var updated *model.Task
	err := s.tasks.Transaction(ctx, func(store repository.TaskStore) error {
		task, err := store.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if task.UserID != userID {
			return repository.ErrTaskNotFound
		}

		if patch.Title != nil {
			task.Title = *patch.Title
		}
		if patch.Notes != nil {
			task.Notes = *patch.Notes
		}
		if patch.ClearProject {
			task.ProjectID = nil
		} else if patch.ProjectID != nil {
			task.ProjectID = patch.ProjectID
		}
		if patch.ClearCategory {
			task.CategoryID = nil
		} else if patch.CategoryID != nil {
			task.CategoryID = patch.CategoryID
		}
		if patch.StartDate != nil {
			task.StartDate = recurrence.CivilDate(*patch.StartDate)
		}
		if patch.ClearDueAt {
			task.DueAt = nil
		} else if patch.DueAt != nil {
			due := recurrence.CivilDate(*patch.DueAt)
			task.DueAt = &due
		}

		spec, err := recurrence.Normalize(mergeRepeat(task, patch.Repeat))
		if err != nil {
			return err
		}
		if spec.Enabled && task.SeriesID == nil {
			anchor := task.SeriesAnchor()
			task.SeriesID = &anchor
		}
		applySpec(task, spec)

		if err := store.Save(ctx, task); err != nil {
			return err
		}
		updated = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Get returns the user's task by id.
func (s *TaskService) Get(ctx context.Context, userID, id uuid.UUID) (*model.Task, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.UserID != userID {
		return nil, repository.ErrTaskNotFound
	}
	return task, nil
}

// List returns the user's tasks, optionally filtered.
func (s *TaskService) List(ctx context.Context, userID uuid.UUID, filter repository.TaskFilter) ([]model.Task, error) {
	return s.tasks.List(ctx, userID, filter)
}

// mergeRepeat builds the normalization input from the task's stored
// recurrence fields overridden by patch where supplied. The task's (possibly
// just edited) start date is the reference for defaults.
func mergeRepeat(task *model.Task, patch *recurrence.Input) recurrence.Input {
	in := recurrence.Input{
		Enabled:    task.RepeatEnabled,
		Pattern:    task.RepeatPattern,
		Days:       task.RepeatDays,
		WeeklyDay:  task.RepeatWeeklyDay,
		MonthlyDay: task.RepeatMonthlyDay,
		Reference:  recurrence.CivilDate(task.StartDate),
	}
	if patch == nil {
		return in
	}

	in.Enabled = patch.Enabled
	if patch.Pattern != nil {
		in.Pattern = patch.Pattern
	}
	if patch.Days != nil {
		in.Days = patch.Days
	}
	if patch.WeeklyDay != nil {
		in.WeeklyDay = patch.WeeklyDay
	}
	if patch.MonthlyDay != nil {
		in.MonthlyDay = patch.MonthlyDay
	}
	return in
}

// applySpec writes a normalized spec back to the task's repeat columns,
// nulling every field the pattern does not use.
func applySpec(task *model.Task, spec recurrence.Spec) {
	task.RepeatEnabled = spec.Enabled
	task.RepeatPattern = nil
	task.RepeatDays = nil
	task.RepeatWeeklyDay = nil
	task.RepeatMonthlyDay = nil
	if !spec.Enabled {
		return
	}

	pattern := spec.Pattern
	task.RepeatPattern = &pattern
	switch spec.Pattern {
	case recurrence.Daily:
		days := spec.Days
		task.RepeatDays = &days
	case recurrence.Weekly:
		days := spec.Days
		day := spec.WeeklyDay
		task.RepeatDays = &days
		task.RepeatWeeklyDay = &day
	case recurrence.Monthly:
		day := spec.MonthlyDay
		task.RepeatMonthlyDay = &day
	}
}

// storedSpec re-normalizes the task's persisted recurrence fields. This is
// the authoritative normalization run just before generating a successor.
func storedSpec(task *model.Task) (recurrence.Spec, error) {
	return recurrence.Normalize(mergeRepeat(task, nil))
}
