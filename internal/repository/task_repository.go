package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"planner/internal/model"
)

// TaskFilter narrows List results. Nil fields are ignored.
type TaskFilter struct {
	ProjectID  *uuid.UUID
	CategoryID *uuid.UUID
	Done       *bool
}

// TaskStore is the storage contract the occurrence engine runs against:
// point and series lookups, inserts that report uniqueness violations as
// ErrDuplicateOccurrence, conditional lifecycle transitions, and a scoped
// transaction with rollback on any failure.
type TaskStore interface {
	Create(ctx context.Context, task *model.Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Task, error)
	GetByIDs(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) ([]model.Task, error)
	List(ctx context.Context, userID uuid.UUID, filter TaskFilter) ([]model.Task, error)
	Save(ctx context.Context, task *model.Task) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByIDs(ctx context.Context, ids []uuid.UUID) error
	DeleteSeriesFrom(ctx context.Context, seriesID uuid.UUID, from time.Time) error
	DeleteSeries(ctx context.Context, seriesID uuid.UUID) error
	FindBySeriesAndDate(ctx context.Context, seriesID uuid.UUID, date time.Time) (*model.Task, error)
	FindLegacySibling(ctx context.Context, like *model.Task, date time.Time) (*model.Task, error)
	ListSeries(ctx context.Context, seriesID uuid.UUID) ([]model.Task, error)
	ListSeriesFrom(ctx context.Context, seriesID uuid.UUID, from time.Time) ([]model.Task, error)
	HasLaterOccurrence(ctx context.Context, seriesID uuid.UUID, after time.Time) (bool, error)
	MarkDone(ctx context.Context, id uuid.UUID, completedOn, completedAt time.Time) (bool, error)
	MarkOpen(ctx context.Context, id uuid.UUID) (bool, error)
	UpdateFields(ctx context.Context, ids []uuid.UUID, fields map[string]interface{}) error
	Transaction(ctx context.Context, fn func(TaskStore) error) error
}

type TaskRepository struct {
	db *gorm.DB
}

var _ TaskStore = (*TaskRepository)(nil)

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Create adds a new task to the database. An insert that loses the race on
// the (series_id, start_date) unique index comes back as
// ErrDuplicateOccurrence; requires TranslateError on the gorm config.
func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	err := r.db.WithContext(ctx).Create(task).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateOccurrence
	}
	return err
}

// GetByID retrieves a task by its ID
func (r *TaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	var task model.Task
	result := r.db.WithContext(ctx).First(&task, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, result.Error
	}
	return &task, nil
}

// GetByIDs retrieves the user's tasks among the given ids; ids belonging to
// another user are silently absent from the result.
func (r *TaskRepository) GetByIDs(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) ([]model.Task, error) {
	var tasks []model.Task
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND id IN ?", userID, ids).
		Find(&tasks)
	if result.Error != nil {
		return nil, result.Error
	}
	return tasks, nil
}

// List retrieves the user's tasks, optionally narrowed by filter.
func (r *TaskRepository) List(ctx context.Context, userID uuid.UUID, filter TaskFilter) ([]model.Task, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if filter.ProjectID != nil {
		q = q.Where("project_id = ?", *filter.ProjectID)
	}
	if filter.CategoryID != nil {
		q = q.Where("category_id = ?", *filter.CategoryID)
	}
	if filter.Done != nil {
		if *filter.Done {
			q = q.Where("completed_on IS NOT NULL")
		} else {
			q = q.Where("completed_on IS NULL")
		}
	}

	var tasks []model.Task
	result := q.Order("start_date, created_at").Find(&tasks)
	if result.Error != nil {
		return nil, result.Error
	}
	return tasks, nil
}

// Save persists all fields of an existing task.
func (r *TaskRepository) Save(ctx context.Context, task *model.Task) error {
	result := r.db.WithContext(ctx).Save(task)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return ErrDuplicateOccurrence
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// Delete removes a task by its ID
func (r *TaskRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&model.Task{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// DeleteByIDs removes all tasks in ids as one set-based statement.
func (r *TaskRepository) DeleteByIDs(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Delete(&model.Task{}, "id IN ?", ids).Error
}

// DeleteSeriesFrom removes every occurrence of the series with a start date
// at or after from.
func (r *TaskRepository) DeleteSeriesFrom(ctx context.Context, seriesID uuid.UUID, from time.Time) error {
	return r.db.WithContext(ctx).
		Delete(&model.Task{}, "series_id = ? AND start_date >= ?", seriesID, from).Error
}

// DeleteSeries removes every occurrence of the series.
func (r *TaskRepository) DeleteSeries(ctx context.Context, seriesID uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.Task{}, "series_id = ?", seriesID).Error
}

// FindBySeriesAndDate returns the occurrence at (seriesID, date), or
// nil, nil when none exists.
func (r *TaskRepository) FindBySeriesAndDate(ctx context.Context, seriesID uuid.UUID, date time.Time) (*model.Task, error) {
	var task model.Task
	err := r.db.WithContext(ctx).
		Where("series_id = ? AND start_date = ?", seriesID, date).
		First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// FindLegacySibling returns a row with no series identity on the same civil
// date whose descriptive fields and repeat configuration match like — data
// created before series ids existed. Returns nil, nil when none matches.
func (r *TaskRepository) FindLegacySibling(ctx context.Context, like *model.Task, date time.Time) (*model.Task, error) {
	var task model.Task
	err := r.db.WithContext(ctx).
		Where("series_id IS NULL AND user_id = ? AND start_date = ?", like.UserID, date).
		Where("title = ? AND notes = ?", like.Title, like.Notes).
		Where("project_id IS NOT DISTINCT FROM ?", like.ProjectID).
		Where("category_id IS NOT DISTINCT FROM ?", like.CategoryID).
		Where("repeat_enabled = ?", like.RepeatEnabled).
		Where("repeat_pattern IS NOT DISTINCT FROM ?", like.RepeatPattern).
		Where("repeat_days IS NOT DISTINCT FROM ?", like.RepeatDays).
		Where("repeat_weekly_day IS NOT DISTINCT FROM ?", like.RepeatWeeklyDay).
		Where("repeat_monthly_day IS NOT DISTINCT FROM ?", like.RepeatMonthlyDay).
		First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// ListSeries retrieves all occurrences of a series ordered by start date.
func (r *TaskRepository) ListSeries(ctx context.Context, seriesID uuid.UUID) ([]model.Task, error) {
	var tasks []model.Task
	result := r.db.WithContext(ctx).
		Where("series_id = ?", seriesID).
		Order("start_date").
		Find(&tasks)
	if result.Error != nil {
		return nil, result.Error
	}
	return tasks, nil
}

// ListSeriesFrom retrieves the occurrences of a series with a start date at
// or after from, ordered by start date.
func (r *TaskRepository) ListSeriesFrom(ctx context.Context, seriesID uuid.UUID, from time.Time) ([]model.Task, error) {
	var tasks []model.Task
	result := r.db.WithContext(ctx).
		Where("series_id = ? AND start_date >= ?", seriesID, from).
		Order("start_date").
		Find(&tasks)
	if result.Error != nil {
		return nil, result.Error
	}
	return tasks, nil
}

// HasLaterOccurrence reports whether the series has any occurrence with a
// start date strictly after the given date.
func (r *TaskRepository) HasLaterOccurrence(ctx context.Context, seriesID uuid.UUID, after time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("series_id = ? AND start_date > ?", seriesID, after).
		Count(&count).Error
	return count > 0, err
}

// MarkDone transitions a task Open → Done. The update is guarded by the
// current state so concurrent completions have a single winner; the return
// value reports whether this call won.
func (r *TaskRepository) MarkDone(ctx context.Context, id uuid.UUID, completedOn, completedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ? AND completed_on IS NULL", id).
		Updates(map[string]interface{}{
			"completed_on": completedOn,
			"completed_at": completedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkOpen transitions a task Done → Open under the same guarded-update
// scheme as MarkDone.
func (r *TaskRepository) MarkOpen(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ? AND completed_on IS NOT NULL", id).
		Updates(map[string]interface{}{
			"completed_on": nil,
			"completed_at": nil,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// UpdateFields applies the same column values to every task in ids.
func (r *TaskRepository) UpdateFields(ctx context.Context, ids []uuid.UUID, fields map[string]interface{}) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id IN ?", ids).
		Updates(fields).Error
}

// Transaction runs fn against a store bound to one database transaction;
// any error rolls the whole unit back.
func (r *TaskRepository) Transaction(ctx context.Context, fn func(TaskStore) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&TaskRepository{db: tx})
	})
}
