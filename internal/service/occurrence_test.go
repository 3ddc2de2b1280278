package service_test

import (
	"context"
	"testing"
	"time"

	"planner/internal/model"
	"planner/internal/recurrence"
	"planner/internal/repository"
	"planner/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestComplete_DailySpawnsNextDay(t *testing.T) {
	svc, store, _, _ := newService()
	userID := uuid.New()
	task := recurringTask(userID, recurrence.Daily, date(2024, time.March, 1))
	seriesID := *task.SeriesID
	next := date(2024, time.March, 2)

	var created *model.Task
	store.On("GetByID", mock.Anything, task.ID).Return(task, nil)
	store.On("MarkDone", mock.Anything, task.ID, date(2024, time.March, 1), mock.Anything).Return(true, nil)
	store.On("FindBySeriesAndDate", mock.Anything, seriesID, next).Return(nil, nil)
	store.On("FindLegacySibling", mock.Anything, mock.Anything, next).Return(nil, nil)
	store.On("Create", mock.Anything, mock.AnythingOfType("*model.Task")).
		Run(func(args mock.Arguments) { created = args.Get(1).(*model.Task) }).
		Return(nil)

	completedOn := date(2024, time.March, 1)
	result, err := svc.Complete(context.Background(), userID, task.ID, &completedOn)

	require.NoError(t, err)
	require.NotNil(t, result.Successor)
	require.NotNil(t, created)
	assert.Equal(t, next, created.StartDate)
	require.NotNil(t, created.SeriesID)
	assert.Equal(t, seriesID, *created.SeriesID)
	assert.Equal(t, task.Title, created.Title)
	assert.Nil(t, created.DueAt)
	assert.Nil(t, created.CompletedOn)
	assert.True(t, created.RepeatEnabled)
	require.NotNil(t, created.RepeatDays)
	assert.Equal(t, recurrence.EveryDay, *created.RepeatDays)
	store.AssertExpectations(t)
}

func TestComplete_WeeklyLandsNextWednesday(t *testing.T) {
	svc, store, _, _ := newService()
	userID := uuid.New()
	wednesday := date(2024, time.March, 6)
	task := recurringTask(userID, recurrence.Weekly, wednesday)
	next := date(2024, time.March, 13)

	var created *model.Task
	store.On("GetByID", mock.Anything, task.ID).Return(task, nil)
	store.On("MarkDone", mock.Anything, task.ID, wednesday, mock.Anything).Return(true, nil)
	store.On("FindBySeriesAndDate", mock.Anything, *task.SeriesID, next).Return(nil, nil)
	store.On("FindLegacySibling", mock.Anything, mock.Anything, next).Return(nil, nil)
	store.On("Create", mock.Anything, mock.AnythingOfType("*model.Task")).
		Run(func(args mock.Arguments) { created = args.Get(1).(*model.Task) }).
		Return(nil)

	completedOn := wednesday
	_, err := svc.Complete(context.Background(), userID, task.ID, &completedOn)

	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, next, created.StartDate)
	assert.Equal(t, 3, recurrence.Weekday(created.StartDate))
	store.AssertExpectations(t)
}

func TestComplete_MonthlyDay31ClampsToLeapFebruary(t *testing.T) {
	svc, store, _, _ := newService()
	userID := uuid.New()
	task := recurringTask(userID, recurrence.Monthly, date(2024, time.January, 31))
	next := date(2024, time.February, 29)

	var created *model.Task
	store.On("GetByID", mock.Anything, task.ID).Return(task, nil)
	store.On("MarkDone", mock.Anything, task.ID, date(2024, time.January, 31), mock.Anything).Return(true, nil)
	store.On("FindBySeriesAndDate", mock.Anything, *task.SeriesID, next).Return(nil, nil)
	store.On("FindLegacySibling", mock.Anything, mock.Anything, next).Return(nil, nil)
	store.On("Create", mock.Anything, mock.AnythingOfType("*model.Task")).
		Run(func(args mock.Arguments) { created = args.Get(1).(*model.Task) }).
		Return(nil)

	completedOn := date(2024, time.January, 31)
	_, err := svc.Complete(context.Background(), userID, task.ID, &completedOn)

	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, next, created.StartDate)
	store.AssertExpectations(t)
}

func TestComplete_ExistingSuccessorReused(t *testing.T) {
	// Invoking the materializer when the successor already exists must not
	// insert a second row for the same (series, date).
	svc, store, _, _ := newService()
	userID := uuid.New()
	task := recurringTask(userID, recurrence.Daily, date(2024, time.March, 1))
	next := date(2024, time.March, 2)
	existing := &model.Task{ID: uuid.New(), UserID: userID, SeriesID: task.SeriesID, StartDate: next}

	store.On("GetByID", mock.Anything, task.ID).Return(task, nil)
	store.On("MarkDone", mock.Anything, task.ID, date(2024, time.March, 1), mock.Anything).Return(true, nil)
	store.On("FindBySeriesAndDate", mock.Anything, *task.SeriesID, next).Return(existing, nil)

	completedOn := date(2024, time.March, 1)
	result, err := svc.Complete(context.Background(), userID, task.ID, &completedOn)

	require.NoError(t, err)
	assert.Equal(t, existing, result.Successor)
	store.AssertNotCalled(t, "Create")
	store.AssertNotCalled(t, "FindLegacySibling")
	store.AssertExpectations(t)
}

func TestComplete_LostInsertRaceReconciles(t *testing.T) {
	// Two concurrent completions both compute the same successor; the one
	// losing the unique-index race re-reads once and reports the winner's
	// row. The conflict never surfaces to the caller.
	svc, store, _, _ := newService()
	userID := uuid.New()
	task := recurringTask(userID, recurrence.Daily, date(2024, time.March, 1))
	next := date(2024, time.March, 2)
	winner := &model.Task{ID: uuid.New(), UserID: userID, SeriesID: task.SeriesID, StartDate: next}

	store.On("GetByID", mock.Anything, task.ID).Return(task, nil)
	store.On("MarkDone", mock.Anything, task.ID, date(2024, time.March, 1), mock.Anything).Return(true, nil)
	store.On("FindBySeriesAndDate", mock.Anything, *task.SeriesID, next).Return(nil, nil).Once()
	store.On("FindLegacySibling", mock.Anything, mock.Anything, next).Return(nil, nil)
	store.On("Create", mock.Anything, mock.AnythingOfType("*model.Task")).Return(repository.ErrDuplicateOccurrence)
	store.On("FindBySeriesAndDate", mock.Anything, *task.SeriesID, next).Return(winner, nil).Once()

	completedOn := date(2024, time.March, 1)
	result, err := svc.Complete(context.Background(), userID, task.ID, &completedOn)

	require.NoError(t, err)
	assert.Equal(t, winner, result.Successor)
	store.AssertExpectations(t)
}

func TestComplete_LegacySiblingAdopted(t *testing.T) {
	svc, store, _, _ := newService()
	userID := uuid.New()
	task := recurringTask(userID, recurrence.Daily, date(2024, time.March, 1))
	next := date(2024, time.March, 2)
	legacy := &model.Task{
		ID:            uuid.New(),
		UserID:        userID,
		Title:         task.Title,
		StartDate:     next,
		RepeatEnabled: true,
		RepeatPattern: task.RepeatPattern,
		RepeatDays:    task.RepeatDays,
	}

	store.On("GetByID", mock.Anything, task.ID).Return(task, nil)
	store.On("MarkDone", mock.Anything, task.ID, date(2024, time.March, 1), mock.Anything).Return(true, nil)
	store.On("FindBySeriesAndDate", mock.Anything, *task.SeriesID, next).Return(nil, nil)
	store.On("FindLegacySibling", mock.Anything, mock.Anything, next).Return(legacy, nil)
	store.On("Save", mock.Anything, legacy).Return(nil)

	completedOn := date(2024, time.March, 1)
	result, err := svc.Complete(context.Background(), userID, task.ID, &completedOn)

	require.NoError(t, err)
	require.NotNil(t, result.Successor)
	require.NotNil(t, result.Successor.SeriesID)
	assert.Equal(t, *task.SeriesID, *result.Successor.SeriesID)
	store.AssertNotCalled(t, "Create")
	store.AssertExpectations(t)
}

func TestComplete_LoserOfConditionalUpdateSkipsMaterializer(t *testing.T) {
	// Второй из двух конкурирующих запросов проигрывает условный апдейт и
	// не создает преемника.
	svc, store, _, _ := newService()
	userID := uuid.New()
	task := recurringTask(userID, recurrence.Daily, date(2024, time.March, 1))
	done := date(2024, time.March, 1)
	doneTask := *task
	doneTask.CompletedOn = &done

	store.On("GetByID", mock.Anything, task.ID).Return(task, nil).Once()
	store.On("MarkDone", mock.Anything, task.ID, done, mock.Anything).Return(false, nil)
	store.On("GetByID", mock.Anything, task.ID).Return(&doneTask, nil).Once()

	result, err := svc.Complete(context.Background(), userID, task.ID, &done)

	require.NoError(t, err)
	assert.Nil(t, result.Successor)
	require.NotNil(t, result.Task.CompletedOn)
	store.AssertNotCalled(t, "FindBySeriesAndDate")
	store.AssertNotCalled(t, "Create")
	store.AssertExpectations(t)
}

func TestComplete_NonRecurringHasNoSuccessor(t *testing.T) {
	svc, store, _, _ := newService()
	userID := uuid.New()
	task := &model.Task{ID: uuid.New(), UserID: userID, Title: "one-off", StartDate: date(2024, time.March, 1)}

	store.On("GetByID", mock.Anything, task.ID).Return(task, nil)
	store.On("MarkDone", mock.Anything, task.ID, mock.Anything, mock.Anything).Return(true, nil)

	result, err := svc.Complete(context.Background(), userID, task.ID, nil)

	require.NoError(t, err)
	assert.Nil(t, result.Successor)
	require.NotNil(t, result.Task.CompletedOn)
	store.AssertNotCalled(t, "Create")
	store.AssertExpectations(t)
}

func TestReopen_ClearsCompletionAndKeepsSuccessor(t *testing.T) {
	svc, store, _, _ := newService()
	userID := uuid.New()
	done := date(2024, time.March, 1)
	task := recurringTask(userID, recurrence.Daily, date(2024, time.March, 1))
	task.CompletedOn = &done

	store.On("GetByID", mock.Anything, task.ID).Return(task, nil)
	store.On("MarkOpen", mock.Anything, task.ID).Return(true, nil)

	updated, err := svc.Reopen(context.Background(), userID, task.ID)

	require.NoError(t, err)
	assert.Nil(t, updated.CompletedOn)
	assert.Nil(t, updated.CompletedAt)
	// Никаких обращений к серии: преемник остается как есть.
	store.AssertNotCalled(t, "FindBySeriesAndDate")
	store.AssertNotCalled(t, "Delete")
	store.AssertExpectations(t)
}

func TestDelete_ThisWithoutLaterOccurrenceSpawnsSuccessor(t *testing.T) {
	svc, store, _, _ := newService()
	userID := uuid.New()
	task := recurringTask(userID, recurrence.Daily, date(2024, time.March, 1))
	next := date(2024, time.March, 2)

	var created *model.Task
	store.On("GetByID", mock.Anything, task.ID).Return(task, nil)
	store.On("Delete", mock.Anything, task.ID).Return(nil)
	store.On("HasLaterOccurrence", mock.Anything, *task.SeriesID, date(2024, time.March, 1)).Return(false, nil)
	store.On("FindBySeriesAndDate", mock.Anything, *task.SeriesID, next).Return(nil, nil)
	store.On("FindLegacySibling", mock.Anything, mock.Anything, next).Return(nil, nil)
	store.On("Create", mock.Anything, mock.AnythingOfType("*model.Task")).
		Run(func(args mock.Arguments) { created = args.Get(1).(*model.Task) }).
		Return(nil)

	err := svc.Delete(context.Background(), userID, task.ID, service.ScopeThis)

	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, next, created.StartDate)
	store.AssertExpectations(t)
}

func TestDelete_ThisWithLaterOccurrenceLeavesSeriesAlone(t *testing.T) {
	svc, store, _, _ := newService()
	userID := uuid.New()
	task := recurringTask(userID, recurrence.Daily, date(2024, time.March, 1))

	store.On("GetByID", mock.Anything, task.ID).Return(task, nil)
	store.On("Delete", mock.Anything, task.ID).Return(nil)
	store.On("HasLaterOccurrence", mock.Anything, *task.SeriesID, date(2024, time.March, 1)).Return(true, nil)

	err := svc.Delete(context.Background(), userID, task.ID, service.ScopeThis)

	require.NoError(t, err)
	store.AssertNotCalled(t, "Create")
	store.AssertExpectations(t)
}

func TestDelete_FutureTruncatesSeries(t *testing.T) {
	svc, store, _, _ := newService()
	userID := uuid.New()
	task := recurringTask(userID, recurrence.Daily, date(2024, time.March, 5))

	store.On("GetByID", mock.Anything, task.ID).Return(task, nil)
	store.On("DeleteSeriesFrom", mock.Anything, *task.SeriesID, date(2024, time.March, 5)).Return(nil)

	err := svc.Delete(context.Background(), userID, task.ID, service.ScopeFuture)

	require.NoError(t, err)
	// Окно усечено намеренно: преемник не создается.
	store.AssertNotCalled(t, "Create")
	store.AssertNotCalled(t, "HasLaterOccurrence")
	store.AssertExpectations(t)
}

func TestDelete_SeriesRemovesWholeChain(t *testing.T) {
	svc, store, _, _ := newService()
	userID := uuid.New()
	task := recurringTask(userID, recurrence.Daily, date(2024, time.March, 5))

	store.On("GetByID", mock.Anything, task.ID).Return(task, nil)
	store.On("DeleteSeries", mock.Anything, *task.SeriesID).Return(nil)

	err := svc.Delete(context.Background(), userID, task.ID, service.ScopeSeries)

	require.NoError(t, err)
	store.AssertNotCalled(t, "Create")
	store.AssertExpectations(t)
}

func TestDelete_NonRecurringIgnoresScopeExpansion(t *testing.T) {
	svc, store, _, _ := newService()
	userID := uuid.New()
	task := &model.Task{ID: uuid.New(), UserID: userID, Title: "one-off", StartDate: date(2024, time.March, 1)}

	store.On("GetByID", mock.Anything, task.ID).Return(task, nil)
	store.On("Delete", mock.Anything, task.ID).Return(nil)

	err := svc.Delete(context.Background(), userID, task.ID, service.ScopeSeries)

	require.NoError(t, err)
	store.AssertNotCalled(t, "DeleteSeries")
	store.AssertExpectations(t)
}

func TestDelete_InvalidScope(t *testing.T) {
	svc, store, _, _ := newService()
	userID := uuid.New()
	task := &model.Task{ID: uuid.New(), UserID: userID, StartDate: date(2024, time.March, 1)}

	store.On("GetByID", mock.Anything, task.ID).Return(task, nil)

	err := svc.Delete(context.Background(), userID, task.ID, "everything")

	assert.ErrorIs(t, err, service.ErrInvalidScope)
	store.AssertNotCalled(t, "Delete")
}
