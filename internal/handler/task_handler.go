package handler

import (
	"errors"
	"net/http"
	"time"

	"planner/internal/middleware"
	"planner/internal/model"
	"planner/internal/recurrence"
	"planner/internal/repository"
	"planner/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// dateLayout — все даты в API гражданские, без времени суток
const dateLayout = "2006-01-02"

type TaskHandler struct {
	tasks service.TaskServiceInterface
}

func NewTaskHandler(tasks service.TaskServiceInterface) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

// RepeatRequest представляет настройки повторения задачи
type RepeatRequest struct {
	Enabled    bool    `json:"enabled"`
	Pattern    *string `json:"pattern" binding:"omitempty,oneof=daily weekly monthly"`
	Days       *int    `json:"days"`
	WeeklyDay  *int    `json:"weekly_day"`
	MonthlyDay *int    `json:"monthly_day"`
}

// TaskRequest представляет запрос на создание задачи
type TaskRequest struct {
	Title      string         `json:"title" binding:"required"`
	Notes      string         `json:"notes"`
	ProjectID  *string        `json:"project_id" binding:"omitempty,uuid"`
	CategoryID *string        `json:"category_id" binding:"omitempty,uuid"`
	StartDate  string         `json:"start_date" binding:"omitempty,datetime=2006-01-02"`
	DueAt      *string        `json:"due_at" binding:"omitempty,datetime=2006-01-02"`
	Repeat     *RepeatRequest `json:"repeat"`
}

// TaskUpdateRequest представляет частичное обновление задачи
type TaskUpdateRequest struct {
	Title         *string        `json:"title"`
	Notes         *string        `json:"notes"`
	ProjectID     *string        `json:"project_id" binding:"omitempty,uuid"`
	ClearProject  bool           `json:"clear_project"`
	CategoryID    *string        `json:"category_id" binding:"omitempty,uuid"`
	ClearCategory bool           `json:"clear_category"`
	StartDate     *string        `json:"start_date" binding:"omitempty,datetime=2006-01-02"`
	DueAt         *string        `json:"due_at" binding:"omitempty,datetime=2006-01-02"`
	ClearDueAt    bool           `json:"clear_due_at"`
	Repeat        *RepeatRequest `json:"repeat"`
}

// CompleteRequest представляет запрос на завершение задачи
type CompleteRequest struct {
	CompletedOn *string `json:"completed_on" binding:"omitempty,datetime=2006-01-02"`
}

// BulkRequest представляет групповую операцию над выбранными задачами
type BulkRequest struct {
	TaskIDs    []string `json:"task_ids" binding:"required,min=1,dive,uuid"`
	Scope      string   `json:"scope" binding:"required,oneof=this future series"`
	Action     string   `json:"action" binding:"required,oneof=mark-done mark-open move-project set-category set-start-date set-due-date clear-due-date delete"`
	ProjectID  *string  `json:"project_id" binding:"omitempty,uuid"`
	CategoryID *string  `json:"category_id" binding:"omitempty,uuid"`
	StartDate  *string  `json:"start_date" binding:"omitempty,datetime=2006-01-02"`
	DueDate    *string  `json:"due_date" binding:"omitempty,datetime=2006-01-02"`
}

// TaskResponse представляет ответ с данными задачи
type TaskResponse struct {
	ID               string  `json:"id"`
	Title            string  `json:"title"`
	Notes            string  `json:"notes,omitempty"`
	ProjectID        *string `json:"project_id,omitempty"`
	CategoryID       *string `json:"category_id,omitempty"`
	SeriesID         *string `json:"series_id,omitempty"`
	StartDate        string  `json:"start_date"`
	DueAt            *string `json:"due_at,omitempty"`
	CompletedOn      *string `json:"completed_on,omitempty"`
	RepeatEnabled    bool    `json:"repeat_enabled"`
	RepeatPattern    *string `json:"repeat_pattern,omitempty"`
	RepeatDays       *int    `json:"repeat_days,omitempty"`
	RepeatWeeklyDay  *int    `json:"repeat_weekly_day,omitempty"`
	RepeatMonthlyDay *int    `json:"repeat_monthly_day,omitempty"`
}

// CompleteResponse представляет результат завершения задачи
type CompleteResponse struct {
	Task      TaskResponse  `json:"task"`
	Successor *TaskResponse `json:"successor,omitempty"`
}

func toTaskResponse(t *model.Task) TaskResponse {
	resp := TaskResponse{
		ID:               t.ID.String(),
		Title:            t.Title,
		Notes:            t.Notes,
		StartDate:        t.StartDate.Format(dateLayout),
		RepeatEnabled:    t.RepeatEnabled,
		RepeatPattern:    t.RepeatPattern,
		RepeatDays:       t.RepeatDays,
		RepeatWeeklyDay:  t.RepeatWeeklyDay,
		RepeatMonthlyDay: t.RepeatMonthlyDay,
	}
	if t.ProjectID != nil {
		s := t.ProjectID.String()
		resp.ProjectID = &s
	}
	if t.CategoryID != nil {
		s := t.CategoryID.String()
		resp.CategoryID = &s
	}
	if t.SeriesID != nil {
		s := t.SeriesID.String()
		resp.SeriesID = &s
	}
	if t.DueAt != nil {
		s := t.DueAt.Format(dateLayout)
		resp.DueAt = &s
	}
	if t.CompletedOn != nil {
		s := t.CompletedOn.Format(dateLayout)
		resp.CompletedOn = &s
	}
	return resp
}

func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	raw, exists := c.Get(middleware.UserIDKey)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return uuid.Nil, false
	}
	userID, ok := raw.(uuid.UUID)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Invalid user ID format"})
		return uuid.Nil, false
	}
	return userID, true
}

// respondServiceError переводит ошибки сервиса в HTTP-статусы, не
// протаскивая наружу детали хранилища
func respondServiceError(c *gin.Context, err error) {
	var verr *recurrence.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
	case errors.Is(err, service.ErrInvalidScope),
		errors.Is(err, service.ErrInvalidAction),
		errors.Is(err, service.ErrMissingArgument):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrTaskNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
	case errors.Is(err, repository.ErrProjectNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
	case errors.Is(err, repository.ErrCategoryNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Category not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func parseDate(s string) time.Time {
	t, _ := time.Parse(dateLayout, s)
	return t
}

func parseDatePtr(s *string) *time.Time {
	if s == nil {
		return nil
	}
	t := parseDate(*s)
	return &t
}

func parseUUIDPtr(s *string) *uuid.UUID {
	if s == nil {
		return nil
	}
	id, err := uuid.Parse(*s)
	if err != nil {
		return nil
	}
	return &id
}

func toRepeatInput(r *RepeatRequest) recurrence.Input {
	if r == nil {
		return recurrence.Input{}
	}
	return recurrence.Input{
		Enabled:    r.Enabled,
		Pattern:    r.Pattern,
		Days:       r.Days,
		WeeklyDay:  r.WeeklyDay,
		MonthlyDay: r.MonthlyDay,
	}
}

// Create создает новую задачу
func (h *TaskHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req TaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	in := service.TaskInput{
		Title:      req.Title,
		Notes:      req.Notes,
		ProjectID:  parseUUIDPtr(req.ProjectID),
		CategoryID: parseUUIDPtr(req.CategoryID),
		DueAt:      parseDatePtr(req.DueAt),
		Repeat:     toRepeatInput(req.Repeat),
	}
	if req.StartDate != "" {
		in.StartDate = parseDate(req.StartDate)
	}

	task, err := h.tasks.Create(c.Request.Context(), userID, in)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toTaskResponse(task))
}

// GetByID возвращает задачу по идентификатору
func (h *TaskHandler) GetByID(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task ID format"})
		return
	}

	task, err := h.tasks.Get(c.Request.Context(), userID, id)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, toTaskResponse(task))
}

// List возвращает задачи пользователя с необязательными фильтрами
func (h *TaskHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var filter repository.TaskFilter
	if raw := c.Query("project_id"); raw != "" {
		projectID, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid project ID format"})
			return
		}
		filter.ProjectID = &projectID
	}
	if raw := c.Query("category_id"); raw != "" {
		categoryID, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category ID format"})
			return
		}
		filter.CategoryID = &categoryID
	}
	if raw := c.Query("done"); raw != "" {
		done := raw == "true"
		filter.Done = &done
	}

	tasks, err := h.tasks.List(c.Request.Context(), userID, filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	resp := make([]TaskResponse, 0, len(tasks))
	for i := range tasks {
		resp = append(resp, toTaskResponse(&tasks[i]))
	}
	c.JSON(http.StatusOK, resp)
}

// Update применяет частичное изменение задачи
func (h *TaskHandler) Update(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task ID format"})
		return
	}

	var req TaskUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	patch := service.TaskUpdate{
		Title:         req.Title,
		Notes:         req.Notes,
		ProjectID:     parseUUIDPtr(req.ProjectID),
		ClearProject:  req.ClearProject,
		CategoryID:    parseUUIDPtr(req.CategoryID),
		ClearCategory: req.ClearCategory,
		StartDate:     parseDatePtr(req.StartDate),
		DueAt:         parseDatePtr(req.DueAt),
		ClearDueAt:    req.ClearDueAt,
	}
	if req.Repeat != nil {
		repeat := toRepeatInput(req.Repeat)
		patch.Repeat = &repeat
	}

	task, err := h.tasks.Update(c.Request.Context(), userID, id, patch)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, toTaskResponse(task))
}

// Complete переводит задачу в состояние "выполнена"; для повторяющейся
// задачи в ответ попадает созданный преемник
func (h *TaskHandler) Complete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task ID format"})
		return
	}

	// Пустое тело допустимо: дата завершения по умолчанию — сегодня
	var req CompleteRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
	}

	result, err := h.tasks.Complete(c.Request.Context(), userID, id, parseDatePtr(req.CompletedOn))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	resp := CompleteResponse{Task: toTaskResponse(result.Task)}
	if result.Successor != nil {
		succ := toTaskResponse(result.Successor)
		resp.Successor = &succ
	}
	c.JSON(http.StatusOK, resp)
}

// Reopen возвращает выполненную задачу в открытое состояние
func (h *TaskHandler) Reopen(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task ID format"})
		return
	}

	task, err := h.tasks.Reopen(c.Request.Context(), userID, id)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, toTaskResponse(task))
}

// Delete удаляет задачу с указанной областью (this/future/series)
func (h *TaskHandler) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task ID format"})
		return
	}

	scope := c.DefaultQuery("scope", service.ScopeThis)

	if err := h.tasks.Delete(c.Request.Context(), userID, id, scope); err != nil {
		respondServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Bulk применяет действие к выбранным задачам с расширением области
func (h *TaskHandler) Bulk(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req BulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	ids := make([]uuid.UUID, 0, len(req.TaskIDs))
	for _, raw := range req.TaskIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task ID format"})
			return
		}
		ids = append(ids, id)
	}

	args := service.BulkArgs{
		ProjectID:  parseUUIDPtr(req.ProjectID),
		CategoryID: parseUUIDPtr(req.CategoryID),
		StartDate:  parseDatePtr(req.StartDate),
		DueDate:    parseDatePtr(req.DueDate),
	}

	if err := h.tasks.BulkApply(c.Request.Context(), userID, ids, req.Scope, req.Action, args); err != nil {
		respondServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
