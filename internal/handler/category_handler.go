package handler

import (
	"errors"
	"net/http"

	"planner/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CategoryHandler struct {
	repo repository.CategoryRepositoryInterface
}

func NewCategoryHandler(repo repository.CategoryRepositoryInterface) *CategoryHandler {
	return &CategoryHandler{repo: repo}
}

// CategoryRequest представляет запрос на создание категории
type CategoryRequest struct {
	Name string `json:"name" binding:"required"`
}

// CategoryResponse представляет ответ с данными категории
type CategoryResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Create создает категорию или возвращает существующую с тем же именем
func (h *CategoryHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	category, err := h.repo.GetOrCreate(c.Request.Context(), userID, req.Name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create category"})
		return
	}

	c.JSON(http.StatusCreated, CategoryResponse{ID: category.ID.String(), Name: category.Name})
}

// GetAll возвращает категории пользователя
func (h *CategoryHandler) GetAll(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	categories, err := h.repo.GetOwned(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve categories"})
		return
	}

	resp := make([]CategoryResponse, 0, len(categories))
	for _, category := range categories {
		resp = append(resp, CategoryResponse{ID: category.ID.String(), Name: category.Name})
	}
	c.JSON(http.StatusOK, resp)
}

// Delete удаляет категорию
func (h *CategoryHandler) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category ID format"})
		return
	}

	category, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrCategoryNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Category not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve category"})
		return
	}
	if category.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Category not found"})
		return
	}

	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete category"})
		return
	}

	c.Status(http.StatusNoContent)
}
