package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/clipforge/pipeline/internal/config"
	"github.com/clipforge/pipeline/internal/http/response"
)

// CategoriesHandler serves the closed category set's display metadata,
// loaded once at startup from data/categories.yaml.
type CategoriesHandler struct {
	categories []config.CategoryMeta
}

func NewCategoriesHandler(categories []config.CategoryMeta) *CategoriesHandler {
	return &CategoriesHandler{categories: categories}
}

// GET /api/categories
func (h *CategoriesHandler) List(c *gin.Context) {
	response.RespondOK(c, gin.H{"categories": h.categories})
}
