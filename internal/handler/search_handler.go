package handler

import (
	"errors"
	"net/http"

	"muichiro-nexus/internal/model"
	"muichiro-nexus/internal/service"
	"muichiro-nexus/pkg/log"

	"github.com/gin-gonic/gin"
)

// SearchHandler serves keyword and semantic search.
type SearchHandler struct {
	searchService   service.SearchService
	semanticService service.SemanticSearchService
}

func NewSearchHandler(searchService service.SearchService, semanticService service.SemanticSearchService) *SearchHandler {
	return &SearchHandler{searchService: searchService, semanticService: semanticService}
}

type searchRequest struct {
	Query   string              `json:"query"`
	Filters model.SearchFilters `json:"filters"`
}

func (h *SearchHandler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	results, err := h.searchService.Search(c.Request.Context(), currentUser(c).ID, req.Query, req.Filters)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, "Search completed", gin.H{"results": results})
}

type semanticSearchRequest struct {
	UserID string `json:"userId"`
	Query  string `json:"query"`
	TopK   int    `json:"topK"`
}

// Semantic answers {matches} or {error} rather than the usual envelope.
// userId must name the caller, by internal or identity-provider id.
func (h *SearchHandler) Semantic(c *gin.Context) {
	var req semanticSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" || req.Query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload"})
		return
	}

	user := currentUser(c)
	if req.UserID != user.ID && req.UserID != user.ExternalID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return
	}

	matches, err := h.semanticService.Search(c.Request.Context(), user.ID, req.Query, req.TopK)
	if err != nil {
		if errors.Is(err, service.ErrInvalidSearch) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload"})
			return
		}
		log.Errorf("[SearchHandler] semantic search failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": matches})
}
