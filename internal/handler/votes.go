package handler

import (
	"context"
	"net/http"
	"net/url"

	"crag-clusters/internal/models"

	"github.com/gin-gonic/gin"
)

// VoteHandler handles vote lookup requests
type VoteHandler struct {
	service VoteService
}

// Service interface for dependency injection
type VoteService interface {
	Lookup(context.Context, string) (*models.RouteVote, error)
	LookupBatch(context.Context, []string) ([]models.RouteVote, error)
}

// NewVoteHandler creates a new vote handler
func NewVoteHandler(svc VoteService) *VoteHandler {
	return &VoteHandler{service: svc}
}

type batchRequest struct {
	URLs []string `json:"urls" binding:"required,min=1,max=1000,dive,required"`
}

// Lookup handles GET /votes requests
func (h *VoteHandler) Lookup(c *gin.Context) {
	routeURL := c.Query("url")
	if routeURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing required query parameter 'url'"})
		return
	}

	if !isRouteURL(routeURL) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid url format"})
		return
	}

	vote, err := h.service.Lookup(c.Request.Context(), routeURL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	if vote == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no votes stored for the specified url"})
		return
	}

	c.JSON(http.StatusOK, vote)
}

// Batch handles POST /votes requests
func (h *VoteHandler) Batch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be {\"urls\": [...]} with at least one url"})
		return
	}

	for _, u := range req.URLs {
		if !isRouteURL(u) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid url format"})
			return
		}
	}

	votes, err := h.service.LookupBatch(c.Request.Context(), req.URLs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, votes)
}

func isRouteURL(s string) bool {
	u, err := url.ParseRequestURI(s)
	return err == nil && u.Host != "" && (u.Scheme == "http" || u.Scheme == "https")
}
