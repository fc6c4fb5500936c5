package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uassett/Epsydev/internal/directory"
	"github.com/uassett/Epsydev/internal/service"
)

// MatchmakingHandler exposes read-only queue and server-pool state
type MatchmakingHandler struct {
	matchmaking *service.MatchmakingService
	servers     *directory.Directory
}

func NewMatchmakingHandler(matchmaking *service.MatchmakingService, servers *directory.Directory) *MatchmakingHandler {
	return &MatchmakingHandler{
		matchmaking: matchmaking,
		servers:     servers,
	}
}

// GetQueueStatus returns one bucket's size, wait estimate and active matches
func (h *MatchmakingHandler) GetQueueStatus(c *gin.Context) {
	region := c.Query("region")
	mode := c.Query("mode")

	status, err := h.matchmaking.QueueStatus(c.Request.Context(), region, mode)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRegion), errors.Is(err, service.ErrInvalidMode):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrQueueUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read queue status"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"region":         region,
		"game_mode":      mode,
		"queue_size":     status.QueueSize,
		"estimated_wait": int(status.EstimatedWait.Seconds()),
		"active_matches": status.ActiveMatches,
	})
}

// GetServers returns the per-region game server pool and queue sizes
func (h *MatchmakingHandler) GetServers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"regions": h.servers.Status(),
		"queues":  h.matchmaking.QueueSizes(c.Request.Context()),
	})
}
