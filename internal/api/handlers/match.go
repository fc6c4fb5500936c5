package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/uassett/Epsydev/internal/models"
	"github.com/uassett/Epsydev/internal/service"
)

// MatchHandler exposes match state and the game-server reporting endpoints
type MatchHandler struct {
	matches *service.MatchService
}

func NewMatchHandler(matches *service.MatchService) *MatchHandler {
	return &MatchHandler{matches: matches}
}

// GetMatch returns a match with its player rows
func (h *MatchHandler) GetMatch(c *gin.Context) {
	matchID := c.Param("id")

	match, players, err := h.matches.GetMatch(c.Request.Context(), matchID)
	if err != nil {
		if errors.Is(err, service.ErrMatchNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Match not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load match"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"match":   match,
		"players": players,
	})
}

// GetHistory returns the authenticated player's recent matches
func (h *MatchHandler) GetHistory(c *gin.Context) {
	playerID, exists := c.Get("playerId")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	history, err := h.matches.History(c.Request.Context(), playerID.(string), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load match history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"matches": history,
		"total":   len(history),
	})
}

// GetActiveMatches lists every match currently in progress
func (h *MatchHandler) GetActiveMatches(c *gin.Context) {
	matches, err := h.matches.ActiveMatches(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load active matches"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"matches": matches,
		"total":   len(matches),
	})
}

// GetCurrentMatch returns the authenticated player's active match, or null
func (h *MatchHandler) GetCurrentMatch(c *gin.Context) {
	playerID, exists := c.Get("playerId")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	match, players, err := h.matches.CurrentMatch(c.Request.Context(), playerID.(string))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load current match"})
		return
	}
	if match == nil {
		c.JSON(http.StatusOK, gin.H{"match": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"match":   match,
		"players": players,
	})
}

// LeaveMatch drops the authenticated player out of their active match
func (h *MatchHandler) LeaveMatch(c *gin.Context) {
	playerID, exists := c.Get("playerId")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	if err := h.matches.LeaveMatch(c.Request.Context(), playerID.(string)); err != nil {
		if errors.Is(err, service.ErrNotInMatch) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No active match found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to leave match"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Left match"})
}

// SubmitResults ingests a game server's final report
func (h *MatchHandler) SubmitResults(c *gin.Context) {
	matchID := c.Param("id")

	var results models.MatchResults
	if err := c.ShouldBindJSON(&results); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid results payload: " + err.Error()})
		return
	}

	if err := h.matches.IngestResults(c.Request.Context(), matchID, results); err != nil {
		switch {
		case errors.Is(err, service.ErrMatchNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Match not found"})
		case errors.Is(err, service.ErrMatchAlreadyTerminal):
			c.JSON(http.StatusConflict, gin.H{"error": "Match results already recorded"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record results"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Results recorded"})
}

type endMatchRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// EndMatch force-terminates a match on behalf of its game server
func (h *MatchHandler) EndMatch(c *gin.Context) {
	matchID := c.Param("id")

	var req endMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	if err := h.matches.EndMatch(c.Request.Context(), matchID, req.Reason); err != nil {
		switch {
		case errors.Is(err, service.ErrMatchNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Match not found"})
		case errors.Is(err, service.ErrMatchAlreadyTerminal):
			c.JSON(http.StatusConflict, gin.H{"error": "Match already ended"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to end match"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Match ended"})
}
