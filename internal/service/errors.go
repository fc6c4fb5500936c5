package service

import "errors"

// Queue errors
var (
	ErrAlreadyQueued    = errors.New("player already in queue")
	ErrNotQueued        = errors.New("player not in queue")
	ErrPlayerBanned     = errors.New("account is banned")
	ErrPlayerInMatch    = errors.New("player already in an active match")
	ErrPlayerNotFound   = errors.New("player not found")
	ErrInvalidRegion    = errors.New("invalid region")
	ErrInvalidMode      = errors.New("invalid game mode")
	ErrQueueUnavailable = errors.New("queue temporarily unavailable")
)

// Match errors
var (
	ErrMatchNotFound        = errors.New("match not found")
	ErrMatchAlreadyTerminal = errors.New("match already in a terminal state")
	ErrNotInMatch           = errors.New("player has no active match")
	ErrNoServersAvailable   = errors.New("no game servers available")
)
