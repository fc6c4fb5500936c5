package models

import "time"

type MatchStatus string

const (
	MatchStatusForming    MatchStatus = "forming"
	MatchStatusInProgress MatchStatus = "in_progress"
	MatchStatusCompleted  MatchStatus = "completed"
	MatchStatusAborted    MatchStatus = "aborted"
)

// Terminal reports whether no further transitions are permitted
func (s MatchStatus) Terminal() bool {
	return s == MatchStatusCompleted || s == MatchStatusAborted
}

// Valid rejects unknown states at the boundary
func (s MatchStatus) Valid() bool {
	switch s {
	case MatchStatusForming, MatchStatusInProgress, MatchStatusCompleted, MatchStatusAborted:
		return true
	}
	return false
}

type MatchPlayerStatus string

const (
	PlayerStatusActive       MatchPlayerStatus = "active"
	PlayerStatusDisconnected MatchPlayerStatus = "disconnected"
	PlayerStatusEliminated   MatchPlayerStatus = "eliminated"
)

type Match struct {
	ID         string      `json:"id" db:"id"`
	Mode       string      `json:"gameMode" db:"game_mode"`
	Region     string      `json:"region" db:"region"`
	Server     string      `json:"server" db:"server"`
	Status     MatchStatus `json:"status" db:"status"`
	MaxPlayers int         `json:"maxPlayers" db:"max_players"`
	MinPlayers int         `json:"minPlayers" db:"min_players"`
	WinnerID   *string     `json:"winnerId,omitempty" db:"winner_id"`
	Duration   *int        `json:"duration,omitempty" db:"duration_seconds"`
	EndReason  *string     `json:"endReason,omitempty" db:"end_reason"`
	CreatedAt  time.Time   `json:"createdAt" db:"created_at"`
	StartedAt  *time.Time  `json:"startedAt,omitempty" db:"started_at"`
	EndedAt    *time.Time  `json:"endedAt,omitempty" db:"ended_at"`
}

type MatchPlayer struct {
	MatchID        string            `json:"matchId" db:"match_id"`
	PlayerID       string            `json:"playerId" db:"player_id"`
	Status         MatchPlayerStatus `json:"status" db:"status"`
	Placement      *int              `json:"placement,omitempty" db:"placement"`
	Kills          int               `json:"kills" db:"kills"`
	Deaths         int               `json:"deaths" db:"deaths"`
	DamageDealt    int               `json:"damageDealt" db:"damage_dealt"`
	DamageTaken    int               `json:"damageTaken" db:"damage_taken"`
	JoinedAt       time.Time         `json:"joinedAt" db:"joined_at"`
	DisconnectedAt *time.Time        `json:"disconnectedAt,omitempty" db:"disconnected_at"`
}

// MatchHistoryEntry is a match joined with the requesting player's own line
type MatchHistoryEntry struct {
	Match
	Placement *int `json:"placement,omitempty" db:"placement"`
	Kills     int  `json:"kills" db:"kills"`
	Deaths    int  `json:"deaths" db:"deaths"`
}

// PlayerResult is one player's line in a game server's results report
type PlayerResult struct {
	PlayerID    string `json:"id" binding:"required"`
	Placement   int    `json:"placement"`
	Kills       int    `json:"kills"`
	Deaths      int    `json:"deaths"`
	DamageDealt int    `json:"damage_dealt"`
	DamageTaken int    `json:"damage_taken"`
}

// MatchResults is the full report posted by the assigned game server
type MatchResults struct {
	WinnerID string         `json:"winner_id"`
	Duration int            `json:"duration"`
	Players  []PlayerResult `json:"players" binding:"required"`
}
