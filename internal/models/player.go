package models

// Player is the read-only identity record maintained by the account system.
// This service only consumes it for ban checks and skill input.
type Player struct {
	ID            string `json:"id" db:"id"`
	Username      string `json:"username" db:"username"`
	Banned        bool   `json:"isBanned" db:"is_banned"`
	Level         int    `json:"level" db:"level"`
	Wins          int    `json:"wins" db:"wins"`
	MatchesPlayed int    `json:"matchesPlayed" db:"matches_played"`
	Kills         int    `json:"kills" db:"kills"`
	Deaths        int    `json:"deaths" db:"deaths"`
}
