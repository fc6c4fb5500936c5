package models

import "time"

// QueueEntry is a player's pending matchmaking request. Entries live only in
// Redis under a TTL and are never treated as durable state.
type QueueEntry struct {
	PlayerID    string    `json:"player_id"`
	Username    string    `json:"username"`
	Region      string    `json:"region"`
	Mode        string    `json:"game_mode"`
	SkillRating int       `json:"skill_rating"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
}

// QueueStatus is the read-only bucket summary
type QueueStatus struct {
	QueueSize     int64         `json:"queue_size"`
	EstimatedWait time.Duration `json:"estimated_wait"`
	ActiveMatches int           `json:"active_matches"`
}
