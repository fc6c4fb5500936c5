package service

import (
	"context"

	"github.com/uassett/Epsydev/internal/models"
)

// QueueStore is the ephemeral queue backing the matchmaker
type QueueStore interface {
	Enqueue(ctx context.Context, entry *models.QueueEntry) error
	Dequeue(ctx context.Context, playerID string) (bool, error)
	Find(ctx context.Context, playerID string) (*models.QueueEntry, error)
	ListCandidates(ctx context.Context, region, mode string) ([]models.QueueEntry, error)
	ClaimBatch(ctx context.Context, region, mode string, playerIDs []string) ([]models.QueueEntry, error)
	Restore(ctx context.Context, entries []models.QueueEntry) error
	Size(ctx context.Context, region, mode string) (int64, error)
}

// MatchRegistry is the durable source of truth for match lifecycle state
type MatchRegistry interface {
	CreateWithPlayers(ctx context.Context, match *models.Match, playerIDs []string) error
	FindByID(ctx context.Context, id string) (*models.Match, error)
	FindPlayers(ctx context.Context, matchID string) ([]*models.MatchPlayer, error)
	Start(ctx context.Context, matchID string) error
	Complete(ctx context.Context, matchID string, winnerID *string, duration int, endReason string) error
	Abort(ctx context.Context, matchID, reason string) error
	UpdatePlayerOutcome(ctx context.Context, matchID string, result models.PlayerResult, status models.MatchPlayerStatus) error
	MarkDisconnected(ctx context.Context, matchID, playerID string) (bool, error)
	CountActivePlayers(ctx context.Context, matchID string) (int, error)
	FindActiveMatchByPlayer(ctx context.Context, playerID string) (*models.Match, error)
	FindActiveMatches(ctx context.Context) ([]*models.Match, error)
	FindHistoryByPlayer(ctx context.Context, playerID string, limit int) ([]*models.MatchHistoryEntry, error)
	CountActiveMatches(ctx context.Context, region, mode string) (int, error)
}

// PlayerDirectory supplies identity and ban status from the account system
type PlayerDirectory interface {
	FindByID(ctx context.Context, id string) (*models.Player, error)
}

// ServerPool assigns and releases game-server capacity per region
type ServerPool interface {
	Assign(region string) (string, error)
	Release(region string)
	HasRegion(region string) bool
}

// Notifier pushes a realtime event to one player. It reports delivery so an
// undeliverable player can be folded into the disconnect path.
type Notifier interface {
	Send(playerID, msgType string, payload interface{}) bool
}

// BucketLocker serializes grouping passes for one bucket
type BucketLocker interface {
	Lock(ctx context.Context, region, mode string) (release func(), acquired bool, err error)
}

// StatReporter delivers completed-match stats to the external collaborator
type StatReporter interface {
	Report(ctx context.Context, match *models.Match, players []*models.MatchPlayer) error
}
