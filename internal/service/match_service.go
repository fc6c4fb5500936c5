package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/uassett/Epsydev/internal/models"
	"github.com/uassett/Epsydev/internal/repository"
)

const EndReasonInsufficientPlayers = "insufficient_players"

// MatchService drives the match lifecycle after creation: results ingestion,
// forced termination and disconnect handling.
type MatchService struct {
	registry MatchRegistry
	queue    QueueStore
	servers  ServerPool
	stats    StatReporter
	logger   *zap.Logger
}

// NewMatchService wires the lifecycle service
func NewMatchService(
	registry MatchRegistry,
	queueStore QueueStore,
	servers ServerPool,
	stats StatReporter,
	logger *zap.Logger,
) *MatchService {
	return &MatchService{
		registry: registry,
		queue:    queueStore,
		servers:  servers,
		stats:    stats,
		logger:   logger,
	}
}

// GetMatch loads a match with its player rows
func (s *MatchService) GetMatch(ctx context.Context, matchID string) (*models.Match, []*models.MatchPlayer, error) {
	match, err := s.registry.FindByID(ctx, matchID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, nil, ErrMatchNotFound
		}
		return nil, nil, err
	}

	players, err := s.registry.FindPlayers(ctx, matchID)
	if err != nil {
		return nil, nil, err
	}

	return match, players, nil
}

// IngestResults accepts a game server's final report. The completed
// transition is the guard: it only succeeds from in_progress, so a duplicate
// report conflicts before any outcome field is touched.
func (s *MatchService) IngestResults(ctx context.Context, matchID string, results models.MatchResults) error {
	match, err := s.registry.FindByID(ctx, matchID)
	if err != nil {
		if err == repository.ErrNotFound {
			return ErrMatchNotFound
		}
		return err
	}

	var winnerID *string
	if results.WinnerID != "" {
		winnerID = &results.WinnerID
	}

	if err := s.registry.Complete(ctx, matchID, winnerID, results.Duration, "completed"); err != nil {
		if err == repository.ErrInvalidTransition {
			return ErrMatchAlreadyTerminal
		}
		return fmt.Errorf("failed to complete match: %w", err)
	}

	for _, result := range results.Players {
		status := models.PlayerStatusEliminated
		if result.PlayerID == results.WinnerID {
			status = models.PlayerStatusActive
		}
		if err := s.registry.UpdatePlayerOutcome(ctx, matchID, result, status); err != nil {
			s.logger.Error("Failed to update player outcome",
				zap.String("matchId", matchID),
				zap.String("playerId", result.PlayerID),
				zap.Error(err))
		}
	}

	s.servers.Release(match.Region)

	s.logger.Info("Match completed",
		zap.String("matchId", matchID),
		zap.Stringp("winnerId", winnerID),
		zap.Int("duration", results.Duration))

	s.reportStats(matchID)

	return nil
}

// EndMatch force-terminates a match on behalf of its game server. A
// "completed" reason ends it normally, anything else aborts.
func (s *MatchService) EndMatch(ctx context.Context, matchID, reason string) error {
	match, err := s.registry.FindByID(ctx, matchID)
	if err != nil {
		if err == repository.ErrNotFound {
			return ErrMatchNotFound
		}
		return err
	}

	if reason == "completed" {
		err = s.registry.Complete(ctx, matchID, nil, 0, reason)
		if err == repository.ErrInvalidTransition {
			// a completed report for a match that never left forming still
			// ends it and frees its server slot
			err = s.registry.Abort(ctx, matchID, reason)
		}
	} else {
		err = s.registry.Abort(ctx, matchID, reason)
	}
	if err != nil {
		if err == repository.ErrInvalidTransition {
			return ErrMatchAlreadyTerminal
		}
		return fmt.Errorf("failed to end match: %w", err)
	}

	s.servers.Release(match.Region)

	s.logger.Info("Match ended",
		zap.String("matchId", matchID),
		zap.String("reason", reason))

	return nil
}

// CurrentMatch returns the player's active match with its player rows, or a
// nil match when they have none.
func (s *MatchService) CurrentMatch(ctx context.Context, playerID string) (*models.Match, []*models.MatchPlayer, error) {
	match, err := s.registry.FindActiveMatchByPlayer(ctx, playerID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find active match: %w", err)
	}
	if match == nil {
		return nil, nil, nil
	}

	players, err := s.registry.FindPlayers(ctx, match.ID)
	if err != nil {
		return nil, nil, err
	}

	return match, players, nil
}

// History lists the player's matches, newest first
func (s *MatchService) History(ctx context.Context, playerID string, limit int) ([]*models.MatchHistoryEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.registry.FindHistoryByPlayer(ctx, playerID, limit)
}

// ActiveMatches lists every in-progress match
func (s *MatchService) ActiveMatches(ctx context.Context) ([]*models.Match, error) {
	return s.registry.FindActiveMatches(ctx)
}

// LeaveMatch is a player's voluntary exit from their active match. It is the
// disconnect path minus the queue check, rejected when they have none.
func (s *MatchService) LeaveMatch(ctx context.Context, playerID string) error {
	match, err := s.registry.FindActiveMatchByPlayer(ctx, playerID)
	if err != nil {
		return fmt.Errorf("failed to find active match: %w", err)
	}
	if match == nil {
		return ErrNotInMatch
	}

	return s.dropFromMatch(ctx, match, playerID)
}

// HandleDisconnect reconciles a player drop: a queued player is dequeued, an
// active match member is marked disconnected, and the match aborts when its
// active count falls below the minimum. Repeated signals are no-ops.
func (s *MatchService) HandleDisconnect(ctx context.Context, playerID string) error {
	removed, err := s.queue.Dequeue(ctx, playerID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}
	if removed {
		s.logger.Info("Disconnected player removed from queue",
			zap.String("playerId", playerID))
		return nil
	}

	match, err := s.registry.FindActiveMatchByPlayer(ctx, playerID)
	if err != nil {
		return fmt.Errorf("failed to find active match: %w", err)
	}
	if match == nil {
		return nil
	}

	return s.dropFromMatch(ctx, match, playerID)
}

// dropFromMatch marks one member disconnected and aborts the match when its
// active count falls below the minimum
func (s *MatchService) dropFromMatch(ctx context.Context, match *models.Match, playerID string) error {
	changed, err := s.registry.MarkDisconnected(ctx, match.ID, playerID)
	if err != nil {
		return fmt.Errorf("failed to mark disconnect: %w", err)
	}
	if !changed {
		return nil
	}

	s.logger.Info("Player disconnected from match",
		zap.String("matchId", match.ID),
		zap.String("playerId", playerID))

	active, err := s.registry.CountActivePlayers(ctx, match.ID)
	if err != nil {
		return fmt.Errorf("failed to count active players: %w", err)
	}

	if active < match.MinPlayers {
		if err := s.registry.Abort(ctx, match.ID, EndReasonInsufficientPlayers); err != nil {
			if err == repository.ErrInvalidTransition {
				// already terminal; nothing to do
				s.logger.Warn("Abort rejected on terminal match",
					zap.String("matchId", match.ID))
				return nil
			}
			return fmt.Errorf("failed to abort match: %w", err)
		}

		s.servers.Release(match.Region)

		s.logger.Info("Match aborted",
			zap.String("matchId", match.ID),
			zap.String("reason", EndReasonInsufficientPlayers),
			zap.Int("activePlayers", active),
			zap.Int("minPlayers", match.MinPlayers))
	}

	return nil
}

// reportStats hands the final rows to the stat collaborator in the
// background. Delivery is at-least-once; the collaborator's upserts are
// idempotent.
func (s *MatchService) reportStats(matchID string) {
	if s.stats == nil {
		return
	}

	go func() {
		ctx := context.Background()

		match, err := s.registry.FindByID(ctx, matchID)
		if err != nil {
			s.logger.Error("Failed to load match for stat report",
				zap.String("matchId", matchID),
				zap.Error(err))
			return
		}

		players, err := s.registry.FindPlayers(ctx, matchID)
		if err != nil {
			s.logger.Error("Failed to load players for stat report",
				zap.String("matchId", matchID),
				zap.Error(err))
			return
		}

		if err := s.stats.Report(ctx, match, players); err != nil {
			s.logger.Error("Stat report dropped",
				zap.String("matchId", matchID),
				zap.Error(err))
		}
	}()
}
