package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uassett/Epsydev/internal/models"
	"github.com/uassett/Epsydev/pkg/database"
)

var (
	// ErrNotFound is returned when a match does not exist
	ErrNotFound = errors.New("match not found")
	// ErrInvalidTransition is returned when a lifecycle guard rejects an update
	ErrInvalidTransition = errors.New("invalid match state transition")
)

type MatchRepository struct {
	db *database.DB
}

func NewMatchRepository(db *database.DB) *MatchRepository {
	return &MatchRepository{db: db}
}

// CreateWithPlayers inserts the match row and one player row per member as a
// single transaction. Either everything lands or nothing does.
func (r *MatchRepository) CreateWithPlayers(ctx context.Context, match *models.Match, playerIDs []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO matches (id, game_mode, region, server, status, max_players, min_players)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	err = tx.QueryRowContext(ctx, query,
		match.ID,
		match.Mode,
		match.Region,
		match.Server,
		match.Status,
		match.MaxPlayers,
		match.MinPlayers,
	).Scan(&match.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert match: %w", err)
	}

	playerQuery := `
		INSERT INTO match_players (match_id, player_id, status)
		VALUES ($1, $2, $3)
	`
	for _, playerID := range playerIDs {
		if _, err := tx.ExecContext(ctx, playerQuery, match.ID, playerID, models.PlayerStatusActive); err != nil {
			return fmt.Errorf("failed to insert match player: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit match creation: %w", err)
	}

	return nil
}

// FindByID loads a match, or ErrNotFound
func (r *MatchRepository) FindByID(ctx context.Context, id string) (*models.Match, error) {
	query := `
		SELECT id, game_mode, region, server, status, max_players, min_players,
		       winner_id, duration_seconds, end_reason,
		       created_at, started_at, ended_at
		FROM matches
		WHERE id = $1
	`

	match := &models.Match{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&match.ID,
		&match.Mode,
		&match.Region,
		&match.Server,
		&match.Status,
		&match.MaxPlayers,
		&match.MinPlayers,
		&match.WinnerID,
		&match.Duration,
		&match.EndReason,
		&match.CreatedAt,
		&match.StartedAt,
		&match.EndedAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find match: %w", err)
	}

	return match, nil
}

// FindPlayers loads every participation row for a match
func (r *MatchRepository) FindPlayers(ctx context.Context, matchID string) ([]*models.MatchPlayer, error) {
	query := `
		SELECT match_id, player_id, status, placement, kills, deaths,
		       damage_dealt, damage_taken, joined_at, disconnected_at
		FROM match_players
		WHERE match_id = $1
		ORDER BY joined_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query match players: %w", err)
	}
	defer rows.Close()

	var players []*models.MatchPlayer
	for rows.Next() {
		player := &models.MatchPlayer{}
		err := rows.Scan(
			&player.MatchID,
			&player.PlayerID,
			&player.Status,
			&player.Placement,
			&player.Kills,
			&player.Deaths,
			&player.DamageDealt,
			&player.DamageTaken,
			&player.JoinedAt,
			&player.DisconnectedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match player: %w", err)
		}
		players = append(players, player)
	}

	return players, rows.Err()
}

// Start promotes forming → in_progress
func (r *MatchRepository) Start(ctx context.Context, matchID string) error {
	query := `
		UPDATE matches
		SET status = $1, started_at = NOW()
		WHERE id = $2 AND status = $3
	`
	return r.guardedUpdate(ctx, matchID, query, models.MatchStatusInProgress, matchID, models.MatchStatusForming)
}

// Complete promotes in_progress → completed with the final results header
func (r *MatchRepository) Complete(ctx context.Context, matchID string, winnerID *string, duration int, endReason string) error {
	query := `
		UPDATE matches
		SET status = $1, winner_id = $2, duration_seconds = $3, end_reason = $4, ended_at = NOW()
		WHERE id = $5 AND status = $6
	`
	return r.guardedUpdate(ctx, matchID, query,
		models.MatchStatusCompleted, winnerID, duration, endReason, matchID, models.MatchStatusInProgress)
}

// Abort moves a non-terminal match to aborted
func (r *MatchRepository) Abort(ctx context.Context, matchID, reason string) error {
	query := `
		UPDATE matches
		SET status = $1, end_reason = $2, ended_at = NOW()
		WHERE id = $3 AND status IN ($4, $5)
	`
	return r.guardedUpdate(ctx, matchID, query,
		models.MatchStatusAborted, reason, matchID, models.MatchStatusForming, models.MatchStatusInProgress)
}

// guardedUpdate runs a conditional transition and distinguishes a missing
// match from a rejected transition.
func (r *MatchRepository) guardedUpdate(ctx context.Context, matchID, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update match: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	if _, err := r.FindByID(ctx, matchID); err != nil {
		return err
	}
	return ErrInvalidTransition
}

// UpdatePlayerOutcome writes one player's final line from a results report
func (r *MatchRepository) UpdatePlayerOutcome(ctx context.Context, matchID string, result models.PlayerResult, status models.MatchPlayerStatus) error {
	query := `
		UPDATE match_players
		SET placement = $1, kills = $2, deaths = $3, damage_dealt = $4, damage_taken = $5,
		    status = CASE WHEN status = $6 THEN $7 ELSE status END
		WHERE match_id = $8 AND player_id = $9
	`
	// a disconnect recorded during the match is kept; only active players
	// move to the reported terminal status
	_, err := r.db.ExecContext(ctx, query,
		result.Placement,
		result.Kills,
		result.Deaths,
		result.DamageDealt,
		result.DamageTaken,
		models.PlayerStatusActive,
		status,
		matchID,
		result.PlayerID,
	)
	if err != nil {
		return fmt.Errorf("failed to update player outcome: %w", err)
	}

	return nil
}

// MarkDisconnected flags a player's row once; repeated calls report false
func (r *MatchRepository) MarkDisconnected(ctx context.Context, matchID, playerID string) (bool, error) {
	query := `
		UPDATE match_players
		SET status = $1, disconnected_at = NOW()
		WHERE match_id = $2 AND player_id = $3 AND status = $4
	`
	result, err := r.db.ExecContext(ctx, query,
		models.PlayerStatusDisconnected, matchID, playerID, models.PlayerStatusActive)
	if err != nil {
		return false, fmt.Errorf("failed to mark player disconnected: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

// CountActivePlayers returns how many members of a match are still active
func (r *MatchRepository) CountActivePlayers(ctx context.Context, matchID string) (int, error) {
	query := `
		SELECT COUNT(*) FROM match_players
		WHERE match_id = $1 AND status = $2
	`

	var count int
	if err := r.db.QueryRowContext(ctx, query, matchID, models.PlayerStatusActive).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count active players: %w", err)
	}

	return count, nil
}

// FindActiveMatchByPlayer returns the non-terminal match in which the player
// holds an active membership, or nil
func (r *MatchRepository) FindActiveMatchByPlayer(ctx context.Context, playerID string) (*models.Match, error) {
	query := `
		SELECT m.id, m.game_mode, m.region, m.server, m.status, m.max_players, m.min_players,
		       m.winner_id, m.duration_seconds, m.end_reason,
		       m.created_at, m.started_at, m.ended_at
		FROM matches m
		JOIN match_players mp ON mp.match_id = m.id
		WHERE mp.player_id = $1
		  AND mp.status = $2
		  AND m.status IN ($3, $4)
		LIMIT 1
	`

	match := &models.Match{}
	err := r.db.QueryRowContext(ctx, query,
		playerID, models.PlayerStatusActive,
		models.MatchStatusForming, models.MatchStatusInProgress,
	).Scan(
		&match.ID,
		&match.Mode,
		&match.Region,
		&match.Server,
		&match.Status,
		&match.MaxPlayers,
		&match.MinPlayers,
		&match.WinnerID,
		&match.Duration,
		&match.EndReason,
		&match.CreatedAt,
		&match.StartedAt,
		&match.EndedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active match: %w", err)
	}

	return match, nil
}

// FindHistoryByPlayer lists matches the player took part in, newest first,
// each joined with the player's own outcome line
func (r *MatchRepository) FindHistoryByPlayer(ctx context.Context, playerID string, limit int) ([]*models.MatchHistoryEntry, error) {
	query := `
		SELECT m.id, m.game_mode, m.region, m.server, m.status, m.max_players, m.min_players,
		       m.winner_id, m.duration_seconds, m.end_reason,
		       m.created_at, m.started_at, m.ended_at,
		       mp.placement, mp.kills, mp.deaths
		FROM matches m
		JOIN match_players mp ON mp.match_id = m.id
		WHERE mp.player_id = $1
		ORDER BY m.created_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query match history: %w", err)
	}
	defer rows.Close()

	var history []*models.MatchHistoryEntry
	for rows.Next() {
		entry := &models.MatchHistoryEntry{}
		err := rows.Scan(
			&entry.ID,
			&entry.Mode,
			&entry.Region,
			&entry.Server,
			&entry.Status,
			&entry.MaxPlayers,
			&entry.MinPlayers,
			&entry.WinnerID,
			&entry.Duration,
			&entry.EndReason,
			&entry.CreatedAt,
			&entry.StartedAt,
			&entry.EndedAt,
			&entry.Placement,
			&entry.Kills,
			&entry.Deaths,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		history = append(history, entry)
	}

	return history, rows.Err()
}

// FindActiveMatches lists every in-progress match
func (r *MatchRepository) FindActiveMatches(ctx context.Context) ([]*models.Match, error) {
	query := `
		SELECT id, game_mode, region, server, status, max_players, min_players,
		       winner_id, duration_seconds, end_reason,
		       created_at, started_at, ended_at
		FROM matches
		WHERE status = $1
		ORDER BY started_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, models.MatchStatusInProgress)
	if err != nil {
		return nil, fmt.Errorf("failed to query active matches: %w", err)
	}
	defer rows.Close()

	var matches []*models.Match
	for rows.Next() {
		match := &models.Match{}
		err := rows.Scan(
			&match.ID,
			&match.Mode,
			&match.Region,
			&match.Server,
			&match.Status,
			&match.MaxPlayers,
			&match.MinPlayers,
			&match.WinnerID,
			&match.Duration,
			&match.EndReason,
			&match.CreatedAt,
			&match.StartedAt,
			&match.EndedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan active match: %w", err)
		}
		matches = append(matches, match)
	}

	return matches, rows.Err()
}

// CountActiveMatches counts in-progress matches for a bucket
func (r *MatchRepository) CountActiveMatches(ctx context.Context, region, mode string) (int, error) {
	query := `
		SELECT COUNT(*) FROM matches
		WHERE region = $1 AND game_mode = $2 AND status = $3
	`

	var count int
	if err := r.db.QueryRowContext(ctx, query, region, mode, models.MatchStatusInProgress).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count active matches: %w", err)
	}

	return count, nil
}
