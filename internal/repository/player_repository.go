package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uassett/Epsydev/internal/models"
	"github.com/uassett/Epsydev/pkg/database"
)

// PlayerRepository reads the account system's players table. This service
// never writes it.
type PlayerRepository struct {
	db *database.DB
}

func NewPlayerRepository(db *database.DB) *PlayerRepository {
	return &PlayerRepository{db: db}
}

// FindByID loads a player's identity and profile stats, or nil when unknown
func (r *PlayerRepository) FindByID(ctx context.Context, id string) (*models.Player, error) {
	query := `
		SELECT id, username, is_banned, level, wins, matches_played, kills, deaths
		FROM players
		WHERE id = $1
	`

	player := &models.Player{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&player.ID,
		&player.Username,
		&player.Banned,
		&player.Level,
		&player.Wins,
		&player.MatchesPlayed,
		&player.Kills,
		&player.Deaths,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find player: %w", err)
	}

	return player, nil
}
