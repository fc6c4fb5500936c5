package service

import (
	"context"

	"github.com/uassett/Epsydev/internal/models"
	"github.com/uassett/Epsydev/pkg/stats"
)

// HTTPStatReporter adapts the stat service client to the lifecycle service
type HTTPStatReporter struct {
	client *stats.Client
}

func NewHTTPStatReporter(client *stats.Client) *HTTPStatReporter {
	return &HTTPStatReporter{client: client}
}

func (r *HTTPStatReporter) Report(ctx context.Context, match *models.Match, players []*models.MatchPlayer) error {
	report := stats.MatchReport{
		MatchID: match.ID,
		Mode:    match.Mode,
		Region:  match.Region,
		Players: make([]stats.PlayerOutcome, 0, len(players)),
	}
	if match.WinnerID != nil {
		report.WinnerID = *match.WinnerID
	}
	if match.Duration != nil {
		report.Duration = *match.Duration
	}

	for _, player := range players {
		outcome := stats.PlayerOutcome{
			PlayerID:    player.PlayerID,
			Kills:       player.Kills,
			Deaths:      player.Deaths,
			DamageDealt: player.DamageDealt,
			DamageTaken: player.DamageTaken,
		}
		if player.Placement != nil {
			outcome.Placement = *player.Placement
		}
		report.Players = append(report.Players, outcome)
	}

	return r.client.ReportMatch(ctx, report)
}
