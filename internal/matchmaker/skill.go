package matchmaker

import (
	"math"

	"github.com/uassett/Epsydev/internal/models"
)

// Scorer derives a skill rating from a player's profile. The grouping
// algorithm only ever sees the resulting number, so the heuristic can be
// swapped without touching it.
type Scorer interface {
	Score(player *models.Player) int
}

// StatScorer is the default heuristic: a weighted blend of level, win rate
// and K/D ratio.
type StatScorer struct{}

func NewStatScorer() *StatScorer {
	return &StatScorer{}
}

func (StatScorer) Score(player *models.Player) int {
	if player == nil {
		return 0
	}

	level := player.Level
	if level < 1 {
		level = 1
	}

	winRate := 0.0
	if player.MatchesPlayed > 0 {
		winRate = float64(player.Wins) / float64(player.MatchesPlayed) * 100
	}

	kd := float64(player.Kills)
	if player.Deaths > 0 {
		kd = float64(player.Kills) / float64(player.Deaths)
	}

	return int(math.Floor(float64(level)*0.5 + winRate*0.3 + kd*0.2))
}
