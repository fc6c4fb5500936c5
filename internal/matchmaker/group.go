package matchmaker

import (
	"sort"

	"github.com/uassett/Epsydev/internal/models"
)

// Group partitions a candidate snapshot into viable match groups. Candidates
// are sorted ascending by skill rating with a FIFO tie-break on enqueue time,
// then cut into contiguous chunks of maxPlayers; chunks below minPlayers are
// dropped and their members stay queued for the next pass. This is first-fit
// bin packing, not skill balancing; variance at chunk boundaries is accepted.
func Group(candidates []models.QueueEntry, maxPlayers, minPlayers int) [][]models.QueueEntry {
	if maxPlayers <= 0 || len(candidates) < minPlayers {
		return nil
	}

	sorted := append([]models.QueueEntry(nil), candidates...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].SkillRating != sorted[j].SkillRating {
			return sorted[i].SkillRating < sorted[j].SkillRating
		}
		return sorted[i].EnqueuedAt.Before(sorted[j].EnqueuedAt)
	})

	var groups [][]models.QueueEntry
	for i := 0; i < len(sorted); i += maxPlayers {
		end := i + maxPlayers
		if end > len(sorted) {
			end = len(sorted)
		}

		chunk := sorted[i:end]
		if len(chunk) >= minPlayers {
			groups = append(groups, chunk)
		}
	}

	return groups
}
