package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uassett/Epsydev/internal/config"
	"github.com/uassett/Epsydev/internal/models"
)

func smallSquadModes() map[string]config.ModeConfig {
	return map[string]config.ModeConfig{
		"squad": {MaxPlayers: 20, MinPlayers: 20, EstimatedWait: 60 * time.Second},
	}
}

func TestJoinQueueFillsMatchExactly(t *testing.T) {
	h := newHarness(smallSquadModes())
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		id := playerName(i)
		h.addPlayer(id, 10+i)
		_, err := h.matchmaking.JoinQueue(ctx, id, "na", "squad", nil)
		require.NoError(t, err)
	}

	require.Len(t, h.registry.matches, 1, "expected exactly one match")

	var match *models.Match
	for _, m := range h.registry.matches {
		match = m
	}
	assert.Equal(t, models.MatchStatusInProgress, match.Status)
	assert.Equal(t, "na", match.Region)
	assert.Equal(t, "squad", match.Mode)
	assert.NotEmpty(t, match.Server)
	assert.Len(t, h.registry.players[match.ID], 20)

	size, err := h.queue.Size(ctx, "na", "squad")
	require.NoError(t, err)
	assert.Zero(t, size, "bucket should be empty after the match forms")

	for i := 0; i < 20; i++ {
		messages := h.notifier.sentTo(playerName(i))
		require.Len(t, messages, 1)
		assert.Equal(t, "match_found", messages[0].msgType)

		payload, ok := messages[0].payload.(MatchFoundPayload)
		require.True(t, ok)
		assert.Equal(t, match.ID, payload.MatchID)
		assert.Len(t, payload.Players, 20)
	}

	assert.Equal(t, 1, h.pool.ActiveMatches("na"))
}

func TestJoinQueueBelowMinimumFormsNothing(t *testing.T) {
	h := newHarness(smallSquadModes())
	ctx := context.Background()

	for i := 0; i < 19; i++ {
		id := playerName(i)
		h.addPlayer(id, 10)
		_, err := h.matchmaking.JoinQueue(ctx, id, "na", "squad", nil)
		require.NoError(t, err)
	}

	assert.Empty(t, h.registry.matches)

	size, err := h.queue.Size(ctx, "na", "squad")
	require.NoError(t, err)
	assert.EqualValues(t, 19, size, "all players should remain queued")
	assert.Zero(t, h.pool.ActiveMatches("na"))
}

func TestJoinQueueDuplicateConflicts(t *testing.T) {
	h := newHarness(smallSquadModes())
	ctx := context.Background()

	h.addPlayer("p1", 10)
	_, err := h.matchmaking.JoinQueue(ctx, "p1", "na", "squad", nil)
	require.NoError(t, err)

	_, err = h.matchmaking.JoinQueue(ctx, "p1", "na", "squad", nil)
	assert.ErrorIs(t, err, ErrAlreadyQueued)

	// a second region does not help: one entry per player system-wide
	_, err = h.matchmaking.JoinQueue(ctx, "p1", "eu", "squad", nil)
	assert.ErrorIs(t, err, ErrAlreadyQueued)

	size, err := h.queue.Size(ctx, "na", "squad")
	require.NoError(t, err)
	assert.EqualValues(t, 1, size)
}

func TestJoinQueueValidation(t *testing.T) {
	h := newHarness(smallSquadModes())
	ctx := context.Background()

	h.addPlayer("p1", 10)

	_, err := h.matchmaking.JoinQueue(ctx, "p1", "na", "ranked", nil)
	assert.ErrorIs(t, err, ErrInvalidMode)

	_, err = h.matchmaking.JoinQueue(ctx, "p1", "mars", "squad", nil)
	assert.ErrorIs(t, err, ErrInvalidRegion)

	_, err = h.matchmaking.JoinQueue(ctx, "ghost", "na", "squad", nil)
	assert.ErrorIs(t, err, ErrPlayerNotFound)

	h.players.add(&models.Player{ID: "cheater", Username: "u-cheater", Banned: true})
	_, err = h.matchmaking.JoinQueue(ctx, "cheater", "na", "squad", nil)
	assert.ErrorIs(t, err, ErrPlayerBanned)
}

func TestJoinQueueRejectedWhileInMatch(t *testing.T) {
	modes := map[string]config.ModeConfig{
		"squad": {MaxPlayers: 2, MinPlayers: 2, EstimatedWait: 60 * time.Second},
	}
	h := newHarness(modes)
	ctx := context.Background()

	h.addPlayer("p1", 10)
	h.addPlayer("p2", 10)
	_, err := h.matchmaking.JoinQueue(ctx, "p1", "na", "squad", nil)
	require.NoError(t, err)
	_, err = h.matchmaking.JoinQueue(ctx, "p2", "na", "squad", nil)
	require.NoError(t, err)
	require.Len(t, h.registry.matches, 1)

	_, err = h.matchmaking.JoinQueue(ctx, "p1", "na", "squad", nil)
	assert.ErrorIs(t, err, ErrPlayerInMatch)
}

func TestLeaveQueue(t *testing.T) {
	h := newHarness(smallSquadModes())
	ctx := context.Background()

	err := h.matchmaking.LeaveQueue(ctx, "p1")
	assert.ErrorIs(t, err, ErrNotQueued)

	h.addPlayer("p1", 10)
	_, err = h.matchmaking.JoinQueue(ctx, "p1", "na", "squad", nil)
	require.NoError(t, err)

	require.NoError(t, h.matchmaking.LeaveQueue(ctx, "p1"))
	assert.ErrorIs(t, h.matchmaking.LeaveQueue(ctx, "p1"), ErrNotQueued)

	size, err := h.queue.Size(ctx, "na", "squad")
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestDisconnectWhileQueuedLeavesQueue(t *testing.T) {
	modes := map[string]config.ModeConfig{
		"squad": {MaxPlayers: 3, MinPlayers: 3, EstimatedWait: 60 * time.Second},
	}
	h := newHarness(modes)
	ctx := context.Background()

	for _, id := range []string{"p1", "p2"} {
		h.addPlayer(id, 10)
		_, err := h.matchmaking.JoinQueue(ctx, id, "na", "squad", nil)
		require.NoError(t, err)
	}

	require.NoError(t, h.match.HandleDisconnect(ctx, "p1"))

	// p1 must not end up in the next match
	for _, id := range []string{"p3", "p4"} {
		h.addPlayer(id, 10)
		_, err := h.matchmaking.JoinQueue(ctx, id, "na", "squad", nil)
		require.NoError(t, err)
	}

	require.Len(t, h.registry.matches, 1)
	for _, rows := range h.registry.players {
		assert.NotContains(t, rows, "p1")
		assert.Contains(t, rows, "p2")
		assert.Contains(t, rows, "p3")
		assert.Contains(t, rows, "p4")
	}
	assert.Empty(t, h.notifier.sentTo("p1"))
}

func TestUndeliverableNotifyFoldsIntoDisconnect(t *testing.T) {
	modes := map[string]config.ModeConfig{
		"squad": {MaxPlayers: 3, MinPlayers: 2, EstimatedWait: 60 * time.Second},
	}
	h := newHarness(modes)
	ctx := context.Background()

	h.notifier.dead["p2"] = true

	for _, id := range []string{"p1", "p2", "p3"} {
		h.addPlayer(id, 10)
		_, err := h.matchmaking.JoinQueue(ctx, id, "na", "squad", nil)
		require.NoError(t, err)
	}

	require.Len(t, h.registry.matches, 1)

	var matchID string
	for id := range h.registry.matches {
		matchID = id
	}

	// match survives: 2 active players still meet the minimum
	match, err := h.registry.FindByID(ctx, matchID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusInProgress, match.Status)
	assert.Equal(t, models.PlayerStatusDisconnected, h.registry.players[matchID]["p2"].Status)

	active, err := h.registry.CountActivePlayers(ctx, matchID)
	require.NoError(t, err)
	assert.Equal(t, 2, active)
}

func TestQueueStatus(t *testing.T) {
	h := newHarness(smallSquadModes())
	ctx := context.Background()

	status, err := h.matchmaking.QueueStatus(ctx, "na", "squad")
	require.NoError(t, err)
	assert.Zero(t, status.QueueSize)
	assert.Equal(t, 60*time.Second, status.EstimatedWait)
	assert.Zero(t, status.ActiveMatches)

	for i := 0; i < 5; i++ {
		id := playerName(i)
		h.addPlayer(id, 10)
		_, err := h.matchmaking.JoinQueue(ctx, id, "na", "squad", nil)
		require.NoError(t, err)
	}

	status, err = h.matchmaking.QueueStatus(ctx, "na", "squad")
	require.NoError(t, err)
	assert.EqualValues(t, 5, status.QueueSize)

	_, err = h.matchmaking.QueueStatus(ctx, "na", "ranked")
	assert.ErrorIs(t, err, ErrInvalidMode)
	_, err = h.matchmaking.QueueStatus(ctx, "mars", "squad")
	assert.ErrorIs(t, err, ErrInvalidRegion)
}

func TestQueueStatusHalvesWaitAtMinimum(t *testing.T) {
	modes := map[string]config.ModeConfig{
		"squad": {MaxPlayers: 10, MinPlayers: 3, EstimatedWait: 60 * time.Second},
	}
	h := newHarness(modes)
	ctx := context.Background()

	// enqueue directly so no grouping pass consumes the bucket
	for i := 0; i < 3; i++ {
		require.NoError(t, h.queue.Enqueue(ctx, &models.QueueEntry{
			PlayerID: playerName(i),
			Region:   "na",
			Mode:     "squad",
		}))
	}

	status, err := h.matchmaking.QueueStatus(ctx, "na", "squad")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, status.EstimatedWait)
}

func TestCreateMatchRestoresQueueOnRegistryFailure(t *testing.T) {
	modes := map[string]config.ModeConfig{
		"squad": {MaxPlayers: 2, MinPlayers: 2, EstimatedWait: 60 * time.Second},
	}
	h := newHarness(modes)
	ctx := context.Background()

	h.registry.failCreate = true

	for _, id := range []string{"p1", "p2"} {
		h.addPlayer(id, 10)
		_, err := h.matchmaking.JoinQueue(ctx, id, "na", "squad", nil)
		require.NoError(t, err)
	}

	assert.Empty(t, h.registry.matches)

	size, err := h.queue.Size(ctx, "na", "squad")
	require.NoError(t, err)
	assert.EqualValues(t, 2, size, "claimed entries must return to the queue")

	assert.Zero(t, h.pool.ActiveMatches("na"), "assigned slot must be released")
	assert.Empty(t, h.notifier.sentTo("p1"))
}

func TestRunPassSkipsWhenClaimConflicts(t *testing.T) {
	modes := map[string]config.ModeConfig{
		"squad": {MaxPlayers: 2, MinPlayers: 2, EstimatedWait: 60 * time.Second},
	}
	h := newHarness(modes)
	ctx := context.Background()

	// seed the bucket without triggering passes, then remove one member so the
	// pass sees two candidates but can only claim one
	for _, id := range []string{"p1", "p2"} {
		require.NoError(t, h.queue.Enqueue(ctx, &models.QueueEntry{
			PlayerID: id,
			Region:   "na",
			Mode:     "squad",
		}))
	}
	candidates, err := h.queue.ListCandidates(ctx, "na", "squad")
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	_, err = h.queue.Dequeue(ctx, "p2")
	require.NoError(t, err)

	// a pass over the stale snapshot must not form a partial match
	_, err = h.queue.ClaimBatch(ctx, "na", "squad", []string{"p1", "p2"})
	assert.Error(t, err)

	h.matchmaking.RunPass(ctx, "na", "squad")
	assert.Empty(t, h.registry.matches)
	assert.Zero(t, h.pool.ActiveMatches("na"))

	size, err := h.queue.Size(ctx, "na", "squad")
	require.NoError(t, err)
	assert.EqualValues(t, 1, size, "remaining player stays queued")
}

func playerName(i int) string {
	return "player-" + string(rune('a'+i%26)) + string(rune('a'+i/26))
}
