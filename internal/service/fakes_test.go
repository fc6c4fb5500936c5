package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/uassett/Epsydev/internal/config"
	"github.com/uassett/Epsydev/internal/directory"
	"github.com/uassett/Epsydev/internal/matchmaker"
	"github.com/uassett/Epsydev/internal/models"
	"github.com/uassett/Epsydev/internal/queue"
	"github.com/uassett/Epsydev/internal/repository"
)

// fakeQueueStore mirrors the Redis store's semantics in memory: one entry per
// player system-wide, all-or-nothing batch claims.
type fakeQueueStore struct {
	mu      sync.Mutex
	entries map[string]models.QueueEntry
	fail    bool
}

func newFakeQueueStore() *fakeQueueStore {
	return &fakeQueueStore{entries: make(map[string]models.QueueEntry)}
}

func (f *fakeQueueStore) Enqueue(_ context.Context, entry *models.QueueEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("store down")
	}
	if _, exists := f.entries[entry.PlayerID]; exists {
		return queue.ErrAlreadyQueued
	}
	f.entries[entry.PlayerID] = *entry
	return nil
}

func (f *fakeQueueStore) Dequeue(_ context.Context, playerID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return false, errors.New("store down")
	}
	if _, exists := f.entries[playerID]; !exists {
		return false, nil
	}
	delete(f.entries, playerID)
	return true, nil
}

func (f *fakeQueueStore) Find(_ context.Context, playerID string) (*models.QueueEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if entry, exists := f.entries[playerID]; exists {
		copied := entry
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeQueueStore) ListCandidates(_ context.Context, region, mode string) ([]models.QueueEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.QueueEntry
	for _, entry := range f.entries {
		if entry.Region == region && entry.Mode == mode {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (f *fakeQueueStore) ClaimBatch(_ context.Context, region, mode string, playerIDs []string) ([]models.QueueEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range playerIDs {
		entry, exists := f.entries[id]
		if !exists || entry.Region != region || entry.Mode != mode {
			return nil, queue.ErrClaimConflict
		}
	}
	claimed := make([]models.QueueEntry, 0, len(playerIDs))
	for _, id := range playerIDs {
		claimed = append(claimed, f.entries[id])
		delete(f.entries, id)
	}
	return claimed, nil
}

func (f *fakeQueueStore) Restore(_ context.Context, entries []models.QueueEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, entry := range entries {
		if _, exists := f.entries[entry.PlayerID]; !exists {
			f.entries[entry.PlayerID] = entry
		}
	}
	return nil
}

func (f *fakeQueueStore) Size(_ context.Context, region, mode string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, entry := range f.entries {
		if entry.Region == region && entry.Mode == mode {
			count++
		}
	}
	return count, nil
}

// fakeRegistry mirrors the Postgres registry's guarded transitions in memory
type fakeRegistry struct {
	mu         sync.Mutex
	matches    map[string]*models.Match
	players    map[string]map[string]*models.MatchPlayer
	failCreate bool
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		matches: make(map[string]*models.Match),
		players: make(map[string]map[string]*models.MatchPlayer),
	}
}

func (f *fakeRegistry) CreateWithPlayers(_ context.Context, match *models.Match, playerIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return errors.New("registry down")
	}
	match.CreatedAt = time.Now()
	copied := *match
	f.matches[match.ID] = &copied
	rows := make(map[string]*models.MatchPlayer, len(playerIDs))
	for _, id := range playerIDs {
		rows[id] = &models.MatchPlayer{
			MatchID:  match.ID,
			PlayerID: id,
			Status:   models.PlayerStatusActive,
			JoinedAt: time.Now(),
		}
	}
	f.players[match.ID] = rows
	return nil
}

func (f *fakeRegistry) FindByID(_ context.Context, id string) (*models.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	match, exists := f.matches[id]
	if !exists {
		return nil, repository.ErrNotFound
	}
	copied := *match
	return &copied, nil
}

func (f *fakeRegistry) FindPlayers(_ context.Context, matchID string) ([]*models.MatchPlayer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.MatchPlayer
	for _, row := range f.players[matchID] {
		copied := *row
		out = append(out, &copied)
	}
	return out, nil
}

func (f *fakeRegistry) transition(matchID string, from []models.MatchStatus, apply func(*models.Match)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	match, exists := f.matches[matchID]
	if !exists {
		return repository.ErrNotFound
	}
	for _, status := range from {
		if match.Status == status {
			apply(match)
			return nil
		}
	}
	return repository.ErrInvalidTransition
}

func (f *fakeRegistry) Start(_ context.Context, matchID string) error {
	return f.transition(matchID, []models.MatchStatus{models.MatchStatusForming}, func(m *models.Match) {
		now := time.Now()
		m.Status = models.MatchStatusInProgress
		m.StartedAt = &now
	})
}

func (f *fakeRegistry) Complete(_ context.Context, matchID string, winnerID *string, duration int, endReason string) error {
	return f.transition(matchID, []models.MatchStatus{models.MatchStatusInProgress}, func(m *models.Match) {
		now := time.Now()
		m.Status = models.MatchStatusCompleted
		m.WinnerID = winnerID
		m.Duration = &duration
		m.EndReason = &endReason
		m.EndedAt = &now
	})
}

func (f *fakeRegistry) Abort(_ context.Context, matchID, reason string) error {
	from := []models.MatchStatus{models.MatchStatusForming, models.MatchStatusInProgress}
	return f.transition(matchID, from, func(m *models.Match) {
		now := time.Now()
		m.Status = models.MatchStatusAborted
		m.EndReason = &reason
		m.EndedAt = &now
	})
}

func (f *fakeRegistry) UpdatePlayerOutcome(_ context.Context, matchID string, result models.PlayerResult, status models.MatchPlayerStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, exists := f.players[matchID][result.PlayerID]
	if !exists {
		return nil
	}
	placement := result.Placement
	row.Placement = &placement
	row.Kills = result.Kills
	row.Deaths = result.Deaths
	row.DamageDealt = result.DamageDealt
	row.DamageTaken = result.DamageTaken
	if row.Status == models.PlayerStatusActive {
		row.Status = status
	}
	return nil
}

func (f *fakeRegistry) MarkDisconnected(_ context.Context, matchID, playerID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, exists := f.players[matchID][playerID]
	if !exists || row.Status != models.PlayerStatusActive {
		return false, nil
	}
	now := time.Now()
	row.Status = models.PlayerStatusDisconnected
	row.DisconnectedAt = &now
	return true, nil
}

func (f *fakeRegistry) CountActivePlayers(_ context.Context, matchID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, row := range f.players[matchID] {
		if row.Status == models.PlayerStatusActive {
			count++
		}
	}
	return count, nil
}

func (f *fakeRegistry) FindActiveMatchByPlayer(_ context.Context, playerID string) (*models.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for matchID, rows := range f.players {
		row, exists := rows[playerID]
		if !exists || row.Status != models.PlayerStatusActive {
			continue
		}
		match := f.matches[matchID]
		if match.Status == models.MatchStatusForming || match.Status == models.MatchStatusInProgress {
			copied := *match
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeRegistry) FindActiveMatches(_ context.Context) ([]*models.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Match
	for _, match := range f.matches {
		if match.Status == models.MatchStatusInProgress {
			copied := *match
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeRegistry) FindHistoryByPlayer(_ context.Context, playerID string, limit int) ([]*models.MatchHistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.MatchHistoryEntry
	for matchID, rows := range f.players {
		row, exists := rows[playerID]
		if !exists {
			continue
		}
		entry := &models.MatchHistoryEntry{Match: *f.matches[matchID]}
		entry.Placement = row.Placement
		entry.Kills = row.Kills
		entry.Deaths = row.Deaths
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRegistry) CountActiveMatches(_ context.Context, region, mode string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, match := range f.matches {
		if match.Region == region && match.Mode == mode && match.Status == models.MatchStatusInProgress {
			count++
		}
	}
	return count, nil
}

// fakePlayerDirectory serves identity lookups from a map
type fakePlayerDirectory struct {
	mu      sync.Mutex
	players map[string]*models.Player
}

func newFakePlayerDirectory() *fakePlayerDirectory {
	return &fakePlayerDirectory{players: make(map[string]*models.Player)}
}

func (f *fakePlayerDirectory) add(player *models.Player) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.players[player.ID] = player
}

func (f *fakePlayerDirectory) FindByID(_ context.Context, id string) (*models.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.players[id], nil
}

type sentMessage struct {
	msgType string
	payload interface{}
}

// fakeNotifier records pushes; players in dead are undeliverable
type fakeNotifier struct {
	mu   sync.Mutex
	sent map[string][]sentMessage
	dead map[string]bool
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{
		sent: make(map[string][]sentMessage),
		dead: make(map[string]bool),
	}
}

func (f *fakeNotifier) Send(playerID, msgType string, payload interface{}) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dead[playerID] {
		return false
	}
	f.sent[playerID] = append(f.sent[playerID], sentMessage{msgType: msgType, payload: payload})
	return true
}

func (f *fakeNotifier) sentTo(playerID string) []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent[playerID]...)
}

// fakeLocker always grants the bucket lock
type fakeLocker struct{}

func (fakeLocker) Lock(context.Context, string, string) (func(), bool, error) {
	return func() {}, true, nil
}

// fakeStatReporter counts deliveries
type fakeStatReporter struct {
	mu      sync.Mutex
	reports int
}

func (f *fakeStatReporter) Report(context.Context, *models.Match, []*models.MatchPlayer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports++
	return nil
}

func (f *fakeStatReporter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reports
}

// harness bundles the wired services and their fakes
type harness struct {
	queue       *fakeQueueStore
	registry    *fakeRegistry
	players     *fakePlayerDirectory
	notifier    *fakeNotifier
	stats       *fakeStatReporter
	pool        *directory.Directory
	matchmaking *MatchmakingService
	match       *MatchService
}

func newHarness(modes map[string]config.ModeConfig) *harness {
	cfg := &config.Config{
		Modes: modes,
		GameServers: map[string][]string{
			"na": {"na-1.epo.com", "na-2.epo.com"},
			"eu": {"eu-1.epo.com"},
		},
		MatchmakingInterval: time.Minute,
		QueueEntryTTL:       5 * time.Minute,
	}

	h := &harness{
		queue:    newFakeQueueStore(),
		registry: newFakeRegistry(),
		players:  newFakePlayerDirectory(),
		notifier: newFakeNotifier(),
		stats:    &fakeStatReporter{},
		pool:     directory.New(cfg.GameServers),
	}

	logger := zap.NewNop()
	h.match = NewMatchService(h.registry, h.queue, h.pool, h.stats, logger)
	h.matchmaking = NewMatchmakingService(
		h.queue, h.registry, h.players, h.pool, h.notifier,
		fakeLocker{}, matchmaker.NewStatScorer(), h.match, cfg, logger,
	)

	return h
}

func (h *harness) addPlayer(id string, level int) {
	h.players.add(&models.Player{ID: id, Username: "u-" + id, Level: level})
}
