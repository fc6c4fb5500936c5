package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/uassett/Epsydev/internal/config"
	"github.com/uassett/Epsydev/internal/matchmaker"
	"github.com/uassett/Epsydev/internal/models"
	"github.com/uassett/Epsydev/internal/queue"
)

// MatchPeer is one player entry in a match_found notification
type MatchPeer struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Skill    int    `json:"skill"`
}

// MatchFoundPayload is pushed to every member of a freshly created match
type MatchFoundPayload struct {
	MatchID string      `json:"match_id"`
	Server  string      `json:"server"`
	Mode    string      `json:"mode"`
	Region  string      `json:"region"`
	Players []MatchPeer `json:"players"`
}

// PassTrigger requests grouping passes on other instances after an enqueue.
// The Redis pub/sub coordinator implements it in production.
type PassTrigger interface {
	TriggerPass(ctx context.Context, region, mode, playerID string) error
}

// MatchmakingService owns the queue and the grouping passes that turn queued
// players into matches.
type MatchmakingService struct {
	queue        QueueStore
	registry     MatchRegistry
	players      PlayerDirectory
	servers      ServerPool
	notifier     Notifier
	locker       BucketLocker
	scorer       matchmaker.Scorer
	matchService *MatchService
	trigger      PassTrigger
	logger       *zap.Logger

	modes    map[string]config.ModeConfig
	regions  []string
	interval time.Duration

	stopChan chan struct{}
	wg       sync.WaitGroup
	running  bool
	mu       sync.Mutex
}

// NewMatchmakingService wires the matchmaker
func NewMatchmakingService(
	queueStore QueueStore,
	registry MatchRegistry,
	players PlayerDirectory,
	servers ServerPool,
	notifier Notifier,
	locker BucketLocker,
	scorer matchmaker.Scorer,
	matchService *MatchService,
	cfg *config.Config,
	logger *zap.Logger,
) *MatchmakingService {
	regions := make([]string, 0, len(cfg.GameServers))
	for region := range cfg.GameServers {
		regions = append(regions, region)
	}

	return &MatchmakingService{
		queue:        queueStore,
		registry:     registry,
		players:      players,
		servers:      servers,
		notifier:     notifier,
		locker:       locker,
		scorer:       scorer,
		matchService: matchService,
		logger:       logger,
		modes:        cfg.Modes,
		regions:      regions,
		interval:     cfg.MatchmakingInterval,
		stopChan:     make(chan struct{}),
	}
}

// SetPassTrigger installs the cross-instance pass trigger
func (s *MatchmakingService) SetPassTrigger(trigger PassTrigger) {
	s.trigger = trigger
}

// Start launches the periodic pass loop
func (s *MatchmakingService) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info("Starting matchmaking service", zap.Duration("interval", s.interval))

	s.wg.Add(1)
	go s.passLoop()
}

// Stop halts the pass loop and waits for it to drain
func (s *MatchmakingService) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("Stopping matchmaking service")
	close(s.stopChan)
	s.wg.Wait()
	s.logger.Info("Matchmaking service stopped")
}

// passLoop is the periodic backstop: event-triggered passes handle the
// common case, the ticker catches buckets whose events were lost.
func (s *MatchmakingService) passLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runAllPasses()
		case <-s.stopChan:
			return
		}
	}
}

func (s *MatchmakingService) runAllPasses() {
	ctx := context.Background()

	for _, region := range s.regions {
		for mode := range s.modes {
			s.RunPass(ctx, region, mode)
		}
	}
}

// JoinQueue validates the request and writes a queue entry. A successful join
// triggers a grouping pass for the bucket.
func (s *MatchmakingService) JoinQueue(ctx context.Context, playerID, region, mode string, skillOverride *int) (time.Duration, error) {
	modeCfg, ok := s.modes[mode]
	if !ok {
		return 0, ErrInvalidMode
	}
	if !s.servers.HasRegion(region) {
		return 0, ErrInvalidRegion
	}

	player, err := s.players.FindByID(ctx, playerID)
	if err != nil {
		return 0, fmt.Errorf("failed to look up player: %w", err)
	}
	if player == nil {
		return 0, ErrPlayerNotFound
	}
	if player.Banned {
		return 0, ErrPlayerBanned
	}

	active, err := s.registry.FindActiveMatchByPlayer(ctx, playerID)
	if err != nil {
		return 0, fmt.Errorf("failed to check active match: %w", err)
	}
	if active != nil {
		return 0, ErrPlayerInMatch
	}

	skill := s.scorer.Score(player)
	if skillOverride != nil {
		skill = *skillOverride
	}

	entry := &models.QueueEntry{
		PlayerID:    playerID,
		Username:    player.Username,
		Region:      region,
		Mode:        mode,
		SkillRating: skill,
		EnqueuedAt:  time.Now(),
	}

	if err := s.queue.Enqueue(ctx, entry); err != nil {
		if err == queue.ErrAlreadyQueued {
			return 0, ErrAlreadyQueued
		}
		return 0, fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}

	s.logger.Info("Player joined queue",
		zap.String("playerId", playerID),
		zap.String("region", region),
		zap.String("mode", mode),
		zap.Int("skill", skill))

	if s.trigger != nil {
		if err := s.trigger.TriggerPass(ctx, region, mode, playerID); err != nil {
			s.logger.Warn("Failed to publish pass trigger", zap.Error(err))
		}
	}
	s.RunPass(ctx, region, mode)

	return s.estimateWait(ctx, region, mode, modeCfg), nil
}

// LeaveQueue removes the player's entry; ErrNotQueued when there is none
func (s *MatchmakingService) LeaveQueue(ctx context.Context, playerID string) error {
	removed, err := s.queue.Dequeue(ctx, playerID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}
	if !removed {
		return ErrNotQueued
	}

	s.logger.Info("Player left queue", zap.String("playerId", playerID))
	return nil
}

// QueueStatus reports a bucket's size, wait estimate and active match count
func (s *MatchmakingService) QueueStatus(ctx context.Context, region, mode string) (*models.QueueStatus, error) {
	modeCfg, ok := s.modes[mode]
	if !ok {
		return nil, ErrInvalidMode
	}
	if !s.servers.HasRegion(region) {
		return nil, ErrInvalidRegion
	}

	size, err := s.queue.Size(ctx, region, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}

	activeMatches, err := s.registry.CountActiveMatches(ctx, region, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to count active matches: %w", err)
	}

	return &models.QueueStatus{
		QueueSize:     size,
		EstimatedWait: s.estimateWait(ctx, region, mode, modeCfg),
		ActiveMatches: activeMatches,
	}, nil
}

// QueueSizes snapshots every bucket's size, keyed region then mode. Buckets
// that cannot be read report zero.
func (s *MatchmakingService) QueueSizes(ctx context.Context) map[string]map[string]int64 {
	sizes := make(map[string]map[string]int64, len(s.regions))

	for _, region := range s.regions {
		sizes[region] = make(map[string]int64, len(s.modes))
		for mode := range s.modes {
			size, err := s.queue.Size(ctx, region, mode)
			if err != nil {
				s.logger.Warn("Failed to read queue size",
					zap.String("region", region),
					zap.String("mode", mode),
					zap.Error(err))
				continue
			}
			sizes[region][mode] = size
		}
	}

	return sizes
}

// estimateWait is the mode's base estimate, halved once the bucket could
// already seat a viable match.
func (s *MatchmakingService) estimateWait(ctx context.Context, region, mode string, modeCfg config.ModeConfig) time.Duration {
	size, err := s.queue.Size(ctx, region, mode)
	if err != nil {
		return modeCfg.EstimatedWait
	}

	if size >= int64(modeCfg.MinPlayers) {
		return modeCfg.EstimatedWait / 2
	}
	return modeCfg.EstimatedWait
}

// RunPass executes one grouping pass for a bucket. Passes for the same bucket
// are serialized by the bucket lock; the all-or-nothing batch claim protects
// against a lock expiring mid-pass.
func (s *MatchmakingService) RunPass(ctx context.Context, region, mode string) {
	modeCfg, ok := s.modes[mode]
	if !ok {
		return
	}

	release, acquired, err := s.locker.Lock(ctx, region, mode)
	if err != nil {
		s.logger.Error("Failed to acquire bucket lock",
			zap.String("region", region),
			zap.String("mode", mode),
			zap.Error(err))
		return
	}
	if !acquired {
		// another pass owns the bucket; the next trigger retries
		return
	}
	defer release()

	candidates, err := s.queue.ListCandidates(ctx, region, mode)
	if err != nil {
		s.logger.Error("Failed to snapshot queue bucket",
			zap.String("region", region),
			zap.String("mode", mode),
			zap.Error(err))
		return
	}

	groups := matchmaker.Group(candidates, modeCfg.MaxPlayers, modeCfg.MinPlayers)
	if len(groups) == 0 {
		return
	}

	s.logger.Info("Grouping pass formed matches",
		zap.String("region", region),
		zap.String("mode", mode),
		zap.Int("candidates", len(candidates)),
		zap.Int("groups", len(groups)))

	for _, group := range groups {
		s.createMatch(ctx, region, mode, modeCfg, group)
	}
}

// createMatch turns one accepted chunk into a match: claim the members,
// write the registry rows in one transaction, notify, promote. Any failure
// rolls the whole attempt back and the members stay (or return to) queued.
func (s *MatchmakingService) createMatch(ctx context.Context, region, mode string, modeCfg config.ModeConfig, group []models.QueueEntry) {
	playerIDs := make([]string, len(group))
	for i, entry := range group {
		playerIDs[i] = entry.PlayerID
	}

	server, err := s.servers.Assign(region)
	if err != nil {
		s.logger.Error("No server available for match",
			zap.String("region", region),
			zap.Error(err))
		return
	}

	claimed, err := s.queue.ClaimBatch(ctx, region, mode, playerIDs)
	if err != nil {
		s.servers.Release(region)
		if err == queue.ErrClaimConflict {
			// someone left or was claimed elsewhere mid-pass; the rest stay
			// queued and the next pass regroups them
			s.logger.Debug("Batch claim lost to concurrent removal",
				zap.String("region", region),
				zap.String("mode", mode))
			return
		}
		s.logger.Error("Failed to claim queue batch", zap.Error(err))
		return
	}

	match := &models.Match{
		ID:         uuid.New().String(),
		Mode:       mode,
		Region:     region,
		Server:     server,
		Status:     models.MatchStatusForming,
		MaxPlayers: modeCfg.MaxPlayers,
		MinPlayers: modeCfg.MinPlayers,
	}

	if err := s.registry.CreateWithPlayers(ctx, match, playerIDs); err != nil {
		// half-created matches must never exist: the tx already rolled back,
		// so put the players back in the queue
		s.logger.Error("Failed to create match, restoring queue entries",
			zap.String("matchId", match.ID),
			zap.Error(err))
		if restoreErr := s.queue.Restore(ctx, claimed); restoreErr != nil {
			s.logger.Error("Failed to restore queue entries",
				zap.String("matchId", match.ID),
				zap.Error(restoreErr))
		}
		s.servers.Release(region)
		return
	}

	payload := MatchFoundPayload{
		MatchID: match.ID,
		Server:  server,
		Mode:    mode,
		Region:  region,
		Players: make([]MatchPeer, len(claimed)),
	}
	for i, entry := range claimed {
		payload.Players[i] = MatchPeer{
			ID:       entry.PlayerID,
			Username: entry.Username,
			Skill:    entry.SkillRating,
		}
	}

	var undeliverable []string
	for _, entry := range claimed {
		if !s.notifier.Send(entry.PlayerID, "match_found", payload) {
			undeliverable = append(undeliverable, entry.PlayerID)
		}
	}

	if err := s.registry.Start(ctx, match.ID); err != nil {
		s.logger.Error("Failed to start match",
			zap.String("matchId", match.ID),
			zap.Error(err))
	}

	s.logger.Info("Match created",
		zap.String("matchId", match.ID),
		zap.String("region", region),
		zap.String("mode", mode),
		zap.String("server", server),
		zap.Int("players", len(claimed)))

	// a channel that closed between grouping and notify is a disconnect
	for _, playerID := range undeliverable {
		if err := s.matchService.HandleDisconnect(ctx, playerID); err != nil {
			s.logger.Error("Failed to fold notify failure into disconnect",
				zap.String("playerId", playerID),
				zap.Error(err))
		}
	}
}
