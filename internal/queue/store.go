package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/uassett/Epsydev/internal/models"
)

var (
	// ErrAlreadyQueued is returned when the player already holds an entry anywhere
	ErrAlreadyQueued = errors.New("player already queued")
	// ErrClaimConflict is returned when a batch claim loses to a concurrent removal
	ErrClaimConflict = errors.New("claim conflict: entry no longer present")
)

const playerKeyPrefix = "queue:player:"

// Store keeps ephemeral queue entries in Redis: one TTL-backed JSON value per
// player plus one membership set per (region, mode) bucket. The per-player key
// is the single source of truth; set members whose key expired are pruned lazily.
type Store struct {
	client   *redis.Client
	entryTTL time.Duration
}

// NewStore creates a queue store
func NewStore(client *redis.Client, entryTTL time.Duration) *Store {
	return &Store{
		client:   client,
		entryTTL: entryTTL,
	}
}

func playerKey(playerID string) string {
	return playerKeyPrefix + playerID
}

func bucketKey(region, mode string) string {
	return fmt.Sprintf("queue:%s:%s", region, mode)
}

// enqueueScript rejects the write when the player key already exists, so a
// player can never hold two entries system-wide.
var enqueueScript = redis.NewScript(`
	if redis.call('EXISTS', KEYS[1]) == 1 then
		return 0
	end
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
	redis.call('SADD', KEYS[2], ARGV[3])
	return 1
`)

// Enqueue writes a new entry, failing with ErrAlreadyQueued on duplicates
func (s *Store) Enqueue(ctx context.Context, entry *models.QueueEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal queue entry: %w", err)
	}

	result, err := enqueueScript.Run(ctx, s.client,
		[]string{playerKey(entry.PlayerID), bucketKey(entry.Region, entry.Mode)},
		data, s.entryTTL.Milliseconds(), entry.PlayerID,
	).Int()
	if err != nil {
		return fmt.Errorf("failed to enqueue: %w", err)
	}

	if result == 0 {
		return ErrAlreadyQueued
	}

	return nil
}

// dequeueScript reads the entry to locate its bucket and removes both inside
// one script, so an expire-and-requeue between lookup and delete can never
// remove a fresh entry.
var dequeueScript = redis.NewScript(`
	local data = redis.call('GET', KEYS[1])
	if not data then
		return 0
	end
	local entry = cjson.decode(data)
	redis.call('DEL', KEYS[1])
	redis.call('SREM', 'queue:' .. entry.region .. ':' .. entry.game_mode, ARGV[1])
	return 1
`)

// Dequeue removes a player's entry if present. It reports whether an entry
// was removed and is a no-op otherwise.
func (s *Store) Dequeue(ctx context.Context, playerID string) (bool, error) {
	result, err := dequeueScript.Run(ctx, s.client,
		[]string{playerKey(playerID)}, playerID,
	).Int()
	if err != nil {
		return false, fmt.Errorf("failed to dequeue: %w", err)
	}

	return result == 1, nil
}

// Find returns a player's entry, or nil when not queued
func (s *Store) Find(ctx context.Context, playerID string) (*models.QueueEntry, error) {
	data, err := s.client.Get(ctx, playerKey(playerID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read queue entry: %w", err)
	}

	var entry models.QueueEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal queue entry: %w", err)
	}

	return &entry, nil
}

// ListCandidates snapshots a bucket's entries without mutating queue state,
// except for pruning set members whose TTL-backed key has expired.
func (s *Store) ListCandidates(ctx context.Context, region, mode string) ([]models.QueueEntry, error) {
	members, err := s.client.SMembers(ctx, bucketKey(region, mode)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read bucket: %w", err)
	}

	if len(members) == 0 {
		return nil, nil
	}

	keys := make([]string, len(members))
	for i, id := range members {
		keys[i] = playerKey(id)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read queue entries: %w", err)
	}

	entries := make([]models.QueueEntry, 0, len(values))
	var stale []interface{}
	for i, value := range values {
		if value == nil {
			stale = append(stale, members[i])
			continue
		}

		var entry models.QueueEntry
		if err := json.Unmarshal([]byte(value.(string)), &entry); err != nil {
			stale = append(stale, members[i])
			continue
		}
		entries = append(entries, entry)
	}

	if len(stale) > 0 {
		// expired entries linger in the set until a snapshot notices them
		s.client.SRem(ctx, bucketKey(region, mode), stale...)
	}

	return entries, nil
}

// claimScript removes a batch only when every requested entry still exists.
// A partial batch claims nothing, so two concurrent grouping passes can never
// split the same chunk between two matches.
var claimScript = redis.NewScript(`
	local entries = {}
	for i = 2, #ARGV do
		local data = redis.call('GET', ARGV[1] .. ARGV[i])
		if not data then
			return false
		end
		entries[#entries + 1] = data
	end
	for i = 2, #ARGV do
		redis.call('DEL', ARGV[1] .. ARGV[i])
		redis.call('SREM', KEYS[1], ARGV[i])
	end
	return entries
`)

// ClaimBatch atomically removes a specific set of entries from a bucket.
// It fails with ErrClaimConflict, claiming nothing, if any entry is gone.
func (s *Store) ClaimBatch(ctx context.Context, region, mode string, playerIDs []string) ([]models.QueueEntry, error) {
	if len(playerIDs) == 0 {
		return nil, nil
	}

	args := make([]interface{}, 0, len(playerIDs)+1)
	args = append(args, playerKeyPrefix)
	for _, id := range playerIDs {
		args = append(args, id)
	}

	result, err := claimScript.Run(ctx, s.client, []string{bucketKey(region, mode)}, args...).Result()
	if err == redis.Nil {
		return nil, ErrClaimConflict
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim batch: %w", err)
	}

	raw, ok := result.([]interface{})
	if !ok {
		return nil, ErrClaimConflict
	}

	entries := make([]models.QueueEntry, 0, len(raw))
	for _, item := range raw {
		var entry models.QueueEntry
		if err := json.Unmarshal([]byte(item.(string)), &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal claimed entry: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// Restore re-inserts previously claimed entries after a failed match creation
func (s *Store) Restore(ctx context.Context, entries []models.QueueEntry) error {
	var firstErr error
	for i := range entries {
		if err := s.Enqueue(ctx, &entries[i]); err != nil && err != ErrAlreadyQueued {
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Size returns the bucket's member count
func (s *Store) Size(ctx context.Context, region, mode string) (int64, error) {
	return s.client.SCard(ctx, bucketKey(region, mode)).Result()
}
