package redis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/kickin-server/internal/config"
)

// pointsKey holds the single lobby-wide points sorted set.
const pointsKey = "kickin:points"

// Entry is one row of the points projection.
type Entry struct {
	UserID string
	Point  int64
	Rank   int64
}

// Leaderboard caches the total-point ranking in a Redis sorted set. It
// is a projection over the users table, never authoritative: the sync
// worker rebuilds it from PostgreSQL on boot and reconciles it
// periodically, and settlement keeps it warm between cycles.
type Leaderboard struct {
	client *redis.Client
	logger *slog.Logger
}

// NewLeaderboard creates the Redis-backed points projection.
func NewLeaderboard(cfg *config.RedisConfig, logger *slog.Logger) (*Leaderboard, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &Leaderboard{client: client, logger: logger}, nil
}

// Close closes the Redis connection
func (l *Leaderboard) Close() error {
	return l.client.Close()
}

// SetPoint sets a user's point total in the projection.
func (l *Leaderboard) SetPoint(ctx context.Context, userID string, point int64) error {
	err := l.client.ZAdd(ctx, pointsKey, redis.Z{
		Score:  float64(point),
		Member: userID,
	}).Err()
	if err != nil {
		return fmt.Errorf("setting point: %w", err)
	}
	return nil
}

// BatchSetPoints writes many point totals in one pipeline.
func (l *Leaderboard) BatchSetPoints(ctx context.Context, points map[string]int64) error {
	if len(points) == 0 {
		return nil
	}
	members := make([]redis.Z, 0, len(points))
	for userID, point := range points {
		members = append(members, redis.Z{Score: float64(point), Member: userID})
	}
	if err := l.client.ZAdd(ctx, pointsKey, members...).Err(); err != nil {
		return fmt.Errorf("batch setting points: %w", err)
	}
	return nil
}

// TopN returns the n highest-point entries, best first.
func (l *Leaderboard) TopN(ctx context.Context, n int) ([]Entry, error) {
	results, err := l.client.ZRevRangeWithScores(ctx, pointsKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("getting top n: %w", err)
	}

	entries := make([]Entry, 0, len(results))
	for i, z := range results {
		userID, ok := z.Member.(string)
		if !ok {
			continue
		}
		entries = append(entries, Entry{
			UserID: userID,
			Point:  int64(z.Score),
			Rank:   int64(i + 1),
		})
	}
	return entries, nil
}

// Remove drops a user from the projection.
func (l *Leaderboard) Remove(ctx context.Context, userID string) error {
	if err := l.client.ZRem(ctx, pointsKey, userID).Err(); err != nil {
		return fmt.Errorf("removing user: %w", err)
	}
	return nil
}

// Count returns the number of ranked users.
func (l *Leaderboard) Count(ctx context.Context) (int64, error) {
	count, err := l.client.ZCard(ctx, pointsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}
