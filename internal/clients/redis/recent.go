package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/NivaraGame/adaptive-lms/internal/pkg/logger"
	"github.com/NivaraGame/adaptive-lms/internal/platform/envutil"
)

const (
	recentKeyPrefix = "recent_content:"
	recentKeyTTL    = 24 * time.Hour
	recentKeyCap    = 20
)

// RecentContentTracker remembers the content items recently shown to a user
// so the recommendation search can keep some variety. It is a cache in front
// of the message log, not the source of truth.
type RecentContentTracker interface {
	Push(ctx context.Context, userID, contentID int64) error
	Recent(ctx context.Context, userID int64, limit int) ([]int64, error)
}

type recentContentTracker struct {
	client *goredis.Client
	log    *logger.Logger
}

// NewRecentContentTracker connects using REDIS_ADDR. The caller decides
// whether a connection failure is fatal; the recommendation service runs
// without a tracker.
func NewRecentContentTracker(baseLog *logger.Logger) (RecentContentTracker, error) {
	addr := envutil.String("REDIS_ADDR", "localhost:6379")
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: envutil.String("REDIS_PASSWORD", ""),
		DB:       envutil.Int("REDIS_DB", 0),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}

	return &recentContentTracker{
		client: client,
		log:    baseLog.With("client", "RecentContentTracker"),
	}, nil
}

func recentKey(userID int64) string {
	return recentKeyPrefix + strconv.FormatInt(userID, 10)
}

func (t *recentContentTracker) Push(ctx context.Context, userID, contentID int64) error {
	key := recentKey(userID)
	pipe := t.client.TxPipeline()
	pipe.LPush(ctx, key, contentID)
	pipe.LTrim(ctx, key, 0, recentKeyCap-1)
	pipe.Expire(ctx, key, recentKeyTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (t *recentContentTracker) Recent(ctx context.Context, userID int64, limit int) ([]int64, error) {
	if limit <= 0 {
		return nil, nil
	}
	raw, err := t.client.LRange(ctx, recentKey(userID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]int64, 0, len(raw))
	for _, s := range raw {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			t.log.Warn("Skipping malformed tracker entry", "value", s)
			continue
		}
		out = append(out, id)
	}
	return out, nil
}
