package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Marquise34567/editor-backend-sub000/internal/log"
	"github.com/Marquise34567/editor-backend-sub000/internal/model"
	"github.com/redis/go-redis/v9"
)

// RedisPublisher fans job updates out over Redis pub/sub so a separate
// websocket tier can forward them. Channel layout: <prefix>:<userID>.
type RedisPublisher struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
}

// NewRedisPublisher connects a publisher to addr. prefix defaults to
// "job-events".
func NewRedisPublisher(addr, prefix string) *RedisPublisher {
	if prefix == "" {
		prefix = "job-events"
	}
	return &RedisPublisher{
		client:  redis.NewClient(&redis.Options{Addr: addr}),
		prefix:  prefix,
		timeout: 2 * time.Second,
	}
}

// NewRedisPublisherWithClient is the test seam for miniredis.
func NewRedisPublisherWithClient(client *redis.Client, prefix string) *RedisPublisher {
	if prefix == "" {
		prefix = "job-events"
	}
	return &RedisPublisher{client: client, prefix: prefix, timeout: 2 * time.Second}
}

func (p *RedisPublisher) Publish(ctx context.Context, userID string, job *model.Job) {
	logger := log.WithComponent("realtime")
	payload, err := json.Marshal(struct {
		Job *model.Job `json:"job"`
	}{Job: job})
	if err != nil {
		logger.Error().Err(err).Str("job_id", job.ID).Msg("marshal job event")
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.client.Publish(pubCtx, p.prefix+":"+userID, payload).Err(); err != nil {
		// Realtime is best-effort; the store remains the source of truth.
		logger.Warn().Err(err).Str("job_id", job.ID).Msg("publish job event")
	}
}

// Close releases the underlying connection.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
