package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/conduithq/conduit/internal/model"
	"github.com/redis/go-redis/v9"
)

// Publisher pushes change events onto the Redis streams. Every server
// instance reads every stream, so a change published here reaches all
// caches including the publisher's own.
type Publisher struct {
	client  *redis.Client
	streams StreamNames
	logger  *slog.Logger
}

// StreamNames carries the configured Redis stream keys.
type StreamNames struct {
	Connections string
	Jobs        string
	JobEvents   string
}

func NewPublisher(client *redis.Client, streams StreamNames, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{client: client, streams: streams, logger: logger}
}

func (p *Publisher) PublishConnection(ctx context.Context, op Op, conn *model.Connection) error {
	return p.publish(ctx, p.streams.Connections, op, conn.UserID, conn.ID, conn)
}

func (p *Publisher) PublishJob(ctx context.Context, op Op, job *model.PipelineJob) error {
	return p.publish(ctx, p.streams.Jobs, op, job.UserID, job.ID, job)
}

func (p *Publisher) PublishJobEvent(ctx context.Context, event *model.PipelineEvent) error {
	// Job events are insert-only and unscoped; ownership is resolved
	// against the jobs cache on the consuming side.
	return p.publish(ctx, p.streams.JobEvents, OpInsert, 0, event.ID, event)
}

func (p *Publisher) publish(ctx context.Context, stream string, op Op, userID, entityID int64, entity any) error {
	payload, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("encoding change entity: %w", err)
	}

	fields := map[string]any{
		"op":        string(op),
		"entity_id": strconv.FormatInt(entityID, 10),
		"entity":    string(payload),
	}
	if userID != 0 {
		fields["user_id"] = strconv.FormatInt(userID, 10)
	}

	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: 10000,
		Approx: true,
		Values: fields,
	}).Err(); err != nil {
		return fmt.Errorf("publishing change to %s: %w", stream, err)
	}

	p.logger.DebugContext(ctx, "published change", "stream", stream, "op", op, "entity_id", entityID)
	return nil
}
