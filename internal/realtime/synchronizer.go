package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/conduithq/conduit/common/logger"
	"github.com/conduithq/conduit/internal/model"
	"github.com/redis/go-redis/v9"
)

// SnapshotFunc loads the full current state from the system of record.
type SnapshotFunc func(ctx context.Context) (*Snapshot, error)

// Synchronizer owns the three stream readers and the cache they feed.
// Readers are plain XRead fan-out consumers (no groups): every instance
// sees every change. On startup and after any read failure the full
// snapshot is reloaded before incremental merging resumes, so events
// missed during a gap can never be lost silently.
type Synchronizer struct {
	client   *redis.Client
	cache    *Cache
	streams  StreamNames
	snapshot SnapshotFunc
	logger   *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup

	reloadMu sync.Mutex
}

const (
	readBlock      = 5 * time.Second
	readBatch      = 100
	reconnectDelay = time.Second
)

func NewSynchronizer(client *redis.Client, cache *Cache, streams StreamNames, snapshot SnapshotFunc, log *slog.Logger) *Synchronizer {
	if log == nil {
		log = slog.Default()
	}
	return &Synchronizer{
		client:   client,
		cache:    cache,
		streams:  streams,
		snapshot: snapshot,
		logger:   log,
	}
}

// Run loads the initial snapshot and starts the stream readers. It
// returns once the readers are running; Close stops them.
//
// Each reader's resume position is captured BEFORE the snapshot loads:
// anything published during the load is then re-read rather than
// skipped, and the idempotent merge absorbs the replays.
func (s *Synchronizer) Run(ctx context.Context) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "conduit.realtime.synchronizer"})

	streams := []string{s.streams.Connections, s.streams.Jobs, s.streams.JobEvents}
	positions := make(map[string]string, len(streams))
	for _, stream := range streams {
		positions[stream] = s.resumePosition(ctx, stream)
	}

	if err := s.reload(ctx); err != nil {
		return fmt.Errorf("loading initial snapshot: %w", err)
	}

	ctx, s.cancel = context.WithCancel(ctx)
	for _, stream := range streams {
		s.wg.Add(1)
		go s.readLoop(ctx, stream, positions[stream])
	}
	return nil
}

// Close stops the readers and waits for them to finish.
func (s *Synchronizer) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Synchronizer) readLoop(ctx context.Context, stream string, lastID string) {
	defer s.wg.Done()
	ctx = logger.WithLogFields(ctx, logger.LogFields{Stream: logger.Ptr(stream)})

	for {
		if ctx.Err() != nil {
			return
		}

		res, err := s.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{stream, lastID},
			Count:   readBatch,
			Block:   readBlock,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue // block timeout, nothing new
			}
			if ctx.Err() != nil {
				return
			}

			s.logger.ErrorContext(ctx, "stream read failed, resyncing from snapshot", "error", err)
			time.Sleep(reconnectDelay)

			// Resume position first, snapshot second: entries racing
			// in during the reload get re-read, never skipped.
			lastID = s.resumePosition(ctx, stream)
			for ctx.Err() == nil {
				reloadErr := s.reload(ctx)
				if reloadErr == nil {
					break
				}
				s.logger.ErrorContext(ctx, "snapshot reload failed", "error", reloadErr)
				time.Sleep(reconnectDelay)
			}
			continue
		}

		for _, result := range res {
			for _, msg := range result.Messages {
				change, err := parseChange(stream, s.streams, msg)
				if err != nil {
					s.logger.ErrorContext(ctx, "dropping unparseable change", "error", err, "message_id", msg.ID)
				} else {
					s.cache.Apply(change)
				}
				lastID = msg.ID
			}
		}
	}
}

// resumePosition returns the id of the newest entry currently in the
// stream. Reading from it replays at most the entries that race in
// while a snapshot loads; reading from "$" instead would lose any
// entry published before the blocking read re-attaches. A stream
// nothing has been published to yet has no key; "0" reads it from the
// beginning once it appears.
func (s *Synchronizer) resumePosition(ctx context.Context, stream string) string {
	info, err := s.client.XInfoStream(ctx, stream).Result()
	if err != nil {
		return "0"
	}
	return info.LastGeneratedID
}

// reload refetches the full snapshot into the cache. Serialized so the
// three readers cannot race concurrent reloads.
func (s *Synchronizer) reload(ctx context.Context) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	snapshot, err := s.snapshot(ctx)
	if err != nil {
		return err
	}
	s.cache.Load(*snapshot)

	s.logger.InfoContext(ctx, "cache snapshot loaded",
		"connectors", len(snapshot.Connectors),
		"connections", len(snapshot.Connections),
		"jobs", len(snapshot.Jobs),
		"events", len(snapshot.Events))
	return nil
}

func parseChange(stream string, names StreamNames, msg redis.XMessage) (Change, error) {
	change := Change{Op: Op(stringField(msg, "op"))}

	if raw := stringField(msg, "user_id"); raw != "" {
		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Change{}, fmt.Errorf("parsing user_id: %w", err)
		}
		change.UserID = userID
	}
	if raw := stringField(msg, "entity_id"); raw != "" {
		entityID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Change{}, fmt.Errorf("parsing entity_id: %w", err)
		}
		change.EntityID = entityID
	}

	entity := []byte(stringField(msg, "entity"))

	switch stream {
	case names.Connections:
		change.Stream = StreamConnections
		if change.Op != OpDelete {
			var conn model.Connection
			if err := json.Unmarshal(entity, &conn); err != nil {
				return Change{}, fmt.Errorf("decoding connection: %w", err)
			}
			change.Connection = &conn
		}
	case names.Jobs:
		change.Stream = StreamJobs
		if change.Op != OpDelete {
			var job model.PipelineJob
			if err := json.Unmarshal(entity, &job); err != nil {
				return Change{}, fmt.Errorf("decoding job: %w", err)
			}
			change.Job = &job
		}
	case names.JobEvents:
		change.Stream = StreamJobEvents
		var event model.PipelineEvent
		if err := json.Unmarshal(entity, &event); err != nil {
			return Change{}, fmt.Errorf("decoding job event: %w", err)
		}
		change.Event = &event
	default:
		return Change{}, fmt.Errorf("unknown stream %q", stream)
	}

	return change, nil
}

func stringField(msg redis.XMessage, key string) string {
	if v, ok := msg.Values[key].(string); ok {
		return v
	}
	return ""
}
