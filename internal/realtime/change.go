// Package realtime keeps every server instance's in-memory view of
// connections, jobs and job events consistent with the Redis change
// streams, and fans applied changes out to attached SSE clients.
package realtime

import "github.com/conduithq/conduit/internal/model"

// Stream identifies one of the three logical change feeds.
type Stream string

const (
	StreamConnections Stream = "conduit_connections"
	StreamJobs        Stream = "conduit_jobs"
	StreamJobEvents   Stream = "conduit_job_events"
)

type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Change is one mutation flowing through a stream. Exactly one of the
// entity pointers is set for inserts and updates; deletes carry only
// EntityID. UserID scopes connection and job changes; job events are
// unscoped and filtered by job ownership downstream.
type Change struct {
	Connection *model.Connection
	Job        *model.PipelineJob
	Event      *model.PipelineEvent
	Stream     Stream
	Op         Op
	UserID     int64
	EntityID   int64
}

func (c Change) entityID() int64 {
	switch {
	case c.Connection != nil:
		return c.Connection.ID
	case c.Job != nil:
		return c.Job.ID
	case c.Event != nil:
		return c.Event.ID
	}
	return c.EntityID
}
