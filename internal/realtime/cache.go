package realtime

import (
	"sync"

	"github.com/conduithq/conduit/internal/model"
)

// Cache is the single piece of mutable shared state in the realtime
// layer. It is owned by the Synchronizer and mutated only through Apply
// and Load; readers get copies.
type Cache struct {
	mu sync.RWMutex

	connectors  []model.Connector
	connections map[int64]model.Connection

	// jobs keeps newest-first presentation order alongside the id index.
	jobOrder []int64
	jobs     map[int64]model.PipelineJob

	// eventsByJob preserves append order per job.
	eventsByJob map[int64][]model.PipelineEvent
	eventIDs    map[int64]struct{}

	subMu  sync.Mutex
	subs   map[int64]chan Change
	nextID int64
}

func NewCache() *Cache {
	return &Cache{
		connections: make(map[int64]model.Connection),
		jobs:        make(map[int64]model.PipelineJob),
		eventsByJob: make(map[int64][]model.PipelineEvent),
		eventIDs:    make(map[int64]struct{}),
		subs:        make(map[int64]chan Change),
	}
}

// Load replaces the whole cache with a fresh snapshot. Called at
// startup and after every stream reconnect, before incremental merging
// resumes.
func (c *Cache) Load(snapshot Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.connectors = snapshot.Connectors

	c.connections = make(map[int64]model.Connection, len(snapshot.Connections))
	for _, conn := range snapshot.Connections {
		c.connections[conn.ID] = conn
	}

	c.jobs = make(map[int64]model.PipelineJob, len(snapshot.Jobs))
	c.jobOrder = c.jobOrder[:0]
	for _, job := range snapshot.Jobs {
		c.jobs[job.ID] = job
		c.jobOrder = append(c.jobOrder, job.ID)
	}

	c.eventsByJob = make(map[int64][]model.PipelineEvent)
	c.eventIDs = make(map[int64]struct{}, len(snapshot.Events))
	for _, event := range snapshot.Events {
		if _, seen := c.eventIDs[event.ID]; seen {
			continue
		}
		c.eventIDs[event.ID] = struct{}{}
		c.eventsByJob[event.JobID] = append(c.eventsByJob[event.JobID], event)
	}
}

// Apply merges one change into the cache and reports whether it changed
// anything. Applied changes are forwarded to subscribers; dropped ones
// (unknown-id updates, unknown-id deletes, exact duplicates) are not.
func (c *Cache) Apply(change Change) bool {
	c.mu.Lock()
	applied := c.merge(change)
	c.mu.Unlock()

	if applied {
		c.broadcast(change)
	}
	return applied
}

func (c *Cache) merge(change Change) bool {
	switch change.Stream {
	case StreamConnections:
		return c.mergeConnection(change)
	case StreamJobs:
		return c.mergeJob(change)
	case StreamJobEvents:
		return c.mergeEvent(change)
	}
	return false
}

func (c *Cache) mergeConnection(change Change) bool {
	id := change.entityID()
	switch change.Op {
	case OpInsert:
		// Replaying an insert replaces, never duplicates.
		c.connections[id] = *change.Connection
		return true
	case OpUpdate:
		if _, ok := c.connections[id]; !ok {
			return false
		}
		c.connections[id] = *change.Connection
		return true
	case OpDelete:
		if _, ok := c.connections[id]; !ok {
			return false
		}
		delete(c.connections, id)
		return true
	}
	return false
}

func (c *Cache) mergeJob(change Change) bool {
	id := change.entityID()
	switch change.Op {
	case OpInsert:
		if _, ok := c.jobs[id]; !ok {
			// Newest first.
			c.jobOrder = append([]int64{id}, c.jobOrder...)
		}
		c.jobs[id] = *change.Job
		return true
	case OpUpdate:
		if _, ok := c.jobs[id]; !ok {
			return false
		}
		c.jobs[id] = *change.Job
		return true
	case OpDelete:
		if _, ok := c.jobs[id]; !ok {
			return false
		}
		delete(c.jobs, id)
		for i, jobID := range c.jobOrder {
			if jobID == id {
				c.jobOrder = append(c.jobOrder[:i], c.jobOrder[i+1:]...)
				break
			}
		}
		return true
	}
	return false
}

func (c *Cache) mergeEvent(change Change) bool {
	if change.Op != OpInsert || change.Event == nil {
		// Job events are append-only.
		return false
	}
	if _, seen := c.eventIDs[change.Event.ID]; seen {
		return false
	}
	c.eventIDs[change.Event.ID] = struct{}{}
	c.eventsByJob[change.Event.JobID] = append(c.eventsByJob[change.Event.JobID], *change.Event)
	return true
}

// Snapshot is the full cache content, also the shape loaded from the
// stores at startup and on reconnect.
type Snapshot struct {
	Connectors  []model.Connector
	Connections []model.Connection
	Jobs        []model.PipelineJob
	Events      []model.PipelineEvent
}

// View is a user-scoped copy of the cache for one SSE client.
type View struct {
	Connectors  []model.Connector               `json:"connectors"`
	Connections []model.Connection              `json:"connections"`
	Jobs        []model.PipelineJob             `json:"jobs"`
	EventsByJob map[int64][]model.PipelineEvent `json:"events_by_job"`
}

// ViewFor returns the slice of the cache a user may see: all
// connectors, plus their own connections, jobs and job events.
func (c *Cache) ViewFor(userID int64) View {
	c.mu.RLock()
	defer c.mu.RUnlock()

	view := View{
		Connectors:  append([]model.Connector(nil), c.connectors...),
		EventsByJob: make(map[int64][]model.PipelineEvent),
	}

	for _, conn := range c.connections {
		if conn.UserID == userID {
			view.Connections = append(view.Connections, conn)
		}
	}

	for _, id := range c.jobOrder {
		job, ok := c.jobs[id]
		if !ok || job.UserID != userID {
			continue
		}
		view.Jobs = append(view.Jobs, job)
		if events, ok := c.eventsByJob[id]; ok {
			view.EventsByJob[id] = append([]model.PipelineEvent(nil), events...)
		}
	}

	return view
}

// OwnsJob reports whether a job belongs to the given user, used to
// filter the unscoped job-event stream per client.
func (c *Cache) OwnsJob(userID, jobID int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	job, ok := c.jobs[jobID]
	return ok && job.UserID == userID
}

// EventCount returns how many events the cache holds for a job.
func (c *Cache) EventCount(jobID int64) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.eventsByJob[jobID])
}

// Subscribe registers a listener for applied changes. The returned
// function unsubscribes; after it returns the channel will be closed.
// Slow subscribers lose changes rather than blocking the synchronizer.
func (c *Cache) Subscribe() (<-chan Change, func()) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	id := c.nextID
	c.nextID++
	ch := make(chan Change, 64)
	c.subs[id] = ch

	unsubscribe := func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		if existing, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(existing)
		}
	}
	return ch, unsubscribe
}

func (c *Cache) broadcast(change Change) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- change:
		default:
			// Client is behind; it will resync from its next snapshot.
		}
	}
}
