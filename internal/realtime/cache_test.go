package realtime

import (
	"testing"

	"github.com/conduithq/conduit/internal/model"
)

func connChange(op Op, conn *model.Connection) Change {
	c := Change{Stream: StreamConnections, Op: op}
	if conn != nil {
		c.Connection = conn
		c.UserID = conn.UserID
	}
	return c
}

func jobChange(op Op, job *model.PipelineJob) Change {
	c := Change{Stream: StreamJobs, Op: op}
	if job != nil {
		c.Job = job
		c.UserID = job.UserID
	}
	return c
}

func eventChange(event *model.PipelineEvent) Change {
	return Change{Stream: StreamJobEvents, Op: OpInsert, Event: event}
}

func TestCacheDuplicateInsertIsIdempotent(t *testing.T) {
	cache := NewCache()
	conn := &model.Connection{ID: 1, UserID: 7, ConnectorID: 3, Status: model.ConnectionStatusActive}

	cache.Apply(connChange(OpInsert, conn))
	cache.Apply(connChange(OpInsert, conn))

	view := cache.ViewFor(7)
	if len(view.Connections) != 1 {
		t.Errorf("connections after duplicate insert = %d, want 1", len(view.Connections))
	}
}

func TestCacheReplayedInsertReplaces(t *testing.T) {
	cache := NewCache()

	cache.Apply(connChange(OpInsert, &model.Connection{ID: 1, UserID: 7, Status: model.ConnectionStatusPending}))
	cache.Apply(connChange(OpInsert, &model.Connection{ID: 1, UserID: 7, Status: model.ConnectionStatusActive}))

	view := cache.ViewFor(7)
	if len(view.Connections) != 1 {
		t.Fatalf("connections = %d, want 1", len(view.Connections))
	}
	if view.Connections[0].Status != model.ConnectionStatusActive {
		t.Errorf("status = %q, want the later write to win", view.Connections[0].Status)
	}
}

func TestCacheUnknownIDUpdateDropped(t *testing.T) {
	cache := NewCache()

	applied := cache.Apply(connChange(OpUpdate, &model.Connection{ID: 99, UserID: 7, Status: model.ConnectionStatusActive}))
	if applied {
		t.Error("update for unknown id should be dropped")
	}
	if view := cache.ViewFor(7); len(view.Connections) != 0 {
		t.Errorf("connections = %d, want 0 (no fabricated entity)", len(view.Connections))
	}
}

func TestCacheUnknownIDDeleteNoOp(t *testing.T) {
	cache := NewCache()
	cache.Apply(jobChange(OpInsert, &model.PipelineJob{ID: 1, UserID: 7, Status: model.JobStatusRunning}))

	applied := cache.Apply(Change{Stream: StreamJobs, Op: OpDelete, UserID: 7, EntityID: 99})
	if applied {
		t.Error("delete for unknown id should be a no-op")
	}
	if view := cache.ViewFor(7); len(view.Jobs) != 1 {
		t.Errorf("jobs = %d, want 1", len(view.Jobs))
	}
}

func TestCacheDuplicateJobEventKeptOnce(t *testing.T) {
	cache := NewCache()
	cache.Apply(jobChange(OpInsert, &model.PipelineJob{ID: 5, UserID: 7, Status: model.JobStatusRunning}))

	event := &model.PipelineEvent{ID: 100, JobID: 5, Sequence: 1, Level: "info", Message: "started"}
	cache.Apply(eventChange(event))
	cache.Apply(eventChange(event))

	if got := cache.EventCount(5); got != 1 {
		t.Errorf("events for job 5 = %d, want 1", got)
	}
}

func TestCachePerIDLastWriteWinsByArrival(t *testing.T) {
	cache := NewCache()
	cache.Apply(jobChange(OpInsert, &model.PipelineJob{ID: 1, UserID: 7, Status: model.JobStatusQueued}))
	cache.Apply(jobChange(OpUpdate, &model.PipelineJob{ID: 1, UserID: 7, Status: model.JobStatusRunning}))
	cache.Apply(jobChange(OpUpdate, &model.PipelineJob{ID: 1, UserID: 7, Status: model.JobStatusSucceeded}))

	view := cache.ViewFor(7)
	if len(view.Jobs) != 1 || view.Jobs[0].Status != model.JobStatusSucceeded {
		t.Errorf("job status = %+v, want the last arrival to win", view.Jobs)
	}
}

func TestCacheJobsNewestFirst(t *testing.T) {
	cache := NewCache()
	cache.Apply(jobChange(OpInsert, &model.PipelineJob{ID: 1, UserID: 7, Status: model.JobStatusSucceeded}))
	cache.Apply(jobChange(OpInsert, &model.PipelineJob{ID: 2, UserID: 7, Status: model.JobStatusRunning}))

	view := cache.ViewFor(7)
	if len(view.Jobs) != 2 {
		t.Fatalf("jobs = %d, want 2", len(view.Jobs))
	}
	if view.Jobs[0].ID != 2 {
		t.Errorf("first job id = %d, want newest (2) first", view.Jobs[0].ID)
	}
}

func TestCacheViewIsUserScoped(t *testing.T) {
	cache := NewCache()
	cache.Apply(connChange(OpInsert, &model.Connection{ID: 1, UserID: 7, Status: model.ConnectionStatusActive}))
	cache.Apply(connChange(OpInsert, &model.Connection{ID: 2, UserID: 8, Status: model.ConnectionStatusActive}))
	cache.Apply(jobChange(OpInsert, &model.PipelineJob{ID: 10, UserID: 8, Status: model.JobStatusRunning}))

	view := cache.ViewFor(7)
	if len(view.Connections) != 1 || view.Connections[0].UserID != 7 {
		t.Errorf("connections = %+v, want only user 7's", view.Connections)
	}
	if len(view.Jobs) != 0 {
		t.Errorf("jobs = %d, want 0 for user 7", len(view.Jobs))
	}
	if !cache.OwnsJob(8, 10) {
		t.Error("OwnsJob(8, 10) = false, want true")
	}
	if cache.OwnsJob(7, 10) {
		t.Error("OwnsJob(7, 10) = true, want false")
	}
}

func TestCacheLoadReplacesState(t *testing.T) {
	cache := NewCache()
	cache.Apply(connChange(OpInsert, &model.Connection{ID: 1, UserID: 7, Status: model.ConnectionStatusActive}))

	cache.Load(Snapshot{
		Connectors:  []model.Connector{{ID: 3, Slug: "github", Name: "GitHub"}},
		Connections: []model.Connection{{ID: 2, UserID: 7, ConnectorID: 3, Status: model.ConnectionStatusActive}},
	})

	view := cache.ViewFor(7)
	if len(view.Connections) != 1 || view.Connections[0].ID != 2 {
		t.Errorf("connections after load = %+v, want only the snapshot row", view.Connections)
	}
	if len(view.Connectors) != 1 || view.Connectors[0].Slug != "github" {
		t.Errorf("connectors after load = %+v", view.Connectors)
	}
}

func TestCacheSubscribeReceivesAppliedChanges(t *testing.T) {
	cache := NewCache()
	changes, unsubscribe := cache.Subscribe()
	defer unsubscribe()

	cache.Apply(connChange(OpInsert, &model.Connection{ID: 1, UserID: 7, Status: model.ConnectionStatusActive}))
	// Dropped changes must not reach subscribers.
	cache.Apply(connChange(OpUpdate, &model.Connection{ID: 99, UserID: 7, Status: model.ConnectionStatusActive}))

	select {
	case change := <-changes:
		if change.Op != OpInsert || change.entityID() != 1 {
			t.Errorf("received change = %+v, want the applied insert", change)
		}
	default:
		t.Fatal("expected an applied change on the subscription channel")
	}

	select {
	case change := <-changes:
		t.Errorf("unexpected extra change %+v (dropped changes must not broadcast)", change)
	default:
	}
}
