package service_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/conduithq/conduit/common/id"
	"github.com/conduithq/conduit/internal/model"
	"github.com/conduithq/conduit/internal/realtime"
	"github.com/conduithq/conduit/internal/service"
	"github.com/conduithq/conduit/internal/store"
)

var _ = Describe("JobService", func() {
	var (
		svc         service.JobService
		jobs        *mockJobStore
		connections *mockConnectionStore
		publisher   *mockPublisher
		ctx         context.Context
	)

	const userID = int64(7)

	BeforeEach(func() {
		ctx = context.Background()
		jobs = &mockJobStore{}
		connections = &mockConnectionStore{}
		publisher = &mockPublisher{}

		err := id.Init(1)
		Expect(err).NotTo(HaveOccurred())

		svc = service.NewJobService(jobs, connections, publisher, nil)
	})

	Describe("IngestJob", func() {
		It("persists and republishes the change with the ingested op", func() {
			var captured *model.PipelineJob
			jobs.upsertFn = func(_ context.Context, job *model.PipelineJob) error {
				captured = job
				return nil
			}

			job := &model.PipelineJob{ID: 10, UserID: userID, ConnectionID: 2, Tool: "list_repos", Status: model.JobStatusRunning}
			Expect(svc.IngestJob(ctx, job, realtime.OpUpdate)).To(Succeed())

			Expect(captured).NotTo(BeNil())
			Expect(publisher.jobs).To(Equal([]realtime.Op{realtime.OpUpdate}))
		})

		It("assigns an id when the executor did not send one", func() {
			job := &model.PipelineJob{UserID: userID, ConnectionID: 2, Tool: "list_repos", Status: model.JobStatusQueued}
			Expect(svc.IngestJob(ctx, job, realtime.OpInsert)).To(Succeed())
			Expect(job.ID).NotTo(BeZero())
		})

		It("touches the connection's last-used timestamp", func() {
			job := &model.PipelineJob{ID: 10, UserID: userID, ConnectionID: 2, Tool: "list_repos", Status: model.JobStatusRunning}
			Expect(svc.IngestJob(ctx, job, realtime.OpUpdate)).To(Succeed())
			Expect(connections.touchCalls).To(Equal(1))
		})
	})

	Describe("IngestEvent", func() {
		It("appends and republishes the event", func() {
			event := &model.PipelineEvent{ID: 100, JobID: 10, Sequence: 1, Level: "info", Message: "started"}
			Expect(svc.IngestEvent(ctx, event)).To(Succeed())
			Expect(publisher.events).To(Equal(1))
		})

		It("accepts a redelivered event without republishing it", func() {
			jobs.appendEventFn = func(_ context.Context, _ *model.PipelineEvent) error {
				return store.ErrDuplicate
			}

			event := &model.PipelineEvent{ID: 100, JobID: 10, Sequence: 1, Level: "info", Message: "started"}
			Expect(svc.IngestEvent(ctx, event)).To(Succeed())
			Expect(publisher.events).To(BeZero())
		})
	})

	Describe("Events", func() {
		It("refuses to serve another user's job", func() {
			jobs.getByIDFn = func(_ context.Context, _ int64) (*model.PipelineJob, error) {
				return &model.PipelineJob{ID: 10, UserID: userID + 1}, nil
			}

			_, err := svc.Events(ctx, userID, 10)
			Expect(err).To(MatchError(store.ErrNotFound))
		})

		It("returns events in sequence order for the owner", func() {
			jobs.getByIDFn = func(_ context.Context, _ int64) (*model.PipelineJob, error) {
				return &model.PipelineJob{ID: 10, UserID: userID}, nil
			}
			jobs.listEventsFn = func(_ context.Context, jobID int64) ([]model.PipelineEvent, error) {
				return []model.PipelineEvent{
					{ID: 100, JobID: jobID, Sequence: 1},
					{ID: 101, JobID: jobID, Sequence: 2},
				}, nil
			}

			events, err := svc.Events(ctx, userID, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(2))
			Expect(events[0].Sequence).To(BeNumerically("<", events[1].Sequence))
		})
	})
})
