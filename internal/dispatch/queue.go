package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"notification-engine/internal/models"
)

// Transport delivers one job over an external channel. Implementations
// return Permanent-wrapped errors for misconfiguration and plain errors for
// transient transport faults.
type Transport interface {
	Send(ctx context.Context, job models.DispatchJob) error
}

// Tracker records delivery outcomes on the persisted record.
type Tracker interface {
	Current(ctx context.Context, id string) (models.EmployeeNotification, error)
	UpdateStatus(ctx context.Context, id, status, errorMessage string) error
}

// Queue is the channel-typed dispatch queue with its delivery worker pool.
// Jobs are at-least-once: a worker re-checks the record status before
// sending, and transient failures are re-enqueued with exponential backoff
// up to maxAttempts invocations.
type Queue struct {
	jobs        chan models.DispatchJob
	transports  map[models.Channel]Transport
	tracker     Tracker
	logger      *logrus.Logger
	maxAttempts int
	backoffBase time.Duration
	ctx         context.Context
	cancel      context.CancelFunc
	wg          *sync.WaitGroup
}

func NewQueue(queueSize, maxAttempts int, tracker Tracker, transports map[models.Channel]Transport, logger *logrus.Logger) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		jobs:        make(chan models.DispatchJob, queueSize),
		transports:  transports,
		tracker:     tracker,
		logger:      logger,
		maxAttempts: maxAttempts,
		backoffBase: time.Second,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start launches the worker pool.
func (q *Queue) Start(workers int, wg *sync.WaitGroup) {
	q.wg = wg
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
}

// Stop cancels the workers. In-flight jobs finish; queued jobs are dropped.
func (q *Queue) Stop() {
	q.cancel()
}

// Enqueue hands a job to the pool without blocking. A full queue drops the
// job and returns false.
func (q *Queue) Enqueue(job models.DispatchJob) bool {
	select {
	case q.jobs <- job:
		return true
	default:
		q.logger.WithFields(logrus.Fields{
			"notification_id": job.NotificationID,
			"channel":         job.Channel,
		}).Error("queue full, dropping job")
		return false
	}
}

func (q *Queue) worker(id int) {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			q.logger.Debugf("dispatch worker %d stopped", id)
			return
		case job := <-q.jobs:
			q.handle(job)
		}
	}
}

func (q *Queue) handle(job models.DispatchJob) {
	entry := q.logger.WithFields(logrus.Fields{
		"notification_id": job.NotificationID,
		"channel":         job.Channel,
		"attempt":         job.Attempt + 1,
	})

	transport := q.transports[job.Channel]

	// Dashboard records are delivered at creation; this job only feeds the
	// live push and must be a safe no-op when no hub is wired.
	if job.Channel == models.ChannelDashboard {
		if transport != nil {
			if err := transport.Send(q.ctx, job); err != nil {
				entry.WithError(err).Debug("live push failed")
			}
		}
		return
	}

	current, err := q.tracker.Current(q.ctx, job.NotificationID)
	if err != nil {
		entry.WithError(err).Error("failed to load delivery record")
		q.scheduleRetry(job, entry)
		return
	}
	switch current.Status {
	case models.StatusSent, models.StatusDelivered, models.StatusRead:
		// redelivered job for a completed record
		return
	}

	if transport == nil {
		if err := q.tracker.UpdateStatus(q.ctx, job.NotificationID, models.StatusFailed, "no transport configured for channel"); err != nil {
			entry.WithError(err).Error("failed to update delivery record")
		}
		entry.Error("no transport configured for channel")
		return
	}

	sendErr := transport.Send(q.ctx, job)
	if sendErr == nil {
		if err := q.tracker.UpdateStatus(q.ctx, job.NotificationID, models.StatusSent, ""); err != nil {
			entry.WithError(err).Error("sent but failed to update delivery record")
		}
		entry.Info("dispatched")
		return
	}

	if err := q.tracker.UpdateStatus(q.ctx, job.NotificationID, models.StatusFailed, sendErr.Error()); err != nil {
		entry.WithError(err).Error("failed to update delivery record")
	}

	if IsPermanent(sendErr) {
		entry.WithError(sendErr).Warn("permanent delivery failure, not retrying")
		return
	}
	entry.WithError(sendErr).Error("transient delivery failure")
	q.scheduleRetry(job, entry)
}

// scheduleRetry re-enqueues the job after an exponential backoff, bounded by
// maxAttempts total invocations.
func (q *Queue) scheduleRetry(job models.DispatchJob, entry *logrus.Entry) {
	if job.Attempt+1 >= q.maxAttempts {
		entry.Warn("max attempts reached, giving up")
		return
	}
	job.Attempt++
	delay := q.backoffBase << (job.Attempt - 1)
	time.AfterFunc(delay, func() {
		select {
		case <-q.ctx.Done():
		default:
			q.Enqueue(job)
		}
	})
}
