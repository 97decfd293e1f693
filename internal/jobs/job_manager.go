package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

type Job interface {
	Name() string
	Run(ctx context.Context) error
	RequiresLeadership() bool
	Interval() time.Duration
}

// LeaderElector reports whether this replica currently holds leadership.
// A nil elector means a single replica that always leads.
type LeaderElector interface {
	IsLeader() bool
	CheckInterval() time.Duration
}

// JobManager runs registered jobs in their own goroutines. Jobs that
// require leadership only run while the elector says this replica leads.
type JobManager struct {
	jobs     []Job
	election LeaderElector
	logger   *slog.Logger
	wg       sync.WaitGroup
	running  map[string]context.CancelFunc
	mu       sync.Mutex
}

func NewJobManager(election LeaderElector, logger *slog.Logger) *JobManager {
	return &JobManager{
		election: election,
		logger:   logger,
		running:  make(map[string]context.CancelFunc),
	}
}

func (jm *JobManager) Register(job Job) {
	jm.jobs = append(jm.jobs, job)
}

func (jm *JobManager) Start(ctx context.Context) {
	jm.startJobs(ctx, false)

	if jm.election == nil {
		jm.startJobs(ctx, true)
		return
	}

	jm.wg.Add(1)
	go jm.followLeadership(ctx)
}

// Running returns the names of the jobs currently running.
func (jm *JobManager) Running() []string {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	names := make([]string, 0, len(jm.running))
	for _, job := range jm.jobs {
		if _, ok := jm.running[job.Name()]; ok {
			names = append(names, job.Name())
		}
	}
	return names
}

func (jm *JobManager) Shutdown(ctx context.Context) {
	jm.logger.Debug("shutting down job manager")
	jm.stopJobs(func(Job) bool { return true })

	done := make(chan struct{})
	go func() {
		jm.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		jm.logger.Debug("all jobs stopped")
	case <-ctx.Done():
		jm.logger.Warn("jobs did not stop before the shutdown deadline")
	}
}

func (jm *JobManager) followLeadership(ctx context.Context) {
	defer jm.wg.Done()

	ticker := time.NewTicker(jm.election.CheckInterval())
	defer ticker.Stop()

	var wasLeader bool
	for {
		select {
		case <-ctx.Done():
			jm.stopJobs(Job.RequiresLeadership)
			return
		case <-ticker.C:
			isLeader := jm.election.IsLeader()
			switch {
			case isLeader && !wasLeader:
				jm.logger.Info("became leader, starting leader jobs")
				jm.startJobs(ctx, true)
			case !isLeader && wasLeader:
				jm.logger.Info("lost leadership, stopping leader jobs")
				jm.stopJobs(Job.RequiresLeadership)
			}
			wasLeader = isLeader
		}
	}
}

func (jm *JobManager) startJobs(ctx context.Context, leaderOnly bool) {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	for _, job := range jm.jobs {
		if job.RequiresLeadership() != leaderOnly {
			continue
		}
		if _, exists := jm.running[job.Name()]; exists {
			continue
		}

		jobCtx, cancel := context.WithCancel(ctx)
		jm.running[job.Name()] = cancel

		jm.wg.Add(1)
		go func(j Job) {
			defer jm.wg.Done()
			jm.logger.Info("starting job", "job", j.Name(), "interval", j.Interval())
			if err := j.Run(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
				jm.logger.Error("job exited with error", "job", j.Name(), "error", err)
			}
		}(job)
	}
}

func (jm *JobManager) stopJobs(match func(Job) bool) {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	for _, job := range jm.jobs {
		if !match(job) {
			continue
		}
		if cancel, exists := jm.running[job.Name()]; exists {
			jm.logger.Debug("stopping job", "job", job.Name())
			cancel()
			delete(jm.running, job.Name())
		}
	}
}

// runEvery calls fn immediately and then on every tick until ctx is done.
// Errors are logged and the next tick retries.
func runEvery(ctx context.Context, interval time.Duration, logger *slog.Logger, fn func(context.Context) error) error {
	if interval <= 0 {
		return errors.New("job interval must be positive")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("initial run failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("run failed, retrying on next tick", "error", err, "interval", interval)
			}
		}
	}
}
