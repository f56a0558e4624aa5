package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

const (
	defaultPollInterval     = 2 * time.Second
	defaultOperationTimeout = 60 * time.Minute
)

type DaemonState int32

const (
	StateStarting DaemonState = iota
	StateBootstrapping
	StateRunning
	StateShuttingDown
	StateStopped
	StateAborted
)

func (s DaemonState) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateBootstrapping:
		return "bootstrapping"
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting_down"
	case StateStopped:
		return "stopped"
	case StateAborted:
		return "aborted"
	}
	return fmt.Sprintf("DaemonState(%d)", int32(s))
}

// shutdownFunc derives the context whose cancellation requests shutdown.
type shutdownFunc func(ctx context.Context) (context.Context, context.CancelFunc)

func signalShutdown(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
}

// Daemon mirrors a local directory to a RemoteStorage on a cron schedule.
type Daemon struct {
	storage      RemoteStorage
	reconciler   *Reconciler
	schedule     *Schedule
	syncDir      string
	fs           afero.Fs
	clock        clockwork.Clock
	pollInterval time.Duration
	opTimeout    time.Duration
	notifier     Notifier
	metrics      *syncMetrics
	shutdown     shutdownFunc
	onRunning    func()
	log          *log.Entry
	state        atomic.Int32
}

type DaemonOption func(*Daemon)

func WithClock(clock clockwork.Clock) DaemonOption {
	return func(d *Daemon) { d.clock = clock }
}

func WithFs(fs afero.Fs) DaemonOption {
	return func(d *Daemon) { d.fs = fs }
}

func WithLogger(logger *log.Entry) DaemonOption {
	return func(d *Daemon) { d.log = logger }
}

func WithNotifier(notifier Notifier) DaemonOption {
	return func(d *Daemon) { d.notifier = notifier }
}

func WithMetrics(metrics *syncMetrics) DaemonOption {
	return func(d *Daemon) { d.metrics = metrics }
}

func WithPollInterval(interval time.Duration) DaemonOption {
	return func(d *Daemon) {
		if interval > 0 {
			d.pollInterval = interval
		}
	}
}

// WithOperationTimeout bounds every remote operation the daemon starts.
func WithOperationTimeout(timeout time.Duration) DaemonOption {
	return func(d *Daemon) {
		if timeout > 0 {
			d.opTimeout = timeout
		}
	}
}

// WithOnRunning registers fn to be called once bootstrap has succeeded,
// right before the sync loop starts.
func WithOnRunning(fn func()) DaemonOption {
	return func(d *Daemon) { d.onRunning = fn }
}

// WithShutdownFunc replaces SIGINT/SIGTERM handling.
func WithShutdownFunc(fn shutdownFunc) DaemonOption {
	return func(d *Daemon) { d.shutdown = fn }
}

// NewDaemon validates the schedule and sync directory up front so that
// configuration mistakes never surface inside the loop.
func NewDaemon(storage RemoteStorage, cron string, syncDir string, opts ...DaemonOption) (*Daemon, error) {
	if storage == nil {
		return nil, &ConfigError{Field: "provider", Err: errors.New("no remote storage configured")}
	}
	if syncDir == "" {
		return nil, &ConfigError{Field: "sync_dir", Err: errors.New("must not be empty")}
	}
	schedule, err := ParseSchedule(cron)
	if err != nil {
		return nil, err
	}

	d := &Daemon{
		storage:      storage,
		schedule:     schedule,
		syncDir:      syncDir,
		fs:           afero.NewOsFs(),
		clock:        clockwork.NewRealClock(),
		pollInterval: defaultPollInterval,
		opTimeout:    defaultOperationTimeout,
		shutdown:     signalShutdown,
		log:          log.NewEntry(log.New()),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = d.log.WithField("sync_dir", syncDir)

	isDir, err := afero.DirExists(d.fs, syncDir)
	if err != nil {
		return nil, &ConfigError{Field: "sync_dir", Err: err}
	}
	if !isDir {
		return nil, &ConfigError{Field: "sync_dir", Err: fmt.Errorf("%s is not a directory", syncDir)}
	}

	d.reconciler = NewReconciler(storage, d.fs, syncDir, d.opTimeout, d.log)
	d.setState(StateStarting)

	return d, nil
}

func (d *Daemon) State() DaemonState {
	return DaemonState(d.state.Load())
}

func (d *Daemon) setState(s DaemonState) {
	d.state.Store(int32(s))
	d.metrics.setState(s)
}

// Run bootstraps the sync directory and then syncs on schedule until ctx
// is cancelled or a termination signal arrives. It returns an error only
// when bootstrap fails; the final sync outcome is logged, not returned.
func (d *Daemon) Run(ctx context.Context) error {
	d.log.Info("Starting sync daemon.")
	d.setState(StateBootstrapping)

	outcome, err := d.reconciler.Reconcile(ctx)
	if err != nil {
		d.setState(StateAborted)
		d.notify("bootstrap", err)
		return fmt.Errorf("bootstrap: %w", err)
	}
	d.log.WithField("outcome", outcome.String()).Info("Bootstrap finished.")

	runCtx, stop := d.shutdown(ctx)
	defer stop()

	next := d.schedule.Next(d.clock.Now())
	d.setState(StateRunning)
	if d.onRunning != nil {
		d.onRunning()
	}
	d.log.Info(fmt.Sprintf("Autosync enabled. Next sync scheduled at %s.", next.Format("2006-01-02 15:04:05")))

	ticker := d.clock.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-runCtx.Done():
			d.finalSync(ctx)
			return nil
		case <-ticker.Chan():
			// a pending tick must not start a sync once shutdown was requested
			if runCtx.Err() != nil {
				continue
			}
			next = d.tick(ctx, next)
		}
	}
}

// tick syncs when next has been reached and returns the following trigger,
// computed from the clock after the sync returned.
func (d *Daemon) tick(ctx context.Context, next time.Time) time.Time {
	if d.clock.Now().Before(next) {
		return next
	}

	_ = d.syncOnce(ctx, "sync")

	next = d.schedule.Next(d.clock.Now())
	d.log.Info(fmt.Sprintf("Next sync scheduled at %s.", next.Format("2006-01-02 15:04:05")))

	return next
}

func (d *Daemon) finalSync(ctx context.Context) {
	d.setState(StateShuttingDown)
	d.log.Info("Shutdown requested. Performing final sync...")

	if err := d.syncOnce(ctx, "final_sync"); err == nil {
		d.log.Info("Final sync completed successfully.")
	}

	d.setState(StateStopped)
	d.log.Info("Sync daemon stopped.")
}

// syncOnce runs one sync detached from ctx cancellation, so a sync in
// flight when shutdown is requested runs to completion.
func (d *Daemon) syncOnce(ctx context.Context, operation string) error {
	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.opTimeout)
	defer cancel()

	start := d.clock.Now()
	err := d.storage.Sync(opCtx, d.syncDir)
	d.metrics.observe(operation, start, d.clock.Now(), err)

	if err != nil {
		d.log.WithError(err).WithField("operation", operation).Error("Sync failed.")
		d.notify(operation, err)
		return err
	}
	d.log.WithField("operation", operation).Info("Sync completed successfully.")

	return nil
}

func (d *Daemon) notify(operation string, err error) {
	if d.notifier == nil {
		return
	}
	if notifyErr := d.notifier.NotifySyncFailure(operation, d.syncDir, err); notifyErr != nil {
		d.log.WithError(notifyErr).Warn("Failed to publish failure notification.")
	}
}
