package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// BootstrapOutcome reports which path a bootstrap run took.
type BootstrapOutcome int

const (
	BootstrapSkipped BootstrapOutcome = iota
	BootstrapDownloaded
	BootstrapRecovered
)

func (o BootstrapOutcome) String() string {
	switch o {
	case BootstrapSkipped:
		return "skipped"
	case BootstrapDownloaded:
		return "downloaded"
	case BootstrapRecovered:
		return "recovered"
	}
	return fmt.Sprintf("BootstrapOutcome(%d)", int(o))
}

// Reconciler performs the one-time reconciliation between the sync
// directory and the remote. Its state lives entirely in two control files
// inside the sync directory, so it is safe across restarts.
type Reconciler struct {
	storage RemoteStorage
	fs      afero.Fs
	dir     string
	timeout time.Duration
	log     *log.Entry
}

func NewReconciler(storage RemoteStorage, fs afero.Fs, dir string, timeout time.Duration, logger *log.Entry) *Reconciler {
	return &Reconciler{
		storage: storage,
		fs:      fs,
		dir:     dir,
		timeout: timeout,
		log:     logger.WithField("component", "bootstrap"),
	}
}

func (r *Reconciler) markerPath() string  { return filepath.Join(r.dir, markerFileName) }
func (r *Reconciler) recoverPath() string { return filepath.Join(r.dir, recoverFileName) }

func (r *Reconciler) exists(path string) (bool, error) {
	ok, err := afero.Exists(r.fs, path)
	if err != nil {
		return false, &FilesystemError{Op: "stat", Path: path, Err: err}
	}
	return ok, nil
}

func (r *Reconciler) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

// Reconcile runs the bootstrap decision procedure. The marker file is only
// written after every remote operation succeeded.
func (r *Reconciler) Reconcile(ctx context.Context) (BootstrapOutcome, error) {
	markerExists, err := r.exists(r.markerPath())
	if err != nil {
		return BootstrapSkipped, err
	}
	if markerExists {
		r.log.Info("Sync bootstrap marker present: skipping bootstrap.")
		return BootstrapSkipped, nil
	}

	recoverExists, err := r.exists(r.recoverPath())
	if err != nil {
		return BootstrapSkipped, err
	}

	var outcome BootstrapOutcome
	if recoverExists {
		outcome = BootstrapRecovered
		err = r.recover(ctx)
	} else {
		outcome = BootstrapDownloaded
		err = r.download(ctx)
	}
	if err != nil {
		return outcome, err
	}

	if err := afero.WriteFile(r.fs, r.markerPath(), []byte("1"), 0o644); err != nil {
		return outcome, &FilesystemError{Op: "write", Path: r.markerPath(), Err: err}
	}
	r.log.Info(fmt.Sprintf("Bootstrap marker file created at %s.", r.markerPath()))

	return outcome, nil
}

// recover makes the local directory authoritative. The recover file is
// removed last so a failed recovery is retried in full on the next start.
func (r *Reconciler) recover(ctx context.Context) error {
	r.log.Info("Recovery detected (recoverfile present). Deleting all remote and uploading local files...")

	opCtx, cancel := r.opContext(ctx)
	defer cancel()
	if err := r.storage.DeleteAll(opCtx); err != nil {
		return fmt.Errorf("recovery delete: %w", err)
	}

	opCtx, cancel = r.opContext(ctx)
	defer cancel()
	if err := r.storage.UploadAll(opCtx, r.dir); err != nil {
		return fmt.Errorf("recovery upload: %w", err)
	}

	if err := r.fs.Remove(r.recoverPath()); err != nil {
		return &FilesystemError{Op: "remove", Path: r.recoverPath(), Err: err}
	}
	r.log.Info("Recovery upload to remote storage completed successfully.")

	return nil
}

func (r *Reconciler) download(ctx context.Context) error {
	r.log.Info("Performing initial download from remote storage.")

	opCtx, cancel := r.opContext(ctx)
	defer cancel()
	if err := r.storage.DownloadAll(opCtx, r.dir); err != nil {
		return fmt.Errorf("initial download: %w", err)
	}
	r.log.Info("Initial remote download successful.")

	return nil
}
