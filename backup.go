package main

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"time"

	"github.com/go-co-op/gocron"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

type BackupArchive struct {
	Path string
	Size int64
}

// CreateBackup writes every file below srcDir into destDir/name.zip,
// creating destDir when needed.
func CreateBackup(fs afero.Fs, srcDir, destDir, name string) (BackupArchive, error) {
	var archive BackupArchive

	fileMap, walkErr := walkDirectory(fs, srcDir)
	if walkErr != nil {
		return archive, fmt.Errorf("Backup directory walk failed: %w", walkErr)
	}
	if err := fs.MkdirAll(destDir, 0o755); err != nil {
		return archive, err
	}

	archive.Path = filepath.Join(destDir, name+".zip")
	zipFile, err := fs.Create(archive.Path)
	if err != nil {
		return archive, err
	}

	filesToCompress := make([]string, 0, len(fileMap))
	for key := range fileMap {
		filesToCompress = append(filesToCompress, key)
	}
	sort.Strings(filesToCompress)

	if err := createArchive(fs, srcDir, filesToCompress, zipFile); err != nil {
		zipFile.Close()
		return archive, err
	}
	if err := zipFile.Close(); err != nil {
		return archive, err
	}

	info, err := fs.Stat(archive.Path)
	if err != nil {
		return archive, err
	}
	archive.Size = info.Size()

	return archive, nil
}

func createArchive(fs afero.Fs, srcDir string, keys []string, buf io.Writer) error {
	zw := zip.NewWriter(buf)

	for _, key := range keys {
		if err := addToArchive(fs, zw, srcDir, key); err != nil {
			zw.Close()
			return err
		}
	}

	return zw.Close()
}

func addToArchive(fs afero.Fs, zw *zip.Writer, srcDir, key string) error {
	file, err := fs.Open(localPathForKey(srcDir, key))
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = key
	header.Method = zip.Deflate

	writer, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}

	_, err = io.Copy(writer, file)
	return err
}

// RunBackup downloads the whole remote into a temporary directory and
// archives it as destDir/name.zip.
func RunBackup(ctx context.Context, storage RemoteStorage, fs afero.Fs, destDir, name string, logger *log.Entry) (BackupArchive, error) {
	tempDir, err := afero.TempDir(fs, "", "storage-sync-backup-")
	if err != nil {
		return BackupArchive{}, err
	}
	defer fs.RemoveAll(tempDir)

	if err := storage.DownloadAll(ctx, tempDir); err != nil {
		return BackupArchive{}, err
	}

	archive, err := CreateBackup(fs, tempDir, destDir, name)
	if err != nil {
		logger.WithError(err).Error("Failed to create backup")
		return archive, err
	}
	logger.Info(fmt.Sprintf("Backup created successfully at %s.", archive.Path))

	return archive, nil
}

// BackupScheduler runs the configured backups on their own cron schedules,
// independent of the sync loop. Backups read only from the remote.
type BackupScheduler struct {
	scheduler *gocron.Scheduler
	storage   RemoteStorage
	fs        afero.Fs
	notifier  Notifier
	timeout   time.Duration
	now       func() time.Time
	log       *log.Entry
}

func NewBackupScheduler(storage RemoteStorage, fs afero.Fs, notifier Notifier, timeout time.Duration, logger *log.Entry) *BackupScheduler {
	return &BackupScheduler{
		scheduler: gocron.NewScheduler(time.Local),
		storage:   storage,
		fs:        fs,
		notifier:  notifier,
		timeout:   timeout,
		now:       time.Now,
		log:       logger.WithField("component", "backup"),
	}
}

func (b *BackupScheduler) Schedule(backups []BackupConfig) error {
	for _, backupConfig := range backups {
		if _, err := b.scheduler.Cron(backupConfig.At).SingletonMode().Do(b.runScheduled, backupConfig); err != nil {
			return &ConfigError{Field: "backup.at", Err: err}
		}
		b.log.Info(fmt.Sprintf("Backup to %s scheduled at %q", backupConfig.DestinationFolder, backupConfig.At))
	}
	return nil
}

func (b *BackupScheduler) Start() { b.scheduler.StartAsync() }

func (b *BackupScheduler) Stop() { b.scheduler.Stop() }

func (b *BackupScheduler) runScheduled(backupConfig BackupConfig) {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	name := fmt.Sprintf("backup_%s", b.now().UTC().Format("20060102T150405Z"))
	archive, backupErr := RunBackup(ctx, b.storage, b.fs, backupConfig.DestinationFolder, name, b.log)
	if backupErr != nil {
		b.log.WithError(backupErr).Error("Scheduled backup failed")
	}

	if b.notifier != nil {
		if err := b.notifier.NotifyBackupResults(backupConfig, archive, backupErr); err != nil {
			b.log.WithError(err).Warn("Failed to publish backup notification")
		}
	}
}
