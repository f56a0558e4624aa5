package main

import (
	"context"
	"fmt"
	"io"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configFile string
	envFile    string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          "storage-sync",
		Short:        "Keep a local directory mirrored to remote object storage",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "Configuration File Path")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "Optional env file loaded before the configuration")
	_ = root.MarkPersistentFlagRequired("config")

	root.AddCommand(newDaemonCommand(opts), newBackupCommand(opts))

	return root
}

// load reads the env file and configuration and builds the process logger.
func (o *rootOptions) load(stderr io.Writer) (AppConfig, *log.Logger, io.Closer, error) {
	if o.envFile != "" {
		if err := godotenv.Load(o.envFile); err != nil {
			return AppConfig{}, nil, nil, &ConfigError{Field: "env-file", Err: err}
		}
	}

	appConfig, err := LoadConfig(o.configFile)
	if err != nil {
		return appConfig, nil, nil, err
	}

	logger, closer, err := NewLogger(appConfig.Log, stderr)
	if err != nil {
		return appConfig, nil, nil, err
	}

	return appConfig, logger, closer, nil
}

func newDaemonCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Bootstrap the sync directory and mirror it on the configured schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(cmd.Context(), opts, cmd.ErrOrStderr())
		},
	}
}

func runDaemon(ctx context.Context, opts *rootOptions, stderr io.Writer) error {
	appConfig, logger, closer, err := opts.load(stderr)
	if err != nil {
		return err
	}
	defer closer.Close()

	entry := log.NewEntry(logger)
	entry.Info("Loaded configuration:")
	for _, line := range appConfig.ConfigStringArray() {
		entry.Info(line)
	}

	fs := afero.NewOsFs()
	storage, err := appConfig.StorageFromConfig(ctx, fs, entry)
	if err != nil {
		entry.WithError(err).Log(log.FatalLevel, "Unable to set up remote storage.")
		return err
	}
	notifier, err := appConfig.NotifierFromConfig(ctx)
	if err != nil {
		entry.WithError(err).Log(log.FatalLevel, "Unable to set up notifications.")
		return err
	}

	var daemonOpts []DaemonOption
	// backups read the remote, so they only start once bootstrap has settled it
	if len(appConfig.Backup) > 0 {
		backups := NewBackupScheduler(storage, fs, notifier, appConfig.OperationTimeoutDuration(), entry)
		if err := backups.Schedule(appConfig.Backup); err != nil {
			entry.WithError(err).Log(log.FatalLevel, "Invalid backup schedule.")
			return err
		}
		daemonOpts = append(daemonOpts, WithOnRunning(backups.Start))
		defer backups.Stop()
	}

	daemonOpts = append(daemonOpts,
		WithFs(fs),
		WithLogger(entry.WithField("component", "daemon")),
		WithNotifier(notifier),
		WithPollInterval(appConfig.PollIntervalDuration()),
		WithOperationTimeout(appConfig.OperationTimeoutDuration()),
	)
	if appConfig.Metrics.Listen != "" {
		reg, metrics := newMetricsRegistry()
		daemonOpts = append(daemonOpts, WithMetrics(metrics))

		metricsCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go serveMetrics(metricsCtx, appConfig.Metrics.Listen, reg, entry.WithField("component", "metrics"))
	}

	daemon, err := NewDaemon(storage, appConfig.Cron, appConfig.SyncDir, daemonOpts...)
	if err != nil {
		entry.WithError(err).Log(log.FatalLevel, "Invalid daemon configuration.")
		return err
	}

	if err := daemon.Run(ctx); err != nil {
		entry.WithError(err).Log(log.FatalLevel, "Sync daemon aborted.")
		return err
	}

	return nil
}

type backupOptions struct {
	destDir string
	name    string
}

func newBackupCommand(opts *rootOptions) *cobra.Command {
	backupOpts := &backupOptions{}
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Download the remote contents and archive them as a zip file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBackup(cmd.Context(), opts, backupOpts, cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVarP(&backupOpts.destDir, "dest-dir", "d", "", "Destination directory of the backup")
	cmd.Flags().StringVarP(&backupOpts.name, "name", "n", "", "Name of the backup archive, without extension")
	_ = cmd.MarkFlagRequired("dest-dir")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func runBackup(ctx context.Context, opts *rootOptions, backupOpts *backupOptions, stderr io.Writer) error {
	appConfig, logger, closer, err := opts.load(stderr)
	if err != nil {
		return err
	}
	defer closer.Close()

	entry := log.NewEntry(logger).WithField("component", "backup")
	fs := afero.NewOsFs()
	storage, err := appConfig.StorageFromConfig(ctx, fs, entry)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, appConfig.OperationTimeoutDuration())
	defer cancel()
	archive, err := RunBackup(ctx, storage, fs, backupOpts.destDir, backupOpts.name, entry)
	if err != nil {
		return fmt.Errorf("backup: %w", err)
	}
	entry.Info(fmt.Sprintf("Wrote %s (%d bytes)", archive.Path, archive.Size))

	return nil
}
