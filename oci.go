package main

import (
	"context"
	"fmt"
	"os/exec"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// commandRunner executes an external command and blocks until it exits.
type commandRunner func(ctx context.Context, name string, args ...string) error

// execRunner runs commands on the host and streams their output into logger.
func execRunner(logger *log.Entry) commandRunner {
	return func(ctx context.Context, name string, args ...string) error {
		cmd := exec.CommandContext(ctx, name, args...)
		stdout := logger.WriterLevel(log.DebugLevel)
		defer stdout.Close()
		stderr := logger.WriterLevel(log.WarnLevel)
		defer stderr.Close()
		cmd.Stdout = stdout
		cmd.Stderr = stderr

		return cmd.Run()
	}
}

// OCIStorage drives the oci command line tool, which ships directory
// level bulk verbs for object storage.
type OCIStorage struct {
	BucketName string
	Namespace  string
	ConfigFile string
	KeyFile    string

	run commandRunner
	log *log.Entry
}

// NewOCIStorage checks that the CLI credentials exist and repairs their
// permissions, which the oci tool refuses to run without.
func NewOCIStorage(ctx context.Context, provider ProviderConfig, fs afero.Fs, run commandRunner, logger *log.Entry) (*OCIStorage, error) {
	o := &OCIStorage{
		BucketName: provider.Bucket,
		Namespace:  provider.Namespace,
		ConfigFile: provider.ConfigFile,
		KeyFile:    provider.KeyFile,
		run:        run,
		log:        logger.WithField("bucket", provider.Bucket),
	}
	o.log.Debug(fmt.Sprintf("Initializing OCI storage with config: %s", o.ConfigFile))

	for _, setupFile := range []string{o.ConfigFile, o.KeyFile} {
		exists, err := afero.Exists(fs, setupFile)
		if err != nil {
			return nil, &ConfigError{Field: "provider", Err: err}
		}
		if !exists {
			return nil, &ConfigError{Field: "provider", Err: fmt.Errorf("missing required file: %s", setupFile)}
		}
		o.log.Debug(fmt.Sprintf("Repairing file permissions for %s", setupFile))
		if err := o.run(ctx, "oci", "setup", "repair-file-permissions", "--file", setupFile); err != nil {
			return nil, &ConfigError{Field: "provider", Err: fmt.Errorf("repairing permissions of %s: %w", setupFile, err)}
		}
	}
	o.log.Info("OCI CLI setup validated successfully.")

	return o, nil
}

func (o *OCIStorage) baseArgs(verb string) []string {
	return []string{
		"os", "object", verb,
		"--bucket-name", o.BucketName,
		"--namespace", o.Namespace,
		"--config-file", o.ConfigFile,
	}
}

func excludeArgs() []string {
	args := make([]string, 0, 2*len(controlFiles))
	for _, name := range controlFiles {
		args = append(args, "--exclude", name)
	}
	return args
}

func (o *OCIStorage) invoke(ctx context.Context, op string, args []string) error {
	if err := o.run(ctx, "oci", args...); err != nil {
		return &TransportError{Op: op, Remote: o.BucketName, Err: err}
	}
	return nil
}

func (o *OCIStorage) DownloadAll(ctx context.Context, dir string) error {
	o.log.Info(fmt.Sprintf("Downloading all objects from OCI bucket %s to %s", o.BucketName, dir))
	args := append(o.baseArgs("bulk-download"), "--download-dir", dir, "--overwrite")
	args = append(args, excludeArgs()...)
	if err := o.invoke(ctx, "download", args); err != nil {
		return err
	}
	o.log.Info("Download completed successfully.")
	return nil
}

func (o *OCIStorage) UploadAll(ctx context.Context, dir string) error {
	o.log.Info(fmt.Sprintf("Uploading all files from %s to OCI bucket %s", dir, o.BucketName))
	args := append(o.baseArgs("bulk-upload"), "--src-dir", dir, "--overwrite")
	args = append(args, excludeArgs()...)
	if err := o.invoke(ctx, "upload", args); err != nil {
		return err
	}
	o.log.Info("Upload completed successfully.")
	return nil
}

func (o *OCIStorage) DeleteAll(ctx context.Context) error {
	o.log.Warn(fmt.Sprintf("Deleting all objects from OCI bucket %s", o.BucketName))
	if err := o.invoke(ctx, "delete", append(o.baseArgs("bulk-delete"), "--force")); err != nil {
		return err
	}
	o.log.Info("All objects deleted successfully.")
	return nil
}

func (o *OCIStorage) Sync(ctx context.Context, dir string) error {
	o.log.Info(fmt.Sprintf("Starting sync from %s to OCI bucket %s", dir, o.BucketName))
	args := append(o.baseArgs("sync"), "--src-dir", dir, "--delete")
	args = append(args, excludeArgs()...)
	return o.invoke(ctx, "sync", args)
}

var _ RemoteStorage = (*OCIStorage)(nil)
