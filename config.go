package main

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jinzhu/configor"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

const envPrefix = "STORAGE_SYNC"

type AppConfig struct {
	SyncDir          string         `yaml:"sync_dir" default:"/mnt/pufferpanel"`
	Cron             string         `yaml:"cron" default:"'*/10 * * * *'"`
	PollInterval     int            `yaml:"poll_interval" default:"2"`
	OperationTimeout int            `yaml:"operation_timeout" default:"60"`
	Concurrency      int            `yaml:"concurrency" default:"4"`
	Exclude          []string       `yaml:"exclude"`
	Provider         ProviderConfig `yaml:"provider"`
	Notify           NotifyConfig   `yaml:"notify"`
	Backup           []BackupConfig `yaml:"backup"`
	Log              LogConfig      `yaml:"log"`
	Metrics          MetricsConfig  `yaml:"metrics"`
}

type ProviderConfig struct {
	Name            string `yaml:"name" required:"true"`
	Bucket          string `yaml:"bucket" required:"true"`
	Namespace       string `yaml:"namespace"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	Profile         string `yaml:"profile"`
	Endpoint        string `yaml:"endpoint"`
	AccessKey       string `yaml:"access_key" env:"AWS_ACCESS_KEY_ID"`
	SecretKey       string `yaml:"secret_key" env:"AWS_SECRET_ACCESS_KEY"`
	CredentialsFile string `yaml:"credentials_file"`
	ConfigFile      string `yaml:"config_file" default:".oci/config"`
	KeyFile         string `yaml:"key_file" default:".oci/key.pem"`
}

type NotifyConfig struct {
	Region  string `yaml:"region"`
	Profile string `yaml:"profile"`
	ID      string `yaml:"id"`
}

type BackupConfig struct {
	DestinationFolder string `yaml:"destination_folder" required:"true"`
	At                string `yaml:"at" required:"true"`
}

type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// LoadConfig reads the configuration files in order, later files winning,
// with STORAGE_SYNC_* environment variables applied on top.
func LoadConfig(files ...string) (AppConfig, error) {
	var appConfig AppConfig
	loader := configor.New(&configor.Config{ENVPrefix: envPrefix, Silent: true})
	if err := loader.Load(&appConfig, files...); err != nil {
		return appConfig, &ConfigError{Field: "file", Err: err}
	}

	return appConfig, appConfig.Validate()
}

func (c AppConfig) Validate() error {
	if c.SyncDir == "" {
		return &ConfigError{Field: "sync_dir", Err: errors.New("must not be empty")}
	}
	if _, err := ParseSchedule(c.Cron); err != nil {
		return err
	}
	for _, pattern := range c.Exclude {
		if _, err := regexp.Compile(pattern); err != nil {
			return &ConfigError{Field: "exclude", Err: err}
		}
	}
	for _, backupConfig := range c.Backup {
		if _, err := ParseSchedule(backupConfig.At); err != nil {
			return &ConfigError{Field: "backup.at", Err: err}
		}
	}

	switch c.Provider.Name {
	case "s3":
		if c.Provider.Region == "" {
			return &ConfigError{Field: "provider.region", Err: errors.New("required for s3")}
		}
	case "gcs":
	case "oci":
		if c.Provider.Namespace == "" {
			return &ConfigError{Field: "provider.namespace", Err: errors.New("required for oci")}
		}
	default:
		return &ConfigError{Field: "provider.name", Err: fmt.Errorf("unknown cloud provider: %q", c.Provider.Name)}
	}

	return nil
}

func (c AppConfig) PollIntervalDuration() time.Duration {
	if c.PollInterval <= 0 {
		return defaultPollInterval
	}
	return time.Duration(c.PollInterval) * time.Second
}

func (c AppConfig) OperationTimeoutDuration() time.Duration {
	if c.OperationTimeout <= 0 {
		return defaultOperationTimeout
	}
	return time.Duration(c.OperationTimeout) * time.Minute
}

// StorageFromConfig builds the RemoteStorage selected by provider.name.
func (c AppConfig) StorageFromConfig(ctx context.Context, fs afero.Fs, logger *log.Entry) (RemoteStorage, error) {
	logger = logger.WithField("provider", c.Provider.Name)

	var bucketClient BucketClient
	var err error
	switch c.Provider.Name {
	case "s3":
		bucketClient, err = NewS3BucketClient(ctx, c.Provider)
	case "gcs":
		bucketClient, err = NewGCSBucketClient(ctx, c.Provider)
	case "oci":
		return NewOCIStorage(ctx, c.Provider, fs, execRunner(logger), logger)
	default:
		return nil, &ConfigError{Field: "provider.name", Err: fmt.Errorf("unknown cloud provider: %q", c.Provider.Name)}
	}
	if err != nil {
		return nil, err
	}

	return NewBucketStorage(bucketClient, c.Provider.Bucket, c.Provider.Prefix, fs, c.Exclude, c.Concurrency, logger)
}

// NotifierFromConfig returns nil when no topic is configured.
func (c AppConfig) NotifierFromConfig(ctx context.Context) (Notifier, error) {
	if c.Notify.ID == "" {
		return nil, nil
	}
	return NewSNSNotifier(ctx, c.Notify)
}

func (c AppConfig) ConfigStringArray() []string {
	configStrArr := make([]string, 0)
	configStrArr = append(configStrArr, fmt.Sprintf("  - SyncDir: %s", c.SyncDir))
	configStrArr = append(configStrArr, fmt.Sprintf("  - Cron: %s", c.Cron))
	configStrArr = append(configStrArr, fmt.Sprintf("  - Provider: %s", c.Provider.Name))
	configStrArr = append(configStrArr, fmt.Sprintf("  - Bucket: %s", c.Provider.Bucket))
	configStrArr = append(configStrArr, fmt.Sprintf("  - Concurrent Transfers: %d", c.Concurrency))

	if c.Notify.ID != "" {
		configStrArr = append(configStrArr, fmt.Sprintf("  - SNSTopic: %s", c.Notify.ID))
	}

	configStrArr = append(configStrArr, "Excluded Patterns:")
	for _, pattern := range c.Exclude {
		configStrArr = append(configStrArr, fmt.Sprintf("  - %s", pattern))
	}

	configStrArr = append(configStrArr, "Scheduled Backups:")
	for _, backupConfig := range c.Backup {
		configStrArr = append(configStrArr, fmt.Sprintf("%+v", backupConfig))
	}

	return configStrArr
}
