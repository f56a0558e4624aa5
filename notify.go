package main

// Notifier delivers operator notifications for failures that would
// otherwise only show up in the log stream.
type Notifier interface {
	NotifySyncFailure(operation string, syncDir string, syncErr error) error
	NotifyBackupResults(backupConfig BackupConfig, archive BackupArchive, backupErr error) error
}
