package main

import (
	"fmt"
)

// ConfigError is returned for invalid configuration. It is never retried.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s: %s", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// TransportError is returned by RemoteStorage implementations when a
// directory-level operation against the remote fails.
type TransportError struct {
	Op     string
	Remote string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Op, e.Remote, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// FilesystemError is returned when a bootstrap control file cannot be
// inspected, written or removed.
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error { return e.Err }
