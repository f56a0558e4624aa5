package main

import (
	"context"
	"sync"
)

// mockStorage is a RemoteStorage that records calls in order and returns
// the configured errors.
type mockStorage struct {
	Calls       []string
	DownloadErr error
	UploadErr   error
	DeleteErr   error
	SyncErrs    []error

	onSync func()
	lock   sync.Mutex
}

func (m *mockStorage) record(call string) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.Calls = append(m.Calls, call)
}

func (m *mockStorage) DownloadAll(context.Context, string) error {
	m.record("download")
	return m.DownloadErr
}

func (m *mockStorage) UploadAll(context.Context, string) error {
	m.record("upload")
	return m.UploadErr
}

func (m *mockStorage) DeleteAll(context.Context) error {
	m.record("delete")
	return m.DeleteErr
}

// Sync returns SyncErrs in order, then nil once they are used up.
func (m *mockStorage) Sync(context.Context, string) error {
	m.record("sync")
	if m.onSync != nil {
		m.onSync()
	}

	m.lock.Lock()
	defer m.lock.Unlock()
	if len(m.SyncErrs) == 0 {
		return nil
	}
	err := m.SyncErrs[0]
	m.SyncErrs = m.SyncErrs[1:]
	return err
}

func (m *mockStorage) CallsSnapshot() []string {
	m.lock.Lock()
	defer m.lock.Unlock()
	return append([]string(nil), m.Calls...)
}

func (m *mockStorage) Count(call string) int {
	n := 0
	for _, c := range m.CallsSnapshot() {
		if c == call {
			n++
		}
	}
	return n
}
