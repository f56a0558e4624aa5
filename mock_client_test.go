package main

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"
)

type MockRequest struct {
	Bucket string
	Key    string
}

type mockObject struct {
	data    []byte
	modTime time.Time
}

// MockBucketClient is an in-memory bucket that records every request.
type MockBucketClient struct {
	UploadRequests   []MockRequest
	DownloadRequests []MockRequest
	DeleteRequests   []MockRequest
	ListErr          error
	FailKeys         map[string]error

	objects map[string]mockObject
	lock    sync.Mutex
}

func NewMockClient(contents map[string]string) *MockBucketClient {
	objects := make(map[string]mockObject)
	for key, data := range contents {
		objects[key] = mockObject{data: []byte(data), modTime: time.Now()}
	}
	return &MockBucketClient{
		UploadRequests:   make([]MockRequest, 0),
		DownloadRequests: make([]MockRequest, 0),
		DeleteRequests:   make([]MockRequest, 0),
		FailKeys:         make(map[string]error),
		objects:          objects,
	}
}

// SetObject stores an object with an explicit modification time.
func (s *MockBucketClient) SetObject(key, data string, modTime time.Time) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.objects[key] = mockObject{data: []byte(data), modTime: modTime}
}

// Contents returns the current bucket contents keyed by object key.
func (s *MockBucketClient) Contents() map[string]string {
	s.lock.Lock()
	defer s.lock.Unlock()
	contents := make(map[string]string, len(s.objects))
	for key, obj := range s.objects {
		contents[key] = string(obj.data)
	}
	return contents
}

func (s *MockBucketClient) ListObjects(_ context.Context, _ string, prefix string) (map[string]ObjectInfo, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	result := make(map[string]ObjectInfo)
	for key, obj := range s.objects {
		if strings.HasPrefix(key, prefix) {
			result[key] = ObjectInfo{ModTime: obj.modTime, Size: int64(len(obj.data))}
		}
	}
	return result, nil
}

func (s *MockBucketClient) UploadFile(_ context.Context, bucketName string, key string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	s.UploadRequests = append(s.UploadRequests, MockRequest{Bucket: bucketName, Key: key})
	if err := s.FailKeys[key]; err != nil {
		return err
	}
	s.objects[key] = mockObject{data: data, modTime: time.Now()}
	return nil
}

func (s *MockBucketClient) DownloadFile(_ context.Context, bucketName string, key string, dst io.WriterAt) error {
	s.lock.Lock()
	s.DownloadRequests = append(s.DownloadRequests, MockRequest{Bucket: bucketName, Key: key})
	obj, ok := s.objects[key]
	failErr := s.FailKeys[key]
	s.lock.Unlock()

	if failErr != nil {
		return failErr
	}
	if !ok {
		return io.ErrUnexpectedEOF
	}
	_, err := dst.WriteAt(obj.data, 0)
	return err
}

func (s *MockBucketClient) DeleteObject(_ context.Context, bucket string, key string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.DeleteRequests = append(s.DeleteRequests, MockRequest{Bucket: bucket, Key: key})
	if err := s.FailKeys[key]; err != nil {
		return err
	}
	delete(s.objects, key)
	return nil
}
