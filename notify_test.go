package main

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
)

type MockSNSClient struct {
	PublishRequests []*sns.PublishInput
}

func (c *MockSNSClient) PublishMessage(_ context.Context, msg *sns.PublishInput) error {
	c.PublishRequests = append(c.PublishRequests, msg)
	return nil
}

func NewMockSNSClient() *MockSNSClient {
	return &MockSNSClient{
		PublishRequests: make([]*sns.PublishInput, 0),
	}
}

// recordingNotifier remembers which operations failed.
type recordingNotifier struct {
	operations []string
	backups    []error
	lock       sync.Mutex
}

func (n *recordingNotifier) NotifySyncFailure(operation string, _ string, _ error) error {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.operations = append(n.operations, operation)
	return nil
}

func (n *recordingNotifier) NotifyBackupResults(_ BackupConfig, _ BackupArchive, backupErr error) error {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.backups = append(n.backups, backupErr)
	return nil
}

func (n *recordingNotifier) Operations() []string {
	n.lock.Lock()
	defer n.lock.Unlock()
	return append([]string(nil), n.operations...)
}

func TestSNSPublishSyncFailure(t *testing.T) {
	mockNotifier := &SNSNotifier{
		Client: NewMockSNSClient(),
		Topic:  "mock-topic",
	}
	syncErr := &TransportError{Op: "sync", Remote: "not-real-bucket", Err: errors.New("access denied")}
	expectedMessage := `Operation: sync
Directory: /folder1
Error: sync not-real-bucket: access denied
`

	err := mockNotifier.NotifySyncFailure("sync", "/folder1", syncErr)

	assert.Nil(t, err)
	mockClient := mockNotifier.Client.(*MockSNSClient)
	assert.Len(t, mockClient.PublishRequests, 1)
	assert.Equal(t, "mock-topic", *mockClient.PublishRequests[0].TopicArn)
	assert.Equal(t, "Sync failed: sync /folder1", *mockClient.PublishRequests[0].Subject)
	assert.Equal(t, expectedMessage, *mockClient.PublishRequests[0].Message)
}

func TestSNSSkipsSuccessfulSync(t *testing.T) {
	mockNotifier := &SNSNotifier{Client: NewMockSNSClient(), Topic: "mock-topic"}

	assert.Nil(t, mockNotifier.NotifySyncFailure("sync", "/folder1", nil))
	assert.Len(t, mockNotifier.Client.(*MockSNSClient).PublishRequests, 0)
}

func TestSNSSubjectIsTruncated(t *testing.T) {
	mockNotifier := &SNSNotifier{Client: NewMockSNSClient(), Topic: "mock-topic"}

	mockNotifier.NotifySyncFailure("sync", "/"+strings.Repeat("a", 200), errors.New("boom"))

	subject := *mockNotifier.Client.(*MockSNSClient).PublishRequests[0].Subject
	assert.Len(t, subject, 100)
}

func TestSNSPublishBackupResults(t *testing.T) {
	mockNotifier := &SNSNotifier{Client: NewMockSNSClient(), Topic: "mock-topic"}
	backupConfig := BackupConfig{DestinationFolder: "/backups", At: "0 3 * * *"}
	archive := BackupArchive{Path: "/backups/backup_1.zip", Size: 42}

	mockNotifier.NotifyBackupResults(backupConfig, archive, nil)

	mockClient := mockNotifier.Client.(*MockSNSClient)
	assert.Len(t, mockClient.PublishRequests, 1)
	assert.Equal(t, "Backup succeeded: /backups", *mockClient.PublishRequests[0].Subject)
	assert.Equal(t, "Backup File Name: /backups/backup_1.zip\nBackup File Size: 42\nError: <nil>\n", *mockClient.PublishRequests[0].Message)
}
