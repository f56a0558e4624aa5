package main

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

func NewSNSNotifier(ctx context.Context, notifyConfig NotifyConfig) (Notifier, error) {
	var notifier Notifier

	opts := []func(*config.LoadOptions) error{config.WithRegion(notifyConfig.Region)}
	if notifyConfig.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(notifyConfig.Profile))
	}
	cfg, cfgErr := config.LoadDefaultConfig(ctx, opts...)
	if cfgErr != nil {
		return notifier, cfgErr
	}
	snsClient := &SNSClient{sns.NewFromConfig(cfg)}
	notifier = &SNSNotifier{Client: snsClient, Topic: notifyConfig.ID}

	return notifier, nil
}

type SNSClientIface interface {
	PublishMessage(ctx context.Context, msg *sns.PublishInput) error
}

type SNSClient struct {
	Client *sns.Client
}

func (s *SNSClient) PublishMessage(ctx context.Context, msg *sns.PublishInput) error {
	_, publishErr := s.Client.Publish(ctx, msg)
	return publishErr
}

type SNSNotifier struct {
	Client SNSClientIface
	Topic  string
}

func (s *SNSNotifier) NotifySyncFailure(operation string, syncDir string, syncErr error) error {
	if syncErr == nil {
		return nil
	}

	// SNS subjects are limited to 100 characters
	subject := fmt.Sprintf("Sync failed: %s %s", operation, syncDir)
	if len(subject) > 100 {
		subject = subject[:100]
	}
	notificationBody := fmt.Sprintf("Operation: %s\nDirectory: %s\nError: %s\n", operation, syncDir, syncErr)

	snsPublishReq := &sns.PublishInput{
		Message:  aws.String(notificationBody),
		TopicArn: aws.String(s.Topic),
		Subject:  aws.String(subject),
	}

	return s.Client.PublishMessage(context.TODO(), snsPublishReq)
}

func (s *SNSNotifier) NotifyBackupResults(backupConfig BackupConfig, archive BackupArchive, backupErr error) error {
	var statusString string
	if backupErr == nil {
		statusString = "succeeded"
	} else {
		statusString = "failed"
	}

	subject := fmt.Sprintf("Backup %s: %s", statusString, backupConfig.DestinationFolder)
	if len(subject) > 100 {
		subject = subject[:100]
	}
	notificationBody := fmt.Sprintf("Backup File Name: %s\n", archive.Path)
	notificationBody += fmt.Sprintf("Backup File Size: %d\n", archive.Size)
	notificationBody += fmt.Sprintf("Error: %v\n", backupErr)

	snsPublishReq := &sns.PublishInput{
		Message:  aws.String(notificationBody),
		TopicArn: aws.String(s.Topic),
		Subject:  aws.String(subject),
	}

	return s.Client.PublishMessage(context.TODO(), snsPublishReq)
}
