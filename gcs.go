package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

type GCSClient struct {
	Client *storage.Client
}

func NewGCSBucketClient(ctx context.Context, provider ProviderConfig) (BucketClient, error) {
	var opts []option.ClientOption
	if provider.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(provider.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("Error creating gcs client: %w", err)
	}

	return &GCSClient{Client: client}, nil
}

func (s *GCSClient) ListObjects(ctx context.Context, bucketName, prefix string) (map[string]ObjectInfo, error) {
	objectMap := make(map[string]ObjectInfo)
	objIter := s.Client.Bucket(bucketName).Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := objIter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return objectMap, fmt.Errorf("Bucket(%q).Objects: %w", bucketName, err)
		}
		objectMap[attrs.Name] = ObjectInfo{ModTime: attrs.Updated, Size: attrs.Size}
	}

	return objectMap, nil
}

func (s *GCSClient) UploadFile(ctx context.Context, bucketName, key string, body io.Reader) error {
	object := s.Client.Bucket(bucketName).Object(strings.TrimPrefix(key, "/"))
	objWriter := object.NewWriter(ctx)
	if _, uploadErr := io.Copy(objWriter, body); uploadErr != nil {
		objWriter.Close()
		return uploadErr
	}
	if closeErr := objWriter.Close(); closeErr != nil {
		return closeErr
	}

	return nil
}

func (s *GCSClient) DownloadFile(ctx context.Context, bucketName, key string, dst io.WriterAt) error {
	object := s.Client.Bucket(bucketName).Object(strings.TrimPrefix(key, "/"))
	objReader, err := object.NewReader(ctx)
	if err != nil {
		return err
	}
	defer objReader.Close()

	_, copyErr := io.Copy(io.NewOffsetWriter(dst, 0), objReader)

	return copyErr
}

func (s *GCSClient) DeleteObject(ctx context.Context, bucket string, key string) error {
	object := s.Client.Bucket(bucket).Object(strings.TrimPrefix(key, "/"))

	if err := object.Delete(ctx); err != nil {
		return err
	}

	return nil
}
