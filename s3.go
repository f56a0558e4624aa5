package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type S3Client struct {
	Client *s3.Client
}

// NewS3BucketClient builds a client for AWS S3 or any S3 compatible
// endpoint (OCI, MinIO) when provider.endpoint is set.
func NewS3BucketClient(ctx context.Context, provider ProviderConfig) (BucketClient, error) {
	var bucketClient BucketClient

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(provider.Region),
	}
	if provider.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(provider.Profile))
	}
	if provider.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(provider.AccessKey, provider.SecretKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return bucketClient, fmt.Errorf("Error creating s3 client: %w", err)
	}

	awsS3Client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if provider.Endpoint != "" {
			o.BaseEndpoint = aws.String(provider.Endpoint)
			o.UsePathStyle = true
		}
	})
	bucketClient = &S3Client{Client: awsS3Client}

	return bucketClient, nil
}

func (s *S3Client) ListObjects(ctx context.Context, bucketName, prefix string) (map[string]ObjectInfo, error) {
	bucketFiles := make(map[string]ObjectInfo)
	listParams := &s3.ListObjectsV2Input{
		Bucket: aws.String(bucketName),
	}
	if prefix != "" {
		listParams.Prefix = aws.String(prefix)
	}
	paginator := s3.NewListObjectsV2Paginator(s.Client, listParams)
	for paginator.HasMorePages() {
		currentPage, pageErr := paginator.NextPage(ctx)
		if pageErr != nil {
			return bucketFiles, pageErr
		}
		for _, object := range currentPage.Contents {
			bucketFiles[aws.ToString(object.Key)] = ObjectInfo{
				ModTime: aws.ToTime(object.LastModified),
				Size:    aws.ToInt64(object.Size),
			}
		}
	}

	return bucketFiles, nil
}

func (s *S3Client) UploadFile(ctx context.Context, bucketName, key string, body io.Reader) error {
	uploader := manager.NewUploader(s.Client)
	_, putErr := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucketName),
		Key:    aws.String(strings.TrimPrefix(key, "/")),
		Body:   body,
	})

	return putErr
}

func (s *S3Client) DownloadFile(ctx context.Context, bucketName, key string, dst io.WriterAt) error {
	downloader := manager.NewDownloader(s.Client)
	_, getErr := downloader.Download(ctx, dst, &s3.GetObjectInput{
		Bucket: aws.String(bucketName),
		Key:    aws.String(strings.TrimPrefix(key, "/")),
	})

	return getErr
}

func (s *S3Client) DeleteObject(ctx context.Context, bucket string, key string) error {
	delReq := &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(strings.TrimPrefix(key, "/")),
	}
	_, delErr := s.Client.DeleteObject(ctx, delReq)

	return delErr
}
