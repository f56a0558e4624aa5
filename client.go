package main

import (
	"context"
	"io"
	"time"
)

// ObjectInfo is the subset of object metadata the mirror needs to decide
// whether a local file has to be uploaded.
type ObjectInfo struct {
	ModTime time.Time
	Size    int64
}

// BucketClient is the per-object API of an object storage provider.
// Keys passed to and returned from a BucketClient never start with "/".
type BucketClient interface {
	ListObjects(ctx context.Context, bucketName string, prefix string) (map[string]ObjectInfo, error)
	UploadFile(ctx context.Context, bucketName string, key string, body io.Reader) error
	DownloadFile(ctx context.Context, bucketName string, key string, dst io.WriterAt) error
	DeleteObject(ctx context.Context, bucketName string, key string) error
}
