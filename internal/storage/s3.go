package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3 talks to any S3-compatible endpoint (AWS, R2, MinIO) through minio-go.
type S3 struct {
	Client *minio.Client
	Bucket string
}

func NewS3(endpoint, region, bucket, accessKey, secretKey string, useSSL bool) (*S3, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}
	return &S3{Client: client, Bucket: bucket}, nil
}

func (s *S3) Put(ctx context.Context, key string, data []byte, opts PutOptions) error {
	putOpts := minio.PutObjectOptions{
		ContentType:  opts.ContentType,
		UserMetadata: opts.Metadata,
	}
	_, err := s.Client.PutObject(ctx, s.Bucket, key, bytes.NewReader(data), int64(len(data)), putOpts)
	return err
}

func (s *S3) Get(ctx context.Context, key string) ([]byte, *ObjectInfo, error) {
	obj, err := s.Client.GetObject(ctx, s.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, nil, translateS3Error(err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, nil, translateS3Error(err)
	}

	stat, err := obj.Stat()
	if err != nil {
		return nil, nil, translateS3Error(err)
	}

	return data, infoFromStat(key, stat), nil
}

func (s *S3) Head(ctx context.Context, key string) (*ObjectInfo, error) {
	stat, err := s.Client.StatObject(ctx, s.Bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, translateS3Error(err)
	}
	return infoFromStat(key, stat), nil
}

func (s *S3) List(ctx context.Context, opts ListOptions) (*ListResult, error) {
	// The object channel keeps pumping past our page; cancel it once the
	// page is full.
	listCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch := s.Client.ListObjects(listCtx, s.Bucket, minio.ListObjectsOptions{
		Prefix:     opts.Prefix,
		StartAfter: opts.Cursor,
		Recursive:  true,
	})

	result := &ListResult{}
	for obj := range ch {
		if obj.Err != nil {
			return nil, obj.Err
		}
		if opts.Limit > 0 && len(result.Objects) >= opts.Limit {
			result.Truncated = true
			break
		}
		result.Objects = append(result.Objects, ObjectInfo{
			Key:      obj.Key,
			Size:     obj.Size,
			Uploaded: obj.LastModified,
			ETag:     obj.ETag,
		})
	}

	if result.Truncated && len(result.Objects) > 0 {
		result.Cursor = result.Objects[len(result.Objects)-1].Key
	}

	return result, nil
}

func (s *S3) Delete(ctx context.Context, key string) error {
	return s.Client.RemoveObject(ctx, s.Bucket, key, minio.RemoveObjectOptions{})
}

func (s *S3) SetMetadata(ctx context.Context, key string, metadata map[string]string) error {
	// Server-side copy onto itself with replaced metadata; no data transfer.
	src := minio.CopySrcOptions{Bucket: s.Bucket, Object: key}
	dst := minio.CopyDestOptions{
		Bucket:          s.Bucket,
		Object:          key,
		UserMetadata:    metadata,
		ReplaceMetadata: true,
	}
	_, err := s.Client.CopyObject(ctx, dst, src)
	return translateS3Error(err)
}

func infoFromStat(key string, stat minio.ObjectInfo) *ObjectInfo {
	return &ObjectInfo{
		Key:         key,
		Size:        stat.Size,
		Uploaded:    stat.LastModified,
		ETag:        stat.ETag,
		ContentType: stat.ContentType,
		Metadata:    stat.UserMetadata,
	}
}

func translateS3Error(err error) error {
	if err == nil {
		return nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return ErrObjectNotFound
	}
	return err
}
