// internal/minio/client.go
//
// MinIO Client на основе официальной библиотеки github.com/minio/minio-go/v7

package minio

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"time"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const requestTimeout = 30 * time.Second

// Client — клиент MinIO на основе minio-go.
type Client struct {
	client *minio.Client
	config Config
}

// NewClient создаёт клиент. Соединение не проверяется до первого запроса.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return &Client{client: client, config: cfg}, nil
}

// EnsureBucket создаёт бакет, если он не существует.
func (c *Client) EnsureBucket(bucket string) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	exists, err := c.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if exists {
		return nil
	}
	err = c.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: c.config.Region})
	if err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}
	return nil
}

// PutObject загружает объект в MinIO.
func (c *Client) PutObject(bucket, object string, data io.Reader, size int64) error {
	if err := c.EnsureBucket(bucket); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	_, err := c.client.PutObject(ctx, bucket, object, data, size, minio.PutObjectOptions{
		ContentType: contentType(object),
	})
	if err != nil {
		return fmt.Errorf("put object failed: %w", err)
	}
	return nil
}

// GetObject скачивает объект из MinIO.
func (c *Client) GetObject(bucket, object string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	reader, err := c.client.GetObject(ctx, bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return nil, getError(object, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, getError(object, err)
	}
	return data, nil
}

// getError отделяет отсутствующий ключ от сетевых ошибок и ошибок доступа.
// minio-go отдаёт NoSuchKey только при первом чтении.
func getError(object string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("%w: %s", ErrObjectNotFound, object)
	}
	return fmt.Errorf("get object %s failed: %w", object, err)
}

// ListObjects возвращает объекты с префиксом, новые первыми.
func (c *Client) ListObjects(bucket, prefix string) ([]ObjectInfo, error) {
	if err := c.EnsureBucket(bucket); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	objectCh := c.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})

	var objects []ObjectInfo
	for object := range objectCh {
		if object.Err != nil {
			return nil, fmt.Errorf("list objects failed: %w", object.Err)
		}
		objects = append(objects, ObjectInfo{
			Key:          object.Key,
			LastModified: object.LastModified,
			Size:         object.Size,
		})
	}
	sort.SliceStable(objects, func(i, j int) bool {
		return objects[i].LastModified.After(objects[j].LastModified)
	})
	return objects, nil
}

func contentType(object string) string {
	switch path.Ext(object) {
	case ".json":
		return "application/json"
	case ".yaml", ".yml":
		return "application/yaml"
	default:
		return "application/octet-stream"
	}
}
