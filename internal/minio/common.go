// internal/minio/common.go
//
// Общие определения для клиентов MinIO

package minio

import (
	"errors"
	"io"
	"time"
)

// ErrObjectNotFound — объекта нет в бакете.
var ErrObjectNotFound = errors.New("object not found")

// Config для MinIO-клиента.
type Config struct {
	Endpoint        string // Например: "minio:9000" (без http://)
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Region          string // По умолчанию "us-east-1"
}

// ObjectInfo информация об объекте
type ObjectInfo struct {
	Key          string
	LastModified time.Time
	Size         int64
}

// ClientInterface — то, что нужно хранилищам событий, снапшотов и профилей.
type ClientInterface interface {
	// PutObject загружает объект в MinIO
	PutObject(bucket, object string, data io.Reader, size int64) error

	// GetObject скачивает объект из MinIO. Отсутствующий ключ — ErrObjectNotFound.
	GetObject(bucket, object string) ([]byte, error)

	// ListObjects возвращает список объектов с префиксом
	ListObjects(bucket, prefix string) ([]ObjectInfo, error)
}
