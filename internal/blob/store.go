// Package blob stores uploaded images and returns their public URLs.
package blob

import (
	"context"
	"errors"
	"io"
	"time"
)

type Driver string

const (
	DriverS3     Driver = "s3"
	DriverMemory Driver = "memory"
)

var (
	ErrUploadFailed  = errors.New("upload failed")
	ErrNotConfigured = errors.New("blob storage not configured")
)

type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

type Info struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size_bytes"`
	ContentType  string    `json:"content_type,omitempty"`
	LastModified time.Time `json:"last_modified"`
	URL          string    `json:"url"`
}

type Store interface {
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
	Driver() Driver
}
