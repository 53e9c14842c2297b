package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"
)

type object struct {
	data []byte
	info Info
}

// Memory is an in-process Store. FailWith makes every following Put fail,
// for exercising upload error paths.
type Memory struct {
	baseURL string

	mu      sync.Mutex
	objects map[string]object
	failErr error
}

func NewMemory(baseURL string) *Memory {
	if baseURL == "" {
		baseURL = "memory://blobs"
	}
	return &Memory{baseURL: strings.TrimRight(baseURL, "/"), objects: make(map[string]object)}
}

func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	m.failErr = err
	m.mu.Unlock()
}

func (m *Memory) Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error) {
	m.mu.Lock()
	failErr := m.failErr
	m.mu.Unlock()
	if failErr != nil {
		return Info{}, failErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return Info{}, err
	}
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}
	info := Info{
		Key:          key,
		Size:         int64(len(data)),
		ContentType:  opts.ContentType,
		LastModified: time.Now().UTC(),
		URL:          m.URL(key),
	}
	m.mu.Lock()
	m.objects[key] = object{data: data, info: info}
	m.mu.Unlock()
	return info, nil
}

func (m *Memory) Get(key string) (Info, io.Reader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok {
		return Info{}, nil, errors.New("blob not found")
	}
	return obj.info, bytes.NewReader(obj.data), nil
}

func (m *Memory) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	return keys
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

func (m *Memory) URL(key string) string { return m.baseURL + "/" + key }

func (m *Memory) Driver() Driver { return DriverMemory }
