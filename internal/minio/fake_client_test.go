package minio

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// memClient — ClientInterface в памяти для тестов.
type memClient struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
	failPut bool
}

func newMemClient() *memClient {
	return &memClient{objects: make(map[string][]byte)}
}

func (m *memClient) PutObject(bucket, object string, data io.Reader, size int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.failPut {
		return fmt.Errorf("put refused")
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.objects[bucket+"/"+object] = b
	return nil
}

func (m *memClient) GetObject(bucket, object string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[bucket+"/"+object]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, object)
	}
	return b, nil
}

func (m *memClient) ListObjects(bucket, prefix string) ([]ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ObjectInfo
	for k, v := range m.objects {
		key := strings.TrimPrefix(k, bucket+"/")
		if key == k || !strings.HasPrefix(key, prefix) {
			continue
		}
		out = append(out, ObjectInfo{Key: key, Size: int64(len(v))})
	}
	return out, nil
}

func (m *memClient) keys(prefix string) []string {
	objs, _ := m.ListObjects("hotspots", prefix)
	keys := make([]string, 0, len(objs))
	for _, o := range objs {
		keys = append(keys, o.Key)
	}
	return keys
}
