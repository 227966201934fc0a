package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryObject struct {
	data        []byte
	uploaded    time.Time
	contentType string
	metadata    map[string]string
}

// Memory is a mutex-guarded map store. It backs tests and the memory backend
// of the factory; nothing survives a restart.
type Memory struct {
	mu      sync.Mutex
	objects map[string]memoryObject
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		objects: make(map[string]memoryObject),
		now:     time.Now,
	}
}

// SetClock overrides the upload timestamp source. Tests use it to control
// incremental change detection.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *Memory) Put(ctx context.Context, key string, data []byte, opts PutOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]byte, len(data))
	copy(stored, data)

	m.objects[key] = memoryObject{
		data:        stored,
		uploaded:    m.now(),
		contentType: opts.ContentType,
		metadata:    copyMetadata(opts.Metadata),
	}
	return nil
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, *ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	obj, ok := m.objects[key]
	if !ok {
		return nil, nil, ErrObjectNotFound
	}

	data := make([]byte, len(obj.data))
	copy(data, obj.data)
	return data, m.infoLocked(key, obj), nil
}

func (m *Memory) Head(ctx context.Context, key string) (*ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	obj, ok := m.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return m.infoLocked(key, obj), nil
}

func (m *Memory) List(ctx context.Context, opts ListOptions) (*ListResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.objects))
	for key := range m.objects {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	result := &ListResult{}
	for _, key := range keys {
		if opts.Prefix != "" && !strings.HasPrefix(key, opts.Prefix) {
			continue
		}
		if opts.Cursor != "" && key <= opts.Cursor {
			continue
		}
		if opts.Limit > 0 && len(result.Objects) >= opts.Limit {
			result.Truncated = true
			break
		}
		result.Objects = append(result.Objects, *m.infoLocked(key, m.objects[key]))
	}

	if result.Truncated && len(result.Objects) > 0 {
		result.Cursor = result.Objects[len(result.Objects)-1].Key
	}

	return result, nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.objects, key)
	return nil
}

func (m *Memory) SetMetadata(ctx context.Context, key string, metadata map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	obj, ok := m.objects[key]
	if !ok {
		return ErrObjectNotFound
	}
	obj.metadata = copyMetadata(metadata)
	m.objects[key] = obj
	return nil
}

func (m *Memory) infoLocked(key string, obj memoryObject) *ObjectInfo {
	return &ObjectInfo{
		Key:         key,
		Size:        int64(len(obj.data)),
		Uploaded:    obj.uploaded,
		ContentType: obj.contentType,
		Metadata:    copyMetadata(obj.metadata),
	}
}

func copyMetadata(metadata map[string]string) map[string]string {
	if metadata == nil {
		return nil
	}
	out := make(map[string]string, len(metadata))
	for k, v := range metadata {
		out[k] = v
	}
	return out
}
