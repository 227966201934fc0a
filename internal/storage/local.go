package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// metaDir is a shadow tree under the base path holding one JSON sidecar per
// object for content type and custom metadata. It is invisible to List.
const metaDir = ".meta"

type localSidecar struct {
	ContentType string            `json:"content_type,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Local keeps objects as plain files under a base directory. Used for dev
// setups and as a backup target on mounted volumes.
type Local struct {
	BasePath string
}

func NewLocal(path string) *Local {
	return &Local{BasePath: path}
}

func (l *Local) objectPath(key string) string {
	return filepath.Join(l.BasePath, filepath.FromSlash(key))
}

func (l *Local) sidecarPath(key string) string {
	return filepath.Join(l.BasePath, metaDir, filepath.FromSlash(key)+".json")
}

func (l *Local) Put(ctx context.Context, key string, data []byte, opts PutOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target := l.objectPath(key)
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return fmt.Errorf("create directories: %w", err)
	}
	if err := os.WriteFile(target, data, 0o600); err != nil {
		return err
	}

	if opts.ContentType == "" && len(opts.Metadata) == 0 {
		// No sidecar needed; drop a stale one from a previous write.
		_ = os.Remove(l.sidecarPath(key))
		return nil
	}
	return l.writeSidecar(key, localSidecar{ContentType: opts.ContentType, Metadata: opts.Metadata})
}

func (l *Local) Get(ctx context.Context, key string) ([]byte, *ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	data, err := os.ReadFile(l.objectPath(key))
	if os.IsNotExist(err) {
		return nil, nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	info, err := l.statObject(key)
	if err != nil {
		return nil, nil, err
	}
	return data, info, nil
}

func (l *Local) Head(ctx context.Context, key string) (*ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.statObject(key)
}

func (l *Local) List(ctx context.Context, opts ListOptions) (*ListResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var keys []string
	err := filepath.WalkDir(l.BasePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() {
			if d.Name() == metaDir && filepath.Dir(path) == filepath.Clean(l.BasePath) {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(l.BasePath, path)
		if relErr != nil {
			return nil
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
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
		info, statErr := l.statObject(key)
		if statErr != nil {
			continue
		}
		result.Objects = append(result.Objects, *info)
	}

	if result.Truncated && len(result.Objects) > 0 {
		result.Cursor = result.Objects[len(result.Objects)-1].Key
	}

	return result, nil
}

func (l *Local) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(l.objectPath(key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	_ = os.Remove(l.sidecarPath(key))
	return nil
}

func (l *Local) SetMetadata(ctx context.Context, key string, metadata map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := os.Stat(l.objectPath(key)); err != nil {
		if os.IsNotExist(err) {
			return ErrObjectNotFound
		}
		return err
	}

	sidecar, _ := l.readSidecar(key)
	sidecar.Metadata = metadata
	return l.writeSidecar(key, sidecar)
}

func (l *Local) statObject(key string) (*ObjectInfo, error) {
	stat, err := os.Stat(l.objectPath(key))
	if os.IsNotExist(err) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, err
	}

	info := &ObjectInfo{
		Key:      key,
		Size:     stat.Size(),
		Uploaded: stat.ModTime(),
	}
	if sidecar, err := l.readSidecar(key); err == nil {
		info.ContentType = sidecar.ContentType
		info.Metadata = sidecar.Metadata
	}
	return info, nil
}

func (l *Local) readSidecar(key string) (localSidecar, error) {
	var sidecar localSidecar
	data, err := os.ReadFile(l.sidecarPath(key))
	if err != nil {
		return sidecar, err
	}
	if err := json.Unmarshal(data, &sidecar); err != nil {
		return sidecar, err
	}
	return sidecar, nil
}

func (l *Local) writeSidecar(key string, sidecar localSidecar) error {
	path := l.sidecarPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create metadata directories: %w", err)
	}
	data, err := json.Marshal(sidecar)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
