package blob

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"sort"
	"strings"
	"sync"
	"time"
)

// Memory implements Store in process memory, for tests and ephemeral use.
type Memory struct {
	mu    sync.RWMutex
	blobs map[string]memoryBlob
}

type memoryBlob struct {
	data []byte
	info Info
}

// NewMemory returns an empty in-memory blob store.
func NewMemory() *Memory {
	return &Memory{blobs: make(map[string]memoryBlob)}
}

func (m *Memory) Driver() Driver { return DriverMemory }

func (m *Memory) Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error) {
	if _, err := sanitizeKey(key); err != nil {
		return Info{}, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return Info{}, err
	}
	h := sha256.Sum256(data)
	info := Info{
		Key:          key,
		Size:         int64(len(data)),
		ContentType:  opts.ContentType,
		ETag:         hex.EncodeToString(h[:]),
		Metadata:     cloneMD(opts.Metadata),
		LastModified: time.Now().UTC(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.blobs[key]; exists {
		return Info{}, fmt.Errorf("blob %s already exists", key)
	}
	m.blobs[key] = memoryBlob{data: data, info: info}
	return info, nil
}

func (m *Memory) Get(ctx context.Context, key string) (Info, io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blobs[key]
	if !ok {
		return Info{}, nil, fmt.Errorf("blob %s: %w", key, fs.ErrNotExist)
	}
	return b.info, io.NopCloser(bytes.NewReader(b.data)), nil
}

func (m *Memory) Head(ctx context.Context, key string) (Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blobs[key]
	if !ok {
		return Info{}, fmt.Errorf("blob %s: %w", key, fs.ErrNotExist)
	}
	return b.info, nil
}

func (m *Memory) Delete(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[key]; !ok {
		return false, nil
	}
	delete(m.blobs, key)
	return true, nil
}

func (m *Memory) List(ctx context.Context, prefix string) ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var infos []Info
	for key, b := range m.blobs {
		if strings.HasPrefix(key, prefix) {
			infos = append(infos, b.info)
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

func (m *Memory) PresignURL(ctx context.Context, key string, opts SignedURLOptions) (string, error) {
	return "", ErrUnsupported
}
