package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

const blobScheme = "mem://"

// Blobs is an in-process shared.BlobStore for local runs.
type Blobs struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewBlobs() *Blobs {
	return &Blobs{objects: make(map[string][]byte)}
}

func (b *Blobs) Put(ctx context.Context, path string, data []byte) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty blob path")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[path] = append([]byte(nil), data...)
	return blobScheme + path, nil
}

func (b *Blobs) Get(ctx context.Context, ref string) ([]byte, error) {
	path, ok := strings.CutPrefix(ref, blobScheme)
	if !ok {
		return nil, fmt.Errorf("unsupported blob ref %q", ref)
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	data, ok := b.objects[path]
	if !ok {
		return nil, fmt.Errorf("blob %s not found", ref)
	}
	return append([]byte(nil), data...), nil
}
