package myfilestore

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
)

// InMemoryFileStore is used in tests
type InMemoryFileStore struct {
	mutex sync.Mutex
	files map[string][]byte
}

func NewInMemoryFileStore() *InMemoryFileStore {
	return &InMemoryFileStore{
		files: map[string][]byte{},
	}
}

func (fs *InMemoryFileStore) Save(c context.Context, dir string, filename string, content []byte) (string, error) {
	fs.mutex.Lock()
	defer fs.mutex.Unlock()

	relPath := filepath.Join(dir, filepath.Base(filename))
	fs.files[relPath] = content

	return relPath, nil
}

func (fs *InMemoryFileStore) Load(c context.Context, path string) ([]byte, error) {
	fs.mutex.Lock()
	defer fs.mutex.Unlock()

	content, found := fs.files[path]
	if !found {
		return nil, fmt.Errorf("error reading file %s: not found", path)
	}

	return content, nil
}
