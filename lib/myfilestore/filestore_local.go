package myfilestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type localFileStore struct {
	baseDir string
}

func newLocalFileStore(baseDir string) (FileStore, func(), error) {
	err := os.MkdirAll(baseDir, 0o755)
	if err != nil {
		return nil, nil, fmt.Errorf("error creating upload-dir %s: %s", baseDir, err)
	}

	return &localFileStore{
		baseDir: baseDir,
	}, func() {}, nil
}

func (fs *localFileStore) Save(c context.Context, dir string, filename string, content []byte) (string, error) {
	relPath := filepath.Join(dir, filepath.Base(filename))
	fullPath, err := fs.resolve(relPath)
	if err != nil {
		return "", err
	}

	err = os.MkdirAll(filepath.Dir(fullPath), 0o755)
	if err != nil {
		return "", fmt.Errorf("error creating dir for %s: %s", relPath, err)
	}

	err = os.WriteFile(fullPath, content, 0o644)
	if err != nil {
		return "", fmt.Errorf("error writing file %s: %s", relPath, err)
	}

	return relPath, nil
}

func (fs *localFileStore) Load(c context.Context, path string) ([]byte, error) {
	fullPath, err := fs.resolve(path)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("error reading file %s: %s", path, err)
	}

	return content, nil
}

// resolve rejects paths that would escape the base-dir
func (fs *localFileStore) resolve(relPath string) (string, error) {
	fullPath := filepath.Join(fs.baseDir, relPath)
	if !strings.HasPrefix(filepath.Clean(fullPath), filepath.Clean(fs.baseDir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid path %s", relPath)
	}

	return fullPath, nil
}
