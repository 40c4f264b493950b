package myfilestore

import (
	"context"
	"os"
)

// FileStore persists uploaded blobs. Save returns the relative path under
// which the blob can be loaded back.
type FileStore interface {
	Save(c context.Context, dir string, filename string, content []byte) (string, error)
	Load(c context.Context, path string) ([]byte, error)
}

func New(c context.Context) (FileStore, func(), error) {
	baseDir := os.Getenv("UPLOAD_DIR")
	if baseDir == "" {
		baseDir = "./uploads"
	}

	return newLocalFileStore(baseDir)
}
