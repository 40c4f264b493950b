package myfilestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSaveAndLoad(t *testing.T) {
	c := context.TODO()

	store, cleanup, err := newLocalFileStore(t.TempDir())
	assert.NoError(t, err)
	defer cleanup()

	path, err := store.Save(c, "seller1/order123", "1677542339000-invoice.pdf", []byte("%PDF-1.4 content"))
	assert.NoError(t, err)
	assert.Equal(t, "seller1/order123/1677542339000-invoice.pdf", path)

	content, err := store.Load(c, path)
	assert.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4 content"), content)
}

func TestLoadUnknownPath(t *testing.T) {
	c := context.TODO()

	store, cleanup, err := newLocalFileStore(t.TempDir())
	assert.NoError(t, err)
	defer cleanup()

	_, err = store.Load(c, "does/not/exist.pdf")
	assert.Error(t, err)
}

func TestPathEscapeRejected(t *testing.T) {
	c := context.TODO()

	store, cleanup, err := newLocalFileStore(t.TempDir())
	assert.NoError(t, err)
	defer cleanup()

	_, err = store.Load(c, "../../etc/passwd")
	assert.Error(t, err)
}
