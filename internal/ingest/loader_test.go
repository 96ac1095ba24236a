package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/cryptoadvisor/internal/domain"
	"github.com/cloo-solutions/cryptoadvisor/internal/storage"
)

func writeFile(t *testing.T, root, rel string, data []byte) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, data, 0o644))
}

func TestDirSource_List(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "b.txt", []byte("b"))
	writeFile(t, root, "nested/a.md", []byte("a"))
	writeFile(t, root, ".hidden", []byte("x"))
	writeFile(t, root, ".git/config", []byte("x"))

	entries, err := NewDirSource(root).List(context.Background())
	require.NoError(t, err)

	var ids []string
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"b.txt", "nested/a.md"}, ids)
}

func TestDirSource_OpenRejectsTraversal(t *testing.T) {
	_, err := NewDirSource(t.TempDir()).Open(context.Background(), "../etc/passwd")
	assert.Error(t, err)
}

func TestLoad_PlainText(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "btc.txt", []byte("Bitcoin   is\r\n\r\na  peer-to-peer\tcurrency.\n"))
	src := NewDirSource(root)

	doc, err := Load(context.Background(), src, Entry{ID: "btc.txt"})
	require.NoError(t, err)
	assert.Equal(t, "btc.txt", doc.ID)
	assert.Equal(t, "Bitcoin is a peer-to-peer currency.", doc.Text)
	assert.Len(t, doc.ContentHash, 64)
}

func TestLoad_Failures(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "bad.txt", []byte{0xff, 0xfe, 0xfd})
	writeFile(t, root, "broken.pdf", []byte("%PDF-1.4 this is not really a pdf"))
	writeFile(t, root, "blank.md", []byte(" \n\t "))
	writeFile(t, root, "image.png", []byte{0x89, 'P', 'N', 'G'})
	src := NewDirSource(root)

	tests := []struct {
		id   string
		want error
	}{
		{id: "bad.txt", want: ErrInvalidUTF8},
		{id: "broken.pdf"},
		{id: "blank.md", want: ErrNoText},
		{id: "image.png", want: ErrUnsupportedFormat},
		{id: "missing.txt", want: os.ErrNotExist},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			_, err := Load(context.Background(), src, Entry{ID: tt.id})
			require.Error(t, err)
			assert.True(t, domain.HasCode(err, domain.ErrCodeIngestion))
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported(Entry{ID: "a/B.PDF"}))
	assert.True(t, Supported(Entry{ID: "notes.md"}))
	assert.False(t, Supported(Entry{ID: "sheet.csv"}))
}

type fakeObjectStore struct {
	objects map[string][]byte
	listErr error
}

func (f *fakeObjectStore) ListObjects(_ context.Context, prefix string) ([]storage.ObjectInfo, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []storage.ObjectInfo
	for k, v := range f.objects {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			out = append(out, storage.ObjectInfo{Key: k, Size: int64(len(v))})
		}
	}
	return out, nil
}

func (f *fakeObjectStore) GetObject(_ context.Context, key string) ([]byte, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return data, nil
}

func TestS3Source(t *testing.T) {
	store := &fakeObjectStore{objects: map[string][]byte{
		"docs/eth.md":      []byte("Ethereum"),
		"docs/sub/btc.txt": []byte("Bitcoin"),
		"docs/":            nil,
		"other/x.txt":      []byte("x"),
	}}
	src := NewS3Source(store, "/docs")

	entries, err := src.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "eth.md", entries[0].ID)
	assert.Equal(t, "sub/btc.txt", entries[1].ID)

	doc, err := Load(context.Background(), src, entries[1])
	require.NoError(t, err)
	assert.Equal(t, "Bitcoin", doc.Text)
}

func TestS3Source_ListError(t *testing.T) {
	src := NewS3Source(&fakeObjectStore{listErr: errors.New("boom")}, "docs")
	_, err := src.List(context.Background())
	assert.Error(t, err)
}
