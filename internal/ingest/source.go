// Package ingest lists, decodes and segments the documents of the knowledge base.
package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cloo-solutions/cryptoadvisor/internal/storage"
)

// Entry identifies one document of a Source. ID is stable across runs and is
// used as the segment source id.
type Entry struct {
	ID      string
	Size    int64
	ModTime time.Time
}

// Ext returns the lower-cased file extension of the entry.
func (e Entry) Ext() string {
	return strings.ToLower(path.Ext(e.ID))
}

// Source is a collection of raw documents.
type Source interface {
	Name() string
	List(ctx context.Context) ([]Entry, error)
	Open(ctx context.Context, id string) ([]byte, error)
}

// DirSource reads documents from a local directory tree. IDs are slash
// separated paths relative to the root.
type DirSource struct {
	root string
}

func NewDirSource(root string) *DirSource {
	return &DirSource{root: filepath.Clean(root)}
}

func (s *DirSource) Name() string { return "dir:" + s.root }

func (s *DirSource) Root() string { return s.root }

func (s *DirSource) List(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if p != s.root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		entries = append(entries, Entry{
			ID:      filepath.ToSlash(rel),
			Size:    info.Size(),
			ModTime: info.ModTime().UTC(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", s.root, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries, nil
}

func (s *DirSource) Open(_ context.Context, id string) ([]byte, error) {
	clean := path.Clean("/" + id)[1:]
	if clean == "" || clean != id {
		return nil, fmt.Errorf("invalid document id %q", id)
	}
	return os.ReadFile(filepath.Join(s.root, filepath.FromSlash(clean)))
}

// ObjectStore is the part of the S3 client a bucket source needs.
type ObjectStore interface {
	ListObjects(ctx context.Context, prefix string) ([]storage.ObjectInfo, error)
	GetObject(ctx context.Context, key string) ([]byte, error)
}

// S3Source reads documents stored under a bucket prefix. IDs are keys with
// the prefix removed.
type S3Source struct {
	store  ObjectStore
	prefix string
}

func NewS3Source(store ObjectStore, prefix string) *S3Source {
	prefix = strings.TrimLeft(prefix, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Source{store: store, prefix: prefix}
}

func (s *S3Source) Name() string { return "s3:" + s.prefix }

func (s *S3Source) List(ctx context.Context) ([]Entry, error) {
	objects, err := s.store.ListObjects(ctx, s.prefix)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(objects))
	for _, obj := range objects {
		id := strings.TrimPrefix(obj.Key, s.prefix)
		if id == "" || strings.HasSuffix(id, "/") {
			continue
		}
		entries = append(entries, Entry{ID: id, Size: obj.Size, ModTime: obj.LastModified.UTC()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries, nil
}

func (s *S3Source) Open(ctx context.Context, id string) ([]byte, error) {
	return s.store.GetObject(ctx, s.prefix+id)
}
