package media

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("media not found")

// Blob is an uploaded voice note or attachment. Name keeps the original
// filename for download headers; the id is what URLs carry.
type Blob struct {
	ID          string
	Name        string
	ContentType string
	Data        []byte
}

type Store interface {
	Put(ctx context.Context, name, contentType string, r io.Reader) (Blob, error)
	Get(ctx context.Context, id string) (Blob, error)
}

// URLPath is where a stored blob is served from.
func URLPath(id string) string { return "/media/" + id }

type InMemoryStore struct {
	mu   sync.RWMutex
	byID map[string]Blob
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byID: make(map[string]Blob)}
}

func (s *InMemoryStore) Put(ctx context.Context, name, contentType string, r io.Reader) (Blob, error) {
	_ = ctx

	data, err := io.ReadAll(r)
	if err != nil {
		return Blob{}, err
	}

	b := Blob{
		ID:          uuid.NewString(),
		Name:        filepath.Base(name),
		ContentType: contentType,
		Data:        data,
	}

	s.mu.Lock()
	s.byID[b.ID] = b
	s.mu.Unlock()

	return b, nil
}

func (s *InMemoryStore) Get(ctx context.Context, id string) (Blob, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.byID[id]
	if !ok {
		return Blob{}, ErrNotFound
	}
	return b, nil
}

// FSStore keeps blobs on disk, one file per blob plus a sibling ".meta"
// with the original name and content type.
type FSStore struct {
	dir string
}

func NewFSStore(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FSStore{dir: dir}, nil
}

func (s *FSStore) Put(ctx context.Context, name, contentType string, r io.Reader) (Blob, error) {
	_ = ctx

	id := uuid.NewString()
	path := filepath.Join(s.dir, id)

	f, err := os.Create(path)
	if err != nil {
		return Blob{}, err
	}

	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return Blob{}, err
	}
	if err := f.Close(); err != nil {
		return Blob{}, err
	}

	meta := filepath.Base(name) + "\n" + contentType + "\n"
	if err := os.WriteFile(path+".meta", []byte(meta), 0o644); err != nil {
		_ = os.Remove(path)
		return Blob{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Blob{}, err
	}

	return Blob{ID: id, Name: filepath.Base(name), ContentType: contentType, Data: data}, nil
}

func (s *FSStore) Get(ctx context.Context, id string) (Blob, error) {
	_ = ctx

	// ids are uuids; reject anything that could escape the directory
	if id != filepath.Base(id) || strings.ContainsAny(id, "/\\.") {
		return Blob{}, ErrNotFound
	}

	path := filepath.Join(s.dir, id)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Blob{}, ErrNotFound
		}
		return Blob{}, err
	}

	b := Blob{ID: id, Data: data}
	if meta, err := os.ReadFile(path + ".meta"); err == nil {
		lines := strings.SplitN(string(meta), "\n", 3)
		if len(lines) > 0 {
			b.Name = lines[0]
		}
		if len(lines) > 1 {
			b.ContentType = lines[1]
		}
	}
	return b, nil
}
