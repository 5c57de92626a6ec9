package ledger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/mmrzaf/bondgen/internal/domain"
)

// FileRepository stores the whole ledger as one msgpack document. Every
// mutation rewrites the file through a temp file and rename.
type FileRepository struct {
	path string
	mu   sync.Mutex
}

type fileLedger struct {
	Version int                   `msgpack:"version"`
	Batches map[string][][]string `msgpack:"batches"`
}

const fileLedgerVersion = 1

func NewFileRepository(path string) *FileRepository {
	return &FileRepository{path: path}
}

// Init makes sure the parent directory exists.
func (r *FileRepository) Init() error {
	if r.path == "" {
		return errors.New("ledger file path is required")
	}
	return os.MkdirAll(filepath.Dir(r.path), 0o755)
}

func (r *FileRepository) load() (*fileLedger, error) {
	doc := &fileLedger{Version: fileLedgerVersion, Batches: make(map[string][][]string)}
	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return doc, nil
	}
	if err := msgpack.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("decode ledger %s: %w", r.path, err)
	}
	if doc.Version != fileLedgerVersion {
		return nil, fmt.Errorf("ledger %s: unsupported version %d", r.path, doc.Version)
	}
	if doc.Batches == nil {
		doc.Batches = make(map[string][][]string)
	}
	return doc, nil
}

func (r *FileRepository) save(doc *fileLedger) error {
	data, err := msgpack.Marshal(doc)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(r.path), filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), r.path)
}

func (r *FileRepository) update(fn func(doc *fileLedger)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, err := r.load()
	if err != nil {
		return err
	}
	fn(doc)
	return r.save(doc)
}

func (r *FileRepository) Append(_ context.Context, entity domain.EntityID, ids []string) error {
	return r.update(func(doc *fileLedger) {
		key := string(entity)
		doc.Batches[key] = append(doc.Batches[key], append([]string(nil), ids...))
	})
}

func (r *FileRepository) Batches(_ context.Context, entity domain.EntityID) ([][]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, err := r.load()
	if err != nil {
		return nil, err
	}
	return cloneBatches(doc.Batches[string(entity)]), nil
}

func (r *FileRepository) PopLast(_ context.Context, entity domain.EntityID) ([]string, error) {
	var last []string
	err := r.update(func(doc *fileLedger) {
		key := string(entity)
		b := doc.Batches[key]
		if len(b) == 0 {
			return
		}
		last = b[len(b)-1]
		if len(b) == 1 {
			delete(doc.Batches, key)
		} else {
			doc.Batches[key] = b[:len(b)-1]
		}
	})
	if err != nil {
		return nil, err
	}
	return last, nil
}

func (r *FileRepository) Clear(_ context.Context, entity domain.EntityID) error {
	return r.update(func(doc *fileLedger) {
		delete(doc.Batches, string(entity))
	})
}

func (r *FileRepository) Entities(_ context.Context) ([]domain.EntityID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, err := r.load()
	if err != nil {
		return nil, err
	}
	m := make(map[domain.EntityID][][]string, len(doc.Batches))
	for k, v := range doc.Batches {
		m[domain.EntityID(k)] = v
	}
	return sortedKeys(m), nil
}

func (r *FileRepository) Close() error { return nil }
