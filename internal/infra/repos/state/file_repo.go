package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/mmrzaf/bondgen/internal/domain"
)

type Repository interface {
	// Load returns the zero state when nothing was saved yet.
	Load() (domain.State, error)
	Save(st domain.State) error
}

// FileRepository keeps the graph state in one YAML file.
type FileRepository struct {
	path string
}

func NewFileRepository(path string) *FileRepository {
	return &FileRepository{path: path}
}

func (r *FileRepository) Path() string { return r.path }

func (r *FileRepository) Load() (domain.State, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return domain.State{}, nil
	}
	if err != nil {
		return domain.State{}, err
	}

	var st domain.State
	if err := yaml.Unmarshal(data, &st); err != nil {
		return domain.State{}, fmt.Errorf("parse state %s: %w", r.path, err)
	}
	return st, nil
}

func (r *FileRepository) Save(st domain.State) error {
	data, err := yaml.Marshal(st)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".state-*.yaml")
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

// MemoryRepository holds the state in process, for tests and one-shot runs.
type MemoryRepository struct {
	st    domain.State
	saves int
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Load() (domain.State, error) {
	return copyState(r.st), nil
}

func (r *MemoryRepository) Save(st domain.State) error {
	r.st = copyState(st)
	r.saves++
	return nil
}

// Saves reports how many times Save was called.
func (r *MemoryRepository) Saves() int { return r.saves }

func copyState(st domain.State) domain.State {
	out := domain.State{SchemaHash: st.SchemaHash}
	if st.Enabled != nil {
		out.Enabled = append([]domain.EntityID(nil), st.Enabled...)
	}
	if st.Settings != nil {
		out.Settings = make(map[domain.EntityID]domain.Settings, len(st.Settings))
		for id, s := range st.Settings {
			c := domain.Settings{}
			if s.Amount != nil {
				a := *s.Amount
				c.Amount = &a
			}
			for _, b := range s.Statics {
				b.Values = append([]string(nil), b.Values...)
				c.Statics = append(c.Statics, b)
			}
			out.Settings[id] = c
		}
	}
	return out
}
