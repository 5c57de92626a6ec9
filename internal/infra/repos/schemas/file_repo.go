package schemas

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mmrzaf/bondgen/internal/domain"
)

type Repository interface {
	List() ([]*domain.Schema, error)
	Get(id string) (*domain.Schema, error)
	GetByPath(path string) (*domain.Schema, error)
}

// FileRepository loads schema files (.yaml, .yml, .json) from one directory.
type FileRepository struct {
	baseDir string
}

func NewFileRepository(baseDir string) *FileRepository {
	return &FileRepository{baseDir: baseDir}
}

// List returns every schema in the directory that parses. Files that do not
// parse are skipped.
func (r *FileRepository) List() ([]*domain.Schema, error) {
	if _, err := os.Stat(r.baseDir); os.IsNotExist(err) {
		return []*domain.Schema{}, nil
	}

	entries, err := os.ReadDir(r.baseDir)
	if err != nil {
		return nil, err
	}

	schemas := make([]*domain.Schema, 0)
	for _, entry := range entries {
		if entry.IsDir() || !isSchemaFile(entry.Name()) {
			continue
		}
		schema, err := r.load(filepath.Join(r.baseDir, entry.Name()))
		if err != nil {
			continue
		}
		schemas = append(schemas, schema)
	}

	return schemas, nil
}

func (r *FileRepository) Get(id string) (*domain.Schema, error) {
	schemas, err := r.List()
	if err != nil {
		return nil, err
	}

	for _, s := range schemas {
		if s.ID == id || s.Name == id {
			return s, nil
		}
	}

	return nil, fmt.Errorf("schema not found: %s", id)
}

// GetByPath loads one file. Relative paths resolve against the base
// directory, and the result must stay inside it.
func (r *FileRepository) GetByPath(path string) (*domain.Schema, error) {
	resolved, err := r.resolve(path)
	if err != nil {
		return nil, err
	}
	return r.load(resolved)
}

func (r *FileRepository) resolve(path string) (string, error) {
	base, err := filepath.Abs(r.baseDir)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(base, path)
	}
	path = filepath.Clean(path)

	rel, err := filepath.Rel(base, path)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.New("schema path escapes the schema directory")
	}
	return path, nil
}

func (r *FileRepository) load(path string) (*domain.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var schema domain.Schema
	if filepath.Ext(path) == ".json" {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&schema)
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&schema)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}

	if schema.ID == "" {
		schema.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	return &schema, nil
}

func isSchemaFile(name string) bool {
	switch filepath.Ext(name) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}
