package schema

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/3frameslab/kgrecon/pkg/apperrors"
)

// Store loads schema descriptors by name. Alias resolution is not the
// loader's concern; it belongs to the graph builder and NL compiler.
type Store interface {
	List(ctx context.Context) ([]string, error)
	Load(ctx context.Context, name string) (*Descriptor, error)
	TablesOf(ctx context.Context, name string) ([]string, error)
	ColumnsOf(ctx context.Context, name, table string) ([]Column, error)
}

// FileStore loads "<name>.schema.json" files from a directory and caches
// validated descriptors by name.
type FileStore struct {
	dir   string
	cache sync.Map // name -> *Descriptor
}

// NewFileStore creates a FileStore rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

const schemaFileSuffix = ".schema.json"

// List enumerates available schema names (file base names without the
// .schema.json suffix), sorted for deterministic output.
func (s *FileStore) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, apperrors.New(apperrors.KindStoreTransient, "read schema directory", true, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), schemaFileSuffix) {
			names = append(names, strings.TrimSuffix(e.Name(), schemaFileSuffix))
		}
	}
	sort.Strings(names)
	return names, nil
}

// Load returns a validated descriptor for name, using the cache when
// present. Fails with NotFound when the file is absent, InputInvalid when
// it fails structural validation.
func (s *FileStore) Load(ctx context.Context, name string) (*Descriptor, error) {
	if cached, ok := s.cache.Load(name); ok {
		return cached.(*Descriptor), nil
	}

	path := filepath.Join(s.dir, name+schemaFileSuffix)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NotFoundf("schema", name)
		}
		return nil, apperrors.New(apperrors.KindStoreTransient, "read schema file", true, err)
	}

	var desc Descriptor
	if err := json.Unmarshal(data, &desc); err != nil {
		return nil, apperrors.Invalidf("schema "+name+" is not valid JSON", err)
	}
	if err := desc.Validate(); err != nil {
		return nil, err
	}

	s.cache.Store(name, &desc)
	return &desc, nil
}

// TablesOf returns the table names of a loaded schema, in descriptor order.
func (s *FileStore) TablesOf(ctx context.Context, name string) ([]string, error) {
	desc, err := s.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(desc.Tables))
	for _, t := range desc.OrderedTables() {
		names = append(names, t.TableName)
	}
	return names, nil
}

// ColumnsOf returns a table's columns in declaration order.
func (s *FileStore) ColumnsOf(ctx context.Context, name, table string) ([]Column, error) {
	desc, err := s.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	t, ok := desc.Tables[table]
	if !ok {
		return nil, apperrors.NotFoundf("table", table)
	}
	return t.Columns, nil
}

// invalidate drops name from the cache, forcing the next Load to re-read
// and re-validate the underlying file.
func (s *FileStore) invalidate(name string) {
	s.cache.Delete(name)
}

var _ Store = (*FileStore)(nil)
