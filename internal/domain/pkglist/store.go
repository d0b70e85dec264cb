// Package pkglist persists the package list, the durable summary of every
// installed package.
//
// The list is one JSON document:
//
//	{
//	  "version": 1,
//	  "packages": [
//	    {"package": "com.example.app", "appType": "QUICKAPP", "uid": 10000, ...}
//	  ]
//	}
//
// Every mutation rewrites the whole document through a temp file and rename,
// so readers never observe a partial write.
package pkglist

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/natefinch/atomic"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/pkgmgr/internal/shared/types"
)

// FormatVersion is written into every list document
const FormatVersion = 1

// Document is the on-disk list
type Document struct {
	Version  int                    `json:"version"`
	Packages []types.PackageSummary `json:"packages"`
}

// Store reads and rewrites the package list file
type Store struct {
	path string
	log  *zap.Logger
	mu   sync.Mutex
}

// NewStore creates a store for the list at path
func NewStore(path string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{path: path, log: log}
}

// Path returns the list file location
func (s *Store) Path() string {
	return s.path
}

// Exists reports whether the list file is present. Only a missing file
// counts as absent; any other stat failure is returned.
func (s *Store) Exists() (bool, error) {
	_, err := os.Stat(s.path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, types.NewError(types.KindIOError, "stat list", "", err)
	}
}

// Create writes an empty list, replacing any existing one
func (s *Store) Create() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write("create", &Document{Version: FormatVersion})
}

// Delete removes the list file. A missing file is not an error.
func (s *Store) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return types.NewError(types.KindIOError, "delete list", "", err)
	}
	return nil
}

// Load returns the persisted summaries keyed by package name.
// A missing file yields an empty map.
func (s *Store) Load() (map[string]types.PackageSummary, error) {
	list, err := s.List()
	if err != nil {
		return nil, err
	}
	out := make(map[string]types.PackageSummary, len(list))
	for _, p := range list {
		out[p.PackageName] = p
	}
	return out, nil
}

// List returns the persisted summaries in file order
func (s *Store) List() ([]types.PackageSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read("load")
	if err != nil {
		return nil, err
	}
	return doc.Packages, nil
}

// Append adds summaries to the list. An entry replaces any existing entry
// with the same package name so names stay unique.
func (s *Store) Append(summaries ...types.PackageSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read("append")
	if err != nil {
		return err
	}

	for _, add := range summaries {
		if add.PackageName == "" {
			return types.Errorf(types.KindInvalidArgument, "append", "", "summary has no package name")
		}
		doc.Packages = without(doc.Packages, add.PackageName)
		doc.Packages = append(doc.Packages, add)
	}
	return s.write("append", doc)
}

// Remove drops every entry named name. Removing an absent name rewrites
// the list unchanged.
func (s *Store) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read("remove")
	if err != nil {
		return err
	}
	doc.Packages = without(doc.Packages, name)
	return s.write("remove", doc)
}

func (s *Store) read(op string) (*Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Document{Version: FormatVersion, Packages: []types.PackageSummary{}}, nil
		}
		return nil, types.NewError(types.KindIOError, op, "", err)
	}

	var doc Document
	if err := sonic.Unmarshal(data, &doc); err != nil {
		return nil, types.Errorf(types.KindParseError, op, "", "%s: %v", s.path, err)
	}

	valid := make([]types.PackageSummary, 0, len(doc.Packages))
	for i, p := range doc.Packages {
		if p.PackageName == "" {
			s.log.Warn("Skipping package list entry without name", zap.String("path", s.path), zap.Int("index", i))
			continue
		}
		valid = append(valid, p)
	}
	doc.Packages = valid
	if doc.Version == 0 {
		doc.Version = FormatVersion
	}
	return &doc, nil
}

func (s *Store) write(op string, doc *Document) error {
	if doc.Packages == nil {
		doc.Packages = []types.PackageSummary{}
	}

	data, err := sonic.ConfigStd.MarshalIndent(doc, "", "    ")
	if err != nil {
		return types.NewError(types.KindIOError, op, "", fmt.Errorf("encode list: %w", err))
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return types.NewError(types.KindIOError, op, "", err)
	}
	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return types.NewError(types.KindIOError, op, "", err)
	}
	return nil
}

func without(list []types.PackageSummary, name string) []types.PackageSummary {
	out := list[:0]
	for _, p := range list {
		if p.PackageName != name {
			out = append(out, p)
		}
	}
	return out
}
