package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/charlievieth/fastwalk"
	"github.com/zeebo/blake3"
)

// HashAlgorithm represents the hashing algorithm to use
type HashAlgorithm string

const (
	SHA256 HashAlgorithm = "sha256"
	BLAKE3 HashAlgorithm = "blake3"
)

// Hasher computes hex digests with a fixed algorithm
type Hasher struct {
	algorithm HashAlgorithm
}

// NewHasher creates a new hasher with the specified algorithm
func NewHasher(algorithm HashAlgorithm) *Hasher {
	return &Hasher{algorithm: algorithm}
}

// DefaultHasher returns a BLAKE3 hasher
func DefaultHasher() *Hasher {
	return NewHasher(BLAKE3)
}

// Algorithm returns the configured algorithm
func (h *Hasher) Algorithm() HashAlgorithm {
	return h.algorithm
}

func (h *Hasher) newHash() hash.Hash {
	switch h.algorithm {
	case SHA256:
		return sha256.New()
	default:
		return blake3.New()
	}
}

// Hash computes a hash of the input data
func (h *Hasher) Hash(data []byte) string {
	hh := h.newHash()
	hh.Write(data)
	return hex.EncodeToString(hh.Sum(nil))
}

// HashString computes a hash of a string
func (h *Hasher) HashString(s string) string {
	return h.Hash([]byte(s))
}

// HashFile streams a file through the hasher
func (h *Hasher) HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	hh := h.newHash()
	if _, err := io.Copy(hh, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(hh.Sum(nil)), nil
}

// TreeChecksum digests a directory tree.
// The digest covers every regular file's relative path and content, in sorted
// path order, so it is stable across walks.
type TreeChecksum struct {
	hasher *Hasher
}

// NewTreeChecksum creates a tree checksummer. A nil hasher uses BLAKE3.
func NewTreeChecksum(hasher *Hasher) *TreeChecksum {
	if hasher == nil {
		hasher = DefaultHasher()
	}
	return &TreeChecksum{hasher: hasher}
}

// Sum returns the hex digest of dir
func (c *TreeChecksum) Sum(dir string) (string, error) {
	files, err := regularFiles(dir)
	if err != nil {
		return "", err
	}

	hh := c.hasher.newHash()
	for _, rel := range files {
		io.WriteString(hh, filepath.ToSlash(rel))
		hh.Write([]byte{0})

		f, err := os.Open(filepath.Join(dir, rel))
		if err != nil {
			return "", err
		}
		_, err = io.Copy(hh, f)
		f.Close()
		if err != nil {
			return "", fmt.Errorf("failed to hash %s: %w", rel, err)
		}
		hh.Write([]byte{0})
	}
	return hex.EncodeToString(hh.Sum(nil)), nil
}

func regularFiles(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	var (
		mu    sync.Mutex
		files []string
	)

	conf := fastwalk.Config{Follow: false}
	err = fastwalk.Walk(&conf, dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		mu.Lock()
		files = append(files, rel)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}
