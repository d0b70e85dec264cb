package installer

import (
	"archive/tar"
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/GriffinCanCode/AgentOS/pkgmgr/internal/shared/fsutil"
)

// Format is the layout of an install source
type Format int

const (
	FormatUnknown Format = iota
	FormatDir
	FormatZip
	FormatTar
	FormatTarGzip
	FormatTarZstd
)

func (f Format) String() string {
	switch f {
	case FormatDir:
		return "dir"
	case FormatZip:
		return "zip"
	case FormatTar:
		return "tar"
	case FormatTarGzip:
		return "tar.gz"
	case FormatTarZstd:
		return "tar.zst"
	default:
		return "unknown"
	}
}

// DetectFormat classifies src by extension, falling back to content sniffing
func DetectFormat(src string) (Format, error) {
	info, err := os.Stat(src)
	if err != nil {
		return FormatUnknown, err
	}
	if info.IsDir() {
		return FormatDir, nil
	}

	lower := strings.ToLower(src)
	switch {
	case strings.HasSuffix(lower, ".rpk"), strings.HasSuffix(lower, ".zip"):
		return FormatZip, nil
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return FormatTarGzip, nil
	case strings.HasSuffix(lower, ".tar.zst"), strings.HasSuffix(lower, ".tzst"):
		return FormatTarZstd, nil
	case strings.HasSuffix(lower, ".tar"):
		return FormatTar, nil
	}

	mtype, err := mimetype.DetectFile(src)
	if err != nil {
		return FormatUnknown, err
	}
	switch {
	case mtype.Is("application/zip"):
		return FormatZip, nil
	case mtype.Is("application/gzip"):
		return FormatTarGzip, nil
	case mtype.Is("application/zstd"):
		return FormatTarZstd, nil
	case mtype.Is("application/x-tar"):
		return FormatTar, nil
	}
	return FormatUnknown, fmt.Errorf("unsupported package format %s", mtype.String())
}

// Extractor unpacks an install source into a staging directory
type Extractor interface {
	Extract(ctx context.Context, src, dst string) error
}

// ArchiveExtractor unpacks directories, zip archives and optionally
// compressed tarballs. Entries that would land outside dst are rejected.
type ArchiveExtractor struct{}

// NewArchiveExtractor creates the default extractor
func NewArchiveExtractor() *ArchiveExtractor {
	return &ArchiveExtractor{}
}

// Extract unpacks src into dst, which must not exist yet
func (e *ArchiveExtractor) Extract(ctx context.Context, src, dst string) error {
	format, err := DetectFormat(src)
	if err != nil {
		return err
	}

	switch format {
	case FormatDir:
		return fsutil.CopyTree(src, dst)
	case FormatZip:
		return extractZip(ctx, src, dst)
	default:
		return extractTar(ctx, src, dst, format)
	}
}

func extractZip(ctx context.Context, src, dst string) error {
	reader, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	defer reader.Close()

	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}

	for _, file := range reader.File {
		if err := ctx.Err(); err != nil {
			return err
		}

		destPath, err := entryPath(dst, file.Name)
		if err != nil {
			return err
		}

		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(destPath, 0o755); err != nil {
				return err
			}
			continue
		}
		if file.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("zip entry %s: symlinks are not supported", file.Name)
		}

		if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
			return err
		}
		rc, err := file.Open()
		if err != nil {
			return fmt.Errorf("zip entry %s: %w", file.Name, err)
		}
		err = writeFile(destPath, rc, file.Mode().Perm())
		rc.Close()
		if err != nil {
			return fmt.Errorf("zip entry %s: %w", file.Name, err)
		}
	}
	return nil
}

func extractTar(ctx context.Context, src, dst string, format Format) error {
	file, err := os.Open(src)
	if err != nil {
		return err
	}
	defer file.Close()

	var stream io.Reader = file
	switch format {
	case FormatTarGzip:
		gzReader, err := gzip.NewReader(file)
		if err != nil {
			return fmt.Errorf("gzip: %w", err)
		}
		defer gzReader.Close()
		stream = gzReader
	case FormatTarZstd:
		zstdReader, err := zstd.NewReader(file)
		if err != nil {
			return fmt.Errorf("zstd: %w", err)
		}
		defer zstdReader.Close()
		stream = zstdReader
	}

	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}

	tarReader := tar.NewReader(stream)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		header, err := tarReader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar: %w", err)
		}

		destPath, err := entryPath(dst, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(destPath, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
				return err
			}
			if err := writeFile(destPath, tarReader, os.FileMode(header.Mode).Perm()); err != nil {
				return fmt.Errorf("tar entry %s: %w", header.Name, err)
			}
		case tar.TypeSymlink:
			if filepath.IsAbs(header.Linkname) || !within(dst, filepath.Join(filepath.Dir(destPath), header.Linkname)) {
				return fmt.Errorf("tar entry %s: link escapes package", header.Name)
			}
			if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
				return err
			}
			if err := os.Symlink(header.Linkname, destPath); err != nil {
				return err
			}
		}
	}
}

// entryPath resolves an archive entry under root. Besides the lexical check
// it refuses entries reaching through a symlink an earlier entry created,
// since the link target is only known once it exists on disk.
func entryPath(root, name string) (string, error) {
	destPath, err := safeJoin(root, name)
	if err != nil {
		return "", err
	}

	rel, err := filepath.Rel(filepath.Clean(root), destPath)
	if err != nil || rel == "." {
		return destPath, err
	}

	current := filepath.Clean(root)
	for _, part := range strings.Split(rel, string(os.PathSeparator)) {
		current = filepath.Join(current, part)
		info, err := os.Lstat(current)
		if errors.Is(err, fs.ErrNotExist) {
			return destPath, nil
		}
		if err != nil {
			return "", err
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return "", fmt.Errorf("archive entry %q passes through symlink %s", name, current)
		}
	}
	return destPath, nil
}

// safeJoin joins name under root and refuses paths escaping it
func safeJoin(root, name string) (string, error) {
	destPath := filepath.Join(root, name)
	if !within(root, destPath) {
		return "", fmt.Errorf("archive entry %q escapes the destination", name)
	}
	return destPath, nil
}

func within(root, path string) bool {
	cleanRoot := filepath.Clean(root)
	path = filepath.Clean(path)
	return path == cleanRoot || strings.HasPrefix(path, cleanRoot+string(os.PathSeparator))
}

func writeFile(path string, r io.Reader, perm os.FileMode) error {
	if perm == 0 {
		perm = 0o644
	}
	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm|0o200)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
