package installer

import (
	"archive/tar"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tarEntry struct {
	name     string
	body     string
	linkname string
}

func writeTar(t *testing.T, w io.Writer, entries []tarEntry) {
	t.Helper()
	tw := tar.NewWriter(w)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Mode: 0o644, Size: int64(len(e.body)), Typeflag: tar.TypeReg}
		if e.linkname != "" {
			hdr = &tar.Header{Name: e.name, Linkname: e.linkname, Mode: 0o777, Typeflag: tar.TypeSymlink}
		}
		require.NoError(t, tw.WriteHeader(hdr))
		if e.linkname == "" {
			_, err := tw.Write([]byte(e.body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
}

func TestExtractTarGzip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "pkg.tar.gz")
	out, err := os.Create(src)
	require.NoError(t, err)
	gz := gzip.NewWriter(out)
	writeTar(t, gz, []tarEntry{{name: "manifest.json", body: "{}"}, {name: "lib/a.so", body: "elf"}})
	require.NoError(t, gz.Close())
	require.NoError(t, out.Close())

	dst := filepath.Join(dir, "out")
	require.NoError(t, NewArchiveExtractor().Extract(context.Background(), src, dst))

	data, err := os.ReadFile(filepath.Join(dst, "lib", "a.so"))
	require.NoError(t, err)
	assert.Equal(t, "elf", string(data))
}

func TestExtractTarZstd(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "pkg.tzst")
	out, err := os.Create(src)
	require.NoError(t, err)
	enc, err := zstd.NewWriter(out)
	require.NoError(t, err)
	writeTar(t, enc, []tarEntry{{name: "manifest.json", body: `{"package":"com.z"}`}})
	require.NoError(t, enc.Close())
	require.NoError(t, out.Close())

	dst := filepath.Join(dir, "out")
	require.NoError(t, NewArchiveExtractor().Extract(context.Background(), src, dst))
	assert.FileExists(t, filepath.Join(dst, "manifest.json"))
}

func TestExtractRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "evil.zip")
	writeZip(t, src, map[string]string{"../escaped.txt": "boom"})

	err := NewArchiveExtractor().Extract(context.Background(), src, filepath.Join(dir, "out"))
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "escaped.txt"))
}

func TestExtractRejectsEscapingSymlink(t *testing.T) {
	tests := []struct {
		name    string
		entries []tarEntry
	}{
		{"link outside", []tarEntry{{name: "etc", linkname: "../../etc"}}},
		{"chained links", []tarEntry{
			{name: "l1", linkname: "."},
			{name: "l1/l2", linkname: ".."},
			{name: "l1/l2/escaped.txt", body: "boom"},
		}},
		{"write through link", []tarEntry{
			{name: "lib", linkname: "."},
			{name: "lib/escaped.txt", body: "boom"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			src := filepath.Join(dir, "link.tar")
			out, err := os.Create(src)
			require.NoError(t, err)
			writeTar(t, out, tt.entries)
			require.NoError(t, out.Close())

			staging := filepath.Join(dir, "staging")
			err = NewArchiveExtractor().Extract(context.Background(), src, filepath.Join(staging, "evil"))
			assert.Error(t, err)
			assert.NoFileExists(t, filepath.Join(staging, "escaped.txt"))
			assert.NoFileExists(t, filepath.Join(staging, "evil", "escaped.txt"))
		})
	}
}

func TestExtractKeepsInternalSymlink(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "link.tar")
	out, err := os.Create(src)
	require.NoError(t, err)
	writeTar(t, out, []tarEntry{
		{name: "lib/real.so", body: "elf"},
		{name: "lib/alias.so", linkname: "real.so"},
	})
	require.NoError(t, out.Close())

	dst := filepath.Join(dir, "out")
	require.NoError(t, NewArchiveExtractor().Extract(context.Background(), src, dst))
	target, err := os.Readlink(filepath.Join(dst, "lib", "alias.so"))
	require.NoError(t, err)
	assert.Equal(t, "real.so", target)
}

func TestDetectFormat(t *testing.T) {
	dir := t.TempDir()

	sniffed := filepath.Join(dir, "package.bin")
	writeZip(t, sniffed, map[string]string{"manifest.json": "{}"})
	format, err := DetectFormat(sniffed)
	require.NoError(t, err)
	assert.Equal(t, FormatZip, format)

	format, err = DetectFormat(dir)
	require.NoError(t, err)
	assert.Equal(t, FormatDir, format)

	text := filepath.Join(dir, "notes.bin")
	require.NoError(t, os.WriteFile(text, []byte("hello"), 0o644))
	_, err = DetectFormat(text)
	assert.Error(t, err)

	for name, want := range map[string]Format{
		"a.rpk": FormatZip, "a.tgz": FormatTarGzip, "a.tar.zst": FormatTarZstd, "a.tar": FormatTar,
	} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, nil, 0o644))
		format, err := DetectFormat(path)
		require.NoError(t, err)
		assert.Equal(t, want, format, name)
	}
}
