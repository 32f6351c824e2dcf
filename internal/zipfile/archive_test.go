package zipfile

import (
	"archive/zip"
	"bytes"
	"errors"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

type testFile struct {
	name   string
	data   []byte
	method uint16
}

// writeZip builds a zip with the given files. Methods beyond store and
// deflate are registered on the writer so test archives can carry zstd and
// xz entries.
func writeZip(t *testing.T, w io.Writer, comment string, files []testFile) {
	t.Helper()

	zw := zip.NewWriter(w)
	zw.RegisterCompressor(uint16(MethodZstd), func(out io.Writer) (io.WriteCloser, error) {
		return zstd.NewWriter(out)
	})
	zw.RegisterCompressor(uint16(MethodXZ), func(out io.Writer) (io.WriteCloser, error) {
		return xz.NewWriter(out)
	})
	if comment != "" {
		require.NoError(t, zw.SetComment(comment))
	}
	for _, f := range files {
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: f.name, Method: f.method})
		require.NoError(t, err)
		_, err = fw.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

// writeArchiveFile writes prefix followed by a zip of the given files to a
// temp file, mimicking an archive appended to an executable.
func writeArchiveFile(t *testing.T, prefix []byte, files []testFile) string {
	t.Helper()

	var buf bytes.Buffer
	buf.Write(prefix)
	writeZip(t, &buf, "", files)

	path := filepath.Join(t.TempDir(), "zipapp")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func readEntry(t *testing.T, a *Archive, path string) []byte {
	t.Helper()

	e, ok := a.Entry(path)
	require.True(t, ok, "entry %q not indexed", path)
	rc, err := a.Open(e)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return data
}

func TestOpenArchiveMethods(t *testing.T) {
	content := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog\n"), 64)
	files := []testFile{
		{"stored.bin", content, zip.Store},
		{"deflated.txt", content, zip.Deflate},
		{"compressed.zst", content, uint16(MethodZstd)},
		{"compressed.xz", content, uint16(MethodXZ)},
	}

	a, err := OpenArchive(writeArchiveFile(t, nil, files))
	require.NoError(t, err)
	require.Equal(t, len(files), a.Len())

	for _, f := range files {
		t.Run(f.name, func(t *testing.T) {
			e, ok := a.Entry(f.name)
			require.True(t, ok)
			assert.Equal(t, Method(f.method), e.Method)
			assert.Equal(t, uint64(len(content)), e.UncompressedSize)
			assert.False(t, e.IsDir)
			assert.Equal(t, content, readEntry(t, a, f.name))
		})
	}
}

func TestOpenArchiveNormalization(t *testing.T) {
	files := []testFile{
		{"/absolute.txt", []byte("absolute"), zip.Store},
		{"bad\x00name.txt", []byte("nul"), zip.Store},
		{"../escape.txt", []byte("dotdot"), zip.Store},
		{"inner/../escape.txt", []byte("dotdot"), zip.Store},
		{"double//slash.txt", []byte("empty segment"), zip.Store},
		{"docs/", nil, zip.Store},
		{"docs/page.gmi", []byte("# page"), zip.Store},
	}

	a, err := OpenArchive(writeArchiveFile(t, nil, files))
	require.NoError(t, err)

	// Leading slash is stripped, hostile names are excluded outright.
	assert.Equal(t, []byte("absolute"), readEntry(t, a, "absolute.txt"))
	for _, path := range []string{
		"bad\x00name.txt", "../escape.txt", "inner/../escape.txt", "double//slash.txt",
	} {
		_, ok := a.Entry(path)
		assert.False(t, ok, "hostile path %q must not be indexed", path)
	}

	dir, ok := a.Entry("docs/")
	require.True(t, ok)
	assert.True(t, dir.IsDir)
	_, err = a.Open(dir)
	assert.Error(t, err)

	assert.Equal(t, 3, a.Len())
}

func TestOpenArchiveDuplicateLastWins(t *testing.T) {
	files := []testFile{
		{"page.gmi", []byte("first"), zip.Store},
		{"page.gmi", []byte("second"), zip.Store},
	}

	a, err := OpenArchive(writeArchiveFile(t, nil, files))
	require.NoError(t, err)
	assert.Equal(t, 1, a.Len())
	assert.Equal(t, []byte("second"), readEntry(t, a, "page.gmi"))
}

func TestOpenArchiveChecksum(t *testing.T) {
	content := []byte("content that will be corrupted on disk")
	path := writeArchiveFile(t, nil, []testFile{{"victim.bin", content, zip.Store}})

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	i := bytes.Index(raw, content)
	require.GreaterOrEqual(t, i, 0)
	raw[i] ^= 0xFF
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	a, err := OpenArchive(path)
	require.NoError(t, err)

	e, ok := a.Entry("victim.bin")
	require.True(t, ok)
	rc, err := a.Open(e)
	require.NoError(t, err)
	defer rc.Close()
	_, err = io.ReadAll(rc)
	assert.ErrorIs(t, err, ErrChecksum)
}

func TestOpenArchiveUnknownMethod(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	data := []byte("opaque")
	fw, err := zw.CreateRaw(&zip.FileHeader{
		Name:               "strange.bin",
		Method:             14, // lzma, not in the supported set
		CRC32:              0,
		CompressedSize64:   uint64(len(data)),
		UncompressedSize64: uint64(len(data)),
	})
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	path := filepath.Join(t.TempDir(), "zipapp")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	a, err := OpenArchive(path)
	require.NoError(t, err)
	e, ok := a.Entry("strange.bin")
	require.True(t, ok)
	_, err = a.Open(e)
	assert.ErrorIs(t, err, ErrMethod)
}

func TestOpenArchiveCustomDecompressor(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	data := []byte("raw bytes, custom method")
	fw, err := zw.CreateRaw(&zip.FileHeader{
		Name:               "custom.bin",
		Method:             14,
		CRC32:              crc32Of(data),
		CompressedSize64:   uint64(len(data)),
		UncompressedSize64: uint64(len(data)),
	})
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	path := filepath.Join(t.TempDir(), "zipapp")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	a, err := OpenArchive(path, WithDecompressor(14, func(r io.Reader) (io.ReadCloser, error) {
		return io.NopCloser(r), nil
	}))
	require.NoError(t, err)
	assert.Equal(t, data, readEntry(t, a, "custom.bin"))
}

func crc32Of(b []byte) uint32 {
	return crc32.ChecksumIEEE(b)
}

func TestArchiveHasPrefix(t *testing.T) {
	files := []testFile{
		{"docs/page.gmi", []byte("x"), zip.Store},
		{"top.gmi", []byte("y"), zip.Store},
	}
	a, err := OpenArchive(writeArchiveFile(t, nil, files))
	require.NoError(t, err)

	assert.True(t, a.HasPrefix("docs/"))
	assert.True(t, a.HasPrefix("top"))
	assert.False(t, a.HasPrefix("top.gmi/"))
	assert.False(t, a.HasPrefix("nothing/"))
}

func TestOpenArchiveMissingFile(t *testing.T) {
	_, err := OpenArchive(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
