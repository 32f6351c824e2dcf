// Package zipfile reads zip archives embedded at an arbitrary offset inside
// a larger file, such as an archive concatenated onto an executable.
//
// The archive is indexed once at startup and is immutable afterwards; entry
// reads each open their own handle onto the backing file so that concurrent
// readers never share a cursor.
package zipfile

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"os"
	"strings"
)

// Entry is one file or directory marker stored in the archive.
//
// Path is normalized: forward slashes, no leading slash, directory markers
// keep their trailing slash.
type Entry struct {
	Path             string
	UncompressedSize uint64
	CompressedSize   uint64
	CRC32            uint32
	Method           Method
	IsDir            bool

	// headerOffset is the local header offset as stored in the central
	// directory, before base-offset correction.
	headerOffset int64
}

// Archive provides read access to the entries of an embedded zip archive.
//
// An Archive is built once and never mutated; it is safe for concurrent use
// without locking.
type Archive struct {
	path       string
	baseOffset int64
	entries    map[string]Entry
	codecs     map[Method]Decompressor
	zstdPool   *decompressPool
}

// OpenArchive indexes the zip archive embedded in the file at path.
//
// The file is opened only long enough to parse the central directory;
// subsequent entry reads open fresh handles.
func OpenArchive(path string, opts ...Option) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat archive file: %w", err)
	}

	dir, err := FindDirectory(f, info.Size())
	if err != nil {
		return nil, err
	}

	a := &Archive{
		path:       path,
		baseOffset: dir.BaseOffset,
		codecs:     make(map[Method]Decompressor),
	}
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	a.zstdPool = newDecompressPool(cfg.maxDecoderMemory)
	registerBuiltins(a.codecs, a.zstdPool)
	for m, d := range cfg.codecs {
		a.codecs[m] = d
	}

	if a.entries, err = readDirectory(f, dir); err != nil {
		return nil, err
	}
	return a, nil
}

// Entry returns the entry stored under the given normalized path.
func (a *Archive) Entry(path string) (Entry, bool) {
	e, ok := a.entries[path]
	return e, ok
}

// HasPrefix reports whether any entry path begins with prefix.
func (a *Archive) HasPrefix(prefix string) bool {
	for p := range a.entries {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

// Len returns the number of indexed entries.
func (a *Archive) Len() int {
	return len(a.entries)
}

// Paths returns the normalized paths of all entries in unspecified order.
func (a *Archive) Paths() []string {
	paths := make([]string, 0, len(a.entries))
	for p := range a.entries {
		paths = append(paths, p)
	}
	return paths
}

// BaseOffset returns the correction applied to archive-internal offsets.
func (a *Archive) BaseOffset() int64 {
	return a.baseOffset
}

// readDirectory walks the central directory records and builds the entry
// table. On duplicate normalized paths the last record wins, matching the
// tie-break of standard archive readers.
func readDirectory(f io.ReaderAt, dir *Directory) (map[string]Entry, error) {
	entries := make(map[string]Entry, dir.EntryCount)
	br := bufio.NewReader(io.NewSectionReader(f, dir.Offset, dir.Size))

	rec := make([]byte, directoryHeaderLen)
	for i := 0; i < dir.EntryCount; i++ {
		if _, err := io.ReadFull(br, rec); err != nil {
			return nil, fmt.Errorf("%w: truncated central directory record %d", ErrArchiveCorrupt, i)
		}
		if binary.LittleEndian.Uint32(rec[0:4]) != directoryHeaderSignature {
			return nil, fmt.Errorf("%w: bad central directory signature at record %d", ErrArchiveCorrupt, i)
		}

		method := Method(binary.LittleEndian.Uint16(rec[10:12]))
		crc := binary.LittleEndian.Uint32(rec[16:20])
		compSize := binary.LittleEndian.Uint32(rec[20:24])
		uncompSize := binary.LittleEndian.Uint32(rec[24:28])
		nameLen := int(binary.LittleEndian.Uint16(rec[28:30]))
		extraLen := int(binary.LittleEndian.Uint16(rec[30:32]))
		commentLen := int(binary.LittleEndian.Uint16(rec[32:34]))
		headerOffset := binary.LittleEndian.Uint32(rec[42:46])

		if compSize == zip64Marker32 || uncompSize == zip64Marker32 || headerOffset == zip64Marker32 {
			return nil, fmt.Errorf("%w: zip64 entry", ErrArchiveUnsupported)
		}

		name := make([]byte, nameLen)
		if _, err := io.ReadFull(br, name); err != nil {
			return nil, fmt.Errorf("%w: truncated entry name at record %d", ErrArchiveCorrupt, i)
		}
		if _, err := br.Discard(extraLen + commentLen); err != nil {
			return nil, fmt.Errorf("%w: truncated record %d", ErrArchiveCorrupt, i)
		}

		// Names are treated as UTF-8 whether or not the encoding flag is
		// set; no other encoding is detected.
		path, ok := normalizeName(string(name))
		if !ok {
			continue
		}

		entries[path] = Entry{
			Path:             path,
			UncompressedSize: uint64(uncompSize),
			CompressedSize:   uint64(compSize),
			CRC32:            crc,
			Method:           method,
			IsDir:            strings.HasSuffix(path, "/"),
			headerOffset:     int64(headerOffset),
		}
	}

	return entries, nil
}

// normalizeName converts a stored entry name into an index key, or reports
// that the entry must be excluded from the index.
func normalizeName(name string) (string, bool) {
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		return "", false
	}
	for i := 0; i < len(name); i++ {
		if name[i] < 0x20 || name[i] == 0x7F {
			return "", false
		}
	}
	// Reject empty interior segments and any dot-dot segment. A single
	// trailing slash is the directory marker and stays.
	segs := strings.Split(strings.TrimSuffix(name, "/"), "/")
	for _, seg := range segs {
		if seg == "" || seg == ".." {
			return "", false
		}
	}
	return name, true
}

// Open returns a reader for the decompressed content of an entry.
//
// Each call opens its own handle onto the backing file; callers must close
// the returned reader. Content is verified against the entry's CRC-32 and
// size as it is read.
func (a *Archive) Open(e Entry) (io.ReadCloser, error) {
	if e.IsDir {
		return nil, fmt.Errorf("open %s: is a directory marker", e.Path)
	}

	decompress, ok := a.codecs[e.Method]
	if !ok {
		return nil, fmt.Errorf("%w: %s (%d)", ErrMethod, e.Method, uint16(e.Method))
	}

	f, err := os.Open(a.path)
	if err != nil {
		return nil, fmt.Errorf("open archive file: %w", err)
	}

	dataOffset, err := a.dataOffset(f, e)
	if err != nil {
		f.Close()
		return nil, err
	}

	rc, err := decompress(io.NewSectionReader(f, dataOffset, int64(e.CompressedSize)))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("start decompressor: %w", err)
	}

	return &entryReader{
		rc:   rc,
		file: f,
		hash: crc32.NewIEEE(),
		want: e.CRC32,
		size: e.UncompressedSize,
	}, nil
}

// dataOffset re-parses the entry's local file header to find where its data
// starts; the name and extra field lengths there can differ from the
// central directory's.
func (a *Archive) dataOffset(f io.ReaderAt, e Entry) (int64, error) {
	headerOffset := a.baseOffset + e.headerOffset

	buf := make([]byte, localHeaderLen)
	if _, err := io.ReadFull(io.NewSectionReader(f, headerOffset, localHeaderLen), buf); err != nil {
		return 0, fmt.Errorf("read local header of %s: %w", e.Path, err)
	}
	if binary.LittleEndian.Uint32(buf[0:4]) != localHeaderSignature {
		return 0, fmt.Errorf("%w: bad local header signature for %s", ErrArchiveCorrupt, e.Path)
	}

	nameLen := int64(binary.LittleEndian.Uint16(buf[26:28]))
	extraLen := int64(binary.LittleEndian.Uint16(buf[28:30]))
	return headerOffset + localHeaderLen + nameLen + extraLen, nil
}

// entryReader streams decompressed entry data while checking CRC-32 and
// size, and owns the file handle backing the read.
type entryReader struct {
	rc   io.ReadCloser
	file *os.File
	hash hash.Hash32
	want uint32
	read uint64
	size uint64
}

func (er *entryReader) Read(p []byte) (int, error) {
	n, err := er.rc.Read(p)
	if n > 0 {
		er.read += uint64(n)
		if er.read > er.size {
			return n, fmt.Errorf("%w: entry larger than declared", ErrSizeMismatch)
		}
		er.hash.Write(p[:n])
	}
	if err == io.EOF {
		if verr := er.verify(); verr != nil {
			return n, verr
		}
	}
	return n, err
}

func (er *entryReader) verify() error {
	if er.read != er.size {
		return fmt.Errorf("%w: read %d, want %d", ErrSizeMismatch, er.read, er.size)
	}
	if got := er.hash.Sum32(); got != er.want {
		return fmt.Errorf("%w: got %08x, want %08x", ErrChecksum, got, er.want)
	}
	return nil
}

func (er *entryReader) Close() error {
	err := er.rc.Close()
	if cerr := er.file.Close(); err == nil {
		err = cerr
	}
	return err
}
