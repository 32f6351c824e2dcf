package zipfile

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Directory describes where the central directory of an embedded archive
// lives inside a larger file.
//
// All offsets stored inside the archive assume the archive starts at byte
// zero of the file. When the archive is appended to another file (such as
// the server's own executable) every stored offset must be corrected by
// BaseOffset before seeking.
type Directory struct {
	// BaseOffset is added to every archive-internal offset to resolve it
	// within the combined file.
	BaseOffset int64

	// Offset is the corrected file offset of the first central directory
	// record.
	Offset int64

	// Size is the byte length of the central directory.
	Size int64

	// EntryCount is the number of records the end-of-central-directory
	// record claims the directory holds.
	EntryCount int
}

// FindDirectory locates the central directory of a zip archive embedded at
// an arbitrary offset inside a file of the given size.
//
// It scans the trailing window of the file backwards for the
// end-of-central-directory signature. The window is bounded by the format:
// the record is 22 bytes plus a comment of at most 64 KiB.
func FindDirectory(r io.ReaderAt, size int64) (*Directory, error) {
	if size < directoryEndLen {
		return nil, fmt.Errorf("%w: file smaller than an end-of-central-directory record", ErrArchiveNotFound)
	}

	windowSize := int64(maxCommentLen + directoryEndLen)
	if windowSize > size {
		windowSize = size
	}
	windowStart := size - windowSize

	buf := make([]byte, windowSize)
	if _, err := io.ReadFull(io.NewSectionReader(r, windowStart, windowSize), buf); err != nil {
		return nil, fmt.Errorf("read trailing window: %w", err)
	}

	for p := len(buf) - directoryEndLen; p >= 0; p-- {
		if binary.LittleEndian.Uint32(buf[p:p+4]) != directoryEndSignature {
			continue
		}
		rec := buf[p : p+directoryEndLen]
		commentLen := int(binary.LittleEndian.Uint16(rec[20:22]))
		if p+directoryEndLen+commentLen > len(buf) {
			// A stray signature inside a comment; keep scanning.
			continue
		}
		return parseDirectoryEnd(rec, windowStart+int64(p))
	}

	return nil, fmt.Errorf("%w: no end-of-central-directory signature in trailing window", ErrArchiveNotFound)
}

// parseDirectoryEnd decodes the fixed-size EOCD record found at eocdPos and
// derives the base offset from where the record actually is versus where
// the archive claims its central directory starts.
func parseDirectoryEnd(rec []byte, eocdPos int64) (*Directory, error) {
	diskNum := binary.LittleEndian.Uint16(rec[4:6])
	dirDisk := binary.LittleEndian.Uint16(rec[6:8])
	entriesOnDisk := binary.LittleEndian.Uint16(rec[8:10])
	entriesTotal := binary.LittleEndian.Uint16(rec[10:12])
	dirSize := binary.LittleEndian.Uint32(rec[12:16])
	dirOffset := binary.LittleEndian.Uint32(rec[16:20])

	if entriesTotal == zip64Marker16 || dirSize == zip64Marker32 || dirOffset == zip64Marker32 {
		return nil, fmt.Errorf("%w: zip64", ErrArchiveUnsupported)
	}
	if diskNum != 0 || dirDisk != 0 || entriesOnDisk != entriesTotal {
		return nil, fmt.Errorf("%w: multi-disk archive", ErrArchiveUnsupported)
	}

	// The central directory ends where the EOCD record begins, so the
	// archive's byte zero is eocdPos - dirSize - dirOffset.
	baseOffset := eocdPos - int64(dirSize) - int64(dirOffset)
	if baseOffset < 0 {
		return nil, fmt.Errorf("%w: central directory extends before start of file", ErrArchiveCorrupt)
	}

	return &Directory{
		BaseOffset: baseOffset,
		Offset:     baseOffset + int64(dirOffset),
		Size:       int64(dirSize),
		EntryCount: int(entriesTotal),
	}, nil
}
