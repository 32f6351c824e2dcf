package zipfile

import "errors"

// Sentinel errors for archive loading and entry access.
var (
	// ErrArchiveNotFound is returned when no end-of-central-directory
	// signature exists in the trailing window of the file.
	ErrArchiveNotFound = errors.New("zipfile: no archive found")

	// ErrArchiveCorrupt is returned when the archive structure is
	// inconsistent, for example when the claimed central directory layout
	// does not fit in the file.
	ErrArchiveCorrupt = errors.New("zipfile: archive corrupt")

	// ErrArchiveUnsupported is returned for archives that need features
	// outside the supported subset, such as zip64.
	ErrArchiveUnsupported = errors.New("zipfile: unsupported archive feature")

	// ErrMethod is returned when an entry uses a compression method with
	// no registered decompressor.
	ErrMethod = errors.New("zipfile: unsupported compression method")

	// ErrChecksum is returned when decompressed entry data does not match
	// the CRC-32 recorded in the central directory.
	ErrChecksum = errors.New("zipfile: checksum mismatch")

	// ErrSizeMismatch is returned when an entry decompresses to a size
	// other than the one recorded in the central directory.
	ErrSizeMismatch = errors.New("zipfile: size mismatch")
)
