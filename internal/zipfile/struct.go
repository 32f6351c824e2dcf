package zipfile

// Zip format constants. Offsets and lengths follow APPNOTE.TXT; all
// multi-byte fields are little-endian.
const (
	directoryEndSignature    = 0x06054b50
	directoryHeaderSignature = 0x02014b50
	localHeaderSignature     = 0x04034b50

	directoryEndLen    = 22 // without comment
	directoryHeaderLen = 46 // without name/extra/comment
	localHeaderLen     = 30 // without name/extra

	// The EOCD comment length field is 16 bits, so the record starts at
	// most this many bytes before the end of the file.
	maxCommentLen = 0xFFFF

	// Marker values in the EOCD that indicate a zip64 archive.
	zip64Marker16 = 0xFFFF
	zip64Marker32 = 0xFFFFFFFF

	// Extra-field tag carrying zip64 sizes in central directory records.
	zip64ExtraTag = 0x0001
)

// Method identifies the compression algorithm of an entry, as stored in
// its central directory record.
type Method uint16

// Compression methods from the zip specification. The set is closed:
// entries with any other tag fail at open time.
const (
	MethodStore   Method = 0
	MethodDeflate Method = 8
	MethodBzip2   Method = 12
	MethodZstd    Method = 93
	MethodXZ      Method = 95
)

func (m Method) String() string {
	switch m {
	case MethodStore:
		return "store"
	case MethodDeflate:
		return "deflate"
	case MethodBzip2:
		return "bzip2"
	case MethodZstd:
		return "zstd"
	case MethodXZ:
		return "xz"
	default:
		return "unknown"
	}
}
