package persistence

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// MagicNumber identifies snapshot files (ASCII: "MEOW").
	MagicNumber uint32 = 0x574F454D
	// Version is the current snapshot format version.
	Version uint16 = 1

	headerSize = 48
)

var (
	// ErrCorruptSnapshot is wrapped by every decode failure.
	ErrCorruptSnapshot = errors.New("corrupt snapshot")

	ErrInvalidMagic     = errors.New("invalid magic number")
	ErrInvalidVersion   = errors.New("unsupported version")
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrTruncated        = errors.New("truncated payload")
	ErrImplausibleSize  = errors.New("implausible payload size")
)

// Compression selects the payload codec.
type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionLZ4  Compression = 1
	CompressionZSTD Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompression parses a codec name as used in configuration files.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZSTD, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", s)
	}
}

// FileHeader is the 48-byte header at the start of every snapshot.
type FileHeader struct {
	Magic       uint32
	Version     uint16
	Compression uint8 // codec actually used for the stored payload
	Metric      uint8
	Dimension   uint32
	Reserved    uint32
	Count       uint64 // number of vectors
	RawSize     uint64 // uncompressed payload size
	StoredSize  uint64 // payload size as written
	Checksum    uint32 // CRC32C of the stored payload
	Padding     uint32
}

// CorruptError describes why a snapshot failed to decode.
type CorruptError struct {
	Reason error
	Detail string
}

func (e *CorruptError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%v: %v", ErrCorruptSnapshot, e.Reason)
	}
	return fmt.Sprintf("%v: %v: %s", ErrCorruptSnapshot, e.Reason, e.Detail)
}

func (e *CorruptError) Is(target error) bool { return target == ErrCorruptSnapshot }

func (e *CorruptError) Unwrap() error { return e.Reason }

func corrupt(reason error, format string, args ...any) error {
	return &CorruptError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}
