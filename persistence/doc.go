// Package persistence implements the binary snapshot format of the
// similarity index.
//
// A snapshot is a fixed 48-byte little-endian header followed by a payload:
//
//	magic "MEOW" | version | compression | metric | dimension | count |
//	raw size | stored size | CRC32C(stored payload)
//
// The raw payload is count int64 index keys followed by count*dimension
// float32 components. The payload may be compressed with zstd or LZ4; if
// compression does not shrink it, it is stored raw and the header says so.
//
// Decode reads the whole artifact into memory and validates every field
// before allocating the index. Any mismatch is reported as an error wrapping
// ErrCorruptSnapshot.
package persistence
