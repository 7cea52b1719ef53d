package hash

import (
	"hash"
	"hash/crc32"
	"io"
)

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// CRC32C computes the CRC32-Castagnoli checksum of data.
func CRC32C(data []byte) uint32 {
	return crc32.Checksum(data, crc32cTable)
}

// NewCRC32C returns a new CRC32-Castagnoli hash.Hash32.
func NewCRC32C() hash.Hash32 {
	return crc32.New(crc32cTable)
}

// ChecksumWriter forwards writes to W and keeps a running CRC32C of
// everything written.
type ChecksumWriter struct {
	W io.Writer
	h hash.Hash32
}

// NewChecksumWriter wraps w.
func NewChecksumWriter(w io.Writer) *ChecksumWriter {
	return &ChecksumWriter{W: w, h: NewCRC32C()}
}

func (c *ChecksumWriter) Write(p []byte) (int, error) {
	n, err := c.W.Write(p)
	c.h.Write(p[:n])
	return n, err
}

// Sum32 returns the checksum of the bytes written so far.
func (c *ChecksumWriter) Sum32() uint32 { return c.h.Sum32() }
