// Package hash provides the checksums used to protect index snapshots.
//
// All checksums use CRC32-Castagnoli (CRC32C), which Go accelerates in
// hardware on x86 (SSE4.2) and ARM (CRC extension). The S3 blob store uses
// the same polynomial for its upload checksums.
//
//	checksum := hash.CRC32C(data)
//
//	w := hash.NewChecksumWriter(dst)
//	_, _ = w.Write(chunk)
//	checksum := w.Sum32()
package hash
