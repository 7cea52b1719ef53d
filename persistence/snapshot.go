package persistence

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/hupe1980/findmymeow/distance"
	"github.com/hupe1980/findmymeow/internal/hash"
)

// Bounds on header fields so a corrupt header cannot trigger a huge
// allocation.
const (
	maxVectors   = 1 << 32
	maxDimension = 1 << 16
)

// Snapshot is the decoded form of a persisted index. Keys[i] tags the vector
// Vectors[i*Dimension : (i+1)*Dimension].
type Snapshot struct {
	Dimension int
	Metric    distance.Metric
	Keys      []int64
	Vectors   []float32
}

// Len returns the number of vectors in the snapshot.
func (s *Snapshot) Len() int { return len(s.Keys) }

// Vector returns the i-th vector. The slice aliases the snapshot.
func (s *Snapshot) Vector(i int) []float32 {
	return s.Vectors[i*s.Dimension : (i+1)*s.Dimension]
}

// Encode writes snap to w using compression c.
func Encode(w io.Writer, snap *Snapshot, c Compression) error {
	if snap.Dimension <= 0 {
		return fmt.Errorf("invalid dimension %d", snap.Dimension)
	}
	if len(snap.Vectors) != len(snap.Keys)*snap.Dimension {
		return fmt.Errorf("snapshot has %d keys but %d components", len(snap.Keys), len(snap.Vectors))
	}

	raw := make([]byte, len(snap.Keys)*8+len(snap.Vectors)*4)
	off := 0
	for _, k := range snap.Keys {
		binary.LittleEndian.PutUint64(raw[off:], uint64(k))
		off += 8
	}
	for _, v := range snap.Vectors {
		binary.LittleEndian.PutUint32(raw[off:], math.Float32bits(v))
		off += 4
	}

	stored, used, err := compress(raw, c)
	if err != nil {
		return err
	}

	header := FileHeader{
		Magic:       MagicNumber,
		Version:     Version,
		Compression: uint8(used),
		Metric:      uint8(snap.Metric),
		Dimension:   uint32(snap.Dimension),
		Count:       uint64(len(snap.Keys)),
		RawSize:     uint64(len(raw)),
		StoredSize:  uint64(len(stored)),
		Checksum:    hash.CRC32C(stored),
	}

	if err := binary.Write(w, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := w.Write(stored); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}

	return nil
}

// Decode reads a snapshot from r. If dimension is positive the snapshot must
// have exactly that dimension.
func Decode(r io.Reader, dimension int) (*Snapshot, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	return DecodeBytes(data, dimension)
}

// DecodeBytes decodes an in-memory snapshot.
func DecodeBytes(data []byte, dimension int) (*Snapshot, error) {
	if len(data) < headerSize {
		return nil, corrupt(ErrTruncated, "%d bytes, header needs %d", len(data), headerSize)
	}

	var h FileHeader
	if err := binary.Read(bytes.NewReader(data[:headerSize]), binary.LittleEndian, &h); err != nil {
		return nil, corrupt(ErrTruncated, "header: %v", err)
	}

	if h.Magic != MagicNumber {
		return nil, corrupt(ErrInvalidMagic, "got 0x%08x", h.Magic)
	}
	if h.Version != Version {
		return nil, corrupt(ErrInvalidVersion, "got %d", h.Version)
	}
	if h.Dimension == 0 {
		return nil, corrupt(ErrTruncated, "zero dimension")
	}
	if dimension > 0 && int(h.Dimension) != dimension {
		return nil, corrupt(errors.New("dimension mismatch"), "snapshot has %d, index expects %d", h.Dimension, dimension)
	}
	if h.Dimension > maxDimension {
		return nil, corrupt(ErrImplausibleSize, "dimension %d", h.Dimension)
	}
	if h.Count > maxVectors {
		return nil, corrupt(ErrTruncated, "implausible vector count %d", h.Count)
	}

	want := h.Count*8 + h.Count*uint64(h.Dimension)*4
	if h.RawSize != want {
		return nil, corrupt(ErrTruncated, "raw size %d, expected %d", h.RawSize, want)
	}

	payload := data[headerSize:]
	if uint64(len(payload)) != h.StoredSize {
		return nil, corrupt(ErrTruncated, "payload %d bytes, header says %d", len(payload), h.StoredSize)
	}
	if limit := maxRawSize(Compression(h.Compression), h.StoredSize); h.RawSize > limit {
		return nil, corrupt(ErrImplausibleSize, "raw size %d from %d stored bytes of %s", h.RawSize, h.StoredSize, Compression(h.Compression))
	}
	if sum := hash.CRC32C(payload); sum != h.Checksum {
		return nil, corrupt(ErrChecksumMismatch, "expected 0x%08x, got 0x%08x", h.Checksum, sum)
	}

	raw, err := decompress(payload, Compression(h.Compression), int(h.RawSize))
	if err != nil {
		return nil, corrupt(ErrTruncated, "%s payload: %v", Compression(h.Compression), err)
	}

	n := int(h.Count)
	dim := int(h.Dimension)
	snap := &Snapshot{
		Dimension: dim,
		Metric:    distance.Metric(h.Metric),
		Keys:      make([]int64, n),
		Vectors:   make([]float32, n*dim),
	}

	off := 0
	for i := range snap.Keys {
		snap.Keys[i] = int64(binary.LittleEndian.Uint64(raw[off:]))
		off += 8
	}
	for i := range snap.Vectors {
		snap.Vectors[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[off:]))
		off += 4
	}

	return snap, nil
}
