package dataset

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/edsrzf/mmap-go"
)

// MMapReader reads little-endian values from a memory-mapped file. Reads
// past the end of the mapping fail with io.ErrUnexpectedEOF.
type MMapReader struct {
	data   mmap.MMap
	offset int
}

func NewMMapReader(data mmap.MMap) *MMapReader {
	return &MMapReader{
		data:   data,
		offset: 0,
	}
}

func (r *MMapReader) next(n int) ([]byte, error) {
	if n < 0 || r.offset+n > len(r.data) {
		return nil, io.ErrUnexpectedEOF
	}
	b := r.data[r.offset : r.offset+n]
	r.offset += n
	return b, nil
}

func (r *MMapReader) ReadUint32() (uint32, error) {
	b, err := r.next(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *MMapReader) ReadFloat64() (float64, error) {
	b, err := r.next(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
}

// ReadBytes copies the next n bytes out of the mapping.
func (r *MMapReader) ReadBytes(n int) ([]byte, error) {
	b, err := r.next(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

func loadMMap(filename string) ([]Record, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.Size() < 12 {
		return nil, ErrBadHeader
	}

	data, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to mmap file: %w", err)
	}
	defer data.Unmap()

	reader := NewMMapReader(data)
	header, err := reader.ReadBytes(12)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	count, err := checkHeader(header)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, min(count, 1<<20))
	for i := uint32(0); i < count; i++ {
		rec, err := readMMapRecord(reader)
		if err != nil {
			return nil, fmt.Errorf("failed to read record %d of %d: %w", i, count, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func readMMapRecord(r *MMapReader) (Record, error) {
	var (
		rec Record
		err error
	)
	if rec.ID, err = r.ReadUint32(); err != nil {
		return rec, err
	}
	if rec.X, err = r.ReadFloat64(); err != nil {
		return rec, err
	}
	if rec.Y, err = r.ReadFloat64(); err != nil {
		return rec, err
	}
	n, err := r.ReadUint32()
	if err != nil {
		return rec, err
	}
	if n > maxNameLen {
		return rec, fmt.Errorf("name length %d exceeds %d", n, maxNameLen)
	}
	name, err := r.ReadBytes(int(n))
	if err != nil {
		return rec, err
	}
	rec.Name = string(name)
	return rec, nil
}
