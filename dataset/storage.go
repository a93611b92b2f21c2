package dataset

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

const (
	magic   = "GSIX"
	version = uint32(1)
	// upper bound on a single name, guards allocations on corrupt files
	maxNameLen = 1 << 16
)

var ErrBadHeader = errors.New("dataset: not a record file")

// Codec selects how a record file is stored on disk.
type Codec int

const (
	Raw Codec = iota
	Zstd
	Snappy
)

func (c Codec) String() string {
	switch c {
	case Zstd:
		return "zstd"
	case Snappy:
		return "snappy"
	default:
		return "raw"
	}
}

// CodecFor picks the codec from a file's extension.
func CodecFor(filename string) Codec {
	switch filepath.Ext(filename) {
	case ".zst":
		return Zstd
	case ".sz":
		return Snappy
	default:
		return Raw
	}
}

// Save writes records to filename using the codec its extension selects.
func Save(filename string, records []Record) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	bufWriter := bufio.NewWriterSize(file, 1024*1024)

	switch CodecFor(filename) {
	case Zstd:
		enc, err := zstd.NewWriter(bufWriter, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
		if err != nil {
			return fmt.Errorf("failed to create zstd writer: %w", err)
		}
		if err := writeRecords(enc, records); err != nil {
			enc.Close()
			return err
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("failed to close encoder: %w", err)
		}
	case Snappy:
		enc := snappy.NewBufferedWriter(bufWriter)
		if err := writeRecords(enc, records); err != nil {
			enc.Close()
			return err
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("failed to close encoder: %w", err)
		}
	default:
		if err := writeRecords(bufWriter, records); err != nil {
			return err
		}
	}

	if err := bufWriter.Flush(); err != nil {
		return fmt.Errorf("failed to flush buffer: %w", err)
	}
	return file.Sync()
}

func writeRecords(w io.Writer, records []Record) error {
	var header [12]byte
	copy(header[:4], magic)
	binary.LittleEndian.PutUint32(header[4:], version)
	binary.LittleEndian.PutUint32(header[8:], uint32(len(records)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	var fixed [24]byte
	for _, r := range records {
		binary.LittleEndian.PutUint32(fixed[0:], r.ID)
		binary.LittleEndian.PutUint64(fixed[4:], math.Float64bits(r.X))
		binary.LittleEndian.PutUint64(fixed[12:], math.Float64bits(r.Y))
		binary.LittleEndian.PutUint32(fixed[20:], uint32(len(r.Name)))
		if _, err := w.Write(fixed[:]); err != nil {
			return fmt.Errorf("failed to write record %d: %w", r.ID, err)
		}
		if _, err := io.WriteString(w, r.Name); err != nil {
			return fmt.Errorf("failed to write record %d: %w", r.ID, err)
		}
	}
	return nil
}

// Load reads the records in filename using the codec its extension selects.
// Raw files are read through a memory map.
func Load(filename string) ([]Record, error) {
	if CodecFor(filename) == Raw {
		return loadMMap(filename)
	}

	src, closeFn, err := openStream(filename)
	if err != nil {
		return nil, err
	}
	defer closeFn()
	return readRecords(bufio.NewReader(src))
}

// Count returns the number of records in filename, reading only its header.
func Count(filename string) (int, error) {
	src, closeFn, err := openStream(filename)
	if err != nil {
		return 0, err
	}
	defer closeFn()

	var header [12]byte
	if _, err := io.ReadFull(src, header[:]); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	count, err := checkHeader(header[:])
	return int(count), err
}

// openStream returns a reader over the decoded contents of filename.
func openStream(filename string) (io.Reader, func(), error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}

	switch CodecFor(filename) {
	case Zstd:
		dec, err := zstd.NewReader(file)
		if err != nil {
			file.Close()
			return nil, nil, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		return dec, func() { dec.Close(); file.Close() }, nil
	case Snappy:
		return snappy.NewReader(file), func() { file.Close() }, nil
	default:
		return file, func() { file.Close() }, nil
	}
}

func readRecords(r io.Reader) ([]Record, error) {
	var header [12]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	count, err := checkHeader(header[:])
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, min(count, 1<<20))
	var fixed [24]byte
	for i := uint32(0); i < count; i++ {
		if _, err := io.ReadFull(r, fixed[:]); err != nil {
			return nil, fmt.Errorf("failed to read record %d of %d: %w", i, count, err)
		}
		rec := Record{
			ID: binary.LittleEndian.Uint32(fixed[0:]),
			X:  math.Float64frombits(binary.LittleEndian.Uint64(fixed[4:])),
			Y:  math.Float64frombits(binary.LittleEndian.Uint64(fixed[12:])),
		}
		n := binary.LittleEndian.Uint32(fixed[20:])
		if n > maxNameLen {
			return nil, fmt.Errorf("record %d: name length %d exceeds %d", rec.ID, n, maxNameLen)
		}
		name := make([]byte, n)
		if _, err := io.ReadFull(r, name); err != nil {
			return nil, fmt.Errorf("failed to read record %d of %d: %w", i, count, err)
		}
		rec.Name = string(name)
		records = append(records, rec)
	}
	return records, nil
}

func checkHeader(header []byte) (uint32, error) {
	if string(header[:4]) != magic {
		return 0, ErrBadHeader
	}
	if v := binary.LittleEndian.Uint32(header[4:]); v != version {
		return 0, fmt.Errorf("%w: unsupported version %d", ErrBadHeader, v)
	}
	return binary.LittleEndian.Uint32(header[8:]), nil
}
