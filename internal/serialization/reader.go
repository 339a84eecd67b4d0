package serialization

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/born-ml/attnet/internal/tensor"
)

// File is a decoded .born file.
type File struct {
	Header    Header
	Flags     uint32
	StateDict map[string]*tensor.RawTensor
}

// ReadFile opens, validates and decodes a .born file.
//
// A missing file yields an error matching fs.ErrNotExist. Every other
// decoding failure matches ErrCorrupt together with the specific cause.
func ReadFile(path string) (*File, error) {
	//nolint:gosec // G304: the path is chosen by the operator
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	file, err := decode(f, info.Size())
	if err != nil {
		return nil, corrupt(path, err)
	}
	return file, nil
}

// decode parses a .born v2 stream of the given total size.
func decode(r io.ReaderAt, size int64) (*File, error) {
	fixed := make([]byte, FixedHeaderSizeV2)
	if _, err := r.ReadAt(fixed, 0); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: fixed header", ErrTruncated)
		}
		return nil, fmt.Errorf("failed to read fixed header: %w", err)
	}
	if string(fixed[0:4]) != MagicBytes {
		return nil, ErrInvalidMagic
	}
	if version := binary.LittleEndian.Uint32(fixed[4:8]); version != FormatVersionV2 {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, version, FormatVersionV2)
	}

	flags := binary.LittleEndian.Uint32(fixed[8:12])
	headerSize := binary.LittleEndian.Uint64(fixed[16:24])
	dataSize := binary.LittleEndian.Uint64(fixed[24:32])
	var stored [32]byte
	copy(stored[:], fixed[ChecksumOffsetV2:ChecksumOffsetV2+ChecksumSize])

	if headerSize > MaxHeaderSize {
		return nil, ErrHeaderTooLarge
	}
	//nolint:gosec // G115: bounded by MaxHeaderSize above
	hdrLen := int64(headerSize)
	dataOffset := FixedHeaderSizeV2 + hdrLen + padding(FixedHeaderSizeV2+hdrLen)
	if dataSize > uint64(size) || dataOffset+int64(dataSize) != size {
		return nil, fmt.Errorf("%w: expected %d bytes of data at offset %d, file has %d bytes",
			ErrTruncated, dataSize, dataOffset, size)
	}

	headerBytes := make([]byte, hdrLen)
	if _, err := r.ReadAt(headerBytes, FixedHeaderSizeV2); err != nil {
		return nil, fmt.Errorf("failed to read header JSON: %w", err)
	}
	var header Header
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, fmt.Errorf("failed to parse header JSON: %w", err)
	}
	if err := ValidateHeader(&header, int64(dataSize)); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	computed, err := checksumSection(r, dataOffset, int64(dataSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read tensor data for checksum: %w", err)
	}
	if err := ValidateChecksum(computed, stored); err != nil {
		return nil, err
	}

	stateDict := make(map[string]*tensor.RawTensor, len(header.Tensors))
	for _, meta := range header.Tensors {
		buf := make([]byte, meta.Size)
		if _, err := r.ReadAt(buf, dataOffset+meta.Offset); err != nil {
			return nil, fmt.Errorf("failed to read tensor %s: %w", meta.Name, err)
		}
		raw, err := tensor.RawFromBytes(buf, tensor.Shape(meta.Shape))
		if err != nil {
			return nil, fmt.Errorf("tensor %s: %w", meta.Name, err)
		}
		stateDict[meta.Name] = raw
	}

	return &File{Header: header, Flags: flags, StateDict: stateDict}, nil
}
