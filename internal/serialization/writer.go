package serialization

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/born-ml/attnet/internal/tensor"
)

// Version is recorded in every header written by this package.
const Version = "0.3.0"

// Encode writes stateDict in .born v2 format to w.
//
// Tensors are laid out in lexical name order, so the same state always
// produces the same data section and checksum. FormatVersion, Version,
// Tensors and (when zero) CreatedAt are filled in by Encode.
func Encode(w io.Writer, stateDict map[string]*tensor.RawTensor, header Header) error {
	names := make([]string, 0, len(stateDict))
	for name := range stateDict {
		if err := ValidateTensorName(name); err != nil {
			return err
		}
		names = append(names, name)
	}
	sort.Strings(names)

	header.FormatVersion = FormatVersionV2
	header.Version = Version
	if header.CreatedAt.IsZero() {
		header.CreatedAt = time.Now().UTC()
	}
	if header.Metadata == nil {
		header.Metadata = make(map[string]string)
	}

	// Calculate tensor offsets and collect data for the checksum
	var offset int64
	header.Tensors = make([]TensorMeta, 0, len(names))
	data := make([]byte, 0, totalBytes(stateDict))
	for _, name := range names {
		raw := stateDict[name]
		size := int64(raw.ByteSize())
		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   name,
			DType:  DTypeFloat32,
			Shape:  []int(raw.Shape().Clone()),
			Offset: offset,
			Size:   size,
		})
		offset += size
		data = append(data, raw.Bytes()...)
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	// Fixed header (64 bytes):
	// [0:4]   magic, [4:8] version, [8:12] flags, [12:16] reserved,
	// [16:24] header size, [24:32] data size, [32:64] SHA-256 of data.
	fixed := make([]byte, FixedHeaderSizeV2)
	copy(fixed[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], FormatVersionV2)

	var flags uint32
	if len(header.Metadata) > 0 {
		flags |= FlagHasMetadata
	}
	if header.CheckpointMeta != nil && header.CheckpointMeta.IsCheckpoint {
		flags |= FlagHasOptimizer
	}
	binary.LittleEndian.PutUint32(fixed[8:12], flags)
	binary.LittleEndian.PutUint64(fixed[16:24], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixed[24:32], uint64(len(data)))
	checksum := ComputeChecksum(data)
	copy(fixed[ChecksumOffsetV2:ChecksumOffsetV2+ChecksumSize], checksum[:])

	bw := bufio.NewWriter(w)
	if _, err := bw.Write(fixed); err != nil {
		return fmt.Errorf("failed to write fixed header: %w", err)
	}
	if _, err := bw.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header JSON: %w", err)
	}
	if _, err := bw.Write(make([]byte, padding(FixedHeaderSizeV2+int64(len(headerJSON))))); err != nil {
		return fmt.Errorf("failed to write padding: %w", err)
	}
	if _, err := bw.Write(data); err != nil {
		return fmt.Errorf("failed to write tensor data: %w", err)
	}
	return bw.Flush()
}

// WriteFile atomically replaces path with the encoded state dictionary.
func WriteFile(path string, stateDict map[string]*tensor.RawTensor, header Header) error {
	return AtomicWriteFile(path, func(w io.Writer) error {
		return Encode(w, stateDict, header)
	})
}

// padding returns the number of zero bytes needed after pos to reach the
// next HeaderAlignment boundary.
func padding(pos int64) int64 {
	return (HeaderAlignment - pos%HeaderAlignment) % HeaderAlignment
}

func totalBytes(stateDict map[string]*tensor.RawTensor) int {
	n := 0
	for _, raw := range stateDict {
		n += raw.ByteSize()
	}
	return n
}
