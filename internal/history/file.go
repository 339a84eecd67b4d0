package history

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/born-ml/attnet/internal/serialization"
	"google.golang.org/protobuf/encoding/protowire"
)

// File layout:
//
//	[0:4]   magic "BHIS"
//	[4:8]   version (uint32 LE)
//	[8:40]  SHA-256 of the payload
//	[40:]   payload, protobuf wire format:
//	          1: version (varint)
//	          2: train loss (packed double)
//	          3: validation loss (packed double)
//	          4: train accuracy (packed double)
//	          5: validation accuracy (packed double)
const (
	magic         = "BHIS"
	formatVersion = 1
	prefixSize    = 4 + 4 + sha256.Size
)

const (
	fieldVersion   protowire.Number = 1
	fieldTrainLoss protowire.Number = 2
	fieldValLoss   protowire.Number = 3
	fieldTrainAcc  protowire.Number = 4
	fieldValAcc    protowire.Number = 5
)

// ErrLengthSkew reports a file whose four metric sequences differ in length.
var ErrLengthSkew = errors.New("history: metric sequences differ in length")

// Marshal encodes the history.
func (h *History) Marshal() []byte {
	var payload []byte
	payload = protowire.AppendTag(payload, fieldVersion, protowire.VarintType)
	payload = protowire.AppendVarint(payload, formatVersion)
	payload = appendPackedDoubles(payload, fieldTrainLoss, h.trainLoss)
	payload = appendPackedDoubles(payload, fieldValLoss, h.valLoss)
	payload = appendPackedDoubles(payload, fieldTrainAcc, h.trainAcc)
	payload = appendPackedDoubles(payload, fieldValAcc, h.valAcc)

	sum := sha256.Sum256(payload)
	out := make([]byte, prefixSize, prefixSize+len(payload))
	copy(out[0:4], magic)
	binary.LittleEndian.PutUint32(out[4:8], formatVersion)
	copy(out[8:prefixSize], sum[:])
	return append(out, payload...)
}

// Unmarshal decodes data produced by Marshal. Every failure matches
// serialization.ErrCorrupt.
func Unmarshal(data []byte) (*History, error) {
	h, err := unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", serialization.ErrCorrupt, err)
	}
	return h, nil
}

func unmarshal(data []byte) (*History, error) {
	if len(data) < prefixSize {
		return nil, serialization.ErrTruncated
	}
	if string(data[0:4]) != magic {
		return nil, serialization.ErrInvalidMagic
	}
	if v := binary.LittleEndian.Uint32(data[4:8]); v != formatVersion {
		return nil, fmt.Errorf("%w: got %d, expected %d", serialization.ErrUnsupportedVersion, v, formatVersion)
	}
	var stored [32]byte
	copy(stored[:], data[8:prefixSize])
	payload := data[prefixSize:]
	if err := serialization.ValidateChecksum(sha256.Sum256(payload), stored); err != nil {
		return nil, err
	}

	h := New()
	for len(payload) > 0 {
		num, typ, n := protowire.ConsumeTag(payload)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		payload = payload[n:]

		var dst *[]float64
		switch num {
		case fieldTrainLoss:
			dst = &h.trainLoss
		case fieldValLoss:
			dst = &h.valLoss
		case fieldTrainAcc:
			dst = &h.trainAcc
		case fieldValAcc:
			dst = &h.valAcc
		}

		switch {
		case dst != nil && typ == protowire.BytesType:
			packed, n := protowire.ConsumeBytes(payload)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			if len(packed)%8 != 0 {
				return nil, fmt.Errorf("field %d: packed length %d is not a multiple of 8", num, len(packed))
			}
			for i := 0; i < len(packed); i += 8 {
				*dst = append(*dst, math.Float64frombits(binary.LittleEndian.Uint64(packed[i:])))
			}
			payload = payload[n:]
		case dst != nil && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(payload)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			*dst = append(*dst, math.Float64frombits(v))
			payload = payload[n:]
		default:
			// Version and unknown fields.
			n := protowire.ConsumeFieldValue(num, typ, payload)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			payload = payload[n:]
		}
	}

	l := len(h.trainLoss)
	if len(h.valLoss) != l || len(h.trainAcc) != l || len(h.valAcc) != l {
		return nil, fmt.Errorf("%w: %d/%d/%d/%d", ErrLengthSkew,
			l, len(h.valLoss), len(h.trainAcc), len(h.valAcc))
	}
	return h, nil
}

// Save atomically replaces path with the encoded history.
func (h *History) Save(path string) error {
	data := h.Marshal()
	return serialization.AtomicWriteFile(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// Load reads a history file. A missing file yields an error matching
// fs.ErrNotExist; an undecodable one matches serialization.ErrCorrupt.
func Load(path string) (*History, error) {
	//nolint:gosec // G304: the path is chosen by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	h, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return h, nil
}

func appendPackedDoubles(b []byte, num protowire.Number, values []float64) []byte {
	if len(values) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	b = protowire.AppendVarint(b, uint64(8*len(values)))
	for _, v := range values {
		b = protowire.AppendFixed64(b, math.Float64bits(v))
	}
	return b
}
