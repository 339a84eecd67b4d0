package history

import (
	"errors"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/born-ml/attnet/internal/serialization"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func sample(n int) *History {
	h := New()
	for i := 0; i < n; i++ {
		f := float64(i)
		h.Append(Entry{TrainLoss: 2 - f/4, ValLoss: 2.5 - f/4, TrainAccuracy: f / 8, ValAccuracy: f / 16})
	}
	return h
}

func TestAppendKeepsSequencesAligned(t *testing.T) {
	h := sample(3)
	require.Equal(t, 3, h.Len())
	assert.Len(t, h.TrainLoss(), 3)
	assert.Len(t, h.ValLoss(), 3)
	assert.Len(t, h.TrainAccuracy(), 3)
	assert.Len(t, h.ValAccuracy(), 3)
	assert.Equal(t, Entry{TrainLoss: 1.5, ValLoss: 2, TrainAccuracy: 0.25, ValAccuracy: 0.125}, h.At(2))
}

func TestAccessorsReturnCopies(t *testing.T) {
	h := sample(2)
	loss := h.TrainLoss()
	loss[0] = 100
	assert.Equal(t, 2.0, h.At(0).TrainLoss)
}

func TestTruncateAndPad(t *testing.T) {
	h := sample(5)
	h.Truncate(7)
	assert.Equal(t, 5, h.Len())

	h.Truncate(2)
	require.Equal(t, 2, h.Len())
	assert.Equal(t, sample(2).Entries(), h.Entries())

	h.PadTo(4)
	require.Equal(t, 4, h.Len())
	assert.True(t, math.IsNaN(h.At(3).ValAccuracy))
	assert.Equal(t, 2.0, h.At(0).TrainLoss)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.bhis")
	h := sample(4)
	h.PadTo(5)
	require.NoError(t, h.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 5, got.Len())
	for i := 0; i < 4; i++ {
		assert.Equal(t, h.At(i), got.At(i))
	}
	assert.True(t, math.IsNaN(got.At(4).TrainLoss))
}

func TestSaveEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.bhis")
	require.NoError(t, New().Save(path))
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())
}

func TestSaveReplacesPreviousFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.bhis")
	require.NoError(t, sample(3).Save(path))
	require.NoError(t, sample(6).Save(path))
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 6, got.Len())
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.bhis"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
	assert.False(t, errors.Is(err, serialization.ErrCorrupt))
}

func TestLoadCorrupt(t *testing.T) {
	valid := sample(3).Marshal()

	skewed := func() []byte {
		var payload []byte
		payload = appendPackedDoubles(payload, fieldTrainLoss, []float64{1, 2})
		payload = appendPackedDoubles(payload, fieldValLoss, []float64{1})
		h := &History{}
		out := h.Marshal()[:prefixSize]
		return resign(out, payload)
	}

	tests := []struct {
		name   string
		data   []byte
		target error
	}{
		{"empty", nil, serialization.ErrTruncated},
		{"bad magic", append([]byte("XXXX"), valid[4:]...), serialization.ErrInvalidMagic},
		{"bad version", func() []byte {
			b := append([]byte(nil), valid...)
			b[4] = 9
			return b
		}(), serialization.ErrUnsupportedVersion},
		{"flipped payload byte", func() []byte {
			b := append([]byte(nil), valid...)
			b[len(b)-1] ^= 0xff
			return b
		}(), serialization.ErrChecksumMismatch},
		{"truncated payload", valid[:len(valid)-3], serialization.ErrChecksumMismatch},
		{"length skew", skewed(), ErrLengthSkew},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "history.bhis")
			require.NoError(t, os.WriteFile(path, tt.data, 0o600))
			_, err := Load(path)
			require.Error(t, err)
			assert.ErrorIs(t, err, serialization.ErrCorrupt)
			assert.ErrorIs(t, err, tt.target)
			assert.False(t, errors.Is(err, fs.ErrNotExist))
		})
	}
}

func TestUnmarshalSkipsUnknownFields(t *testing.T) {
	var payload []byte
	payload = protowire.AppendTag(payload, 99, protowire.BytesType)
	payload = protowire.AppendBytes(payload, []byte("future"))
	for _, num := range []protowire.Number{fieldTrainLoss, fieldValLoss, fieldTrainAcc, fieldValAcc} {
		payload = protowire.AppendTag(payload, num, protowire.Fixed64Type)
		payload = protowire.AppendFixed64(payload, math.Float64bits(0.5))
	}
	data := resign(New().Marshal()[:prefixSize], payload)

	h, err := Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, 1, h.Len())
	assert.Equal(t, 0.5, h.At(0).ValAccuracy)
}

func TestConsumerFunc(t *testing.T) {
	var got int
	var c Consumer = ConsumerFunc(func(h *History) error {
		got = h.Len()
		return nil
	})
	require.NoError(t, c.Consume(sample(3)))
	assert.Equal(t, 3, got)
}

// resign replaces the payload after prefix and recomputes the checksum.
func resign(prefix, payload []byte) []byte {
	out := append(append([]byte(nil), prefix...), payload...)
	sum := serialization.ComputeChecksum(payload)
	copy(out[8:prefixSize], sum[:])
	return out
}
