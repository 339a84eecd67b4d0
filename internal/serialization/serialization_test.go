package serialization

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/born-ml/attnet/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleState(t *testing.T) map[string]*tensor.RawTensor {
	t.Helper()
	w, err := tensor.RawFromSlice([]float32{1, -2, 3.5, 4, 5, 6}, tensor.Shape{2, 3})
	require.NoError(t, err)
	b, err := tensor.RawFromSlice([]float32{0.25, -0.5}, tensor.Shape{2})
	require.NoError(t, err)
	return map[string]*tensor.RawTensor{
		"model.linear.weight":          w,
		"model.linear.bias":            b,
		"optimizer.adam.m.0":           w.Clone(),
		"model.bn.num_batches_tracked": tensor.MustRaw(tensor.Shape{}),
	}
}

func checkpointHeader() Header {
	return Header{
		ModelType: "AttentionNet",
		Metadata:  map[string]string{"dataset": "synthetic"},
		CheckpointMeta: &CheckpointMeta{
			IsCheckpoint:  true,
			Epoch:         20,
			Step:          640,
			LR:            0.0005,
			RunID:         "run-1",
			OptimizerType: "adam",
		},
	}
}

func TestWriteReadFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ckpt.born")
	state := sampleState(t)

	require.NoError(t, WriteFile(path, state, checkpointHeader()))

	f, err := ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, FormatVersionV2, f.Header.FormatVersion)
	assert.Equal(t, Version, f.Header.Version)
	assert.Equal(t, "AttentionNet", f.Header.ModelType)
	assert.Equal(t, "synthetic", f.Header.Metadata["dataset"])
	assert.NotZero(t, f.Flags&FlagHasOptimizer)
	require.NotNil(t, f.Header.CheckpointMeta)
	assert.Equal(t, 20, f.Header.CheckpointMeta.Epoch)
	assert.Equal(t, int64(640), f.Header.CheckpointMeta.Step)
	assert.Equal(t, "run-1", f.Header.CheckpointMeta.RunID)

	require.Len(t, f.StateDict, len(state))
	for name, want := range state {
		got := f.StateDict[name]
		require.NotNil(t, got, name)
		assert.Equal(t, want.Shape(), got.Shape(), name)
		assert.Equal(t, want.Data(), got.Data(), name)
	}
}

func TestEncode_DeterministicAndAligned(t *testing.T) {
	state := sampleState(t)
	header := checkpointHeader()
	header.CreatedAt = header.CreatedAt.AddDate(2025, 0, 0)

	var a, b bytes.Buffer
	require.NoError(t, Encode(&a, state, header))
	require.NoError(t, Encode(&b, state, header))
	assert.Equal(t, a.Bytes(), b.Bytes())

	f, err := decode(bytes.NewReader(a.Bytes()), int64(a.Len()))
	require.NoError(t, err)
	// Tensors are laid out in name order.
	for i := 1; i < len(f.Header.Tensors); i++ {
		assert.Less(t, f.Header.Tensors[i-1].Name, f.Header.Tensors[i].Name)
	}
	dataStart := int64(a.Len()) - int64(totalBytes(state))
	assert.Zero(t, dataStart%HeaderAlignment)
}

func TestReadFile_Missing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "nope.born"))
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.NotErrorIs(t, err, ErrCorrupt)
}

func TestReadFile_Corrupt(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, sampleState(t), checkpointHeader()))
	good := buf.Bytes()

	tests := []struct {
		name   string
		mutate func([]byte) []byte
		cause  error
	}{
		{"flipped data byte", func(b []byte) []byte { b[len(b)-1] ^= 0xFF; return b }, ErrChecksumMismatch},
		{"bad magic", func(b []byte) []byte { copy(b, "NOPE"); return b }, ErrInvalidMagic},
		{"future version", func(b []byte) []byte { b[4] = 9; return b }, ErrUnsupportedVersion},
		{"truncated data", func(b []byte) []byte { return b[:len(b)-4] }, ErrTruncated},
		{"truncated header", func(b []byte) []byte { return b[:10] }, ErrTruncated},
		{"empty", func([]byte) []byte { return nil }, ErrTruncated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.mutate(append([]byte(nil), good...))
			path := filepath.Join(t.TempDir(), "bad.born")
			require.NoError(t, os.WriteFile(path, data, 0o600))

			_, err := ReadFile(path)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrCorrupt)
			assert.ErrorIs(t, err, tt.cause)
			assert.NotErrorIs(t, err, fs.ErrNotExist)
		})
	}
}

func TestReadFile_MalformedHeaderJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, sampleState(t), checkpointHeader()))
	data := buf.Bytes()
	data[FixedHeaderSizeV2] = '!' // first byte of the JSON object

	path := filepath.Join(t.TempDir(), "bad.born")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	_, err := ReadFile(path)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestAtomicWriteFile_FailureKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.bin")
	require.NoError(t, os.WriteFile(path, []byte("previous"), 0o600))

	boom := errors.New("disk full")
	err := AtomicWriteFile(path, func(w io.Writer) error {
		_, _ = w.Write([]byte("partial"))
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file must be cleaned up")
}

func TestAtomicWriteFile_MissingDirectory(t *testing.T) {
	err := AtomicWriteFile(filepath.Join(t.TempDir(), "missing", "x.born"), func(io.Writer) error { return nil })
	assert.Error(t, err)
}

func TestValidateTensorOffsets(t *testing.T) {
	tests := []struct {
		name     string
		tensors  []TensorMeta
		dataSize int64
		want     error
	}{
		{
			name:     "exact boundary",
			tensors:  []TensorMeta{{Name: "a", Offset: 0, Size: 100}, {Name: "b", Offset: 100, Size: 100}},
			dataSize: 200,
		},
		{
			name:     "overlap",
			tensors:  []TensorMeta{{Name: "a", Offset: 0, Size: 100}, {Name: "b", Offset: 99, Size: 100}},
			dataSize: 200,
			want:     ErrOffsetOverlap,
		},
		{
			name:     "out of bounds",
			tensors:  []TensorMeta{{Name: "a", Offset: 150, Size: 100}},
			dataSize: 200,
			want:     ErrOutOfBounds,
		},
		{
			name:     "negative",
			tensors:  []TensorMeta{{Name: "a", Offset: -1, Size: 10}},
			dataSize: 200,
			want:     ErrNegativeOffset,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTensorOffsets(tt.tensors, tt.dataSize)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestValidateTensorName(t *testing.T) {
	assert.NoError(t, ValidateTensorName("model.backbone.block0.conv.weight"))
	for _, bad := range []string{"", "../etc/passwd", "a/b", "a\\b", "nul\x00"} {
		assert.ErrorIs(t, ValidateTensorName(bad), ErrInvalidTensorName, "%q", bad)
	}
}

func TestValidateHeader_SizeMismatch(t *testing.T) {
	h := &Header{Tensors: []TensorMeta{{Name: "w", DType: DTypeFloat32, Shape: []int{2, 2}, Offset: 0, Size: 12}}}
	var verr *ValidationError
	require.ErrorAs(t, ValidateHeader(h, 16), &verr)
	assert.Equal(t, "size_mismatch", verr.Type)
}

func TestValidateChecksum(t *testing.T) {
	a := ComputeChecksum([]byte("test data"))
	assert.NoError(t, ValidateChecksum(a, ComputeChecksum([]byte("test data"))))
	assert.ErrorIs(t, ValidateChecksum(a, ComputeChecksum([]byte("other"))), ErrChecksumMismatch)
}
