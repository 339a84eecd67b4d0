// Package serialization implements the .born container used for training
// checkpoints, plus the atomic file replacement shared by every persisted
// artifact.
//
// Format structure (version 2):
//
//	[0x00: 4 bytes]  Magic "BORN"
//	[0x04: 4 bytes]  Version (uint32 LE) = 2
//	[0x08: 4 bytes]  Flags (uint32 LE)
//	[0x0C: 4 bytes]  Reserved
//	[0x10: 8 bytes]  Header size (uint64 LE)
//	[0x18: 8 bytes]  Data size (uint64 LE)
//	[0x20: 32 bytes] SHA-256 of the tensor data section
//	[0x40: ...]      Header: JSON metadata
//	[padding]        Zero bytes up to a 64-byte boundary
//	[data]           Raw little-endian float32 tensors in header order
//
// Every failure to decode a file that exists (bad magic, unsupported version,
// truncated sections, malformed JSON, checksum mismatch, inconsistent tensor
// table) is reported as an error wrapping ErrCorrupt.
//
// Example usage:
//
//	err := serialization.WriteFile("ckpt.born", stateDict, serialization.Header{ModelType: "AttentionNet"})
//
//	f, err := serialization.ReadFile("ckpt.born")
//	if errors.Is(err, fs.ErrNotExist) {
//	    // nothing saved yet
//	}
//	weights := f.StateDict["model.classifier.linear.weight"]
package serialization
