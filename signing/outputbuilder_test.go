package signing

import (
	"bytes"
	"testing"
)

func TestTxBuilderAssemblesCompleteTransaction(t *testing.T) {
	b := NewTxBuilder(2, 2)

	var full bytes.Buffer

	full.Write(b.EmitInput([32]byte{1}, 0, []byte{0xaa}, 0xffffffff))
	full.Write(b.EmitInput([32]byte{2}, 1, []byte{0xbb}, 0xffffffff))
	full.Write(b.EmitOutput(1000, []byte{0x76, 0xa9}))
	full.Write(b.EmitOutput(2000, []byte{0x76, 0xa9}))

	var want bytes.Buffer
	writeUint32LE(&want, outputVersion)
	writeVarInt(&want, 2)
	want.Write(serializeInputBytes([32]byte{1}, 0, []byte{0xaa}, 0xffffffff))
	want.Write(serializeInputBytes([32]byte{2}, 1, []byte{0xbb}, 0xffffffff))
	writeVarInt(&want, 2)
	want.Write(serializeOutputBytes(1000, []byte{0x76, 0xa9}))
	want.Write(serializeOutputBytes(2000, []byte{0x76, 0xa9}))
	writeUint32LE(&want, outputLockTime)

	if !bytes.Equal(full.Bytes(), want.Bytes()) {
		t.Errorf("assembled transaction mismatch:\ngot:  %x\nwant: %x", full.Bytes(), want.Bytes())
	}
}

func TestTxBuilderHeaderOnlyOnFirstInput(t *testing.T) {
	b := NewTxBuilder(2, 0)
	first := b.EmitInput([32]byte{1}, 0, nil, 0)
	second := b.EmitInput([32]byte{2}, 0, nil, 0)

	if len(first) <= len(serializeInputBytes([32]byte{1}, 0, nil, 0)) {
		t.Error("first EmitInput should be prefixed with the header")
	}
	if len(second) != len(serializeInputBytes([32]byte{2}, 0, nil, 0)) {
		t.Error("second EmitInput should carry no header")
	}
}

func TestTxBuilderFooterOnlyOnLastOutput(t *testing.T) {
	b := NewTxBuilder(0, 2)
	first := b.EmitOutput(100, nil)
	second := b.EmitOutput(200, nil)

	baseLen := len(serializeOutputBytes(100, nil))
	if len(first) <= baseLen {
		t.Error("first EmitOutput should carry the outputs-count header but not the footer")
	}
	if len(second) != len(serializeOutputBytes(200, nil))+4 {
		t.Error("last EmitOutput should carry exactly the 4-byte lock_time footer")
	}
}

func TestTxBuilderSingleOutputHasHeaderAndFooter(t *testing.T) {
	b := NewTxBuilder(0, 1)
	only := b.EmitOutput(100, []byte{0x01})

	var want bytes.Buffer
	writeVarInt(&want, 1)
	want.Write(serializeOutputBytes(100, []byte{0x01}))
	writeUint32LE(&want, outputLockTime)

	if !bytes.Equal(only, want.Bytes()) {
		t.Errorf("single-output chunk mismatch: got %x, want %x", only, want.Bytes())
	}
}
