package signing

import (
	"bytes"
	"testing"
)

func TestWriteVarInt(t *testing.T) {
	tests := []struct {
		v    uint64
		want []byte
	}{
		{0, []byte{0x00}},
		{0xfc, []byte{0xfc}},
		{0xfd, []byte{0xfd, 0xfd, 0x00}},
		{0xffff, []byte{0xfd, 0xff, 0xff}},
		{0x10000, []byte{0xfe, 0x00, 0x00, 0x01, 0x00}},
		{0xffffffff, []byte{0xfe, 0xff, 0xff, 0xff, 0xff}},
		{0x100000000, []byte{0xff, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00}},
	}

	for _, tt := range tests {
		buf := &bytes.Buffer{}
		writeVarInt(buf, tt.v)
		if !bytes.Equal(buf.Bytes(), tt.want) {
			t.Errorf("writeVarInt(%d): got %x, want %x", tt.v, buf.Bytes(), tt.want)
		}
		if got := varIntSize(tt.v); got != len(tt.want) {
			t.Errorf("varIntSize(%d): got %d, want %d", tt.v, got, len(tt.want))
		}
	}
}

func TestSerializeInputBytes(t *testing.T) {
	var hash [32]byte
	for i := range hash {
		hash[i] = byte(i)
	}
	script := []byte{0x01, 0x02, 0x03}

	got := serializeInputBytes(hash, 7, script, 0xffffffff)

	want := &bytes.Buffer{}
	want.Write(hash[:])
	writeUint32LE(want, 7)
	writeVarInt(want, 3)
	want.Write(script)
	writeUint32LE(want, 0xffffffff)

	if !bytes.Equal(got, want.Bytes()) {
		t.Errorf("serializeInputBytes: got %x, want %x", got, want.Bytes())
	}
}

func TestSerializeOutputBytes(t *testing.T) {
	script := []byte{0xaa, 0xbb}
	got := serializeOutputBytes(123456789, script)

	want := &bytes.Buffer{}
	writeUint64LE(want, 123456789)
	writeVarInt(want, 2)
	want.Write(script)

	if !bytes.Equal(got, want.Bytes()) {
		t.Errorf("serializeOutputBytes: got %x, want %x", got, want.Bytes())
	}
}
