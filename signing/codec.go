package signing

import (
	"bytes"
	"encoding/binary"
)

// writeVarInt encodes a Bitcoin-style variable length integer, matching the wire.WriteVarInt
// convention used throughout the corpus: single byte for < 0xfd, 0xfd + uint16 for < 0x10000,
// 0xfe + uint32, 0xff + uint64 otherwise.
func writeVarInt(buf *bytes.Buffer, v uint64) {
	switch {
	case v < 0xfd:
		buf.WriteByte(byte(v))
	case v <= 0xffff:
		buf.WriteByte(0xfd)
		binary.Write(buf, binary.LittleEndian, uint16(v))
	case v <= 0xffffffff:
		buf.WriteByte(0xfe)
		binary.Write(buf, binary.LittleEndian, uint32(v))
	default:
		buf.WriteByte(0xff)
		binary.Write(buf, binary.LittleEndian, v)
	}
}

func varIntSize(v uint64) int {
	switch {
	case v < 0xfd:
		return 1
	case v <= 0xffff:
		return 3
	case v <= 0xffffffff:
		return 5
	default:
		return 9
	}
}

func writeUint32LE(buf *bytes.Buffer, v uint32) {
	binary.Write(buf, binary.LittleEndian, v)
}

func writeUint64LE(buf *bytes.Buffer, v uint64) {
	binary.Write(buf, binary.LittleEndian, v)
}

// serializeInputBytes is the canonical encoding of a transaction input:
//
//	prev_hash(32) || prev_index(u32 LE) || varint(script_len) || script || sequence(u32 LE)
func serializeInputBytes(prevHash [32]byte, prevIndex uint32, script []byte, sequence uint32) []byte {
	buf := &bytes.Buffer{}
	buf.Write(prevHash[:])
	writeUint32LE(buf, prevIndex)
	writeVarInt(buf, uint64(len(script)))
	buf.Write(script)
	writeUint32LE(buf, sequence)
	return buf.Bytes()
}

// serializeOutputBytes is the canonical encoding of a transaction output:
//
//	amount(u64 LE) || varint(script_len) || script
func serializeOutputBytes(amount uint64, script []byte) []byte {
	buf := &bytes.Buffer{}
	writeUint64LE(buf, amount)
	writeVarInt(buf, uint64(len(script)))
	buf.Write(script)
	return buf.Bytes()
}
