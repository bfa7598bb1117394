package signing

import (
	"bytes"
	"crypto/sha256"
)

// TxChecksum is a non-Bitcoin SHA-256 tamper detector, run once in Phase 1 (inspection/display)
// and once in Phase 2 (signing), and compared bitwise at the end of Phase 2. It is not part of the
// Bitcoin consensus hash of the transaction; it exists purely so that a host that substitutes
// different input or output data between the two phases is caught before a signature is produced.
//
// Unlike the original firmware, which seeds the checksum with a raw host-endian memory image of
// each TxInputType/TxOutputBinType struct, this implementation seeds and feeds canonical
// little-endian encodings (SPEC_FULL.md Open Question 1). The checksum is still never serialized
// or compared across devices, so this is purely a portability improvement, not a protocol change.
type TxChecksum struct {
	buf bytes.Buffer
}

// NewTxChecksum seeds a fresh checksum with the host-declared transaction shape.
func NewTxChecksum(inputsCount, outputsCount, version, lockTime uint32) *TxChecksum {
	c := &TxChecksum{}
	writeUint32LE(&c.buf, inputsCount)
	writeUint32LE(&c.buf, outputsCount)
	writeUint32LE(&c.buf, version)
	writeUint32LE(&c.buf, lockTime)
	return c
}

// AddInput feeds the canonical encoding of an ack-streamed input, including its derivation path
// and script type, so that a host-side substitution of any of those fields between phases is
// caught, not just a substitution of the prevout reference.
func (c *TxChecksum) AddInput(in *TxInputType) {
	buf := &c.buf
	writeVarInt(buf, uint64(len(in.AddressN)))
	for _, idx := range in.AddressN {
		writeUint32LE(buf, idx)
	}
	ph := in.PrevHash.Bytes()
	buf.Write(ph)
	writeUint32LE(buf, in.PrevIndex)
	writeVarInt(buf, uint64(len(in.ScriptSig)))
	buf.Write(in.ScriptSig)
	writeUint32LE(buf, in.Sequence)
	buf.WriteByte(byte(in.ScriptType))
	if in.Multisig != nil {
		buf.WriteByte(1)
		writeMultisigForChecksum(buf, in.Multisig)
	} else {
		buf.WriteByte(0)
	}
}

// AddOutput feeds the canonical encoding of a compiled output, the same bytes produced for both
// Stage 3 (display) and Stage 4 (signing), so any divergence is caught at the Stage 4 boundary.
func (c *TxChecksum) AddOutput(bin *TxOutputBinType) {
	c.buf.Write(serializeOutputBytes(bin.Amount, bin.Script))
}

func writeMultisigForChecksum(buf *bytes.Buffer, m *MultisigRedeemScriptType) {
	buf.WriteByte(byte(m.Required))
	writeVarInt(buf, uint64(len(m.PubKeys)))
	for _, pk := range m.PubKeys {
		buf.Write(pk.Bytes())
	}
}

// Finalize computes the SHA-256 digest of everything fed so far. The checksum is single-use;
// callers needing a second phase's checksum construct a fresh TxChecksum with NewTxChecksum.
func (c *TxChecksum) Finalize() [32]byte {
	return sha256.Sum256(c.buf.Bytes())
}
