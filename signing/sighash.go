package signing

import (
	"bytes"
	"crypto/sha256"
)

// LegacySigHash builds the pre-BIP143 SIGHASH_ALL digest: the full transaction is re-serialized
// into an in-memory buffer, hashed at Finalize,
// once per signed input, with every input's script_sig blanked except the one being signed, which
// carries the spent output's locking script in its place. This is the O(n^2)-in-inputs algorithm
// every legacy signature hash scheme uses; it is unavoidable without the BIP143 rework, which the
// legacy input types this signer supports do not opt into.
type LegacySigHash struct {
	version      uint32
	lockTime     uint32
	signIndex    int
	signerScript []byte

	buf bytes.Buffer
}

// NewLegacySigHash starts a digest for the input at signIndex, to be signed against
// signerScript (the previous output's locking script, or the redeem script for multisig inputs).
func NewLegacySigHash(version uint32, lockTime uint32, signIndex int, signerScript []byte) *LegacySigHash {
	h := &LegacySigHash{
		version:      version,
		lockTime:     lockTime,
		signIndex:    signIndex,
		signerScript: signerScript,
	}
	writeUint32LE(&h.buf, version)
	return h
}

// AddInput feeds one input of the transaction being signed, blanking script_sig everywhere except
// at signIndex.
func (h *LegacySigHash) AddInput(index int, prevHash [32]byte, prevIndex, sequence uint32) {
	script := []byte{}
	if index == h.signIndex {
		script = h.signerScript
	}
	h.buf.Write(serializeInputBytes(prevHash, prevIndex, script, sequence))
}

// SetInputCount must be called once, after NewLegacySigHash and before the first AddInput, to
// write the input count.
func (h *LegacySigHash) SetInputCount(n uint64) {
	writeVarInt(&h.buf, n)
}

// SetOutputCount marks the transition from the inputs section to the outputs section.
func (h *LegacySigHash) SetOutputCount(n uint64) {
	writeVarInt(&h.buf, n)
}

// AddOutput feeds one compiled output of the transaction being signed.
func (h *LegacySigHash) AddOutput(amount uint64, script []byte) {
	h.buf.Write(serializeOutputBytes(amount, script))
}

// Finalize writes the lock_time and sighash type footer and returns the double-SHA256 digest that
// gets passed to ECDSA signing.
func (h *LegacySigHash) Finalize(sigHashType uint32) [32]byte {
	writeUint32LE(&h.buf, h.lockTime)
	writeUint32LE(&h.buf, sigHashType)

	first := sha256.Sum256(h.buf.Bytes())
	return sha256.Sum256(first[:])
}
