package signing

import (
	"bytes"
	"crypto/sha256"
	"hash"

	"github.com/tokenized/signcore/bitcoin"

	"github.com/pkg/errors"
)

// TxHasher streams a transaction's canonical Bitcoin encoding through SHA-256, header and footer
// included, without ever holding the full transaction in memory. It is a consume-once value: once
// Finalize has run it must not be reused.
//
// The header (version || varint(inputs count)) is written lazily on the first SerializeInput call.
// The outputs-length varint is written lazily on the first SerializeOutput call, marking the
// transition out of the inputs section. Finalize writes whichever of the two has not been written
// yet, so a transaction with no inputs or no outputs still hashes its full encoding.
type TxHasher struct {
	version        uint32
	inputsLen      uint64
	outputsLen     uint64
	lockTime       uint32
	hash           hash.Hash
	headerWritten  bool
	outputsStarted bool
	finalized      bool
}

// NewTxHasher creates a hasher for a transaction shape known up front, matching tx_init in the
// original firmware.
func NewTxHasher(version uint32, inputsLen, outputsLen uint64, lockTime uint32) *TxHasher {
	return &TxHasher{
		version:    version,
		inputsLen:  inputsLen,
		outputsLen: outputsLen,
		lockTime:   lockTime,
		hash:       sha256.New(),
	}
}

func (h *TxHasher) writeHeader() {
	if h.headerWritten {
		return
	}
	buf := &bytes.Buffer{}
	writeUint32LE(buf, h.version)
	writeVarInt(buf, h.inputsLen)
	h.hash.Write(buf.Bytes())
	h.headerWritten = true
}

func (h *TxHasher) writeOutputsHeader() {
	if h.outputsStarted {
		return
	}
	buf := &bytes.Buffer{}
	writeVarInt(buf, h.outputsLen)
	h.hash.Write(buf.Bytes())
	h.outputsStarted = true
}

// SerializeInput feeds one input into the running hash.
func (h *TxHasher) SerializeInput(prevHash bitcoin.Hash32, prevIndex uint32, script []byte,
	sequence uint32) error {
	if h.finalized {
		return errors.New("hasher already finalized")
	}
	h.writeHeader()

	var ph [32]byte
	copy(ph[:], prevHash.Bytes())
	h.hash.Write(serializeInputBytes(ph, prevIndex, script, sequence))
	return nil
}

// SerializeOutput feeds one compiled output into the running hash.
func (h *TxHasher) SerializeOutput(amount uint64, script []byte) error {
	if h.finalized {
		return errors.New("hasher already finalized")
	}
	h.writeOutputsHeader()
	h.hash.Write(serializeOutputBytes(amount, script))
	return nil
}

// Finalize writes the lock_time footer and returns the SHA-256 (or double SHA-256) digest. The
// hasher must not be used again afterward.
func (h *TxHasher) Finalize(double bool) ([32]byte, error) {
	if h.finalized {
		return [32]byte{}, errors.New("hasher already finalized")
	}
	h.finalized = true
	h.writeHeader()
	h.writeOutputsHeader()

	buf := &bytes.Buffer{}
	writeUint32LE(buf, h.lockTime)
	h.hash.Write(buf.Bytes())

	sum := h.hash.Sum(nil)
	if double {
		second := sha256.Sum256(sum)
		return second, nil
	}

	var result [32]byte
	copy(result[:], sum)
	return result, nil
}
