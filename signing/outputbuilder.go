package signing

import "bytes"

// outputVersion and outputLockTime are the only version and lock_time values the device ever
// produces for a transaction it signs. They are firmware constants, not host-supplied fields;
// compare TxMeta, which only describes previous transactions being re-verified.
const (
	outputVersion  uint32 = 1
	outputLockTime uint32 = 0
)

// TxBuilder produces the serialized bytes of the transaction being signed, handed back to the
// host in TxRequestSerialized.SerializedTx chunks as each input or output is finalized. Each Emit
// call returns a fresh chunk; the builder itself keeps only the header flag and counts, not the
// bytes already emitted.
type TxBuilder struct {
	headerWritten bool
	inputsLen     uint64
	outputsLen    uint64
	outputsEmitted uint64
	buf           bytes.Buffer
}

// NewTxBuilder starts a builder for a transaction with the given input and output counts.
func NewTxBuilder(inputsLen, outputsLen uint64) *TxBuilder {
	return &TxBuilder{inputsLen: inputsLen, outputsLen: outputsLen}
}

func (b *TxBuilder) writeHeader() []byte {
	if b.headerWritten {
		return nil
	}
	var hdr bytes.Buffer
	writeUint32LE(&hdr, outputVersion)
	writeVarInt(&hdr, b.inputsLen)
	b.headerWritten = true
	return hdr.Bytes()
}

// EmitInput returns the serialized bytes for one finished input (with its script_sig filled in),
// prefixed by the transaction header on the very first call.
func (b *TxBuilder) EmitInput(prevHash [32]byte, prevIndex uint32, scriptSig []byte, sequence uint32) []byte {
	out := b.writeHeader()
	out = append(out, serializeInputBytes(prevHash, prevIndex, scriptSig, sequence)...)
	return out
}

// EmitOutput returns the serialized bytes for one compiled output, prefixed by the outputs-count
// varint on the first call and followed by the lock_time footer once the declared output count
// has been reached.
func (b *TxBuilder) EmitOutput(amount uint64, script []byte) []byte {
	var out []byte
	if b.outputsEmitted == 0 {
		var hdr bytes.Buffer
		writeVarInt(&hdr, b.outputsLen)
		out = append(out, hdr.Bytes()...)
	}
	b.outputsEmitted++
	out = append(out, serializeOutputBytes(amount, script)...)

	if b.outputsEmitted == b.outputsLen {
		var footer bytes.Buffer
		writeUint32LE(&footer, outputLockTime)
		out = append(out, footer.Bytes()...)
	}
	return out
}
