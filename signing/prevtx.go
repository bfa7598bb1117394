package signing

import (
	"bytes"

	"github.com/tokenized/signcore/bitcoin"

	"github.com/pkg/errors"
)

// PrevTxVerifier re-streams a previous transaction declared by the host (Stage 2) and checks that
// its double-SHA256 equals the prev_hash the corresponding input claims to spend. It also picks
// off the amount of the single output the current input actually references, which becomes part
// of to_spend.
type PrevTxVerifier struct {
	hasher       *TxHasher
	prevIndex    uint32
	inputsCount  uint32
	outputsCount uint32
	spentValue   uint64
	foundSpent   bool
}

// NewPrevTxVerifier starts verification of a previous transaction whose shape was just declared
// by a TXMETA ack, for the input referencing output index prevIndex.
func NewPrevTxVerifier(meta TxMeta, prevIndex uint32) *PrevTxVerifier {
	return &PrevTxVerifier{
		hasher:       NewTxHasher(meta.Version, uint64(meta.InputsCount), uint64(meta.OutputsCount), meta.LockTime),
		prevIndex:    prevIndex,
		inputsCount:  meta.InputsCount,
		outputsCount: meta.OutputsCount,
	}
}

// AddInput feeds one of the previous transaction's own inputs into the rehash.
func (v *PrevTxVerifier) AddInput(in *TxInputType) error {
	if err := v.hasher.SerializeInput(in.PrevHash, in.PrevIndex, in.ScriptSig, in.Sequence); err != nil {
		return errors.Wrap(err, "serialize prev input")
	}
	return nil
}

// AddOutput feeds one of the previous transaction's compiled outputs into the rehash, capturing
// its value if its index is the one the current input spends.
func (v *PrevTxVerifier) AddOutput(index uint32, bin *TxOutputBinType) error {
	if err := v.hasher.SerializeOutput(bin.Amount, bin.Script); err != nil {
		return errors.Wrap(err, "serialize prev output")
	}
	if index == v.prevIndex {
		v.spentValue = bin.Amount
		v.foundSpent = true
	}
	return nil
}

// Finish finalizes the rehash and compares it against the input's declared prev_hash. On success
// it returns the satoshi value of the output being spent.
func (v *PrevTxVerifier) Finish(declared bitcoin.Hash32) (uint64, error) {
	sum, err := v.hasher.Finalize(true)
	if err != nil {
		return 0, errors.Wrap(err, "finalize prev tx hash")
	}
	if !bytes.Equal(sum[:], declared.Bytes()) {
		return 0, newFailure(FailureOther, "Encountered invalid prevhash")
	}
	if !v.foundSpent {
		return 0, newFailure(FailureOther, "prev_index not found in previous transaction outputs")
	}
	return v.spentValue, nil
}
