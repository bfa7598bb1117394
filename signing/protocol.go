package signing

import (
	"github.com/tokenized/signcore/bitcoin"
)

// RequestType identifies what kind of data a TxRequest is asking the host for.
type RequestType int

const (
	RequestTypeInput RequestType = iota
	RequestTypeOutput
	RequestTypeMeta
	RequestTypeFinished
)

// InputScriptType identifies how an input's previous output is unlocked.
type InputScriptType int

const (
	InputScriptTypeSpendAddress InputScriptType = iota
	InputScriptTypeSpendMultisig
)

// OutputScriptType identifies how an output's value is locked.
type OutputScriptType int

const (
	OutputScriptTypePayToAddress OutputScriptType = iota
	OutputScriptTypePayToMultisig
)

// OutputAddressType is the host's hint about an output's role, used by the change detector's
// derivation path when no multisig fingerprint is available.
type OutputAddressType int

const (
	OutputAddressTypeSpend OutputAddressType = iota
	OutputAddressTypeTransfer
	OutputAddressTypeChange
)

// MultisigRedeemScriptType describes a classic OP_CHECKMULTISIG redeem script: M-of-N public
// keys, with a signature slot per public key that is filled in as the device signs.
type MultisigRedeemScriptType struct {
	Required   int
	PubKeys    []bitcoin.PublicKey
	Signatures [][]byte // parallel to PubKeys; empty entry means "not yet signed"
}

// TxInputType is one ack-streamed input, either of the transaction being signed (Stages 1, 4)
// or of a previous transaction being re-hashed for verification (Stage 2).
type TxInputType struct {
	AddressN   []uint32
	PrevHash   bitcoin.Hash32
	PrevIndex  uint32
	ScriptSig  []byte
	Sequence   uint32
	ScriptType InputScriptType
	Multisig   *MultisigRedeemScriptType
}

// TxOutputType is one ack-streamed output of the transaction being signed (Stage 3).
type TxOutputType struct {
	Address        string
	AddressN       []uint32
	Amount         uint64
	ScriptType     OutputScriptType
	HasAddressType bool
	AddressType    OutputAddressType
	Multisig       *MultisigRedeemScriptType
}

// TxOutputBinType is a compiled output: a locking script ready to serialize, with no further
// host-side ambiguity about its destination. Used both for previous-tx outputs (Stage 2) and for
// compiled outputs of the transaction being signed (Stages 3, 4, 5).
type TxOutputBinType struct {
	Amount uint64
	Script []byte
}

// TxMeta carries the shape of a previous transaction, sent once per input in Stage 2.
type TxMeta struct {
	InputsCount  uint32
	OutputsCount uint32
	Version      uint32
	LockTime     uint32
}

// TxAck is the host's response to a TxRequest. Exactly one of Input, Output, BinOutput, or Meta
// is populated, matching the request_type of the TxRequest it answers.
type TxAck struct {
	Input     *TxInputType
	Output    *TxOutputType
	BinOutput *TxOutputBinType
	Meta      *TxMeta
}

// TxRequestDetails is populated on TXINPUT, TXOUTPUT, and TXMETA requests.
type TxRequestDetails struct {
	HasRequestIndex bool
	RequestIndex    uint32
	TxHash          *bitcoin.Hash32 // set only when requesting data from a previous transaction
}

// TxRequestSerialized carries a finished chunk of the output transaction back to the host.
type TxRequestSerialized struct {
	HasSignatureIndex bool
	SignatureIndex    uint32
	Signature         []byte
	HasSerializedTx   bool
	SerializedTx      []byte
}

// TxRequest is the device's half of the signing dialogue.
type TxRequest struct {
	RequestType RequestType
	Details     *TxRequestDetails
	Serialized  *TxRequestSerialized
}
