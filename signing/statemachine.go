package signing

import (
	"bytes"
	"context"

	"github.com/tokenized/signcore/bitcoin"
	"github.com/tokenized/signcore/logger"
)

// Init starts a signing session for a transaction with the given number of inputs and outputs and
// returns the first request: the host's declaration of input 0. It corresponds to signing_init in
// the original firmware.
func (s *Session) Init(ctx context.Context, inputsCount, outputsCount uint32) *TxRequest {
	s.inputsCount = inputsCount
	s.outputsCount = outputsCount
	s.idx1 = 0
	s.idx2 = 0
	s.toSpend = 0
	s.spending = 0
	s.changeSpend = 0
	s.changeSet = false
	s.signing = true
	s.ackCount = 0

	s.change = NewChangeDetector()
	s.signer = NewSigner(s.root, s.net)
	s.checksum = NewTxChecksum(inputsCount, outputsCount, outputVersion, outputLockTime)
	s.builder = NewTxBuilder(uint64(inputsCount), uint64(outputsCount))

	logger.Info(ctx, "Starting signing session: %d inputs, %d outputs", inputsCount, outputsCount)
	s.fireProgress()
	s.stage = StageRequestInput
	return reqInput(s.idx1)
}

// Abort tears down the session. Safe to call at any time, including when no session is active.
func (s *Session) Abort(ctx context.Context) {
	logger.Info(ctx, "Signing session aborted")
	s.Clear()
}

// Ack advances the dialogue by one message, mirroring signing_txack. It returns either the next
// TxRequest or a terminal Failure; once a Failure is returned the session is cleared and Ack must
// not be called again without a new Init.
func (s *Session) Ack(ctx context.Context, ack *TxAck) (*TxRequest, *Failure) {
	if !s.signing {
		return nil, newFailure(FailureUnexpectedMessage, "Not in Signing mode")
	}
	s.tick()

	switch s.stage {
	case StageRequestInput:
		return s.ackInput(ctx, ack)
	case StageRequestPrevMeta:
		return s.ackPrevMeta(ctx, ack)
	case StageRequestPrevInput:
		return s.ackPrevInput(ctx, ack)
	case StageRequestPrevOutput:
		return s.ackPrevOutput(ctx, ack)
	case StageRequestOutput:
		return s.ackOutput(ctx, ack)
	case StageRequestSignInput:
		return s.ackSignInput(ctx, ack)
	case StageRequestSignOutput:
		return s.ackSignOutput(ctx, ack)
	case StageRequestFinalOutput:
		return s.ackFinalOutput(ctx, ack)
	default:
		return s.fail(ctx, FailureOther, "Signing error")
	}
}

func (s *Session) fail(ctx context.Context, kind FailureKind, format string, args ...interface{}) (*TxRequest, *Failure) {
	f := newFailure(kind, format, args...)
	logger.Warn(ctx, "Signing failed: %s", f.Error())
	s.Clear()
	return nil, f
}

// --- Phase 1: inspect each input and its previous transaction -------------------------------

func (s *Session) ackInput(ctx context.Context, ack *TxAck) (*TxRequest, *Failure) {
	in := ack.Input
	if in == nil {
		return s.fail(ctx, FailureOther, "Expected input")
	}
	if err := s.change.ObserveInput(in.ScriptType, in.Multisig); err != nil {
		return s.fail(ctx, FailureOther, "%s", err)
	}
	s.checksum.AddInput(in)
	s.latched = in

	s.stage = StageRequestPrevMeta
	return reqPrevMeta(in.PrevHash), nil
}

func (s *Session) ackPrevMeta(ctx context.Context, ack *TxAck) (*TxRequest, *Failure) {
	if ack.Meta == nil {
		return s.fail(ctx, FailureOther, "Expected previous transaction metadata")
	}
	s.prevVerifier = NewPrevTxVerifier(*ack.Meta, s.latched.PrevIndex)
	s.idx2 = 0
	s.stage = StageRequestPrevInput
	return reqPrevInput(s.idx2, s.latched.PrevHash), nil
}

func (s *Session) ackPrevInput(ctx context.Context, ack *TxAck) (*TxRequest, *Failure) {
	if ack.Input == nil {
		return s.fail(ctx, FailureOther, "Expected previous transaction input")
	}
	if err := s.prevVerifier.AddInput(ack.Input); err != nil {
		return s.fail(ctx, FailureOther, "Failed to serialize input")
	}
	if s.idx2 < s.prevVerifier.inputsCount-1 {
		s.idx2++
		return reqPrevInput(s.idx2, s.latched.PrevHash), nil
	}
	s.idx2 = 0
	s.stage = StageRequestPrevOutput
	return reqPrevOutput(s.idx2, s.latched.PrevHash), nil
}

func (s *Session) ackPrevOutput(ctx context.Context, ack *TxAck) (*TxRequest, *Failure) {
	if ack.BinOutput == nil {
		return s.fail(ctx, FailureOther, "Expected previous transaction output")
	}
	if err := s.prevVerifier.AddOutput(s.idx2, ack.BinOutput); err != nil {
		return s.fail(ctx, FailureOther, "Failed to serialize output")
	}
	if s.idx2 < s.prevVerifier.outputsCount-1 {
		s.idx2++
		return reqPrevOutput(s.idx2, s.latched.PrevHash), nil
	}

	spent, err := s.prevVerifier.Finish(s.latched.PrevHash)
	if err != nil {
		return s.fail(ctx, FailureOther, "Encountered invalid prevhash")
	}
	s.toSpend += spent

	if s.idx1 < s.inputsCount-1 {
		s.idx1++
		s.stage = StageRequestInput
		return reqInput(s.idx1), nil
	}
	s.idx1 = 0
	s.stage = StageRequestOutput
	return reqOutput(s.idx1), nil
}

// --- Phase 1 continued: inspect and confirm each output ------------------------------------

func (s *Session) ackOutput(ctx context.Context, ack *TxAck) (*TxRequest, *Failure) {
	out := ack.Output
	if out == nil {
		return s.fail(ctx, FailureOther, "Expected output")
	}

	isChange, err := s.change.IsChange(out)
	if err != nil {
		return s.fail(ctx, FailureOther, "%s", err)
	}
	if isChange {
		if s.changeSet {
			return s.fail(ctx, FailureOther, "Only one change output allowed")
		}
		s.changeSpend = out.Amount
		s.changeSet = true
	}
	s.spending += out.Amount

	bin, display, cerr := CompileOutput(out, s.root, s.net)
	if cerr != nil {
		return s.fail(ctx, FailureOther, "%s", cerr)
	}
	if !isChange {
		if !s.confirm.ConfirmOutput(display, out.Amount) {
			return s.fail(ctx, FailureActionCancelled, "Signing cancelled by user")
		}
		s.fireProgress()
	}
	s.checksum.AddOutput(bin)

	if s.idx1 < s.outputsCount-1 {
		s.idx1++
		return reqOutput(s.idx1), nil
	}

	s.checksumWant = s.checksum.Finalize()

	if s.spending > s.toSpend {
		return s.fail(ctx, FailureNotEnoughFunds, "Not enough funds")
	}
	fee := s.toSpend - s.spending
	estKB := EstimateSizeKB(s.inputsCount, s.outputsCount)
	if fee > estKB*s.coin.MaxFeeKB {
		if !s.confirm.ConfirmFee(fee) {
			return s.fail(ctx, FailureActionCancelled, "Fee over threshold. Signing cancelled.")
		}
		s.fireProgress()
	}

	total := s.toSpend - s.changeSpend
	if !s.confirm.ConfirmTotal(total, fee) {
		return s.fail(ctx, FailureActionCancelled, "Signing cancelled by user")
	}
	s.fireProgress()

	logger.Info(ctx, "Outputs confirmed, total %d, fee %d, beginning signing", total, fee)

	s.idx1 = 0
	s.idx2 = 0
	s.stage = StageRequestSignInput
	return reqInput(s.idx2), nil
}

// --- Phase 2: re-stream every input and output once per signature --------------------------

func (s *Session) ackSignInput(ctx context.Context, ack *TxAck) (*TxRequest, *Failure) {
	in := ack.Input
	if in == nil {
		return s.fail(ctx, FailureOther, "Expected input")
	}

	if s.idx2 == 0 {
		s.signHash = NewLegacySigHash(outputVersion, outputLockTime, int(s.idx1), nil)
		s.signHash.SetInputCount(uint64(s.inputsCount))
		s.checksum = NewTxChecksum(s.inputsCount, s.outputsCount, outputVersion, outputLockTime)
	}
	s.checksum.AddInput(in)

	if s.idx2 == s.idx1 {
		latched := *in
		s.latched = &latched

		script, key, err := s.signer.placeholderScript(in.AddressN, in.ScriptType, in.Multisig)
		if err != nil {
			return s.fail(ctx, FailureOther, "%s", err)
		}
		s.latchedPrivKey = key
		s.latchedPubKey = key.PublicKey()
		s.signHash.signerScript = script
	}

	s.signHash.AddInput(int(s.idx2), [32]byte(in.PrevHash), in.PrevIndex, in.Sequence)

	if s.idx2 < s.inputsCount-1 {
		s.idx2++
		return reqInput(s.idx2), nil
	}
	s.idx2 = 0
	s.signHash.SetOutputCount(uint64(s.outputsCount))
	s.stage = StageRequestSignOutput
	return reqOutput(s.idx2), nil
}

func (s *Session) ackSignOutput(ctx context.Context, ack *TxAck) (*TxRequest, *Failure) {
	out := ack.Output
	if out == nil {
		return s.fail(ctx, FailureOther, "Expected output")
	}

	bin, _, err := CompileOutput(out, s.root, s.net)
	if err != nil {
		return s.fail(ctx, FailureOther, "%s", err)
	}
	s.checksum.AddOutput(bin)
	s.signHash.AddOutput(bin.Amount, bin.Script)

	if s.idx2 < s.outputsCount-1 {
		s.idx2++
		return reqOutput(s.idx2), nil
	}

	got := s.checksum.Finalize()
	if !bytes.Equal(got[:], s.checksumWant[:]) {
		return s.fail(ctx, FailureOther, "Transaction has changed during signing")
	}

	digest := s.signHash.Finalize(bitcoin.SigHashAll)
	var digestHash bitcoin.Hash32
	copy(digestHash[:], digest[:])

	sig, serr := s.latchedPrivKey.Sign(digestHash)
	if serr != nil {
		return s.fail(ctx, FailureOther, "Failed to sign input")
	}
	der := sig.Bytes()

	var scriptSig []byte
	if s.latched.ScriptType == InputScriptTypeSpendMultisig {
		if s.latched.Multisig == nil {
			return s.fail(ctx, FailureOther, "Multisig info not provided")
		}
		slot := -1
		for i, pk := range s.latched.Multisig.PubKeys {
			if pk.Equal(s.latchedPubKey) {
				slot = i
				break
			}
		}
		if slot < 0 {
			return s.fail(ctx, FailureOther, "Pubkey not found in multisig script")
		}
		if len(s.latched.Multisig.Signatures) != len(s.latched.Multisig.PubKeys) {
			s.latched.Multisig.Signatures = make([][]byte, len(s.latched.Multisig.PubKeys))
		}
		s.latched.Multisig.Signatures[slot] = der
		scriptSig, serr = MultisigUnlockingScript(s.latched.Multisig)
		if serr != nil {
			return s.fail(ctx, FailureOther, "Failed to serialize multisig script")
		}
	} else {
		var b bytes.Buffer
		sigWithType := append(append([]byte{}, der...), byte(bitcoin.SigHashAll))
		bitcoin.WritePushDataScript(&b, sigWithType)
		bitcoin.WritePushDataScript(&b, s.latchedPubKey.Bytes())
		scriptSig = b.Bytes()
	}

	emitted := s.builder.EmitInput([32]byte(s.latched.PrevHash), s.latched.PrevIndex, scriptSig, s.latched.Sequence)

	resp := &TxRequest{
		Serialized: &TxRequestSerialized{
			HasSignatureIndex: true,
			SignatureIndex:    s.idx1,
			Signature:         der,
			HasSerializedTx:   true,
			SerializedTx:      emitted,
		},
	}

	s.fireProgress()
	s.ackCount = 0
	s.latchedPrivKey = bitcoin.Key{}

	if s.idx1 < s.inputsCount-1 {
		s.idx1++
		s.idx2 = 0
		s.stage = StageRequestSignInput
		resp.RequestType = RequestTypeInput
		resp.Details = &TxRequestDetails{HasRequestIndex: true, RequestIndex: s.idx2}
		return resp, nil
	}

	s.idx1 = 0
	s.stage = StageRequestFinalOutput
	resp.RequestType = RequestTypeOutput
	resp.Details = &TxRequestDetails{HasRequestIndex: true, RequestIndex: s.idx1}
	return resp, nil
}

// --- Phase 3: re-emit every compiled output as final serialized bytes ----------------------

func (s *Session) ackFinalOutput(ctx context.Context, ack *TxAck) (*TxRequest, *Failure) {
	out := ack.Output
	if out == nil {
		return s.fail(ctx, FailureOther, "Expected output")
	}

	bin, _, err := CompileOutput(out, s.root, s.net)
	if err != nil {
		return s.fail(ctx, FailureOther, "Failed to compile output")
	}
	emitted := s.builder.EmitOutput(bin.Amount, bin.Script)

	resp := &TxRequest{
		Serialized: &TxRequestSerialized{
			HasSerializedTx: true,
			SerializedTx:    emitted,
		},
	}

	if s.idx1 < s.outputsCount-1 {
		s.idx1++
		resp.RequestType = RequestTypeOutput
		resp.Details = &TxRequestDetails{HasRequestIndex: true, RequestIndex: s.idx1}
		return resp, nil
	}

	logger.Info(ctx, "Signing session finished")
	resp.RequestType = RequestTypeFinished
	s.Clear()
	return resp, nil
}

// --- request builders -------------------------------------------------------------------------

func reqInput(index uint32) *TxRequest {
	return &TxRequest{
		RequestType: RequestTypeInput,
		Details:     &TxRequestDetails{HasRequestIndex: true, RequestIndex: index},
	}
}

func reqOutput(index uint32) *TxRequest {
	return &TxRequest{
		RequestType: RequestTypeOutput,
		Details:     &TxRequestDetails{HasRequestIndex: true, RequestIndex: index},
	}
}

func reqPrevMeta(txHash bitcoin.Hash32) *TxRequest {
	h := txHash
	return &TxRequest{
		RequestType: RequestTypeMeta,
		Details:     &TxRequestDetails{TxHash: &h},
	}
}

func reqPrevInput(index uint32, txHash bitcoin.Hash32) *TxRequest {
	h := txHash
	return &TxRequest{
		RequestType: RequestTypeInput,
		Details:     &TxRequestDetails{HasRequestIndex: true, RequestIndex: index, TxHash: &h},
	}
}

func reqPrevOutput(index uint32, txHash bitcoin.Hash32) *TxRequest {
	h := txHash
	return &TxRequest{
		RequestType: RequestTypeOutput,
		Details:     &TxRequestDetails{HasRequestIndex: true, RequestIndex: index, TxHash: &h},
	}
}
