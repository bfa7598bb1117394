package signing

import (
	"context"
	"testing"

	"github.com/tokenized/signcore/bitcoin"
)

// scenario bundles together everything a test needs to drive a single-input, single-output
// signing session through the full eight-stage dialogue once.
type scenario struct {
	t       *testing.T
	root    bitcoin.ExtendedKey
	net     bitcoin.Network
	session *Session
}

func newScenario(t *testing.T, confirm Confirmer) *scenario {
	t.Helper()
	root, err := bitcoin.GenerateMasterExtendedKey()
	if err != nil {
		t.Fatalf("GenerateMasterExtendedKey: %v", err)
	}
	net := bitcoin.MainNet
	return &scenario{
		t:       t,
		root:    root,
		net:     net,
		session: NewSession(BitcoinMainNet, root, net, confirm, nil),
	}
}

func lockingScriptFor(t *testing.T, root bitcoin.ExtendedKey, net bitcoin.Network, path []uint32) []byte {
	t.Helper()
	child, err := root.ChildKeyForPath(path)
	if err != nil {
		t.Fatalf("ChildKeyForPath: %v", err)
	}
	raw, err := child.RawAddress()
	if err != nil {
		t.Fatalf("RawAddress: %v", err)
	}
	script, err := raw.LockingScript()
	if err != nil {
		t.Fatalf("LockingScript: %v", err)
	}
	return script
}

// runSimpleSingleInputSingleOutput drives a full session for a transaction with exactly one
// spend-address input (owning path inPath, spending prevAmount) and one spend-address output
// (destination path outPath, amount outAmount), asserting each response's shape along the way. It
// returns the final Serialized chunks collected from Stage 4 and Stage 5, in order.
func runSimpleSingleInputSingleOutput(t *testing.T, s *scenario, inPath, outPath []uint32,
	prevAmount, outAmount uint64) ([][]byte, *Failure) {
	t.Helper()

	var chunks [][]byte

	req := s.session.Init(context.Background(), 1, 1)
	if req.RequestType != RequestTypeInput {
		t.Fatalf("Init: expected RequestTypeInput, got %v", req.RequestType)
	}

	prevScript := lockingScriptFor(t, s.root, s.net, []uint32{9, 9})
	prevInput := &TxInputType{PrevHash: bitcoin.Hash32{0xaa}, Sequence: 0xffffffff}
	prevOutput := &TxOutputBinType{Amount: prevAmount, Script: prevScript}
	prevMeta := TxMeta{InputsCount: 1, OutputsCount: 1, Version: 1, LockTime: 0}
	prevHash := buildPrevTxHash(t, prevMeta, []*TxInputType{prevInput}, []*TxOutputBinType{prevOutput})

	in := &TxInputType{
		AddressN:   inPath,
		PrevHash:   prevHash,
		PrevIndex:  0,
		Sequence:   0xffffffff,
		ScriptType: InputScriptTypeSpendAddress,
	}

	req, fail := s.session.Ack(context.Background(), &TxAck{Input: in})
	if fail != nil {
		return nil, fail
	}
	if req.RequestType != RequestTypeMeta {
		t.Fatalf("expected RequestTypeMeta after input ack, got %v", req.RequestType)
	}

	req, fail = s.session.Ack(context.Background(), &TxAck{Meta: &prevMeta})
	if fail != nil {
		return nil, fail
	}
	if req.RequestType != RequestTypeInput {
		t.Fatalf("expected RequestTypeInput for prev tx input, got %v", req.RequestType)
	}

	req, fail = s.session.Ack(context.Background(), &TxAck{Input: prevInput})
	if fail != nil {
		return nil, fail
	}
	if req.RequestType != RequestTypeOutput {
		t.Fatalf("expected RequestTypeOutput for prev tx output, got %v", req.RequestType)
	}

	req, fail = s.session.Ack(context.Background(), &TxAck{BinOutput: prevOutput})
	if fail != nil {
		return nil, fail
	}
	if req.RequestType != RequestTypeOutput {
		t.Fatalf("expected RequestTypeOutput (spend output) after prev tx verified, got %v", req.RequestType)
	}

	out := &TxOutputType{
		ScriptType:     OutputScriptTypePayToAddress,
		AddressN:       outPath,
		Amount:         outAmount,
		HasAddressType: true,
		AddressType:    OutputAddressTypeTransfer,
	}

	req, fail = s.session.Ack(context.Background(), &TxAck{Output: out})
	if fail != nil {
		return nil, fail
	}
	if req.RequestType != RequestTypeInput {
		t.Fatalf("expected RequestTypeInput to begin Stage 4, got %v", req.RequestType)
	}

	req, fail = s.session.Ack(context.Background(), &TxAck{Input: in})
	if fail != nil {
		return nil, fail
	}
	if req.RequestType != RequestTypeOutput {
		t.Fatalf("expected RequestTypeOutput for Stage 4 output re-stream, got %v", req.RequestType)
	}

	req, fail = s.session.Ack(context.Background(), &TxAck{Output: out})
	if fail != nil {
		return nil, fail
	}
	if req.Serialized == nil || !req.Serialized.HasSignatureIndex {
		t.Fatalf("expected a signature in the Stage 4 response")
	}
	chunks = append(chunks, req.Serialized.SerializedTx)
	if req.RequestType != RequestTypeOutput {
		t.Fatalf("expected RequestTypeOutput to begin Stage 5, got %v", req.RequestType)
	}

	req, fail = s.session.Ack(context.Background(), &TxAck{Output: out})
	if fail != nil {
		return nil, fail
	}
	if req.RequestType != RequestTypeFinished {
		t.Fatalf("expected RequestTypeFinished to end the session, got %v", req.RequestType)
	}
	chunks = append(chunks, req.Serialized.SerializedTx)

	return chunks, nil
}

func TestSingleInputSingleOutputNoChange(t *testing.T) {
	s := newScenario(t, AcceptAllConfirmer{})
	chunks, fail := runSimpleSingleInputSingleOutput(t, s, []uint32{0, 0}, []uint32{1, 0}, 100000, 90000)
	if fail != nil {
		t.Fatalf("unexpected failure: %v", fail)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 serialized chunks, got %d", len(chunks))
	}
	full := append(append([]byte{}, chunks[0]...), chunks[1]...)
	if len(full) == 0 {
		t.Fatal("expected a non-empty serialized transaction")
	}
}

func TestNotEnoughFunds(t *testing.T) {
	s := newScenario(t, AcceptAllConfirmer{})
	_, fail := runSimpleSingleInputSingleOutput(t, s, []uint32{0, 0}, []uint32{1, 0}, 1000, 90000)
	if fail == nil {
		t.Fatal("expected a failure when spending more than the inputs provide")
	}
	if fail.Kind != FailureNotEnoughFunds {
		t.Errorf("expected FailureNotEnoughFunds, got %v", fail.Kind)
	}
}

func TestFeeOverThresholdPromptsAndCanBeDeclined(t *testing.T) {
	confirm := &ScriptedConfirmer{
		Outputs: []bool{true},
		Fee:     []bool{false},
		Total:   []bool{true},
	}
	s := newScenario(t, confirm)
	// EstimateSizeKB(1,1) == 1 KB, BitcoinMainNet.MaxFeeKB == 100000, so a fee of 200000 exceeds
	// the threshold and must trigger ConfirmFee.
	_, fail := runSimpleSingleInputSingleOutput(t, s, []uint32{0, 0}, []uint32{1, 0}, 300000, 100000)
	if fail == nil {
		t.Fatal("expected signing to be cancelled when the fee prompt is declined")
	}
	if fail.Kind != FailureActionCancelled {
		t.Errorf("expected FailureActionCancelled, got %v", fail.Kind)
	}
	found := false
	for _, c := range confirm.Calls {
		if c == "fee" {
			found = true
		}
	}
	if !found {
		t.Error("expected ConfirmFee to have been called")
	}
}

func TestFeeOverThresholdAcceptedSucceeds(t *testing.T) {
	confirm := &ScriptedConfirmer{
		Outputs: []bool{true},
		Fee:     []bool{true},
		Total:   []bool{true},
	}
	s := newScenario(t, confirm)
	_, fail := runSimpleSingleInputSingleOutput(t, s, []uint32{0, 0}, []uint32{1, 0}, 300000, 100000)
	if fail != nil {
		t.Fatalf("unexpected failure: %v", fail)
	}
}

func TestOutputConfirmationDeclinedCancelsSigning(t *testing.T) {
	confirm := &ScriptedConfirmer{Outputs: []bool{false}}
	s := newScenario(t, confirm)
	_, fail := runSimpleSingleInputSingleOutput(t, s, []uint32{0, 0}, []uint32{1, 0}, 100000, 90000)
	if fail == nil {
		t.Fatal("expected signing to be cancelled when the output prompt is declined")
	}
	if fail.Kind != FailureActionCancelled {
		t.Errorf("expected FailureActionCancelled, got %v", fail.Kind)
	}
}

func TestBadPrevHashIsRejected(t *testing.T) {
	s := newScenario(t, AcceptAllConfirmer{})

	s.session.Init(context.Background(), 1, 1)

	in := &TxInputType{
		AddressN:   []uint32{0, 0},
		PrevHash:   bitcoin.Hash32{0x01, 0x02, 0x03},
		PrevIndex:  0,
		Sequence:   0xffffffff,
		ScriptType: InputScriptTypeSpendAddress,
	}
	req, fail := s.session.Ack(context.Background(), &TxAck{Input: in})
	if fail != nil {
		t.Fatalf("unexpected failure on input ack: %v", fail)
	}
	_ = req

	meta := TxMeta{InputsCount: 1, OutputsCount: 1, Version: 1, LockTime: 0}
	req, fail = s.session.Ack(context.Background(), &TxAck{Meta: &meta})
	if fail != nil {
		t.Fatalf("unexpected failure on meta ack: %v", fail)
	}
	_ = req

	req, fail = s.session.Ack(context.Background(), &TxAck{Input: &TxInputType{PrevHash: bitcoin.Hash32{0xff}, Sequence: 0xffffffff}})
	if fail != nil {
		t.Fatalf("unexpected failure on prev input ack: %v", fail)
	}
	_ = req

	// The declared prev_hash does not match what this (unrelated) previous transaction actually
	// hashes to.
	_, fail = s.session.Ack(context.Background(), &TxAck{BinOutput: &TxOutputBinType{Amount: 1000, Script: []byte{0x01}}})
	if fail == nil {
		t.Fatal("expected a failure when the declared prevhash does not match the rehash")
	}
}

func TestTamperDetectedBetweenPhases(t *testing.T) {
	s := newScenario(t, AcceptAllConfirmer{})

	s.session.Init(context.Background(), 1, 1)

	prevScript := lockingScriptFor(t, s.root, s.net, []uint32{9, 9})
	prevInput := &TxInputType{PrevHash: bitcoin.Hash32{0xaa}, Sequence: 0xffffffff}
	prevOutput := &TxOutputBinType{Amount: 100000, Script: prevScript}
	prevMeta := TxMeta{InputsCount: 1, OutputsCount: 1, Version: 1, LockTime: 0}
	prevHash := buildPrevTxHash(t, prevMeta, []*TxInputType{prevInput}, []*TxOutputBinType{prevOutput})

	in := &TxInputType{
		AddressN:   []uint32{0, 0},
		PrevHash:   prevHash,
		PrevIndex:  0,
		Sequence:   0xffffffff,
		ScriptType: InputScriptTypeSpendAddress,
	}

	if _, fail := s.session.Ack(context.Background(), &TxAck{Input: in}); fail != nil {
		t.Fatalf("input ack: %v", fail)
	}
	if _, fail := s.session.Ack(context.Background(), &TxAck{Meta: &prevMeta}); fail != nil {
		t.Fatalf("meta ack: %v", fail)
	}
	if _, fail := s.session.Ack(context.Background(), &TxAck{Input: prevInput}); fail != nil {
		t.Fatalf("prev input ack: %v", fail)
	}
	if _, fail := s.session.Ack(context.Background(), &TxAck{BinOutput: prevOutput}); fail != nil {
		t.Fatalf("prev output ack: %v", fail)
	}

	out := &TxOutputType{
		ScriptType:     OutputScriptTypePayToAddress,
		AddressN:       []uint32{1, 0},
		Amount:         90000,
		HasAddressType: true,
		AddressType:    OutputAddressTypeTransfer,
	}
	if _, fail := s.session.Ack(context.Background(), &TxAck{Output: out}); fail != nil {
		t.Fatalf("output ack: %v", fail)
	}
	if _, fail := s.session.Ack(context.Background(), &TxAck{Input: in}); fail != nil {
		t.Fatalf("stage 4 input ack: %v", fail)
	}

	// Re-declare the same output with a different amount during Stage 4: the checksum computed
	// from this second pass will no longer match the one recorded at the end of Stage 3.
	tampered := &TxOutputType{
		ScriptType:     OutputScriptTypePayToAddress,
		AddressN:       []uint32{1, 0},
		Amount:         1,
		HasAddressType: true,
		AddressType:    OutputAddressTypeTransfer,
	}
	_, fail := s.session.Ack(context.Background(), &TxAck{Output: tampered})
	if fail == nil {
		t.Fatal("expected a failure when the output changes between Stage 3 and Stage 4")
	}
	if fail.Kind != FailureOther {
		t.Errorf("expected FailureOther, got %v", fail.Kind)
	}
}

func TestAckRejectedWhenNotSigning(t *testing.T) {
	s := newScenario(t, AcceptAllConfirmer{})
	_, fail := s.session.Ack(context.Background(), &TxAck{Input: &TxInputType{}})
	if fail == nil {
		t.Fatal("expected a failure when Ack is called before Init")
	}
	if fail.Kind != FailureUnexpectedMessage {
		t.Errorf("expected FailureUnexpectedMessage, got %v", fail.Kind)
	}
}

// TestOneInputTwoOutputsWithChange drives a 1-in/2-out transaction through the full dialogue:
// one external payment plus one change output returning to the wallet's own derivation path. It
// exercises the output-loop cursors (idx1 in ackOutput/ackFinalOutput, idx2 in ackSignOutput) with
// outputsCount > 1 for the first time, along with change exclusion from the confirmed total.
func TestOneInputTwoOutputsWithChange(t *testing.T) {
	s := newScenario(t, nil)
	confirm := &ScriptedConfirmer{Outputs: []bool{true}, Total: []bool{true}}
	s.session = NewSession(BitcoinMainNet, s.root, s.net, confirm, nil)
	ctx := context.Background()

	req := s.session.Init(ctx, 1, 2)
	if req.RequestType != RequestTypeInput {
		t.Fatalf("Init: expected RequestTypeInput, got %v", req.RequestType)
	}

	prevScript := lockingScriptFor(t, s.root, s.net, []uint32{9, 9})
	prevInput := &TxInputType{PrevHash: bitcoin.Hash32{0xaa}, Sequence: 0xffffffff}
	prevOutput := &TxOutputBinType{Amount: 100000, Script: prevScript}
	prevMeta := TxMeta{InputsCount: 1, OutputsCount: 1, Version: 1, LockTime: 0}
	prevHash := buildPrevTxHash(t, prevMeta, []*TxInputType{prevInput}, []*TxOutputBinType{prevOutput})

	in := &TxInputType{
		AddressN:   []uint32{0, 0},
		PrevHash:   prevHash,
		PrevIndex:  0,
		Sequence:   0xffffffff,
		ScriptType: InputScriptTypeSpendAddress,
	}

	req, fail := s.session.Ack(ctx, &TxAck{Input: in})
	if fail != nil {
		t.Fatalf("input ack: %v", fail)
	}
	if req.RequestType != RequestTypeMeta {
		t.Fatalf("expected RequestTypeMeta after input ack, got %v", req.RequestType)
	}

	req, fail = s.session.Ack(ctx, &TxAck{Meta: &prevMeta})
	if fail != nil {
		t.Fatalf("meta ack: %v", fail)
	}
	if req.RequestType != RequestTypeInput {
		t.Fatalf("expected RequestTypeInput for prev tx input, got %v", req.RequestType)
	}

	req, fail = s.session.Ack(ctx, &TxAck{Input: prevInput})
	if fail != nil {
		t.Fatalf("prev input ack: %v", fail)
	}
	if req.RequestType != RequestTypeOutput {
		t.Fatalf("expected RequestTypeOutput for prev tx output, got %v", req.RequestType)
	}

	req, fail = s.session.Ack(ctx, &TxAck{BinOutput: prevOutput})
	if fail != nil {
		t.Fatalf("prev output ack: %v", fail)
	}
	if req.RequestType != RequestTypeOutput {
		t.Fatalf("expected RequestTypeOutput (output 0) after prev tx verified, got %v", req.RequestType)
	}

	extKey, err := bitcoin.GenerateKey(s.net)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	extRaw, err := extKey.PublicKey().RawAddress()
	if err != nil {
		t.Fatalf("RawAddress: %v", err)
	}
	extAddr := bitcoin.NewAddressFromRawAddress(extRaw, s.net).String()

	// output 0: 70 000 sat to an external address, not change.
	out0 := &TxOutputType{
		ScriptType:     OutputScriptTypePayToAddress,
		Address:        extAddr,
		Amount:         70000,
		HasAddressType: true,
		AddressType:    OutputAddressTypeSpend,
	}
	// output 1: 29 000 sat back to the wallet's own change chain (m/44'/0'/0'/1/0 in spirit).
	out1 := &TxOutputType{
		ScriptType:     OutputScriptTypePayToAddress,
		AddressN:       []uint32{0, 1, 0},
		Amount:         29000,
		HasAddressType: true,
		AddressType:    OutputAddressTypeChange,
	}

	req, fail = s.session.Ack(ctx, &TxAck{Output: out0})
	if fail != nil {
		t.Fatalf("output 0 ack: %v", fail)
	}
	if req.RequestType != RequestTypeOutput {
		t.Fatalf("expected RequestTypeOutput for output 1, got %v", req.RequestType)
	}

	req, fail = s.session.Ack(ctx, &TxAck{Output: out1})
	if fail != nil {
		t.Fatalf("output 1 ack: %v", fail)
	}
	if req.RequestType != RequestTypeInput {
		t.Fatalf("expected RequestTypeInput to begin Stage 4, got %v", req.RequestType)
	}

	outputCalls, feeCalls, totalCalls := 0, 0, 0
	for _, c := range confirm.Calls {
		switch c {
		case "output":
			outputCalls++
		case "fee":
			feeCalls++
		case "total":
			totalCalls++
		}
	}
	if outputCalls != 1 {
		t.Errorf("expected exactly one non-change output confirmation, got %d", outputCalls)
	}
	if feeCalls != 0 {
		t.Errorf("expected no fee confirmation (fee 1000 is under threshold), got %d", feeCalls)
	}
	if totalCalls != 1 {
		t.Errorf("expected exactly one total confirmation, got %d", totalCalls)
	}

	var chunks [][]byte

	req, fail = s.session.Ack(ctx, &TxAck{Input: in})
	if fail != nil {
		t.Fatalf("stage 4 input ack: %v", fail)
	}
	if req.RequestType != RequestTypeOutput {
		t.Fatalf("expected RequestTypeOutput to begin Stage 4 output resweep, got %v", req.RequestType)
	}

	req, fail = s.session.Ack(ctx, &TxAck{Output: out0})
	if fail != nil {
		t.Fatalf("stage 4 output 0 ack: %v", fail)
	}
	if req.RequestType != RequestTypeOutput {
		t.Fatalf("expected RequestTypeOutput for output 1 resweep, got %v", req.RequestType)
	}

	req, fail = s.session.Ack(ctx, &TxAck{Output: out1})
	if fail != nil {
		t.Fatalf("stage 4 output 1 ack: %v", fail)
	}
	if req.Serialized == nil || !req.Serialized.HasSignatureIndex {
		t.Fatal("expected a signature in the Stage 4 response")
	}
	chunks = append(chunks, req.Serialized.SerializedTx)
	if req.RequestType != RequestTypeOutput {
		t.Fatalf("expected RequestTypeOutput to begin Stage 5, got %v", req.RequestType)
	}

	req, fail = s.session.Ack(ctx, &TxAck{Output: out0})
	if fail != nil {
		t.Fatalf("stage 5 output 0 ack: %v", fail)
	}
	if req.RequestType != RequestTypeOutput {
		t.Fatalf("expected RequestTypeOutput for final output 1, got %v", req.RequestType)
	}
	chunks = append(chunks, req.Serialized.SerializedTx)

	req, fail = s.session.Ack(ctx, &TxAck{Output: out1})
	if fail != nil {
		t.Fatalf("stage 5 output 1 ack: %v", fail)
	}
	if req.RequestType != RequestTypeFinished {
		t.Fatalf("expected RequestTypeFinished to end the session, got %v", req.RequestType)
	}
	chunks = append(chunks, req.Serialized.SerializedTx)

	if len(chunks) != 3 {
		t.Fatalf("expected inputsCount+outputsCount == 3 serialized chunks, got %d", len(chunks))
	}
}

// TestTwoInputMultisigOneOutputChange drives spec.md's multisig boundary scenario: two
// SPENDMULTISIG inputs sharing an identical 2-of-3 redeem script, and a single PAYTOMULTISIG
// output with the same fingerprint, which the change detector must recognize as change. Each
// input already carries one co-signer's signature (obtained out of band) in the slot this
// session's root cannot derive; the session must fill its own slot at the correct pubkey index
// for each input without disturbing the other.
func TestTwoInputMultisigOneOutputChange(t *testing.T) {
	s := newScenario(t, nil)
	confirm := &ScriptedConfirmer{Total: []bool{true}}
	s.session = NewSession(BitcoinMainNet, s.root, s.net, confirm, nil)
	ctx := context.Background()

	path0 := []uint32{5, 0}
	path1 := []uint32{5, 1}
	child0, err := s.root.ChildKeyForPath(path0)
	if err != nil {
		t.Fatalf("ChildKeyForPath: %v", err)
	}
	child1, err := s.root.ChildKeyForPath(path1)
	if err != nil {
		t.Fatalf("ChildKeyForPath: %v", err)
	}
	outsider := testPubKeys(t, 1)[0]
	pubKeys := []bitcoin.PublicKey{child0.PublicKey(), child1.PublicKey(), outsider}

	otherSig := []byte{0x30, 0x06, 0x02, 0x01, 0x01, 0x02, 0x01, 0x01}

	m0 := &MultisigRedeemScriptType{
		Required:   2,
		PubKeys:    pubKeys,
		Signatures: [][]byte{nil, nil, otherSig},
	}
	m1 := &MultisigRedeemScriptType{
		Required:   2,
		PubKeys:    pubKeys,
		Signatures: [][]byte{nil, nil, otherSig},
	}
	mOut := &MultisigRedeemScriptType{Required: 2, PubKeys: pubKeys}

	req := s.session.Init(ctx, 2, 1)
	if req.RequestType != RequestTypeInput {
		t.Fatalf("Init: expected RequestTypeInput, got %v", req.RequestType)
	}

	prevScript := lockingScriptFor(t, s.root, s.net, []uint32{9, 9})

	buildPrev := func(amount uint64, seed byte) (*TxInputType, *TxOutputBinType, TxMeta, bitcoin.Hash32) {
		prevInput := &TxInputType{PrevHash: bitcoin.Hash32{seed}, Sequence: 0xffffffff}
		prevOutput := &TxOutputBinType{Amount: amount, Script: prevScript}
		prevMeta := TxMeta{InputsCount: 1, OutputsCount: 1, Version: 1, LockTime: 0}
		prevHash := buildPrevTxHash(t, prevMeta, []*TxInputType{prevInput}, []*TxOutputBinType{prevOutput})
		return prevInput, prevOutput, prevMeta, prevHash
	}

	prevInput0, prevOutput0, prevMeta0, prevHash0 := buildPrev(60000, 0xaa)
	prevInput1, prevOutput1, prevMeta1, prevHash1 := buildPrev(45000, 0xbb)

	in0 := &TxInputType{
		AddressN:   path0,
		PrevHash:   prevHash0,
		PrevIndex:  0,
		Sequence:   0xffffffff,
		ScriptType: InputScriptTypeSpendMultisig,
		Multisig:   m0,
	}
	in1 := &TxInputType{
		AddressN:   path1,
		PrevHash:   prevHash1,
		PrevIndex:  0,
		Sequence:   0xffffffff,
		ScriptType: InputScriptTypeSpendMultisig,
		Multisig:   m1,
	}

	ackInputAndPrevTx := func(in *TxInputType, prevInput *TxInputType, prevOutput *TxOutputBinType,
		prevMeta TxMeta, wantNext RequestType) {
		t.Helper()

		req, fail := s.session.Ack(ctx, &TxAck{Input: in})
		if fail != nil {
			t.Fatalf("input ack: %v", fail)
		}
		if req.RequestType != RequestTypeMeta {
			t.Fatalf("expected RequestTypeMeta after input ack, got %v", req.RequestType)
		}

		req, fail = s.session.Ack(ctx, &TxAck{Meta: &prevMeta})
		if fail != nil {
			t.Fatalf("meta ack: %v", fail)
		}
		if req.RequestType != RequestTypeInput {
			t.Fatalf("expected RequestTypeInput for prev tx input, got %v", req.RequestType)
		}

		req, fail = s.session.Ack(ctx, &TxAck{Input: prevInput})
		if fail != nil {
			t.Fatalf("prev input ack: %v", fail)
		}
		if req.RequestType != RequestTypeOutput {
			t.Fatalf("expected RequestTypeOutput for prev tx output, got %v", req.RequestType)
		}

		req, fail = s.session.Ack(ctx, &TxAck{BinOutput: prevOutput})
		if fail != nil {
			t.Fatalf("prev output ack: %v", fail)
		}
		if req.RequestType != wantNext {
			t.Fatalf("expected %v after prev tx verified, got %v", wantNext, req.RequestType)
		}
	}

	ackInputAndPrevTx(in0, prevInput0, prevOutput0, prevMeta0, RequestTypeInput)
	ackInputAndPrevTx(in1, prevInput1, prevOutput1, prevMeta1, RequestTypeOutput)

	out := &TxOutputType{
		ScriptType: OutputScriptTypePayToMultisig,
		Amount:     100000,
		Multisig:   mOut,
	}

	req, fail := s.session.Ack(ctx, &TxAck{Output: out})
	if fail != nil {
		t.Fatalf("output ack: %v", fail)
	}
	if req.RequestType != RequestTypeInput {
		t.Fatalf("expected RequestTypeInput to begin Stage 4, got %v", req.RequestType)
	}

	for _, c := range confirm.Calls {
		if c == "output" {
			t.Error("the sole output was classified as change and must not prompt ConfirmOutput")
		}
	}

	// Stage 4: re-stream both inputs, deriving and latching the signer for input 0.
	req, fail = s.session.Ack(ctx, &TxAck{Input: in0})
	if fail != nil {
		t.Fatalf("stage 4 input 0 ack: %v", fail)
	}
	if req.RequestType != RequestTypeInput {
		t.Fatalf("expected RequestTypeInput for input 1, got %v", req.RequestType)
	}

	req, fail = s.session.Ack(ctx, &TxAck{Input: in1})
	if fail != nil {
		t.Fatalf("stage 4 input 1 ack: %v", fail)
	}
	if req.RequestType != RequestTypeOutput {
		t.Fatalf("expected RequestTypeOutput to begin Stage 4 output resweep, got %v", req.RequestType)
	}

	req, fail = s.session.Ack(ctx, &TxAck{Output: out})
	if fail != nil {
		t.Fatalf("stage 4 output ack (input 0 signature): %v", fail)
	}
	if req.Serialized == nil || !req.Serialized.HasSignatureIndex || req.Serialized.SignatureIndex != 0 {
		t.Fatal("expected input 0's signature in this response")
	}
	if req.RequestType != RequestTypeInput {
		t.Fatalf("expected RequestTypeInput to begin signing input 1, got %v", req.RequestType)
	}

	if len(m0.Signatures[0]) == 0 {
		t.Error("expected input 0's signature filled at pubkey slot 0")
	}
	if len(m0.Signatures[1]) != 0 {
		t.Error("input 0's signing must not touch slot 1, which belongs to a different input")
	}
	if string(m0.Signatures[2]) != string(otherSig) {
		t.Error("input 0's pre-existing co-signer signature at slot 2 must be left untouched")
	}

	// Stage 4 again: re-stream both inputs, this time latching the signer for input 1.
	req, fail = s.session.Ack(ctx, &TxAck{Input: in0})
	if fail != nil {
		t.Fatalf("stage 4 (round 2) input 0 ack: %v", fail)
	}
	if req.RequestType != RequestTypeInput {
		t.Fatalf("expected RequestTypeInput for input 1, got %v", req.RequestType)
	}

	req, fail = s.session.Ack(ctx, &TxAck{Input: in1})
	if fail != nil {
		t.Fatalf("stage 4 (round 2) input 1 ack: %v", fail)
	}
	if req.RequestType != RequestTypeOutput {
		t.Fatalf("expected RequestTypeOutput to begin Stage 4 output resweep, got %v", req.RequestType)
	}

	req, fail = s.session.Ack(ctx, &TxAck{Output: out})
	if fail != nil {
		t.Fatalf("stage 4 output ack (input 1 signature): %v", fail)
	}
	if req.Serialized == nil || !req.Serialized.HasSignatureIndex || req.Serialized.SignatureIndex != 1 {
		t.Fatal("expected input 1's signature in this response")
	}
	if req.RequestType != RequestTypeOutput {
		t.Fatalf("expected RequestTypeOutput to begin Stage 5, got %v", req.RequestType)
	}

	if len(m1.Signatures[1]) == 0 {
		t.Error("expected input 1's signature filled at pubkey slot 1")
	}
	if len(m1.Signatures[0]) != 0 {
		t.Error("input 1's signing must not touch slot 0, which belongs to a different input")
	}
	if string(m1.Signatures[2]) != string(otherSig) {
		t.Error("input 1's pre-existing co-signer signature at slot 2 must be left untouched")
	}

	// Stage 5: re-emit the sole, change-classified output.
	req, fail = s.session.Ack(ctx, &TxAck{Output: out})
	if fail != nil {
		t.Fatalf("stage 5 output ack: %v", fail)
	}
	if req.RequestType != RequestTypeFinished {
		t.Fatalf("expected RequestTypeFinished to end the session, got %v", req.RequestType)
	}
}

func TestSessionClearedAfterFailure(t *testing.T) {
	s := newScenario(t, AcceptAllConfirmer{})
	s.session.Init(context.Background(), 1, 1)
	_, fail := s.session.Ack(context.Background(), &TxAck{}) // no Input set: malformed ack
	if fail == nil {
		t.Fatal("expected a failure for a malformed ack")
	}
	if s.session.signing {
		t.Error("session should no longer be signing after a failure")
	}
	_, fail = s.session.Ack(context.Background(), &TxAck{Input: &TxInputType{}})
	if fail == nil || fail.Kind != FailureUnexpectedMessage {
		t.Error("expected the cleared session to reject further Acks")
	}
}
