package signing

import (
	"github.com/tokenized/signcore/bitcoin"
)

// Stage names one position in the eight-stage request/response dialogue. The order below is
// exactly the order the original firmware's state machine visits them in; Session.stage advances
// forward except where a per-input loop starts over: back to StageRequestInput for the next input in
// phase 1, and back to StageRequestSignInput for the next input to sign in phase 2.
type Stage int

const (
	StageRequestInput Stage = iota
	StageRequestPrevMeta
	StageRequestPrevInput
	StageRequestPrevOutput
	StageRequestOutput
	StageRequestSignInput
	StageRequestSignOutput
	StageRequestFinalOutput
)

// ProgressFunc is called at session start (Init), every 20 acks (the count restarts after each
// signature), after each accepted output prompt, after an accepted fee prompt, after the accepted
// total prompt that opens signing, and after each signed input. It has no effect on protocol
// correctness; a nil ProgressFunc is silently skipped.
type ProgressFunc func()

// Session holds everything the signing dialogue needs to survive between one TxAck and the next.
// It is a flat struct of scalars and accumulators: the only input it keeps across the whole input
// or output sweep is one TxInputType (the "latched" input being processed). Its memory use is not
// fixed, though: TxChecksum and LegacySigHash keep every byte fed to them in a buffer until
// Finalize, so those two grow with the size of the transaction.
//
// Session is not safe for concurrent use. It processes exactly one Ack call at a time, the same
// way the original firmware's single-threaded event loop does.
type Session struct {
	coin     CoinParams
	root     bitcoin.ExtendedKey
	net      bitcoin.Network
	confirm  Confirmer
	progress ProgressFunc

	inputsCount  uint32
	outputsCount uint32

	stage Stage
	idx1  uint32 // outer loop cursor: current input or output (phase 1), input being signed (phase 2), or output (phase 3)
	idx2  uint32 // inner loop cursor: current previous-tx element (phase 1), or current input or output of phase 2's re-stream

	toSpend     uint64
	spending    uint64
	changeSpend uint64
	changeSet   bool

	signing bool

	ackCount int

	change *ChangeDetector
	signer *Signer

	checksum     *TxChecksum
	checksumWant [32]byte

	prevVerifier *PrevTxVerifier

	signHash *LegacySigHash

	builder *TxBuilder

	// latched is the one input the signing sweep (phase 2) is currently producing a signature
	// for; it must survive the whole inner re-stream of all N inputs before the signature for it
	// can be computed and emitted.
	latched *TxInputType

	latchedPrivKey bitcoin.Key
	latchedPubKey  bitcoin.PublicKey
}

// NewSession constructs a session for a transaction with the given shape, ready for Init.
func NewSession(coin CoinParams, root bitcoin.ExtendedKey, net bitcoin.Network, confirm Confirmer, progress ProgressFunc) *Session {
	if confirm == nil {
		confirm = AcceptAllConfirmer{}
	}
	return &Session{
		coin:     coin,
		root:     root,
		net:      net,
		confirm:  confirm,
		progress: progress,
	}
}

func (s *Session) tick() {
	s.ackCount++
	if s.ackCount == 20 {
		s.ackCount = 0
		s.fireProgress()
	}
}

func (s *Session) fireProgress() {
	if s.progress != nil {
		s.progress()
	}
}

// Clear wipes the session's accumulated key material and marks it no longer signing. It is called
// on every terminating path — success, abort, or failure — matching signing_abort in the original
// firmware. Go cannot guarantee memory is actually scrubbed the way a microcontroller's explicit
// memset can, so this is a best-effort hygiene measure, not a security boundary.
func (s *Session) Clear() {
	s.signing = false
	s.latched = nil
	s.latchedPrivKey = bitcoin.Key{}
	s.latchedPubKey = bitcoin.PublicKey{}
}
