package signing

// Confirmer gates the points in the dialogue where the original firmware would light up the
// device screen and wait for a button press. Production signing sessions use a Confirmer backed
// by the physical display and buttons; tests use one of the two confirmers below.
type Confirmer interface {
	// ConfirmOutput is asked once per non-change output, after Stage 3 has classified it.
	ConfirmOutput(address string, amount uint64) bool
	// ConfirmFee is asked at most once, after all outputs have been seen, with the implied network
	// fee; it is asked only when that fee exceeds EstimateSizeKB times the coin's MaxFeeKB.
	ConfirmFee(fee uint64) bool
	// ConfirmTotal is the final confirmation before Stage 4 begins signing, summarizing the
	// total amount leaving the wallet (the inputs' total minus change, so the fee is included) and
	// the fee.
	ConfirmTotal(spending, fee uint64) bool
}

// AcceptAllConfirmer approves every prompt without hesitation. Useful in tests exercising the
// state machine's data-flow rather than its confirmation gating, and as the default for
// programmatic callers that perform their own policy checks upstream.
type AcceptAllConfirmer struct{}

func (AcceptAllConfirmer) ConfirmOutput(address string, amount uint64) bool { return true }
func (AcceptAllConfirmer) ConfirmFee(fee uint64) bool                      { return true }
func (AcceptAllConfirmer) ConfirmTotal(spending, fee uint64) bool          { return true }

// ScriptedConfirmer replays a fixed sequence of decisions, recording every prompt it was asked so
// a test can assert the session reached the prompts it expected. Each Confirm* call consumes one
// entry from the corresponding script; once a script is exhausted, further calls return false.
type ScriptedConfirmer struct {
	Outputs []bool
	Fee     []bool
	Total   []bool

	Calls []string

	outputIdx int
	feeIdx    int
	totalIdx  int
}

func (c *ScriptedConfirmer) ConfirmOutput(address string, amount uint64) bool {
	c.Calls = append(c.Calls, "output")
	if c.outputIdx >= len(c.Outputs) {
		return false
	}
	v := c.Outputs[c.outputIdx]
	c.outputIdx++
	return v
}

func (c *ScriptedConfirmer) ConfirmFee(fee uint64) bool {
	c.Calls = append(c.Calls, "fee")
	if c.feeIdx >= len(c.Fee) {
		return false
	}
	v := c.Fee[c.feeIdx]
	c.feeIdx++
	return v
}

func (c *ScriptedConfirmer) ConfirmTotal(spending, fee uint64) bool {
	c.Calls = append(c.Calls, "total")
	if c.totalIdx >= len(c.Total) {
		return false
	}
	v := c.Total[c.totalIdx]
	c.totalIdx++
	return v
}
