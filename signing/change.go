package signing

import (
	"bytes"
	"crypto/sha256"
)

// ChangeDetector decides whether an output the host declared belongs back to the wallet signing
// the transaction, in which case it is excluded from the amount the user is asked to confirm.
//
// A multisig output is change when it reduces to the same redeem-script fingerprint every
// multisig input of the transaction shares. A single-sig output is change when it carries a
// derivation path and either no address-type hint at all, or an explicit CHANGE hint. This
// mirrors the two branches of compile_output's is_change handling in the original firmware
// exactly, including the firmware's conservative rule that mixing a non-multisig input into an
// otherwise-multisig transaction permanently disables multisig change recognition.
type ChangeDetector struct {
	multisigFPSet    bool
	multisigFP       [32]byte
	multisigMismatch bool
}

// NewChangeDetector builds a fresh, empty change detector for one signing session.
func NewChangeDetector() *ChangeDetector {
	return &ChangeDetector{}
}

// ObserveInput folds one input of the transaction being signed into the running multisig
// fingerprint. Every input must be observed, in order, before any output is classified: a
// non-multisig input anywhere in the transaction disables multisig change recognition for the
// whole session, and a multisig input whose fingerprint disagrees with an earlier one does the
// same (rather than aborting the session — a wallet with inconsistent multisig participants is
// still free to sign, it just never gets the change output auto-hidden).
func (d *ChangeDetector) ObserveInput(scriptType InputScriptType, m *MultisigRedeemScriptType) error {
	if scriptType != InputScriptTypeSpendMultisig {
		d.multisigMismatch = true
		return nil
	}
	if m == nil || d.multisigMismatch {
		return nil
	}
	if len(m.PubKeys) == 0 || m.Required <= 0 || m.Required > len(m.PubKeys) {
		return newFailure(FailureOther, "Error computing multisig fingerprint")
	}

	fp := MultisigFingerprint(m)
	if !d.multisigFPSet {
		d.multisigFP = fp
		d.multisigFPSet = true
		return nil
	}
	if !bytes.Equal(fp[:], d.multisigFP[:]) {
		d.multisigMismatch = true
	}
	return nil
}

// MultisigFingerprint hashes the sorted set of a redeem script's public keys together with the
// required signature count, so that reordering signature slots between Phase 1 and Phase 2, or
// across inputs of the same wallet, never changes the fingerprint.
func MultisigFingerprint(m *MultisigRedeemScriptType) [32]byte {
	keys := make([][]byte, len(m.PubKeys))
	for i, pk := range m.PubKeys {
		keys[i] = pk.Bytes()
	}
	sortByteSlices(keys)

	buf := &bytes.Buffer{}
	buf.WriteByte(byte(m.Required))
	for _, k := range keys {
		buf.Write(k)
	}
	return sha256.Sum256(buf.Bytes())
}

func sortByteSlices(s [][]byte) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && bytes.Compare(s[j-1], s[j]) > 0; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// validateOutputAddressType rejects a malformed combination of AddressType/Address/AddressN
// fields before classification runs, matching check_valid_output_address in the original
// firmware: a SPEND output must carry an address string, while TRANSFER and CHANGE outputs must
// carry a derivation path. Anything else is reported as a malformed output. Only called when the
// host actually sets HasAddressType.
func validateOutputAddressType(out *TxOutputType) error {
	switch out.AddressType {
	case OutputAddressTypeSpend:
		if len(out.Address) == 0 {
			return newFailure(FailureOther, "Invalid output address type")
		}
	case OutputAddressTypeTransfer, OutputAddressTypeChange:
		if len(out.AddressN) == 0 {
			return newFailure(FailureOther, "Invalid output address type")
		}
	default:
		return newFailure(FailureOther, "Invalid output address type")
	}
	return nil
}

// IsChange reports whether a declared output belongs to the signing wallet.
func (d *ChangeDetector) IsChange(out *TxOutputType) (bool, error) {
	if out.ScriptType == OutputScriptTypePayToMultisig && out.Multisig != nil &&
		d.multisigFPSet && !d.multisigMismatch {
		fp := MultisigFingerprint(out.Multisig)
		return bytes.Equal(fp[:], d.multisigFP[:]), nil
	}

	if out.HasAddressType {
		if err := validateOutputAddressType(out); err != nil {
			return false, err
		}
		isChange := out.ScriptType == OutputScriptTypePayToAddress && len(out.AddressN) > 0 &&
			out.AddressType == OutputAddressTypeChange
		return isChange, nil
	}

	return out.ScriptType == OutputScriptTypePayToAddress && len(out.AddressN) > 0, nil
}
