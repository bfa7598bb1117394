package signing

import (
	"github.com/tokenized/signcore/bitcoin"

	"github.com/pkg/errors"
)

// CompileOutput turns a host-declared output into its compiled, wire-ready form: a locking script
// plus the amount to place in it. A PAYTOMULTISIG output compiles to the bare OP_CHECKMULTISIG
// redeem script directly (this repertoire never wraps multisig outputs in P2SH — see SPEC_FULL.md
// for why no teacher template covers this case). A PAYTOADDRESS output compiles from the declared
// address string if present, or otherwise derives the address from AddressN under root (the usual
// shape for a change output, which carries a path instead of a string).
//
// The returned display string is the destination to show on the confirmation prompt for
// non-change outputs (the caller does not prompt for change outputs). It is the address string for
// PAYTOADDRESS outputs and empty for PAYTOMULTISIG outputs.
func CompileOutput(out *TxOutputType, root bitcoin.ExtendedKey, net bitcoin.Network) (*TxOutputBinType, string, error) {
	switch out.ScriptType {
	case OutputScriptTypePayToMultisig:
		if out.Multisig == nil {
			return nil, "", newFailure(FailureOther, "Multisig info not provided")
		}
		script, err := MultisigRedeemScript(out.Multisig)
		if err != nil {
			return nil, "", err
		}
		return &TxOutputBinType{Amount: out.Amount, Script: script}, "", nil

	case OutputScriptTypePayToAddress:
		if len(out.Address) > 0 {
			script, err := PayToAddressLockingScript(out.Address)
			if err != nil {
				return nil, "", err
			}
			return &TxOutputBinType{Amount: out.Amount, Script: script}, out.Address, nil
		}

		if len(out.AddressN) == 0 {
			return nil, "", newFailure(FailureOther, "Failed to compile output")
		}
		child, err := root.ChildKeyForPath(out.AddressN)
		if err != nil {
			return nil, "", errors.Wrap(err, "derive output key")
		}
		raw, err := child.RawAddress()
		if err != nil {
			return nil, "", errors.Wrap(err, "derived raw address")
		}
		script, err := raw.LockingScript()
		if err != nil {
			return nil, "", errors.Wrap(err, "locking script")
		}
		addr := bitcoin.NewAddressFromRawAddress(raw, net)
		return &TxOutputBinType{Amount: out.Amount, Script: script}, addr.String(), nil

	default:
		return nil, "", newFailure(FailureOther, "Failed to compile output")
	}
}
