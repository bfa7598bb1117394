package signing

import (
	"bytes"

	"github.com/tokenized/signcore/bitcoin"

	"github.com/pkg/errors"
)

// Signer derives keys under the session's root and produces legacy SIGHASH_ALL signatures for
// the inputs of the transaction being signed. It never holds more than one input's signature
// material in memory at a time; Session.latched carries the one piece of state that must survive
// across the entire Stage 4 sweep (see session.go).
type Signer struct {
	root bitcoin.ExtendedKey
	net  bitcoin.Network
}

// NewSigner builds a signer rooted at the session's master extended key.
func NewSigner(root bitcoin.ExtendedKey, net bitcoin.Network) *Signer {
	return &Signer{root: root, net: net}
}

// deriveKey walks AddressN from the signer's root.
func (s *Signer) deriveKey(addressN []uint32) (bitcoin.Key, error) {
	child, err := s.root.ChildKeyForPath(addressN)
	if err != nil {
		return bitcoin.Key{}, errors.Wrap(err, "derive key")
	}
	return child.Key(s.net), nil
}

// P2PKHUnlockingScript builds the unlocking script for a spend-address input: a DER signature
// with the SIGHASH_ALL byte appended, followed by the compressed public key.
func (s *Signer) P2PKHUnlockingScript(addressN []uint32, sigHash bitcoin.Hash32) ([]byte, error) {
	key, err := s.deriveKey(addressN)
	if err != nil {
		return nil, err
	}
	sig, err := key.Sign(sigHash)
	if err != nil {
		return nil, errors.Wrap(err, "sign")
	}

	buf := &bytes.Buffer{}
	sigBytes := append(sig.Bytes(), byte(bitcoin.SigHashAll))
	if err := bitcoin.WritePushDataScript(buf, sigBytes); err != nil {
		return nil, errors.Wrap(err, "push signature")
	}
	if err := bitcoin.WritePushDataScript(buf, key.PublicKey().Bytes()); err != nil {
		return nil, errors.Wrap(err, "push pubkey")
	}
	return buf.Bytes(), nil
}

// MultisigRedeemScript compiles the classic OP_CHECKMULTISIG template for a redeem script:
//
//	OP_m <pubkey_1> ... <pubkey_n> OP_n OP_CHECKMULTISIG
//
// Public keys are written in the order given; callers (the multisig fingerprint, the change
// detector) are responsible for any canonical ordering they need independently of script order.
func MultisigRedeemScript(m *MultisigRedeemScriptType) ([]byte, error) {
	n := len(m.PubKeys)
	if m.Required <= 0 || m.Required > n || n == 0 || n > 16 {
		return nil, newFailure(FailureOther, "invalid multisig parameters: %d of %d", m.Required, n)
	}

	buf := &bytes.Buffer{}
	buf.WriteByte(smallNumOpCode(m.Required))
	for _, pk := range m.PubKeys {
		if err := bitcoin.WritePushDataScript(buf, pk.Bytes()); err != nil {
			return nil, errors.Wrap(err, "push pubkey")
		}
	}
	buf.WriteByte(smallNumOpCode(n))
	buf.WriteByte(bitcoin.OP_CHECKMULTISIG)
	return buf.Bytes(), nil
}

func smallNumOpCode(n int) byte {
	return bitcoin.OP_1 + byte(n-1)
}

// MultisigUnlockingScript builds the unlocking script for a multisig input once every required
// signature slot has been filled: OP_0 <sig_1> ... <sig_m> <redeem_script>. OP_0 stands in for
// OP_CHECKMULTISIG's well-known off-by-one stack bug.
func MultisigUnlockingScript(m *MultisigRedeemScriptType) ([]byte, error) {
	redeem, err := MultisigRedeemScript(m)
	if err != nil {
		return nil, err
	}

	buf := &bytes.Buffer{}
	buf.WriteByte(bitcoin.OP_FALSE)
	filled := 0
	for _, sig := range m.Signatures {
		if len(sig) == 0 {
			continue
		}
		sigWithType := append(append([]byte{}, sig...), byte(bitcoin.SigHashAll))
		if err := bitcoin.WritePushDataScript(buf, sigWithType); err != nil {
			return nil, errors.Wrap(err, "push signature")
		}
		filled++
	}
	if filled < m.Required {
		return nil, newFailure(FailureOther, "not enough multisig signatures: have %d, need %d",
			filled, m.Required)
	}
	if err := bitcoin.WritePushDataScript(buf, redeem); err != nil {
		return nil, errors.Wrap(err, "push redeem script")
	}
	return buf.Bytes(), nil
}

// SignMultisigInput produces this signer's share of a multisig input's signature and stores it in
// the slot of the first redeem-script public key equal to the key derived from addressN,
// replacing any signature already there. It reports an error
// if none of the redeem script's public keys derive from addressN.
func (s *Signer) SignMultisigInput(addressN []uint32, sigHash bitcoin.Hash32, m *MultisigRedeemScriptType) error {
	key, err := s.deriveKey(addressN)
	if err != nil {
		return err
	}
	pub := key.PublicKey()

	slot := -1
	for i, candidate := range m.PubKeys {
		if candidate.Equal(pub) {
			slot = i
			break
		}
	}
	if slot < 0 {
		return newFailure(FailureOther, "signing key is not part of the multisig redeem script")
	}

	sig, err := key.Sign(sigHash)
	if err != nil {
		return errors.Wrap(err, "sign")
	}
	if len(m.Signatures) != len(m.PubKeys) {
		m.Signatures = make([][]byte, len(m.PubKeys))
	}
	m.Signatures[slot] = sig.Bytes()
	return nil
}

// placeholderScript reconstructs the script that stands in for the spent output's locking script
// in the legacy sighash preimage. Rather than re-fetching the previous transaction's actual
// locking script a second time, it is rebuilt from the signing key itself: a P2PKH script from
// the derived public key's hash for SPENDADDRESS inputs, or the bare redeem script for
// SPENDMULTISIG inputs. This assumes, as the protocol does throughout, that every input this
// signer is asked to sign actually pays to an address or redeem script it can derive.
func (s *Signer) placeholderScript(addressN []uint32, scriptType InputScriptType,
	m *MultisigRedeemScriptType) ([]byte, bitcoin.Key, error) {
	key, err := s.deriveKey(addressN)
	if err != nil {
		return nil, bitcoin.Key{}, newFailure(FailureOther, "Failed to derive private key")
	}

	if scriptType == InputScriptTypeSpendMultisig {
		if m == nil {
			return nil, bitcoin.Key{}, newFailure(FailureOther, "Multisig info not provided")
		}
		script, err := MultisigRedeemScript(m)
		if err != nil {
			return nil, bitcoin.Key{}, err
		}
		return script, key, nil
	}

	pub := key.PublicKey()
	raw, err := pub.RawAddress()
	if err != nil {
		return nil, bitcoin.Key{}, errors.Wrap(err, "derived raw address")
	}
	script, err := raw.LockingScript()
	if err != nil {
		return nil, bitcoin.Key{}, errors.Wrap(err, "locking script")
	}
	return script, key, nil
}

// PayToAddressLockingScript builds the standard P2PKH locking script for a base58 address.
func PayToAddressLockingScript(address string) ([]byte, error) {
	addr, err := bitcoin.DecodeAddress(address)
	if err != nil {
		return nil, newFailure(FailureOther, "invalid address: %s", err)
	}
	raw := bitcoin.NewRawAddressFromAddress(addr)
	script, err := raw.LockingScript()
	if err != nil {
		return nil, errors.Wrap(err, "locking script")
	}
	return script, nil
}
