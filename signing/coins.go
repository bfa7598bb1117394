package signing

import "fmt"

// CoinParams carries the per-coin constants the state machine needs: which address version byte
// to encode P2PKH outputs with, the network's amount formatting, and the fee ceiling used to
// decide whether the fee needs an extra confirmation prompt.
type CoinParams struct {
	Name string

	// AddressType is the base58 version byte prefixing P2PKH addresses on this coin's network.
	AddressType byte

	// Decimals is the number of digits after the decimal point when formatting an amount, e.g.
	// 8 for bitcoin (amounts are satoshis).
	Decimals int

	// MaxFeeKB is the maximum fee, in the coin's smallest unit, tolerated per estimated kilobyte
	// of transaction size before the fee requires its own confirmation prompt.
	MaxFeeKB uint64
}

var (
	// BitcoinMainNet mirrors the values coins.c ships for BTC mainnet.
	BitcoinMainNet = CoinParams{
		Name:        "Bitcoin",
		AddressType: 0x00,
		Decimals:    8,
		MaxFeeKB:    100000, // 0.001 BTC/kB
	}

	// BitcoinTestNet mirrors the values coins.c ships for BTC testnet.
	BitcoinTestNet = CoinParams{
		Name:        "Testnet",
		AddressType: 0x6f,
		Decimals:    8,
		MaxFeeKB:    100000,
	}
)

// EstimateSizeKB approximates a legacy transaction's size, in kilobytes rounded up, using the
// conventional per-input/per-output weights (148 bytes per P2PKH input, 34 bytes per P2PKH
// output, 10 bytes of fixed overhead). It exists only to gate the fee confirmation prompt, not to
// produce an authoritative size.
func EstimateSizeKB(inputsCount, outputsCount uint32) uint64 {
	size := uint64(inputsCount)*148 + uint64(outputsCount)*34 + 10
	kb := size / 1000
	if size%1000 != 0 {
		kb++
	}
	if kb == 0 {
		kb = 1
	}
	return kb
}

// FormatAmount renders a satoshi-denominated amount in the coin's display units.
func (c CoinParams) FormatAmount(amount uint64) string {
	scale := uint64(1)
	for i := 0; i < c.Decimals; i++ {
		scale *= 10
	}
	whole := amount / scale
	frac := amount % scale
	return fmt.Sprintf("%d.%0*d %s", whole, c.Decimals, frac, c.Name)
}
