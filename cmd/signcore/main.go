package main

import (
	"context"
	"os"

	"github.com/tokenized/config"
	"github.com/tokenized/signcore/bitcoin"
	"github.com/tokenized/signcore/logger"
	"github.com/tokenized/signcore/signing"

	"github.com/pkg/errors"
)

// Config carries the one set of tunables a device-level signing session needs: which coin's
// address version and fee ceiling to enforce, and the master key to derive signing keys from.
// Everything else about a session (input/output counts, the transaction itself) arrives over the
// Init/Ack dialogue, not from config.
type Config struct {
	Coin        string  `default:"bitcoin" envconfig:"COIN" json:"coin"`
	MaxFeeKB    uint64  `default:"100000" envconfig:"MAX_FEE_KB" json:"max_fee_kb"`
	MasterKey   string  `envconfig:"MASTER_KEY" json:"master_key" masked:"true"`
	FeeRate     float32 `default:"0.5" envconfig:"FEE_RATE" json:"fee_rate"`
	DustFeeRate float32 `default:"0.25" envconfig:"DUST_FEE_RATE" json:"dust_fee_rate"`
}

func coinParams(cfg *Config) (signing.CoinParams, error) {
	var coin signing.CoinParams
	switch cfg.Coin {
	case "bitcoin":
		coin = signing.BitcoinMainNet
	case "bitcoin-testnet":
		coin = signing.BitcoinTestNet
	default:
		return signing.CoinParams{}, errors.Errorf("unknown coin : %s", cfg.Coin)
	}

	if cfg.MaxFeeKB != 0 {
		coin.MaxFeeKB = cfg.MaxFeeKB
	}
	return coin, nil
}

func main() {
	ctx := logger.ContextWithLogger(context.Background(), true, true, "")

	cfg := &Config{}
	if err := config.LoadConfig(ctx, cfg); err != nil {
		logger.Fatal(ctx, "Failed to load config : %s", err)
	}

	maskedConfig, err := config.MarshalJSONMaskedRaw(cfg)
	if err != nil {
		logger.Fatal(ctx, "Failed to marshal config : %s", err)
	}

	logger.InfoWithFields(ctx, []logger.Field{
		logger.JSON("config", maskedConfig),
	}, "Config")

	coin, err := coinParams(cfg)
	if err != nil {
		logger.Fatal(ctx, "Failed to resolve coin params : %s", err)
	}

	root, err := loadMasterKey(cfg)
	if err != nil {
		logger.Fatal(ctx, "Failed to load master key : %s", err)
	}

	if len(os.Args) < 2 {
		logger.Fatal(ctx, "Not enough arguments. Need command (sign_demo)")
	}

	switch os.Args[1] {
	case "sign_demo":
		SignDemo(ctx, coin, root)
	default:
		logger.Fatal(ctx, "Unknown command : %s", os.Args[1])
	}
}

// loadMasterKey returns the extended key a session derives signing keys from : the configured
// MasterKey if set, otherwise a freshly generated one for local experimentation. A real device
// never generates a throwaway key for its signing sessions; this path only exists so the demo
// command runs without operator-supplied key material.
func loadMasterKey(cfg *Config) (bitcoin.ExtendedKey, error) {
	if cfg.MasterKey != "" {
		return bitcoin.ExtendedKeyFromStr58(cfg.MasterKey)
	}
	return bitcoin.GenerateMasterExtendedKey()
}

// SignDemo drives a single simple input, single simple output transaction through the full
// eight-stage dialogue using an in-process host stub, and logs when the session finishes. It exists
// to exercise the state machine end to end without a real host connection.
func SignDemo(ctx context.Context, coin signing.CoinParams, root bitcoin.ExtendedKey) {
	net := bitcoin.MainNet

	inPath := []uint32{0, 0}
	outPath := []uint32{0, 1}

	inKey, err := root.ChildKeyForPath(inPath)
	if err != nil {
		logger.Fatal(ctx, "Failed to derive input key : %s", err)
	}
	outKey, err := root.ChildKeyForPath(outPath)
	if err != nil {
		logger.Fatal(ctx, "Failed to derive output key : %s", err)
	}
	outAddress, err := outKey.RawAddress()
	if err != nil {
		logger.Fatal(ctx, "Failed to derive output address : %s", err)
	}
	outAddressStr := bitcoin.NewAddressFromRawAddress(outAddress, net).String()

	inLockingScript, err := lockingScriptForKey(inKey)
	if err != nil {
		logger.Fatal(ctx, "Failed to build input locking script : %s", err)
	}

	const prevAmount = uint64(100000)
	const outAmount = uint64(90000)

	// The declared previous-transaction hash is the hash of the one-input, one-output previous
	// transaction the stub streams below, so the session's prev-hash check accepts it.
	prevInputHash := bitcoin.Hash32{0xbb}
	prevHasher := signing.NewTxHasher(1, 1, 1, 0)
	prevHasher.SerializeInput(prevInputHash, 0, nil, 0xffffffff)
	prevHasher.SerializeOutput(prevAmount, inLockingScript)
	prevSum, err := prevHasher.Finalize(true)
	if err != nil {
		logger.Fatal(ctx, "Failed to hash previous transaction : %s", err)
	}
	prevHash := bitcoin.Hash32(prevSum)

	session := signing.NewSession(coin, root, net, signing.AcceptAllConfirmer{}, nil)

	req := session.Init(ctx, 1, 1)
	for req.RequestType != signing.RequestTypeFinished {
		var ack *signing.TxAck
		switch classifyRequest(req) {
		case stageInput:
			ack = &signing.TxAck{Input: &signing.TxInputType{
				AddressN:  inPath,
				PrevHash:  prevHash,
				PrevIndex: 0,
				Sequence:  0xffffffff,
			}}
		case stageMeta:
			ack = &signing.TxAck{Meta: &signing.TxMeta{InputsCount: 1, OutputsCount: 1, Version: 1, LockTime: 0}}
		case stagePrevInput:
			ack = &signing.TxAck{Input: &signing.TxInputType{
				PrevHash: prevInputHash,
				Sequence: 0xffffffff,
			}}
		case stagePrevOutput:
			ack = &signing.TxAck{BinOutput: &signing.TxOutputBinType{Amount: prevAmount, Script: inLockingScript}}
		case stageOutput:
			ack = &signing.TxAck{Output: &signing.TxOutputType{
				Address: outAddressStr,
				Amount:  outAmount,
			}}
		}

		next, fail := session.Ack(ctx, ack)
		if fail != nil {
			logger.Fatal(ctx, "Signing failed : %s", fail.Error())
		}
		req = next
	}

	logger.Info(ctx, "Signing session finished")
}

type stage int

const (
	stageInput stage = iota
	stageMeta
	stagePrevInput
	stagePrevOutput
	stageOutput
)

// classifyRequest classifies a TxRequest into which kind of ack the demo host should send
// next. It exists only for this illustrative driver; a real host tracks this from the request's
// RequestType and Details directly.
func classifyRequest(req *signing.TxRequest) stage {
	switch req.RequestType {
	case signing.RequestTypeInput:
		if req.Details != nil && req.Details.TxHash != nil {
			return stagePrevInput
		}
		return stageInput
	case signing.RequestTypeMeta:
		return stageMeta
	case signing.RequestTypeOutput:
		if req.Details != nil && req.Details.TxHash != nil {
			return stagePrevOutput
		}
		return stageOutput
	}
	return stageOutput
}

func lockingScriptForKey(key bitcoin.ExtendedKey) ([]byte, error) {
	addr, err := key.RawAddress()
	if err != nil {
		return nil, err
	}
	script, err := addr.LockingScript()
	if err != nil {
		return nil, err
	}
	return script, nil
}
