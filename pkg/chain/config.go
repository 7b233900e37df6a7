package chain

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

const (
	PaymentModeNative = "native"
	PaymentModeToken  = "token"

	nativeDecimals = 18
)

// Config carries everything the verifier needs to know about the chain and
// the expected payment. It is passed in explicitly; nothing in this package
// reads ambient state.
type Config struct {
	RPCURL          string
	ChainID         *big.Int
	TreasuryAddress common.Address
	PaymentMode     string
	TokenAddress    common.Address
	TokenDecimals   int32
	Fee             decimal.Decimal
	RPCTimeout      time.Duration
	ReceiptAttempts uint
}

func NewConfig(rpcURL string, chainID int64, treasury, paymentMode, tokenAddress string, tokenDecimals int, fee string, rpcTimeout time.Duration, receiptAttempts uint) (Config, error) {
	if paymentMode != PaymentModeNative && paymentMode != PaymentModeToken {
		return Config{}, fmt.Errorf("unsupported payment mode: %s", paymentMode)
	}

	if !common.IsHexAddress(treasury) {
		return Config{}, fmt.Errorf("invalid treasury address: %s", treasury)
	}

	if receiptAttempts == 0 {
		receiptAttempts = 1
	}

	cfg := Config{
		RPCURL:          rpcURL,
		ChainID:         big.NewInt(chainID),
		TreasuryAddress: common.HexToAddress(treasury),
		PaymentMode:     paymentMode,
		TokenDecimals:   int32(tokenDecimals),
		RPCTimeout:      rpcTimeout,
		ReceiptAttempts: receiptAttempts,
	}

	if paymentMode == PaymentModeToken {
		if !common.IsHexAddress(tokenAddress) {
			return Config{}, fmt.Errorf("invalid token contract address: %s", tokenAddress)
		}
		cfg.TokenAddress = common.HexToAddress(tokenAddress)
	}

	f, err := decimal.NewFromString(fee)
	if err != nil {
		return Config{}, fmt.Errorf("invalid registration fee %q: %w", fee, err)
	}
	if f.IsNegative() || f.IsZero() {
		return Config{}, fmt.Errorf("registration fee must be positive, got %s", fee)
	}
	cfg.Fee = f

	return cfg, nil
}

// ExpectedAmount is the fee in the payment asset's smallest unit.
func (c Config) ExpectedAmount() *big.Int {
	d := int32(nativeDecimals)
	if c.PaymentMode == PaymentModeToken {
		d = c.TokenDecimals
	}
	return c.Fee.Shift(d).BigInt()
}
