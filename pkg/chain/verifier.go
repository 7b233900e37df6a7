package chain

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
)

// keccak256("Transfer(address,address,uint256)")
var transferEventTopic = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")

type Verifier struct {
	backend Backend
	cfg     Config
	signer  types.Signer
}

func NewVerifier(backend Backend, cfg Config) *Verifier {
	return &Verifier{
		backend: backend,
		cfg:     cfg,
		signer:  types.LatestSignerForChainID(cfg.ChainID),
	}
}

// VerifyPayment checks that the transaction moved at least the registration
// fee of the configured asset from payerAddress to the treasury. It has no
// side effects and is safe to call repeatedly for the same hash.
func (v *Verifier) VerifyPayment(ctx context.Context, txHash, payerAddress string) error {
	hash, err := parseTxHash(txHash)
	if err != nil {
		return err
	}
	payer := common.HexToAddress(payerAddress)

	tx, receipt, err := v.awaitConfirmed(ctx, hash)
	if err != nil {
		return err
	}

	if v.cfg.PaymentMode == PaymentModeToken {
		return v.verifyTokenPayment(tx, receipt, payer)
	}
	return v.verifyNativePayment(tx, receipt, payer)
}

// parseTxHash rejects anything that is not 0x + 64 hex chars before any
// network round trip happens.
func parseTxHash(raw string) (common.Hash, error) {
	if !strings.HasPrefix(raw, "0x") || len(raw) != 2+2*common.HashLength {
		return common.Hash{}, &VerificationError{Kind: KindMalformedHash, Message: fmt.Sprintf("%q is not a 32-byte hex transaction hash", raw)}
	}
	if _, err := hex.DecodeString(raw[2:]); err != nil {
		return common.Hash{}, &VerificationError{Kind: KindMalformedHash, Message: fmt.Sprintf("%q is not a 32-byte hex transaction hash", raw)}
	}
	return common.HexToHash(raw), nil
}

type confirmedTx struct {
	tx      *types.Transaction
	receipt *types.Receipt
}

// awaitConfirmed polls for the transaction and its receipt until the tx has
// at least one confirmation, the attempt budget runs out, or ctx is done.
// Each RPC call gets its own timeout so a dead node can't hang the request.
func (v *Verifier) awaitConfirmed(ctx context.Context, hash common.Hash) (*types.Transaction, *types.Receipt, error) {
	operation := func() (confirmedTx, error) {
		callCtx, cancel := context.WithTimeout(ctx, v.cfg.RPCTimeout)
		defer cancel()

		tx, pending, err := v.backend.TransactionByHash(callCtx, hash)
		if err != nil {
			if errors.Is(err, ethereum.NotFound) {
				return confirmedTx{}, &VerificationError{Kind: KindTxNotFound, Message: "transaction not found, it may still be propagating"}
			}
			return confirmedTx{}, fmt.Errorf("%w: %v", ErrRPCUnavailable, err)
		}
		if pending {
			return confirmedTx{}, &VerificationError{Kind: KindTxNotFound, Message: "transaction not yet mined"}
		}

		receipt, err := v.backend.TransactionReceipt(callCtx, hash)
		if err != nil {
			if errors.Is(err, ethereum.NotFound) {
				return confirmedTx{}, &VerificationError{Kind: KindTxNotFound, Message: "transaction receipt not available yet"}
			}
			return confirmedTx{}, fmt.Errorf("%w: %v", ErrRPCUnavailable, err)
		}

		return confirmedTx{tx: tx, receipt: receipt}, nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Second
	policy.MaxInterval = 5 * time.Second

	notify := func(err error, d time.Duration) {
		logrus.WithError(err).WithField("backoff", d).Debugf("retrying transaction lookup for %s", hash)
	}

	result, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(v.cfg.ReceiptAttempts),
		backoff.WithNotify(notify))
	if err != nil {
		return nil, nil, err
	}

	return result.tx, result.receipt, nil
}

// verifyNativePayment checks a plain value transfer: the tx itself must carry
// the fee to the treasury.
func (v *Verifier) verifyNativePayment(tx *types.Transaction, receipt *types.Receipt, payer common.Address) error {
	if receipt.Status != types.ReceiptStatusSuccessful {
		return &VerificationError{Kind: KindTxFailed, Message: "transaction reverted"}
	}

	if tx.To() == nil || *tx.To() != v.cfg.TreasuryAddress {
		return &VerificationError{Kind: KindWrongRecipient, Message: "funds did not move to the treasury wallet"}
	}

	sender, err := types.Sender(v.signer, tx)
	if err != nil {
		return fmt.Errorf("recovering transaction sender: %w", err)
	}
	if sender != payer {
		return &VerificationError{Kind: KindWrongPayer, Message: "transaction was not sent by the claimed wallet"}
	}

	if tx.Value().Cmp(v.cfg.ExpectedAmount()) < 0 {
		return &VerificationError{Kind: KindInsufficientAmount, Message: fmt.Sprintf("transferred value below the registration fee of %s", v.cfg.Fee)}
	}

	return nil
}

// verifyTokenPayment checks an ERC-20 transfer: the tx must target the token
// contract and its receipt must contain a Transfer event from the payer to
// the treasury. The destination comes from the event topics, never from
// tx.to, which is the contract itself.
func (v *Verifier) verifyTokenPayment(tx *types.Transaction, receipt *types.Receipt, payer common.Address) error {
	if receipt.Status != types.ReceiptStatusSuccessful {
		return &VerificationError{Kind: KindTxFailed, Message: "transaction reverted"}
	}

	if tx.To() == nil || *tx.To() != v.cfg.TokenAddress {
		return &VerificationError{Kind: KindWrongAsset, Message: "transaction did not target the payment token contract"}
	}

	var treasuryTransfer *types.Log
	var payerMismatch bool
	for _, l := range receipt.Logs {
		if l.Address != v.cfg.TokenAddress || len(l.Topics) != 3 || l.Topics[0] != transferEventTopic {
			continue
		}
		to := common.BytesToAddress(l.Topics[2].Bytes())
		if to != v.cfg.TreasuryAddress {
			continue
		}
		from := common.BytesToAddress(l.Topics[1].Bytes())
		if from != payer {
			payerMismatch = true
			continue
		}
		treasuryTransfer = l
		break
	}

	if treasuryTransfer == nil {
		if payerMismatch {
			return &VerificationError{Kind: KindWrongPayer, Message: "token transfer was not sent by the claimed wallet"}
		}
		return &VerificationError{Kind: KindWrongRecipient, Message: "no token transfer to the treasury wallet found"}
	}

	amount := new(big.Int).SetBytes(treasuryTransfer.Data)
	if amount.Cmp(v.cfg.ExpectedAmount()) < 0 {
		return &VerificationError{Kind: KindInsufficientAmount, Message: fmt.Sprintf("transferred amount below the registration fee of %s", v.cfg.Fee)}
	}

	return nil
}
