package chain

import "errors"

// ErrRPCUnavailable wraps transport failures talking to the chain node, as
// opposed to a verdict about the transaction itself.
var ErrRPCUnavailable = errors.New("chain rpc unavailable")

const (
	KindMalformedHash      = "malformed_hash"
	KindTxNotFound         = "tx_not_found"
	KindTxFailed           = "tx_failed"
	KindWrongRecipient     = "wrong_recipient"
	KindWrongAsset         = "wrong_asset"
	KindWrongPayer         = "wrong_payer"
	KindInsufficientAmount = "insufficient_amount"
)

// VerificationError means the transaction was inspected and rejected. Only
// tx_not_found is worth retrying; the rest describe what is actually on chain.
type VerificationError struct {
	Kind    string
	Message string
}

func (e *VerificationError) Error() string {
	return e.Message
}

func (e *VerificationError) Retryable() bool {
	return e.Kind == KindTxNotFound
}
