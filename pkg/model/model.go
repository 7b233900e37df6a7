package model

import (
	"fmt"
	"time"
)

const (
	TxStatusPending   = "pending"
	TxStatusConfirmed = "confirmed"
	TxStatusFailed    = "failed"
)

func IsValidTxStatus(s string) error {
	switch s {
	case TxStatusPending, TxStatusConfirmed, TxStatusFailed:
		return nil
	}

	return fmt.Errorf("invalid transaction status")
}

type AvailabilityResponse struct {
	Available bool   `json:"available"`
	Domain    string `json:"domain"`
}

type ReserveRequest struct {
	DomainName    string     `json:"domainName"`
	WalletAddress string     `json:"walletAddress"`
	TxHash        string     `json:"txHash,omitempty"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
}

type ConfirmRequest struct {
	DomainName    string `json:"domainName"`
	WalletAddress string `json:"walletAddress"`
	TxHash        string `json:"txHash"`
	PaymentAmount string `json:"paymentAmount"`
}

type TransactionLogRequest struct {
	DomainName    string `json:"domainName"`
	WalletAddress string `json:"walletAddress"`
	TxHash        string `json:"txHash,omitempty"`
	Amount        string `json:"amount"`
	Status        string `json:"status"`
	Message       string `json:"message,omitempty"`
}

// ErrorResponse is the body of every non-2xx reply. Error carries a
// machine-readable kind (e.g. "invalid_chars", "duplicate_domain",
// "tx_not_found"); Details is free-form context for the client.
type ErrorResponse struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}
