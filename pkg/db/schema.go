package db

import (
	"time"
)

// Domain is a confirmed registration. The unique index on DomainName is the
// backstop for the one-confirmed-row-per-name invariant; the application
// level check alone would be racy.
type Domain struct {
	ID               uint      `gorm:"primarykey" json:"id"`
	DomainName       string    `gorm:"uniqueIndex" json:"domainName"`
	WalletAddress    string    `json:"walletAddress"`
	TxHash           string    `json:"txHash"`
	PaymentAmount    string    `json:"paymentAmount"`
	PaymentConfirmed bool      `json:"paymentConfirmed"`
	ReservedAt       time.Time `json:"reservedAt"`
	ConfirmationTime time.Time `json:"confirmationTime"`
	ExpiresAt        time.Time `json:"expiresAt"`
	NotificationSent bool      `json:"notificationSent"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// PendingDomain is a short-lived hold on a name during the payment window.
// Rows past ExpiresAt are ignored by availability checks and hard-deleted by
// the sweeper.
type PendingDomain struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	DomainName    string    `gorm:"uniqueIndex" json:"domainName"`
	WalletAddress string    `json:"walletAddress"`
	TxHash        *string   `json:"txHash,omitempty"`
	InitiatedAt   time.Time `json:"initiatedAt"`
	ExpiresAt     time.Time `json:"expiresAt"`
	CreatedAt     time.Time `json:"createdAt"`
}

// TransactionLog is an append-only audit record of payment attempts. Only the
// status/message of the same logical attempt may be updated.
type TransactionLog struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	DomainName    string    `gorm:"index" json:"domainName"`
	WalletAddress string    `json:"walletAddress"`
	TxHash        *string   `gorm:"index" json:"txHash,omitempty"`
	Amount        string    `json:"amount"`
	Status        string    `json:"status"`
	Message       string    `json:"message,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type NotificationLog struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	DomainID     uint      `json:"domainId"`
	Domain       Domain    `gorm:"constraint:OnDelete:SET NULL;" json:"-"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	AttemptCount int       `json:"attemptCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
