package db

import (
	"errors"
	"time"
)

var (
	ErrDomainNotFound  = errors.New("domain not found")
	ErrDuplicateDomain = errors.New("domain already registered")
	ErrAlreadyReserved = errors.New("domain already reserved")
)

type Database interface {
	CheckAvailability(domainName string, now time.Time) (bool, error)
	GetDomain(domainName string) (Domain, error)
	ReservePending(domainName, walletAddress string, txHash *string, now, expiresAt time.Time) (PendingDomain, error)
	ConfirmRegistration(domainName, walletAddress, txHash, paymentAmount string, now time.Time, period time.Duration) (Domain, error)
	PurgeExpiredPending(now time.Time) (int64, error)
	LogTransaction(entry TransactionLog) (TransactionLog, error)
	UpdateTransactionStatus(txHash, status, message string) error
	LogNotification(entry NotificationLog) (NotificationLog, error)
	MarkNotificationSent(domainID uint) error
	ListDomains() ([]Domain, error)
	ListTransactionLogs() ([]TransactionLog, error)
}
