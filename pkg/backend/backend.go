package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/pepuns/pepuns-api/pkg/chain"
	"github.com/pepuns/pepuns-api/pkg/db"
	"github.com/pepuns/pepuns-api/pkg/model"
	"github.com/pepuns/pepuns-api/pkg/notify"
)

type Backend interface {
	CheckAvailability(domainName string) (model.AvailabilityResponse, error)
	GetDomain(domainName string) (db.Domain, error)
	Reserve(input model.ReserveRequest) (db.PendingDomain, error)
	Confirm(ctx context.Context, input model.ConfirmRequest) (db.Domain, error)
	LogTransaction(input model.TransactionLogRequest) (db.TransactionLog, error)
	ListDomains() ([]db.Domain, error)
	ListTransactionLogs() ([]db.TransactionLog, error)
	StartSweeper(done <-chan struct{})
}

type Config struct {
	MinNameLength      int
	RegistrationPeriod time.Duration
	PendingTTL         time.Duration
	SweepInterval      time.Duration
	NotifyTimeout      time.Duration
}

// InvalidWalletError rejects wallet addresses that are not 20-byte hex.
type InvalidWalletError struct {
	Address string
}

func (e *InvalidWalletError) Error() string {
	return fmt.Sprintf("%q is not a valid wallet address", e.Address)
}

// ConflictAfterPaymentError is the worst outcome: the payment verified but
// another registration won the race. SupportRef ties the transaction log
// entry to the manual refund path.
type ConflictAfterPaymentError struct {
	SupportRef string
}

func (e *ConflictAfterPaymentError) Error() string {
	return "payment verified but the name was already claimed"
}

func (e *ConflictAfterPaymentError) Unwrap() error {
	return db.ErrDuplicateDomain
}

type backend struct {
	db       db.Database
	verifier *chain.Verifier
	notifier notify.Notifier
	cfg      Config
}

func NewBackend(database db.Database, verifier *chain.Verifier, notifier notify.Notifier, cfg Config) (Backend, error) {
	if cfg.RegistrationPeriod <= 0 {
		return nil, fmt.Errorf("registration period must be positive")
	}
	if cfg.PendingTTL <= 0 {
		return nil, fmt.Errorf("pending reservation TTL must be positive")
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 5 * time.Minute
	}

	return &backend{
		db:       database,
		verifier: verifier,
		notifier: notifier,
		cfg:      cfg,
	}, nil
}
