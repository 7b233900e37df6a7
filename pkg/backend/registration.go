package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pepuns/pepuns-api/pkg/chain"
	"github.com/pepuns/pepuns-api/pkg/db"
	"github.com/pepuns/pepuns-api/pkg/model"
	"github.com/pepuns/pepuns-api/pkg/name"
	"github.com/pepuns/pepuns-api/pkg/notify"
	"github.com/pepuns/pepuns-api/pkg/rand"
	"github.com/sirupsen/logrus"
)

const supportRefLength = 8

func (b *backend) CheckAvailability(domainName string) (model.AvailabilityResponse, error) {
	if err := name.Validate(domainName, b.cfg.MinNameLength); err != nil {
		return model.AvailabilityResponse{}, err
	}

	normalized := name.Normalize(domainName)
	available, err := b.db.CheckAvailability(normalized, time.Now())
	if err != nil {
		return model.AvailabilityResponse{}, err
	}

	return model.AvailabilityResponse{Available: available, Domain: normalized}, nil
}

func (b *backend) GetDomain(domainName string) (db.Domain, error) {
	return b.db.GetDomain(name.Normalize(domainName))
}

// Reserve places a soft hold on a name for the payment window. The hold
// length is capped at the configured TTL no matter what the client asks for.
func (b *backend) Reserve(input model.ReserveRequest) (db.PendingDomain, error) {
	if err := name.Validate(input.DomainName, b.cfg.MinNameLength); err != nil {
		return db.PendingDomain{}, err
	}
	if !common.IsHexAddress(input.WalletAddress) {
		return db.PendingDomain{}, &InvalidWalletError{Address: input.WalletAddress}
	}

	now := time.Now()
	expiresAt := now.Add(b.cfg.PendingTTL)
	if input.ExpiresAt != nil && input.ExpiresAt.After(now) && input.ExpiresAt.Before(expiresAt) {
		expiresAt = *input.ExpiresAt
	}

	var txHash *string
	if input.TxHash != "" {
		h := input.TxHash
		txHash = &h
	}

	return b.db.ReservePending(name.Normalize(input.DomainName), input.WalletAddress, txHash, now, expiresAt)
}

// Confirm runs the safety-critical sequence: verify the payment on chain,
// then atomically move the name from pending to registered. The notification
// fires after the commit and never affects the outcome.
func (b *backend) Confirm(ctx context.Context, input model.ConfirmRequest) (db.Domain, error) {
	if err := name.Validate(input.DomainName, b.cfg.MinNameLength); err != nil {
		return db.Domain{}, err
	}
	if !common.IsHexAddress(input.WalletAddress) {
		return db.Domain{}, &InvalidWalletError{Address: input.WalletAddress}
	}

	normalized := name.Normalize(input.DomainName)
	log := logrus.WithFields(logrus.Fields{
		"domain": normalized,
		"txHash": input.TxHash,
	})

	if err := b.verifier.VerifyPayment(ctx, input.TxHash, input.WalletAddress); err != nil {
		var verr *chain.VerificationError
		if errors.As(err, &verr) && !verr.Retryable() {
			b.logAttempt(normalized, input, model.TxStatusFailed, fmt.Sprintf("payment verification failed: %s", verr.Kind))
		}
		log.WithError(err).Warn("payment verification failed")
		return db.Domain{}, err
	}

	domain, err := b.db.ConfirmRegistration(normalized, input.WalletAddress, input.TxHash, input.PaymentAmount, time.Now(), b.cfg.RegistrationPeriod)
	if err != nil {
		if errors.Is(err, db.ErrDuplicateDomain) {
			// The payment is real but the name is gone. Leave a support
			// reference in the audit trail for the refund path.
			ref := rand.Code(supportRefLength)
			b.logAttempt(normalized, input, model.TxStatusFailed, fmt.Sprintf("payment verified but domain already registered, support ref %s", ref))
			log.WithField("supportRef", ref).Error("verified payment lost the registration race")
			return db.Domain{}, &ConflictAfterPaymentError{SupportRef: ref}
		}
		return db.Domain{}, err
	}

	b.logAttempt(normalized, input, model.TxStatusConfirmed, "registration confirmed")
	log.WithField("expiresAt", domain.ExpiresAt).Info("domain registered")

	go b.sendNotification(domain)

	return domain, nil
}

func (b *backend) LogTransaction(input model.TransactionLogRequest) (db.TransactionLog, error) {
	if err := model.IsValidTxStatus(input.Status); err != nil {
		return db.TransactionLog{}, err
	}
	if err := name.Validate(input.DomainName, b.cfg.MinNameLength); err != nil {
		return db.TransactionLog{}, err
	}

	var txHash *string
	if input.TxHash != "" {
		h := input.TxHash
		txHash = &h
	}

	return b.db.LogTransaction(db.TransactionLog{
		DomainName:    name.Normalize(input.DomainName),
		WalletAddress: input.WalletAddress,
		TxHash:        txHash,
		Amount:        input.Amount,
		Status:        input.Status,
		Message:       input.Message,
	})
}

func (b *backend) ListDomains() ([]db.Domain, error) {
	return b.db.ListDomains()
}

func (b *backend) ListTransactionLogs() ([]db.TransactionLog, error) {
	return b.db.ListTransactionLogs()
}

// logAttempt appends to the transaction audit log. The log is diagnostic, so
// a write failure is logged and swallowed.
func (b *backend) logAttempt(normalized string, input model.ConfirmRequest, status, message string) {
	txHash := input.TxHash
	_, err := b.db.LogTransaction(db.TransactionLog{
		DomainName:    normalized,
		WalletAddress: input.WalletAddress,
		TxHash:        &txHash,
		Amount:        input.PaymentAmount,
		Status:        status,
		Message:       message,
	})
	if err != nil {
		logrus.WithError(err).Warnf("could not write transaction log for %s", normalized)
	}
}

// sendNotification runs after the registration committed. Every outcome is
// recorded in the notification log; nothing propagates back to the caller.
func (b *backend) sendNotification(domain db.Domain) {
	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.NotifyTimeout)
	defer cancel()

	attempts, err := b.notifier.Notify(ctx, notify.Registration{
		DomainName:    domain.DomainName,
		WalletAddress: domain.WalletAddress,
		TxHash:        domain.TxHash,
		Amount:        domain.PaymentAmount,
		ReservedAt:    domain.ReservedAt,
		ExpiresAt:     domain.ExpiresAt,
	})

	entry := db.NotificationLog{
		DomainID:     domain.ID,
		Status:       "sent",
		AttemptCount: attempts,
	}

	if err != nil {
		entry.Status = "failed"
		entry.ErrorMessage = err.Error()
		logrus.WithError(err).Warnf("notification for %s failed after %d attempts", domain.DomainName, attempts)
	} else if attempts > 0 {
		if err := b.db.MarkNotificationSent(domain.ID); err != nil {
			logrus.WithError(err).Warnf("could not mark notification sent for %s", domain.DomainName)
		}
	}

	if _, err := b.db.LogNotification(entry); err != nil {
		logrus.WithError(err).Warnf("could not write notification log for %s", domain.DomainName)
	}
}
