package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type database struct {
	db *gorm.DB
}

// New creates a new database connection
func New(ctx context.Context, dialect string, dsn string, config *gorm.Config) (Database, error) {
	if config == nil {
		config = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		}
	}
	// Duplicated-key violations must surface as gorm.ErrDuplicatedKey so the
	// registration race resolves to a typed conflict instead of a raw driver error.
	config.TranslateError = true

	var db *gorm.DB
	var err error

	if dialect == "sqlite" {
		db, err = gorm.Open(sqlite.Open(dsn), config)
	} else if dialect == "mysql" {
		db, err = gorm.Open(mysql.Open(dsn), config)
	} else {
		return nil, fmt.Errorf("unsupported dialect: %s", dialect)
	}

	if err != nil {
		return nil, err
	}

	db = db.WithContext(ctx)

	if err := db.AutoMigrate(
		&Domain{},
		&PendingDomain{},
		&TransactionLog{},
		&NotificationLog{},
	); err != nil {
		return nil, err
	}

	d := &database{
		db: db,
	}
	return d, nil
}

// CheckAvailability reports whether a name can be bought: no confirmed row
// and no live (unexpired) pending hold.
func (d *database) CheckAvailability(domainName string, now time.Time) (bool, error) {
	var registered int64
	sql := d.db.Model(&Domain{}).Where("domain_name = ?", domainName).Count(&registered)
	if sql.Error != nil {
		return false, sql.Error
	}
	if registered > 0 {
		return false, nil
	}

	var pending int64
	sql = d.db.Model(&PendingDomain{}).
		Where("domain_name = ? AND expires_at > ?", domainName, now).
		Count(&pending)
	if sql.Error != nil {
		return false, sql.Error
	}

	return pending == 0, nil
}

func (d *database) GetDomain(domainName string) (Domain, error) {
	domain := Domain{}
	sql := d.db.Where("domain_name = ?", domainName).Limit(1).Find(&domain)
	if sql.Error != nil {
		return domain, sql.Error
	}
	if domain.ID == 0 {
		return domain, ErrDomainNotFound
	}
	return domain, nil
}

// ReservePending places a soft hold on a name. An expired hold for the same
// name is cleared first so the unique index never blocks on an abandoned
// reservation; a live one makes the loser fail with ErrAlreadyReserved.
func (d *database) ReservePending(domainName, walletAddress string, txHash *string, now, expiresAt time.Time) (PendingDomain, error) {
	var pending PendingDomain
	err := d.db.Transaction(func(tx *gorm.DB) error {
		var registered int64
		sql := tx.Model(&Domain{}).Where("domain_name = ?", domainName).Count(&registered)
		if sql.Error != nil {
			return sql.Error
		}
		if registered > 0 {
			return ErrDuplicateDomain
		}

		sql = tx.Where("domain_name = ? AND expires_at <= ?", domainName, now).Delete(&PendingDomain{})
		if sql.Error != nil {
			return sql.Error
		}

		pending = PendingDomain{
			DomainName:    domainName,
			WalletAddress: walletAddress,
			TxHash:        txHash,
			InitiatedAt:   now,
			ExpiresAt:     expiresAt,
		}

		sql = tx.Create(&pending)
		if sql.Error != nil {
			if errors.Is(sql.Error, gorm.ErrDuplicatedKey) {
				return ErrAlreadyReserved
			}
			return sql.Error
		}

		return nil
	})

	return pending, err
}

// ConfirmRegistration atomically moves a name from pending to registered.
// The duplicate check runs inside the same transaction as the insert, and the
// unique index on domain_name backstops it: under concurrent confirms exactly
// one row ever lands.
func (d *database) ConfirmRegistration(domainName, walletAddress, txHash, paymentAmount string, now time.Time, period time.Duration) (Domain, error) {
	var domain Domain
	err := d.db.Transaction(func(tx *gorm.DB) error {
		var registered int64
		sql := tx.Model(&Domain{}).Where("domain_name = ?", domainName).Count(&registered)
		if sql.Error != nil {
			return sql.Error
		}
		if registered > 0 {
			return ErrDuplicateDomain
		}

		// Absence of a pending row is not an error; the hold may have expired.
		sql = tx.Where("domain_name = ?", domainName).Delete(&PendingDomain{})
		if sql.Error != nil {
			return sql.Error
		}

		domain = Domain{
			DomainName:       domainName,
			WalletAddress:    walletAddress,
			TxHash:           txHash,
			PaymentAmount:    paymentAmount,
			PaymentConfirmed: true,
			ReservedAt:       now,
			ConfirmationTime: now,
			ExpiresAt:        now.Add(period),
		}

		sql = tx.Create(&domain)
		if sql.Error != nil {
			if errors.Is(sql.Error, gorm.ErrDuplicatedKey) {
				return ErrDuplicateDomain
			}
			return sql.Error
		}

		return nil
	})

	return domain, err
}

func (d *database) PurgeExpiredPending(now time.Time) (int64, error) {
	sql := d.db.Where("expires_at <= ?", now).Delete(&PendingDomain{})
	return sql.RowsAffected, sql.Error
}

func (d *database) LogTransaction(entry TransactionLog) (TransactionLog, error) {
	sql := d.db.Create(&entry)
	return entry, sql.Error
}

// UpdateTransactionStatus moves every log row of the same attempt (keyed by
// tx hash) to a new status. Historical rows for other attempts are untouched.
func (d *database) UpdateTransactionStatus(txHash, status, message string) error {
	sql := d.db.Model(&TransactionLog{}).Where("tx_hash = ?", txHash).
		Updates(map[string]interface{}{"status": status, "message": message})
	return sql.Error
}

func (d *database) LogNotification(entry NotificationLog) (NotificationLog, error) {
	sql := d.db.Create(&entry)
	return entry, sql.Error
}

func (d *database) MarkNotificationSent(domainID uint) error {
	sql := d.db.Model(&Domain{ID: domainID}).Update("notification_sent", true)
	return sql.Error
}

func (d *database) ListDomains() ([]Domain, error) {
	var domains []Domain
	sql := d.db.Order("created_at desc").Find(&domains)
	return domains, sql.Error
}

func (d *database) ListTransactionLogs() ([]TransactionLog, error) {
	var logs []TransactionLog
	sql := d.db.Order("created_at desc").Find(&logs)
	return logs, sql.Error
}
