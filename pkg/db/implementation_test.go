package db

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) Database {
	t.Helper()

	// A file-backed database: with the pooled :memory: DSN every connection
	// would see its own empty database.
	dsn := filepath.Join(t.TempDir(), "test.sqlite")
	d, err := New(context.Background(), "sqlite", dsn, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return d
}

func strPtr(s string) *string {
	return &s
}

func TestCheckAvailability(t *testing.T) {
	d := newTestDB(t)
	now := time.Now()

	available, err := d.CheckAvailability("alice.pepu", now)
	require.NoError(t, err)
	assert.True(t, available)

	_, err = d.ConfirmRegistration("alice.pepu", "0xabc", "0xhash", "10", now, 365*24*time.Hour)
	require.NoError(t, err)

	available, err = d.CheckAvailability("alice.pepu", now)
	require.NoError(t, err)
	assert.False(t, available, "confirmed domain must block the name")

	_, err = d.ReservePending("bob.pepu", "0xdef", nil, now, now.Add(10*time.Minute))
	require.NoError(t, err)

	available, err = d.CheckAvailability("bob.pepu", now)
	require.NoError(t, err)
	assert.False(t, available, "live pending hold must block the name")

	available, err = d.CheckAvailability("bob.pepu", now.Add(11*time.Minute))
	require.NoError(t, err)
	assert.True(t, available, "expired pending hold must not block the name")
}

func TestGetDomain(t *testing.T) {
	d := newTestDB(t)
	now := time.Now()

	_, err := d.GetDomain("alice.pepu")
	assert.ErrorIs(t, err, ErrDomainNotFound)

	created, err := d.ConfirmRegistration("alice.pepu", "0xabc", "0xhash", "10", now, 365*24*time.Hour)
	require.NoError(t, err)

	got, err := d.GetDomain("alice.pepu")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.True(t, got.PaymentConfirmed)
}

func TestReservePending(t *testing.T) {
	d := newTestDB(t)
	now := time.Now()

	pending, err := d.ReservePending("carol.pepu", "0xaaa", strPtr("0x123"), now, now.Add(10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "carol.pepu", pending.DomainName)
	require.NotNil(t, pending.TxHash)
	assert.Equal(t, "0x123", *pending.TxHash)

	// A live hold blocks a second reservation.
	_, err = d.ReservePending("carol.pepu", "0xbbb", nil, now, now.Add(10*time.Minute))
	assert.ErrorIs(t, err, ErrAlreadyReserved)

	// Once the hold expires, the same name can be reserved again.
	later := now.Add(11 * time.Minute)
	_, err = d.ReservePending("carol.pepu", "0xbbb", nil, later, later.Add(10*time.Minute))
	assert.NoError(t, err)
}

func TestReservePendingRejectsRegisteredName(t *testing.T) {
	d := newTestDB(t)
	now := time.Now()

	_, err := d.ConfirmRegistration("dave.pepu", "0xabc", "0xhash", "10", now, 365*24*time.Hour)
	require.NoError(t, err)

	_, err = d.ReservePending("dave.pepu", "0xbbb", nil, now, now.Add(10*time.Minute))
	assert.ErrorIs(t, err, ErrDuplicateDomain)
}

func TestConfirmRegistration(t *testing.T) {
	d := newTestDB(t)
	now := time.Now()
	period := 365 * 24 * time.Hour

	_, err := d.ReservePending("alice.pepu", "0xabc", nil, now, now.Add(10*time.Minute))
	require.NoError(t, err)

	domain, err := d.ConfirmRegistration("alice.pepu", "0xabc", "0xhash", "10", now, period)
	require.NoError(t, err)
	assert.True(t, domain.PaymentConfirmed)
	assert.Equal(t, now.Add(period).Unix(), domain.ExpiresAt.Unix())
	assert.True(t, domain.ExpiresAt.After(domain.ConfirmationTime))

	// The pending hold is consumed by confirmation.
	available, err := d.CheckAvailability("alice2.pepu", now)
	require.NoError(t, err)
	assert.True(t, available)

	// The loser of the race gets a typed conflict.
	_, err = d.ConfirmRegistration("alice.pepu", "0xother", "0xhash2", "10", now, period)
	assert.ErrorIs(t, err, ErrDuplicateDomain)
}

func TestConfirmRegistrationConcurrent(t *testing.T) {
	d := newTestDB(t)
	now := time.Now()
	period := 365 * 24 * time.Hour

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = d.ConfirmRegistration("race.pepu", "0xabc", "0xhash", "10", now, period)
		}(i)
	}
	wg.Wait()

	var winners int
	for _, err := range errs {
		if err == nil {
			winners++
		}
	}
	assert.Equal(t, 1, winners, "exactly one confirm must win")

	domains, err := d.ListDomains()
	require.NoError(t, err)
	require.Len(t, domains, 1)
}

func TestPurgeExpiredPending(t *testing.T) {
	d := newTestDB(t)
	now := time.Now()

	_, err := d.ReservePending("old.pepu", "0xaaa", nil, now.Add(-time.Hour), now.Add(-30*time.Minute))
	require.NoError(t, err)
	_, err = d.ReservePending("fresh.pepu", "0xbbb", nil, now, now.Add(10*time.Minute))
	require.NoError(t, err)

	purged, err := d.PurgeExpiredPending(now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	available, err := d.CheckAvailability("fresh.pepu", now)
	require.NoError(t, err)
	assert.False(t, available, "sweeper must only remove expired holds")
}

func TestTransactionLogs(t *testing.T) {
	d := newTestDB(t)

	entry, err := d.LogTransaction(TransactionLog{
		DomainName:    "alice.pepu",
		WalletAddress: "0xabc",
		TxHash:        strPtr("0xhash"),
		Amount:        "10",
		Status:        "pending",
	})
	require.NoError(t, err)
	require.NotZero(t, entry.ID)

	require.NoError(t, d.UpdateTransactionStatus("0xhash", "confirmed", "registration confirmed"))

	logs, err := d.ListTransactionLogs()
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "confirmed", logs[0].Status)
	assert.Equal(t, "registration confirmed", logs[0].Message)
}

func TestNotificationLogs(t *testing.T) {
	d := newTestDB(t)
	now := time.Now()

	domain, err := d.ConfirmRegistration("alice.pepu", "0xabc", "0xhash", "10", now, 365*24*time.Hour)
	require.NoError(t, err)
	assert.False(t, domain.NotificationSent)

	entry, err := d.LogNotification(NotificationLog{
		DomainID:     domain.ID,
		Status:       "sent",
		AttemptCount: 1,
	})
	require.NoError(t, err)
	assert.NotZero(t, entry.ID)

	require.NoError(t, d.MarkNotificationSent(domain.ID))

	got, err := d.GetDomain("alice.pepu")
	require.NoError(t, err)
	assert.True(t, got.NotificationSent)
}
