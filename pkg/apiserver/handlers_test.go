package apiserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pepuns/pepuns-api/pkg/backend"
	"github.com/pepuns/pepuns-api/pkg/chain"
	"github.com/pepuns/pepuns-api/pkg/db"
	"github.com/pepuns/pepuns-api/pkg/model"
	"github.com/pepuns/pepuns-api/pkg/name"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type stubBackend struct {
	checkAvailability func(string) (model.AvailabilityResponse, error)
	getDomain         func(string) (db.Domain, error)
	reserve           func(model.ReserveRequest) (db.PendingDomain, error)
	confirm           func(context.Context, model.ConfirmRequest) (db.Domain, error)
	logTransaction    func(model.TransactionLogRequest) (db.TransactionLog, error)
	listDomains       func() ([]db.Domain, error)
	listTransactions  func() ([]db.TransactionLog, error)
}

func (s *stubBackend) CheckAvailability(domainName string) (model.AvailabilityResponse, error) {
	return s.checkAvailability(domainName)
}

func (s *stubBackend) GetDomain(domainName string) (db.Domain, error) {
	return s.getDomain(domainName)
}

func (s *stubBackend) Reserve(input model.ReserveRequest) (db.PendingDomain, error) {
	return s.reserve(input)
}

func (s *stubBackend) Confirm(ctx context.Context, input model.ConfirmRequest) (db.Domain, error) {
	return s.confirm(ctx, input)
}

func (s *stubBackend) LogTransaction(input model.TransactionLogRequest) (db.TransactionLog, error) {
	return s.logTransaction(input)
}

func (s *stubBackend) ListDomains() ([]db.Domain, error) {
	return s.listDomains()
}

func (s *stubBackend) ListTransactionLogs() ([]db.TransactionLog, error) {
	return s.listTransactions()
}

func (s *stubBackend) StartSweeper(<-chan struct{}) {}

func newTestRouter(b backend.Backend, adminTokenHash string) http.Handler {
	a := NewAPIServer(context.Background(), logrus.WithField("test", true), 0, adminTokenHash)
	return a.buildRouter(b)
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func errorKind(t *testing.T, rec *httptest.ResponseRecorder) model.ErrorResponse {
	t.Helper()
	var out model.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestCheckDomainHandler(t *testing.T) {
	router := newTestRouter(&stubBackend{
		checkAvailability: func(domainName string) (model.AvailabilityResponse, error) {
			assert.Equal(t, "alice", domainName)
			return model.AvailabilityResponse{Available: true, Domain: "alice.pepu"}, nil
		},
	}, "")

	rec := doJSON(t, router, http.MethodGet, "/api/domains/check/alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var out model.AvailabilityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.True(t, out.Available)
	assert.Equal(t, "alice.pepu", out.Domain)
}

func TestCheckDomainHandlerInvalidName(t *testing.T) {
	router := newTestRouter(&stubBackend{
		checkAvailability: func(string) (model.AvailabilityResponse, error) {
			return model.AvailabilityResponse{}, &name.ValidationError{Kind: name.KindInvalidChars, Message: "bad"}
		},
	}, "")

	rec := doJSON(t, router, http.MethodGet, "/api/domains/check/al!ce", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, name.KindInvalidChars, errorKind(t, rec).Error)
}

func TestGetDomainHandlerNotFound(t *testing.T) {
	router := newTestRouter(&stubBackend{
		getDomain: func(string) (db.Domain, error) {
			return db.Domain{}, db.ErrDomainNotFound
		},
	}, "")

	rec := doJSON(t, router, http.MethodGet, "/api/domains/ghost.pepu", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", errorKind(t, rec).Error)
}

func TestReserveHandler(t *testing.T) {
	router := newTestRouter(&stubBackend{
		reserve: func(input model.ReserveRequest) (db.PendingDomain, error) {
			return db.PendingDomain{ID: 1, DomainName: "alice.pepu", WalletAddress: input.WalletAddress}, nil
		},
	}, "")

	rec := doJSON(t, router, http.MethodPost, "/api/domains/reserve", model.ReserveRequest{
		DomainName:    "alice",
		WalletAddress: "0x00000000000000000000000000000000000000Aa",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var out db.PendingDomain
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "alice.pepu", out.DomainName)
}

func TestReserveHandlerBadInput(t *testing.T) {
	router := newTestRouter(&stubBackend{}, "")

	rec := doJSON(t, router, http.MethodPost, "/api/domains/reserve", model.ReserveRequest{DomainName: "alice"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing_fields", errorKind(t, rec).Error)

	req := httptest.NewRequest(http.MethodPost, "/api/domains/reserve", bytes.NewReader([]byte("{not json")))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_body", errorKind(t, rec).Error)
}

func TestReserveHandlerConflict(t *testing.T) {
	router := newTestRouter(&stubBackend{
		reserve: func(model.ReserveRequest) (db.PendingDomain, error) {
			return db.PendingDomain{}, db.ErrAlreadyReserved
		},
	}, "")

	rec := doJSON(t, router, http.MethodPost, "/api/domains/reserve", model.ReserveRequest{
		DomainName:    "alice",
		WalletAddress: "0x00000000000000000000000000000000000000Aa",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_reserved", errorKind(t, rec).Error)
}

func confirmBody() model.ConfirmRequest {
	return model.ConfirmRequest{
		DomainName:    "alice",
		WalletAddress: "0x00000000000000000000000000000000000000Aa",
		TxHash:        "0x2222222222222222222222222222222222222222222222222222222222222222",
		PaymentAmount: "10",
	}
}

func TestConfirmHandler(t *testing.T) {
	router := newTestRouter(&stubBackend{
		confirm: func(_ context.Context, input model.ConfirmRequest) (db.Domain, error) {
			return db.Domain{ID: 7, DomainName: "alice.pepu", PaymentConfirmed: true}, nil
		},
	}, "")

	rec := doJSON(t, router, http.MethodPost, "/api/domains/confirm", confirmBody())
	require.Equal(t, http.StatusOK, rec.Code)

	var out db.Domain
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.True(t, out.PaymentConfirmed)
}

func TestConfirmHandlerMissingFields(t *testing.T) {
	router := newTestRouter(&stubBackend{}, "")

	body := confirmBody()
	body.TxHash = ""
	rec := doJSON(t, router, http.MethodPost, "/api/domains/confirm", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing_fields", errorKind(t, rec).Error)
}

func TestConfirmHandlerVerificationError(t *testing.T) {
	router := newTestRouter(&stubBackend{
		confirm: func(context.Context, model.ConfirmRequest) (db.Domain, error) {
			return db.Domain{}, &chain.VerificationError{Kind: chain.KindTxNotFound, Message: "not found"}
		},
	}, "")

	rec := doJSON(t, router, http.MethodPost, "/api/domains/confirm", confirmBody())
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	out := errorKind(t, rec)
	assert.Equal(t, chain.KindTxNotFound, out.Error)

	details, ok := out.Details.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, details["retryable"])
}

func TestConfirmHandlerDuplicate(t *testing.T) {
	router := newTestRouter(&stubBackend{
		confirm: func(context.Context, model.ConfirmRequest) (db.Domain, error) {
			return db.Domain{}, &backend.ConflictAfterPaymentError{SupportRef: "abc123xy"}
		},
	}, "")

	rec := doJSON(t, router, http.MethodPost, "/api/domains/confirm", confirmBody())
	assert.Equal(t, http.StatusConflict, rec.Code)

	out := errorKind(t, rec)
	assert.Equal(t, "duplicate_domain", out.Error)

	details, ok := out.Details.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "abc123xy", details["supportRef"])
}

func TestConfirmHandlerRPCUnavailable(t *testing.T) {
	router := newTestRouter(&stubBackend{
		confirm: func(context.Context, model.ConfirmRequest) (db.Domain, error) {
			return db.Domain{}, chain.ErrRPCUnavailable
		},
	}, "")

	rec := doJSON(t, router, http.MethodPost, "/api/domains/confirm", confirmBody())
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "rpc_unavailable", errorKind(t, rec).Error)
}

func TestConfirmHandlerUnexpectedError(t *testing.T) {
	router := newTestRouter(&stubBackend{
		confirm: func(context.Context, model.ConfirmRequest) (db.Domain, error) {
			return db.Domain{}, errors.New("boom")
		},
	}, "")

	rec := doJSON(t, router, http.MethodPost, "/api/domains/confirm", confirmBody())
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal_error", errorKind(t, rec).Error)
}

func TestLogTransactionHandler(t *testing.T) {
	router := newTestRouter(&stubBackend{
		logTransaction: func(input model.TransactionLogRequest) (db.TransactionLog, error) {
			return db.TransactionLog{ID: 1, DomainName: "alice.pepu", Status: input.Status}, nil
		},
	}, "")

	rec := doJSON(t, router, http.MethodPost, "/api/transactions/log", model.TransactionLogRequest{
		DomainName:    "alice",
		WalletAddress: "0x00000000000000000000000000000000000000Aa",
		Amount:        "10",
		Status:        model.TxStatusPending,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/transactions/log", model.TransactionLogRequest{
		DomainName:    "alice",
		WalletAddress: "0x00000000000000000000000000000000000000Aa",
		Amount:        "10",
		Status:        "bogus",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_status", errorKind(t, rec).Error)
}

func TestAdminRoutes(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("letmein"), bcrypt.MinCost)
	require.NoError(t, err)

	router := newTestRouter(&stubBackend{
		listDomains: func() ([]db.Domain, error) {
			return []db.Domain{{ID: 1, DomainName: "alice.pepu"}}, nil
		},
	}, string(hash))

	// no token
	rec := doJSON(t, router, http.MethodGet, "/api/admin/domains", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// wrong token
	req := httptest.NewRequest(http.MethodGet, "/api/admin/domains", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// correct token
	req = httptest.NewRequest(http.MethodGet, "/api/admin/domains", nil)
	req.Header.Set("Authorization", "Bearer letmein")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var out []db.Domain
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "alice.pepu", out[0].DomainName)
}

func TestAdminRoutesDisabledWithoutHash(t *testing.T) {
	router := newTestRouter(&stubBackend{
		listDomains: func() ([]db.Domain, error) {
			return nil, nil
		},
	}, "")

	rec := doJSON(t, router, http.MethodGet, "/api/admin/domains", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
