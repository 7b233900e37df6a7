package apiserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pepuns/pepuns-api/pkg/backend"
	"github.com/pepuns/pepuns-api/pkg/chain"
	"github.com/pepuns/pepuns-api/pkg/db"
	"github.com/pepuns/pepuns-api/pkg/model"
	"github.com/pepuns/pepuns-api/pkg/name"
	"github.com/pepuns/pepuns-api/pkg/version"
)

type handler struct {
	backend backend.Backend
}

func newHandler(b backend.Backend) *handler {
	return &handler{
		backend: b,
	}
}

func (h *handler) root(w http.ResponseWriter, r *http.Request) {
	v := version.Get()
	if err := json.NewEncoder(w).Encode(v); err != nil {
		w.WriteHeader(500)
		_, _ = w.Write([]byte(`{"success": false}`))
	}
}

func (h *handler) checkDomain(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	domainName := vars["domain"]

	resp, err := h.backend.CheckAvailability(domainName)
	if err != nil {
		handleError(w, err)
		return
	}

	writeSuccess(w, resp)
}

func (h *handler) getDomain(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	domainName := vars["domain"]

	domain, err := h.backend.GetDomain(domainName)
	if err != nil {
		handleError(w, err)
		return
	}

	writeSuccess(w, domain)
}

func (h *handler) reserveDomain(w http.ResponseWriter, r *http.Request) {
	var input model.ReserveRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if input.WalletAddress == "" {
		writeError(w, http.StatusBadRequest, "missing_fields", "walletAddress is required")
		return
	}

	pending, err := h.backend.Reserve(input)
	if err != nil {
		handleError(w, err)
		return
	}

	writeSuccess(w, pending)
}

func (h *handler) confirmDomain(w http.ResponseWriter, r *http.Request) {
	var input model.ConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if input.DomainName == "" || input.WalletAddress == "" || input.TxHash == "" || input.PaymentAmount == "" {
		writeError(w, http.StatusBadRequest, "missing_fields", "domainName, walletAddress, txHash and paymentAmount are required")
		return
	}

	domain, err := h.backend.Confirm(r.Context(), input)
	if err != nil {
		handleError(w, err)
		return
	}

	writeSuccess(w, domain)
}

func (h *handler) logTransaction(w http.ResponseWriter, r *http.Request) {
	var input model.TransactionLogRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if err := model.IsValidTxStatus(input.Status); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_status", err.Error())
		return
	}

	entry, err := h.backend.LogTransaction(input)
	if err != nil {
		handleError(w, err)
		return
	}

	writeSuccess(w, entry)
}

func (h *handler) listDomains(w http.ResponseWriter, r *http.Request) {
	domains, err := h.backend.ListDomains()
	if err != nil {
		handleError(w, err)
		return
	}

	writeSuccess(w, domains)
}

func (h *handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	logs, err := h.backend.ListTransactionLogs()
	if err != nil {
		handleError(w, err)
		return
	}

	writeSuccess(w, logs)
}

// handleError maps the error taxonomy onto HTTP statuses. The client keys
// off the kind in the body, not the status line.
func handleError(w http.ResponseWriter, err error) {
	var validationErr *name.ValidationError
	if errors.As(err, &validationErr) {
		writeError(w, http.StatusBadRequest, validationErr.Kind, validationErr.Message)
		return
	}

	var walletErr *backend.InvalidWalletError
	if errors.As(err, &walletErr) {
		writeError(w, http.StatusBadRequest, "invalid_wallet", walletErr.Error())
		return
	}

	var conflictErr *backend.ConflictAfterPaymentError
	if errors.As(err, &conflictErr) {
		writeError(w, http.StatusConflict, "duplicate_domain", map[string]interface{}{
			"message":    conflictErr.Error(),
			"supportRef": conflictErr.SupportRef,
		})
		return
	}

	var verificationErr *chain.VerificationError
	if errors.As(err, &verificationErr) {
		writeError(w, http.StatusBadRequest, verificationErr.Kind, map[string]interface{}{
			"message":   verificationErr.Message,
			"retryable": verificationErr.Retryable(),
		})
		return
	}

	switch {
	case errors.Is(err, db.ErrDomainNotFound):
		writeError(w, http.StatusNotFound, "not_found", nil)
	case errors.Is(err, db.ErrDuplicateDomain):
		writeError(w, http.StatusConflict, "duplicate_domain", nil)
	case errors.Is(err, db.ErrAlreadyReserved):
		writeError(w, http.StatusConflict, "already_reserved", nil)
	case errors.Is(err, chain.ErrRPCUnavailable):
		writeError(w, http.StatusBadGateway, "rpc_unavailable", "the chain node could not be reached, try again")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", nil)
	}
}
