package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"dblog/app/chain"
	"dblog/app/indexer"
	"dblog/app/repositories"
	"dblog/app/services"
	"dblog/app/storage"
	"dblog/app/wallet"
)

// ErrorResponse is the body of every failed API or RPC call. Post is set when
// registry metadata is available even though the body is not.
type ErrorResponse struct {
	Error string              `json:"error"`
	Code  string              `json:"code"`
	Post  *services.PostView `json:"post,omitempty"`
}

type errorMapping struct {
	err    error
	status int
	code   string
}

// Checked in order; wrapped service errors come before the causes they wrap.
var errorTable = []errorMapping{
	{services.ErrContentUnavailable, http.StatusServiceUnavailable, "content_unavailable"},
	{services.ErrInvalidContent, http.StatusUnprocessableEntity, "invalid_content"},
	{services.ErrConfirmationTimeout, http.StatusGatewayTimeout, "confirmation_timeout"},
	{services.ErrNoAccount, http.StatusServiceUnavailable, "no_account"},
	{wallet.ErrLocked, http.StatusServiceUnavailable, "no_account"},
	{services.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
	{services.ErrStoreFailed, http.StatusBadGateway, "store_failed"},
	{repositories.ErrUnauthorized, http.StatusForbidden, "unauthorized"},
	{repositories.ErrNotFound, http.StatusNotFound, "post_not_found"},
	{storage.ErrNotFound, http.StatusNotFound, "content_not_found"},
	{indexer.ErrNotFound, http.StatusNotFound, "index_not_found"},
	{chain.ErrReceiptNotFound, http.StatusNotFound, "receipt_not_found"},
	{services.ErrSubmissionFailed, http.StatusBadGateway, "submission_failed"},
	{chain.ErrWrongChain, http.StatusBadRequest, "wrong_chain"},
	{chain.ErrInvalidTransaction, http.StatusBadRequest, "invalid_transaction"},
	{chain.ErrInvalidNonce, http.StatusBadRequest, "invalid_nonce"},
	{chain.ErrKnownTransaction, http.StatusConflict, "known_transaction"},
	{chain.ErrMempoolFull, http.StatusServiceUnavailable, "mempool_full"},
	{storage.ErrInvalidID, http.StatusBadRequest, "invalid_content_id"},
	{storage.ErrCorrupt, http.StatusBadGateway, "corrupt_content"},
	{repositories.ErrInvalidCaller, http.StatusBadRequest, "invalid_caller"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
}

// StatusFor maps err to an HTTP status and a stable error code.
func StatusFor(err error) (int, string) {
	for _, m := range errorTable {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

// ErrorForCode returns the sentinel error a code stands for, or nil.
func ErrorForCode(code string) error {
	for _, m := range errorTable {
		if m.code == code {
			return m.err
		}
	}
	return nil
}

// Helper methods for consistent response handling

func sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func sendError(w http.ResponseWriter, message string, status int, code string) {
	sendJSON(w, status, ErrorResponse{Error: message, Code: code})
}

func sendErr(w http.ResponseWriter, err error) {
	status, code := StatusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}
	sendError(w, message, status, code)
}

func badRequest(w http.ResponseWriter, message string) {
	sendError(w, message, http.StatusBadRequest, "invalid_input")
}
