package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"dblog/app/chain"
	"dblog/app/models"
	"dblog/app/storage"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const (
	// MaxBlobSize bounds uploaded bodies and images.
	MaxBlobSize = 10 << 20
	// MaxReceiptWait bounds the long poll on a receipt.
	MaxReceiptWait = 30 * time.Second
)

// SendTransactionResponse is returned when a transaction enters the mempool.
type SendTransactionResponse struct {
	Hash string `json:"hash"`
}

// NonceResponse carries the next nonce for an account.
type NonceResponse struct {
	Address models.Address `json:"address"`
	Nonce   uint64         `json:"nonce"`
}

// PutBlobResponse carries the identifier of stored content.
type PutBlobResponse struct {
	ID string `json:"id"`
}

// RPCController exposes the node and its content store to remote clients.
type RPCController struct {
	node   *chain.Node
	store  storage.ContentStore
	logger *zap.Logger
}

func NewRPCController(node *chain.Node, store storage.ContentStore, logger *zap.Logger) *RPCController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RPCController{node: node, store: store, logger: logger}
}

// Chain reports the chain id, registry name and head.
func (rc *RPCController) Chain(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, rc.node.Info())
}

// SendTransaction admits a signed transaction to the mempool.
func (rc *RPCController) SendTransaction(w http.ResponseWriter, r *http.Request) {
	var tx chain.Transaction
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBlobSize)).Decode(&tx); err != nil {
		badRequest(w, "Invalid JSON: "+err.Error())
		return
	}
	hash, err := rc.node.SendTransaction(r.Context(), &tx)
	if err != nil {
		rc.logger.Debug("transaction rejected", zap.String("from", string(tx.From)), zap.Error(err))
		sendErr(w, err)
		return
	}
	sendJSON(w, http.StatusAccepted, SendTransactionResponse{Hash: hash})
}

// Receipt returns a transaction receipt. With ?wait=<duration> it blocks until
// the transaction is mined or the wait elapses.
func (rc *RPCController) Receipt(w http.ResponseWriter, r *http.Request) {
	hash, ok := pathVar(w, r, "hash")
	if !ok {
		return
	}

	wait := time.Duration(0)
	if s := r.URL.Query().Get("wait"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d < 0 {
			badRequest(w, "Invalid wait duration")
			return
		}
		wait = min(d, MaxReceiptWait)
	}

	var (
		receipt *chain.Receipt
		err     error
	)
	if wait > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), wait)
		receipt, err = rc.node.WaitForReceipt(ctx, hash)
		cancel()
		if errors.Is(err, context.DeadlineExceeded) && r.Context().Err() == nil {
			err = chain.ErrReceiptNotFound
		}
	} else {
		receipt, err = rc.node.TransactionReceipt(r.Context(), hash)
	}
	if err != nil {
		sendErr(w, err)
		return
	}
	sendJSON(w, http.StatusOK, receipt)
}

// Nonce returns the next nonce the node will accept from an address.
func (rc *RPCController) Nonce(w http.ResponseWriter, r *http.Request) {
	raw, ok := pathVar(w, r, "address")
	if !ok {
		return
	}
	addr := models.NormalizeAddress(raw)
	if err := models.ValidateAddress(string(addr)); err != nil {
		badRequest(w, "Invalid address")
		return
	}
	nonce, err := rc.node.PendingNonce(r.Context(), addr)
	if err != nil {
		sendErr(w, err)
		return
	}
	sendJSON(w, http.StatusOK, NonceResponse{Address: addr, Nonce: nonce})
}

// Posts lists every registry record.
func (rc *RPCController) Posts(w http.ResponseWriter, r *http.Request) {
	posts, err := rc.node.Registry().GetPosts(r.Context())
	if err != nil {
		sendErr(w, err)
		return
	}
	sendJSON(w, http.StatusOK, posts)
}

// Post returns one registry record by id.
func (rc *RPCController) Post(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		badRequest(w, "Invalid post ID")
		return
	}
	post, err := rc.node.Registry().GetPostByID(r.Context(), id)
	if err != nil {
		sendErr(w, err)
		return
	}
	sendJSON(w, http.StatusOK, post)
}

// PostByHash returns the registry record currently carrying a content hash.
func (rc *RPCController) PostByHash(w http.ResponseWriter, r *http.Request) {
	hash, ok := pathVar(w, r, "hash")
	if !ok {
		return
	}
	post, err := rc.node.Registry().GetPost(r.Context(), hash)
	if err != nil {
		sendErr(w, err)
		return
	}
	sendJSON(w, http.StatusOK, post)
}

// Events pages through the registry event log.
func (rc *RPCController) Events(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var after uint64
	if s := q.Get("after"); s != "" {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			badRequest(w, "Invalid after parameter")
			return
		}
		after = v
	}
	limit := 100
	if s := q.Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 {
			badRequest(w, "Invalid limit parameter")
			return
		}
		limit = min(v, 1000)
	}

	events, err := rc.node.Registry().EventsSince(r.Context(), after, limit)
	if err != nil {
		sendErr(w, err)
		return
	}
	sendJSON(w, http.StatusOK, events)
}

// PutBlob stores the request body and returns its identifier.
func (rc *RPCController) PutBlob(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBlobSize))
	if err != nil {
		sendError(w, "Failed to read body: "+err.Error(), http.StatusRequestEntityTooLarge, "invalid_input")
		return
	}
	id, err := rc.store.Put(r.Context(), data)
	if err != nil {
		rc.logger.Error("failed to store content", zap.Error(err))
		sendErr(w, err)
		return
	}
	sendJSON(w, http.StatusCreated, PutBlobResponse{ID: id})
}

// GetBlob returns stored content verbatim.
func (rc *RPCController) GetBlob(w http.ResponseWriter, r *http.Request) {
	id, ok := pathVar(w, r, "id")
	if !ok {
		return
	}
	if err := storage.ValidateID(id); err != nil {
		sendErr(w, err)
		return
	}
	data, err := rc.store.Get(r.Context(), id)
	if err != nil {
		sendErr(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Write(data)
}
