package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"
	"github.com/ruteri/vanity-name-registrar/api"
	"github.com/ruteri/vanity-name-registrar/interfaces"
)

// maxNameLength bounds names accepted over HTTP.
const maxNameLength = 253

// RequestError pairs an error with the HTTP status it should produce.
type RequestError struct {
	StatusCode int
	Err        error
}

func (e *RequestError) Error() string {
	return e.Err.Error()
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Registrar is the registrar surface served over HTTP.
type Registrar interface {
	Now() time.Time
	CreateCommitment(caller interfaces.Address, name string, salt interfaces.Salt) interfaces.Digest
	Commit(ctx context.Context, caller interfaces.Address, commitment interfaces.Digest)
	Register(ctx context.Context, caller interfaces.Address, name string, salt interfaces.Salt, payment *big.Int) error
	RenewName(ctx context.Context, caller interfaces.Address, name string) error
	Withdraw(ctx context.Context, caller interfaces.Address, name string) error
	NameLock(name string) (interfaces.NameLock, bool)
	Events(since uint64) []interfaces.Event
}

// Balances reports escrow ledger balances. Optional.
type Balances interface {
	Balance(addr interfaces.Address) *big.Int
}

// OperationObserver records outcomes of registrar operations. Optional.
type OperationObserver interface {
	ObserveFailure(operation string, err error)
	ObserveDuration(operation string, start time.Time)
}

// Handler serves the registrar JSON API.
type Handler struct {
	registrar Registrar
	balances  Balances
	observer  OperationObserver
	log       *slog.Logger
	nonces    *replayGuard
}

func NewHandler(registrar Registrar, balances Balances, observer OperationObserver, log *slog.Logger) *Handler {
	return &Handler{
		registrar: registrar,
		balances:  balances,
		observer:  observer,
		log:       log,
		nonces:    newReplayGuard(),
	}
}

// HandleCreateCommitment computes a commitment without storing it.
// The committer is the explicit address, or the signer if the body is signed.
func (h *Handler) HandleCreateCommitment(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var req api.CommitmentRequest
	if err := decodeJSON(body, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if err := validateName(req.Name); err != nil {
		h.writeError(w, err)
		return
	}

	var committer interfaces.Address
	switch {
	case req.Address != nil:
		committer = *req.Address
	case r.Header.Get(api.SignatureHeader) != "":
		committer, err = authenticate(r, body)
		if err != nil {
			h.writeError(w, err)
			return
		}
	default:
		h.writeError(w, &RequestError{http.StatusBadRequest, errors.New("address is required for unsigned requests")})
		return
	}

	h.writeJSON(w, http.StatusOK, api.CommitmentResponse{
		Commitment: h.registrar.CreateCommitment(committer, req.Name, req.Salt),
	})
}

// HandleCommit stores the signer's commitment.
func (h *Handler) HandleCommit(w http.ResponseWriter, r *http.Request) {
	var req api.CommitRequest
	caller, ok := h.signedRequest(w, r, api.OpCommit, &req.Authorization, &req)
	if !ok {
		return
	}

	start := time.Now()
	h.registrar.Commit(r.Context(), caller, req.Commitment)
	h.observe("commit", start, nil)
	h.writeJSON(w, http.StatusOK, api.StatusResponse{Status: "committed", Caller: &caller})
}

// HandleRegister reveals the signer's commitment and escrows the payment.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	caller, ok := h.signedRequest(w, r, api.OpRegister, &req.Authorization, &req)
	if !ok {
		return
	}
	if err := validateName(req.Name); err != nil {
		h.writeError(w, err)
		return
	}

	var payment *big.Int
	if req.Payment != nil {
		payment = req.Payment.ToInt()
	}

	start := time.Now()
	err := h.registrar.Register(r.Context(), caller, req.Name, req.Salt, payment)
	h.observe("register", start, err)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, api.StatusResponse{Status: "registered", Caller: &caller})
}

// HandleRenew extends an active lock.
func (h *Handler) HandleRenew(w http.ResponseWriter, r *http.Request) {
	var req api.NameRequest
	caller, ok := h.signedRequest(w, r, api.OpRenew, &req.Authorization, &req)
	if !ok {
		return
	}
	if err := validateName(req.Name); err != nil {
		h.writeError(w, err)
		return
	}

	start := time.Now()
	err := h.registrar.RenewName(r.Context(), caller, req.Name)
	h.observe("renew", start, err)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, api.StatusResponse{Status: "renewed", Caller: &caller})
}

// HandleWithdraw releases escrow of an expired lock, or the signer's escrow
// left behind by a takeover.
func (h *Handler) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req api.NameRequest
	caller, ok := h.signedRequest(w, r, api.OpWithdraw, &req.Authorization, &req)
	if !ok {
		return
	}
	if err := validateName(req.Name); err != nil {
		h.writeError(w, err)
		return
	}

	start := time.Now()
	err := h.registrar.Withdraw(r.Context(), caller, req.Name)
	h.observe("withdraw", start, err)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, api.StatusResponse{Status: "withdrawn", Caller: &caller})
}

// HandleNameLock returns the lock for {name}, expired or not.
func (h *Handler) HandleNameLock(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := validateName(name); err != nil {
		h.writeError(w, err)
		return
	}

	lock, ok := h.registrar.NameLock(name)
	if !ok {
		h.writeError(w, interfaces.ErrNameNotFound)
		return
	}

	h.writeJSON(w, http.StatusOK, api.NewNameLockResponse(name, lock, h.registrar.Now()))
}

// HandleEvents returns events with sequence number greater than ?since.
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	var since uint64
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			h.writeError(w, &RequestError{http.StatusBadRequest, fmt.Errorf("invalid since parameter: %w", err)})
			return
		}
		since = parsed
	}

	events := h.registrar.Events(since)
	resp := api.EventsResponse{Events: make([]api.EventMessage, 0, len(events))}
	for _, event := range events {
		resp.Events = append(resp.Events, api.NewEventMessage(event))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// HandleAccount returns the escrow ledger balance of {address}.
func (h *Handler) HandleAccount(w http.ResponseWriter, r *http.Request) {
	if h.balances == nil {
		h.writeError(w, &RequestError{http.StatusNotImplemented, errors.New("account balances are not tracked by this registrar")})
		return
	}

	raw := chi.URLParam(r, "address")
	if !common.IsHexAddress(raw) {
		h.writeError(w, &RequestError{http.StatusBadRequest, fmt.Errorf("invalid address %q", raw)})
		return
	}
	addr := common.HexToAddress(raw)

	h.writeJSON(w, http.StatusOK, api.AccountResponse{
		Address: addr,
		Balance: (*hexutil.Big)(h.balances.Balance(addr)),
	})
}

// signedRequest reads and authenticates the body, decodes it into dst and
// checks that its authorization is for op, unexpired and not seen before.
func (h *Handler) signedRequest(w http.ResponseWriter, r *http.Request, op string, auth *api.Authorization, dst any) (interfaces.Address, bool) {
	body, err := readBody(r)
	if err != nil {
		h.writeError(w, err)
		return interfaces.Address{}, false
	}

	caller, err := authenticate(r, body)
	if err != nil {
		h.writeError(w, err)
		return interfaces.Address{}, false
	}

	if err := decodeJSON(body, dst); err != nil {
		h.writeError(w, err)
		return interfaces.Address{}, false
	}

	if err := h.authorize(caller, op, *auth); err != nil {
		h.writeError(w, err)
		return interfaces.Address{}, false
	}

	return caller, true
}

func (h *Handler) authorize(caller interfaces.Address, op string, auth api.Authorization) error {
	if auth.Operation != op {
		return fmt.Errorf("%w: signed for %q, sent to %q", api.ErrInvalidAuthorization, auth.Operation, op)
	}

	now := h.registrar.Now()
	if auth.Deadline < now.Unix() {
		return fmt.Errorf("%w: deadline %d", api.ErrAuthorizationExpired, auth.Deadline)
	}
	if auth.Deadline > now.Add(api.MaxAuthorizationLifetime).Unix() {
		return fmt.Errorf("%w: deadline more than %s ahead", api.ErrInvalidAuthorization, api.MaxAuthorizationLifetime)
	}

	if !h.nonces.use(caller, auth.Nonce, auth.Deadline, now.Unix()) {
		return fmt.Errorf("%w: nonce %d", api.ErrReplayedRequest, auth.Nonce)
	}
	return nil
}

func (h *Handler) observe(operation string, start time.Time, err error) {
	if h.observer == nil {
		return
	}
	h.observer.ObserveDuration(operation, start)
	if err != nil {
		h.observer.ObserveFailure(operation, err)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to write response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := api.ErrorStatus(err)
	code := api.ErrorCode(err)

	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		status = reqErr.StatusCode
		code = strings.ReplaceAll(strings.ToLower(http.StatusText(status)), " ", "_")
	}

	if status >= http.StatusInternalServerError {
		h.log.Error("Request failed", "err", err)
	} else {
		h.log.Debug("Request rejected", slog.Int("status", status), "err", err)
	}

	h.writeJSON(w, status, api.ErrorResponse{Error: err.Error(), Code: code})
}

func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, api.MaxBodySize+1))
	if err != nil {
		return nil, &RequestError{http.StatusBadRequest, fmt.Errorf("failed to read request body: %w", err)}
	}
	if len(body) > api.MaxBodySize {
		return nil, &RequestError{http.StatusRequestEntityTooLarge, errors.New("request body too large")}
	}
	return body, nil
}

func decodeJSON(body []byte, dst any) error {
	if err := json.Unmarshal(body, dst); err != nil {
		return &RequestError{http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err)}
	}
	return nil
}

func validateName(name string) error {
	if name == "" {
		return &RequestError{http.StatusBadRequest, errors.New("name is required")}
	}
	if len(name) > maxNameLength {
		return &RequestError{http.StatusBadRequest, fmt.Errorf("name longer than %d bytes", maxNameLength)}
	}
	return nil
}
