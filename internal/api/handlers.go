package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matrixise/chainbridge/internal/balance"
	"github.com/matrixise/chainbridge/internal/catalog"
	"github.com/matrixise/chainbridge/internal/eventloop"
	"github.com/matrixise/chainbridge/internal/lifecycle"
	"github.com/matrixise/chainbridge/internal/selection"
	"github.com/matrixise/chainbridge/internal/session"
	"github.com/matrixise/chainbridge/internal/storage"
	"github.com/matrixise/chainbridge/internal/wallet"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type tokenRequest struct {
	Symbol string `json:"symbol"`
	Family string `json:"family"`
}

type amountRequest struct {
	Amount string `json:"amount"`
}

type networkRequest struct {
	Network string `json:"network"`
}

var (
	errBadRequest      = errors.New("malformed request body")
	errJournalDisabled = errors.New("transfer journal is not configured")
	errUnknownTransfer = errors.New("no journal entries for transfer")
)

// command runs fn on the loop and replies with the resulting snapshot.
func (s *Server) command(w http.ResponseWriter, r *http.Request, okStatus int, fn func() error) {
	var (
		cmdErr error
		snap   session.Snapshot
	)
	err := s.loop.Do(r.Context(), func() {
		cmdErr = fn()
		snap = s.session.Snapshot()
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	if cmdErr != nil {
		s.writeError(w, cmdErr)
		return
	}
	writeJSON(w, okStatus, snap)
}

func (s *Server) getState(w http.ResponseWriter, r *http.Request) {
	s.command(w, r, http.StatusOK, func() error { return nil })
}

func (s *Server) getTokens(w http.ResponseWriter, r *http.Request) {
	var tokens []session.TokenView
	err := s.loop.Do(r.Context(), func() {
		tokens = s.session.Snapshot().Balances
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}

func (s *Server) connectWallet(w http.ResponseWriter, r *http.Request) {
	s.command(w, r, http.StatusOK, func() error {
		if conn := s.session.Connect(r.Context()); !conn.Connected {
			s.logger.Warn("Wallet connect request did not establish a connection")
		}
		return nil
	})
}

func (s *Server) disconnectWallet(w http.ResponseWriter, r *http.Request) {
	s.command(w, r, http.StatusOK, func() error {
		s.session.Disconnect()
		return nil
	})
}

func (s *Server) switchNetwork(w http.ResponseWriter, r *http.Request) {
	var req networkRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	s.command(w, r, http.StatusOK, func() error {
		return s.session.SwitchNetwork(req.Network)
	})
}

func (s *Server) refreshBalances(w http.ResponseWriter, r *http.Request) {
	s.command(w, r, http.StatusOK, func() error {
		_, err := s.session.RefreshBalances(r.Context())
		return err
	})
}

func (s *Server) selectSource(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	s.command(w, r, http.StatusOK, func() error {
		return s.session.SelectSource(req.Symbol, req.Family)
	})
}

func (s *Server) selectDestination(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	s.command(w, r, http.StatusOK, func() error {
		return s.session.SelectDestination(req.Symbol, req.Family)
	})
}

func (s *Server) setAmount(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	s.command(w, r, http.StatusOK, func() error {
		return s.session.SetAmount(req.Amount)
	})
}

func (s *Server) swap(w http.ResponseWriter, r *http.Request) {
	s.command(w, r, http.StatusOK, func() error {
		s.session.Swap()
		return nil
	})
}

func (s *Server) maxAmount(w http.ResponseWriter, r *http.Request) {
	s.command(w, r, http.StatusOK, s.session.MaxAmount)
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request) {
	s.command(w, r, http.StatusAccepted, func() error {
		tr, err := s.session.Submit()
		if err == nil {
			s.logger.Info("Transfer accepted", "transfer_id", tr.ID, "request_id", middleware.GetReqID(r.Context()))
		}
		return err
	})
}

func (s *Server) dismiss(w http.ResponseWriter, r *http.Request) {
	s.command(w, r, http.StatusOK, s.session.Dismiss)
}

// transferEvents reads the journal directly; it never touches the session.
func (s *Server) transferEvents(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		s.writeError(w, errJournalDisabled)
		return
	}
	id := chi.URLParam(r, "id")
	rows, err := s.journal.TransferEvents(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if len(rows) == 0 {
		s.writeError(w, fmt.Errorf("%w: %s", errUnknownTransfer, id))
		return
	}
	out := make([]storage.EventView, 0, len(rows))
	for _, ev := range rows {
		out = append(out, ev.View())
	}
	writeJSON(w, http.StatusOK, out)
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Join(errBadRequest, err)
	}
	return nil
}

// errorCodes maps domain errors to HTTP status and a stable code. Order
// matters: the first match wins.
var errorCodes = []struct {
	err    error
	status int
	code   string
}{
	{errBadRequest, http.StatusBadRequest, "bad_request"},
	{errJournalDisabled, http.StatusNotFound, "journal_disabled"},
	{errUnknownTransfer, http.StatusNotFound, "unknown_transfer"},
	{session.ErrUnknownToken, http.StatusNotFound, "unknown_token"},
	{catalog.ErrUnknownFamily, http.StatusBadRequest, "unknown_family"},
	{selection.ErrValidation, http.StatusUnprocessableEntity, "invalid_amount"},
	{selection.ErrNoSource, http.StatusUnprocessableEntity, "missing_source"},
	{lifecycle.ErrMissingSource, http.StatusUnprocessableEntity, "missing_source"},
	{lifecycle.ErrMissingDestination, http.StatusUnprocessableEntity, "missing_destination"},
	{lifecycle.ErrInvalidAmount, http.StatusUnprocessableEntity, "invalid_amount"},
	{lifecycle.ErrWalletDisconnected, http.StatusUnprocessableEntity, "wallet_disconnected"},
	{lifecycle.ErrInsufficientBalance, http.StatusUnprocessableEntity, "insufficient_balance"},
	{lifecycle.ErrTransferInProgress, http.StatusConflict, "transfer_in_progress"},
	{lifecycle.ErrNotIdle, http.StatusConflict, "not_idle"},
	{lifecycle.ErrNothingToDismiss, http.StatusConflict, "nothing_to_dismiss"},
	{wallet.ErrNotConnected, http.StatusConflict, "wallet_disconnected"},
	{wallet.ErrUnsupportedNetwork, http.StatusBadRequest, "unsupported_network"},
	{balance.ErrOracleUnavailable, http.StatusBadGateway, "oracle_unavailable"},
	{eventloop.ErrStopped, http.StatusServiceUnavailable, "shutting_down"},
	{context.DeadlineExceeded, http.StatusServiceUnavailable, "busy"},
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	for _, m := range errorCodes {
		if errors.Is(err, m.err) {
			writeJSON(w, m.status, ErrorResponse{Error: err.Error(), Code: m.code})
			return
		}
	}
	s.logger.Error("Unhandled request error", "error", err)
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "internal"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
