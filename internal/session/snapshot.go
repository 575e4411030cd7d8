package session

import (
	"time"

	"github.com/matrixise/chainbridge/internal/catalog"
	"github.com/matrixise/chainbridge/internal/lifecycle"
	"github.com/matrixise/chainbridge/internal/selection"
)

// TokenView is a token with its formatted balance.
type TokenView struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Family   string `json:"family"`
	Address  string `json:"address"`
	Decimals int32  `json:"decimals"`
	Balance  string `json:"balance"`
}

// WalletView is the wallet connection as shown to the user.
type WalletView struct {
	Address      string `json:"address,omitempty"`
	ShortAddress string `json:"short_address,omitempty"`
	Connected    bool   `json:"connected"`
	Network      string `json:"network,omitempty"`
	Error        string `json:"error,omitempty"`
}

// QuoteView carries the quote calculator outputs.
type QuoteView struct {
	Fee            string `json:"fee"`
	Received       string `json:"received"`
	Speed          string `json:"speed,omitempty"`
	SettlementTime string `json:"settlement_time,omitempty"`
}

// TransferView is the latest transfer.
type TransferView struct {
	ID             string    `json:"id"`
	Source         string    `json:"source"`
	Destination    string    `json:"destination"`
	Amount         string    `json:"amount"`
	Received       string    `json:"received"`
	SettlementTime string    `json:"settlement_time"`
	Status         string    `json:"status"`
	Stage          string    `json:"stage,omitempty"`
	Credited       bool      `json:"credited"`
	Error          string    `json:"error,omitempty"`
	SubmittedAt    time.Time `json:"submitted_at"`
}

// Snapshot is a read-only copy of every observable of a session.
type Snapshot struct {
	Wallet                WalletView    `json:"wallet"`
	Status                string        `json:"status"`
	Source                *TokenView    `json:"source"`
	Destination           *TokenView    `json:"destination"`
	Amount                string        `json:"amount"`
	Quote                 QuoteView     `json:"quote"`
	Transfer              *TransferView `json:"transfer,omitempty"`
	Balances              []TokenView   `json:"balances"`
	AvailableSources      []TokenView   `json:"available_sources"`
	AvailableDestinations []TokenView   `json:"available_destinations"`
	LastRejection         string        `json:"last_rejection,omitempty"`
	RefreshError          string        `json:"refresh_error,omitempty"`
	RefreshedAt           *time.Time    `json:"refreshed_at,omitempty"`
}

// Snapshot captures the current state.
func (s *Session) Snapshot() Snapshot {
	conn := s.wallet.Connection()
	snap := Snapshot{
		Wallet: WalletView{
			Address:      conn.Address,
			ShortAddress: conn.ShortAddress(),
			Connected:    conn.Connected,
			Network:      conn.Network,
		},
		Status:                string(s.controller.Status()),
		Amount:                s.selection.Amount(),
		Balances:              s.tokenViews(),
		AvailableSources:      optionViews(s.selection.AvailableSources()),
		AvailableDestinations: optionViews(s.selection.AvailableDestinations()),
	}
	if err := s.wallet.LastError(); err != nil {
		snap.Wallet.Error = err.Error()
	}

	if src := s.selection.Source(); src != nil {
		v := s.view(*src)
		snap.Source = &v
	}
	if dst := s.selection.Destination(); dst != nil {
		v := s.view(*dst)
		snap.Destination = &v
	}

	q := s.Quote()
	snap.Quote = QuoteView{Fee: q.Fee, Received: q.Received}
	if q.Speed != "" {
		snap.Quote.Speed = string(q.Speed)
		snap.Quote.SettlementTime = q.Speed.Estimate()
	}

	if tr := s.controller.Current(); tr != nil {
		snap.Transfer = transferView(tr)
	}
	if s.lastRejection != nil {
		snap.LastRejection = s.lastRejection.Error()
	}
	if s.refreshErr != nil {
		snap.RefreshError = s.refreshErr.Error()
	}
	if at := s.store.RefreshedAt(); !at.IsZero() {
		snap.RefreshedAt = &at
	}
	return snap
}

func (s *Session) view(t catalog.Token) TokenView {
	return TokenView{
		Symbol:   t.Symbol,
		Name:     t.Name,
		Family:   string(t.Family),
		Address:  t.Address,
		Decimals: t.Decimals,
		Balance:  s.store.Format(t),
	}
}

func (s *Session) tokenViews() []TokenView {
	tokens := s.catalog.List()
	out := make([]TokenView, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, s.view(t))
	}
	return out
}

func optionViews(opts []selection.Option) []TokenView {
	out := make([]TokenView, 0, len(opts))
	for _, o := range opts {
		out = append(out, TokenView{
			Symbol:   o.Token.Symbol,
			Name:     o.Token.Name,
			Family:   string(o.Token.Family),
			Address:  o.Token.Address,
			Decimals: o.Token.Decimals,
			Balance:  o.Balance,
		})
	}
	return out
}

func transferView(tr *lifecycle.Transfer) *TransferView {
	v := &TransferView{
		ID:             tr.ID,
		Source:         tr.Source.Key().String(),
		Destination:    tr.Destination.Key().String(),
		Amount:         tr.Amount.String(),
		Received:       tr.Received,
		SettlementTime: tr.Speed.Estimate(),
		Status:         string(tr.Status),
		Stage:          string(tr.Stage),
		Credited:       tr.Credited,
		SubmittedAt:    tr.SubmittedAt,
	}
	if tr.Failure != nil {
		v.Error = tr.Failure.Error()
	}
	return v
}
