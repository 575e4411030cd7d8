package storage

import (
	"time"

	"github.com/matrixise/chainbridge/internal/lifecycle"
	"github.com/shopspring/decimal"
)

// TransferEvent is one row of the transfer journal.
type TransferEvent struct {
	ID          int64
	OccurredAt  time.Time
	Wallet      string
	TransferID  string
	Kind        string
	Status      string
	Stage       string
	Source      string
	Destination string
	Amount      decimal.Decimal
	// Balance is set for debit and credit events only.
	Balance decimal.NullDecimal
	Error   string
}

// FromLifecycle converts a controller event to a journal row.
func FromLifecycle(wallet string, ev lifecycle.Event) TransferEvent {
	row := TransferEvent{
		OccurredAt: ev.At,
		Wallet:     wallet,
		TransferID: ev.TransferID,
		Kind:       string(ev.Kind),
		Status:     string(ev.Status),
		Stage:      string(ev.Stage),
		Amount:     ev.Amount,
	}
	if ev.Source.Symbol != "" {
		row.Source = ev.Source.String()
	}
	if ev.Destination.Symbol != "" {
		row.Destination = ev.Destination.String()
	}
	if ev.Kind == lifecycle.EventDebited || ev.Kind == lifecycle.EventCredited {
		row.Balance = decimal.NewNullDecimal(ev.Balance)
	}
	if ev.Err != nil {
		row.Error = ev.Err.Error()
	}
	return row
}

// EventView is the JSON rendering of a journal row.
type EventView struct {
	OccurredAt  time.Time `json:"occurred_at"`
	Kind        string    `json:"kind"`
	Status      string    `json:"status"`
	Stage       string    `json:"stage,omitempty"`
	Source      string    `json:"source,omitempty"`
	Destination string    `json:"destination,omitempty"`
	Amount      string    `json:"amount"`
	Balance     string    `json:"balance,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// View converts the row for API responses. Amounts keep full precision.
func (ev TransferEvent) View() EventView {
	v := EventView{
		OccurredAt:  ev.OccurredAt.UTC(),
		Kind:        ev.Kind,
		Status:      ev.Status,
		Stage:       ev.Stage,
		Source:      ev.Source,
		Destination: ev.Destination,
		Amount:      ev.Amount.String(),
		Error:       ev.Error,
	}
	if ev.Balance.Valid {
		v.Balance = ev.Balance.Decimal.String()
	}
	return v
}
