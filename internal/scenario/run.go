package scenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/matrixise/chainbridge/internal/eventloop"
	"github.com/matrixise/chainbridge/internal/lifecycle"
	"github.com/matrixise/chainbridge/internal/session"
)

var (
	// ErrExpectation reports a failed expect step or an unexpected
	// command outcome.
	ErrExpectation = errors.New("expectation failed")
	errNoTransfer  = errors.New("no transfer to inspect")
)

// StepResult records one executed step.
type StepResult struct {
	Index  int       `json:"index"`
	Step   string    `json:"step"`
	At     time.Time `json:"at"`
	Status string    `json:"status"`
	Error  string    `json:"error,omitempty"`
	// Tasks counts scheduled callbacks fired by advance/settle steps.
	Tasks int `json:"tasks,omitempty"`
}

// Result is the outcome of a run.
type Result struct {
	Name  string           `json:"name"`
	Steps []StepResult     `json:"steps"`
	Final session.Snapshot `json:"final"`
}

// Run executes the script against sess. q must be the scheduler sess was
// built with; it is the only clock the run observes. Run stops at the
// first failed step and returns the partial result with the error.
func Run(ctx context.Context, sc *Script, sess *session.Session, q *eventloop.Queue, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	res := &Result{Name: sc.Name}

	for i, st := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		sr := StepResult{Index: i + 1, Step: st.String()}
		tasks, cmdErr := apply(ctx, sess, q, st)
		sr.Tasks = tasks
		sr.At = q.Now()
		sr.Status = string(sess.Status())
		if cmdErr != nil {
			sr.Error = cmdErr.Error()
		}
		res.Steps = append(res.Steps, sr)

		logger.Debug("Scenario step", "index", sr.Index, "step", sr.Step, "status", sr.Status, "error", sr.Error)

		if err := checkOutcome(st, cmdErr); err != nil {
			res.Final = sess.Snapshot()
			return res, fmt.Errorf("step %d (%s): %w", i+1, st, err)
		}
	}

	res.Final = sess.Snapshot()
	logger.Info("Scenario completed", "name", sc.Name, "steps", len(res.Steps))
	return res, nil
}

func checkOutcome(st Step, err error) error {
	switch {
	case st.ExpectError == "" && err != nil:
		if st.Action == ActionExpect {
			return err
		}
		return fmt.Errorf("%w: unexpected error: %w", ErrExpectation, err)
	case st.ExpectError != "" && err == nil:
		return fmt.Errorf("%w: expected error containing %q", ErrExpectation, st.ExpectError)
	case st.ExpectError != "" && !strings.Contains(err.Error(), st.ExpectError):
		return fmt.Errorf("%w: got error %q, expected %q", ErrExpectation, err, st.ExpectError)
	}
	return nil
}

func apply(ctx context.Context, sess *session.Session, q *eventloop.Queue, st Step) (int, error) {
	switch st.Action {
	case ActionConnect:
		if conn := sess.Connect(ctx); !conn.Connected {
			return 0, sess.WalletError()
		}
	case ActionDisconnect:
		sess.Disconnect()
	case ActionRefresh:
		_, err := sess.RefreshBalances(ctx)
		return 0, err
	case ActionNetwork:
		return 0, sess.SwitchNetwork(st.Network)
	case ActionSelectSource:
		return 0, sess.SelectSource(st.Symbol, st.Family)
	case ActionSelectDestination:
		return 0, sess.SelectDestination(st.Symbol, st.Family)
	case ActionAmount:
		return 0, sess.SetAmount(st.Amount)
	case ActionSwap:
		sess.Swap()
	case ActionMax:
		return 0, sess.MaxAmount()
	case ActionSubmit:
		_, err := sess.Submit()
		return 0, err
	case ActionDismiss:
		return 0, sess.Dismiss()
	case ActionFault:
		sess.Controller().SetFaultHook(faultAt(lifecycle.Stage(st.Stage)))
	case ActionAdvance:
		d, _ := time.ParseDuration(st.Duration)
		return q.Advance(d), nil
	case ActionSettle:
		return q.RunUntilIdle(), nil
	case ActionExpect:
		return 0, expect(sess, st)
	default:
		return 0, fmt.Errorf("unknown action %q", st.Action)
	}
	return 0, nil
}

// faultAt fails every transfer at stage; an empty stage clears the hook.
func faultAt(stage lifecycle.Stage) lifecycle.FaultHook {
	if stage == "" {
		return nil
	}
	return func(s lifecycle.Stage, _ string) error {
		if s == stage {
			return lifecycle.ErrSimulatedSettlementFailure
		}
		return nil
	}
}

func expect(sess *session.Session, st Step) error {
	snap := sess.Snapshot()
	var errs []error

	if st.Status != "" && snap.Status != st.Status {
		errs = append(errs, fmt.Errorf("status is %s, want %s", snap.Status, st.Status))
	}
	if st.Connected != nil && snap.Wallet.Connected != *st.Connected {
		errs = append(errs, fmt.Errorf("connected is %t, want %t", snap.Wallet.Connected, *st.Connected))
	}
	if st.Selected != nil && snap.Amount != *st.Selected {
		errs = append(errs, fmt.Errorf("amount is %q, want %q", snap.Amount, *st.Selected))
	}
	if st.Credited != nil {
		switch {
		case snap.Transfer == nil:
			errs = append(errs, errNoTransfer)
		case snap.Transfer.Credited != *st.Credited:
			errs = append(errs, fmt.Errorf("credited is %t, want %t", snap.Transfer.Credited, *st.Credited))
		}
	}

	keys := make([]string, 0, len(st.Balances))
	for k := range st.Balances {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		symbol, family, ok := strings.Cut(k, "-")
		if !ok {
			errs = append(errs, fmt.Errorf("balance key %q must be SYMBOL-FAMILY", k))
			continue
		}
		got, err := sess.Balance(symbol, family)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if want := st.Balances[k]; got != want {
			errs = append(errs, fmt.Errorf("balance %s is %s, want %s", k, got, want))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrExpectation, errors.Join(errs...))
	}
	return nil
}
