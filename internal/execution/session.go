package execution

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/EMayer0602/support-resistance-12-sub000/internal/infrastructure"
	"github.com/EMayer0602/support-resistance-12-sub000/internal/model"
	"github.com/EMayer0602/support-resistance-12-sub000/internal/storage"
)

const sessionFile = "session"

// ErrSessionDone means this date/session pair already ran to completion.
var ErrSessionDone = errors.New("session already executed")

// SessionState survives restarts so a completed session is never re-run.
type SessionState struct {
	Date          string `json:"date"`
	OpenExecuted  bool   `json:"open_executed"`
	CloseExecuted bool   `json:"close_executed"`
}

func (s SessionState) executed(session Session) bool {
	if session == SessionOpen {
		return s.OpenExecuted
	}
	return s.CloseExecuted
}

// Runner submits a session's netted orders strictly sequentially, recording
// each confirmed order before attempting the next. A mid-batch failure
// leaves the tracker consistent with exactly the orders that went through;
// a crash between submit and record is the documented at-most-once gap, and
// operators reconcile against broker fills via ledger resync on restart.
type Runner struct {
	logger  *zap.Logger
	store   *storage.Store
	ledger  *PositionLedger
	tracker *IdempotencyTracker
	broker  BrokerClient
	js      nats.JetStreamContext
	dryRun  bool
}

func NewRunner(logger *zap.Logger, store *storage.Store, ledger *PositionLedger, tracker *IdempotencyTracker, broker BrokerClient, js nats.JetStreamContext, dryRun bool) *Runner {
	return &Runner{
		logger:  logger,
		store:   store,
		ledger:  ledger,
		tracker: tracker,
		broker:  broker,
		js:      js,
		dryRun:  dryRun,
	}
}

// Execute runs one trading session over pre-netted orders and returns the
// orders that were (or, in dry-run mode, would have been) submitted. Dry-run
// produces the identical list while skipping submission, ledger mutation and
// key recording. Persistence failures abort the session.
func (r *Runner) Execute(ctx context.Context, date time.Time, session Session, orders []model.Order) ([]model.Order, error) {
	state, err := r.loadState(date)
	if err != nil {
		return nil, err
	}
	if state.executed(session) {
		return nil, fmt.Errorf("%s %s: %w", state.Date, session, ErrSessionDone)
	}

	var executed []model.Order
	for _, order := range orders {
		key := ExecutionKey(date, session, order.Symbol, order.Side)
		if r.tracker.Has(key) {
			infrastructure.OrdersDuplicate.WithLabelValues(order.Symbol).Inc()
			r.logger.Info("skipping duplicate order", zap.String("key", key))
			continue
		}

		executed = append(executed, order)
		if r.dryRun {
			r.logger.Info("dry-run order",
				zap.String("key", key), zap.Int64("shares", order.Shares))
			continue
		}

		if err := r.broker.SubmitOrder(ctx, order); err != nil {
			return executed[:len(executed)-1], fmt.Errorf("submit %s: %w", key, err)
		}
		if err := r.ledger.Apply(order.Symbol, sideAction(order.Side), order.Shares); err != nil {
			return executed, err
		}
		if err := r.tracker.Record(key); err != nil {
			return executed, err
		}
		infrastructure.OrdersSubmitted.WithLabelValues(order.Symbol, string(order.Side)).Inc()
		r.publish(session, order)
	}

	if !r.dryRun {
		if err := r.markExecuted(state, date, session); err != nil {
			return executed, err
		}
	}
	return executed, nil
}

func sideAction(side model.OrderSide) model.Action {
	if side == model.SideBuy {
		return model.ActionBuy
	}
	return model.ActionSell
}

func (r *Runner) loadState(date time.Time) (SessionState, error) {
	var state SessionState
	if _, err := r.store.Load(sessionFile, &state); err != nil {
		return state, fmt.Errorf("load session state: %w", err)
	}
	// a new date resets both session flags
	if state.Date != date.Format("2006-01-02") {
		state = SessionState{Date: date.Format("2006-01-02")}
	}
	return state, nil
}

func (r *Runner) markExecuted(state SessionState, date time.Time, session Session) error {
	if session == SessionOpen {
		state.OpenExecuted = true
	} else {
		state.CloseExecuted = true
	}
	state.Date = date.Format("2006-01-02")
	if err := r.store.Save(sessionFile, state); err != nil {
		return fmt.Errorf("persist session state: %w", err)
	}
	return nil
}

func (r *Runner) publish(session Session, order model.Order) {
	if r.js == nil {
		return
	}
	subject := fmt.Sprintf("trading.order.%s.%s", session, order.Symbol)
	data, err := json.Marshal(order)
	if err != nil {
		r.logger.Error("failed to marshal order", zap.Error(err))
		return
	}
	if _, err := r.js.Publish(subject, data); err != nil {
		r.logger.Error("failed to publish order", zap.Error(err))
	}
}
