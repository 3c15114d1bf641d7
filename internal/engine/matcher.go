package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/EMayer0602/support-resistance-12-sub000/internal/model"
)

// Matcher reconstructs round trips from a raw action stream, independent of
// the simulator's own bookkeeping. It is used to reconcile persisted action
// logs: entries queue up FIFO per direction, each exit pops the oldest one.
type Matcher struct {
	commissionRate decimal.Decimal
	minCommission  decimal.Decimal
}

func NewMatcher(commissionRate, minCommission decimal.Decimal) *Matcher {
	return &Matcher{commissionRate: commissionRate, minCommission: minCommission}
}

// pairKey scopes a FIFO queue to one instrument/direction. Entries and
// exits never pair across instruments.
type pairKey struct {
	symbol    string
	direction model.Direction
}

// Match pairs entries with exits per instrument and direction. An exit with
// no open entry is a consistency error, not something to drop: it means the
// log and reality disagree.
func (m *Matcher) Match(records []ActionRecord) ([]model.MatchedTrade, error) {
	queues := map[pairKey][]ActionRecord{}

	var trades []model.MatchedTrade
	for _, r := range records {
		key := pairKey{symbol: r.Symbol, direction: directionOf(r.Action)}
		if r.Price.LessThanOrEqual(decimal.Zero) {
			return nil, fmt.Errorf("action %s on %s: %w", r.Action, r.Date.Format("2006-01-02"), model.ErrInvalidPrice)
		}
		if r.Action.Opens() {
			queues[key] = append(queues[key], r)
			continue
		}
		q := queues[key]
		if len(q) == 0 {
			return nil, fmt.Errorf("%s %s %s on %s: %w", r.Symbol, key.direction, r.Action, r.Date.Format("2006-01-02"), model.ErrUnmatchedExit)
		}
		entry := q[0]
		queues[key] = q[1:]
		trades = append(trades, m.pair(entry, r, key.direction))
	}
	return trades, nil
}

func (m *Matcher) pair(entry, exit ActionRecord, dir model.Direction) model.MatchedTrade {
	sh := decimal.NewFromInt(entry.Shares)
	profit := exit.Price.Sub(entry.Price).Mul(sh)
	if dir == model.DirectionShort {
		profit = entry.Price.Sub(exit.Price).Mul(sh)
	}
	fee := sh.Mul(entry.Price.Add(exit.Price)).Mul(m.commissionRate)
	if fee.LessThan(m.minCommission) {
		fee = m.minCommission
	}
	return model.MatchedTrade{
		Symbol:     entry.Symbol,
		Direction:  dir,
		EntryDate:  entry.Date,
		EntryPrice: entry.Price,
		ExitDate:   exit.Date,
		ExitPrice:  exit.Price,
		Shares:     entry.Shares,
		Fee:        fee,
		PnL:        profit.Sub(fee),
		Synthetic:  exit.Synthetic,
	}
}

func directionOf(a model.Action) model.Direction {
	if a == model.ActionShort || a == model.ActionCover {
		return model.DirectionShort
	}
	return model.DirectionLong
}
