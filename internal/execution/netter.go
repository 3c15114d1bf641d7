package execution

import (
	"sort"

	"go.uber.org/zap"

	"github.com/EMayer0602/support-resistance-12-sub000/internal/config"
	"github.com/EMayer0602/support-resistance-12-sub000/internal/model"
	"github.com/EMayer0602/support-resistance-12-sub000/internal/strategy"
)

// Discrepancy records a closing action whose quantity had to be clamped
// because the ledger held no position to close. Clamping lets the session
// proceed, but every clamp is surfaced: it means the ledger is out of sync
// with reality and needs a broker resync.
type Discrepancy struct {
	Symbol   string       `json:"symbol"`
	Action   model.Action `json:"action"`
	Position int64        `json:"position"`
}

// Netter merges one day's opposing same-instrument actions into minimal
// broker orders, bounded by current positions.
type Netter struct {
	logger *zap.Logger
}

func NewNetter(logger *zap.Logger) *Netter {
	return &Netter{logger: logger}
}

// Net groups today's resolved signals per instrument and applies the netting
// rules: buy+cover merge into one net buy, sell+short into one net sell,
// everything else becomes its own order. Orders that net to zero shares are
// dropped.
func (n *Netter) Net(signals []model.Signal, ledger *PositionLedger, configs map[string]config.InstrumentConfig) ([]model.Order, []Discrepancy) {
	bySymbol := make(map[string][]model.Signal)
	var symbols []string
	for _, sig := range signals {
		if !sig.Resolved {
			continue
		}
		if _, ok := bySymbol[sig.Symbol]; !ok {
			symbols = append(symbols, sig.Symbol)
		}
		bySymbol[sig.Symbol] = append(bySymbol[sig.Symbol], sig)
	}
	sort.Strings(symbols)

	var orders []model.Order
	var discrepancies []Discrepancy
	for _, sym := range symbols {
		ic, ok := configs[sym]
		if !ok {
			n.logger.Warn("no instrument config, dropping signals", zap.String("symbol", sym))
			continue
		}
		o, d := n.netInstrument(bySymbol[sym], ledger.Get(sym), ic)
		orders = append(orders, o...)
		discrepancies = append(discrepancies, d...)
	}
	return orders, discrepancies
}

func (n *Netter) netInstrument(signals []model.Signal, position int64, ic config.InstrumentConfig) ([]model.Order, []Discrepancy) {
	byAction := make(map[model.Action]model.Signal)
	for _, sig := range signals {
		if _, dup := byAction[sig.Action]; dup {
			n.logger.Warn("duplicate same-day action, keeping first",
				zap.String("symbol", sig.Symbol), zap.String("action", string(sig.Action)))
			continue
		}
		byAction[sig.Action] = sig
	}

	var orders []model.Order
	var discrepancies []Discrepancy

	emit := func(side model.OrderSide, shares int64, price model.Signal, components ...model.Signal) {
		if shares <= 0 {
			return
		}
		orders = append(orders, model.Order{
			Symbol:     price.Symbol,
			Side:       side,
			Shares:     shares,
			RefPrice:   price.RefPrice,
			Components: components,
		})
	}

	shortMagnitude := int64(0)
	if position < 0 {
		shortMagnitude = -position
	}
	longMagnitude := int64(0)
	if position > 0 {
		longMagnitude = position
	}

	buy, hasBuy := byAction[model.ActionBuy]
	sell, hasSell := byAction[model.ActionSell]
	short, hasShort := byAction[model.ActionShort]
	cover, hasCover := byAction[model.ActionCover]

	// closing quantities are capped by the ledger; a cap below what the
	// signal implies is recorded, never silent
	coverQty := func(sig model.Signal) int64 {
		if shortMagnitude == 0 {
			discrepancies = append(discrepancies, Discrepancy{
				Symbol: sig.Symbol, Action: model.ActionCover, Position: position,
			})
		}
		return shortMagnitude
	}
	sellQty := func(sig model.Signal) int64 {
		if longMagnitude == 0 {
			discrepancies = append(discrepancies, Discrepancy{
				Symbol: sig.Symbol, Action: model.ActionSell, Position: position,
			})
		}
		return longMagnitude
	}

	switch {
	case hasBuy && hasCover:
		qty := strategy.Lots(ic.CapitalLong, buy.RefPrice, ic.RoundingFactor) + coverQty(cover)
		emit(model.SideBuy, qty, buy, buy, cover)
		hasBuy, hasCover = false, false
	case hasSell && hasShort:
		qty := sellQty(sell) + strategy.Lots(ic.CapitalShort, short.RefPrice, ic.RoundingFactor)
		emit(model.SideSell, qty, sell, sell, short)
		hasSell, hasShort = false, false
	}

	if hasBuy {
		emit(model.SideBuy, strategy.Lots(ic.CapitalLong, buy.RefPrice, ic.RoundingFactor), buy, buy)
	}
	if hasShort {
		emit(model.SideSell, strategy.Lots(ic.CapitalShort, short.RefPrice, ic.RoundingFactor), short, short)
	}
	if hasSell {
		emit(model.SideSell, sellQty(sell), sell, sell)
	}
	if hasCover {
		emit(model.SideBuy, coverQty(cover), cover, cover)
	}

	for _, d := range discrepancies {
		n.logger.Warn("netting clamped a closing quantity",
			zap.String("symbol", d.Symbol),
			zap.String("action", string(d.Action)),
			zap.Int64("position", d.Position),
		)
	}
	return orders, discrepancies
}
