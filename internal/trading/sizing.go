package trading

import (
	"fmt"
	"math"
)

// Position sizing. The default rule is a fixed fraction of free balance;
// when the signal carries both an entry point and a stop loss, sizing
// switches to risk-based: a fixed fraction of balance is put at risk and
// the quantity scales inversely with the stop distance, so wider stops
// produce smaller positions.

// sizeOrder resolves the base-asset quantity for a new entry. price is the
// reference price used to convert notional to quantity.
func (m *Manager) sizeOrder(freeBalance, price, entry, stop float64, manual bool) (float64, error) {
	if freeBalance <= 0 {
		return 0, fmt.Errorf("%w: no free balance", ErrValidation)
	}
	if price <= 0 {
		return 0, fmt.Errorf("%w: no reference price", ErrValidation)
	}

	var notional float64
	if entry > 0 && stop > 0 && entry != stop {
		riskAmount := freeBalance * m.cfg.RiskFraction
		quantity := riskAmount / math.Abs(entry-stop)
		notional = quantity * entry
	} else {
		fraction := m.cfg.AutoFraction
		if manual {
			fraction = m.cfg.ManualFraction
		}
		notional = freeBalance * fraction
	}

	if m.cfg.MaxTradeValue > 0 && notional > m.cfg.MaxTradeValue {
		notional = m.cfg.MaxTradeValue
	}
	if notional > freeBalance {
		notional = freeBalance
	}

	quantity := notional / price
	if quantity <= 0 || math.IsNaN(quantity) || math.IsInf(quantity, 0) {
		// Invalid computed size is a hard failure; no minimum-trade fallback.
		return 0, fmt.Errorf("%w: computed size %.8f is not tradable", ErrValidation, quantity)
	}
	return quantity, nil
}
