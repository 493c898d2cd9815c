package inventory

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/unit"
)

// HistoricalEntry un movimiento junto con el saldo al cierre de ese movimiento (incluido).
type HistoricalEntry struct {
	Movement *entity.StockMovement
	Balance  decimal.Decimal
}

// Replay resultado de plegar la secuencia de movimientos de un producto.
// History queda en orden ascendente (el mismo de la secuencia).
type Replay struct {
	Balance decimal.Decimal
	History []HistoricalEntry
}

// SortMovements ordena en el lugar por (OccurredAt, ID).
func SortMovements(ms []*entity.StockMovement) {
	sort.SliceStable(ms, func(i, j int) bool { return ms[i].Before(ms[j]) })
}

// ReplayBalance pliega la secuencia ordenada empezando en cero: las entradas suman,
// las salidas restan. Cada cantidad se normaliza con la política con la que se registró;
// fallback aplica a movimientos sin política registrada.
// Es una función pura: el mismo input produce siempre el mismo resultado.
func ReplayBalance(fallback unit.Policy, movements []*entity.StockMovement) Replay {
	balance := decimal.Zero
	history := make([]HistoricalEntry, 0, len(movements))
	for _, m := range movements {
		balance = step(fallback, balance, m)
		history = append(history, HistoricalEntry{Movement: m, Balance: balance})
	}
	return Replay{Balance: balance, History: history}
}

// Extend agrega un movimiento al final del replay y devuelve el nuevo resultado.
// El receptor no se modifica; copia el historial, así que es para agregados sueltos.
func (r Replay) Extend(fallback unit.Policy, m *entity.StockMovement) Replay {
	balance := step(fallback, r.Balance, m)
	history := make([]HistoricalEntry, len(r.History), len(r.History)+1)
	copy(history, r.History)
	history = append(history, HistoricalEntry{Movement: m, Balance: balance})
	return Replay{Balance: balance, History: history}
}

// step aplica un movimiento al saldo. Normalize es simétrica respecto del signo
// (trunca hacia cero o redondea alejándose de cero), así que normalizar la cantidad con signo
// equivale a normalizar y después restar.
func step(fallback unit.Policy, balance decimal.Decimal, m *entity.StockMovement) decimal.Decimal {
	policy := m.UnitPolicy
	if !policy.Valid() {
		policy = fallback
	}
	return balance.Add(policy.Normalize(m.Signed()))
}

// NewestFirst devuelve el historial del más reciente al más antiguo (para mostrar).
func (r Replay) NewestFirst() []HistoricalEntry {
	out := make([]HistoricalEntry, len(r.History))
	for i, e := range r.History {
		out[len(r.History)-1-i] = e
	}
	return out
}
