package entity

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain/unit"
)

// MovementKind tipo de movimiento de inventario (value object).
type MovementKind string

const (
	MovementInflow  MovementKind = "inflow"  // entrada
	MovementOutflow MovementKind = "outflow" // salida
)

// ActorSystem identifica movimientos creados por el sistema (ej. stock inicial).
const ActorSystem = "system"

// ParseMovementKind acepta "inflow"/"outflow" y los alias "in"/"out" sin distinguir mayúsculas.
func ParseMovementKind(s string) (MovementKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "inflow", "in":
		return MovementInflow, true
	case "outflow", "out":
		return MovementOutflow, true
	}
	return "", false
}

// Valid indica si el tipo es uno de los conocidos.
func (k MovementKind) Valid() bool {
	return k == MovementInflow || k == MovementOutflow
}

// StockMovement es un hecho inmutable del ledger. Las correcciones se hacen
// agregando un movimiento compensatorio, nunca modificando o borrando.
type StockMovement struct {
	ID         string
	TenantID   string
	ProductID  string
	Kind       MovementKind
	Quantity   decimal.Decimal // siempre > 0; el signo lo da Kind
	UnitPolicy unit.Policy     // política vigente al momento de registrar
	OccurredAt time.Time
	Note       string
	Actor      string
	CreatedAt  time.Time
}

// Signed devuelve la cantidad con signo: positiva para entradas, negativa para salidas.
func (m *StockMovement) Signed() decimal.Decimal {
	if m.Kind == MovementOutflow {
		return m.Quantity.Neg()
	}
	return m.Quantity
}

// Before define el orden total del ledger: (OccurredAt, ID).
func (m *StockMovement) Before(o *StockMovement) bool {
	if !m.OccurredAt.Equal(o.OccurredAt) {
		return m.OccurredAt.Before(o.OccurredAt)
	}
	return m.ID < o.ID
}
