// Package unit centraliza la regla de precisión de cantidades por producto.
// Validadores, el ledger y los formateadores usan la misma regla.
package unit

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/jhoicas/stock-ledger/internal/domain"
)

// Policy regla de unidad de un producto.
type Policy string

const (
	// Integer solo admite unidades enteras; trunca hacia cero.
	Integer Policy = "integer"
	// Fractional3dp admite hasta 3 decimales; redondea half-away-from-zero.
	Fractional3dp Policy = "fractional_3dp"
)

const fractionalPlaces = 3

// Parse interpreta el nombre de la política. Vacío equivale a Integer.
func Parse(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", Integer:
		return Integer, nil
	case Fractional3dp:
		return Fractional3dp, nil
	}
	return "", fmt.Errorf("%w: política de unidad desconocida %q", domain.ErrInvalidInput, s)
}

// Valid indica si la política es conocida.
func (p Policy) Valid() bool {
	return p == Integer || p == Fractional3dp
}

// Places número de decimales que admite la política.
func (p Policy) Places() int32 {
	if p == Fractional3dp {
		return fractionalPlaces
	}
	return 0
}

// Normalize lleva la cantidad a la precisión declarada.
func (p Policy) Normalize(q decimal.Decimal) decimal.Decimal {
	if p == Fractional3dp {
		// decimal.Round redondea la mitad alejándose de cero.
		return q.Round(fractionalPlaces)
	}
	return q.Truncate(0)
}

// Validate acepta cualquier cantidad positiva que siga siendo positiva tras normalizar.
// No rechaza el exceso de decimales: eso se normaliza.
func (p Policy) Validate(q decimal.Decimal) error {
	if !q.IsPositive() {
		return domain.ErrInvalidQuantity
	}
	if !p.Normalize(q).IsPositive() {
		return domain.ErrUnitPrecisionViolation
	}
	return nil
}

// CheckExact exige que la cantidad ya esté normalizada. Lo usa el almacén de movimientos.
func (p Policy) CheckExact(q decimal.Decimal) error {
	if !q.IsPositive() {
		return domain.ErrInvalidQuantity
	}
	if !p.Normalize(q).Equal(q) {
		return domain.ErrUnitPrecisionViolation
	}
	return nil
}

// Format representación para mostrar: sin decimales en Integer, exactamente 3 en Fractional3dp.
func (p Policy) Format(q decimal.Decimal) string {
	return p.Normalize(q).StringFixed(p.Places())
}

// FormatLocale igual que Format pero con separadores del idioma indicado (ej. pt-BR: "1.234,500").
// Si la cantidad no cabe exacta en un float64 se devuelve Format, sin separadores de miles.
func (p Policy) FormatLocale(q decimal.Decimal, tag language.Tag) string {
	n := p.Normalize(q)
	f, _ := n.Float64()
	if !decimal.NewFromFloat(f).Round(p.Places()).Equal(n) {
		return p.Format(n)
	}
	return message.NewPrinter(tag).Sprint(number.Decimal(f, number.Scale(int(p.Places()))))
}
