// Package pdf genera el kardex (tarjeta de stock) de un producto en PDF.
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Producto + ID        │  Saldo actual + Fecha        │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TABLA: Fecha | Tipo | Cantidad | Saldo | Usuario | Nota     │
//	│  ─────────────────────────────────────────────────────────  │
//	│  FOOTER: cantidad de movimientos + política de unidad        │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"fmt"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"golang.org/x/text/language"

	"github.com/jhoicas/stock-ledger/internal/application/stock"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/unit"
)

var _ stock.StockCardRenderer = (*StockCardGenerator)(nil)

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorRed     = &props.Color{Red: 170, Green: 30, Blue: 30}
)

const dateLayout = "02/01/2006 15:04"

// StockCardGenerator implementa stock.StockCardRenderer con Maroto v2.
type StockCardGenerator struct {
	locale language.Tag
}

// NewStockCardGenerator construye el generador. Las cantidades se formatean según locale.
func NewStockCardGenerator(locale language.Tag) *StockCardGenerator {
	return &StockCardGenerator{locale: locale}
}

// RenderStockCard genera el PDF y devuelve sus bytes.
func (g *StockCardGenerator) RenderStockCard(card *stock.StockCard) ([]byte, error) {
	if card == nil {
		return nil, fmt.Errorf("pdf: kardex vacío")
	}
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("Kardex "+card.ProductName, true).
		Build()

	m := maroto.New(cfg)
	m.AddRows(g.headerRow(card))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(tableHeaderRow())
	m.AddRows(g.entryRows(card.UnitPolicy, card.Entries)...)
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(footerRow(card))

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar kardex: %w", err)
	}
	return doc.GetBytes(), nil
}

func (g *StockCardGenerator) headerRow(card *stock.StockCard) core.Row {
	balanceColor := colorPrimary
	if card.Balance.IsNegative() {
		balanceColor = colorRed
	}
	return row.New(18).Add(
		col.New(7).Add(
			text.New("KARDEX: "+card.ProductName, props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New("Producto: "+card.ProductID, props.Text{
				Size: 9, Top: 9, Color: colorGray,
			}),
		),
		col.New(5).Add(
			text.New("SALDO ACTUAL", props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Right, Color: colorPrimary, Top: 1,
			}),
			text.New(card.UnitPolicy.FormatLocale(card.Balance, g.locale), props.Text{
				Style: fontstyle.Bold, Size: 12, Align: align.Right, Top: 7, Color: balanceColor,
			}),
			text.New("Generado: "+card.GeneratedAt.Format(dateLayout), props.Text{
				Size: 8, Align: align.Right, Top: 14, Color: colorGray,
			}),
		),
	)
}

func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a, Color: colorPrimary, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("Fecha", 2, align.Left),
		h("Tipo", 1, align.Center),
		h("Cantidad", 2, align.Right),
		h("Saldo", 2, align.Right),
		h("Usuario", 2, align.Left),
		h("Nota", 3, align.Left),
	)
}

// entryRows una fila por movimiento, del más reciente al más antiguo.
func (g *StockCardGenerator) entryRows(policy unit.Policy, entries []inventory.HistoricalEntry) []core.Row {
	rows := make([]core.Row, 0, len(entries))
	for _, e := range entries {
		mv := e.Movement
		p := policy
		if mv.UnitPolicy.Valid() {
			p = mv.UnitPolicy
		}
		kind, sign := "Entrada", "+"
		if mv.Kind == entity.MovementOutflow {
			kind, sign = "Salida", "-"
		}
		rows = append(rows, row.New(6).Add(
			col.New(2).Add(text.New(mv.OccurredAt.Format(dateLayout), props.Text{Size: 7.5, Top: 1, Left: 1})),
			col.New(1).Add(text.New(kind, props.Text{Size: 7.5, Align: align.Center, Top: 1})),
			col.New(2).Add(text.New(sign+p.FormatLocale(mv.Quantity, g.locale), props.Text{
				Size: 7.5, Align: align.Right, Top: 1, Right: 1,
			})),
			col.New(2).Add(text.New(p.FormatLocale(e.Balance, g.locale), props.Text{
				Style: fontstyle.Bold, Size: 7.5, Align: align.Right, Top: 1, Right: 1,
			})),
			col.New(2).Add(text.New(mv.Actor, props.Text{Size: 7.5, Top: 1, Left: 1})),
			col.New(3).Add(text.New(nonEmpty(mv.Note, "—"), props.Text{Size: 7.5, Top: 1, Left: 1, Color: colorGray})),
		))
	}
	return rows
}

func footerRow(card *stock.StockCard) core.Row {
	return row.New(8).Add(col.New(12).Add(
		text.New(fmt.Sprintf("%d movimientos   |   Unidad: %s", len(card.Entries), policyLabel(card.UnitPolicy)),
			props.Text{Size: 7, Color: colorGray, Top: 2}),
	))
}

func policyLabel(p unit.Policy) string {
	if p == unit.Fractional3dp {
		return "fraccionada (3 decimales)"
	}
	return "entera"
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
