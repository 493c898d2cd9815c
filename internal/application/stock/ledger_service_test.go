package stock_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger/internal/application/stock"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/unit"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/memory"
)

func TestLedger_EscenarioA_EntradaSalidaEHistorial(t *testing.T) {
	f := newFixture(t)
	f.profile(t, "P", unit.Integer)
	ctx := context.Background()

	assert.True(t, f.balance(t, "P").IsZero())

	res, err := f.svc.RecordMovement(ctx, stock.RecordMovementInput{
		TenantID: tenant, ProductID: "P", Kind: entity.MovementInflow, Quantity: dec("10"), Note: "initial stock",
	})
	require.NoError(t, err)
	assert.True(t, dec("10").Equal(res.NewBalance))
	assert.NotEmpty(t, res.MovementID)
	assert.Equal(t, entity.ActorSystem, res.Movement.Actor)

	res = f.record(t, "P", entity.MovementOutflow, "3")
	assert.True(t, dec("7").Equal(res.NewBalance))
	assert.True(t, dec("7").Equal(f.balance(t, "P")))

	history, err := f.svc.GetHistory(ctx, tenant, "P")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, entity.MovementOutflow, history[0].Movement.Kind)
	assert.True(t, dec("7").Equal(history[0].Balance))
	assert.Equal(t, "initial stock", history[1].Movement.Note)
	assert.True(t, dec("10").Equal(history[1].Balance))
}

func TestLedger_EscenarioB_ModoEstrictoRechazaSinRegistrar(t *testing.T) {
	f := newFixture(t, withStrictMode(true))
	f.profile(t, "P", unit.Integer)
	f.record(t, "P", entity.MovementInflow, "5")

	_, err := f.svc.RecordMovement(context.Background(), stock.RecordMovementInput{
		TenantID: tenant, ProductID: "P", Kind: entity.MovementOutflow, Quantity: dec("8"),
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.True(t, dec("5").Equal(f.balance(t, "P")))
	assert.Len(t, f.movements(t, "P"), 1)
	assert.Equal(t, 1, f.metrics.rejected["insufficient_stock"])
	assert.Len(t, f.events.recorded, 1)
}

func TestLedger_EscenarioC_DisponibilidadConCompromisos(t *testing.T) {
	f := newFixture(t)
	f.profile(t, "P", unit.Integer)
	f.record(t, "P", entity.MovementInflow, "20")
	f.store.AddOrderLine(tenant, entity.OrderLine{OrderID: "o1", ProductID: "P", Quantity: dec("6"), OrderStatus: "pending"})
	f.store.AddOrderLine(tenant, entity.OrderLine{OrderID: "o2", ProductID: "P", Quantity: dec("5"), OrderStatus: "confirmed"})
	f.store.AddOrderLine(tenant, entity.OrderLine{OrderID: "o3", ProductID: "P", Quantity: dec("4"), OrderStatus: "invoiced"})

	av, err := f.svc.GetAvailability(context.Background(), tenant, "P")
	require.NoError(t, err)
	assert.True(t, dec("20").Equal(av.Balance))
	assert.True(t, dec("11").Equal(av.Committed))
	assert.True(t, dec("9").Equal(av.EffectivelyAvailable))
}

func TestLedger_DisponibilidadPuedeSerNegativa(t *testing.T) {
	f := newFixture(t)
	f.profile(t, "P", unit.Integer)
	f.record(t, "P", entity.MovementInflow, "2")
	f.store.AddOrderLine(tenant, entity.OrderLine{OrderID: "o1", ProductID: "P", Quantity: dec("5"), OrderStatus: "pending"})

	av, err := f.svc.GetAvailability(context.Background(), tenant, "P")
	require.NoError(t, err)
	assert.True(t, dec("-3").Equal(av.EffectivelyAvailable))
}

func TestLedger_EscenarioD_FraccionalNormalizaSinDeriva(t *testing.T) {
	f := newFixture(t)
	f.profile(t, "P", unit.Fractional3dp)

	res := f.record(t, "P", entity.MovementInflow, "0.1234")
	assert.Equal(t, "0.123", res.Movement.Quantity.StringFixed(3))
	assert.True(t, dec("0.123").Equal(f.balance(t, "P")))

	for i := 0; i < 10; i++ {
		f.record(t, "P", entity.MovementInflow, "0.1")
	}
	assert.Equal(t, "1.123", f.balance(t, "P").StringFixed(3))
	assert.True(t, dec("1.123").Equal(f.balance(t, "P")))
}

func TestLedger_IntegerTruncaLaCantidad(t *testing.T) {
	f := newFixture(t)
	f.profile(t, "P", unit.Integer)
	res := f.record(t, "P", entity.MovementInflow, "2.7")
	assert.True(t, dec("2").Equal(res.Movement.Quantity))
	assert.True(t, dec("2").Equal(res.NewBalance))
}

func TestLedger_RechazosDeValidacionNoEscriben(t *testing.T) {
	f := newFixture(t)
	f.profile(t, "P", unit.Integer)
	ctx := context.Background()

	cases := []struct {
		name string
		in   stock.RecordMovementInput
		want error
	}{
		{"cero", stock.RecordMovementInput{TenantID: tenant, ProductID: "P", Kind: entity.MovementInflow, Quantity: dec("0")}, domain.ErrInvalidQuantity},
		{"negativa", stock.RecordMovementInput{TenantID: tenant, ProductID: "P", Kind: entity.MovementInflow, Quantity: dec("-1")}, domain.ErrInvalidQuantity},
		{"fraccion en integer", stock.RecordMovementInput{TenantID: tenant, ProductID: "P", Kind: entity.MovementInflow, Quantity: dec("0.4")}, domain.ErrUnitPrecisionViolation},
		{"tipo inválido", stock.RecordMovementInput{TenantID: tenant, ProductID: "P", Kind: "transfer", Quantity: dec("1")}, domain.ErrInvalidInput},
		{"sin producto", stock.RecordMovementInput{TenantID: tenant, Kind: entity.MovementInflow, Quantity: dec("1")}, domain.ErrInvalidInput},
		{"producto desconocido", stock.RecordMovementInput{TenantID: tenant, ProductID: "X", Kind: entity.MovementInflow, Quantity: dec("1")}, domain.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.RecordMovement(ctx, tc.in)
			assert.ErrorIs(t, err, tc.want)
		})
	}
	assert.Empty(t, f.movements(t, "P"))
	assert.Empty(t, f.events.recorded)
}

func TestLedger_SinModoEstrictoPermiteSaldoNegativo(t *testing.T) {
	f := newFixture(t, withStrictMode(false))
	f.profile(t, "P", unit.Integer)
	f.record(t, "P", entity.MovementInflow, "2")
	res := f.record(t, "P", entity.MovementOutflow, "5")
	assert.True(t, dec("-3").Equal(res.NewBalance))
}

func TestLedger_ConfiguracionDelTenantManda(t *testing.T) {
	f := newFixture(t, withStrictMode(false))
	f.profile(t, "P", unit.Integer)
	ctx := context.Background()
	_, err := f.svc.SaveControlConfig(ctx, &entity.StockControlConfig{TenantID: tenant, StrictMode: true})
	require.NoError(t, err)

	_, err = f.svc.RecordMovement(ctx, stock.RecordMovementInput{
		TenantID: tenant, ProductID: "P", Kind: entity.MovementOutflow, Quantity: dec("1"),
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
}

// N salidas concurrentes de q contra un saldo B: exactamente ⌊B/q⌋ tienen éxito.
func TestLedger_SalidasConcurrentesEnModoEstricto(t *testing.T) {
	f := newFixture(t, withStrictMode(true))
	f.profile(t, "P", unit.Integer)
	f.record(t, "P", entity.MovementInflow, "10")

	const n = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok, short int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.RecordMovement(context.Background(), stock.RecordMovementInput{
				TenantID: tenant, ProductID: "P", Kind: entity.MovementOutflow, Quantity: dec("3"),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrInsufficientStock):
				short++
			default:
				t.Errorf("error inesperado: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, ok)
	assert.Equal(t, n-3, short)
	assert.True(t, dec("1").Equal(f.balance(t, "P")))
	assert.Len(t, f.movements(t, "P"), 4)
}

// Dos instancias del servicio sobre el mismo almacenamiento (como dos procesos): el lock local no
// alcanza y la versión del saldo cierra la carrera.
func TestLedger_DosInstanciasCompartiendoAlmacenamiento(t *testing.T) {
	store := memory.NewStore()
	opts := []option{withStrictMode(true), func(_ *stock.LedgerDeps, c *stock.LedgerConfig) { c.MaxRetries = 100 }}
	a := newFixtureOn(t, store, opts...)
	b := newFixtureOn(t, store, opts...)
	a.profile(t, "P", unit.Integer)
	a.record(t, "P", entity.MovementInflow, "100")

	const n = 30
	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < n; i++ {
		svc := a.svc
		if i%2 == 1 {
			svc = b.svc
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RecordMovement(context.Background(), stock.RecordMovementInput{
				TenantID: tenant, ProductID: "P", Kind: entity.MovementOutflow, Quantity: dec("7"),
			})
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
				return
			}
			if !errors.Is(err, domain.ErrInsufficientStock) {
				t.Errorf("error inesperado: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 14, ok)
	p, err := memory.NewProfileRepository(store).Get(context.Background(), tenant, "P")
	require.NoError(t, err)
	assert.True(t, dec("2").Equal(*p.CurrentBalance), "saldo %s", p.CurrentBalance)
	rec, err := a.svc.ReconcileProduct(context.Background(), tenant, "P")
	require.NoError(t, err)
	assert.False(t, rec.Drifted)
	assert.True(t, dec("2").Equal(rec.Replayed))
}

func TestLedger_ReintentaConflictosDeConcurrencia(t *testing.T) {
	var flaky *failingTx
	f := newFixture(t, withTx(func(next stock.TxRunner) stock.TxRunner {
		flaky = &failingTx{next: next, err: domain.ErrConcurrencyConflict}
		return flaky
	}))
	f.profile(t, "P", unit.Integer)
	flaky.n = flaky.calls + 2

	res := f.record(t, "P", entity.MovementInflow, "4")
	assert.True(t, dec("4").Equal(res.NewBalance))
	assert.Equal(t, 2, f.metrics.retries)
}

func TestLedger_ConflictoPersistenteAgotaReintentos(t *testing.T) {
	var flaky *failingTx
	f := newFixture(t, withTx(func(next stock.TxRunner) stock.TxRunner {
		flaky = &failingTx{next: next, err: domain.ErrConcurrencyConflict, n: -1}
		return flaky
	}))
	require.NoError(t, memory.NewProfileRepository(f.store).Save(context.Background(), &entity.ProductStockProfile{
		TenantID: tenant, ProductID: "P", UnitPolicy: unit.Integer,
	}))

	_, err := f.svc.RecordMovement(context.Background(), stock.RecordMovementInput{
		TenantID: tenant, ProductID: "P", Kind: entity.MovementInflow, Quantity: dec("1"),
	})
	assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)
	assert.Equal(t, stock.DefaultLedgerConfig().MaxRetries+1, flaky.calls)
	assert.Equal(t, 1, f.metrics.rejected["concurrency_conflict"])
}

func TestLedger_AlmacenamientoCaidoNoSeReportaComoExito(t *testing.T) {
	f := newFixture(t, withTx(func(next stock.TxRunner) stock.TxRunner {
		return &failingTx{next: next, err: domain.ErrStoreUnavailable, n: -1}
	}))
	require.NoError(t, memory.NewProfileRepository(f.store).Save(context.Background(), &entity.ProductStockProfile{
		TenantID: tenant, ProductID: "P", UnitPolicy: unit.Integer,
	}))

	res, err := f.svc.RecordMovement(context.Background(), stock.RecordMovementInput{
		TenantID: tenant, ProductID: "P", Kind: entity.MovementInflow, Quantity: dec("1"),
	})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.Empty(t, f.events.recorded)
	assert.Zero(t, f.metrics.retries)
}

func TestLedger_FechaSiempreAlFinalDelHistorial(t *testing.T) {
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, withNow(func() time.Time { return fixed }))
	f.profile(t, "P", unit.Integer)
	first := f.record(t, "P", entity.MovementInflow, "1")
	second := f.record(t, "P", entity.MovementInflow, "1")
	assert.True(t, second.Movement.OccurredAt.After(first.Movement.OccurredAt))

	ms := f.movements(t, "P")
	require.Len(t, ms, 2)
	assert.Equal(t, first.MovementID, ms[0].ID)
}

func TestLedger_EventosYCacheDespuesDelCommit(t *testing.T) {
	f := newFixture(t)
	f.threshold(t, "P", unit.Integer, "5")
	f.record(t, "P", entity.MovementInflow, "10")
	res := f.record(t, "P", entity.MovementOutflow, "6")

	require.Len(t, f.events.recorded, 2)
	ev := f.events.recorded[1]
	assert.Equal(t, res.MovementID, ev.MovementID)
	assert.Equal(t, "outflow", ev.Kind)
	assert.True(t, dec("4").Equal(ev.NewBalance))

	require.Len(t, f.events.low, 1)
	assert.True(t, dec("5").Equal(f.events.low[0].Threshold))
	assert.True(t, res.LowStock)

	c, ok := f.cache.entry("P")
	require.True(t, ok)
	assert.True(t, dec("4").Equal(c.balance))
	assert.Equal(t, res.Version, c.version)
	assert.Equal(t, 1, f.metrics.recorded["outflow"])
}

func TestLedger_FalloDePublicacionNoDeshaceElMovimiento(t *testing.T) {
	f := newFixture(t)
	f.events.err = errors.New("broker caído")
	f.profile(t, "P", unit.Integer)
	res := f.record(t, "P", entity.MovementInflow, "3")
	assert.True(t, dec("3").Equal(res.NewBalance))
	assert.Len(t, f.movements(t, "P"), 1)
}

func TestLedger_GetBalanceReconstruyeSiElSaldoEstaInvalidado(t *testing.T) {
	f := newFixture(t)
	f.profile(t, "P", unit.Integer)
	f.record(t, "P", entity.MovementInflow, "8")
	f.record(t, "P", entity.MovementOutflow, "3")
	require.NoError(t, f.cache.Invalidate(context.Background(), tenant, "P"))
	f.store.SetCachedBalance(tenant, "P", nil)

	assert.True(t, dec("5").Equal(f.balance(t, "P")))
}

func TestLedger_GetBalanceProductoDesconocido(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.GetBalance(context.Background(), tenant, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLedger_IsLowStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.threshold(t, "P", unit.Integer, "5")
	f.profile(t, "Q", unit.Integer)
	f.record(t, "P", entity.MovementInflow, "6")

	low, err := f.svc.IsLowStock(ctx, tenant, "P")
	require.NoError(t, err)
	assert.False(t, low)

	f.record(t, "P", entity.MovementOutflow, "1")
	low, err = f.svc.IsLowStock(ctx, tenant, "P")
	require.NoError(t, err)
	assert.True(t, low, "saldo igual al mínimo cuenta como bajo")

	low, err = f.svc.IsLowStock(ctx, tenant, "Q")
	require.NoError(t, err)
	assert.False(t, low, "sin mínimo habilitado nunca es bajo")
}

func TestLedger_MinimoCeroNoAlertaEnNingunaVista(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.threshold(t, "Z", unit.Integer, "0")

	res := f.record(t, "Z", entity.MovementOutflow, "1")
	assert.False(t, res.LowStock)
	assert.Empty(t, f.events.low)

	low, err := f.svc.IsLowStock(ctx, tenant, "Z")
	require.NoError(t, err)
	assert.False(t, low)

	items, err := f.svc.ListLowStock(ctx, tenant)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestLedger_ConfiguracionPorDefectoYValidacion(t *testing.T) {
	f := newFixture(t, withStrictMode(true))
	ctx := context.Background()

	cfg, err := f.svc.GetControlConfig(ctx, tenant)
	require.NoError(t, err)
	assert.True(t, cfg.StrictMode)
	assert.Equal(t, entity.ControlModeOrders, cfg.ControlMode)

	_, err = f.svc.SaveControlConfig(ctx, &entity.StockControlConfig{TenantID: tenant, ControlMode: "kiosk"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	saved, err := f.svc.SaveControlConfig(ctx, &entity.StockControlConfig{TenantID: tenant, ControlMode: entity.ControlModeInvoicing})
	require.NoError(t, err)
	assert.False(t, saved.UpdatedAt.IsZero())
	cfg, err = f.svc.GetControlConfig(ctx, tenant)
	require.NoError(t, err)
	assert.False(t, cfg.StrictMode)
	assert.Equal(t, entity.ControlModeInvoicing, cfg.ControlMode)
}

func TestLedger_UpsertProfileConStockInicial(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := stock.UpsertProfileInput{
		TenantID: tenant, ProductID: "P", Name: "Café", UnitPolicy: unit.Fractional3dp,
		MinimumThreshold: dec("1.5"), ThresholdEnabled: true, InitialStock: dec("12.5")}

	p, err := f.svc.UpsertProfile(ctx, in)
	require.NoError(t, err)
	assert.True(t, dec("12.5").Equal(*p.CurrentBalance))
	assert.EqualValues(t, 1, p.MovementCount)

	ms := f.movements(t, "P")
	require.Len(t, ms, 1)
	assert.Equal(t, entity.ActorSystem, ms[0].Actor)
	assert.Equal(t, stock.NoteInitialStock, ms[0].Note)

	// repetir el alta no duplica el stock inicial
	_, err = f.svc.UpsertProfile(ctx, in)
	require.NoError(t, err)
	assert.Len(t, f.movements(t, "P"), 1)
}

func TestLedger_UpsertProfileValida(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.UpsertProfile(ctx, stock.UpsertProfileInput{TenantID: tenant, ProductID: "P", UnitPolicy: "kg"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = f.svc.UpsertProfile(ctx, stock.UpsertProfileInput{TenantID: tenant, ProductID: "P", MinimumThreshold: dec("-1")})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = f.svc.UpsertProfile(ctx, stock.UpsertProfileInput{TenantID: tenant, ProductID: "P", InitialStock: dec("-2")})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
}

// Un cambio de política no renormaliza el historial.
func TestLedger_CambioDePoliticaSoloAfectaMovimientosNuevos(t *testing.T) {
	f := newFixture(t)
	f.profile(t, "P", unit.Fractional3dp)
	f.record(t, "P", entity.MovementInflow, "1.5")
	f.profile(t, "P", unit.Integer)
	f.record(t, "P", entity.MovementInflow, "2.9")

	assert.True(t, dec("3.5").Equal(f.balance(t, "P")))
	rec, err := f.svc.ReconcileProduct(context.Background(), tenant, "P")
	require.NoError(t, err)
	assert.False(t, rec.Drifted)
	assert.True(t, dec("3.5").Equal(rec.Replayed))
}

func TestLedger_StockCard(t *testing.T) {
	r := &captureRenderer{}
	f := newFixture(t, withRenderer(r))
	f.profile(t, "P", unit.Integer)
	f.record(t, "P", entity.MovementInflow, "10")
	f.record(t, "P", entity.MovementOutflow, "4")

	pdf, err := f.svc.RenderStockCard(context.Background(), tenant, "P")
	require.NoError(t, err)
	assert.NotEmpty(t, pdf)
	require.NotNil(t, r.card)
	assert.Equal(t, "Producto P", r.card.ProductName)
	require.Len(t, r.card.Entries, 2)
	assert.True(t, dec("6").Equal(r.card.Entries[0].Balance))
	assert.True(t, dec("6").Equal(r.card.Balance))
}

func TestLedger_StockCardSinRenderer(t *testing.T) {
	f := newFixture(t)
	f.profile(t, "P", unit.Integer)
	_, err := f.svc.RenderStockCard(context.Background(), tenant, "P")
	assert.Error(t, err)
}
