package stock_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger/internal/application/stock"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/internal/domain/unit"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/memory"
)

const tenant = "t1"

type fixture struct {
	store   *memory.Store
	svc     *stock.LedgerService
	events  *recordingPublisher
	metrics *countingMetrics
	cache   *mapCache
}

type option func(*stock.LedgerDeps, *stock.LedgerConfig)

func withStrictMode(on bool) option {
	return func(_ *stock.LedgerDeps, c *stock.LedgerConfig) { c.DefaultStrictMode = on }
}

func withTx(wrap func(stock.TxRunner) stock.TxRunner) option {
	return func(d *stock.LedgerDeps, _ *stock.LedgerConfig) { d.Tx = wrap(d.Tx) }
}

func withNow(now func() time.Time) option {
	return func(d *stock.LedgerDeps, _ *stock.LedgerConfig) { d.Now = now }
}

func withRenderer(r stock.StockCardRenderer) option {
	return func(d *stock.LedgerDeps, _ *stock.LedgerConfig) { d.Renderer = r }
}

func newFixture(t *testing.T, opts ...option) *fixture {
	t.Helper()
	return newFixtureOn(t, memory.NewStore(), opts...)
}

func newFixtureOn(t *testing.T, store *memory.Store, opts ...option) *fixture {
	t.Helper()
	f := &fixture{
		store:   store,
		events:  &recordingPublisher{},
		metrics: &countingMetrics{},
		cache:   newMapCache(),
	}
	deps := stock.LedgerDeps{
		Tx:          memory.NewTxRunner(store),
		Movements:   memory.NewMovementRepository(store),
		Profiles:    memory.NewProfileRepository(store),
		Configs:     memory.NewConfigRepository(store),
		Commitments: stock.NewCommitmentTracker(memory.NewOrderLineRepository(store), nil),
		Cache:       f.cache,
		Events:      f.events,
		Metrics:     f.metrics,
	}
	cfg := stock.DefaultLedgerConfig()
	cfg.RetryBackoff = 0
	for _, o := range opts {
		o(&deps, &cfg)
	}
	f.svc = stock.NewLedgerService(deps, cfg)
	return f
}

func (f *fixture) profile(t *testing.T, productID string, policy unit.Policy) {
	t.Helper()
	_, err := f.svc.UpsertProfile(context.Background(), stock.UpsertProfileInput{
		TenantID: tenant, ProductID: productID, Name: "Producto " + productID, UnitPolicy: policy,
	})
	require.NoError(t, err)
}

func (f *fixture) threshold(t *testing.T, productID string, policy unit.Policy, min string) {
	t.Helper()
	_, err := f.svc.UpsertProfile(context.Background(), stock.UpsertProfileInput{
		TenantID: tenant, ProductID: productID, UnitPolicy: policy,
		MinimumThreshold: dec(min), ThresholdEnabled: true,
	})
	require.NoError(t, err)
}

func (f *fixture) record(t *testing.T, productID string, kind entity.MovementKind, qty string) *stock.RecordMovementResult {
	t.Helper()
	res, err := f.svc.RecordMovement(context.Background(), stock.RecordMovementInput{
		TenantID: tenant, ProductID: productID, Kind: kind, Quantity: dec(qty), Actor: "u1",
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) balance(t *testing.T, productID string) decimal.Decimal {
	t.Helper()
	b, err := f.svc.GetBalance(context.Background(), tenant, productID)
	require.NoError(t, err)
	return b
}

func (f *fixture) movements(t *testing.T, productID string) []*entity.StockMovement {
	t.Helper()
	ms, err := memory.NewMovementRepository(f.store).ListByProduct(context.Background(), tenant, productID)
	require.NoError(t, err)
	return ms
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// ── fakes ─────────────────────────────────────────────────────────────────────

type recordingPublisher struct {
	mu       sync.Mutex
	recorded []stock.MovementRecordedEvent
	low      []stock.LowStockEvent
	err      error
}

func (p *recordingPublisher) PublishMovementRecorded(_ context.Context, ev stock.MovementRecordedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recorded = append(p.recorded, ev)
	return p.err
}

func (p *recordingPublisher) PublishLowStock(_ context.Context, ev stock.LowStockEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.low = append(p.low, ev)
	return p.err
}

type countingMetrics struct {
	mu       sync.Mutex
	recorded map[string]int
	rejected map[string]int
	retries  int
	replays  int
}

func (m *countingMetrics) MovementRecorded(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recorded == nil {
		m.recorded = map[string]int{}
	}
	m.recorded[kind]++
}

func (m *countingMetrics) MovementRejected(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rejected == nil {
		m.rejected = map[string]int{}
	}
	m.rejected[reason]++
}

func (m *countingMetrics) ConflictRetried() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retries++
}

func (m *countingMetrics) ReplayObserved(int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replays++
}

type cachedBalance struct {
	balance decimal.Decimal
	version int64
}

type mapCache struct {
	mu   sync.Mutex
	data map[string]cachedBalance
}

func newMapCache() *mapCache { return &mapCache{data: map[string]cachedBalance{}} }

func (c *mapCache) Get(_ context.Context, tenantID, productID string) (decimal.Decimal, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[tenantID+"/"+productID]
	return v.balance, ok, nil
}

func (c *mapCache) Set(_ context.Context, tenantID, productID string, b decimal.Decimal, version int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := tenantID + "/" + productID
	if cur, ok := c.data[k]; ok && cur.version >= version {
		return nil
	}
	c.data[k] = cachedBalance{balance: b, version: version}
	return nil
}

func (c *mapCache) Invalidate(_ context.Context, tenantID, productID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, tenantID+"/"+productID)
	return nil
}

func (c *mapCache) entry(productID string) (cachedBalance, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[tenant+"/"+productID]
	return v, ok
}

// failingTx devuelve err en los primeros n intentos (n < 0: siempre) y luego delega.
type failingTx struct {
	next  stock.TxRunner
	err   error
	n     int
	mu    sync.Mutex
	calls int
}

func (f *failingTx) Run(ctx context.Context, fn func(repository.MovementRepository, repository.StockProfileRepository) error) error {
	f.mu.Lock()
	f.calls++
	fail := f.n < 0 || f.calls <= f.n
	f.mu.Unlock()
	if fail {
		return f.err
	}
	return f.next.Run(ctx, fn)
}

type captureRenderer struct {
	card *stock.StockCard
}

func (r *captureRenderer) RenderStockCard(card *stock.StockCard) ([]byte, error) {
	r.card = card
	return []byte("%PDF-1.4 fake"), nil
}
