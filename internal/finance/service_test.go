package finance

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finance-tower/internal/audit"
	"finance-tower/internal/ledger"
	"finance-tower/pkg/utils"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type mapDirectory struct {
	names map[string]string
	err   error
}

func (d mapDirectory) Names(_ context.Context, ids []string) (map[string]string, error) {
	if d.err != nil {
		return nil, d.err
	}
	out := make(map[string]string, len(ids))
	for _, id := range ids {
		if n, ok := d.names[id]; ok {
			out[id] = n
		}
	}
	return out, nil
}

type busyGuard struct{}

func (busyGuard) Acquire(context.Context, string) (func(), bool, error) { return func() {}, false, nil }

type harness struct {
	svc   *Service
	store *ledger.Store
	clock *fakeClock
}

var start = time.Date(2026, time.April, 15, 10, 0, 0, 0, time.UTC)

func newHarness(t *testing.T, mutate ...func(*Config)) harness {
	t.Helper()
	ctx := context.Background()
	db, err := utils.OpenSQLite(ctx, filepath.Join(t.TempDir(), "finance.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, ledger.Migrate(ctx, db, ledger.DialectSQLite))

	store := ledger.New(db)
	clock := &fakeClock{t: start}
	cfg := Config{
		DefaultCurrency: "usd",
		Directory: mapDirectory{names: map[string]string{
			"owner": "Olivia Owner",
			"dev":   "Dana Dev",
		}},
		Clock: clock.Now,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	return harness{svc: NewService(store, cfg), store: store, clock: clock}
}

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func (h harness) auditFor(t *testing.T, ref string) []audit.Entry {
	t.Helper()
	es, err := h.store.ListAuditByRef(context.Background(), "p1", ref)
	require.NoError(t, err)
	return es
}

func (h harness) mustRequest(t *testing.T, amount int64) ledger.FundRequest {
	t.Helper()
	r, err := h.svc.CreateRequest(context.Background(), "p1", "dev", d(amount), "travel", "conference trip")
	require.NoError(t, err)
	return r
}

func TestOverview_NotConfigured(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Overview(context.Background(), "p1")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestAdjustBudget_RejectsNegativeTotal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.AdjustBudget(ctx, "p1", d(-5), "oops", "owner")
	require.ErrorIs(t, err, ErrValidation)

	_, err = h.store.GetBudget(ctx, "p1")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
	assert.Empty(t, h.auditFor(t, "p1"))
}

func TestAdjustBudget_UpsertsAndAudits(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	b, err := h.svc.AdjustBudget(ctx, "p1", d(10000), "kickoff", "owner")
	require.NoError(t, err)
	assert.Equal(t, "USD", b.Currency)
	assert.True(t, b.TotalBudget.Equal(d(10000)))
	assert.True(t, b.UpdatedAt.Equal(start))

	h.svc.currency = "EUR"
	b, err = h.svc.AdjustBudget(ctx, "p1", d(12000), "scope grew", "owner")
	require.NoError(t, err)
	assert.Equal(t, "USD", b.Currency, "currency is fixed once set")

	entries := h.auditFor(t, "p1")
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, audit.ActionBudgetAdjusted, e.Action)
		assert.Equal(t, "owner", e.ActorID)
	}
	amounts := []string{entries[0].Amount.String(), entries[1].Amount.String()}
	assert.ElementsMatch(t, []string{"10000", "12000"}, amounts)
}

func TestOverview_DerivesUsageFromDisbursements(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.AdjustBudget(ctx, "p1", d(10000), "kickoff", "owner")
	require.NoError(t, err)
	r := h.mustRequest(t, 2500)
	_, err = h.svc.ApproveRequest(ctx, "p1", r.ID, "owner", nil, "")
	require.NoError(t, err)
	h.mustRequest(t, 400)

	ov, err := h.svc.Overview(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, ov.BudgetUsed.Equal(d(2500)))
	assert.True(t, ov.Remaining.Equal(d(7500)))
	assert.Equal(t, int64(25), ov.UsedPercent)
	assert.True(t, ov.MonthlyBurn.IsZero())
	assert.Nil(t, ov.RunwayMonths)
	assert.Equal(t, 1, ov.PendingRequests.Count)
	assert.True(t, ov.PendingRequests.Total.Equal(d(400)))
}

func TestOverview_BurnAndRunwayFromPaidHistory(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.AdjustBudget(ctx, "p1", d(10000), "kickoff", "owner")
	require.NoError(t, err)

	paidAt := start.AddDate(0, -1, 0)
	require.NoError(t, h.store.InsertDisbursement(ctx, ledger.Disbursement{
		ID: "old", ProjectID: "p1", RecipientID: "dev", Amount: d(1500), Category: "general",
		Status: ledger.DisbursementStatusPaid, CreatedAt: paidAt, PaidAt: &paidAt,
	}))

	ov, err := h.svc.Overview(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, ov.MonthlyBurn.Equal(d(500)), "got %s", ov.MonthlyBurn)
	require.NotNil(t, ov.RunwayMonths)
	// remaining 8500 / 500
	assert.Equal(t, int64(17), *ov.RunwayMonths)
}

func TestOverview_OverspendIsReportedNotBlocked(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.AdjustBudget(ctx, "p1", d(1000), "tight", "owner")
	require.NoError(t, err)
	r := h.mustRequest(t, 1500)
	_, err = h.svc.ApproveRequest(ctx, "p1", r.ID, "owner", nil, "")
	require.NoError(t, err)

	ov, err := h.svc.Overview(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, ov.Remaining.Equal(d(-500)))
	assert.Equal(t, int64(150), ov.UsedPercent)
	assert.Nil(t, ov.RunwayMonths, "nothing paid yet")
}

func TestOverview_OverspentRunwayIsNegative(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.AdjustBudget(ctx, "p1", d(1000), "tight", "owner")
	require.NoError(t, err)

	paidAt := start.AddDate(0, 0, -10)
	require.NoError(t, h.store.InsertDisbursement(ctx, ledger.Disbursement{
		ID: "big", ProjectID: "p1", RecipientID: "dev", Amount: d(3000), Category: "general",
		Status: ledger.DisbursementStatusPaid, CreatedAt: paidAt, PaidAt: &paidAt,
	}))

	ov, err := h.svc.Overview(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, ov.Remaining.Equal(d(-2000)), "got %s", ov.Remaining)
	assert.True(t, ov.MonthlyBurn.Equal(d(1000)), "got %s", ov.MonthlyBurn)
	require.NotNil(t, ov.RunwayMonths)
	// -2000 / 1000
	assert.Equal(t, int64(-2), *ov.RunwayMonths)
}

func TestOverview_ZeroBudgetHasZeroPercent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.AdjustBudget(ctx, "p1", decimal.Zero, "frozen", "owner")
	require.NoError(t, err)

	ov, err := h.svc.Overview(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), ov.UsedPercent)
}

func TestOverview_FractionalAmountsSumExactly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.AdjustBudget(ctx, "p1", d(1), "petty cash", "owner")
	require.NoError(t, err)
	for _, amount := range []string{"0.1", "0.2"} {
		r, err := h.svc.CreateRequest(ctx, "p1", "dev", decimal.RequireFromString(amount), "office", "stamps")
		require.NoError(t, err)
		_, err = h.svc.ApproveRequest(ctx, "p1", r.ID, "owner", nil, "")
		require.NoError(t, err)
	}
	_, err = h.svc.CreateRequest(ctx, "p1", "dev", decimal.RequireFromString("0.05"), "office", "envelopes")
	require.NoError(t, err)

	ov, err := h.svc.Overview(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "0.3", ov.BudgetUsed.String())
	assert.Equal(t, "0.7", ov.Remaining.String())
	assert.Equal(t, int64(30), ov.UsedPercent)
	assert.Equal(t, "0.05", ov.PendingRequests.Total.String())
}

func TestAdjustBudget_RejectsUnstorableTotals(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.AdjustBudget(ctx, "p1", decimal.RequireFromString("100.005"), "", "owner")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = h.svc.AdjustBudget(ctx, "p1", decimal.New(1, 12), "", "owner")
	assert.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, h.auditFor(t, "p1"))

	b, err := h.svc.AdjustBudget(ctx, "p1", MaxAmount, "ceiling", "owner")
	require.NoError(t, err)
	assert.True(t, b.TotalBudget.Equal(MaxAmount))

	_, err = h.svc.AdjustBudget(ctx, "p1", decimal.RequireFromString("12.50"), "", "owner")
	assert.NoError(t, err, "trailing zeros are within scale")
}
