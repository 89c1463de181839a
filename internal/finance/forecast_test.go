package finance

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finance-tower/internal/ledger"
)

func TestForecast_ThreeMonthAverage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i, amount := range []int64{300, 600, 900} {
		paidAt := time.Date(2026, time.January+time.Month(i), 10, 0, 0, 0, 0, time.UTC)
		require.NoError(t, h.store.InsertDisbursement(ctx, ledger.Disbursement{
			ID: fmt.Sprintf("d%d", i), ProjectID: "p1", RecipientID: "dev", Amount: d(amount),
			Category: "general", Status: ledger.DisbursementStatusPaid, CreatedAt: paidAt, PaidAt: &paidAt,
		}))
	}
	// Approved but unpaid money is not burn.
	require.NoError(t, h.store.InsertDisbursement(ctx, ledger.Disbursement{
		ID: "unpaid", ProjectID: "p1", RecipientID: "dev", Amount: d(5000),
		Category: "general", Status: ledger.DisbursementStatusApproved, CreatedAt: start,
	}))

	res, err := h.svc.Forecast(ctx, "p1")
	require.NoError(t, err)

	require.Len(t, res.Actuals, 3)
	assert.Equal(t, "2026-01", res.Actuals[0].Month)
	assert.True(t, res.AvgMonthlyBurn.Equal(d(600)))
	require.Len(t, res.Forecast, 3)
	assert.Equal(t, "2026-04", res.Forecast[0].Month)
	assert.Equal(t, "Apr 2026", res.Forecast[0].Label)
	for _, f := range res.Forecast {
		assert.True(t, f.Forecast.Equal(d(600)))
	}
}

func TestForecast_NoHistory(t *testing.T) {
	h := newHarness(t)

	res, err := h.svc.Forecast(context.Background(), "p1")
	require.NoError(t, err)
	assert.Empty(t, res.Actuals)
	assert.True(t, res.AvgMonthlyBurn.IsZero())
	require.Len(t, res.Forecast, 3)
	assert.Equal(t, "2026-04", res.Forecast[0].Month)
}
