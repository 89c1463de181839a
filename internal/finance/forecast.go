package finance

import (
	"context"

	"finance-tower/internal/forecast"
)

// Forecast returns the monthly paid series for the last year and a flat
// three-month projection.
func (s *Service) Forecast(ctx context.Context, projectID string) (forecast.Result, error) {
	now := s.now()
	paid, err := s.store.ListPaidSince(ctx, projectID, forecast.HistoryStart(now))
	if err != nil {
		return forecast.Result{}, classify("forecast", err)
	}
	return forecast.Build(paid, now), nil
}
