// Package forecast turns paid-disbursement history into burn-rate figures.
//
// Everything here is pure: callers load payments from the ledger and pass
// the reference time in, so results are deterministic under test.
package forecast

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"finance-tower/internal/ledger"
)

const (
	// HistoryMonths is how far back the monthly series reaches, current month included.
	HistoryMonths = 12
	// BurnMonths is the trailing window used for both averages.
	BurnMonths = 3
	// HorizonMonths is the number of projected months.
	HorizonMonths = 3
)

var burnDivisor = decimal.NewFromInt(BurnMonths)

type MonthActual struct {
	Month  string          `json:"month"`
	Label  string          `json:"label"`
	Actual decimal.Decimal `json:"actual"`
}

type MonthForecast struct {
	Month    string          `json:"month"`
	Label    string          `json:"label"`
	Forecast decimal.Decimal `json:"forecast"`
}

type Result struct {
	Actuals        []MonthActual   `json:"actuals"`
	Forecast       []MonthForecast `json:"forecast"`
	AvgMonthlyBurn decimal.Decimal `json:"avg_monthly_burn"`
}

// HistoryStart is the first instant included in the monthly series for now.
func HistoryStart(now time.Time) time.Time {
	return monthStart(now).AddDate(0, -(HistoryMonths - 1), 0)
}

// Build buckets payments by UTC calendar month and projects a flat
// average of the last months with data forward.
// Months without payments are omitted from Actuals.
func Build(payments []ledger.Payment, now time.Time) Result {
	from := HistoryStart(now)
	until := monthStart(now).AddDate(0, 1, 0)

	buckets := make(map[time.Time]decimal.Decimal)
	for _, p := range payments {
		at := p.PaidAt.UTC()
		if at.Before(from) || !at.Before(until) {
			continue
		}
		m := monthStart(at)
		buckets[m] = buckets[m].Add(p.Amount)
	}

	months := make([]time.Time, 0, len(buckets))
	for m := range buckets {
		months = append(months, m)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })

	res := Result{
		Actuals:  make([]MonthActual, 0, len(months)),
		Forecast: make([]MonthForecast, 0, HorizonMonths),
	}
	for _, m := range months {
		res.Actuals = append(res.Actuals, MonthActual{Month: key(m), Label: label(m), Actual: buckets[m]})
	}

	avg := decimal.Zero
	if n := len(months); n > 0 {
		recent := months[max(0, n-BurnMonths):]
		sum := decimal.Zero
		for _, m := range recent {
			sum = sum.Add(buckets[m])
		}
		avg = sum.Div(decimal.NewFromInt(int64(len(recent))))
	}
	res.AvgMonthlyBurn = avg.Round(0)

	next := monthStart(now)
	if n := len(months); n > 0 {
		next = months[n-1].AddDate(0, 1, 0)
	}
	for i := 0; i < HorizonMonths; i++ {
		m := next.AddDate(0, i, 0)
		res.Forecast = append(res.Forecast, MonthForecast{Month: key(m), Label: label(m), Forecast: res.AvgMonthlyBurn})
	}
	return res
}

// BurnWindowStart is the lower bound of the rolling burn window ending at now.
func BurnWindowStart(now time.Time) time.Time {
	return now.UTC().AddDate(0, -BurnMonths, 0)
}

// MonthlyBurn is the total paid inside [now-3 months, now] spread over three months.
func MonthlyBurn(payments []ledger.Payment, now time.Time) decimal.Decimal {
	from := BurnWindowStart(now)
	to := now.UTC()
	sum := decimal.Zero
	for _, p := range payments {
		at := p.PaidAt.UTC()
		if at.Before(from) || at.After(to) {
			continue
		}
		sum = sum.Add(p.Amount)
	}
	return sum.Div(burnDivisor).Round(2)
}

// Runway is floor(remaining / burn) in whole months, nil when nothing is
// being spent. An overspent budget yields a negative runway.
func Runway(remaining, burn decimal.Decimal) *int64 {
	if !burn.IsPositive() {
		return nil
	}
	months := remaining.Div(burn).Floor().IntPart()
	return &months
}

func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func key(m time.Time) string   { return m.Format("2006-01") }
func label(m time.Time) string { return m.Format("Jan 2006") }
