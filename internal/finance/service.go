package finance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"finance-tower/internal/audit"
	"finance-tower/internal/ledger"
	"finance-tower/pkg/logger"
)

var (
	ErrValidation    = errors.New("validation failed")
	ErrNotConfigured = errors.New("budget not configured")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrStorage       = errors.New("storage failure")
)

const (
	DefaultCurrency = "USD"
	DefaultCategory = "general"

	DefaultAuditLimit = 100
	MaxAuditLimit     = 500

	// AmountScale is the number of decimal places money columns keep.
	AmountScale = 2
)

// MaxAmount is the largest value a NUMERIC(14,2) column holds.
var MaxAmount = decimal.RequireFromString("999999999999.99")

// Directory resolves user ids to display names.
// Lookups are best-effort; a failing directory never fails a read.
type Directory interface {
	Names(ctx context.Context, ids []string) (map[string]string, error)
}

// BatchGuard keeps two batch payouts for the same project from running at once.
type BatchGuard interface {
	Acquire(ctx context.Context, name string) (release func(), ok bool, err error)
}

type Config struct {
	DefaultCurrency string
	AuditLimit      int

	Directory Directory
	Guard     BatchGuard
	// Clock is injectable for deterministic tests.
	Clock func() time.Time
}

// Service is the financial control tower: budgets, fund requests,
// disbursements, forecast and the audit trail over one ledger store.
//
// Money invariants:
// - budget_used and remaining are derived from disbursements on every read
// - every mutation and its audit entry commit in one transaction
// - status changes go through conditional updates; zero rows is never success
// - overspend is reported, never blocked
type Service struct {
	store    *ledger.Store
	recorder *audit.Recorder

	currency   string
	auditLimit int
	directory  Directory
	guard      BatchGuard
	clock      func() time.Time
}

func NewService(store *ledger.Store, cfg Config) *Service {
	s := &Service{
		store:      store,
		currency:   strings.ToUpper(strings.TrimSpace(cfg.DefaultCurrency)),
		auditLimit: cfg.AuditLimit,
		directory:  cfg.Directory,
		guard:      cfg.Guard,
		clock:      cfg.Clock,
	}
	if s.currency == "" {
		s.currency = DefaultCurrency
	}
	if s.auditLimit <= 0 {
		s.auditLimit = DefaultAuditLimit
	}
	if s.auditLimit > MaxAuditLimit {
		s.auditLimit = MaxAuditLimit
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	s.recorder = audit.NewRecorder().WithClock(s.now)
	return s
}

// now is UTC at microsecond precision so values survive a database round trip unchanged.
func (s *Service) now() time.Time {
	return s.clock().UTC().Truncate(time.Microsecond)
}

func (s *Service) record(ctx context.Context, q *ledger.Queries, e audit.Entry) error {
	_, err := s.recorder.Record(ctx, q, e)
	return err
}

// classify maps an error leaving a transaction onto the service's sentinels.
// Anything not already classified is a storage failure.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{ErrValidation, ErrNotConfigured, ErrNotFound, ErrConflict, ErrStorage} {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

// resolveMiss tells a missing row from one in the wrong state after a
// conditional update matched nothing.
func resolveMiss(err error, kind, id string, lookup func() error) error {
	if !errors.Is(err, ledger.ErrNoTransition) {
		return err
	}
	lerr := lookup()
	switch {
	case errors.Is(lerr, ledger.ErrNotFound):
		return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
	case lerr != nil:
		return lerr
	default:
		return fmt.Errorf("%w: %s %s is not in a state that allows this change", ErrConflict, kind, id)
	}
}

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// checkAmount rejects values the ledger columns cannot store exactly:
// more than two decimal places, above MaxAmount, or not positive
// (zero allowed only when allowZero is set).
func checkAmount(field string, v decimal.Decimal, allowZero bool) error {
	switch {
	case allowZero && v.IsNegative():
		return validationf("%s must be >= 0", field)
	case !allowZero && !v.IsPositive():
		return validationf("%s must be > 0", field)
	case !v.Equal(v.Round(AmountScale)):
		return validationf("%s must have at most %d decimal places", field, AmountScale)
	case v.GreaterThan(MaxAmount):
		return validationf("%s must be <= %s", field, MaxAmount.StringFixed(AmountScale))
	}
	return nil
}

func requireIDs(projectID, actorID string) error {
	if strings.TrimSpace(projectID) == "" {
		return validationf("project_id is required")
	}
	if strings.TrimSpace(actorID) == "" {
		return validationf("actor_id is required")
	}
	return nil
}

// names looks up display names for ids, skipping empties and duplicates.
// Directory failures degrade to an empty map.
func (s *Service) names(ctx context.Context, ids ...string) map[string]string {
	if s.directory == nil {
		return map[string]string{}
	}
	seen := make(map[string]struct{}, len(ids))
	uniq := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		uniq = append(uniq, id)
	}
	if len(uniq) == 0 {
		return map[string]string{}
	}
	out, err := s.directory.Names(ctx, uniq)
	if err != nil {
		logger.From(ctx).Warn("name lookup failed", "ids", len(uniq), "err", err)
		return map[string]string{}
	}
	if out == nil {
		out = map[string]string{}
	}
	return out
}
