package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Appender is the persistence contract for audit entries.
//
// It MUST be append-only. Implementations are transaction-scoped: the entry
// commits or rolls back together with the state change it describes.
type Appender interface {
	AppendAudit(ctx context.Context, e Entry) error
}

// Recorder validates and stamps entries before handing them to an Appender.
// It holds no storage of its own; callers pass the appender bound to their
// current transaction.
type Recorder struct {
	clock func() time.Time
}

func NewRecorder() *Recorder {
	return &Recorder{clock: time.Now}
}

// WithClock returns a copy of r that stamps entries with clock.
func (r *Recorder) WithClock(clock func() time.Time) *Recorder {
	return &Recorder{clock: clock}
}

var ErrInvalidEntry = errors.New("audit: invalid entry")

// Record appends e through a. A returned error must abort the caller's
// transaction: a state change without its audit entry is never committed.
func (r *Recorder) Record(ctx context.Context, a Appender, e Entry) (Entry, error) {
	if a == nil {
		return Entry{}, errors.New("audit: appender not configured")
	}
	if e.ProjectID == "" || e.ActorID == "" || e.RefID == "" {
		return Entry{}, fmt.Errorf("%w: project, actor and ref are required", ErrInvalidEntry)
	}
	if !e.Action.Valid() {
		return Entry{}, fmt.Errorf("%w: unknown action %q", ErrInvalidEntry, e.Action)
	}
	if e.Amount.IsNegative() {
		return Entry{}, fmt.Errorf("%w: negative amount", ErrInvalidEntry)
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.clock().UTC()
	}
	if err := a.AppendAudit(ctx, e); err != nil {
		return Entry{}, fmt.Errorf("audit: append %s: %w", e.Action, err)
	}
	return e, nil
}
