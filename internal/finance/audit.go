package finance

import "context"

// AuditLog returns the newest entries first. limit <= 0 uses the configured
// default; anything above MaxAuditLimit is capped.
func (s *Service) AuditLog(ctx context.Context, projectID string, limit int) ([]AuditView, error) {
	if limit <= 0 {
		limit = s.auditLimit
	}
	if limit > MaxAuditLimit {
		limit = MaxAuditLimit
	}

	entries, err := s.store.ListAudit(ctx, projectID, limit)
	if err != nil {
		return nil, classify("audit log", err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ActorID)
	}
	names := s.names(ctx, ids...)

	out := make([]AuditView, 0, len(entries))
	for _, e := range entries {
		out = append(out, AuditView{Entry: e, ActorName: names[e.ActorID]})
	}
	return out, nil
}
