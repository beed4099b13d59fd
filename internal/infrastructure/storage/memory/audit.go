package memory

import (
	"context"

	"pharmaledger/internal/domain/audit"
)

// AuditLog implements audit.Recorder.
type AuditLog struct {
	store *Store
}

var _ audit.Recorder = (*AuditLog)(nil)

func (a *AuditLog) Record(ctx context.Context, entry audit.Entry) error {
	return a.store.do(ctx, func(st *state) error {
		st.audit = append(st.audit, entry)
		return nil
	})
}

// Entries returns the tenant's audit entries in write order.
func (a *AuditLog) Entries(ctx context.Context, tenantID string) []audit.Entry {
	var out []audit.Entry
	_ = a.store.do(ctx, func(st *state) error {
		for _, e := range st.audit {
			if e.TenantID == tenantID {
				out = append(out, e)
			}
		}
		return nil
	})
	return out
}
