package services

import "context"

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// RecordAudit logs the supplied entry. Audit failures are discarded; the
// request being audited proceeds regardless.
func RecordAudit(ctx context.Context, audit *AuditService, entry AuditEntry) {
	if audit == nil {
		return
	}
	_ = audit.Log(ctx, entry)
}
