package app

import (
	"github.com/charlesng35/filebridge/internal/app/maintenance"
)

// CleanerOptions converts the maintenance configuration into Cleaner options.
func (c MaintenanceConfig) CleanerOptions() []maintenance.Option {
	var opts []maintenance.Option
	if c.AuditRetentionDays > 0 {
		opts = append(opts, maintenance.WithAuditRetentionDays(c.AuditRetentionDays))
	}
	if c.AuditSchedule != "" {
		opts = append(opts, maintenance.WithAuditSchedule(c.AuditSchedule))
	}
	if c.CacheSchedule != "" {
		opts = append(opts, maintenance.WithCacheSchedule(c.CacheSchedule))
	}
	return opts
}
