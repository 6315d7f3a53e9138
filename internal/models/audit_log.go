package models

import "gorm.io/datatypes"

// AuditLog records one gateway-visible action against the session pool:
// listings, metadata lookups, downloads and token issuance.
type AuditLog struct {
	BaseModel
	Actor     string         `gorm:"index" json:"actor"`
	Action    string         `gorm:"not null;index" json:"action"`
	Session   string         `gorm:"index" json:"session"`
	Path      string         `json:"path"`
	Result    string         `gorm:"not null" json:"result"`
	IPAddress string         `json:"ip_address"`
	UserAgent string         `json:"user_agent"`
	Metadata  datatypes.JSON `json:"metadata,omitempty"`
}
