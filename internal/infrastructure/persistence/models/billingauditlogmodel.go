package models

import "time"

type BillingAuditLogModel struct {
	ID              uint   `gorm:"primaryKey"`
	Provider        string `gorm:"size:20;not null"`
	EventType       string `gorm:"size:64"`
	ExternalEventID string `gorm:"size:128;index"`
	ExternalOrderID string `gorm:"size:64;index"`
	Signature       string `gorm:"size:512"`
	SignatureValid  bool   `gorm:"not null"`
	RawPayload      string `gorm:"type:text"`
	Outcome         string `gorm:"size:32;not null;index"`
	Detail          string `gorm:"type:text"`
	CreatedAt       time.Time
}

func (BillingAuditLogModel) TableName() string {
	return "billing_audit_logs"
}
