package models

import (
	"time"

	"gorm.io/datatypes"
)

type BillingOutboxEventModel struct {
	ID          uint   `gorm:"primaryKey"`
	EventType   string `gorm:"size:64;not null"`
	EventKey    string `gorm:"size:128"`
	Payload     datatypes.JSON
	Attempts    int    `gorm:"not null;default:0"`
	LastError   string `gorm:"size:512"`
	OccurredAt  time.Time
	PublishedAt *time.Time `gorm:"index"`
	CreatedAt   time.Time
}

func (BillingOutboxEventModel) TableName() string {
	return "billing_outbox_events"
}
