package models

import (
	"time"

	"gorm.io/datatypes"
)

type BillingOrderModel struct {
	ID              uint   `gorm:"primaryKey"`
	UserID          uint   `gorm:"index;not null"`
	PlanID          uint   `gorm:"index;not null"`
	Provider        string `gorm:"size:20;not null"`
	ExternalOrderID string `gorm:"uniqueIndex;size:64;not null"`
	IdempotencyKey  string `gorm:"uniqueIndex;size:128;not null"`
	AmountCents     int64  `gorm:"not null"`
	Currency        string `gorm:"size:10;not null;default:'CNY'"`
	Status          string `gorm:"size:20;not null;index:idx_order_status_created,priority:1"`
	StatusReason    string `gorm:"size:255"`
	ProviderPayload datatypes.JSON
	PaidAt          *time.Time
	RefundedAt      *time.Time
	CreatedAt       time.Time `gorm:"index:idx_order_status_created,priority:2"`
	UpdatedAt       time.Time
}

func (BillingOrderModel) TableName() string {
	return "billing_orders"
}
