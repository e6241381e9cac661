package models

import "time"

type BillingPointAccountModel struct {
	UserID    uint  `gorm:"primaryKey;autoIncrement:false"`
	Balance   int64 `gorm:"not null;default:0"`
	Version   int64 `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (BillingPointAccountModel) TableName() string {
	return "billing_point_accounts"
}

type BillingPointFlowModel struct {
	ID             uint    `gorm:"primaryKey"`
	UserID         uint    `gorm:"index;not null"`
	FlowType       string  `gorm:"size:20;not null"`
	Points         int64   `gorm:"not null"`
	BalanceAfter   int64   `gorm:"not null"`
	IdempotencyKey *string `gorm:"uniqueIndex;size:128"`
	OrderID        *uint   `gorm:"index"`
	SubscriptionID *uint
	Reason         string `gorm:"size:255"`
	CreatedAt      time.Time
}

func (BillingPointFlowModel) TableName() string {
	return "billing_point_flows"
}
