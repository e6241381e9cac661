package models

import "time"

type BillingSubscriptionModel struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"index:idx_sub_user_status,priority:1;not null"`
	PlanID    uint   `gorm:"index;not null"`
	OrderID   *uint  `gorm:"index"`
	Status    string `gorm:"size:20;not null;index:idx_sub_user_status,priority:2"`
	StartsAt  time.Time
	ExpiresAt time.Time `gorm:"index"`
	AutoRenew bool      `gorm:"not null;default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (BillingSubscriptionModel) TableName() string {
	return "billing_subscriptions"
}
