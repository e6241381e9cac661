package models

import (
	"time"

	"gorm.io/datatypes"
)

type BillingPlanModel struct {
	ID            uint   `gorm:"primaryKey"`
	Code          string `gorm:"uniqueIndex;size:64;not null"`
	Name          string `gorm:"size:128;not null"`
	Description   string `gorm:"type:text"`
	PriceCents    int64  `gorm:"not null"`
	Currency      string `gorm:"size:10;not null;default:'CNY'"`
	MonthlyPoints int64  `gorm:"not null;default:0"`
	BillingCycle  string `gorm:"size:20;not null"`
	TrialDays     int    `gorm:"not null;default:0"`
	Active        bool   `gorm:"not null;index"`
	Metadata      datatypes.JSON
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (BillingPlanModel) TableName() string {
	return "billing_plans"
}

type BillingPlanEntitlementModel struct {
	ID         uint   `gorm:"primaryKey"`
	PlanID     uint   `gorm:"not null;uniqueIndex:uk_plan_entitlement,priority:1"`
	Key        string `gorm:"column:entitlement_key;size:64;not null;uniqueIndex:uk_plan_entitlement,priority:2"`
	Enabled    bool   `gorm:"not null"`
	Value      string `gorm:"size:255"`
	QuotaLimit *int64
	Metadata   datatypes.JSON
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (BillingPlanEntitlementModel) TableName() string {
	return "billing_plan_entitlements"
}
