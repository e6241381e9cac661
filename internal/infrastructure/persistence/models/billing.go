package models

// BillingModels lists every billing table in dependency order.
func BillingModels() []interface{} {
	return []interface{}{
		&BillingPlanModel{},
		&BillingPlanEntitlementModel{},
		&BillingOrderModel{},
		&BillingSubscriptionModel{},
		&BillingPointAccountModel{},
		&BillingPointFlowModel{},
		&BillingAuditLogModel{},
		&BillingOutboxEventModel{},
	}
}
