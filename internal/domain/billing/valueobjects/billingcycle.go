package valueobjects

import (
	"fmt"
	"time"
)

type BillingCycle string

const (
	BillingCycleWeekly     BillingCycle = "weekly"
	BillingCycleMonthly    BillingCycle = "monthly"
	BillingCycleQuarterly  BillingCycle = "quarterly"
	BillingCycleSemiAnnual BillingCycle = "semi_annual"
	BillingCycleYearly     BillingCycle = "yearly"
)

var billingCycleDays = map[BillingCycle]int{
	BillingCycleWeekly:     7,
	BillingCycleMonthly:    30,
	BillingCycleQuarterly:  90,
	BillingCycleSemiAnnual: 180,
	BillingCycleYearly:     365,
}

func ParseBillingCycle(s string) (BillingCycle, error) {
	c := BillingCycle(s)
	if !c.IsValid() {
		return "", fmt.Errorf("invalid billing cycle: %s", s)
	}
	return c, nil
}

func (c BillingCycle) IsValid() bool {
	_, ok := billingCycleDays[c]
	return ok
}

func (c BillingCycle) Days() int {
	return billingCycleDays[c]
}

// Duration is the length of one subscription window for this cycle.
func (c BillingCycle) Duration() time.Duration {
	return time.Duration(c.Days()) * 24 * time.Hour
}

func (c BillingCycle) String() string {
	return string(c)
}
