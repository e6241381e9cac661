package valueobjects

type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusExpired  SubscriptionStatus = "expired"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

func (s SubscriptionStatus) IsValid() bool {
	switch s {
	case SubscriptionStatusActive, SubscriptionStatusExpired, SubscriptionStatusCanceled:
		return true
	default:
		return false
	}
}

func (s SubscriptionStatus) String() string {
	return string(s)
}
