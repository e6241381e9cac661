package valueobjects

import "fmt"

type FlowType string

const (
	FlowTypeGrant   FlowType = "grant"
	FlowTypeConsume FlowType = "consume"
	FlowTypeRefund  FlowType = "refund"
	FlowTypeExpire  FlowType = "expire"
	FlowTypeAdjust  FlowType = "adjust"
)

func (f FlowType) IsValid() bool {
	switch f {
	case FlowTypeGrant, FlowTypeConsume, FlowTypeRefund, FlowTypeExpire, FlowTypeAdjust:
		return true
	default:
		return false
	}
}

// ValidateDelta enforces the sign rules of each flow type. Consume and refund
// entries never add points.
func (f FlowType) ValidateDelta(points int64) error {
	if !f.IsValid() {
		return fmt.Errorf("unknown flow type %q", f)
	}
	switch f {
	case FlowTypeConsume, FlowTypeRefund, FlowTypeExpire:
		if points > 0 {
			return fmt.Errorf("%s flow must not be positive, got %d", f, points)
		}
	}
	return nil
}

func (f FlowType) String() string {
	return string(f)
}
