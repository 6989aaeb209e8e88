package enums

// RefundStatus tracks a single processor refund.
type RefundStatus string

const (
	RefundStatusPending   RefundStatus = "pending"
	RefundStatusSucceeded RefundStatus = "succeeded"
	RefundStatusFailed    RefundStatus = "failed"
)

var validRefundStatuses = []RefundStatus{
	RefundStatusPending,
	RefundStatusSucceeded,
	RefundStatusFailed,
}

func (s RefundStatus) String() string {
	return string(s)
}

func (s RefundStatus) IsValid() bool {
	return oneOf(s, validRefundStatuses)
}

func ParseRefundStatus(value string) (RefundStatus, error) {
	return parse("refund status", value, validRefundStatuses)
}
