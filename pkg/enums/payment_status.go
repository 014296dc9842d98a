package enums

// PaymentStatus moves pending->success or pending->failed exactly once.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusSuccess PaymentStatus = "success"
	PaymentStatusFailed  PaymentStatus = "failed"
)

var paymentStatuses = []PaymentStatus{PaymentStatusPending, PaymentStatusSuccess, PaymentStatusFailed}

func (s PaymentStatus) IsValid() bool { return oneOf(s, paymentStatuses) }

// IsTerminal reports whether the payment can no longer change status.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusSuccess || s == PaymentStatusFailed
}

func ParsePaymentStatus(value string) (PaymentStatus, error) {
	return parse("payment status", value, paymentStatuses)
}
