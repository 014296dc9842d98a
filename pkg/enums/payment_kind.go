package enums

// PaymentKind names what a payment buys: a club membership or an event seat.
type PaymentKind string

const (
	PaymentKindMembership PaymentKind = "membership"
	PaymentKindEvent      PaymentKind = "event"
)

var paymentKinds = []PaymentKind{PaymentKindMembership, PaymentKindEvent}

func (k PaymentKind) IsValid() bool { return oneOf(k, paymentKinds) }

func ParsePaymentKind(value string) (PaymentKind, error) {
	return parse("payment kind", value, paymentKinds)
}
