package enums

// PaymentMethod selects the processor rail for an order.
type PaymentMethod string

const (
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodWallet PaymentMethod = "wallet"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodCard,
	PaymentMethodWallet,
}

func (s PaymentMethod) String() string {
	return string(s)
}

func (s PaymentMethod) IsValid() bool {
	return oneOf(s, validPaymentMethods)
}

func ParsePaymentMethod(value string) (PaymentMethod, error) {
	return parse("payment method", value, validPaymentMethods)
}
