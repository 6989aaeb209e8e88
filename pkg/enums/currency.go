package enums

// Currency is the settlement currency. Only USD is accepted.
type Currency string

const (
	CurrencyUSD Currency = "usd"
)

var validCurrencies = []Currency{
	CurrencyUSD,
}

func (s Currency) String() string {
	return string(s)
}

func (s Currency) IsValid() bool {
	return oneOf(s, validCurrencies)
}

// ParseCurrency converts raw input into a Currency.
func ParseCurrency(value string) (Currency, error) {
	return parse("currency", value, validCurrencies)
}
