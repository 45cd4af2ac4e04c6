package domain

import "github.com/shopspring/decimal"

// Суммы хранятся как NUMERIC(12,2): два знака после запятой и не больше MaxAmount по модулю.
const (
	AmountScale = 2
	// Порядок за пределами окна отсекается до любой арифметики.
	amountExponentLimit = 20
)

// MaxAmount: наибольшая сумма, которую принимает хранилище.
var MaxAmount = decimal.RequireFromString("9999999999.99")

// CheckAmount проверяет, что сумма представима в хранилище без округления.
func CheckAmount(field string, v decimal.Decimal) error {
	if exp := v.Exponent(); exp < -amountExponentLimit || exp > amountExponentLimit {
		return &PaymentError{Field: field, Reason: "amount is out of range"}
	}
	if !v.Equal(v.Truncate(AmountScale)) {
		return &PaymentError{Field: field, Value: v, Reason: "amount must have at most 2 decimal places"}
	}
	if v.Abs().GreaterThan(MaxAmount) {
		return &PaymentError{Field: field, Value: v, Reason: "amount exceeds " + MaxAmount.StringFixed(AmountScale)}
	}
	return nil
}
