package httpapi

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/specialorders/internal/domain"
)

// Длиннее любой суммы, помещающейся в NUMERIC(12,2), даже с экспонентой.
const maxAmountLength = 32

// Amount принимает сумму как JSON-число или как строку с числом.
// Разбор откладывается до Decimal, чтобы ошибка несла имя поля.
type Amount struct {
	raw string
	set bool
}

// NewAmount создаёт сумму из строкового представления.
func NewAmount(raw string) Amount {
	return Amount{raw: raw, set: true}
}

// UnmarshalJSON сохраняет исходное значение без разбора.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = Amount{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount{raw: s, set: true}
		return nil
	}
	*a = Amount{raw: string(data), set: true}
	return nil
}

// MarshalJSON возвращает исходное значение строкой.
func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.set {
		return []byte("null"), nil
	}
	return json.Marshal(a.raw)
}

// IsSet сообщает, было ли поле в запросе.
func (a Amount) IsSet() bool {
	return a.set && strings.TrimSpace(a.raw) != ""
}

// Decimal разбирает сумму. Нечисловое значение даёт PaymentError с исходным текстом,
// непредставимое в хранилище отклоняется до любой арифметики.
func (a Amount) Decimal(field string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(a.raw)
	if len(raw) > maxAmountLength {
		return decimal.Decimal{}, &domain.PaymentError{Field: field, Reason: "amount is too long"}
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, &domain.PaymentError{Field: field, Raw: a.raw}
	}
	if err := domain.CheckAmount(field, value); err != nil {
		return decimal.Decimal{}, err
	}
	return value, nil
}

// DecimalOr разбирает сумму или возвращает fallback, если поле не передано.
func (a Amount) DecimalOr(field string, fallback decimal.Decimal) (decimal.Decimal, error) {
	if !a.IsSet() {
		return fallback, nil
	}
	return a.Decimal(field)
}
