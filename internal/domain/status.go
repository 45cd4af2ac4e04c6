package domain

import (
	"strings"
)

// Status описывает стадию жизненного цикла спецзаказа.
// Значения хранятся в колонке statut в исходной локали.
type Status string

const (
	// StatusPending: заказ создан, оплат ещё не было.
	StatusPending Status = "en_attente"
	// StatusPartiallyPaid: внесена часть суммы.
	StatusPartiallyPaid Status = "paiement_partiel"
	// StatusSold: сумма оплачена полностью.
	StatusSold Status = "vendu"
	// StatusOrdered: товар заказан у поставщика.
	StatusOrdered Status = "commandé"
	// StatusReceived: товар получен от поставщика.
	StatusReceived Status = "reçu"
	// StatusCancelled: заказ отменён, причина хранится в raison_annulation.
	StatusCancelled Status = "annulé"
	// StatusReplaced: заказ заменён другим.
	StatusReplaced Status = "remplacé"
)

// StatusFamily разделяет статусы на вычисляемые по оплате и выставляемые вручную.
type StatusFamily string

const (
	FamilyPaymentDriven StatusFamily = "payment_driven"
	FamilyManual        StatusFamily = "manual"
)

// AllStatuses перечисляет статусы в порядке вывода статистики.
var AllStatuses = []Status{
	StatusPending,
	StatusOrdered,
	StatusReceived,
	StatusSold,
	StatusCancelled,
	StatusReplaced,
	StatusPartiallyPaid,
}

var statusAliases = map[string]Status{
	"pending":        StatusPending,
	"partially-paid": StatusPartiallyPaid,
	"partially_paid": StatusPartiallyPaid,
	"partiallypaid":  StatusPartiallyPaid,
	"sold":           StatusSold,
	"ordered":        StatusOrdered,
	"received":       StatusReceived,
	"cancelled":      StatusCancelled,
	"canceled":       StatusCancelled,
	"replaced":       StatusReplaced,
}

// ParseStatus принимает хранимое значение или английское имя статуса.
func ParseStatus(raw string) (Status, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", NewValidationError("statut", "is required")
	}
	candidate := Status(value)
	if candidate.Valid() {
		return candidate, nil
	}
	if alias, ok := statusAliases[strings.ToLower(value)]; ok {
		return alias, nil
	}
	return "", NewValidationError("statut", "unknown status "+value)
}

// Valid сообщает, является ли статус одним из поддерживаемых значений.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPartiallyPaid, StatusSold,
		StatusOrdered, StatusReceived, StatusCancelled, StatusReplaced:
		return true
	default:
		return false
	}
}

// Family возвращает семейство статуса.
func (s Status) Family() StatusFamily {
	switch s {
	case StatusPending, StatusPartiallyPaid, StatusSold:
		return FamilyPaymentDriven
	default:
		return FamilyManual
	}
}

// PaymentTracked сообщает, пересчитывается ли статус из оплаты.
func (s Status) PaymentTracked() bool {
	return s.Family() == FamilyPaymentDriven
}

func (s Status) String() string {
	return string(s)
}

// paymentRank задаёт порядок статусов внутри платёжного семейства.
func (s Status) paymentRank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusPartiallyPaid:
		return 1
	case StatusSold:
		return 2
	default:
		return -1
	}
}
