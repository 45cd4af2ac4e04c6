package domain

import "fmt"

// TransitionKind классифицирует ручной переход статуса для аудита.
type TransitionKind string

const (
	// TransitionRefresh: статус не меняется, обновляется только date_statut_change.
	TransitionRefresh TransitionKind = "refresh"
	// TransitionAdvance: движение вперёд внутри платёжного семейства.
	TransitionAdvance TransitionKind = "advance"
	// TransitionRegression: откат внутри платёжного семейства (например, vendu -> en_attente).
	TransitionRegression TransitionKind = "regression"
	// TransitionManual: переход в статус, выставляемый вручную.
	TransitionManual TransitionKind = "manual"
	// TransitionReopen: возврат из ручного статуса в платёжное семейство.
	TransitionReopen TransitionKind = "reopen"
)

// Audited сообщает, нужно ли отдельно фиксировать переход в логах как подозрительный.
func (k TransitionKind) Audited() bool {
	return k == TransitionRegression || k == TransitionReopen
}

// transitionTable перечисляет все допустимые переходы.
// Исходная система разрешала любой целевой статус, поэтому таблица полная,
// но каждый переход явно классифицирован.
var transitionTable = map[Status]map[Status]TransitionKind{
	StatusPending: {
		StatusPending:       TransitionRefresh,
		StatusPartiallyPaid: TransitionAdvance,
		StatusSold:          TransitionAdvance,
		StatusOrdered:       TransitionManual,
		StatusReceived:      TransitionManual,
		StatusCancelled:     TransitionManual,
		StatusReplaced:      TransitionManual,
	},
	StatusPartiallyPaid: {
		StatusPending:       TransitionRegression,
		StatusPartiallyPaid: TransitionRefresh,
		StatusSold:          TransitionAdvance,
		StatusOrdered:       TransitionManual,
		StatusReceived:      TransitionManual,
		StatusCancelled:     TransitionManual,
		StatusReplaced:      TransitionManual,
	},
	StatusSold: {
		StatusPending:       TransitionRegression,
		StatusPartiallyPaid: TransitionRegression,
		StatusSold:          TransitionRefresh,
		StatusOrdered:       TransitionManual,
		StatusReceived:      TransitionManual,
		StatusCancelled:     TransitionManual,
		StatusReplaced:      TransitionManual,
	},
	StatusOrdered: {
		StatusPending:       TransitionReopen,
		StatusPartiallyPaid: TransitionReopen,
		StatusSold:          TransitionReopen,
		StatusOrdered:       TransitionRefresh,
		StatusReceived:      TransitionManual,
		StatusCancelled:     TransitionManual,
		StatusReplaced:      TransitionManual,
	},
	StatusReceived: {
		StatusPending:       TransitionReopen,
		StatusPartiallyPaid: TransitionReopen,
		StatusSold:          TransitionReopen,
		StatusOrdered:       TransitionManual,
		StatusReceived:      TransitionRefresh,
		StatusCancelled:     TransitionManual,
		StatusReplaced:      TransitionManual,
	},
	StatusCancelled: {
		StatusPending:       TransitionReopen,
		StatusPartiallyPaid: TransitionReopen,
		StatusSold:          TransitionReopen,
		StatusOrdered:       TransitionManual,
		StatusReceived:      TransitionManual,
		StatusCancelled:     TransitionRefresh,
		StatusReplaced:      TransitionManual,
	},
	StatusReplaced: {
		StatusPending:       TransitionReopen,
		StatusPartiallyPaid: TransitionReopen,
		StatusSold:          TransitionReopen,
		StatusOrdered:       TransitionManual,
		StatusReceived:      TransitionManual,
		StatusCancelled:     TransitionManual,
		StatusReplaced:      TransitionRefresh,
	},
}

// TransitionPolicy проверяет ручные переходы статуса по таблице.
type TransitionPolicy struct {
	strict bool
}

// PermissivePolicy сохраняет поведение исходной системы: разрешён любой известный статус.
func PermissivePolicy() TransitionPolicy {
	return TransitionPolicy{}
}

// StrictPolicy дополнительно требует, чтобы откаты и возвраты в платёжное семейство
// совпадали со статусом, вычисленным из оплаты, и запрещает выход из remplacé.
func StrictPolicy() TransitionPolicy {
	return TransitionPolicy{strict: true}
}

// Strict сообщает, включён ли строгий режим.
func (p TransitionPolicy) Strict() bool {
	return p.strict
}

// Check возвращает вид перехода или ErrInvalidTransition.
func (p TransitionPolicy) Check(order SpecialOrder, to Status) (TransitionKind, error) {
	if !to.Valid() {
		return "", NewValidationError("statut", "unknown status "+string(to))
	}
	targets, ok := transitionTable[order.Status]
	if !ok {
		return "", fmt.Errorf("%w: no transitions defined from %q", ErrInvalidTransition, order.Status)
	}
	kind, ok := targets[to]
	if !ok {
		return "", fmt.Errorf("%w: %q -> %q", ErrInvalidTransition, order.Status, to)
	}
	if !p.strict {
		return kind, nil
	}

	if order.Status == StatusReplaced && kind != TransitionRefresh {
		return "", fmt.Errorf("%w: order is replaced, %q -> %q is not allowed", ErrInvalidTransition, order.Status, to)
	}
	if kind == TransitionRegression || kind == TransitionReopen {
		rec, err := Derive(order.PriceAgreed, order.AmountPaid)
		if err != nil {
			return "", err
		}
		if rec.Status != to {
			return "", fmt.Errorf("%w: %q -> %q contradicts payment state %q",
				ErrInvalidTransition, order.Status, to, rec.Status)
		}
	}
	return kind, nil
}

// ClassifyPaymentChange возвращает вид перехода, вызванного пересчётом оплаты.
func ClassifyPaymentChange(from, to Status) TransitionKind {
	switch {
	case from == to:
		return TransitionRefresh
	case from.paymentRank() < 0:
		return TransitionReopen
	case to.paymentRank() < from.paymentRank():
		return TransitionRegression
	default:
		return TransitionAdvance
	}
}
