package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// UnitOfWork: шлюз хранения: выполняет fn в одной транзакции.
// Транзакция откатывается при любой ошибке или панике внутри fn
// и фиксируется только при успешном возврате.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx предоставляет репозитории, привязанные к текущей транзакции.
type Tx interface {
	Parties() PartyRepository
	Orders() OrderRepository
	Timeline() TimelineRepository
	Outbox() OutboxRepository
}

// PartyRepository ищет клиентов и поставщиков по отображаемому имени.
type PartyRepository interface {
	// FindClientByName возвращает ErrNotFound, если клиента нет.
	FindClientByName(ctx context.Context, name string) (ClientID, error)
	// FindSupplierByName возвращает ErrNotFound, если поставщика нет.
	FindSupplierByName(ctx context.Context, name string) (SupplierID, error)
}

// PaymentUpdate: результат пересчёта, записываемый атомарно.
type PaymentUpdate struct {
	AmountPaid      decimal.Decimal
	AmountRemaining decimal.Decimal
	Status          Status
	ChangedAt       time.Time
}

// StatusUpdate: ручная смена статуса. Поля оплаты не затрагиваются.
type StatusUpdate struct {
	Status             Status
	CancellationReason *string
	ChangedAt          time.Time
}

// OrderRepository описывает операции над спецзаказами внутри транзакции.
type OrderRepository interface {
	// Insert сохраняет новый заказ и возвращает присвоенный идентификатор.
	Insert(ctx context.Context, order SpecialOrder) (OrderID, error)
	// Get читает заказ без блокировки или возвращает ErrOrderNotFound.
	Get(ctx context.Context, id OrderID) (SpecialOrder, error)
	// GetForUpdate читает заказ под эксклюзивной блокировкой строки до конца транзакции.
	GetForUpdate(ctx context.Context, id OrderID) (SpecialOrder, error)
	// UpdateStatus применяет ручную смену статуса и возвращает обновлённую строку.
	UpdateStatus(ctx context.Context, id OrderID, upd StatusUpdate) (SpecialOrder, error)
	// UpdatePayment записывает оплату, остаток и статус и возвращает обновлённую строку.
	UpdatePayment(ctx context.Context, id OrderID, upd PaymentUpdate) (SpecialOrder, error)
}

// ReadModel: read-side проекции без блокировок.
type ReadModel interface {
	// ListViews возвращает заказы с именами сторон, новые первыми.
	ListViews(ctx context.Context) ([]OrderView, error)
	// CountByStatus считает заказы по статусам одним агрегирующим запросом.
	CountByStatus(ctx context.Context) (map[Status]int, error)
	// Exists проверяет наличие заказа.
	Exists(ctx context.Context, id OrderID) (bool, error)
	// ListTimeline возвращает журнал изменений заказа в хронологическом порядке.
	ListTimeline(ctx context.Context, id OrderID) ([]TimelineEvent, error)
}

// Pinger проверяет доступность хранилища для health checks.
type Pinger interface {
	Ping(ctx context.Context) error
}
