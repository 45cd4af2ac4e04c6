package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vladislavdragonenkov/specialorders/internal/domain"
)

type party struct {
	name  string
	phone string
}

// Store: in-memory шлюз хранения для локальной разработки и тестов.
// Блокировка строки эмулируется семафором на заказ: GetForUpdate, UpdateStatus
// и UpdatePayment удерживают его до завершения транзакции.
type Store struct {
	mu          sync.RWMutex
	clients     map[domain.ClientID]party
	clientIDs   map[string]domain.ClientID
	suppliers   map[domain.SupplierID]party
	supplierIDs map[string]domain.SupplierID
	orders      map[domain.OrderID]domain.SpecialOrder
	timeline    map[domain.OrderID][]domain.TimelineEvent

	locksMu sync.Mutex
	locks   map[domain.OrderID]chan struct{}

	outbox      *OutboxRepository
	lockTimeout time.Duration

	nextOrderID atomic.Int64
	nextPartyID atomic.Int64
}

// Option настраивает Store.
type Option func(*Store)

// WithLockTimeout ограничивает ожидание блокировки строки.
// Ноль означает ожидание до отмены ctx.
func WithLockTimeout(timeout time.Duration) Option {
	return func(s *Store) {
		s.lockTimeout = timeout
	}
}

// NewStore создаёт пустое in-memory хранилище.
func NewStore(options ...Option) *Store {
	s := &Store{
		clients:     make(map[domain.ClientID]party),
		clientIDs:   make(map[string]domain.ClientID),
		suppliers:   make(map[domain.SupplierID]party),
		supplierIDs: make(map[string]domain.SupplierID),
		orders:      make(map[domain.OrderID]domain.SpecialOrder),
		timeline:    make(map[domain.OrderID][]domain.TimelineEvent),
		locks:       make(map[domain.OrderID]chan struct{}),
		outbox:      NewOutboxRepository(),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// AddClient регистрирует клиента. Повторное имя сохраняет первый идентификатор,
// как и выборка первой строки по имени в Postgres.
func (s *Store) AddClient(name, phone string) domain.ClientID {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.clientIDs[name]; ok {
		return id
	}
	id := domain.ClientID(s.nextPartyID.Add(1))
	s.clients[id] = party{name: name, phone: phone}
	s.clientIDs[name] = id
	return id
}

// AddSupplier регистрирует поставщика.
func (s *Store) AddSupplier(name string) domain.SupplierID {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.supplierIDs[name]; ok {
		return id
	}
	id := domain.SupplierID(s.nextPartyID.Add(1))
	s.suppliers[id] = party{name: name}
	s.supplierIDs[name] = id
	return id
}

// Outbox возвращает очередь outbox для воркера публикации.
func (s *Store) Outbox() *OutboxRepository {
	return s.outbox
}

// Ping всегда успешен для in-memory хранилища.
func (s *Store) Ping(context.Context) error {
	return nil
}

// WithinTx выполняет fn в транзакции. Изменения копятся в tx и применяются
// только при успешном возврате fn; при ошибке или панике отбрасываются,
// паника пробрасывается дальше после снятия блокировок.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return mapContextError(err)
	}

	tx := &memoryTx{
		store:  s,
		held:   make(map[domain.OrderID]struct{}),
		staged: make(map[domain.OrderID]domain.SpecialOrder),
	}
	defer tx.release()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return mapContextError(err)
	}

	tx.commit()
	return nil
}

func (s *Store) lockRow(ctx context.Context, id domain.OrderID) error {
	s.locksMu.Lock()
	ch, ok := s.locks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[id] = ch
	}
	s.locksMu.Unlock()

	if s.lockTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.lockTimeout)
		defer cancel()
	}

	select {
	case ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("lock special order %d: %w", id, mapContextError(ctx.Err()))
	}
}

func (s *Store) unlockRow(id domain.OrderID) {
	s.locksMu.Lock()
	ch := s.locks[id]
	s.locksMu.Unlock()

	if ch != nil {
		<-ch
	}
}

func mapContextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", domain.ErrTimeout, err)
	}
	return err
}

type memoryTx struct {
	store    *Store
	held     map[domain.OrderID]struct{}
	staged   map[domain.OrderID]domain.SpecialOrder
	events   []domain.TimelineEvent
	messages []domain.OutboxMessage
}

func (tx *memoryTx) Parties() domain.PartyRepository {
	return partyRepository{store: tx.store}
}

func (tx *memoryTx) Orders() domain.OrderRepository {
	return orderRepository{tx: tx}
}

func (tx *memoryTx) Timeline() domain.TimelineRepository {
	return timelineRepository{tx: tx}
}

func (tx *memoryTx) Outbox() domain.OutboxRepository {
	return txOutbox{tx: tx}
}

func (tx *memoryTx) lock(ctx context.Context, id domain.OrderID) error {
	if _, ok := tx.held[id]; ok {
		return nil
	}
	if err := tx.store.lockRow(ctx, id); err != nil {
		return err
	}
	tx.held[id] = struct{}{}
	return nil
}

func (tx *memoryTx) release() {
	for id := range tx.held {
		tx.store.unlockRow(id)
	}
	tx.held = nil
}

func (tx *memoryTx) commit() {
	s := tx.store
	s.mu.Lock()
	for id, order := range tx.staged {
		s.orders[id] = order
	}
	for _, event := range tx.events {
		s.timeline[event.OrderID] = append(s.timeline[event.OrderID], event)
	}
	s.mu.Unlock()

	for _, msg := range tx.messages {
		s.outbox.put(msg)
	}
}

var (
	_ domain.UnitOfWork = (*Store)(nil)
	_ domain.ReadModel  = (*Store)(nil)
	_ domain.Pinger     = (*Store)(nil)
	_ domain.Tx         = (*memoryTx)(nil)
)
