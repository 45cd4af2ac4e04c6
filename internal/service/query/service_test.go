package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/specialorders/internal/domain"
	"github.com/vladislavdragonenkov/specialorders/internal/service/lifecycle"
	"github.com/vladislavdragonenkov/specialorders/internal/storage/memory"
)

func seed(t *testing.T) (*memory.Store, *lifecycle.Manager) {
	t.Helper()
	store := memory.NewStore()
	store.AddClient("Alice", "0600")
	store.AddClient("Bruno", "0611")
	store.AddSupplier("Acme")

	clock := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	manager := lifecycle.NewManager(store, lifecycle.WithClock(func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}))
	return store, manager
}

func create(t *testing.T, manager *lifecycle.Manager, client, price, paid string) domain.OrderID {
	t.Helper()
	id, err := manager.Create(context.Background(), domain.CreateOrderInput{
		ClientName:   client,
		SupplierName: "Acme",
		Item:         domain.ItemDescriptor{Brand: "Samsung", Model: "S24", Type: "phone"},
		PriceAgreed:  decimal.RequireFromString(price),
		OpeningPaid:  decimal.RequireFromString(paid),
	})
	require.NoError(t, err)
	return id
}

func TestListAll_NewestFirstWithParties(t *testing.T) {
	store, manager := seed(t)
	first := create(t, manager, "Alice", "100", "0")
	second := create(t, manager, "Bruno", "200", "50")

	views, err := NewService(store, nil).ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 2)

	assert.Equal(t, second, views[0].Order.ID)
	assert.Equal(t, "Bruno", views[0].ClientName)
	assert.Equal(t, "0611", views[0].ClientPhone)
	assert.Equal(t, "Acme", views[0].SupplierName)
	assert.Equal(t, first, views[1].Order.ID)
	assert.Equal(t, views[1].Order.StatusChangedAt, views[1].SoldAt())
}

func TestListAll_EmptyIsNotNil(t *testing.T) {
	store, _ := seed(t)

	views, err := NewService(store, nil).ListAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, views)
	assert.Empty(t, views)
}

func TestCountsByStatus_ZeroFilled(t *testing.T) {
	store, manager := seed(t)
	create(t, manager, "Alice", "100", "0")
	create(t, manager, "Alice", "100", "40")
	id := create(t, manager, "Bruno", "100", "100")

	_, err := manager.TransitionStatus(context.Background(), id, domain.StatusReceived, nil)
	require.NoError(t, err)

	counts, err := NewService(store, nil).CountsByStatus(context.Background())
	require.NoError(t, err)

	assert.Len(t, counts, len(domain.AllStatuses))
	assert.Equal(t, 1, counts[domain.StatusPending])
	assert.Equal(t, 1, counts[domain.StatusPartiallyPaid])
	assert.Equal(t, 1, counts[domain.StatusReceived])
	assert.Equal(t, 0, counts[domain.StatusSold])
	assert.Equal(t, 0, counts[domain.StatusReplaced])
}

func TestTimeline(t *testing.T) {
	store, manager := seed(t)
	id := create(t, manager, "Alice", "100", "0")
	_, err := manager.UpdatePayment(context.Background(), id, decimal.RequireFromString("30"))
	require.NoError(t, err)

	service := NewService(store, nil)
	events, err := service.Timeline(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.TimelineOrderCreated, events[0].Type)
	assert.Equal(t, domain.TimelinePaymentUpdated, events[1].Type)
	assert.Equal(t, domain.StatusPartiallyPaid, events[1].ToStatus)

	_, err = service.Timeline(context.Background(), id+100)
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
}

type failingReadModel struct {
	domain.ReadModel
}

func (failingReadModel) ListViews(context.Context) ([]domain.OrderView, error) {
	return nil, domain.ErrTimeout
}

func (failingReadModel) CountByStatus(context.Context) (map[domain.Status]int, error) {
	return nil, errors.New("connection reset")
}

func TestQueryErrorsAreWrapped(t *testing.T) {
	service := NewService(failingReadModel{}, nil)

	_, err := service.ListAll(context.Background())
	require.ErrorIs(t, err, domain.ErrTimeout)

	_, err = service.CountsByStatus(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}
