package order

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"pizzeria/internal/apperr"
	"pizzeria/internal/model"
	"pizzeria/internal/storage"
	"pizzeria/pkg/contracts"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedEvents struct {
	mu   sync.Mutex
	keys []string
}

func (r *recordedEvents) Record(routingKey string, _ any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, routingKey)
	return nil
}

type statusUpdates struct {
	updates []string
}

func (n *statusUpdates) BroadcastOrderUpdate(_ int64, status string) {
	n.updates = append(n.updates, status)
}

type fixture struct {
	store    *storage.Store
	svc      *Service
	events   *recordedEvents
	notifier *statusUpdates
	user     *model.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := storage.New(logger)
	store.Connect()

	user := &model.User{Username: "usuario1", Email: "usuario1@example.com"}
	_, err := store.Save(user)
	require.NoError(t, err)

	events := &recordedEvents{}
	notifier := &statusUpdates{}
	return &fixture{
		store:    store,
		svc:      NewService(store, events, notifier, logger),
		events:   events,
		notifier: notifier,
		user:     user,
	}
}

func pizzas() []*model.Pizza {
	return []*model.Pizza{
		model.NewPizza("Margherita", "Medium", decimal.RequireFromString("10.99")).AddTopping("Cheese"),
		model.NewPizza("Pepperoni", "Large", decimal.RequireFromString("14.99")).AddTopping("Pepperoni"),
	}
}

func (f *fixture) createOrder(t *testing.T) *model.Order {
	t.Helper()
	o, err := f.svc.CreateOrder(context.Background(), f.user, pizzas())
	require.NoError(t, err)
	return o
}

func TestCreateOrder(t *testing.T) {
	f := newFixture(t)
	items := pizzas()

	o, err := f.svc.CreateOrder(context.Background(), f.user, items)
	require.NoError(t, err)

	assert.Equal(t, int64(1), o.ID)
	assert.Equal(t, model.StatusPending, o.Status)
	assert.Equal(t, f.user.ID, o.User.ID)
	assert.True(t, o.TotalPrice.Equal(items[0].Price.Add(items[1].Price)), o.TotalPrice.String())
	assert.False(t, o.CreatedAt.IsZero())

	// pizzas are persisted first and the caller sees their identities
	for _, p := range items {
		assert.NotZero(t, p.ID)
		_, ok, err := f.store.FindByID(model.KindPizza, p.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	stored, err := f.svc.GetOrderByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, o, stored)
	assert.Equal(t, []string{contracts.RoutingOrderCreated}, f.events.keys)
}

func TestCreateOrderReusesSavedPizzas(t *testing.T) {
	f := newFixture(t)
	items := pizzas()

	_, err := f.svc.CreateOrder(context.Background(), f.user, items)
	require.NoError(t, err)
	_, err = f.svc.CreateOrder(context.Background(), f.user, items)
	require.NoError(t, err)

	n, err := f.store.Count(model.KindPizza)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestCreateOrderValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateOrder(context.Background(), nil, pizzas())
	require.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.CreateOrder(context.Background(), f.user, nil)
	require.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.CreateOrder(context.Background(), f.user, []*model.Pizza{})
	require.ErrorIs(t, err, apperr.ErrValidation)

	n, err := f.store.Count(model.KindOrder)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCreateOrderWhileDisconnected(t *testing.T) {
	f := newFixture(t)
	f.store.Disconnect()

	_, err := f.svc.CreateOrder(context.Background(), f.user, pizzas())
	require.ErrorIs(t, err, apperr.ErrNotConnected)
	assert.Empty(t, f.events.keys)
}

func TestGetOrderByID(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GetOrderByID(context.Background(), 999)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.svc.GetOrderByID(context.Background(), 0)
	require.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.GetOrderByID(context.Background(), -1)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestGetUserOrders(t *testing.T) {
	f := newFixture(t)

	other := &model.User{Username: "other"}
	_, err := f.store.Save(other)
	require.NoError(t, err)

	first := f.createOrder(t)
	_, err = f.svc.CreateOrder(context.Background(), other, pizzas())
	require.NoError(t, err)
	second := f.createOrder(t)

	orders, err := f.svc.GetUserOrders(context.Background(), f.user)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, first.ID, orders[0].ID)
	assert.Equal(t, second.ID, orders[1].ID)

	orders, err = f.svc.GetUserOrders(context.Background(), &model.User{Username: "unsaved"})
	require.NoError(t, err)
	assert.Empty(t, orders)

	orders, err = f.svc.GetUserOrders(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestUpdateOrderStatus(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t)

	updated, err := f.svc.UpdateOrderStatus(context.Background(), o.ID, model.StatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessing, updated.Status)

	updated, err = f.svc.UpdateOrderStatus(context.Background(), o.ID, model.StatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDelivered, updated.Status)

	stored, err := f.svc.GetOrderByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDelivered, stored.Status)

	assert.Equal(t, []string{"PROCESSING", "DELIVERED"}, f.notifier.updates)
	assert.Equal(t, []string{
		contracts.RoutingOrderCreated,
		contracts.RoutingOrderStatusChanged,
		contracts.RoutingOrderStatusChanged,
	}, f.events.keys)
}

func TestUpdateOrderStatusRejections(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t)

	_, err := f.svc.UpdateOrderStatus(context.Background(), o.ID, model.Status("SHIPPED"))
	require.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.UpdateOrderStatus(context.Background(), 404, model.StatusProcessing)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	// PENDING cannot jump straight to DELIVERED
	_, err = f.svc.UpdateOrderStatus(context.Background(), o.ID, model.StatusDelivered)
	require.ErrorIs(t, err, apperr.ErrValidation)

	stored, err := f.svc.GetOrderByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, stored.Status)
	assert.Empty(t, f.notifier.updates)
}

func TestCancelOrder(t *testing.T) {
	tests := []struct {
		name    string
		path    []model.Status
		wantErr bool
	}{
		{name: "pending", path: nil},
		{name: "processing", path: []model.Status{model.StatusProcessing}},
		{name: "delivered", path: []model.Status{model.StatusProcessing, model.StatusDelivered}, wantErr: true},
		{name: "cancelled", path: []model.Status{model.StatusCancelled}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			o := f.createOrder(t)
			for _, s := range tt.path {
				_, err := f.svc.UpdateOrderStatus(context.Background(), o.ID, s)
				require.NoError(t, err)
			}
			before, err := f.svc.GetOrderByID(context.Background(), o.ID)
			require.NoError(t, err)

			ok, err := f.svc.CancelOrder(context.Background(), o.ID)

			after, getErr := f.svc.GetOrderByID(context.Background(), o.ID)
			require.NoError(t, getErr)
			if tt.wantErr {
				require.ErrorIs(t, err, apperr.ErrValidation)
				assert.False(t, ok)
				assert.Equal(t, before.Status, after.Status)
				return
			}
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, model.StatusCancelled, after.Status)
		})
	}
}

func TestCancelMissingOrder(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CancelOrder(context.Background(), 12)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCalculateOrderPrice(t *testing.T) {
	f := newFixture(t)

	assert.True(t, f.svc.CalculateOrderPrice(nil).IsZero())
	assert.True(t, f.svc.CalculateOrderPrice(&model.Order{}).IsZero())

	o := f.createOrder(t)
	o.Pizzas[0].Price = decimal.RequireFromString("20")
	assert.True(t, f.svc.CalculateOrderPrice(o).Equal(decimal.RequireFromString("34.99")))
	// the stored total is untouched until recomputed
	assert.True(t, o.TotalPrice.Equal(decimal.RequireFromString("25.98")))
}
