package order

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"pizzeria/internal/apperr"
	"pizzeria/internal/model"
	"pizzeria/internal/storage"
	"pizzeria/pkg/contracts"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventRecorder queues domain events for publishing.
type EventRecorder interface {
	Record(routingKey string, event any) error
}

// StatusNotifier is told about every order status change.
type StatusNotifier interface {
	BroadcastOrderUpdate(orderID int64, status string)
}

type Service struct {
	store    *storage.Store
	events   EventRecorder
	notifier StatusNotifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(store *storage.Store, events EventRecorder, notifier StatusNotifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		events:   events,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateOrder saves the pizzas, then a pending order priced from them. The
// caller's pizzas get their identities assigned. Nothing is rolled back if a
// later save fails.
func (s *Service) CreateOrder(ctx context.Context, user *model.User, pizzas []*model.Pizza) (*model.Order, error) {
	if user == nil {
		return nil, fmt.Errorf("create order: user is required: %w", apperr.ErrValidation)
	}
	if len(pizzas) == 0 {
		return nil, fmt.Errorf("create order: at least one pizza is required: %w", apperr.ErrValidation)
	}

	saved := make([]model.Pizza, 0, len(pizzas))
	for i, p := range pizzas {
		if p == nil {
			return nil, fmt.Errorf("create order: pizza %d is nil: %w", i, apperr.ErrValidation)
		}
		if _, err := s.store.Save(p); err != nil {
			return nil, fmt.Errorf("save pizza: %w", err)
		}
		saved = append(saved, *p.Clone().(*model.Pizza))
	}

	o := model.NewOrder(*user.Clone().(*model.User), saved, s.now().UTC())
	if _, err := s.store.Save(o); err != nil {
		return nil, fmt.Errorf("save order: %w", err)
	}

	s.record(contracts.RoutingOrderCreated, contracts.OrderCreatedEvent{
		EventID:    uuid.NewString(),
		OrderID:    o.ID,
		UserID:     o.User.ID,
		PizzaCount: len(o.Pizzas),
		TotalPrice: o.TotalPrice.String(),
		CreatedAt:  o.CreatedAt,
	})
	s.logger.InfoContext(ctx, "order created", "order_id", o.ID, "user_id", o.User.ID, "total", o.TotalPrice.String())
	return o, nil
}

func (s *Service) GetOrderByID(ctx context.Context, id int64) (*model.Order, error) {
	if id == 0 {
		return nil, fmt.Errorf("get order: id is required: %w", apperr.ErrValidation)
	}

	o, ok, err := storage.Get[*model.Order](s.store, model.KindOrder, id)
	if err != nil {
		return nil, fmt.Errorf("get order %d: %w", id, err)
	}
	if !ok {
		return nil, fmt.Errorf("order %d: %w", id, apperr.ErrNotFound)
	}
	return o, nil
}

// GetUserOrders returns the user's orders sorted by id. An unsaved user has
// no orders.
func (s *Service) GetUserOrders(ctx context.Context, user *model.User) ([]*model.Order, error) {
	if user == nil || user.ID == 0 {
		return []*model.Order{}, nil
	}

	all, err := storage.List[*model.Order](s.store, model.KindOrder)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	result := make([]*model.Order, 0)
	for _, o := range all {
		if o.User.ID == user.ID {
			result = append(result, o)
		}
	}
	slices.SortFunc(result, func(a, b *model.Order) int { return cmp.Compare(a.ID, b.ID) })
	return result, nil
}

// UpdateOrderStatus moves an order along the status table. Jumps the table
// does not allow, such as PENDING to DELIVERED, are rejected. The table only
// governs this call and CancelOrder: payments and refunds in the payment
// ledger set PROCESSING and CANCELLED directly.
func (s *Service) UpdateOrderStatus(ctx context.Context, id int64, status model.Status) (*model.Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("update order %d: unknown status %q: %w", id, status, apperr.ErrValidation)
	}

	o, err := s.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !o.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("update order %d: cannot move from %s to %s: %w", id, o.Status, status, apperr.ErrValidation)
	}

	if err := s.setStatus(ctx, o, status); err != nil {
		return nil, err
	}
	return o, nil
}

// CancelOrder cancels a pending or processing order.
func (s *Service) CancelOrder(ctx context.Context, id int64) (bool, error) {
	o, err := s.GetOrderByID(ctx, id)
	if err != nil {
		return false, err
	}
	if !o.Status.CanTransitionTo(model.StatusCancelled) {
		return false, fmt.Errorf("cancel order %d with status %s: %w", id, o.Status, apperr.ErrValidation)
	}

	if err := s.setStatus(ctx, o, model.StatusCancelled); err != nil {
		return false, err
	}
	return true, nil
}

// CalculateOrderPrice sums the order's current pizza prices. A nil order
// costs nothing.
func (s *Service) CalculateOrderPrice(o *model.Order) decimal.Decimal {
	if o == nil {
		return decimal.Zero
	}
	return model.SumPrices(o.Pizzas)
}

func (s *Service) setStatus(ctx context.Context, o *model.Order, status model.Status) error {
	from := o.Status
	o.Status = status
	o.UpdatedAt = s.now().UTC()

	if _, err := s.store.Update(o); err != nil {
		return fmt.Errorf("update order %d: %w", o.ID, err)
	}

	s.record(contracts.RoutingOrderStatusChanged, contracts.OrderStatusChangedEvent{
		EventID:   uuid.NewString(),
		OrderID:   o.ID,
		From:      string(from),
		To:        string(status),
		ChangedAt: o.UpdatedAt,
	})
	if s.notifier != nil {
		s.notifier.BroadcastOrderUpdate(o.ID, string(status))
	}
	s.logger.InfoContext(ctx, "order status changed", "order_id", o.ID, "from", from, "to", status)
	return nil
}

func (s *Service) record(routingKey string, event any) {
	if s.events == nil {
		return
	}
	if err := s.events.Record(routingKey, event); err != nil {
		s.logger.Error("record event", "routing_key", routingKey, "err", err)
	}
}
