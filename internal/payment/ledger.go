package payment

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"pizzeria/internal/apperr"
	"pizzeria/internal/model"
	"pizzeria/internal/storage"
	"pizzeria/pkg/contracts"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status = contracts.PaymentStatus

const (
	StatusCompleted = contracts.PaymentCompleted
	StatusRefunded  = contracts.PaymentRefunded
)

type EventRecorder interface {
	Record(routingKey string, event any) error
}

type StatusNotifier interface {
	BroadcastOrderUpdate(orderID int64, status string)
}

// Record is one ledger entry. It is created on a successful payment and
// refunded at most once.
type Record struct {
	TransactionID string          `json:"transaction_id"`
	OrderID       int64           `json:"order_id"`
	Amount        decimal.Decimal `json:"amount"`
	MaskedCard    string          `json:"masked_card"`
	Status        Status          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	RefundedAt    *time.Time      `json:"refunded_at,omitempty"`
}

func (r *Record) clone() Record {
	c := *r
	if r.RefundedAt != nil {
		t := *r.RefundedAt
		c.RefundedAt = &t
	}
	return c
}

// Ledger simulates a card gateway. Payment records live in the ledger, not
// in the store; orders only carry the transaction id.
type Ledger struct {
	mu       sync.Mutex
	records  map[string]*Record
	store    *storage.Store
	events   EventRecorder
	notifier StatusNotifier
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

func NewLedger(store *storage.Store, events EventRecorder, notifier StatusNotifier, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		records:  make(map[string]*Record),
		store:    store,
		events:   events,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// ProcessPayment charges the order's current total, zero included. On
// success the order moves to PROCESSING whatever its previous status, carries
// the transaction id, and is saved back to the store. The ledger entry stays
// even if that save fails.
func (l *Ledger) ProcessPayment(ctx context.Context, o *model.Order, card Card) (string, error) {
	if o == nil {
		return "", fmt.Errorf("process payment: order is required: %w", apperr.ErrValidation)
	}
	if err := card.Validate(); err != nil {
		return "", fmt.Errorf("process payment for order %d: %w", o.ID, err)
	}
	if o.ID == 0 {
		return "", fmt.Errorf("process payment: order has not been saved: %w", apperr.ErrValidation)
	}

	now := l.now().UTC()
	rec := &Record{
		TransactionID: l.newID(),
		OrderID:       o.ID,
		Amount:        o.TotalPrice,
		MaskedCard:    card.Masked(),
		Status:        StatusCompleted,
		CreatedAt:     now,
	}

	l.mu.Lock()
	l.records[rec.TransactionID] = rec
	l.mu.Unlock()

	o.PaymentTransactionID = rec.TransactionID
	o.Status = model.StatusProcessing
	o.UpdatedAt = now
	if _, err := l.store.Update(o); err != nil {
		return "", fmt.Errorf("process payment %s: update order %d: %w", rec.TransactionID, o.ID, err)
	}

	l.record(contracts.RoutingPaymentProcessed, contracts.PaymentProcessedEvent{
		EventID:       uuid.NewString(),
		TransactionID: rec.TransactionID,
		OrderID:       rec.OrderID,
		Amount:        rec.Amount.String(),
		MaskedCard:    rec.MaskedCard,
		Status:        StatusCompleted,
		Processed:     now,
	})
	l.notify(o.ID, model.StatusProcessing)
	l.logger.InfoContext(ctx, "payment completed", "transaction_id", rec.TransactionID, "order_id", o.ID, "amount", rec.Amount.String())
	return rec.TransactionID, nil
}

func (l *Ledger) VerifyPayment(ctx context.Context, transactionID string) (Status, error) {
	rec, err := l.Record(ctx, transactionID)
	if err != nil {
		return "", err
	}
	return rec.Status, nil
}

// Record returns a copy of the ledger entry for transactionID.
func (l *Ledger) Record(_ context.Context, transactionID string) (Record, error) {
	if transactionID == "" {
		return Record{}, fmt.Errorf("transaction id is required: %w", apperr.ErrValidation)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[transactionID]
	if !ok {
		return Record{}, fmt.Errorf("transaction %s: %w", transactionID, apperr.ErrNotFound)
	}
	return rec.clone(), nil
}

// RefundPayment refunds a completed payment and cancels its order. A second
// refund of the same transaction is a conflict.
func (l *Ledger) RefundPayment(ctx context.Context, transactionID string) (bool, error) {
	if transactionID == "" {
		return false, fmt.Errorf("refund: transaction id is required: %w", apperr.ErrValidation)
	}

	now := l.now().UTC()

	l.mu.Lock()
	rec, ok := l.records[transactionID]
	if !ok {
		l.mu.Unlock()
		return false, fmt.Errorf("refund: transaction %s: %w", transactionID, apperr.ErrNotFound)
	}
	if rec.Status == StatusRefunded {
		l.mu.Unlock()
		return false, fmt.Errorf("refund: transaction %s already refunded: %w", transactionID, apperr.ErrConflict)
	}
	rec.Status = StatusRefunded
	rec.RefundedAt = &now
	refunded := rec.clone()
	l.mu.Unlock()

	o, found, err := storage.Get[*model.Order](l.store, model.KindOrder, refunded.OrderID)
	if err != nil {
		return false, fmt.Errorf("refund %s: load order %d: %w", transactionID, refunded.OrderID, err)
	}
	if !found {
		return false, fmt.Errorf("refund %s: order %d: %w", transactionID, refunded.OrderID, apperr.ErrNotFound)
	}

	o.Status = model.StatusCancelled
	o.UpdatedAt = now
	if _, err := l.store.Update(o); err != nil {
		return false, fmt.Errorf("refund %s: update order %d: %w", transactionID, o.ID, err)
	}

	l.record(contracts.RoutingPaymentRefunded, contracts.PaymentRefundedEvent{
		EventID:       uuid.NewString(),
		TransactionID: transactionID,
		OrderID:       o.ID,
		Amount:        refunded.Amount.String(),
		Status:        StatusRefunded,
		Refunded:      now,
	})
	l.notify(o.ID, model.StatusCancelled)
	l.logger.InfoContext(ctx, "payment refunded", "transaction_id", transactionID, "order_id", o.ID)
	return true, nil
}

// GetPaymentHistory renders every ledger entry of an order, oldest first.
// An order without payments yields an empty report.
func (l *Ledger) GetPaymentHistory(_ context.Context, orderID int64) (string, error) {
	if orderID == 0 {
		return "", fmt.Errorf("payment history: order id is required: %w", apperr.ErrValidation)
	}

	l.mu.Lock()
	var matches []Record
	for _, rec := range l.records {
		if rec.OrderID == orderID {
			matches = append(matches, rec.clone())
		}
	}
	l.mu.Unlock()

	slices.SortFunc(matches, func(a, b Record) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.TransactionID, b.TransactionID)
	})

	var b strings.Builder
	for _, rec := range matches {
		fmt.Fprintf(&b, "Transaction: %s, Status: %s, Amount: %s, Card: %s, Date: %s\n",
			rec.TransactionID, rec.Status, rec.Amount.StringFixed(2), rec.MaskedCard, rec.CreatedAt.Format(time.RFC3339))
		if rec.RefundedAt != nil {
			fmt.Fprintf(&b, "  Refund: %s (%s -> %s)\n", rec.RefundedAt.Format(time.RFC3339), StatusCompleted, StatusRefunded)
		}
	}
	return b.String(), nil
}

func (l *Ledger) notify(orderID int64, status model.Status) {
	if l.notifier != nil {
		l.notifier.BroadcastOrderUpdate(orderID, string(status))
	}
}

func (l *Ledger) record(routingKey string, event any) {
	if l.events == nil {
		return
	}
	if err := l.events.Record(routingKey, event); err != nil {
		l.logger.Error("record event", "routing_key", routingKey, "err", err)
	}
}
