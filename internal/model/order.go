package model

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"pizzeria/internal/apperr"
	"pizzeria/internal/storage"

	"github.com/shopspring/decimal"
)

const KindOrder storage.Kind = "orders"

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusDelivered  Status = "DELIVERED"
	StatusCancelled  Status = "CANCELLED"
)

var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusDelivered, StatusCancelled},
}

// ParseStatus accepts only the four known statuses, case-sensitively.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown order status %q: %w", raw, apperr.ErrValidation)
	}
	return s, nil
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Terminal statuses have no outgoing transitions.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

func (s Status) CanTransitionTo(next Status) bool {
	return slices.Contains(transitions[s], next)
}

type Order struct {
	ID                   int64           `json:"id"`
	User                 User            `json:"user"`
	Pizzas               []Pizza         `json:"pizzas"`
	Status               Status          `json:"status"`
	TotalPrice           decimal.Decimal `json:"total_price"`
	PaymentTransactionID string          `json:"payment_transaction_id,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// NewOrder builds a pending order for user with its total already computed.
func NewOrder(user User, pizzas []Pizza, now time.Time) *Order {
	o := &Order{
		User:      user,
		Pizzas:    pizzas,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	o.RecalculateTotal()
	return o
}

// SumPrices adds up the current pizza prices.
func SumPrices(pizzas []Pizza) decimal.Decimal {
	total := decimal.Zero
	for _, p := range pizzas {
		total = total.Add(p.Price)
	}
	return total
}

// RecalculateTotal refreshes TotalPrice from the current pizzas. The total is
// not kept in sync automatically when Pizzas is edited directly.
func (o *Order) RecalculateTotal() {
	o.TotalPrice = SumPrices(o.Pizzas)
}

func (o *Order) AddPizza(p Pizza) *Order {
	o.Pizzas = append(o.Pizzas, *p.Clone().(*Pizza))
	o.RecalculateTotal()
	return o
}

func (o *Order) Kind() storage.Kind   { return KindOrder }
func (o *Order) EntityID() int64      { return o.ID }
func (o *Order) SetEntityID(id int64) { o.ID = id }

func (o *Order) Clone() storage.Entity {
	c := *o
	c.User = *o.User.Clone().(*User)
	if o.Pizzas != nil {
		c.Pizzas = make([]Pizza, len(o.Pizzas))
		for i := range o.Pizzas {
			c.Pizzas[i] = *o.Pizzas[i].Clone().(*Pizza)
		}
	}
	return &c
}

func (o *Order) String() string {
	names := make([]string, 0, len(o.Pizzas))
	for _, p := range o.Pizzas {
		names = append(names, p.Name)
	}
	return fmt.Sprintf("Order{id=%d, user=%s, pizzas=[%s], status=%s, total=%s, tx=%q}",
		o.ID, o.User.Username, strings.Join(names, ", "), o.Status, o.TotalPrice.StringFixed(2), o.PaymentTransactionID)
}
