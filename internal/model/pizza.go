package model

import (
	"slices"

	"pizzeria/internal/storage"

	"github.com/shopspring/decimal"
)

const KindPizza storage.Kind = "pizzas"

type Pizza struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Size     string          `json:"size"`
	Toppings []string        `json:"toppings"`
	Price    decimal.Decimal `json:"price"`
}

func NewPizza(name, size string, price decimal.Decimal) *Pizza {
	return &Pizza{Name: name, Size: size, Price: price, Toppings: []string{}}
}

func (p *Pizza) AddTopping(topping string) *Pizza {
	p.Toppings = append(p.Toppings, topping)
	return p
}

func (p *Pizza) Kind() storage.Kind   { return KindPizza }
func (p *Pizza) EntityID() int64      { return p.ID }
func (p *Pizza) SetEntityID(id int64) { p.ID = id }

func (p *Pizza) Clone() storage.Entity {
	c := *p
	c.Toppings = slices.Clone(p.Toppings)
	return &c
}
