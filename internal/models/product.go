// Package models - Catalog entities.
// This file defines the product record served by the catalog endpoints.
package models

import (
	"strings"
	"time"
)

// Product is one catalog entry. Prices are stored in minor units (cents) to
// avoid floating point rounding.
type Product struct {
	ID          string    `json:"id" validate:"required,max=64"`
	Name        string    `json:"name" validate:"required,max=200"`
	Description string    `json:"description,omitempty" validate:"max=4000"`
	PriceCents  int64     `json:"price_cents" validate:"gte=0"`
	Currency    string    `json:"currency" validate:"required,len=3,uppercase"`
	Stock       int       `json:"stock" validate:"gte=0"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Normalize trims free-text fields and upper-cases the currency code.
func (p *Product) Normalize() {
	p.ID = strings.TrimSpace(p.ID)
	p.Name = strings.TrimSpace(p.Name)
	p.Description = strings.TrimSpace(p.Description)
	p.Currency = strings.ToUpper(strings.TrimSpace(p.Currency))
}

// InStock reports whether the product can currently be ordered.
func (p *Product) InStock() bool {
	return p.Active && p.Stock > 0
}
