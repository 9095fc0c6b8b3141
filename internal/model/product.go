package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is the authoritative catalog row: current price, on-hand stock
// and whether the product can still be sold. Live reservations during
// order creation go through the stock ledger; this row holds the
// reference stock used for cart validation and ledger preloading.
type Product struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name   string          `gorm:"size:128;not null" json:"name"`
	Price  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Stock  int64           `gorm:"not null;default:0" json:"stock"`
	Active bool            `gorm:"not null;default:true" json:"active"`
}

func (Product) TableName() string { return "products" }
