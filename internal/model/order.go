package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Order is the header row, one per order. Money totals are always
// recomputed from the detail lines on creation; total = subtotal + tax +
// delivery fee + adjustment. After creation only StatusID, Observation
// and UpdatedBy change, and only through status transitions.
type Order struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	UserID   string `gorm:"size:64;not null;index" json:"user_id"`
	StatusID uint   `gorm:"not null;index" json:"status_id"`

	QtyTotal    int             `gorm:"not null" json:"qty_total"`
	Subtotal    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	Tax         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"tax"`
	DeliveryFee decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"delivery_fee"`
	Adjustment  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"adjustment"`
	Total       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total"`

	InvoiceNumber *string  `gorm:"size:64" json:"invoice_number,omitempty"`
	TaxID         *string  `gorm:"size:32" json:"tax_id,omitempty"`
	Latitude      *float64 `json:"latitude,omitempty"`
	Longitude     *float64 `json:"longitude,omitempty"`
	DeviceType    *string  `gorm:"size:32" json:"device_type,omitempty"`
	Observation   string   `gorm:"size:512" json:"observation"`
	UpdatedBy     string   `gorm:"size:64;not null" json:"updated_by"`

	Details    []OrderDetail   `json:"details,omitempty"`
	Activities []OrderActivity `json:"activities,omitempty"`
}

func (Order) TableName() string { return "orders" }

// OrderDetail is one line item. UnitPrice is captured at order time and
// never follows later catalog price changes. Lines are written once at
// creation and have no update path.
type OrderDetail struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	OrderID     uint            `gorm:"not null;index" json:"order_id"`
	ProductID   uint            `gorm:"not null;index" json:"product_id"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	WarehouseID *uint           `json:"warehouse_id,omitempty"`
}

func (OrderDetail) TableName() string { return "order_details" }

// OrderActivity is the append-only audit trail: one row per status
// transition, including the initial created entry. Rows are never
// updated or deleted.
type OrderActivity struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	OrderID     uint   `gorm:"not null;index" json:"order_id"`
	StatusID    uint   `gorm:"not null" json:"status_id"`
	UserID      string `gorm:"size:64;not null" json:"user_id"`
	Observation string `gorm:"size:512" json:"observation"`
}

func (OrderActivity) TableName() string { return "order_activities" }
