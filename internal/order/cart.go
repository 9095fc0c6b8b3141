package order

import (
	"context"
	"fmt"

	"order_admin/internal/model"

	"github.com/shopspring/decimal"
)

// LineStatus classifies one cart line against the catalog.
type LineStatus string

const (
	LineOK                LineStatus = "ok"
	LinePriceMismatch     LineStatus = "price_mismatch"
	LineInsufficientStock LineStatus = "insufficient_stock"
	LineInactive          LineStatus = "inactive"
	LineNotFound          LineStatus = "not_found"
)

// CartItem is a client-claimed line: the price the client last saw and
// the quantity it wants. Never persisted.
type CartItem struct {
	ProductID uint            `json:"id"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// CartLineResult is the per-line verdict. DBPrice is set whenever the
// catalog row exists; SuggestedQty only for stock-limited lines.
type CartLineResult struct {
	ProductID    uint             `json:"id"`
	Status       LineStatus       `json:"status"`
	ClaimedPrice decimal.Decimal  `json:"claimed_price"`
	DBPrice      *decimal.Decimal `json:"db_price,omitempty"`
	RequestedQty int              `json:"requested_qty"`
	SuggestedQty *int             `json:"suggested_qty,omitempty"`
	LineTotal    decimal.Decimal  `json:"line_total"`
}

// CartTotals carries the server-trusted money side of the verdict.
type CartTotals struct {
	// ServerSubtotal is what the cart would cost after auto-correction:
	// catalog prices win over claimed ones and stock-limited lines only
	// charge the fulfillable quantity. It is not the sum of ok lines.
	ServerSubtotal decimal.Decimal `json:"server_subtotal"`
}

// CartResult is the reconciliation outcome. OK is true only when every
// line passed every check.
type CartResult struct {
	OK     bool             `json:"ok"`
	Items  []CartLineResult `json:"items"`
	Totals CartTotals       `json:"totals"`
}

// ValidateCart re-checks a client cart against the authoritative product
// rows in one batched lookup. Classification priority per line:
// not_found > inactive > insufficient_stock > price_mismatch > ok.
// Price comparison is exact, no tolerance. Nothing is mutated.
func (s *Service) ValidateCart(ctx context.Context, items []CartItem) (CartResult, error) {
	if len(items) == 0 {
		return CartResult{}, ErrEmptyItems
	}

	seen := make(map[uint]bool, len(items))
	ids := make([]uint, 0, len(items))
	for _, it := range items {
		if !seen[it.ProductID] {
			seen[it.ProductID] = true
			ids = append(ids, it.ProductID)
		}
	}

	var products []model.Product
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return CartResult{}, fmt.Errorf("validate cart: load products: %w", err)
	}
	byID := make(map[uint]model.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	result := CartResult{
		OK:     true,
		Items:  make([]CartLineResult, 0, len(items)),
		Totals: CartTotals{ServerSubtotal: decimal.Zero},
	}
	for _, it := range items {
		line := classifyLine(it, byID)
		if line.Status != LineOK {
			result.OK = false
		}
		result.Totals.ServerSubtotal = result.Totals.ServerSubtotal.Add(line.LineTotal)
		result.Items = append(result.Items, line)
	}
	return result, nil
}

func classifyLine(it CartItem, catalog map[uint]model.Product) CartLineResult {
	line := CartLineResult{
		ProductID:    it.ProductID,
		ClaimedPrice: it.Price,
		RequestedQty: it.Quantity,
		LineTotal:    decimal.Zero,
	}

	p, ok := catalog[it.ProductID]
	if !ok {
		line.Status = LineNotFound
		return line
	}
	dbPrice := p.Price
	line.DBPrice = &dbPrice

	if !p.Active {
		line.Status = LineInactive
		return line
	}

	if int64(it.Quantity) > p.Stock {
		suggested := int(min(int64(it.Quantity), max(p.Stock, 0)))
		line.Status = LineInsufficientStock
		line.SuggestedQty = &suggested
		// Charge only what can actually ship.
		line.LineTotal = dbPrice.Mul(decimal.NewFromInt(int64(suggested)))
		return line
	}

	if !it.Price.Equal(dbPrice) {
		line.Status = LinePriceMismatch
		line.LineTotal = dbPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
		return line
	}

	line.Status = LineOK
	line.LineTotal = dbPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
	return line
}
