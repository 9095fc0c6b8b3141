package order

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"order_admin/internal/model"
	"order_admin/internal/queue"
	"order_admin/internal/stock"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service owns the order lifecycle: creation, status transitions and the
// cart reconciliation read path. All multi-row writes run inside one DB
// transaction; only the external stock ledger needs explicit
// compensation when a later step fails.
type Service struct {
	db          *gorm.DB
	ledger      stock.Ledger
	events      queue.Sink
	defaultUser string
}

func NewService(db *gorm.DB, ledger stock.Ledger, events queue.Sink, defaultUser string) *Service {
	if defaultUser == "" {
		defaultUser = "backoffice"
	}
	return &Service{db: db, ledger: ledger, events: events, defaultUser: defaultUser}
}

// CreateItem is one requested line: quantity to buy at the price the
// operator confirmed, optionally pinned to a warehouse.
type CreateItem struct {
	ProductID   uint
	Quantity    int
	UnitPrice   decimal.Decimal
	WarehouseID *uint
}

// CreateInput carries the creation request. Tax, delivery fee and
// adjustment default to zero; totals are never trusted from the caller.
type CreateInput struct {
	StatusID uint
	Items    []CreateItem

	UserID      string
	Tax         decimal.Decimal
	DeliveryFee decimal.Decimal
	Adjustment  decimal.Decimal

	InvoiceNumber *string
	TaxID         *string
	Latitude      *float64
	Longitude     *float64
	DeviceType    *string
	Observation   string
	ActingUser    string
}

// CreateResult reports what was written.
type CreateResult struct {
	OrderID     uint   `json:"order_id"`
	DetailCount int    `json:"detail_count"`
	ActivityID  uint   `json:"activity_id"`
	RequestID   string `json:"request_id"`
}

// Create validates the items, computes totals, writes header + lines +
// first activity in one transaction and reserves stock through the
// ledger inside it. A failure after the reservation releases the same
// collapsed quantities; release failures are logged on their own so a
// stuck reservation is visible in the server log.
func (s *Service) Create(ctx context.Context, in CreateInput) (CreateResult, error) {
	if len(in.Items) == 0 {
		return CreateResult{}, ErrEmptyItems
	}
	for _, it := range in.Items {
		if it.Quantity <= 0 || it.UnitPrice.IsNegative() {
			return CreateResult{}, fmt.Errorf("%w: product %d", ErrInvalidItem, it.ProductID)
		}
	}

	var status model.Status
	if err := s.db.WithContext(ctx).First(&status, in.StatusID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return CreateResult{}, fmt.Errorf("%w: %d", ErrStatusNotFound, in.StatusID)
		}
		return CreateResult{}, fmt.Errorf("create order: load status: %w", err)
	}

	subtotal := decimal.Zero
	qtyTotal := 0
	for _, it := range in.Items {
		subtotal = subtotal.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
		qtyTotal += it.Quantity
	}
	total := subtotal.Add(in.Tax).Add(in.DeliveryFee).Add(in.Adjustment)

	// One id traces the whole chain: logs, stock release lock, event.
	requestID := uuid.New().String()
	userID := in.UserID
	if userID == "" {
		userID = "guest-" + requestID[:12]
	}
	actingUser := in.ActingUser
	if actingUser == "" {
		actingUser = s.defaultUser
	}

	collapsed := collapseItems(in.Items)

	var result CreateResult
	reserved := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		header := &model.Order{
			UserID:        userID,
			StatusID:      in.StatusID,
			QtyTotal:      qtyTotal,
			Subtotal:      subtotal,
			Tax:           in.Tax,
			DeliveryFee:   in.DeliveryFee,
			Adjustment:    in.Adjustment,
			Total:         total,
			InvoiceNumber: in.InvoiceNumber,
			TaxID:         in.TaxID,
			Latitude:      in.Latitude,
			Longitude:     in.Longitude,
			DeviceType:    in.DeviceType,
			Observation:   in.Observation,
			UpdatedBy:     actingUser,
		}
		if err := tx.Create(header).Error; err != nil {
			return fmt.Errorf("insert header: %w", err)
		}
		if header.ID == 0 {
			return fmt.Errorf("insert header: no id returned")
		}

		details := make([]model.OrderDetail, 0, len(in.Items))
		for _, it := range in.Items {
			details = append(details, model.OrderDetail{
				OrderID:     header.ID,
				ProductID:   it.ProductID,
				Quantity:    it.Quantity,
				UnitPrice:   it.UnitPrice,
				WarehouseID: it.WarehouseID,
			})
		}
		if err := tx.Create(&details).Error; err != nil {
			return fmt.Errorf("insert details: %w", err)
		}

		if err := s.ledger.Reserve(ctx, requestID, collapsed); err != nil {
			return fmt.Errorf("reserve stock: %w", err)
		}
		reserved = true

		activity := &model.OrderActivity{
			OrderID:     header.ID,
			StatusID:    in.StatusID,
			UserID:      actingUser,
			Observation: in.Observation,
		}
		if err := tx.Create(activity).Error; err != nil {
			return fmt.Errorf("insert activity: %w", err)
		}

		result = CreateResult{
			OrderID:     header.ID,
			DetailCount: len(details),
			ActivityID:  activity.ID,
			RequestID:   requestID,
		}
		return nil
	})
	if err != nil {
		if reserved {
			// The rows roll back with the transaction; only the ledger
			// needs putting back. The release lock keys off requestID so
			// this can never double-credit.
			if _, relErr := s.ledger.Release(ctx, requestID, collapsed); relErr != nil {
				log.Printf("create order req=%s: stock release failed, manual check needed: %v", requestID, relErr)
			}
		}
		return CreateResult{}, fmt.Errorf("create order req=%s: %w", requestID, err)
	}

	s.publish(ctx, queue.OrderEvent{
		EventID:     requestID,
		OrderID:     result.OrderID,
		Kind:        queue.EventOrderCreated,
		StatusID:    in.StatusID,
		UserID:      actingUser,
		Observation: in.Observation,
		OccurredAt:  time.Now().Unix(),
	})

	return result, nil
}

// TransitionInput drives both transition modes: Destination nil means
// advance to the current status's configured next; non-nil jumps to that
// catalog entry. WarehouseID is accepted for API compatibility and has
// no effect on the stored order.
type TransitionInput struct {
	OrderID     uint
	Destination *uint
	Observation string
	ActingUser  string
	WarehouseID *uint
}

// Transition moves an order to its next status. The header update and
// the activity append share one transaction, so the audit trail can
// never run ahead of or behind the header. Orders at a terminal status
// reject every transition.
func (s *Service) Transition(ctx context.Context, in TransitionInput) (*model.Order, error) {
	if strings.TrimSpace(in.Observation) == "" {
		return nil, ErrObservationRequired
	}
	actingUser := in.ActingUser
	if actingUser == "" {
		actingUser = s.defaultUser
	}

	var ord model.Order
	if err := s.db.WithContext(ctx).First(&ord, in.OrderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("transition order %d: load order: %w", in.OrderID, err)
	}

	var current model.Status
	if err := s.db.WithContext(ctx).First(&current, ord.StatusID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrStatusNotFound, ord.StatusID)
		}
		return nil, fmt.Errorf("transition order %d: load status: %w", in.OrderID, err)
	}
	if current.Terminal {
		return nil, fmt.Errorf("%w: %s", ErrTerminalStatus, current.Name)
	}

	var destID uint
	if in.Destination == nil {
		if current.NextID == nil {
			return nil, fmt.Errorf("%w: %s", ErrNoNextStatus, current.Name)
		}
		destID = *current.NextID
	} else {
		destID = *in.Destination
	}

	var dest model.Status
	if err := s.db.WithContext(ctx).First(&dest, destID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrStatusNotFound, destID)
		}
		return nil, fmt.Errorf("transition order %d: load destination: %w", in.OrderID, err)
	}

	eventID := uuid.New().String()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{
			"status_id":   dest.ID,
			"observation": in.Observation,
			"updated_by":  actingUser,
		}
		if err := tx.Model(&model.Order{}).Where("id = ?", ord.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("update header: %w", err)
		}
		activity := &model.OrderActivity{
			OrderID:     ord.ID,
			StatusID:    dest.ID,
			UserID:      actingUser,
			Observation: in.Observation,
		}
		if err := tx.Create(activity).Error; err != nil {
			return fmt.Errorf("insert activity: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("transition order %d: %w", in.OrderID, err)
	}

	s.publish(ctx, queue.OrderEvent{
		EventID:     eventID,
		OrderID:     ord.ID,
		Kind:        queue.EventStatusChanged,
		StatusID:    dest.ID,
		UserID:      actingUser,
		Observation: in.Observation,
		OccurredAt:  time.Now().Unix(),
	})

	return s.Get(ctx, ord.ID)
}

// Get loads an order with its lines and audit trail.
func (s *Service) Get(ctx context.Context, orderID uint) (*model.Order, error) {
	var ord model.Order
	err := s.db.WithContext(ctx).
		Preload("Details").
		Preload("Activities", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&ord, orderID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order %d: %w", orderID, err)
	}
	return &ord, nil
}

// publish sends a lifecycle event best effort: notification delivery
// never fails the business operation.
func (s *Service) publish(ctx context.Context, event queue.OrderEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		log.Printf("publish %s event for order %d: %v", event.Kind, event.OrderID, err)
	}
}

// collapseItems groups lines by product id, summing quantities, so the
// ledger sees exactly one adjustment per product. First-seen order is
// kept for deterministic error reporting.
func collapseItems(items []CreateItem) []stock.Adjustment {
	index := make(map[uint]int, len(items))
	out := make([]stock.Adjustment, 0, len(items))
	for _, it := range items {
		if i, ok := index[it.ProductID]; ok {
			out[i].Quantity += int64(it.Quantity)
			continue
		}
		index[it.ProductID] = len(out)
		out = append(out, stock.Adjustment{ProductID: it.ProductID, Quantity: int64(it.Quantity)})
	}
	return out
}
