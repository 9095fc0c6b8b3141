package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"order_admin/internal/model"
	"order_admin/internal/queue"
	"order_admin/internal/stock"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.Product{},
		&model.Status{},
		&model.Order{},
		&model.OrderDetail{},
		&model.OrderActivity{},
		&model.Notification{},
	))
	for _, s := range model.DefaultStatuses() {
		require.NoError(t, db.Create(&s).Error)
	}
	return db
}

// trackingLedger records every Reserve batch so tests can assert on the
// collapsed adjustments the service hands to the ledger.
type trackingLedger struct {
	*stock.MemoryLedger
	mu       sync.Mutex
	reserves [][]stock.Adjustment
}

func newTrackingLedger() *trackingLedger {
	return &trackingLedger{MemoryLedger: stock.NewMemoryLedger()}
}

func (l *trackingLedger) Reserve(ctx context.Context, requestID string, adjustments []stock.Adjustment) error {
	l.mu.Lock()
	l.reserves = append(l.reserves, adjustments)
	l.mu.Unlock()
	return l.MemoryLedger.Reserve(ctx, requestID, adjustments)
}

// recordingSink captures published lifecycle events.
type recordingSink struct {
	mu     sync.Mutex
	events []queue.OrderEvent
}

func (r *recordingSink) Publish(ctx context.Context, event queue.OrderEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingSink) all() []queue.OrderEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]queue.OrderEvent, len(r.events))
	copy(out, r.events)
	return out
}

type fixture struct {
	db     *gorm.DB
	ledger *trackingLedger
	sink   *recordingSink
	svc    *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	ledger := newTrackingLedger()
	sink := &recordingSink{}
	return &fixture{
		db:     db,
		ledger: ledger,
		sink:   sink,
		svc:    NewService(db, ledger, sink, "backoffice"),
	}
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func item(productID uint, qty int, price int64) CreateItem {
	return CreateItem{ProductID: productID, Quantity: qty, UnitPrice: dec(price)}
}

func TestCreateComputesTotals(t *testing.T) {
	f := newFixture(t)
	f.ledger.Set(1, 100)
	f.ledger.Set(2, 100)

	res, err := f.svc.Create(context.Background(), CreateInput{
		StatusID:    model.StatusNew,
		Items:       []CreateItem{item(1, 2, 50), item(2, 3, 10)},
		UserID:      "customer-7",
		Tax:         dec(16),
		DeliveryFee: dec(30),
		Adjustment:  dec(-5),
		Observation: "phone order",
		ActingUser:  "ana",
	})
	require.NoError(t, err)
	assert.NotZero(t, res.OrderID)
	assert.Equal(t, 2, res.DetailCount)
	assert.NotZero(t, res.ActivityID)

	var ord model.Order
	require.NoError(t, f.db.First(&ord, res.OrderID).Error)
	assert.Equal(t, 5, ord.QtyTotal)
	assert.True(t, dec(130).Equal(ord.Subtotal), "subtotal = 2*50 + 3*10")
	assert.True(t, dec(171).Equal(ord.Total), "total = subtotal + tax + delivery + adjustment")
	assert.True(t, ord.Subtotal.Add(ord.Tax).Add(ord.DeliveryFee).Add(ord.Adjustment).Equal(ord.Total))
	assert.Equal(t, "customer-7", ord.UserID)
	assert.Equal(t, "ana", ord.UpdatedBy)

	var details []model.OrderDetail
	require.NoError(t, f.db.Where("order_id = ?", res.OrderID).Find(&details).Error)
	require.Len(t, details, 2)

	var activities []model.OrderActivity
	require.NoError(t, f.db.Where("order_id = ?", res.OrderID).Find(&activities).Error)
	require.Len(t, activities, 1)
	assert.Equal(t, uint(model.StatusNew), activities[0].StatusID)
	assert.Equal(t, "phone order", activities[0].Observation)
	assert.Equal(t, "ana", activities[0].UserID)
}

func TestCreateCapturedPriceSurvivesCatalogChange(t *testing.T) {
	f := newFixture(t)
	f.ledger.Set(1, 10)
	require.NoError(t, f.db.Create(&model.Product{Name: "mezcal", Price: dec(50), Stock: 10, Active: true}).Error)

	res, err := f.svc.Create(context.Background(), CreateInput{
		StatusID:    model.StatusNew,
		Items:       []CreateItem{item(1, 1, 50)},
		Observation: "captured price",
	})
	require.NoError(t, err)

	require.NoError(t, f.db.Model(&model.Product{}).Where("id = ?", 1).Update("price", dec(80)).Error)

	var detail model.OrderDetail
	require.NoError(t, f.db.Where("order_id = ?", res.OrderID).First(&detail).Error)
	assert.True(t, dec(50).Equal(detail.UnitPrice), "line keeps the price captured at order time")
}

func TestCreateRejectsEmptyItems(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), CreateInput{StatusID: model.StatusNew})
	assert.ErrorIs(t, err, ErrEmptyItems)
	assert.Empty(t, f.ledger.reserves, "no side effects before validation passes")
}

func TestCreateRejectsInvalidItems(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		name string
		it   CreateItem
	}{
		{"zero quantity", CreateItem{ProductID: 1, Quantity: 0, UnitPrice: dec(10)}},
		{"negative quantity", CreateItem{ProductID: 1, Quantity: -2, UnitPrice: dec(10)}},
		{"negative price", CreateItem{ProductID: 1, Quantity: 1, UnitPrice: dec(-1)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), CreateInput{
				StatusID: model.StatusNew,
				Items:    []CreateItem{tc.it},
			})
			assert.ErrorIs(t, err, ErrInvalidItem)
		})
	}
}

func TestCreateRejectsUnknownStatus(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), CreateInput{
		StatusID: 99,
		Items:    []CreateItem{item(1, 1, 10)},
	})
	assert.ErrorIs(t, err, ErrStatusNotFound)
}

func TestCreateCollapsesDuplicateProducts(t *testing.T) {
	f := newFixture(t)
	f.ledger.Set(1, 10)

	_, err := f.svc.Create(context.Background(), CreateInput{
		StatusID:    model.StatusNew,
		Items:       []CreateItem{item(1, 2, 50), item(1, 3, 50)},
		Observation: "split lines",
	})
	require.NoError(t, err)

	require.Len(t, f.ledger.reserves, 1)
	require.Len(t, f.ledger.reserves[0], 1, "duplicate products collapse into one adjustment")
	assert.Equal(t, uint(1), f.ledger.reserves[0][0].ProductID)
	assert.Equal(t, int64(5), f.ledger.reserves[0][0].Quantity)
	assert.Equal(t, int64(5), f.ledger.Balance(1))
}

func TestCreateInsufficientStockRollsBack(t *testing.T) {
	f := newFixture(t)
	f.ledger.Set(1, 1)

	_, err := f.svc.Create(context.Background(), CreateInput{
		StatusID: model.StatusNew,
		Items:    []CreateItem{item(1, 2, 50)},
	})
	require.Error(t, err)
	var short *stock.InsufficientStockError
	assert.True(t, errors.As(err, &short))
	assert.Equal(t, uint(1), short.ProductID)

	var count int64
	require.NoError(t, f.db.Model(&model.Order{}).Count(&count).Error)
	assert.Zero(t, count, "header rolled back")
	require.NoError(t, f.db.Model(&model.OrderDetail{}).Count(&count).Error)
	assert.Zero(t, count, "details rolled back")
	require.NoError(t, f.db.Model(&model.OrderActivity{}).Count(&count).Error)
	assert.Zero(t, count, "no activity written")
	assert.Equal(t, int64(1), f.ledger.Balance(1), "stock untouched")
	assert.Empty(t, f.sink.all(), "no event for a failed creation")
}

func TestCreateActivityFailureReleasesStock(t *testing.T) {
	f := newFixture(t)
	f.ledger.Set(1, 10)

	// Force the last write of the sequence to fail after the stock was
	// already reserved.
	require.NoError(t, f.db.Migrator().DropTable(&model.OrderActivity{}))

	_, err := f.svc.Create(context.Background(), CreateInput{
		StatusID: model.StatusNew,
		Items:    []CreateItem{item(1, 4, 25)},
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, f.db.Model(&model.Order{}).Count(&count).Error)
	assert.Zero(t, count, "header rolled back with the transaction")
	assert.Equal(t, int64(10), f.ledger.Balance(1), "reserved stock released")
}

func TestCreateDefaultsUserAndAmounts(t *testing.T) {
	f := newFixture(t)
	f.ledger.Set(1, 10)

	res, err := f.svc.Create(context.Background(), CreateInput{
		StatusID: model.StatusNew,
		Items:    []CreateItem{item(1, 1, 10)},
	})
	require.NoError(t, err)

	var ord model.Order
	require.NoError(t, f.db.First(&ord, res.OrderID).Error)
	assert.True(t, strings.HasPrefix(ord.UserID, "guest-"), "fallback opaque user id")
	assert.Equal(t, "backoffice", ord.UpdatedBy)
	assert.True(t, ord.Tax.IsZero())
	assert.True(t, ord.DeliveryFee.IsZero())
	assert.True(t, ord.Adjustment.IsZero())
	assert.True(t, ord.Total.Equal(ord.Subtotal))
}

func TestCreateEmitsCreatedEvent(t *testing.T) {
	f := newFixture(t)
	f.ledger.Set(1, 10)

	res, err := f.svc.Create(context.Background(), CreateInput{
		StatusID:    model.StatusNew,
		Items:       []CreateItem{item(1, 1, 10)},
		Observation: "from app",
	})
	require.NoError(t, err)

	events := f.sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, queue.EventOrderCreated, events[0].Kind)
	assert.Equal(t, res.OrderID, events[0].OrderID)
	assert.Equal(t, uint(model.StatusNew), events[0].StatusID)
	assert.NoError(t, events[0].Validate())
}

func TestCreateOversubscriptionNeverOversells(t *testing.T) {
	f := newFixture(t)
	const initial = int64(5)
	f.ledger.Set(1, initial)

	successes := 0
	for i := 0; i < 8; i++ {
		_, err := f.svc.Create(context.Background(), CreateInput{
			StatusID: model.StatusNew,
			Items:    []CreateItem{item(1, 1, 10)},
		})
		if err == nil {
			successes++
		}
	}
	assert.Equal(t, 5, successes, "at least one over-subscribed creation is rejected")
	assert.GreaterOrEqual(t, f.ledger.Balance(1), int64(0))

	var count int64
	require.NoError(t, f.db.Model(&model.Order{}).Count(&count).Error)
	assert.Equal(t, int64(successes), count)
}

func createAt(t *testing.T, f *fixture, statusID uint) uint {
	t.Helper()
	f.ledger.Set(1, 1000)
	res, err := f.svc.Create(context.Background(), CreateInput{
		StatusID:    statusID,
		Items:       []CreateItem{item(1, 1, 10)},
		Observation: "seed",
	})
	require.NoError(t, err)
	return res.OrderID
}

func TestTransitionAdvanceToNext(t *testing.T) {
	f := newFixture(t)
	orderID := createAt(t, f, model.StatusNew)

	ord, err := f.svc.Transition(context.Background(), TransitionInput{
		OrderID:     orderID,
		Observation: "confirmed by phone",
		ActingUser:  "luis",
	})
	require.NoError(t, err)
	assert.Equal(t, uint(2), ord.StatusID)
	assert.Equal(t, "luis", ord.UpdatedBy)

	require.Len(t, ord.Activities, 2)
	last := ord.Activities[len(ord.Activities)-1]
	assert.Equal(t, uint(2), last.StatusID)
	assert.Equal(t, "confirmed by phone", last.Observation)
}

func TestTransitionAdvanceWalksConfiguredChain(t *testing.T) {
	f := newFixture(t)
	orderID := createAt(t, f, model.StatusNew)

	for _, want := range []uint{2, 3, 4, 5} {
		ord, err := f.svc.Transition(context.Background(), TransitionInput{
			OrderID:     orderID,
			Observation: "next step",
		})
		require.NoError(t, err)
		assert.Equal(t, want, ord.StatusID)
	}

	// Delivered is terminal: the chain stops here.
	_, err := f.svc.Transition(context.Background(), TransitionInput{
		OrderID:     orderID,
		Observation: "one more",
	})
	assert.ErrorIs(t, err, ErrTerminalStatus)
}

func TestTransitionTerminalGuard(t *testing.T) {
	f := newFixture(t)
	for _, statusID := range []uint{model.StatusDelivered, model.StatusRejected} {
		orderID := createAt(t, f, statusID)

		_, err := f.svc.Transition(context.Background(), TransitionInput{
			OrderID:     orderID,
			Observation: "try advance",
		})
		assert.ErrorIs(t, err, ErrTerminalStatus)

		dest := uint(2)
		_, err = f.svc.Transition(context.Background(), TransitionInput{
			OrderID:     orderID,
			Destination: &dest,
			Observation: "try jump",
		})
		assert.ErrorIs(t, err, ErrTerminalStatus)
	}
}

func TestTransitionProblemsNeedsExplicitDestination(t *testing.T) {
	f := newFixture(t)
	orderID := createAt(t, f, model.StatusHasProblems)

	// Advance mode has nowhere to go from has_problems.
	_, err := f.svc.Transition(context.Background(), TransitionInput{
		OrderID:     orderID,
		Observation: "retry flow",
	})
	assert.ErrorIs(t, err, ErrNoNextStatus)

	// An explicit jump back into the flow works.
	dest := uint(3)
	ord, err := f.svc.Transition(context.Background(), TransitionInput{
		OrderID:     orderID,
		Destination: &dest,
		Observation: "resolved, resume preparing",
		ActingUser:  "marta",
	})
	require.NoError(t, err)
	assert.Equal(t, uint(3), ord.StatusID)

	last := ord.Activities[len(ord.Activities)-1]
	assert.Equal(t, uint(3), last.StatusID)
	assert.Equal(t, "resolved, resume preparing", last.Observation)
	assert.Equal(t, "marta", last.UserID)
}

func TestTransitionJumpShortcuts(t *testing.T) {
	f := newFixture(t)
	for _, dest := range []uint{model.StatusDelivered, model.StatusRejected, model.StatusHasProblems} {
		orderID := createAt(t, f, model.StatusNew)
		d := dest
		ord, err := f.svc.Transition(context.Background(), TransitionInput{
			OrderID:     orderID,
			Destination: &d,
			Observation: "shortcut",
		})
		require.NoError(t, err)
		assert.Equal(t, dest, ord.StatusID)
	}
}

func TestTransitionRequiresObservation(t *testing.T) {
	f := newFixture(t)
	orderID := createAt(t, f, model.StatusNew)

	for _, obs := range []string{"", "   "} {
		_, err := f.svc.Transition(context.Background(), TransitionInput{
			OrderID:     orderID,
			Observation: obs,
		})
		assert.ErrorIs(t, err, ErrObservationRequired)
	}
}

func TestTransitionUnknownDestination(t *testing.T) {
	f := newFixture(t)
	orderID := createAt(t, f, model.StatusNew)

	dest := uint(42)
	_, err := f.svc.Transition(context.Background(), TransitionInput{
		OrderID:     orderID,
		Destination: &dest,
		Observation: "bad jump",
	})
	assert.ErrorIs(t, err, ErrStatusNotFound)
}

func TestTransitionUnknownOrder(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Transition(context.Background(), TransitionInput{
		OrderID:     12345,
		Observation: "ghost",
	})
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestTransitionEmitsStatusChangedEvent(t *testing.T) {
	f := newFixture(t)
	orderID := createAt(t, f, model.StatusNew)

	_, err := f.svc.Transition(context.Background(), TransitionInput{
		OrderID:     orderID,
		Observation: "confirmed",
	})
	require.NoError(t, err)

	events := f.sink.all()
	require.Len(t, events, 2, "created + status_changed")
	assert.Equal(t, queue.EventStatusChanged, events[1].Kind)
	assert.Equal(t, uint(2), events[1].StatusID)
	assert.NoError(t, events[1].Validate())
}

func TestGetUnknownOrder(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Get(context.Background(), 999)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestCollapseItemsKeepsFirstSeenOrder(t *testing.T) {
	items := []CreateItem{item(3, 1, 10), item(1, 2, 20), item(3, 4, 10), item(1, 1, 20)}
	got := collapseItems(items)
	require.Len(t, got, 2)
	assert.Equal(t, stock.Adjustment{ProductID: 3, Quantity: 5}, got[0])
	assert.Equal(t, stock.Adjustment{ProductID: 1, Quantity: 3}, got[1])
}
